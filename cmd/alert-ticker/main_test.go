package main

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mr1hm/go-weather-ticker/internal/config"
)

func TestLoadConfig_BadEnvWithoutFlag(t *testing.T) {
	t.Setenv("TICKER_SCROLL_SOURCE", "guess")

	_, err := loadConfig(&cobra.Command{})
	assert.Error(t, err)
}

func TestLoadConfig_FlagOverridesBadEnv(t *testing.T) {
	t.Setenv("TICKER_SCROLL_SOURCE", "guess")
	t.Setenv("TICKER_ROTATE_INTERVAL", "100ms")

	require.NoError(t, rootCmd.ParseFlags([]string{"--scroll-source", "Measure", "--rotate", "15s"}))

	cfg, err := loadConfig(rootCmd)
	require.NoError(t, err)
	assert.Equal(t, config.ScrollMeasure, cfg.Ticker.ScrollSource)
	assert.Equal(t, "15s", cfg.Ticker.RotateInterval.String())
}
