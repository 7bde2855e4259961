package display

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mr1hm/go-weather-ticker/internal/models"
)

func TestPlainSurface_WritesOnChange(t *testing.T) {
	var buf bytes.Buffer
	s := NewPlainSurface(&buf, 20)
	e := NewEngine(s, Options{Separator: " • ", Location: time.UTC}, quietLogger())

	e.Replace([]models.Alert{
		{Event: "Tornado Warning", Details: "Take shelter", Locations: "Caddo, LA; Bossier, LA; De Soto, LA"},
	})
	e.RecomputeScroll()
	e.Advance()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1, "unchanged state is written once")
	assert.Contains(t, lines[0], "[tornado-warning] Tornado Warning")
	assert.Contains(t, lines[0], "Expires: Unknown")
	assert.Contains(t, lines[0], "scroll 17.5s")

	e.Replace(nil)
	lines = strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "[no-alerts] No Active Alerts", lines[1])
}
