package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server  ServerConfig
	Ticker  TickerConfig
	Worker  WorkerConfig
	Sources SourcesConfig
	DB      DatabaseConfig
	Logging LoggingConfig
}

type ServerConfig struct {
	Host      string
	Port      int
	RateLimit int
}

// ScrollSource selects how the ticker decides whether locations text overflows.
type ScrollSource string

const (
	ScrollAuto    ScrollSource = "auto"    // explicit hint wins, else measure
	ScrollHint    ScrollSource = "hint"    // hint only
	ScrollMeasure ScrollSource = "measure" // ignore hints
)

type TickerConfig struct {
	FeedURL           string
	FetchTimeout      time.Duration
	FetchInterval     time.Duration
	RotateInterval    time.Duration
	RemeasureInterval time.Duration
	ScrollSource      ScrollSource
	Duplicate         bool
	Separator         string
	MarqueeFloor      time.Duration
	MarqueePerWidth   time.Duration
	TimeFormat        string
	Timezone          string
	Plain             bool
	PlainWidth        int
	LogFile           string
}

type WorkerConfig struct {
	Count      int
	BufferSize int
}

type SourcesConfig struct {
	NWSEnabled      bool
	NWSURL          string
	NWSPollInterval time.Duration
	NWSCodes        []string
	NWSUserAgent    string
}

type DatabaseConfig struct {
	Path string
}

type LoggingConfig struct {
	Level string
}

// Load reads the configuration from the environment and validates it.
func Load() (*Config, error) {
	cfg := FromEnv()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromEnv reads the configuration without validating it, so callers can
// apply command-line overrides before calling Validate.
func FromEnv() *Config {
	return &Config{
		Server: ServerConfig{
			Host:      getEnv("SERVER_HOST", "localhost"),
			Port:      getEnvInt("SERVER_PORT", 8080),
			RateLimit: getEnvInt("RATE_LIMIT_RPS", 5),
		},
		Ticker: TickerConfig{
			FeedURL:           getEnv("TICKER_FEED_URL", "http://localhost:8080/alerts"),
			FetchTimeout:      getEnvDuration("TICKER_FETCH_TIMEOUT", 15*time.Second),
			FetchInterval:     getEnvDuration("TICKER_FETCH_INTERVAL", 5*time.Minute),
			RotateInterval:    getEnvDuration("TICKER_ROTATE_INTERVAL", 10*time.Second),
			RemeasureInterval: getEnvDuration("TICKER_REMEASURE_INTERVAL", time.Second),
			ScrollSource:      ScrollSource(strings.ToLower(getEnv("TICKER_SCROLL_SOURCE", string(ScrollAuto)))),
			Duplicate:         getEnvBool("TICKER_DUPLICATE", true),
			Separator:         getEnv("TICKER_SEPARATOR", "   •   "),
			MarqueeFloor:      getEnvDuration("TICKER_MARQUEE_FLOOR", 10*time.Second),
			MarqueePerWidth:   getEnvDuration("TICKER_MARQUEE_PER_WIDTH", 10*time.Second),
			TimeFormat:        getEnv("TICKER_TIME_FORMAT", "January 02, 2006 03:04 PM MST"),
			Timezone:          getEnv("TICKER_TIMEZONE", "Local"),
			Plain:             getEnvBool("TICKER_PLAIN", false),
			PlainWidth:        getEnvInt("TICKER_PLAIN_WIDTH", 80),
			LogFile:           getEnv("TICKER_LOG_FILE", "alert-ticker.log"),
		},
		Worker: WorkerConfig{
			Count:      getEnvInt("WORKER_COUNT", 2),
			BufferSize: getEnvInt("WORKER_BUFFER_SIZE", 50),
		},
		Sources: SourcesConfig{
			NWSEnabled:      getEnvBool("NWS_ENABLED", true),
			NWSURL:          getEnv("NWS_URL", "https://api.weather.gov/alerts/active"),
			NWSPollInterval: getEnvDuration("NWS_POLL_INTERVAL", 2*time.Minute),
			NWSCodes:        getEnvList("NWS_CODES", []string{"TOR", "TOA", "SVR", "SVA", "FFW", "SVS", "SPS"}),
			NWSUserAgent:    getEnv("NWS_USER_AGENT", "go-weather-ticker (ops@example.com)"),
		},
		DB: DatabaseConfig{
			Path: getEnv("DB_PATH", "./data/alerts.db"),
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}
}

// Validate checks a configuration built by FromEnv or changed after Load.
func (c *Config) Validate() error {
	return c.validate()
}

func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.RateLimit < 1 {
		return fmt.Errorf("rate limit must be at least 1 req/s")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	if c.Sources.NWSPollInterval < time.Minute {
		return fmt.Errorf("NWS poll interval must be at least 1 minute")
	}

	return c.Ticker.validate()
}

func (t TickerConfig) validate() error {
	if t.FeedURL == "" {
		return fmt.Errorf("ticker feed URL is required")
	}
	if t.FetchInterval < time.Second {
		return fmt.Errorf("ticker fetch interval must be at least 1 second")
	}
	if t.RotateInterval < time.Second {
		return fmt.Errorf("ticker rotate interval must be at least 1 second")
	}
	if t.RemeasureInterval < 100*time.Millisecond {
		return fmt.Errorf("ticker remeasure interval must be at least 100ms")
	}
	switch t.ScrollSource {
	case ScrollAuto, ScrollHint, ScrollMeasure:
	default:
		return fmt.Errorf("invalid scroll source: %s", t.ScrollSource)
	}
	if t.Duplicate && t.Separator == "" {
		return fmt.Errorf("ticker separator is required when duplication is on")
	}
	if t.MarqueeFloor <= 0 || t.MarqueePerWidth <= 0 {
		return fmt.Errorf("marquee durations must be positive")
	}
	if t.PlainWidth < 10 {
		return fmt.Errorf("plain width must be at least 10 columns")
	}
	if _, err := t.Location(); err != nil {
		return err
	}
	return nil
}

// Location resolves the configured display timezone.
func (t TickerConfig) Location() (*time.Location, error) {
	if t.Timezone == "" || t.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(t.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid ticker timezone %q: %w", t.Timezone, err)
	}
	return loc, nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
