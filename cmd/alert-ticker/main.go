package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/mr1hm/go-weather-ticker/internal/config"
	"github.com/mr1hm/go-weather-ticker/internal/display"
	"github.com/mr1hm/go-weather-ticker/internal/logging"
	"github.com/mr1hm/go-weather-ticker/internal/schedule"
	"github.com/mr1hm/go-weather-ticker/internal/ticker"
	"github.com/mr1hm/go-weather-ticker/internal/tui"
)

var (
	feedURL      string
	rotate       time.Duration
	fetchEvery   time.Duration
	scrollSource string
	timezone     string
	plain        bool
	plainWidth   int
	logFile      string
)

var rootCmd = &cobra.Command{
	Use:   "alert-ticker",
	Short: "Rotating weather alert ticker for broadcast overlays",
	Long: `alert-ticker fetches the active alert list from an alert feed and shows one
alert at a time, rotating on a timer. Long location lists scroll as a marquee.

Keys:
  n   next alert
  r   refetch now
  q   quit

Examples:
  alert-ticker --feed http://localhost:8080/alerts
  alert-ticker --rotate 20s --timezone America/Chicago
  alert-ticker --plain --width 100 > ticker.txt`,
	RunE: run,
}

func init() {
	rootCmd.Flags().StringVar(&feedURL, "feed", "", "Alert feed URL (TICKER_FEED_URL)")
	rootCmd.Flags().DurationVar(&rotate, "rotate", 0, "Rotation interval (TICKER_ROTATE_INTERVAL)")
	rootCmd.Flags().DurationVar(&fetchEvery, "fetch-interval", 0, "Feed refresh interval (TICKER_FETCH_INTERVAL)")
	rootCmd.Flags().StringVar(&scrollSource, "scroll-source", "", "Overflow decision: auto, hint or measure (TICKER_SCROLL_SOURCE)")
	rootCmd.Flags().StringVar(&timezone, "timezone", "", "Display timezone for expirations (TICKER_TIMEZONE)")
	rootCmd.Flags().BoolVar(&plain, "plain", false, "Write one line per update to stdout instead of the terminal UI")
	rootCmd.Flags().IntVar(&plainWidth, "width", 0, "Container width in plain mode (TICKER_PLAIN_WIDTH)")
	rootCmd.Flags().StringVar(&logFile, "log-file", "", "Log file used by the terminal UI (TICKER_LOG_FILE)")
}

func main() {
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	opts, err := display.OptionsFromConfig(cfg.Ticker)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Ticker.Plain {
		logging.SetupWriter(cfg.Logging.Level, os.Stderr)
		return runPlain(ctx, cfg, opts)
	}

	f, err := os.OpenFile(cfg.Ticker.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("error opening log file: %w", err)
	}
	defer f.Close()
	logging.SetupWriter(cfg.Logging.Level, f)

	return runTUI(ctx, cfg, opts)
}

// loadConfig reads the environment, applies the flags that were set and
// validates the result once, so a flag can correct a bad environment value.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.FromEnv()
	applyFlags(cmd, &cfg.Ticker)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("error loading config: %w", err)
	}
	return cfg, nil
}

func applyFlags(cmd *cobra.Command, t *config.TickerConfig) {
	flags := cmd.Flags()
	if flags.Changed("feed") {
		t.FeedURL = feedURL
	}
	if flags.Changed("rotate") {
		t.RotateInterval = rotate
	}
	if flags.Changed("fetch-interval") {
		t.FetchInterval = fetchEvery
	}
	if flags.Changed("scroll-source") {
		t.ScrollSource = config.ScrollSource(strings.ToLower(scrollSource))
	}
	if flags.Changed("timezone") {
		t.Timezone = timezone
	}
	if flags.Changed("plain") {
		t.Plain = plain
	}
	if flags.Changed("width") {
		t.PlainWidth = plainWidth
	}
	if flags.Changed("log-file") {
		t.LogFile = logFile
	}
}

func runPlain(ctx context.Context, cfg *config.Config, opts display.Options) error {
	logger := slog.Default()
	loop := schedule.NewLoop(nil, logger)

	surface := display.NewPlainSurface(os.Stdout, cfg.Ticker.PlainWidth)
	engine := display.NewEngine(surface, opts, logger)
	engine.RenderNoAlerts()

	fetcher := ticker.NewFetcher(cfg.Ticker.FeedURL, cfg.Ticker.FetchTimeout)
	runner := ticker.NewRunner(cfg.Ticker, fetcher, engine, loop, logger)
	runner.Start(ctx)

	err := loop.Run(ctx)

	loop.Close()
	runner.Stop()

	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func runTUI(ctx context.Context, cfg *config.Config, opts display.Options) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	logger := slog.Default()
	loop := schedule.NewLoop(nil, logger)

	model := tui.NewModel(loop, cfg.Ticker.Separator)
	engine := display.NewEngine(model, opts, logger)
	engine.RenderNoAlerts()

	fetcher := ticker.NewFetcher(cfg.Ticker.FeedURL, cfg.Ticker.FetchTimeout)
	runner := ticker.NewRunner(cfg.Ticker, fetcher, engine, loop, logger)
	model.Bind(engine, runner)
	runner.Start(ctx)

	p := tea.NewProgram(model,
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)
	_, err := p.Run()

	cancel()
	loop.Close()
	runner.Stop()

	// A cancelled context (signal) kills the program; that is a normal exit.
	if errors.Is(err, tea.ErrProgramKilled) {
		return nil
	}
	return err
}
