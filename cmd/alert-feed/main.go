package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/mr1hm/go-weather-ticker/internal/api"
	"github.com/mr1hm/go-weather-ticker/internal/broadcast"
	"github.com/mr1hm/go-weather-ticker/internal/config"
	"github.com/mr1hm/go-weather-ticker/internal/ingestion"
	"github.com/mr1hm/go-weather-ticker/internal/logging"
	"github.com/mr1hm/go-weather-ticker/internal/observability"
	"github.com/mr1hm/go-weather-ticker/internal/repository"
)

var (
	host   string
	port   int
	dbPath string
	noPoll bool
)

var rootCmd = &cobra.Command{
	Use:   "alert-feed",
	Short: "Serve active NWS weather alerts for the ticker",
	Long: `alert-feed polls the National Weather Service for active alerts, keeps them
in a local sqlite store and serves them over HTTP.

Endpoints:
  GET /alerts          Active alerts, most urgent first
  GET /alerts/stream   Server-sent events on every change
  GET /health          Liveness
  GET /metrics         Prometheus metrics

Settings are read from the environment (and .env); flags override them.`,
	RunE: run,
}

func init() {
	rootCmd.Flags().StringVar(&host, "host", "", "Listen host (SERVER_HOST)")
	rootCmd.Flags().IntVar(&port, "port", 0, "Listen port (SERVER_PORT)")
	rootCmd.Flags().StringVar(&dbPath, "db", "", "sqlite database path (DB_PATH)")
	rootCmd.Flags().BoolVar(&noPoll, "no-poll", false, "Serve stored alerts without polling NWS")
}

func main() {
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg := config.FromEnv()
	if cmd.Flags().Changed("host") {
		cfg.Server.Host = host
	}
	if cmd.Flags().Changed("port") {
		cfg.Server.Port = port
	}
	if cmd.Flags().Changed("db") {
		cfg.DB.Path = dbPath
	}
	if noPoll {
		cfg.Sources.NWSEnabled = false
	}
	if err := cfg.Validate(); err != nil {
		logging.Fatalf("Fatal while loading config: %v", err)
	}
	logging.Setup(cfg.Logging.Level)

	slog.Info("Server starting", "host", cfg.Server.Host, "port", cfg.Server.Port)

	if dir := filepath.Dir(cfg.DB.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("error creating database directory: %w", err)
		}
	}
	db, err := repository.NewSQLiteDB(cfg.DB.Path)
	if err != nil {
		logging.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metrics := observability.NewMetrics()
	broadcaster := broadcast.New()

	mgr := ingestion.NewManager(cfg, db, broadcaster, metrics)
	mgr.Start(ctx)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Cache-Control"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false,
	}))
	router.Use(api.MetricsMiddleware(metrics))
	router.Use(api.RateLimitMiddleware(cfg.Server.RateLimit))

	handler := api.NewHandler(db, broadcaster, metrics)
	handler.RegisterRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: router,
	}

	go func() {
		slog.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down...")

	cancel()
	mgr.Stop()
	broadcaster.Close() // ends open streams

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}
