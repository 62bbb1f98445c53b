/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the insurance policy service.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load POLICY_* environment configuration, then apply flags
  2. Configure zerolog
  3. Open the SQLite store (runs migrations)
  4. Create service, handler and router
  5. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -addr       HTTP listen address (overrides POLICY_LISTEN_ADDR)
  -db         SQLite database path (overrides POLICY_DB_PATH)
              Use ":memory:" for in-memory database
  -log-level  zerolog level (overrides POLICY_LOG_LEVEL)
  -dev        console log output and demo scenario routes
              (overrides POLICY_DEV_MODE)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (POLICY_SHUTDOWN_TIMEOUT)
  3. Close database connection
  4. Exit

EXAMPLES:
  ./server -db="./data/policies.db"
  ./server -db=":memory:" -dev
  POLICY_LISTEN_ADDR=:3000 ./server
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/warp/insurance-policy/api"
	"github.com/warp/insurance-policy/config"
	"github.com/warp/insurance-policy/policy"
	"github.com/warp/insurance-policy/store/sqlite"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Flags
	flag.StringVar(&cfg.ListenAddr, "addr", cfg.ListenAddr, "HTTP listen address")
	flag.StringVar(&cfg.DBPath, "db", cfg.DBPath, "SQLite database path")
	flag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level")
	flag.BoolVar(&cfg.DevMode, "dev", cfg.DevMode, "console logs and demo scenario routes")
	flag.Parse()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	setupLogging(cfg)
	logger := log.With().Str("component", "main").Logger()
	logger.Info().Str("version", version).Str("db", cfg.DBPath).Msg("starting policy service")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize store
	store, err := sqlite.New(ctx, cfg.DBPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize database")
	}
	defer store.Close()

	// Initialize handler
	svc := policy.NewService(store, policy.WithLogger(log.Logger))
	handler := api.NewHandler(svc)
	handler.Pinger = store
	handler.Resetter = store
	handler.Paging = api.Paging{DefaultSize: cfg.DefaultPageSize, MaxSize: cfg.MaxPageSize}

	opts := api.RouterOptions{Logger: log.Logger, CORSOrigins: cfg.CORSOrigins, DevMode: cfg.DevMode}
	if cfg.MetricsEnabled {
		opts.Metrics = api.NewMetrics()
	}
	router := api.NewRouter(handler, opts)

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.ListenAddr).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info().Str("signal", sig.String()).Msg("shutting down server")
	case err := <-errCh:
		logger.Error().Err(err).Msg("HTTP server error")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server forced to shutdown")
	}
	logger.Info().Msg("server stopped")
}

func setupLogging(cfg config.Config) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.DevMode {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
		return
	}
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs
	log.Logger = zerolog.New(os.Stderr).With().
		Timestamp().
		Str("service", "insurance-policy").
		Str("version", version).
		Logger()
}
