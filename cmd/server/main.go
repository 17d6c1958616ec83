/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the extra-staff balance server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration from EXTRAS_* environment variables
  2. Apply command-line overrides
  3. Initialize SQLite store and engine rules
  4. Pick the sector-week locker (Redis when configured, else in-process)
  5. Create services, handler, router and the overshoot scanner
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port    HTTP server port (overrides EXTRAS_ADDR)
  -db      SQLite database path (overrides EXTRAS_DB_PATH)
           Use ":memory:" for in-memory database

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the scanner
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close Redis and database connections

EXAMPLES:
  ./server -db=":memory:"
  EXTRAS_REDIS_ADDR=localhost:6379 EXTRAS_DEFAULT_DAILY_RATE=130 ./server -port=3000

SEE ALSO:
  - config/config.go: Environment variables
  - api/server.go: Router configuration
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/warp/extras-engine/api"
	"github.com/warp/extras-engine/config"
	"github.com/warp/extras-engine/extras"
	"github.com/warp/extras-engine/factory"
	"github.com/warp/extras-engine/store/sqlite"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "server: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Flags
	port := flag.Int("port", 0, "HTTP server port (overrides EXTRAS_ADDR)")
	dbPath := flag.String("db", "", "SQLite database path (overrides EXTRAS_DB_PATH)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if *port > 0 {
		cfg.Addr = fmt.Sprintf(":%d", *port)
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}

	logger := config.NewLogger(cfg, os.Stdout)
	slog.SetDefault(logger)

	// Initialize store
	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer store.Close()

	rules, err := factory.NewRulesFactory().LoadFile(cfg.RulesFile)
	if err != nil {
		return fmt.Errorf("failed to load rules: %w", err)
	}
	defaultRate, err := cfg.DailyRate()
	if err != nil {
		return err
	}

	// Sector-week locker
	var locker extras.Locker = extras.NewLocalLocker()
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer client.Close()

		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := client.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			return fmt.Errorf("failed to reach redis at %s: %w", cfg.RedisAddr, err)
		}
		locker = extras.NewRedisLocker(client, cfg.LockTTL, logger)
		logger.Info("using redis sector-week lock", slog.String("addr", cfg.RedisAddr))
	}

	svcCfg := extras.Config{
		Store:       store,
		Rules:       rules,
		DefaultRate: defaultRate,
		Locker:      locker,
		Logger:      logger,
	}
	records := extras.NewRecordService(svcCfg)
	requests := extras.NewRequestService(svcCfg)

	handler := api.NewHandler(records, requests, store, logger)
	router := api.NewRouter(handler, api.RouterOptions{
		CORSOrigins:         cfg.CORSOrigins,
		WriteLimitPerMinute: cfg.RateLimitPerMinute,
	})

	scanner := api.NewOvershootScanner(records, logger)
	scanner.Enabled = cfg.ScanEnabled
	scanner.CheckInterval = cfg.ScanInterval
	scanner.Start()
	defer scanner.Stop()

	// Create server
	server := &http.Server{
		Addr:         cfg.Addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			slog.String("addr", cfg.Addr),
			slog.String("db", cfg.DBPath),
			slog.String("default_rate", defaultRate.StringFixed(2)),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serverErr:
		return fmt.Errorf("server failed: %w", err)
	case <-quit:
	}

	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}
