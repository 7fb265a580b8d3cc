/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the crew-engine HTTP server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (CONFIG_PATH file and environment)
  2. Set up the logger for the environment
  3. Initialize SQLite store and the pending sync journal next to it
  4. Create API handler and router
  5. Start server with graceful shutdown

CONFIGURATION:
  CONFIG_PATH names an optional YAML file (see config/local.yaml).
  Every field can be overridden with its CREW_* environment variable.
  Use CREW_STORAGE_PATH=":memory:" for an in-memory database.

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (shutdown_timeout)
  3. Report shifts still waiting for a force sync (they stay journaled)
  4. Close database connection

SEE ALSO:
  - api/server.go: Router configuration
  - config/config.go: Configuration fields
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/warp/crew-engine/api"
	"github.com/warp/crew-engine/calendar"
	"github.com/warp/crew-engine/config"
	"github.com/warp/crew-engine/store/sqlite"
)

func main() {
	cfg := config.MustLoad()
	log := setupLogger(cfg.Env)

	store, err := sqlite.New(cfg.StoragePath)
	if err != nil {
		log.Error("failed to open storage", slog.String("path", cfg.StoragePath), slog.Any("error", err))
		os.Exit(1)
	}
	defer store.Close()

	journal, err := sqlite.OpenJournal(cfg.PendingJournalPath())
	if err != nil {
		log.Error("failed to open pending journal", slog.String("path", cfg.PendingJournalPath()), slog.Any("error", err))
		os.Exit(1)
	}
	defer journal.Close()

	// Validated by config.Load
	fallback, _ := cfg.OvertimePolicy()

	handler := api.NewHandler(store, api.Options{
		Fallback: fallback,
		Calendar: calendar.Options{
			Domain:    cfg.Calendar.UIDDomain,
			ProductID: cfg.Calendar.ProductID,
		},
		CurrencySymbol: cfg.CurrencySymbol,
		Journal:        journal,
		Logger:         log,
	})
	router := api.NewRouter(handler, api.RouterOptions{
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		AdminLogin:     cfg.Admin.Login,
		AdminPassword:  cfg.Admin.Password,
	})

	srv := &http.Server{
		Addr:         cfg.Address,
		Handler:      router,
		ReadTimeout:  cfg.HTTPServer.Timeout,
		WriteTimeout: cfg.HTTPServer.Timeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	go func() {
		log.Info("server started",
			slog.String("address", cfg.Address),
			slog.String("env", cfg.Env),
			slog.String("storage", cfg.StoragePath))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTPServer.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("server forced to shutdown", slog.Any("error", err))
	}
	if pending := handler.Tracker.Pending(); len(pending) > 0 {
		log.Warn("shifts not stored yet, kept in the pending journal",
			slog.Int("pending", len(pending)),
			slog.String("journal", cfg.PendingJournalPath()))
	}

	log.Info("server stopped")
}

func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case config.EnvLocal:
		log = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	case config.EnvDev:
		log = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	case config.EnvProd:
		log = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	default:
		log = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}

	return log
}
