// Package cli provides common binary initialization utilities: logging,
// environment loading, configuration, session storage and shutdown handling.
package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"transferencias/internal/config"
	"transferencias/internal/session"
	"transferencias/internal/storage"
)

// SetupLogger initializes structured logging with default settings and sets
// it as the default logger.
func SetupLogger() *slog.Logger {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development. Errors are ignored
// silently as the file is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it, exiting the
// process on failure.
func LoadAndValidateConfig(logger *slog.Logger) *config.Config {
	cfg, err := config.Load()
	if err != nil {
		logger.Error("Configuration load failed", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	return cfg
}

// InitSessionStore builds the configured session store. The returned cleanup
// closes any underlying database and is safe to call once at shutdown.
func InitSessionStore(logger *slog.Logger, cfg *config.Config) (session.Store, func()) {
	switch cfg.SessionBackend {
	case "sqlite":
		store, err := storage.NewSQLiteSessionStore(cfg.SessionDBPath)
		if err != nil {
			logger.Error("Failed to initialize session store", "error", err, "path", cfg.SessionDBPath)
			os.Exit(1)
		}
		logger.Info("Initialized sqlite session store", "path", cfg.SessionDBPath)
		return store, func() { _ = store.Close() }
	default:
		logger.Info("Initialized in-memory session store")
		return session.NewMemoryStore(), func() {}
	}
}

// GracefulShutdown sets up signal handling. The returned context is
// cancelled on SIGINT/SIGTERM after cleanup has run; done closes when the
// shutdown sequence finished.
func GracefulShutdown(logger *slog.Logger, timeout time.Duration, cleanup func()) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		if cleanup != nil {
			cleanup()
		}
		cancel()

		select {
		case <-shutdownCtx.Done():
			logger.Warn("Shutdown timeout reached")
		case <-time.After(2 * time.Second):
			logger.Info("Shutdown complete")
		}
		close(done)
	}()

	return ctx, done
}
