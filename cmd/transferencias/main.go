package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"transferencias/internal/api"
	"transferencias/internal/api/memory"
	"transferencias/internal/api/rest"
	"transferencias/internal/cli"
	apphttp "transferencias/internal/http"
	"transferencias/internal/session"
)

func main() {
	logger := cli.SetupLogger()
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig(logger)

	sessionStore, closeSessions := cli.InitSessionStore(logger, cfg)
	sessions := session.NewManager(sessionStore)

	var backend api.Backend
	switch cfg.DataBackend {
	case "rest":
		client, err := rest.New(cfg.APIBaseURL, cfg.APITimeout)
		if err != nil {
			logger.Error("Failed to initialize REST backend", "error", err, "base_url", cfg.APIBaseURL)
			os.Exit(1)
		}
		backend = client
		logger.Info("Initialized REST backend", "base_url", cfg.APIBaseURL)
	default:
		backend = memory.NewFromFiles("data")
		logger.Info("Initialized memory backend", "backend", cfg.DataBackend)
	}

	srv := apphttp.NewServer(":"+cfg.Port, backend, sessions, cfg.TagCacheSize, cfg.TagCacheTTL)

	// Configure server timeouts and limits
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		closeSessions()
	})

	logger.Info("Starting transferencias server", "port", cfg.Port, "backend", cfg.DataBackend)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	<-done
	logger.Info("Server stopped gracefully")
}
