// Package main is the entry point for the walkability API server.
//
// It loads configuration, assembles the analysis pipeline, builds the HTTP
// server with the core chassis (middleware, routing, health checks), and
// serves POST /v1/routes/analyze until SIGINT or SIGTERM.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"walkability/internal/api/handlers"
	"walkability/internal/app"
	"walkability/internal/config"
	"walkability/internal/core"
)

// rateLimitSweepInterval controls how often expired rate limit windows are
// dropped from memory.
const rateLimitSweepInterval = 5 * time.Minute

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// run encapsulates the startup lifecycle so that main() can cleanly exit on error.
func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info("walkability API starting",
		"environment", cfg.Environment,
		"build", cfg.Build.String(),
		"port", cfg.Server.Port,
	)

	srv, err := buildServer(context.Background(), cfg, logger)
	if err != nil {
		return err
	}

	return runHTTPServer(srv, cfg, logger)
}

// buildServer wires the pipeline into the chassis and mounts all routes.
func buildServer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*core.Server, error) {
	srv, err := core.NewServer(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("creating server: %w", err)
	}

	components, err := app.Build(ctx, cfg, srv.Validator.Engine(), logger)
	if err != nil {
		return nil, fmt.Errorf("assembling pipeline: %w", err)
	}

	srv.Metrics = components.Metrics
	srv.RateLimitStore = core.NewMemoryRateLimitStore(rateLimitSweepInterval)
	for _, t := range components.Transports {
		srv.HealthProbes = append(srv.HealthProbes, t)
	}

	analyzeHandler := handlers.NewAnalyzeHandler(components.Analyzer, srv.Validator, cfg.Server.MaxBodyBytes, logger)
	srv.V1RouteRegistrars = append(srv.V1RouteRegistrars, analyzeHandler.RegisterRoutes)

	srv.MountRoutes()
	return srv, nil
}

// runHTTPServer starts the server in standard HTTP mode with graceful shutdown.
func runHTTPServer(srv *core.Server, cfg *config.Config, logger *slog.Logger) error {
	addr := ":" + cfg.Server.Port

	// WriteTimeout leaves headroom over the request context deadline so slow
	// analyses can still write their result.
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      cfg.Server.RequestTimeout + 10*time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Channel to capture server errors from ListenAndServe.
	serverErr := make(chan error, 1)

	go func() {
		logger.Info("HTTP server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	logger.Info("initiating graceful shutdown")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server resource shutdown error", "error", err)
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("server stopped cleanly")
	return nil
}

// newLogger creates a structured slog.Logger configured for the given log level.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: lvl,
	})
	return slog.New(handler)
}
