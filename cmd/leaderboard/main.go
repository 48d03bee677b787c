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

	"leaderboard/internal/api"
	"leaderboard/internal/config"
	"leaderboard/internal/leaderboard"
	"leaderboard/internal/logger"
	"leaderboard/internal/models"
	"leaderboard/internal/observability"
	"leaderboard/internal/ratelimit"
	"leaderboard/internal/storage"
	"leaderboard/internal/version"
)

var (
	configFile    = flag.String("config", "", "Path to configuration file")
	exampleConfig = flag.String("write-example-config", "", "Write an example configuration file to this path and exit")
	showVersion   = flag.Bool("version", false, "Print version information and exit")
)

func main() {
	flag.Parse()

	ver := version.GetInfo()

	if *showVersion {
		fmt.Println(ver.String())
		return
	}

	if *exampleConfig != "" {
		if err := config.SaveExample(*exampleConfig); err != nil {
			slog.Error("Failed to write example configuration", "error", err)
			os.Exit(1)
		}
		return
	}

	// Load configuration
	cfg, err := config.Load(*configFile)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Initialize structured logging
	log, closer, err := logger.Setup(cfg.Logging, ver)
	if err != nil {
		slog.Error("Failed to initialize logger", "error", err)
		os.Exit(1)
	}
	if closer != nil {
		defer closer.Close()
	}
	slog.SetDefault(log)
	slog.Info("Configuration loaded", "environment", config.Environment(), "storage", cfg.Storage.Type)
	if !ver.IsRelease() {
		slog.Warn("Running a non-release build", "version", ver.Version)
	}

	// Initialize observability (OpenTelemetry)
	otelProvider, err := observability.Setup(observability.Options{
		Metrics:       cfg.Metrics,
		Observability: cfg.Observability,
		Version:       ver,
		Environment:   config.Environment(),
	})
	if err != nil {
		slog.Error("Failed to initialize observability", "error", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := otelProvider.Shutdown(shutdownCtx); err != nil {
			slog.Error("Failed to shutdown observability", "error", err)
		}
	}()

	// Initialize storage
	activeStorage, err := initializeStorage(cfg)
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}
	defer activeStorage.Close()

	// One submission window per process, shared by every request
	submitLimiter, err := initializeSubmitLimiter(cfg)
	if err != nil {
		slog.Error("Failed to initialize submission limiter", "error", err)
		os.Exit(1)
	}
	defer submitLimiter.Close()

	service := leaderboard.NewService(activeStorage, submitLimiter, cfg.Leaderboard)

	handlers := api.NewHandlers(service,
		api.WithVersionInfo(ver),
		api.WithLimits(service.TopN(), service.MaxKeep()),
	)

	// Setup routes with middleware
	routeOpts := []api.RouteOption{}
	if cfg.Observability.Tracing.Enabled {
		routeOpts = append(routeOpts, api.WithOTelMiddleware(cfg.Observability.ServiceName))
	}

	// General API limiter, independent of the submission window
	if cfg.Security.RateLimit.Enabled {
		rlCfg := cfg.Security.RateLimit
		var apiLimiter ratelimit.Limiter = ratelimit.NewTokenBucketLimiter(rlCfg.RequestsPerMinute, rlCfg.BurstSize, rlCfg.CleanupInterval)
		if cfg.Metrics.Enabled {
			instrumented, err := observability.NewInstrumentedLimiter(apiLimiter, "api")
			if err != nil {
				slog.Error("Failed to create instrumented limiter", "error", err)
				os.Exit(1)
			}
			apiLimiter = instrumented
		}
		defer apiLimiter.Close()

		routeOpts = append(routeOpts, api.WithRateLimiter(ratelimit.Middleware(apiLimiter)))
	}

	router := api.SetupRoutes(handlers, cfg, routeOpts...)

	// Start metrics server if enabled
	var metricsServer *observability.MetricsServer
	if cfg.Metrics.Enabled {
		metricsServer = observability.NewMetricsServer(cfg.Metrics.Port, cfg.Metrics.Path, otelProvider)
		go func() {
			if err := metricsServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("Metrics server failed", "error", err)
			}
		}()
	}

	// Create HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErr := make(chan error, 1)

	// Start server in a goroutine
	go func() {
		slog.Info("Starting server", "addr", server.Addr, "version", ver.DisplayVersion())

		var err error
		if cfg.Server.TLSEnabled {
			slog.Info("Starting HTTPS server with TLS")
			err = server.ListenAndServeTLS(cfg.Server.TLSCertFile, cfg.Server.TLSKeyFile)
		} else {
			slog.Info("Starting HTTP server")
			err = server.ListenAndServe()
		}

		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Wait for interrupt signal or a listener failure
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	exitCode := 0
	select {
	case sig := <-quit:
		slog.Info("Shutting down server", "signal", sig.String())
	case err := <-serverErr:
		slog.Error("Server failed to start", "error", err)
		exitCode = 1
	}

	// Create a deadline to wait for shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Shutdown metrics server
	if metricsServer != nil {
		if err := metricsServer.Shutdown(ctx); err != nil {
			slog.Error("Metrics server forced to shutdown", "error", err)
		}
	}

	// Attempt graceful shutdown
	if err := server.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}

	slog.Info("Server shutdown complete")

	if exitCode != 0 {
		// Deferred cleanup does not run after os.Exit.
		cancel()
		activeStorage.Close()
		os.Exit(exitCode)
	}
}

// initializeStorage creates the configured backend, wrapped with
// instrumentation when metrics are enabled.
func initializeStorage(cfg *models.Config) (storage.Storage, error) {
	store, err := storage.NewFactory().Create(cfg.Storage, cfg.Leaderboard)
	if err != nil {
		return nil, err
	}

	if !cfg.Metrics.Enabled {
		return store, nil
	}

	instrumented, err := observability.NewInstrumentedStorage(store, cfg.Storage.Type)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to create instrumented storage: %w", err)
	}
	return instrumented, nil
}

// initializeSubmitLimiter builds the per-client submission window.
func initializeSubmitLimiter(cfg *models.Config) (ratelimit.Limiter, error) {
	sl := cfg.Leaderboard.SubmitLimit
	var limiter ratelimit.Limiter = ratelimit.NewSlidingWindowLimiter(sl.Capacity, sl.Window, sl.CleanupInterval)

	if !cfg.Metrics.Enabled {
		return limiter, nil
	}

	instrumented, err := observability.NewInstrumentedLimiter(limiter, "submit")
	if err != nil {
		limiter.Close()
		return nil, fmt.Errorf("failed to create instrumented limiter: %w", err)
	}
	return instrumented, nil
}
