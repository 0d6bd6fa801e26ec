package main

import (
	"context"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"solana-activity-service/service/activity"
	"solana-activity-service/service/config"
	"solana-activity-service/service/fetch"
	"solana-activity-service/service/metrics"
	"solana-activity-service/service/server"
	"solana-activity-service/service/solana"
	"solana-activity-service/service/token"
)

func main() {
	// Load and validate configuration from environment
	// This fails fast if any required config is missing or invalid
	cfg := config.MustLoad()

	// Setup structured logging
	logger := setupLogger(cfg.LogLevel)
	logger.Info("starting server",
		"addr", cfg.ServerAddr,
		"log_level", cfg.LogLevel,
	)

	m := metrics.NewMetrics(nil)

	// The retrying HTTP client sits under both the Solana RPC transport and
	// the token list fetches, so rate limits are handled in one place.
	httpClient := fetch.NewClient(fetch.Options{
		MaxAttempts: cfg.FetchMaxAttempts,
		Timeout:     cfg.RequestTimeout,
		Endpoint:    endpointLabel(cfg.SolanaRPCURL),
		Metrics:     m,
		Logger:      logger,
	})

	// Initialize Solana RPC client
	// Note: For premium RPC endpoints, include API key in the URL
	solanaRPC := solana.NewRPCClient(cfg.SolanaRPCURL, httpClient)
	gateway := solana.NewClient(solanaRPC, endpointLabel(cfg.SolanaRPCURL), m, logger)
	logger.Info("initialized solana RPC client", "url", cfg.SolanaRPCURL)

	// Token metadata registry, lazily loaded on first lookup
	registry := token.NewRegistry(cfg.TokenListURL, httpClient, m, logger)

	// Activity transformation engine and service
	engine := activity.NewEngine(gateway, registry, cfg.ExplorerBaseURL, m, logger)
	svc := activity.NewService(engine, gateway, cfg.SignatureLimitMax, logger)

	// Initialize HTTP server
	httpServer := server.New(cfg.ServerAddr, cfg, svc, m, logger)

	// Start HTTP server in background
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- httpServer.Start()
	}()

	// Wait for shutdown signal or server error
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Error("server error", "error", err)
		os.Exit(1)
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())

		// Graceful shutdown with timeout
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown server gracefully", "error", err)
			os.Exit(1)
		}

		logger.Info("server shutdown complete")
	}
}

// endpointLabel reduces an RPC URL to its hostname for metric labels so API
// keys embedded in the URL never reach the metrics endpoint.
func endpointLabel(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return "unknown"
	}
	return u.Host
}

// setupLogger creates a structured logger with the given log level.
func setupLogger(levelStr string) *slog.Logger {
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}
