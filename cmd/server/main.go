package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ISOLATEDMAN/ai-scribe-copilot/internal/auth"
	"github.com/ISOLATEDMAN/ai-scribe-copilot/internal/config"
	"github.com/ISOLATEDMAN/ai-scribe-copilot/internal/metrics"
	"github.com/ISOLATEDMAN/ai-scribe-copilot/internal/patient"
	"github.com/ISOLATEDMAN/ai-scribe-copilot/internal/server"
	"github.com/ISOLATEDMAN/ai-scribe-copilot/internal/session"
	"github.com/ISOLATEDMAN/ai-scribe-copilot/internal/storage"
	"github.com/ISOLATEDMAN/ai-scribe-copilot/internal/transcription"
)

const (
	defaultConfigPath = "configs/config.yaml"
	serviceName       = "ai-scribe-copilot"
	serviceVersion    = "1.0.0"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger based on configuration
	logger := initLogger(cfg.Logging)

	// Log service startup
	logger.Info("Service starting",
		slog.String("service", serviceName),
		slog.String("version", serviceVersion),
		slog.String("config_path", *configPath),
	)

	// Log configuration summary (without sensitive data)
	logger.Info("Configuration loaded",
		slog.Int("http_port", cfg.HTTP.Port),
		slog.String("http_address", cfg.HTTP.Address),
		slog.String("storage_bucket", cfg.Storage.Bucket),
		slog.Duration("upload_url_ttl", cfg.Storage.GetUploadURLTTL()),
		slog.String("language_code", cfg.Transcription.LanguageCode),
		slog.Int("sample_rate_hertz", cfg.Transcription.SampleRateHertz),
		slog.Int("max_concurrent_transcriptions", cfg.Transcription.MaxConcurrent),
		slog.String("log_level", cfg.Logging.Level),
	)

	// Create cancellable context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize Prometheus metrics
	appMetrics := metrics.NewMetrics()
	logger.Info("Prometheus metrics initialized")

	// Initialize the object storage gateway
	gateway, err := storage.NewGCS(ctx, cfg.Storage.Bucket, cfg.Storage.GetUploadURLTTL())
	if err != nil {
		logger.Error("Failed to create storage gateway", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("Storage gateway initialized",
		slog.String("bucket", cfg.Storage.Bucket),
		slog.Duration("upload_url_ttl", cfg.Storage.GetUploadURLTTL()),
	)

	// Initialize the speech recognition backend and client
	recognizer, err := transcription.NewGoogleRecognizer(ctx, transcription.Config{
		LanguageCode:    cfg.Transcription.LanguageCode,
		SampleRateHertz: cfg.Transcription.SampleRateHertz,
	})
	if err != nil {
		logger.Error("Failed to create speech recognizer", slog.String("error", err.Error()))
		os.Exit(1)
	}

	transcriptionClient, err := transcription.NewClient(transcription.Config{
		LanguageCode:    cfg.Transcription.LanguageCode,
		SampleRateHertz: cfg.Transcription.SampleRateHertz,
		Timeout:         cfg.Transcription.GetTimeoutDuration(),
		MaxRetries:      cfg.Transcription.MaxRetries,
		MaxConcurrent:   cfg.Transcription.MaxConcurrent,
	}, recognizer)
	if err != nil {
		logger.Error("Failed to create transcription client", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("Transcription client initialized",
		slog.String("language_code", cfg.Transcription.LanguageCode),
		slog.Int("max_retries", cfg.Transcription.MaxRetries),
		slog.Int("max_concurrent", cfg.Transcription.MaxConcurrent),
	)

	// Initialize stores and the session orchestrator
	sessions := session.NewStore()
	patients := patient.NewStore()
	orchestrator := session.NewOrchestrator(logger, sessions, patients, gateway,
		transcriptionClient, appMetrics, cfg.Transcription.GetTimeoutDuration())
	logger.Info("Session orchestrator initialized")

	// Initialize authentication
	authSvc := auth.NewService(cfg.Auth.JWTSecret, cfg.Auth.GetTokenTTL())

	// Initialize and start the HTTP API server
	httpServer := server.NewHTTPServer(cfg, logger, sessions, patients,
		orchestrator, authSvc, transcriptionClient, appMetrics)
	if err := httpServer.Start(); err != nil {
		logger.Error("Failed to start HTTP server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	logger.Info("Service started successfully, waiting for signals...",
		slog.String("http_address", fmt.Sprintf("%s:%d", cfg.HTTP.Address, cfg.HTTP.Port)),
	)

	// Wait for shutdown signal
	select {
	case sig := <-sigChan:
		logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
	case <-ctx.Done():
		logger.Info("Context cancelled, shutting down")
	}

	logger.Info("Starting graceful shutdown...")

	// Stop HTTP server first (stop accepting new requests)
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTP.GetShutdownGrace())
	defer shutdownCancel()

	if err := httpServer.Stop(shutdownCtx); err != nil {
		logger.Error("Error stopping HTTP server", slog.String("error", err.Error()))
	}

	// Close the transcription client and storage gateway
	if err := transcriptionClient.Close(); err != nil {
		logger.Error("Error closing transcription client", slog.String("error", err.Error()))
	}
	if err := recognizer.Close(); err != nil {
		logger.Error("Error closing speech recognizer", slog.String("error", err.Error()))
	}
	if err := gateway.Close(); err != nil {
		logger.Error("Error closing storage gateway", slog.String("error", err.Error()))
	}

	// Get final statistics
	stats := transcriptionClient.GetStats()
	counts := sessions.GetCounts()
	logger.Info("Final service statistics",
		slog.Uint64("transcription_requests", stats.TotalRequests),
		slog.Uint64("transcription_failures", stats.FailedRequests),
		slog.Int("sessions_recording", counts.Recording),
		slog.Int("sessions_completed", counts.Completed),
	)

	logger.Info("Service stopped")
}

// initLogger creates and configures the structured logger based on configuration
func initLogger(cfg config.LoggingConfig) *slog.Logger {
	// Parse log level
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo // default fallback
	}

	// Configure handler options
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug, // Add source info for debug level
	}

	// Determine output destination
	var output *os.File
	switch cfg.Output {
	case "stderr":
		output = os.Stderr
	case "stdout", "":
		output = os.Stdout
	default:
		// Assume it's a file path
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file %s: %v, falling back to stdout\n", cfg.Output, err)
			output = os.Stdout
		} else {
			output = file
		}
	}

	// Create handler based on format
	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(output, opts)
	case "text", "":
		handler = slog.NewTextHandler(output, opts)
	default:
		// Default to text format
		handler = slog.NewTextHandler(output, opts)
	}

	return slog.New(handler)
}
