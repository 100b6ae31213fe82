package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/merchantlens/merchantlens/internal/config"
	"github.com/merchantlens/merchantlens/internal/logging"
	"github.com/merchantlens/merchantlens/internal/metrics"
	"github.com/merchantlens/merchantlens/internal/queue"
	"github.com/merchantlens/merchantlens/internal/router"
	"github.com/merchantlens/merchantlens/internal/scanner"
	"github.com/merchantlens/merchantlens/internal/services"
	"github.com/merchantlens/merchantlens/internal/store"
)

var (
	Version   = "dev"     // Injected via ldflags during build
	GitCommit = "unknown" // Injected via ldflags during build
	BuildTime = "unknown" // Injected via ldflags during build
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "", "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Setup logger
	logger, err := logging.NewFromConfig(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logging.SetGlobal(logger)
	logger.Info("Analytics server starting...",
		"version", Version, "commit", GitCommit, "build time", BuildTime)

	// Create context for background services
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Open the daily metrics store
	logger.Info("Opening metric store", "type", cfg.Database.Type)
	metricStore, err := store.New(ctx, cfg.Database)
	if err != nil {
		logger.Fatal("Failed to open metric store", "error", err)
	}
	defer func() { _ = metricStore.Close() }()

	var recorder *metrics.Recorder
	if cfg.Metrics.Enabled {
		recorder = metrics.New()
	}

	svc, err := services.NewAnalyticsService(logger, metricStore, recorder, cfg.Analytics)
	if err != nil {
		logger.Fatal("Invalid analytics configuration", "error", err)
	}

	// Initialize router
	app, h := router.New(logger, svc, recorder, *cfg)
	if pinger, ok := metricStore.(interface{ Ping(context.Context) error }); ok {
		h.AddHealthCheck("database", pinger.Ping)
	}

	// The scanner can run in-process; cmd/services/scanner runs it standalone
	var anomalyScanner *scanner.Scanner
	if cfg.Scanner.Enabled {
		logger.Info("Connecting to Queue", "type", cfg.Queue.Type, "url", cfg.Queue.URL)
		publisher, err := queue.NewPublisher(cfg.Queue)
		if err != nil {
			logger.Fatal("Failed to connect to Queue", "error", err)
		}
		defer func() { _ = publisher.Close() }()

		anomalyScanner = scanner.New(logger, svc, metricStore, publisher, recorder, cfg.Scanner, cfg.Queue.SubjectPrefix)
		anomalyScanner.Start(ctx)
	}

	// Start server in goroutine
	go func() {
		addr := cfg.Server.ServerAddress()
		logger.Info("Server listening", "address", addr)
		if err := app.Listen(addr); err != nil {
			logger.Fatal("Failed to start server", "error", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	if anomalyScanner != nil {
		anomalyScanner.Stop()
	}

	timeout := cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	logger.Info("Server exited")
}
