package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/merchantlens/merchantlens/internal/config"
	"github.com/merchantlens/merchantlens/internal/logging"
	"github.com/merchantlens/merchantlens/internal/queue"
	"github.com/merchantlens/merchantlens/internal/scanner"
	"github.com/merchantlens/merchantlens/internal/services"
	"github.com/merchantlens/merchantlens/internal/store"
)

var (
	Version   = "dev"     // Injected via ldflags during build
	GitCommit = "unknown" // Injected via ldflags during build
)

func main() {
	configPath := flag.String("config", "", "Path to configuration file")
	once := flag.Bool("once", false, "Run a single scan and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.NewFromConfig(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logging.SetGlobal(logger)
	logger.Info("Anomaly scanner starting...", "version", Version, "commit", GitCommit)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	metricStore, err := store.New(ctx, cfg.Database)
	if err != nil {
		logger.Fatal("Failed to open metric store", "error", err)
	}
	defer func() { _ = metricStore.Close() }()

	svc, err := services.NewAnalyticsService(logger, metricStore, nil, cfg.Analytics)
	if err != nil {
		logger.Fatal("Invalid analytics configuration", "error", err)
	}

	logger.Info("Connecting to Queue", "type", cfg.Queue.Type, "url", cfg.Queue.URL)
	publisher, err := queue.NewPublisher(cfg.Queue)
	if err != nil {
		logger.Fatal("Failed to connect to Queue", "error", err)
	}
	defer func() { _ = publisher.Close() }()

	scanCfg := cfg.Scanner
	scanCfg.Enabled = true
	if err := scanCfg.Validate(); err != nil {
		logger.Fatal("Invalid scanner configuration", "error", err)
	}
	s := scanner.New(logger, svc, metricStore, publisher, nil, scanCfg, cfg.Queue.SubjectPrefix)

	if *once {
		summary, err := s.RunOnce(ctx)
		if err != nil {
			logger.Error("Scan failed", "error", err)
			os.Exit(1)
		}
		logger.Info("Scan finished",
			"merchants", summary.Merchants,
			"failed", summary.Failed,
			"anomalies", summary.Anomalies,
			"published", summary.Published)
		return
	}

	s.Start(ctx)
	<-ctx.Done()

	logger.Info("Shutting down scanner...")
	s.Stop()
	logger.Info("Scanner exited")
}
