package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"portfolio-tracker-go/internal/config"
	"portfolio-tracker-go/internal/database"
	"portfolio-tracker-go/internal/exchange"
	"portfolio-tracker-go/internal/logger"
	"portfolio-tracker-go/internal/notify"
	"portfolio-tracker-go/internal/tracker"

	"go.uber.org/zap"
)

func main() {
	// Load application configuration
	cfg, err := config.LoadConfig("./configs")
	if err != nil {
		fmt.Fprintf(os.Stderr, "could not load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.NewLogger(cfg.Logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "could not initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	log.Info("Configuration loaded")

	// Initialize database
	db, err := database.NewDatabase(cfg.Database.DSN)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	log.Info("Database connection successful and schema migrated.")

	// Build one gateway per platform that has credentials; the rest are
	// skipped for the whole run.
	gateways := make(map[string]exchange.Gateway)
	for name, platform := range cfg.Platforms {
		if !platform.HasCredentials() {
			log.Warn("Platform has no API credentials, skipping", zap.String("platform", name))
			continue
		}
		gateways[name] = exchange.NewRestGateway(name, platform, log)
	}
	if len(gateways) == 0 {
		log.Fatal("No platform with credentials configured, nothing to track")
	}

	notifier := notify.NewNotifier(cfg.Notify.WebhookURL, log)

	// Setup context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		sigchan := make(chan os.Signal, 1)
		signal.Notify(sigchan, syscall.SIGINT, syscall.SIGTERM)
		<-sigchan
		log.Info("Shutdown signal received, gracefully shutting down...")
		cancel()
	}()

	// Initialize and run the tracking engine
	engine := tracker.NewEngine(log, &cfg, db, gateways, notifier)
	engine.Run(ctx)

	log.Info("Tracker has been shut down.")
}
