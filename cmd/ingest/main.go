package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/timmy/vehicle-catalog/internal/app"
	"github.com/timmy/vehicle-catalog/internal/config"
	"github.com/timmy/vehicle-catalog/internal/domain"
	"github.com/timmy/vehicle-catalog/internal/logger"
)

func main() {
	os.Exit(run())
}

func run() int {
	appLogger := logger.New(&logger.Config{
		Level:       "info",
		Format:      "json",
		ServiceName: "vehicle-catalog-ingest",
	})
	logger.SetDefaultLogger(appLogger)
	defer logger.Sync()

	configPath := flag.String("config", "", "Path to config file")
	printSnapshot := flag.Bool("print", true, "Print the final job snapshot as JSON to stdout")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		appLogger.WithError(err).Error("Failed to load config")
		return 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ctx = logger.WithFields(ctx, logger.Fields{
		logger.FieldComponent: "cli",
		logger.FieldTrigger:   "cli",
	})

	a, err := app.New(ctx, cfg)
	if err != nil {
		appLogger.WithError(err).Error("Failed to initialize application")
		return 1
	}
	defer a.Close()

	// The run records itself as FAILED when canceled.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		appLogger.Info("Received shutdown signal, canceling...")
		cancel()
	}()

	snap, err := a.Ingest.Run(ctx)
	if errors.Is(err, domain.ErrConflict) {
		appLogger.Warn("Another ingestion run is in progress")
		return 1
	}
	if err != nil && snap.ID == "" {
		appLogger.WithError(err).Error("Ingestion failed to start")
		return 1
	}

	if *printSnapshot {
		out, _ := json.MarshalIndent(snap, "", "  ")
		fmt.Println(string(out))
	}

	if err != nil {
		appLogger.WithError(err).WithField(logger.FieldJobID, snap.ID).Error("Ingestion finished with error")
		return 1
	}
	if snap.Status == domain.JobStatusFailed {
		return 1
	}
	return 0
}
