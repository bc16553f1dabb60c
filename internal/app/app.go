// Package app wires the catalog components from configuration.
package app

import (
	"context"
	"database/sql"
	"fmt"

	"gorm.io/gorm"

	"github.com/timmy/vehicle-catalog/internal/config"
	"github.com/timmy/vehicle-catalog/internal/events"
	"github.com/timmy/vehicle-catalog/internal/logger"
	"github.com/timmy/vehicle-catalog/internal/pagination"
	"github.com/timmy/vehicle-catalog/internal/repository"
	"github.com/timmy/vehicle-catalog/internal/service"
	"github.com/timmy/vehicle-catalog/internal/source"
	"github.com/timmy/vehicle-catalog/internal/source/staging"
	"github.com/timmy/vehicle-catalog/internal/source/vpic"
	"github.com/timmy/vehicle-catalog/internal/storage"
)

// App holds the wired services shared by the API server and the CLI.
type App struct {
	Config  *config.Config
	DB      *gorm.DB
	SQLDB   *sql.DB
	Ingest  *service.IngestService
	Catalog *service.CatalogService

	dispatcher *events.Dispatcher
}

// New connects every backend named in cfg and builds the services.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("init database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql db: %w", err)
	}

	makeRepo := repository.NewMakeRepository(db, cfg.Ingest.BatchSize)
	jobRepo := repository.NewJobRepository(db)

	transport, err := events.NewTransport(ctx, cfg.Events)
	if err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("init events: %w", err)
	}
	dispatcher := events.NewDispatcher(transport, events.WithBackoff(cfg.Ingest.BackoffBase, cfg.Ingest.BackoffMax))
	logger.CtxInfo(ctx, "Events publish through %s transport", transport.Name())

	var archive service.SnapshotArchiver
	if cfg.Archive.Enabled {
		store, err := storage.NewStorage(ctx, cfg.Archive)
		if err != nil {
			dispatcher.Close()
			sqlDB.Close()
			return nil, fmt.Errorf("init archive: %w", err)
		}
		archive = service.NewObjectSnapshotArchive(store, cfg.Archive.Prefix)
		logger.CtxInfo(ctx, "Snapshot archive enabled: type=%s, bucket=%s", cfg.Archive.Type, cfg.Archive.Bucket)
	}

	src := newSource(cfg.Source)
	logger.CtxInfo(ctx, "Ingesting from source %s", src.GetSourceID())

	var opts []service.IngestOption
	if archive != nil {
		opts = append(opts, service.WithSnapshotArchive(archive))
	}
	ingest := service.NewIngestService(src, makeRepo, jobRepo, dispatcher, &service.IngestConfig{
		Retry: service.RetryPolicy{
			MaxAttempts: cfg.Ingest.MaxAttempts,
			BaseDelay:   cfg.Ingest.BackoffBase,
			MaxDelay:    cfg.Ingest.BackoffMax,
		},
		PublishRetries: cfg.Ingest.PublishRetries,
	}, opts...)

	catalog := service.NewCatalogService(makeRepo, jobRepo, archive, pagination.Limits{
		DefaultSize: cfg.Catalog.DefaultPageSize,
		MaxSize:     cfg.Catalog.MaxPageSize,
	})

	return &App{
		Config:     cfg,
		DB:         db,
		SQLDB:      sqlDB,
		Ingest:     ingest,
		Catalog:    catalog,
		dispatcher: dispatcher,
	}, nil
}

func newSource(cfg config.SourceConfig) source.Source {
	if cfg.Driver == "staging" {
		return staging.NewAdapter(cfg.StagingPath)
	}
	return vpic.NewAdapter(vpic.Config{
		BaseURL:   cfg.BaseURL,
		Timeout:   cfg.Timeout,
		RateLimit: cfg.RateLimit,
		RateBurst: cfg.RateBurst,
		UserAgent: cfg.UserAgent,
	})
}

// Close releases the event transport and the database pool.
func (a *App) Close() {
	if err := a.dispatcher.Close(); err != nil {
		logger.Warn("Failed to close event transport: %v", err)
	}
	if err := a.SQLDB.Close(); err != nil {
		logger.Warn("Failed to close database: %v", err)
	}
}
