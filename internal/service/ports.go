package service

import (
	"context"
	"io"

	"github.com/timmy/vehicle-catalog/internal/domain"
	"github.com/timmy/vehicle-catalog/internal/pagination"
)

// CatalogStore persists Make aggregates.
type CatalogStore interface {
	// SaveMany upserts makes on their natural key.
	SaveMany(ctx context.Context, makes []*domain.Make) error
	// FindByMakeID returns domain.ErrNotFound for an unknown make.
	FindByMakeID(ctx context.Context, makeID int64) (*domain.Make, error)
	FindAll(ctx context.Context, req pagination.PageRequest) (pagination.Connection[domain.Make], error)
	Count(ctx context.Context) (int64, error)
}

// JobStore persists ingestion jobs.
type JobStore interface {
	// Save inserts or updates job. Saving a second active job returns
	// an error matching domain.ErrConflict.
	Save(ctx context.Context, job *domain.IngestionJob) error
	// FindByID returns domain.ErrNotFound for an unknown id.
	FindByID(ctx context.Context, id string) (*domain.IngestionJob, error)
	// FindLatest returns the most recently started job, or domain.ErrNotFound.
	FindLatest(ctx context.Context) (*domain.IngestionJob, error)
	// FindByStatus returns jobs in status, most recent first.
	FindByStatus(ctx context.Context, status domain.JobStatus) ([]*domain.IngestionJob, error)
	// HasRunningJob reports whether any job is PENDING or IN_PROGRESS.
	HasRunningJob(ctx context.Context) (bool, error)
}

// EventPublisher publishes lifecycle events.
type EventPublisher interface {
	Publish(ctx context.Context, event domain.Event) error
	PublishWithRetry(ctx context.Context, event domain.Event, maxRetries int) error
}

// SnapshotArchiver stores the raw upstream records of a run.
type SnapshotArchiver interface {
	Archive(ctx context.Context, snapshot *RunSnapshot) error
	// Open returns domain.ErrNotFound when no snapshot exists for jobID.
	Open(ctx context.Context, jobID string) (io.ReadCloser, error)
}
