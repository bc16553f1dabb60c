package service

import (
	"context"
	"fmt"
	"io"

	"github.com/timmy/vehicle-catalog/internal/domain"
	"github.com/timmy/vehicle-catalog/internal/pagination"
)

// CatalogService serves the read side: catalog pages and job status.
type CatalogService struct {
	catalog CatalogStore
	jobs    JobStore
	archive SnapshotArchiver
	limits  pagination.Limits
}

// NewCatalogService creates a CatalogService. archive may be nil.
func NewCatalogService(catalog CatalogStore, jobs JobStore, archive SnapshotArchiver, limits pagination.Limits) *CatalogService {
	if limits.DefaultSize <= 0 || limits.MaxSize <= 0 {
		limits = pagination.DefaultLimits()
	}
	return &CatalogService{catalog: catalog, jobs: jobs, archive: archive, limits: limits}
}

// ListCatalog returns up to first makes ordered by make id, after the cursor.
// first <= 0 selects the default page size.
func (s *CatalogService) ListCatalog(ctx context.Context, first int, after string) (pagination.Connection[domain.Make], error) {
	req, err := pagination.NewPageRequest(first, after, s.limits)
	if err != nil {
		return pagination.Connection[domain.Make]{}, err
	}
	return s.catalog.FindAll(ctx, req)
}

// GetMake returns the make with the registry id makeID.
func (s *CatalogService) GetMake(ctx context.Context, makeID int64) (*domain.Make, error) {
	if makeID < 0 {
		return nil, domain.NewValidationError("makeId", "must not be negative")
	}
	return s.catalog.FindByMakeID(ctx, makeID)
}

// GetIngestionStatus returns the snapshot of job jobID.
func (s *CatalogService) GetIngestionStatus(ctx context.Context, jobID string) (*domain.JobSnapshot, error) {
	if !domain.IsValidID(jobID) {
		return nil, domain.NewValidationError("id", "must be a UUID")
	}
	job, err := s.jobs.FindByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	snap := job.Snapshot()
	return &snap, nil
}

// GetCurrentIngestion prefers an IN_PROGRESS job, then the most recent one.
func (s *CatalogService) GetCurrentIngestion(ctx context.Context) (*domain.JobSnapshot, error) {
	active, err := s.jobs.FindByStatus(ctx, domain.JobStatusInProgress)
	if err != nil {
		return nil, err
	}
	if len(active) > 0 {
		snap := active[0].Snapshot()
		return &snap, nil
	}

	job, err := s.jobs.FindLatest(ctx)
	if err != nil {
		return nil, err
	}
	snap := job.Snapshot()
	return &snap, nil
}

// OpenSnapshot streams the archived upstream snapshot of jobID.
func (s *CatalogService) OpenSnapshot(ctx context.Context, jobID string) (io.ReadCloser, error) {
	if !domain.IsValidID(jobID) {
		return nil, domain.NewValidationError("id", "must be a UUID")
	}
	if s.archive == nil {
		return nil, fmt.Errorf("snapshot archive disabled: %w", domain.ErrNotFound)
	}
	return s.archive.Open(ctx, jobID)
}
