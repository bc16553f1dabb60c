package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/timmy/vehicle-catalog/internal/domain"
	"github.com/timmy/vehicle-catalog/internal/logger"
	"github.com/timmy/vehicle-catalog/internal/source"
)

// IngestService runs the catalog ingestion pipeline. At most one run is
// admitted at a time.
type IngestService struct {
	source         source.Source
	catalog        CatalogStore
	jobs           JobStore
	publisher      EventPublisher
	archive        SnapshotArchiver
	transformer    *Transformer
	events         *domain.EventFactory
	ids            domain.IDGenerator
	now            func() time.Time
	retry          RetryPolicy
	publishRetries int

	// running guards admission inside this process; the job store guards
	// it across processes.
	running atomic.Bool
}

// IngestConfig holds configuration for the ingest service.
type IngestConfig struct {
	Retry          RetryPolicy
	PublishRetries int
}

// IngestOption customizes an IngestService.
type IngestOption func(*IngestService)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) IngestOption {
	return func(s *IngestService) { s.now = now }
}

// WithIDGenerator replaces the UUID generator used for jobs, makes and events.
func WithIDGenerator(ids domain.IDGenerator) IngestOption {
	return func(s *IngestService) { s.ids = ids }
}

// WithSnapshotArchive enables archival of upstream records per run.
func WithSnapshotArchive(a SnapshotArchiver) IngestOption {
	return func(s *IngestService) { s.archive = a }
}

// NewIngestService creates a new ingest service.
func NewIngestService(
	src source.Source,
	catalog CatalogStore,
	jobs JobStore,
	publisher EventPublisher,
	cfg *IngestConfig,
	opts ...IngestOption,
) *IngestService {
	if cfg == nil {
		cfg = &IngestConfig{Retry: DefaultRetryPolicy(), PublishRetries: 3}
	}
	s := &IngestService{
		source:         src,
		catalog:        catalog,
		jobs:           jobs,
		publisher:      publisher,
		ids:            domain.UUIDGenerator{},
		now:            time.Now,
		retry:          cfg.Retry,
		publishRetries: cfg.PublishRetries,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.transformer = NewTransformer(s.ids)
	s.events = domain.NewEventFactory(s.ids, s.now)
	return s
}

// Run executes one ingestion of the whole upstream dataset and returns the
// final job snapshot. A run that ends FAILED or PARTIALLY_COMPLETED is not an
// error. Run returns an error matching domain.ErrConflict, without creating
// a job, when another run is active.
func (s *IngestService) Run(ctx context.Context) (domain.JobSnapshot, error) {
	if !s.running.CompareAndSwap(false, true) {
		return domain.JobSnapshot{}, fmt.Errorf("admit run: %w", domain.ErrConflict)
	}
	defer s.running.Store(false)

	ctx = logger.SetComponent(ctx, "ingest")

	running, err := s.jobs.HasRunningJob(ctx)
	if err != nil {
		return domain.JobSnapshot{}, fmt.Errorf("%w: check running job: %v", domain.ErrPersistence, err)
	}
	if running {
		logger.CtxInfo(ctx, "Ingestion rejected: a job is already running")
		return domain.JobSnapshot{}, fmt.Errorf("admit run: %w", domain.ErrConflict)
	}

	job := domain.NewIngestionJob(s.ids.NewID(), s.now())
	if err := s.jobs.Save(ctx, job); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return domain.JobSnapshot{}, fmt.Errorf("admit run: %w", err)
		}
		return domain.JobSnapshot{}, fmt.Errorf("%w: create job: %v", domain.ErrPersistence, err)
	}

	ctx = logger.SetJobID(ctx, job.ID())
	logger.CtxInfo(ctx, "Ingestion admitted")

	return s.execute(ctx, job)
}

// execute drives job from PENDING to a terminal state. Terminal bookkeeping
// runs on a context detached from ctx cancellation so the job never stays active.
func (s *IngestService) execute(ctx context.Context, job *domain.IngestionJob) (domain.JobSnapshot, error) {
	bookkeeping := context.WithoutCancel(ctx)

	index, err := s.source.ListMakes(ctx)
	if err != nil {
		logger.FromContext(ctx).WithError(err).Error("Failed to fetch make index")
		return s.fail(bookkeeping, job, fmt.Sprintf("fetch index: %v", err))
	}

	logger.With(logger.Fields{logger.FieldCount: len(index)}).Info(ctx, "Fetched make index")

	if err := job.Start(len(index)); err != nil {
		return job.Snapshot(), err
	}
	s.saveJob(bookkeeping, job)
	s.publish(bookkeeping, s.events.JobStarted(job))

	fetched, snapshot, err := s.fetchAll(ctx, job, index)
	if err != nil {
		return job.Snapshot(), err
	}
	if err := ctx.Err(); err != nil {
		return s.fail(bookkeeping, job, fmt.Sprintf("run canceled: %v", err))
	}

	s.archiveSnapshot(bookkeeping, snapshot, job)

	makes, rejects := s.transformer.Transform(fetched, s.now())
	for _, r := range rejects {
		logger.FromContext(ctx).WithFields(logger.Fields{"key": r.Key}).WithError(r.Err).Warn("Skipping malformed upstream record")
	}

	if err := s.catalog.SaveMany(ctx, makes); err != nil {
		logger.With(logger.Fields{logger.FieldCount: len(makes)}).WithError(err).Error(ctx, "Failed to persist catalog")
		return s.fail(bookkeeping, job, fmt.Sprintf("persist catalog: %v", err))
	}

	if err := job.Complete(s.now()); err != nil {
		return job.Snapshot(), err
	}
	saveErr := s.saveTerminal(bookkeeping, job)
	s.publish(bookkeeping, s.events.JobCompleted(job))
	s.logSummary(ctx, job)

	return job.Snapshot(), saveErr
}

// fetchAll fetches vehicle types for every index entry in order, recording
// exactly one outcome per entry on job. An error is a state machine violation.
func (s *IngestService) fetchAll(ctx context.Context, job *domain.IngestionJob, index []source.MakeRecord) ([]FetchedMake, *RunSnapshot, error) {
	fetched := make([]FetchedMake, 0, len(index))
	snapshot := &RunSnapshot{JobID: job.ID(), Index: make([]ArchivedMake, 0, len(index))}

	for _, rec := range index {
		if ctx.Err() != nil {
			break
		}

		key := entityKey(rec.MakeID)
		entityCtx := logger.SetMakeID(ctx, rec.MakeID)
		entry := ArchivedMake{MakeID: rec.MakeID, Name: rec.Name}

		types, err := FetchWithRetry(entityCtx, s.retry, key, func(ctx context.Context) ([]source.VehicleTypeRecord, error) {
			return s.source.FetchVehicleTypes(ctx, rec.MakeID)
		})
		if err != nil {
			logger.FromContext(entityCtx).WithError(err).Error("Giving up on make")
			if rerr := job.RecordFailure(key, err.Error(), s.now()); rerr != nil {
				return nil, nil, rerr
			}
		} else {
			if ierr := job.IncrementProcessed(); ierr != nil {
				return nil, nil, ierr
			}
			fetched = append(fetched, FetchedMake{Make: rec, Types: types})
			entry.Fetched = true
			entry.VehicleTypes = types
		}
		snapshot.Index = append(snapshot.Index, entry)
	}

	snapshot.CapturedAt = s.now()
	snapshot.Failures = job.Errors()
	return fetched, snapshot, nil
}

// fail moves job to FAILED, persists it and publishes the failed event.
func (s *IngestService) fail(ctx context.Context, job *domain.IngestionJob, reason string) (domain.JobSnapshot, error) {
	if err := job.Fail(reason, s.now()); err != nil {
		return job.Snapshot(), err
	}
	saveErr := s.saveTerminal(ctx, job)
	s.publish(ctx, s.events.JobFailed(job, reason))
	s.logSummary(ctx, job)
	return job.Snapshot(), saveErr
}

// saveJob persists job. Failures are logged; the error is returned so the
// terminal save can be surfaced to the caller.
func (s *IngestService) saveJob(ctx context.Context, job *domain.IngestionJob) error {
	if err := s.jobs.Save(ctx, job); err != nil {
		logger.With(logger.Fields{logger.FieldStatus: string(job.Status())}).WithError(err).Error(ctx, "Failed to save job")
		return fmt.Errorf("%w: save job %s: %v", domain.ErrPersistence, job.ID(), err)
	}
	return nil
}

// saveTerminal persists a job in its terminal state, retrying with the fetch
// backoff. A job left active in the store blocks every later run.
func (s *IngestService) saveTerminal(ctx context.Context, job *domain.IngestionJob) error {
	attempts := s.retry.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = s.saveJob(ctx, job); err == nil {
			return nil
		}
		if attempt == attempts {
			break
		}
		if serr := s.retry.sleep(ctx, s.retry.Backoff(attempt)); serr != nil {
			break
		}
	}
	return err
}

// publish sends event with bounded retry. Failures never fail the run.
func (s *IngestService) publish(ctx context.Context, event domain.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishWithRetry(ctx, event, s.publishRetries); err != nil {
		logger.With(logger.Fields{logger.FieldEventType: string(event.Type)}).WithError(err).Warn(ctx, "Failed to publish event")
	}
}

func (s *IngestService) archiveSnapshot(ctx context.Context, snapshot *RunSnapshot, job *domain.IngestionJob) {
	if s.archive == nil {
		return
	}
	if err := s.archive.Archive(ctx, snapshot); err != nil {
		logger.FromContext(ctx).WithError(err).Warn("Failed to archive upstream snapshot")
		return
	}
	logger.With(logger.Fields{logger.FieldCount: len(snapshot.Index)}).Debug(ctx, "Archived upstream snapshot for job %s", job.ID())
}

func (s *IngestService) logSummary(ctx context.Context, job *domain.IngestionJob) {
	d, _ := job.Duration()
	logger.With(logger.Fields{
		"total":     job.TotalEntities(),
		"processed": job.ProcessedCount(),
		"failed":    job.FailedCount(),
	}).WithStatus(string(job.Status())).WithDuration(d).Info(ctx, "Ingestion finished")
}

func entityKey(makeID int64) string {
	return strconv.FormatInt(makeID, 10)
}
