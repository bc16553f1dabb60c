package repository

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/timmy/vehicle-catalog/internal/domain"
)

// activeSlotValue occupies the unique active_slot column while a job is
// PENDING or IN_PROGRESS. Terminal jobs store NULL, which the index ignores.
const activeSlotValue = "active"

// jobErrorList stores a job's error log as a JSON column.
type jobErrorList []domain.JobError

func (l jobErrorList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (l *jobErrorList) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*l = jobErrorList{}
		return nil
	case []byte:
		return json.Unmarshal(v, l)
	case string:
		return json.Unmarshal([]byte(v), l)
	default:
		return fmt.Errorf("failed to scan jobErrorList from %T", value)
	}
}

type jobRecord struct {
	ID             string       `gorm:"type:text;primaryKey"`
	Status         string       `gorm:"type:text;not null;index:idx_ingestion_jobs_status"`
	ActiveSlot     *string      `gorm:"type:text;uniqueIndex:idx_ingestion_jobs_active_slot"`
	TotalEntities  int          `gorm:"not null"`
	ProcessedCount int          `gorm:"not null"`
	FailedCount    int          `gorm:"not null"`
	Errors         jobErrorList `gorm:"type:text"`
	StartedAt      time.Time    `gorm:"not null;index:idx_ingestion_jobs_started_at"`
	CompletedAt    *time.Time
	UpdatedAt      time.Time
}

func (jobRecord) TableName() string {
	return "ingestion_jobs"
}

func toJobRecord(job *domain.IngestionJob) *jobRecord {
	snap := job.Snapshot()
	rec := &jobRecord{
		ID:             snap.ID,
		Status:         string(snap.Status),
		TotalEntities:  snap.TotalEntities,
		ProcessedCount: snap.ProcessedCount,
		FailedCount:    snap.FailedCount,
		Errors:         jobErrorList(snap.Errors),
		StartedAt:      snap.StartedAt,
		CompletedAt:    snap.CompletedAt,
	}
	if snap.Status.IsActive() {
		slot := activeSlotValue
		rec.ActiveSlot = &slot
	}
	return rec
}

// toDomain rejects rows whose status is not a known job status.
func (r *jobRecord) toDomain() (*domain.IngestionJob, error) {
	status := domain.JobStatus(r.Status)
	if !status.Valid() {
		return nil, fmt.Errorf("job %s has unknown status %q", r.ID, r.Status)
	}
	errs := []domain.JobError(r.Errors)
	if errs == nil {
		errs = []domain.JobError{}
	}
	return domain.RestoreIngestionJob(domain.JobSnapshot{
		ID:             r.ID,
		Status:         status,
		StartedAt:      r.StartedAt,
		CompletedAt:    r.CompletedAt,
		TotalEntities:  r.TotalEntities,
		ProcessedCount: r.ProcessedCount,
		FailedCount:    r.FailedCount,
		Errors:         errs,
	}), nil
}

// JobRepository is the gorm-backed ingestion job store.
type JobRepository struct {
	db *gorm.DB
}

// NewJobRepository creates a JobRepository.
func NewJobRepository(db *gorm.DB) *JobRepository {
	return &JobRepository{db: db}
}

// Save upserts job by id. Saving an active job while a different job holds
// the active slot returns an error matching domain.ErrConflict.
func (r *JobRepository) Save(ctx context.Context, job *domain.IngestionJob) error {
	rec := toJobRecord(job)
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(rec).Error
	if err == nil {
		return nil
	}
	if isUniqueViolation(err) {
		return fmt.Errorf("save job %s: %w", job.ID(), domain.ErrConflict)
	}
	return fmt.Errorf("save job %s: %w", job.ID(), err)
}

// FindByID returns the job with id.
func (r *JobRepository) FindByID(ctx context.Context, id string) (*domain.IngestionJob, error) {
	var rec jobRecord
	err := r.db.WithContext(ctx).First(&rec, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("job %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return rec.toDomain()
}

// FindLatest returns the most recently started job.
func (r *JobRepository) FindLatest(ctx context.Context) (*domain.IngestionJob, error) {
	var rec jobRecord
	err := r.db.WithContext(ctx).Order("started_at DESC").First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("latest job: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return rec.toDomain()
}

// FindByStatus returns jobs in status, most recently started first.
func (r *JobRepository) FindByStatus(ctx context.Context, status domain.JobStatus) ([]*domain.IngestionJob, error) {
	var recs []jobRecord
	if err := r.db.WithContext(ctx).Where("status = ?", string(status)).Order("started_at DESC").Find(&recs).Error; err != nil {
		return nil, err
	}
	jobs := make([]*domain.IngestionJob, 0, len(recs))
	for i := range recs {
		job, err := recs[i].toDomain()
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// HasRunningJob reports whether a job is PENDING or IN_PROGRESS.
func (r *JobRepository) HasRunningJob(ctx context.Context) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&jobRecord{}).
		Where("status IN ?", []string{string(domain.JobStatusPending), string(domain.JobStatusInProgress)}).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "duplicate key value")
}
