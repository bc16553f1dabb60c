package domain

import (
	"math"
	"time"
)

// JobStatus represents the status of an ingestion job.
// Values include JobStatusPending, JobStatusInProgress, JobStatusCompleted,
// JobStatusPartiallyCompleted, and JobStatusFailed.
type JobStatus string

const (
	JobStatusPending            JobStatus = "PENDING"
	JobStatusInProgress         JobStatus = "IN_PROGRESS"
	JobStatusCompleted          JobStatus = "COMPLETED"
	JobStatusPartiallyCompleted JobStatus = "PARTIALLY_COMPLETED"
	JobStatusFailed             JobStatus = "FAILED"
)

// IsTerminal reports whether no further mutation is allowed in this status.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusPartiallyCompleted, JobStatusFailed:
		return true
	default:
		return false
	}
}

// IsActive reports whether a job in this status counts as a running ingestion.
func (s JobStatus) IsActive() bool {
	return s == JobStatusPending || s == JobStatusInProgress
}

// Valid reports whether s is a known status.
func (s JobStatus) Valid() bool {
	return s.IsActive() || s.IsTerminal()
}

// JobError is one entry of a job's append-only error log.
type JobError struct {
	EntityKey  string    `json:"key"`
	Message    string    `json:"message"`
	OccurredAt time.Time `json:"timestamp"`
}

// JobSnapshot is an immutable copy of an ingestion job handed to callers.
type JobSnapshot struct {
	ID             string     `json:"id"`
	Status         JobStatus  `json:"status"`
	StartedAt      time.Time  `json:"startedAt"`
	CompletedAt    *time.Time `json:"completedAt"`
	TotalEntities  int        `json:"totalEntities"`
	ProcessedCount int        `json:"processedCount"`
	FailedCount    int        `json:"failedCount"`
	Errors         []JobError `json:"errors"`
}

// IngestionJob tracks one ingestion run through its state machine.
// Fields are private; all mutation goes through the transition methods.
type IngestionJob struct {
	id             string
	status         JobStatus
	totalEntities  int
	processedCount int
	failedCount    int
	errors         []JobError
	startedAt      time.Time
	completedAt    *time.Time
}

// NewIngestionJob creates a PENDING job started at startedAt.
func NewIngestionJob(id string, startedAt time.Time) *IngestionJob {
	return &IngestionJob{
		id:        id,
		status:    JobStatusPending,
		errors:    []JobError{},
		startedAt: startedAt,
	}
}

// RestoreIngestionJob rebuilds a job from a persisted snapshot.
func RestoreIngestionJob(s JobSnapshot) *IngestionJob {
	job := &IngestionJob{
		id:             s.ID,
		status:         s.Status,
		totalEntities:  s.TotalEntities,
		processedCount: s.ProcessedCount,
		failedCount:    s.FailedCount,
		errors:         append([]JobError{}, s.Errors...),
		startedAt:      s.StartedAt,
	}
	if s.CompletedAt != nil {
		t := *s.CompletedAt
		job.completedAt = &t
	}
	return job
}

func (j *IngestionJob) ID() string { return j.id }
func (j *IngestionJob) Status() JobStatus { return j.status }
func (j *IngestionJob) TotalEntities() int { return j.totalEntities }
func (j *IngestionJob) ProcessedCount() int { return j.processedCount }
func (j *IngestionJob) FailedCount() int { return j.failedCount }
func (j *IngestionJob) StartedAt() time.Time { return j.startedAt }
func (j *IngestionJob) IsTerminal() bool { return j.status.IsTerminal() }

// CompletedAt returns the completion time, if the job is terminal.
func (j *IngestionJob) CompletedAt() *time.Time {
	if j.completedAt == nil {
		return nil
	}
	t := *j.completedAt
	return &t
}

// Errors returns a copy of the error log.
func (j *IngestionJob) Errors() []JobError {
	out := make([]JobError, len(j.errors))
	copy(out, j.errors)
	return out
}

// Start moves a PENDING job to IN_PROGRESS with the given entity total.
func (j *IngestionJob) Start(total int) error {
	if j.status != JobStatusPending {
		return &InvalidTransitionError{Op: "start", From: j.status}
	}
	if total < 0 {
		total = 0
	}
	j.status = JobStatusInProgress
	j.totalEntities = total
	return nil
}

// IncrementProcessed records one successfully fetched entity.
func (j *IngestionJob) IncrementProcessed() error {
	if j.status != JobStatusInProgress {
		return &InvalidTransitionError{Op: "increment processed count of", From: j.status}
	}
	j.processedCount++
	return nil
}

// RecordFailure records one entity that could not be fetched.
func (j *IngestionJob) RecordFailure(key, message string, at time.Time) error {
	if j.status != JobStatusInProgress {
		return &InvalidTransitionError{Op: "record failure on", From: j.status}
	}
	j.errors = append(j.errors, JobError{EntityKey: key, Message: message, OccurredAt: at})
	j.failedCount++
	return nil
}

// Complete resolves an IN_PROGRESS job to COMPLETED, or PARTIALLY_COMPLETED
// when any entity failed.
func (j *IngestionJob) Complete(at time.Time) error {
	if j.status != JobStatusInProgress {
		return &InvalidTransitionError{Op: "complete", From: j.status}
	}
	if j.failedCount == 0 {
		j.status = JobStatusCompleted
	} else {
		j.status = JobStatusPartiallyCompleted
	}
	j.completedAt = &at
	return nil
}

// Fail moves a PENDING or IN_PROGRESS job to FAILED and logs the reason.
func (j *IngestionJob) Fail(reason string, at time.Time) error {
	if !j.status.IsActive() {
		return &InvalidTransitionError{Op: "fail", From: j.status}
	}
	j.status = JobStatusFailed
	j.completedAt = &at
	j.errors = append(j.errors, JobError{EntityKey: "job", Message: reason, OccurredAt: at})
	return nil
}

// ProgressPercent returns round(100 * (processed+failed) / total), or 0 when total is 0.
func (j *IngestionJob) ProgressPercent() int {
	if j.totalEntities == 0 {
		return 0
	}
	done := float64(j.processedCount + j.failedCount)
	return int(math.Round(100 * done / float64(j.totalEntities)))
}

// Duration returns completedAt - startedAt for terminal jobs.
func (j *IngestionJob) Duration() (time.Duration, bool) {
	if !j.status.IsTerminal() || j.completedAt == nil {
		return 0, false
	}
	return j.completedAt.Sub(j.startedAt), true
}

// Snapshot returns a deep copy of the job's current state.
func (j *IngestionJob) Snapshot() JobSnapshot {
	return JobSnapshot{
		ID:             j.id,
		Status:         j.status,
		StartedAt:      j.startedAt,
		CompletedAt:    j.CompletedAt(),
		TotalEntities:  j.totalEntities,
		ProcessedCount: j.processedCount,
		FailedCount:    j.failedCount,
		Errors:         j.Errors(),
	}
}
