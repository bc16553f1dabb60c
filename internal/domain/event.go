package domain

import "time"

// EventType names a job lifecycle notification.
type EventType string

const (
	EventJobStarted   EventType = "ingestion.job.started"
	EventJobCompleted EventType = "ingestion.job.completed"
	EventJobFailed    EventType = "ingestion.job.failed"
)

// Event is the envelope published on the event bus.
type Event struct {
	ID         string      `json:"id"`
	Type       EventType   `json:"type"`
	OccurredAt time.Time   `json:"occurredAt"`
	Payload    interface{} `json:"payload"`
}

// JobStartedPayload is carried by EventJobStarted.
type JobStartedPayload struct {
	JobID         string `json:"jobId"`
	TotalEntities int    `json:"totalEntities"`
}

// JobCompletedPayload is carried by EventJobCompleted.
type JobCompletedPayload struct {
	JobID          string    `json:"jobId"`
	Status         JobStatus `json:"status"`
	TotalEntities  int       `json:"totalEntities"`
	ProcessedCount int       `json:"processedCount"`
	FailedCount    int       `json:"failedCount"`
	DurationMs     int64     `json:"durationMs"`
}

// JobFailedPayload is carried by EventJobFailed.
type JobFailedPayload struct {
	JobID      string `json:"jobId"`
	Reason     string `json:"reason"`
	DurationMs int64  `json:"durationMs"`
}

// EventFactory builds lifecycle events with ids from an injected generator.
type EventFactory struct {
	ids IDGenerator
	now func() time.Time
}

// NewEventFactory creates an EventFactory. A nil now defaults to time.Now.
func NewEventFactory(ids IDGenerator, now func() time.Time) *EventFactory {
	if now == nil {
		now = time.Now
	}
	return &EventFactory{ids: ids, now: now}
}

// JobStarted builds the started event for job.
func (f *EventFactory) JobStarted(job *IngestionJob) Event {
	return f.build(EventJobStarted, JobStartedPayload{
		JobID:         job.ID(),
		TotalEntities: job.TotalEntities(),
	})
}

// JobCompleted builds the completed event for a COMPLETED or PARTIALLY_COMPLETED job.
func (f *EventFactory) JobCompleted(job *IngestionJob) Event {
	d, _ := job.Duration()
	return f.build(EventJobCompleted, JobCompletedPayload{
		JobID:          job.ID(),
		Status:         job.Status(),
		TotalEntities:  job.TotalEntities(),
		ProcessedCount: job.ProcessedCount(),
		FailedCount:    job.FailedCount(),
		DurationMs:     d.Milliseconds(),
	})
}

// JobFailed builds the failed event for job.
func (f *EventFactory) JobFailed(job *IngestionJob, reason string) Event {
	d, _ := job.Duration()
	return f.build(EventJobFailed, JobFailedPayload{
		JobID:      job.ID(),
		Reason:     reason,
		DurationMs: d.Milliseconds(),
	})
}

func (f *EventFactory) build(t EventType, payload interface{}) Event {
	return Event{
		ID:         f.ids.NewID(),
		Type:       t,
		OccurredAt: f.now(),
		Payload:    payload,
	}
}
