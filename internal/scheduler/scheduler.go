// Package scheduler triggers catalog refreshes on a cron schedule.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/timmy/vehicle-catalog/internal/domain"
	"github.com/timmy/vehicle-catalog/internal/logger"
)

// Runner executes one ingestion run.
type Runner interface {
	Run(ctx context.Context) (domain.JobSnapshot, error)
}

// Specs accept an optional seconds field and descriptors such as @daily.
var specParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Scheduler runs the ingestion pipeline on a cron schedule.
type Scheduler struct {
	cron   *cron.Cron
	runner Runner
	spec   string
	ctx    context.Context
	cancel context.CancelFunc
}

// New validates spec and creates a stopped Scheduler.
func New(spec string, runner Runner) (*Scheduler, error) {
	if _, err := specParser.Parse(spec); err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", spec, err)
	}

	cl := cronLogger{}
	s := &Scheduler{
		cron: cron.New(
			cron.WithParser(specParser),
			cron.WithLogger(cl),
			cron.WithChain(
				cron.SkipIfStillRunning(cl),
				cron.Recover(cl),
			),
		),
		runner: runner,
		spec:   spec,
	}
	if _, err := s.cron.AddFunc(spec, s.tick); err != nil {
		return nil, fmt.Errorf("add schedule: %w", err)
	}
	return s, nil
}

// Start begins firing ticks. Runs in flight are canceled by Stop.
func (s *Scheduler) Start(ctx context.Context) {
	s.ctx, s.cancel = context.WithCancel(logger.SetComponent(ctx, "scheduler"))
	s.cron.Start()
	logger.CtxInfo(s.ctx, "Scheduler started with spec %q, next run at %s", s.spec, s.Next().Format(time.RFC3339))
}

// Stop halts the schedule and waits for a running tick to return.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	<-s.cron.Stop().Done()
}

// Next returns the next scheduled run, or the zero time before Start.
func (s *Scheduler) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

func (s *Scheduler) tick() {
	ctx := s.ctx
	if ctx == nil {
		ctx = logger.SetComponent(context.Background(), "scheduler")
	}
	s.runOnce(ctx)
}

func (s *Scheduler) runOnce(ctx context.Context) {
	ctx = logger.WithField(ctx, logger.FieldTrigger, "schedule")
	snap, err := s.runner.Run(ctx)
	switch {
	case errors.Is(err, domain.ErrConflict):
		logger.CtxInfo(ctx, "Scheduled refresh skipped: ingestion already in progress")
	case err != nil && snap.ID == "":
		logger.With(nil).WithError(err).Error(ctx, "Scheduled refresh failed to start")
	case err != nil:
		logger.With(logger.Fields{logger.FieldJobID: snap.ID}).WithError(err).
			WithStatus(string(snap.Status)).Error(ctx, "Scheduled refresh finished with error")
	default:
		logger.With(logger.Fields{logger.FieldJobID: snap.ID}).
			WithStatus(string(snap.Status)).Info(ctx, "Scheduled refresh finished")
	}
}

// cronLogger routes cron's internal logging to the structured logger.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	logger.GetDefault().WithFields(kvFields(keysAndValues)).Debug(msg)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	logger.GetDefault().WithFields(kvFields(keysAndValues)).WithError(err).Error(msg)
}

func kvFields(kv []interface{}) logger.Fields {
	fields := make(logger.Fields, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		fields[fmt.Sprint(kv[i])] = kv[i+1]
	}
	return fields
}
