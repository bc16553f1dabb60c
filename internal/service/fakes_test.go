package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/timmy/vehicle-catalog/internal/domain"
	"github.com/timmy/vehicle-catalog/internal/pagination"
	"github.com/timmy/vehicle-catalog/internal/source"
)

var testNow = time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

// tickingClock advances one second per call.
func tickingClock() func() time.Time {
	var mu sync.Mutex
	t := testNow
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now := t
		t = t.Add(time.Second)
		return now
	}
}

func noSleep(context.Context, time.Duration) error { return nil }

type mockSource struct {
	mock.Mock
}

func (m *mockSource) GetSourceID() string { return "mock" }

func (m *mockSource) ListMakes(ctx context.Context) ([]source.MakeRecord, error) {
	args := m.Called(ctx)
	recs, _ := args.Get(0).([]source.MakeRecord)
	return recs, args.Error(1)
}

func (m *mockSource) FetchVehicleTypes(ctx context.Context, makeID int64) ([]source.VehicleTypeRecord, error) {
	args := m.Called(ctx, makeID)
	recs, _ := args.Get(0).([]source.VehicleTypeRecord)
	return recs, args.Error(1)
}

type memJobStore struct {
	mu      sync.Mutex
	jobs    map[string]domain.JobSnapshot
	saves   []domain.JobStatus
	saveErr error
	// failNext fails that many saves with saveErr, then succeeds.
	failNext int
}

func newMemJobStore() *memJobStore {
	return &memJobStore{jobs: make(map[string]domain.JobSnapshot)}
}

func (s *memJobStore) Save(_ context.Context, job *domain.IngestionJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		if s.failNext == 0 {
			return s.saveErr
		}
		if s.failNext > 0 {
			s.failNext--
			if s.failNext == 0 {
				s.saveErr = nil
			}
			return errors.New("transient: " + s.saveErr.Error())
		}
	}
	if job.Status().IsActive() {
		for id, other := range s.jobs {
			if id != job.ID() && other.Status.IsActive() {
				return fmt.Errorf("job %s active: %w", id, domain.ErrConflict)
			}
		}
	}
	s.jobs[job.ID()] = job.Snapshot()
	s.saves = append(s.saves, job.Status())
	return nil
}

func (s *memJobStore) FindByID(_ context.Context, id string) (*domain.IngestionJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.jobs[id]
	if !ok {
		return nil, fmt.Errorf("job %s: %w", id, domain.ErrNotFound)
	}
	return domain.RestoreIngestionJob(snap), nil
}

func (s *memJobStore) sorted() []domain.JobSnapshot {
	out := make([]domain.JobSnapshot, 0, len(s.jobs))
	for _, snap := range s.jobs {
		out = append(out, snap)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return out
}

func (s *memJobStore) FindLatest(_ context.Context) (*domain.IngestionJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := s.sorted()
	if len(all) == 0 {
		return nil, fmt.Errorf("latest job: %w", domain.ErrNotFound)
	}
	return domain.RestoreIngestionJob(all[0]), nil
}

func (s *memJobStore) FindByStatus(_ context.Context, status domain.JobStatus) ([]*domain.IngestionJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.IngestionJob
	for _, snap := range s.sorted() {
		if snap.Status == status {
			out = append(out, domain.RestoreIngestionJob(snap))
		}
	}
	return out, nil
}

func (s *memJobStore) HasRunningJob(_ context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, snap := range s.jobs {
		if snap.Status.IsActive() {
			return true, nil
		}
	}
	return false, nil
}

func (s *memJobStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

type memCatalog struct {
	mu      sync.Mutex
	makes   map[int64]domain.Make
	saveErr error
}

func newMemCatalog() *memCatalog {
	return &memCatalog{makes: make(map[int64]domain.Make)}
}

func (c *memCatalog) SaveMany(_ context.Context, makes []*domain.Make) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.saveErr != nil {
		return c.saveErr
	}
	for _, m := range makes {
		c.makes[m.MakeID] = *m
	}
	return nil
}

func (c *memCatalog) FindByMakeID(_ context.Context, makeID int64) (*domain.Make, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.makes[makeID]
	if !ok {
		return nil, fmt.Errorf("make %d: %w", makeID, domain.ErrNotFound)
	}
	return &m, nil
}

func (c *memCatalog) FindAll(_ context.Context, req pagination.PageRequest) (pagination.Connection[domain.Make], error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	all := make([]domain.Make, 0, len(c.makes))
	for _, m := range c.makes {
		all = append(all, m)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].MakeID < all[j].MakeID })

	var rows []domain.Make
	for _, m := range all {
		if req.HasAfter && m.MakeID <= req.After {
			continue
		}
		if len(rows) == req.First+1 {
			break
		}
		rows = append(rows, m)
	}
	return pagination.BuildConnection(req, rows, func(m domain.Make) int64 { return m.MakeID }, int64(len(all))), nil
}

func (c *memCatalog) Count(_ context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return int64(len(c.makes)), nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.Event
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, event domain.Event) error {
	return p.PublishWithRetry(ctx, event, 0)
}

func (p *recordingPublisher) PublishWithRetry(_ context.Context, event domain.Event, _ int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) types() []domain.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.EventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type memArchive struct {
	snapshots map[string]*RunSnapshot
	err       error
}

func (a *memArchive) Archive(_ context.Context, snapshot *RunSnapshot) error {
	if a.err != nil {
		return a.err
	}
	if a.snapshots == nil {
		a.snapshots = make(map[string]*RunSnapshot)
	}
	a.snapshots[snapshot.JobID] = snapshot
	return nil
}

func (a *memArchive) Open(_ context.Context, jobID string) (io.ReadCloser, error) {
	return nil, errors.New("not used")
}
