package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/timmy/vehicle-catalog/internal/domain"
	"github.com/timmy/vehicle-catalog/internal/source"
)

type ingestFixture struct {
	src       *mockSource
	jobs      *memJobStore
	catalog   *memCatalog
	publisher *recordingPublisher
	archive   *memArchive
	svc       *IngestService
}

func newIngestFixture(t *testing.T) *ingestFixture {
	t.Helper()
	f := &ingestFixture{
		src:       &mockSource{},
		jobs:      newMemJobStore(),
		catalog:   newMemCatalog(),
		publisher: &recordingPublisher{},
		archive:   &memArchive{},
	}
	f.svc = NewIngestService(f.src, f.catalog, f.jobs, f.publisher,
		&IngestConfig{
			Retry:          RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, Sleep: noSleep},
			PublishRetries: 2,
		},
		WithClock(tickingClock()),
		WithSnapshotArchive(f.archive),
	)
	return f
}

func makeIndex(n int) []source.MakeRecord {
	out := make([]source.MakeRecord, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, source.MakeRecord{MakeID: int64(i), Name: fmt.Sprintf("Make %d", i)})
	}
	return out
}

func unavailable() error {
	return &source.Error{Op: "GetVehicleTypesForMakeId", StatusCode: 503, Err: errors.New("service unavailable")}
}

func TestRun_AllEntitiesSucceed(t *testing.T) {
	for _, n := range []int{0, 1, 5} {
		t.Run(fmt.Sprintf("n=%d", n), func(t *testing.T) {
			f := newIngestFixture(t)
			f.src.On("ListMakes", mock.Anything).Return(makeIndex(n), nil)
			f.src.On("FetchVehicleTypes", mock.Anything, mock.Anything).
				Return([]source.VehicleTypeRecord{{TypeID: 2, Name: "Passenger Car"}}, nil)

			snap, err := f.svc.Run(context.Background())
			require.NoError(t, err)

			assert.Equal(t, domain.JobStatusCompleted, snap.Status)
			assert.Equal(t, n, snap.TotalEntities)
			assert.Equal(t, n, snap.ProcessedCount)
			assert.Equal(t, 0, snap.FailedCount)
			assert.Empty(t, snap.Errors)
			require.NotNil(t, snap.CompletedAt)

			count, _ := f.catalog.Count(context.Background())
			assert.Equal(t, int64(n), count)
			assert.Equal(t, []domain.EventType{domain.EventJobStarted, domain.EventJobCompleted}, f.publisher.types())

			stored, err := f.jobs.FindByID(context.Background(), snap.ID)
			require.NoError(t, err)
			assert.Equal(t, domain.JobStatusCompleted, stored.Status())
			assert.Equal(t, []domain.JobStatus{domain.JobStatusPending, domain.JobStatusInProgress, domain.JobStatusCompleted}, f.jobs.saves)
		})
	}
}

func TestRun_PartialFailure(t *testing.T) {
	f := newIngestFixture(t)
	f.src.On("ListMakes", mock.Anything).Return([]source.MakeRecord{
		{MakeID: 1, Name: "Acme"},
		{MakeID: 2, Name: "Zenith"},
	}, nil)
	f.src.On("FetchVehicleTypes", mock.Anything, int64(1)).
		Return([]source.VehicleTypeRecord{{TypeID: 3, Name: "Truck"}}, nil)
	f.src.On("FetchVehicleTypes", mock.Anything, int64(2)).
		Return([]source.VehicleTypeRecord(nil), unavailable())

	snap, err := f.svc.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, domain.JobStatusPartiallyCompleted, snap.Status)
	assert.Equal(t, 2, snap.TotalEntities)
	assert.Equal(t, 1, snap.ProcessedCount)
	assert.Equal(t, 1, snap.FailedCount)
	require.Len(t, snap.Errors, 1)
	assert.Equal(t, "2", snap.Errors[0].EntityKey)
	assert.Contains(t, snap.Errors[0].Message, "service unavailable")
	f.src.AssertNumberOfCalls(t, "FetchVehicleTypes", 4)

	acme, err := f.catalog.FindByMakeID(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, acme.VehicleTypes, 1)
	assert.Equal(t, int64(3), acme.VehicleTypes[0].TypeID)
	_, err = f.catalog.FindByMakeID(context.Background(), 2)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	assert.Equal(t, []domain.EventType{domain.EventJobStarted, domain.EventJobCompleted}, f.publisher.types())
	completed := f.publisher.events[1].Payload.(domain.JobCompletedPayload)
	assert.Equal(t, domain.JobStatusPartiallyCompleted, completed.Status)
	assert.Equal(t, 1, completed.FailedCount)
}

func TestRun_PermanentErrorIsNotRetried(t *testing.T) {
	f := newIngestFixture(t)
	f.src.On("ListMakes", mock.Anything).Return(makeIndex(1), nil)
	f.src.On("FetchVehicleTypes", mock.Anything, int64(1)).
		Return([]source.VehicleTypeRecord(nil), &source.Error{Op: "fetch", StatusCode: 404, Err: errors.New("no such make")})

	snap, err := f.svc.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, domain.JobStatusPartiallyCompleted, snap.Status)
	assert.Equal(t, 1, snap.FailedCount)
	f.src.AssertNumberOfCalls(t, "FetchVehicleTypes", 1)
}

func TestRun_ConflictWhenJobRunning(t *testing.T) {
	f := newIngestFixture(t)
	running := domain.NewIngestionJob("11111111-1111-1111-1111-111111111111", testNow)
	require.NoError(t, running.Start(10))
	require.NoError(t, f.jobs.Save(context.Background(), running))

	_, err := f.svc.Run(context.Background())

	assert.ErrorIs(t, err, domain.ErrConflict)
	assert.Equal(t, 1, f.jobs.count(), "no job may be created on conflict")
	f.src.AssertNotCalled(t, "ListMakes", mock.Anything)
	assert.Empty(t, f.publisher.types())
}

func TestRun_ConflictFromStoreConstraint(t *testing.T) {
	f := newIngestFixture(t)
	f.jobs.saveErr = fmt.Errorf("unique active slot: %w", domain.ErrConflict)

	_, err := f.svc.Run(context.Background())

	assert.ErrorIs(t, err, domain.ErrConflict)
	f.src.AssertNotCalled(t, "ListMakes", mock.Anything)
}

func TestRun_ConcurrentRunsInProcess(t *testing.T) {
	f := newIngestFixture(t)
	entered := make(chan struct{})
	release := make(chan struct{})
	f.src.On("ListMakes", mock.Anything).Run(func(mock.Arguments) {
		close(entered)
		<-release
	}).Return(makeIndex(0), nil)

	done := make(chan domain.JobSnapshot)
	go func() {
		snap, _ := f.svc.Run(context.Background())
		done <- snap
	}()

	<-entered
	_, err := f.svc.Run(context.Background())
	assert.ErrorIs(t, err, domain.ErrConflict)

	close(release)
	snap := <-done
	assert.Equal(t, domain.JobStatusCompleted, snap.Status)
	assert.Equal(t, 1, f.jobs.count())
}

func TestRun_IndexFetchFails(t *testing.T) {
	f := newIngestFixture(t)
	f.src.On("ListMakes", mock.Anything).Return([]source.MakeRecord(nil), unavailable())

	snap, err := f.svc.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, domain.JobStatusFailed, snap.Status)
	assert.Equal(t, 0, snap.TotalEntities)
	assert.Equal(t, 0, snap.ProcessedCount)
	assert.Equal(t, 0, snap.FailedCount)
	require.Len(t, snap.Errors, 1)
	assert.Contains(t, snap.Errors[0].Message, "fetch index")
	f.src.AssertNumberOfCalls(t, "ListMakes", 1)
	f.src.AssertNotCalled(t, "FetchVehicleTypes", mock.Anything, mock.Anything)

	assert.Equal(t, []domain.EventType{domain.EventJobFailed}, f.publisher.types())
	running, _ := f.jobs.HasRunningJob(context.Background())
	assert.False(t, running)
}

func TestRun_BulkPersistFails(t *testing.T) {
	f := newIngestFixture(t)
	f.catalog.saveErr = errors.New("disk full")
	f.src.On("ListMakes", mock.Anything).Return(makeIndex(5), nil)
	f.src.On("FetchVehicleTypes", mock.Anything, mock.Anything).
		Return([]source.VehicleTypeRecord{{TypeID: 1, Name: "Bus"}}, nil)

	snap, err := f.svc.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, domain.JobStatusFailed, snap.Status)
	assert.Equal(t, 5, snap.ProcessedCount)
	assert.Equal(t, 0, snap.FailedCount)
	require.Len(t, snap.Errors, 1)
	assert.Contains(t, snap.Errors[0].Message, "disk full")
	assert.Equal(t, []domain.EventType{domain.EventJobStarted, domain.EventJobFailed}, f.publisher.types())
}

func TestRun_PublishFailureDoesNotFailRun(t *testing.T) {
	f := newIngestFixture(t)
	f.publisher.err = fmt.Errorf("%w: broker down", domain.ErrPublish)
	f.src.On("ListMakes", mock.Anything).Return(makeIndex(2), nil)
	f.src.On("FetchVehicleTypes", mock.Anything, mock.Anything).
		Return([]source.VehicleTypeRecord{}, nil)

	snap, err := f.svc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusCompleted, snap.Status)
}

func TestRun_ArchivesSnapshot(t *testing.T) {
	f := newIngestFixture(t)
	f.src.On("ListMakes", mock.Anything).Return(makeIndex(2), nil)
	f.src.On("FetchVehicleTypes", mock.Anything, int64(1)).
		Return([]source.VehicleTypeRecord{{TypeID: 9, Name: "Motorcycle"}}, nil)
	f.src.On("FetchVehicleTypes", mock.Anything, int64(2)).
		Return([]source.VehicleTypeRecord(nil), unavailable())

	snap, err := f.svc.Run(context.Background())
	require.NoError(t, err)

	archived := f.archive.snapshots[snap.ID]
	require.NotNil(t, archived)
	require.Len(t, archived.Index, 2)
	assert.True(t, archived.Index[0].Fetched)
	assert.Equal(t, int64(9), archived.Index[0].VehicleTypes[0].TypeID)
	assert.False(t, archived.Index[1].Fetched)
	require.Len(t, archived.Failures, 1)
	assert.Equal(t, "2", archived.Failures[0].EntityKey)
}

func TestRun_ArchiveFailureIsBestEffort(t *testing.T) {
	f := newIngestFixture(t)
	f.archive.err = errors.New("bucket missing")
	f.src.On("ListMakes", mock.Anything).Return(makeIndex(1), nil)
	f.src.On("FetchVehicleTypes", mock.Anything, mock.Anything).
		Return([]source.VehicleTypeRecord{}, nil)

	snap, err := f.svc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusCompleted, snap.Status)
}

func TestRun_CanceledContextFailsJob(t *testing.T) {
	f := newIngestFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	f.src.On("ListMakes", mock.Anything).Return(makeIndex(3), nil)
	f.src.On("FetchVehicleTypes", mock.Anything, int64(1)).Run(func(mock.Arguments) {
		cancel()
	}).Return([]source.VehicleTypeRecord{}, nil)

	snap, err := f.svc.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, domain.JobStatusFailed, snap.Status)
	assert.Equal(t, 1, snap.ProcessedCount)
	running, _ := f.jobs.HasRunningJob(context.Background())
	assert.False(t, running, "a canceled run must not leave an active job behind")
}

func TestRun_TerminalSaveFailureIsReported(t *testing.T) {
	f := newIngestFixture(t)
	f.src.On("ListMakes", mock.Anything).Return(makeIndex(1), nil).Run(func(mock.Arguments) {
		f.jobs.mu.Lock()
		f.jobs.saveErr = errors.New("db gone")
		f.jobs.mu.Unlock()
	})
	f.src.On("FetchVehicleTypes", mock.Anything, mock.Anything).
		Return([]source.VehicleTypeRecord{}, nil)

	snap, err := f.svc.Run(context.Background())

	assert.ErrorIs(t, err, domain.ErrPersistence)
	assert.Equal(t, domain.JobStatusCompleted, snap.Status)
}

func TestRun_TerminalSaveRetriesTransientFailure(t *testing.T) {
	f := newIngestFixture(t)
	f.src.On("ListMakes", mock.Anything).Return(makeIndex(2), nil)
	f.src.On("FetchVehicleTypes", mock.Anything, mock.Anything).
		Return([]source.VehicleTypeRecord{}, nil).
		Run(func(mock.Arguments) {
			f.jobs.mu.Lock()
			f.jobs.saveErr = errors.New("database is locked")
			f.jobs.failNext = 2
			f.jobs.mu.Unlock()
		})

	snap, err := f.svc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusCompleted, snap.Status)

	stored, err := f.jobs.FindByID(context.Background(), snap.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusCompleted, stored.Status())

	running, err := f.jobs.HasRunningJob(context.Background())
	require.NoError(t, err)
	assert.False(t, running)
}
