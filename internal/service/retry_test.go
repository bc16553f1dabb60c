package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timmy/vehicle-catalog/internal/domain"
	"github.com/timmy/vehicle-catalog/internal/source"
)

type recordedSleeps struct {
	delays []time.Duration
}

func (r *recordedSleeps) sleep(_ context.Context, d time.Duration) error {
	r.delays = append(r.delays, d)
	return nil
}

func TestRetryPolicy_Backoff(t *testing.T) {
	p := RetryPolicy{BaseDelay: 100 * time.Millisecond, MaxDelay: time.Second}

	assert.Equal(t, 100*time.Millisecond, p.Backoff(1))
	assert.Equal(t, 200*time.Millisecond, p.Backoff(2))
	assert.Equal(t, 400*time.Millisecond, p.Backoff(3))
	assert.Equal(t, 800*time.Millisecond, p.Backoff(4))
	assert.Equal(t, time.Second, p.Backoff(5))
	assert.Equal(t, time.Second, p.Backoff(60))
	assert.Equal(t, p.Backoff(3), p.Backoff(3), "backoff must be deterministic")
}

func TestFetchWithRetry_SucceedsAfterTransientFailures(t *testing.T) {
	sleeps := &recordedSleeps{}
	p := RetryPolicy{MaxAttempts: 3, BaseDelay: 10 * time.Millisecond, Sleep: sleeps.sleep}

	calls := 0
	got, err := FetchWithRetry(context.Background(), p, "7", func(context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", &source.Error{Op: "fetch", StatusCode: 503, Err: errors.New("unavailable")}
		}
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{10 * time.Millisecond, 20 * time.Millisecond}, sleeps.delays)
}

func TestFetchWithRetry_ExhaustsBudget(t *testing.T) {
	sleeps := &recordedSleeps{}
	p := RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, Sleep: sleeps.sleep}
	last := &source.Error{Op: "fetch", StatusCode: 502, Err: errors.New("bad gateway")}

	calls := 0
	_, err := FetchWithRetry(context.Background(), p, "2", func(context.Context) (int, error) {
		calls++
		return 0, last
	})

	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.Len(t, sleeps.delays, 2)

	var exhausted *RetriesExhaustedError
	require.True(t, errors.As(err, &exhausted))
	assert.Equal(t, "2", exhausted.Key)
	assert.Equal(t, 3, exhausted.Attempts)
	assert.Same(t, last, exhausted.Err)
	assert.ErrorIs(t, err, domain.ErrExternalSource)
	assert.Contains(t, err.Error(), "bad gateway")
}

func TestFetchWithRetry_PermanentErrorStopsImmediately(t *testing.T) {
	sleeps := &recordedSleeps{}
	p := RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, Sleep: sleeps.sleep}

	calls := 0
	_, err := FetchWithRetry(context.Background(), p, "9", func(context.Context) (int, error) {
		calls++
		return 0, &source.Error{Op: "fetch", StatusCode: 404, Err: errors.New("missing")}
	})

	var exhausted *RetriesExhaustedError
	require.True(t, errors.As(err, &exhausted))
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, exhausted.Attempts)
	assert.Empty(t, sleeps.delays)
}

func TestFetchWithRetry_ContextCanceledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := RetryPolicy{MaxAttempts: 5, BaseDelay: time.Millisecond, Sleep: func(ctx context.Context, _ time.Duration) error {
		cancel()
		return ctx.Err()
	}}

	calls := 0
	_, err := FetchWithRetry(ctx, p, "1", func(context.Context) (int, error) {
		calls++
		return 0, errors.New("connection reset")
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestSleepContext(t *testing.T) {
	require.NoError(t, sleepContext(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleepContext(ctx, time.Hour), context.Canceled)
}
