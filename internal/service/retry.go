package service

import (
	"context"
	"fmt"
	"time"

	"github.com/timmy/vehicle-catalog/internal/domain"
	"github.com/timmy/vehicle-catalog/internal/logger"
	"github.com/timmy/vehicle-catalog/internal/source"
)

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// RetryPolicy bounds per-entity fetch attempts.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	// Sleep defaults to a timer honoring ctx. Tests inject a no-op.
	Sleep SleepFunc
}

// DefaultRetryPolicy returns 3 attempts with 500ms exponential backoff capped at 10s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, BaseDelay: 500 * time.Millisecond, MaxDelay: 10 * time.Second}
}

// Backoff returns the delay after the given 1-based failed attempt:
// BaseDelay * 2^(attempt-1), capped at MaxDelay.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := p.BaseDelay
	for i := 1; i < attempt; i++ {
		d *= 2
		if p.MaxDelay > 0 && d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

func (p RetryPolicy) sleep(ctx context.Context, d time.Duration) error {
	if p.Sleep != nil {
		return p.Sleep(ctx, d)
	}
	return sleepContext(ctx, d)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// RetriesExhaustedError is returned when an entity fetch gives up.
// Err is the last underlying failure.
type RetriesExhaustedError struct {
	Key      string
	Attempts int
	Err      error
}

func (e *RetriesExhaustedError) Error() string {
	return fmt.Sprintf("fetch %s: retries exhausted after %d attempt(s): %v", e.Key, e.Attempts, e.Err)
}

func (e *RetriesExhaustedError) Unwrap() error { return e.Err }

// Is lets errors.Is match domain.ErrExternalSource.
func (e *RetriesExhaustedError) Is(target error) bool {
	return target == domain.ErrExternalSource
}

// FetchWithRetry calls fetch until it succeeds, the attempt budget is spent,
// or the error is classified permanent by source.IsRetryable.
func FetchWithRetry[T any](ctx context.Context, p RetryPolicy, key string, fetch func(context.Context) (T, error)) (T, error) {
	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var zero T
	var lastErr error
	attempt := 0
	for attempt < maxAttempts {
		attempt++
		out, err := fetch(ctx)
		if err == nil {
			return out, nil
		}
		lastErr = err

		if !source.IsRetryable(err) || attempt == maxAttempts {
			break
		}

		delay := p.Backoff(attempt)
		logger.With(logger.Fields{
			logger.FieldAttempt: attempt,
			"delay_ms":          delay.Milliseconds(),
		}).WithError(err).Warn(ctx, "Fetch of %s failed, retrying", key)

		if err := p.sleep(ctx, delay); err != nil {
			lastErr = err
			break
		}
	}

	return zero, &RetriesExhaustedError{Key: key, Attempts: attempt, Err: lastErr}
}
