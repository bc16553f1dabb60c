// Package events publishes ingestion lifecycle events to the configured bus.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/timmy/vehicle-catalog/internal/domain"
	"github.com/timmy/vehicle-catalog/internal/logger"
)

// Transport delivers an encoded event to a bus.
type Transport interface {
	// Name identifies the transport in logs.
	Name() string
	Send(ctx context.Context, topic string, payload []byte) error
	Close() error
}

// PublishError is returned once every publish attempt for an event failed.
type PublishError struct {
	EventType domain.EventType
	Attempts  int
	Err       error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("publish %s failed after %d attempt(s): %v", e.EventType, e.Attempts, e.Err)
}

func (e *PublishError) Unwrap() error { return e.Err }

// Is lets errors.Is match domain.ErrPublish.
func (e *PublishError) Is(target error) bool {
	return target == domain.ErrPublish
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Dispatcher encodes events and hands them to a Transport.
type Dispatcher struct {
	transport   Transport
	backoffBase time.Duration
	backoffMax  time.Duration
	sleep       SleepFunc
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithBackoff sets the retry delay bounds.
func WithBackoff(base, max time.Duration) Option {
	return func(d *Dispatcher) {
		d.backoffBase = base
		d.backoffMax = max
	}
}

// WithSleep replaces the wait between retries.
func WithSleep(sleep SleepFunc) Option {
	return func(d *Dispatcher) { d.sleep = sleep }
}

// NewDispatcher creates a Dispatcher over transport.
func NewDispatcher(transport Transport, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		transport:   transport,
		backoffBase: 200 * time.Millisecond,
		backoffMax:  5 * time.Second,
		sleep:       sleepContext,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Publish sends event once.
func (d *Dispatcher) Publish(ctx context.Context, event domain.Event) error {
	if err := d.send(ctx, event); err != nil {
		return &PublishError{EventType: event.Type, Attempts: 1, Err: err}
	}
	return nil
}

// PublishWithRetry sends event, retrying up to maxRetries more times.
func (d *Dispatcher) PublishWithRetry(ctx context.Context, event domain.Event, maxRetries int) error {
	if maxRetries < 0 {
		maxRetries = 0
	}

	var lastErr error
	attempts := 0
	for attempt := 1; attempt <= maxRetries+1; attempt++ {
		attempts = attempt
		lastErr = d.send(ctx, event)
		if lastErr == nil {
			return nil
		}
		if attempt == maxRetries+1 {
			break
		}

		delay := d.backoff(attempt)
		logger.With(logger.Fields{
			logger.FieldEventType: string(event.Type),
			logger.FieldAttempt:   attempt,
		}).WithError(lastErr).Warn(ctx, "Publish failed, retrying in %s", delay)

		if err := d.sleep(ctx, delay); err != nil {
			lastErr = err
			break
		}
	}
	return &PublishError{EventType: event.Type, Attempts: attempts, Err: lastErr}
}

// Close releases the transport.
func (d *Dispatcher) Close() error {
	return d.transport.Close()
}

func (d *Dispatcher) send(ctx context.Context, event domain.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := d.transport.Send(ctx, string(event.Type), payload); err != nil {
		return fmt.Errorf("%s: %w", d.transport.Name(), err)
	}
	return nil
}

func (d *Dispatcher) backoff(attempt int) time.Duration {
	delay := d.backoffBase
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= d.backoffMax {
			return d.backoffMax
		}
	}
	if delay > d.backoffMax {
		return d.backoffMax
	}
	return delay
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
