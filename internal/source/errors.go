package source

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/timmy/vehicle-catalog/internal/domain"
)

// Error is an upstream call failure. StatusCode is 0 when no response was received.
type Error struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: upstream status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is match domain.ErrExternalSource.
func (e *Error) Is(target error) bool {
	return target == domain.ErrExternalSource
}

// Retryable reports whether the call may succeed if repeated: transport
// failures, timeouts, 429 and 5xx. Other statuses and bad payloads are permanent.
func (e *Error) Retryable() bool {
	switch {
	case e.StatusCode == http.StatusTooManyRequests:
		return true
	case e.StatusCode >= 500:
		return true
	case e.StatusCode != 0:
		return false
	}
	if errors.Is(e.Err, ErrMalformedPayload) {
		return false
	}
	return true
}

// ErrMalformedPayload marks a response body that could not be decoded.
var ErrMalformedPayload = errors.New("malformed payload")

// IsRetryable classifies any error returned by a Source. Unknown errors are
// retried unless they are context cancellation from the caller.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var srcErr *Error
	if errors.As(err, &srcErr) {
		return srcErr.Retryable()
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return !errors.Is(err, ErrMalformedPayload)
}
