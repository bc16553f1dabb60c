package source

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/timmy/vehicle-catalog/internal/domain"
)

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"503", &Error{Op: "fetch", StatusCode: 503, Err: errors.New("unavailable")}, true},
		{"500", &Error{Op: "fetch", StatusCode: 500, Err: errors.New("oops")}, true},
		{"429", &Error{Op: "fetch", StatusCode: 429, Err: errors.New("slow down")}, true},
		{"404", &Error{Op: "fetch", StatusCode: 404, Err: errors.New("missing")}, false},
		{"400", &Error{Op: "fetch", StatusCode: 400, Err: errors.New("bad")}, false},
		{"transport", &Error{Op: "fetch", Err: errors.New("connection reset")}, true},
		{"timeout", &Error{Op: "fetch", Err: context.DeadlineExceeded}, true},
		{"malformed", &Error{Op: "fetch", Err: fmt.Errorf("%w: eof", ErrMalformedPayload)}, false},
		{"canceled", fmt.Errorf("wrapped: %w", context.Canceled), false},
		{"unknown", errors.New("whatever"), true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsRetryable(tc.err))
		})
	}
}

func TestErrorMatchesExternalSource(t *testing.T) {
	err := fmt.Errorf("make 7: %w", &Error{Op: "GetVehicleTypesForMakeId", StatusCode: 502, Err: errors.New("bad gateway")})

	assert.ErrorIs(t, err, domain.ErrExternalSource)
	assert.Contains(t, err.Error(), "upstream status 502")
}
