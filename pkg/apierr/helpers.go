package apierr

import (
	"errors"
	"net/http"

	"github.com/timmy/vehicle-catalog/internal/domain"
)

// IsNotFound reports whether err is or wraps domain.ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, domain.ErrNotFound)
}

// FromError maps a service error onto an API error. Errors that are already
// *Error pass through unchanged.
func FromError(err error) *Error {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}

	var verr *domain.ValidationError
	switch {
	case errors.Is(err, domain.ErrConflict):
		return IngestionInProgress(err)
	case errors.As(err, &verr):
		return Wrap(CodeInvalidRequest, http.StatusBadRequest, verr.Error(), err)
	case errors.Is(err, domain.ErrValidation):
		return Wrap(CodeInvalidRequest, http.StatusBadRequest, "Invalid request", err)
	case IsNotFound(err):
		return Wrap(CodeNotFound, http.StatusNotFound, "Resource not found", err)
	default:
		return InternalError(err)
	}
}
