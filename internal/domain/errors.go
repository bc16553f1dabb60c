package domain

import (
	"errors"
	"fmt"
)

// Error categories shared across the catalog. Concrete errors wrap one of these
// so callers can branch with errors.Is.
var (
	// ErrConflict is returned when an ingestion run is already active.
	ErrConflict = errors.New("ingestion already in progress")

	// ErrValidation marks malformed caller input (pagination, cursor, ids).
	ErrValidation = errors.New("validation failed")

	// ErrNotFound marks an unknown job or make.
	ErrNotFound = errors.New("not found")

	// ErrInvalidTransition marks an illegal job state transition.
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrExternalSource marks an upstream registry failure.
	ErrExternalSource = errors.New("external source error")

	// ErrTransformation marks a malformed upstream record.
	ErrTransformation = errors.New("transformation error")

	// ErrPersistence marks a store write failure.
	ErrPersistence = errors.New("persistence error")

	// ErrPublish marks an event bus failure.
	ErrPublish = errors.New("publish error")
)

// InvalidTransitionError reports an operation attempted from a state that does not allow it.
type InvalidTransitionError struct {
	Op   string
	From JobStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid state transition: cannot %s job in status %s", e.Op, e.From)
}

// Is lets errors.Is match ErrInvalidTransition.
func (e *InvalidTransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// ValidationError reports which input was rejected.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// Is lets errors.Is match ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// NewValidationError builds a ValidationError for field.
func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}
