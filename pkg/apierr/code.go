package apierr

// Code is a machine-readable error code returned in API responses.
type Code string

// Common errors.
const (
	CodeInvalidRequest Code = "INVALID_REQUEST"
	CodeNotFound       Code = "NOT_FOUND"
	CodeInternalError  Code = "INTERNAL_ERROR"
)

// Ingestion errors.
const (
	CodeIngestionInProgress Code = "INGESTION_IN_PROGRESS"
	CodeInvalidJobID        Code = "INVALID_JOB_ID"
	CodeJobNotFound         Code = "JOB_NOT_FOUND"
	CodeSnapshotNotFound    Code = "SNAPSHOT_NOT_FOUND"
)

// Catalog errors.
const (
	CodeInvalidCursor   Code = "INVALID_CURSOR"
	CodeInvalidPageSize Code = "INVALID_PAGE_SIZE"
	CodeInvalidMakeID   Code = "INVALID_MAKE_ID"
	CodeMakeNotFound    Code = "MAKE_NOT_FOUND"
)
