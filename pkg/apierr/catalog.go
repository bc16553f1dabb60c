package apierr

import "net/http"

// --- Common ---

func InvalidRequest(message string) *Error {
	return New(CodeInvalidRequest, http.StatusBadRequest, message)
}

func InternalError(cause error) *Error {
	return Wrap(CodeInternalError, http.StatusInternalServerError, "Internal server error", cause)
}

// --- Ingestion ---

func IngestionInProgress(cause error) *Error {
	return Wrap(CodeIngestionInProgress, http.StatusConflict, "An ingestion job is already running", cause)
}

func InvalidJobID() *Error {
	return New(CodeInvalidJobID, http.StatusBadRequest, "Invalid job ID")
}

func JobNotFound() *Error {
	return New(CodeJobNotFound, http.StatusNotFound, "Ingestion job not found")
}

func SnapshotNotFound() *Error {
	return New(CodeSnapshotNotFound, http.StatusNotFound, "Snapshot not found")
}

// --- Catalog ---

func InvalidCursor(cause error) *Error {
	return Wrap(CodeInvalidCursor, http.StatusBadRequest, "Invalid cursor", cause)
}

func InvalidPageSize(message string) *Error {
	return New(CodeInvalidPageSize, http.StatusBadRequest, message)
}

func InvalidMakeID() *Error {
	return New(CodeInvalidMakeID, http.StatusBadRequest, "Invalid make ID")
}

func MakeNotFound() *Error {
	return New(CodeMakeNotFound, http.StatusNotFound, "Make not found")
}
