// Package apierr defines the errors the catalog API returns: a stable code
// such as JOB_NOT_FOUND or INVALID_CURSOR, the HTTP status it is served
// with and the JSON body clients see.
package apierr

import "fmt"

// Error is one catalog API failure. The cause is kept for request logs and
// never reaches the response body.
type Error struct {
	code    Code
	message string
	status  int
	cause   error
}

// New creates an Error for a rejected request, e.g. a malformed make id.
func New(code Code, status int, message string) *Error {
	return &Error{code: code, message: message, status: status}
}

// Wrap creates an Error carrying the store or ingestion failure behind it.
func Wrap(code Code, status int, message string, cause error) *Error {
	return &Error{code: code, message: message, status: status, cause: cause}
}

func (e *Error) Error() string {
	if e.cause == nil {
		return fmt.Sprintf("%s: %s", e.code, e.message)
	}
	return fmt.Sprintf("%s: %s: %v", e.code, e.message, e.cause)
}

func (e *Error) Unwrap() error { return e.cause }

func (e *Error) Code() Code { return e.code }

func (e *Error) Message() string { return e.message }

// Status is the HTTP status the handlers answer with.
func (e *Error) Status() int { return e.status }

// ErrorResponse is the body of every non-2xx catalog response:
//
//	{"error":{"code":"MAKE_NOT_FOUND","message":"make 440 not found"}}
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

type ErrorBody struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
}

// Response builds the client-facing body; the cause is dropped.
func (e *Error) Response() ErrorResponse {
	return ErrorResponse{Error: ErrorBody{Code: e.code, Message: e.message}}
}
