// Package apperr defines chunkrelay's closed set of sentinel errors and the
// wrapping type the server uses to carry an HTTP-adjacent error code,
// message, and field-level details from any layer up to the HTTP transport.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors. Use errors.Is(err, apperr.ErrNotFound) to check.
var (
	ErrValidation            = errors.New("apperr: validation failed")
	ErrNotFound              = errors.New("apperr: session not found")
	ErrIncompleteUpload      = errors.New("apperr: upload incomplete")
	ErrStorage               = errors.New("apperr: storage failure")
	ErrInsufficientDiskSpace = errors.New("apperr: insufficient disk space")
	ErrAssemblyFailure       = errors.New("apperr: assembly failure")
	ErrIO                    = errors.New("apperr: io failure")
)

// Error wraps a sentinel with an error code string, a human message, a trace
// id, and optional field-level details for multi-field validation failures.
type Error struct {
	Code      string
	Message   string
	TraceID   string
	Details   map[string]string
	Err       error // sentinel, for errors.Is()
}

func (e *Error) Error() string {
	if e.TraceID != "" {
		return fmt.Sprintf("apperr: %s (trace-id: %s): %s", e.Code, e.TraceID, e.Message)
	}

	return fmt.Sprintf("apperr: %s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New wraps a sentinel into an *Error with a code derived from the sentinel
// and the given message.
func New(sentinel error, message string) *Error {
	return &Error{Code: codeFor(sentinel), Message: message, Err: sentinel}
}

// WithDetails attaches field-level details (e.g. multi-field validation
// failures) and returns the same *Error for chaining.
func (e *Error) WithDetails(details map[string]string) *Error {
	e.Details = details
	return e
}

// WithTraceID attaches a trace id and returns the same *Error for chaining.
func (e *Error) WithTraceID(id string) *Error {
	e.TraceID = id
	return e
}

func codeFor(sentinel error) string {
	switch {
	case errors.Is(sentinel, ErrValidation):
		return "validation_error"
	case errors.Is(sentinel, ErrNotFound):
		return "not_found"
	case errors.Is(sentinel, ErrIncompleteUpload):
		return "incomplete_upload"
	case errors.Is(sentinel, ErrInsufficientDiskSpace):
		return "insufficient_disk_space"
	case errors.Is(sentinel, ErrAssemblyFailure):
		return "assembly_failure"
	case errors.Is(sentinel, ErrStorage):
		return "storage_error"
	case errors.Is(sentinel, ErrIO):
		return "io_error"
	default:
		return "internal_error"
	}
}

// HTTPStatus maps a sentinel error to the HTTP status code the transport
// layer should render, per the uniform error envelope policy.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrIncompleteUpload):
		return http.StatusBadRequest
	case errors.Is(err, ErrInsufficientDiskSpace):
		return http.StatusInsufficientStorage
	case errors.Is(err, ErrAssemblyFailure), errors.Is(err, ErrStorage), errors.Is(err, ErrIO):
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
