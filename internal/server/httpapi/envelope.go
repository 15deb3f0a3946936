package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/chunkrelay/chunkrelay/internal/apperr"
)

// errorEnvelope is the uniform error response body named in spec §6.
type errorEnvelope struct {
	Timestamp string            `json:"timestamp"`
	Status    int               `json:"status"`
	Error     string            `json:"error"`
	Message   string            `json:"message"`
	Path      string            `json:"path"`
	ErrorCode string            `json:"errorCode"`
	Details   map[string]string `json:"details,omitempty"`
	TraceID   string            `json:"traceId"`
}

// errorCodeFor maps a sentinel to one of the error codes named in spec §6.
func errorCodeFor(err error) string {
	switch {
	case errors.Is(err, apperr.ErrValidation):
		return "VALIDATION_ERROR"
	case errors.Is(err, apperr.ErrIncompleteUpload):
		return "UPLOAD_ERROR"
	case errors.Is(err, apperr.ErrInsufficientDiskSpace):
		return "INSUFFICIENT_DISK_SPACE"
	case errors.Is(err, apperr.ErrStorage), errors.Is(err, apperr.ErrAssemblyFailure):
		return "STORAGE_ERROR"
	case errors.Is(err, apperr.ErrIO):
		return "IO_ERROR"
	case errors.Is(err, apperr.ErrNotFound):
		return "NOT_FOUND"
	default:
		return "INTERNAL_ERROR"
	}
}

// writeError renders err as the uniform error envelope, logging a trace id
// that also appears in the response, per spec §7's propagation policy.
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	traceID := uuid.NewString()
	status := apperr.HTTPStatus(err)

	var details map[string]string
	var message string

	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		details = appErr.Details
		message = appErr.Message
	} else {
		message = err.Error()
	}

	logger.Error("request failed",
		slog.String("trace_id", traceID),
		slog.String("path", r.URL.Path),
		slog.Int("status", status),
		slog.String("error", err.Error()),
	)

	body := errorEnvelope{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Status:    status,
		Error:     http.StatusText(status),
		Message:   message,
		Path:      r.URL.Path,
		ErrorCode: errorCodeFor(err),
		Details:   details,
		TraceID:   traceID,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body) //nolint:errcheck // response already committed; nothing actionable on encode failure
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // response already committed
}
