// Package httpapi exposes the upload coordinator over the HTTP surface
// named in spec §6: multipart and binary chunk submission, finalize,
// cancel, resume handshake, and status queries.
package httpapi

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/chunkrelay/chunkrelay/internal/apperr"
	"github.com/chunkrelay/chunkrelay/internal/bandwidth"
	"github.com/chunkrelay/chunkrelay/internal/server/audit"
	"github.com/chunkrelay/chunkrelay/internal/server/coordinator"
	"github.com/chunkrelay/chunkrelay/internal/server/validator"
)

// History is the read side of the terminal-event audit log, consumed by
// the /history endpoints. Implemented by *audit.Log. A nil History leaves
// the endpoints disabled (404), so a server can run without sqlite.
type History interface {
	History(ctx context.Context, sessionID string) ([]audit.Event, error)
	Recent(ctx context.Context, limit int) ([]audit.Event, error)
}

const defaultMultipartMemory = 32 << 20 // 32MiB held in memory before spilling to temp files

// Handler wires the coordinator to stdlib net/http using Go 1.22+'s
// method+pattern ServeMux routing — no external router is needed since no
// example repo in the teacher/pack dependency set carries one.
type Handler struct {
	Coordinator *coordinator.Coordinator
	History     History
	Limiter     *bandwidth.Limiter // nil means unlimited; every chunk body read goes through it
	Logger      *slog.Logger
}

// New constructs a Handler. logger may be nil.
func New(c *coordinator.Coordinator, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}

	return &Handler{Coordinator: c, Logger: logger}
}

// Routes returns the configured mux, ready to be served or wrapped by
// caller-supplied middleware (CORS, compression — both out of scope here).
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /upload", h.handleMultipartChunk)
	mux.HandleFunc("POST /upload/binary", h.handleBinaryChunk)
	mux.HandleFunc("POST /upload/{id}/complete", h.handleFinalize)
	mux.HandleFunc("DELETE /upload/{id}", h.handleCancel)
	mux.HandleFunc("POST /upload/{id}/resume", h.handleResume)
	mux.HandleFunc("GET /upload/resumable", h.handleListResumable)
	mux.HandleFunc("GET /upload/{id}", h.handleGetStatus)
	mux.HandleFunc("GET /upload", h.handleListAll)
	mux.HandleFunc("GET /upload/{id}/history", h.handleHistory)
	mux.HandleFunc("GET /history/recent", h.handleRecentHistory)

	return mux
}

func (h *Handler) handleMultipartChunk(w http.ResponseWriter, r *http.Request) {
	r.Body = io.NopCloser(h.Limiter.WrapReader(r.Context(), r.Body))

	if err := r.ParseMultipartForm(defaultMultipartMemory); err != nil {
		writeError(w, r, h.Logger, apperr.New(apperr.ErrValidation, "malformed multipart body"))
		return
	}

	sessionID := r.FormValue("sessionId")

	chunkIndex, err := strconv.Atoi(r.FormValue("chunkIndex"))
	if err != nil {
		writeError(w, r, h.Logger, apperr.New(apperr.ErrValidation, "chunkIndex must be an integer"))
		return
	}

	totalChunks, err := strconv.Atoi(r.FormValue("totalChunks"))
	if err != nil {
		writeError(w, r, h.Logger, apperr.New(apperr.ErrValidation, "totalChunks must be an integer"))
		return
	}

	fileName := r.FormValue("fileName")

	file, _, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, h.Logger, apperr.New(apperr.ErrValidation, "missing file part"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, r, h.Logger, apperr.New(apperr.ErrIO, "failed reading chunk body"))
		return
	}

	h.saveAndRespond(w, r, validator.ChunkRequest{
		SessionID: sessionID, ChunkIndex: chunkIndex, TotalChunks: totalChunks, FileName: fileName,
	}, data)
}

func (h *Handler) handleBinaryChunk(w http.ResponseWriter, r *http.Request) {
	sessionID := r.Header.Get("X-File-Id")

	chunkIndex, err := strconv.Atoi(r.Header.Get("X-Chunk-Number"))
	if err != nil {
		writeError(w, r, h.Logger, apperr.New(apperr.ErrValidation, "X-Chunk-Number must be an integer"))
		return
	}

	totalChunks, err := strconv.Atoi(r.Header.Get("X-Total-Chunks"))
	if err != nil {
		writeError(w, r, h.Logger, apperr.New(apperr.ErrValidation, "X-Total-Chunks must be an integer"))
		return
	}

	fileName := r.Header.Get("X-File-Name")

	data, err := io.ReadAll(h.Limiter.WrapReader(r.Context(), r.Body))
	if err != nil {
		writeError(w, r, h.Logger, apperr.New(apperr.ErrIO, "failed reading chunk body"))
		return
	}

	h.saveAndRespond(w, r, validator.ChunkRequest{
		SessionID: sessionID, ChunkIndex: chunkIndex, TotalChunks: totalChunks, FileName: fileName,
	}, data)
}

func (h *Handler) saveAndRespond(w http.ResponseWriter, r *http.Request, req validator.ChunkRequest, data []byte) {
	if _, err := h.Coordinator.SaveChunk(req, 0, 0, data); err != nil {
		writeError(w, r, h.Logger, err)
		return
	}

	w.WriteHeader(http.StatusOK)
}

func (h *Handler) handleFinalize(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if _, _, err := h.Coordinator.Finalize(id); err != nil {
		writeError(w, r, h.Logger, err)
		return
	}

	w.WriteHeader(http.StatusOK)
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	h.Coordinator.Cancel(r.PathValue("id"))
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) handleResume(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	totalChunks, err := strconv.Atoi(r.URL.Query().Get("totalChunks"))
	if err != nil {
		writeError(w, r, h.Logger, apperr.New(apperr.ErrValidation, "totalChunks must be an integer"))
		return
	}

	session, err := h.Coordinator.Registry.GetOrCreate(id, totalChunks)
	if err != nil {
		writeError(w, r, h.Logger, apperr.New(apperr.ErrValidation, err.Error()))
		return
	}

	if fileName := r.URL.Query().Get("fileName"); fileName != "" {
		h.Coordinator.Registry.SetFileName(id, fileName)
	}

	fileSize, _ := strconv.ParseInt(r.URL.Query().Get("fileSize"), 10, 64)   //nolint:errcheck // optional field
	chunkSize, _ := strconv.ParseInt(r.URL.Query().Get("chunkSize"), 10, 64) //nolint:errcheck // optional field

	if fileSize > 0 || chunkSize > 0 {
		h.Coordinator.Registry.SetMetadata(id, fileSize, chunkSize)
	}

	session, _ = h.Coordinator.Registry.Get(id)

	writeJSON(w, http.StatusOK, toResumeRecord(session))
}

func (h *Handler) handleGetStatus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	session, ok := h.Coordinator.Registry.Get(id)
	if !ok {
		writeError(w, r, h.Logger, apperr.New(apperr.ErrNotFound, "session "+id+" not found"))
		return
	}

	writeJSON(w, http.StatusOK, toResumeRecord(session))
}

func (h *Handler) handleListAll(w http.ResponseWriter, r *http.Request) {
	sessions := h.Coordinator.Registry.ListAll()
	records := make([]resumeRecord, 0, len(sessions))

	for _, s := range sessions {
		records = append(records, toResumeRecord(s))
	}

	writeJSON(w, http.StatusOK, records)
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	if h.History == nil {
		writeError(w, r, h.Logger, apperr.New(apperr.ErrNotFound, "audit history is not enabled on this server"))
		return
	}

	events, err := h.History.History(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, h.Logger, apperr.New(apperr.ErrStorage, err.Error()))
		return
	}

	writeJSON(w, http.StatusOK, events)
}

func (h *Handler) handleRecentHistory(w http.ResponseWriter, r *http.Request) {
	if h.History == nil {
		writeError(w, r, h.Logger, apperr.New(apperr.ErrNotFound, "audit history is not enabled on this server"))
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	events, err := h.History.Recent(r.Context(), limit)
	if err != nil {
		writeError(w, r, h.Logger, apperr.New(apperr.ErrStorage, err.Error()))
		return
	}

	writeJSON(w, http.StatusOK, events)
}

func (h *Handler) handleListResumable(w http.ResponseWriter, r *http.Request) {
	sessions := h.Coordinator.Registry.ListResumable()
	records := make([]resumeRecord, 0, len(sessions))

	for _, s := range sessions {
		records = append(records, toResumeRecord(s))
	}

	writeJSON(w, http.StatusOK, records)
}
