// Package coordinator implements the upload coordinator, which handles
// chunk saves, finalize and cancel. The HTTP layer's resume handshake and
// status queries use the registry directly rather than the coordinator.
package coordinator

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/chunkrelay/chunkrelay/internal/apperr"
	"github.com/chunkrelay/chunkrelay/internal/diskspace"
	"github.com/chunkrelay/chunkrelay/internal/server/assembler"
	"github.com/chunkrelay/chunkrelay/internal/server/registry"
	"github.com/chunkrelay/chunkrelay/internal/server/store"
	"github.com/chunkrelay/chunkrelay/internal/server/validator"
)

// Notifier receives session lifecycle events for fan-out to subscribers
// (the websocket status-push layer). Implementations must not block.
type Notifier interface {
	Notify(sessionID, event string)
}

type noopNotifier struct{}

func (noopNotifier) Notify(string, string) {}

// Coordinator orchestrates save -> register -> (optionally) finalize.
type Coordinator struct {
	Registry   *registry.Registry
	Store      *store.Store
	Assembler  *assembler.Assembler
	Limits     validator.Limits
	Notifier   Notifier
	Logger     *slog.Logger
}

// New constructs a Coordinator. logger and notifier may be nil (a nil
// notifier is replaced with a no-op).
func New(reg *registry.Registry, st *store.Store, asm *assembler.Assembler, limits validator.Limits,
	notifier Notifier, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}

	if notifier == nil {
		notifier = noopNotifier{}
	}

	return &Coordinator{Registry: reg, Store: st, Assembler: asm, Limits: limits, Notifier: notifier, Logger: logger}
}

// SaveChunk validates, persists bytes, and updates status for one chunk.
// Replaying the same (sessionId, chunkIndex) overwrites the same on-disk
// artifact and is a no-op on the received-chunks set (spec §8 idempotence
// property). Never auto-finalizes.
func (c *Coordinator) SaveChunk(req validator.ChunkRequest, fileSize, chunkSize int64, data []byte) (*registry.Session, error) {
	req.DataLen = len(data)

	if err := validator.ValidateChunk(req, c.Limits); err != nil {
		return nil, err
	}

	_, err := c.Registry.GetOrCreate(req.SessionID, req.TotalChunks)
	if err != nil {
		c.Logger.Warn("coordinator: totalChunks mismatch", "session_id", req.SessionID, "error", err)
		return nil, apperr.New(apperr.ErrValidation, err.Error())
	}

	if req.FileName != "" {
		c.Registry.SetFileName(req.SessionID, req.FileName)
	}

	c.Registry.SetMetadata(req.SessionID, fileSize, chunkSize)

	if err := c.Store.Write(req.SessionID, req.ChunkIndex, data); err != nil {
		c.Logger.Error("coordinator: chunk write failed", "session_id", req.SessionID,
			"chunk_index", req.ChunkIndex, "error", err)

		if _, ok := c.Registry.Get(req.SessionID); ok {
			c.Registry.MarkFailed(req.SessionID, err.Error()) //nolint:errcheck // best-effort status update
		}

		return nil, classifyStoreErr(err)
	}

	updated, err := c.Registry.AddChunk(req.SessionID, req.ChunkIndex, int64(len(data)))
	if err != nil {
		return nil, apperr.New(apperr.ErrStorage, err.Error())
	}

	c.Notifier.Notify(req.SessionID, "chunk_received")

	return updated, nil
}

func classifyStoreErr(err error) error {
	if errors.Is(err, diskspace.ErrInsufficientDiskSpace) {
		return apperr.New(apperr.ErrInsufficientDiskSpace, err.Error())
	}

	return apperr.New(apperr.ErrStorage, err.Error())
}

// Finalize refuses with ErrIncompleteUpload if not all chunks are present;
// otherwise assembles, marks Completed, and removes the temp directory. On
// assembler failure, marks Failed and leaves temp data for post-mortem.
func (c *Coordinator) Finalize(sessionID string) (*registry.Session, string, error) {
	session, ok := c.Registry.Get(sessionID)
	if !ok {
		return nil, "", apperr.New(apperr.ErrNotFound, fmt.Sprintf("session %s not found", sessionID))
	}

	if len(session.ReceivedChunks) != session.TotalChunks {
		missing := session.MissingChunks()

		return nil, "", apperr.New(apperr.ErrIncompleteUpload,
			fmt.Sprintf("session %s: %d of %d chunks received", sessionID, len(session.ReceivedChunks), session.TotalChunks)).
			WithDetails(map[string]string{"missingChunks": fmt.Sprint(missing)})
	}

	destPath, err := c.Assembler.Assemble(c.Store, sessionID, session.FileName, session.TotalChunks)
	if err != nil {
		c.Logger.Error("coordinator: assembly failed", "session_id", sessionID, "error", err)
		c.Registry.MarkFailed(sessionID, err.Error()) //nolint:errcheck // best-effort status update
		c.Notifier.Notify(sessionID, "failed")

		return nil, "", err
	}

	if err := c.Registry.MarkCompleted(sessionID); err != nil {
		return nil, "", apperr.New(apperr.ErrStorage, err.Error())
	}

	final, _ := c.Registry.Get(sessionID)

	c.Store.Cleanup(sessionID)
	c.Notifier.Notify(sessionID, "completed")
	c.Registry.Remove(sessionID)

	return final, destPath, nil
}

// Cancel removes temporary data and the session record unconditionally;
// safe on absent sessions.
func (c *Coordinator) Cancel(sessionID string) {
	c.Store.Cleanup(sessionID)
	c.Notifier.Notify(sessionID, "cancelled")
	c.Registry.Remove(sessionID)
}
