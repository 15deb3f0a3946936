// Package session coordinates multiple concurrent pump.Task instances,
// persisting just enough state via refreshstore to resume a file after a
// client restart, and exposes a snapshot registry for a presentation
// layer (CLI or otherwise) to poll.
package session

import (
	"context"
	"log/slog"
	stdsync "sync"
	"time"

	"github.com/google/uuid"

	"github.com/chunkrelay/chunkrelay/internal/client/pump"
	"github.com/chunkrelay/chunkrelay/internal/client/refreshstore"
)

// Manager tracks every Task started in this process and mirrors their
// session ids to disk so an interrupted upload can be resumed later.
type Manager struct {
	refresh *refreshstore.Store
	logger  *slog.Logger

	mu    stdsync.Mutex
	tasks map[string]*pump.Task // sessionID -> task
}

// NewManager constructs a Manager backed by a refreshstore rooted at
// dataDir. logger may be nil.
func NewManager(dataDir string, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}

	return &Manager{
		refresh: refreshstore.New(dataDir, logger),
		logger:  logger,
		tasks:   make(map[string]*pump.Task),
	}
}

// Resolve returns a usable session id for filePath: a still-valid
// refreshstore record's id if one exists, or a freshly generated id
// otherwise. The second return value reports whether an existing session
// was found.
func (m *Manager) Resolve(filePath string) (sessionID string, resumed bool, err error) {
	rec, loadErr := m.refresh.Load(filePath)
	if loadErr != nil {
		// Corrupt record: already deleted by Load; fall through to a
		// fresh session rather than failing the whole upload.
		m.logger.Warn("session: discarding unusable refresh record", slog.String("error", loadErr.Error()))
	}

	if rec != nil {
		return rec.SessionID, true, nil
	}

	return uuid.NewString(), false, nil
}

// Start tracks task under its session id, persists a refresh record,
// runs the task to completion, and removes the record on success. It
// blocks until the task finishes. chunkSize is recorded alongside the
// session id so a later Resolve/resume handshake knows what chunk size
// the in-flight upload used.
func (m *Manager) Start(ctx context.Context, task *pump.Task, chunkSize int64) error {
	m.mu.Lock()
	m.tasks[task.SessionID()] = task
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		delete(m.tasks, task.SessionID())
		m.mu.Unlock()
	}()

	if err := m.refresh.Save(refreshstore.Record{
		SessionID: task.SessionID(),
		FilePath:  task.FilePath(),
		FileSize:  task.FileSize(),
		ChunkSize: chunkSize,
	}); err != nil {
		m.logger.Warn("session: failed to persist refresh record", slog.String("error", err.Error()))
	}

	runErr := task.Run(ctx)

	if runErr == nil {
		if delErr := m.refresh.Delete(task.FilePath()); delErr != nil {
			m.logger.Warn("session: failed to remove refresh record", slog.String("error", delErr.Error()))
		}
	}

	return runErr
}

// Task returns the tracked task for sessionID, if it is currently
// running.
func (m *Manager) Task(sessionID string) (*pump.Task, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tasks[sessionID]

	return t, ok
}

// Active lists every currently-running session id.
func (m *Manager) Active() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]string, 0, len(m.tasks))
	for id := range m.tasks {
		ids = append(ids, id)
	}

	return ids
}

// PauseAll pauses every currently-running task, used for a graceful
// SIGTSTP-style pause-the-world operation.
func (m *Manager) PauseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, t := range m.tasks {
		t.Pause()
	}
}

// CancelAll cancels every currently-running task.
func (m *Manager) CancelAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, t := range m.tasks {
		t.Cancel()
	}
}

// CleanExpiredRecords removes refreshstore records older than its TTL.
// Intended to be called periodically (e.g. once per CLI invocation).
func (m *Manager) CleanExpiredRecords() {
	n, err := m.refresh.CleanExpired()
	if err != nil {
		m.logger.Warn("session: cleanup failed", slog.String("error", err.Error()))
		return
	}

	if n > 0 {
		m.logger.Info("session: removed expired refresh records", slog.Int("count", n), slog.Duration("ttl", refreshstore.TTL))
	}
}

// watchInterval is how often a long-running CLI process should call
// CleanExpiredRecords.
const watchInterval = time.Hour
