// Package store implements the server's chunk store: durable persistence
// of individual chunks prior to assembly, per spec §4.3.
package store

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/chunkrelay/chunkrelay/internal/diskspace"
)

// ErrMissingChunk is returned by ListAll when a chunk in [0,totalChunks) is
// absent from disk.
var ErrMissingChunk = errors.New("store: chunk missing")

// Store writes chunks under BaseDir/<TempDirPrefix><sessionId>/ and exposes
// existence, size, and enumeration over them.
type Store struct {
	BaseDir          string
	TempDirPrefix    string
	MinFreeSpace     int64
	SafetyBufferSize int64
	StatFunc         diskspace.StatFunc // nil uses diskspace.Available
	Logger           *slog.Logger
}

// New constructs a Store. logger may be nil.
func New(baseDir, tempDirPrefix string, minFreeSpace, safetyBufferSize int64, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}

	return &Store{
		BaseDir:          baseDir,
		TempDirPrefix:    tempDirPrefix,
		MinFreeSpace:     minFreeSpace,
		SafetyBufferSize: safetyBufferSize,
		Logger:           logger,
	}
}

// sessionDir returns the per-session temporary directory path.
func (s *Store) sessionDir(sessionID string) string {
	return filepath.Join(s.BaseDir, s.TempDirPrefix+sessionID)
}

// chunkPath returns the on-disk path for one chunk.
func (s *Store) chunkPath(sessionID string, chunkIndex int) string {
	return filepath.Join(s.sessionDir(sessionID), fmt.Sprintf("%s.part%d", sessionID, chunkIndex))
}

// Write ensures the session's temp directory exists and writes bytes to the
// chunk file, create-or-truncate, preflighting disk space. Chunk writes are
// buffered through the OS page cache; fsync is deliberately not called (see
// DESIGN.md open-question 2 — durability across power loss is not
// guaranteed, matching spec §5/§9).
func (s *Store) Write(sessionID string, chunkIndex int, data []byte) error {
	dir := s.sessionDir(sessionID)
	if err := os.MkdirAll(dir, 0o755); err != nil { //nolint:mnd // standard dir perms
		return fmt.Errorf("store: create session dir: %w", err)
	}

	stat := s.StatFunc
	if stat == nil {
		stat = diskspace.Available
	}

	if err := diskspace.CheckFree(s.BaseDir, int64(len(data)), s.MinFreeSpace, s.SafetyBufferSize, stat); err != nil {
		return err
	}

	path := s.chunkPath(sessionID, chunkIndex)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644) //nolint:mnd // standard file perms
	if err != nil {
		return fmt.Errorf("store: open chunk file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("store: write chunk file: %w", err)
	}

	return nil
}

// Exists reports whether the chunk file is present.
func (s *Store) Exists(sessionID string, chunkIndex int) bool {
	_, err := os.Stat(s.chunkPath(sessionID, chunkIndex))
	return err == nil
}

// Size returns the chunk file's byte length.
func (s *Store) Size(sessionID string, chunkIndex int) (int64, error) {
	info, err := os.Stat(s.chunkPath(sessionID, chunkIndex))
	if err != nil {
		return 0, fmt.Errorf("store: stat chunk file: %w", err)
	}

	return info.Size(), nil
}

// ListAll returns the chunk file paths for indices [0,totalChunks) in
// ascending order, or ErrMissingChunk if any index is absent.
func (s *Store) ListAll(sessionID string, totalChunks int) ([]string, error) {
	paths := make([]string, totalChunks)

	for i := range totalChunks {
		path := s.chunkPath(sessionID, i)
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("%w: session %s index %d", ErrMissingChunk, sessionID, i)
		}

		paths[i] = path
	}

	return paths, nil
}

// Cleanup best-effort removes the session's temp directory, logging and
// swallowing per-entry errors rather than failing the caller.
func (s *Store) Cleanup(sessionID string) {
	dir := s.sessionDir(sessionID)

	if err := os.RemoveAll(dir); err != nil {
		s.Logger.Warn("store: cleanup failed", "session_id", sessionID, "dir", dir, "error", err)
	}
}

// OpenChunk opens one chunk file for reading, used by the assembler's
// file-to-file transfer.
func (s *Store) OpenChunk(sessionID string, chunkIndex int) (*os.File, error) {
	f, err := os.Open(s.chunkPath(sessionID, chunkIndex))
	if err != nil {
		return nil, fmt.Errorf("store: open chunk for read: %w", err)
	}

	return f, nil
}

