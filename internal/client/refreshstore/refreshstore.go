// Package refreshstore persists just enough state across client restarts
// to resume an in-flight upload: the session id and file identity, keyed
// by a hash of the absolute file path. Records older than TTL are treated
// as absent, since the server itself may have garbage-collected an
// abandoned session by then.
package refreshstore

import (
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// ErrCorruptRecord is returned when a record file cannot be parsed as
// JSON. The corrupt file is deleted automatically.
var ErrCorruptRecord = errors.New("refreshstore: corrupt record file")

const (
	recordSubdir = "upload-sessions"
	recordPerms  = 0o600
	dirPerms     = 0o700

	// TTL is how long a persisted record remains usable. Spec §6 requires
	// client-side refresh state to be discarded after 5 minutes, so a
	// long-dead client doesn't resume against a session the server has
	// already expired.
	TTL = 5 * time.Minute
)

// Record is the on-disk state needed to resume an upload.
type Record struct {
	SessionID string    `json:"sessionId"`
	FilePath  string    `json:"filePath"`
	FileSize  int64     `json:"fileSize"`
	ChunkSize int64     `json:"chunkSize"`
	SavedAt   time.Time `json:"savedAt"`
}

// expired reports whether r is older than TTL as of now.
func (r Record) expired(now time.Time) bool {
	return now.Sub(r.SavedAt) > TTL
}

// Store manages file-based refresh records, one per uploaded file.
type Store struct {
	dir    string
	logger *slog.Logger
}

// New creates a Store rooted at dataDir/upload-sessions. logger may be
// nil.
func New(dataDir string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}

	return &Store{dir: filepath.Join(dataDir, recordSubdir), logger: logger}
}

// Load returns the record for filePath, or nil if none exists or the
// record has expired (an expired record is deleted as a side effect).
func (s *Store) Load(filePath string) (*Record, error) {
	path := s.recordPath(filePath)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("refreshstore: reading record: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		s.logger.Warn("refreshstore: corrupt record, deleting",
			slog.String("path", path), slog.String("error", err.Error()))

		if rmErr := os.Remove(path); rmErr != nil && !os.IsNotExist(rmErr) {
			s.logger.Warn("refreshstore: failed removing corrupt record", slog.String("error", rmErr.Error()))
		}

		return nil, fmt.Errorf("%w: %w", ErrCorruptRecord, err)
	}

	if rec.expired(time.Now()) {
		if rmErr := os.Remove(path); rmErr != nil && !os.IsNotExist(rmErr) {
			s.logger.Warn("refreshstore: failed removing expired record", slog.String("error", rmErr.Error()))
		}

		return nil, nil
	}

	return &rec, nil
}

// Save persists rec, stamping SavedAt with the current time, via an
// atomic write (temp file + rename).
func (s *Store) Save(rec Record) error {
	if err := os.MkdirAll(s.dir, dirPerms); err != nil {
		return fmt.Errorf("refreshstore: creating dir: %w", err)
	}

	rec.SavedAt = time.Now()

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("refreshstore: marshaling record: %w", err)
	}

	path := s.recordPath(rec.FilePath)
	tmpPath := path + ".tmp"

	if err := os.WriteFile(tmpPath, data, recordPerms); err != nil {
		return fmt.Errorf("refreshstore: writing temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("refreshstore: renaming temp file: %w", err)
	}

	return nil
}

// Delete removes the record for filePath. No error if absent.
func (s *Store) Delete(filePath string) error {
	path := s.recordPath(filePath)

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("refreshstore: deleting record: %w", err)
	}

	return nil
}

// CleanExpired removes every record older than TTL. Returns the count
// deleted.
func (s *Store) CleanExpired() (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}

		return 0, fmt.Errorf("refreshstore: reading dir: %w", err)
	}

	now := time.Now()
	deleted := 0

	for _, e := range entries {
		if e.IsDir() {
			continue
		}

		path := filepath.Join(s.dir, e.Name())

		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}

		var rec Record
		if err := json.Unmarshal(data, &rec); err != nil {
			os.Remove(path)
			deleted++

			continue
		}

		if rec.expired(now) {
			if rmErr := os.Remove(path); rmErr == nil {
				deleted++
			}
		}
	}

	return deleted, nil
}

func recordKey(filePath string) string {
	h := sha256.Sum256([]byte(filePath))
	return fmt.Sprintf("%x.json", h)
}

func (s *Store) recordPath(filePath string) string {
	return filepath.Join(s.dir, recordKey(filePath))
}
