// Package audit implements the terminal-event history log: a durable
// sqlite-backed record of Completed/Failed/Cancelled session transitions,
// kept deliberately separate from the in-memory status registry so it
// never participates in resuming an in-flight session (preserving the
// in-flight-state Non-goal of spec §1/§9 — this only answers "what
// happened" after the fact).
package audit

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite" // database/sql driver registration
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Event is one recorded terminal transition.
type Event struct {
	SessionID string
	Kind      string // "completed" | "failed" | "cancelled"
	Timestamp time.Time
	Bytes     int64
	ErrorMsg  string
}

// Log is the audit trail, backed by a modernc.org/sqlite database.
type Log struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (creating if necessary) the sqlite database at path and
// applies pending migrations via goose's Provider API.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Log, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("audit: open database: %w", err)
	}

	if err := runMigrations(ctx, db, logger); err != nil {
		db.Close()
		return nil, err
	}

	return &Log{db: db, logger: logger}, nil
}

// Close releases the underlying database handle.
func (l *Log) Close() error {
	return l.db.Close()
}

// Record inserts a terminal event row.
func (l *Log) Record(ctx context.Context, e Event) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO session_events (session_id, kind, timestamp, bytes, error_message) VALUES (?, ?, ?, ?, ?)`,
		e.SessionID, e.Kind, e.Timestamp.UTC().Format(time.RFC3339), e.Bytes, e.ErrorMsg,
	)
	if err != nil {
		return fmt.Errorf("audit: record event: %w", err)
	}

	return nil
}

// History returns every recorded event for sessionID, most recent first.
func (l *Log) History(ctx context.Context, sessionID string) ([]Event, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT session_id, kind, timestamp, bytes, error_message FROM session_events
		 WHERE session_id = ? ORDER BY timestamp DESC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("audit: query history: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// Recent returns the most recent limit events across all sessions.
func (l *Log) Recent(ctx context.Context, limit int) ([]Event, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT session_id, kind, timestamp, bytes, error_message FROM session_events
		 ORDER BY timestamp DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("audit: query recent: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]Event, error) {
	var events []Event

	for rows.Next() {
		var (
			e      Event
			tsText string
		)

		if err := rows.Scan(&e.SessionID, &e.Kind, &tsText, &e.Bytes, &e.ErrorMsg); err != nil {
			return nil, fmt.Errorf("audit: scan row: %w", err)
		}

		ts, err := time.Parse(time.RFC3339, tsText)
		if err != nil {
			return nil, fmt.Errorf("audit: parse timestamp: %w", err)
		}

		e.Timestamp = ts
		events = append(events, e)
	}

	return events, rows.Err()
}

// runMigrations applies all pending schema migrations using the goose v3
// Provider API (no global state, context-aware).
func runMigrations(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	subFS, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("audit: creating migration sub-filesystem: %w", err)
	}

	provider, err := goose.NewProvider(goose.DialectSQLite3, db, subFS)
	if err != nil {
		return fmt.Errorf("audit: creating migration provider: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("audit: running migrations: %w", err)
	}

	for _, r := range results {
		logger.Info("audit: applied migration",
			slog.String("source", r.Source.Path),
			slog.Int64("duration_ms", r.Duration.Milliseconds()),
		)
	}

	return nil
}
