// Package journal persists a history of completed exports backed by SQLite.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Entry describes one completed export.
type Entry struct {
	ID              int64
	OutputPath      string
	Format          string
	Frames          int64
	FPS             int
	SizeBytes       int64
	DurationSeconds float64
	CompletedAt     time.Time
}

// timeLayout pads fractional seconds to full width so the lexical ordering
// SQLite applies to completed_at matches chronological order. RFC3339Nano
// trims trailing zeros, which breaks that for sub-second timestamps.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store manages journal persistence.
type Store struct {
	db   *sql.DB
	path string
}

const schema = `
CREATE TABLE IF NOT EXISTS exports (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    output_path TEXT NOT NULL,
    format TEXT NOT NULL,
    frames INTEGER NOT NULL,
    fps INTEGER NOT NULL,
    size_bytes INTEGER NOT NULL,
    duration_seconds REAL NOT NULL,
    completed_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_exports_completed_at ON exports(completed_at);
`

// Open initializes or connects to the journal database under dir.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure journal directory: %w", err)
	}

	dbPath := filepath.Join(dir, "journal.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db, path: dbPath}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Record inserts a completed export and returns its assigned ID.
func (s *Store) Record(ctx context.Context, entry Entry) (int64, error) {
	completed := entry.CompletedAt
	if completed.IsZero() {
		completed = time.Now().UTC()
	}

	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO exports (
            output_path, format, frames, fps, size_bytes, duration_seconds, completed_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.OutputPath,
		entry.Format,
		entry.Frames,
		entry.FPS,
		entry.SizeBytes,
		entry.DurationSeconds,
		completed.UTC().Format(timeLayout),
	)
	if err != nil {
		return 0, fmt.Errorf("insert export: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}

// List returns the most recent entries, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, output_path, format, frames, fps, size_bytes, duration_seconds, completed_at
         FROM exports ORDER BY completed_at DESC, id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query exports: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var entry Entry
		var completed string
		if err := rows.Scan(
			&entry.ID,
			&entry.OutputPath,
			&entry.Format,
			&entry.Frames,
			&entry.FPS,
			&entry.SizeBytes,
			&entry.DurationSeconds,
			&completed,
		); err != nil {
			return nil, fmt.Errorf("scan export: %w", err)
		}
		// RFC3339Nano parses the padded layout too.
		if parsed, parseErr := time.Parse(time.RFC3339Nano, completed); parseErr == nil {
			entry.CompletedAt = parsed
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate exports: %w", err)
	}
	return entries, nil
}
