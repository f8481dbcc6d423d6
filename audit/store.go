// Package audit keeps a SQLite record of completed tool invocations.
package audit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS invocations (
	id TEXT PRIMARY KEY,
	tool TEXT NOT NULL,
	started_at TEXT NOT NULL,
	duration_ms INTEGER NOT NULL,
	is_error INTEGER NOT NULL,
	error_kind TEXT NOT NULL DEFAULT '',
	summary TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS invocations_started_at ON invocations (started_at);`

const (
	defaultDir  = ".ghostmcp"
	defaultFile = "audit.db"
)

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// DefaultRecentLimit is used by Recent when limit is not positive.
const DefaultRecentLimit = 50

// Record is one completed invocation.
type Record struct {
	ID         string    `json:"id"`
	Tool       string    `json:"tool"`
	StartedAt  time.Time `json:"started_at"`
	DurationMS int64     `json:"duration_ms"`
	IsError    bool      `json:"is_error"`
	ErrorKind  string    `json:"error_kind,omitempty"`
	Summary    string    `json:"summary"`
}

// Store persists invocation records.
type Store struct {
	db *sql.DB
}

// DefaultPath returns ~/.ghostmcp/audit.db.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("audit: resolve user home: %w", err)
	}
	return filepath.Join(home, defaultDir, defaultFile), nil
}

// Open opens (or creates) the store at path, creating parent directories.
func Open(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("audit: store path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("audit: create store dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("audit: open store: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("audit: set WAL mode: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("audit: create schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Insert writes rec. A missing ID is filled with a new UUID.
func (s *Store) Insert(ctx context.Context, rec Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.db == nil {
		return errors.New("audit: store is nil")
	}
	if strings.TrimSpace(rec.Tool) == "" {
		return errors.New("audit: record tool is required")
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}

	_, err := s.db.ExecContext(ctx, `
INSERT INTO invocations (id, tool, started_at, duration_ms, is_error, error_kind, summary)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID,
		rec.Tool,
		rec.StartedAt.UTC().Format(timeLayout),
		rec.DurationMS,
		boolToInt(rec.IsError),
		rec.ErrorKind,
		rec.Summary,
	)
	if err != nil {
		return fmt.Errorf("audit: insert record %s: %w", rec.ID, err)
	}
	return nil
}

// Filter narrows Recent.
type Filter struct {
	Tool       string
	ErrorsOnly bool
	Limit      int
}

// Recent returns the newest records first.
func (s *Store) Recent(ctx context.Context, filter Filter) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.db == nil {
		return nil, errors.New("audit: store is nil")
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultRecentLimit
	}

	query := `
SELECT id, tool, started_at, duration_ms, is_error, error_kind, summary
FROM invocations`
	var (
		where []string
		args  []any
	)
	if filter.Tool != "" {
		where = append(where, "tool = ?")
		args = append(args, filter.Tool)
	}
	if filter.ErrorsOnly {
		where = append(where, "is_error = 1")
	}
	if len(where) > 0 {
		query += "\nWHERE " + strings.Join(where, " AND ")
	}
	query += "\nORDER BY started_at DESC, id ASC\nLIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("audit: query records: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var (
			rec       Record
			startedAt string
			isError   int
		)
		if err := rows.Scan(&rec.ID, &rec.Tool, &startedAt, &rec.DurationMS, &isError, &rec.ErrorKind, &rec.Summary); err != nil {
			return nil, fmt.Errorf("audit: scan record: %w", err)
		}
		rec.StartedAt, err = time.Parse(timeLayout, startedAt)
		if err != nil {
			return nil, fmt.Errorf("audit: parse started_at for %s: %w", rec.ID, err)
		}
		rec.IsError = isError != 0
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("audit: record rows: %w", err)
	}
	return records, nil
}

// Prune deletes records that started before cutoff and reports how many were
// removed.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	if s == nil || s.db == nil {
		return 0, errors.New("audit: store is nil")
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM invocations WHERE started_at < ?`,
		cutoff.UTC().Format(timeLayout))
	if err != nil {
		return 0, fmt.Errorf("audit: prune records: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("audit: prune rows affected: %w", err)
	}
	return n, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
