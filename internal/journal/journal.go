// Package journal keeps a local log of command outcomes so users can see
// what was applied, denied or dropped. It holds no session state.
package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Outcome is how a command ended.
type Outcome string

const (
	Applied   Outcome = "applied"
	Previewed Outcome = "previewed"
	Denied    Outcome = "denied"
	Busy      Outcome = "busy"
	Malformed Outcome = "malformed"
	Failed    Outcome = "failed"
	Cancelled Outcome = "cancelled"
	Stale     Outcome = "stale"
)

// Entry is one recorded command outcome.
type Entry struct {
	ID         int64
	RequestID  string
	Task       string
	Outcome    Outcome
	Path       string
	Range      string
	Detail     string
	ConfigKind string
	Model      string
	Duration   time.Duration
	RecordedAt time.Time
}

// Recorder is the write side of the journal.
type Recorder interface {
	Record(ctx context.Context, e Entry) error
}

// Nop discards entries.
type Nop struct{}

func (Nop) Record(context.Context, Entry) error { return nil }

// Store is the SQLite-backed journal.
type Store struct {
	db *sql.DB
}

// Open opens or creates the journal database at path.
func Open(ctx context.Context, path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create journal dir: %w", err)
	}
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if err := os.Chmod(path, 0o600); err != nil && !errors.Is(err, os.ErrNotExist) {
		db.Close()
		return nil, fmt.Errorf("chmod journal: %w", err)
	}
	if err := applyMigrations(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Record appends an entry.
func (s *Store) Record(ctx context.Context, e Entry) error {
	if e.RecordedAt.IsZero() {
		e.RecordedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO outcomes(request_id, task, outcome, path, range_text, detail, config_kind, model, duration_ms, recorded_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`, e.RequestID, e.Task, string(e.Outcome), e.Path, e.Range, e.Detail, e.ConfigKind, e.Model, e.Duration.Milliseconds(), ts(e.RecordedAt))
	if err != nil {
		return fmt.Errorf("record outcome: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT id, request_id, task, outcome, path, range_text, detail, config_kind, model, duration_ms, recorded_at
FROM outcomes
ORDER BY recorded_at DESC, id DESC
LIMIT ?
`, limit)
	if err != nil {
		return nil, fmt.Errorf("query outcomes: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e          Entry
			outcome    string
			durationMS int64
			recordedAt string
		)
		if err := rows.Scan(&e.ID, &e.RequestID, &e.Task, &outcome, &e.Path, &e.Range, &e.Detail, &e.ConfigKind, &e.Model, &durationMS, &recordedAt); err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		e.Outcome = Outcome(outcome)
		e.Duration = time.Duration(durationMS) * time.Millisecond
		if e.RecordedAt, err = parseTS(recordedAt); err != nil {
			return nil, fmt.Errorf("parse recorded_at: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func ts(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTS(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}
