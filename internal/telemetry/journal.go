// internal/telemetry/journal.go
package telemetry

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Journal is the SQLite audit trail of output lines, alarms and pool
// transitions.
type Journal struct {
	db *sql.DB
}

// Entry is one journal row.
type Entry struct {
	ID      string
	RunID   string
	At      time.Time
	Type    RecordType
	Event   uint16
	Message string
}

// OpenJournal opens (or creates) the database and runs migrations.
func OpenJournal(path string) (*Journal, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("journal: create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL")
	if err != nil {
		return nil, fmt.Errorf("journal: open: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	j := &Journal{db: db}
	if err := j.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("journal: migrate: %w", err)
	}
	return j, nil
}

func (j *Journal) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		device TEXT NOT NULL,
		started_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS entries (
		id TEXT PRIMARY KEY,
		run_id TEXT NOT NULL,
		at DATETIME NOT NULL,
		type TEXT NOT NULL,
		event INTEGER NOT NULL DEFAULT 0,
		message TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_entries_at ON entries(at);
	CREATE INDEX IF NOT EXISTS idx_entries_run_id ON entries(run_id);
	`
	_, err := j.db.Exec(schema)
	return err
}

// StartRun records one controller start.
func (j *Journal) StartRun(ctx context.Context, runID, device string) error {
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO runs (id, device, started_at) VALUES (?, ?, ?)`,
		runID, device, time.Now().UTC())
	return err
}

func (j *Journal) Name() string { return "journal" }

// Deliver stores lines, alarms, rejections and pool transitions. Other
// record types are ignored.
func (j *Journal) Deliver(ctx context.Context, r Record) error {
	var msg string
	switch r.Type {
	case TypeLine:
		msg = r.Line
	case TypeAlarm, TypeSuspend:
		msg = r.Message
	case TypeResume:
		msg = "pool resumed"
	case TypeReject:
		msg = "pulse rejected"
	default:
		return nil
	}

	at := r.At
	if at.IsZero() {
		at = time.Now()
	}

	_, err := j.db.ExecContext(ctx,
		`INSERT INTO entries (id, run_id, at, type, event, message) VALUES (?, ?, ?, ?, ?, ?)`,
		uuid.New().String(), r.RunID, at.UTC(), string(r.Type), int64(r.Event), msg)
	return err
}

// Recent returns up to limit entries, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, run_id, at, type, event, message FROM entries ORDER BY at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var typ string
		var event int64
		if err := rows.Scan(&e.ID, &e.RunID, &e.At, &typ, &event, &e.Message); err != nil {
			return nil, err
		}
		e.Type = RecordType(typ)
		e.Event = uint16(event)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (j *Journal) Close() error { return j.db.Close() }
