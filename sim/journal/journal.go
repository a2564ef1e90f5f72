// Package journal persists simulation traces to sqlite so runs can be
// inspected after the process exits. Events go in append-only; snapshots
// are free-form JSON blobs keyed by kind (metrics, pool stats).
package journal

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hospital-sim/hospital-sim/sim/trace"
)

const timeFormat = time.RFC3339

// Repository wraps one sqlite database file. Use ":memory:" for tests.
type Repository struct {
	db *sql.DB
}

// Open creates or opens the database and ensures the schema exists.
func Open(path string) (*Repository, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("journal: open %s: %w", path, err)
	}
	r := &Repository{db: db}
	if err := r.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return r, nil
}

func (r *Repository) initSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS events (
        id TEXT PRIMARY KEY,
        ts TEXT NOT NULL,
        type TEXT NOT NULL,
        payload_json TEXT NOT NULL
    );
    CREATE TABLE IF NOT EXISTS snapshots (
        ts TEXT NOT NULL,
        kind TEXT NOT NULL,
        body_json TEXT NOT NULL
    );`
	if _, err := r.db.Exec(schema); err != nil {
		return fmt.Errorf("journal: init schema: %w", err)
	}
	return nil
}

// PersistEvents writes a batch of trace events in one transaction.
func (r *Repository) PersistEvents(events []trace.Event) error {
	if len(events) == 0 {
		return nil
	}
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("journal: begin: %w", err)
	}
	stmt, err := tx.Prepare(`INSERT OR IGNORE INTO events (id, ts, type, payload_json) VALUES (?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("journal: prepare: %w", err)
	}
	defer stmt.Close()

	for _, ev := range events {
		payload, err := json.Marshal(ev.Payload)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("journal: marshal event %s: %w", ev.ID, err)
		}
		if _, err := stmt.Exec(ev.ID, ev.Timestamp.UTC().Format(timeFormat), ev.Type, string(payload)); err != nil {
			tx.Rollback()
			return fmt.Errorf("journal: insert event %s: %w", ev.ID, err)
		}
	}
	return tx.Commit()
}

// LoadEvents reads back all persisted events in timestamp order.
func (r *Repository) LoadEvents() ([]trace.Event, error) {
	rows, err := r.db.Query(`SELECT id, ts, type, payload_json FROM events ORDER BY ts, id`)
	if err != nil {
		return nil, fmt.Errorf("journal: query events: %w", err)
	}
	defer rows.Close()

	var events []trace.Event
	for rows.Next() {
		var (
			ev      trace.Event
			tsText  string
			payload string
		)
		if err := rows.Scan(&ev.ID, &tsText, &ev.Type, &payload); err != nil {
			return nil, fmt.Errorf("journal: scan event: %w", err)
		}
		ts, err := time.Parse(timeFormat, tsText)
		if err != nil {
			return nil, fmt.Errorf("journal: parse ts %q: %w", tsText, err)
		}
		ev.Timestamp = ts
		if err := json.Unmarshal([]byte(payload), &ev.Payload); err != nil {
			return nil, fmt.Errorf("journal: unmarshal payload for %s: %w", ev.ID, err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// PersistSnapshot stores one free-form report under a kind tag.
func (r *Repository) PersistSnapshot(ts time.Time, kind string, body any) error {
	blob, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("journal: marshal snapshot %s: %w", kind, err)
	}
	_, err = r.db.Exec(`INSERT INTO snapshots (ts, kind, body_json) VALUES (?, ?, ?)`,
		ts.UTC().Format(timeFormat), kind, string(blob))
	if err != nil {
		return fmt.Errorf("journal: insert snapshot %s: %w", kind, err)
	}
	return nil
}

// LoadSnapshots returns the raw JSON bodies stored under a kind, oldest
// first.
func (r *Repository) LoadSnapshots(kind string) ([]string, error) {
	rows, err := r.db.Query(`SELECT body_json FROM snapshots WHERE kind = ? ORDER BY ts`, kind)
	if err != nil {
		return nil, fmt.Errorf("journal: query snapshots: %w", err)
	}
	defer rows.Close()

	var bodies []string
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("journal: scan snapshot: %w", err)
		}
		bodies = append(bodies, body)
	}
	return bodies, rows.Err()
}

// Close releases the underlying database handle.
func (r *Repository) Close() error {
	return r.db.Close()
}
