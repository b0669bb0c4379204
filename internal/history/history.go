// Package history persists an optional, purely diagnostic record of past
// build runs to a SQLite database: single-connection discipline, WAL
// mode, an embedded schema, and append-only writes inside a transaction.
//
// This is run history, not build metadata: incremental rebuild decisions
// never consult it. A missing or corrupt history.db never changes a
// build's outcome, only what `kiln info --history` can show about the
// past.
package history

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/kiln-build/kiln/internal/action"
	"github.com/kiln-build/kiln/internal/target"
)

//go:embed schema.sql
var schemaSQL string

// Store is a single-connection handle onto the history database. It
// disciplines itself to one *sql.DB with MaxOpenConns(1) so SQLite's
// single-writer model never races.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the history database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying connection.
func (s *Store) Close() error { return s.db.Close() }

// Run is one build invocation's history handle.
type Run struct {
	store *Store
	id    int64
	seq   int64
}

// BeginRun records the start of a new run and returns a handle for
// recording target events against it.
func (s *Store) BeginRun(ctx context.Context, runUUID string, a action.ID) (*Run, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO runs(run_uuid, action, started_at) VALUES (?, ?, ?)`,
		runUUID, a.String(), time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return nil, fmt.Errorf("begin run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &Run{store: s, id: id}, nil
}

// RecordTarget appends a target_events row for t's current state.
func (r *Run) RecordTarget(ctx context.Context, targetKey string, a action.ID, state target.State, detail string) error {
	r.seq++
	_, err := r.store.db.ExecContext(ctx,
		`INSERT INTO target_events(run_id, seq, target_key, action, state, detail) VALUES (?, ?, ?, ?, ?, ?)`,
		r.id, r.seq, targetKey, a.String(), state.String(), detail)
	if err != nil {
		return fmt.Errorf("record target event: %w", err)
	}
	return nil
}

// End records the run's terminal timestamp and outcome.
func (r *Run) End(ctx context.Context, ok bool) error {
	_, err := r.store.db.ExecContext(ctx,
		`UPDATE runs SET ended_at = ?, ok = ? WHERE id = ?`,
		time.Now().UTC().Format(time.RFC3339Nano), ok, r.id)
	if err != nil {
		return fmt.Errorf("end run: %w", err)
	}
	return nil
}

// TargetEvent is one row of recorded history, returned by queries.
type TargetEvent struct {
	RunUUID   string
	Seq       int64
	TargetKey string
	Action    string
	State     string
	Detail    string
}

// EventsForTarget returns every recorded event for targetKey across all
// runs, ordered by run start time then sequence — every query here
// carries a deterministic ORDER BY so results never depend on SQLite's
// incidental row order.
func (s *Store) EventsForTarget(ctx context.Context, targetKey string) ([]TargetEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.run_uuid, e.seq, e.target_key, e.action, e.state, e.detail
		FROM target_events e
		JOIN runs r ON r.id = e.run_id
		WHERE e.target_key = ?
		ORDER BY r.started_at ASC, e.seq ASC`, targetKey)
	if err != nil {
		return nil, fmt.Errorf("query target events: %w", err)
	}
	defer rows.Close()

	var out []TargetEvent
	for rows.Next() {
		var ev TargetEvent
		var detail sql.NullString
		if err := rows.Scan(&ev.RunUUID, &ev.Seq, &ev.TargetKey, &ev.Action, &ev.State, &detail); err != nil {
			return nil, err
		}
		ev.Detail = detail.String
		out = append(out, ev)
	}
	return out, rows.Err()
}
