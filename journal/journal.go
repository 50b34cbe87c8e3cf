// Package journal persists session transcripts to SQLite.
//
// A Journal implements session.Recorder: every appended turn and every
// clear is written as one row keyed by session id. Journals are an audit
// trail only and are never replayed into a live session.
package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	// SQLite driver registration.
	_ "github.com/mattn/go-sqlite3"

	"github.com/tailored-agentic-units/terminus/core/protocol"
	"github.com/tailored-agentic-units/terminus/observability"
)

// EventError is emitted when a turn or clear cannot be recorded. Recording
// failures never interrupt the conversation.
const EventError observability.EventType = "journal.error"

// ErrSessionNotFound is returned by Transcript for an unknown session id.
var ErrSessionNotFound = errors.New("session not found")

const clearKind = "clear"

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id         TEXT PRIMARY KEY,
	started_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS entries (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id  TEXT NOT NULL REFERENCES sessions(id),
	seq         INTEGER NOT NULL,
	kind        TEXT NOT NULL,
	payload     TEXT,
	recorded_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_entries_session ON entries(session_id, id);
CREATE INDEX IF NOT EXISTS idx_sessions_updated ON sessions(updated_at DESC);
`

// Journal is a SQLite-backed transcript store. Safe for concurrent use.
type Journal struct {
	db       *sql.DB
	observer observability.Observer
}

// Option configures a Journal.
type Option func(*Journal)

// WithObserver sets the observer that receives recording failures.
func WithObserver(o observability.Observer) Option {
	return func(j *Journal) { j.observer = o }
}

// Open opens or creates the journal database at path, creating parent
// directories as needed.
func Open(path string, opts ...Option) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create journal directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize journal: %w", err)
	}

	j := &Journal{db: db}
	for _, opt := range opts {
		opt(j)
	}
	return j, nil
}

// Close releases the database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// RecordTurn appends a turn to the session's transcript.
func (j *Journal) RecordTurn(sessionID string, turn protocol.Turn) {
	payload, err := json.Marshal(turn)
	if err != nil {
		j.fail(sessionID, "record turn", err)
		return
	}
	if err := j.insert(sessionID, turn.Seq, string(turn.Kind), string(payload), turn.Time); err != nil {
		j.fail(sessionID, "record turn", err)
	}
}

// RecordClear marks the point where the session's history was cleared.
func (j *Journal) RecordClear(sessionID string) {
	if err := j.insert(sessionID, 0, clearKind, "", time.Now()); err != nil {
		j.fail(sessionID, "record clear", err)
	}
}

func (j *Journal) insert(sessionID string, seq int, kind, payload string, at time.Time) error {
	if at.IsZero() {
		at = time.Now()
	}
	stamp := at.UnixNano()

	tx, err := j.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`INSERT INTO sessions (id, started_at, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET updated_at = excluded.updated_at`,
		sessionID, stamp, stamp,
	); err != nil {
		return err
	}
	if _, err := tx.Exec(
		`INSERT INTO entries (session_id, seq, kind, payload, recorded_at) VALUES (?, ?, ?, ?, ?)`,
		sessionID, seq, kind, payload, stamp,
	); err != nil {
		return err
	}
	return tx.Commit()
}

func (j *Journal) fail(sessionID, op string, err error) {
	observability.Emit(context.Background(), j.observer, observability.Event{
		Type:      EventError,
		Level:     observability.LevelWarning,
		Source:    "journal",
		SessionID: sessionID,
		Data:      map[string]any{"op": op, "error": err.Error()},
	})
}

// Summary describes one recorded session.
type Summary struct {
	ID      string
	Started time.Time
	Updated time.Time
	Turns   int
	Clears  int
}

// Sessions lists recorded sessions, most recently updated first.
func (j *Journal) Sessions(ctx context.Context) ([]Summary, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT s.id, s.started_at, s.updated_at,
		       COALESCE(SUM(CASE WHEN e.kind != 'clear' THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN e.kind = 'clear' THEN 1 ELSE 0 END), 0)
		FROM sessions s LEFT JOIN entries e ON e.session_id = s.id
		GROUP BY s.id
		ORDER BY s.updated_at DESC, s.id`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var (
			s                Summary
			started, updated int64
		)
		if err := rows.Scan(&s.ID, &started, &updated, &s.Turns, &s.Clears); err != nil {
			return nil, fmt.Errorf("list sessions: %w", err)
		}
		s.Started = time.Unix(0, started)
		s.Updated = time.Unix(0, updated)
		out = append(out, s)
	}
	return out, rows.Err()
}

// Entry is one transcript row: either a turn or a clear marker.
type Entry struct {
	Clear bool
	Turn  protocol.Turn
	Time  time.Time
}

// Transcript returns a session's entries in recording order.
func (j *Journal) Transcript(ctx context.Context, sessionID string) ([]Entry, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT kind, payload, recorded_at FROM entries WHERE session_id = ? ORDER BY id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("read transcript: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			kind    string
			payload sql.NullString
			stamp   int64
		)
		if err := rows.Scan(&kind, &payload, &stamp); err != nil {
			return nil, fmt.Errorf("read transcript: %w", err)
		}

		e := Entry{Time: time.Unix(0, stamp)}
		if kind == clearKind {
			e.Clear = true
		} else if err := json.Unmarshal([]byte(payload.String), &e.Turn); err != nil {
			return nil, fmt.Errorf("decode turn: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	return out, nil
}
