// Package store mirrors session snapshots and execution counters into
// an in-memory sqlite database for the inspection endpoints. Nothing
// here outlives the process: the default DSN is ":memory:" and
// snapshot rows are deleted when their session is evicted.
package store

import (
	"database/sql"
	"log"
	"time"

	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

type SnapshotRow struct {
	SessionID string    `json:"session_id"`
	Value     string    `json:"value"`
	Language  string    `json:"language"`
	UpdatedAt time.Time `json:"updated_at"`
}

type ExecutionRow struct {
	SessionID  string    `json:"session_id"`
	Language   string    `json:"language"`
	DurationMS int64     `json:"duration_ms"`
	TimedOut   bool      `json:"timed_out"`
	Errored    bool      `json:"errored"`
	CreatedAt  time.Time `json:"created_at"`
}

func New(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	// A memory-mode database exists per connection; pin the pool to a
	// single connection so every query sees the same database.
	db.SetMaxOpenConns(1)

	if err := createTables(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func createTables(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS snapshots (
		session_id TEXT PRIMARY KEY,
		value TEXT NOT NULL DEFAULT '',
		language TEXT NOT NULL DEFAULT '',
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS executions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		language TEXT NOT NULL,
		duration_ms INTEGER NOT NULL,
		timed_out INTEGER NOT NULL DEFAULT 0,
		errored INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_executions_session ON executions(session_id);
	`
	_, err := db.Exec(schema)
	return err
}

func (s *Store) Close() error {
	return s.db.Close()
}

// SessionCreated implements session.Mirror.
func (s *Store) SessionCreated(id string, createdAt time.Time) {
	_, err := s.db.Exec(
		"INSERT OR IGNORE INTO sessions (id, created_at) VALUES (?, ?)",
		id, createdAt.UTC())
	if err != nil {
		log.Printf("store: failed to record session %s: %v", id, err)
	}
}

// SnapshotSaved implements session.Mirror.
func (s *Store) SnapshotSaved(id, value, language string) {
	_, err := s.db.Exec(`
		INSERT INTO snapshots (session_id, value, language, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(session_id) DO UPDATE SET
			value = excluded.value,
			language = excluded.language,
			updated_at = CURRENT_TIMESTAMP`,
		id, value, language)
	if err != nil {
		log.Printf("store: failed to save snapshot for %s: %v", id, err)
	}
}

// SessionRemoved implements session.Mirror. The snapshot row goes with
// the session so a re-join starts from nothing; the sessions row stays
// as a cumulative counter.
func (s *Store) SessionRemoved(id string) {
	_, err := s.db.Exec("DELETE FROM snapshots WHERE session_id = ?", id)
	if err != nil {
		log.Printf("store: failed to remove snapshot for %s: %v", id, err)
	}
}

func (s *Store) GetSnapshot(id string) (*SnapshotRow, error) {
	row := s.db.QueryRow(
		"SELECT session_id, value, language, updated_at FROM snapshots WHERE session_id = ?", id)

	var snap SnapshotRow
	if err := row.Scan(&snap.SessionID, &snap.Value, &snap.Language, &snap.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &snap, nil
}

// RecordExecution appends one row to the execution log.
func (s *Store) RecordExecution(sessionID, language string, d time.Duration, timedOut, errored bool) {
	_, err := s.db.Exec(`
		INSERT INTO executions (session_id, language, duration_ms, timed_out, errored)
		VALUES (?, ?, ?, ?, ?)`,
		sessionID, language, d.Milliseconds(), boolToInt(timedOut), boolToInt(errored))
	if err != nil {
		log.Printf("store: failed to record execution for %s: %v", sessionID, err)
	}
}

func (s *Store) RecentExecutions(sessionID string, limit int) ([]ExecutionRow, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	rows, err := s.db.Query(`
		SELECT session_id, language, duration_ms, timed_out, errored, created_at
		FROM executions WHERE session_id = ?
		ORDER BY id DESC LIMIT ?`, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ExecutionRow
	for rows.Next() {
		var e ExecutionRow
		var timedOut, errored int
		if err := rows.Scan(&e.SessionID, &e.Language, &e.DurationMS, &timedOut, &errored, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.TimedOut = timedOut != 0
		e.Errored = errored != 0
		out = append(out, e)
	}
	return out, rows.Err()
}

// GetStats returns cumulative process-lifetime counters.
func (s *Store) GetStats() (map[string]int, error) {
	stats := make(map[string]int)

	queries := map[string]string{
		"session_count":   "SELECT COUNT(*) FROM sessions",
		"execution_count": "SELECT COUNT(*) FROM executions",
		"timeout_count":   "SELECT COUNT(*) FROM executions WHERE timed_out = 1",
		"error_count":     "SELECT COUNT(*) FROM executions WHERE errored = 1",
	}
	for key, q := range queries {
		var n int
		if err := s.db.QueryRow(q).Scan(&n); err != nil {
			return nil, err
		}
		stats[key] = n
	}
	return stats, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
