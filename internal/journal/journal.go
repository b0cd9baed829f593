// Package journal provides SQLite-backed run history: every sync run and its
// per-file outcomes are recorded so they can be inspected later.
package journal

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/stenmark/docbridge/internal/engine"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS runs (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	started_at  DATETIME NOT NULL,
	finished_at DATETIME NOT NULL,
	mode        TEXT NOT NULL,
	strategy    TEXT NOT NULL,
	dry_run     INTEGER NOT NULL DEFAULT 0,
	created     INTEGER NOT NULL DEFAULT 0,
	updated     INTEGER NOT NULL DEFAULT 0,
	skipped     INTEGER NOT NULL DEFAULT 0,
	conflicts   INTEGER NOT NULL DEFAULT 0,
	failed      INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS outcomes (
	run_id     INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	path       TEXT NOT NULL,
	status     TEXT NOT NULL,
	page_id    TEXT NOT NULL DEFAULT '',
	reason     TEXT NOT NULL DEFAULT '',
	error_kind TEXT NOT NULL DEFAULT '',
	message    TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_outcomes_run ON outcomes(run_id);
`

// DB wraps a sql.DB with journal-specific operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("journal: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("journal: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("journal: apply schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// RunRow is one recorded run with its outcome tallies.
type RunRow struct {
	ID         int64     `json:"id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Mode       string    `json:"mode"`
	Strategy   string    `json:"strategy"`
	DryRun     bool      `json:"dry_run"`
	Created    int       `json:"created"`
	Updated    int       `json:"updated"`
	Skipped    int       `json:"skipped"`
	Conflicts  int       `json:"conflicts"`
	Failed     int       `json:"failed"`
}

// RecordRun persists a finished run and all its outcomes in one transaction,
// returning the new run id.
func (db *DB) RecordRun(r *engine.Report) (int64, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return 0, fmt.Errorf("journal: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	res, err := tx.Exec(`
		INSERT INTO runs (started_at, finished_at, mode, strategy, dry_run,
			created, updated, skipped, conflicts, failed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.StartedAt, r.FinishedAt, r.Mode, r.Strategy, r.DryRun,
		r.Count(engine.StatusCreated), r.Count(engine.StatusUpdated),
		r.Count(engine.StatusSkipped), r.Count(engine.StatusConflict),
		r.Count(engine.StatusFailed))
	if err != nil {
		return 0, fmt.Errorf("journal: insert run: %w", err)
	}
	runID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("journal: run id: %w", err)
	}

	if len(r.Outcomes) > 0 {
		stmt, err := tx.Prepare(`
			INSERT INTO outcomes (run_id, path, status, page_id, reason, error_kind, message)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return 0, fmt.Errorf("journal: prepare outcome insert: %w", err)
		}
		defer stmt.Close()
		for _, o := range r.Outcomes {
			if _, err := stmt.Exec(runID, o.Path, string(o.Status), o.PageID, o.Reason, o.ErrorKind, o.Message); err != nil {
				return 0, fmt.Errorf("journal: insert outcome: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("journal: commit: %w", err)
	}
	return runID, nil
}

// RecentRuns returns up to limit runs, newest first.
func (db *DB) RecentRuns(limit int) ([]RunRow, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.Query(`
		SELECT id, started_at, finished_at, mode, strategy, dry_run,
			created, updated, skipped, conflicts, failed
		FROM runs ORDER BY id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("journal: list runs: %w", err)
	}
	defer rows.Close()

	var out []RunRow
	for rows.Next() {
		var r RunRow
		if err := rows.Scan(&r.ID, &r.StartedAt, &r.FinishedAt, &r.Mode, &r.Strategy,
			&r.DryRun, &r.Created, &r.Updated, &r.Skipped, &r.Conflicts, &r.Failed); err != nil {
			return nil, fmt.Errorf("journal: scan run: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// RunOutcomes returns the per-file outcomes of one run in insertion order.
func (db *DB) RunOutcomes(runID int64) ([]engine.Outcome, error) {
	rows, err := db.conn.Query(`
		SELECT path, status, page_id, reason, error_kind, message
		FROM outcomes WHERE run_id = ? ORDER BY rowid
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("journal: list outcomes: %w", err)
	}
	defer rows.Close()

	var out []engine.Outcome
	for rows.Next() {
		var o engine.Outcome
		var status string
		if err := rows.Scan(&o.Path, &status, &o.PageID, &o.Reason, &o.ErrorKind, &o.Message); err != nil {
			return nil, fmt.Errorf("journal: scan outcome: %w", err)
		}
		o.Status = engine.Status(status)
		out = append(out, o)
	}
	return out, rows.Err()
}
