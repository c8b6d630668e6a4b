// Package worklog persists per-scenario run state in a SQLite database so an
// interrupted batch can be inspected and resumed. The database keeps the
// original pipeline's work_status name and status vocabulary.
package worklog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Statuses a scenario moves through. Scheduled and complete match the states
// the pipeline's own ledger used; failed replaces its free-form exception text.
const (
	StatusScheduled = "scheduled"
	StatusRunning   = "running"
	StatusComplete  = "complete"
	StatusFailed    = "failed"
)

const schema = `
CREATE TABLE IF NOT EXISTS work_status (
	scenario_id TEXT PRIMARY KEY,
	status TEXT NOT NULL,
	exit_code INTEGER,
	started_at INTEGER,
	finished_at INTEGER
);
`

// DB is a SQLite-backed run ledger.
type DB struct {
	sqlDB *sql.DB
}

// Progress summarizes the ledger by status.
type Progress struct {
	Scheduled int `json:"scheduled"`
	Running   int `json:"running"`
	Complete  int `json:"complete"`
	Failed    int `json:"failed"`
}

// Open opens (creating if needed) the ledger at path and bootstraps the schema.
func Open(path string) (*DB, error) {
	if path == "" {
		return nil, fmt.Errorf("worklog path is required")
	}
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open worklog db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping worklog db: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("create work_status schema: %w", err)
	}
	return &DB{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (db *DB) Close() error {
	if db == nil || db.sqlDB == nil {
		return nil
	}
	return db.sqlDB.Close()
}

// Schedule inserts the given scenario ids as scheduled. Ids already present
// keep whatever status they had, matching the INSERT OR IGNORE idiom of the
// pipeline's own scheduler.
func (db *DB) Schedule(ctx context.Context, scenarioIDs []string) error {
	const stmt = `INSERT OR IGNORE INTO work_status(scenario_id, status) VALUES(?, ?);`
	for _, id := range scenarioIDs {
		if _, err := db.sqlDB.ExecContext(ctx, stmt, id, StatusScheduled); err != nil {
			return fmt.Errorf("schedule scenario %q: %w", id, err)
		}
	}
	return nil
}

// MarkRunning records that a scenario invocation started.
func (db *DB) MarkRunning(ctx context.Context, scenarioID string) error {
	const stmt = `
		UPDATE work_status
		SET status=?, exit_code=NULL, started_at=?, finished_at=NULL
		WHERE scenario_id=?;`
	if _, err := db.sqlDB.ExecContext(ctx, stmt, StatusRunning, nowMillis(), scenarioID); err != nil {
		return fmt.Errorf("mark scenario %q running: %w", scenarioID, err)
	}
	return nil
}

// MarkComplete records a successful invocation.
func (db *DB) MarkComplete(ctx context.Context, scenarioID string) error {
	return db.finish(ctx, scenarioID, StatusComplete, 0)
}

// MarkFailed records a failed invocation and its exit code.
func (db *DB) MarkFailed(ctx context.Context, scenarioID string, exitCode int) error {
	return db.finish(ctx, scenarioID, StatusFailed, exitCode)
}

func (db *DB) finish(ctx context.Context, scenarioID, status string, exitCode int) error {
	const stmt = `
		UPDATE work_status
		SET status=?, exit_code=?, finished_at=?
		WHERE scenario_id=?;`
	if _, err := db.sqlDB.ExecContext(ctx, stmt, status, exitCode, nowMillis(), scenarioID); err != nil {
		return fmt.Errorf("mark scenario %q %s: %w", scenarioID, status, err)
	}
	return nil
}

// Progress returns the count of scenarios per status.
func (db *DB) Progress(ctx context.Context) (Progress, error) {
	const query = `SELECT status, count(1) FROM work_status GROUP BY status;`
	rows, err := db.sqlDB.QueryContext(ctx, query)
	if err != nil {
		return Progress{}, fmt.Errorf("query progress: %w", err)
	}
	defer rows.Close()

	var p Progress
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return Progress{}, fmt.Errorf("scan progress row: %w", err)
		}
		switch status {
		case StatusScheduled:
			p.Scheduled = count
		case StatusRunning:
			p.Running = count
		case StatusComplete:
			p.Complete = count
		case StatusFailed:
			p.Failed = count
		}
	}
	return p, rows.Err()
}

// Failed returns the ids of scenarios recorded as failed, ordered by id.
func (db *DB) Failed(ctx context.Context) ([]string, error) {
	const query = `SELECT scenario_id FROM work_status WHERE status=? ORDER BY scenario_id;`
	rows, err := db.sqlDB.QueryContext(ctx, query, StatusFailed)
	if err != nil {
		return nil, fmt.Errorf("query failed scenarios: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan failed scenario row: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Status returns the recorded status for one scenario.
func (db *DB) Status(ctx context.Context, scenarioID string) (string, error) {
	const query = `SELECT status FROM work_status WHERE scenario_id=?;`
	var status string
	err := db.sqlDB.QueryRowContext(ctx, query, scenarioID).Scan(&status)
	if err != nil {
		return "", fmt.Errorf("query status for %q: %w", scenarioID, err)
	}
	return status, nil
}

func nowMillis() int64 {
	return time.Now().UTC().UnixMilli()
}
