package storage

import (
	"database/sql"
	"fmt"
	"time"
)

// DB is the update-run journal backed by SQLite
type DB struct {
	db *sql.DB
}

// Open opens or creates a SQLite database. ":memory:" gives a private
// in-memory journal.
func Open(path string) (*DB, error) {
	db, err := sql.Open(DriverName, path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// One connection: every :memory: connection is its own database and
	// SQLite serializes writers anyway
	db.SetMaxOpenConns(1)

	if path != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enable WAL: %w", err)
		}
	}

	storage := &DB{db: db}

	if err := storage.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return storage, nil
}

// Close closes the database
func (d *DB) Close() error {
	return d.db.Close()
}

// initSchema creates tables if they don't exist
func (d *DB) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		started_at INTEGER NOT NULL,
		finished_at INTEGER NOT NULL,
		head TEXT NOT NULL DEFAULT '',
		generation TEXT NOT NULL DEFAULT '',
		commits INTEGER NOT NULL DEFAULT 0,
		documents INTEGER NOT NULL DEFAULT 0,
		added INTEGER NOT NULL DEFAULT 0,
		changed INTEGER NOT NULL DEFAULT 0,
		removed INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL,
		error_kind TEXT NOT NULL DEFAULT '',
		error TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
	CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
	`

	_, err := d.db.Exec(schema)
	return err
}

const runColumns = `id, started_at, finished_at, head, generation, commits, documents,
	added, changed, removed, status, error_kind, error`

// RecordRun inserts or replaces a run
func (d *DB) RecordRun(run *Run) error {
	query := `
	INSERT INTO runs (` + runColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		started_at = excluded.started_at,
		finished_at = excluded.finished_at,
		head = excluded.head,
		generation = excluded.generation,
		commits = excluded.commits,
		documents = excluded.documents,
		added = excluded.added,
		changed = excluded.changed,
		removed = excluded.removed,
		status = excluded.status,
		error_kind = excluded.error_kind,
		error = excluded.error
	`

	_, err := d.db.Exec(query,
		run.ID, run.StartedAt.UnixMilli(), run.FinishedAt.UnixMilli(), run.Head, run.Generation,
		run.Commits, run.Documents, run.Added, run.Changed, run.Removed,
		run.Status, run.ErrorKind, run.Error,
	)
	if err != nil {
		return fmt.Errorf("record run %s: %w", run.ID, err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	run := &Run{}
	var started, finished int64
	err := row.Scan(
		&run.ID, &started, &finished, &run.Head, &run.Generation,
		&run.Commits, &run.Documents, &run.Added, &run.Changed, &run.Removed,
		&run.Status, &run.ErrorKind, &run.Error,
	)
	if err != nil {
		return nil, err
	}
	run.StartedAt = time.UnixMilli(started)
	run.FinishedAt = time.UnixMilli(finished)
	return run, nil
}

// ListRuns returns the most recent runs, newest first. limit <= 0 returns all.
func (d *DB) ListRuns(limit int) ([]*Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY started_at DESC, id DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	return runs, rows.Err()
}

// LastSuccess returns the newest successful run, or nil if there is none
func (d *DB) LastSuccess() (*Run, error) {
	row := d.db.QueryRow(`SELECT `+runColumns+` FROM runs WHERE status = ? ORDER BY started_at DESC LIMIT 1`, StatusOK)
	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return run, err
}

// Count returns the total number of recorded runs
func (d *DB) Count() (int, error) {
	var count int
	err := d.db.QueryRow("SELECT COUNT(*) FROM runs").Scan(&count)
	return count, err
}
