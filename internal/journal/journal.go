// Package journal persists a history of provisioning runs in SQLite so an
// operator can answer "what did the last run do, and when" without scrolling
// terminal history. The journal is an observer: the pipeline never reads it
// back to make decisions, and journal failures must never fail a run.
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

// Store holds the SQLite handle. A single connection avoids write
// conflicts; runs are short-lived and strictly sequential anyway.
type Store struct {
	Path string
	DB   *sql.DB
}

// Run is one recorded pipeline invocation.
type Run struct {
	ID         int64
	Mode       string
	Outcome    string
	StartedAt  time.Time
	FinishedAt time.Time
}

// StageRecord is one executed stage within a run.
type StageRecord struct {
	RunID      int64
	Name       string
	Status     string
	Detail     string
	DurationMS int64
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		mode TEXT NOT NULL,
		outcome TEXT NOT NULL,
		started_at TEXT NOT NULL,
		finished_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS run_stages (
		run_id INTEGER NOT NULL REFERENCES runs(id),
		name TEXT NOT NULL,
		status TEXT NOT NULL,
		detail TEXT,
		duration_ms INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_run_stages_run ON run_stages(run_id)`,
}

// Open connects to the journal database, creating the directory and schema
// as needed.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("journal path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create journal dir: %w", err)
	}
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open journal %s: %w", path, err)
	}
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	if _, err := conn.Exec(`PRAGMA journal_mode = WAL`); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}
	for _, stmt := range schema {
		if _, err := conn.Exec(stmt); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("apply journal schema: %w", err)
		}
	}
	return &Store{Path: path, DB: conn}, nil
}

func (s *Store) Close() error {
	if s == nil || s.DB == nil {
		return nil
	}
	return s.DB.Close()
}

// RecordRun stores a completed run and its stages in one transaction.
func (s *Store) RecordRun(ctx context.Context, run Run, stages []StageRecord) (int64, error) {
	if s == nil || s.DB == nil {
		return 0, errors.New("journal store is nil")
	}
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin journal tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO runs (mode, outcome, started_at, finished_at) VALUES (?, ?, ?, ?)`,
		run.Mode, run.Outcome,
		run.StartedAt.UTC().Format(time.RFC3339Nano),
		run.FinishedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}
	runID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("run id: %w", err)
	}
	for _, st := range stages {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO run_stages (run_id, name, status, detail, duration_ms) VALUES (?, ?, ?, ?, ?)`,
			runID, st.Name, st.Status, st.Detail, st.DurationMS,
		); err != nil {
			return 0, fmt.Errorf("insert stage %s: %w", st.Name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit journal tx: %w", err)
	}
	return runID, nil
}

// LastRun returns the most recent recorded run, or sql.ErrNoRows when the
// journal is empty.
func (s *Store) LastRun(ctx context.Context) (Run, error) {
	if s == nil || s.DB == nil {
		return Run{}, errors.New("journal store is nil")
	}
	row := s.DB.QueryRowContext(ctx,
		`SELECT id, mode, outcome, started_at, finished_at FROM runs ORDER BY id DESC LIMIT 1`)
	var run Run
	var started, finished string
	if err := row.Scan(&run.ID, &run.Mode, &run.Outcome, &started, &finished); err != nil {
		return Run{}, err
	}
	var err error
	if run.StartedAt, err = time.Parse(time.RFC3339Nano, started); err != nil {
		return Run{}, fmt.Errorf("parse started_at: %w", err)
	}
	if run.FinishedAt, err = time.Parse(time.RFC3339Nano, finished); err != nil {
		return Run{}, fmt.Errorf("parse finished_at: %w", err)
	}
	return run, nil
}

// StagesForRun lists the stages recorded for one run, in execution order.
func (s *Store) StagesForRun(ctx context.Context, runID int64) ([]StageRecord, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("journal store is nil")
	}
	rows, err := s.DB.QueryContext(ctx,
		`SELECT run_id, name, status, detail, duration_ms FROM run_stages WHERE run_id = ? ORDER BY rowid ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("list stages: %w", err)
	}
	defer rows.Close()
	var out []StageRecord
	for rows.Next() {
		var st StageRecord
		var detail sql.NullString
		if err := rows.Scan(&st.RunID, &st.Name, &st.Status, &detail, &st.DurationMS); err != nil {
			return nil, fmt.Errorf("scan stage: %w", err)
		}
		st.Detail = detail.String
		out = append(out, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stages: %w", err)
	}
	return out, nil
}
