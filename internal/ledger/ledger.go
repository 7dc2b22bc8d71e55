// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ledger records pipeline runs and per-chunk outcomes in SQLite.
// Implements: docs/ARCHITECTURE § Run Ledger.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/pdfsplit/pkg/types"
)

// DefaultFile is the ledger database name used when no path is configured.
const DefaultFile = "pdfsplit.db"

// timeLayout keeps stored timestamps fixed-width so they sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Run statuses.
const (
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// Chunk phase statuses.
const (
	ChunkPending = "pending"
	ChunkOK      = "ok"
	ChunkFailed  = "failed"
)

// Run is one invocation of the pipeline.
type Run struct {
	ID         string
	Source     string
	Pages      int
	Strategy   string
	Chunks     int
	Status     string
	Error      string
	StartedAt  time.Time
	FinishedAt time.Time
}

// Chunk is the ledger row of one planned chunk.
type Chunk struct {
	Index         int
	Start         int
	End           int
	Overlap       int
	WriteStatus   string
	ConvertStatus string
	WorkerID      string
	Error         string
	Duration      time.Duration
}

// Store manages the ledger database.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens or creates the ledger at path and creates the schema if it
// does not exist.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating ledger directory: %w", err)
	}
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening ledger: %w", err)
	}
	s := &Store{db: db, now: time.Now}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			source TEXT NOT NULL,
			pages INTEGER NOT NULL DEFAULT 0,
			strategy TEXT NOT NULL DEFAULT '',
			chunks INTEGER NOT NULL DEFAULT 0,
			status TEXT NOT NULL,
			error TEXT NOT NULL DEFAULT '',
			started_at TEXT NOT NULL,
			finished_at TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS chunks (
			run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			idx INTEGER NOT NULL,
			start_page INTEGER NOT NULL,
			end_page INTEGER NOT NULL,
			overlap INTEGER NOT NULL,
			title TEXT NOT NULL DEFAULT '',
			write_status TEXT NOT NULL,
			convert_status TEXT NOT NULL,
			worker_id TEXT NOT NULL DEFAULT '',
			error TEXT NOT NULL DEFAULT '',
			duration_ms INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (run_id, idx)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// BeginRun inserts a running run for source and returns its ID.
func (s *Store) BeginRun(ctx context.Context, source string) (string, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, source, status, started_at) VALUES (?, ?, ?, ?)`,
		id, source, StatusRunning, s.timestamp(),
	)
	if err != nil {
		return "", fmt.Errorf("inserting run: %w", err)
	}
	return id, nil
}

// RecordPlan stores the plan of a run and one pending row per chunk.
func (s *Store) RecordPlan(ctx context.Context, runID string, plan types.Plan) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`UPDATE runs SET pages = ?, strategy = ?, chunks = ? WHERE id = ?`,
		plan.Pages, string(plan.Strategy), len(plan.Specs), runID,
	); err != nil {
		return fmt.Errorf("updating run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO chunks (run_id, idx, start_page, end_page, overlap, title, write_status, convert_status)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, c := range plan.Specs {
		if _, err := stmt.ExecContext(ctx,
			runID, c.Index, c.Start, c.End, c.Overlap, c.Title, ChunkPending, ChunkPending,
		); err != nil {
			return fmt.Errorf("inserting chunk %d: %w", c.Index, err)
		}
	}
	return tx.Commit()
}

// RecordWrites marks written chunks ok and failed ones with their error.
func (s *Store) RecordWrites(ctx context.Context, runID string, files []types.ChunkFile, failed types.ChunkWriteErrors) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, f := range files {
		if _, err := tx.ExecContext(ctx,
			`UPDATE chunks SET write_status = ? WHERE run_id = ? AND idx = ?`,
			ChunkOK, runID, f.Spec.Index,
		); err != nil {
			return fmt.Errorf("updating chunk %d: %w", f.Spec.Index, err)
		}
	}
	for _, e := range failed {
		if _, err := tx.ExecContext(ctx,
			`UPDATE chunks SET write_status = ?, error = ? WHERE run_id = ? AND idx = ?`,
			ChunkFailed, e.Err.Error(), runID, e.Index,
		); err != nil {
			return fmt.Errorf("updating chunk %d: %w", e.Index, err)
		}
	}
	return tx.Commit()
}

// RecordConversions stores the outcome of every conversion result.
func (s *Store) RecordConversions(ctx context.Context, runID string, results []types.ConversionResult) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`UPDATE chunks SET convert_status = ?, worker_id = ?, error = ?, duration_ms = ?
		 WHERE run_id = ? AND idx = ?`)
	if err != nil {
		return fmt.Errorf("preparing update: %w", err)
	}
	defer stmt.Close()

	for _, r := range results {
		status, msg := ChunkOK, ""
		if !r.OK() {
			status = ChunkFailed
			if r.Err != nil {
				msg = r.Err.Reason()
			}
		}
		if _, err := stmt.ExecContext(ctx,
			status, r.WorkerID, msg, r.Duration.Milliseconds(), runID, r.Spec.Index,
		); err != nil {
			return fmt.Errorf("updating chunk %d: %w", r.Spec.Index, err)
		}
	}
	return tx.Commit()
}

// FinishRun closes a run. A nil runErr marks it succeeded.
func (s *Store) FinishRun(ctx context.Context, runID string, runErr error) error {
	status, msg := StatusSucceeded, ""
	if runErr != nil {
		status, msg = StatusFailed, runErr.Error()
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, error = ?, finished_at = ? WHERE id = ?`,
		status, msg, s.timestamp(), runID,
	)
	if err != nil {
		return fmt.Errorf("finishing run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("finishing run: unknown run %s", runID)
	}
	return nil
}

// Runs returns the most recent runs, newest first. A limit of zero or
// less returns all runs.
func (s *Store) Runs(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT id, source, pages, strategy, chunks, status, error, started_at, finished_at
		FROM runs ORDER BY started_at DESC, rowid DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var started, finished string
		if err := rows.Scan(&r.ID, &r.Source, &r.Pages, &r.Strategy, &r.Chunks,
			&r.Status, &r.Error, &started, &finished); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		r.StartedAt = parseTime(started)
		r.FinishedAt = parseTime(finished)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Run returns a single run by ID.
func (s *Store) Run(ctx context.Context, id string) (Run, error) {
	var r Run
	var started, finished string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, source, pages, strategy, chunks, status, error, started_at, finished_at
		 FROM runs WHERE id = ?`, id,
	).Scan(&r.ID, &r.Source, &r.Pages, &r.Strategy, &r.Chunks, &r.Status, &r.Error, &started, &finished)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("run %s not found", id)
	}
	if err != nil {
		return Run{}, fmt.Errorf("querying run: %w", err)
	}
	r.StartedAt = parseTime(started)
	r.FinishedAt = parseTime(finished)
	return r, nil
}

// Chunks returns the chunk rows of a run in index order.
func (s *Store) Chunks(ctx context.Context, runID string) ([]Chunk, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT idx, start_page, end_page, overlap, write_status, convert_status, worker_id, error, duration_ms
		 FROM chunks WHERE run_id = ? ORDER BY idx`, runID)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	var chunks []Chunk
	for rows.Next() {
		var c Chunk
		var ms int64
		if err := rows.Scan(&c.Index, &c.Start, &c.End, &c.Overlap, &c.WriteStatus,
			&c.ConvertStatus, &c.WorkerID, &c.Error, &ms); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		c.Duration = time.Duration(ms) * time.Millisecond
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

func (s *Store) timestamp() string {
	return s.now().UTC().Format(timeLayout)
}

func parseTime(v string) time.Time {
	t, err := time.Parse(timeLayout, v)
	if err != nil {
		return time.Time{}
	}
	return t
}
