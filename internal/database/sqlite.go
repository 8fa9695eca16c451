package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"ingester-go/internal/database/migrations"
	"ingester-go/internal/ingest"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

const (
	RunStatusRunning = "running"
	RunStatusSuccess = "success"
	RunStatusError   = "error"
)

// Run is one CLI invocation that touched the vault.
type Run struct {
	ID         int64
	Operation  string
	Parameters string
	Status     string
	StartedAt  time.Time
	FinishedAt sql.NullTime
}

// SQLiteLedger records runs and the artifacts they wrote.
type SQLiteLedger struct {
	db    *sql.DB
	path  string
	clock ingest.Clock
}

// NewSQLiteLedger opens the database at path (or ":memory:") and migrates it
// to the latest schema.
func NewSQLiteLedger(path string, clock ingest.Clock) (*SQLiteLedger, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	if err := migrations.Up(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating %s: %w", path, err)
	}
	if clock == nil {
		clock = ingest.RealClock{}
	}
	return &SQLiteLedger{db: db, path: path, clock: clock}, nil
}

// OpenConnection opens and configures a SQLite database connection with appropriate PRAGMAs.
// path can be a file path or ":memory:" for in-memory database.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Every pooled connection to :memory: would see its own empty database.
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}
	return db, nil
}

// CheckMigrations reports whether the schema is at the latest version.
func (s *SQLiteLedger) CheckMigrations() error {
	return migrations.Check(s.db)
}

// Run operations

func (s *SQLiteLedger) CreateRun(operation, parameters string) (*Run, error) {
	run := &Run{
		Operation:  operation,
		Parameters: parameters,
		Status:     RunStatusRunning,
		StartedAt:  s.clock.Now().UTC(),
	}
	res, err := s.db.ExecContext(context.Background(),
		`INSERT INTO runs (operation, parameters, status, started_at) VALUES (?, ?, ?, ?)`,
		run.Operation, run.Parameters, run.Status, run.StartedAt)
	if err != nil {
		return nil, fmt.Errorf("creating run: %w", err)
	}
	if run.ID, err = res.LastInsertId(); err != nil {
		return nil, fmt.Errorf("creating run: %w", err)
	}
	return run, nil
}

func (s *SQLiteLedger) FinishRun(id int64, status string) error {
	res, err := s.db.ExecContext(context.Background(),
		`UPDATE runs SET status = ?, finished_at = ? WHERE id = ?`,
		status, s.clock.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("finishing run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("finishing run: no run with id %d", id)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first.
func (s *SQLiteLedger) ListRuns(limit int) ([]*Run, error) {
	rows, err := s.db.QueryContext(context.Background(),
		`SELECT id, operation, parameters, status, started_at, finished_at
		 FROM runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.Operation, &r.Parameters, &r.Status, &r.StartedAt, &r.FinishedAt); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		runs = append(runs, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	return runs, nil
}

// Artifact operations

func (s *SQLiteLedger) RecordArtifact(rec *ingest.ArtifactRecord) error {
	if rec.ID == "" {
		return errors.New("recording artifact: empty id")
	}
	var runID sql.NullInt64
	if rec.RunID != 0 {
		runID = sql.NullInt64{Int64: rec.RunID, Valid: true}
	}
	_, err := s.db.ExecContext(context.Background(),
		`INSERT INTO artifacts (id, run_id, name, kind, destination, source_url, written_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, runID, rec.Name, rec.Kind, rec.Destination, rec.SourceURL, rec.WrittenAt.UTC())
	if err != nil {
		return fmt.Errorf("recording artifact %s: %w", rec.Name, err)
	}
	return nil
}

// ListArtifacts returns the artifacts written by a run in insertion order.
func (s *SQLiteLedger) ListArtifacts(runID int64) ([]*ingest.ArtifactRecord, error) {
	rows, err := s.db.QueryContext(context.Background(),
		`SELECT id, run_id, name, kind, destination, source_url, written_at
		 FROM artifacts WHERE run_id = ? ORDER BY rowid`, runID)
	if err != nil {
		return nil, fmt.Errorf("listing artifacts: %w", err)
	}
	defer rows.Close()

	var out []*ingest.ArtifactRecord
	for rows.Next() {
		var (
			rec   ingest.ArtifactRecord
			runID sql.NullInt64
		)
		if err := rows.Scan(&rec.ID, &runID, &rec.Name, &rec.Kind, &rec.Destination, &rec.SourceURL, &rec.WrittenAt); err != nil {
			return nil, fmt.Errorf("scanning artifact: %w", err)
		}
		rec.RunID = runID.Int64
		out = append(out, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing artifacts: %w", err)
	}
	return out, nil
}

// Close closes the database connection.
func (s *SQLiteLedger) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

var _ ingest.Ledger = (*SQLiteLedger)(nil)
