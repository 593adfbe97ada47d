package ingest

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"kasikai/internal/booking"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is the current ledger schema version. Bump this when the
// schema changes; the ledger is derived data and safe to delete.
const schemaVersion = 1

// ErrSchemaMismatch indicates the ledger database was created by a different
// schema version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

// timeLayout is RFC 3339 with fixed-width nanoseconds so lexicographic order
// in SQL matches chronological order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Run statuses recorded in the ledger.
const (
	RunStatusOK     = "ok"
	RunStatusEmpty  = "empty"
	RunStatusFailed = "failed"
)

// Run is one recorded pipeline execution.
type Run struct {
	ID               string
	Source           string
	Status           string
	StartedAt        time.Time
	FinishedAt       time.Time
	FilesProcessed   int
	FilesFailed      int
	FilesUnrelocated int
	PurgedFiles      int
	RowsIn           int
	RecordsOut       int
	RecordsWritten   int
	Error            string
	Skips            map[booking.SkipReason]int
}

// Ledger persists run history in SQLite.
type Ledger struct {
	db   *sql.DB
	path string
}

// OpenLedger initializes or connects to the run ledger database.
func OpenLedger(dbPath string) (*Ledger, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	ledger := &Ledger{db: db, path: dbPath}
	if err := ledger.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return ledger, nil
}

// Close closes the underlying database connection.
func (l *Ledger) Close() error {
	if l == nil || l.db == nil {
		return nil
	}
	return l.db.Close()
}

// Path returns the database file path.
func (l *Ledger) Path() string {
	return l.path
}

func (l *Ledger) initSchema(ctx context.Context) error {
	var tableExists int
	err := l.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}

	if tableExists == 0 {
		return l.createSchema(ctx)
	}

	var version int
	err = l.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (delete %s to rebuild)",
			ErrSchemaMismatch, version, schemaVersion, l.path)
	}
	return nil
}

func (l *Ledger) createSchema(ctx context.Context) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}

// RecordRun inserts one run and its skip breakdown.
func (l *Ledger) RecordRun(ctx context.Context, run *Run) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin run tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (
			id, source, status, started_at, finished_at,
			files_processed, files_failed, files_unrelocated, purged_files,
			rows_in, records_out, records_written, error
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Source, run.Status,
		run.StartedAt.UTC().Format(timeLayout),
		run.FinishedAt.UTC().Format(timeLayout),
		run.FilesProcessed, run.FilesFailed, run.FilesUnrelocated, run.PurgedFiles,
		run.RowsIn, run.RecordsOut, run.RecordsWritten, run.Error,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	for reason, count := range run.Skips {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO run_skips (run_id, reason, count) VALUES (?, ?, ?)",
			run.ID, string(reason), count,
		); err != nil {
			return fmt.Errorf("insert run skip: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run: %w", err)
	}
	return nil
}

// RecentRuns returns up to limit runs, newest first.
func (l *Ledger) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := l.db.QueryContext(ctx, `
		SELECT id, source, status, started_at, finished_at,
		       files_processed, files_failed, files_unrelocated, purged_files,
		       rows_in, records_out, records_written, error
		FROM runs
		ORDER BY started_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}

	for i := range runs {
		skips, err := l.runSkips(ctx, runs[i].ID)
		if err != nil {
			return nil, err
		}
		runs[i].Skips = skips
	}
	return runs, nil
}

// LastRun returns the most recent run, or nil when no run is recorded yet.
func (l *Ledger) LastRun(ctx context.Context) (*Run, error) {
	runs, err := l.RecentRuns(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, nil
	}
	return &runs[0], nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(scanner rowScanner) (Run, error) {
	var (
		run       Run
		startedAt string
		finished  string
	)
	err := scanner.Scan(
		&run.ID, &run.Source, &run.Status, &startedAt, &finished,
		&run.FilesProcessed, &run.FilesFailed, &run.FilesUnrelocated, &run.PurgedFiles,
		&run.RowsIn, &run.RecordsOut, &run.RecordsWritten, &run.Error,
	)
	if err != nil {
		return Run{}, fmt.Errorf("scan run: %w", err)
	}
	if run.StartedAt, err = time.Parse(time.RFC3339Nano, startedAt); err != nil {
		return Run{}, fmt.Errorf("parse started_at: %w", err)
	}
	if run.FinishedAt, err = time.Parse(time.RFC3339Nano, finished); err != nil {
		return Run{}, fmt.Errorf("parse finished_at: %w", err)
	}
	return run, nil
}

func (l *Ledger) runSkips(ctx context.Context, runID string) (map[booking.SkipReason]int, error) {
	rows, err := l.db.QueryContext(ctx,
		"SELECT reason, count FROM run_skips WHERE run_id = ?", runID)
	if err != nil {
		return nil, fmt.Errorf("query run skips: %w", err)
	}
	defer rows.Close()

	var skips map[booking.SkipReason]int
	for rows.Next() {
		var (
			reason string
			count  int
		)
		if err := rows.Scan(&reason, &count); err != nil {
			return nil, fmt.Errorf("scan run skip: %w", err)
		}
		if skips == nil {
			skips = make(map[booking.SkipReason]int)
		}
		skips[booking.SkipReason(reason)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run skips: %w", err)
	}
	return skips, nil
}
