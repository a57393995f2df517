package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"opusify/internal/config"
	"opusify/internal/report"
)

// Store persists run history backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

const timeLayout = time.RFC3339

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func (s *Store) execWithRetry(ctx context.Context, query string, args ...any) (sql.Result, error) {
	ctx = ensureContext(ctx)
	var (
		res     sql.Result
		execErr error
	)
	if err := retryOnBusy(ctx, func() error {
		res, execErr = s.db.ExecContext(ctx, query, args...)
		return execErr
	}); err != nil {
		return nil, err
	}
	return res, nil
}

// Open initializes or connects to the run-history database.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := cfg.HistoryPath()
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

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// BeginRun records the start of a batch run and returns its identifier.
func (s *Store) BeginRun(ctx context.Context, startedAt time.Time, dryRun bool) (int64, error) {
	res, err := s.execWithRetry(ctx,
		"INSERT INTO runs (started_at, dry_run) VALUES (?, ?)",
		startedAt.UTC().Format(timeLayout), boolToInt(dryRun),
	)
	if err != nil {
		return 0, fmt.Errorf("begin run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("begin run id: %w", err)
	}
	return id, nil
}

// FinishRun stores the aggregate summary and per-file failures for a run.
func (s *Store) FinishRun(ctx context.Context, runID int64, finishedAt time.Time, summary report.Summary) error {
	_, err := s.execWithRetry(ctx,
		`UPDATE runs
		 SET finished_at = ?, seen = ?, converted = ?, skipped = ?, failed = ?, old_bytes = ?, new_bytes = ?
		 WHERE id = ?`,
		finishedAt.UTC().Format(timeLayout),
		summary.Seen, summary.Converted, summary.Skipped, summary.Failed,
		summary.OldBytes, summary.NewBytes,
		runID,
	)
	if err != nil {
		return fmt.Errorf("finish run %d: %w", runID, err)
	}

	for _, failure := range summary.Failures {
		if _, err := s.execWithRetry(ctx,
			"INSERT INTO run_failures (run_id, path, reason_code, detail) VALUES (?, ?, ?, ?)",
			runID, failure.Path, failure.Reason.Code, failure.Detail,
		); err != nil {
			return fmt.Errorf("record failure for run %d: %w", runID, err)
		}
	}
	return nil
}

// RecentRuns returns the most recent runs, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 10
	}
	ctx = ensureContext(ctx)

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, started_at, finished_at, dry_run, seen, converted, skipped, failed, old_bytes, new_bytes
		 FROM runs ORDER BY id DESC LIMIT ?`, limit)
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
	return runs, rows.Err()
}

// FailuresForRun returns the failure ledger rows recorded for one run.
func (s *Store) FailuresForRun(ctx context.Context, runID int64) ([]Failure, error) {
	ctx = ensureContext(ctx)

	rows, err := s.db.QueryContext(ctx,
		"SELECT path, reason_code, detail FROM run_failures WHERE run_id = ? ORDER BY path", runID)
	if err != nil {
		return nil, fmt.Errorf("query failures for run %d: %w", runID, err)
	}
	defer rows.Close()

	var failures []Failure
	for rows.Next() {
		var f Failure
		if err := rows.Scan(&f.Path, &f.ReasonCode, &f.Detail); err != nil {
			return nil, fmt.Errorf("scan failure row: %w", err)
		}
		f.RunID = runID
		failures = append(failures, f)
	}
	return failures, rows.Err()
}

func scanRun(rows *sql.Rows) (Run, error) {
	var (
		run        Run
		startedAt  string
		finishedAt sql.NullString
		dryRun     int
	)
	if err := rows.Scan(&run.ID, &startedAt, &finishedAt, &dryRun,
		&run.Seen, &run.Converted, &run.Skipped, &run.Failed,
		&run.OldBytes, &run.NewBytes); err != nil {
		return Run{}, fmt.Errorf("scan run row: %w", err)
	}
	run.DryRun = dryRun != 0
	if parsed, err := time.Parse(timeLayout, startedAt); err == nil {
		run.StartedAt = parsed
	}
	if finishedAt.Valid {
		if parsed, err := time.Parse(timeLayout, finishedAt.String); err == nil {
			run.FinishedAt = parsed
		}
	}
	return run, nil
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}
