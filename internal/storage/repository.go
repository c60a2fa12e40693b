// Package storage keeps the history of export runs in SQLite.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"praondefoi/internal/log"
)

type RunStatus string

const (
	RunPending    RunStatus = "pending"
	RunRunning    RunStatus = "running"
	RunSucceeded  RunStatus = "succeeded"
	RunFailed     RunStatus = "failed"
	RunIncomplete RunStatus = "incomplete"
)

// Terminal reports whether the run will not change again.
func (s RunStatus) Terminal() bool {
	return s == RunSucceeded || s == RunFailed || s == RunIncomplete
}

var ErrRunNotFound = errors.New("export run not found")

// Run is one export attempt.
type Run struct {
	ID         string
	AccountID  int64
	From       time.Time
	To         time.Time
	Format     string
	Status     RunStatus
	Records    int
	Pages      int
	SinkRef    string
	Error      string
	CreatedAt  time.Time
	UpdatedAt  time.Time
	FinishedAt time.Time
}

// Outcome is what a finished run reports back.
type Outcome struct {
	Status  RunStatus
	Records int
	Pages   int
	SinkRef string
	Error   string
}

type SQLiteRepository struct {
	db     *sql.DB
	logger *log.Logger
	now    func() time.Time
}

func NewSQLiteRepository(dbPath string, logger *log.Logger) (*SQLiteRepository, error) {
	if logger == nil {
		logger = log.Nop()
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// Writers serialize in SQLite anyway
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:     db,
		logger: logger.WithComponent(log.ComponentStorage),
		now:    func() time.Time { return time.Now().UTC() },
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// CreateRun stores a new pending run.
func (r *SQLiteRepository) CreateRun(ctx context.Context, run Run) (Run, error) {
	if run.ID == "" {
		return Run{}, errors.New("run id is required")
	}
	now := r.now()
	run.Status = RunPending
	run.CreatedAt, run.UpdatedAt = now, now

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO export_runs (id, account_id, period_from, period_to, format, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.AccountID, formatTime(run.From), formatTime(run.To), run.Format, run.Status,
		formatTime(now), formatTime(now))
	if err != nil {
		return Run{}, fmt.Errorf("create export run: %w", err)
	}

	r.logger.DebugContext(ctx, "Export run created",
		log.FieldRunID, run.ID,
		log.FieldAccountID, run.AccountID,
		"format", run.Format)
	return run, nil
}

// MarkRunning claims a run for execution. A pending run is always claimed.
// A running run is claimed again only when its last claim is older than
// leaseBefore, which lets a new worker take over from one that died; a zero
// leaseBefore never takes over. Runs that cannot be claimed report ok=false.
func (r *SQLiteRepository) MarkRunning(ctx context.Context, id string, leaseBefore time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE export_runs SET status = ?, updated_at = ?
		WHERE id = ? AND (status = ? OR (status = ? AND updated_at < ?))`,
		RunRunning, formatTime(r.now()), id, RunPending, RunRunning, formatTime(leaseBefore))
	if err != nil {
		return false, fmt.Errorf("mark run running: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark run running: %w", err)
	}
	if n == 0 {
		if _, err := r.GetRun(ctx, id); err != nil {
			return false, err
		}
	}
	return n == 1, nil
}

// ReleaseRun hands a running run back to pending so it can be claimed again.
func (r *SQLiteRepository) ReleaseRun(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE export_runs SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		RunPending, formatTime(r.now()), id, RunRunning)
	if err != nil {
		return fmt.Errorf("release export run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		run, err := r.GetRun(ctx, id)
		if err != nil {
			return err
		}
		return fmt.Errorf("release export run %s: status is %s", id, run.Status)
	}

	r.logger.InfoContext(ctx, "Export run released", log.FieldRunID, id)
	return nil
}

// FinishRun records the outcome of a run.
func (r *SQLiteRepository) FinishRun(ctx context.Context, id string, out Outcome) error {
	if !out.Status.Terminal() {
		return fmt.Errorf("finish run with non-terminal status %q", out.Status)
	}
	now := formatTime(r.now())
	res, err := r.db.ExecContext(ctx, `
		UPDATE export_runs
		SET status = ?, records = ?, pages = ?, sink_ref = ?, error = ?, updated_at = ?, finished_at = ?
		WHERE id = ?`,
		out.Status, out.Records, out.Pages, out.SinkRef, out.Error, now, now, id)
	if err != nil {
		return fmt.Errorf("finish export run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}

	r.logger.InfoContext(ctx, "Export run finished",
		log.FieldRunID, id,
		"status", out.Status,
		log.FieldRecords, out.Records)
	return nil
}

const runColumns = `id, account_id, period_from, period_to, format, status, records, pages,
	sink_ref, error, created_at, updated_at, finished_at`

func (r *SQLiteRepository) GetRun(ctx context.Context, id string) (Run, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM export_runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return Run{}, fmt.Errorf("get export run: %w", err)
	}
	return run, nil
}

// ListRuns returns the most recent runs first.
func (r *SQLiteRepository) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	return r.query(ctx, `SELECT `+runColumns+` FROM export_runs ORDER BY created_at DESC, id LIMIT ?`, limit)
}

// ListStaleRuns returns runs nobody is working on as of the cutoff, oldest
// first: pending runs created before it and running runs whose claim is
// older than it.
func (r *SQLiteRepository) ListStaleRuns(ctx context.Context, before time.Time, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	cutoff := formatTime(before.UTC())
	return r.query(ctx, `SELECT `+runColumns+` FROM export_runs
		WHERE (status = ? AND created_at < ?) OR (status = ? AND updated_at < ?)
		ORDER BY created_at LIMIT ?`,
		RunPending, cutoff, RunRunning, cutoff, limit)
}

func (r *SQLiteRepository) query(ctx context.Context, q string, args ...any) ([]Run, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list export runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan export run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (Run, error) {
	var run Run
	var status, from, to, created, updated, finished string
	err := s.Scan(&run.ID, &run.AccountID, &from, &to, &run.Format, &status, &run.Records, &run.Pages,
		&run.SinkRef, &run.Error, &created, &updated, &finished)
	if err != nil {
		return Run{}, err
	}
	run.Status = RunStatus(status)
	run.From = parseTime(from)
	run.To = parseTime(to)
	run.CreatedAt = parseTime(created)
	run.UpdatedAt = parseTime(updated)
	run.FinishedAt = parseTime(finished)
	return run, nil
}

// Timestamps are stored as fixed-width UTC text so they sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
