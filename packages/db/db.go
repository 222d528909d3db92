// Package db records verif runs in a SQLite history file.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	// SQLite driver
	_ "github.com/mattn/go-sqlite3"

	"github.com/abdul-hamid-achik/verif/packages/core/runner"
)

// ErrNoRuns is returned by LastRun when a file has no recorded run
var ErrNoRuns = errors.New("no recorded runs")

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	file           TEXT    NOT NULL,
	started_at     INTEGER NOT NULL,
	duration_ms    INTEGER NOT NULL,
	status         TEXT    NOT NULL,
	targets        INTEGER NOT NULL,
	failed_targets INTEGER NOT NULL,
	tests          INTEGER NOT NULL,
	failures       INTEGER NOT NULL,
	requests       INTEGER NOT NULL,
	p50_us         INTEGER NOT NULL,
	p95_us         INTEGER NOT NULL,
	p99_us         INTEGER NOT NULL,
	max_us         INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS runs_file_started ON runs (file, started_at);
`

// Run is one recorded execution of a suite file
type Run struct {
	ID            int64
	File          string
	StartedAt     time.Time
	Duration      time.Duration
	Status        string // passed or failed
	Targets       int
	FailedTargets int
	Tests         int
	Failures      int
	Requests      int
	Latency       runner.Latency
}

// Passed reports whether the run had no failed target
func (r Run) Passed() bool {
	return r.Status == "passed"
}

// RunFromResult converts a runner result into a history row
func RunFromResult(result *runner.RunResult, startedAt time.Time) Run {
	_, failed, _ := result.Counts()
	return Run{
		File:          result.File,
		StartedAt:     startedAt,
		Duration:      result.Duration,
		Status:        result.Status().String(),
		Targets:       len(result.Targets),
		FailedTargets: failed,
		Tests:         result.Tests(),
		Failures:      result.FailureCount(),
		Requests:      result.Requests,
		Latency:       result.Latency,
	}
}

// Store is a run history backed by SQLite
type Store struct {
	db           *sql.DB
	queryTimeout time.Duration
}

// Open opens or creates the history file at path. Both a bare path and
// the sqlite:// or sqlite: forms are accepted.
func Open(path string) (*Store, error) {
	dsn := parseConnectionString(path)
	if dsn == "" {
		return nil, errors.New("empty history path")
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One writer; SQLite serializes anyway.
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Store{
		db:           db,
		queryTimeout: 30 * time.Second,
	}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Record inserts a run and returns it with its ID set
func (s *Store) Record(ctx context.Context, run Run) (Run, error) {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (file, started_at, duration_ms, status, targets, failed_targets,
			tests, failures, requests, p50_us, p95_us, p99_us, max_us)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.File, run.StartedAt.UnixMilli(), run.Duration.Milliseconds(), run.Status,
		run.Targets, run.FailedTargets, run.Tests, run.Failures, run.Requests,
		run.Latency.P50.Microseconds(), run.Latency.P95.Microseconds(),
		run.Latency.P99.Microseconds(), run.Latency.Max.Microseconds(),
	)
	if err != nil {
		return run, fmt.Errorf("recording run: %w", err)
	}

	run.ID, err = res.LastInsertId()
	if err != nil {
		return run, fmt.Errorf("recording run: %w", err)
	}
	return run, nil
}

// LastRun returns the most recent run of file, or ErrNoRuns
func (s *Store) LastRun(ctx context.Context, file string) (Run, error) {
	runs, err := s.Recent(ctx, file, 1)
	if err != nil {
		return Run{}, err
	}
	if len(runs) == 0 {
		return Run{}, ErrNoRuns
	}
	return runs[0], nil
}

// Recent returns up to limit runs of file, newest first. An empty file
// lists runs of every file.
func (s *Store) Recent(ctx context.Context, file string, limit int) ([]Run, error) {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	if limit <= 0 {
		limit = -1 // no limit in SQLite
	}

	query := `SELECT id, file, started_at, duration_ms, status, targets, failed_targets,
		tests, failures, requests, p50_us, p95_us, p99_us, max_us FROM runs`
	args := []any{}
	if file != "" {
		query += ` WHERE file = ?`
		args = append(args, file)
	}
	query += ` ORDER BY started_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			run                  Run
			startedMs, durMs     int64
			p50, p95, p99, maxUs int64
		)
		if err := rows.Scan(&run.ID, &run.File, &startedMs, &durMs, &run.Status,
			&run.Targets, &run.FailedTargets, &run.Tests, &run.Failures, &run.Requests,
			&p50, &p95, &p99, &maxUs); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		run.StartedAt = time.UnixMilli(startedMs)
		run.Duration = time.Duration(durMs) * time.Millisecond
		run.Latency = runner.Latency{
			Count: int64(run.Requests),
			P50:   time.Duration(p50) * time.Microsecond,
			P95:   time.Duration(p95) * time.Microsecond,
			P99:   time.Duration(p99) * time.Microsecond,
			Max:   time.Duration(maxUs) * time.Microsecond,
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return runs, nil
}

// parseConnectionString strips the sqlite:// and sqlite: prefixes
func parseConnectionString(connStr string) string {
	connStr = strings.TrimSpace(connStr)

	if strings.HasPrefix(connStr, "sqlite://") {
		return strings.TrimPrefix(connStr, "sqlite://")
	}
	return strings.TrimPrefix(connStr, "sqlite:")
}
