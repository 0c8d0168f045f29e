package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/MrSnakeDoc/srcwatch/internal/logger"
	"github.com/MrSnakeDoc/srcwatch/internal/models"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// timeLayout has a fixed width so TEXT columns sort chronologically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

const (
	RunStarted     = "STARTED"
	RunCompleted   = "COMPLETED"
	RunInterrupted = "INTERRUPTED"
	RunFailed      = "FAILED"
)

// DB keeps one row per run and one row per checked source.
type DB struct {
	db *sql.DB
}

type Run struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	Status     string
	Forced     bool
	Sources    int
	Summary    models.Summary
	ReportPath string
}

type Result struct {
	RunID      string
	SourceID   string
	Status     models.Status
	Changed    bool
	Partial    bool
	HTTPStatus int
	Error      string
	CheckedAt  time.Time
}

// Open creates the database file and its schema if needed.
func Open(ctx context.Context, path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create history directory %s: %w", filepath.Dir(path), err)
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sql.Open failed for %s: %w", path, err)
	}
	conn.SetMaxOpenConns(1)

	d := &DB{db: conn}
	if err := d.InitSchema(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to initialize history schema: %w", err)
	}
	logger.Debug("history database ready at %s", path)
	return d, nil
}

func (d *DB) Close() error {
	if d.db != nil {
		return d.db.Close()
	}
	return nil
}

func (d *DB) InitSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		started_at TEXT NOT NULL,
		finished_at TEXT,
		status TEXT NOT NULL,
		forced INTEGER NOT NULL DEFAULT 0,
		num_sources INTEGER NOT NULL DEFAULT 0,
		updated INTEGER NOT NULL DEFAULT 0,
		unchanged INTEGER NOT NULL DEFAULT 0,
		first_check INTEGER NOT NULL DEFAULT 0,
		errors INTEGER NOT NULL DEFAULT 0,
		skipped_static INTEGER NOT NULL DEFAULT 0,
		partial INTEGER NOT NULL DEFAULT 0,
		report_path TEXT
	);
	CREATE TABLE IF NOT EXISTS run_results (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL REFERENCES runs(id),
		source_id TEXT NOT NULL,
		status TEXT NOT NULL,
		changed INTEGER NOT NULL DEFAULT 0,
		partial INTEGER NOT NULL DEFAULT 0,
		http_status INTEGER,
		error TEXT,
		checked_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_run_results_source ON run_results(source_id);
	`
	if _, err := d.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create tables: %w", err)
	}
	return nil
}

// RecordRunStart inserts a STARTED run and returns its id.
func (d *DB) RecordRunStart(ctx context.Context, startedAt time.Time, sources int, forced bool) (string, error) {
	id := uuid.NewString()
	const q = `INSERT INTO runs (id, started_at, status, forced, num_sources) VALUES (?, ?, ?, ?, ?)`
	if _, err := d.db.ExecContext(ctx, q, id, formatTime(startedAt), RunStarted, forced, sources); err != nil {
		return "", fmt.Errorf("failed to insert run start record: %w", err)
	}
	return id, nil
}

// RecordResults stores the per-source outcomes of a run in one transaction.
func (d *DB) RecordResults(ctx context.Context, runID string, results []models.CheckResult) (err error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO run_results
		(run_id, source_id, status, changed, partial, http_status, error, checked_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, r := range results {
		var code sql.NullInt64
		if r.HTTPStatus != nil {
			code = sql.NullInt64{Int64: int64(*r.HTTPStatus), Valid: true}
		}
		var msg sql.NullString
		if r.Error != nil {
			msg = sql.NullString{String: *r.Error, Valid: true}
		}
		if _, err = stmt.ExecContext(ctx, runID, r.SourceID, string(r.Status), r.Changed, r.Partial, code, msg, formatTime(r.CheckedAt)); err != nil {
			return fmt.Errorf("insert result %s: %w", r.SourceID, err)
		}
	}
	return tx.Commit()
}

// CompleteRun closes the run row with its final status and counts.
func (d *DB) CompleteRun(ctx context.Context, runID string, finishedAt time.Time, status string, s models.Summary, reportPath string) error {
	const q = `UPDATE runs SET finished_at = ?, status = ?, updated = ?, unchanged = ?, first_check = ?,
		errors = ?, skipped_static = ?, partial = ?, report_path = ? WHERE id = ?`
	res, err := d.db.ExecContext(ctx, q, formatTime(finishedAt), status,
		s.Updated, s.Unchanged, s.FirstCheck, s.Errors, s.SkippedStatic, s.Partial,
		sql.NullString{String: reportPath, Valid: reportPath != ""}, runID)
	if err != nil {
		return fmt.Errorf("failed to update run %s: %w", runID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("run %s not found", runID)
	}
	return nil
}

// RecentRuns lists runs newest first.
func (d *DB) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 10
	}
	const q = `SELECT id, started_at, finished_at, status, forced, num_sources,
		updated, unchanged, first_check, errors, skipped_static, partial, report_path
		FROM runs ORDER BY started_at DESC LIMIT ?`
	rows, err := d.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Run
	for rows.Next() {
		var (
			r        Run
			started  string
			finished sql.NullString
			report   sql.NullString
		)
		s := &r.Summary
		if err := rows.Scan(&r.ID, &started, &finished, &r.Status, &r.Forced, &r.Sources,
			&s.Updated, &s.Unchanged, &s.FirstCheck, &s.Errors, &s.SkippedStatic, &s.Partial, &report); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		s.TotalSources = r.Sources
		r.StartedAt = parseTime(started)
		if finished.Valid {
			r.FinishedAt = parseTime(finished.String)
		}
		r.ReportPath = report.String
		out = append(out, r)
	}
	return out, rows.Err()
}

// Results returns the rows recorded for one run, in insertion order.
func (d *DB) Results(ctx context.Context, runID string) ([]Result, error) {
	const q = `SELECT run_id, source_id, status, changed, partial, http_status, error, checked_at
		FROM run_results WHERE run_id = ? ORDER BY id`
	rows, err := d.db.QueryContext(ctx, q, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query results: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Result
	for rows.Next() {
		var (
			r       Result
			status  string
			code    sql.NullInt64
			msg     sql.NullString
			checked string
		)
		if err := rows.Scan(&r.RunID, &r.SourceID, &status, &r.Changed, &r.Partial, &code, &msg, &checked); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		r.Status = models.Status(status)
		r.HTTPStatus = int(code.Int64)
		r.Error = msg.String
		r.CheckedAt = parseTime(checked)
		out = append(out, r)
	}
	return out, rows.Err()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
