package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS jobs (
    id             TEXT PRIMARY KEY,
    input_path     TEXT NOT NULL UNIQUE,
    job_type       TEXT NOT NULL,
    status         TEXT NOT NULL,
    worker_id      TEXT NOT NULL DEFAULT '',
    output_path    TEXT NOT NULL DEFAULT '',
    error_message  TEXT NOT NULL DEFAULT '',
    added_at       TEXT NOT NULL,
    claimed_at     TEXT,
    completed_at   TEXT,
    retries        INTEGER NOT NULL DEFAULT 0,
    steps          TEXT NOT NULL,
    position       INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status);
`

// sqliteBackend stores the job collection in SQLite. Each Update loads the
// whole collection inside one write transaction, applies the mutation, and
// rewrites the table before committing, preserving the same
// whole-document snapshot semantics as the file backend while delegating
// cross-host exclusion to the database engine.
type sqliteBackend struct {
	db *sql.DB
}

// NewSQLiteStore opens a Store backed by a SQLite database at dbPath.
func NewSQLiteStore(dbPath string, opts ...Option) (*Store, error) {
	if dbPath == "" {
		return nil, errors.New("database path required")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

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

	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return newStore(&sqliteBackend{db: db}, opts...), nil
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

func (b *sqliteBackend) Update(ctx context.Context, fn func(doc *document) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	return retryOnBusy(ctx, func() error {
		return b.updateOnce(ctx, fn)
	})
}

func (b *sqliteBackend) updateOnce(ctx context.Context, fn func(doc *document) error) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin queue tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	doc, err := loadDocument(ctx, tx)
	if err != nil {
		return err
	}
	if err := fn(doc); err != nil {
		return err
	}
	if err := saveDocument(ctx, tx, doc); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit queue tx: %w", err)
	}
	return nil
}

func loadDocument(ctx context.Context, tx *sql.Tx) (*document, error) {
	rows, err := tx.QueryContext(ctx, `
        SELECT id, input_path, job_type, status, worker_id, output_path,
               error_message, added_at, claimed_at, completed_at, retries, steps
        FROM jobs ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("load queue document: %w", err)
	}
	defer rows.Close()

	doc := &document{}
	for rows.Next() {
		var (
			job       Job
			jobType   string
			status    string
			addedAt   string
			claimedAt sql.NullString
			doneAt    sql.NullString
			stepsJSON string
		)
		if err := rows.Scan(
			&job.ID, &job.InputPath, &jobType, &status, &job.WorkerID,
			&job.OutputPath, &job.ErrorMessage, &addedAt, &claimedAt,
			&doneAt, &job.Retries, &stepsJSON,
		); err != nil {
			return nil, fmt.Errorf("scan job row: %w", err)
		}
		job.JobType = JobType(jobType)
		job.Status = Status(status)
		if job.AddedAt, err = parseTimestamp(addedAt); err != nil {
			return nil, fmt.Errorf("job %s added_at: %w", job.ID, err)
		}
		if job.ClaimedAt, err = parseNullableTimestamp(claimedAt); err != nil {
			return nil, fmt.Errorf("job %s claimed_at: %w", job.ID, err)
		}
		if job.CompletedAt, err = parseNullableTimestamp(doneAt); err != nil {
			return nil, fmt.Errorf("job %s completed_at: %w", job.ID, err)
		}
		if err := json.Unmarshal([]byte(stepsJSON), &job.Steps); err != nil {
			return nil, fmt.Errorf("decode job %s steps: %w", job.ID, err)
		}
		doc.Jobs = append(doc.Jobs, &job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate job rows: %w", err)
	}
	return doc, nil
}

func saveDocument(ctx context.Context, tx *sql.Tx, doc *document) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM jobs`); err != nil {
		return fmt.Errorf("rewrite queue document: %w", err)
	}
	for position, job := range doc.Jobs {
		stepsJSON, err := json.Marshal(job.Steps)
		if err != nil {
			return fmt.Errorf("encode job %s steps: %w", job.ID, err)
		}
		if _, err := tx.ExecContext(ctx, `
            INSERT INTO jobs (
                id, input_path, job_type, status, worker_id, output_path,
                error_message, added_at, claimed_at, completed_at, retries,
                steps, position
            ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			job.ID, job.InputPath, string(job.JobType), string(job.Status),
			job.WorkerID, job.OutputPath, job.ErrorMessage,
			formatTimestamp(job.AddedAt), formatNullableTimestamp(job.ClaimedAt),
			formatNullableTimestamp(job.CompletedAt), job.Retries,
			string(stepsJSON), position,
		); err != nil {
			return fmt.Errorf("persist job %s: %w", job.ID, err)
		}
	}
	return nil
}

func (b *sqliteBackend) Close() error {
	if b == nil || b.db == nil {
		return nil
	}
	return b.db.Close()
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func formatNullableTimestamp(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTimestamp(*t)
}

func parseTimestamp(value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

func parseNullableTimestamp(value sql.NullString) (*time.Time, error) {
	if !value.Valid || value.String == "" {
		return nil, nil
	}
	t, err := parseTimestamp(value.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
