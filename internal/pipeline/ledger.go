package pipeline

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/andresuchdata/banking-pipeline/internal/repository/postgres"
	"github.com/jmoiron/sqlx"
)

var ledgerSchema = []string{
	`CREATE TABLE IF NOT EXISTS ingest_runs (
		run_id        TEXT PRIMARY KEY,
		dag_id        TEXT NOT NULL,
		status        TEXT NOT NULL,
		files         JSONB NOT NULL DEFAULT '[]'::jsonb,
		tables_loaded INTEGER NOT NULL DEFAULT 0,
		statements    INTEGER NOT NULL DEFAULT 0,
		started_at    TIMESTAMPTZ NOT NULL,
		completed_at  TIMESTAMPTZ,
		error_message TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS ingest_task_attempts (
		id            BIGSERIAL PRIMARY KEY,
		run_id        TEXT NOT NULL,
		task_id       TEXT NOT NULL,
		attempt       INTEGER NOT NULL,
		status        TEXT NOT NULL,
		started_at    TIMESTAMPTZ NOT NULL,
		completed_at  TIMESTAMPTZ,
		error_message TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS idx_ingest_task_attempts_run_id ON ingest_task_attempts (run_id)`,
}

// Ledger records runs and task attempts in Postgres. It is history only and
// is never consulted to skip work.
type Ledger struct {
	db *postgres.DB
}

func NewLedger(db *postgres.DB) *Ledger {
	return &Ledger{db: db}
}

// EnsureSchema creates the ledger tables when they do not exist.
func (l *Ledger) EnsureSchema(ctx context.Context) error {
	return l.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		for _, stmt := range ledgerSchema {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("failed to create ledger schema: %w", err)
			}
		}
		return nil
	})
}

// SaveRun upserts a run; started_at is kept from the first insert.
func (l *Ledger) SaveRun(ctx context.Context, run *Run) error {
	query := `
		INSERT INTO ingest_runs (
			run_id, dag_id, status, files, tables_loaded,
			statements, started_at, completed_at, error_message
		) VALUES ($1, $2, $3, $4::jsonb, $5, $6, $7, $8, $9)
		ON CONFLICT (run_id)
		DO UPDATE SET
			status = EXCLUDED.status,
			files = EXCLUDED.files,
			tables_loaded = EXCLUDED.tables_loaded,
			statements = EXCLUDED.statements,
			completed_at = EXCLUDED.completed_at,
			error_message = EXCLUDED.error_message
	`

	files, err := encodeFiles(run.Files)
	if err != nil {
		return err
	}

	_, err = l.db.ExecContext(
		ctx, query,
		run.ID, run.DAGID, string(run.Status), files, run.TablesLoaded,
		run.Statements, run.StartedAt, nullTime(run.CompletedAt), run.ErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("failed to save run %s: %w", run.ID, err)
	}
	return nil
}

// RecordAttempt appends one task attempt
func (l *Ledger) RecordAttempt(ctx context.Context, attempt *TaskAttempt) error {
	query := `
		INSERT INTO ingest_task_attempts (
			run_id, task_id, attempt, status, started_at, completed_at, error_message
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := l.db.ExecContext(
		ctx, query,
		attempt.RunID, attempt.TaskID, attempt.Attempt, string(attempt.Status),
		attempt.StartedAt, nullTime(attempt.CompletedAt), attempt.ErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("failed to record attempt for run %s: %w", attempt.RunID, err)
	}
	return nil
}

type runRow struct {
	RunID        string       `db:"run_id"`
	DAGID        string       `db:"dag_id"`
	Status       string       `db:"status"`
	Files        string       `db:"files"`
	TablesLoaded int          `db:"tables_loaded"`
	Statements   int          `db:"statements"`
	StartedAt    time.Time    `db:"started_at"`
	CompletedAt  sql.NullTime `db:"completed_at"`
	ErrorMessage string       `db:"error_message"`
}

type attemptRow struct {
	RunID        string       `db:"run_id"`
	TaskID       string       `db:"task_id"`
	Attempt      int          `db:"attempt"`
	Status       string       `db:"status"`
	StartedAt    time.Time    `db:"started_at"`
	CompletedAt  sql.NullTime `db:"completed_at"`
	ErrorMessage string       `db:"error_message"`
}

// RecentRuns retrieves the latest runs with their attempts
func (l *Ledger) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}

	var rows []runRow
	err := l.db.SelectContext(ctx, &rows, `
		SELECT run_id, dag_id, status, files::text AS files, tables_loaded,
		       statements, started_at, completed_at, error_message
		FROM ingest_runs
		ORDER BY started_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	if len(rows) == 0 {
		return []Run{}, nil
	}

	runs := make([]Run, 0, len(rows))
	index := make(map[string]int, len(rows))
	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		run := Run{
			ID:           row.RunID,
			DAGID:        row.DAGID,
			Status:       PipelineStatus(row.Status),
			TablesLoaded: row.TablesLoaded,
			Statements:   row.Statements,
			StartedAt:    row.StartedAt,
			CompletedAt:  timePtr(row.CompletedAt),
			ErrorMessage: row.ErrorMessage,
		}
		if row.Files != "" {
			if err := json.Unmarshal([]byte(row.Files), &run.Files); err != nil {
				return nil, fmt.Errorf("failed to decode files of run %s: %w", row.RunID, err)
			}
		}
		index[run.ID] = len(runs)
		ids = append(ids, run.ID)
		runs = append(runs, run)
	}

	query, args, err := sqlx.In(`
		SELECT run_id, task_id, attempt, status, started_at, completed_at, error_message
		FROM ingest_task_attempts
		WHERE run_id IN (?)
		ORDER BY id
	`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to build attempts query: %w", err)
	}

	var attempts []attemptRow
	if err := l.db.SelectContext(ctx, &attempts, l.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to list attempts: %w", err)
	}
	for _, a := range attempts {
		i, ok := index[a.RunID]
		if !ok {
			continue
		}
		runs[i].Attempts = append(runs[i].Attempts, TaskAttempt{
			RunID:        a.RunID,
			TaskID:       a.TaskID,
			Attempt:      a.Attempt,
			Status:       PipelineStatus(a.Status),
			StartedAt:    a.StartedAt,
			CompletedAt:  timePtr(a.CompletedAt),
			ErrorMessage: a.ErrorMessage,
		})
	}

	return runs, nil
}

func encodeFiles(files []string) (string, error) {
	if files == nil {
		files = []string{}
	}
	payload, err := json.Marshal(files)
	if err != nil {
		return "", fmt.Errorf("encode run files: %w", err)
	}
	return string(payload), nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
