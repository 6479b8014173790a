package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/andresuchdata/banking-pipeline/internal/ingest"
)

// Task identifiers, kept stable so run history stays comparable across versions.
const (
	TaskDownload = "download_minio"
	TaskLoad     = "load_snowflake"
)

// Downloader is the first task: bucket objects to local files.
type Downloader interface {
	Download(ctx context.Context) (ingest.Manifest, error)
}

// Loader is the second task: local files into the warehouse.
type Loader interface {
	Load(ctx context.Context, manifest ingest.Manifest) (ingest.LoadResult, error)
}

// RetryPolicy is a fixed retry count with a fixed delay between attempts.
type RetryPolicy struct {
	Retries int
	Delay   time.Duration
}

// DefaultRetryPolicy matches the DAG defaults: one retry after a minute.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Retries: 1, Delay: time.Minute}
}

// PipelineStatus represents the current state of a run or task attempt
type PipelineStatus string

const (
	StatusPending    PipelineStatus = "pending"
	StatusProcessing PipelineStatus = "processing"
	StatusCompleted  PipelineStatus = "completed"
	StatusFailed     PipelineStatus = "failed"
)

// Run tracks a single execution of the ingest DAG.
type Run struct {
	ID           string         `json:"run_id"`
	DAGID        string         `json:"dag_id"`
	Status       PipelineStatus `json:"status"`
	Files        []string       `json:"files"`
	TablesLoaded int            `json:"tables_loaded"`
	Statements   int            `json:"statements"`
	StartedAt    time.Time      `json:"started_at"`
	CompletedAt  *time.Time     `json:"completed_at,omitempty"`
	ErrorMessage string         `json:"error_message,omitempty"`
	Attempts     []TaskAttempt  `json:"attempts,omitempty"`
}

// TaskAttempt is one try of one task within a run.
type TaskAttempt struct {
	RunID        string         `json:"run_id"`
	TaskID       string         `json:"task_id"`
	Attempt      int            `json:"attempt"`
	Status       PipelineStatus `json:"status"`
	StartedAt    time.Time      `json:"started_at"`
	CompletedAt  *time.Time     `json:"completed_at,omitempty"`
	ErrorMessage string         `json:"error_message,omitempty"`
}

// NewRunID builds an id in the scheduler's trigger__timestamp style.
func NewRunID(trigger string, at time.Time) string {
	return fmt.Sprintf("%s__%s", trigger, at.UTC().Format(time.RFC3339Nano))
}
