package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/andresuchdata/banking-pipeline/internal/ingest"
	"github.com/rs/zerolog/log"
)

// ErrRunInProgress is returned when a run is requested while another is active.
var ErrRunInProgress = errors.New("a run is already in progress")

// Runner sequences download_minio then load_snowflake, retrying each task from
// scratch under a fixed policy.
type Runner struct {
	dagID    string
	download Downloader
	load     Loader
	policy   RetryPolicy
	recorder Recorder
	handoff  HandoffStore

	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time

	mu sync.Mutex
}

type Option func(*Runner)

func WithRecorder(recorder Recorder) Option {
	return func(r *Runner) {
		if recorder != nil {
			r.recorder = recorder
		}
	}
}

// WithHandoff publishes the download manifest so a separate load invocation can pick it up.
func WithHandoff(store HandoffStore) Option {
	return func(r *Runner) { r.handoff = store }
}

func NewRunner(dagID string, download Downloader, load Loader, policy RetryPolicy, opts ...Option) *Runner {
	if policy.Retries < 0 {
		policy.Retries = 0
	}
	r := &Runner{
		dagID:    dagID,
		download: download,
		load:     load,
		policy:   policy,
		recorder: NewMemoryRecorder(50),
		sleep:    sleepContext,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Runner) Recorder() Recorder { return r.recorder }

// Run executes both tasks in order, handing the manifest over in process.
func (r *Runner) Run(ctx context.Context, runID string) (*Run, error) {
	if !r.mu.TryLock() {
		return nil, ErrRunInProgress
	}
	defer r.mu.Unlock()

	run := r.start(ctx, runID)

	manifest, err := retry(ctx, r, run, TaskDownload, r.download.Download)
	if err != nil {
		return r.finish(ctx, run, nil, err)
	}
	run.Files = manifest.Files()

	if r.handoff != nil {
		if err := r.handoff.Put(ctx, run.ID, TaskDownload, manifest); err != nil {
			log.Warn().Err(err).Str("run_id", run.ID).Msg("Failed to publish handoff")
		}
	}

	result, err := retry(ctx, r, run, TaskLoad, func(ctx context.Context) (ingest.LoadResult, error) {
		return r.load.Load(ctx, manifest)
	})
	return r.finish(ctx, run, result, err)
}

// RunDownload executes only the download task and publishes its manifest.
func (r *Runner) RunDownload(ctx context.Context, runID string) (*Run, error) {
	if r.handoff == nil {
		return nil, errors.New("download-only runs need a handoff store")
	}
	if !r.mu.TryLock() {
		return nil, ErrRunInProgress
	}
	defer r.mu.Unlock()

	run := r.start(ctx, runID)

	manifest, err := retry(ctx, r, run, TaskDownload, r.download.Download)
	if err != nil {
		return r.finish(ctx, run, nil, err)
	}
	run.Files = manifest.Files()

	if err := r.handoff.Put(ctx, run.ID, TaskDownload, manifest); err != nil {
		return r.finish(ctx, run, nil, err)
	}

	// The run stays open until the load task reports back.
	r.save(ctx, run)
	log.Info().Str("run_id", run.ID).Int("files", len(run.Files)).Msg("Download task finished, waiting for load")
	return run, nil
}

// RunLoad executes only the load task using the manifest a previous download
// published. A missing manifest is treated as "no files received".
func (r *Runner) RunLoad(ctx context.Context, runID string) (*Run, error) {
	if r.handoff == nil {
		return nil, errors.New("load-only runs need a handoff store")
	}
	if !r.mu.TryLock() {
		return nil, ErrRunInProgress
	}
	defer r.mu.Unlock()

	run := r.start(ctx, runID)

	manifest, err := r.handoff.Get(ctx, run.ID, TaskDownload)
	switch {
	case errors.Is(err, ErrHandoffMissing):
		log.Warn().Str("run_id", run.ID).Msg("No manifest published by download task")
		manifest = nil
	case err != nil:
		return r.finish(ctx, run, nil, err)
	}
	run.Files = manifest.Files()

	result, err := retry(ctx, r, run, TaskLoad, func(ctx context.Context) (ingest.LoadResult, error) {
		return r.load.Load(ctx, manifest)
	})
	return r.finish(ctx, run, result, err)
}

func (r *Runner) start(ctx context.Context, runID string) *Run {
	if runID == "" {
		runID = NewRunID("manual", r.now())
	}
	run := &Run{
		ID:        runID,
		DAGID:     r.dagID,
		Status:    StatusProcessing,
		StartedAt: r.now(),
	}
	r.save(ctx, run)
	log.Info().Str("dag_id", r.dagID).Str("run_id", run.ID).Msg("Run started")
	return run
}

func (r *Runner) finish(ctx context.Context, run *Run, result ingest.LoadResult, err error) (*Run, error) {
	done := r.now()
	run.CompletedAt = &done

	if err != nil {
		run.Status = StatusFailed
		run.ErrorMessage = err.Error()
		r.save(ctx, run)
		log.Error().Err(err).Str("run_id", run.ID).Msg("Run failed")
		return run, err
	}

	for _, load := range result {
		if load.Copied {
			run.TablesLoaded++
		}
	}
	run.Statements = result.Statements()
	run.Status = StatusCompleted
	r.save(ctx, run)

	log.Info().
		Str("run_id", run.ID).
		Int("files", len(run.Files)).
		Int("tables_loaded", run.TablesLoaded).
		Int("statements", run.Statements).
		Dur("duration", done.Sub(run.StartedAt)).
		Msg("Run completed")
	return run, nil
}

// save uses a detached context so a cancelled run is still recorded.
func (r *Runner) save(ctx context.Context, run *Run) {
	if err := r.recorder.SaveRun(context.WithoutCancel(ctx), run); err != nil {
		log.Warn().Err(err).Str("run_id", run.ID).Msg("Failed to record run")
	}
}

func (r *Runner) record(ctx context.Context, attempt *TaskAttempt) {
	if err := r.recorder.RecordAttempt(context.WithoutCancel(ctx), attempt); err != nil {
		log.Warn().Err(err).Str("run_id", attempt.RunID).Str("task", attempt.TaskID).Msg("Failed to record task attempt")
	}
}

// retry runs fn up to policy.Retries+1 times, waiting policy.Delay between attempts.
func retry[T any](ctx context.Context, r *Runner, run *Run, taskID string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	total := r.policy.Retries + 1

	var lastErr error
	for attempt := 1; attempt <= total; attempt++ {
		a := &TaskAttempt{
			RunID:     run.ID,
			TaskID:    taskID,
			Attempt:   attempt,
			Status:    StatusProcessing,
			StartedAt: r.now(),
		}
		log.Info().Str("run_id", run.ID).Str("task", taskID).Int("attempt", attempt).Msg("Task started")

		out, err := fn(ctx)
		done := r.now()
		a.CompletedAt = &done

		if err == nil {
			a.Status = StatusCompleted
			r.record(ctx, a)
			run.Attempts = append(run.Attempts, *a)
			log.Info().Str("run_id", run.ID).Str("task", taskID).Int("attempt", attempt).Msg("Task succeeded")
			return out, nil
		}

		a.Status = StatusFailed
		a.ErrorMessage = err.Error()
		r.record(ctx, a)
		run.Attempts = append(run.Attempts, *a)
		lastErr = err

		if ctx.Err() != nil {
			break
		}
		if attempt < total {
			log.Warn().Err(err).
				Str("run_id", run.ID).
				Str("task", taskID).
				Int("attempt", attempt).
				Dur("retry_in", r.policy.Delay).
				Msg("Task failed, retrying")
			if err := r.sleep(ctx, r.policy.Delay); err != nil {
				return zero, fmt.Errorf("task %s: waiting for retry: %w", taskID, err)
			}
		}
	}

	return zero, fmt.Errorf("task %s failed after %d attempt(s): %w", taskID, len(attemptsFor(run, taskID)), lastErr)
}

func attemptsFor(run *Run, taskID string) []TaskAttempt {
	var out []TaskAttempt
	for _, a := range run.Attempts {
		if a.TaskID == taskID {
			out = append(out, a)
		}
	}
	return out
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
