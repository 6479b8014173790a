package pipeline

import (
	"context"
	"sync"
)

// Recorder persists run history. Failures to record never fail a run.
type Recorder interface {
	// SaveRun inserts the run or updates its status fields when it already exists.
	SaveRun(ctx context.Context, run *Run) error
	RecordAttempt(ctx context.Context, attempt *TaskAttempt) error
	// RecentRuns returns up to limit runs, newest first, with their attempts.
	RecentRuns(ctx context.Context, limit int) ([]Run, error)
}

// MemoryRecorder keeps the last few runs in process memory.
type MemoryRecorder struct {
	mu       sync.Mutex
	capacity int
	order    []string
	runs     map[string]*Run
}

func NewMemoryRecorder(capacity int) *MemoryRecorder {
	if capacity <= 0 {
		capacity = 50
	}
	return &MemoryRecorder{
		capacity: capacity,
		runs:     make(map[string]*Run),
	}
}

func (m *MemoryRecorder) SaveRun(ctx context.Context, run *Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.runs[run.ID]
	if !ok {
		cp := *run
		cp.Files = append([]string(nil), run.Files...)
		cp.Attempts = nil
		m.runs[run.ID] = &cp
		m.order = append(m.order, run.ID)
		m.evict()
		return nil
	}

	existing.Status = run.Status
	existing.Files = append([]string(nil), run.Files...)
	existing.TablesLoaded = run.TablesLoaded
	existing.Statements = run.Statements
	existing.CompletedAt = run.CompletedAt
	existing.ErrorMessage = run.ErrorMessage
	return nil
}

func (m *MemoryRecorder) RecordAttempt(ctx context.Context, attempt *TaskAttempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	run, ok := m.runs[attempt.RunID]
	if !ok {
		return nil
	}
	run.Attempts = append(run.Attempts, *attempt)
	return nil
}

func (m *MemoryRecorder) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if limit <= 0 || limit > len(m.order) {
		limit = len(m.order)
	}
	out := make([]Run, 0, limit)
	for i := len(m.order) - 1; i >= 0 && len(out) < limit; i-- {
		run := *m.runs[m.order[i]]
		run.Files = append([]string(nil), run.Files...)
		run.Attempts = append([]TaskAttempt(nil), run.Attempts...)
		out = append(out, run)
	}
	return out, nil
}

func (m *MemoryRecorder) evict() {
	for len(m.order) > m.capacity {
		delete(m.runs, m.order[0])
		m.order = m.order[1:]
	}
}
