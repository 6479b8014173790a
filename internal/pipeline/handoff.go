package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/andresuchdata/banking-pipeline/internal/ingest"
	"github.com/redis/go-redis/v9"
)

// ErrHandoffMissing means no upstream task output exists for the run.
var ErrHandoffMissing = errors.New("handoff value not found")

// HandoffStore carries a task's return value to the next task when the two run
// in separate processes.
type HandoffStore interface {
	Put(ctx context.Context, runID, taskID string, manifest ingest.Manifest) error
	Get(ctx context.Context, runID, taskID string) (ingest.Manifest, error)
}

func handoffKey(runID, taskID string) string {
	return fmt.Sprintf("handoff:%s:%s", runID, taskID)
}

type MemoryHandoffStore struct {
	mu     sync.Mutex
	values map[string][]byte
}

func NewMemoryHandoffStore() *MemoryHandoffStore {
	return &MemoryHandoffStore{values: make(map[string][]byte)}
}

func (s *MemoryHandoffStore) Put(ctx context.Context, runID, taskID string, manifest ingest.Manifest) error {
	payload, err := manifest.Encode()
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[handoffKey(runID, taskID)] = payload
	return nil
}

func (s *MemoryHandoffStore) Get(ctx context.Context, runID, taskID string) (ingest.Manifest, error) {
	s.mu.Lock()
	payload, ok := s.values[handoffKey(runID, taskID)]
	s.mu.Unlock()
	if !ok {
		return nil, ErrHandoffMissing
	}
	return ingest.DecodeManifest(payload)
}

type RedisHandoffStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisHandoffStore(client *redis.Client, ttl time.Duration) *RedisHandoffStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisHandoffStore{client: client, ttl: ttl}
}

func (s *RedisHandoffStore) Put(ctx context.Context, runID, taskID string, manifest ingest.Manifest) error {
	payload, err := manifest.Encode()
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, handoffKey(runID, taskID), payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("store handoff for %s: %w", runID, err)
	}
	return nil
}

func (s *RedisHandoffStore) Get(ctx context.Context, runID, taskID string) (ingest.Manifest, error) {
	payload, err := s.client.Get(ctx, handoffKey(runID, taskID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrHandoffMissing
	}
	if err != nil {
		return nil, fmt.Errorf("read handoff for %s: %w", runID, err)
	}
	return ingest.DecodeManifest(payload)
}
