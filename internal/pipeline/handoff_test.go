package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisHandoffStore(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := NewRedisHandoffStore(client, time.Hour)
	ctx := context.Background()

	_, err := store.Get(ctx, "manual__1", TaskDownload)
	require.ErrorIs(t, err, ErrHandoffMissing)

	require.NoError(t, store.Put(ctx, "manual__1", TaskDownload, testManifest()))
	assert.True(t, srv.Exists("handoff:manual__1:download_minio"))
	assert.Equal(t, time.Hour, srv.TTL("handoff:manual__1:download_minio"))

	got, err := store.Get(ctx, "manual__1", TaskDownload)
	require.NoError(t, err)
	assert.Equal(t, testManifest(), got)

	srv.FastForward(2 * time.Hour)
	_, err = store.Get(ctx, "manual__1", TaskDownload)
	assert.ErrorIs(t, err, ErrHandoffMissing)
}

func TestRedisHandoffStoreDefaultsTTL(t *testing.T) {
	store := NewRedisHandoffStore(nil, 0)
	assert.Equal(t, 24*time.Hour, store.ttl)
}

func TestMemoryHandoffStore(t *testing.T) {
	store := NewMemoryHandoffStore()
	ctx := context.Background()

	_, err := store.Get(ctx, "r", TaskDownload)
	require.ErrorIs(t, err, ErrHandoffMissing)

	require.NoError(t, store.Put(ctx, "r", TaskDownload, testManifest()))
	got, err := store.Get(ctx, "r", TaskDownload)
	require.NoError(t, err)
	assert.Equal(t, testManifest(), got)
}
