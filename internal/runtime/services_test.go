package runtime

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-sitesync/internal/adapters/driven/file"
	"github.com/custodia-labs/sercha-sitesync/internal/adapters/driven/queue/memory"
	redisqueue "github.com/custodia-labs/sercha-sitesync/internal/adapters/driven/queue/redis"
	redisadapter "github.com/custodia-labs/sercha-sitesync/internal/adapters/driven/redis"
	"github.com/custodia-labs/sercha-sitesync/internal/config"
	"github.com/custodia-labs/sercha-sitesync/internal/core/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Workspace: t.TempDir(),
		State:     config.StateConfig{Backend: config.BackendFile},
	}
}

func TestOpen_File(t *testing.T) {
	ctx := context.Background()
	svc, err := Open(ctx, testConfig(t), testLogger())
	require.NoError(t, err)
	defer svc.Close()

	assert.IsType(t, &file.StateStore{}, svc.Store)
	assert.IsType(t, &file.Lock{}, svc.Lock)

	checks := svc.Checks()
	require.Contains(t, checks, "state")
	require.Contains(t, checks, "lock")
	assert.NoError(t, checks["state"].Ping(ctx))

	ok, err := svc.Lock.Acquire(ctx, "sitesync:example.com", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = svc.Lock.Acquire(ctx, "sitesync:example.com", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "a second run in the same process is excluded")

	queue, err := svc.TaskQueue(ctx, 2, "test")
	require.NoError(t, err)
	assert.IsType(t, &memory.Queue{}, queue)
}

func TestOpen_Redis(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)

	cfg := testConfig(t)
	cfg.State = config.StateConfig{Backend: config.BackendRedis, RedisURL: "redis://" + mr.Addr()}

	svc, err := Open(ctx, cfg, testLogger())
	require.NoError(t, err)

	assert.IsType(t, &redisadapter.StateStore{}, svc.Store)
	assert.IsType(t, &redisadapter.Lock{}, svc.Lock)
	assert.Len(t, svc.Checks(), 2)

	state := domain.NewSyncState()
	state.LastDiscovered = domain.DiscoverySnapshot{Resources: []string{"https://example.com/a"}}
	require.NoError(t, svc.Store.Save(ctx, "example.com", state))

	queue, err := svc.TaskQueue(ctx, 2, "test")
	require.NoError(t, err)
	assert.IsType(t, &redisqueue.Queue{}, queue)

	require.NoError(t, svc.Close())
	assert.NoError(t, svc.Close(), "second close is a no-op")
	assert.Error(t, svc.Store.Ping(ctx), "client is closed")
}

func TestOpen_RedisUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	cfg := testConfig(t)
	cfg.State = config.StateConfig{Backend: config.BackendRedis, RedisURL: "redis://" + addr}

	_, err := Open(context.Background(), cfg, testLogger())
	assert.Error(t, err)
}

func TestOpen_InvalidRedisURL(t *testing.T) {
	cfg := testConfig(t)
	cfg.State = config.StateConfig{Backend: config.BackendRedis, RedisURL: "not a url"}

	_, err := Open(context.Background(), cfg, testLogger())
	assert.Error(t, err)
}

func TestOpen_UnknownBackend(t *testing.T) {
	cfg := testConfig(t)
	cfg.State.Backend = "s3"

	_, err := Open(context.Background(), cfg, nil)
	assert.Error(t, err)
}
