package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestLock_OwnersAreUnique(t *testing.T) {
	_, client := setupTestRedis(t)

	a, b := NewLock(client), NewLock(client)

	assert.NotEmpty(t, a.Owner())
	assert.NotEqual(t, a.Owner(), b.Owner())
}

func TestLock_AcquireExcludesOthers(t *testing.T) {
	_, client := setupTestRedis(t)
	ctx := context.Background()
	a, b := NewLock(client), NewLock(client)

	ok, err := a.Acquire(ctx, "sitesync:example.com", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = b.Acquire(ctx, "sitesync:example.com", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = b.Acquire(ctx, "sitesync:other.com", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "different names do not conflict")
}

func TestLock_ExclusiveWithinInstance(t *testing.T) {
	mr, client := setupTestRedis(t)
	ctx := context.Background()
	l := NewLock(client)

	ok, err := l.Acquire(ctx, "n", time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, time.Second, mr.TTL(lockPrefix+"n"))

	ok, err = l.Acquire(ctx, "n", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "a second run in the same process must wait")

	require.NoError(t, l.Release(ctx, "n"))
	ok, err = l.Acquire(ctx, "n", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLock_ReleaseOnlyByOwner(t *testing.T) {
	mr, client := setupTestRedis(t)
	ctx := context.Background()
	a, b := NewLock(client), NewLock(client)

	ok, err := a.Acquire(ctx, "n", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, b.Release(ctx, "n"))
	assert.True(t, mr.Exists(lockPrefix+"n"))

	require.NoError(t, a.Release(ctx, "n"))
	assert.False(t, mr.Exists(lockPrefix+"n"))

	assert.NoError(t, a.Release(ctx, "n"), "releasing a free lock is a no-op")
}

func TestLock_Expiry(t *testing.T) {
	mr, client := setupTestRedis(t)
	ctx := context.Background()
	a, b := NewLock(client), NewLock(client)

	ok, err := a.Acquire(ctx, "n", time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Second)

	ok, err = b.Acquire(ctx, "n", time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLock_Extend(t *testing.T) {
	mr, client := setupTestRedis(t)
	ctx := context.Background()
	a, b := NewLock(client), NewLock(client)

	assert.Error(t, a.Extend(ctx, "n", time.Minute), "not held")

	ok, err := a.Acquire(ctx, "n", time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, a.Extend(ctx, "n", time.Hour))
	assert.Equal(t, time.Hour, mr.TTL(lockPrefix+"n"))
	assert.Error(t, b.Extend(ctx, "n", time.Hour))
}

func TestLock_Ping(t *testing.T) {
	mr, client := setupTestRedis(t)
	l := NewLock(client)

	require.NoError(t, l.Ping(context.Background()))
	mr.Close()
	assert.Error(t, l.Ping(context.Background()))
}
