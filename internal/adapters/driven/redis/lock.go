// Package redis holds the Redis-backed state store and distributed lock.
package redis

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/custodia-labs/sercha-sitesync/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.DistributedLock = (*Lock)(nil)

const lockPrefix = "sercha:sitesync:lock:"

// Lock serialises sync runs across processes with SET NX PX.
// Each instance writes its own owner token so it never releases or extends
// a lock that expired and was taken by someone else.
type Lock struct {
	client *redis.Client
	owner  string
}

// NewLock creates a lock bound to client.
func NewLock(client *redis.Client) *Lock {
	host, _ := os.Hostname()
	return &Lock{
		client: client,
		owner:  fmt.Sprintf("%s:%d:%s", host, os.Getpid(), uuid.NewString()),
	}
}

// Acquire takes the lock if nobody holds it, this instance included, so two
// runs in one process exclude each other as well.
func (l *Lock) Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	ok, err := l.client.SetNX(ctx, lockPrefix+name, l.owner, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire lock %s: %w", name, err)
	}
	return ok, nil
}

var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// Release drops the lock if this instance holds it.
func (l *Lock) Release(ctx context.Context, name string) error {
	if err := releaseScript.Run(ctx, l.client, []string{lockPrefix + name}, l.owner).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("release lock %s: %w", name, err)
	}
	return nil
}

var extendScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("pexpire", KEYS[1], ARGV[2])
end
return 0
`)

// Extend pushes the expiry of a held lock.
func (l *Lock) Extend(ctx context.Context, name string, ttl time.Duration) error {
	res, err := extendScript.Run(ctx, l.client, []string{lockPrefix + name}, l.owner, ttl.Milliseconds()).Int64()
	if err != nil {
		return fmt.Errorf("extend lock %s: %w", name, err)
	}
	if res == 0 {
		return fmt.Errorf("lock %s not held by %s", name, l.owner)
	}
	return nil
}

// Ping checks the Redis connection.
func (l *Lock) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}

// Owner returns the token written into held locks.
func (l *Lock) Owner() string {
	return l.owner
}
