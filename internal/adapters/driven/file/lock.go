package file

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/custodia-labs/sercha-sitesync/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.DistributedLock = (*Lock)(nil)

// Lock is the writer lock for the file backend. The workspace belongs to one
// process, so a lock table in memory is enough to keep two runs of the same
// collection apart.
//
// Like the postgres advisory lock it ignores the TTL: a lock is held until
// Release, and it cannot outlive the process that took it.
type Lock struct {
	mu   sync.Mutex
	held map[string]struct{}
}

// NewLock creates an empty lock table.
func NewLock() *Lock {
	return &Lock{held: make(map[string]struct{})}
}

// Acquire takes name unless any run in this process already holds it.
func (l *Lock) Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.held[name]; ok {
		return false, nil
	}
	l.held[name] = struct{}{}
	return true, nil
}

// Release drops name. Releasing a lock that is not held is a no-op.
func (l *Lock) Release(ctx context.Context, name string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, name)
	return nil
}

// Extend only confirms that name is still held.
func (l *Lock) Extend(ctx context.Context, name string, ttl time.Duration) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.held[name]; !ok {
		return fmt.Errorf("lock %s not held", name)
	}
	return nil
}

// Ping always succeeds.
func (l *Lock) Ping(ctx context.Context) error {
	return nil
}
