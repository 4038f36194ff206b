package driven

import (
	"context"
	"time"
)

// DistributedLock guards a collection's state document so that one sync run
// writes it at a time. The scheduler uses the same lock to enqueue each
// schedule once across replicas.
type DistributedLock interface {
	// Acquire takes name for ttl. It returns false when any holder, this
	// instance included, already has it. Backends without expiry hold the
	// lock until Release.
	Acquire(ctx context.Context, name string, ttl time.Duration) (acquired bool, err error)

	// Release gives up name if this instance holds it. A lock that expired or
	// passed to another owner is left alone.
	Release(ctx context.Context, name string) error

	// Extend pushes the expiry of a held lock to ttl from now. It fails when
	// this instance no longer holds name, which a long run treats as lost.
	Extend(ctx context.Context, name string, ttl time.Duration) error

	// Ping checks the lock backend.
	Ping(ctx context.Context) error
}
