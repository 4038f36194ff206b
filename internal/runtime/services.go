// Package runtime opens the storage backends selected by configuration and
// owns their lifetime.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/custodia-labs/sercha-sitesync/internal/adapters/driven/file"
	"github.com/custodia-labs/sercha-sitesync/internal/adapters/driven/postgres"
	"github.com/custodia-labs/sercha-sitesync/internal/adapters/driven/queue/memory"
	redisqueue "github.com/custodia-labs/sercha-sitesync/internal/adapters/driven/queue/redis"
	redisadapter "github.com/custodia-labs/sercha-sitesync/internal/adapters/driven/redis"
	"github.com/custodia-labs/sercha-sitesync/internal/config"
	"github.com/custodia-labs/sercha-sitesync/internal/core/ports/driven"
)

// Pinger is anything with a health check.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Services holds the state store, writer lock and connections for one
// backend. The file backend's lock only excludes runs within this process,
// since its workspace belongs to a single process.
type Services struct {
	Backend string
	Store   driven.SyncStateStore
	Lock    driven.DistributedLock

	redis  *redis.Client
	logger *slog.Logger

	mu      sync.Mutex
	closers []io.Closer
	closed  bool
}

// Open connects to the configured backend and prepares its store and lock.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Services, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Services{Backend: cfg.State.Backend, logger: logger}

	switch cfg.State.Backend {
	case config.BackendFile:
		store := file.NewStateStore(cfg.Workspace, logger)
		if err := store.Ping(ctx); err != nil {
			return nil, fmt.Errorf("prepare workspace %s: %w", cfg.Workspace, err)
		}
		s.Store = store
		s.Lock = file.NewLock()

	case config.BackendRedis:
		opts, err := redis.ParseURL(cfg.State.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse redis url: %w", err)
		}
		client := redis.NewClient(opts)
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		s.UseRedis(client)

	case config.BackendPostgres:
		db, err := postgres.Connect(ctx, postgres.DefaultConfig(cfg.State.DatabaseURL))
		if err != nil {
			return nil, err
		}
		if err := db.InitSchema(ctx); err != nil {
			db.Close()
			return nil, err
		}
		s.Store = postgres.NewStateStore(db, logger)
		s.Lock = postgres.NewAdvisoryLock(db)
		s.closers = append(s.closers, db)

	default:
		return nil, fmt.Errorf("unknown state backend %q", cfg.State.Backend)
	}

	logger.Info("state backend ready", "backend", cfg.State.Backend)
	return s, nil
}

// UseRedis wires the redis store and lock onto an existing client.
// The client is closed with the Services.
func (s *Services) UseRedis(client *redis.Client) {
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.Backend = config.BackendRedis
	s.redis = client
	s.Store = redisadapter.NewStateStore(client, s.logger)
	s.Lock = redisadapter.NewLock(client)
	s.closers = append(s.closers, client)
}

// TaskQueue returns the queue for background sync tasks. The redis
// backend shares its stream across processes; the others queue in memory.
func (s *Services) TaskQueue(ctx context.Context, size int, consumer string) (driven.TaskQueue, error) {
	var queue driven.TaskQueue
	if s.redis != nil {
		q, err := redisqueue.NewQueue(ctx, s.redis, consumer)
		if err != nil {
			return nil, err
		}
		queue = q
	} else {
		queue = memory.NewQueue(size)
	}

	s.mu.Lock()
	s.closers = append([]io.Closer{queue}, s.closers...)
	s.mu.Unlock()
	return queue, nil
}

// Checks returns the health checks for the readiness endpoint.
func (s *Services) Checks() map[string]Pinger {
	return map[string]Pinger{"state": s.Store, "lock": s.Lock}
}

// Close releases every connection. Safe to call more than once.
func (s *Services) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	var errs []error
	for _, c := range s.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
