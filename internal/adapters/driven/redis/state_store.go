package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/redis/go-redis/v9"

	"github.com/custodia-labs/sercha-sitesync/internal/adapters/driven/statedoc"
	"github.com/custodia-labs/sercha-sitesync/internal/core/domain"
	"github.com/custodia-labs/sercha-sitesync/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.SyncStateStore = (*StateStore)(nil)

const (
	stateKeyPrefix = "sercha:sitesync:state:"
	collectionsKey = "sercha:sitesync:collections"
)

// StateStore keeps each collection's state document in a single string key.
// SET replaces the value atomically so readers never see a partial write.
type StateStore struct {
	client *redis.Client
	logger *slog.Logger
}

// NewStateStore creates a Redis-backed state store.
func NewStateStore(client *redis.Client, logger *slog.Logger) *StateStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &StateStore{client: client, logger: logger}
}

// Load returns the stored state. A missing key or a corrupt document yields
// an empty state; only connection failures are returned as errors.
func (s *StateStore) Load(ctx context.Context, collection string) (*domain.SyncState, error) {
	data, err := s.client.Get(ctx, stateKeyPrefix+collection).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.NewSyncState(), nil
		}
		return nil, fmt.Errorf("load state %s: %w", collection, err)
	}

	state, err := statedoc.Decode(data)
	if err != nil {
		s.logger.Warn("state document is corrupt, starting fresh", "collection", collection, "error", err)
		return domain.NewSyncState(), nil
	}
	return state, nil
}

// Save writes the document and records the collection name.
func (s *StateStore) Save(ctx context.Context, collection string, state *domain.SyncState) error {
	data, err := statedoc.Encode(state)
	if err != nil {
		return err
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, stateKeyPrefix+collection, data, 0)
		pipe.SAdd(ctx, collectionsKey, collection)
		return nil
	})
	if err != nil {
		return fmt.Errorf("save state %s: %w", collection, err)
	}
	return nil
}

// List returns the collections with a stored document, sorted.
func (s *StateStore) List(ctx context.Context) ([]string, error) {
	names, err := s.client.SMembers(ctx, collectionsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	sort.Strings(names)
	return names, nil
}

// Ping checks the Redis connection.
func (s *StateStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
