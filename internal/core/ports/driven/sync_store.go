package driven

import (
	"context"

	"github.com/custodia-labs/sercha-sitesync/internal/core/domain"
)

// SyncStateStore persists one state document per collection.
//
// Load never fails on missing or unreadable documents: it returns an empty
// state and logs a warning, so a corrupt document costs one full refetch
// rather than a crash. An error is only returned when the backend itself is
// unreachable.
//
// Save replaces the whole document atomically. A crash during Save leaves
// either the previous document or the new one, never a partial write.
type SyncStateStore interface {
	// Load returns the state for a collection, or an empty state
	Load(ctx context.Context, collection string) (*domain.SyncState, error)

	// Save atomically replaces the state for a collection
	Save(ctx context.Context, collection string, state *domain.SyncState) error

	// List returns the collections that have a stored document
	List(ctx context.Context) ([]string, error)

	// Ping checks if the backend is healthy
	Ping(ctx context.Context) error
}
