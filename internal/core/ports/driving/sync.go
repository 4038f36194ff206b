package driving

import (
	"context"

	"github.com/custodia-labs/sercha-sitesync/internal/core/domain"
)

// SyncService runs synchronisations and reports on persisted state
type SyncService interface {
	// Sync runs one synchronisation to completion. A partial run still returns
	// a result; an error means the run could not proceed at all.
	Sync(ctx context.Context, req domain.SyncRequest) (*domain.SyncResult, error)

	// State summarises the persisted state of a collection
	State(ctx context.Context, collection string) (*domain.StateSummary, error)

	// Collections lists the collections with persisted state
	Collections(ctx context.Context) ([]string, error)
}

// TaskService queues sync runs for the background worker
type TaskService interface {
	// Submit validates a request and queues it
	Submit(ctx context.Context, req domain.SyncRequest) (*domain.Task, error)

	// Get retrieves a queued or finished task
	Get(ctx context.Context, taskID string) (*domain.Task, error)
}
