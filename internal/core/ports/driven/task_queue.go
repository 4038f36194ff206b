package driven

import (
	"context"
	"time"

	"github.com/custodia-labs/sercha-sitesync/internal/core/domain"
)

// TaskQueue holds sync runs waiting for the worker.
// Implementations can use Redis or process memory.
type TaskQueue interface {
	// Enqueue adds a pending task
	Enqueue(ctx context.Context, task *domain.Task) error

	// DequeueWithTimeout returns the next pending task, marked as processing.
	// Returns nil, nil if nothing arrives within timeout.
	DequeueWithTimeout(ctx context.Context, timeout time.Duration) (*domain.Task, error)

	// Complete stores the final state of a task and removes it from the queue
	Complete(ctx context.Context, task *domain.Task) error

	// GetTask retrieves a task by ID
	GetTask(ctx context.Context, taskID string) (*domain.Task, error)

	// Ping checks if the queue backend is healthy
	Ping(ctx context.Context) error

	// Close cleans up resources
	Close() error
}
