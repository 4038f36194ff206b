// Package memory implements an in-process task queue for single-node use.
package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/custodia-labs/sercha-sitesync/internal/core/domain"
	"github.com/custodia-labs/sercha-sitesync/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.TaskQueue = (*Queue)(nil)

// DefaultCapacity is used when NewQueue is given a non-positive capacity.
const DefaultCapacity = 64

// Queue buffers task IDs in a channel and keeps every task it has seen.
// Tasks are lost on restart.
type Queue struct {
	pending chan string

	mu     sync.RWMutex
	tasks  map[string]*domain.Task
	closed bool
}

// NewQueue creates a queue holding at most capacity pending tasks.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Queue{
		pending: make(chan string, capacity),
		tasks:   make(map[string]*domain.Task),
	}
}

// Enqueue adds a task, failing with domain.ErrQueueFull when the buffer is full.
func (q *Queue) Enqueue(ctx context.Context, task *domain.Task) error {
	if task == nil {
		return errors.New("task is required")
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return errors.New("queue closed")
	}

	select {
	case q.pending <- task.ID:
		q.tasks[task.ID] = cloneTask(task)
		return nil
	default:
		return domain.ErrQueueFull
	}
}

// DequeueWithTimeout waits up to timeout for a task.
func (q *Queue) DequeueWithTimeout(ctx context.Context, timeout time.Duration) (*domain.Task, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return nil, nil
	case <-timer.C:
		return nil, nil
	case id, ok := <-q.pending:
		if !ok {
			return nil, nil
		}
		q.mu.Lock()
		defer q.mu.Unlock()
		task, found := q.tasks[id]
		if !found {
			return nil, nil
		}
		task.MarkProcessing()
		return cloneTask(task), nil
	}
}

// Complete records the final task state.
func (q *Queue) Complete(ctx context.Context, task *domain.Task) error {
	if task == nil {
		return errors.New("task is required")
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tasks[task.ID] = cloneTask(task)
	return nil
}

// GetTask returns a copy of a task, or domain.ErrNotFound.
func (q *Queue) GetTask(ctx context.Context, taskID string) (*domain.Task, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	task, ok := q.tasks[taskID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneTask(task), nil
}

// Len returns the number of tasks waiting.
func (q *Queue) Len() int {
	return len(q.pending)
}

// Ping always succeeds.
func (q *Queue) Ping(ctx context.Context) error {
	return nil
}

// Close stops accepting tasks. Pending tasks can still be drained.
func (q *Queue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.pending)
	}
	return nil
}

func cloneTask(t *domain.Task) *domain.Task {
	c := *t
	return &c
}
