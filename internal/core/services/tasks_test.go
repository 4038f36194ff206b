package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-sitesync/internal/core/domain"
)

// fakeTaskQueue implements driven.TaskQueue for testing
type fakeTaskQueue struct {
	mu         sync.Mutex
	tasks      map[string]*domain.Task
	order      []string
	enqueueErr error
}

func newFakeTaskQueue() *fakeTaskQueue {
	return &fakeTaskQueue{tasks: make(map[string]*domain.Task)}
}

func (q *fakeTaskQueue) Enqueue(ctx context.Context, task *domain.Task) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.enqueueErr != nil {
		return q.enqueueErr
	}
	q.tasks[task.ID] = task
	q.order = append(q.order, task.ID)
	return nil
}

func (q *fakeTaskQueue) DequeueWithTimeout(ctx context.Context, timeout time.Duration) (*domain.Task, error) {
	return nil, nil
}

func (q *fakeTaskQueue) Complete(ctx context.Context, task *domain.Task) error {
	return nil
}

func (q *fakeTaskQueue) GetTask(ctx context.Context, taskID string) (*domain.Task, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	task, ok := q.tasks[taskID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return task, nil
}

func (q *fakeTaskQueue) Ping(ctx context.Context) error { return nil }
func (q *fakeTaskQueue) Close() error                   { return nil }

func (q *fakeTaskQueue) queued() []*domain.Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]*domain.Task, 0, len(q.order))
	for _, id := range q.order {
		out = append(out, q.tasks[id])
	}
	return out
}

func TestTaskService_Submit(t *testing.T) {
	queue := newFakeTaskQueue()
	svc := NewTaskService(queue, discardLogger())

	task, err := svc.Submit(context.Background(), domain.SyncRequest{Collection: "https://www.Example.com/docs"})

	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusPending, task.Status)
	assert.Equal(t, "example.com", task.Request.Collection)
	assert.Equal(t, "https://example.com", task.Request.RootURL)
	assert.Equal(t, domain.SyncModeIncremental, task.Request.Mode)

	got, err := svc.Get(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Same(t, task, got)
}

func TestTaskService_SubmitValidation(t *testing.T) {
	svc := NewTaskService(newFakeTaskQueue(), discardLogger())
	ctx := context.Background()

	for _, req := range []domain.SyncRequest{
		{Collection: ""},
		{Collection: "localhost"},
		{Collection: "example.com", Mode: "weird"},
		{Collection: "example.com", Limit: domain.MaxDiscoveryLimit + 1},
		{Collection: "example.com", MaxPages: -2},
	} {
		_, err := svc.Submit(ctx, req)
		assert.ErrorIs(t, err, domain.ErrInvalidInput, "request %+v", req)
	}
}

func TestTaskService_QueueFull(t *testing.T) {
	queue := newFakeTaskQueue()
	queue.enqueueErr = domain.ErrQueueFull
	svc := NewTaskService(queue, discardLogger())

	_, err := svc.Submit(context.Background(), domain.SyncRequest{Collection: "example.com"})
	assert.True(t, errors.Is(err, domain.ErrQueueFull))
}

func TestTaskService_GetUnknown(t *testing.T) {
	svc := NewTaskService(newFakeTaskQueue(), discardLogger())

	_, err := svc.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = svc.Get(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
