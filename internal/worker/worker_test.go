package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/custodia-labs/sercha-sitesync/internal/adapters/driven/queue/memory"
	"github.com/custodia-labs/sercha-sitesync/internal/core/domain"
	"github.com/custodia-labs/sercha-sitesync/internal/core/services"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// mockSyncService implements driving.SyncService for testing
type mockSyncService struct {
	mu     sync.Mutex
	calls  []domain.SyncRequest
	syncFn func(ctx context.Context, req domain.SyncRequest) (*domain.SyncResult, error)
}

func (m *mockSyncService) Sync(ctx context.Context, req domain.SyncRequest) (*domain.SyncResult, error) {
	m.mu.Lock()
	m.calls = append(m.calls, req)
	m.mu.Unlock()
	if m.syncFn != nil {
		return m.syncFn(ctx, req)
	}
	return &domain.SyncResult{Collection: req.Collection, Mode: req.Mode}, nil
}

func (m *mockSyncService) State(ctx context.Context, collection string) (*domain.StateSummary, error) {
	return nil, domain.ErrNotFound
}

func (m *mockSyncService) Collections(ctx context.Context) ([]string, error) {
	return nil, nil
}

func (m *mockSyncService) Calls() []domain.SyncRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.SyncRequest(nil), m.calls...)
}

// failingQueue wraps a memory queue and injects errors
type failingQueue struct {
	*memory.Queue
	dequeueErrs atomic.Int32
	completeErr error
	pingErr     error
}

func (q *failingQueue) DequeueWithTimeout(ctx context.Context, timeout time.Duration) (*domain.Task, error) {
	if q.dequeueErrs.Load() > 0 {
		q.dequeueErrs.Add(-1)
		return nil, errors.New("queue unavailable")
	}
	return q.Queue.DequeueWithTimeout(ctx, timeout)
}

func (q *failingQueue) Complete(ctx context.Context, task *domain.Task) error {
	if q.completeErr != nil {
		return q.completeErr
	}
	return q.Queue.Complete(ctx, task)
}

func (q *failingQueue) Ping(ctx context.Context) error {
	return q.pingErr
}

func waitForStatus(t *testing.T, q interface {
	GetTask(context.Context, string) (*domain.Task, error)
}, id string, want domain.TaskStatus) *domain.Task {
	t.Helper()
	var task *domain.Task
	require.Eventually(t, func() bool {
		var err error
		task, err = q.GetTask(context.Background(), id)
		return err == nil && task.Status == want
	}, 2*time.Second, 5*time.Millisecond)
	return task
}

func TestNewWorker_Defaults(t *testing.T) {
	w := NewWorker(WorkerConfig{TaskQueue: memory.NewQueue(1), SyncService: &mockSyncService{}})

	assert.Equal(t, 1, w.concurrency)
	assert.Equal(t, 5*time.Second, w.dequeueTimeout)
	assert.Equal(t, time.Second, w.errorBackoff)
	assert.NotNil(t, w.logger)
}

func TestWorker_StartStop(t *testing.T) {
	defer goleak.VerifyNone(t)

	w := NewWorker(WorkerConfig{
		TaskQueue:      memory.NewQueue(4),
		SyncService:    &mockSyncService{},
		Logger:         discardLogger(),
		Concurrency:    3,
		DequeueTimeout: 10 * time.Millisecond,
	})

	require.NoError(t, w.Start(context.Background()))
	require.NoError(t, w.Start(context.Background()), "second start is a no-op")
	assert.True(t, w.Health(context.Background()).Running)

	w.Stop()
	w.Stop()
	assert.False(t, w.Health(context.Background()).Running)
}

func TestWorker_ProcessesTasks(t *testing.T) {
	defer goleak.VerifyNone(t)

	queue := memory.NewQueue(4)
	syncSvc := &mockSyncService{}
	w := NewWorker(WorkerConfig{
		TaskQueue:      queue,
		SyncService:    syncSvc,
		Logger:         discardLogger(),
		Concurrency:    2,
		DequeueTimeout: 10 * time.Millisecond,
	})
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	task := domain.NewTask(domain.SyncRequest{Collection: "example.com", Mode: domain.SyncModeIncremental})
	require.NoError(t, queue.Enqueue(context.Background(), task))

	done := waitForStatus(t, queue, task.ID, domain.TaskStatusCompleted)
	require.NotNil(t, done.Result)
	assert.Equal(t, "example.com", done.Result.Collection)
	assert.NotNil(t, done.StartedAt)
	assert.NotNil(t, done.CompletedAt)
	assert.Equal(t, []domain.SyncRequest{task.Request}, syncSvc.Calls())
}

func TestWorker_FailedSync(t *testing.T) {
	defer goleak.VerifyNone(t)

	queue := memory.NewQueue(4)
	w := NewWorker(WorkerConfig{
		TaskQueue: queue,
		SyncService: &mockSyncService{syncFn: func(ctx context.Context, req domain.SyncRequest) (*domain.SyncResult, error) {
			return nil, domain.ErrSyncInProgress
		}},
		Logger:         discardLogger(),
		DequeueTimeout: 10 * time.Millisecond,
	})
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	task := domain.NewTask(domain.SyncRequest{Collection: "example.com"})
	require.NoError(t, queue.Enqueue(context.Background(), task))

	failed := waitForStatus(t, queue, task.ID, domain.TaskStatusFailed)
	assert.Equal(t, domain.ErrSyncInProgress.Error(), failed.Error)
	assert.Nil(t, failed.Result)
}

func TestWorker_StopCancelsRunningSync(t *testing.T) {
	defer goleak.VerifyNone(t)

	queue := memory.NewQueue(4)
	started := make(chan struct{})
	w := NewWorker(WorkerConfig{
		TaskQueue: queue,
		SyncService: &mockSyncService{syncFn: func(ctx context.Context, req domain.SyncRequest) (*domain.SyncResult, error) {
			close(started)
			<-ctx.Done()
			return nil, ctx.Err()
		}},
		Logger:         discardLogger(),
		DequeueTimeout: 10 * time.Millisecond,
	})
	require.NoError(t, w.Start(context.Background()))

	task := domain.NewTask(domain.SyncRequest{Collection: "example.com"})
	require.NoError(t, queue.Enqueue(context.Background(), task))
	<-started

	w.Stop()

	stored, err := queue.GetTask(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusFailed, stored.Status)
	assert.Equal(t, context.Canceled.Error(), stored.Error)
}

func TestWorker_ContextCancellation(t *testing.T) {
	defer goleak.VerifyNone(t)

	w := NewWorker(WorkerConfig{
		TaskQueue:      memory.NewQueue(1),
		SyncService:    &mockSyncService{},
		Logger:         discardLogger(),
		DequeueTimeout: time.Minute,
	})
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, w.Start(ctx))

	cancel()

	waited := make(chan struct{})
	go func() {
		w.Wait()
		close(waited)
	}()
	select {
	case <-waited:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not exit after cancellation")
	}
	w.Stop()
}

func TestWorker_DequeueErrorBacksOff(t *testing.T) {
	defer goleak.VerifyNone(t)

	queue := &failingQueue{Queue: memory.NewQueue(4)}
	queue.dequeueErrs.Store(2)
	w := NewWorker(WorkerConfig{
		TaskQueue:      queue,
		SyncService:    &mockSyncService{},
		Logger:         discardLogger(),
		DequeueTimeout: 10 * time.Millisecond,
		ErrorBackoff:   time.Millisecond,
	})
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	task := domain.NewTask(domain.SyncRequest{Collection: "example.com"})
	require.NoError(t, queue.Enqueue(context.Background(), task))

	waitForStatus(t, queue, task.ID, domain.TaskStatusCompleted)
	assert.Equal(t, int32(0), queue.dequeueErrs.Load())
}

func TestWorker_CompleteErrorIsLogged(t *testing.T) {
	defer goleak.VerifyNone(t)

	queue := &failingQueue{Queue: memory.NewQueue(4), completeErr: errors.New("store down")}
	syncSvc := &mockSyncService{}
	w := NewWorker(WorkerConfig{
		TaskQueue:      queue,
		SyncService:    syncSvc,
		Logger:         discardLogger(),
		DequeueTimeout: 10 * time.Millisecond,
	})
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	task := domain.NewTask(domain.SyncRequest{Collection: "example.com"})
	require.NoError(t, queue.Enqueue(context.Background(), task))

	require.Eventually(t, func() bool { return len(syncSvc.Calls()) == 1 }, 2*time.Second, 5*time.Millisecond)
	stored, err := queue.GetTask(context.Background(), task.ID)
	require.NoError(t, err)
	assert.NotEqual(t, domain.TaskStatusCompleted, stored.Status)
}

func TestWorker_Health_QueueError(t *testing.T) {
	queue := &failingQueue{Queue: memory.NewQueue(1), pingErr: errors.New("connection refused")}
	w := NewWorker(WorkerConfig{TaskQueue: queue, SyncService: &mockSyncService{}})

	health := w.Health(context.Background())

	assert.False(t, health.Running)
	assert.False(t, health.QueueHealth)
	assert.Equal(t, "connection refused", health.Error)
}

func TestWorker_RunsScheduledSyncs(t *testing.T) {
	defer goleak.VerifyNone(t)

	queue := memory.NewQueue(4)
	syncSvc := &mockSyncService{}
	scheduler := services.NewScheduler(services.SchedulerConfig{
		Tasks: services.NewTaskService(queue, discardLogger()),
		Schedules: []domain.ScheduledSync{
			{Collection: "docs.example.com", Mode: domain.SyncModeIncremental, Interval: time.Hour},
		},
		Logger:       discardLogger(),
		PollInterval: time.Hour,
	})
	w := NewWorker(WorkerConfig{
		TaskQueue:      queue,
		SyncService:    syncSvc,
		Scheduler:      scheduler,
		Logger:         discardLogger(),
		DequeueTimeout: 10 * time.Millisecond,
	})
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	require.Eventually(t, func() bool { return len(syncSvc.Calls()) == 1 }, 2*time.Second, 5*time.Millisecond)
	call := syncSvc.Calls()[0]
	assert.Equal(t, "docs.example.com", call.Collection)
	assert.Equal(t, "https://docs.example.com", call.RootURL)
}
