// Package worker runs queued sync tasks in the background.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/custodia-labs/sercha-sitesync/internal/core/domain"
	"github.com/custodia-labs/sercha-sitesync/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-sitesync/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-sitesync/internal/core/services"
)

// Worker processes tasks from the task queue.
// It runs the sync service for each task and stores the outcome.
type Worker struct {
	taskQueue   driven.TaskQueue
	syncService driving.SyncService
	scheduler   *services.Scheduler
	logger      *slog.Logger

	// Configuration
	concurrency    int
	dequeueTimeout time.Duration
	errorBackoff   time.Duration

	// Internal state
	mu      sync.RWMutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// WorkerConfig holds configuration for the worker.
type WorkerConfig struct {
	TaskQueue      driven.TaskQueue
	SyncService    driving.SyncService
	Scheduler      *services.Scheduler // Optional
	Logger         *slog.Logger
	Concurrency    int           // Number of concurrent task processors
	DequeueTimeout time.Duration // How long to wait for a task before checking again
	ErrorBackoff   time.Duration // Pause after a queue error
}

// NewWorker creates a new task worker.
func NewWorker(cfg WorkerConfig) *Worker {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	dequeueTimeout := cfg.DequeueTimeout
	if dequeueTimeout <= 0 {
		dequeueTimeout = 5 * time.Second
	}

	errorBackoff := cfg.ErrorBackoff
	if errorBackoff <= 0 {
		errorBackoff = time.Second
	}

	return &Worker{
		taskQueue:      cfg.TaskQueue,
		syncService:    cfg.SyncService,
		scheduler:      cfg.Scheduler,
		logger:         logger,
		concurrency:    concurrency,
		dequeueTimeout: dequeueTimeout,
		errorBackoff:   errorBackoff,
	}
}

// Start launches the processing goroutines and the scheduler.
// They run until Stop is called or ctx is cancelled.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	w.mu.Unlock()

	w.logger.Info("worker starting",
		"concurrency", w.concurrency,
		"dequeue_timeout", w.dequeueTimeout,
	)

	if w.scheduler != nil {
		if err := w.scheduler.Start(ctx); err != nil {
			w.logger.Error("failed to start scheduler", "error", err)
		}
	}

	// Runs are cancelled on Stop as well as on ctx.
	runCtx, cancel := context.WithCancel(ctx)
	go func() {
		select {
		case <-w.stopCh:
		case <-runCtx.Done():
		}
		cancel()
	}()

	var wg sync.WaitGroup
	for i := 0; i < w.concurrency; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			w.processLoop(runCtx, workerID)
		}(i)
	}

	go func() {
		wg.Wait()
		cancel()
		close(w.doneCh)
	}()

	return nil
}

// Stop cancels in-flight runs and waits for the goroutines to exit.
// Interrupted runs keep their polling job records and resume next time.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	close(w.stopCh)
	w.mu.Unlock()

	if w.scheduler != nil {
		w.scheduler.Stop()
	}

	<-w.doneCh

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()

	w.logger.Info("worker stopped")
}

// Wait blocks until the worker stops.
func (w *Worker) Wait() {
	w.mu.RLock()
	done := w.doneCh
	w.mu.RUnlock()
	if done != nil {
		<-done
	}
}

// processLoop is the main processing loop for a worker goroutine.
func (w *Worker) processLoop(ctx context.Context, workerID int) {
	logger := w.logger.With("worker_id", workerID)
	logger.Debug("worker goroutine started")

	for {
		if ctx.Err() != nil {
			logger.Debug("worker goroutine exiting")
			return
		}

		task, err := w.taskQueue.DequeueWithTimeout(ctx, w.dequeueTimeout)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			logger.Error("failed to dequeue task", "error", err)
			select {
			case <-ctx.Done():
			case <-time.After(w.errorBackoff):
			}
			continue
		}

		if task == nil {
			continue
		}

		w.processTask(ctx, task, logger)
	}
}

// processTask runs one sync and records the result on the task.
// A partial run still completes the task; its result lists what is missing.
func (w *Worker) processTask(ctx context.Context, task *domain.Task, logger *slog.Logger) {
	logger = logger.With("task_id", task.ID, "collection", task.Request.Collection, "mode", task.Request.Mode)
	logger.Info("processing task")

	start := time.Now()
	result, err := w.syncService.Sync(ctx, task.Request)
	duration := time.Since(start)

	if err != nil {
		logger.Error("task failed", "duration", duration, "error", err)
		task.MarkFailed(err.Error())
	} else {
		logger.Info("task completed",
			"duration", duration,
			"resources", len(result.Resources),
			"incomplete", len(result.Incomplete),
		)
		task.MarkCompleted(result)
	}

	if err := w.taskQueue.Complete(context.WithoutCancel(ctx), task); err != nil {
		logger.Error("failed to store task result", "error", err)
	}
}

// Health is the worker's health report.
type Health struct {
	Running     bool   `json:"running"`
	QueueHealth bool   `json:"queue_health"`
	Error       string `json:"error,omitempty"`
}

// Health returns the health status of the worker.
func (w *Worker) Health(ctx context.Context) Health {
	w.mu.RLock()
	running := w.running
	w.mu.RUnlock()

	health := Health{Running: running}
	if err := w.taskQueue.Ping(ctx); err != nil {
		health.Error = err.Error()
	} else {
		health.QueueHealth = true
	}
	return health
}
