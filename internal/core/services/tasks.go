package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/custodia-labs/sercha-sitesync/internal/core/domain"
	"github.com/custodia-labs/sercha-sitesync/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-sitesync/internal/core/ports/driving"
)

// Ensure taskService implements TaskService
var _ driving.TaskService = (*taskService)(nil)

type taskService struct {
	queue  driven.TaskQueue
	logger *slog.Logger
}

// NewTaskService creates a TaskService backed by a task queue.
func NewTaskService(queue driven.TaskQueue, logger *slog.Logger) driving.TaskService {
	if logger == nil {
		logger = slog.Default()
	}
	return &taskService{queue: queue, logger: logger}
}

// Submit validates a sync request and queues it for the worker
func (s *taskService) Submit(ctx context.Context, req domain.SyncRequest) (*domain.Task, error) {
	collection, err := domain.ParseCollection(req.Collection)
	if err != nil {
		return nil, err
	}
	req.Collection = collection.ID
	if req.RootURL == "" {
		req.RootURL = collection.RootURL
	}
	if req.Mode, err = domain.ParseSyncMode(string(req.Mode)); err != nil {
		return nil, err
	}
	if _, err := domain.ValidateLimit(req.Limit); err != nil {
		return nil, err
	}
	if req.MaxPages < 0 {
		return nil, fmt.Errorf("%w: max_pages cannot be negative", domain.ErrInvalidInput)
	}

	task := domain.NewTask(req)
	if err := s.queue.Enqueue(ctx, task); err != nil {
		return nil, err
	}

	s.logger.Info("sync task queued",
		"task_id", task.ID,
		"collection", req.Collection,
		"mode", req.Mode,
	)
	return task, nil
}

// Get retrieves a task by ID
func (s *taskService) Get(ctx context.Context, taskID string) (*domain.Task, error) {
	if taskID == "" {
		return nil, domain.ErrInvalidInput
	}
	return s.queue.GetTask(ctx, taskID)
}
