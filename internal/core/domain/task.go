package domain

import (
	"time"

	"github.com/google/uuid"
)

// TaskStatus represents the current state of a task
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

// Task is a queued sync run processed by the worker
type Task struct {
	// ID is the unique identifier for this task
	ID string `json:"id"`

	// Request is the sync run to execute
	Request SyncRequest `json:"request"`

	// Status is the current state of the task
	Status TaskStatus `json:"status"`

	// Result is set once the run finished, including partial runs
	Result *SyncResult `json:"result,omitempty"`

	// Error contains the run-level error if failed
	Error string `json:"error,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// NewTask creates a pending task for a sync request
func NewTask(req SyncRequest) *Task {
	now := time.Now()
	return &Task{
		ID:        uuid.NewString(),
		Request:   req,
		Status:    TaskStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// MarkProcessing updates the task to processing state
func (t *Task) MarkProcessing() {
	now := time.Now()
	t.Status = TaskStatusProcessing
	t.StartedAt = &now
	t.UpdatedAt = now
}

// MarkCompleted updates the task to completed state
func (t *Task) MarkCompleted(result *SyncResult) {
	now := time.Now()
	t.Status = TaskStatusCompleted
	t.Result = result
	t.CompletedAt = &now
	t.UpdatedAt = now
	t.Error = ""
}

// MarkFailed updates the task to failed state
func (t *Task) MarkFailed(err string) {
	now := time.Now()
	t.Status = TaskStatusFailed
	t.CompletedAt = &now
	t.UpdatedAt = now
	t.Error = err
}

// IsDone reports whether the task reached a terminal state
func (t *Task) IsDone() bool {
	return t.Status == TaskStatusCompleted || t.Status == TaskStatusFailed
}
