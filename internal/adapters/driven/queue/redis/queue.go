// Package redis implements the task queue with Redis Streams.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/custodia-labs/sercha-sitesync/internal/core/domain"
	"github.com/custodia-labs/sercha-sitesync/internal/core/ports/driven"
)

const (
	taskStream    = "sercha:sitesync:tasks"
	taskGroup     = "sercha:sitesync:workers"
	taskKeyPrefix = "sercha:sitesync:task:"
	msgSuffix     = ":msg"

	// taskTTL bounds how long finished tasks stay readable
	taskTTL = 24 * time.Hour

	// claimIdle is how long a delivered task may sit unacknowledged before
	// another worker takes it over
	claimIdle = 45 * time.Minute
)

// Verify interface compliance
var _ driven.TaskQueue = (*Queue)(nil)

// Queue stores task bodies under string keys and passes task IDs through a
// stream consumed by a single consumer group.
type Queue struct {
	client   *redis.Client
	consumer string
}

// NewQueue creates the consumer group if needed.
// consumer must be unique per worker process.
func NewQueue(ctx context.Context, client *redis.Client, consumer string) (*Queue, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if consumer == "" {
		consumer = fmt.Sprintf("worker-%d", time.Now().UnixNano())
	}

	err := client.XGroupCreateMkStream(ctx, taskStream, taskGroup, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return nil, fmt.Errorf("create consumer group: %w", err)
	}
	return &Queue{client: client, consumer: consumer}, nil
}

// Enqueue stores the task and appends its ID to the stream.
func (q *Queue) Enqueue(ctx context.Context, task *domain.Task) error {
	if task == nil {
		return errors.New("task is required")
	}
	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("marshal task: %w", err)
	}

	_, err = q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, taskKeyPrefix+task.ID, data, taskTTL)
		pipe.XAdd(ctx, &redis.XAddArgs{
			Stream: taskStream,
			Values: map[string]interface{}{
				"task_id":    task.ID,
				"collection": task.Request.Collection,
			},
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("enqueue task: %w", err)
	}
	return nil
}

// DequeueWithTimeout returns the next task, preferring ones abandoned by a
// crashed worker. It returns nil, nil when nothing arrives within timeout.
func (q *Queue) DequeueWithTimeout(ctx context.Context, timeout time.Duration) (*domain.Task, error) {
	if task, err := q.claimAbandoned(ctx); err == nil && task != nil {
		return task, nil
	}

	if timeout <= 0 {
		timeout = time.Millisecond
	}
	streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    taskGroup,
		Consumer: q.consumer,
		Streams:  []string{taskStream, ">"},
		Count:    1,
		Block:    timeout,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, nil
		}
		return nil, fmt.Errorf("read task stream: %w", err)
	}
	if len(streams) == 0 || len(streams[0].Messages) == 0 {
		return nil, nil
	}
	return q.take(ctx, streams[0].Messages[0])
}

// take loads the task behind a stream message and marks it processing.
// Messages whose task is gone are acknowledged and skipped.
func (q *Queue) take(ctx context.Context, msg redis.XMessage) (*domain.Task, error) {
	id, _ := msg.Values["task_id"].(string)
	task, err := q.GetTask(ctx, id)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	if task == nil {
		q.client.XAck(ctx, taskStream, taskGroup, msg.ID)
		q.client.XDel(ctx, taskStream, msg.ID)
		return nil, nil
	}

	task.MarkProcessing()
	data, err := json.Marshal(task)
	if err != nil {
		return nil, fmt.Errorf("marshal task: %w", err)
	}
	_, err = q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, taskKeyPrefix+task.ID, data, taskTTL)
		pipe.Set(ctx, taskKeyPrefix+task.ID+msgSuffix, msg.ID, taskTTL)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("mark task processing: %w", err)
	}
	return task, nil
}

func (q *Queue) claimAbandoned(ctx context.Context) (*domain.Task, error) {
	pending, err := q.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: taskStream,
		Group:  taskGroup,
		Start:  "-",
		End:    "+",
		Count:  10,
		Idle:   claimIdle,
	}).Result()
	if err != nil {
		return nil, err
	}

	for _, p := range pending {
		claimed, err := q.client.XClaim(ctx, &redis.XClaimArgs{
			Stream:   taskStream,
			Group:    taskGroup,
			Consumer: q.consumer,
			MinIdle:  claimIdle,
			Messages: []string{p.ID},
		}).Result()
		if err != nil || len(claimed) == 0 {
			continue
		}
		if task, err := q.take(ctx, claimed[0]); err == nil && task != nil {
			return task, nil
		}
	}
	return nil, nil
}

// Complete stores the finished task and acknowledges its stream message.
func (q *Queue) Complete(ctx context.Context, task *domain.Task) error {
	if task == nil {
		return errors.New("task is required")
	}
	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("marshal task: %w", err)
	}

	msgKey := taskKeyPrefix + task.ID + msgSuffix
	msgID, err := q.client.Get(ctx, msgKey).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("load message id: %w", err)
	}

	_, err = q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, taskKeyPrefix+task.ID, data, taskTTL)
		if msgID != "" {
			pipe.XAck(ctx, taskStream, taskGroup, msgID)
			pipe.XDel(ctx, taskStream, msgID)
		}
		pipe.Del(ctx, msgKey)
		return nil
	})
	if err != nil {
		return fmt.Errorf("complete task: %w", err)
	}
	return nil
}

// GetTask returns a task by ID, or domain.ErrNotFound.
func (q *Queue) GetTask(ctx context.Context, taskID string) (*domain.Task, error) {
	data, err := q.client.Get(ctx, taskKeyPrefix+taskID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get task: %w", err)
	}

	var task domain.Task
	if err := json.Unmarshal(data, &task); err != nil {
		return nil, fmt.Errorf("unmarshal task: %w", err)
	}
	return &task, nil
}

// Ping checks the Redis connection.
func (q *Queue) Ping(ctx context.Context) error {
	return q.client.Ping(ctx).Err()
}

// Close is a no-op; the client is shared.
func (q *Queue) Close() error {
	return nil
}
