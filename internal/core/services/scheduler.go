package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/custodia-labs/sercha-sitesync/internal/core/domain"
	"github.com/custodia-labs/sercha-sitesync/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-sitesync/internal/core/ports/driving"
)

// schedulerLock is held while due schedules are enqueued.
const schedulerLock = "sitesync:scheduler"

// Scheduler periodically queues sync runs for configured collections.
//
// For multi-instance deployments, configure a DistributedLock to prevent
// duplicate enqueuing across instances.
type Scheduler struct {
	tasks  driving.TaskService
	lock   driven.DistributedLock
	logger *slog.Logger
	now    func() time.Time

	mu        sync.RWMutex
	schedules []*domain.ScheduledSync
	running   bool
	stopCh    chan struct{}
	doneCh    chan struct{}
	interval  time.Duration
	lockTTL   time.Duration
}

// SchedulerConfig holds configuration for the scheduler.
type SchedulerConfig struct {
	Tasks        driving.TaskService
	Schedules    []domain.ScheduledSync
	Lock         driven.DistributedLock // Optional: distributed lock for multi-instance coordination
	Logger       *slog.Logger
	PollInterval time.Duration // How often to check for due schedules (default: 30s)
	LockTTL      time.Duration // TTL for the distributed lock (default: 60s)
	Now          func() time.Time
}

// NewScheduler creates a new scheduler. Schedules without an interval are ignored.
func NewScheduler(cfg SchedulerConfig) *Scheduler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	interval := cfg.PollInterval
	if interval == 0 {
		interval = 30 * time.Second
	}

	lockTTL := cfg.LockTTL
	if lockTTL == 0 {
		lockTTL = 60 * time.Second
	}

	schedules := make([]*domain.ScheduledSync, 0, len(cfg.Schedules))
	start := now()
	for i := range cfg.Schedules {
		s := cfg.Schedules[i]
		if s.Interval <= 0 || s.Collection == "" {
			logger.Warn("ignoring schedule without collection or interval", "collection", s.Collection)
			continue
		}
		s.NextRun = start
		schedules = append(schedules, &s)
	}

	return &Scheduler{
		tasks:     cfg.Tasks,
		lock:      cfg.Lock,
		logger:    logger,
		now:       now,
		schedules: schedules,
		interval:  interval,
		lockTTL:   lockTTL,
	}
}

// Start begins the scheduler loop.
// It runs until Stop is called or context is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.mu.Unlock()

	s.logger.Info("scheduler starting", "poll_interval", s.interval, "schedules", len(s.schedules))

	go s.run(ctx)

	return nil
}

// Stop gracefully stops the scheduler.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	close(s.stopCh)
	s.mu.Unlock()

	<-s.doneCh

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()

	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) run(ctx context.Context) {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	// Run immediately on start
	s.checkAndEnqueue(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler context cancelled")
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.checkAndEnqueue(ctx)
		}
	}
}

// checkAndEnqueue queues every due schedule. If a distributed lock is
// configured, the cycle is skipped unless this instance holds it.
func (s *Scheduler) checkAndEnqueue(ctx context.Context) {
	if s.lock != nil {
		acquired, err := s.lock.Acquire(ctx, schedulerLock, s.lockTTL)
		if err != nil {
			s.logger.Warn("failed to acquire scheduler lock", "error", err)
			return
		}
		if !acquired {
			s.logger.Debug("scheduler lock held by another instance, skipping cycle")
			return
		}
		defer func() {
			if err := s.lock.Release(context.WithoutCancel(ctx), schedulerLock); err != nil {
				s.logger.Warn("failed to release scheduler lock", "error", err)
			}
		}()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for _, sched := range s.schedules {
		if !sched.IsDue(now) {
			continue
		}

		task, err := s.tasks.Submit(ctx, sched.Request())
		sched.MarkRun(now, err)
		if err != nil {
			s.logger.Error("failed to enqueue scheduled sync",
				"collection", sched.Collection,
				"error", err,
			)
			continue
		}

		s.logger.Info("enqueued scheduled sync",
			"collection", sched.Collection,
			"task_id", task.ID,
			"next_run", sched.NextRun,
		)
	}
}

// Schedules returns a copy of the configured schedules.
func (s *Scheduler) Schedules() []domain.ScheduledSync {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.ScheduledSync, 0, len(s.schedules))
	for _, sched := range s.schedules {
		out = append(out, *sched)
	}
	return out
}

// TriggerNow immediately queues a collection's schedule, ignoring its timer.
func (s *Scheduler) TriggerNow(ctx context.Context, collection string) (*domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, sched := range s.schedules {
		if sched.Collection != collection {
			continue
		}
		task, err := s.tasks.Submit(ctx, sched.Request())
		sched.MarkRun(s.now(), err)
		if err != nil {
			return nil, err
		}
		s.logger.Info("manually triggered scheduled sync", "collection", collection, "task_id", task.ID)
		return task, nil
	}
	return nil, fmt.Errorf("%w: no schedule for %s", domain.ErrNotFound, collection)
}
