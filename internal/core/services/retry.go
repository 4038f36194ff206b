package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff"

	"github.com/custodia-labs/sercha-sitesync/internal/core/domain"
)

// Retrier runs a remote call with bounded exponential backoff.
// Only errors classified by domain.IsTransient are retried.
type Retrier struct {
	attempts int
	min      time.Duration
	max      time.Duration
	logger   *slog.Logger
}

// NewRetrier creates a retrier from the sync configuration.
func NewRetrier(cfg domain.SyncConfig, logger *slog.Logger) *Retrier {
	if logger == nil {
		logger = slog.Default()
	}
	attempts := cfg.RetryAttempts
	if attempts < 1 {
		attempts = 1
	}
	return &Retrier{
		attempts: attempts,
		min:      cfg.BackoffMin,
		max:      cfg.BackoffMax,
		logger:   logger,
	}
}

// Do calls fn until it succeeds, fails permanently, runs out of attempts or
// ctx is done. The last error is returned unchanged.
func (r *Retrier) Do(ctx context.Context, op string, fn func() error) error {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = r.min
	eb.MaxInterval = r.max
	eb.MaxElapsedTime = 0

	// WithMaxRetries treats zero as unlimited, so a single attempt must stop outright.
	var policy backoff.BackOff = &backoff.StopBackOff{}
	if r.attempts > 1 {
		policy = backoff.WithMaxRetries(eb, uint64(r.attempts-1))
	}
	b := backoff.WithContext(policy, ctx)

	attempt := 0
	operation := func() error {
		attempt++
		if err := ctx.Err(); err != nil {
			return backoff.Permanent(err)
		}
		err := fn()
		if err == nil {
			return nil
		}
		if !domain.IsTransient(err) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, wait time.Duration) {
		r.logger.Warn("remote call failed, retrying",
			"op", op,
			"attempt", attempt,
			"max_attempts", r.attempts,
			"wait", wait,
			"error", err,
		)
	}

	err := backoff.RetryNotify(operation, b, notify)
	if err != nil && ctx.Err() != nil && !errors.Is(err, ctx.Err()) {
		return ctx.Err()
	}
	return err
}
