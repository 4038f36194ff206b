package services

import (
	"context"
	"time"

	"github.com/custodia-labs/sercha-sitesync/internal/core/ports/driven"
)

var _ driven.Clock = SystemClock{}

// SystemClock is the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now()
}

func (SystemClock) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
