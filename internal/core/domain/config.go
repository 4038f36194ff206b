package domain

import (
	"fmt"
	"time"
)

// SyncConfig holds the tunables of the synchronisation engine.
// It is passed to the driver and orchestrator at construction.
type SyncConfig struct {
	// ChunkSize is the maximum number of resources per batch job
	ChunkSize int `mapstructure:"chunk_size" json:"chunk_size"`

	// PollInterval is the sleep between batch status checks
	PollInterval time.Duration `mapstructure:"poll_interval" json:"poll_interval"`

	// MaxPollDuration bounds the wait for one batch job before it is abandoned
	MaxPollDuration time.Duration `mapstructure:"max_poll_duration" json:"max_poll_duration"`

	// DeletionMissThreshold is the number of consecutive discovery misses
	// before a resource is confirmed deleted
	DeletionMissThreshold int `mapstructure:"deletion_miss_threshold" json:"deletion_miss_threshold"`

	// RetryAttempts is the total number of attempts for each remote call
	RetryAttempts int `mapstructure:"retry_attempts" json:"retry_attempts"`

	// BackoffMin and BackoffMax bound the exponential backoff between attempts
	BackoffMin time.Duration `mapstructure:"backoff_min" json:"backoff_min"`
	BackoffMax time.Duration `mapstructure:"backoff_max" json:"backoff_max"`

	// Concurrency is the number of chunks processed in parallel
	Concurrency int `mapstructure:"concurrency" json:"concurrency"`

	// LockTTL is how long the per-collection writer lock is held
	LockTTL time.Duration `mapstructure:"lock_ttl" json:"lock_ttl"`
}

// DefaultSyncConfig returns the defaults used by the original pipeline
func DefaultSyncConfig() SyncConfig {
	return SyncConfig{
		ChunkSize:             100,
		PollInterval:          5 * time.Second,
		MaxPollDuration:       10 * time.Minute,
		DeletionMissThreshold: 3,
		RetryAttempts:         5,
		BackoffMin:            2 * time.Second,
		BackoffMax:            60 * time.Second,
		Concurrency:           1,
		LockTTL:               30 * time.Minute,
	}
}

// Validate checks the configuration for values the engine cannot run with
func (c SyncConfig) Validate() error {
	switch {
	case c.ChunkSize < 1:
		return fmt.Errorf("%w: chunk_size must be at least 1", ErrInvalidInput)
	case c.PollInterval <= 0:
		return fmt.Errorf("%w: poll_interval must be positive", ErrInvalidInput)
	case c.MaxPollDuration < c.PollInterval:
		return fmt.Errorf("%w: max_poll_duration must be at least poll_interval", ErrInvalidInput)
	case c.DeletionMissThreshold < 1:
		return fmt.Errorf("%w: deletion_miss_threshold must be at least 1", ErrInvalidInput)
	case c.RetryAttempts < 1:
		return fmt.Errorf("%w: retry_attempts must be at least 1", ErrInvalidInput)
	case c.BackoffMin <= 0 || c.BackoffMax < c.BackoffMin:
		return fmt.Errorf("%w: backoff bounds must satisfy 0 < backoff_min <= backoff_max", ErrInvalidInput)
	case c.Concurrency < 1:
		return fmt.Errorf("%w: concurrency must be at least 1", ErrInvalidInput)
	case c.LockTTL <= 0:
		return fmt.Errorf("%w: lock_ttl must be positive", ErrInvalidInput)
	}
	return nil
}
