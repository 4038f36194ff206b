// Package config loads process configuration from an optional file and
// SITESYNC_ environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/custodia-labs/sercha-sitesync/internal/core/domain"
	"github.com/custodia-labs/sercha-sitesync/internal/logging"
)

// EnvPrefix is prepended to every environment override, with dots replaced
// by underscores: sync.chunk_size becomes SITESYNC_SYNC_CHUNK_SIZE.
const EnvPrefix = "SITESYNC"

// State backends.
const (
	BackendFile     = "file"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// Config is the full process configuration.
type Config struct {
	Workspace string                 `mapstructure:"workspace"`
	State     StateConfig            `mapstructure:"state"`
	Firecrawl FirecrawlConfig        `mapstructure:"firecrawl"`
	Sync      domain.SyncConfig      `mapstructure:"sync"`
	Log       logging.Options        `mapstructure:"log"`
	HTTP      HTTPConfig             `mapstructure:"http"`
	Auth      AuthConfig             `mapstructure:"auth"`
	Worker    WorkerConfig           `mapstructure:"worker"`
	Schedules []domain.ScheduledSync `mapstructure:"schedules"`
}

// StateConfig selects where state documents are persisted.
type StateConfig struct {
	Backend     string `mapstructure:"backend"`
	RedisURL    string `mapstructure:"redis_url"`
	DatabaseURL string `mapstructure:"database_url"`
}

// FirecrawlConfig configures the remote discovery and fetch service.
type FirecrawlConfig struct {
	BaseURL           string        `mapstructure:"base_url"`
	APIKey            string        `mapstructure:"api_key"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Burst             int           `mapstructure:"burst"`
	RequestTimeout    time.Duration `mapstructure:"request_timeout"`
}

// HTTPConfig configures the API server.
type HTTPConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// AuthConfig configures API authentication.
// KeyHash is the bcrypt hash of the key exchanged for tokens.
type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	KeyHash   string        `mapstructure:"key_hash"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

// WorkerConfig configures the background sync worker.
type WorkerConfig struct {
	Concurrency int `mapstructure:"concurrency"`
	QueueSize   int `mapstructure:"queue_size"`
}

// Load reads configuration from path, or from ./sitesync.{yaml,json} when
// path is empty and such a file exists. Environment variables override both.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("sitesync")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	sync := domain.DefaultSyncConfig()

	v.SetDefault("workspace", "_workspace")

	v.SetDefault("state.backend", BackendFile)
	v.SetDefault("state.redis_url", "")
	v.SetDefault("state.database_url", "")

	v.SetDefault("firecrawl.base_url", "https://api.firecrawl.dev")
	v.SetDefault("firecrawl.api_key", "")
	v.SetDefault("firecrawl.requests_per_second", 2.0)
	v.SetDefault("firecrawl.burst", 4)
	v.SetDefault("firecrawl.request_timeout", 60*time.Second)

	v.SetDefault("sync.chunk_size", sync.ChunkSize)
	v.SetDefault("sync.poll_interval", sync.PollInterval)
	v.SetDefault("sync.max_poll_duration", sync.MaxPollDuration)
	v.SetDefault("sync.deletion_miss_threshold", sync.DeletionMissThreshold)
	v.SetDefault("sync.retry_attempts", sync.RetryAttempts)
	v.SetDefault("sync.backoff_min", sync.BackoffMin)
	v.SetDefault("sync.backoff_max", sync.BackoffMax)
	v.SetDefault("sync.concurrency", sync.Concurrency)
	v.SetDefault("sync.lock_ttl", sync.LockTTL)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 10)
	v.SetDefault("log.max_age_days", 30)
	v.SetDefault("log.compress", false)

	v.SetDefault("http.host", "")
	v.SetDefault("http.port", 8080)

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.key_hash", "")
	v.SetDefault("auth.token_ttl", 24*time.Hour)

	v.SetDefault("worker.concurrency", 1)
	v.SetDefault("worker.queue_size", 64)
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch c.State.Backend {
	case BackendFile:
		if c.Workspace == "" {
			return fmt.Errorf("%w: workspace is required for the file backend", domain.ErrInvalidInput)
		}
	case BackendRedis:
		if c.State.RedisURL == "" {
			return fmt.Errorf("%w: state.redis_url is required for the redis backend", domain.ErrInvalidInput)
		}
	case BackendPostgres:
		if c.State.DatabaseURL == "" {
			return fmt.Errorf("%w: state.database_url is required for the postgres backend", domain.ErrInvalidInput)
		}
	default:
		return fmt.Errorf("%w: unknown state backend %q", domain.ErrInvalidInput, c.State.Backend)
	}

	if err := c.Sync.Validate(); err != nil {
		return err
	}
	if err := c.Log.Validate(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	if c.Firecrawl.RequestsPerSecond < 0 || c.Firecrawl.Burst < 0 {
		return fmt.Errorf("%w: firecrawl rate limits cannot be negative", domain.ErrInvalidInput)
	}
	if c.HTTP.Port < 1 || c.HTTP.Port > 65535 {
		return fmt.Errorf("%w: http.port %d is out of range", domain.ErrInvalidInput, c.HTTP.Port)
	}
	if c.Worker.Concurrency < 1 || c.Worker.QueueSize < 1 {
		return fmt.Errorf("%w: worker concurrency and queue_size must be at least 1", domain.ErrInvalidInput)
	}
	for _, s := range c.Schedules {
		if _, err := domain.ParseCollection(s.Collection); err != nil {
			return fmt.Errorf("schedule: %w", err)
		}
		if s.Interval <= 0 {
			return fmt.Errorf("%w: schedule for %s needs a positive interval", domain.ErrInvalidInput, s.Collection)
		}
		if _, err := domain.ParseSyncMode(string(s.Mode)); err != nil {
			return fmt.Errorf("schedule for %s: %w", s.Collection, err)
		}
	}
	return nil
}

