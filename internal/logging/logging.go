// Package logging builds the process-wide slog logger.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	defaultMaxSizeMB  = 100
	defaultMaxBackups = 10
	defaultMaxAgeDays = 30
)

// Options configures the process logger.
type Options struct {
	// Level is one of debug, info, warn or error. Empty means info.
	Level string `mapstructure:"level"`

	// Format is text or json. Empty means text.
	Format string `mapstructure:"format"`

	// File enables rotating file output in addition to Console.
	File string `mapstructure:"file"`

	MaxSizeMB  int  `mapstructure:"max_size_mb"`
	MaxBackups int  `mapstructure:"max_backups"`
	MaxAgeDays int  `mapstructure:"max_age_days"`
	Compress   bool `mapstructure:"compress"`

	// Console receives log lines when set. Defaults to os.Stderr in Setup.
	Console io.Writer `mapstructure:"-"`
}

// ParseLevel converts a level name to a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", s)
	}
}

// Validate checks the options before any file is opened.
func (o Options) Validate() error {
	if _, err := ParseLevel(o.Level); err != nil {
		return err
	}
	switch strings.ToLower(o.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", o.Format)
	}
	if o.MaxSizeMB < 0 || o.MaxBackups < 0 || o.MaxAgeDays < 0 {
		return fmt.Errorf("log rotation values cannot be negative")
	}
	return nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// New builds a logger from opts without touching the global default.
// The returned Closer releases the log file, if any.
func New(opts Options) (*slog.Logger, io.Closer, error) {
	if err := opts.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid log options: %w", err)
	}
	level, _ := ParseLevel(opts.Level)

	console := opts.Console
	if console == nil {
		console = os.Stderr
	}

	var out io.Writer = console
	var closer io.Closer = nopCloser{}
	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
			return nil, nil, fmt.Errorf("create log directory: %w", err)
		}
		file := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    orDefault(opts.MaxSizeMB, defaultMaxSizeMB),
			MaxBackups: orDefault(opts.MaxBackups, defaultMaxBackups),
			MaxAge:     orDefault(opts.MaxAgeDays, defaultMaxAgeDays),
			Compress:   opts.Compress,
		}
		out = io.MultiWriter(console, file)
		closer = file
	}

	handlerOpts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if strings.EqualFold(opts.Format, "json") {
		handler = slog.NewJSONHandler(out, handlerOpts)
	} else {
		handler = slog.NewTextHandler(out, handlerOpts)
	}
	return slog.New(handler), closer, nil
}

// Setup builds the logger and installs it as slog's default.
// Call the returned Closer on shutdown.
func Setup(opts Options) (*slog.Logger, io.Closer, error) {
	logger, closer, err := New(opts)
	if err != nil {
		return nil, nil, err
	}
	slog.SetDefault(logger)
	return logger, closer, nil
}

func orDefault(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}
