package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-sitesync/internal/adapters/driven/firecrawl"
	"github.com/custodia-labs/sercha-sitesync/internal/config"
	"github.com/custodia-labs/sercha-sitesync/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-sitesync/internal/core/services"
	"github.com/custodia-labs/sercha-sitesync/internal/logging"
	"github.com/custodia-labs/sercha-sitesync/internal/runtime"
)

// app carries what every command needs once flags are parsed.
type app struct {
	configPath string
	logLevel   string

	cfg       *config.Config
	logger    *slog.Logger
	logCloser io.Closer
}

// NewRootCommand builds the sercha-sitesync command tree.
func NewRootCommand() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:           "sercha-sitesync",
		Short:         "Incrementally sync a website through a remote crawl service",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.close()
		},
	}

	cmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "config file (default ./sitesync.yaml if present)")
	cmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "override log level (debug|info|warn|error)")

	cmd.AddCommand(newSyncCommand(a))
	cmd.AddCommand(newStateCommand(a))
	cmd.AddCommand(newServeCommand(a))
	cmd.AddCommand(newTokenCommand(a))

	return cmd
}

func (a *app) init(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	cfg.Log.Console = cmd.ErrOrStderr()

	logger, closer, err := logging.Setup(cfg.Log)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = logger
	a.logCloser = closer
	return nil
}

func (a *app) close() error {
	if a.logCloser == nil {
		return nil
	}
	err := a.logCloser.Close()
	a.logCloser = nil
	return err
}

// remote builds the discovery and fetch adapters. The API key is resolved
// from config, the environment, .env.local or the firecrawl CLI login.
func (a *app) remote() (driven.Discoverer, driven.BatchFetcher, error) {
	dir, err := os.Getwd()
	if err != nil {
		return nil, nil, fmt.Errorf("get working directory: %w", err)
	}
	key, source, err := firecrawl.ResolveAPIKey(firecrawl.DefaultKeyLookup(a.cfg.Firecrawl.APIKey, dir))
	if err != nil {
		return nil, nil, err
	}
	a.logger.Debug("resolved firecrawl api key", "source", source)

	client, err := firecrawl.NewClient(firecrawl.Config{
		BaseURL:           a.cfg.Firecrawl.BaseURL,
		APIKey:            key,
		RequestsPerSecond: a.cfg.Firecrawl.RequestsPerSecond,
		Burst:             a.cfg.Firecrawl.Burst,
		Timeout:           a.cfg.Firecrawl.RequestTimeout,
		Logger:            a.logger,
	})
	if err != nil {
		return nil, nil, err
	}
	return firecrawl.NewDiscoverer(client), firecrawl.NewBatchFetcher(client, firecrawl.DefaultScrapeOptions()), nil
}

// driver builds a SyncDriver over the opened backend. Without remote
// adapters only cache-only runs and state inspection work.
func (a *app) driver(svc *runtime.Services, withRemote bool) (*services.SyncDriver, error) {
	cfg := services.SyncDriverConfig{
		Store:  svc.Store,
		Lock:   svc.Lock,
		Config: a.cfg.Sync,
		Logger: a.logger,
	}
	if withRemote {
		discoverer, fetcher, err := a.remote()
		if err != nil {
			return nil, err
		}
		cfg.Discoverer = discoverer
		cfg.Fetcher = fetcher
	}
	return services.NewSyncDriver(cfg), nil
}
