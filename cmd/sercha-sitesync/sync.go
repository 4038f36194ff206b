package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-sitesync/internal/core/domain"
	"github.com/custodia-labs/sercha-sitesync/internal/runtime"
)

type syncOptions struct {
	cacheOnly    bool
	forceRefresh bool
	limit        int
	maxPages     int
	summary      bool
}

func newSyncCommand(a *app) *cobra.Command {
	opts := &syncOptions{}

	cmd := &cobra.Command{
		Use:   "sync <url>",
		Short: "Discover, diff and fetch a website",
		Long: `Sync a website into the local state store.

The default run is incremental: only pages that are new since the last
run are fetched, and pages missing from several consecutive discoveries
are reported for deletion. --force-refresh refetches everything and
--cache-only returns the cached pages without calling the remote service.

The result is written to stdout as JSON.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd, a, opts, args[0])
		},
	}

	cmd.Flags().BoolVar(&opts.cacheOnly, "cache-only", false, "use cached pages only, no remote calls")
	cmd.Flags().BoolVar(&opts.forceRefresh, "force-refresh", false, "ignore the cache and refetch every page")
	cmd.Flags().IntVar(&opts.limit, "limit", domain.DefaultDiscoveryLimit, "maximum pages to discover")
	cmd.Flags().IntVar(&opts.maxPages, "max-pages", 0, "maximum pages to fetch this run (0 = all)")
	cmd.Flags().BoolVar(&opts.summary, "summary", false, "print counts only, without page documents")
	cmd.MarkFlagsMutuallyExclusive("cache-only", "force-refresh")

	return cmd
}

func (o *syncOptions) mode() domain.SyncMode {
	switch {
	case o.cacheOnly:
		return domain.SyncModeCacheOnly
	case o.forceRefresh:
		return domain.SyncModeFullRefresh
	default:
		return domain.SyncModeIncremental
	}
}

func runSync(cmd *cobra.Command, a *app, opts *syncOptions, rawURL string) error {
	ctx := cmd.Context()

	collection, err := domain.ParseCollection(rawURL)
	if err != nil {
		return err
	}

	svc, err := runtime.Open(ctx, a.cfg, a.logger)
	if err != nil {
		return err
	}
	defer svc.Close()

	mode := opts.mode()
	driver, err := a.driver(svc, mode != domain.SyncModeCacheOnly)
	if err != nil {
		return err
	}

	result, err := driver.Sync(ctx, domain.SyncRequest{
		Collection: collection.ID,
		RootURL:    collection.RootURL,
		Mode:       mode,
		Limit:      opts.limit,
		MaxPages:   opts.maxPages,
	})
	if err != nil {
		return err
	}

	if opts.summary {
		return writeJSON(cmd.OutOrStdout(), summarise(result))
	}
	return writeJSON(cmd.OutOrStdout(), result)
}

// syncSummary is the --summary output.
type syncSummary struct {
	RunID              string                   `json:"run_id"`
	Collection         string                   `json:"collection"`
	Mode               domain.SyncMode          `json:"mode"`
	Resources          int                      `json:"resources"`
	ConfirmedDeletions []string                 `json:"confirmed_deletions"`
	Incomplete         []string                 `json:"incomplete"`
	PendingDeletions   []domain.PendingDeletion `json:"pending_deletions"`
	Stats              domain.SyncStats         `json:"stats"`
	Duration           float64                  `json:"duration_seconds"`
}

func summarise(r *domain.SyncResult) syncSummary {
	return syncSummary{
		RunID:              r.RunID,
		Collection:         r.Collection,
		Mode:               r.Mode,
		Resources:          len(r.Resources),
		ConfirmedDeletions: r.ConfirmedDeletions,
		Incomplete:         r.Incomplete,
		PendingDeletions:   r.PendingDeletions,
		Stats:              r.Stats,
		Duration:           r.Duration,
	}
}

func newStateCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "state <url>",
		Short: "Show the persisted sync state of a website",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			collection, err := domain.ParseCollection(args[0])
			if err != nil {
				return err
			}

			svc, err := runtime.Open(ctx, a.cfg, a.logger)
			if err != nil {
				return err
			}
			defer svc.Close()

			driver, err := a.driver(svc, false)
			if err != nil {
				return err
			}
			summary, err := driver.State(ctx, collection.ID)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), summary)
		},
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}
