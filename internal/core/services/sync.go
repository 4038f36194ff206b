package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/sercha-sitesync/internal/core/domain"
	"github.com/custodia-labs/sercha-sitesync/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-sitesync/internal/core/ports/driving"
)

// Credits the remote service charges, used for the run estimate.
const (
	discoveryCredits = 1
	creditsPerPage   = 5
)

// Ensure SyncDriver implements SyncService
var _ driving.SyncService = (*SyncDriver)(nil)

// SyncDriver composes discovery, diffing, deletion hysteresis and the batch
// orchestrator into one synchronisation run.
//
// The driver assumes it is the only writer of a collection's state. When a
// DistributedLock is configured it is held, and extended every third of its
// TTL, for the duration of each run. A run that cannot extend it stops with
// ErrLockLost and writes nothing further. Without a lock, callers must not
// run two syncs of the same collection at once.
type SyncDriver struct {
	store        driven.SyncStateStore
	discoverer   driven.Discoverer
	orchestrator *BatchOrchestrator
	lock         driven.DistributedLock
	tracker      *DeletionTracker
	retrier      *Retrier
	clock        driven.Clock
	config       domain.SyncConfig
	logger       *slog.Logger
}

// SyncDriverConfig holds dependencies for SyncDriver.
type SyncDriverConfig struct {
	Store      driven.SyncStateStore
	Discoverer driven.Discoverer
	Fetcher    driven.BatchFetcher
	Lock       driven.DistributedLock // Optional: single-writer lock per collection
	Clock      driven.Clock           // Optional: defaults to the system clock
	Config     domain.SyncConfig
	Logger     *slog.Logger
}

// NewSyncDriver creates a new synchronisation driver.
func NewSyncDriver(cfg SyncDriverConfig) *SyncDriver {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = SystemClock{}
	}

	return &SyncDriver{
		store:      cfg.Store,
		discoverer: cfg.Discoverer,
		orchestrator: NewBatchOrchestrator(BatchOrchestratorConfig{
			Fetcher: cfg.Fetcher,
			Clock:   clock,
			Config:  cfg.Config,
			Logger:  logger,
		}),
		lock:    cfg.Lock,
		tracker: NewDeletionTracker(cfg.Config.DeletionMissThreshold, clock.Now),
		retrier: NewRetrier(cfg.Config, logger),
		clock:   clock,
		config:  cfg.Config,
		logger:  logger,
	}
}

// lockName returns the writer lock for a collection.
func lockName(collection string) string {
	return "sitesync:" + collection
}

// Sync runs one synchronisation of a collection.
func (d *SyncDriver) Sync(ctx context.Context, req domain.SyncRequest) (*domain.SyncResult, error) {
	req, err := d.normalise(req)
	if err != nil {
		return nil, err
	}

	start := d.clock.Now()
	runID := uuid.NewString()
	logger := d.logger.With("run_id", runID, "collection", req.Collection, "mode", req.Mode)
	logger.Info("starting sync")

	if req.Mode != domain.SyncModeCacheOnly && d.lock != nil {
		name := lockName(req.Collection)
		acquired, err := d.lock.Acquire(ctx, name, d.config.LockTTL)
		if err != nil {
			return nil, fmt.Errorf("acquire lock %s: %w", name, err)
		}
		if !acquired {
			return nil, domain.ErrSyncInProgress
		}
		defer func() {
			if err := d.lock.Release(context.WithoutCancel(ctx), name); err != nil {
				logger.Warn("failed to release lock", "lock", name, "error", err)
			}
		}()

		runCtx, cancel := context.WithCancelCause(ctx)
		defer cancel(nil)
		stop := d.keepLock(runCtx, cancel, name, logger)
		defer stop()
		ctx = runCtx
	}

	state, err := d.store.Load(ctx, req.Collection)
	if err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}

	result := &domain.SyncResult{
		RunID:              runID,
		Collection:         req.Collection,
		Mode:               req.Mode,
		ConfirmedDeletions: []string{},
		Incomplete:         []string{},
	}

	if req.Mode == domain.SyncModeCacheOnly {
		result.Resources = state.CompletedResults()
		result.PendingDeletions = state.PendingDeletions(d.tracker.Threshold())
		result.Stats.Discovered = len(state.LastDiscovered.Resources)
		result.Stats.Reused = len(result.Resources)
		result.Duration = d.clock.Now().Sub(start).Seconds()
		logger.Info("sync finished from cache", "resources", len(result.Resources))
		return result, nil
	}

	if err := d.run(ctx, req, state, result, logger); err != nil {
		if cause := context.Cause(ctx); errors.Is(cause, domain.ErrLockLost) {
			return nil, cause
		}
		return nil, err
	}

	result.Duration = d.clock.Now().Sub(start).Seconds()
	logger.Info("sync finished",
		"resources", len(result.Resources),
		"fetched", result.Stats.Fetched,
		"reused", result.Stats.Reused,
		"confirmed_deletions", len(result.ConfirmedDeletions),
		"pending_deletions", len(result.PendingDeletions),
		"incomplete", len(result.Incomplete),
		"credits_used", result.Stats.CreditsUsed,
		"duration_s", result.Duration,
	)
	return result, nil
}

// keepLock extends the writer lock every third of its TTL until the returned
// stop func is called. A failed extension cancels the run with ErrLockLost.
// It ticks on wall time: the injected clock only moves when the driver sleeps.
func (d *SyncDriver) keepLock(ctx context.Context, cancel context.CancelCauseFunc, name string, logger *slog.Logger) (stop func()) {
	ttl := d.config.LockTTL
	if ttl <= 0 {
		return func() {}
	}

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(ttl / 3)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := d.lock.Extend(ctx, name, ttl); err != nil {
					if ctx.Err() != nil {
						return
					}
					logger.Error("collection lock lost, aborting run", "lock", name, "error", err)
					cancel(fmt.Errorf("%w: %s: %v", domain.ErrLockLost, name, err))
					return
				}
			}
		}
	}()

	return func() {
		close(done)
		wg.Wait()
	}
}

// run executes the discovery, diff and fetch phases of an incremental or
// full-refresh sync, checkpointing state along the way.
func (d *SyncDriver) run(ctx context.Context, req domain.SyncRequest, state *domain.SyncState, result *domain.SyncResult, logger *slog.Logger) error {
	persist := func(ctx context.Context) error {
		if cause := context.Cause(ctx); errors.Is(cause, domain.ErrLockLost) {
			return cause
		}
		return d.store.Save(context.WithoutCancel(ctx), req.Collection, state)
	}

	discovered, err := d.discover(ctx, req)
	if err != nil {
		return err
	}
	logger.Info("discovery complete", "discovered", discovered.Len())

	force := req.Mode == domain.SyncModeFullRefresh
	var queue []string

	if force {
		d.tracker.Clear(state.DeletionCandidates, discovered)
		queue = discovered.Sorted()
	} else {
		cached := state.LastDiscovered.Set()
		for id := range state.DeletionCandidates {
			cached.Add(id)
		}
		diff := Diff(discovered, cached)
		result.ConfirmedDeletions = d.tracker.Update(state.DeletionCandidates, diff.Removed, discovered)

		covered := state.CoveredResources()
		queued := domain.NewResourceSet(diff.New...)
		retried := 0
		for _, id := range diff.Unchanged {
			if !covered.Contains(id) {
				queued.Add(id)
				retried++
			}
		}
		queue = queued.Sorted()

		result.Stats.New = len(diff.New)
		result.Stats.Unchanged = len(diff.Unchanged)
		result.Stats.Removed = len(diff.Removed)
		logger.Info("diff computed",
			"new", len(diff.New),
			"unchanged", len(diff.Unchanged),
			"removed", len(diff.Removed),
			"retried", retried,
			"confirmed_deletions", len(result.ConfirmedDeletions),
		)
	}

	if req.MaxPages > 0 && len(queue) > req.MaxPages {
		result.Stats.Deferred = len(queue) - req.MaxPages
		queue = queue[:req.MaxPages]
		logger.Info("queue capped by max pages", "max_pages", req.MaxPages, "deferred", result.Stats.Deferred)
	}

	state.LastDiscovered = domain.DiscoverySnapshot{
		Resources:    discovered.Sorted(),
		Root:         req.RootURL,
		Limit:        req.Limit,
		DiscoveredAt: d.clock.Now().UTC(),
	}
	if err := persist(ctx); err != nil {
		return fmt.Errorf("checkpoint after discovery: %w", err)
	}

	chunks := PlanChunks(queue, d.config.ChunkSize)
	result.Stats.Discovered = discovered.Len()
	result.Stats.Queued = len(queue)
	result.Stats.ChunksTotal = len(chunks)
	result.Stats.EstimatedCredits = discoveryCredits + creditsPerPage*len(queue)

	outcome, err := d.orchestrator.ProcessAll(ctx, chunks, NewJobLedger(state, persist), force)
	if err != nil {
		return err
	}
	if failed := failedChunks(outcome.Records); len(failed) > 0 {
		logger.Warn("some chunks failed, their resources will be retried next run", "chunks", failed)
	}

	current := domain.NewResourceSet()
	for _, c := range chunks {
		current.Add(string(c.Key))
	}

	if force {
		pruneRecords(state, func(key domain.ChunkKey, _ domain.JobRecord) bool {
			return current.Contains(string(key))
		})
		result.Resources = outcome.Results
	} else {
		keep := state.LiveResources()
		pruneRecords(state, func(key domain.ChunkKey, rec domain.JobRecord) bool {
			return current.Contains(string(key)) || overlaps(rec.Payload, keep)
		})

		// Members of surviving chunks that are gone, including this run's
		// confirmed deletions.
		stale := state.StaleResources()
		for _, id := range result.ConfirmedDeletions {
			stale.Add(id)
		}
		all := append(outcome.Results, cachedResults(state, current)...)
		result.Resources = withoutIDs(domain.DedupeResources(all), stale)
	}

	if err := persist(ctx); err != nil {
		return fmt.Errorf("final checkpoint: %w", err)
	}

	result.Incomplete = outcome.Incomplete
	result.PendingDeletions = state.PendingDeletions(d.tracker.Threshold())
	result.Stats.Fetched = outcome.Fetched
	result.Stats.Reused = len(result.Resources) - outcome.Fetched
	if result.Stats.Reused < 0 {
		result.Stats.Reused = 0
	}
	result.Stats.ChunksCached = outcome.Cached
	result.Stats.ChunksCompleted = outcome.Completed
	result.Stats.ChunksFailed = outcome.Failed
	result.Stats.CreditsUsed = outcome.CreditsUsed
	return nil
}

// discover enumerates the collection with the retry policy applied.
func (d *SyncDriver) discover(ctx context.Context, req domain.SyncRequest) (domain.ResourceSet, error) {
	var ids []string
	err := d.retrier.Do(ctx, "discover", func() error {
		var err error
		ids, err = d.discoverer.Discover(ctx, driven.DiscoveryRequest{
			Root:        req.RootURL,
			Limit:       req.Limit,
			BypassCache: req.Mode == domain.SyncModeFullRefresh,
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("discover %s: %w", req.RootURL, err)
	}

	set := domain.NewResourceSet()
	for _, id := range ids {
		if id != "" {
			set.Add(id)
		}
	}
	return set, nil
}

// normalise validates a request and fills defaults.
func (d *SyncDriver) normalise(req domain.SyncRequest) (domain.SyncRequest, error) {
	if req.Collection == "" {
		return req, fmt.Errorf("%w: collection is required", domain.ErrInvalidInput)
	}
	mode, err := domain.ParseSyncMode(string(req.Mode))
	if err != nil {
		return req, err
	}
	req.Mode = mode

	if req.Limit, err = domain.ValidateLimit(req.Limit); err != nil {
		return req, err
	}
	if req.MaxPages < 0 {
		return req, fmt.Errorf("%w: max_pages cannot be negative", domain.ErrInvalidInput)
	}
	if req.RootURL == "" {
		req.RootURL = "https://" + req.Collection
	}
	return req, nil
}

// State summarises the persisted state of a collection.
func (d *SyncDriver) State(ctx context.Context, collection string) (*domain.StateSummary, error) {
	if collection == "" {
		return nil, fmt.Errorf("%w: collection is required", domain.ErrInvalidInput)
	}
	state, err := d.store.Load(ctx, collection)
	if err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}

	summary := &domain.StateSummary{
		Collection:       collection,
		Discovered:       len(state.LastDiscovered.Resources),
		CachedResources:  len(state.CompletedResults()),
		PendingDeletions: state.PendingDeletions(d.tracker.Threshold()),
	}
	if !state.LastDiscovered.DiscoveredAt.IsZero() {
		at := state.LastDiscovered.DiscoveredAt
		summary.DiscoveredAt = &at
	}
	for _, rec := range state.JobRecords {
		switch rec.Status {
		case domain.JobStatusCompleted:
			summary.JobsCompleted++
		case domain.JobStatusPolling:
			summary.JobsPolling++
		case domain.JobStatusFailed:
			summary.JobsFailed++
		}
	}
	return summary, nil
}

// Collections lists the collections with persisted state.
func (d *SyncDriver) Collections(ctx context.Context) ([]string, error) {
	return d.store.List(ctx)
}

// cachedResults returns the results of completed records outside skip,
// visiting records in key order.
func cachedResults(state *domain.SyncState, skip domain.ResourceSet) []domain.FetchedResource {
	keys := make([]string, 0, len(state.JobRecords))
	for key, rec := range state.JobRecords {
		if rec.IsCompleted() && !skip.Contains(string(key)) {
			keys = append(keys, string(key))
		}
	}
	sort.Strings(keys)

	var out []domain.FetchedResource
	for _, key := range keys {
		out = append(out, state.JobRecords[domain.ChunkKey(key)].Results...)
	}
	return out
}

// pruneRecords drops job records for which keep returns false.
func pruneRecords(state *domain.SyncState, keep func(domain.ChunkKey, domain.JobRecord) bool) {
	for key, rec := range state.JobRecords {
		if !keep(key, rec) {
			delete(state.JobRecords, key)
		}
	}
}

func overlaps(ids []string, set domain.ResourceSet) bool {
	for _, id := range ids {
		if set.Contains(id) {
			return true
		}
	}
	return false
}

func withoutIDs(resources []domain.FetchedResource, drop domain.ResourceSet) []domain.FetchedResource {
	if drop.Len() == 0 {
		return resources
	}
	out := resources[:0:0]
	for _, r := range resources {
		if !drop.Contains(r.ID) {
			out = append(out, r)
		}
	}
	return out
}
