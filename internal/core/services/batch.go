package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/sercha-sitesync/internal/core/domain"
	"github.com/custodia-labs/sercha-sitesync/internal/core/ports/driven"
)

// PlanChunks partitions resources into chunks of at most chunkSize,
// preserving input order.
func PlanChunks(resources []string, chunkSize int) []domain.Chunk {
	if chunkSize < 1 {
		chunkSize = 1
	}
	chunks := make([]domain.Chunk, 0, (len(resources)+chunkSize-1)/chunkSize)
	for start := 0; start < len(resources); start += chunkSize {
		end := start + chunkSize
		if end > len(resources) {
			end = len(resources)
		}
		chunks = append(chunks, domain.NewChunk(resources[start:end]))
	}
	return chunks
}

// JobLedger is the orchestrator's handle on the JobRecords of a SyncState.
// Every write is persisted before it returns, and writes from concurrent
// chunk workers are serialised.
type JobLedger struct {
	mu      sync.Mutex
	state   *domain.SyncState
	persist func(ctx context.Context) error
}

// NewJobLedger wraps state. persist is called after every record update
// with the ledger lock held; a nil persist keeps records in memory only.
func NewJobLedger(state *domain.SyncState, persist func(ctx context.Context) error) *JobLedger {
	if state.JobRecords == nil {
		state.JobRecords = make(map[domain.ChunkKey]domain.JobRecord)
	}
	return &JobLedger{state: state, persist: persist}
}

// Get returns the record for a chunk key.
func (l *JobLedger) Get(key domain.ChunkKey) (domain.JobRecord, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.state.JobRecords[key]
	return rec, ok
}

// Put stores a record and persists the state document.
func (l *JobLedger) Put(ctx context.Context, rec domain.JobRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state.JobRecords[rec.Key] = rec
	if l.persist == nil {
		return nil
	}
	if err := l.persist(ctx); err != nil {
		return fmt.Errorf("persist job %s: %w", rec.Key, err)
	}
	return nil
}

// BatchOutcome is the merged result of processing a list of chunks.
type BatchOutcome struct {
	// Results holds the records of every completed chunk, deduplicated by ID
	Results []domain.FetchedResource

	// Records holds the final record of each processed chunk, in input order
	Records []domain.JobRecord

	// Incomplete lists the resources of failed chunks, sorted
	Incomplete []string

	Cached      int
	Completed   int
	Failed      int
	Fetched     int
	CreditsUsed int
}

// BatchOrchestrator drives resources through the remote batch service in
// chunks. Submission is gated on the chunk key so a chunk is fetched at
// most once; polling state is persisted so an interrupted run resumes the
// same remote job.
type BatchOrchestrator struct {
	fetcher driven.BatchFetcher
	clock   driven.Clock
	retrier *Retrier
	config  domain.SyncConfig
	logger  *slog.Logger
}

// BatchOrchestratorConfig holds dependencies for BatchOrchestrator.
type BatchOrchestratorConfig struct {
	Fetcher driven.BatchFetcher
	Clock   driven.Clock // Optional: defaults to the system clock
	Config  domain.SyncConfig
	Logger  *slog.Logger
}

// NewBatchOrchestrator creates a new batch orchestrator.
func NewBatchOrchestrator(cfg BatchOrchestratorConfig) *BatchOrchestrator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = SystemClock{}
	}

	return &BatchOrchestrator{
		fetcher: cfg.Fetcher,
		clock:   clock,
		retrier: NewRetrier(cfg.Config, logger),
		config:  cfg.Config,
		logger:  logger,
	}
}

// ProcessChunk brings one chunk to a terminal state and returns its record.
//
// A completed record is returned untouched with no remote calls unless force
// is set. A polling record with a remote job ID resumes polling without
// resubmitting. Remote failures are recorded on the returned record, not
// returned as errors. The error is non-nil only when ctx is done, in which
// case the persisted record stays resumable, or when the state could not be
// persisted.
func (o *BatchOrchestrator) ProcessChunk(ctx context.Context, chunk domain.Chunk, ledger *JobLedger, force bool) (domain.JobRecord, error) {
	logger := o.logger.With("chunk", chunk.Key, "resources", len(chunk.Resources))

	rec, exists := ledger.Get(chunk.Key)
	if exists && rec.IsCompleted() && !force {
		logger.Debug("chunk already completed, using cached results")
		return rec, nil
	}

	var jobID string
	if exists && rec.IsResumable() && !force {
		jobID = rec.RemoteJobID
		logger.Info("resuming batch job", "job_id", jobID)
	} else {
		err := o.retrier.Do(ctx, "batch submit", func() error {
			id, err := o.fetcher.Submit(ctx, chunk.Resources)
			if err != nil {
				return err
			}
			if id == "" {
				return &domain.RemoteError{Op: "batch submit", StatusCode: 200, Message: "no job id in response"}
			}
			jobID = id
			return nil
		})
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return rec, ctxErr
			}
			logger.Error("batch submit failed", "error", err)
			failed := o.failedRecord(chunk, "", err)
			return failed, ledger.Put(ctx, failed)
		}

		rec = domain.JobRecord{
			Key:         chunk.Key,
			RemoteJobID: jobID,
			Status:      domain.JobStatusPolling,
			Payload:     chunk.Resources,
			Timestamp:   o.clock.Now().UTC(),
		}
		if err := ledger.Put(ctx, rec); err != nil {
			return rec, err
		}
		logger.Info("batch job submitted", "job_id", jobID)
	}

	status, err := o.poll(ctx, jobID, logger)
	if err == nil {
		status.Results, err = o.collectPages(ctx, status)
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return rec, ctxErr
		}
		logger.Error("batch job failed", "job_id", jobID, "error", err)
		failed := o.failedRecord(chunk, jobID, err)
		return failed, ledger.Put(ctx, failed)
	}

	done := domain.JobRecord{
		Key:         chunk.Key,
		RemoteJobID: jobID,
		Status:      domain.JobStatusCompleted,
		Payload:     chunk.Resources,
		Results:     status.Results,
		CreditsUsed: status.CreditsUsed,
		Timestamp:   o.clock.Now().UTC(),
	}
	if err := ledger.Put(ctx, done); err != nil {
		return done, err
	}
	logger.Info("batch job completed",
		"job_id", jobID,
		"results", len(done.Results),
		"credits_used", done.CreditsUsed,
	)
	return done, nil
}

// ProcessAll processes chunks with up to Concurrency workers and merges the
// results of every completed chunk. A failed chunk never stops the others.
// The error is non-nil only for cancellation or persistence failure.
func (o *BatchOrchestrator) ProcessAll(ctx context.Context, chunks []domain.Chunk, ledger *JobLedger, force bool) (*BatchOutcome, error) {
	records := make([]domain.JobRecord, len(chunks))
	cached := make([]bool, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	limit := o.config.Concurrency
	if limit < 1 {
		limit = 1
	}
	g.SetLimit(limit)

	for i, chunk := range chunks {
		if prev, ok := ledger.Get(chunk.Key); ok && prev.IsCompleted() && !force {
			cached[i] = true
		}
		g.Go(func() error {
			rec, err := o.ProcessChunk(gctx, chunk, ledger, force)
			records[i] = rec
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := &BatchOutcome{Records: records}
	var results []domain.FetchedResource
	incomplete := domain.NewResourceSet()
	for i, rec := range records {
		switch {
		case rec.IsCompleted():
			results = append(results, rec.Results...)
			if cached[i] {
				out.Cached++
				continue
			}
			out.Completed++
			out.Fetched += len(rec.Results)
			out.CreditsUsed += rec.CreditsUsed
		default:
			out.Failed++
			for _, id := range chunks[i].Resources {
				incomplete.Add(id)
			}
		}
	}
	out.Results = domain.DedupeResources(results)
	out.Incomplete = incomplete.Sorted()
	return out, nil
}

// poll waits for a remote job to reach a terminal state.
func (o *BatchOrchestrator) poll(ctx context.Context, jobID string, logger *slog.Logger) (*domain.BatchStatus, error) {
	start := o.clock.Now()
	for {
		if err := o.clock.Sleep(ctx, o.config.PollInterval); err != nil {
			return nil, err
		}
		if elapsed := o.clock.Now().Sub(start); elapsed > o.config.MaxPollDuration {
			return nil, fmt.Errorf("%w: job %s still running after %s", domain.ErrPollTimeout, jobID, elapsed.Round(time.Second))
		}

		var status *domain.BatchStatus
		err := o.retrier.Do(ctx, "batch status", func() error {
			s, err := o.fetcher.Status(ctx, jobID)
			if err != nil {
				return err
			}
			status = s
			return nil
		})
		if err != nil {
			return nil, err
		}

		switch status.Status {
		case domain.RemoteJobCompleted:
			return status, nil
		case domain.RemoteJobFailed:
			return nil, fmt.Errorf("%w: job %s", domain.ErrBatchFailed, jobID)
		}
		logger.Debug("batch job in progress",
			"job_id", jobID,
			"status", status.Status,
			"completed", status.Completed,
			"total", status.Total,
		)
	}
}

// collectPages follows the pagination cursor of a completed job and returns
// every page's results in order.
func (o *BatchOrchestrator) collectPages(ctx context.Context, status *domain.BatchStatus) ([]domain.FetchedResource, error) {
	results := append([]domain.FetchedResource(nil), status.Results...)
	seen := map[string]struct{}{}
	next := status.Next

	for next != "" {
		if _, ok := seen[next]; ok {
			return nil, fmt.Errorf("pagination cursor repeated: %s", next)
		}
		seen[next] = struct{}{}

		var page *domain.BatchPage
		cursor := next
		err := o.retrier.Do(ctx, "batch page", func() error {
			p, err := o.fetcher.FetchPage(ctx, cursor)
			if err != nil {
				return err
			}
			page = p
			return nil
		})
		if err != nil {
			return nil, err
		}
		results = append(results, page.Results...)
		next = page.Next
	}
	return results, nil
}

func (o *BatchOrchestrator) failedRecord(chunk domain.Chunk, jobID string, err error) domain.JobRecord {
	return domain.JobRecord{
		Key:         chunk.Key,
		RemoteJobID: jobID,
		Status:      domain.JobStatusFailed,
		Payload:     chunk.Resources,
		Error:       errorCode(err),
		Timestamp:   o.clock.Now().UTC(),
	}
}

// errorCode renders a chunk failure. Poll timeouts and remote failures use
// their bare sentinel text so the persisted document carries a stable code.
func errorCode(err error) string {
	switch {
	case errors.Is(err, domain.ErrPollTimeout):
		return domain.ErrPollTimeout.Error()
	case errors.Is(err, domain.ErrBatchFailed):
		return domain.ErrBatchFailed.Error()
	default:
		return err.Error()
	}
}

// failedChunks returns the keys of failed records, sorted.
func failedChunks(records []domain.JobRecord) []string {
	var keys []string
	for _, r := range records {
		if r.Status == domain.JobStatusFailed {
			keys = append(keys, string(r.Key))
		}
	}
	sort.Strings(keys)
	return keys
}
