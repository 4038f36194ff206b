package services

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/custodia-labs/sercha-sitesync/internal/core/domain"
	"github.com/custodia-labs/sercha-sitesync/internal/core/ports/driven/mocks"
)

var testEpoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// testConfig returns a configuration with fast backoff and small chunks.
func testConfig() domain.SyncConfig {
	cfg := domain.DefaultSyncConfig()
	cfg.ChunkSize = 2
	cfg.BackoffMin = time.Millisecond
	cfg.BackoffMax = 2 * time.Millisecond
	return cfg
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// countingPersist records how many times the ledger persisted state.
type countingPersist struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (p *countingPersist) persist(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	return p.err
}

func (p *countingPersist) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

type orchestratorFixture struct {
	orch    *BatchOrchestrator
	fetcher *mocks.MockBatchFetcher
	clock   *mocks.FakeClock
	state   *domain.SyncState
	persist *countingPersist
	ledger  *JobLedger
}

func newOrchestratorFixture(cfg domain.SyncConfig) *orchestratorFixture {
	f := &orchestratorFixture{
		fetcher: mocks.NewMockBatchFetcher(),
		clock:   mocks.NewFakeClock(testEpoch),
		state:   domain.NewSyncState(),
		persist: &countingPersist{},
	}
	f.orch = NewBatchOrchestrator(BatchOrchestratorConfig{
		Fetcher: f.fetcher,
		Clock:   f.clock,
		Config:  cfg,
		Logger:  discardLogger(),
	})
	f.ledger = NewJobLedger(f.state, f.persist.persist)
	return f
}

type driverFixture struct {
	driver     *SyncDriver
	store      *mocks.MockSyncStateStore
	discoverer *mocks.MockDiscoverer
	fetcher    *mocks.MockBatchFetcher
	lock       *mocks.MockDistributedLock
	clock      *mocks.FakeClock
}

func newDriverFixture(cfg domain.SyncConfig, resources ...string) *driverFixture {
	f := &driverFixture{
		store:      mocks.NewMockSyncStateStore(),
		discoverer: mocks.NewMockDiscoverer(resources...),
		fetcher:    mocks.NewMockBatchFetcher(),
		lock:       mocks.NewMockDistributedLock(),
		clock:      mocks.NewFakeClock(testEpoch),
	}
	f.driver = NewSyncDriver(SyncDriverConfig{
		Store:      f.store,
		Discoverer: f.discoverer,
		Fetcher:    f.fetcher,
		Lock:       f.lock,
		Clock:      f.clock,
		Config:     cfg,
		Logger:     discardLogger(),
	})
	return f
}

func (f *driverFixture) sync(mode domain.SyncMode) (*domain.SyncResult, error) {
	return f.driver.Sync(context.Background(), domain.SyncRequest{
		Collection: "example.com",
		Mode:       mode,
	})
}

func resourceIDs(resources []domain.FetchedResource) []string {
	out := make([]string, 0, len(resources))
	for _, r := range resources {
		out = append(out, r.ID)
	}
	return out
}
