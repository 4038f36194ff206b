package mocks

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/custodia-labs/sercha-sitesync/internal/core/domain"
	"github.com/custodia-labs/sercha-sitesync/internal/core/ports/driven"
)

var _ driven.BatchFetcher = (*MockBatchFetcher)(nil)

// MockBatchFetcher simulates the remote batch service in memory.
// Each submitted job reports "scraping" for PollsUntilDone polls and then
// completes with one record per resource, split into pages of PageSize.
type MockBatchFetcher struct {
	mu     sync.Mutex
	jobs   map[string]*mockJob
	cursor map[string][]domain.FetchedResource
	nextID int

	submitted [][]string
	polls     map[string]int

	// PollsUntilDone is the number of non-terminal polls before completion
	PollsUntilDone int

	// PageSize splits completed results into pages; zero means one page
	PageSize int

	// CreditsPerResource is reported as creditsUsed on completion
	CreditsPerResource int

	// SubmitErr fails selected submissions while others use the default behaviour
	SubmitErr func(resources []string) error

	// Custom behavior hooks (optional)
	BeforeSubmit func(ctx context.Context)
	SubmitFn     func(resources []string) (string, error)
	StatusFn     func(jobID string) (*domain.BatchStatus, error)
	FetchPageFn  func(cursor string) (*domain.BatchPage, error)
}

type mockJob struct {
	resources []string
	polls     int
}

// NewMockBatchFetcher creates a fetcher whose jobs complete on first poll
func NewMockBatchFetcher() *MockBatchFetcher {
	return &MockBatchFetcher{
		jobs:   make(map[string]*mockJob),
		cursor: make(map[string][]domain.FetchedResource),
		polls:  make(map[string]int),
	}
}

func (m *MockBatchFetcher) Submit(ctx context.Context, resources []string) (string, error) {
	m.mu.Lock()
	m.submitted = append(m.submitted, append([]string(nil), resources...))
	m.mu.Unlock()

	if m.BeforeSubmit != nil {
		m.BeforeSubmit(ctx)
	}

	if m.SubmitFn != nil {
		return m.SubmitFn(resources)
	}
	if m.SubmitErr != nil {
		if err := m.SubmitErr(resources); err != nil {
			return "", err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	id := fmt.Sprintf("job-%d", m.nextID)
	m.jobs[id] = &mockJob{resources: append([]string(nil), resources...)}
	return id, nil
}

func (m *MockBatchFetcher) Status(ctx context.Context, jobID string) (*domain.BatchStatus, error) {
	m.mu.Lock()
	m.polls[jobID]++
	m.mu.Unlock()

	if m.StatusFn != nil {
		return m.StatusFn(jobID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[jobID]
	if !ok {
		return nil, &domain.RemoteError{Op: "batch status", StatusCode: 404, Message: "job not found"}
	}
	job.polls++
	if job.polls <= m.PollsUntilDone {
		return &domain.BatchStatus{
			Status: domain.RemoteJobScraping,
			Total:  len(job.resources),
		}, nil
	}

	results := ResultsFor(job.resources...)
	status := &domain.BatchStatus{
		Status:      domain.RemoteJobCompleted,
		Completed:   len(job.resources),
		Total:       len(job.resources),
		CreditsUsed: m.CreditsPerResource * len(job.resources),
	}
	status.Results, status.Next = m.page(jobID, results)
	return status, nil
}

func (m *MockBatchFetcher) FetchPage(ctx context.Context, cursor string) (*domain.BatchPage, error) {
	if m.FetchPageFn != nil {
		return m.FetchPageFn(cursor)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	rest, ok := m.cursor[cursor]
	if !ok {
		return nil, &domain.RemoteError{Op: "batch page", StatusCode: 404, Message: "cursor not found"}
	}
	delete(m.cursor, cursor)

	page := &domain.BatchPage{}
	page.Results, page.Next = m.page(cursor, rest)
	return page, nil
}

// page must be called with mu held.
func (m *MockBatchFetcher) page(base string, results []domain.FetchedResource) ([]domain.FetchedResource, string) {
	if m.PageSize <= 0 || len(results) <= m.PageSize {
		return results, ""
	}
	next := base + "/next"
	m.cursor[next] = results[m.PageSize:]
	return results[:m.PageSize], next
}

// Submitted returns the resource lists of every Submit call.
func (m *MockBatchFetcher) Submitted() [][]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]string, len(m.submitted))
	copy(out, m.submitted)
	return out
}

// SubmitCount returns the number of Submit calls.
func (m *MockBatchFetcher) SubmitCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.submitted)
}

// PollCount returns the number of Status calls for a job.
func (m *MockBatchFetcher) PollCount(jobID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.polls[jobID]
}

// AddJob registers a remote job that was submitted by an earlier run.
func (m *MockBatchFetcher) AddJob(jobID string, resources []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[jobID] = &mockJob{resources: append([]string(nil), resources...)}
}

// ResultsFor builds the records the mock returns for a set of resources.
func ResultsFor(resources ...string) []domain.FetchedResource {
	out := make([]domain.FetchedResource, 0, len(resources))
	for _, r := range resources {
		doc, _ := json.Marshal(map[string]any{
			"markdown": "# " + r,
			"metadata": map[string]string{"sourceURL": r},
		})
		out = append(out, domain.FetchedResource{ID: r, Document: doc})
	}
	return out
}
