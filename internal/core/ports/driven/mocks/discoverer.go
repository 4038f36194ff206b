package mocks

import (
	"context"
	"sync"

	"github.com/custodia-labs/sercha-sitesync/internal/core/ports/driven"
)

var _ driven.Discoverer = (*MockDiscoverer)(nil)

// MockDiscoverer returns a fixed resource list.
type MockDiscoverer struct {
	mu        sync.Mutex
	resources []string
	requests  []driven.DiscoveryRequest

	// DiscoverFn overrides the fixed list when set
	DiscoverFn func(req driven.DiscoveryRequest) ([]string, error)
}

// NewMockDiscoverer creates a discoverer that returns resources
func NewMockDiscoverer(resources ...string) *MockDiscoverer {
	return &MockDiscoverer{resources: resources}
}

func (m *MockDiscoverer) Discover(ctx context.Context, req driven.DiscoveryRequest) ([]string, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	resources := append([]string(nil), m.resources...)
	m.mu.Unlock()

	if m.DiscoverFn != nil {
		return m.DiscoverFn(req)
	}
	return resources, nil
}

// SetResources replaces the list returned by subsequent calls.
func (m *MockDiscoverer) SetResources(resources ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resources = resources
}

// Requests returns every request received so far.
func (m *MockDiscoverer) Requests() []driven.DiscoveryRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]driven.DiscoveryRequest(nil), m.requests...)
}
