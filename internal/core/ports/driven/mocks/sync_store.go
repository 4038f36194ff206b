package mocks

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/custodia-labs/sercha-sitesync/internal/core/domain"
	"github.com/custodia-labs/sercha-sitesync/internal/core/ports/driven"
)

var _ driven.SyncStateStore = (*MockSyncStateStore)(nil)

// MockSyncStateStore is an in-memory SyncStateStore.
// Documents are stored as JSON so callers never share memory with the store,
// the same way a real backend behaves.
type MockSyncStateStore struct {
	mu    sync.RWMutex
	docs  map[string][]byte
	saves int

	// Custom behavior hooks (optional)
	LoadFn func(collection string) (*domain.SyncState, error)
	SaveFn func(collection string, state *domain.SyncState) error
	PingFn func() error
}

// NewMockSyncStateStore creates a new MockSyncStateStore
func NewMockSyncStateStore() *MockSyncStateStore {
	return &MockSyncStateStore{
		docs: make(map[string][]byte),
	}
}

func (m *MockSyncStateStore) Load(ctx context.Context, collection string) (*domain.SyncState, error) {
	if m.LoadFn != nil {
		return m.LoadFn(collection)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.docs[collection]
	if !ok {
		return domain.NewSyncState(), nil
	}
	return decodeState(data), nil
}

func (m *MockSyncStateStore) Save(ctx context.Context, collection string, state *domain.SyncState) error {
	if m.SaveFn != nil {
		if err := m.SaveFn(collection, state); err != nil {
			return err
		}
	}
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[collection] = data
	m.saves++
	return nil
}

func (m *MockSyncStateStore) List(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.docs))
	for c := range m.docs {
		out = append(out, c)
	}
	sort.Strings(out)
	return out, nil
}

func (m *MockSyncStateStore) Ping(ctx context.Context) error {
	if m.PingFn != nil {
		return m.PingFn()
	}
	return nil
}

// Put seeds the stored document for a collection (for test setup).
func (m *MockSyncStateStore) Put(collection string, state *domain.SyncState) {
	data, _ := json.Marshal(state)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[collection] = data
}

// Snapshot returns a copy of the stored document, or nil if none exists.
func (m *MockSyncStateStore) Snapshot(collection string) *domain.SyncState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.docs[collection]
	if !ok {
		return nil
	}
	return decodeState(data)
}

// SaveCount returns the number of successful saves.
func (m *MockSyncStateStore) SaveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.saves
}

func decodeState(data []byte) *domain.SyncState {
	state := domain.NewSyncState()
	if err := json.Unmarshal(data, state); err != nil {
		return domain.NewSyncState()
	}
	if state.JobRecords == nil {
		state.JobRecords = make(map[domain.ChunkKey]domain.JobRecord)
	}
	if state.DeletionCandidates == nil {
		state.DeletionCandidates = make(map[string]domain.DeletionCandidate)
	}
	return state
}
