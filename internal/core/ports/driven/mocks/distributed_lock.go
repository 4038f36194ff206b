package mocks

import (
	"context"
	"fmt"
	"sync"
	"time"
)

const (
	selfOwner     = "self"
	externalOwner = "external"
)

// MockDistributedLock is an in-memory DistributedLock. Locks taken through
// Acquire belong to the mock itself; locks seeded with SetLockHeld belong to
// another process, which Release cannot drop. Any live lock blocks Acquire.
type MockDistributedLock struct {
	mu       sync.Mutex
	held     map[string]heldLock
	acquired []string
	extended []string

	// Now overrides the expiry clock
	Now func() time.Time

	// Optional behaviour overrides
	AcquireFn func(name string, ttl time.Duration) (bool, error)
	ExtendFn  func(name string, ttl time.Duration) error
	PingFn    func() error
}

type heldLock struct {
	owner   string
	expires time.Time
}

// NewMockDistributedLock creates an empty lock table.
func NewMockDistributedLock() *MockDistributedLock {
	return &MockDistributedLock{held: make(map[string]heldLock)}
}

func (m *MockDistributedLock) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}

// lookup returns the live lock for name. Caller holds m.mu.
func (m *MockDistributedLock) lookup(name string) (heldLock, bool) {
	l, ok := m.held[name]
	if !ok || !m.now().Before(l.expires) {
		return heldLock{}, false
	}
	return l, true
}

func (m *MockDistributedLock) Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	if m.AcquireFn != nil {
		return m.AcquireFn(name, ttl)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.lookup(name); ok {
		return false, nil
	}
	m.held[name] = heldLock{owner: selfOwner, expires: m.now().Add(ttl)}
	m.acquired = append(m.acquired, name)
	return true, nil
}

// Release drops a lock this mock owns. Foreign locks are left in place.
func (m *MockDistributedLock) Release(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if l, ok := m.held[name]; ok && l.owner == selfOwner {
		delete(m.held, name)
	}
	return nil
}

// Extend records the call, then refreshes a lock this mock owns.
func (m *MockDistributedLock) Extend(ctx context.Context, name string, ttl time.Duration) error {
	m.mu.Lock()
	m.extended = append(m.extended, name)
	m.mu.Unlock()
	if m.ExtendFn != nil {
		return m.ExtendFn(name, ttl)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.lookup(name)
	if !ok || l.owner != selfOwner {
		return fmt.Errorf("lock %s not held", name)
	}
	l.expires = m.now().Add(ttl)
	m.held[name] = l
	return nil
}

func (m *MockDistributedLock) Ping(ctx context.Context) error {
	if m.PingFn != nil {
		return m.PingFn()
	}
	return nil
}

// Reset forgets every lock and acquisition.
func (m *MockDistributedLock) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.held = make(map[string]heldLock)
	m.acquired = nil
	m.extended = nil
}

// IsHeld reports whether anyone holds name.
func (m *MockDistributedLock) IsHeld(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.lookup(name)
	return ok
}

// SetLockHeld simulates another process holding name for ttl.
func (m *MockDistributedLock) SetLockHeld(name string, ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.held[name] = heldLock{owner: externalOwner, expires: m.now().Add(ttl)}
}

// Acquisitions lists every successful Acquire in order.
func (m *MockDistributedLock) Acquisitions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.acquired...)
}

// Extensions lists every Extend call in order.
func (m *MockDistributedLock) Extensions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.extended...)
}
