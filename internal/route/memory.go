// SPDX-License-Identifier: MIT
package route

import (
	"errors"
	"fmt"
	"sync"
)

type policyKey struct {
	pid  uint32
	flow Flow
	role Role
}

// MemoryPolicy is an in-process Policy. It backs --dry-run and the tests.
type MemoryPolicy struct {
	mu      sync.Mutex
	entries map[policyKey]EndpointRef
	writes  int

	// FailSet, when non-nil, is consulted before every write; a non-nil
	// return rejects the write.
	FailSet func(pid uint32, flow Flow, role Role, ref EndpointRef) error
	// FailGet does the same for reads.
	FailGet func(pid uint32, flow Flow, role Role) error
}

// NewMemoryPolicy returns an empty MemoryPolicy where every entry reads as
// the system default.
func NewMemoryPolicy() *MemoryPolicy {
	return &MemoryPolicy{entries: make(map[policyKey]EndpointRef)}
}

func (p *MemoryPolicy) ProcessEndpoint(pid uint32, flow Flow, role Role) (EndpointRef, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.FailGet != nil {
		if err := p.FailGet(pid, flow, role); err != nil {
			return EndpointRef{}, err
		}
	}
	return p.entries[policyKey{pid, flow, role}], nil
}

func (p *MemoryPolicy) SetProcessEndpoint(pid uint32, flow Flow, role Role, ref EndpointRef) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.FailSet != nil {
		if err := p.FailSet(pid, flow, role, ref); err != nil {
			return err
		}
	}
	p.writes++
	k := policyKey{pid, flow, role}
	if ref.IsSystemDefault() {
		delete(p.entries, k)
		return nil
	}
	p.entries[k] = ref
	return nil
}

// Writes returns the number of accepted writes.
func (p *MemoryPolicy) Writes() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.writes
}

// ListenState is the pair of listen-through properties on one device.
type ListenState struct {
	Enabled bool
	Target  string
}

// MemoryStores is an in-process StoreOpener keyed by short device id.
type MemoryStores struct {
	mu     sync.Mutex
	states map[string]ListenState
	open   int

	// Deny lists device ids whose store cannot be opened for write.
	Deny map[string]bool
	// Missing lists device ids that do not exist.
	Missing map[string]bool
	// FailSetFlag and FailSetTarget reject the corresponding writes when set.
	FailSetFlag   error
	FailSetTarget error
}

// NewMemoryStores returns an empty MemoryStores.
func NewMemoryStores() *MemoryStores {
	return &MemoryStores{states: make(map[string]ListenState)}
}

// Set seeds the state of a device.
func (m *MemoryStores) Set(deviceID string, st ListenState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[deviceID] = st
}

// State returns the current state of a device.
func (m *MemoryStores) State(deviceID string) ListenState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.states[deviceID]
}

// OpenCount returns the number of stores opened and not yet closed.
func (m *MemoryStores) OpenCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.open
}

func (m *MemoryStores) OpenWritable(deviceID string) (PropertyStore, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Missing[deviceID] {
		return nil, fmt.Errorf("get device %s: element not found", deviceID)
	}
	if m.Deny[deviceID] {
		return nil, fmt.Errorf("open %s for write: %w", deviceID, ErrPermissionDenied)
	}
	m.open++
	return &memoryStore{parent: m, id: deviceID}, nil
}

type memoryStore struct {
	parent *MemoryStores
	id     string
	closed bool
}

var errStoreClosed = errors.New("property store closed")

func (s *memoryStore) ListenEnabled() (bool, error) {
	s.parent.mu.Lock()
	defer s.parent.mu.Unlock()
	if s.closed {
		return false, errStoreClosed
	}
	return s.parent.states[s.id].Enabled, nil
}

func (s *memoryStore) SetListenEnabled(enabled bool) error {
	s.parent.mu.Lock()
	defer s.parent.mu.Unlock()
	if s.closed {
		return errStoreClosed
	}
	if s.parent.FailSetFlag != nil {
		return s.parent.FailSetFlag
	}
	st := s.parent.states[s.id]
	st.Enabled = enabled
	s.parent.states[s.id] = st
	return nil
}

func (s *memoryStore) ListenTarget() (string, error) {
	s.parent.mu.Lock()
	defer s.parent.mu.Unlock()
	if s.closed {
		return "", errStoreClosed
	}
	return s.parent.states[s.id].Target, nil
}

func (s *memoryStore) SetListenTarget(deviceID string) error {
	s.parent.mu.Lock()
	defer s.parent.mu.Unlock()
	if s.closed {
		return errStoreClosed
	}
	if s.parent.FailSetTarget != nil {
		return s.parent.FailSetTarget
	}
	st := s.parent.states[s.id]
	st.Target = deviceID
	s.parent.states[s.id] = st
	return nil
}

func (s *memoryStore) Close() error {
	s.parent.mu.Lock()
	defer s.parent.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.parent.open--
	return nil
}

var (
	_ Policy      = (*MemoryPolicy)(nil)
	_ StoreOpener = (*MemoryStores)(nil)
)
