package session

import (
	"context"
	"sync"

	"tmphost/internal/core"
)

// MemoryStore implements Store with mutex-guarded maps. State is lost
// on restart, which the service accepts.
type MemoryStore struct {
	mu        sync.RWMutex
	sessions  map[core.Identity]State
	overrides map[core.Identity]string
}

// NewMemory creates an in-memory session store.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		sessions:  make(map[core.Identity]State),
		overrides: make(map[core.Identity]string),
	}
}

// Get returns the session for an identity, zero-valued if none.
func (s *MemoryStore) Get(_ context.Context, id core.Identity) (State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessions[id], nil
}

// Set replaces the session for an identity.
func (s *MemoryStore) Set(_ context.Context, id core.Identity, st State) error {
	s.mu.Lock()
	s.sessions[id] = st
	s.mu.Unlock()
	return nil
}

// SetOverride records a single-use extension override.
func (s *MemoryStore) SetOverride(_ context.Context, id core.Identity, ext string) error {
	s.mu.Lock()
	s.overrides[id] = ext
	s.mu.Unlock()
	return nil
}

// ConsumeOverride returns and clears the pending override.
func (s *MemoryStore) ConsumeOverride(_ context.Context, id core.Identity) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ext, ok := s.overrides[id]
	if ok {
		delete(s.overrides, id)
	}
	return ext, ok, nil
}

// Close is a no-op for the memory store.
func (s *MemoryStore) Close() error {
	return nil
}
