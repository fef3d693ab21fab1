// Package session provides an in-memory TTL store for import workflow
// snapshots. A session outlives one HTTP turn so the TAN round trip and
// the format fallback can resume; abandoned sessions simply expire.
package session

import (
	"sync"
	"time"

	"github.com/bankimport/fints-firefly-go/internal/workflow"
)

type entry struct {
	snap      *workflow.Snapshot
	expiresAt time.Time
}

// Store is a thread-safe in-memory snapshot store with TTL. Cleanup of
// orphaned sessions is this store's responsibility, not the workflow's.
type Store struct {
	mu    sync.RWMutex
	items map[string]entry
	ttl   time.Duration
}

// New creates a session store with the given TTL.
func New(ttl time.Duration) *Store {
	s := &Store{
		items: make(map[string]entry),
		ttl:   ttl,
	}
	go s.cleanup()
	return s
}

// Get retrieves a snapshot. Returns false if not found or expired.
func (s *Store) Get(id string) (*workflow.Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.items[id]
	if !ok || time.Now().After(e.expiresAt) {
		return nil, false
	}
	return e.snap, true
}

// Set stores a snapshot and refreshes its TTL. Every workflow turn
// writes the updated snapshot back, so active sessions never expire
// mid-import.
func (s *Store) Set(id string, snap *workflow.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items[id] = entry{
		snap:      snap,
		expiresAt: time.Now().Add(s.ttl),
	}
}

// Delete removes a session, e.g. when the workflow completes.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.items, id)
}

// cleanup periodically removes expired sessions.
func (s *Store) cleanup() {
	ticker := time.NewTicker(s.ttl)
	defer ticker.Stop()

	for range ticker.C {
		s.mu.Lock()
		now := time.Now()
		for id, e := range s.items {
			if now.After(e.expiresAt) {
				delete(s.items, id)
			}
		}
		s.mu.Unlock()
	}
}
