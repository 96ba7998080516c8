// Package store keeps the last observed snapshot of every metric family.
package store

import (
	"log/slog"
	"maps"
	"slices"
	"sync"

	"monnet/internal/snapshot"
)

// Persister receives every accepted update. Implementations must not block.
type Persister interface {
	Persist(s snapshot.Snapshot)
}

// Store maps a family to its most recent snapshot. Entries are replaced
// whole and never removed.
type Store struct {
	mu        sync.RWMutex
	data      map[snapshot.Family]snapshot.Snapshot
	persister Persister
	log       *slog.Logger
}

type Option func(*Store)

// WithPersister attaches a stable-storage collaborator.
func WithPersister(p Persister) Option {
	return func(s *Store) { s.persister = p }
}

// WithSnapshots seeds the store, typically from persisted state.
func WithSnapshots(snaps map[snapshot.Family]snapshot.Snapshot) Option {
	return func(s *Store) {
		for f, snap := range snaps {
			if snap != nil {
				s.data[f] = snap
			}
		}
	}
}

func New(logger *slog.Logger, opts ...Option) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{
		data: make(map[snapshot.Family]snapshot.Snapshot),
		log:  logger.With("component", "store"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Get returns the snapshot for f, or false if it was never set.
func (s *Store) Get(f snapshot.Family) (snapshot.Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.data[f]
	return snap, ok
}

// Update overwrites the snapshot for its family.
func (s *Store) Update(snap snapshot.Snapshot) {
	f := snap.Family()
	s.mu.Lock()
	_, existed := s.data[f]
	s.data[f] = snap
	s.mu.Unlock()

	if !existed {
		s.log.Info("new metric family registered", "family", f, "key", f.StoreKey())
	}
	if s.persister != nil {
		s.persister.Persist(snap)
	}
}

// Families lists the registered families, sorted.
func (s *Store) Families() []snapshot.Family {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Sorted(maps.Keys(s.data))
}

// All returns a copy of the current contents.
func (s *Store) All() map[snapshot.Family]snapshot.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.data)
}
