package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/cognicore/reactrank/pkg/reactrank/snapshot"
	"github.com/cognicore/reactrank/pkg/reactrank/store"
)

// Store is an in-memory implementation of store.Store for tests.
type Store struct {
	mu       sync.RWMutex
	items    map[string]store.Item
	snap     snapshot.Snapshot
	hasSnap  bool
	closed   bool
	saveHits int
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		items: make(map[string]store.Item),
	}
}

// Close implements store.Store.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// UpsertItem inserts or replaces an item, keyed by ID.
func (s *Store) UpsertItem(ctx context.Context, it store.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if it.ID == "" {
		return nil
	}
	s.items[it.ID] = it.Clone()
	return nil
}

// GetItem returns an item by ID.
func (s *Store) GetItem(ctx context.Context, id string) (store.Item, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if it, ok := s.items[id]; ok {
		return it.Clone(), true, nil
	}
	return store.Item{}, false, nil
}

// ListItems returns every item ordered by ID.
func (s *Store) ListItems(ctx context.Context) ([]store.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]store.Item, 0, len(s.items))
	for _, it := range s.items {
		out = append(out, it.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// SaveSnapshot replaces the stored snapshot.
func (s *Store) SaveSnapshot(ctx context.Context, snap snapshot.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, tags := range snap.Items {
		it := s.items[id]
		it.ID = id
		it.Tags = append([]string(nil), tags...)
		s.items[id] = it
	}
	s.snap = snap.Clone()
	s.snap.Items = nil
	s.hasSnap = true
	s.saveHits++
	return nil
}

// LoadSnapshot returns the last saved snapshot with the stored item tags.
func (s *Store) LoadSnapshot(ctx context.Context) (snapshot.Snapshot, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.hasSnap {
		return snapshot.Snapshot{}, false, nil
	}
	out := s.snap.Clone()
	out.Items = make(map[string][]string, len(s.items))
	for id, it := range s.items {
		out.Items[id] = append([]string(nil), it.Tags...)
	}
	return out, true, nil
}

// Saves returns how many snapshots have been saved. Tests use it to observe
// persistence calls.
func (s *Store) Saves() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saveHits
}

// Closed reports whether Close has been called.
func (s *Store) Closed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}
