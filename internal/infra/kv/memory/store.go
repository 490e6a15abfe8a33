// Package memory provides an in-process key-value store for tests and ephemeral runs.
package memory

import (
	"context"
	"sort"
	"sync"

	"pharmacore/pkg/domain"
)

var _ domain.KVStore = (*Store)(nil)

// Store keeps values in a map guarded by a RWMutex. Values are copied on the way
// in and out so callers never share backing arrays with the store.
type Store struct {
	mu     sync.RWMutex
	values map[string][]byte
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{values: make(map[string][]byte)}
}

// Get implements domain.KVStore.
func (s *Store) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

// Set implements domain.KVStore.
func (s *Store) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	s.values[key] = append([]byte(nil), value...)
	s.mu.Unlock()
	return nil
}

// Remove implements domain.KVStore.
func (s *Store) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.values, key)
	s.mu.Unlock()
	return nil
}

// Clear implements domain.KVStore.
func (s *Store) Clear(context.Context) error {
	s.mu.Lock()
	s.values = make(map[string][]byte)
	s.mu.Unlock()
	return nil
}

// Keys returns all stored keys in ascending order.
func (s *Store) Keys(context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// Close is a no-op kept for parity with the database-backed stores.
func (s *Store) Close() error { return nil }
