// Package memstore is an in-memory MetadataStore used by tests, examples,
// and single-process hosts that do not need durability.
package memstore

import (
	"context"
	"sync"

	memberauth "github.com/goliatone/go-memberauth"
)

// Store keeps per-user metadata in process memory. Safe for concurrent use.
type Store struct {
	mu    sync.RWMutex
	users map[int64]map[string][]byte
}

var _ memberauth.MetadataStore = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{users: map[int64]map[string][]byte{}}
}

// Get implements memberauth.MetadataStore.
func (s *Store) Get(ctx context.Context, userID int64, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	values, ok := s.users[userID]
	if !ok {
		return nil, memberauth.ErrMetadataNotFound
	}
	value, ok := values[key]
	if !ok {
		return nil, memberauth.ErrMetadataNotFound
	}

	out := make([]byte, len(value))
	copy(out, value)
	return out, nil
}

// Set implements memberauth.MetadataStore.
func (s *Store) Set(ctx context.Context, userID int64, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, ok := s.users[userID]
	if !ok {
		values = map[string][]byte{}
		s.users[userID] = values
	}

	stored := make([]byte, len(value))
	copy(stored, value)
	values[key] = stored
	return nil
}

// Delete implements memberauth.MetadataStore. Deleting an absent key is a
// no-op.
func (s *Store) Delete(ctx context.Context, userID int64, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if values, ok := s.users[userID]; ok {
		delete(values, key)
		if len(values) == 0 {
			delete(s.users, userID)
		}
	}
	return nil
}
