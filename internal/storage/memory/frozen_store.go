package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/furrsati/OMM-BOT-sub002/internal/domain"
	"github.com/furrsati/OMM-BOT-sub002/internal/storage"
)

// FrozenStore is an in-memory implementation of storage.FrozenStore.
type FrozenStore struct {
	mu   sync.RWMutex
	data map[string]*domain.FrozenParameter // keyed by name
}

// NewFrozenStore creates a new in-memory frozen-parameter store.
func NewFrozenStore() *FrozenStore {
	return &FrozenStore{
		data: make(map[string]*domain.FrozenParameter),
	}
}

// Freeze locks a name. Freezing an already-frozen name is a no-op.
func (s *FrozenStore) Freeze(_ context.Context, f *domain.FrozenParameter) error {
	if f == nil || f.Name == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[f.Name]; exists {
		return nil
	}

	copy := *f
	s.data[f.Name] = &copy
	return nil
}

// Unfreeze removes a lock. Unfreezing an unknown name is a no-op.
func (s *FrozenStore) Unfreeze(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data, name)
	return nil
}

// IsFrozen reports whether a name is locked.
func (s *FrozenStore) IsFrozen(_ context.Context, name string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.data[name]
	return ok, nil
}

// List retrieves all locks, ordered by name.
func (s *FrozenStore) List(_ context.Context) ([]*domain.FrozenParameter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.FrozenParameter, 0, len(s.data))
	for _, f := range s.data {
		copy := *f
		result = append(result, &copy)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Name < result[j].Name
	})

	return result, nil
}

var _ storage.FrozenStore = (*FrozenStore)(nil)
