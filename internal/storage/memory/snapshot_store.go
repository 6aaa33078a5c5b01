package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/furrsati/OMM-BOT-sub002/internal/domain"
	"github.com/furrsati/OMM-BOT-sub002/internal/storage"
)

// SnapshotStore is an in-memory implementation of storage.SnapshotStore.
// Version allocation is serialized by the write lock.
type SnapshotStore struct {
	mu   sync.RWMutex
	data map[int64]*domain.LearningSnapshot // keyed by version
	next int64
}

// NewSnapshotStore creates a new in-memory snapshot store.
func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{
		data: make(map[int64]*domain.LearningSnapshot),
		next: 1,
	}
}

// Insert stores a snapshot, allocating version = max(existing)+1.
func (s *SnapshotStore) Insert(_ context.Context, snap *domain.LearningSnapshot) (*domain.LearningSnapshot, error) {
	if snap == nil {
		return nil, storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored := copySnapshot(snap)
	stored.Version = s.next
	s.next++
	s.data[stored.Version] = stored

	return copySnapshot(stored), nil
}

// GetCurrent retrieves the highest-version snapshot.
func (s *SnapshotStore) GetCurrent(_ context.Context) (*domain.LearningSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var current *domain.LearningSnapshot
	for _, snap := range s.data {
		if current == nil || snap.Version > current.Version {
			current = snap
		}
	}
	if current == nil {
		return nil, storage.ErrNotFound
	}
	return copySnapshot(current), nil
}

// GetByVersion retrieves a snapshot by version.
func (s *SnapshotStore) GetByVersion(_ context.Context, version int64) (*domain.LearningSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, exists := s.data[version]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return copySnapshot(snap), nil
}

// GetRecent retrieves up to limit snapshots, newest first.
func (s *SnapshotStore) GetRecent(_ context.Context, limit int) ([]*domain.LearningSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.LearningSnapshot, 0, len(s.data))
	for _, snap := range s.data {
		result = append(result, copySnapshot(snap))
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Version > result[j].Version
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// Count returns the number of snapshots.
func (s *SnapshotStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data), nil
}

// copySnapshot deep-copies a snapshot including its parameter map.
func copySnapshot(s *domain.LearningSnapshot) *domain.LearningSnapshot {
	out := *s
	out.Parameters = s.CloneParameters()
	return &out
}

var _ storage.SnapshotStore = (*SnapshotStore)(nil)
