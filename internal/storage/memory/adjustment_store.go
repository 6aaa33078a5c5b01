package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/furrsati/OMM-BOT-sub002/internal/domain"
	"github.com/furrsati/OMM-BOT-sub002/internal/storage"
)

// AdjustmentStore is an in-memory implementation of
// storage.AdjustmentStore.
type AdjustmentStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Adjustment // keyed by adjustment_id
}

// NewAdjustmentStore creates a new in-memory adjustment store.
func NewAdjustmentStore() *AdjustmentStore {
	return &AdjustmentStore{
		data: make(map[string]*domain.Adjustment),
	}
}

// Insert adds a new adjustment record. Returns ErrDuplicateKey if
// adjustment_id exists.
func (s *AdjustmentStore) Insert(_ context.Context, a *domain.Adjustment) error {
	if a == nil || a.AdjustmentID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[a.AdjustmentID]; exists {
		return storage.ErrDuplicateKey
	}

	copy := *a
	s.data[a.AdjustmentID] = &copy
	return nil
}

// GetByID retrieves an adjustment. Returns ErrNotFound if not exists.
func (s *AdjustmentStore) GetByID(_ context.Context, adjustmentID string) (*domain.Adjustment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, exists := s.data[adjustmentID]
	if !exists {
		return nil, storage.ErrNotFound
	}

	copy := *a
	return &copy, nil
}

// GetCreatedBefore retrieves adjustments created strictly before
// cutoff, oldest first.
func (s *AdjustmentStore) GetCreatedBefore(_ context.Context, cutoffMs int64) ([]*domain.Adjustment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Adjustment
	for _, a := range s.data {
		if a.CreatedAt < cutoffMs {
			copy := *a
			result = append(result, &copy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt != result[j].CreatedAt {
			return result[i].CreatedAt < result[j].CreatedAt
		}
		return result[i].AdjustmentID < result[j].AdjustmentID
	})

	return result, nil
}

var _ storage.AdjustmentStore = (*AdjustmentStore)(nil)
