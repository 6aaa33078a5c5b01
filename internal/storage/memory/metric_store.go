package memory

import (
	"context"
	"sync"

	"github.com/furrsati/OMM-BOT-sub002/internal/storage"
)

// LearningMetricStore is an in-memory implementation of
// storage.LearningMetricStore. Useful for tests and memory-only runs
// where no ClickHouse is available.
type LearningMetricStore struct {
	mu   sync.RWMutex
	data []storage.LearningMetricPoint
}

// NewLearningMetricStore creates a new in-memory metric store.
func NewLearningMetricStore() *LearningMetricStore {
	return &LearningMetricStore{}
}

// Insert appends one metric point.
func (s *LearningMetricStore) Insert(_ context.Context, p *storage.LearningMetricPoint) error {
	if p == nil {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.data = append(s.data, *p)
	return nil
}

// Points returns a copy of all recorded points, in insertion order.
func (s *LearningMetricStore) Points() []storage.LearningMetricPoint {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]storage.LearningMetricPoint, len(s.data))
	copy(out, s.data)
	return out
}

var _ storage.LearningMetricStore = (*LearningMetricStore)(nil)
