package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/furrsati/OMM-BOT-sub002/internal/domain"
	"github.com/furrsati/OMM-BOT-sub002/internal/storage"
)

// MetaStore is an in-memory implementation of storage.MetaStore.
type MetaStore struct {
	mu     sync.RWMutex
	evals  map[string]*domain.ImpactEvaluation // keyed by eval_id
	byAdj  map[string]struct{}                 // adjustment_ids evaluated
	events map[string]*domain.MetaEvent        // keyed by event_id
}

// NewMetaStore creates a new in-memory meta store.
func NewMetaStore() *MetaStore {
	return &MetaStore{
		evals:  make(map[string]*domain.ImpactEvaluation),
		byAdj:  make(map[string]struct{}),
		events: make(map[string]*domain.MetaEvent),
	}
}

// InsertEvaluation adds an impact evaluation.
func (s *MetaStore) InsertEvaluation(_ context.Context, e *domain.ImpactEvaluation) error {
	if e == nil || e.EvalID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.evals[e.EvalID]; exists {
		return storage.ErrDuplicateKey
	}

	copy := *e
	s.evals[e.EvalID] = &copy
	s.byAdj[e.AdjustmentID] = struct{}{}
	return nil
}

// GetEvaluations retrieves up to limit evaluations, newest first.
func (s *MetaStore) GetEvaluations(_ context.Context, limit int) ([]*domain.ImpactEvaluation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.ImpactEvaluation, 0, len(s.evals))
	for _, e := range s.evals {
		copy := *e
		result = append(result, &copy)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].EvaluatedAt != result[j].EvaluatedAt {
			return result[i].EvaluatedAt > result[j].EvaluatedAt
		}
		return result[i].EvalID < result[j].EvalID
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// HasEvaluation reports whether an adjustment has been evaluated.
func (s *MetaStore) HasEvaluation(_ context.Context, adjustmentID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.byAdj[adjustmentID]
	return ok, nil
}

// InsertEvent adds a governance event.
func (s *MetaStore) InsertEvent(_ context.Context, e *domain.MetaEvent) error {
	if e == nil || e.EventID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.events[e.EventID]; exists {
		return storage.ErrDuplicateKey
	}

	copy := *e
	s.events[e.EventID] = &copy
	return nil
}

// GetLatestEvent retrieves the newest event of a type.
func (s *MetaStore) GetLatestEvent(_ context.Context, typ string) (*domain.MetaEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *domain.MetaEvent
	for _, e := range s.events {
		if e.Type != typ {
			continue
		}
		if latest == nil || e.CreatedAt > latest.CreatedAt ||
			(e.CreatedAt == latest.CreatedAt && e.EventID > latest.EventID) {
			latest = e
		}
	}
	if latest == nil {
		return nil, storage.ErrNotFound
	}

	copy := *latest
	return &copy, nil
}

var _ storage.MetaStore = (*MetaStore)(nil)
