package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/furrsati/OMM-BOT-sub002/internal/domain"
	"github.com/furrsati/OMM-BOT-sub002/internal/storage"
)

// CycleStore is an in-memory implementation of storage.CycleStore.
type CycleStore struct {
	mu   sync.RWMutex
	data map[string]*domain.LearningCycle // keyed by cycle_id
	ran  map[string]struct{}              // keyed by type:triggerCount
}

// NewCycleStore creates a new in-memory cycle store.
func NewCycleStore() *CycleStore {
	return &CycleStore{
		data: make(map[string]*domain.LearningCycle),
		ran:  make(map[string]struct{}),
	}
}

func milestoneKey(typ domain.CycleType, triggerCount int) string {
	return fmt.Sprintf("%s:%d", typ, triggerCount)
}

// Insert adds a new cycle row in running state.
func (s *CycleStore) Insert(_ context.Context, c *domain.LearningCycle) error {
	if c == nil || c.CycleID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[c.CycleID]; exists {
		return storage.ErrDuplicateKey
	}

	copy := *c
	s.data[c.CycleID] = &copy
	s.ran[milestoneKey(c.Type, c.TriggerCount)] = struct{}{}
	return nil
}

// Close finalizes a running cycle. Closing an unknown or already closed
// cycle returns ErrNotFound.
func (s *CycleStore) Close(_ context.Context, cycleID string, status domain.CycleStatus, adjustments int, errText string, finishedAtMs int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, exists := s.data[cycleID]
	if !exists || c.Status != domain.CycleRunning {
		return storage.ErrNotFound
	}

	c.Status = status
	c.Adjustments = adjustments
	c.Error = errText
	c.FinishedAt = finishedAtMs
	return nil
}

// HasRun reports whether a cycle of this type exists for the trigger
// count.
func (s *CycleStore) HasRun(_ context.Context, typ domain.CycleType, triggerCount int) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.ran[milestoneKey(typ, triggerCount)]
	return ok, nil
}

// GetRecent retrieves up to limit cycles, newest first.
func (s *CycleStore) GetRecent(_ context.Context, limit int) ([]*domain.LearningCycle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.LearningCycle, 0, len(s.data))
	for _, c := range s.data {
		copy := *c
		result = append(result, &copy)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].StartedAt != result[j].StartedAt {
			return result[i].StartedAt > result[j].StartedAt
		}
		return result[i].CycleID < result[j].CycleID
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

var _ storage.CycleStore = (*CycleStore)(nil)
