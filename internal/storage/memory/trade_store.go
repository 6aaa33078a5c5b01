package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/furrsati/OMM-BOT-sub002/internal/domain"
	"github.com/furrsati/OMM-BOT-sub002/internal/storage"
)

// TradeStore is an in-memory implementation of storage.TradeStore.
type TradeStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Trade // keyed by trade_id
}

// NewTradeStore creates a new in-memory trade store.
func NewTradeStore() *TradeStore {
	return &TradeStore{
		data: make(map[string]*domain.Trade),
	}
}

// Insert adds a new trade. Returns ErrDuplicateKey if trade_id exists.
func (s *TradeStore) Insert(_ context.Context, t *domain.Trade) error {
	if t == nil || t.TradeID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[t.TradeID]; exists {
		return storage.ErrDuplicateKey
	}

	s.data[t.TradeID] = copyTrade(t)
	return nil
}

// GetByID retrieves a trade by its ID. Returns ErrNotFound if not exists.
func (s *TradeStore) GetByID(_ context.Context, tradeID string) (*domain.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, exists := s.data[tradeID]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return copyTrade(t), nil
}

// GetRecentCompleted retrieves the most recent completed trades,
// ordered by exit_time DESC, capped at limit.
func (s *TradeStore) GetRecentCompleted(_ context.Context, limit int) ([]*domain.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Trade
	for _, t := range s.data {
		if t.Completed() {
			result = append(result, copyTrade(t))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].ExitTime != result[j].ExitTime {
			return result[i].ExitTime > result[j].ExitTime
		}
		return result[i].TradeID < result[j].TradeID
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// CountCompleted returns the number of completed trades.
func (s *TradeStore) CountCompleted(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, t := range s.data {
		if t.Completed() {
			n++
		}
	}
	return n, nil
}

// GetCompletedBefore retrieves up to limit completed trades with
// exit_time strictly before cutoff, most recent first.
func (s *TradeStore) GetCompletedBefore(_ context.Context, cutoffMs int64, limit int) ([]*domain.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Trade
	for _, t := range s.data {
		if t.Completed() && t.ExitTime < cutoffMs {
			result = append(result, copyTrade(t))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].ExitTime != result[j].ExitTime {
			return result[i].ExitTime > result[j].ExitTime
		}
		return result[i].TradeID < result[j].TradeID
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// GetCompletedAfter retrieves up to limit completed trades with
// exit_time strictly after cutoff, oldest first.
func (s *TradeStore) GetCompletedAfter(_ context.Context, cutoffMs int64, limit int) ([]*domain.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Trade
	for _, t := range s.data {
		if t.Completed() && t.ExitTime > cutoffMs {
			result = append(result, copyTrade(t))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].ExitTime != result[j].ExitTime {
			return result[i].ExitTime < result[j].ExitTime
		}
		return result[i].TradeID < result[j].TradeID
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// copyTrade deep-copies a trade including its fingerprint.
func copyTrade(t *domain.Trade) *domain.Trade {
	out := *t
	if t.Fingerprint != nil {
		fp := *t.Fingerprint
		fp.SmartWallet.Tiers = append([]string(nil), t.Fingerprint.SmartWallet.Tiers...)
		out.Fingerprint = &fp
	}
	return &out
}

var _ storage.TradeStore = (*TradeStore)(nil)
