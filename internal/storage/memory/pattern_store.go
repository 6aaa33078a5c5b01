package memory

import (
	"context"
	"sync"

	"github.com/furrsati/OMM-BOT-sub002/internal/domain"
	"github.com/furrsati/OMM-BOT-sub002/internal/storage"
)

// PatternStore is an in-memory implementation of storage.PatternStore.
type PatternStore struct {
	mu     sync.RWMutex
	win    map[string]*domain.WinPattern    // keyed by pattern_id
	danger map[string]*domain.DangerPattern // keyed by pattern_id
}

// NewPatternStore creates a new in-memory pattern store.
func NewPatternStore() *PatternStore {
	return &PatternStore{
		win:    make(map[string]*domain.WinPattern),
		danger: make(map[string]*domain.DangerPattern),
	}
}

// GetWin retrieves a win pattern by its structural key.
func (s *PatternStore) GetWin(_ context.Context, patternID string) (*domain.WinPattern, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, exists := s.win[patternID]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return copyWinPattern(p), nil
}

// UpsertWin inserts or replaces a win pattern.
func (s *PatternStore) UpsertWin(_ context.Context, p *domain.WinPattern) error {
	if p == nil || p.PatternID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.win[p.PatternID] = copyWinPattern(p)
	return nil
}

// GetDanger retrieves a danger pattern by its structural key.
func (s *PatternStore) GetDanger(_ context.Context, patternID string) (*domain.DangerPattern, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, exists := s.danger[patternID]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return copyDangerPattern(p), nil
}

// UpsertDanger inserts or replaces a danger pattern.
func (s *PatternStore) UpsertDanger(_ context.Context, p *domain.DangerPattern) error {
	if p == nil || p.PatternID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.danger[p.PatternID] = copyDangerPattern(p)
	return nil
}

// Stats returns pattern library counts.
func (s *PatternStore) Stats(_ context.Context) (*domain.PatternStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := 0
	for _, p := range s.win {
		total += p.Occurrences
	}
	for _, p := range s.danger {
		total += p.Occurrences
	}

	return &domain.PatternStats{
		WinPatterns:      len(s.win),
		DangerPatterns:   len(s.danger),
		TotalOccurrences: total,
	}, nil
}

func copyFingerprint(fp domain.TradeFingerprint) domain.TradeFingerprint {
	fp.SmartWallet.Tiers = append([]string(nil), fp.SmartWallet.Tiers...)
	return fp
}

func copyWinPattern(p *domain.WinPattern) *domain.WinPattern {
	out := *p
	out.Fingerprint = copyFingerprint(p.Fingerprint)
	return &out
}

func copyDangerPattern(p *domain.DangerPattern) *domain.DangerPattern {
	out := *p
	out.Fingerprint = copyFingerprint(p.Fingerprint)
	return &out
}

var _ storage.PatternStore = (*PatternStore)(nil)
