// Package patterns implements trade fingerprinting, similarity-weighted
// neighbor lookup and the win/danger pattern libraries.
package patterns

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/furrsati/OMM-BOT-sub002/internal/domain"
	"github.com/furrsati/OMM-BOT-sub002/internal/idhash"
	"github.com/furrsati/OMM-BOT-sub002/internal/stats"
	"github.com/furrsati/OMM-BOT-sub002/internal/storage"
)

const (
	// RecentWindow bounds the completed-trade history scanned per lookup.
	RecentWindow = 30
	// DefaultNeighborLimit is used when the caller passes limit <= 0.
	DefaultNeighborLimit = 20
)

// Matcher builds fingerprints, retrieves similar past trades and keeps
// the pattern libraries current.
type Matcher struct {
	trades   storage.TradeStore
	patterns storage.PatternStore
	log      zerolog.Logger
	now      func() time.Time
}

// NewMatcher creates a pattern matcher over the given stores.
func NewMatcher(trades storage.TradeStore, patterns storage.PatternStore, log zerolog.Logger) *Matcher {
	return &Matcher{
		trades:   trades,
		patterns: patterns,
		log:      log.With().Str("component", "patterns").Logger(),
		now:      time.Now,
	}
}

// CreateFingerprint returns the trade's fingerprint. Fingerprints are
// write-once: an existing one is returned unchanged; otherwise a minimal
// one is synthesized from what the trade record itself carries.
func (m *Matcher) CreateFingerprint(t *domain.Trade) *domain.TradeFingerprint {
	if t.Fingerprint != nil {
		return t.Fingerprint
	}

	entry := time.UnixMilli(t.EntryTime).UTC()
	return &domain.TradeFingerprint{
		Market: domain.MarketConditionSignal{
			ReferencePrice: t.EntryPrice,
			HourOfDay:      entry.Hour(),
			DayOfWeek:      int(entry.Weekday()),
		},
	}
}

// scored pairs a candidate trade with its combined lookup score.
type scored struct {
	trade *domain.Trade
	score float64
}

// FindSimilarTrades returns up to limit completed trades ranked by
// cosine similarity to fp, decayed by recency with a 30-day half-life.
// Empty history returns an empty slice, never an error.
func (m *Matcher) FindSimilarTrades(ctx context.Context, fp *domain.TradeFingerprint, limit int) ([]*domain.Trade, error) {
	if limit <= 0 {
		limit = DefaultNeighborLimit
	}

	recent, err := m.trades.GetRecentCompleted(ctx, RecentWindow)
	if err != nil {
		return nil, err
	}

	target := stats.Vectorize(fp)
	nowMs := m.now().UnixMilli()

	candidates := make([]scored, 0, len(recent))
	for _, t := range recent {
		if t.Fingerprint == nil {
			continue
		}
		similarity := stats.Cosine(target, stats.Vectorize(t.Fingerprint))
		daysAgo := float64(nowMs-t.ExitTime) / 86_400_000.0
		candidates = append(candidates, scored{
			trade: t,
			score: similarity * stats.RecencyWeight(daysAgo),
		})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].trade.TradeID < candidates[j].trade.TradeID
	})

	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	result := make([]*domain.Trade, len(candidates))
	for i, c := range candidates {
		result[i] = c.trade
	}
	return result, nil
}

// MatchAdjustment converts neighbor outcomes into a conviction-score
// adjustment in [-15, +5]. Zero neighbors yield 0.
func (m *Matcher) MatchAdjustment(neighbors []*domain.Trade) int {
	if len(neighbors) == 0 {
		return 0
	}

	winRate := stats.WinRate(neighbors)

	var adjustment int
	switch {
	case winRate >= 0.7:
		adjustment = 5
	case winRate >= 0.5:
		adjustment = 0
	case winRate >= 0.3:
		adjustment = -5
	default:
		adjustment = -10
	}

	for _, t := range neighbors {
		if t.Outcome == domain.OutcomeRug {
			adjustment -= 5
			break
		}
	}

	if adjustment < -15 {
		adjustment = -15
	}
	return adjustment
}

// UpdateLibraries records a completed trade in the pattern libraries:
// strong wins feed the win library, rugs and deep losses the danger
// library. Library entries are matched by structural containment key,
// not by the fine-grained cosine metric used for lookup.
func (m *Matcher) UpdateLibraries(ctx context.Context, t *domain.Trade, fp *domain.TradeFingerprint) error {
	if fp == nil || !t.Completed() {
		return nil
	}

	switch {
	case t.IsWin() && t.PnLPct > domain.WinPatternMinReturnPct:
		return m.recordWin(ctx, t, fp)
	case t.Outcome == domain.OutcomeRug,
		t.Outcome == domain.OutcomeLoss && t.PnLPct < domain.DangerPatternMaxReturnPct:
		return m.recordDanger(ctx, t, fp)
	}
	return nil
}

func (m *Matcher) recordWin(ctx context.Context, t *domain.Trade, fp *domain.TradeFingerprint) error {
	patternID := idhash.ComputePatternID(fp)

	existing, err := m.patterns.GetWin(ctx, patternID)
	switch {
	case err == nil:
		n := float64(existing.Occurrences)
		existing.AvgReturnPct = (existing.AvgReturnPct*n + t.PnLPct) / (n + 1)
		existing.Occurrences++
		existing.LastSeen = t.ExitTime
		if err := m.patterns.UpsertWin(ctx, existing); err != nil {
			return err
		}
	case errors.Is(err, storage.ErrNotFound):
		entry := &domain.WinPattern{
			PatternID:    patternID,
			Fingerprint:  *fp,
			Occurrences:  1,
			AvgReturnPct: t.PnLPct,
			FirstSeen:    t.ExitTime,
			LastSeen:     t.ExitTime,
		}
		if err := m.patterns.UpsertWin(ctx, entry); err != nil {
			return err
		}
	default:
		return err
	}

	m.log.Debug().
		Str("pattern", idhash.ShortPatternID(patternID)).
		Float64("return_pct", t.PnLPct).
		Msg("Win pattern recorded")
	return nil
}

func (m *Matcher) recordDanger(ctx context.Context, t *domain.Trade, fp *domain.TradeFingerprint) error {
	patternID := idhash.ComputePatternID(fp)

	existing, err := m.patterns.GetDanger(ctx, patternID)
	switch {
	case err == nil:
		existing.Occurrences++
		existing.Confidence = stats.Clamp(
			existing.Confidence+domain.DangerConfidenceStep, 0, domain.DangerConfidenceCap)
		existing.LastSeen = t.ExitTime
		if err := m.patterns.UpsertDanger(ctx, existing); err != nil {
			return err
		}
	case errors.Is(err, storage.ErrNotFound):
		entry := &domain.DangerPattern{
			PatternID:   patternID,
			Fingerprint: *fp,
			Occurrences: 1,
			Confidence:  domain.DangerConfidenceStep,
			FirstSeen:   t.ExitTime,
			LastSeen:    t.ExitTime,
		}
		if err := m.patterns.UpsertDanger(ctx, entry); err != nil {
			return err
		}
	default:
		return err
	}

	m.log.Debug().
		Str("pattern", idhash.ShortPatternID(patternID)).
		Str("outcome", string(t.Outcome)).
		Msg("Danger pattern recorded")
	return nil
}

// Stats reports pattern library sizes for status consumers.
func (m *Matcher) Stats(ctx context.Context) (*domain.PatternStats, error) {
	return m.patterns.Stats(ctx)
}
