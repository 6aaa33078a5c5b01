package weights

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/furrsati/OMM-BOT-sub002/internal/domain"
	"github.com/furrsati/OMM-BOT-sub002/internal/observability"
	"github.com/furrsati/OMM-BOT-sub002/internal/stats"
	"github.com/furrsati/OMM-BOT-sub002/internal/storage"
)

const (
	// MinSampleTotal is the minimum completed trades for a recalculation.
	MinSampleTotal = 10
	// MinSamplePerSide is the minimum WIN and minimum LOSS/RUG samples.
	MinSamplePerSide = 5
	// MinSpread is the minimum |avgOnWins - avgOnLosses| for a category
	// to count as statistically meaningful.
	MinSpread = 5.0
	// MaxWeightStep caps the per-cycle move toward the ideal weight.
	MaxWeightStep = 5.0
	// MinPersistDelta is the minimum total absolute change worth
	// persisting; smaller totals are treated as noise.
	MinPersistDelta = 2.0
	// TradeWindow bounds the recent-trade sample per recalculation.
	TradeWindow = 100
)

// CategoryAnalysis is the per-category predictive-power result.
type CategoryAnalysis struct {
	Category        domain.Category
	AvgOnWins       float64
	AvgOnLosses     float64
	Spread          float64
	PredictivePower float64
	WinSamples      int
	LossSamples     int
	Skipped         bool
	SkipReason      string
}

// Result is the outcome of one weight recalculation.
type Result struct {
	Weights     domain.CategoryWeights
	Analyses    []CategoryAnalysis
	TotalDelta  float64
	Significant bool
}

// Optimizer recalculates category weights from recent trade outcomes.
type Optimizer struct {
	trades      storage.TradeStore
	snapshots   storage.SnapshotStore
	adjustments storage.AdjustmentStore
	frozen      storage.FrozenStore
	meta        storage.MetaStore
	log         zerolog.Logger
	now         func() time.Time
}

// NewOptimizer creates a weight optimizer over the given stores.
func NewOptimizer(
	trades storage.TradeStore,
	snapshots storage.SnapshotStore,
	adjustments storage.AdjustmentStore,
	frozen storage.FrozenStore,
	meta storage.MetaStore,
	log zerolog.Logger,
) *Optimizer {
	return &Optimizer{
		trades:      trades,
		snapshots:   snapshots,
		adjustments: adjustments,
		frozen:      frozen,
		meta:        meta,
		log:         log.With().Str("component", "weights").Logger(),
		now:         time.Now,
	}
}

// Recalculate computes new weights from the sample. Below the sample
// minimums the current weights are returned unchanged and marked
// insignificant. Pure except for the inputs.
func Recalculate(current domain.CategoryWeights, trades []*domain.Trade, frozen map[string]bool, learningRate float64) Result {
	result := Result{Weights: current}

	wins, losses := splitOutcomes(trades)
	if len(trades) < MinSampleTotal || len(wins) < MinSamplePerSide || len(losses) < MinSamplePerSide {
		return result
	}

	analyses := make([]CategoryAnalysis, 0, len(domain.Categories))
	totalPower := 0.0
	for _, c := range domain.Categories {
		a := analyzeCategory(c, wins, losses)
		if !a.Skipped && frozen[string(c)] {
			a.Skipped = true
			a.SkipReason = "frozen"
		}
		if !a.Skipped {
			totalPower += a.PredictivePower
		}
		analyses = append(analyses, a)
	}
	result.Analyses = analyses

	if totalPower == 0 {
		return result
	}

	if learningRate <= 0 {
		learningRate = 1.0
	}
	step := MaxWeightStep * learningRate

	proposed := current
	for _, a := range analyses {
		if a.Skipped {
			continue
		}
		ideal := a.PredictivePower / totalPower * 100
		moved := stats.CapDelta(current.Get(a.Category), ideal, step)
		proposed.Set(a.Category, stats.Clamp(moved, domain.MinWeight, domain.MaxWeight))
	}

	normalized := normalizeBounded(proposed)

	result.Weights = normalized
	result.TotalDelta = normalized.DriftFrom(current)
	result.Significant = result.TotalDelta >= MinPersistDelta
	return result
}

// splitOutcomes partitions completed trades into wins and failures.
// BREAKEVEN belongs to neither side.
func splitOutcomes(trades []*domain.Trade) (wins, losses []*domain.Trade) {
	for _, t := range trades {
		switch {
		case t.IsWin():
			wins = append(wins, t)
		case t.IsFailure():
			losses = append(losses, t)
		}
	}
	return wins, losses
}

// analyzeCategory computes the win/loss score spread for one category.
func analyzeCategory(c domain.Category, wins, losses []*domain.Trade) CategoryAnalysis {
	score := CategoryScorers[c]

	a := CategoryAnalysis{Category: c}

	var winScores, lossScores []float64
	for _, t := range wins {
		if t.Fingerprint != nil {
			winScores = append(winScores, score(t.Fingerprint))
		}
	}
	for _, t := range losses {
		if t.Fingerprint != nil {
			lossScores = append(lossScores, score(t.Fingerprint))
		}
	}

	a.WinSamples = len(winScores)
	a.LossSamples = len(lossScores)
	if a.WinSamples < MinSamplePerSide || a.LossSamples < MinSamplePerSide {
		a.Skipped = true
		a.SkipReason = "insufficient samples"
		return a
	}

	a.AvgOnWins = stats.Mean(winScores)
	a.AvgOnLosses = stats.Mean(lossScores)
	a.Spread = a.AvgOnWins - a.AvgOnLosses
	if math.Abs(a.Spread) < MinSpread {
		a.Skipped = true
		a.SkipReason = "spread below threshold"
		return a
	}

	a.PredictivePower = math.Abs(a.Spread) / 100
	return a
}

// normalizeBounded rescales weights to sum 100 while keeping every
// category inside [MinWeight, MaxWeight]. Clamped categories pin to
// their bound and the remainder is rescaled across the rest.
func normalizeBounded(w domain.CategoryWeights) domain.CategoryWeights {
	out := w
	for range domain.Categories {
		sum := out.Sum()
		if sum <= 0 {
			return domain.BaselineWeights
		}
		scale := 100.0 / sum
		pinned := false
		next := domain.CategoryWeights{}
		for _, c := range domain.Categories {
			v := out.Get(c) * scale
			clamped := stats.Clamp(v, domain.MinWeight, domain.MaxWeight)
			if clamped != v {
				pinned = true
			}
			next.Set(c, clamped)
		}
		out = next
		if !pinned {
			break
		}
	}
	return out
}

// RunCycle recalculates weights from the recent trade window and, when
// the change is significant, persists a new snapshot plus one audit row
// per moved category. Returns the number of adjustments persisted.
func (o *Optimizer) RunCycle(ctx context.Context, cycleID string) (int, error) {
	trades, err := o.trades.GetRecentCompleted(ctx, TradeWindow)
	if err != nil {
		return 0, fmt.Errorf("load recent trades: %w", err)
	}

	current, err := o.currentWeights(ctx)
	if err != nil {
		return 0, err
	}

	frozen, err := frozenSet(ctx, o.frozen)
	if err != nil {
		return 0, fmt.Errorf("load frozen set: %w", err)
	}

	learningRate, err := currentLearningRate(ctx, o.meta)
	if err != nil {
		return 0, err
	}

	result := Recalculate(current, trades, frozen, learningRate)
	if !result.Significant {
		o.log.Info().
			Int("trades", len(trades)).
			Float64("total_delta", result.TotalDelta).
			Msg("Weight recalculation below persistence threshold")
		return 0, nil
	}

	nowMs := o.now().UnixMilli()
	count, err := o.trades.CountCompleted(ctx)
	if err != nil {
		return 0, fmt.Errorf("count trades: %w", err)
	}

	snapshot := &domain.LearningSnapshot{
		Weights:      result.Weights,
		Parameters:   currentParameters(ctx, o.snapshots),
		TradeCount:   count,
		WinRate:      stats.WinRate(trades),
		ProfitFactor: stats.ProfitFactor(trades),
		Origin:       domain.SnapshotOriginOptimizer,
		CreatedAt:    nowMs,
	}
	stored, err := o.snapshots.Insert(ctx, snapshot)
	if err != nil {
		return 0, fmt.Errorf("insert snapshot: %w", err)
	}
	observability.RecordSnapshot(domain.SnapshotOriginOptimizer, stored.Version)

	adjustments := 0
	for _, c := range domain.Categories {
		oldV := current.Get(c)
		newV := result.Weights.Get(c)
		if math.Abs(newV-oldV) < 0.05 {
			continue
		}
		adj := &domain.Adjustment{
			AdjustmentID:   uuid.NewString(),
			Kind:           domain.AdjustmentKindWeight,
			Name:           string(c),
			OldValue:       oldV,
			NewValue:       newV,
			Recommendation: recommendationFor(oldV, newV),
			Confidence:     confidenceFor(result.Analyses, c),
			Reason:         reasonFor(result.Analyses, c),
			CycleID:        cycleID,
			CreatedAt:      nowMs,
		}
		if err := o.adjustments.Insert(ctx, adj); err != nil {
			return adjustments, fmt.Errorf("insert adjustment: %w", err)
		}
		adjustments++
	}

	o.log.Info().
		Int("adjustments", adjustments).
		Float64("total_delta", result.TotalDelta).
		Float64("learning_rate", learningRate).
		Msg("Weights updated")
	return adjustments, nil
}

// currentWeights reads the latest snapshot's weights, falling back to
// the baseline when no snapshot exists yet.
func (o *Optimizer) currentWeights(ctx context.Context) (domain.CategoryWeights, error) {
	snap, err := o.snapshots.GetCurrent(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		return domain.BaselineWeights, nil
	}
	if err != nil {
		return domain.CategoryWeights{}, fmt.Errorf("load current snapshot: %w", err)
	}
	return snap.Weights, nil
}

// currentParameters carries the latest snapshot's parameter map forward
// so weight snapshots never lose tuner output.
func currentParameters(ctx context.Context, snapshots storage.SnapshotStore) map[string]float64 {
	snap, err := snapshots.GetCurrent(ctx)
	if err != nil {
		out := make(map[string]float64, len(domain.DefaultParameters))
		for k, v := range domain.DefaultParameters {
			out[k] = v
		}
		return out
	}
	return snap.CloneParameters()
}

// frozenSet loads operator locks as a name set.
func frozenSet(ctx context.Context, store storage.FrozenStore) (map[string]bool, error) {
	locks, err := store.List(ctx)
	if err != nil {
		return nil, err
	}
	set := make(map[string]bool, len(locks))
	for _, l := range locks {
		set[l.Name] = true
	}
	return set, nil
}

// currentLearningRate reads the latest learning_rate event, 1.0 when
// none exists.
func currentLearningRate(ctx context.Context, meta storage.MetaStore) (float64, error) {
	event, err := meta.GetLatestEvent(ctx, domain.MetaEventLearningRate)
	if errors.Is(err, storage.ErrNotFound) {
		return 1.0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("load learning rate: %w", err)
	}
	return event.Value, nil
}

func recommendationFor(oldV, newV float64) string {
	switch {
	case newV > oldV:
		return domain.RecommendIncrease
	case newV < oldV:
		return domain.RecommendDecrease
	default:
		return domain.RecommendKeep
	}
}

func confidenceFor(analyses []CategoryAnalysis, c domain.Category) float64 {
	for _, a := range analyses {
		if a.Category == c {
			// Spread of 50 points or more is full confidence.
			return stats.Clamp(math.Abs(a.Spread)/50, 0, 1)
		}
	}
	return 0
}

func reasonFor(analyses []CategoryAnalysis, c domain.Category) string {
	for _, a := range analyses {
		if a.Category == c {
			if a.Skipped {
				return "renormalization"
			}
			return fmt.Sprintf("spread %.1f (wins %.1f vs losses %.1f, n=%d/%d)",
				a.Spread, a.AvgOnWins, a.AvgOnLosses, a.WinSamples, a.LossSamples)
		}
	}
	return ""
}
