package tuning

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/furrsati/OMM-BOT-sub002/internal/domain"
	"github.com/furrsati/OMM-BOT-sub002/internal/observability"
	"github.com/furrsati/OMM-BOT-sub002/internal/stats"
	"github.com/furrsati/OMM-BOT-sub002/internal/storage"
)

const (
	// MinWindow is the global minimum completed trades for any tuning.
	MinWindow = 30
	// PreferredWindow is the rolling window the tuner asks the store for.
	PreferredWindow = 100
	// MinBucketSamples is the minimum trades per winning bucket.
	MinBucketSamples = 3
	// MinPersistConfidence gates which analyses become adjustment rows.
	MinPersistConfidence = 0.3
)

// Analysis is the tuner's verdict on one parameter.
type Analysis struct {
	Parameter      string
	Current        float64
	Optimal        float64
	Proposed       float64
	Recommendation string
	Confidence     float64
	Reason         string
}

// Tuner shifts tunable parameters toward their best-performing buckets.
type Tuner struct {
	trades      storage.TradeStore
	snapshots   storage.SnapshotStore
	adjustments storage.AdjustmentStore
	frozen      storage.FrozenStore
	meta        storage.MetaStore
	log         zerolog.Logger
	now         func() time.Time
}

// NewTuner creates a parameter tuner over the given stores.
func NewTuner(
	trades storage.TradeStore,
	snapshots storage.SnapshotStore,
	adjustments storage.AdjustmentStore,
	frozen storage.FrozenStore,
	meta storage.MetaStore,
	log zerolog.Logger,
) *Tuner {
	return &Tuner{
		trades:      trades,
		snapshots:   snapshots,
		adjustments: adjustments,
		frozen:      frozen,
		meta:        meta,
		log:         log.With().Str("component", "tuning").Logger(),
		now:         time.Now,
	}
}

// AnalyzeWindow runs every parameter analysis over the trade window.
// Pure except for the inputs; steps are scaled by the learning rate.
func AnalyzeWindow(trades []*domain.Trade, params map[string]float64, learningRate float64) []Analysis {
	if learningRate <= 0 {
		learningRate = 1.0
	}
	step := func(param string) float64 {
		return domain.ParameterStep[param] * learningRate
	}

	analyses := []Analysis{
		analyzeStopLoss(trades, params[domain.ParamStopLossPct], step(domain.ParamStopLossPct)),
		analyzeTrailingStop(trades, params[domain.ParamTrailingStopPct], step(domain.ParamTrailingStopPct)),
		analyzeTakeProfit(trades, params[domain.ParamTakeProfitPct], step(domain.ParamTakeProfitPct)),
	}
	analyses = append(analyses, analyzeDipRange(trades,
		params[domain.ParamDipEntryMinPct], params[domain.ParamDipEntryMaxPct],
		step(domain.ParamDipEntryMinPct))...)
	analyses = append(analyses,
		analyzeMaxHold(trades, params[domain.ParamMaxHoldHours], step(domain.ParamMaxHoldHours)))
	for _, tier := range []domain.ConvictionTier{domain.TierHigh, domain.TierMedium, domain.TierLow} {
		param := positionParam[tier]
		analyses = append(analyses, analyzePositionSize(trades, tier, params[param], step(param)))
	}
	return analyses
}

// RunCycle analyzes the recent window and persists accepted parameter
// shifts plus a new snapshot. Returns the number of adjustments made.
func (tu *Tuner) RunCycle(ctx context.Context, cycleID string) (int, error) {
	trades, err := tu.trades.GetRecentCompleted(ctx, PreferredWindow)
	if err != nil {
		return 0, fmt.Errorf("load recent trades: %w", err)
	}
	if len(trades) < MinWindow {
		tu.log.Info().Int("trades", len(trades)).Msg("Tuning window below minimum")
		return 0, nil
	}

	snap, err := tu.snapshots.GetCurrent(ctx)
	var params map[string]float64
	var weights domain.CategoryWeights
	switch {
	case err == nil:
		params = snap.CloneParameters()
		weights = snap.Weights
	case errors.Is(err, storage.ErrNotFound):
		params = make(map[string]float64, len(domain.DefaultParameters))
		for k, v := range domain.DefaultParameters {
			params[k] = v
		}
		weights = domain.BaselineWeights
	default:
		return 0, fmt.Errorf("load current snapshot: %w", err)
	}
	for k, v := range domain.DefaultParameters {
		if _, ok := params[k]; !ok {
			params[k] = v
		}
	}

	frozenLocks, err := tu.frozen.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("load frozen set: %w", err)
	}
	frozen := make(map[string]bool, len(frozenLocks))
	for _, l := range frozenLocks {
		frozen[l.Name] = true
	}

	learningRate := 1.0
	if event, err := tu.meta.GetLatestEvent(ctx, domain.MetaEventLearningRate); err == nil {
		learningRate = event.Value
	} else if !errors.Is(err, storage.ErrNotFound) {
		return 0, fmt.Errorf("load learning rate: %w", err)
	}

	analyses := AnalyzeWindow(trades, params, learningRate)

	nowMs := tu.now().UnixMilli()
	accepted := 0
	for _, a := range analyses {
		if frozen[a.Parameter] {
			tu.log.Info().Str("parameter", a.Parameter).Msg("Parameter frozen, skipping")
			continue
		}
		if a.Recommendation == domain.RecommendKeep || a.Confidence < MinPersistConfidence {
			continue
		}

		adj := &domain.Adjustment{
			AdjustmentID:   uuid.NewString(),
			Kind:           domain.AdjustmentKindParameter,
			Name:           a.Parameter,
			OldValue:       a.Current,
			NewValue:       a.Proposed,
			Recommendation: a.Recommendation,
			Confidence:     a.Confidence,
			Reason:         a.Reason,
			CycleID:        cycleID,
			CreatedAt:      nowMs,
		}
		if err := tu.adjustments.Insert(ctx, adj); err != nil {
			return accepted, fmt.Errorf("insert adjustment: %w", err)
		}
		params[a.Parameter] = a.Proposed
		accepted++
	}

	if accepted == 0 {
		tu.log.Info().Int("trades", len(trades)).Msg("No parameter shifts accepted")
		return 0, nil
	}

	count, err := tu.trades.CountCompleted(ctx)
	if err != nil {
		return accepted, fmt.Errorf("count trades: %w", err)
	}
	snapshot := &domain.LearningSnapshot{
		Weights:      weights,
		Parameters:   params,
		TradeCount:   count,
		WinRate:      stats.WinRate(trades),
		ProfitFactor: stats.ProfitFactor(trades),
		Origin:       domain.SnapshotOriginTuner,
		CreatedAt:    nowMs,
	}
	stored, err := tu.snapshots.Insert(ctx, snapshot)
	if err != nil {
		return accepted, fmt.Errorf("insert snapshot: %w", err)
	}
	observability.RecordSnapshot(domain.SnapshotOriginTuner, stored.Version)

	tu.log.Info().
		Int("adjustments", accepted).
		Float64("learning_rate", learningRate).
		Msg("Parameters tuned")
	return accepted, nil
}

// analyzeDipRange finds the best-performing dip-depth bucket (5-point
// bins) and walks the entry range toward it.
func analyzeDipRange(trades []*domain.Trade, currentMin, currentMax, step float64) []Analysis {
	feature := func(t *domain.Trade) (float64, bool) {
		if t.Fingerprint == nil || t.Fingerprint.EntryQuality.DipDepthPct <= 0 {
			return 0, false
		}
		return t.Fingerprint.EntryQuality.DipDepthPct, true
	}

	buckets := BucketBy(trades, feature, 5)
	best, ok := BestBucket(buckets, MinBucketSamples, false)

	minA := Analysis{
		Parameter:      domain.ParamDipEntryMinPct,
		Current:        currentMin,
		Proposed:       currentMin,
		Recommendation: domain.RecommendKeep,
		Reason:         "no qualifying dip bucket",
	}
	maxA := Analysis{
		Parameter:      domain.ParamDipEntryMaxPct,
		Current:        currentMax,
		Proposed:       currentMax,
		Recommendation: domain.RecommendKeep,
		Reason:         "no qualifying dip bucket",
	}
	if !ok {
		return []Analysis{minA, maxA}
	}

	bounds := domain.ParameterBounds[domain.ParamDipEntryMinPct]
	confidence := stats.Clamp(float64(len(best.Trades))/10, 0, 1)
	reason := fmt.Sprintf("best dip bucket [%.0f, %.0f) win rate %.2f avg %.1f%% (n=%d)",
		best.Lo, best.Hi, best.WinRate, best.AvgReturn, len(best.Trades))

	minA.Optimal = best.Lo
	minA.Proposed = stats.Clamp(stats.CapDelta(currentMin, best.Lo, step), bounds.Lo, bounds.Hi)
	minA.Recommendation = recommendationFor(currentMin, minA.Proposed)
	minA.Confidence = confidence
	minA.Reason = reason

	maxA.Optimal = best.Hi
	maxA.Proposed = stats.Clamp(stats.CapDelta(currentMax, best.Hi, step), bounds.Lo, bounds.Hi)
	maxA.Recommendation = recommendationFor(currentMax, maxA.Proposed)
	maxA.Confidence = confidence
	maxA.Reason = reason

	return []Analysis{minA, maxA}
}

// analyzeTakeProfit targets the midpoint of the best realized-return
// bucket among winners, log-weighted so thin top buckets cannot win on
// one outlier.
func analyzeTakeProfit(trades []*domain.Trade, current, step float64) Analysis {
	a := Analysis{
		Parameter:      domain.ParamTakeProfitPct,
		Current:        current,
		Proposed:       current,
		Recommendation: domain.RecommendKeep,
	}

	var wins []*domain.Trade
	for _, t := range trades {
		if t.IsWin() {
			wins = append(wins, t)
		}
	}
	if len(wins) < MinStopSamples {
		a.Reason = fmt.Sprintf("only %d wins", len(wins))
		return a
	}

	feature := func(t *domain.Trade) (float64, bool) {
		return t.PnLPct, true
	}
	buckets := BucketBy(wins, feature, 20)
	best, ok := BestBucket(buckets, MinBucketSamples, true)
	if !ok {
		a.Reason = "no winner bucket with enough samples"
		return a
	}

	bounds := domain.ParameterBounds[domain.ParamTakeProfitPct]
	optimal := (best.Lo + best.Hi) / 2

	a.Optimal = optimal
	a.Proposed = stats.Clamp(stats.CapDelta(current, optimal, step), bounds.Lo, bounds.Hi)
	a.Recommendation = recommendationFor(current, a.Proposed)
	a.Confidence = stats.Clamp(float64(len(best.Trades))/10, 0, 1)
	a.Reason = fmt.Sprintf("winners cluster at [%.0f, %.0f)%% (n=%d)", best.Lo, best.Hi, len(best.Trades))
	return a
}

// analyzeMaxHold walks the time stop toward the upper edge of the
// best-performing holding-duration bucket (2-hour bins).
func analyzeMaxHold(trades []*domain.Trade, current, step float64) Analysis {
	a := Analysis{
		Parameter:      domain.ParamMaxHoldHours,
		Current:        current,
		Proposed:       current,
		Recommendation: domain.RecommendKeep,
	}

	feature := func(t *domain.Trade) (float64, bool) {
		h := t.HoldDurationHours()
		if h <= 0 {
			return 0, false
		}
		return h, true
	}
	buckets := BucketBy(trades, feature, 2)
	best, ok := BestBucket(buckets, MinBucketSamples, false)
	if !ok {
		a.Reason = "no holding-duration bucket with enough samples"
		return a
	}

	bounds := domain.ParameterBounds[domain.ParamMaxHoldHours]

	a.Optimal = best.Hi
	a.Proposed = stats.Clamp(stats.CapDelta(current, best.Hi, step), bounds.Lo, bounds.Hi)
	a.Recommendation = recommendationFor(current, a.Proposed)
	a.Confidence = stats.Clamp(float64(len(best.Trades))/10, 0, 1)
	a.Reason = fmt.Sprintf("best hold bucket [%.0f, %.0f)h win rate %.2f (n=%d)",
		best.Lo, best.Hi, best.WinRate, len(best.Trades))
	return a
}

func recommendationFor(current, proposed float64) string {
	switch {
	case proposed > current:
		return domain.RecommendIncrease
	case proposed < current:
		return domain.RecommendDecrease
	default:
		return domain.RecommendKeep
	}
}
