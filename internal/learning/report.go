package learning

import (
	"context"
	"errors"
	"fmt"

	"github.com/furrsati/OMM-BOT-sub002/internal/domain"
	"github.com/furrsati/OMM-BOT-sub002/internal/observability"
	"github.com/furrsati/OMM-BOT-sub002/internal/stats"
	"github.com/furrsati/OMM-BOT-sub002/internal/storage"
	"github.com/furrsati/OMM-BOT-sub002/internal/tuning"
)

// reportCycle aggregates the learning system's state: pattern library
// sizes, current weights and drift, snapshot count and window
// performance. The aggregate is appended to the analytics store and the
// bucket insights without a tunable parameter behind them are logged.
func (s *Scheduler) reportCycle(ctx context.Context, _ string) (int, error) {
	count, err := s.trades.CountCompleted(ctx)
	if err != nil {
		return 0, fmt.Errorf("count trades: %w", err)
	}
	window, err := s.trades.GetRecentCompleted(ctx, tuning.PreferredWindow)
	if err != nil {
		return 0, fmt.Errorf("load trade window: %w", err)
	}

	patternStats, err := s.matcher.Stats(ctx)
	if err != nil {
		return 0, fmt.Errorf("load pattern stats: %w", err)
	}

	weights := domain.BaselineWeights
	snap, err := s.snapshots.GetCurrent(ctx)
	switch {
	case err == nil:
		weights = snap.Weights
	case errors.Is(err, storage.ErrNotFound):
	default:
		return 0, fmt.Errorf("load current snapshot: %w", err)
	}
	snapshotCount, err := s.snapshots.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count snapshots: %w", err)
	}

	health, err := s.learner.HealthStatus(ctx)
	if err != nil {
		return 0, fmt.Errorf("load health: %w", err)
	}

	point := &storage.LearningMetricPoint{
		TimestampMs:    s.now().UnixMilli(),
		TradeCount:     count,
		WinRate:        stats.WinRate(window),
		ProfitFactor:   stats.ProfitFactor(window),
		AvgReturnPct:   stats.AvgReturnPct(window),
		WeightDrift:    weights.DriftFrom(domain.BaselineWeights),
		WinPatterns:    patternStats.WinPatterns,
		DangerPatterns: patternStats.DangerPatterns,
		SnapshotCount:  snapshotCount,
		LearningRate:   health.LearningRate,
	}
	if err := s.metrics.Insert(ctx, point); err != nil {
		return 0, fmt.Errorf("append metric point: %w", err)
	}

	observability.UpdatePatternLibraries(patternStats.WinPatterns, patternStats.DangerPatterns)
	observability.UpdateLearningState(health.LearningRate, point.WeightDrift, count)

	event := s.log.Info().
		Int("trades", count).
		Float64("win_rate", point.WinRate).
		Float64("profit_factor", point.ProfitFactor).
		Float64("weight_drift", point.WeightDrift).
		Int("win_patterns", point.WinPatterns).
		Int("danger_patterns", point.DangerPatterns).
		Int("snapshots", snapshotCount).
		Str("health", health.Level)
	if insight, ok := tuning.BestWalletThreshold(window); ok {
		event = event.Float64("best_wallet_threshold", insight.Lo)
	}
	if insight, ok := tuning.BestTokenAgeBand(window); ok {
		event = event.Float64("best_token_age_min", insight.Lo)
	}
	if insight, ok := tuning.BestEntryHour(window); ok {
		event = event.Float64("best_entry_hour", insight.Lo)
	}
	event.Msg("Learning report")

	return 0, nil
}
