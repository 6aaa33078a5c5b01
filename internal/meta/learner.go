// Package meta implements the meta-learner: impact evaluation of past
// adjustments, learning-rate governance, snapshot reversion and
// aggregate health reporting.
package meta

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
	// CooldownHours must pass after an adjustment before evaluation.
	CooldownHours = 24
	// MinSideTrades is required strictly before AND strictly after the
	// adjustment for the comparison to mean anything.
	MinSideTrades = 20
	// ImproveThreshold classifies an impact score as improved.
	ImproveThreshold = 0.02
	// DegradeThreshold classifies an impact score as degraded.
	DegradeThreshold = -0.05
	// ConsecutiveFailureLimit halves the learning rate when reached.
	ConsecutiveFailureLimit = 3
	// LearningRateFloor bounds throttling from below.
	LearningRateFloor = 0.25
	// LearningRateCeiling bounds restoration from above.
	LearningRateCeiling = 1.0
	// RestoreImprovementRate is the recent improvement share that earns
	// a learning-rate restoration step.
	RestoreImprovementRate = 0.7
	// RestoreFactor is the multiplicative restoration step.
	RestoreFactor = 1.2
	// RecentEvalWindow bounds the evaluations used for rates.
	RecentEvalWindow = 10
	// CriticalRevertMinWinRate qualifies a snapshot as an auto-revert
	// target.
	CriticalRevertMinWinRate = 0.35
	// WarningDrift is the weight drift that downgrades health to warning.
	WarningDrift = 40.0
)

// Learner evaluates adjustments and governs the learning rate.
type Learner struct {
	trades      storage.TradeStore
	snapshots   storage.SnapshotStore
	adjustments storage.AdjustmentStore
	meta        storage.MetaStore
	log         zerolog.Logger
	now         func() time.Time
}

// NewLearner creates a meta-learner over the given stores.
func NewLearner(
	trades storage.TradeStore,
	snapshots storage.SnapshotStore,
	adjustments storage.AdjustmentStore,
	meta storage.MetaStore,
	log zerolog.Logger,
) *Learner {
	return &Learner{
		trades:      trades,
		snapshots:   snapshots,
		adjustments: adjustments,
		meta:        meta,
		log:         log.With().Str("component", "meta").Logger(),
		now:         time.Now,
	}
}

// ImpactScore weighs the before/after deltas: win rate dominates,
// profit factor and average return are rescaled onto comparable ranges
// (profit factor is capped at 10, returns measured in percent).
func ImpactScore(wrBefore, wrAfter, pfBefore, pfAfter, avgBefore, avgAfter float64) float64 {
	return 0.4*(wrAfter-wrBefore) +
		0.3*((pfAfter-pfBefore)/10) +
		0.3*((avgAfter-avgBefore)/100)
}

// Classify maps an impact score to its classification.
func Classify(score float64) string {
	switch {
	case score >= ImproveThreshold:
		return domain.ImpactImproved
	case score <= DegradeThreshold:
		return domain.ImpactDegraded
	default:
		return domain.ImpactNeutral
	}
}

// EvaluateAdjustmentImpacts evaluates every adjustment past the 24h
// cooldown that has not been evaluated yet, requiring at least 20
// completed trades strictly on each side. Returns the number of new
// evaluations. Learning-rate governance runs when anything was
// evaluated.
func (l *Learner) EvaluateAdjustmentImpacts(ctx context.Context) (int, error) {
	cutoff := l.now().Add(-CooldownHours * time.Hour).UnixMilli()

	candidates, err := l.adjustments.GetCreatedBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("load adjustments: %w", err)
	}

	evaluated := 0
	for _, adj := range candidates {
		done, err := l.meta.HasEvaluation(ctx, adj.AdjustmentID)
		if err != nil {
			return evaluated, fmt.Errorf("check evaluation: %w", err)
		}
		if done {
			continue
		}

		before, err := l.trades.GetCompletedBefore(ctx, adj.CreatedAt, MinSideTrades)
		if err != nil {
			return evaluated, fmt.Errorf("load before window: %w", err)
		}
		after, err := l.trades.GetCompletedAfter(ctx, adj.CreatedAt, MinSideTrades)
		if err != nil {
			return evaluated, fmt.Errorf("load after window: %w", err)
		}
		if len(before) < MinSideTrades || len(after) < MinSideTrades {
			l.log.Debug().
				Str("adjustment", adj.AdjustmentID).
				Int("before", len(before)).
				Int("after", len(after)).
				Msg("Not enough trades around adjustment yet")
			continue
		}

		eval := &domain.ImpactEvaluation{
			EvalID:          uuid.NewString(),
			AdjustmentID:    adj.AdjustmentID,
			WinRateBefore:   stats.WinRate(before),
			WinRateAfter:    stats.WinRate(after),
			PFBefore:        stats.ProfitFactor(before),
			PFAfter:         stats.ProfitFactor(after),
			AvgReturnBefore: stats.AvgReturnPct(before),
			AvgReturnAfter:  stats.AvgReturnPct(after),
			TradesBefore:    len(before),
			TradesAfter:     len(after),
			EvaluatedAt:     l.now().UnixMilli(),
		}
		eval.ImpactScore = ImpactScore(
			eval.WinRateBefore, eval.WinRateAfter,
			eval.PFBefore, eval.PFAfter,
			eval.AvgReturnBefore, eval.AvgReturnAfter)
		eval.Classification = Classify(eval.ImpactScore)

		if err := l.meta.InsertEvaluation(ctx, eval); err != nil {
			return evaluated, fmt.Errorf("insert evaluation: %w", err)
		}
		observability.RecordEvaluation(eval.Classification)
		evaluated++

		l.log.Info().
			Str("adjustment", adj.AdjustmentID).
			Str("name", adj.Name).
			Float64("impact", eval.ImpactScore).
			Str("classification", eval.Classification).
			Msg("Adjustment evaluated")
	}

	if evaluated > 0 {
		if err := l.governLearningRate(ctx); err != nil {
			return evaluated, err
		}
	}
	return evaluated, nil
}

// governLearningRate throttles the multiplier after consecutive
// degraded evaluations and restores it when recent results improve.
func (l *Learner) governLearningRate(ctx context.Context) error {
	evals, err := l.meta.GetEvaluations(ctx, RecentEvalWindow)
	if err != nil {
		return fmt.Errorf("load evaluations: %w", err)
	}

	rate, err := l.currentLearningRate(ctx)
	if err != nil {
		return err
	}

	failures := consecutiveDegraded(evals)
	improvement := improvementRate(evals)

	switch {
	case failures >= ConsecutiveFailureLimit && rate > LearningRateFloor:
		newRate := rate / 2
		if newRate < LearningRateFloor {
			newRate = LearningRateFloor
		}
		detail := fmt.Sprintf("%d consecutive degraded adjustments", failures)
		if err := l.recordLearningRate(ctx, newRate, detail); err != nil {
			return err
		}
		l.log.Warn().Float64("learning_rate", newRate).Msg("Learning rate halved")

	case improvement > RestoreImprovementRate && rate < LearningRateCeiling:
		newRate := rate * RestoreFactor
		if newRate > LearningRateCeiling {
			newRate = LearningRateCeiling
		}
		detail := fmt.Sprintf("improvement rate %.0f%%", improvement*100)
		if err := l.recordLearningRate(ctx, newRate, detail); err != nil {
			return err
		}
		l.log.Info().Float64("learning_rate", newRate).Msg("Learning rate restored")
	}
	return nil
}

func (l *Learner) recordLearningRate(ctx context.Context, rate float64, detail string) error {
	event := &domain.MetaEvent{
		EventID:   uuid.NewString(),
		Type:      domain.MetaEventLearningRate,
		Value:     rate,
		Detail:    detail,
		CreatedAt: l.now().UnixMilli(),
	}
	if err := l.meta.InsertEvent(ctx, event); err != nil {
		return fmt.Errorf("insert learning-rate event: %w", err)
	}
	return nil
}

func (l *Learner) currentLearningRate(ctx context.Context) (float64, error) {
	event, err := l.meta.GetLatestEvent(ctx, domain.MetaEventLearningRate)
	if errors.Is(err, storage.ErrNotFound) {
		return 1.0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("load learning rate: %w", err)
	}
	return event.Value, nil
}

// consecutiveDegraded counts leading degraded classifications in a
// newest-first evaluation list.
func consecutiveDegraded(evals []*domain.ImpactEvaluation) int {
	n := 0
	for _, e := range evals {
		if e.Classification != domain.ImpactDegraded {
			break
		}
		n++
	}
	return n
}

// improvementRate is the share of improved evaluations, 0 when empty.
func improvementRate(evals []*domain.ImpactEvaluation) float64 {
	if len(evals) == 0 {
		return 0
	}
	improved := 0
	for _, e := range evals {
		if e.Classification == domain.ImpactImproved {
			improved++
		}
	}
	return float64(improved) / float64(len(evals))
}

// RevertToSnapshot copies a historical snapshot's weights and
// parameters forward as a new snapshot and logs the reversion. History
// is never rewritten.
func (l *Learner) RevertToSnapshot(ctx context.Context, version int64) (*domain.LearningSnapshot, error) {
	target, err := l.snapshots.GetByVersion(ctx, version)
	if err != nil {
		return nil, fmt.Errorf("load snapshot %d: %w", version, err)
	}

	count, err := l.trades.CountCompleted(ctx)
	if err != nil {
		return nil, fmt.Errorf("count trades: %w", err)
	}
	recent, err := l.trades.GetRecentCompleted(ctx, 100)
	if err != nil {
		return nil, fmt.Errorf("load recent trades: %w", err)
	}

	nowMs := l.now().UnixMilli()
	reverted := &domain.LearningSnapshot{
		Weights:      target.Weights,
		Parameters:   target.CloneParameters(),
		TradeCount:   count,
		WinRate:      stats.WinRate(recent),
		ProfitFactor: stats.ProfitFactor(recent),
		Origin:       domain.SnapshotOriginRevert,
		RevertOf:     version,
		CreatedAt:    nowMs,
	}
	stored, err := l.snapshots.Insert(ctx, reverted)
	if err != nil {
		return nil, fmt.Errorf("insert reverted snapshot: %w", err)
	}

	event := &domain.MetaEvent{
		EventID:   uuid.NewString(),
		Type:      domain.MetaEventReversion,
		Value:     float64(version),
		Detail:    fmt.Sprintf("reverted to version %d as version %d", version, stored.Version),
		CreatedAt: nowMs,
	}
	if err := l.meta.InsertEvent(ctx, event); err != nil {
		return stored, fmt.Errorf("insert reversion event: %w", err)
	}
	observability.RecordReversion()
	observability.RecordSnapshot(domain.SnapshotOriginRevert, stored.Version)

	l.log.Warn().
		Int64("target_version", version).
		Int64("new_version", stored.Version).
		Msg("Reverted to snapshot")
	return stored, nil
}

// HealthStatus aggregates failure streak, improvement rate, weight
// drift and learning rate into one level. Read-only; auto-reversion on
// critical runs through CheckHealth.
func (l *Learner) HealthStatus(ctx context.Context) (*domain.HealthStatus, error) {
	evals, err := l.meta.GetEvaluations(ctx, RecentEvalWindow)
	if err != nil {
		return nil, fmt.Errorf("load evaluations: %w", err)
	}

	rate, err := l.currentLearningRate(ctx)
	if err != nil {
		return nil, err
	}

	drift := 0.0
	snap, err := l.snapshots.GetCurrent(ctx)
	switch {
	case err == nil:
		drift = snap.Weights.DriftFrom(domain.BaselineWeights)
	case errors.Is(err, storage.ErrNotFound):
	default:
		return nil, fmt.Errorf("load current snapshot: %w", err)
	}

	status := &domain.HealthStatus{
		ConsecutiveFailures: consecutiveDegraded(evals),
		ImprovementRate:     improvementRate(evals),
		WeightDrift:         drift,
		LearningRate:        rate,
	}

	switch {
	case status.ConsecutiveFailures >= ConsecutiveFailureLimit:
		status.Level = domain.HealthCritical
		status.Recommendation = "adjustments keep degrading performance; reverting to a known-good snapshot"
	case status.ConsecutiveFailures > 0 || drift >= WarningDrift:
		status.Level = domain.HealthWarning
		status.Recommendation = "recent adjustments underperforming; watch the next evaluation cycle"
	default:
		status.Level = domain.HealthGood
		status.Recommendation = "learning system operating normally"
	}
	return status, nil
}

// CheckHealth reports health and, when critical, auto-reverts to the
// most recent snapshot whose recorded win rate beats the floor.
func (l *Learner) CheckHealth(ctx context.Context) (*domain.HealthStatus, error) {
	status, err := l.HealthStatus(ctx)
	if err != nil {
		return nil, err
	}
	if status.Level != domain.HealthCritical {
		return status, nil
	}

	target, err := l.findRevertTarget(ctx)
	if err != nil {
		return status, err
	}
	if target == nil {
		l.log.Warn().Msg("Health critical but no qualifying snapshot to revert to")
		return status, nil
	}

	if _, err := l.RevertToSnapshot(ctx, target.Version); err != nil {
		return status, err
	}
	return status, nil
}

// findRevertTarget scans snapshots newest-first for one with a recorded
// win rate above the floor, skipping the current version.
func (l *Learner) findRevertTarget(ctx context.Context) (*domain.LearningSnapshot, error) {
	snaps, err := l.snapshots.GetRecent(ctx, 50)
	if err != nil {
		return nil, fmt.Errorf("load snapshots: %w", err)
	}
	for i, s := range snaps {
		if i == 0 {
			continue // current
		}
		if s.WinRate > CriticalRevertMinWinRate {
			return s, nil
		}
	}
	return nil, nil
}
