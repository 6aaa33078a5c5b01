// Package learning implements the scheduler that coordinates the
// learning cycles: pattern matching on every completed trade, weight
// and parameter optimization, meta review and reporting at trade-count
// milestones.
package learning

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/furrsati/OMM-BOT-sub002/internal/domain"
	"github.com/furrsati/OMM-BOT-sub002/internal/meta"
	"github.com/furrsati/OMM-BOT-sub002/internal/observability"
	"github.com/furrsati/OMM-BOT-sub002/internal/patterns"
	"github.com/furrsati/OMM-BOT-sub002/internal/storage"
	"github.com/furrsati/OMM-BOT-sub002/internal/tuning"
	"github.com/furrsati/OMM-BOT-sub002/internal/weights"
)

const (
	// MinTradesForLearning is the global minimum-data guard: no cycle
	// runs below this completed-trade count.
	MinTradesForLearning = 30
	// WeightInterval triggers weight optimization then parameter tuning.
	WeightInterval = 50
	// MetaInterval triggers the meta review.
	MetaInterval = 100
	// ReportInterval triggers the full report.
	ReportInterval = 200
	// TimerSchedule re-checks milestones in case completion events were
	// missed.
	TimerSchedule = "@every 5m"
)

// Scheduler reacts to completed trades and fires learning cycles at
// milestones. Cycle execution is serialized: timer ticks and trade
// events never run cycles concurrently.
type Scheduler struct {
	trades    storage.TradeStore
	cycles    storage.CycleStore
	snapshots storage.SnapshotStore
	metrics   storage.LearningMetricStore
	matcher   *patterns.Matcher
	optimizer *weights.Optimizer
	tuner     *tuning.Tuner
	learner   *meta.Learner
	log       zerolog.Logger
	now       func() time.Time

	mu   sync.Mutex
	ran  map[string]struct{}
	cron *cron.Cron
}

// NewScheduler wires the learning components together.
func NewScheduler(
	trades storage.TradeStore,
	cycles storage.CycleStore,
	snapshots storage.SnapshotStore,
	metrics storage.LearningMetricStore,
	matcher *patterns.Matcher,
	optimizer *weights.Optimizer,
	tuner *tuning.Tuner,
	learner *meta.Learner,
	log zerolog.Logger,
) *Scheduler {
	return &Scheduler{
		trades:    trades,
		cycles:    cycles,
		snapshots: snapshots,
		metrics:   metrics,
		matcher:   matcher,
		optimizer: optimizer,
		tuner:     tuner,
		learner:   learner,
		log:       log.With().Str("component", "scheduler").Logger(),
		now:       time.Now,
		ran:       make(map[string]struct{}),
	}
}

// OnTradeCompleted stores the finalized trade, runs pattern matching
// immediately and then re-checks milestones. Storage duplicates (feed
// replays) are tolerated.
func (s *Scheduler) OnTradeCompleted(ctx context.Context, t *domain.Trade) error {
	if t == nil || !t.Completed() {
		return storage.ErrInvalidInput
	}

	if err := s.trades.Insert(ctx, t); err != nil {
		if !errors.Is(err, storage.ErrDuplicateKey) {
			return fmt.Errorf("store trade: %w", err)
		}
		s.log.Debug().Str("trade", t.TradeID).Msg("Trade already stored, skipping replay")
		return nil
	}

	count, err := s.trades.CountCompleted(ctx)
	if err != nil {
		return fmt.Errorf("count trades: %w", err)
	}

	s.runPatternCycle(ctx, t, count)
	s.CheckAndRunCycles(ctx)
	return nil
}

// runPatternCycle fingerprints the trade and updates the pattern
// libraries. Pattern cycles run per trade, not per milestone, and a
// failure here never blocks the milestone check.
func (s *Scheduler) runPatternCycle(ctx context.Context, t *domain.Trade, count int) {
	cycleID := uuid.NewString()
	cycle := &domain.LearningCycle{
		CycleID:      cycleID,
		Type:         domain.CyclePattern,
		TriggerCount: count,
		Status:       domain.CycleRunning,
		StartedAt:    s.now().UnixMilli(),
	}
	if err := s.cycles.Insert(ctx, cycle); err != nil {
		s.log.Error().Err(err).Msg("Pattern cycle row insert failed")
		return
	}

	fp := s.matcher.CreateFingerprint(t)
	err := s.matcher.UpdateLibraries(ctx, t, fp)
	finishedAt := s.now().UnixMilli()
	duration := float64(finishedAt-cycle.StartedAt) / 1000
	if err != nil {
		s.log.Error().Err(err).Str("trade", t.TradeID).Msg("Pattern cycle failed")
		observability.RecordCycle(string(domain.CyclePattern), string(domain.CycleFailed), duration, 0)
		if closeErr := s.cycles.Close(ctx, cycleID, domain.CycleFailed, 0, err.Error(), finishedAt); closeErr != nil {
			s.log.Error().Err(closeErr).Msg("Pattern cycle close failed")
		}
		return
	}
	observability.RecordCycle(string(domain.CyclePattern), string(domain.CycleCompleted), duration, 1)
	if err := s.cycles.Close(ctx, cycleID, domain.CycleCompleted, 1, "", finishedAt); err != nil {
		s.log.Error().Err(err).Msg("Pattern cycle close failed")
	}
}

// CheckAndRunCycles fires every milestone cycle due at the current
// completed-trade count. Serialized by a mutex; safe to call from the
// timer and the trade path concurrently. Errors stay inside the cycle
// rows so the caller's loop keeps running.
func (s *Scheduler) CheckAndRunCycles(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count, err := s.trades.CountCompleted(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("Milestone check failed to count trades")
		return
	}
	if count < MinTradesForLearning {
		return
	}

	if count%WeightInterval == 0 {
		s.runMilestoneCycle(ctx, domain.CycleWeight, count, s.weightCycle)
		s.runMilestoneCycle(ctx, domain.CycleParameter, count, s.parameterCycle)
	}
	if count%MetaInterval == 0 {
		s.runMilestoneCycle(ctx, domain.CycleMeta, count, s.metaCycle)
	}
	if count%ReportInterval == 0 {
		s.runMilestoneCycle(ctx, domain.CycleReport, count, s.reportCycle)
	}
}

// runMilestoneCycle executes one cycle at most once per type:count
// milestone. Failed cycles keep their milestone claimed and are never
// auto-retried.
func (s *Scheduler) runMilestoneCycle(ctx context.Context, typ domain.CycleType, count int, fn func(context.Context, string) (int, error)) {
	key := fmt.Sprintf("%s:%d", typ, count)
	if _, ok := s.ran[key]; ok {
		return
	}
	ran, err := s.cycles.HasRun(ctx, typ, count)
	if err != nil {
		s.log.Error().Err(err).Str("cycle", key).Msg("Milestone lookup failed")
		return
	}
	if ran {
		s.ran[key] = struct{}{}
		return
	}

	cycleID := uuid.NewString()
	cycle := &domain.LearningCycle{
		CycleID:      cycleID,
		Type:         typ,
		TriggerCount: count,
		Status:       domain.CycleRunning,
		StartedAt:    s.now().UnixMilli(),
	}
	if err := s.cycles.Insert(ctx, cycle); err != nil {
		s.log.Error().Err(err).Str("cycle", key).Msg("Cycle row insert failed")
		return
	}
	s.ran[key] = struct{}{}

	adjustments, err := fn(ctx, cycleID)
	finishedAt := s.now().UnixMilli()
	duration := float64(finishedAt-cycle.StartedAt) / 1000
	if err != nil {
		s.log.Error().Err(err).Str("cycle", key).Msg("Cycle failed")
		observability.RecordCycle(string(typ), string(domain.CycleFailed), duration, adjustments)
		if closeErr := s.cycles.Close(ctx, cycleID, domain.CycleFailed, adjustments, err.Error(), finishedAt); closeErr != nil {
			s.log.Error().Err(closeErr).Str("cycle", key).Msg("Cycle close failed")
		}
		return
	}

	observability.RecordCycle(string(typ), string(domain.CycleCompleted), duration, adjustments)
	if err := s.cycles.Close(ctx, cycleID, domain.CycleCompleted, adjustments, "", finishedAt); err != nil {
		s.log.Error().Err(err).Str("cycle", key).Msg("Cycle close failed")
		return
	}
	s.log.Info().
		Str("cycle", key).
		Int("adjustments", adjustments).
		Msg("Cycle completed")
}

func (s *Scheduler) weightCycle(ctx context.Context, cycleID string) (int, error) {
	return s.optimizer.RunCycle(ctx, cycleID)
}

func (s *Scheduler) parameterCycle(ctx context.Context, cycleID string) (int, error) {
	return s.tuner.RunCycle(ctx, cycleID)
}

func (s *Scheduler) metaCycle(ctx context.Context, _ string) (int, error) {
	evaluated, err := s.learner.EvaluateAdjustmentImpacts(ctx)
	if err != nil {
		return evaluated, err
	}
	if _, err := s.learner.CheckHealth(ctx); err != nil {
		return evaluated, err
	}
	return evaluated, nil
}

// TriggerWeightOptimization runs a weight cycle off-schedule. Idempotent
// per trade count.
func (s *Scheduler) TriggerWeightOptimization(ctx context.Context) {
	s.triggerManual(ctx, domain.CycleWeight, s.weightCycle)
}

// TriggerParameterTuning runs a tuning cycle off-schedule.
func (s *Scheduler) TriggerParameterTuning(ctx context.Context) {
	s.triggerManual(ctx, domain.CycleParameter, s.parameterCycle)
}

// TriggerFullReport runs a report cycle off-schedule.
func (s *Scheduler) TriggerFullReport(ctx context.Context) {
	s.triggerManual(ctx, domain.CycleReport, s.reportCycle)
}

func (s *Scheduler) triggerManual(ctx context.Context, typ domain.CycleType, fn func(context.Context, string) (int, error)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count, err := s.trades.CountCompleted(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("Manual trigger failed to count trades")
		return
	}
	s.runMilestoneCycle(ctx, typ, count, fn)
}

// GetCurrentWeights returns the latest snapshot's weights, baseline
// when none exists.
func (s *Scheduler) GetCurrentWeights(ctx context.Context) (domain.CategoryWeights, error) {
	snap, err := s.snapshots.GetCurrent(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		return domain.BaselineWeights, nil
	}
	if err != nil {
		return domain.CategoryWeights{}, err
	}
	return snap.Weights, nil
}

// GetPatternStats reports pattern library sizes.
func (s *Scheduler) GetPatternStats(ctx context.Context) (*domain.PatternStats, error) {
	return s.matcher.Stats(ctx)
}

// GetAvailableSnapshots lists recent snapshots, newest first.
func (s *Scheduler) GetAvailableSnapshots(ctx context.Context, limit int) ([]*domain.LearningSnapshot, error) {
	return s.snapshots.GetRecent(ctx, limit)
}

// HealthStatus proxies the meta-learner's health aggregate.
func (s *Scheduler) HealthStatus(ctx context.Context) (*domain.HealthStatus, error) {
	return s.learner.HealthStatus(ctx)
}

// RevertToSnapshot proxies manual reversion for the control layer.
func (s *Scheduler) RevertToSnapshot(ctx context.Context, version int64) (*domain.LearningSnapshot, error) {
	return s.learner.RevertToSnapshot(ctx, version)
}

// StartTimer begins the background milestone re-check. The timer loop
// never stops on cycle failures; failures live in the cycle rows.
func (s *Scheduler) StartTimer(ctx context.Context) error {
	c := cron.New()
	if _, err := c.AddFunc(TimerSchedule, func() {
		s.CheckAndRunCycles(ctx)
	}); err != nil {
		return fmt.Errorf("register milestone timer: %w", err)
	}
	c.Start()
	s.cron = c
	s.log.Info().Str("schedule", TimerSchedule).Msg("Milestone timer started")
	return nil
}

// StopTimer stops the background timer and waits for a running check.
func (s *Scheduler) StopTimer() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
	s.log.Info().Msg("Milestone timer stopped")
}
