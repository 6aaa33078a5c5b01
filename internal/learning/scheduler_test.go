package learning

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/rs/zerolog"

	"github.com/furrsati/OMM-BOT-sub002/internal/domain"
	"github.com/furrsati/OMM-BOT-sub002/internal/meta"
	"github.com/furrsati/OMM-BOT-sub002/internal/patterns"
	"github.com/furrsati/OMM-BOT-sub002/internal/storage"
	"github.com/furrsati/OMM-BOT-sub002/internal/storage/memory"
	"github.com/furrsati/OMM-BOT-sub002/internal/tuning"
	"github.com/furrsati/OMM-BOT-sub002/internal/weights"
)

type testEnv struct {
	trades    storage.TradeStore
	cycles    *memory.CycleStore
	snapshots *memory.SnapshotStore
	metrics   *memory.LearningMetricStore
	scheduler *Scheduler
}

func newTestEnv(trades storage.TradeStore) *testEnv {
	if trades == nil {
		trades = memory.NewTradeStore()
	}
	cycles := memory.NewCycleStore()
	snapshots := memory.NewSnapshotStore()
	adjustments := memory.NewAdjustmentStore()
	frozen := memory.NewFrozenStore()
	metaStore := memory.NewMetaStore()
	patternStore := memory.NewPatternStore()
	metrics := memory.NewLearningMetricStore()
	log := zerolog.Nop()

	matcher := patterns.NewMatcher(trades, patternStore, log)
	optimizer := weights.NewOptimizer(trades, snapshots, adjustments, frozen, metaStore, log)
	tuner := tuning.NewTuner(trades, snapshots, adjustments, frozen, metaStore, log)
	learner := meta.NewLearner(trades, snapshots, adjustments, metaStore, log)

	return &testEnv{
		trades:    trades,
		cycles:    cycles,
		snapshots: snapshots,
		metrics:   metrics,
		scheduler: NewScheduler(trades, cycles, snapshots, metrics, matcher, optimizer, tuner, learner, log),
	}
}

func completedTrade(i int) *domain.Trade {
	outcome := domain.OutcomeWin
	pnl := 20.0
	reason := domain.ExitReasonTakeProfit
	if i%2 == 0 {
		outcome = domain.OutcomeLoss
		pnl = -10
		reason = domain.ExitReasonManual
	}
	return &domain.Trade{
		TradeID:    fmt.Sprintf("trade-%04d", i),
		Mint:       fmt.Sprintf("mint-%04d", i),
		EntryTime:  int64(i)*10_000 + 1,
		ExitTime:   int64(i+1) * 10_000,
		ExitReason: reason,
		PnLSOL:     pnl / 100,
		PnLPct:     pnl,
		Outcome:    outcome,
		Fingerprint: &domain.TradeFingerprint{
			SmartWallet: domain.SmartWalletSignal{WalletCount: i % 4},
		},
	}
}

func (e *testEnv) fill(t *testing.T, n int) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < n; i++ {
		if err := e.trades.Insert(ctx, completedTrade(i)); err != nil {
			t.Fatalf("Insert trade %d failed: %v", i, err)
		}
	}
}

func (e *testEnv) cycleCount(t *testing.T, typ domain.CycleType) int {
	t.Helper()
	recent, err := e.cycles.GetRecent(context.Background(), 0)
	if err != nil {
		t.Fatalf("GetRecent cycles failed: %v", err)
	}
	n := 0
	for _, c := range recent {
		if c.Type == typ {
			n++
		}
	}
	return n
}

func TestOnTradeCompleted_RunsPatternCycle(t *testing.T) {
	env := newTestEnv(nil)
	ctx := context.Background()

	trade := completedTrade(1)
	trade.PnLPct = 25 // strong win, feeds the win library
	if err := env.scheduler.OnTradeCompleted(ctx, trade); err != nil {
		t.Fatalf("OnTradeCompleted failed: %v", err)
	}

	if got := env.cycleCount(t, domain.CyclePattern); got != 1 {
		t.Errorf("Expected 1 pattern cycle, got %d", got)
	}

	stats, err := env.scheduler.GetPatternStats(ctx)
	if err != nil {
		t.Fatalf("GetPatternStats failed: %v", err)
	}
	if stats.WinPatterns != 1 {
		t.Errorf("Expected 1 win pattern, got %d", stats.WinPatterns)
	}

	// Feed replay of the same trade is tolerated and runs nothing new.
	if err := env.scheduler.OnTradeCompleted(ctx, trade); err != nil {
		t.Fatalf("Replay failed: %v", err)
	}
	if got := env.cycleCount(t, domain.CyclePattern); got != 1 {
		t.Errorf("Expected still 1 pattern cycle after replay, got %d", got)
	}
}

func TestOnTradeCompleted_RejectsOpenTrade(t *testing.T) {
	env := newTestEnv(nil)

	err := env.scheduler.OnTradeCompleted(context.Background(), &domain.Trade{TradeID: "open"})
	if !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for open trade, got %v", err)
	}
}

func TestCheckAndRunCycles_GlobalMinimumGuard(t *testing.T) {
	env := newTestEnv(nil)
	env.fill(t, 20)

	env.scheduler.CheckAndRunCycles(context.Background())

	recent, _ := env.cycles.GetRecent(context.Background(), 0)
	if len(recent) != 0 {
		t.Errorf("Expected no cycles below 30 trades, got %d", len(recent))
	}
}

func TestCheckAndRunCycles_MilestoneIdempotent(t *testing.T) {
	env := newTestEnv(nil)
	env.fill(t, 50)
	ctx := context.Background()

	env.scheduler.CheckAndRunCycles(ctx)
	env.scheduler.CheckAndRunCycles(ctx)

	if got := env.cycleCount(t, domain.CycleWeight); got != 1 {
		t.Errorf("Expected 1 weight cycle, got %d", got)
	}
	if got := env.cycleCount(t, domain.CycleParameter); got != 1 {
		t.Errorf("Expected 1 parameter cycle, got %d", got)
	}
	if got := env.cycleCount(t, domain.CycleMeta); got != 0 {
		t.Errorf("Expected no meta cycle at 50 trades, got %d", got)
	}
}

func TestCheckAndRunCycles_InProcessSetSurvivesRestart(t *testing.T) {
	env := newTestEnv(nil)
	env.fill(t, 50)
	ctx := context.Background()

	env.scheduler.CheckAndRunCycles(ctx)

	// A fresh scheduler over the same cycle store must not re-run the
	// milestone: the learning_cycles table is the durable guard.
	restarted := NewScheduler(env.trades, env.cycles, env.snapshots, env.metrics,
		env.scheduler.matcher, env.scheduler.optimizer, env.scheduler.tuner,
		env.scheduler.learner, zerolog.Nop())
	restarted.CheckAndRunCycles(ctx)

	if got := env.cycleCount(t, domain.CycleWeight); got != 1 {
		t.Errorf("Expected 1 weight cycle after restart, got %d", got)
	}
}

func TestCheckAndRunCycles_AllMilestonesAt200(t *testing.T) {
	env := newTestEnv(nil)
	env.fill(t, 200)
	ctx := context.Background()

	env.scheduler.CheckAndRunCycles(ctx)

	for _, typ := range []domain.CycleType{domain.CycleWeight, domain.CycleParameter, domain.CycleMeta, domain.CycleReport} {
		if got := env.cycleCount(t, typ); got != 1 {
			t.Errorf("Expected 1 %s cycle at 200 trades, got %d", typ, got)
		}
	}

	points := env.metrics.Points()
	if len(points) != 1 {
		t.Fatalf("Expected 1 metric point from the report, got %d", len(points))
	}
	if points[0].TradeCount != 200 {
		t.Errorf("Metric trade count = %d, want 200", points[0].TradeCount)
	}
}

func TestManualTrigger_IdempotentPerCount(t *testing.T) {
	env := newTestEnv(nil)
	env.fill(t, 37)
	ctx := context.Background()

	env.scheduler.TriggerFullReport(ctx)
	env.scheduler.TriggerFullReport(ctx)

	if got := env.cycleCount(t, domain.CycleReport); got != 1 {
		t.Errorf("Expected 1 report cycle at count 37, got %d", got)
	}
	if len(env.metrics.Points()) != 1 {
		t.Errorf("Expected 1 metric point, got %d", len(env.metrics.Points()))
	}
}

// faultyTradeStore fails window reads to force a cycle failure.
type faultyTradeStore struct {
	*memory.TradeStore
}

var errWindowRead = errors.New("window read refused")

func (f *faultyTradeStore) GetRecentCompleted(ctx context.Context, limit int) ([]*domain.Trade, error) {
	return nil, errWindowRead
}

func TestFailedCycleMarkedAndNotRetried(t *testing.T) {
	faulty := &faultyTradeStore{TradeStore: memory.NewTradeStore()}
	env := newTestEnv(faulty)
	env.fill(t, 50)
	ctx := context.Background()

	env.scheduler.CheckAndRunCycles(ctx)
	env.scheduler.CheckAndRunCycles(ctx)

	recent, _ := env.cycles.GetRecent(ctx, 0)
	weightCycles := 0
	for _, c := range recent {
		if c.Type != domain.CycleWeight {
			continue
		}
		weightCycles++
		if c.Status != domain.CycleFailed {
			t.Errorf("Expected failed status, got %s", c.Status)
		}
		if c.Error == "" {
			t.Error("Expected error text on the failed cycle")
		}
	}
	if weightCycles != 1 {
		t.Errorf("Expected exactly 1 weight cycle (no auto-retry), got %d", weightCycles)
	}
}

func TestStatusReads(t *testing.T) {
	env := newTestEnv(nil)
	ctx := context.Background()

	w, err := env.scheduler.GetCurrentWeights(ctx)
	if err != nil {
		t.Fatalf("GetCurrentWeights failed: %v", err)
	}
	if w != domain.BaselineWeights {
		t.Errorf("Expected baseline weights with no snapshot, got %+v", w)
	}

	snaps, err := env.scheduler.GetAvailableSnapshots(ctx, 5)
	if err != nil {
		t.Fatalf("GetAvailableSnapshots failed: %v", err)
	}
	if len(snaps) != 0 {
		t.Errorf("Expected no snapshots, got %d", len(snaps))
	}

	health, err := env.scheduler.HealthStatus(ctx)
	if err != nil {
		t.Fatalf("HealthStatus failed: %v", err)
	}
	if health.Level != domain.HealthGood {
		t.Errorf("Expected good health, got %s", health.Level)
	}
}
