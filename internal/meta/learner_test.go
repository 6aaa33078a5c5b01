package meta

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/furrsati/OMM-BOT-sub002/internal/domain"
	"github.com/furrsati/OMM-BOT-sub002/internal/storage/memory"
)

type fixture struct {
	trades      *memory.TradeStore
	snapshots   *memory.SnapshotStore
	adjustments *memory.AdjustmentStore
	meta        *memory.MetaStore
	learner     *Learner
	now         time.Time
}

func newFixture() *fixture {
	f := &fixture{
		trades:      memory.NewTradeStore(),
		snapshots:   memory.NewSnapshotStore(),
		adjustments: memory.NewAdjustmentStore(),
		meta:        memory.NewMetaStore(),
		now:         time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	f.learner = NewLearner(f.trades, f.snapshots, f.adjustments, f.meta, zerolog.Nop())
	f.learner.now = func() time.Time { return f.now }
	return f
}

func (f *fixture) insertTrades(t *testing.T, prefix string, n int, outcome domain.Outcome, pnlPct float64, firstExit int64) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < n; i++ {
		trade := &domain.Trade{
			TradeID:   fmt.Sprintf("%s%d", prefix, i),
			EntryTime: firstExit + int64(i)*1000 - 500,
			ExitTime:  firstExit + int64(i)*1000,
			PnLSOL:    pnlPct / 100,
			PnLPct:    pnlPct,
			Outcome:   outcome,
		}
		if err := f.trades.Insert(ctx, trade); err != nil {
			t.Fatalf("Insert trade failed: %v", err)
		}
	}
}

func (f *fixture) insertAdjustment(t *testing.T, id string, createdAt int64) {
	t.Helper()
	adj := &domain.Adjustment{
		AdjustmentID:   id,
		Kind:           domain.AdjustmentKindWeight,
		Name:           "smartWallet",
		OldValue:       25,
		NewValue:       30,
		Recommendation: domain.RecommendIncrease,
		Confidence:     0.8,
		CreatedAt:      createdAt,
	}
	if err := f.adjustments.Insert(context.Background(), adj); err != nil {
		t.Fatalf("Insert adjustment failed: %v", err)
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		score float64
		want  string
	}{
		{0.05, domain.ImpactImproved},
		{0.02, domain.ImpactImproved},
		{0.01, domain.ImpactNeutral},
		{-0.04, domain.ImpactNeutral},
		{-0.05, domain.ImpactDegraded},
		{-0.2, domain.ImpactDegraded},
	}
	for _, tc := range cases {
		if got := Classify(tc.score); got != tc.want {
			t.Errorf("Classify(%f) = %s, want %s", tc.score, got, tc.want)
		}
	}
}

func TestImpactScore_Weighting(t *testing.T) {
	// Pure win-rate move: +0.1 win rate → 0.04.
	score := ImpactScore(0.4, 0.5, 2, 2, 5, 5)
	if diff := score - 0.04; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("ImpactScore = %f, want 0.04", score)
	}

	// Profit factor and return deltas are rescaled before weighting.
	score = ImpactScore(0.5, 0.5, 2, 4, 0, 20)
	want := 0.3*(2.0/10) + 0.3*(20.0/100)
	if diff := score - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("ImpactScore = %f, want %f", score, want)
	}
}

func TestEvaluateAdjustmentImpacts_DegradedAdjustment(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	adjAt := f.now.Add(-48 * time.Hour).UnixMilli()
	f.insertTrades(t, "before", 20, domain.OutcomeWin, 20, adjAt-100_000)
	f.insertTrades(t, "after", 20, domain.OutcomeLoss, -20, adjAt+1000)
	f.insertAdjustment(t, "adj1", adjAt)

	n, err := f.learner.EvaluateAdjustmentImpacts(ctx)
	if err != nil {
		t.Fatalf("EvaluateAdjustmentImpacts failed: %v", err)
	}
	if n != 1 {
		t.Fatalf("Expected 1 evaluation, got %d", n)
	}

	evals, _ := f.meta.GetEvaluations(ctx, 10)
	if len(evals) != 1 {
		t.Fatalf("Expected 1 stored evaluation, got %d", len(evals))
	}
	e := evals[0]
	if e.Classification != domain.ImpactDegraded {
		t.Errorf("Classification = %s, want degraded (score %f)", e.Classification, e.ImpactScore)
	}
	if e.WinRateBefore != 1.0 || e.WinRateAfter != 0.0 {
		t.Errorf("Win rates %f/%f, want 1.0/0.0", e.WinRateBefore, e.WinRateAfter)
	}
	if e.TradesBefore != 20 || e.TradesAfter != 20 {
		t.Errorf("Sample sizes %d/%d, want 20/20", e.TradesBefore, e.TradesAfter)
	}

	// Re-running evaluates nothing new.
	n, err = f.learner.EvaluateAdjustmentImpacts(ctx)
	if err != nil {
		t.Fatalf("Second run failed: %v", err)
	}
	if n != 0 {
		t.Errorf("Expected idempotent second run, got %d evaluations", n)
	}
}

func TestEvaluateAdjustmentImpacts_CooldownAndSampleGuards(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	// Too recent: inside the 24h cooldown.
	recentAt := f.now.Add(-2 * time.Hour).UnixMilli()
	f.insertAdjustment(t, "recent", recentAt)

	// Old enough but thin on the after side.
	thinAt := f.now.Add(-48 * time.Hour).UnixMilli()
	f.insertTrades(t, "before", 20, domain.OutcomeWin, 20, thinAt-100_000)
	f.insertTrades(t, "after", 5, domain.OutcomeLoss, -20, thinAt+1000)
	f.insertAdjustment(t, "thin", thinAt)

	n, err := f.learner.EvaluateAdjustmentImpacts(ctx)
	if err != nil {
		t.Fatalf("EvaluateAdjustmentImpacts failed: %v", err)
	}
	if n != 0 {
		t.Errorf("Expected no evaluations, got %d", n)
	}
}

func TestLearningRate_HalvedAfterConsecutiveFailures(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	// Two prior degraded evaluations.
	for i := 0; i < 2; i++ {
		f.meta.InsertEvaluation(ctx, &domain.ImpactEvaluation{
			EvalID:         fmt.Sprintf("old%d", i),
			AdjustmentID:   fmt.Sprintf("oldadj%d", i),
			Classification: domain.ImpactDegraded,
			EvaluatedAt:    f.now.Add(-time.Duration(48-i) * time.Hour).UnixMilli(),
		})
	}

	// A third degraded evaluation arrives through the normal path.
	adjAt := f.now.Add(-48 * time.Hour).UnixMilli()
	f.insertTrades(t, "before", 20, domain.OutcomeWin, 20, adjAt-100_000)
	f.insertTrades(t, "after", 20, domain.OutcomeLoss, -20, adjAt+1000)
	f.insertAdjustment(t, "adj1", adjAt)

	if _, err := f.learner.EvaluateAdjustmentImpacts(ctx); err != nil {
		t.Fatalf("EvaluateAdjustmentImpacts failed: %v", err)
	}

	event, err := f.meta.GetLatestEvent(ctx, domain.MetaEventLearningRate)
	if err != nil {
		t.Fatalf("Expected a learning-rate event: %v", err)
	}
	if event.Value != 0.5 {
		t.Errorf("Learning rate = %f, want 0.5", event.Value)
	}
}

func TestLearningRate_FloorHolds(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	// Already at the floor.
	f.meta.InsertEvent(ctx, &domain.MetaEvent{
		EventID: "floor", Type: domain.MetaEventLearningRate, Value: 0.25,
		CreatedAt: f.now.Add(-72 * time.Hour).UnixMilli(),
	})
	for i := 0; i < 3; i++ {
		f.meta.InsertEvaluation(ctx, &domain.ImpactEvaluation{
			EvalID:         fmt.Sprintf("old%d", i),
			AdjustmentID:   fmt.Sprintf("oldadj%d", i),
			Classification: domain.ImpactDegraded,
			EvaluatedAt:    f.now.Add(-time.Duration(48-i) * time.Hour).UnixMilli(),
		})
	}

	adjAt := f.now.Add(-48 * time.Hour).UnixMilli()
	f.insertTrades(t, "before", 20, domain.OutcomeWin, 20, adjAt-100_000)
	f.insertTrades(t, "after", 20, domain.OutcomeLoss, -20, adjAt+1000)
	f.insertAdjustment(t, "adj1", adjAt)

	if _, err := f.learner.EvaluateAdjustmentImpacts(ctx); err != nil {
		t.Fatalf("EvaluateAdjustmentImpacts failed: %v", err)
	}

	event, _ := f.meta.GetLatestEvent(ctx, domain.MetaEventLearningRate)
	if event.Value != 0.25 {
		t.Errorf("Learning rate = %f, want floor 0.25 untouched", event.Value)
	}
}

func TestLearningRate_RestoredOnImprovement(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.meta.InsertEvent(ctx, &domain.MetaEvent{
		EventID: "throttled", Type: domain.MetaEventLearningRate, Value: 0.5,
		CreatedAt: f.now.Add(-72 * time.Hour).UnixMilli(),
	})
	for i := 0; i < 8; i++ {
		f.meta.InsertEvaluation(ctx, &domain.ImpactEvaluation{
			EvalID:         fmt.Sprintf("good%d", i),
			AdjustmentID:   fmt.Sprintf("goodadj%d", i),
			Classification: domain.ImpactImproved,
			EvaluatedAt:    f.now.Add(-time.Duration(48-i) * time.Hour).UnixMilli(),
		})
	}

	// One more improved evaluation via the normal path.
	adjAt := f.now.Add(-48 * time.Hour).UnixMilli()
	f.insertTrades(t, "before", 20, domain.OutcomeLoss, -20, adjAt-100_000)
	f.insertTrades(t, "after", 20, domain.OutcomeWin, 20, adjAt+1000)
	f.insertAdjustment(t, "adj1", adjAt)

	if _, err := f.learner.EvaluateAdjustmentImpacts(ctx); err != nil {
		t.Fatalf("EvaluateAdjustmentImpacts failed: %v", err)
	}

	event, err := f.meta.GetLatestEvent(ctx, domain.MetaEventLearningRate)
	if err != nil {
		t.Fatalf("Expected a learning-rate event: %v", err)
	}
	if event.Value != 0.6 {
		t.Errorf("Learning rate = %f, want 0.5 × 1.2 = 0.6", event.Value)
	}
}

func TestRevertToSnapshot_CreatesNewVersion(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	var thirdWeights domain.CategoryWeights
	for i := 1; i <= 7; i++ {
		w := domain.BaselineWeights
		w.SmartWallet = 25 + float64(i)
		w.SocialSignals = 15 - float64(i)
		snap := &domain.LearningSnapshot{
			Weights:    w,
			Parameters: map[string]float64{domain.ParamStopLossPct: 20 + float64(i)},
			WinRate:    0.5,
			Origin:     domain.SnapshotOriginOptimizer,
			CreatedAt:  int64(i * 1000),
		}
		stored, err := f.snapshots.Insert(ctx, snap)
		if err != nil {
			t.Fatalf("Insert snapshot failed: %v", err)
		}
		if stored.Version == 3 {
			thirdWeights = stored.Weights
		}
	}

	stored, err := f.learner.RevertToSnapshot(ctx, 3)
	if err != nil {
		t.Fatalf("RevertToSnapshot failed: %v", err)
	}
	if stored.Version != 8 {
		t.Errorf("New version = %d, want 8", stored.Version)
	}
	if stored.Weights != thirdWeights {
		t.Errorf("Weights = %+v, want version 3's %+v", stored.Weights, thirdWeights)
	}
	if stored.Parameters[domain.ParamStopLossPct] != 23 {
		t.Errorf("Stop loss = %f, want version 3's 23", stored.Parameters[domain.ParamStopLossPct])
	}
	if stored.RevertOf != 3 {
		t.Errorf("RevertOf = %d, want 3", stored.RevertOf)
	}

	// Versions 1-7 untouched.
	for i := int64(1); i <= 7; i++ {
		snap, err := f.snapshots.GetByVersion(ctx, i)
		if err != nil {
			t.Fatalf("Version %d missing: %v", i, err)
		}
		if snap.Origin == domain.SnapshotOriginRevert {
			t.Errorf("Version %d mutated into a revert snapshot", i)
		}
	}

	event, err := f.meta.GetLatestEvent(ctx, domain.MetaEventReversion)
	if err != nil {
		t.Fatalf("Expected a reversion event: %v", err)
	}
	if event.Value != 3 {
		t.Errorf("Reversion event value = %f, want 3", event.Value)
	}
}

func TestHealthStatus_Levels(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	status, err := f.learner.HealthStatus(ctx)
	if err != nil {
		t.Fatalf("HealthStatus failed: %v", err)
	}
	if status.Level != domain.HealthGood {
		t.Errorf("Level = %s, want good on empty history", status.Level)
	}
	if status.LearningRate != 1.0 {
		t.Errorf("LearningRate = %f, want default 1.0", status.LearningRate)
	}

	f.meta.InsertEvaluation(ctx, &domain.ImpactEvaluation{
		EvalID: "e1", AdjustmentID: "a1",
		Classification: domain.ImpactDegraded,
		EvaluatedAt:    f.now.Add(-time.Hour).UnixMilli(),
	})
	status, _ = f.learner.HealthStatus(ctx)
	if status.Level != domain.HealthWarning {
		t.Errorf("Level = %s, want warning after one failure", status.Level)
	}

	for i := 2; i <= 3; i++ {
		f.meta.InsertEvaluation(ctx, &domain.ImpactEvaluation{
			EvalID: fmt.Sprintf("e%d", i), AdjustmentID: fmt.Sprintf("a%d", i),
			Classification: domain.ImpactDegraded,
			EvaluatedAt:    f.now.Add(-time.Hour + time.Duration(i)*time.Minute).UnixMilli(),
		})
	}
	status, _ = f.learner.HealthStatus(ctx)
	if status.Level != domain.HealthCritical {
		t.Errorf("Level = %s, want critical after three failures", status.Level)
	}
	if status.ConsecutiveFailures != 3 {
		t.Errorf("ConsecutiveFailures = %d, want 3", status.ConsecutiveFailures)
	}
}

func TestCheckHealth_AutoRevertsOnCritical(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	// Version 1 is healthy, version 2 (current) underwater.
	good := &domain.LearningSnapshot{
		Weights:    domain.BaselineWeights,
		Parameters: map[string]float64{domain.ParamStopLossPct: 25},
		WinRate:    0.55,
		Origin:     domain.SnapshotOriginBaseline,
	}
	f.snapshots.Insert(ctx, good)
	bad := &domain.LearningSnapshot{
		Weights:    domain.BaselineWeights,
		Parameters: map[string]float64{domain.ParamStopLossPct: 12},
		WinRate:    0.2,
		Origin:     domain.SnapshotOriginTuner,
	}
	f.snapshots.Insert(ctx, bad)

	for i := 0; i < 3; i++ {
		f.meta.InsertEvaluation(ctx, &domain.ImpactEvaluation{
			EvalID: fmt.Sprintf("e%d", i), AdjustmentID: fmt.Sprintf("a%d", i),
			Classification: domain.ImpactDegraded,
			EvaluatedAt:    f.now.Add(time.Duration(i) * time.Minute).UnixMilli(),
		})
	}

	status, err := f.learner.CheckHealth(ctx)
	if err != nil {
		t.Fatalf("CheckHealth failed: %v", err)
	}
	if status.Level != domain.HealthCritical {
		t.Fatalf("Level = %s, want critical", status.Level)
	}

	current, err := f.snapshots.GetCurrent(ctx)
	if err != nil {
		t.Fatalf("GetCurrent failed: %v", err)
	}
	if current.Version != 3 {
		t.Fatalf("Expected auto-revert snapshot version 3, got %d", current.Version)
	}
	if current.Origin != domain.SnapshotOriginRevert || current.RevertOf != 1 {
		t.Errorf("Expected revert of version 1, got origin %s revert_of %d", current.Origin, current.RevertOf)
	}
	if current.Parameters[domain.ParamStopLossPct] != 25 {
		t.Errorf("Reverted stop loss = %f, want 25", current.Parameters[domain.ParamStopLossPct])
	}
}
