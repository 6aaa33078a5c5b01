package tuning

import (
	"context"
	"fmt"
	"math"
	"testing"

	"github.com/rs/zerolog"

	"github.com/furrsati/OMM-BOT-sub002/internal/domain"
	"github.com/furrsati/OMM-BOT-sub002/internal/storage/memory"
)

func stoppedTrade(id string, lossPct float64) *domain.Trade {
	return &domain.Trade{
		TradeID:    id,
		EntryTime:  1000,
		ExitTime:   10_801_000, // 3h hold
		ExitReason: domain.ExitReasonStopLoss,
		PnLSOL:     -lossPct / 100,
		PnLPct:     -lossPct,
		Outcome:    domain.OutcomeLoss,
	}
}

func winningTrade(id string, returnPct, dipDepth float64) *domain.Trade {
	return &domain.Trade{
		TradeID:    id,
		EntryTime:  1000,
		ExitTime:   14_401_000, // 4h hold
		ExitReason: domain.ExitReasonTakeProfit,
		PnLSOL:     returnPct / 100,
		PnLPct:     returnPct,
		Outcome:    domain.OutcomeWin,
		Fingerprint: &domain.TradeFingerprint{
			EntryQuality: domain.EntryQualitySignal{DipDepthPct: dipDepth},
		},
	}
}

func TestAnalyzeStopLoss_TightStopsWiden(t *testing.T) {
	// 12 of 20 stop-outs land within ±2 of the 25% stop: 60% tight-stop
	// rate, over the 40% threshold.
	var trades []*domain.Trade
	for i := 0; i < 12; i++ {
		trades = append(trades, stoppedTrade(fmt.Sprintf("tight%d", i), 24+float64(i%3)))
	}
	for i := 0; i < 8; i++ {
		trades = append(trades, stoppedTrade(fmt.Sprintf("loose%d", i), 10))
	}

	a := analyzeStopLoss(trades, 25, 2)
	if a.Recommendation != domain.RecommendIncrease {
		t.Fatalf("Expected increase, got %s (%s)", a.Recommendation, a.Reason)
	}
	if a.Proposed != 27 {
		t.Errorf("Proposed = %f, want 27", a.Proposed)
	}
}

func TestAnalyzeStopLoss_ClampsAtHardBound(t *testing.T) {
	var trades []*domain.Trade
	for i := 0; i < 20; i++ {
		trades = append(trades, stoppedTrade(fmt.Sprintf("t%d", i), 34))
	}

	a := analyzeStopLoss(trades, 34, 2)
	if a.Proposed != 35 {
		t.Errorf("Proposed = %f, want clamp at 35", a.Proposed)
	}
}

func TestAnalyzeStopLoss_LooseStopsTighten(t *testing.T) {
	// Every loss lands far below the 30% stop.
	var trades []*domain.Trade
	for i := 0; i < 10; i++ {
		trades = append(trades, stoppedTrade(fmt.Sprintf("t%d", i), 8))
	}

	a := analyzeStopLoss(trades, 30, 2)
	if a.Recommendation != domain.RecommendDecrease {
		t.Fatalf("Expected decrease, got %s (%s)", a.Recommendation, a.Reason)
	}
	if a.Proposed != 28 {
		t.Errorf("Proposed = %f, want 28", a.Proposed)
	}
}

func TestAnalyzeStopLoss_FewSamplesKeep(t *testing.T) {
	trades := []*domain.Trade{stoppedTrade("a", 25), stoppedTrade("b", 24)}

	a := analyzeStopLoss(trades, 25, 2)
	if a.Recommendation != domain.RecommendKeep {
		t.Errorf("Expected keep with 2 samples, got %s", a.Recommendation)
	}
	if a.Proposed != 25 {
		t.Errorf("Proposed = %f, want unchanged 25", a.Proposed)
	}
}

func TestBucketBy_GroupsAndScores(t *testing.T) {
	trades := []*domain.Trade{
		winningTrade("a", 30, 22),
		winningTrade("b", 20, 23),
		winningTrade("c", 40, 24),
		stoppedTrade("d", 25),
	}
	trades[3].Fingerprint = &domain.TradeFingerprint{
		EntryQuality: domain.EntryQualitySignal{DipDepthPct: 42},
	}

	feature := func(t *domain.Trade) (float64, bool) {
		if t.Fingerprint == nil {
			return 0, false
		}
		return t.Fingerprint.EntryQuality.DipDepthPct, true
	}
	buckets := BucketBy(trades, feature, 5)
	if len(buckets) != 2 {
		t.Fatalf("Expected 2 buckets, got %d", len(buckets))
	}
	if buckets[0].Lo != 20 || buckets[0].Hi != 25 {
		t.Errorf("First bucket [%f, %f), want [20, 25)", buckets[0].Lo, buckets[0].Hi)
	}
	if len(buckets[0].Trades) != 3 {
		t.Errorf("Expected 3 trades in the 20-25 bucket, got %d", len(buckets[0].Trades))
	}
	if buckets[0].WinRate != 1.0 {
		t.Errorf("WinRate = %f, want 1.0", buckets[0].WinRate)
	}
	if buckets[0].Score != 30 { // 1.0 × avg(30,20,40)
		t.Errorf("Score = %f, want 30", buckets[0].Score)
	}
	// Losing bucket scores zero: winRate × max(0, negative avg).
	if buckets[1].Score != 0 {
		t.Errorf("Losing bucket score = %f, want 0", buckets[1].Score)
	}
}

func TestBestBucket_MinSamples(t *testing.T) {
	buckets := []Bucket{
		{Lo: 0, Hi: 5, Trades: []*domain.Trade{{}}, Score: 100},
		{Lo: 5, Hi: 10, Trades: []*domain.Trade{{}, {}, {}}, Score: 10},
	}

	best, ok := BestBucket(buckets, 3, false)
	if !ok {
		t.Fatal("Expected a best bucket")
	}
	if best.Lo != 5 {
		t.Errorf("Expected the populated bucket to win, got [%f, %f)", best.Lo, best.Hi)
	}

	_, ok = BestBucket(buckets, 5, false)
	if ok {
		t.Error("Expected no bucket with 5-sample minimum")
	}
}

func TestAnalyzeDipRange_MovesTowardBestBucket(t *testing.T) {
	// Winners cluster at dip depth 30-35; losers bought shallow dips.
	var trades []*domain.Trade
	for i := 0; i < 6; i++ {
		trades = append(trades, winningTrade(fmt.Sprintf("w%d", i), 30, 31+float64(i%4)))
	}
	for i := 0; i < 6; i++ {
		tr := stoppedTrade(fmt.Sprintf("l%d", i), 20)
		tr.Fingerprint = &domain.TradeFingerprint{
			EntryQuality: domain.EntryQualitySignal{DipDepthPct: 12},
		}
		trades = append(trades, tr)
	}

	analyses := analyzeDipRange(trades, 20, 45, 2)
	if len(analyses) != 2 {
		t.Fatalf("Expected 2 analyses, got %d", len(analyses))
	}

	minA, maxA := analyses[0], analyses[1]
	if minA.Recommendation != domain.RecommendIncrease {
		t.Errorf("Expected dip min increase toward 30, got %s", minA.Recommendation)
	}
	if minA.Proposed != 22 {
		t.Errorf("Dip min proposed = %f, want 22 (capped step)", minA.Proposed)
	}
	if maxA.Recommendation != domain.RecommendDecrease {
		t.Errorf("Expected dip max decrease toward 35, got %s", maxA.Recommendation)
	}
	if maxA.Proposed != 43 {
		t.Errorf("Dip max proposed = %f, want 43 (capped step)", maxA.Proposed)
	}
}

func TestAnalyzeWindow_BoundedSteps(t *testing.T) {
	var trades []*domain.Trade
	for i := 0; i < 20; i++ {
		trades = append(trades, winningTrade(fmt.Sprintf("w%d", i), 150, 40))
	}
	for i := 0; i < 20; i++ {
		trades = append(trades, stoppedTrade(fmt.Sprintf("l%d", i), 25))
	}

	params := map[string]float64{}
	for k, v := range domain.DefaultParameters {
		params[k] = v
	}

	for _, a := range AnalyzeWindow(trades, params, 1.0) {
		maxStep := domain.ParameterStep[a.Parameter]
		if delta := math.Abs(a.Proposed - a.Current); delta > maxStep+1e-9 {
			t.Errorf("Parameter %s moved %f, beyond step %f", a.Parameter, delta, maxStep)
		}
		bounds := domain.ParameterBounds[a.Parameter]
		if a.Proposed < bounds.Lo || a.Proposed > bounds.Hi {
			t.Errorf("Parameter %s proposed %f outside [%f, %f]", a.Parameter, a.Proposed, bounds.Lo, bounds.Hi)
		}
	}
}

func TestAnalyzePositionSize_TierFactorsOrder(t *testing.T) {
	// A profitable window: Kelly edge positive.
	var trades []*domain.Trade
	for i := 0; i < 12; i++ {
		trades = append(trades, winningTrade(fmt.Sprintf("w%d", i), 40, 30))
	}
	for i := 0; i < 6; i++ {
		trades = append(trades, stoppedTrade(fmt.Sprintf("l%d", i), 20))
	}

	high := analyzePositionSize(trades, domain.TierHigh, 2.0, 2)
	med := analyzePositionSize(trades, domain.TierMedium, 2.0, 2)
	low := analyzePositionSize(trades, domain.TierLow, 2.0, 2)

	if high.Optimal < med.Optimal || med.Optimal < low.Optimal {
		t.Errorf("Expected tier-ordered optima, got high %f, med %f, low %f",
			high.Optimal, med.Optimal, low.Optimal)
	}
	for _, a := range []Analysis{high, med, low} {
		bounds := domain.ParameterBounds[a.Parameter]
		if a.Proposed < bounds.Lo || a.Proposed > bounds.Hi {
			t.Errorf("Position size %s proposed %f outside bounds", a.Parameter, a.Proposed)
		}
	}
}

func TestAnalyzePositionSize_NegativeEdgeShrinks(t *testing.T) {
	var trades []*domain.Trade
	for i := 0; i < 3; i++ {
		trades = append(trades, winningTrade(fmt.Sprintf("w%d", i), 10, 30))
	}
	for i := 0; i < 12; i++ {
		trades = append(trades, stoppedTrade(fmt.Sprintf("l%d", i), 30))
	}

	a := analyzePositionSize(trades, domain.TierHigh, 2.0, 2)
	if a.Recommendation != domain.RecommendDecrease {
		t.Errorf("Expected decrease on negative edge, got %s (%s)", a.Recommendation, a.Reason)
	}
	if a.Proposed >= 2.0 {
		t.Errorf("Proposed = %f, want below current", a.Proposed)
	}
}

func TestRunCycle_BelowMinimumWindow(t *testing.T) {
	trades := memory.NewTradeStore()
	ctx := context.Background()
	for i := 0; i < 10; i++ {
		trades.Insert(ctx, winningTrade(fmt.Sprintf("w%d", i), 30, 25))
	}

	tu := NewTuner(trades, memory.NewSnapshotStore(), memory.NewAdjustmentStore(),
		memory.NewFrozenStore(), memory.NewMetaStore(), zerolog.Nop())
	count, err := tu.RunCycle(ctx, "cycle-1")
	if err != nil {
		t.Fatalf("RunCycle failed: %v", err)
	}
	if count != 0 {
		t.Errorf("Expected no adjustments below minimum window, got %d", count)
	}
}

func TestRunCycle_PersistsAdjustmentsAndSnapshot(t *testing.T) {
	trades := memory.NewTradeStore()
	snapshots := memory.NewSnapshotStore()
	adjustments := memory.NewAdjustmentStore()
	ctx := context.Background()

	// 60% tight-stop rate among 20 stop-outs plus enough wins to fill
	// the window.
	for i := 0; i < 12; i++ {
		trades.Insert(ctx, stoppedTrade(fmt.Sprintf("tight%d", i), 24+float64(i%3)))
	}
	for i := 0; i < 8; i++ {
		trades.Insert(ctx, stoppedTrade(fmt.Sprintf("loose%d", i), 10))
	}
	for i := 0; i < 15; i++ {
		trades.Insert(ctx, winningTrade(fmt.Sprintf("w%d", i), 35, 30))
	}

	tu := NewTuner(trades, snapshots, adjustments,
		memory.NewFrozenStore(), memory.NewMetaStore(), zerolog.Nop())
	count, err := tu.RunCycle(ctx, "cycle-1")
	if err != nil {
		t.Fatalf("RunCycle failed: %v", err)
	}
	if count == 0 {
		t.Fatal("Expected accepted adjustments")
	}

	snap, err := snapshots.GetCurrent(ctx)
	if err != nil {
		t.Fatalf("GetCurrent failed: %v", err)
	}
	if snap.Origin != domain.SnapshotOriginTuner {
		t.Errorf("Expected tuner origin, got %s", snap.Origin)
	}
	if snap.Parameters[domain.ParamStopLossPct] != 27 {
		t.Errorf("Stop loss = %f, want 27", snap.Parameters[domain.ParamStopLossPct])
	}
}

func TestRunCycle_FrozenParameterSkipped(t *testing.T) {
	trades := memory.NewTradeStore()
	snapshots := memory.NewSnapshotStore()
	frozen := memory.NewFrozenStore()
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		trades.Insert(ctx, stoppedTrade(fmt.Sprintf("tight%d", i), 25))
	}
	for i := 0; i < 15; i++ {
		trades.Insert(ctx, winningTrade(fmt.Sprintf("w%d", i), 35, 30))
	}

	frozen.Freeze(ctx, &domain.FrozenParameter{Name: domain.ParamStopLossPct, FrozenBy: "op", FrozenAt: 1})

	tu := NewTuner(trades, snapshots, memory.NewAdjustmentStore(), frozen, memory.NewMetaStore(), zerolog.Nop())
	if _, err := tu.RunCycle(ctx, "cycle-1"); err != nil {
		t.Fatalf("RunCycle failed: %v", err)
	}

	// Whatever else moved, the frozen stop loss must not.
	if snap, err := snapshots.GetCurrent(ctx); err == nil {
		if snap.Parameters[domain.ParamStopLossPct] != domain.DefaultParameters[domain.ParamStopLossPct] {
			t.Errorf("Frozen stop loss moved to %f", snap.Parameters[domain.ParamStopLossPct])
		}
	}
}

func TestInsights(t *testing.T) {
	var trades []*domain.Trade
	for i := 0; i < 5; i++ {
		tr := winningTrade(fmt.Sprintf("w%d", i), 30, 25)
		tr.Fingerprint.SmartWallet.WalletCount = 3
		tr.Fingerprint.EntryQuality.TokenAgeMinutes = 90
		tr.Fingerprint.Market.HourOfDay = 14
		trades = append(trades, tr)
	}

	if insight, ok := BestWalletThreshold(trades); !ok || insight.Lo != 3 {
		t.Errorf("BestWalletThreshold = %+v, ok=%v", insight, ok)
	}
	if insight, ok := BestTokenAgeBand(trades); !ok || insight.Lo != 60 {
		t.Errorf("BestTokenAgeBand = %+v, ok=%v", insight, ok)
	}
	if insight, ok := BestEntryHour(trades); !ok || insight.Lo != 14 {
		t.Errorf("BestEntryHour = %+v, ok=%v", insight, ok)
	}
}
