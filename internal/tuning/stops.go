package tuning

import (
	"fmt"
	"math"

	"github.com/furrsati/OMM-BOT-sub002/internal/domain"
	"github.com/furrsati/OMM-BOT-sub002/internal/stats"
)

const (
	// TightStopBand is the ± band (in loss percentage points) around the
	// configured stop that counts an exit as "tight".
	TightStopBand = 2.0
	// TightStopWidenRate widens the stop when exceeded.
	TightStopWidenRate = 0.40
	// TightStopTightenRate tightens the stop when undershot and losses
	// sit well below the stop.
	TightStopTightenRate = 0.10
	// MinStopSamples is the minimum stopped-out trades for the analysis.
	MinStopSamples = 5
)

// analyzeStopLoss applies the tight-stop rule to stop-loss exits.
// Losses landing within ±2 points of the configured stop suggest the
// stop is cutting trades that were still inside normal noise; a high
// tight-stop rate widens the stop by one step.
func analyzeStopLoss(trades []*domain.Trade, current, step float64) Analysis {
	a := Analysis{
		Parameter:      domain.ParamStopLossPct,
		Current:        current,
		Proposed:       current,
		Recommendation: domain.RecommendKeep,
	}

	var stopped []*domain.Trade
	for _, t := range trades {
		if t.ExitReason == domain.ExitReasonStopLoss {
			stopped = append(stopped, t)
		}
	}
	if len(stopped) < MinStopSamples {
		a.Reason = fmt.Sprintf("only %d stop-outs", len(stopped))
		return a
	}

	tight := 0
	lossSum := 0.0
	for _, t := range stopped {
		loss := math.Abs(t.PnLPct)
		lossSum += loss
		if math.Abs(loss-current) <= TightStopBand {
			tight++
		}
	}
	tightRate := float64(tight) / float64(len(stopped))
	avgLoss := lossSum / float64(len(stopped))

	bounds := domain.ParameterBounds[domain.ParamStopLossPct]
	switch {
	case tightRate > TightStopWidenRate:
		a.Recommendation = domain.RecommendIncrease
		a.Proposed = stats.Clamp(current+step, bounds.Lo, bounds.Hi)
		a.Reason = fmt.Sprintf("tight-stop rate %.0f%% over %d stop-outs", tightRate*100, len(stopped))
	case tightRate < TightStopTightenRate && avgLoss < current-2*TightStopBand:
		a.Recommendation = domain.RecommendDecrease
		a.Proposed = stats.Clamp(current-step, bounds.Lo, bounds.Hi)
		a.Reason = fmt.Sprintf("avg loss %.1f%% well below the %.0f%% stop", avgLoss, current)
	default:
		a.Reason = fmt.Sprintf("tight-stop rate %.0f%% within band", tightRate*100)
	}
	a.Optimal = a.Proposed
	a.Confidence = stats.Clamp(float64(len(stopped))/20, 0, 1)
	return a
}

// analyzeTrailingStop applies the same shape of rule to trailing-stop
// exits: a high share of negative trailing exits means the distance is
// too tight to survive ordinary retraces.
func analyzeTrailingStop(trades []*domain.Trade, current, step float64) Analysis {
	a := Analysis{
		Parameter:      domain.ParamTrailingStopPct,
		Current:        current,
		Proposed:       current,
		Recommendation: domain.RecommendKeep,
	}

	var trailed []*domain.Trade
	for _, t := range trades {
		if t.ExitReason == domain.ExitReasonTrailingStop {
			trailed = append(trailed, t)
		}
	}
	if len(trailed) < MinStopSamples {
		a.Reason = fmt.Sprintf("only %d trailing exits", len(trailed))
		return a
	}

	negative := 0
	returnSum := 0.0
	for _, t := range trailed {
		returnSum += t.PnLPct
		if t.PnLPct < 0 {
			negative++
		}
	}
	negativeRate := float64(negative) / float64(len(trailed))
	avgReturn := returnSum / float64(len(trailed))

	bounds := domain.ParameterBounds[domain.ParamTrailingStopPct]
	switch {
	case negativeRate > TightStopWidenRate:
		a.Recommendation = domain.RecommendIncrease
		a.Proposed = stats.Clamp(current+step, bounds.Lo, bounds.Hi)
		a.Reason = fmt.Sprintf("%.0f%% of trailing exits closed negative", negativeRate*100)
	case negativeRate < TightStopTightenRate && avgReturn > current:
		a.Recommendation = domain.RecommendDecrease
		a.Proposed = stats.Clamp(current-step, bounds.Lo, bounds.Hi)
		a.Reason = fmt.Sprintf("trailing exits keep %.1f%% on average", avgReturn)
	default:
		a.Reason = fmt.Sprintf("%.0f%% negative trailing exits within band", negativeRate*100)
	}
	a.Optimal = a.Proposed
	a.Confidence = stats.Clamp(float64(len(trailed))/20, 0, 1)
	return a
}
