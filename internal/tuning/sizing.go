package tuning

import (
	"fmt"

	"github.com/furrsati/OMM-BOT-sub002/internal/domain"
	"github.com/furrsati/OMM-BOT-sub002/internal/stats"
)

// MinSizingSamples is the minimum completed trades per tier analysis.
const MinSizingSamples = 10

// positionParam maps a conviction tier to its position-size parameter.
var positionParam = map[domain.ConvictionTier]string{
	domain.TierHigh:   domain.ParamPositionSizeHigh,
	domain.TierMedium: domain.ParamPositionSizeMed,
	domain.TierLow:    domain.ParamPositionSizeLow,
}

// analyzePositionSize sizes one conviction tier with half-Kelly:
// f* = (b·p − q)/b, halved, scaled by the tier factor and clamped to
// the position-size bounds. The whole trade window feeds the Kelly
// inputs; the tier factor differentiates the tiers.
func analyzePositionSize(trades []*domain.Trade, tier domain.ConvictionTier, current, step float64) Analysis {
	param := positionParam[tier]
	a := Analysis{
		Parameter:      param,
		Current:        current,
		Proposed:       current,
		Recommendation: domain.RecommendKeep,
	}

	var wins, losses []float64
	for _, t := range trades {
		switch {
		case t.IsWin():
			wins = append(wins, t.PnLPct)
		case t.IsFailure():
			losses = append(losses, -t.PnLPct)
		}
	}
	if len(wins)+len(losses) < MinSizingSamples || len(wins) == 0 || len(losses) == 0 {
		a.Reason = fmt.Sprintf("only %d sized samples", len(wins)+len(losses))
		return a
	}

	winRate := float64(len(wins)) / float64(len(wins)+len(losses))
	kelly := stats.KellyFraction(winRate, stats.Mean(wins), stats.Mean(losses))
	if kelly <= 0 {
		a.Recommendation = domain.RecommendDecrease
		bounds := domain.ParameterBounds[param]
		a.Proposed = stats.Clamp(current-step, bounds.Lo, bounds.Hi)
		a.Optimal = bounds.Lo
		a.Confidence = stats.Clamp(float64(len(wins)+len(losses))/50, 0, 1)
		a.Reason = "negative Kelly edge"
		return a
	}

	// Half-Kelly in SOL terms: the fraction maps onto the configured
	// size scale, tier factor damps lower-conviction entries.
	halfKelly := kelly / 2 * domain.KellyTierFactor[tier]
	bounds := domain.ParameterBounds[param]
	optimal := stats.Clamp(halfKelly*10, bounds.Lo, bounds.Hi)

	a.Optimal = optimal
	a.Proposed = stats.Clamp(stats.CapDelta(current, optimal, step), bounds.Lo, bounds.Hi)
	a.Recommendation = recommendationFor(current, a.Proposed)
	a.Confidence = stats.Clamp(float64(len(wins)+len(losses))/50, 0, 1)
	a.Reason = fmt.Sprintf("half-Kelly %.3f (win rate %.2f, tier %s)", halfKelly, winRate, tier)
	return a
}
