// Package weights implements the category-weight optimizer: per-category
// predictive-power analysis over win/loss samples and bounded,
// normalized weight updates persisted as new snapshots.
package weights

import (
	"github.com/furrsati/OMM-BOT-sub002/internal/domain"
	"github.com/furrsati/OMM-BOT-sub002/internal/stats"
)

// ScoreFunc maps a fingerprint to a bounded 0-100 category score.
type ScoreFunc func(fp *domain.TradeFingerprint) float64

// CategoryScorers is the strategy table of per-category scoring
// functions used for predictive-power analysis.
var CategoryScorers = map[domain.Category]ScoreFunc{
	domain.CategorySmartWallet:      scoreSmartWallet,
	domain.CategoryTokenSafety:      scoreTokenSafety,
	domain.CategoryMarketConditions: scoreMarketConditions,
	domain.CategorySocialSignals:    scoreSocialSignals,
	domain.CategoryEntryQuality:     scoreEntryQuality,
}

// scoreSmartWallet rewards wallet count plus a tier bonus: each S wallet
// is worth three B wallets.
func scoreSmartWallet(fp *domain.TradeFingerprint) float64 {
	score := float64(fp.SmartWallet.WalletCount) * 12
	for _, tier := range fp.SmartWallet.Tiers {
		switch tier {
		case "S":
			score += 12
		case "A":
			score += 8
		case "B":
			score += 4
		}
	}
	return stats.Clamp(score, 0, 100)
}

// scoreTokenSafety passes the pipeline's composite score through, with a
// small bump for revoked authorities and locked liquidity.
func scoreTokenSafety(fp *domain.TradeFingerprint) float64 {
	score := fp.TokenSafety.SafetyScore
	if fp.TokenSafety.LiquidityLocked {
		score += 5
	}
	if fp.TokenSafety.MintRevoked {
		score += 5
	}
	if fp.TokenSafety.FreezeRevoked {
		score += 5
	}
	return stats.Clamp(score, 0, 100)
}

// scoreMarketConditions composes regime and trend into one number:
// bull/up is the best environment, bear/down the worst.
func scoreMarketConditions(fp *domain.TradeFingerprint) float64 {
	score := 50.0
	switch fp.Market.Regime {
	case "bull":
		score += 25
	case "bear":
		score -= 25
	}
	switch fp.Market.TrendDirection {
	case "up":
		score += 25
	case "down":
		score -= 25
	}
	return stats.Clamp(score, 0, 100)
}

// scoreSocialSignals normalizes follower count, member count and mention
// velocity onto saturating 0-100 scales and averages them.
func scoreSocialSignals(fp *domain.TradeFingerprint) float64 {
	followers := stats.Clamp(float64(fp.Social.FollowerCount)/100, 0, 100)
	members := stats.Clamp(float64(fp.Social.MemberCount)/50, 0, 100)
	velocity := stats.Clamp(fp.Social.MentionVelocity*10, 0, 100)
	return (followers + members + velocity) / 3
}

// scoreEntryQuality composes dip depth, distance from the high and hype
// phase. Deep dips far from the high, caught before the peak, score
// highest.
func scoreEntryQuality(fp *domain.TradeFingerprint) float64 {
	dip := stats.Clamp(fp.EntryQuality.DipDepthPct*2, 0, 100)
	dist := stats.Clamp(fp.EntryQuality.DistFromHighPct, 0, 100)

	var phase float64
	switch fp.EntryQuality.HypePhase {
	case domain.HypeEmerging:
		phase = 100
	case domain.HypeAccelerating:
		phase = 75
	case domain.HypePeak:
		phase = 25
	case domain.HypeCooling:
		phase = 0
	default:
		phase = 25
	}

	return (dip + dist + phase) / 3
}
