// Package stats provides the pure similarity and statistics helpers the
// learning components share: fingerprint vectorization, distance
// measures, recency decay, correlation and Kelly sizing. No state.
package stats

import (
	"math"

	"github.com/furrsati/OMM-BOT-sub002/internal/domain"
)

// VectorDim is the length of a vectorized fingerprint.
const VectorDim = 19

// Vectorize maps a fingerprint to a fixed-order numeric vector.
// Features are scaled to roughly comparable magnitudes so no single
// dimension dominates the distance measures. The order is part of the
// similarity contract and must not change between stored and queried
// fingerprints.
func Vectorize(fp *domain.TradeFingerprint) []float64 {
	if fp == nil {
		return make([]float64, VectorDim)
	}

	return []float64{
		float64(fp.SmartWallet.WalletCount),
		tierScore(fp.SmartWallet.Tiers),
		fp.TokenSafety.SafetyScore / 100.0,
		boolFeature(fp.TokenSafety.LiquidityLocked),
		math.Log10(fp.TokenSafety.LiquidityDepthSOL + 1),
		boolFeature(fp.TokenSafety.MintRevoked),
		boolFeature(fp.TokenSafety.FreezeRevoked),
		trendOrder(fp.Market.TrendDirection),
		regimeOrder(fp.Market.Regime),
		float64(fp.Market.HourOfDay) / 24.0,
		float64(fp.Market.DayOfWeek) / 7.0,
		math.Log10(float64(fp.Social.FollowerCount) + 1),
		math.Log10(float64(fp.Social.MemberCount) + 1),
		fp.Social.MentionVelocity,
		fp.EntryQuality.DipDepthPct / 100.0,
		fp.EntryQuality.DistFromHighPct / 100.0,
		math.Log10(fp.EntryQuality.TokenAgeMinutes + 1),
		fp.EntryQuality.BuySellRatio,
		fp.HypePhaseOrder() / 3.0,
	}
}

// tierScore weighs the wallet tier list: S tiers matter most.
func tierScore(tiers []string) float64 {
	score := 0.0
	for _, t := range tiers {
		switch t {
		case "S":
			score += 3
		case "A":
			score += 2
		case "B":
			score += 1
		}
	}
	return score
}

func boolFeature(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func trendOrder(trend string) float64 {
	switch trend {
	case "up":
		return 1
	case "down":
		return -1
	default:
		return 0
	}
}

func regimeOrder(regime string) float64 {
	switch regime {
	case "bull":
		return 1
	case "bear":
		return -1
	default:
		return 0
	}
}

// Cosine returns the cosine similarity of two equal-length vectors in
// [-1, 1]. Zero vectors yield 0.
func Cosine(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Euclidean returns the Euclidean distance between two equal-length
// vectors. Mismatched lengths yield +Inf.
func Euclidean(a, b []float64) float64 {
	if len(a) != len(b) {
		return math.Inf(1)
	}
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}
