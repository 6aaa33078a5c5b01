package idhash

import (
	"crypto/sha256"
	"fmt"

	"github.com/mr-tron/base58"

	"github.com/furrsati/OMM-BOT-sub002/internal/domain"
)

// ComputePatternID computes the structural containment key for the
// pattern libraries. Fingerprint fields are coarsened into buckets so
// that trades with the same shape collapse onto one library entry.
// Formula: base58(SHA256(bucketed fields)).
//
// This is deliberately coarser than the cosine similarity used for
// trade lookup: libraries deduplicate by exact shape, lookup ranks by
// fine-grained distance.
func ComputePatternID(fp *domain.TradeFingerprint) string {
	if fp == nil {
		return ""
	}

	data := fmt.Sprintf("%d|%s|%d|%t|%t|%t|%s|%s|%d|%d|%s",
		bucketWalletCount(fp.SmartWallet.WalletCount),
		topTier(fp.SmartWallet.Tiers),
		bucketScore(fp.TokenSafety.SafetyScore),
		fp.TokenSafety.LiquidityLocked,
		fp.TokenSafety.MintRevoked,
		fp.TokenSafety.FreezeRevoked,
		fp.Market.Regime,
		fp.Market.TrendDirection,
		bucketPct(fp.EntryQuality.DipDepthPct),
		bucketAge(fp.EntryQuality.TokenAgeMinutes),
		fp.EntryQuality.HypePhase,
	)

	hash := sha256.Sum256([]byte(data))
	return base58.Encode(hash[:])
}

// bucketWalletCount collapses wallet counts: 0, 1, 2, 3-4, 5+.
func bucketWalletCount(n int) int {
	switch {
	case n >= 5:
		return 5
	case n >= 3:
		return 3
	default:
		return n
	}
}

// topTier returns the highest tier present, S > A > B.
func topTier(tiers []string) string {
	best := ""
	for _, t := range tiers {
		switch t {
		case "S":
			return "S"
		case "A":
			best = "A"
		case "B":
			if best == "" {
				best = "B"
			}
		}
	}
	return best
}

// bucketScore collapses a 0-100 score into deciles.
func bucketScore(s float64) int {
	if s < 0 {
		return 0
	}
	if s > 100 {
		return 10
	}
	return int(s / 10)
}

// bucketPct collapses a percentage into 10-point buckets.
func bucketPct(p float64) int {
	if p < 0 {
		return 0
	}
	return int(p / 10)
}

// bucketAge collapses token age into launch / early / young / mature.
func bucketAge(minutes float64) int {
	switch {
	case minutes < 30:
		return 0
	case minutes < 180:
		return 1
	case minutes < 1440:
		return 2
	default:
		return 3
	}
}

// ShortPatternID returns a truncated pattern ID for log output.
func ShortPatternID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
