package tuning

import (
	"github.com/furrsati/OMM-BOT-sub002/internal/domain"
)

// WindowInsight is an informational bucket summary for the report
// cycle: features the bot buckets on without a tunable parameter behind
// them (wallet-count threshold, token age, entry hour).
type WindowInsight struct {
	Feature   string
	Lo        float64
	Hi        float64
	WinRate   float64
	AvgReturn float64
	Samples   int
}

func insightFrom(feature string, b Bucket) WindowInsight {
	return WindowInsight{
		Feature:   feature,
		Lo:        b.Lo,
		Hi:        b.Hi,
		WinRate:   b.WinRate,
		AvgReturn: b.AvgReturn,
		Samples:   len(b.Trades),
	}
}

// BestWalletThreshold finds the smart-wallet count (integer thresholds
// 1-5) with the best outcomes, log-weighted by sample size.
func BestWalletThreshold(trades []*domain.Trade) (WindowInsight, bool) {
	feature := func(t *domain.Trade) (float64, bool) {
		if t.Fingerprint == nil {
			return 0, false
		}
		n := t.Fingerprint.SmartWallet.WalletCount
		if n < 1 {
			return 0, false
		}
		if n > 5 {
			n = 5
		}
		return float64(n), true
	}
	best, ok := BestBucket(BucketBy(trades, feature, 1), MinBucketSamples, true)
	return insightFrom("wallet_threshold", best), ok
}

// BestTokenAgeBand finds the token-age band (hourly bins) with the best
// outcomes.
func BestTokenAgeBand(trades []*domain.Trade) (WindowInsight, bool) {
	feature := func(t *domain.Trade) (float64, bool) {
		if t.Fingerprint == nil || t.Fingerprint.EntryQuality.TokenAgeMinutes <= 0 {
			return 0, false
		}
		return t.Fingerprint.EntryQuality.TokenAgeMinutes, true
	}
	best, ok := BestBucket(BucketBy(trades, feature, 60), MinBucketSamples, false)
	return insightFrom("token_age_minutes", best), ok
}

// BestEntryHour finds the UTC entry hour (0-23) with the best outcomes.
func BestEntryHour(trades []*domain.Trade) (WindowInsight, bool) {
	feature := func(t *domain.Trade) (float64, bool) {
		if t.Fingerprint == nil {
			return 0, false
		}
		return float64(t.Fingerprint.Market.HourOfDay), true
	}
	best, ok := BestBucket(BucketBy(trades, feature, 1), MinBucketSamples, false)
	return insightFrom("entry_hour", best), ok
}
