// Package tuning implements the parameter tuner: outcome bucketing per
// tunable parameter, tight-stop analysis for stops, half-Kelly position
// sizing, and bounded, clamped shifts persisted as adjustments.
package tuning

import (
	"math"
	"sort"

	"github.com/furrsati/OMM-BOT-sub002/internal/domain"
	"github.com/furrsati/OMM-BOT-sub002/internal/stats"
)

// Bucket groups trades whose feature value falls in [Lo, Hi).
type Bucket struct {
	Lo        float64
	Hi        float64
	Trades    []*domain.Trade
	WinRate   float64
	AvgReturn float64
	Score     float64
}

// FeatureFunc extracts the bucketing feature from a trade. The second
// return is false when the trade lacks the feature (skipped from the
// batch, never aborts the analysis).
type FeatureFunc func(*domain.Trade) (float64, bool)

// BucketBy groups trades into fixed-width bins of the feature and
// computes per-bucket win rate, average return and score
// winRate × max(0, avgReturn). Buckets come back ordered by Lo.
func BucketBy(trades []*domain.Trade, feature FeatureFunc, width float64) []Bucket {
	if width <= 0 {
		return nil
	}

	byBin := make(map[int][]*domain.Trade)
	for _, t := range trades {
		v, ok := feature(t)
		if !ok {
			continue
		}
		bin := int(math.Floor(v / width))
		byBin[bin] = append(byBin[bin], t)
	}

	buckets := make([]Bucket, 0, len(byBin))
	for bin, members := range byBin {
		b := Bucket{
			Lo:        float64(bin) * width,
			Hi:        float64(bin+1) * width,
			Trades:    members,
			WinRate:   stats.WinRate(members),
			AvgReturn: stats.AvgReturnPct(members),
		}
		b.Score = b.WinRate * math.Max(0, b.AvgReturn)
		buckets = append(buckets, b)
	}

	sort.Slice(buckets, func(i, j int) bool {
		return buckets[i].Lo < buckets[j].Lo
	})
	return buckets
}

// BestBucket returns the best-scoring bucket holding at least minSamples
// trades. With logWeighted set, scores are weighted by ln(n+1) so that
// thinly populated buckets do not win on a single lucky trade.
func BestBucket(buckets []Bucket, minSamples int, logWeighted bool) (Bucket, bool) {
	var best Bucket
	found := false
	bestScore := 0.0

	for _, b := range buckets {
		if len(b.Trades) < minSamples {
			continue
		}
		score := b.Score
		if logWeighted {
			score *= math.Log(float64(len(b.Trades)) + 1)
		}
		if !found || score > bestScore {
			best = b
			bestScore = score
			found = true
		}
	}
	return best, found
}
