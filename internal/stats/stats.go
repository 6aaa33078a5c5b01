package stats

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/furrsati/OMM-BOT-sub002/internal/domain"
)

// RecencyHalfLifeDays is the half-life of the exponential recency decay
// applied to similarity scores.
const RecencyHalfLifeDays = 30.0

// RecencyWeight returns 2^(-daysAgo/30): 1.0 for today, 0.5 at 30 days,
// 0.25 at 60 days. Negative ages are treated as today.
func RecencyWeight(daysAgo float64) float64 {
	if daysAgo < 0 {
		daysAgo = 0
	}
	return math.Exp2(-daysAgo / RecencyHalfLifeDays)
}

// Mean returns the arithmetic mean, 0 for empty input.
func Mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	return stat.Mean(xs, nil)
}

// StdDev returns the sample standard deviation, 0 for fewer than two
// samples.
func StdDev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	return stat.StdDev(xs, nil)
}

// Correlation returns the Pearson correlation of two equal-length
// samples, 0 when undefined.
func Correlation(xs, ys []float64) float64 {
	if len(xs) != len(ys) || len(xs) < 2 {
		return 0
	}
	r := stat.Correlation(xs, ys, nil)
	if math.IsNaN(r) {
		return 0
	}
	return r
}

// KellyFraction returns the full Kelly criterion fraction
// f* = (b·p − q)/b with b = avgWin/avgLoss, p = winRate, q = 1−p.
// Degenerate inputs (no losses, zero odds) return 0.
func KellyFraction(winRate, avgWinPct, avgLossPct float64) float64 {
	if avgLossPct <= 0 || avgWinPct <= 0 {
		return 0
	}
	b := avgWinPct / avgLossPct
	p := Clamp(winRate, 0, 1)
	q := 1 - p
	return (b*p - q) / b
}

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Round1 rounds to one decimal place.
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// CapDelta limits the move from current toward target to at most step
// in either direction.
func CapDelta(current, target, step float64) float64 {
	delta := target - current
	if delta > step {
		delta = step
	}
	if delta < -step {
		delta = -step
	}
	return current + delta
}

// WinRate returns the share of WIN outcomes among completed trades,
// 0 for empty input. BREAKEVEN counts in the denominator.
func WinRate(trades []*domain.Trade) float64 {
	if len(trades) == 0 {
		return 0
	}
	wins := 0
	for _, t := range trades {
		if t.IsWin() {
			wins++
		}
	}
	return float64(wins) / float64(len(trades))
}

// ProfitFactor returns gross profit divided by gross loss. No losses
// with profit present yields a capped factor of 10; no trades yields 0.
func ProfitFactor(trades []*domain.Trade) float64 {
	var grossProfit, grossLoss float64
	for _, t := range trades {
		if t.PnLSOL > 0 {
			grossProfit += t.PnLSOL
		} else {
			grossLoss += -t.PnLSOL
		}
	}
	if grossLoss == 0 {
		if grossProfit > 0 {
			return 10
		}
		return 0
	}
	return math.Min(grossProfit/grossLoss, 10)
}

// AvgReturnPct returns the mean realized percent return, 0 for empty
// input.
func AvgReturnPct(trades []*domain.Trade) float64 {
	if len(trades) == 0 {
		return 0
	}
	sum := 0.0
	for _, t := range trades {
		sum += t.PnLPct
	}
	return sum / float64(len(trades))
}
