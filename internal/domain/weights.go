package domain

import "math"

// Category identifies one of the five conviction-score components.
type Category string

// Scoring categories.
const (
	CategorySmartWallet      Category = "smartWallet"
	CategoryTokenSafety      Category = "tokenSafety"
	CategoryMarketConditions Category = "marketConditions"
	CategorySocialSignals    Category = "socialSignals"
	CategoryEntryQuality     Category = "entryQuality"
)

// Categories lists all scoring categories in canonical order.
var Categories = []Category{
	CategorySmartWallet,
	CategoryTokenSafety,
	CategoryMarketConditions,
	CategorySocialSignals,
	CategoryEntryQuality,
}

// Weight bounds, stored as percentages.
const (
	MinWeight = 5.0
	MaxWeight = 40.0
)

// CategoryWeights holds the five category weights as percentages.
// Invariant: each weight in [MinWeight, MaxWeight], sum == 100 after
// normalization. Consumers divide by 100 at the point of use.
type CategoryWeights struct {
	SmartWallet      float64
	TokenSafety      float64
	MarketConditions float64
	SocialSignals    float64
	EntryQuality     float64
}

// BaselineWeights are the fixed starting weights; drift is measured
// against these.
var BaselineWeights = CategoryWeights{
	SmartWallet:      25,
	TokenSafety:      20,
	MarketConditions: 20,
	SocialSignals:    15,
	EntryQuality:     20,
}

// Get returns the weight for a category.
func (w CategoryWeights) Get(c Category) float64 {
	switch c {
	case CategorySmartWallet:
		return w.SmartWallet
	case CategoryTokenSafety:
		return w.TokenSafety
	case CategoryMarketConditions:
		return w.MarketConditions
	case CategorySocialSignals:
		return w.SocialSignals
	case CategoryEntryQuality:
		return w.EntryQuality
	default:
		return 0
	}
}

// Set assigns the weight for a category.
func (w *CategoryWeights) Set(c Category, v float64) {
	switch c {
	case CategorySmartWallet:
		w.SmartWallet = v
	case CategoryTokenSafety:
		w.TokenSafety = v
	case CategoryMarketConditions:
		w.MarketConditions = v
	case CategorySocialSignals:
		w.SocialSignals = v
	case CategoryEntryQuality:
		w.EntryQuality = v
	}
}

// Sum returns the total of all five weights.
func (w CategoryWeights) Sum() float64 {
	return w.SmartWallet + w.TokenSafety + w.MarketConditions + w.SocialSignals + w.EntryQuality
}

// Normalized returns a copy scaled proportionally so the weights sum to
// exactly 100. A zero-sum input returns the baseline.
func (w CategoryWeights) Normalized() CategoryWeights {
	sum := w.Sum()
	if sum <= 0 {
		return BaselineWeights
	}
	scale := 100.0 / sum
	out := CategoryWeights{}
	for _, c := range Categories {
		out.Set(c, w.Get(c)*scale)
	}
	return out
}

// Fractions converts percentage weights to fractions for consumers.
// Legacy rows already stored as fractions (sum near 1) are tolerated and
// passed through after normalization.
func (w CategoryWeights) Fractions() CategoryWeights {
	sum := w.Sum()
	if sum > 0.5 && sum < 1.5 {
		// Already fractional; renormalize to sum 1 defensively.
		scale := 1.0 / sum
		out := CategoryWeights{}
		for _, c := range Categories {
			out.Set(c, w.Get(c)*scale)
		}
		return out
	}
	n := w.Normalized()
	out := CategoryWeights{}
	for _, c := range Categories {
		out.Set(c, n.Get(c)/100.0)
	}
	return out
}

// Valid reports whether each weight is within bounds and the sum is 100
// within rounding tolerance.
func (w CategoryWeights) Valid() bool {
	for _, c := range Categories {
		v := w.Get(c)
		if v < MinWeight-1e-9 || v > MaxWeight+1e-9 {
			return false
		}
	}
	return math.Abs(w.Sum()-100.0) <= 0.1
}

// DriftFrom returns the cumulative absolute deviation from base.
func (w CategoryWeights) DriftFrom(base CategoryWeights) float64 {
	drift := 0.0
	for _, c := range Categories {
		drift += math.Abs(w.Get(c) - base.Get(c))
	}
	return drift
}
