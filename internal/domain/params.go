package domain

// Tunable parameter names.
const (
	ParamStopLossPct      = "stop_loss_pct"
	ParamTrailingStopPct  = "trailing_stop_pct"
	ParamTakeProfitPct    = "take_profit_pct"
	ParamPositionSizeHigh = "position_size_high"
	ParamPositionSizeMed  = "position_size_medium"
	ParamPositionSizeLow  = "position_size_low"
	ParamDipEntryMinPct   = "dip_entry_min_pct"
	ParamDipEntryMaxPct   = "dip_entry_max_pct"
	ParamMaxHoldHours     = "max_hold_hours"
)

// Bounds is an inclusive hard safety range for a tunable parameter.
type Bounds struct {
	Lo float64
	Hi float64
}

// ParameterBounds are the hard safety bounds. Tuner output never leaves
// these ranges regardless of the computed optimum.
var ParameterBounds = map[string]Bounds{
	ParamStopLossPct:      {12, 35},
	ParamTrailingStopPct:  {5, 20},
	ParamTakeProfitPct:    {15, 300},
	ParamPositionSizeHigh: {0.5, 5},
	ParamPositionSizeMed:  {0.5, 5},
	ParamPositionSizeLow:  {0.5, 5},
	ParamDipEntryMinPct:   {10, 50},
	ParamDipEntryMaxPct:   {10, 50},
	ParamMaxHoldHours:     {2, 8},
}

// ParameterStep is the maximum shift per tuning cycle.
var ParameterStep = map[string]float64{
	ParamStopLossPct:      2,
	ParamTrailingStopPct:  2,
	ParamTakeProfitPct:    10,
	ParamPositionSizeHigh: 2,
	ParamPositionSizeMed:  2,
	ParamPositionSizeLow:  2,
	ParamDipEntryMinPct:   2,
	ParamDipEntryMaxPct:   2,
	ParamMaxHoldHours:     2,
}

// DefaultParameters are the starting tunable values.
var DefaultParameters = map[string]float64{
	ParamStopLossPct:      25,
	ParamTrailingStopPct:  12,
	ParamTakeProfitPct:    60,
	ParamPositionSizeHigh: 2.0,
	ParamPositionSizeMed:  1.2,
	ParamPositionSizeLow:  0.6,
	ParamDipEntryMinPct:   20,
	ParamDipEntryMaxPct:   45,
	ParamMaxHoldHours:     6,
}

// ConvictionTier buckets the entry conviction score for position sizing.
type ConvictionTier string

// Conviction tiers.
const (
	TierHigh   ConvictionTier = "high"
	TierMedium ConvictionTier = "medium"
	TierLow    ConvictionTier = "low"
)

// TierFor maps a conviction score to its sizing tier.
func TierFor(conviction int) ConvictionTier {
	switch {
	case conviction >= 75:
		return TierHigh
	case conviction >= 50:
		return TierMedium
	default:
		return TierLow
	}
}

// KellyTierFactor scales the half-Kelly fraction per conviction tier.
var KellyTierFactor = map[ConvictionTier]float64{
	TierHigh:   1.0,
	TierMedium: 0.6,
	TierLow:    0.3,
}

// FrozenParameter is an operator-set lock preventing automatic
// adjustment of a weight category or tuning parameter.
// Corresponds to frozen_parameters table in PostgreSQL.
type FrozenParameter struct {
	Name     string // category or parameter name
	FrozenBy string // operator identity
	FrozenAt int64  // Unix timestamp in milliseconds
}
