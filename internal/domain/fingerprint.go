package domain

// HypePhase classifies where a token sits in its attention cycle at entry.
type HypePhase string

// Hype phases, roughly chronological.
const (
	HypeEmerging     HypePhase = "EMERGING"
	HypeAccelerating HypePhase = "ACCELERATING"
	HypePeak         HypePhase = "PEAK"
	HypeCooling      HypePhase = "COOLING"
)

// SmartWalletSignal captures smart-money activity at entry.
type SmartWalletSignal struct {
	WalletCount int      // number of tracked wallets holding
	Tiers       []string // tier label per wallet ("S", "A", "B")
}

// TokenSafetySignal captures contract/liquidity safety at entry.
type TokenSafetySignal struct {
	SafetyScore       float64 // composite 0-100 from the safety pipeline
	LiquidityLocked   bool    // LP tokens locked or burned
	LiquidityDepthSOL float64 // pool depth in SOL
	MintRevoked       bool    // mint authority revoked
	FreezeRevoked     bool    // freeze authority revoked
}

// MarketConditionSignal captures the broader market at entry.
type MarketConditionSignal struct {
	ReferencePrice float64 // SOL/USD reference at entry
	TrendDirection string  // "up" | "down" | "sideways"
	Regime         string  // "bull" | "bear" | "crab"
	HourOfDay      int     // 0-23 UTC
	DayOfWeek      int     // 0=Sunday
}

// SocialSignal captures social attention at entry.
type SocialSignal struct {
	FollowerCount   int     // X followers
	MemberCount     int     // Telegram members
	MentionVelocity float64 // mentions per minute
}

// EntryQualitySignal captures how good the entry itself looked.
type EntryQualitySignal struct {
	DipDepthPct     float64   // drawdown from local high bought into
	DistFromHighPct float64   // distance from all-time high
	TokenAgeMinutes float64   // minutes since first liquidity
	BuySellRatio    float64   // buys/sells over the entry window
	HypePhase       HypePhase // attention-cycle phase
}

// TradeFingerprint is the immutable entry-time snapshot used for
// similarity search and per-category scoring. Created once per trade at
// entry and never mutated afterwards; owned by the Trade record.
type TradeFingerprint struct {
	SmartWallet  SmartWalletSignal
	TokenSafety  TokenSafetySignal
	Market       MarketConditionSignal
	Social       SocialSignal
	EntryQuality EntryQualitySignal
}

// hypePhaseOrder gives each phase a stable numeric position for
// vectorization. Unknown phases map to the peak (most conservative).
func hypePhaseOrder(p HypePhase) float64 {
	switch p {
	case HypeEmerging:
		return 0
	case HypeAccelerating:
		return 1
	case HypePeak:
		return 2
	case HypeCooling:
		return 3
	default:
		return 2
	}
}

// HypePhaseOrder exposes the stable ordering for vectorization.
func (f *TradeFingerprint) HypePhaseOrder() float64 {
	return hypePhaseOrder(f.EntryQuality.HypePhase)
}
