package feed

import (
	"encoding/json"

	"github.com/furrsati/OMM-BOT-sub002/internal/domain"
)

// Frame types emitted by the execution engine.
const (
	eventTradeCompleted = "trade_completed"
	eventHeartbeat      = "heartbeat"
)

type eventFrame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// tradePayload mirrors the engine's completed-trade event.
type tradePayload struct {
	TradeID    string  `json:"trade_id"`
	Mint       string  `json:"mint"`
	EntryPrice float64 `json:"entry_price"`
	EntrySOL   float64 `json:"entry_sol"`
	EntryTime  int64   `json:"entry_time"`
	Conviction int     `json:"conviction"`
	ExitPrice  float64 `json:"exit_price"`
	ExitTime   int64   `json:"exit_time"`
	ExitReason string  `json:"exit_reason"`
	PnLSOL     float64 `json:"pnl_sol"`
	PnLPct     float64 `json:"pnl_pct"`
	Outcome    string  `json:"outcome"`

	Fingerprint *fingerprintPayload `json:"fingerprint,omitempty"`
}

type fingerprintPayload struct {
	SmartWallet struct {
		WalletCount int      `json:"wallet_count"`
		Tiers       []string `json:"tiers"`
	} `json:"smart_wallet"`
	TokenSafety struct {
		SafetyScore       float64 `json:"safety_score"`
		LiquidityLocked   bool    `json:"liquidity_locked"`
		LiquidityDepthSOL float64 `json:"liquidity_depth_sol"`
		MintRevoked       bool    `json:"mint_revoked"`
		FreezeRevoked     bool    `json:"freeze_revoked"`
	} `json:"token_safety"`
	Market struct {
		ReferencePrice float64 `json:"reference_price"`
		TrendDirection string  `json:"trend_direction"`
		Regime         string  `json:"regime"`
		HourOfDay      int     `json:"hour_of_day"`
		DayOfWeek      int     `json:"day_of_week"`
	} `json:"market"`
	Social struct {
		FollowerCount   int     `json:"follower_count"`
		MemberCount     int     `json:"member_count"`
		MentionVelocity float64 `json:"mention_velocity"`
	} `json:"social"`
	EntryQuality struct {
		DipDepthPct     float64 `json:"dip_depth_pct"`
		DistFromHighPct float64 `json:"dist_from_high_pct"`
		TokenAgeMinutes float64 `json:"token_age_minutes"`
		BuySellRatio    float64 `json:"buy_sell_ratio"`
		HypePhase       string  `json:"hype_phase"`
	} `json:"entry_quality"`
}

func (p *tradePayload) toDomain() *domain.Trade {
	t := &domain.Trade{
		TradeID:    p.TradeID,
		Mint:       p.Mint,
		EntryPrice: p.EntryPrice,
		EntrySOL:   p.EntrySOL,
		EntryTime:  p.EntryTime,
		Conviction: p.Conviction,
		ExitPrice:  p.ExitPrice,
		ExitTime:   p.ExitTime,
		ExitReason: p.ExitReason,
		PnLSOL:     p.PnLSOL,
		PnLPct:     p.PnLPct,
		Outcome:    domain.Outcome(p.Outcome),
	}
	if p.Fingerprint != nil {
		t.Fingerprint = p.Fingerprint.toDomain()
	}
	return t
}

func (p *fingerprintPayload) toDomain() *domain.TradeFingerprint {
	return &domain.TradeFingerprint{
		SmartWallet: domain.SmartWalletSignal{
			WalletCount: p.SmartWallet.WalletCount,
			Tiers:       p.SmartWallet.Tiers,
		},
		TokenSafety: domain.TokenSafetySignal{
			SafetyScore:       p.TokenSafety.SafetyScore,
			LiquidityLocked:   p.TokenSafety.LiquidityLocked,
			LiquidityDepthSOL: p.TokenSafety.LiquidityDepthSOL,
			MintRevoked:       p.TokenSafety.MintRevoked,
			FreezeRevoked:     p.TokenSafety.FreezeRevoked,
		},
		Market: domain.MarketConditionSignal{
			ReferencePrice: p.Market.ReferencePrice,
			TrendDirection: p.Market.TrendDirection,
			Regime:         p.Market.Regime,
			HourOfDay:      p.Market.HourOfDay,
			DayOfWeek:      p.Market.DayOfWeek,
		},
		Social: domain.SocialSignal{
			FollowerCount:   p.Social.FollowerCount,
			MemberCount:     p.Social.MemberCount,
			MentionVelocity: p.Social.MentionVelocity,
		},
		EntryQuality: domain.EntryQualitySignal{
			DipDepthPct:     p.EntryQuality.DipDepthPct,
			DistFromHighPct: p.EntryQuality.DistFromHighPct,
			TokenAgeMinutes: p.EntryQuality.TokenAgeMinutes,
			BuySellRatio:    p.EntryQuality.BuySellRatio,
			HypePhase:       domain.HypePhase(p.EntryQuality.HypePhase),
		},
	}
}
