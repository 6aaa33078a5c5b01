package domain

// Outcome is the terminal classification of a completed trade.
type Outcome string

// Trade outcome classes.
const (
	OutcomeWin       Outcome = "WIN"
	OutcomeLoss      Outcome = "LOSS"
	OutcomeRug       Outcome = "RUG"
	OutcomeBreakeven Outcome = "BREAKEVEN"
)

// Exit reason codes.
const (
	ExitReasonStopLoss     = "STOP_LOSS"
	ExitReasonTrailingStop = "TRAILING_STOP"
	ExitReasonTakeProfit   = "TAKE_PROFIT"
	ExitReasonTimeStop     = "TIME_STOP"
	ExitReasonRugPull      = "RUG_PULL"
	ExitReasonManual       = "MANUAL"
)

// Trade represents one position from entry to exit.
// Corresponds to trades table in PostgreSQL.
// Outcome is empty until the trade completes; only completed trades
// participate in learning.
type Trade struct {
	TradeID string // PRIMARY KEY, deterministic hash
	Mint    string // token mint address

	// Entry
	EntryPrice float64 // price at entry
	EntrySOL   float64 // position size in SOL
	EntryTime  int64   // Unix timestamp in milliseconds
	Conviction int     // conviction score at entry (0-100)

	// Exit (zero until completed)
	ExitPrice  float64 // price at exit
	ExitTime   int64   // Unix timestamp in milliseconds
	ExitReason string  // reason code

	// Realized P&L
	PnLSOL float64 // absolute, in SOL
	PnLPct float64 // percent of entry value

	Fingerprint *TradeFingerprint // entry-time snapshot, write-once
	Outcome     Outcome           // empty while open
}

// Completed reports whether the trade has a terminal outcome.
func (t *Trade) Completed() bool {
	return t.Outcome != ""
}

// IsWin reports whether the trade closed as a win.
func (t *Trade) IsWin() bool {
	return t.Outcome == OutcomeWin
}

// IsFailure reports whether the trade counts against the strategy
// (LOSS or RUG). BREAKEVEN is neither a win nor a failure.
func (t *Trade) IsFailure() bool {
	return t.Outcome == OutcomeLoss || t.Outcome == OutcomeRug
}

// HoldDurationHours returns the holding time in hours, 0 for open trades.
func (t *Trade) HoldDurationHours() float64 {
	if t.ExitTime == 0 || t.ExitTime < t.EntryTime {
		return 0
	}
	return float64(t.ExitTime-t.EntryTime) / 3_600_000.0
}
