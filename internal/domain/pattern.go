package domain

// Pattern library thresholds.
const (
	// WinPatternMinReturnPct qualifies a WIN for the win library.
	WinPatternMinReturnPct = 10.0
	// DangerPatternMaxReturnPct qualifies a LOSS for the danger library.
	DangerPatternMaxReturnPct = -20.0
	// DangerConfidenceStep is added per qualifying occurrence.
	DangerConfidenceStep = 10.0
	// DangerConfidenceCap bounds the danger confidence score.
	DangerConfidenceCap = 100.0
)

// WinPattern is a fingerprint shape that has repeatedly preceded strong
// wins. Corresponds to win_patterns table in PostgreSQL.
// Entries are mutated incrementally (occurrence count, rolling average)
// and never deleted except by explicit administrative reset.
type WinPattern struct {
	PatternID    string           // structural containment key, base58
	Fingerprint  TradeFingerprint // representative fingerprint
	Occurrences  int              // qualifying trades matched
	AvgReturnPct float64          // rolling average return of matches
	FirstSeen    int64            // Unix timestamp in milliseconds
	LastSeen     int64            // Unix timestamp in milliseconds
}

// DangerPattern is a fingerprint shape that has preceded rugs or deep
// losses. Corresponds to danger_patterns table in PostgreSQL.
type DangerPattern struct {
	PatternID   string           // structural containment key, base58
	Fingerprint TradeFingerprint // representative fingerprint
	Occurrences int              // qualifying trades matched
	Confidence  float64          // 0-100, stepped up per occurrence
	FirstSeen   int64            // Unix timestamp in milliseconds
	LastSeen    int64            // Unix timestamp in milliseconds
}

// PatternStats summarizes the pattern libraries for status consumers.
type PatternStats struct {
	WinPatterns      int
	DangerPatterns   int
	TotalOccurrences int
}
