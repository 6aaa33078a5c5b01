package domain

// Adjustment kinds.
const (
	AdjustmentKindWeight    = "weight"
	AdjustmentKindParameter = "parameter"
)

// Tuner recommendations.
const (
	RecommendIncrease = "increase"
	RecommendDecrease = "decrease"
	RecommendKeep     = "keep"
)

// Adjustment is one accepted weight or parameter change, kept as an
// immutable audit row. Weight adjustments correspond to learning_weights
// rows, parameter adjustments to learning_parameters rows in PostgreSQL.
type Adjustment struct {
	AdjustmentID   string  // PRIMARY KEY, uuid
	Kind           string  // weight | parameter
	Name           string  // category name or parameter name
	OldValue       float64 // value before the change
	NewValue       float64 // value after the change
	Recommendation string  // increase | decrease | keep
	Confidence     float64 // 0-1 analysis confidence
	Reason         string  // short human-readable rationale
	CycleID        string  // learning cycle that produced the change
	CreatedAt      int64   // Unix timestamp in milliseconds
}

// Impact classifications.
const (
	ImpactImproved = "improved"
	ImpactNeutral  = "neutral"
	ImpactDegraded = "degraded"
)

// ImpactEvaluation is the meta-learner's verdict on one adjustment,
// comparing performance strictly before and after the change.
// Corresponds to learning_meta table (evaluation rows) in PostgreSQL.
// Evaluations are append-only: an adjustment is evaluated at most once.
type ImpactEvaluation struct {
	EvalID          string  // PRIMARY KEY, uuid
	AdjustmentID    string  // evaluated adjustment
	ImpactScore     float64 // weighted delta score
	Classification  string  // improved | neutral | degraded
	WinRateBefore   float64
	WinRateAfter    float64
	PFBefore        float64 // profit factor before
	PFAfter         float64 // profit factor after
	AvgReturnBefore float64
	AvgReturnAfter  float64
	TradesBefore    int // sample size before the change
	TradesAfter     int // sample size after the change
	EvaluatedAt     int64
}

// Meta event types.
const (
	MetaEventReversion    = "reversion"
	MetaEventLearningRate = "learning_rate"
)

// MetaEvent is an append-only governance record (reversions,
// learning-rate changes). The current learning-rate multiplier is the
// value of the latest learning_rate event, 1.0 when none exists.
type MetaEvent struct {
	EventID   string  // PRIMARY KEY, uuid
	Type      string  // reversion | learning_rate
	Value     float64 // multiplier for learning_rate, target version for reversion
	Detail    string  // human-readable context
	CreatedAt int64
}

// Health levels.
const (
	HealthGood     = "good"
	HealthWarning  = "warning"
	HealthCritical = "critical"
)

// HealthStatus aggregates learning-system health for status consumers.
type HealthStatus struct {
	Level               string  // good | warning | critical
	ConsecutiveFailures int     // consecutive degraded evaluations
	ImprovementRate     float64 // share of recent evaluations improved
	WeightDrift         float64 // sum |current - baseline| across categories
	LearningRate        float64 // current multiplier
	Recommendation      string  // operator-facing advice
}
