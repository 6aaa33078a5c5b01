package domain

// Snapshot origins.
const (
	SnapshotOriginBaseline  = "baseline"
	SnapshotOriginOptimizer = "optimizer"
	SnapshotOriginTuner     = "tuner"
	SnapshotOriginRevert    = "revert"
)

// LearningSnapshot is one immutable, versioned record of weights,
// parameters and performance at a point in time.
// Corresponds to learning_snapshots table in PostgreSQL.
// Versions are strictly increasing and snapshots are never deleted;
// "current" is always the highest version. Reverting copies an old
// snapshot forward as a new version, never rewrites history.
type LearningSnapshot struct {
	Version      int64              // allocated by the store, strictly increasing
	Weights      CategoryWeights    // percentages, sum 100
	Parameters   map[string]float64 // tunable parameter values by name
	TradeCount   int                // completed trades at creation
	WinRate      float64            // realized win rate at creation
	ProfitFactor float64            // realized profit factor at creation
	Origin       string             // baseline | optimizer | tuner | revert
	RevertOf     int64              // source version when Origin == revert, else 0
	CreatedAt    int64              // Unix timestamp in milliseconds
}

// CloneParameters returns a copy of the parameter map, never nil.
func (s *LearningSnapshot) CloneParameters() map[string]float64 {
	out := make(map[string]float64, len(s.Parameters))
	for k, v := range s.Parameters {
		out[k] = v
	}
	return out
}
