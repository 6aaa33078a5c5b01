package storage

import (
	"context"

	"github.com/furrsati/OMM-BOT-sub002/internal/domain"
)

// TradeStore provides access to trades storage.
type TradeStore interface {
	// Insert adds a new trade. Returns ErrDuplicateKey if trade_id exists.
	Insert(ctx context.Context, t *domain.Trade) error

	// GetByID retrieves a trade by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, tradeID string) (*domain.Trade, error)

	// GetRecentCompleted retrieves the most recent completed trades,
	// ordered by exit_time DESC, capped at limit.
	GetRecentCompleted(ctx context.Context, limit int) ([]*domain.Trade, error)

	// CountCompleted returns the number of completed trades.
	CountCompleted(ctx context.Context) (int, error)

	// GetCompletedBefore retrieves up to limit completed trades with
	// exit_time strictly before cutoff, most recent first.
	GetCompletedBefore(ctx context.Context, cutoffMs int64, limit int) ([]*domain.Trade, error)

	// GetCompletedAfter retrieves up to limit completed trades with
	// exit_time strictly after cutoff, oldest first.
	GetCompletedAfter(ctx context.Context, cutoffMs int64, limit int) ([]*domain.Trade, error)
}

// SnapshotStore provides access to learning_snapshots storage.
// Snapshots are append-only; Insert allocates the next version
// atomically — two concurrent writers never receive the same version.
type SnapshotStore interface {
	// Insert stores a snapshot, allocating version = max(existing)+1.
	// The stored snapshot (with version assigned) is returned.
	Insert(ctx context.Context, s *domain.LearningSnapshot) (*domain.LearningSnapshot, error)

	// GetCurrent retrieves the highest-version snapshot.
	// Returns ErrNotFound when no snapshot exists.
	GetCurrent(ctx context.Context) (*domain.LearningSnapshot, error)

	// GetByVersion retrieves a snapshot by version. Returns ErrNotFound
	// if not exists.
	GetByVersion(ctx context.Context, version int64) (*domain.LearningSnapshot, error)

	// GetRecent retrieves up to limit snapshots, newest first.
	GetRecent(ctx context.Context, limit int) ([]*domain.LearningSnapshot, error)

	// Count returns the number of snapshots.
	Count(ctx context.Context) (int, error)
}

// AdjustmentStore provides access to the weight/parameter adjustment
// audit trail (learning_weights and learning_parameters).
type AdjustmentStore interface {
	// Insert adds a new adjustment record. Returns ErrDuplicateKey if
	// adjustment_id exists.
	Insert(ctx context.Context, a *domain.Adjustment) error

	// GetByID retrieves an adjustment. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, adjustmentID string) (*domain.Adjustment, error)

	// GetCreatedBefore retrieves adjustments created strictly before
	// cutoff, oldest first. The meta-learner filters out already
	// evaluated ones via MetaStore.HasEvaluation.
	GetCreatedBefore(ctx context.Context, cutoffMs int64) ([]*domain.Adjustment, error)
}

// CycleStore provides access to learning_cycles storage.
// Cycle rows are created once as running and closed exactly once;
// closed rows are immutable.
type CycleStore interface {
	// Insert adds a new cycle row in running state. Returns
	// ErrDuplicateKey if cycle_id exists.
	Insert(ctx context.Context, c *domain.LearningCycle) error

	// Close finalizes a running cycle with its terminal status,
	// adjustment count and optional error text.
	Close(ctx context.Context, cycleID string, status domain.CycleStatus, adjustments int, errText string, finishedAtMs int64) error

	// HasRun reports whether a completed or running cycle of this type
	// exists for the given trigger count (idempotent milestones).
	HasRun(ctx context.Context, typ domain.CycleType, triggerCount int) (bool, error)

	// GetRecent retrieves up to limit cycles, newest first.
	GetRecent(ctx context.Context, limit int) ([]*domain.LearningCycle, error)
}

// MetaStore provides access to learning_meta storage: impact
// evaluations and append-only governance events.
type MetaStore interface {
	// InsertEvaluation adds an impact evaluation. Returns
	// ErrDuplicateKey if eval_id exists.
	InsertEvaluation(ctx context.Context, e *domain.ImpactEvaluation) error

	// GetEvaluations retrieves up to limit evaluations, newest first.
	GetEvaluations(ctx context.Context, limit int) ([]*domain.ImpactEvaluation, error)

	// HasEvaluation reports whether an adjustment has been evaluated.
	HasEvaluation(ctx context.Context, adjustmentID string) (bool, error)

	// InsertEvent adds a governance event. Returns ErrDuplicateKey if
	// event_id exists.
	InsertEvent(ctx context.Context, e *domain.MetaEvent) error

	// GetLatestEvent retrieves the newest event of a type.
	// Returns ErrNotFound when none exists.
	GetLatestEvent(ctx context.Context, typ string) (*domain.MetaEvent, error)
}

// PatternStore provides access to win_patterns and danger_patterns.
type PatternStore interface {
	// GetWin retrieves a win pattern by its structural key.
	// Returns ErrNotFound if not exists.
	GetWin(ctx context.Context, patternID string) (*domain.WinPattern, error)

	// UpsertWin inserts a new win pattern or replaces the counters of an
	// existing one (same pattern_id).
	UpsertWin(ctx context.Context, p *domain.WinPattern) error

	// GetDanger retrieves a danger pattern by its structural key.
	// Returns ErrNotFound if not exists.
	GetDanger(ctx context.Context, patternID string) (*domain.DangerPattern, error)

	// UpsertDanger inserts a new danger pattern or replaces the counters
	// of an existing one (same pattern_id).
	UpsertDanger(ctx context.Context, p *domain.DangerPattern) error

	// Stats returns pattern library counts.
	Stats(ctx context.Context) (*domain.PatternStats, error)
}

// FrozenStore provides access to frozen_parameters storage.
type FrozenStore interface {
	// Freeze locks a weight category or tuning parameter name.
	// Freezing an already-frozen name is a no-op.
	Freeze(ctx context.Context, f *domain.FrozenParameter) error

	// Unfreeze removes a lock. Unfreezing an unknown name is a no-op.
	Unfreeze(ctx context.Context, name string) error

	// IsFrozen reports whether a name is locked.
	IsFrozen(ctx context.Context, name string) (bool, error)

	// List retrieves all locks.
	List(ctx context.Context) ([]*domain.FrozenParameter, error)
}

// LearningMetricPoint is one analytics row written per report cycle.
// Corresponds to learning_metrics table in ClickHouse.
type LearningMetricPoint struct {
	TimestampMs    int64
	TradeCount     int
	WinRate        float64
	ProfitFactor   float64
	AvgReturnPct   float64
	WeightDrift    float64
	WinPatterns    int
	DangerPatterns int
	SnapshotCount  int
	LearningRate   float64
}

// LearningMetricStore provides access to learning_metrics analytics
// storage (append-only timeseries).
type LearningMetricStore interface {
	// Insert appends one metric point.
	Insert(ctx context.Context, p *LearningMetricPoint) error
}
