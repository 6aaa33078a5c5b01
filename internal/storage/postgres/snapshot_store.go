package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/furrsati/OMM-BOT-sub002/internal/domain"
	"github.com/furrsati/OMM-BOT-sub002/internal/storage"
)

// SnapshotStore implements storage.SnapshotStore using PostgreSQL.
// Version allocation takes an exclusive table lock so two concurrent
// writers never receive the same version.
type SnapshotStore struct {
	pool *Pool
}

// NewSnapshotStore creates a new SnapshotStore.
func NewSnapshotStore(pool *Pool) *SnapshotStore {
	return &SnapshotStore{pool: pool}
}

// Compile-time interface check.
var _ storage.SnapshotStore = (*SnapshotStore)(nil)

const snapshotColumns = `
	version,
	smart_wallet, token_safety, market_conditions, social_signals, entry_quality,
	parameters, trade_count, win_rate, profit_factor,
	origin, revert_of, created_at
`

// Insert stores a snapshot, allocating version = max(existing)+1 inside
// a transaction. The stored snapshot with its version is returned.
func (s *SnapshotStore) Insert(ctx context.Context, snap *domain.LearningSnapshot) (stored *domain.LearningSnapshot, err error) {
	start := time.Now()
	defer func() { observe("snapshot_insert", start, err) }()

	if snap == nil {
		return nil, storage.ErrInvalidInput
	}

	params, err := json.Marshal(snap.CloneParameters())
	if err != nil {
		return nil, fmt.Errorf("marshal parameters: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	// Serializes concurrent version allocation.
	if _, err = tx.Exec(ctx, `LOCK TABLE learning_snapshots IN EXCLUSIVE MODE`); err != nil {
		return nil, fmt.Errorf("lock snapshots: %w", err)
	}

	var version int64
	err = tx.QueryRow(ctx, `SELECT COALESCE(MAX(version), 0) + 1 FROM learning_snapshots`).Scan(&version)
	if err != nil {
		return nil, fmt.Errorf("allocate snapshot version: %w", err)
	}

	query := `
		INSERT INTO learning_snapshots (` + snapshotColumns + `) VALUES (
			$1,
			$2, $3, $4, $5, $6,
			$7, $8, $9, $10,
			$11, $12, $13
		)
	`
	_, err = tx.Exec(ctx, query,
		version,
		snap.Weights.SmartWallet, snap.Weights.TokenSafety, snap.Weights.MarketConditions,
		snap.Weights.SocialSignals, snap.Weights.EntryQuality,
		params, snap.TradeCount, snap.WinRate, snap.ProfitFactor,
		snap.Origin, snap.RevertOf, snap.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert snapshot: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	out := *snap
	out.Version = version
	out.Parameters = snap.CloneParameters()
	return &out, nil
}

// GetCurrent retrieves the highest-version snapshot. Returns ErrNotFound
// when no snapshot exists.
func (s *SnapshotStore) GetCurrent(ctx context.Context) (snap *domain.LearningSnapshot, err error) {
	start := time.Now()
	defer func() { observe("snapshot_current", start, err) }()

	query := `
		SELECT ` + snapshotColumns + `
		FROM learning_snapshots
		ORDER BY version DESC
		LIMIT 1
	`

	snap, err = scanSnapshot(s.pool.QueryRow(ctx, query))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get current snapshot: %w", err)
	}
	return snap, nil
}

// GetByVersion retrieves a snapshot by version. Returns ErrNotFound if
// not exists.
func (s *SnapshotStore) GetByVersion(ctx context.Context, version int64) (snap *domain.LearningSnapshot, err error) {
	start := time.Now()
	defer func() { observe("snapshot_get", start, err) }()

	query := `SELECT ` + snapshotColumns + ` FROM learning_snapshots WHERE version = $1`

	snap, err = scanSnapshot(s.pool.QueryRow(ctx, query, version))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get snapshot by version: %w", err)
	}
	return snap, nil
}

// GetRecent retrieves up to limit snapshots, newest first.
func (s *SnapshotStore) GetRecent(ctx context.Context, limit int) (snaps []*domain.LearningSnapshot, err error) {
	start := time.Now()
	defer func() { observe("snapshot_recent", start, err) }()

	query := `
		SELECT ` + snapshotColumns + `
		FROM learning_snapshots
		ORDER BY version DESC
		LIMIT $1
	`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("get recent snapshots: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		snap, scanErr := scanSnapshot(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan snapshot row: %w", scanErr)
		}
		snaps = append(snaps, snap)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshot rows: %w", err)
	}
	return snaps, nil
}

// Count returns the number of snapshots.
func (s *SnapshotStore) Count(ctx context.Context) (count int, err error) {
	start := time.Now()
	defer func() { observe("snapshot_count", start, err) }()

	err = s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM learning_snapshots`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count snapshots: %w", err)
	}
	return count, nil
}

// scanSnapshot scans a single row into a LearningSnapshot.
func scanSnapshot(row pgx.Row) (*domain.LearningSnapshot, error) {
	var snap domain.LearningSnapshot
	var params []byte

	err := row.Scan(
		&snap.Version,
		&snap.Weights.SmartWallet, &snap.Weights.TokenSafety, &snap.Weights.MarketConditions,
		&snap.Weights.SocialSignals, &snap.Weights.EntryQuality,
		&params, &snap.TradeCount, &snap.WinRate, &snap.ProfitFactor,
		&snap.Origin, &snap.RevertOf, &snap.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	snap.Parameters = make(map[string]float64)
	if len(params) > 0 {
		if err := json.Unmarshal(params, &snap.Parameters); err != nil {
			return nil, fmt.Errorf("unmarshal parameters: %w", err)
		}
	}
	return &snap, nil
}
