package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/furrsati/OMM-BOT-sub002/internal/domain"
	"github.com/furrsati/OMM-BOT-sub002/internal/storage"
)

// AdjustmentStore implements storage.AdjustmentStore using PostgreSQL.
// Weight adjustments live in learning_weights, parameter adjustments in
// learning_parameters; the two tables share one audit-row shape.
type AdjustmentStore struct {
	pool *Pool
}

// NewAdjustmentStore creates a new AdjustmentStore.
func NewAdjustmentStore(pool *Pool) *AdjustmentStore {
	return &AdjustmentStore{pool: pool}
}

// Compile-time interface check.
var _ storage.AdjustmentStore = (*AdjustmentStore)(nil)

const adjustmentColumns = `
	adjustment_id, name, old_value, new_value,
	recommendation, confidence, reason, cycle_id, created_at
`

func adjustmentTable(kind string) (string, error) {
	switch kind {
	case domain.AdjustmentKindWeight:
		return "learning_weights", nil
	case domain.AdjustmentKindParameter:
		return "learning_parameters", nil
	default:
		return "", storage.ErrInvalidInput
	}
}

// Insert adds a new adjustment record. Returns ErrDuplicateKey if
// adjustment_id exists.
func (s *AdjustmentStore) Insert(ctx context.Context, a *domain.Adjustment) (err error) {
	start := time.Now()
	defer func() { observe("adjustment_insert", start, err) }()

	if a == nil || a.AdjustmentID == "" {
		return storage.ErrInvalidInput
	}
	table, err := adjustmentTable(a.Kind)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO ` + table + ` (` + adjustmentColumns + `) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8, $9
		)
	`
	_, err = s.pool.Exec(ctx, query,
		a.AdjustmentID, a.Name, a.OldValue, a.NewValue,
		a.Recommendation, a.Confidence, a.Reason, a.CycleID, a.CreatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert adjustment: %w", err)
	}
	return nil
}

// GetByID retrieves an adjustment. Returns ErrNotFound if not exists.
func (s *AdjustmentStore) GetByID(ctx context.Context, adjustmentID string) (a *domain.Adjustment, err error) {
	start := time.Now()
	defer func() { observe("adjustment_get", start, err) }()

	query := `
		SELECT 'weight' AS kind, ` + adjustmentColumns + ` FROM learning_weights WHERE adjustment_id = $1
		UNION ALL
		SELECT 'parameter' AS kind, ` + adjustmentColumns + ` FROM learning_parameters WHERE adjustment_id = $1
		LIMIT 1
	`

	a, err = scanAdjustment(s.pool.QueryRow(ctx, query, adjustmentID))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get adjustment by id: %w", err)
	}
	return a, nil
}

// GetCreatedBefore retrieves adjustments of both kinds created strictly
// before cutoff, oldest first.
func (s *AdjustmentStore) GetCreatedBefore(ctx context.Context, cutoffMs int64) (adjustments []*domain.Adjustment, err error) {
	start := time.Now()
	defer func() { observe("adjustment_before", start, err) }()

	query := `
		SELECT kind, adjustment_id, name, old_value, new_value,
		       recommendation, confidence, reason, cycle_id, created_at
		FROM (
			SELECT 'weight' AS kind, ` + adjustmentColumns + ` FROM learning_weights
			UNION ALL
			SELECT 'parameter' AS kind, ` + adjustmentColumns + ` FROM learning_parameters
		) combined
		WHERE created_at < $1
		ORDER BY created_at ASC, adjustment_id ASC
	`

	rows, err := s.pool.Query(ctx, query, cutoffMs)
	if err != nil {
		return nil, fmt.Errorf("get adjustments before cutoff: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		a, scanErr := scanAdjustment(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan adjustment row: %w", scanErr)
		}
		adjustments = append(adjustments, a)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate adjustment rows: %w", err)
	}
	return adjustments, nil
}

// scanAdjustment scans a single row (kind column first) into an
// Adjustment.
func scanAdjustment(row pgx.Row) (*domain.Adjustment, error) {
	var a domain.Adjustment
	err := row.Scan(
		&a.Kind, &a.AdjustmentID, &a.Name, &a.OldValue, &a.NewValue,
		&a.Recommendation, &a.Confidence, &a.Reason, &a.CycleID, &a.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}
