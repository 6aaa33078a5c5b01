package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/furrsati/OMM-BOT-sub002/internal/domain"
	"github.com/furrsati/OMM-BOT-sub002/internal/storage"
)

// MetaStore implements storage.MetaStore using PostgreSQL. Impact
// evaluations live in learning_meta, governance events in
// learning_meta_events; both are append-only.
type MetaStore struct {
	pool *Pool
}

// NewMetaStore creates a new MetaStore.
func NewMetaStore(pool *Pool) *MetaStore {
	return &MetaStore{pool: pool}
}

// Compile-time interface check.
var _ storage.MetaStore = (*MetaStore)(nil)

const evaluationColumns = `
	eval_id, adjustment_id, impact_score, classification,
	win_rate_before, win_rate_after, pf_before, pf_after,
	avg_return_before, avg_return_after, trades_before, trades_after,
	evaluated_at
`

// InsertEvaluation adds an impact evaluation. Returns ErrDuplicateKey if
// eval_id exists.
func (s *MetaStore) InsertEvaluation(ctx context.Context, e *domain.ImpactEvaluation) (err error) {
	start := time.Now()
	defer func() { observe("meta_insert_eval", start, err) }()

	if e == nil || e.EvalID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO learning_meta (` + evaluationColumns + `) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8,
			$9, $10, $11, $12,
			$13
		)
	`
	_, err = s.pool.Exec(ctx, query,
		e.EvalID, e.AdjustmentID, e.ImpactScore, e.Classification,
		e.WinRateBefore, e.WinRateAfter, e.PFBefore, e.PFAfter,
		e.AvgReturnBefore, e.AvgReturnAfter, e.TradesBefore, e.TradesAfter,
		e.EvaluatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert evaluation: %w", err)
	}
	return nil
}

// GetEvaluations retrieves up to limit evaluations, newest first.
func (s *MetaStore) GetEvaluations(ctx context.Context, limit int) (evals []*domain.ImpactEvaluation, err error) {
	start := time.Now()
	defer func() { observe("meta_get_evals", start, err) }()

	query := `
		SELECT ` + evaluationColumns + `
		FROM learning_meta
		ORDER BY evaluated_at DESC, eval_id ASC
		LIMIT $1
	`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("get evaluations: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var e domain.ImpactEvaluation
		scanErr := rows.Scan(
			&e.EvalID, &e.AdjustmentID, &e.ImpactScore, &e.Classification,
			&e.WinRateBefore, &e.WinRateAfter, &e.PFBefore, &e.PFAfter,
			&e.AvgReturnBefore, &e.AvgReturnAfter, &e.TradesBefore, &e.TradesAfter,
			&e.EvaluatedAt,
		)
		if scanErr != nil {
			return nil, fmt.Errorf("scan evaluation row: %w", scanErr)
		}
		evals = append(evals, &e)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate evaluation rows: %w", err)
	}
	return evals, nil
}

// HasEvaluation reports whether an adjustment has been evaluated.
func (s *MetaStore) HasEvaluation(ctx context.Context, adjustmentID string) (evaluated bool, err error) {
	start := time.Now()
	defer func() { observe("meta_has_eval", start, err) }()

	query := `SELECT EXISTS (SELECT 1 FROM learning_meta WHERE adjustment_id = $1)`
	err = s.pool.QueryRow(ctx, query, adjustmentID).Scan(&evaluated)
	if err != nil {
		return false, fmt.Errorf("check evaluation: %w", err)
	}
	return evaluated, nil
}

// InsertEvent adds a governance event. Returns ErrDuplicateKey if
// event_id exists.
func (s *MetaStore) InsertEvent(ctx context.Context, e *domain.MetaEvent) (err error) {
	start := time.Now()
	defer func() { observe("meta_insert_event", start, err) }()

	if e == nil || e.EventID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO learning_meta_events (event_id, type, value, detail, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err = s.pool.Exec(ctx, query, e.EventID, e.Type, e.Value, e.Detail, e.CreatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert meta event: %w", err)
	}
	return nil
}

// GetLatestEvent retrieves the newest event of a type. Returns
// ErrNotFound when none exists.
func (s *MetaStore) GetLatestEvent(ctx context.Context, typ string) (e *domain.MetaEvent, err error) {
	start := time.Now()
	defer func() { observe("meta_latest_event", start, err) }()

	query := `
		SELECT event_id, type, value, detail, created_at
		FROM learning_meta_events
		WHERE type = $1
		ORDER BY created_at DESC, event_id DESC
		LIMIT 1
	`

	var event domain.MetaEvent
	err = s.pool.QueryRow(ctx, query, typ).Scan(
		&event.EventID, &event.Type, &event.Value, &event.Detail, &event.CreatedAt,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get latest meta event: %w", err)
	}
	return &event, nil
}
