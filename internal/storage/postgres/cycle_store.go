package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/furrsati/OMM-BOT-sub002/internal/domain"
	"github.com/furrsati/OMM-BOT-sub002/internal/storage"
)

// CycleStore implements storage.CycleStore using PostgreSQL.
type CycleStore struct {
	pool *Pool
}

// NewCycleStore creates a new CycleStore.
func NewCycleStore(pool *Pool) *CycleStore {
	return &CycleStore{pool: pool}
}

// Compile-time interface check.
var _ storage.CycleStore = (*CycleStore)(nil)

const cycleColumns = `
	cycle_id, type, trigger_count, status,
	started_at, finished_at, adjustments, error
`

// Insert adds a new cycle row in running state.
func (s *CycleStore) Insert(ctx context.Context, c *domain.LearningCycle) (err error) {
	start := time.Now()
	defer func() { observe("cycle_insert", start, err) }()

	if c == nil || c.CycleID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO learning_cycles (` + cycleColumns + `) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8
		)
	`
	_, err = s.pool.Exec(ctx, query,
		c.CycleID, string(c.Type), c.TriggerCount, string(c.Status),
		c.StartedAt, c.FinishedAt, c.Adjustments, c.Error,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert cycle: %w", err)
	}
	return nil
}

// Close finalizes a running cycle. Closing an unknown or already closed
// cycle returns ErrNotFound; closed rows are immutable.
func (s *CycleStore) Close(ctx context.Context, cycleID string, status domain.CycleStatus, adjustments int, errText string, finishedAtMs int64) (err error) {
	start := time.Now()
	defer func() { observe("cycle_close", start, err) }()

	query := `
		UPDATE learning_cycles
		SET status = $2, adjustments = $3, error = $4, finished_at = $5
		WHERE cycle_id = $1 AND status = $6
	`
	tag, err := s.pool.Exec(ctx, query,
		cycleID, string(status), adjustments, errText, finishedAtMs, string(domain.CycleRunning),
	)
	if err != nil {
		return fmt.Errorf("close cycle: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// HasRun reports whether a cycle of this type exists for the trigger
// count.
func (s *CycleStore) HasRun(ctx context.Context, typ domain.CycleType, triggerCount int) (ran bool, err error) {
	start := time.Now()
	defer func() { observe("cycle_has_run", start, err) }()

	query := `
		SELECT EXISTS (
			SELECT 1 FROM learning_cycles
			WHERE type = $1 AND trigger_count = $2
		)
	`
	err = s.pool.QueryRow(ctx, query, string(typ), triggerCount).Scan(&ran)
	if err != nil {
		return false, fmt.Errorf("check cycle milestone: %w", err)
	}
	return ran, nil
}

// GetRecent retrieves up to limit cycles, newest first. A non-positive
// limit returns all rows.
func (s *CycleStore) GetRecent(ctx context.Context, limit int) (cycles []*domain.LearningCycle, err error) {
	start := time.Now()
	defer func() { observe("cycle_recent", start, err) }()

	query := `
		SELECT ` + cycleColumns + `
		FROM learning_cycles
		ORDER BY started_at DESC, cycle_id ASC
	`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("get recent cycles: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		c, scanErr := scanCycle(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan cycle row: %w", scanErr)
		}
		cycles = append(cycles, c)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cycle rows: %w", err)
	}
	return cycles, nil
}

// scanCycle scans a single row into a LearningCycle.
func scanCycle(row pgx.Row) (*domain.LearningCycle, error) {
	var c domain.LearningCycle
	var typ, status string

	err := row.Scan(
		&c.CycleID, &typ, &c.TriggerCount, &status,
		&c.StartedAt, &c.FinishedAt, &c.Adjustments, &c.Error,
	)
	if err != nil {
		return nil, err
	}

	c.Type = domain.CycleType(typ)
	c.Status = domain.CycleStatus(status)
	return &c, nil
}
