package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/furrsati/OMM-BOT-sub002/internal/domain"
	"github.com/furrsati/OMM-BOT-sub002/internal/storage"
)

// FrozenStore implements storage.FrozenStore using PostgreSQL.
type FrozenStore struct {
	pool *Pool
}

// NewFrozenStore creates a new FrozenStore.
func NewFrozenStore(pool *Pool) *FrozenStore {
	return &FrozenStore{pool: pool}
}

// Compile-time interface check.
var _ storage.FrozenStore = (*FrozenStore)(nil)

// Freeze locks a name. Freezing an already-frozen name is a no-op that
// preserves the original lock.
func (s *FrozenStore) Freeze(ctx context.Context, f *domain.FrozenParameter) (err error) {
	start := time.Now()
	defer func() { observe("frozen_freeze", start, err) }()

	if f == nil || f.Name == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO frozen_parameters (name, frozen_by, frozen_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (name) DO NOTHING
	`
	_, err = s.pool.Exec(ctx, query, f.Name, f.FrozenBy, f.FrozenAt)
	if err != nil {
		return fmt.Errorf("freeze parameter: %w", err)
	}
	return nil
}

// Unfreeze removes a lock. Unfreezing an unknown name is a no-op.
func (s *FrozenStore) Unfreeze(ctx context.Context, name string) (err error) {
	start := time.Now()
	defer func() { observe("frozen_unfreeze", start, err) }()

	_, err = s.pool.Exec(ctx, `DELETE FROM frozen_parameters WHERE name = $1`, name)
	if err != nil {
		return fmt.Errorf("unfreeze parameter: %w", err)
	}
	return nil
}

// IsFrozen reports whether a name is locked.
func (s *FrozenStore) IsFrozen(ctx context.Context, name string) (frozen bool, err error) {
	start := time.Now()
	defer func() { observe("frozen_check", start, err) }()

	query := `SELECT EXISTS (SELECT 1 FROM frozen_parameters WHERE name = $1)`
	err = s.pool.QueryRow(ctx, query, name).Scan(&frozen)
	if err != nil {
		return false, fmt.Errorf("check frozen parameter: %w", err)
	}
	return frozen, nil
}

// List retrieves all locks, ordered by name.
func (s *FrozenStore) List(ctx context.Context) (locks []*domain.FrozenParameter, err error) {
	start := time.Now()
	defer func() { observe("frozen_list", start, err) }()

	query := `SELECT name, frozen_by, frozen_at FROM frozen_parameters ORDER BY name ASC`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list frozen parameters: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var f domain.FrozenParameter
		if scanErr := rows.Scan(&f.Name, &f.FrozenBy, &f.FrozenAt); scanErr != nil {
			return nil, fmt.Errorf("scan frozen parameter row: %w", scanErr)
		}
		locks = append(locks, &f)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate frozen parameter rows: %w", err)
	}
	return locks, nil
}
