package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/furrsati/OMM-BOT-sub002/internal/domain"
	"github.com/furrsati/OMM-BOT-sub002/internal/storage"
)

// PatternStore implements storage.PatternStore using PostgreSQL.
// Representative fingerprints are stored as JSONB; upserts replace the
// counter columns in place.
type PatternStore struct {
	pool *Pool
}

// NewPatternStore creates a new PatternStore.
func NewPatternStore(pool *Pool) *PatternStore {
	return &PatternStore{pool: pool}
}

// Compile-time interface check.
var _ storage.PatternStore = (*PatternStore)(nil)

// GetWin retrieves a win pattern by its structural key.
func (s *PatternStore) GetWin(ctx context.Context, patternID string) (p *domain.WinPattern, err error) {
	start := time.Now()
	defer func() { observe("pattern_get_win", start, err) }()

	query := `
		SELECT pattern_id, fingerprint, occurrences, avg_return_pct, first_seen, last_seen
		FROM win_patterns
		WHERE pattern_id = $1
	`

	var out domain.WinPattern
	var fpRaw []byte
	err = s.pool.QueryRow(ctx, query, patternID).Scan(
		&out.PatternID, &fpRaw, &out.Occurrences, &out.AvgReturnPct, &out.FirstSeen, &out.LastSeen,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get win pattern: %w", err)
	}
	if err = json.Unmarshal(fpRaw, &out.Fingerprint); err != nil {
		return nil, fmt.Errorf("unmarshal win fingerprint: %w", err)
	}
	return &out, nil
}

// UpsertWin inserts a new win pattern or replaces the counters of an
// existing one.
func (s *PatternStore) UpsertWin(ctx context.Context, p *domain.WinPattern) (err error) {
	start := time.Now()
	defer func() { observe("pattern_upsert_win", start, err) }()

	if p == nil || p.PatternID == "" {
		return storage.ErrInvalidInput
	}

	fp, err := json.Marshal(p.Fingerprint)
	if err != nil {
		return fmt.Errorf("marshal win fingerprint: %w", err)
	}

	query := `
		INSERT INTO win_patterns (pattern_id, fingerprint, occurrences, avg_return_pct, first_seen, last_seen)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (pattern_id) DO UPDATE SET
			fingerprint = EXCLUDED.fingerprint,
			occurrences = EXCLUDED.occurrences,
			avg_return_pct = EXCLUDED.avg_return_pct,
			last_seen = EXCLUDED.last_seen
	`
	_, err = s.pool.Exec(ctx, query,
		p.PatternID, fp, p.Occurrences, p.AvgReturnPct, p.FirstSeen, p.LastSeen,
	)
	if err != nil {
		return fmt.Errorf("upsert win pattern: %w", err)
	}
	return nil
}

// GetDanger retrieves a danger pattern by its structural key.
func (s *PatternStore) GetDanger(ctx context.Context, patternID string) (p *domain.DangerPattern, err error) {
	start := time.Now()
	defer func() { observe("pattern_get_danger", start, err) }()

	query := `
		SELECT pattern_id, fingerprint, occurrences, confidence, first_seen, last_seen
		FROM danger_patterns
		WHERE pattern_id = $1
	`

	var out domain.DangerPattern
	var fpRaw []byte
	err = s.pool.QueryRow(ctx, query, patternID).Scan(
		&out.PatternID, &fpRaw, &out.Occurrences, &out.Confidence, &out.FirstSeen, &out.LastSeen,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get danger pattern: %w", err)
	}
	if err = json.Unmarshal(fpRaw, &out.Fingerprint); err != nil {
		return nil, fmt.Errorf("unmarshal danger fingerprint: %w", err)
	}
	return &out, nil
}

// UpsertDanger inserts a new danger pattern or replaces the counters of
// an existing one.
func (s *PatternStore) UpsertDanger(ctx context.Context, p *domain.DangerPattern) (err error) {
	start := time.Now()
	defer func() { observe("pattern_upsert_danger", start, err) }()

	if p == nil || p.PatternID == "" {
		return storage.ErrInvalidInput
	}

	fp, err := json.Marshal(p.Fingerprint)
	if err != nil {
		return fmt.Errorf("marshal danger fingerprint: %w", err)
	}

	query := `
		INSERT INTO danger_patterns (pattern_id, fingerprint, occurrences, confidence, first_seen, last_seen)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (pattern_id) DO UPDATE SET
			fingerprint = EXCLUDED.fingerprint,
			occurrences = EXCLUDED.occurrences,
			confidence = EXCLUDED.confidence,
			last_seen = EXCLUDED.last_seen
	`
	_, err = s.pool.Exec(ctx, query,
		p.PatternID, fp, p.Occurrences, p.Confidence, p.FirstSeen, p.LastSeen,
	)
	if err != nil {
		return fmt.Errorf("upsert danger pattern: %w", err)
	}
	return nil
}

// Stats returns pattern library counts.
func (s *PatternStore) Stats(ctx context.Context) (stats *domain.PatternStats, err error) {
	start := time.Now()
	defer func() { observe("pattern_stats", start, err) }()

	query := `
		SELECT
			(SELECT COUNT(*) FROM win_patterns),
			(SELECT COUNT(*) FROM danger_patterns),
			(SELECT COALESCE(SUM(occurrences), 0) FROM win_patterns) +
			(SELECT COALESCE(SUM(occurrences), 0) FROM danger_patterns)
	`

	var out domain.PatternStats
	err = s.pool.QueryRow(ctx, query).Scan(&out.WinPatterns, &out.DangerPatterns, &out.TotalOccurrences)
	if err != nil {
		return nil, fmt.Errorf("get pattern stats: %w", err)
	}
	return &out, nil
}
