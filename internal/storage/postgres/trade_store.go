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

// TradeStore implements storage.TradeStore using PostgreSQL.
// Fingerprints are stored as JSONB alongside the flat trade columns.
type TradeStore struct {
	pool *Pool
}

// NewTradeStore creates a new TradeStore.
func NewTradeStore(pool *Pool) *TradeStore {
	return &TradeStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TradeStore = (*TradeStore)(nil)

const tradeColumns = `
	trade_id, mint,
	entry_price, entry_sol, entry_time, conviction,
	exit_price, exit_time, exit_reason,
	pnl_sol, pnl_pct, fingerprint, outcome
`

// Insert adds a new trade. Returns ErrDuplicateKey if trade_id exists,
// ErrInvalidInput on nil or unkeyed trades.
func (s *TradeStore) Insert(ctx context.Context, t *domain.Trade) (err error) {
	start := time.Now()
	defer func() { observe("trade_insert", start, err) }()

	if t == nil || t.TradeID == "" {
		return storage.ErrInvalidInput
	}

	fp, err := marshalFingerprint(t.Fingerprint)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO trades (` + tradeColumns + `) VALUES (
			$1, $2,
			$3, $4, $5, $6,
			$7, $8, $9,
			$10, $11, $12, $13
		)
	`

	_, err = s.pool.Exec(ctx, query,
		t.TradeID, t.Mint,
		t.EntryPrice, t.EntrySOL, t.EntryTime, t.Conviction,
		t.ExitPrice, t.ExitTime, t.ExitReason,
		t.PnLSOL, t.PnLPct, fp, string(t.Outcome),
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert trade: %w", err)
	}
	return nil
}

// GetByID retrieves a trade by its ID. Returns ErrNotFound if not exists.
func (s *TradeStore) GetByID(ctx context.Context, tradeID string) (t *domain.Trade, err error) {
	start := time.Now()
	defer func() { observe("trade_get", start, err) }()

	query := `SELECT ` + tradeColumns + ` FROM trades WHERE trade_id = $1`

	row := s.pool.QueryRow(ctx, query, tradeID)
	t, err = scanTrade(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get trade by id: %w", err)
	}
	return t, nil
}

// GetRecentCompleted retrieves the most recent completed trades, ordered
// by exit_time DESC, capped at limit.
func (s *TradeStore) GetRecentCompleted(ctx context.Context, limit int) (trades []*domain.Trade, err error) {
	start := time.Now()
	defer func() { observe("trade_recent", start, err) }()

	query := `
		SELECT ` + tradeColumns + `
		FROM trades
		WHERE outcome <> ''
		ORDER BY exit_time DESC, trade_id ASC
		LIMIT $1
	`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("get recent completed trades: %w", err)
	}
	defer rows.Close()

	return scanTrades(rows)
}

// CountCompleted returns the number of completed trades.
func (s *TradeStore) CountCompleted(ctx context.Context) (count int, err error) {
	start := time.Now()
	defer func() { observe("trade_count", start, err) }()

	err = s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM trades WHERE outcome <> ''`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count completed trades: %w", err)
	}
	return count, nil
}

// GetCompletedBefore retrieves up to limit completed trades with
// exit_time strictly before cutoff, most recent first.
func (s *TradeStore) GetCompletedBefore(ctx context.Context, cutoffMs int64, limit int) (trades []*domain.Trade, err error) {
	start := time.Now()
	defer func() { observe("trade_before", start, err) }()

	query := `
		SELECT ` + tradeColumns + `
		FROM trades
		WHERE outcome <> '' AND exit_time < $1
		ORDER BY exit_time DESC, trade_id ASC
		LIMIT $2
	`

	rows, err := s.pool.Query(ctx, query, cutoffMs, limit)
	if err != nil {
		return nil, fmt.Errorf("get completed trades before cutoff: %w", err)
	}
	defer rows.Close()

	return scanTrades(rows)
}

// GetCompletedAfter retrieves up to limit completed trades with
// exit_time strictly after cutoff, oldest first.
func (s *TradeStore) GetCompletedAfter(ctx context.Context, cutoffMs int64, limit int) (trades []*domain.Trade, err error) {
	start := time.Now()
	defer func() { observe("trade_after", start, err) }()

	query := `
		SELECT ` + tradeColumns + `
		FROM trades
		WHERE outcome <> '' AND exit_time > $1
		ORDER BY exit_time ASC, trade_id ASC
		LIMIT $2
	`

	rows, err := s.pool.Query(ctx, query, cutoffMs, limit)
	if err != nil {
		return nil, fmt.Errorf("get completed trades after cutoff: %w", err)
	}
	defer rows.Close()

	return scanTrades(rows)
}

// marshalFingerprint serializes a fingerprint for the JSONB column.
// Nil fingerprints map to SQL NULL.
func marshalFingerprint(fp *domain.TradeFingerprint) ([]byte, error) {
	if fp == nil {
		return nil, nil
	}
	data, err := json.Marshal(fp)
	if err != nil {
		return nil, fmt.Errorf("marshal fingerprint: %w", err)
	}
	return data, nil
}

func unmarshalFingerprint(data []byte) (*domain.TradeFingerprint, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var fp domain.TradeFingerprint
	if err := json.Unmarshal(data, &fp); err != nil {
		return nil, fmt.Errorf("unmarshal fingerprint: %w", err)
	}
	return &fp, nil
}

// scanTrade scans a single row into a Trade.
func scanTrade(row pgx.Row) (*domain.Trade, error) {
	var t domain.Trade
	var fpRaw []byte
	var outcome string

	err := row.Scan(
		&t.TradeID, &t.Mint,
		&t.EntryPrice, &t.EntrySOL, &t.EntryTime, &t.Conviction,
		&t.ExitPrice, &t.ExitTime, &t.ExitReason,
		&t.PnLSOL, &t.PnLPct, &fpRaw, &outcome,
	)
	if err != nil {
		return nil, err
	}

	t.Outcome = domain.Outcome(outcome)
	if t.Fingerprint, err = unmarshalFingerprint(fpRaw); err != nil {
		return nil, err
	}
	return &t, nil
}

// scanTrades scans multiple rows into a slice of Trade.
func scanTrades(rows pgx.Rows) ([]*domain.Trade, error) {
	var trades []*domain.Trade

	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("scan trade row: %w", err)
		}
		trades = append(trades, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trade rows: %w", err)
	}

	return trades, nil
}
