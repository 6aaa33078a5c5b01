package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/furrsati/OMM-BOT-sub002/internal/observability"
	"github.com/furrsati/OMM-BOT-sub002/internal/storage"
)

// LearningMetricStore implements storage.LearningMetricStore using
// ClickHouse. The learning_metrics table is an append-only timeseries;
// one row is written per report cycle.
type LearningMetricStore struct {
	conn *Conn
}

// NewLearningMetricStore creates a new LearningMetricStore.
func NewLearningMetricStore(conn *Conn) *LearningMetricStore {
	return &LearningMetricStore{conn: conn}
}

// Compile-time interface check.
var _ storage.LearningMetricStore = (*LearningMetricStore)(nil)

// Insert appends one metric point.
func (s *LearningMetricStore) Insert(ctx context.Context, p *storage.LearningMetricPoint) (err error) {
	start := time.Now()
	defer func() {
		observability.RecordDBQuery("clickhouse", "metric_insert", time.Since(start).Seconds(), err)
	}()

	if p == nil {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO learning_metrics (
			timestamp_ms, trade_count, win_rate, profit_factor, avg_return_pct,
			weight_drift, win_patterns, danger_patterns, snapshot_count, learning_rate
		) VALUES (
			?, ?, ?, ?, ?,
			?, ?, ?, ?, ?
		)
	`

	err = s.conn.Exec(ctx, query,
		p.TimestampMs, int32(p.TradeCount), p.WinRate, p.ProfitFactor, p.AvgReturnPct,
		p.WeightDrift, int32(p.WinPatterns), int32(p.DangerPatterns), int32(p.SnapshotCount), p.LearningRate,
	)
	if err != nil {
		return fmt.Errorf("insert learning metric: %w", err)
	}
	return nil
}

// GetSince retrieves metric points at or after fromMs, oldest first.
// Used by dashboards to chart learning progress over time.
func (s *LearningMetricStore) GetSince(ctx context.Context, fromMs int64) (points []*storage.LearningMetricPoint, err error) {
	start := time.Now()
	defer func() {
		observability.RecordDBQuery("clickhouse", "metric_range", time.Since(start).Seconds(), err)
	}()

	query := `
		SELECT
			timestamp_ms, trade_count, win_rate, profit_factor, avg_return_pct,
			weight_drift, win_patterns, danger_patterns, snapshot_count, learning_rate
		FROM learning_metrics
		WHERE timestamp_ms >= ?
		ORDER BY timestamp_ms ASC
	`

	rows, err := s.conn.Query(ctx, query, fromMs)
	if err != nil {
		return nil, fmt.Errorf("query learning metrics: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var p storage.LearningMetricPoint
		var tradeCount, winPatterns, dangerPatterns, snapshotCount int32

		scanErr := rows.Scan(
			&p.TimestampMs, &tradeCount, &p.WinRate, &p.ProfitFactor, &p.AvgReturnPct,
			&p.WeightDrift, &winPatterns, &dangerPatterns, &snapshotCount, &p.LearningRate,
		)
		if scanErr != nil {
			return nil, fmt.Errorf("scan learning metric row: %w", scanErr)
		}

		p.TradeCount = int(tradeCount)
		p.WinPatterns = int(winPatterns)
		p.DangerPatterns = int(dangerPatterns)
		p.SnapshotCount = int(snapshotCount)
		points = append(points, &p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate learning metric rows: %w", err)
	}
	return points, nil
}
