// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Feed metrics
	TradesReceived    prometheus.Counter
	FrameDecodeErrors prometheus.Counter
	FeedReconnects    prometheus.Counter

	// Cycle metrics
	CycleRunsTotal   *prometheus.CounterVec
	CycleDuration    *prometheus.HistogramVec
	AdjustmentsTotal *prometheus.CounterVec

	// Pattern library metrics
	WinPatterns    prometheus.Gauge
	DangerPatterns prometheus.Gauge

	// Snapshot metrics
	SnapshotVersion  prometheus.Gauge
	SnapshotsCreated *prometheus.CounterVec

	// Meta metrics
	EvaluationsTotal *prometheus.CounterVec
	LearningRate     prometheus.Gauge
	WeightDrift      prometheus.Gauge
	Reversions       prometheus.Counter

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastSuccessfulCycle prometheus.Gauge
	CompletedTrades     prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "omm_learning"
	}

	return &Metrics{
		// Feed metrics
		TradesReceived: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "trades_received_total",
			Help:      "Total number of completed trades received from the stream",
		}),
		FrameDecodeErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "frame_decode_errors_total",
			Help:      "Total number of stream frames that failed to decode",
		}),
		FeedReconnects: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "reconnects_total",
			Help:      "Total number of stream reconnect attempts",
		}),

		// Cycle metrics
		CycleRunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cycles",
			Name:      "runs_total",
			Help:      "Total number of learning cycle runs by type and status",
		}, []string{"type", "status"}),
		CycleDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "cycles",
			Name:      "duration_seconds",
			Help:      "Learning cycle execution duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"type"}),
		AdjustmentsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cycles",
			Name:      "adjustments_total",
			Help:      "Total number of accepted adjustments by cycle type",
		}, []string{"type"}),

		// Pattern library metrics
		WinPatterns: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "patterns",
			Name:      "win_library_size",
			Help:      "Current number of patterns in the win library",
		}),
		DangerPatterns: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "patterns",
			Name:      "danger_library_size",
			Help:      "Current number of patterns in the danger library",
		}),

		// Snapshot metrics
		SnapshotVersion: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "snapshots",
			Name:      "current_version",
			Help:      "Version number of the current learning snapshot",
		}),
		SnapshotsCreated: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "snapshots",
			Name:      "created_total",
			Help:      "Total number of snapshots created by origin",
		}, []string{"origin"}),

		// Meta metrics
		EvaluationsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "meta",
			Name:      "evaluations_total",
			Help:      "Total number of adjustment impact evaluations by classification",
		}, []string{"classification"}),
		LearningRate: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "meta",
			Name:      "learning_rate",
			Help:      "Current learning-rate multiplier",
		}),
		WeightDrift: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "meta",
			Name:      "weight_drift",
			Help:      "Sum of absolute weight deviation from baseline",
		}),
		Reversions: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "meta",
			Name:      "reversions_total",
			Help:      "Total number of snapshot reversions",
		}),

		// Database metrics
		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		// Health metrics
		LastSuccessfulCycle: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_cycle_timestamp",
			Help:      "Unix timestamp of last successfully completed cycle",
		}),
		CompletedTrades: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "completed_trades",
			Help:      "Completed-trade count driving milestone triggers",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordTradeReceived increments the trades received counter.
func RecordTradeReceived() {
	DefaultMetrics.TradesReceived.Inc()
}

// RecordFrameDecodeError increments the frame decode error counter.
func RecordFrameDecodeError() {
	DefaultMetrics.FrameDecodeErrors.Inc()
}

// RecordFeedReconnect increments the reconnect counter.
func RecordFeedReconnect() {
	DefaultMetrics.FeedReconnects.Inc()
}

// RecordCycle records one learning cycle run.
func RecordCycle(cycleType, status string, durationSeconds float64, adjustments int) {
	DefaultMetrics.CycleRunsTotal.WithLabelValues(cycleType, status).Inc()
	DefaultMetrics.CycleDuration.WithLabelValues(cycleType).Observe(durationSeconds)
	if adjustments > 0 {
		DefaultMetrics.AdjustmentsTotal.WithLabelValues(cycleType).Add(float64(adjustments))
	}
	if status == "completed" {
		DefaultMetrics.LastSuccessfulCycle.SetToCurrentTime()
	}
}

// UpdatePatternLibraries updates the pattern library size gauges.
func UpdatePatternLibraries(winPatterns, dangerPatterns int) {
	DefaultMetrics.WinPatterns.Set(float64(winPatterns))
	DefaultMetrics.DangerPatterns.Set(float64(dangerPatterns))
}

// RecordSnapshot records a new snapshot and advances the version gauge.
func RecordSnapshot(origin string, version int64) {
	DefaultMetrics.SnapshotsCreated.WithLabelValues(origin).Inc()
	DefaultMetrics.SnapshotVersion.Set(float64(version))
}

// RecordEvaluation records one impact evaluation.
func RecordEvaluation(classification string) {
	DefaultMetrics.EvaluationsTotal.WithLabelValues(classification).Inc()
}

// RecordReversion increments the reversion counter.
func RecordReversion() {
	DefaultMetrics.Reversions.Inc()
}

// UpdateLearningState updates the meta gauges from the latest report.
func UpdateLearningState(learningRate, weightDrift float64, completedTrades int) {
	DefaultMetrics.LearningRate.Set(learningRate)
	DefaultMetrics.WeightDrift.Set(weightDrift)
	DefaultMetrics.CompletedTrades.Set(float64(completedTrades))
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
