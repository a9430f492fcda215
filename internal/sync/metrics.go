package sync

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the Prometheus collectors updated by sync runs.
type Metrics struct {
	// RunsTotal counts finished runs by result ("success" or a failure kind).
	RunsTotal *prometheus.CounterVec
	// StageDuration tracks how long each stage took.
	StageDuration *prometheus.HistogramVec
	// RowsTotal counts entities handled per stage. For play logs only new rows are counted.
	RowsTotal *prometheus.CounterVec
	// TokenRefreshesTotal counts refresh-token exchanges by outcome.
	TokenRefreshesTotal *prometheus.CounterVec
}

// NewMetrics creates the sync collectors and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "listening_log_sync_runs_total",
				Help: "Total number of sync runs by result",
			},
			[]string{"result"},
		),
		StageDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "listening_log_sync_stage_duration_seconds",
				Help:    "Duration of sync stages in seconds",
				Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"stage"},
		),
		RowsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "listening_log_sync_rows_total",
				Help: "Total number of entities written by sync stages",
			},
			[]string{"entity"},
		),
		TokenRefreshesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "listening_log_token_refreshes_total",
				Help: "Total number of access token refreshes by outcome",
			},
			[]string{"outcome"},
		),
	}
}

func (m *Metrics) observeStage(stage Stage, start time.Time) {
	m.StageDuration.WithLabelValues(string(stage)).Observe(time.Since(start).Seconds())
}
