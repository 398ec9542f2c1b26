package metrics

import "github.com/prometheus/client_golang/prometheus"

// Pipeline Prometheus metrics.
var (
	SessionsStartedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "paystamp",
			Name:      "sessions_started_total",
			Help:      "Total pay-application sessions created",
		},
	)

	StageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "paystamp",
			Name:      "stage_duration_seconds",
			Help:      "Pipeline stage duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"stage"},
	)

	StageFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "paystamp",
			Name:      "stage_failures_total",
			Help:      "Total pipeline stage failures",
		},
		[]string{"stage"},
	)

	MatchOutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "paystamp",
			Name:      "match_outcomes_total",
			Help:      "Vendor resolution outcomes",
		},
		[]string{"outcome"},
	)

	SessionsStampedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "paystamp",
			Name:      "sessions_stamped_total",
			Help:      "Total sessions stamped",
		},
	)

	FallbackRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "paystamp",
			Name:      "fallback_requests_total",
			Help:      "Model-assisted field recovery attempts",
		},
		[]string{"status"}, // "ok" / "error"
	)
)

var pipelineMetricsRegistered bool

// RegisterPipelineMetrics registers pipeline metrics. Must be called once
// from main.
func RegisterPipelineMetrics() {
	if pipelineMetricsRegistered {
		return
	}
	prometheus.MustRegister(SessionsStartedTotal)
	prometheus.MustRegister(StageDuration)
	prometheus.MustRegister(StageFailuresTotal)
	prometheus.MustRegister(MatchOutcomesTotal)
	prometheus.MustRegister(SessionsStampedTotal)
	prometheus.MustRegister(FallbackRequestsTotal)
	pipelineMetricsRegistered = true
}
