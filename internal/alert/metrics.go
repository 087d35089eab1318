package alert

import "github.com/prometheus/client_golang/prometheus"

// Prometheus evaluation metrics.
var (
	evaluationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alert_evaluations_total",
			Help: "Total number of alert evaluations by outcome.",
		},
		[]string{"outcome"}, // "breaching", "ok", "error"
	)
	evaluationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "alert_evaluation_duration_seconds",
			Help:    "Alert evaluation duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(evaluationsTotal)
	prometheus.MustRegister(evaluationDuration)
}
