package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mithix",
			Subsystem: "api",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "mithix",
			Subsystem: "api",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{0.01, 0.1, 0.5, 1, 5, 15, 30, 60, 120},
		},
		[]string{"method", "endpoint"},
	)

	// Generations by model and outcome (success, invalid_request, insufficient_credits, ...).
	GenerationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mithix",
			Subsystem: "generator",
			Name:      "generations_total",
			Help:      "Total image generation attempts",
		},
		[]string{"model", "outcome"},
	)

	InferenceDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "mithix",
			Subsystem: "inference",
			Name:      "duration_seconds",
			Help:      "Upstream inference call duration in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 40, 80, 120},
		},
		[]string{"model", "status"},
	)

	CreditsSpentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mithix",
			Subsystem: "ledger",
			Name:      "credits_spent_total",
			Help:      "Credits committed against stored records",
		},
		[]string{"model"},
	)

	WatermarkFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "mithix",
			Subsystem: "imaging",
			Name:      "watermark_failures_total",
			Help:      "Images returned without a watermark because post-processing failed",
		},
	)
)

// RecordRequest records an HTTP request
func RecordRequest(method, endpoint, status string, durationSec float64) {
	RequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	RequestDuration.WithLabelValues(method, endpoint).Observe(durationSec)
}

// RecordGeneration records the outcome of one generate call.
func RecordGeneration(model, outcome string) {
	GenerationsTotal.WithLabelValues(model, outcome).Inc()
}

func RecordInference(model, status string, durationSec float64) {
	InferenceDuration.WithLabelValues(model, status).Observe(durationSec)
}

func RecordCreditsSpent(model string, credits int) {
	CreditsSpentTotal.WithLabelValues(model).Add(float64(credits))
}

func RecordWatermarkFailure() {
	WatermarkFailuresTotal.Inc()
}
