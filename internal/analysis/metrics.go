package analysis

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the service-level instruments. A nil registerer yields
// working but unregistered metrics, which keeps tests free of global
// registry collisions.
type Metrics struct {
	analyses  *prometheus.CounterVec
	fallbacks *prometheus.CounterVec
	duration  prometheus.Histogram
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		analyses: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "veracity_analyses_total",
			Help: "Completed analyses by result source and locale.",
		}, []string{"source", "locale"}),
		fallbacks: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "veracity_classifier_fallbacks_total",
			Help: "Remote classifier requests served by the heuristic engine instead, by reason.",
		}, []string{"reason"}),
		duration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "veracity_analysis_duration_seconds",
			Help:    "End to end analysis latency.",
			Buckets: prometheus.DefBuckets,
		}),
	}
}
