package detector

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	EvaluationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "updown_arb_detector_evaluations_total",
			Help: "Total market evaluations by result",
		},
		[]string{"result"},
	)

	OpportunitiesDetectedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "updown_arb_detector_opportunities_total",
		Help: "Total opportunities detected",
	})

	OpportunityMargin = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "updown_arb_detector_opportunity_margin",
		Help:    "Per-pair margin of detected opportunities",
		Buckets: []float64{.005, .01, .02, .03, .05, .08, .12, .2},
	})

	EvaluationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "updown_arb_detector_evaluation_seconds",
		Help:    "Duration of a single market evaluation",
		Buckets: []float64{1e-6, 1e-5, 1e-4, 1e-3, 1e-2},
	})
)
