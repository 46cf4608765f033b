package execution

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	AttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "updown_arb_execution_attempts_total",
			Help: "Total execution attempts by terminal result",
		},
		[]string{"result"},
	)

	AttemptDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "updown_arb_execution_attempt_seconds",
		Help:    "Duration of an execution attempt",
		Buckets: []float64{.05, .1, .25, .5, 1, 2, 4, 8},
	})

	EscalationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "updown_arb_execution_escalations_total",
		Help: "Total maker legs escalated to taker",
	})

	HedgesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "updown_arb_execution_hedges_total",
		Help: "Total one-sided positions flattened with a hedge",
	})

	RealizedProfitTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "updown_arb_execution_realized_profit_total",
		Help: "Cumulative realized profit of successful attempts",
	})

	FillsDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "updown_arb_execution_fills_dropped_total",
		Help: "Fill updates dropped due to full watcher buffers",
	})

	StrategiesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "updown_arb_execution_strategies_total",
			Help: "Attempts by selected strategy",
		},
		[]string{"strategy"},
	)
)
