package orderbook

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	UpdatesAppliedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "updown_arb_book_updates_applied_total",
		Help: "Total book updates applied to the store",
	})

	UpdatesDroppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "updown_arb_book_updates_dropped_total",
			Help: "Total book updates dropped by reason",
		},
		[]string{"reason"},
	)

	TrackedTokens = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "updown_arb_book_tracked_tokens",
		Help: "Number of tokens with a tracked book",
	})

	DirtyMarkets = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "updown_arb_book_dirty_markets",
		Help: "Markets pending detector evaluation",
	})
)
