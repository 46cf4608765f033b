package registry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	MarketsTracked = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "updown_arb_markets_tracked",
		Help: "Number of currently registered markets",
	})

	MarketsAddedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "updown_arb_markets_added_total",
		Help: "Total markets registered",
	})

	MarketsRemovedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "updown_arb_markets_removed_total",
			Help: "Total markets removed by reason",
		},
		[]string{"reason"},
	)

	DiscoveryRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "updown_arb_discovery_runs_total",
			Help: "Total discovery scans by outcome",
		},
		[]string{"outcome"},
	)

	DiscoveryDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "updown_arb_discovery_duration_seconds",
		Help:    "Duration of a full discovery scan",
		Buckets: prometheus.DefBuckets,
	})
)
