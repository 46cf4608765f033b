package feed

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	FramesReceivedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "updown_arb_feed_frames_received_total",
			Help: "Total push frames received by type",
		},
		[]string{"type"},
	)

	ParseErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "updown_arb_feed_parse_errors_total",
		Help: "Total malformed push frames",
	})

	DisconnectsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "updown_arb_feed_disconnects_total",
			Help: "Total push connection teardowns by reason",
		},
		[]string{"reason"},
	)

	PollScansTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "updown_arb_feed_poll_scans_total",
			Help: "Total poll scans by outcome",
		},
		[]string{"outcome"},
	)

	PollFetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "updown_arb_feed_poll_fetch_seconds",
		Help:    "Duration of a single REST book fetch",
		Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
	})

	ConnectedGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "updown_arb_feed_push_connected",
		Help: "1 while the push connection is established",
	})
)
