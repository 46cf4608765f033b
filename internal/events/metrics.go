package events

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	EventsPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "updown_arb_events_published_total",
			Help: "Total events published to the bus by kind",
		},
		[]string{"kind"},
	)

	EventsDroppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "updown_arb_events_dropped_total",
			Help: "Total events dropped per subscriber due to full buffers",
		},
		[]string{"subscriber"},
	)

	SubscribersEvictedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "updown_arb_event_subscribers_evicted_total",
		Help: "Total slow subscribers evicted from the bus",
	})

	SubscriberCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "updown_arb_event_subscribers",
		Help: "Current number of bus subscribers",
	})
)
