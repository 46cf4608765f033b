package risk

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	AcceptsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "updown_arb_risk_accepts_total",
		Help: "Total opportunities accepted by the risk gate",
	})

	RejectsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "updown_arb_risk_rejects_total",
			Help: "Total opportunities rejected by reason",
		},
		[]string{"reason"},
	)

	BankrollAvailable = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "updown_arb_risk_bankroll_available",
		Help: "Bankroll currently available for new reservations",
	})

	BankrollReserved = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "updown_arb_risk_bankroll_reserved",
		Help: "Bankroll locked by live reservations",
	})

	ReservationsExpiredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "updown_arb_risk_reservations_expired_total",
		Help: "Total reservations reclaimed by the TTL sweep",
	})

	QuarantinedMarkets = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "updown_arb_risk_quarantined_markets",
		Help: "Markets currently quarantined",
	})

	BreakerState = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "updown_arb_risk_breaker_open",
		Help: "1 while the circuit breaker is open",
	})

	BreakerTripsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "updown_arb_risk_breaker_trips_total",
		Help: "Total circuit breaker trips",
	})
)
