package risk

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/polyflip/updown-arb/internal/events"
	"github.com/polyflip/updown-arb/pkg/clock"
	"github.com/polyflip/updown-arb/pkg/types"
)

// sweepInterval is how often expired reservations are reclaimed.
const sweepInterval = 1 * time.Second

// Gate sizes and admits opportunities against the bankroll ledger. The
// ledger invariant holds under a single mutex: available + reserved
// equals the remaining bankroll at all times, and a market carries at
// most one live reservation.
type Gate struct {
	mu           sync.Mutex
	available    float64
	reserved     float64
	reservations map[string]*reservationEntry
	byMarket     map[string]string
	quarantined  map[string]types.RiskIncident
	swept        map[string]types.Reservation

	cfg     Config
	breaker *Breaker
	clock   clock.Clock
	logger  *zap.Logger
	bus     *events.Bus
}

type reservationEntry struct {
	res  types.Reservation
	opp  types.Opportunity
	size float64
}

// Config holds gate limits and dependencies.
type Config struct {
	Bankroll            float64
	MaxBetSize          float64
	MinNotional         float64
	MaxBankrollFraction float64
	ReservationTTL      time.Duration

	Breaker *Breaker
	Clock   clock.Clock
	Logger  *zap.Logger
	Bus     *events.Bus

	// OnExpire is invoked after the TTL sweep reclaims a reservation.
	OnExpire func(types.Reservation)
}

// Grant is what the gate hands the execution engine on acceptance.
type Grant struct {
	Reservation types.Reservation
	// Size is the admitted share count, possibly below the
	// opportunity's matchable size when a cap binds.
	Size float64
}

// NewGate creates a gate with a full bankroll.
func NewGate(cfg Config) *Gate {
	if cfg.Clock == nil {
		cfg.Clock = clock.System()
	}
	g := &Gate{
		available:    cfg.Bankroll,
		reservations: make(map[string]*reservationEntry),
		byMarket:     make(map[string]string),
		quarantined:  make(map[string]types.RiskIncident),
		swept:        make(map[string]types.Reservation),
		cfg:          cfg,
		breaker:      cfg.Breaker,
		clock:        cfg.Clock,
		logger:       cfg.Logger,
		bus:          cfg.Bus,
	}
	BankrollAvailable.Set(g.available)
	BankrollReserved.Set(0)
	return g
}

// Accept runs the admission ladder. On success the returned grant holds
// a live reservation; on rejection the reason says why.
func (g *Gate) Accept(opp types.Opportunity) (Grant, types.RejectReason, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, bad := g.quarantined[opp.MarketID]; bad {
		return g.reject(opp, types.RejectQuarantined)
	}
	if g.breaker != nil && g.breaker.Open() {
		return g.reject(opp, types.RejectHalted)
	}
	if _, live := g.byMarket[opp.MarketID]; live {
		return g.reject(opp, types.RejectInFlight)
	}

	// Per-pair cost includes the taker fee reserve so a full fill can
	// never overdraw the ledger.
	pairCost := (opp.AskUp + opp.AskDown + opp.FeeReserve).Price(opp.TicksPerUnit)
	if pairCost <= 0 {
		return g.reject(opp, types.RejectBelowMinimum)
	}

	limit := math.Min(g.cfg.MaxBetSize, g.cfg.Bankroll*g.cfg.MaxBankrollFraction)
	limit = math.Min(limit, g.available)
	if limit < g.cfg.MinNotional {
		return g.reject(opp, types.RejectBankrollExhausted)
	}

	size := math.Min(opp.MatchableSize(), limit/pairCost)
	notional := size * pairCost
	if notional < g.cfg.MinNotional {
		return g.reject(opp, types.RejectBelowMinimum)
	}

	res := types.Reservation{
		ID:        uuid.NewString(),
		MarketID:  opp.MarketID,
		Notional:  notional,
		CreatedAt: g.clock.Now(),
		State:     types.ReservationPending,
	}
	g.available -= notional
	g.reserved += notional
	g.reservations[res.ID] = &reservationEntry{res: res, opp: opp, size: size}
	g.byMarket[opp.MarketID] = res.ID

	AcceptsTotal.Inc()
	BankrollAvailable.Set(g.available)
	BankrollReserved.Set(g.reserved)

	g.logger.Info("opportunity-accepted",
		zap.String("market", opp.MarketID),
		zap.String("reservation", res.ID),
		zap.Float64("size", size),
		zap.Float64("notional", notional),
		zap.Float64("available", g.available))

	return Grant{Reservation: res, Size: size}, "", true
}

// reject is called with the mutex held.
func (g *Gate) reject(opp types.Opportunity, reason types.RejectReason) (Grant, types.RejectReason, bool) {
	RejectsTotal.WithLabelValues(string(reason)).Inc()
	if g.bus != nil {
		g.bus.Publish(events.OpportunityRejected{
			OpportunityID: opp.ID,
			MarketID:      opp.MarketID,
			Reason:        reason,
		})
	}
	return Grant{}, reason, false
}

// Release closes a reservation. The spent amount leaves the bankroll
// for good; the rest returns to available. Releasing an unknown or
// already closed reservation is a no-op.
func (g *Gate) Release(reservationID string, spent float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.releaseLocked(reservationID, spent)
}

func (g *Gate) releaseLocked(reservationID string, spent float64) {
	entry, ok := g.reservations[reservationID]
	if !ok {
		g.settleSweptLocked(reservationID, spent)
		return
	}
	delete(g.reservations, reservationID)
	delete(g.byMarket, entry.res.MarketID)

	if spent < 0 {
		spent = 0
	}
	if spent > entry.res.Notional {
		spent = entry.res.Notional
	}

	g.reserved -= entry.res.Notional
	g.available += entry.res.Notional - spent

	BankrollAvailable.Set(g.available)
	BankrollReserved.Set(g.reserved)

	g.logger.Debug("reservation-released",
		zap.String("reservation", reservationID),
		zap.String("market", entry.res.MarketID),
		zap.Float64("spent", spent),
		zap.Float64("available", g.available))
}

// settleSweptLocked reconciles an attempt that settled after the TTL
// sweep already refunded its reservation: whatever the attempt actually
// spent must still leave the ledger.
func (g *Gate) settleSweptLocked(reservationID string, spent float64) {
	res, ok := g.swept[reservationID]
	if !ok {
		return
	}
	delete(g.swept, reservationID)

	if spent <= 0 {
		return
	}
	if spent > res.Notional {
		spent = res.Notional
	}

	g.available -= spent
	BankrollAvailable.Set(g.available)

	g.logger.Warn("late-settlement-reconciled",
		zap.String("reservation", reservationID),
		zap.String("market", res.MarketID),
		zap.Float64("spent", spent),
		zap.Float64("available", g.available))
}

// Credit returns realized proceeds to the bankroll, e.g. the guaranteed
// 1.0 payout of a completed pair.
func (g *Gate) Credit(amount float64) {
	if amount <= 0 {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	g.available += amount
	BankrollAvailable.Set(g.available)
}

// HasLive reports whether a market carries a live reservation. The
// detector uses it to suppress evaluation while an attempt is running.
func (g *Gate) HasLive(marketID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	_, live := g.byMarket[marketID]
	return live
}

// Balances returns the current ledger state.
func (g *Gate) Balances() (available, reserved float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.available, g.reserved
}

// Quarantine blocks a market from trading until cleared, and publishes
// the incident.
func (g *Gate) Quarantine(incident types.RiskIncident) {
	g.mu.Lock()
	g.quarantined[incident.MarketID] = incident
	count := len(g.quarantined)
	g.mu.Unlock()

	QuarantinedMarkets.Set(float64(count))
	g.logger.Error("market-quarantined",
		zap.String("market", incident.MarketID),
		zap.String("kind", incident.Kind),
		zap.Float64("exposure", incident.Exposure))

	if g.bus != nil {
		g.bus.Publish(events.RiskIncident{Incident: incident})
	}
}

// ClearQuarantine lifts a quarantine. Operator action.
func (g *Gate) ClearQuarantine(marketID string) {
	g.mu.Lock()
	delete(g.quarantined, marketID)
	count := len(g.quarantined)
	g.mu.Unlock()

	QuarantinedMarkets.Set(float64(count))
	g.logger.Info("quarantine-cleared", zap.String("market", marketID))
}

// IsQuarantined reports whether a market is blocked.
func (g *Gate) IsQuarantined(marketID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	_, bad := g.quarantined[marketID]
	return bad
}

// SweepExpired reclaims reservations older than the TTL. Covers crashes
// and hangs in the execution path: bankroll must never leak. OnExpire
// tells the execution engine to cancel the attempt's working orders;
// the swept entry stays behind so the attempt's eventual settlement can
// still charge its real spend.
func (g *Gate) SweepExpired() []types.Reservation {
	g.mu.Lock()

	now := g.clock.Now()
	var expired []types.Reservation
	for id, entry := range g.reservations {
		if now.Sub(entry.res.CreatedAt) >= g.cfg.ReservationTTL {
			expired = append(expired, entry.res)
			g.swept[id] = entry.res
			g.releaseLocked(id, 0)
		}
	}
	g.mu.Unlock()

	for _, res := range expired {
		ReservationsExpiredTotal.Inc()
		g.logger.Warn("reservation-expired",
			zap.String("reservation", res.ID),
			zap.String("market", res.MarketID),
			zap.Float64("notional", res.Notional))
		if g.cfg.OnExpire != nil {
			g.cfg.OnExpire(res)
		}
	}
	return expired
}

// Run sweeps expired reservations until the context is cancelled.
func (g *Gate) Run(ctx context.Context) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			g.SweepExpired()
		}
	}
}
