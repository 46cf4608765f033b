package execution

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/polyflip/updown-arb/internal/events"
	"github.com/polyflip/updown-arb/internal/registry"
	"github.com/polyflip/updown-arb/internal/risk"
	"github.com/polyflip/updown-arb/pkg/clock"
	"github.com/polyflip/updown-arb/pkg/types"
)

// Config holds execution engine dependencies and tuning.
type Config struct {
	// MaxImbalance is how long one leg may stay unfilled after the
	// other fills before escalation.
	MaxImbalance time.Duration
	// MaxSlippageTicks caps how far above the detected ask an escalated
	// taker order may bid.
	MaxSlippageTicks int64
	// AckTimeout bounds a single submit round trip.
	AckTimeout time.Duration
	// HedgeTimeout bounds the flattening order's fill wait.
	HedgeTimeout time.Duration
	// AttemptTimeout is the hard stop for a whole attempt.
	AttemptTimeout time.Duration
	// PoolSize is the number of concurrent attempts.
	PoolSize int
	// MaxEscalations is the maker-to-taker escalation budget per leg.
	MaxEscalations int

	Venue    Venue
	Fills    FillSource
	Gate     *risk.Gate
	Breaker  *risk.Breaker
	Registry *registry.Registry
	Bus      *events.Bus
	Clock    clock.Clock
	Logger   *zap.Logger
}

// Engine turns accepted opportunities into two-legged executions. A
// bounded worker pool caps concurrent attempts; when it is saturated,
// opportunities are rejected rather than queued, because a queued
// opportunity is stale by the time it runs.
type Engine struct {
	cfg      Config
	venue    Venue
	fills    FillSource
	gate     *risk.Gate
	breaker  *risk.Breaker
	registry *registry.Registry
	bus      *events.Bus
	clock    clock.Clock
	logger   *zap.Logger

	sem chan struct{}
	wg  sync.WaitGroup

	mu       sync.Mutex
	ctx      context.Context
	attempts map[string]context.CancelFunc
}

// New creates an execution engine.
func New(cfg Config) *Engine {
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = 16
	}
	if cfg.MaxEscalations <= 0 {
		cfg.MaxEscalations = 2
	}
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = 8 * time.Second
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.System()
	}
	return &Engine{
		cfg:      cfg,
		venue:    cfg.Venue,
		fills:    cfg.Fills,
		gate:     cfg.Gate,
		breaker:  cfg.Breaker,
		registry: cfg.Registry,
		bus:      cfg.Bus,
		clock:    cfg.Clock,
		logger:   cfg.Logger,
		sem:      make(chan struct{}, cfg.PoolSize),
		attempts: make(map[string]context.CancelFunc),
	}
}

// Start arms the engine with its base context.
func (e *Engine) Start(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ctx = ctx
}

// Close waits for in-flight attempts to finish. The caller cancels the
// Start context first.
func (e *Engine) Close() {
	e.wg.Wait()
}

// CancelReservation aborts the attempt funded by the reservation, if
// one is still running: its working orders are cancelled and any
// one-sided position flattened. Wired to the risk gate's TTL sweep.
func (e *Engine) CancelReservation(reservationID string) {
	e.mu.Lock()
	cancel, ok := e.attempts[reservationID]
	e.mu.Unlock()
	if ok {
		cancel()
	}
}

// Submit is the detector's handler: it admits the opportunity through
// the pool and the risk gate, then runs the attempt asynchronously.
func (e *Engine) Submit(opp types.Opportunity) {
	e.mu.Lock()
	ctx := e.ctx
	e.mu.Unlock()
	if ctx == nil || ctx.Err() != nil {
		return
	}

	select {
	case e.sem <- struct{}{}:
	default:
		AttemptsTotal.WithLabelValues("saturated").Inc()
		if e.bus != nil {
			e.bus.Publish(events.OpportunityRejected{
				OpportunityID: opp.ID,
				MarketID:      opp.MarketID,
				Reason:        types.RejectSaturated,
			})
		}
		return
	}

	grant, _, ok := e.gate.Accept(opp)
	if !ok {
		<-e.sem
		return
	}

	actx, acancel := context.WithCancel(ctx)
	e.mu.Lock()
	e.attempts[grant.Reservation.ID] = acancel
	e.mu.Unlock()

	e.wg.Add(1)
	go func() {
		defer func() {
			e.mu.Lock()
			delete(e.attempts, grant.Reservation.ID)
			e.mu.Unlock()
			acancel()
			<-e.sem
			e.wg.Done()
		}()
		e.runAttempt(actx, opp, grant)
	}()
}
