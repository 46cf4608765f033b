package detector

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/polyflip/updown-arb/internal/events"
	"github.com/polyflip/updown-arb/internal/orderbook"
	"github.com/polyflip/updown-arb/internal/registry"
	"github.com/polyflip/updown-arb/pkg/clock"
	"github.com/polyflip/updown-arb/pkg/types"
)

// Config holds detector dependencies and thresholds.
type Config struct {
	// Workers is the number of evaluation goroutines. A market always
	// hashes to the same worker, so per-market evaluation is serial.
	Workers int
	// FreshnessTTL is the maximum book age usable for a decision.
	FreshnessTTL time.Duration
	// MinProfitMargin is the required margin per pair, as a decimal
	// price. The pair must beat it strictly.
	MinProfitMargin float64
	// MinSize is the global minimum matchable size in shares.
	MinSize float64
	// FeeReserveBps is reserved on top of each market's taker fee.
	FeeReserveBps int64

	Store    *orderbook.Store
	Registry *registry.Registry
	Bus      *events.Bus
	Clock    clock.Clock
	Logger   *zap.Logger

	// Handler receives every detected opportunity.
	Handler func(types.Opportunity)
	// Suppressed reports whether a market already has a live
	// reservation; suppressed markets are not evaluated at all.
	Suppressed func(marketID string) bool
}

// Detector evaluates markets as their books change. All price math is
// in integer ticks so sums adjacent to 1.0 compare exactly.
type Detector struct {
	cfg      Config
	store    *orderbook.Store
	registry *registry.Registry
	bus      *events.Bus
	clock    clock.Clock
	logger   *zap.Logger

	workers []*orderbook.Notifier
}

// New creates a detector.
func New(cfg Config) *Detector {
	if cfg.Workers <= 0 {
		cfg.Workers = 8
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.System()
	}

	workers := make([]*orderbook.Notifier, cfg.Workers)
	for i := range workers {
		workers[i] = orderbook.NewNotifier()
	}

	return &Detector{
		cfg:      cfg,
		store:    cfg.Store,
		registry: cfg.Registry,
		bus:      cfg.Bus,
		clock:    cfg.Clock,
		logger:   cfg.Logger,
		workers:  workers,
	}
}

// Run routes store notifications to workers until the context is
// cancelled.
func (d *Detector) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i, n := range d.workers {
		wg.Add(1)
		go func(id int, n *orderbook.Notifier) {
			defer wg.Done()
			d.workerLoop(ctx, n)
		}(i, n)
	}

	notifier := d.store.Notifier()
	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			return
		case <-notifier.Wait():
			for _, marketID := range notifier.Drain() {
				d.workers[workerIndex(marketID, len(d.workers))].Mark(marketID)
			}
		}
	}
}

func workerIndex(marketID string, workers int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(marketID))
	return int(h.Sum32() % uint32(workers))
}

func (d *Detector) workerLoop(ctx context.Context, n *orderbook.Notifier) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-n.Wait():
			for _, marketID := range n.Drain() {
				d.Evaluate(marketID)
			}
		}
	}
}

// Evaluate recomputes one market against the latest pair of books.
func (d *Detector) Evaluate(marketID string) {
	start := d.clock.Now()
	defer func() {
		EvaluationDuration.Observe(d.clock.Since(start).Seconds())
	}()

	market, ok := d.registry.Get(marketID)
	if !ok {
		EvaluationsTotal.WithLabelValues("unregistered").Inc()
		return
	}

	if d.cfg.Suppressed != nil && d.cfg.Suppressed(marketID) {
		EvaluationsTotal.WithLabelValues("suppressed").Inc()
		return
	}

	up, down, ok := d.store.Pair(market.UpTokenID, market.DownTokenID)
	if !ok {
		EvaluationsTotal.WithLabelValues("untracked").Inc()
		return
	}
	if !up.HasAsk || !down.HasAsk || up.BestAskSize <= 0 || down.BestAskSize <= 0 {
		EvaluationsTotal.WithLabelValues("one_sided").Inc()
		return
	}

	tpu := market.TicksPerUnit
	unit := types.Ticks(tpu)
	sum := up.BestAsk + down.BestAsk
	feeReserve := types.FeeReserveTicks(sum, market.TakerFeeBps+d.cfg.FeeReserveBps)
	margin := unit - sum - feeReserve
	minMargin := types.TicksFromPrice(d.cfg.MinProfitMargin, tpu)

	if margin <= minMargin {
		EvaluationsTotal.WithLabelValues("no_edge").Inc()
		return
	}

	now := d.clock.Now()
	if !up.Fresh(now, d.cfg.FreshnessTTL) || !down.Fresh(now, d.cfg.FreshnessTTL) {
		EvaluationsTotal.WithLabelValues("stale").Inc()
		d.publishReject(marketID, types.RejectBookStale)
		return
	}

	matchable := up.BestAskSize
	if down.BestAskSize < matchable {
		matchable = down.BestAskSize
	}
	minSize := d.cfg.MinSize
	if market.MinOrderSize > minSize {
		minSize = market.MinOrderSize
	}
	if matchable < minSize {
		EvaluationsTotal.WithLabelValues("too_small").Inc()
		d.publishReject(marketID, types.RejectBelowMinimum)
		return
	}

	opp := types.Opportunity{
		ID:           uuid.NewString(),
		MarketID:     market.ID,
		MarketSlug:   market.Slug,
		AskUp:        up.BestAsk,
		AskDown:      down.BestAsk,
		SizeUp:       up.BestAskSize,
		SizeDown:     down.BestAskSize,
		MarginTicks:  margin,
		TicksPerUnit: tpu,
		FeeReserve:   feeReserve,
		SeqUp:        up.Seq,
		SeqDown:      down.Seq,
		DetectedAt:   now,
		ExpiresAt:    market.ExpiresAt,
	}

	EvaluationsTotal.WithLabelValues("detected").Inc()
	OpportunitiesDetectedTotal.Inc()
	OpportunityMargin.Observe(opp.Margin())

	d.logger.Info("opportunity-detected",
		zap.String("market", market.ID),
		zap.String("slug", market.Slug),
		zap.Float64("ask-up", up.BestAsk.Price(tpu)),
		zap.Float64("ask-down", down.BestAsk.Price(tpu)),
		zap.Float64("margin", opp.Margin()),
		zap.Float64("matchable", matchable))

	if d.bus != nil {
		d.bus.Publish(events.OpportunityDetected{Opportunity: opp})
	}
	if d.cfg.Handler != nil {
		d.cfg.Handler(opp)
	}
}

func (d *Detector) publishReject(marketID string, reason types.RejectReason) {
	if d.bus == nil {
		return
	}
	d.bus.Publish(events.OpportunityRejected{
		MarketID: marketID,
		Reason:   reason,
	})
}
