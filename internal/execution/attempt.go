package execution

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/polyflip/updown-arb/internal/events"
	"github.com/polyflip/updown-arb/internal/risk"
	"github.com/polyflip/updown-arb/pkg/types"
)

const fillEpsilon = 1e-9

// leg is one side of a two-legged attempt.
type leg struct {
	side        types.MarketSide
	token       string
	plan        legPlan
	target      float64
	clientID    string
	orderID     string
	fills       <-chan types.FillUpdate
	filled      float64
	cost        float64
	open        bool
	done        bool
	escalations int
}

func (l *leg) remaining() float64 {
	return l.target - l.filled
}

// attempt carries one execution from submission to a terminal state.
type attempt struct {
	e      *Engine
	opp    types.Opportunity
	grant  risk.Grant
	market types.Market
	plan   attemptPlan
	up     *leg
	down   *leg

	hedged        bool
	hedgeProceeds float64
	quarantined   bool
}

// idempotencyKey derives a deterministic client order ID from the books
// that produced the opportunity and the reservation funding it. A
// resubmission of the same intent reuses the same key.
func idempotencyKey(marketID string, side types.MarketSide, seqUp, seqDown uint64, reservationID string) string {
	seed := fmt.Sprintf("%s|%s|%d|%d|%s", marketID, side, seqUp, seqDown, reservationID)
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(seed)).String()
}

func (e *Engine) runAttempt(ctx context.Context, opp types.Opportunity, grant risk.Grant) {
	start := e.clock.Now()

	market, ok := e.registry.Get(opp.MarketID)
	if !ok {
		// Expired between detection and execution.
		e.gate.Release(grant.Reservation.ID, 0)
		AttemptsTotal.WithLabelValues("expired").Inc()
		return
	}

	takerFeeTicks := types.FeeReserveTicks(opp.AskUp+opp.AskDown, market.TakerFeeBps)
	plan := buildPlan(opp, market.TimeToResolution(start), takerFeeTicks, types.Ticks(e.cfg.MaxSlippageTicks))
	StrategiesTotal.WithLabelValues(string(plan.Strategy)).Inc()

	a := &attempt{
		e:      e,
		opp:    opp,
		grant:  grant,
		market: market,
		plan:   plan,
		up: &leg{
			side:     types.SideUp,
			token:    market.UpTokenID,
			plan:     plan.Up,
			target:   grant.Size,
			clientID: idempotencyKey(market.ID, types.SideUp, opp.SeqUp, opp.SeqDown, grant.Reservation.ID),
		},
		down: &leg{
			side:     types.SideDown,
			token:    market.DownTokenID,
			plan:     plan.Down,
			target:   grant.Size,
			clientID: idempotencyKey(market.ID, types.SideDown, opp.SeqUp, opp.SeqDown, grant.Reservation.ID),
		},
	}

	result := a.run(ctx)
	result.AttemptID = uuid.NewString()
	result.OpportunityID = opp.ID
	result.MarketID = market.ID
	result.Strategy = string(plan.Strategy)
	result.StartedAt = start
	result.FinishedAt = e.clock.Now()
	AttemptDuration.Observe(result.FinishedAt.Sub(result.StartedAt).Seconds())

	if e.bus != nil {
		e.bus.Publish(events.ExecutionCompleted{Result: result})
	}
}

// run drives the attempt to a terminal state and settles the ledger.
func (a *attempt) run(ctx context.Context) types.ExecutionResult {
	defer a.unwatchAll()

	if err := a.submitBothLegs(ctx); err != nil {
		a.cancelOpenLegs(ctx)
		return a.settleFailure("aborted", fmt.Sprintf("submit legs: %v", err), true)
	}

	outcome, detail := a.monitor(ctx)

	switch outcome {
	case "success":
		return a.settleSuccess()
	case "missed":
		return a.settleFailure("missed", detail, false)
	case "hedged":
		return a.settleFailure("hedged", detail, true)
	case "quarantined":
		return a.settleFailure("quarantined", detail, true)
	default:
		return a.settleFailure("aborted", detail, true)
	}
}

// submitBothLegs sends both legs concurrently and waits for both acks.
func (a *attempt) submitBothLegs(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.submitLeg(gctx, a.up) })
	g.Go(func() error { return a.submitLeg(gctx, a.down) })
	return g.Wait()
}

func (a *attempt) submitLeg(ctx context.Context, l *leg) error {
	e := a.e

	req := types.OrderRequest{
		TokenID:      l.token,
		Side:         types.Buy,
		PriceTicks:   l.plan.Price,
		TicksPerUnit: a.market.TicksPerUnit,
		Size:         l.remaining(),
		Kind:         l.plan.Kind,
		TIF:          l.plan.TIF,
		ClientID:     l.clientID,
	}

	if e.bus != nil {
		e.bus.Publish(events.OrderSubmitted{
			MarketID:  a.market.ID,
			ClientID:  l.clientID,
			Side:      l.side,
			OrderType: l.plan.Kind,
			Price:     req.Price(),
			Size:      req.Size,
		})
	}

	sctx, cancel := context.WithTimeout(ctx, e.cfg.AckTimeout)
	defer cancel()

	ack, err := e.venue.Submit(sctx, req)
	if err != nil {
		e.logger.Warn("leg-submit-failed",
			zap.String("market", a.market.ID),
			zap.String("side", string(l.side)),
			zap.Error(err))
		return err
	}

	l.orderID = ack.OrderID
	l.open = true
	l.fills = e.fills.Watch(ack.OrderID)

	if e.bus != nil {
		e.bus.Publish(events.OrderAcked{
			MarketID: a.market.ID,
			ClientID: l.clientID,
			OrderID:  ack.OrderID,
		})
	}
	return nil
}

// monitor reacts to fills and timers until the attempt terminates.
// Returns an outcome label and detail.
func (a *attempt) monitor(ctx context.Context) (string, string) {
	e := a.e

	attemptTimer := time.NewTimer(e.cfg.AttemptTimeout)
	defer attemptTimer.Stop()

	// Armed when the first leg completes while the other lags.
	var imbalanceC <-chan time.Time
	imbalanceTimer := time.NewTimer(0)
	if !imbalanceTimer.Stop() {
		<-imbalanceTimer.C
	}
	defer imbalanceTimer.Stop()

	armImbalance := func() {
		if imbalanceC == nil && a.oneSided() {
			imbalanceTimer.Reset(e.cfg.MaxImbalance)
			imbalanceC = imbalanceTimer.C
		}
	}

	for {
		if a.up.done && a.down.done {
			return "success", ""
		}

		select {
		case <-ctx.Done():
			a.cancelOpenLegs(context.Background())
			if a.position() > fillEpsilon {
				return a.hedge(context.Background())
			}
			return "aborted", "attempt cancelled"

		case <-attemptTimer.C:
			a.cancelOpenLegs(ctx)
			if a.position() > fillEpsilon {
				return a.hedge(ctx)
			}
			return "missed", "attempt timeout with no fills"

		case <-imbalanceC:
			laggard := a.laggard()
			if laggard == nil {
				imbalanceC = nil
				continue
			}
			if laggard.escalations >= e.cfg.MaxEscalations {
				a.cancelOpenLegs(ctx)
				return a.hedge(ctx)
			}
			if err := a.escalate(ctx, laggard); err != nil {
				a.cancelOpenLegs(ctx)
				return a.hedge(ctx)
			}
			imbalanceTimer.Reset(e.cfg.MaxImbalance)

		case fu := <-a.up.fills:
			a.handleFill(ctx, a.up, fu)
			armImbalance()

		case fu := <-a.down.fills:
			a.handleFill(ctx, a.down, fu)
			armImbalance()
		}
	}
}

func (a *attempt) handleFill(ctx context.Context, l *leg, fu types.FillUpdate) {
	e := a.e

	switch fu.Status {
	case types.FillStatusMatched, types.FillStatusLive:
		if fu.FilledSize <= 0 {
			return
		}
		l.filled += fu.FilledSize
		l.cost += fu.FilledSize * fu.Price

		if e.bus != nil {
			e.bus.Publish(events.OrderFilled{
				MarketID:  a.market.ID,
				OrderID:   l.orderID,
				Filled:    fu.FilledSize,
				Remaining: fu.Remaining,
				Price:     fu.Price,
			})
		}
		if fu.Remaining <= fillEpsilon || l.remaining() <= fillEpsilon {
			l.done = true
			l.open = false
		}

	case types.FillStatusCancelled, types.FillStatusRejected:
		l.open = false
		if e.bus != nil {
			e.bus.Publish(events.OrderCancelled{
				MarketID: a.market.ID,
				OrderID:  l.orderID,
				Reason:   fu.Status,
			})
		}
		if !l.done && a.position() > fillEpsilon && l.escalations < e.cfg.MaxEscalations {
			// The laggard's order died while we hold the other side:
			// chase immediately instead of waiting for the timer.
			if err := a.escalate(ctx, l); err != nil {
				e.logger.Warn("escalate-after-cancel-failed", zap.Error(err))
			}
		}
	}
}

// escalate cancels the leg's working order and resubmits it as a
// marketable taker order inside the slippage budget.
func (a *attempt) escalate(ctx context.Context, l *leg) error {
	e := a.e

	if l.open && l.orderID != "" {
		cctx, cancel := context.WithTimeout(ctx, e.cfg.AckTimeout)
		if err := e.venue.Cancel(cctx, l.orderID); err != nil {
			e.logger.Warn("escalation-cancel-failed",
				zap.String("order-id", l.orderID),
				zap.Error(err))
		}
		cancel()
		e.fills.Unwatch(l.orderID)
		l.open = false
	}

	l.escalations++
	EscalationsTotal.Inc()

	ask := a.opp.AskUp
	if l.side == types.SideDown {
		ask = a.opp.AskDown
	}
	l.plan = legPlan{
		Side:  l.side,
		Price: ask + types.Ticks(e.cfg.MaxSlippageTicks),
		Kind:  types.Limit,
		TIF:   types.IOC,
	}
	l.clientID = fmt.Sprintf("%s:%d",
		idempotencyKey(a.market.ID, l.side, a.opp.SeqUp, a.opp.SeqDown, a.grant.Reservation.ID),
		l.escalations)

	e.logger.Info("leg-escalated",
		zap.String("market", a.market.ID),
		zap.String("side", string(l.side)),
		zap.Int("escalation", l.escalations),
		zap.Float64("price", l.plan.Price.Price(a.market.TicksPerUnit)))

	return a.submitLeg(ctx, l)
}

// hedge flattens the filled side after the laggard could not be
// completed. Failure to flatten quarantines the market.
func (a *attempt) hedge(ctx context.Context) (string, string) {
	e := a.e

	filled := a.up
	if a.down.filled > filled.filled {
		filled = a.down
	}
	size := filled.filled
	if size <= fillEpsilon {
		return "missed", "no position to flatten"
	}

	HedgesTotal.Inc()
	if e.bus != nil {
		e.bus.Publish(events.HedgeTriggered{
			MarketID: a.market.ID,
			Side:     filled.side,
			Size:     size,
		})
	}

	// Marketable sell: average entry minus the slippage budget, floored
	// at one tick.
	avgTicks := types.TicksFromPrice(filled.cost/size, a.market.TicksPerUnit)
	price := avgTicks - types.Ticks(e.cfg.MaxSlippageTicks)
	if price < 1 {
		price = 1
	}

	req := types.OrderRequest{
		TokenID:      filled.token,
		Side:         types.Sell,
		PriceTicks:   price,
		TicksPerUnit: a.market.TicksPerUnit,
		Size:         size,
		Kind:         types.MarketOrder,
		TIF:          types.IOC,
		ClientID:     fmt.Sprintf("%s:hedge", filled.clientID),
	}

	sctx, cancel := context.WithTimeout(ctx, e.cfg.AckTimeout)
	ack, err := e.venue.Submit(sctx, req)
	cancel()
	if err != nil {
		return a.quarantine(fmt.Sprintf("hedge submit: %v", err), size)
	}

	fills := e.fills.Watch(ack.OrderID)
	defer e.fills.Unwatch(ack.OrderID)

	deadline := time.NewTimer(e.cfg.HedgeTimeout)
	defer deadline.Stop()

	var flattened float64
	for flattened < size-fillEpsilon {
		select {
		case fu := <-fills:
			switch fu.Status {
			case types.FillStatusMatched, types.FillStatusLive:
				flattened += fu.FilledSize
				a.hedgeProceeds += fu.FilledSize * fu.Price
			case types.FillStatusCancelled, types.FillStatusRejected:
				return a.quarantine("hedge order died before flattening", size-flattened)
			}
		case <-deadline.C:
			return a.quarantine("hedge fill timeout", size-flattened)
		}
	}

	a.hedged = true
	return "hedged", fmt.Sprintf("flattened %.2f %s", size, filled.side)
}

func (a *attempt) quarantine(detail string, exposure float64) (string, string) {
	a.quarantined = true
	a.e.gate.Quarantine(types.RiskIncident{
		MarketID:   a.market.ID,
		Kind:       "partial_fill_unresolved",
		Detail:     fmt.Sprintf("%s: %v", detail, types.ErrPartialFillUnresolved),
		Exposure:   exposure,
		OccurredAt: a.e.clock.Now(),
	})
	return "quarantined", detail
}

// oneSided reports one leg fully done while the other lags.
func (a *attempt) oneSided() bool {
	return a.up.done != a.down.done
}

// laggard returns the unfinished leg of a one-sided attempt.
func (a *attempt) laggard() *leg {
	switch {
	case a.up.done && !a.down.done:
		return a.down
	case a.down.done && !a.up.done:
		return a.up
	default:
		return nil
	}
}

// position is the current net long exposure in shares, counting only
// the unmatched excess of the fuller leg.
func (a *attempt) position() float64 {
	diff := a.up.filled - a.down.filled
	if diff < 0 {
		diff = -diff
	}
	return diff
}

func (a *attempt) totalCost() float64 {
	return a.up.cost + a.down.cost
}

func (a *attempt) cancelOpenLegs(ctx context.Context) {
	e := a.e
	for _, l := range []*leg{a.up, a.down} {
		if !l.open || l.orderID == "" {
			continue
		}
		cctx, cancel := context.WithTimeout(ctx, e.cfg.AckTimeout)
		if err := e.venue.Cancel(cctx, l.orderID); err != nil {
			e.logger.Warn("leg-cancel-failed",
				zap.String("order-id", l.orderID),
				zap.Error(err))
		}
		cancel()
		l.open = false
		if e.bus != nil {
			e.bus.Publish(events.OrderCancelled{
				MarketID: a.market.ID,
				OrderID:  l.orderID,
				Reason:   "attempt terminated",
			})
		}
	}
}

func (a *attempt) unwatchAll() {
	for _, l := range []*leg{a.up, a.down} {
		if l.orderID != "" {
			a.e.fills.Unwatch(l.orderID)
		}
	}
}

// settleSuccess closes the ledger on a both-legs-filled attempt. The
// matched pairs redeem for 1.0 at resolution; that payout is credited
// now so the bankroll reflects locked-in value.
func (a *attempt) settleSuccess() types.ExecutionResult {
	e := a.e

	pairs := a.up.filled
	if a.down.filled < pairs {
		pairs = a.down.filled
	}
	cost := a.totalCost()
	profit := pairs - cost

	e.gate.Release(a.grant.Reservation.ID, cost)
	e.gate.Credit(pairs)
	if e.breaker != nil {
		e.breaker.RecordSuccess()
	}

	AttemptsTotal.WithLabelValues("success").Inc()
	if profit > 0 {
		RealizedProfitTotal.Add(profit)
	}

	e.logger.Info("execution-complete",
		zap.String("market", a.market.ID),
		zap.String("strategy", string(a.plan.Strategy)),
		zap.Float64("pairs", pairs),
		zap.Float64("cost", cost),
		zap.Float64("profit", profit))

	return types.ExecutionResult{
		Success:        true,
		PairsFilled:    pairs,
		TotalCost:      cost,
		RealizedProfit: profit,
	}
}

// settleFailure closes the ledger on any non-success outcome. Net cost
// (spend minus hedge proceeds) leaves the bankroll; the breaker is fed
// only for genuine failures, not clean misses.
func (a *attempt) settleFailure(result, detail string, countsAsFailure bool) types.ExecutionResult {
	e := a.e

	netCost := a.totalCost() - a.hedgeProceeds
	if netCost < 0 {
		netCost = 0
	}
	e.gate.Release(a.grant.Reservation.ID, netCost)

	if countsAsFailure && e.breaker != nil {
		e.breaker.RecordFailure()
	}
	AttemptsTotal.WithLabelValues(result).Inc()

	e.logger.Warn("execution-failed",
		zap.String("market", a.market.ID),
		zap.String("result", result),
		zap.String("detail", detail),
		zap.Float64("net-cost", netCost),
		zap.Bool("hedged", a.hedged))

	return types.ExecutionResult{
		Success:   false,
		TotalCost: a.totalCost(),
		Hedged:    a.hedged,
		Err:       detail,
	}
}
