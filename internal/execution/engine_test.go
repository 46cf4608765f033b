package execution

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/polyflip/updown-arb/internal/events"
	"github.com/polyflip/updown-arb/internal/registry"
	"github.com/polyflip/updown-arb/internal/risk"
	"github.com/polyflip/updown-arb/pkg/clock"
	"github.com/polyflip/updown-arb/pkg/types"
)

// fakeVenue scripts per-token buy behavior and global sell behavior so
// tests can force one-sided fills, dead legs, and failed hedges.
type fakeVenue struct {
	mu       sync.Mutex
	buyMode  map[string]string // token -> "fill" | "cancel" | "none"
	sellMode string            // "fill" | "reject"
	watchers map[string]chan types.FillUpdate
	pending  map[string][]types.FillUpdate
	orders   map[string]types.OrderRequest
	n        int
}

func newFakeVenue() *fakeVenue {
	return &fakeVenue{
		buyMode:  make(map[string]string),
		sellMode: "fill",
		watchers: make(map[string]chan types.FillUpdate),
		pending:  make(map[string][]types.FillUpdate),
		orders:   make(map[string]types.OrderRequest),
	}
}

func (v *fakeVenue) Submit(_ context.Context, req types.OrderRequest) (types.OrderAck, error) {
	v.mu.Lock()
	if req.Side == types.Sell && v.sellMode == "reject" {
		v.mu.Unlock()
		return types.OrderAck{}, fmt.Errorf("hedge refused: %w", types.ErrSubmitRejected)
	}

	v.n++
	orderID := fmt.Sprintf("ord-%d", v.n)
	v.orders[orderID] = req

	mode := "fill"
	if req.Side == types.Buy {
		if m, ok := v.buyMode[req.TokenID]; ok {
			mode = m
		}
	}
	v.mu.Unlock()

	if mode == "none" {
		// Acked but never filled: the order rests forever.
		return types.OrderAck{OrderID: orderID, Status: "live"}, nil
	}

	go func() {
		time.Sleep(2 * time.Millisecond)
		if mode == "cancel" {
			v.deliver(orderID, types.FillUpdate{
				OrderID:   orderID,
				Remaining: req.Size,
				Status:    types.FillStatusCancelled,
			})
			return
		}
		v.deliver(orderID, types.FillUpdate{
			OrderID:    orderID,
			FilledSize: req.Size,
			Price:      req.Price(),
			Remaining:  0,
			Status:     types.FillStatusMatched,
		})
	}()

	return types.OrderAck{OrderID: orderID, Status: "live"}, nil
}

func (v *fakeVenue) Cancel(context.Context, string) error { return nil }

func (v *fakeVenue) deliver(orderID string, fu types.FillUpdate) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if ch, ok := v.watchers[orderID]; ok {
		select {
		case ch <- fu:
			return
		default:
		}
	}
	v.pending[orderID] = append(v.pending[orderID], fu)
}

func (v *fakeVenue) Watch(orderID string) <-chan types.FillUpdate {
	v.mu.Lock()
	defer v.mu.Unlock()
	if ch, ok := v.watchers[orderID]; ok {
		return ch
	}
	ch := make(chan types.FillUpdate, watchBuffer)
	v.watchers[orderID] = ch
	for _, fu := range v.pending[orderID] {
		ch <- fu
	}
	delete(v.pending, orderID)
	return ch
}

func (v *fakeVenue) Unwatch(orderID string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.watchers, orderID)
}

func (v *fakeVenue) sells() []types.OrderRequest {
	v.mu.Lock()
	defer v.mu.Unlock()
	var out []types.OrderRequest
	for _, req := range v.orders {
		if req.Side == types.Sell {
			out = append(out, req)
		}
	}
	return out
}

type engineFixture struct {
	engine *Engine
	venue  *fakeVenue
	gate   *risk.Gate
	bus    *events.Bus
	done   <-chan events.Event
}

func newEngineFixture(t *testing.T, expiresIn time.Duration) *engineFixture {
	t.Helper()
	logger := zaptest.NewLogger(t)

	bus := events.NewBus(logger)
	t.Cleanup(bus.Close)
	done := bus.Subscribe("test", 128)

	reg := registry.New(registry.Config{Logger: logger})
	require.NoError(t, reg.Add(types.Market{
		ID:           "mkt-1",
		Slug:         "btc-updown-15m",
		UpTokenID:    "tok-up",
		DownTokenID:  "tok-down",
		ExpiresAt:    time.Now().Add(expiresIn),
		TickSize:     0.01,
		TicksPerUnit: 100,
		MinOrderSize: 1,
	}))

	gate := risk.NewGate(risk.Config{
		Bankroll:            1000,
		MaxBetSize:          100,
		MinNotional:         1,
		MaxBankrollFraction: 1.0,
		ReservationTTL:      10 * time.Second,
		Logger:              logger,
		Bus:                 bus,
	})

	venue := newFakeVenue()
	engine := New(Config{
		MaxImbalance:     30 * time.Millisecond,
		MaxSlippageTicks: 5,
		AckTimeout:       500 * time.Millisecond,
		HedgeTimeout:     500 * time.Millisecond,
		AttemptTimeout:   2 * time.Second,
		PoolSize:         4,
		MaxEscalations:   2,
		Venue:            venue,
		Fills:            venue,
		Gate:             gate,
		Registry:         reg,
		Bus:              bus,
		Logger:           logger,
	})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		cancel()
		engine.Close()
	})
	engine.Start(ctx)

	return &engineFixture{engine: engine, venue: venue, gate: gate, bus: bus, done: done}
}

func engineOpportunity(size float64) types.Opportunity {
	return types.Opportunity{
		ID:           "opp-1",
		MarketID:     "mkt-1",
		AskUp:        48,
		AskDown:      47,
		SizeUp:       size,
		SizeDown:     size,
		MarginTicks:  5,
		TicksPerUnit: 100,
		SeqUp:        10,
		SeqDown:      20,
	}
}

func (f *engineFixture) awaitResult(t *testing.T) types.ExecutionResult {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case e := <-f.done:
			if completed, ok := e.(events.ExecutionCompleted); ok {
				return completed.Result
			}
		case <-deadline:
			t.Fatal("timed out waiting for execution result")
		}
	}
}

func TestEngineCleanTwoLeggedFill(t *testing.T) {
	t.Parallel()

	f := newEngineFixture(t, 10*time.Minute)
	f.engine.Submit(engineOpportunity(10))

	result := f.awaitResult(t)
	require.True(t, result.Success)
	assert.Equal(t, string(StrategyMakerBoth), result.Strategy)
	assert.Equal(t, 10.0, result.PairsFilled)
	// Maker legs rest one tick inside each ask: 0.47 and 0.46.
	assert.InDelta(t, 9.3, result.TotalCost, 1e-9)
	assert.InDelta(t, 0.7, result.RealizedProfit, 1e-9)

	// Ledger: cost left the bankroll, the guaranteed payout came back.
	available, reserved := f.gate.Balances()
	assert.InDelta(t, 1000.7, available, 1e-9)
	assert.InDelta(t, 0, reserved, 1e-9)
	assert.False(t, f.gate.HasLive("mkt-1"), "reservation must be closed")
}

func TestEngineTakerBothNearResolution(t *testing.T) {
	t.Parallel()

	f := newEngineFixture(t, 45*time.Second)
	f.engine.Submit(engineOpportunity(10))

	result := f.awaitResult(t)
	require.True(t, result.Success)
	assert.Equal(t, string(StrategyTakerBoth), result.Strategy)
	// Taker legs lift the asks: 0.48 and 0.47.
	assert.InDelta(t, 9.5, result.TotalCost, 1e-9)
}

func TestEngineHedgesUnfillableLeg(t *testing.T) {
	t.Parallel()

	f := newEngineFixture(t, 10*time.Minute)
	f.venue.buyMode["tok-down"] = "cancel"
	f.engine.Submit(engineOpportunity(10))

	result := f.awaitResult(t)
	require.False(t, result.Success)
	assert.True(t, result.Hedged, "one-sided position must be flattened")

	assert.False(t, f.gate.IsQuarantined("mkt-1"), "a clean hedge is not an incident")
	assert.False(t, f.gate.HasLive("mkt-1"))

	// The flattening order is a marketable IOC sell.
	sells := f.venue.sells()
	require.Len(t, sells, 1)
	assert.Equal(t, types.MarketOrder, sells[0].Kind)
	assert.Equal(t, types.IOC, sells[0].TIF)

	// Cost of the filled up leg minus the hedge proceeds stays small.
	available, reserved := f.gate.Balances()
	assert.InDelta(t, 0, reserved, 1e-9)
	assert.Less(t, available, 1000.0)
	assert.Greater(t, available, 995.0)
}

func TestEngineQuarantinesWhenHedgeFails(t *testing.T) {
	t.Parallel()

	f := newEngineFixture(t, 10*time.Minute)
	f.venue.buyMode["tok-down"] = "cancel"
	f.venue.sellMode = "reject"
	f.engine.Submit(engineOpportunity(10))

	result := f.awaitResult(t)
	require.False(t, result.Success)
	assert.False(t, result.Hedged)

	assert.True(t, f.gate.IsQuarantined("mkt-1"),
		"an unresolved one-sided position must quarantine the market")
	assert.False(t, f.gate.HasLive("mkt-1"), "the reservation must still be released")

	// No further attempts while quarantined.
	f.engine.Submit(engineOpportunity(10))
	sawReject := false
	deadline := time.After(time.Second)
	for !sawReject {
		select {
		case e := <-f.done:
			if r, ok := e.(events.OpportunityRejected); ok && r.Reason == types.RejectQuarantined {
				sawReject = true
			}
		case <-deadline:
			t.Fatal("expected a quarantine rejection")
		}
	}
}

func TestEngineAbortsAttemptWhenReservationSwept(t *testing.T) {
	t.Parallel()

	logger := zaptest.NewLogger(t)
	bus := events.NewBus(logger)
	t.Cleanup(bus.Close)
	done := bus.Subscribe("test", 128)

	reg := registry.New(registry.Config{Logger: logger})
	require.NoError(t, reg.Add(types.Market{
		ID:           "mkt-1",
		Slug:         "btc-updown-15m",
		UpTokenID:    "tok-up",
		DownTokenID:  "tok-down",
		ExpiresAt:    time.Now().Add(10 * time.Minute),
		TickSize:     0.01,
		TicksPerUnit: 100,
		MinOrderSize: 1,
	}))

	mc := clock.NewManual(time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC))
	var eng *Engine
	gate := risk.NewGate(risk.Config{
		Bankroll:            1000,
		MaxBetSize:          100,
		MinNotional:         1,
		MaxBankrollFraction: 1.0,
		ReservationTTL:      10 * time.Second,
		Clock:               mc,
		Logger:              logger,
		Bus:                 bus,
		OnExpire: func(res types.Reservation) {
			eng.CancelReservation(res.ID)
		},
	})

	venue := newFakeVenue()
	venue.buyMode["tok-up"] = "none"
	venue.buyMode["tok-down"] = "none"

	eng = New(Config{
		MaxImbalance:     30 * time.Millisecond,
		MaxSlippageTicks: 5,
		AckTimeout:       500 * time.Millisecond,
		HedgeTimeout:     500 * time.Millisecond,
		// Long enough that only the sweep can end this attempt.
		AttemptTimeout: 30 * time.Second,
		PoolSize:       4,
		MaxEscalations: 2,
		Venue:          venue,
		Fills:          venue,
		Gate:           gate,
		Registry:       reg,
		Bus:            bus,
		Logger:         logger,
	})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		cancel()
		eng.Close()
	})
	eng.Start(ctx)

	eng.Submit(engineOpportunity(10))
	require.True(t, gate.HasLive("mkt-1"))

	mc.Advance(11 * time.Second)
	require.Len(t, gate.SweepExpired(), 1)

	deadline := time.After(3 * time.Second)
	for {
		select {
		case e := <-done:
			completed, ok := e.(events.ExecutionCompleted)
			if !ok {
				continue
			}
			require.False(t, completed.Result.Success)
			// Nothing filled, so the sweep's refund stands.
			available, reserved := gate.Balances()
			assert.InDelta(t, 1000, available, 1e-9)
			assert.InDelta(t, 0, reserved, 1e-9)
			assert.False(t, gate.HasLive("mkt-1"))
			return
		case <-deadline:
			t.Fatal("sweep must cancel the resting attempt")
		}
	}
}

func TestEngineRejectsSecondOpportunitySameMarket(t *testing.T) {
	t.Parallel()

	f := newEngineFixture(t, 10*time.Minute)
	f.engine.Submit(engineOpportunity(10))
	f.engine.Submit(engineOpportunity(10))

	sawInFlight := false
	sawCompleted := false
	deadline := time.After(3 * time.Second)
	for !sawInFlight || !sawCompleted {
		select {
		case e := <-f.done:
			switch ev := e.(type) {
			case events.OpportunityRejected:
				if ev.Reason == types.RejectInFlight {
					sawInFlight = true
				}
			case events.ExecutionCompleted:
				sawCompleted = true
			}
		case <-deadline:
			t.Fatalf("in-flight=%v completed=%v", sawInFlight, sawCompleted)
		}
	}
}
