package execution

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/polyflip/updown-arb/pkg/types"
)

func ladderOpp(askUp, askDown types.Ticks, sizeUp, sizeDown float64) types.Opportunity {
	return types.Opportunity{
		MarketID:     "mkt-1",
		AskUp:        askUp,
		AskDown:      askDown,
		SizeUp:       sizeUp,
		SizeDown:     sizeDown,
		MarginTicks:  types.Ticks(100) - askUp - askDown,
		TicksPerUnit: 100,
	}
}

func TestBuildPlanMakerBothFarFromResolution(t *testing.T) {
	t.Parallel()

	p := buildPlan(ladderOpp(48, 47, 10, 10), 5*time.Minute, 0, 5)

	assert.Equal(t, StrategyMakerBoth, p.Strategy)
	assert.Equal(t, types.Ticks(47), p.Up.Price, "maker rests one tick inside the ask")
	assert.Equal(t, types.Ticks(46), p.Down.Price)
	assert.Equal(t, types.GTC, p.Up.TIF)
	assert.Equal(t, types.GTC, p.Down.TIF)
}

func TestBuildPlanHybridTakesThinnerSide(t *testing.T) {
	t.Parallel()

	// Margin 5 ticks with a 1-tick taker fee: edge survives, so hybrid
	// applies. Down is the thinner book and gets taken.
	p := buildPlan(ladderOpp(48, 47, 100, 10), 90*time.Second, 1, 5)

	assert.Equal(t, StrategyHybrid, p.Strategy)
	assert.Equal(t, types.GTC, p.Up.TIF, "deeper side rests")
	assert.Equal(t, types.Ticks(47), p.Up.Price)
	assert.Equal(t, types.IOC, p.Down.TIF, "thinner side is taken")
	assert.Equal(t, types.Ticks(47), p.Down.Price, "taker lifts the ask as-is")
}

func TestBuildPlanHybridFallsBackWhenFeesEatTheEdge(t *testing.T) {
	t.Parallel()

	// Margin 2 with taker fee 1: 2 > 2x1 fails, rest both instead.
	p := buildPlan(ladderOpp(49, 49, 100, 10), 90*time.Second, 1, 5)
	assert.Equal(t, StrategyMakerBoth, p.Strategy)
}

func TestBuildPlanTakerBothNearResolution(t *testing.T) {
	t.Parallel()

	p := buildPlan(ladderOpp(48, 47, 10, 10), 45*time.Second, 0, 5)

	assert.Equal(t, StrategyTakerBoth, p.Strategy)
	assert.Equal(t, types.Ticks(48), p.Up.Price)
	assert.Equal(t, types.IOC, p.Up.TIF)
	assert.Equal(t, types.IOC, p.Down.TIF)
}

func TestBuildPlanUrgentAddsSlippage(t *testing.T) {
	t.Parallel()

	p := buildPlan(ladderOpp(48, 47, 10, 10), 15*time.Second, 0, 5)

	assert.Equal(t, StrategyTakerUrgent, p.Strategy)
	assert.Equal(t, types.Ticks(49), p.Up.Price, "urgent legs pay one tick over")
	assert.Equal(t, types.Ticks(48), p.Down.Price)
	assert.Equal(t, types.Ticks(1), p.SlippageBudget)
}

func TestMakerPriceFloorsAtOneTick(t *testing.T) {
	t.Parallel()

	assert.Equal(t, types.Ticks(1), makerPrice(1))
	assert.Equal(t, types.Ticks(1), makerPrice(2))
	assert.Equal(t, types.Ticks(41), makerPrice(42))
}

func TestIdempotencyKeyDeterministic(t *testing.T) {
	t.Parallel()

	a := idempotencyKey("mkt-1", types.SideUp, 10, 20, "res-1")
	b := idempotencyKey("mkt-1", types.SideUp, 10, 20, "res-1")
	assert.Equal(t, a, b, "same intent must map to the same key")

	assert.NotEqual(t, a, idempotencyKey("mkt-1", types.SideDown, 10, 20, "res-1"))
	assert.NotEqual(t, a, idempotencyKey("mkt-1", types.SideUp, 11, 20, "res-1"))
	assert.NotEqual(t, a, idempotencyKey("mkt-1", types.SideUp, 10, 20, "res-2"))
}
