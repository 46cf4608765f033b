package execution

import (
	"time"

	"github.com/polyflip/updown-arb/pkg/types"
)

// Strategy names the leg placement policy picked for an attempt.
type Strategy string

const (
	// StrategyMakerBoth rests both legs one tick inside the ask.
	StrategyMakerBoth Strategy = "maker_both"
	// StrategyHybrid rests the deeper-book leg and takes the other.
	StrategyHybrid Strategy = "hybrid"
	// StrategyTakerBoth lifts both asks immediately.
	StrategyTakerBoth Strategy = "taker_both"
	// StrategyTakerUrgent lifts both asks with a slippage allowance,
	// used close to resolution when a miss is worse than a worse price.
	StrategyTakerUrgent Strategy = "taker_urgent"
)

// Ladder thresholds on time to resolution.
const (
	makerHorizon  = 120 * time.Second
	hybridHorizon = 60 * time.Second
	urgentHorizon = 30 * time.Second
)

// legPlan is the placement decision for one leg.
type legPlan struct {
	Side  types.MarketSide
	Price types.Ticks
	Kind  types.OrderKind
	TIF   types.TimeInForce
}

// attemptPlan is the full placement decision for an opportunity.
type attemptPlan struct {
	Strategy Strategy
	Up       legPlan
	Down     legPlan
	// SlippageBudget is how many ticks above the detected ask an
	// escalated or urgent taker leg may pay.
	SlippageBudget types.Ticks
}

// makerPrice rests one tick inside the ask, floored at one tick.
func makerPrice(ask types.Ticks) types.Ticks {
	if ask <= 1 {
		return 1
	}
	return ask - 1
}

func makerLeg(side types.MarketSide, ask types.Ticks) legPlan {
	return legPlan{Side: side, Price: makerPrice(ask), Kind: types.Limit, TIF: types.GTC}
}

func takerLeg(side types.MarketSide, ask types.Ticks, slippage types.Ticks) legPlan {
	return legPlan{Side: side, Price: ask + slippage, Kind: types.Limit, TIF: types.IOC}
}

// buildPlan selects the placement ladder from time to resolution.
// takerFeeTicks is the per-pair taker fee in ticks, used to decide
// whether the hybrid's taker leg still leaves an edge.
func buildPlan(opp types.Opportunity, timeToResolution time.Duration, takerFeeTicks types.Ticks, maxSlippage types.Ticks) attemptPlan {
	switch {
	case timeToResolution > makerHorizon:
		return attemptPlan{
			Strategy: StrategyMakerBoth,
			Up:       makerLeg(types.SideUp, opp.AskUp),
			Down:     makerLeg(types.SideDown, opp.AskDown),
		}

	case timeToResolution > hybridHorizon:
		// Rest the deeper side (more likely to get taken out) and take
		// the thinner side, provided the margin survives one taker fee
		// twice over.
		if opp.MarginTicks > 2*takerFeeTicks {
			if opp.SizeUp >= opp.SizeDown {
				return attemptPlan{
					Strategy: StrategyHybrid,
					Up:       makerLeg(types.SideUp, opp.AskUp),
					Down:     takerLeg(types.SideDown, opp.AskDown, 0),
				}
			}
			return attemptPlan{
				Strategy: StrategyHybrid,
				Up:       takerLeg(types.SideUp, opp.AskUp, 0),
				Down:     makerLeg(types.SideDown, opp.AskDown),
			}
		}
		return attemptPlan{
			Strategy: StrategyMakerBoth,
			Up:       makerLeg(types.SideUp, opp.AskUp),
			Down:     makerLeg(types.SideDown, opp.AskDown),
		}

	case timeToResolution > urgentHorizon:
		return attemptPlan{
			Strategy: StrategyTakerBoth,
			Up:       takerLeg(types.SideUp, opp.AskUp, 0),
			Down:     takerLeg(types.SideDown, opp.AskDown, 0),
		}

	default:
		// One tick of slippage allowance per leg, inside the global cap.
		slip := types.Ticks(1)
		if slip > maxSlippage {
			slip = maxSlippage
		}
		return attemptPlan{
			Strategy:       StrategyTakerUrgent,
			Up:             takerLeg(types.SideUp, opp.AskUp, slip),
			Down:           takerLeg(types.SideDown, opp.AskDown, slip),
			SlippageBudget: slip,
		}
	}
}
