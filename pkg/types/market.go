package types

import (
	"fmt"
	"math"
	"time"
)

// Market is a registered binary up/down market. Immutable after
// registration; the two outcome tokens jointly resolve to 1.0.
type Market struct {
	ID           string
	Slug         string
	Question     string
	UpTokenID    string
	DownTokenID  string
	ExpiresAt    time.Time
	TickSize     float64
	TicksPerUnit int64
	TakerFeeBps  int64
	MakerFeeBps  int64
	MinOrderSize float64
}

// Validate checks the registration invariants.
func (m *Market) Validate(now time.Time) error {
	if m.ID == "" {
		return fmt.Errorf("market id cannot be empty")
	}
	if m.UpTokenID == "" || m.DownTokenID == "" {
		return fmt.Errorf("market %s: both tokens must be non-empty", m.ID)
	}
	if m.UpTokenID == m.DownTokenID {
		return fmt.Errorf("market %s: up and down tokens must differ", m.ID)
	}
	if !m.ExpiresAt.After(now) {
		return fmt.Errorf("market %s: expiry %s is not in the future", m.ID, m.ExpiresAt)
	}
	if m.TicksPerUnit <= 0 {
		return fmt.Errorf("market %s: invalid ticks per unit %d", m.ID, m.TicksPerUnit)
	}
	return nil
}

// TokenFor returns the token ID for the given side.
func (m *Market) TokenFor(side MarketSide) string {
	if side == SideUp {
		return m.UpTokenID
	}
	return m.DownTokenID
}

// TimeToResolution returns how long until the market resolves.
func (m *Market) TimeToResolution(now time.Time) time.Duration {
	return m.ExpiresAt.Sub(now)
}

// MarketSide identifies one of the two outcomes of a binary market.
type MarketSide string

const (
	SideUp   MarketSide = "up"
	SideDown MarketSide = "down"
)

// Other returns the opposite outcome.
func (s MarketSide) Other() MarketSide {
	if s == SideUp {
		return SideDown
	}
	return SideUp
}

// Ticks is a price expressed in integer ticks of a market's tick size.
// All arbitrage comparisons happen in ticks so that sums near the 1.0
// boundary are exact.
type Ticks int64

// TicksPerUnit derives the tick count of one full unit from a decimal
// tick size (0.01 -> 100).
func TicksPerUnit(tickSize float64) int64 {
	if tickSize <= 0 {
		return 0
	}
	return int64(math.Round(1 / tickSize))
}

// TicksFromPrice rounds a decimal price to the nearest tick.
func TicksFromPrice(price float64, ticksPerUnit int64) Ticks {
	return Ticks(math.Round(price * float64(ticksPerUnit)))
}

// Price converts ticks back to a decimal price.
func (t Ticks) Price(ticksPerUnit int64) float64 {
	return float64(t) / float64(ticksPerUnit)
}

// FeeReserveTicks computes the tick amount reserved for taker fees on a
// pair costing priceSum ticks, rounding up so the reserve never
// understates the fee.
func FeeReserveTicks(priceSum Ticks, feeBps int64) Ticks {
	if feeBps <= 0 || priceSum <= 0 {
		return 0
	}
	num := int64(priceSum) * feeBps
	return Ticks((num + 9999) / 10000)
}
