package feed

import (
	"context"
	"fmt"
	"strconv"

	"github.com/polyflip/updown-arb/pkg/types"
)

// Ingestor feeds normalized book updates into the store. Exactly one
// push ingestor or one poll ingestor is active per token set.
type Ingestor interface {
	// Start runs the ingestor until the context is cancelled.
	Start(ctx context.Context) error
	// SetTokens replaces the tracked token set.
	SetTokens(refs []TokenRef)
}

// TokenRef carries the per-token context an ingestor needs to normalize
// prices into ticks.
type TokenRef struct {
	TokenID      string
	MarketID     string
	TicksPerUnit int64
}

// depth is the working book an ingestor maintains per token. Only used
// to derive top-of-book; never exposed.
type depth struct {
	ref  TokenRef
	bids map[types.Ticks]float64
	asks map[types.Ticks]float64
}

func newDepth(ref TokenRef) *depth {
	return &depth{
		ref:  ref,
		bids: make(map[types.Ticks]float64),
		asks: make(map[types.Ticks]float64),
	}
}

// rebuild replaces the depth from full snapshot levels.
func (d *depth) rebuild(bids, asks []types.PriceLevel) error {
	newBids := make(map[types.Ticks]float64, len(bids))
	newAsks := make(map[types.Ticks]float64, len(asks))

	for _, lvl := range bids {
		price, size, err := parseLevel(lvl.Price, lvl.Size, d.ref.TicksPerUnit)
		if err != nil {
			return fmt.Errorf("bid level: %w", err)
		}
		if size > 0 {
			newBids[price] = size
		}
	}
	for _, lvl := range asks {
		price, size, err := parseLevel(lvl.Price, lvl.Size, d.ref.TicksPerUnit)
		if err != nil {
			return fmt.Errorf("ask level: %w", err)
		}
		if size > 0 {
			newAsks[price] = size
		}
	}

	d.bids = newBids
	d.asks = newAsks
	return nil
}

// applyChanges mutates the depth with delta entries. A zero size removes
// the level.
func (d *depth) applyChanges(changes []types.BookChange) error {
	for _, ch := range changes {
		price, size, err := parseLevel(ch.Price, ch.Size, d.ref.TicksPerUnit)
		if err != nil {
			return fmt.Errorf("change level: %w", err)
		}

		var side map[types.Ticks]float64
		switch ch.Side {
		case "BUY":
			side = d.bids
		case "SELL":
			side = d.asks
		default:
			return fmt.Errorf("unknown change side %q", ch.Side)
		}

		if size <= 0 {
			delete(side, price)
		} else {
			side[price] = size
		}
	}
	return nil
}

// top derives the normalized top-of-book update. Seq and Snapshot are
// stamped by the caller.
func (d *depth) top() types.BookUpdate {
	u := types.BookUpdate{
		TokenID:  d.ref.TokenID,
		MarketID: d.ref.MarketID,
	}

	for price, size := range d.bids {
		if !u.HasBid || price > u.BestBid {
			u.BestBid = price
			u.BestBidSize = size
			u.HasBid = true
		}
	}
	for price, size := range d.asks {
		if !u.HasAsk || price < u.BestAsk {
			u.BestAsk = price
			u.BestAskSize = size
			u.HasAsk = true
		}
	}
	return u
}

// parseLevel converts a wire price/size pair into ticks and a float
// size. Prices outside (0, 1) are rejected.
func parseLevel(priceStr, sizeStr string, ticksPerUnit int64) (types.Ticks, float64, error) {
	price, err := strconv.ParseFloat(priceStr, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("parse price %q: %w", priceStr, err)
	}
	if price <= 0 || price >= 1 {
		return 0, 0, fmt.Errorf("price %q out of range", priceStr)
	}
	size, err := strconv.ParseFloat(sizeStr, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("parse size %q: %w", sizeStr, err)
	}
	if size < 0 {
		return 0, 0, fmt.Errorf("negative size %q", sizeStr)
	}
	return types.TicksFromPrice(price, ticksPerUnit), size, nil
}

// restBookToUpdate converts a REST book response into a snapshot update.
func restBookToUpdate(ref TokenRef, book types.RestBook) (types.BookUpdate, error) {
	d := newDepth(ref)
	if err := d.rebuild(book.Bids, book.Asks); err != nil {
		return types.BookUpdate{}, err
	}
	u := d.top()
	u.Seq = book.Seq
	u.Snapshot = true
	return u, nil
}
