package types

import "time"

// BookSnapshot is the top of book for a single token. Snapshots are
// copied on read; a snapshot never mutates after it leaves the store.
type BookSnapshot struct {
	TokenID     string
	MarketID    string
	HasBid      bool
	HasAsk      bool
	BestBid     Ticks
	BestAsk     Ticks
	BestBidSize float64
	BestAskSize float64
	Seq         uint64
	UpdatedAt   time.Time
	SourceStale bool
}

// Fresh reports whether the snapshot is usable for trading decisions:
// young enough and not flagged stale by its feed source.
func (b *BookSnapshot) Fresh(now time.Time, ttl time.Duration) bool {
	if b.SourceStale {
		return false
	}
	if b.UpdatedAt.IsZero() {
		return false
	}
	return now.Sub(b.UpdatedAt) <= ttl
}

// BookUpdate is a normalized top-of-book write produced by a feed
// ingestor. Prices are already converted to ticks.
type BookUpdate struct {
	TokenID     string
	MarketID    string
	HasBid      bool
	HasAsk      bool
	BestBid     Ticks
	BestAsk     Ticks
	BestBidSize float64
	BestAskSize float64
	Seq         uint64
	// Snapshot updates replace the book unconditionally and clear the
	// stale flag; deltas are rejected while a book is stale.
	Snapshot bool
}
