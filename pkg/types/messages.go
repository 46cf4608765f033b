package types

// Wire formats for the venue's market-data push channel and REST book
// endpoint. Prices and sizes travel as decimal strings.

// PriceLevel is one level of a book side.
type PriceLevel struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

// BookChange is one entry of a delta frame.
type BookChange struct {
	Side  string `json:"side"` // BUY or SELL
	Price string `json:"price"`
	Size  string `json:"size"`
}

// MarketFrame is an inbound frame on the market channel.
type MarketFrame struct {
	Type    string       `json:"type"` // snapshot, delta, trade, heartbeat
	Token   string       `json:"token"`
	Bids    []PriceLevel `json:"bids,omitempty"`
	Asks    []PriceLevel `json:"asks,omitempty"`
	Changes []BookChange `json:"changes,omitempty"`
	Seq     uint64       `json:"seq"`
}

const (
	FrameSnapshot  = "snapshot"
	FrameDelta     = "delta"
	FrameTrade     = "trade"
	FrameHeartbeat = "heartbeat"
)

// SubscribeFrame is the outbound subscription request.
type SubscribeFrame struct {
	Type   string   `json:"type"` // always "subscribe"
	Tokens []string `json:"tokens"`
}

// RestBook is the response of GET /book?token_id=...
type RestBook struct {
	Bids []PriceLevel `json:"bids"`
	Asks []PriceLevel `json:"asks"`
	Seq  uint64       `json:"seq"`
}

// FillUpdate is an inbound frame on the per-user fills channel, and the
// event that advances execution attempts.
type FillUpdate struct {
	OrderID    string  `json:"order_id"`
	FilledSize float64 `json:"filled_size"`
	Price      float64 `json:"price"`
	Remaining  float64 `json:"remaining"`
	Status     string  `json:"status"` // live, matched, cancelled, rejected
}

const (
	FillStatusLive      = "live"
	FillStatusMatched   = "matched"
	FillStatusCancelled = "cancelled"
	FillStatusRejected  = "rejected"
)
