package types

// OrderSide is the direction of an order.
type OrderSide string

const (
	Buy  OrderSide = "BUY"
	Sell OrderSide = "SELL"
)

// OrderKind selects limit (maker-capable) or marketable execution.
type OrderKind string

const (
	Limit       OrderKind = "LIMIT"
	MarketOrder OrderKind = "MARKET"
)

// TimeInForce controls how long an order rests.
type TimeInForce string

const (
	GTC TimeInForce = "GTC"
	IOC TimeInForce = "IOC"
	FOK TimeInForce = "FOK"
)

// OrderRequest is a single leg order before signing. PriceTicks is
// interpreted against TicksPerUnit.
type OrderRequest struct {
	TokenID      string
	Side         OrderSide
	PriceTicks   Ticks
	TicksPerUnit int64
	Size         float64
	Kind         OrderKind
	TIF          TimeInForce
	ClientID     string
}

// Price returns the decimal price of the request.
func (o *OrderRequest) Price() float64 {
	return o.PriceTicks.Price(o.TicksPerUnit)
}

// Notional returns price x size in collateral units.
func (o *OrderRequest) Notional() float64 {
	return o.Price() * o.Size
}

// OrderAck is the venue's acknowledgement of a submission.
type OrderAck struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
}

// SignedOrder is the EIP-712 signed order in the JSON shape the venue
// expects. Built by the execution signer.
type SignedOrder struct {
	Salt          int64  `json:"salt"`
	Maker         string `json:"maker"`
	Signer        string `json:"signer"`
	Taker         string `json:"taker"`
	TokenID       string `json:"tokenId"`
	MakerAmount   string `json:"makerAmount"`
	TakerAmount   string `json:"takerAmount"`
	Side          string `json:"side"`
	Expiration    string `json:"expiration"`
	Nonce         string `json:"nonce"`
	FeeRateBps    string `json:"feeRateBps"`
	SignatureType int    `json:"signatureType"`
	Signature     string `json:"signature"`
}

// OrderSubmission wraps a signed order with submission metadata.
type OrderSubmission struct {
	Order     SignedOrder `json:"order"`
	Owner     string      `json:"owner"` // API key, not the maker address
	OrderType string      `json:"orderType"`
	ClientID  string      `json:"client_id"`
}
