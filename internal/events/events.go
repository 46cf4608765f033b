package events

import (
	"time"

	"github.com/polyflip/updown-arb/pkg/types"
)

// Kind identifies the event type on the bus.
type Kind string

const (
	KindOpportunityDetected Kind = "opportunity_detected"
	KindOpportunityRejected Kind = "opportunity_rejected"
	KindOrderSubmitted      Kind = "order_submitted"
	KindOrderAcked          Kind = "order_acked"
	KindOrderFilled         Kind = "order_filled"
	KindOrderCancelled      Kind = "order_cancelled"
	KindHedgeTriggered      Kind = "hedge_triggered"
	KindExecutionCompleted  Kind = "execution_completed"
	KindFeedDisconnected    Kind = "feed_disconnected"
	KindFeedReconnected     Kind = "feed_reconnected"
	KindRiskIncident        Kind = "risk_incident"
	KindMarketAdded         Kind = "market_added"
	KindMarketRemoved       Kind = "market_removed"
)

// Event is anything publishable on the bus.
type Event interface {
	Kind() Kind
}

// OpportunityDetected is emitted when the detector finds a crossing.
type OpportunityDetected struct {
	Opportunity types.Opportunity
}

func (OpportunityDetected) Kind() Kind { return KindOpportunityDetected }

// OpportunityRejected is emitted when the risk gate (or detector
// freshness check) declines an opportunity. Expected outcome, not error.
type OpportunityRejected struct {
	OpportunityID string
	MarketID      string
	Reason        types.RejectReason
}

func (OpportunityRejected) Kind() Kind { return KindOpportunityRejected }

// OrderSubmitted is emitted when a leg order is sent to the venue.
type OrderSubmitted struct {
	AttemptID string
	MarketID  string
	ClientID  string
	Side      types.MarketSide
	OrderType types.OrderKind
	Price     float64
	Size      float64
}

func (OrderSubmitted) Kind() Kind { return KindOrderSubmitted }

// OrderAcked is emitted when the venue acknowledges a submission.
type OrderAcked struct {
	AttemptID string
	MarketID  string
	ClientID  string
	OrderID   string
}

func (OrderAcked) Kind() Kind { return KindOrderAcked }

// OrderFilled is emitted on any (partial or full) fill report.
type OrderFilled struct {
	AttemptID string
	MarketID  string
	OrderID   string
	Filled    float64
	Remaining float64
	Price     float64
}

func (OrderFilled) Kind() Kind { return KindOrderFilled }

// OrderCancelled is emitted when a working order is cancelled or rejected.
type OrderCancelled struct {
	AttemptID string
	MarketID  string
	OrderID   string
	Reason    string
}

func (OrderCancelled) Kind() Kind { return KindOrderCancelled }

// HedgeTriggered is emitted when a one-sided position forces a
// marketable hedge order.
type HedgeTriggered struct {
	AttemptID string
	MarketID  string
	Side      types.MarketSide
	Size      float64
}

func (HedgeTriggered) Kind() Kind { return KindHedgeTriggered }

// ExecutionCompleted is emitted exactly once per execution attempt.
type ExecutionCompleted struct {
	Result types.ExecutionResult
}

func (ExecutionCompleted) Kind() Kind { return KindExecutionCompleted }

// FeedDisconnected is emitted when a feed source loses its transport.
type FeedDisconnected struct {
	Source string
	Reason string
	At     time.Time
}

func (FeedDisconnected) Kind() Kind { return KindFeedDisconnected }

// FeedReconnected is emitted when a feed source is reestablished.
type FeedReconnected struct {
	Source string
	At     time.Time
}

func (FeedReconnected) Kind() Kind { return KindFeedReconnected }

// RiskIncident is emitted when exposure cannot be flattened in time.
type RiskIncident struct {
	Incident types.RiskIncident
}

func (RiskIncident) Kind() Kind { return KindRiskIncident }

// MarketAdded is emitted by the registry on a successful registration.
type MarketAdded struct {
	Market types.Market
}

func (MarketAdded) Kind() Kind { return KindMarketAdded }

// MarketRemoved is emitted on expiry sweep or explicit eviction.
type MarketRemoved struct {
	MarketID string
	Reason   string
}

func (MarketRemoved) Kind() Kind { return KindMarketRemoved }
