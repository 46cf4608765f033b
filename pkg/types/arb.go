package types

import "time"

// Opportunity is a detected two-sided crossing. Ephemeral: recomputed on
// every book update, never stored by the detector itself.
type Opportunity struct {
	ID           string
	MarketID     string
	MarketSlug   string
	AskUp        Ticks
	AskDown      Ticks
	SizeUp       float64
	SizeDown     float64
	MarginTicks  Ticks
	TicksPerUnit int64
	FeeReserve   Ticks
	SeqUp        uint64
	SeqDown      uint64
	DetectedAt   time.Time
	ExpiresAt    time.Time
}

// Margin returns the per-pair profit margin as a decimal price.
func (o *Opportunity) Margin() float64 {
	return o.MarginTicks.Price(o.TicksPerUnit)
}

// PairCost returns ask_up + ask_down as a decimal price.
func (o *Opportunity) PairCost() float64 {
	return (o.AskUp + o.AskDown).Price(o.TicksPerUnit)
}

// MatchableSize returns the share count fillable on both sides.
func (o *Opportunity) MatchableSize() float64 {
	if o.SizeUp < o.SizeDown {
		return o.SizeUp
	}
	return o.SizeDown
}

// ReservationState tracks a bankroll reservation's lifecycle.
type ReservationState string

const (
	ReservationPending ReservationState = "pending"
	ReservationPartial ReservationState = "partial"
	ReservationClosed  ReservationState = "closed"
)

// Reservation is a bankroll lock held from opportunity acceptance until
// the execution attempt terminates. Passed by value outside the gate.
type Reservation struct {
	ID        string
	MarketID  string
	Notional  float64
	CreatedAt time.Time
	State     ReservationState
}

// ExecutionResult summarizes a finished execution attempt.
type ExecutionResult struct {
	AttemptID      string
	OpportunityID  string
	MarketID       string
	Strategy       string
	Success        bool
	PairsFilled    float64
	TotalCost      float64
	RealizedProfit float64
	Hedged         bool
	StartedAt      time.Time
	FinishedAt     time.Time
	Err            string
}

// RiskIncident is raised when a position cannot be flattened inside the
// imbalance window. The market is quarantined until an operator clears it.
type RiskIncident struct {
	MarketID   string
	Kind       string
	Detail     string
	Exposure   float64
	OccurredAt time.Time
}
