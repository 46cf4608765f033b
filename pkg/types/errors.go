package types

import "errors"

// Sentinel errors for the failure kinds the engine distinguishes.
// Transient feed errors are recovered locally and surfaced as events;
// these sentinels classify the ones that cross component boundaries.
var (
	ErrConfigInvalid         = errors.New("config invalid")
	ErrDiscoveryUnavailable  = errors.New("discovery unavailable")
	ErrFeedTransport         = errors.New("feed transport error")
	ErrFeedProtocol          = errors.New("feed protocol error")
	ErrBookStale             = errors.New("book stale")
	ErrDuplicateToken        = errors.New("duplicate token")
	ErrSubmitTimeout         = errors.New("order submit timeout")
	ErrSubmitRejected        = errors.New("order submit rejected")
	ErrPartialFillUnresolved = errors.New("partial fill unresolved")
	ErrIdempotencyViolation  = errors.New("idempotency violation")
	ErrClockSkew             = errors.New("clock skew")
)

// RejectReason classifies why the risk gate declined an opportunity.
// Rejects are expected outcomes, not errors.
type RejectReason string

const (
	RejectInFlight          RejectReason = "in_flight"
	RejectBankrollExhausted RejectReason = "bankroll_exhausted"
	RejectBelowMinimum      RejectReason = "below_minimum"
	RejectBookStale         RejectReason = "book_stale"
	RejectHalted            RejectReason = "halted"
	RejectQuarantined       RejectReason = "quarantined"
	RejectSaturated         RejectReason = "saturated"
)
