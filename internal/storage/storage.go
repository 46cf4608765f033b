package storage

import (
	"context"

	"github.com/polyflip/updown-arb/pkg/types"
)

// Storage persists detection and execution history for later analysis.
type Storage interface {
	StoreOpportunity(ctx context.Context, opp *types.Opportunity) error
	StoreExecution(ctx context.Context, result *types.ExecutionResult) error
	StoreIncident(ctx context.Context, incident *types.RiskIncident) error
	Close() error
}
