package storage

import (
	"context"

	"go.uber.org/zap"

	"github.com/polyflip/updown-arb/pkg/types"
)

// ConsoleStorage logs records instead of persisting them. The default
// when no database is configured.
type ConsoleStorage struct {
	logger *zap.Logger
}

// NewConsoleStorage creates a console storage.
func NewConsoleStorage(logger *zap.Logger) *ConsoleStorage {
	return &ConsoleStorage{logger: logger}
}

// StoreOpportunity logs the opportunity.
func (c *ConsoleStorage) StoreOpportunity(_ context.Context, opp *types.Opportunity) error {
	c.logger.Info("opportunity-record",
		zap.String("id", opp.ID),
		zap.String("market", opp.MarketID),
		zap.String("slug", opp.MarketSlug),
		zap.Float64("ask-up", opp.AskUp.Price(opp.TicksPerUnit)),
		zap.Float64("ask-down", opp.AskDown.Price(opp.TicksPerUnit)),
		zap.Float64("margin", opp.Margin()),
		zap.Float64("matchable", opp.MatchableSize()))
	return nil
}

// StoreExecution logs the execution result.
func (c *ConsoleStorage) StoreExecution(_ context.Context, result *types.ExecutionResult) error {
	c.logger.Info("execution-record",
		zap.String("attempt", result.AttemptID),
		zap.String("market", result.MarketID),
		zap.String("strategy", result.Strategy),
		zap.Bool("success", result.Success),
		zap.Float64("pairs", result.PairsFilled),
		zap.Float64("cost", result.TotalCost),
		zap.Float64("profit", result.RealizedProfit),
		zap.Bool("hedged", result.Hedged))
	return nil
}

// StoreIncident logs the incident.
func (c *ConsoleStorage) StoreIncident(_ context.Context, incident *types.RiskIncident) error {
	c.logger.Warn("incident-record",
		zap.String("market", incident.MarketID),
		zap.String("kind", incident.Kind),
		zap.String("detail", incident.Detail),
		zap.Float64("exposure", incident.Exposure))
	return nil
}

// Close is a no-op.
func (c *ConsoleStorage) Close() error {
	return nil
}
