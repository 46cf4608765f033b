package storage

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/polyflip/updown-arb/pkg/types"
)

// PostgresStorage implements Storage using PostgreSQL.
type PostgresStorage struct {
	db     *sql.DB
	logger *zap.Logger
}

// PostgresConfig holds PostgreSQL configuration.
type PostgresConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
	SSLMode  string
	Logger   *zap.Logger
}

// NewPostgresStorage opens and pings the database.
func NewPostgresStorage(cfg *PostgresConfig) (*PostgresStorage, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	err = db.Ping()
	if err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	cfg.Logger.Info("postgres-storage-connected",
		zap.String("host", cfg.Host),
		zap.String("database", cfg.Database))

	return &PostgresStorage{
		db:     db,
		logger: cfg.Logger,
	}, nil
}

// StoreOpportunity inserts one detected opportunity.
func (p *PostgresStorage) StoreOpportunity(ctx context.Context, opp *types.Opportunity) error {
	query := `
		INSERT INTO opportunities (
			id, market_id, market_slug, detected_at,
			ask_up, ask_down, size_up, size_down,
			margin, fee_reserve, seq_up, seq_down
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12
		)
	`

	_, err := p.db.ExecContext(ctx, query,
		opp.ID,
		opp.MarketID,
		opp.MarketSlug,
		opp.DetectedAt,
		opp.AskUp.Price(opp.TicksPerUnit),
		opp.AskDown.Price(opp.TicksPerUnit),
		opp.SizeUp,
		opp.SizeDown,
		opp.Margin(),
		opp.FeeReserve.Price(opp.TicksPerUnit),
		int64(opp.SeqUp),
		int64(opp.SeqDown),
	)
	if err != nil {
		return fmt.Errorf("insert opportunity: %w", err)
	}

	p.logger.Debug("opportunity-stored",
		zap.String("opportunity-id", opp.ID),
		zap.String("market-slug", opp.MarketSlug))
	return nil
}

// StoreExecution inserts one finished execution attempt.
func (p *PostgresStorage) StoreExecution(ctx context.Context, result *types.ExecutionResult) error {
	query := `
		INSERT INTO executions (
			attempt_id, opportunity_id, market_id, strategy,
			success, pairs_filled, total_cost, realized_profit,
			hedged, started_at, finished_at, error
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12
		)
	`

	_, err := p.db.ExecContext(ctx, query,
		result.AttemptID,
		result.OpportunityID,
		result.MarketID,
		result.Strategy,
		result.Success,
		result.PairsFilled,
		result.TotalCost,
		result.RealizedProfit,
		result.Hedged,
		result.StartedAt,
		result.FinishedAt,
		result.Err,
	)
	if err != nil {
		return fmt.Errorf("insert execution: %w", err)
	}

	p.logger.Debug("execution-stored",
		zap.String("attempt-id", result.AttemptID),
		zap.Bool("success", result.Success))
	return nil
}

// StoreIncident inserts one risk incident.
func (p *PostgresStorage) StoreIncident(ctx context.Context, incident *types.RiskIncident) error {
	query := `
		INSERT INTO risk_incidents (
			market_id, kind, detail, exposure, occurred_at
		) VALUES (
			$1, $2, $3, $4, $5
		)
	`

	_, err := p.db.ExecContext(ctx, query,
		incident.MarketID,
		incident.Kind,
		incident.Detail,
		incident.Exposure,
		incident.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("insert incident: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (p *PostgresStorage) Close() error {
	p.logger.Info("closing-postgres-storage")
	return p.db.Close()
}
