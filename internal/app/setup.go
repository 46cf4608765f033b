package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/polyflip/updown-arb/internal/detector"
	"github.com/polyflip/updown-arb/internal/events"
	"github.com/polyflip/updown-arb/internal/execution"
	"github.com/polyflip/updown-arb/internal/feed"
	"github.com/polyflip/updown-arb/internal/orderbook"
	"github.com/polyflip/updown-arb/internal/registry"
	"github.com/polyflip/updown-arb/internal/risk"
	"github.com/polyflip/updown-arb/internal/storage"
	"github.com/polyflip/updown-arb/pkg/cache"
	"github.com/polyflip/updown-arb/pkg/config"
	"github.com/polyflip/updown-arb/pkg/healthprobe"
	"github.com/polyflip/updown-arb/pkg/httpserver"
	"github.com/polyflip/updown-arb/pkg/types"
	"github.com/polyflip/updown-arb/pkg/websocket"
)

// New creates a new application instance.
func New(cfg *config.Config, logger *zap.Logger) (*App, error) {
	ctx, cancel := context.WithCancel(context.Background())

	bus := events.NewBus(logger)
	books := orderbook.NewStore(orderbook.Config{Logger: logger})
	markets := registry.New(registry.Config{Logger: logger, Bus: bus})

	metaCache, err := setupCache(logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup cache: %w", err)
	}

	discoverer := setupDiscoverer(cfg, logger, markets, metaCache)
	ingestor := setupIngestor(cfg, logger, books, bus)

	breaker := risk.NewBreaker(risk.BreakerConfig{
		FailureLimit: cfg.BreakerFailureLimit,
		Window:       cfg.BreakerWindow,
		Cooldown:     cfg.BreakerCooldown,
		Logger:       logger,
	})
	// The engine is built after the gate; the expiry hook reads it late.
	var eng *execution.Engine
	gate := risk.NewGate(risk.Config{
		Bankroll:            cfg.Bankroll,
		MaxBetSize:          cfg.MaxBetSize,
		MinNotional:         cfg.MinNotional,
		MaxBankrollFraction: cfg.MaxBankrollFraction,
		ReservationTTL:      cfg.ReservationTTL,
		Breaker:             breaker,
		Logger:              logger,
		Bus:                 bus,
		OnExpire: func(res types.Reservation) {
			logger.Warn("reservation-expired",
				zap.String("reservation-id", res.ID),
				zap.String("market-id", res.MarketID),
				zap.Float64("notional", res.Notional))
			if eng != nil {
				eng.CancelReservation(res.ID)
			}
		},
	})

	engine, userFeed, err := setupEngine(cfg, logger, gate, breaker, markets, bus)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup engine: %w", err)
	}
	eng = engine

	det := detector.New(detector.Config{
		Workers:         cfg.DetectorWorkers,
		FreshnessTTL:    cfg.FreshnessTTL,
		MinProfitMargin: cfg.MinProfitMargin,
		MinSize:         cfg.MinSize,
		FeeReserveBps:   cfg.FeeReserveBps,
		Store:           books,
		Registry:        markets,
		Bus:             bus,
		Logger:          logger,
		Handler:         engine.Submit,
		Suppressed:      gate.HasLive,
	})

	store, err := setupStorage(cfg, logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup storage: %w", err)
	}
	sink := storage.NewSink(storage.SinkConfig{
		Store:  store,
		Bus:    bus,
		Logger: logger,
	})

	health := healthprobe.New()
	if cfg.WSEnabled {
		// Readiness tracks the push feed's connection state; the poll
		// ingestor has no persistent connection to wait on.
		health.SetComponent("market-feed", false)
	}
	httpServer := httpserver.New(&httpserver.Config{
		Port:    cfg.HTTPPort,
		Logger:  logger,
		Health:  health,
		Books:   books,
		Markets: markets,
		Gate:    gate,
	})

	return &App{
		cfg:        cfg,
		logger:     logger,
		health:     health,
		httpServer: httpServer,
		bus:        bus,
		books:      books,
		markets:    markets,
		discoverer: discoverer,
		ingestor:   ingestor,
		detector:   det,
		gate:       gate,
		breaker:    breaker,
		engine:     engine,
		userFeed:   userFeed,
		store:      store,
		sink:       sink,
		stats:      &sessionStats{},
		ctx:        ctx,
		cancel:     cancel,
	}, nil
}

func setupCache(logger *zap.Logger) (cache.Cache, error) {
	return cache.NewRistrettoCache(&cache.RistrettoConfig{
		NumCounters: 10000,
		MaxCost:     1000,
		BufferItems: 64,
		Logger:      logger,
	})
}

func setupDiscoverer(cfg *config.Config, logger *zap.Logger, markets *registry.Registry, metaCache cache.Cache) *registry.Discoverer {
	client := registry.NewDiscoveryClient(cfg.RestURL, cfg.PollTimeout, logger)
	metadata := registry.NewMetadata(cfg.RestURL, cfg.PollTimeout, metaCache, logger)
	return registry.NewDiscoverer(registry.DiscovererConfig{
		Client:      client,
		Registry:    markets,
		Metadata:    metadata,
		Assets:      cfg.Assets,
		Durations:   cfg.Durations,
		Interval:    cfg.DiscoveryInterval,
		Limit:       cfg.MarketLimit,
		TakerFeeBps: cfg.FeeReserveBps,
		MinSize:     cfg.MinSize,
		Logger:      logger,
	})
}

func setupIngestor(cfg *config.Config, logger *zap.Logger, books *orderbook.Store, bus *events.Bus) feed.Ingestor {
	if cfg.WSEnabled {
		return feed.NewPushIngestor(feed.PushConfig{
			URL:          cfg.MarketWSURL,
			DialTimeout:  cfg.WSDialTimeout,
			PingInterval: cfg.WSPingInterval,
			IdleTimeout:  cfg.WSIdleTimeout,
			Reconnect: websocket.ReconnectConfig{
				BaseDelay: cfg.WSReconnectBase,
				MaxDelay:  cfg.WSReconnectCap,
			},
			Store:  books,
			Bus:    bus,
			Logger: logger,
		})
	}

	return feed.NewPollIngestor(feed.PollConfig{
		ScanInterval: cfg.ScanInterval,
		PollTimeout:  cfg.PollTimeout,
		Concurrency:  cfg.PollConcurrency,
		Client:       feed.NewBookClient(cfg.RestURL, cfg.PollTimeout),
		Store:        books,
		Logger:       logger,
	})
}

func setupEngine(
	cfg *config.Config,
	logger *zap.Logger,
	gate *risk.Gate,
	breaker *risk.Breaker,
	markets *registry.Registry,
	bus *events.Bus,
) (*execution.Engine, *execution.UserFeed, error) {
	var venue execution.Venue
	var fills execution.FillSource
	var userFeed *execution.UserFeed

	if cfg.DryRun {
		sim := execution.NewSimulator(cfg.SimFillLatency, logger)
		venue = sim
		fills = sim
		logger.Info("execution-simulated",
			zap.Duration("fill-latency", cfg.SimFillLatency))
	} else {
		signer, err := execution.NewSigner(execution.SignerConfig{
			PrivateKey: cfg.PrivateKey,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("create signer: %w", err)
		}

		venue = execution.NewOrderClient(execution.OrderClientConfig{
			BaseURL:    cfg.RestURL,
			APIKey:     cfg.APIKey,
			Secret:     cfg.APISecret,
			Passphrase: cfg.Passphrase,
			Timeout:    cfg.SubmitTimeout,
			Signer:     signer,
			Logger:     logger,
		})

		userFeed = execution.NewUserFeed(execution.UserFeedConfig{
			URL:          cfg.UserWSURL,
			APIKey:       cfg.APIKey,
			Passphrase:   cfg.Passphrase,
			DialTimeout:  cfg.WSDialTimeout,
			PingInterval: cfg.WSPingInterval,
			IdleTimeout:  cfg.WSIdleTimeout,
			Reconnect: websocket.ReconnectConfig{
				BaseDelay: cfg.WSReconnectBase,
				MaxDelay:  cfg.WSReconnectCap,
			},
			Logger: logger,
		})
		fills = userFeed
	}

	engine := execution.New(execution.Config{
		MaxImbalance:     cfg.MaxImbalance,
		MaxSlippageTicks: cfg.MaxSlippageTicks,
		AckTimeout:       cfg.AckTimeout,
		HedgeTimeout:     cfg.HedgeTimeout,
		PoolSize:         cfg.SubmitPoolSize,
		Venue:            venue,
		Fills:            fills,
		Gate:             gate,
		Breaker:          breaker,
		Registry:         markets,
		Bus:              bus,
		Logger:           logger,
	})
	return engine, userFeed, nil
}

func setupStorage(cfg *config.Config, logger *zap.Logger) (storage.Storage, error) {
	if cfg.StorageMode == "postgres" {
		pg, err := storage.NewPostgresStorage(&storage.PostgresConfig{
			Host:     cfg.PostgresHost,
			Port:     cfg.PostgresPort,
			User:     cfg.PostgresUser,
			Password: cfg.PostgresPass,
			Database: cfg.PostgresDB,
			SSLMode:  cfg.PostgresSSL,
			Logger:   logger,
		})
		if err != nil {
			return nil, fmt.Errorf("create postgres storage: %w", err)
		}
		return pg, nil
	}

	return storage.NewConsoleStorage(logger), nil
}
