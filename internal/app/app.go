package app

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/polyflip/updown-arb/internal/detector"
	"github.com/polyflip/updown-arb/internal/events"
	"github.com/polyflip/updown-arb/internal/execution"
	"github.com/polyflip/updown-arb/internal/feed"
	"github.com/polyflip/updown-arb/internal/orderbook"
	"github.com/polyflip/updown-arb/internal/registry"
	"github.com/polyflip/updown-arb/internal/risk"
	"github.com/polyflip/updown-arb/internal/storage"
	"github.com/polyflip/updown-arb/pkg/config"
	"github.com/polyflip/updown-arb/pkg/healthprobe"
	"github.com/polyflip/updown-arb/pkg/httpserver"
)

// App is the main application orchestrator.
type App struct {
	cfg    *config.Config
	logger *zap.Logger

	health     *healthprobe.HealthChecker
	httpServer *httpserver.Server
	bus        *events.Bus
	books      *orderbook.Store
	markets    *registry.Registry
	discoverer *registry.Discoverer
	ingestor   feed.Ingestor
	detector   *detector.Detector
	gate       *risk.Gate
	breaker    *risk.Breaker
	engine     *execution.Engine
	userFeed   *execution.UserFeed
	store      storage.Storage
	sink       *storage.Sink
	stats      *sessionStats

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}
