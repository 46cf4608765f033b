package httpserver

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/polyflip/updown-arb/internal/orderbook"
	"github.com/polyflip/updown-arb/internal/registry"
	"github.com/polyflip/updown-arb/internal/risk"
	"github.com/polyflip/updown-arb/pkg/healthprobe"
)

// Server provides HTTP endpoints for metrics, health checks, and the
// debug API.
type Server struct {
	server *http.Server
	logger *zap.Logger
}

// Config holds server configuration.
type Config struct {
	Port    string
	Logger  *zap.Logger
	Health  *healthprobe.HealthChecker
	Books   *orderbook.Store
	Markets *registry.Registry
	Gate    *risk.Gate
}

// New creates a new HTTP server.
func New(cfg *Config) *Server {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	r.Get("/health", cfg.Health.Health())
	r.Get("/ready", cfg.Health.Ready())

	if cfg.Books != nil && cfg.Markets != nil {
		h := newBookHandler(cfg.Books, cfg.Markets, cfg.Logger)
		r.Get("/api/book", h.handleBook)
		r.Get("/api/books", h.handleBooks)
	}
	if cfg.Gate != nil {
		h := newBalancesHandler(cfg.Gate, cfg.Logger)
		r.Get("/api/balances", h.handleBalances)
	}

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return &Server{
		server: server,
		logger: cfg.Logger,
	}
}

// Handler exposes the router. Tests only.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start starts the HTTP server. Blocks until the server stops.
func (s *Server) Start() error {
	s.logger.Info("http-server-starting", zap.String("addr", s.server.Addr))

	err := s.server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("listen and serve: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http-server-shutting-down")

	err := s.server.Shutdown(ctx)
	if err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	s.logger.Info("http-server-shutdown-complete")
	return nil
}
