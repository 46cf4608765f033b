package registry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/polyflip/updown-arb/internal/events"
	"github.com/polyflip/updown-arb/pkg/clock"
	"github.com/polyflip/updown-arb/pkg/types"
)

// sweepInterval is how often expired markets are evicted.
const sweepInterval = 1 * time.Second

// Registry is the authoritative set of tracked markets. A token belongs
// to at most one registered market; registration is atomic per market
// and removal is idempotent.
type Registry struct {
	mu      sync.RWMutex
	byID    map[string]types.Market
	byToken map[string]string

	clock  clock.Clock
	logger *zap.Logger
	bus    *events.Bus
}

// Config holds registry dependencies.
type Config struct {
	Clock  clock.Clock
	Logger *zap.Logger
	Bus    *events.Bus
}

// New creates an empty registry.
func New(cfg Config) *Registry {
	if cfg.Clock == nil {
		cfg.Clock = clock.System()
	}
	return &Registry{
		byID:    make(map[string]types.Market),
		byToken: make(map[string]string),
		clock:   cfg.Clock,
		logger:  cfg.Logger,
		bus:     cfg.Bus,
	}
}

// Add registers a market. Re-adding an identical market is a no-op; a
// token already owned by a different market fails the whole registration.
func (r *Registry) Add(m types.Market) error {
	if err := m.Validate(r.clock.Now()); err != nil {
		return fmt.Errorf("validate market: %w", err)
	}

	r.mu.Lock()

	if existing, ok := r.byID[m.ID]; ok {
		r.mu.Unlock()
		if existing.UpTokenID == m.UpTokenID && existing.DownTokenID == m.DownTokenID {
			return nil
		}
		return fmt.Errorf("market %s re-registered with different tokens: %w", m.ID, types.ErrDuplicateToken)
	}

	for _, tok := range []string{m.UpTokenID, m.DownTokenID} {
		if owner, ok := r.byToken[tok]; ok {
			r.mu.Unlock()
			return fmt.Errorf("token %s already owned by market %s: %w", tok, owner, types.ErrDuplicateToken)
		}
	}

	r.byID[m.ID] = m
	r.byToken[m.UpTokenID] = m.ID
	r.byToken[m.DownTokenID] = m.ID
	size := len(r.byID)
	r.mu.Unlock()

	MarketsTracked.Set(float64(size))
	MarketsAddedTotal.Inc()
	r.logger.Info("market-registered",
		zap.String("market", m.ID),
		zap.String("slug", m.Slug),
		zap.Time("expires-at", m.ExpiresAt))

	if r.bus != nil {
		r.bus.Publish(events.MarketAdded{Market: m})
	}
	return nil
}

// Remove evicts a market. Removing an unknown market is a no-op.
func (r *Registry) Remove(marketID, reason string) {
	r.mu.Lock()

	m, ok := r.byID[marketID]
	if !ok {
		r.mu.Unlock()
		return
	}
	delete(r.byID, marketID)
	delete(r.byToken, m.UpTokenID)
	delete(r.byToken, m.DownTokenID)
	size := len(r.byID)
	r.mu.Unlock()

	MarketsTracked.Set(float64(size))
	MarketsRemovedTotal.WithLabelValues(reason).Inc()
	r.logger.Info("market-removed",
		zap.String("market", marketID),
		zap.String("reason", reason))

	if r.bus != nil {
		r.bus.Publish(events.MarketRemoved{MarketID: marketID, Reason: reason})
	}
}

// Get returns a market by ID.
func (r *Registry) Get(marketID string) (types.Market, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.byID[marketID]
	return m, ok
}

// ByToken returns the market owning the given outcome token.
func (r *Registry) ByToken(tokenID string) (types.Market, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byToken[tokenID]
	if !ok {
		return types.Market{}, false
	}
	return r.byID[id], true
}

// List returns a copy of every registered market.
func (r *Registry) List() []types.Market {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]types.Market, 0, len(r.byID))
	for _, m := range r.byID {
		out = append(out, m)
	}
	return out
}

// Len returns the number of registered markets.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

// SweepExpired removes every market whose expiry has passed and returns
// the removed IDs.
func (r *Registry) SweepExpired() []string {
	now := r.clock.Now()

	r.mu.RLock()
	var expired []string
	for id, m := range r.byID {
		if !m.ExpiresAt.After(now) {
			expired = append(expired, id)
		}
	}
	r.mu.RUnlock()

	for _, id := range expired {
		r.Remove(id, "expired")
	}
	return expired
}

// Run sweeps expired markets until the context is cancelled.
func (r *Registry) Run(ctx context.Context) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.SweepExpired()
		}
	}
}
