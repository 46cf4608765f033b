package feed

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/polyflip/updown-arb/internal/orderbook"
	"github.com/polyflip/updown-arb/pkg/clock"
)

// PollConfig holds poll ingestor configuration.
type PollConfig struct {
	ScanInterval time.Duration
	PollTimeout  time.Duration
	Concurrency  int

	Client *BookClient
	Store  *orderbook.Store
	Clock  clock.Clock
	Logger *zap.Logger
}

// PollIngestor is the REST fallback when no push channel is available.
// Every scan fetches all tracked books with bounded concurrency; a
// failed fetch marks that token stale rather than aborting the scan.
type PollIngestor struct {
	cfg    PollConfig
	client *BookClient
	store  *orderbook.Store
	clock  clock.Clock
	logger *zap.Logger

	mu   sync.Mutex
	refs map[string]TokenRef
}

// NewPollIngestor creates a poll ingestor.
func NewPollIngestor(cfg PollConfig) *PollIngestor {
	if cfg.Clock == nil {
		cfg.Clock = clock.System()
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 8
	}
	return &PollIngestor{
		cfg:    cfg,
		client: cfg.Client,
		store:  cfg.Store,
		clock:  cfg.Clock,
		logger: cfg.Logger,
		refs:   make(map[string]TokenRef),
	}
}

// SetTokens replaces the tracked token set.
func (p *PollIngestor) SetTokens(refs []TokenRef) {
	p.mu.Lock()
	defer p.mu.Unlock()

	next := make(map[string]TokenRef, len(refs))
	for _, ref := range refs {
		next[ref.TokenID] = ref
		p.store.Track(ref.TokenID, ref.MarketID)
	}
	for tok := range p.refs {
		if _, keep := next[tok]; !keep {
			p.store.Untrack(tok)
		}
	}
	p.refs = next
}

// Start scans on every interval tick until the context is cancelled.
func (p *PollIngestor) Start(ctx context.Context) error {
	ticker := time.NewTicker(p.cfg.ScanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.Scan(ctx)
		}
	}
}

// Scan fetches every tracked book once.
func (p *PollIngestor) Scan(ctx context.Context) {
	p.mu.Lock()
	refs := make([]TokenRef, 0, len(p.refs))
	for _, ref := range p.refs {
		refs = append(refs, ref)
	}
	p.mu.Unlock()

	if len(refs) == 0 {
		return
	}

	var failures atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Concurrency)

	for _, ref := range refs {
		ref := ref
		g.Go(func() error {
			fctx, cancel := context.WithTimeout(gctx, p.cfg.PollTimeout)
			defer cancel()

			start := p.clock.Now()
			book, err := p.client.GetBook(fctx, ref.TokenID)
			PollFetchDuration.Observe(p.clock.Since(start).Seconds())

			if err != nil {
				failures.Add(1)
				p.store.MarkStale([]string{ref.TokenID})
				p.logger.Debug("poll-fetch-failed",
					zap.String("token", ref.TokenID),
					zap.Error(err))
				return nil
			}

			u, err := restBookToUpdate(ref, book)
			if err != nil {
				failures.Add(1)
				p.store.MarkStale([]string{ref.TokenID})
				p.logger.Warn("poll-book-malformed",
					zap.String("token", ref.TokenID),
					zap.Error(err))
				return nil
			}

			p.store.Apply(u)
			return nil
		})
	}
	_ = g.Wait()

	outcome := "ok"
	if failures.Load() > 0 {
		outcome = "partial"
	}
	PollScansTotal.WithLabelValues(outcome).Inc()
}
