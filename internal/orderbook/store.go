package orderbook

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/polyflip/updown-arb/pkg/clock"
	"github.com/polyflip/updown-arb/pkg/types"
)

// Store holds top-of-book state for every tracked token. Reads return
// copies; writers never hand out interior pointers. Sequence numbers are
// strictly monotonic per token: stale or duplicate deltas are dropped
// and counted, never applied.
type Store struct {
	mu     sync.RWMutex
	books  map[string]*types.BookSnapshot
	clock  clock.Clock
	logger *zap.Logger

	notifier *Notifier
}

// Config holds store dependencies.
type Config struct {
	Clock  clock.Clock
	Logger *zap.Logger
}

// NewStore creates an empty book store.
func NewStore(cfg Config) *Store {
	if cfg.Clock == nil {
		cfg.Clock = clock.System()
	}
	return &Store{
		books:    make(map[string]*types.BookSnapshot),
		clock:    cfg.Clock,
		logger:   cfg.Logger,
		notifier: NewNotifier(),
	}
}

// Notifier returns the store's change notifier. Consumers drain it to
// learn which markets have fresh books; intermediate states coalesce.
func (s *Store) Notifier() *Notifier {
	return s.notifier
}

// Track registers an empty book for a token so reads distinguish
// "tracked but empty" from "unknown token".
func (s *Store) Track(tokenID, marketID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.books[tokenID]; ok {
		return
	}
	s.books[tokenID] = &types.BookSnapshot{
		TokenID:     tokenID,
		MarketID:    marketID,
		SourceStale: true,
	}
	TrackedTokens.Set(float64(len(s.books)))
}

// Untrack removes a token's book entirely.
func (s *Store) Untrack(tokenID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.books, tokenID)
	TrackedTokens.Set(float64(len(s.books)))
}

// Apply writes a normalized book update. Snapshots replace the book
// unconditionally and clear the stale flag; deltas must carry a sequence
// strictly greater than the current one and are rejected while the book
// is stale. Returns true if the book changed.
func (s *Store) Apply(u types.BookUpdate) bool {
	s.mu.Lock()

	book, ok := s.books[u.TokenID]
	if !ok {
		s.mu.Unlock()
		UpdatesDroppedTotal.WithLabelValues("untracked").Inc()
		return false
	}

	if !u.Snapshot {
		if book.SourceStale {
			s.mu.Unlock()
			UpdatesDroppedTotal.WithLabelValues("stale_book").Inc()
			return false
		}
		if u.Seq <= book.Seq {
			s.mu.Unlock()
			UpdatesDroppedTotal.WithLabelValues("out_of_order").Inc()
			s.logger.Debug("book-delta-dropped",
				zap.String("token", u.TokenID),
				zap.Uint64("seq", u.Seq),
				zap.Uint64("current-seq", book.Seq))
			return false
		}
	}

	book.HasBid = u.HasBid
	book.HasAsk = u.HasAsk
	book.BestBid = u.BestBid
	book.BestAsk = u.BestAsk
	book.BestBidSize = u.BestBidSize
	book.BestAskSize = u.BestAskSize
	book.Seq = u.Seq
	book.UpdatedAt = s.clock.Now()
	if u.Snapshot {
		book.SourceStale = false
	}

	marketID := book.MarketID
	s.mu.Unlock()

	UpdatesAppliedTotal.Inc()
	s.notifier.Mark(marketID)
	return true
}

// Get returns a copy of the token's book.
func (s *Store) Get(tokenID string) (types.BookSnapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	book, ok := s.books[tokenID]
	if !ok {
		return types.BookSnapshot{}, false
	}
	return *book, true
}

// Pair returns copies of both legs' books under a single lock so the
// two snapshots are mutually consistent.
func (s *Store) Pair(upToken, downToken string) (up, down types.BookSnapshot, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, uok := s.books[upToken]
	d, dok := s.books[downToken]
	if !uok || !dok {
		return types.BookSnapshot{}, types.BookSnapshot{}, false
	}
	return *u, *d, true
}

// MarkStale flags the given tokens' books as untrusted. Stale books stay
// readable (flagged) and reject deltas until the next snapshot.
func (s *Store) MarkStale(tokenIDs []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range tokenIDs {
		if book, ok := s.books[id]; ok {
			book.SourceStale = true
		}
	}
}

// MarkAllStale flags every tracked book as untrusted. Used when a feed
// transport drops and per-token attribution is unknown.
func (s *Store) MarkAllStale() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, book := range s.books {
		book.SourceStale = true
	}
}

// Age returns how old a token's book is, or a negative duration when the
// token is unknown or never updated.
func (s *Store) Age(tokenID string) time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()

	book, ok := s.books[tokenID]
	if !ok || book.UpdatedAt.IsZero() {
		return -1
	}
	return s.clock.Since(book.UpdatedAt)
}

// Snapshot returns copies of every tracked book. Debug surface only.
func (s *Store) Snapshot() []types.BookSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]types.BookSnapshot, 0, len(s.books))
	for _, book := range s.books {
		out = append(out, *book)
	}
	return out
}
