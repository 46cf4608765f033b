package httpserver

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/polyflip/updown-arb/internal/orderbook"
	"github.com/polyflip/updown-arb/internal/registry"
	"github.com/polyflip/updown-arb/pkg/types"
)

// bookHandler serves top-of-book state for debugging.
type bookHandler struct {
	books   *orderbook.Store
	markets *registry.Registry
	logger  *zap.Logger
}

func newBookHandler(books *orderbook.Store, markets *registry.Registry, logger *zap.Logger) *bookHandler {
	return &bookHandler{books: books, markets: markets, logger: logger}
}

// legBook is one outcome's top of book in the API response.
type legBook struct {
	Side        string    `json:"side"`
	TokenID     string    `json:"token_id"`
	BestBid     float64   `json:"best_bid"`
	BestBidSize float64   `json:"best_bid_size"`
	BestAsk     float64   `json:"best_ask"`
	BestAskSize float64   `json:"best_ask_size"`
	Seq         uint64    `json:"seq"`
	UpdatedAt   time.Time `json:"updated_at"`
	Stale       bool      `json:"stale"`
}

// bookResponse is the response for a single market's pair of books.
type bookResponse struct {
	MarketID   string    `json:"market_id"`
	MarketSlug string    `json:"market_slug"`
	ExpiresAt  time.Time `json:"expires_at"`
	Legs       []legBook `json:"legs"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// handleBook handles GET /api/book?slug=<market-slug>.
func (h *bookHandler) handleBook(w http.ResponseWriter, r *http.Request) {
	slug := r.URL.Query().Get("slug")
	if slug == "" {
		h.writeError(w, "missing required query parameter: slug", http.StatusBadRequest)
		return
	}

	var market types.Market
	found := false
	for _, m := range h.markets.List() {
		if m.Slug == slug {
			market = m
			found = true
			break
		}
	}
	if !found {
		h.writeError(w, "market not found", http.StatusNotFound)
		return
	}

	up, down, ok := h.books.Pair(market.UpTokenID, market.DownTokenID)
	if !ok {
		h.writeError(w, "books not tracked for market", http.StatusNotFound)
		return
	}

	resp := bookResponse{
		MarketID:   market.ID,
		MarketSlug: market.Slug,
		ExpiresAt:  market.ExpiresAt,
		Legs: []legBook{
			toLegBook(string(types.SideUp), up, market.TicksPerUnit),
			toLegBook(string(types.SideDown), down, market.TicksPerUnit),
		},
	}
	h.writeJSON(w, resp)
}

// handleBooks handles GET /api/books: every tracked book, ungrouped.
func (h *bookHandler) handleBooks(w http.ResponseWriter, _ *http.Request) {
	snapshots := h.books.Snapshot()
	legs := make([]legBook, 0, len(snapshots))
	for _, snap := range snapshots {
		ticksPerUnit := int64(100)
		if m, ok := h.markets.Get(snap.MarketID); ok {
			ticksPerUnit = m.TicksPerUnit
		}
		legs = append(legs, toLegBook("", snap, ticksPerUnit))
	}
	h.writeJSON(w, legs)
}

func toLegBook(side string, snap types.BookSnapshot, ticksPerUnit int64) legBook {
	lb := legBook{
		Side:      side,
		TokenID:   snap.TokenID,
		Seq:       snap.Seq,
		UpdatedAt: snap.UpdatedAt,
		Stale:     snap.SourceStale,
	}
	if snap.HasBid {
		lb.BestBid = snap.BestBid.Price(ticksPerUnit)
		lb.BestBidSize = snap.BestBidSize
	}
	if snap.HasAsk {
		lb.BestAsk = snap.BestAsk.Price(ticksPerUnit)
		lb.BestAskSize = snap.BestAskSize
	}
	return lb
}

func (h *bookHandler) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		h.logger.Error("failed-to-encode-response", zap.Error(err))
	}
}

func (h *bookHandler) writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	err := json.NewEncoder(w).Encode(errorResponse{Error: message})
	if err != nil {
		h.logger.Error("failed-to-encode-error-response", zap.Error(err))
	}
}
