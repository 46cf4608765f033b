package httpserver

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/polyflip/updown-arb/internal/orderbook"
	"github.com/polyflip/updown-arb/internal/registry"
	"github.com/polyflip/updown-arb/internal/risk"
	"github.com/polyflip/updown-arb/pkg/healthprobe"
	"github.com/polyflip/updown-arb/pkg/types"
)

func newTestServer(t *testing.T) (*Server, *healthprobe.HealthChecker, *orderbook.Store, *registry.Registry) {
	t.Helper()
	logger := zaptest.NewLogger(t)

	health := healthprobe.New()
	books := orderbook.NewStore(orderbook.Config{Logger: logger})
	markets := registry.New(registry.Config{Logger: logger})
	gate := risk.NewGate(risk.Config{
		Bankroll:            500,
		MaxBetSize:          50,
		MinNotional:         1,
		MaxBankrollFraction: 0.1,
		ReservationTTL:      10 * time.Second,
		Logger:              logger,
	})

	srv := New(&Config{
		Port:    "0",
		Logger:  logger,
		Health:  health,
		Books:   books,
		Markets: markets,
		Gate:    gate,
	})
	return srv, health, books, markets
}

func TestHealthAlwaysOK(t *testing.T) {
	t.Parallel()

	srv, _, _, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyFollowsProbe(t *testing.T) {
	t.Parallel()

	srv, health, _, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	health.SetReady(true)
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	srv, _, _, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestBookEndpoint(t *testing.T) {
	t.Parallel()

	srv, _, books, markets := newTestServer(t)

	require.NoError(t, markets.Add(types.Market{
		ID:           "mkt-1",
		Slug:         "eth-updown-15m",
		UpTokenID:    "tok-up",
		DownTokenID:  "tok-down",
		ExpiresAt:    time.Now().Add(10 * time.Minute),
		TickSize:     0.01,
		TicksPerUnit: 100,
	}))
	books.Track("tok-up", "mkt-1")
	books.Track("tok-down", "mkt-1")
	books.Apply(types.BookUpdate{
		TokenID: "tok-up", MarketID: "mkt-1",
		HasBid: true, HasAsk: true,
		BestBid: 45, BestAsk: 48,
		BestBidSize: 10, BestAskSize: 20,
		Seq: 1, Snapshot: true,
	})
	books.Apply(types.BookUpdate{
		TokenID: "tok-down", MarketID: "mkt-1",
		HasAsk: true, BestAsk: 47, BestAskSize: 30,
		Seq: 1, Snapshot: true,
	})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/book?slug=eth-updown-15m", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp bookResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "mkt-1", resp.MarketID)
	require.Len(t, resp.Legs, 2)
	assert.Equal(t, "up", resp.Legs[0].Side)
	assert.InDelta(t, 0.48, resp.Legs[0].BestAsk, 1e-9)
	assert.InDelta(t, 0.45, resp.Legs[0].BestBid, 1e-9)
	assert.Equal(t, "down", resp.Legs[1].Side)
	assert.InDelta(t, 0.47, resp.Legs[1].BestAsk, 1e-9)
	assert.Zero(t, resp.Legs[1].BestBid, "missing bid reports zero")
}

func TestBookEndpointUnknownSlug(t *testing.T) {
	t.Parallel()

	srv, _, _, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/book?slug=nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/book", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBalancesEndpoint(t *testing.T) {
	t.Parallel()

	srv, _, _, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/balances", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp balancesResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.InDelta(t, 500, resp.Available, 1e-9)
	assert.InDelta(t, 0, resp.Reserved, 1e-9)
	assert.InDelta(t, 500, resp.Total, 1e-9)
}
