package registry

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/polyflip/updown-arb/pkg/cache"
	"github.com/polyflip/updown-arb/pkg/types"
)

func discoveryPayload(endDate string) string {
	return fmt.Sprintf(`[
		{
			"id": "mkt-btc-1",
			"slug": "btc-updown-15m-jan-15-12pm",
			"question": "Will BTC go up?",
			"endDate": %q,
			"clobTokenIds": "[\"tok-up\", \"tok-down\"]",
			"orderPriceMinTickSize": 0.01,
			"orderMinSize": 5,
			"active": true,
			"closed": false
		},
		{
			"id": "mkt-btc-2",
			"slug": "btc-updown-15m-closed",
			"endDate": %q,
			"clobTokenIds": "[\"tok-x\", \"tok-y\"]",
			"active": false,
			"closed": true
		}
	]`, endDate, endDate)
}

func TestDiscoveryClientFetchMarkets(t *testing.T) {
	t.Parallel()

	endDate := time.Now().Add(15 * time.Minute).UTC().Format(time.RFC3339)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "btc-updown-15m", r.URL.Query().Get("series_slug"))
		assert.Equal(t, "true", r.URL.Query().Get("active"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, discoveryPayload(endDate))
	}))
	defer srv.Close()

	c := NewDiscoveryClient(srv.URL, 2*time.Second, zaptest.NewLogger(t))
	markets, err := c.FetchMarkets(context.Background(), "btc", "15m", 50)
	require.NoError(t, err)
	require.Len(t, markets, 1, "inactive markets must be skipped")

	m := markets[0]
	assert.Equal(t, "mkt-btc-1", m.ID)
	assert.Equal(t, "tok-up", m.UpTokenID)
	assert.Equal(t, "tok-down", m.DownTokenID)
	assert.Equal(t, int64(100), m.TicksPerUnit)
	assert.Equal(t, 5.0, m.MinOrderSize)
}

func TestDiscoveryClientServerError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream broken", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewDiscoveryClient(srv.URL, 2*time.Second, zaptest.NewLogger(t))
	_, err := c.FetchMarkets(context.Background(), "btc", "15m", 50)
	require.ErrorIs(t, err, types.ErrDiscoveryUnavailable)
}

func TestDiscovererScanRegistersMarkets(t *testing.T) {
	t.Parallel()

	endDate := time.Now().Add(15 * time.Minute).UTC().Format(time.RFC3339)
	var series []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s := r.URL.Query().Get("series_slug")
		series = append(series, s)
		w.Header().Set("Content-Type", "application/json")
		if s == "btc-updown-15m" {
			fmt.Fprint(w, discoveryPayload(endDate))
			return
		}
		fmt.Fprint(w, "[]")
	}))
	defer srv.Close()

	logger := zaptest.NewLogger(t)
	reg := New(Config{Logger: logger})
	d := NewDiscoverer(DiscovererConfig{
		Client:      NewDiscoveryClient(srv.URL, 2*time.Second, logger),
		Registry:    reg,
		Assets:      []string{"btc", "eth"},
		Durations:   []string{"15m"},
		Interval:    time.Minute,
		Limit:       50,
		TakerFeeBps: 20,
		MinSize:     5,
		Logger:      logger,
	})

	d.Scan(context.Background())

	assert.ElementsMatch(t, []string{"btc-updown-15m", "eth-updown-15m"}, series)
	require.Equal(t, 1, reg.Len())

	m, ok := reg.Get("mkt-btc-1")
	require.True(t, ok)
	assert.Equal(t, int64(20), m.TakerFeeBps, "taker fee must be stamped at registration")
}

func TestMetadataTickSizeCached(t *testing.T) {
	t.Parallel()

	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		assert.Equal(t, "tok-up", r.URL.Query().Get("token_id"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"minimum_tick_size": 0.001}`)
	}))
	defer srv.Close()

	logger := zaptest.NewLogger(t)
	c, err := cache.NewRistrettoCache(&cache.RistrettoConfig{
		NumCounters: 1000,
		MaxCost:     100,
		BufferItems: 64,
		Logger:      logger,
	})
	require.NoError(t, err)
	defer c.Close()

	meta := NewMetadata(srv.URL, 2*time.Second, c, logger)

	tick, err := meta.TickSize(context.Background(), "tok-up")
	require.NoError(t, err)
	assert.Equal(t, 0.001, tick)
	c.Wait()

	tick, err = meta.TickSize(context.Background(), "tok-up")
	require.NoError(t, err)
	assert.Equal(t, 0.001, tick)
	assert.Equal(t, 1, hits, "second lookup must be served from cache")
}
