package registry

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/polyflip/updown-arb/pkg/clock"
	"github.com/polyflip/updown-arb/pkg/types"
)

// DiscoveryClient fetches up/down markets from the venue's discovery
// REST API.
type DiscoveryClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewDiscoveryClient creates a discovery client.
func NewDiscoveryClient(baseURL string, timeout time.Duration, logger *zap.Logger) *DiscoveryClient {
	return &DiscoveryClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// rawMarket is the discovery API's market shape. Token IDs arrive as a
// JSON array encoded inside a string.
type rawMarket struct {
	ID           string  `json:"id"`
	Slug         string  `json:"slug"`
	Question     string  `json:"question"`
	EndDate      string  `json:"endDate"`
	ClobTokenIDs string  `json:"clobTokenIds"`
	TickSize     float64 `json:"orderPriceMinTickSize"`
	MinOrderSize float64 `json:"orderMinSize"`
	Active       bool    `json:"active"`
	Closed       bool    `json:"closed"`
}

// FetchMarkets returns the active markets for one asset/duration series,
// e.g. asset "btc" and duration "15m" map to the series slug
// "btc-updown-15m".
func (c *DiscoveryClient) FetchMarkets(ctx context.Context, asset, duration string, limit int) ([]types.Market, error) {
	series := fmt.Sprintf("%s-updown-%s", asset, duration)

	q := url.Values{}
	q.Set("series_slug", series)
	q.Set("active", "true")
	q.Set("closed", "false")
	q.Set("limit", strconv.Itoa(limit))

	endpoint := fmt.Sprintf("%s/markets?%s", c.baseURL, q.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create discovery request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch markets for %s: %w: %v", series, types.ErrDiscoveryUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("fetch markets for %s: %w: status %d: %s",
			series, types.ErrDiscoveryUnavailable, resp.StatusCode, string(body))
	}

	var raws []rawMarket
	if err := json.NewDecoder(resp.Body).Decode(&raws); err != nil {
		return nil, fmt.Errorf("decode markets for %s: %w", series, err)
	}

	markets := make([]types.Market, 0, len(raws))
	for _, raw := range raws {
		m, err := c.convert(raw)
		if err != nil {
			c.logger.Warn("discovery-market-skipped",
				zap.String("slug", raw.Slug),
				zap.Error(err))
			continue
		}
		markets = append(markets, m)
	}
	return markets, nil
}

func (c *DiscoveryClient) convert(raw rawMarket) (types.Market, error) {
	if !raw.Active || raw.Closed {
		return types.Market{}, fmt.Errorf("market %s is not tradeable", raw.ID)
	}

	var tokens []string
	if err := json.Unmarshal([]byte(raw.ClobTokenIDs), &tokens); err != nil {
		return types.Market{}, fmt.Errorf("decode token ids: %w", err)
	}
	if len(tokens) != 2 {
		return types.Market{}, fmt.Errorf("expected 2 outcome tokens, got %d", len(tokens))
	}

	expires, err := time.Parse(time.RFC3339, raw.EndDate)
	if err != nil {
		return types.Market{}, fmt.Errorf("parse end date %q: %w", raw.EndDate, err)
	}

	return types.Market{
		ID:           raw.ID,
		Slug:         raw.Slug,
		Question:     raw.Question,
		UpTokenID:    tokens[0],
		DownTokenID:  tokens[1],
		ExpiresAt:    expires,
		TickSize:     raw.TickSize,
		TicksPerUnit: types.TicksPerUnit(raw.TickSize),
		MinOrderSize: raw.MinOrderSize,
	}, nil
}

// Discoverer periodically scans every configured asset/duration series
// and registers new markets.
type Discoverer struct {
	client   *DiscoveryClient
	registry *Registry
	metadata *Metadata

	assets      []string
	durations   []string
	interval    time.Duration
	limit       int
	takerFeeBps int64
	minSize     float64

	clock  clock.Clock
	logger *zap.Logger
}

// DiscovererConfig holds discoverer dependencies and tuning.
type DiscovererConfig struct {
	Client   *DiscoveryClient
	Registry *Registry
	Metadata *Metadata

	Assets    []string
	Durations []string
	Interval  time.Duration
	Limit     int

	// TakerFeeBps is applied to every discovered market.
	TakerFeeBps int64
	// MinSize is the fallback when discovery reports no minimum.
	MinSize float64

	Clock  clock.Clock
	Logger *zap.Logger
}

// NewDiscoverer creates a discoverer.
func NewDiscoverer(cfg DiscovererConfig) *Discoverer {
	if cfg.Clock == nil {
		cfg.Clock = clock.System()
	}
	return &Discoverer{
		client:      cfg.Client,
		registry:    cfg.Registry,
		metadata:    cfg.Metadata,
		assets:      cfg.Assets,
		durations:   cfg.Durations,
		interval:    cfg.Interval,
		limit:       cfg.Limit,
		takerFeeBps: cfg.TakerFeeBps,
		minSize:     cfg.MinSize,
		clock:       cfg.Clock,
		logger:      cfg.Logger,
	}
}

// Run scans immediately and then on every interval tick until the
// context is cancelled.
func (d *Discoverer) Run(ctx context.Context) {
	d.Scan(ctx)

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.Scan(ctx)
		}
	}
}

// Scan fetches every configured series once and registers what it finds.
// A failing series does not block the others.
func (d *Discoverer) Scan(ctx context.Context) {
	start := d.clock.Now()
	var added, failed int

	for _, asset := range d.assets {
		for _, duration := range d.durations {
			markets, err := d.client.FetchMarkets(ctx, asset, duration, d.limit)
			if err != nil {
				failed++
				d.logger.Warn("discovery-series-failed",
					zap.String("asset", asset),
					zap.String("duration", duration),
					zap.Error(err))
				continue
			}

			for _, m := range markets {
				d.fillDefaults(ctx, &m)
				if err := d.registry.Add(m); err != nil {
					d.logger.Warn("discovery-register-failed",
						zap.String("market", m.ID),
						zap.Error(err))
				} else {
					added++
				}
			}
		}
	}

	outcome := "ok"
	if failed > 0 {
		outcome = "partial"
	}
	DiscoveryRunsTotal.WithLabelValues(outcome).Inc()
	DiscoveryDuration.Observe(d.clock.Since(start).Seconds())

	if added > 0 {
		d.logger.Info("discovery-scan-complete",
			zap.Int("added", added),
			zap.Int("failed-series", failed),
			zap.Int("tracked", d.registry.Len()))
	}
}

// fillDefaults backfills tick and minimum size metadata that the
// discovery payload omitted.
func (d *Discoverer) fillDefaults(ctx context.Context, m *types.Market) {
	m.TakerFeeBps = d.takerFeeBps

	if m.TicksPerUnit <= 0 && d.metadata != nil {
		if tick, err := d.metadata.TickSize(ctx, m.UpTokenID); err == nil {
			m.TickSize = tick
			m.TicksPerUnit = types.TicksPerUnit(tick)
		}
	}
	if m.TicksPerUnit <= 0 {
		m.TickSize = 0.01
		m.TicksPerUnit = 100
	}
	if m.MinOrderSize <= 0 {
		m.MinOrderSize = d.minSize
	}
}
