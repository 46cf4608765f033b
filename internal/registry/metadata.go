package registry

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/polyflip/updown-arb/pkg/cache"
)

// metadataTTL bounds how long a token's tick size is trusted without a
// refetch. Tick sizes rarely change but can on venue maintenance.
const metadataTTL = 10 * time.Minute

// Metadata answers per-token tick size lookups, caching results so hot
// paths never repeat REST round trips.
type Metadata struct {
	baseURL    string
	httpClient *http.Client
	cache      cache.Cache
	logger     *zap.Logger
}

// NewMetadata creates a metadata service.
func NewMetadata(baseURL string, timeout time.Duration, c cache.Cache, logger *zap.Logger) *Metadata {
	return &Metadata{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		cache:      c,
		logger:     logger,
	}
}

type tickSizeResponse struct {
	MinimumTickSize float64 `json:"minimum_tick_size"`
}

// TickSize returns the token's minimum price increment.
func (m *Metadata) TickSize(ctx context.Context, tokenID string) (float64, error) {
	key := "tick:" + tokenID
	if v, ok := m.cache.Get(key); ok {
		if tick, ok := v.(float64); ok {
			return tick, nil
		}
	}

	q := url.Values{}
	q.Set("token_id", tokenID)
	endpoint := fmt.Sprintf("%s/tick-size?%s", m.baseURL, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, fmt.Errorf("create tick size request: %w", err)
	}

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("fetch tick size for %s: %w", tokenID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("fetch tick size for %s: status %d", tokenID, resp.StatusCode)
	}

	var out tickSizeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("decode tick size for %s: %w", tokenID, err)
	}
	if out.MinimumTickSize <= 0 {
		return 0, fmt.Errorf("invalid tick size %f for %s", out.MinimumTickSize, tokenID)
	}

	m.cache.Set(key, out.MinimumTickSize, metadataTTL)
	return out.MinimumTickSize, nil
}
