package feed

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/goccy/go-json"

	"github.com/polyflip/updown-arb/pkg/types"
)

// BookClient fetches book snapshots from the venue's REST API.
type BookClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewBookClient creates a REST book client.
func NewBookClient(baseURL string, timeout time.Duration) *BookClient {
	return &BookClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// GetBook returns the full book for one token.
func (c *BookClient) GetBook(ctx context.Context, tokenID string) (types.RestBook, error) {
	q := url.Values{}
	q.Set("token_id", tokenID)
	endpoint := fmt.Sprintf("%s/book?%s", c.baseURL, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return types.RestBook{}, fmt.Errorf("create book request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return types.RestBook{}, fmt.Errorf("fetch book for %s: %w: %v", tokenID, types.ErrFeedTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return types.RestBook{}, fmt.Errorf("fetch book for %s: %w: status %d", tokenID, types.ErrFeedTransport, resp.StatusCode)
	}

	var book types.RestBook
	if err := json.NewDecoder(resp.Body).Decode(&book); err != nil {
		return types.RestBook{}, fmt.Errorf("decode book for %s: %w: %v", tokenID, types.ErrFeedProtocol, err)
	}
	return book, nil
}
