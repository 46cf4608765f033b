package execution

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/polyflip/updown-arb/pkg/types"
)

// OrderClient is the live Venue: it signs legs and submits them to the
// venue's order API with HMAC request authentication.
type OrderClient struct {
	baseURL    string
	apiKey     string
	secret     string
	passphrase string
	signer     *Signer
	httpClient *http.Client
	logger     *zap.Logger
}

// OrderClientConfig holds order client configuration.
type OrderClientConfig struct {
	BaseURL    string
	APIKey     string
	Secret     string
	Passphrase string
	Timeout    time.Duration
	Signer     *Signer
	Logger     *zap.Logger
}

// NewOrderClient creates a live order client.
func NewOrderClient(cfg OrderClientConfig) *OrderClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &OrderClient{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		secret:     cfg.Secret,
		passphrase: cfg.Passphrase,
		signer:     cfg.Signer,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     cfg.Logger,
	}
}

// Submit signs and posts one leg order.
func (c *OrderClient) Submit(ctx context.Context, req types.OrderRequest) (types.OrderAck, error) {
	signed, err := c.signer.Sign(req)
	if err != nil {
		return types.OrderAck{}, fmt.Errorf("sign order: %w", err)
	}

	submission := types.OrderSubmission{
		Order:     signed,
		Owner:     c.apiKey,
		OrderType: string(req.TIF),
		ClientID:  req.ClientID,
	}
	body, err := json.Marshal(submission)
	if err != nil {
		return types.OrderAck{}, fmt.Errorf("marshal submission: %w", err)
	}

	respBody, status, err := c.do(ctx, http.MethodPost, "/order", body)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return types.OrderAck{}, fmt.Errorf("submit %s: %w", req.ClientID, types.ErrSubmitTimeout)
		}
		return types.OrderAck{}, fmt.Errorf("submit %s: %w", req.ClientID, err)
	}
	if status != http.StatusOK && status != http.StatusCreated {
		return types.OrderAck{}, fmt.Errorf("submit %s: %w: status %d: %s",
			req.ClientID, types.ErrSubmitRejected, status, string(respBody))
	}

	var ack types.OrderAck
	if err := json.Unmarshal(respBody, &ack); err != nil {
		return types.OrderAck{}, fmt.Errorf("decode ack: %w", err)
	}

	c.logger.Debug("order-submitted",
		zap.String("client-id", req.ClientID),
		zap.String("order-id", ack.OrderID),
		zap.String("token", req.TokenID),
		zap.Float64("price", req.Price()),
		zap.Float64("size", req.Size))
	return ack, nil
}

// Cancel removes a working order. Cancelling an already-dead order
// returns nil: the venue treats it as settled either way.
func (c *OrderClient) Cancel(ctx context.Context, orderID string) error {
	payload, err := json.Marshal(map[string]string{"orderID": orderID})
	if err != nil {
		return fmt.Errorf("marshal cancel: %w", err)
	}

	body, status, err := c.do(ctx, http.MethodDelete, "/order", payload)
	if err != nil {
		return fmt.Errorf("cancel %s: %w", orderID, err)
	}
	if status != http.StatusOK && status != http.StatusNotFound {
		return fmt.Errorf("cancel %s: status %d: %s", orderID, status, string(body))
	}
	return nil
}

// do sends an authenticated request and returns the body and status.
func (c *OrderClient) do(ctx context.Context, method, path string, body []byte) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}

	timestamp := fmt.Sprintf("%d", time.Now().Unix())
	signature, err := c.sign(timestamp + method + path + string(body))
	if err != nil {
		return nil, 0, err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("POLY_API_KEY", c.apiKey)
	req.Header.Set("POLY_SIGNATURE", signature)
	req.Header.Set("POLY_TIMESTAMP", timestamp)
	req.Header.Set("POLY_PASSPHRASE", c.passphrase)
	req.Header.Set("POLY_ADDRESS", c.signer.Address())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read response: %w", err)
	}
	return respBody, resp.StatusCode, nil
}

// sign HMACs the request payload with the URL-safe base64 API secret.
func (c *OrderClient) sign(payload string) (string, error) {
	secret, err := base64.URLEncoding.DecodeString(c.secret)
	if err != nil {
		return "", fmt.Errorf("decode api secret: %w", err)
	}
	h := hmac.New(sha256.New, secret)
	h.Write([]byte(payload))
	return base64.URLEncoding.EncodeToString(h.Sum(nil)), nil
}
