package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"storefront/internal/domain"
)

const listPageSize = 100

type HTTPClient struct {
	baseURL    string
	keyID      string
	keySecret  string
	timeout    time.Duration
	httpClient *http.Client
	logger     *zap.Logger
}

var _ Client = (*HTTPClient)(nil)

func NewHTTPClient(baseURL, keyID, keySecret string, timeout time.Duration, logger *zap.Logger) *HTTPClient {
	return &HTTPClient{
		baseURL:    baseURL,
		keyID:      keyID,
		keySecret:  keySecret,
		timeout:    timeout,
		httpClient: &http.Client{},
		logger:     logger,
	}
}

type intentPayload struct {
	ID        string            `json:"id"`
	Amount    int64             `json:"amount"`
	Currency  string            `json:"currency"`
	Receipt   string            `json:"receipt"`
	Notes     map[string]string `json:"notes"`
	CreatedAt int64             `json:"created_at"`
}

func (p intentPayload) toIntent() Intent {
	return Intent{
		ID:          p.ID,
		AmountMinor: p.Amount,
		Currency:    p.Currency,
		Receipt:     p.Receipt,
		Notes:       p.Notes,
		CreatedAt:   time.Unix(p.CreatedAt, 0).UTC(),
	}
}

func (c *HTTPClient) PublicKey() string {
	return c.keyID
}

func (c *HTTPClient) CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to encode intent request: %w", domain.ErrGateway, err)
	}

	headers := http.Header{}
	if req.Receipt != "" {
		headers.Set("Idempotency-Key", req.Receipt)
	}

	var payload intentPayload
	if err := c.do(ctx, http.MethodPost, "/orders", headers, body, &payload); err != nil {
		return nil, err
	}
	intent := payload.toIntent()
	c.logger.Info("Payment intent created",
		zap.String("gateway_order_ref", intent.ID),
		zap.Int64("amount_minor", intent.AmountMinor),
		zap.String("currency", intent.Currency),
		zap.String("receipt", intent.Receipt))
	return &intent, nil
}

func (c *HTTPClient) ListIntents(ctx context.Context, since time.Time) ([]Intent, error) {
	var intents []Intent
	for skip := 0; ; skip += listPageSize {
		q := url.Values{}
		q.Set("from", strconv.FormatInt(since.Unix(), 10))
		q.Set("count", strconv.Itoa(listPageSize))
		q.Set("skip", strconv.Itoa(skip))

		var page struct {
			Items []intentPayload `json:"items"`
		}
		if err := c.do(ctx, http.MethodGet, "/orders?"+q.Encode(), nil, nil, &page); err != nil {
			return nil, err
		}
		for _, p := range page.Items {
			intents = append(intents, p.toIntent())
		}
		if len(page.Items) < listPageSize {
			return intents, nil
		}
	}
}

func (c *HTTPClient) do(ctx context.Context, method, path string, headers http.Header, body []byte, out any) error {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: failed to build request: %w", domain.ErrGateway, err)
	}
	for k, v := range headers {
		req.Header[k] = v
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.keyID, c.keySecret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("Payment gateway request failed", zap.String("method", method), zap.String("path", path), zap.Error(err))
		return classifyTransportError(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return classifyTransportError(err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		c.logger.Warn("Payment gateway returned error status",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", raw))
		return fmt.Errorf("%w: gateway responded %d: %s", domain.ErrGateway, resp.StatusCode, string(raw))
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: failed to decode gateway response: %w", domain.ErrGateway, err)
	}
	return nil
}

// A timed-out call may still have created the intent remotely, so it is kept
// distinct from a definite failure.
func classifyTransportError(err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("%w: %w", domain.ErrGatewayTimeout, err)
	}
	return fmt.Errorf("%w: %w", domain.ErrGateway, err)
}
