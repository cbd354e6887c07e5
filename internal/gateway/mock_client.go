package gateway

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// MockClient simulates the gateway in-process for local runs.
type MockClient struct {
	mu        sync.Mutex
	seq       int
	intents   map[string]Intent
	byReceipt map[string]string
	publicKey string
	logger    *zap.Logger
}

var _ Client = (*MockClient)(nil)

func NewMockClient(publicKey string, logger *zap.Logger) *MockClient {
	return &MockClient{
		intents:   make(map[string]Intent),
		byReceipt: make(map[string]string),
		publicKey: publicKey,
		logger:    logger,
	}
}

func (c *MockClient) PublicKey() string {
	return c.publicKey
}

func (c *MockClient) CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error) {
	if err := ctx.Err(); err != nil {
		return nil, classifyTransportError(err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if req.Receipt != "" {
		if id, ok := c.byReceipt[req.Receipt]; ok {
			intent := c.intents[id]
			c.logger.Debug("Returning existing mock intent for receipt", zap.String("receipt", req.Receipt), zap.String("gateway_order_ref", id))
			return &intent, nil
		}
	}

	c.seq++
	notes := make(map[string]string, len(req.Notes))
	for k, v := range req.Notes {
		notes[k] = v
	}
	intent := Intent{
		ID:          fmt.Sprintf("order_mock_%d", c.seq),
		AmountMinor: req.AmountMinor,
		Currency:    req.Currency,
		Receipt:     req.Receipt,
		Notes:       notes,
		CreatedAt:   time.Now().UTC(),
	}
	c.intents[intent.ID] = intent
	if req.Receipt != "" {
		c.byReceipt[req.Receipt] = intent.ID
	}
	c.logger.Info("Mock payment intent created", zap.String("gateway_order_ref", intent.ID), zap.Int64("amount_minor", intent.AmountMinor))
	return &intent, nil
}

func (c *MockClient) ListIntents(ctx context.Context, since time.Time) ([]Intent, error) {
	if err := ctx.Err(); err != nil {
		return nil, classifyTransportError(err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	var out []Intent
	for _, intent := range c.intents {
		if !intent.CreatedAt.Before(since) {
			out = append(out, intent)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
