package kafka

import (
	"context"
	"encoding/json"
	"strings"

	"go.uber.org/zap"

	"storefront/internal/app/reconciliation"
	"storefront/internal/domain"
	"storefront/internal/gateway"
)

const (
	EventPaymentCaptured = "payment.captured"
	EventPaymentFailed   = "payment.failed"
)

// WebhookEnvelope is a gateway webhook relayed onto the confirmation topic
// after its signature has been verified upstream.
type WebhookEnvelope struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity PaymentEntity `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

type PaymentEntity struct {
	ID      string            `json:"id"`
	OrderID string            `json:"order_id"`
	Method  string            `json:"method"`
	Status  string            `json:"status"`
	Notes   map[string]string `json:"notes"`
}

type PaymentConfirmationConsumer struct {
	reconcile reconciliation.Service
	logger    *zap.Logger
}

func NewPaymentConfirmationConsumer(s reconciliation.Service, l *zap.Logger) *PaymentConfirmationConsumer {
	return &PaymentConfirmationConsumer{reconcile: s, logger: l}
}

// HandleMessage returns an error only for failures worth redelivering.
// Malformed and irrelevant messages are logged and acknowledged.
func (c *PaymentConfirmationConsumer) HandleMessage(ctx context.Context, message []byte) error {
	var env WebhookEnvelope
	if err := json.Unmarshal(message, &env); err != nil {
		c.logger.Error("Error unmarshalling Kafka message", zap.Error(err), zap.String("raw_message", string(message)))
		return nil
	}

	var failed bool
	switch env.Event {
	case EventPaymentCaptured:
	case EventPaymentFailed:
		failed = true
	default:
		c.logger.Debug("Ignoring webhook event", zap.String("event", env.Event))
		return nil
	}

	entity := env.Payload.Payment.Entity
	confirmation := reconciliation.Confirmation{
		GatewayOrderRef:   entity.OrderID,
		OrderID:           entity.Notes[gateway.NoteOrderID],
		GatewayPaymentRef: entity.ID,
		Method:            strings.ToLower(entity.Method),
		Failed:            failed,
	}

	c.logger.Info("Received payment confirmation",
		zap.String("event", env.Event),
		zap.String("gateway_order_ref", confirmation.GatewayOrderRef),
		zap.String("gateway_payment_ref", confirmation.GatewayPaymentRef))

	res, err := c.reconcile.Confirm(ctx, confirmation)
	if err != nil {
		if domain.IsRetriable(err) {
			c.logger.Warn("Payment confirmation failed, leaving for redelivery",
				zap.String("gateway_order_ref", confirmation.GatewayOrderRef),
				zap.Error(err))
			return err
		}
		c.logger.Error("Dropping payment confirmation",
			zap.String("gateway_order_ref", confirmation.GatewayOrderRef),
			zap.Error(err))
		return nil
	}

	c.logger.Info("Payment confirmation processed",
		zap.String("order_id", res.OrderID),
		zap.String("payment_status", string(res.PaymentStatus)),
		zap.Bool("settled", res.Settled))
	return nil
}
