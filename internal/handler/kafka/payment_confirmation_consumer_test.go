package kafka

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"storefront/internal/app/reconciliation"
	"storefront/internal/domain"
)

type stubReconciler struct {
	calls []reconciliation.Confirmation
	err   error
}

func (s *stubReconciler) Confirm(_ context.Context, c reconciliation.Confirmation) (*reconciliation.ReconcileResult, error) {
	s.calls = append(s.calls, c)
	if s.err != nil {
		return nil, s.err
	}
	return &reconciliation.ReconcileResult{OrderID: c.OrderID, PaymentStatus: domain.PaymentStatusPaid, Settled: true}, nil
}

const capturedEvent = `{
	"event": "payment.captured",
	"payload": {"payment": {"entity": {
		"id": "pay_1", "order_id": "order_gw_1", "method": "CARD", "status": "captured",
		"notes": {"order_id": "order_1"}
	}}}
}`

func TestHandleMessage_Captured(t *testing.T) {
	stub := &stubReconciler{}
	c := NewPaymentConfirmationConsumer(stub, zap.NewNop())

	require.NoError(t, c.HandleMessage(context.Background(), []byte(capturedEvent)))
	require.Len(t, stub.calls, 1)
	assert.Equal(t, reconciliation.Confirmation{
		GatewayOrderRef:   "order_gw_1",
		OrderID:           "order_1",
		GatewayPaymentRef: "pay_1",
		Method:            "card",
	}, stub.calls[0])
}

func TestHandleMessage_Failed(t *testing.T) {
	stub := &stubReconciler{}
	c := NewPaymentConfirmationConsumer(stub, zap.NewNop())

	msg := `{"event":"payment.failed","payload":{"payment":{"entity":{"id":"pay_2","order_id":"order_gw_2"}}}}`
	require.NoError(t, c.HandleMessage(context.Background(), []byte(msg)))
	require.Len(t, stub.calls, 1)
	assert.True(t, stub.calls[0].Failed)
}

func TestHandleMessage_AcknowledgesUnprocessable(t *testing.T) {
	tests := []struct {
		name string
		msg  string
		err  error
	}{
		{name: "malformed", msg: `{"event":`},
		{name: "irrelevant event", msg: `{"event":"refund.created"}`},
		{name: "validation error", msg: capturedEvent, err: fmt.Errorf("%w: bad", domain.ErrValidation)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewPaymentConfirmationConsumer(&stubReconciler{err: tt.err}, zap.NewNop())
			assert.NoError(t, c.HandleMessage(context.Background(), []byte(tt.msg)))
		})
	}
}

func TestHandleMessage_RetriableErrorsAreReturned(t *testing.T) {
	for _, base := range []error{domain.ErrStorage, domain.ErrNotFound} {
		t.Run(base.Error(), func(t *testing.T) {
			c := NewPaymentConfirmationConsumer(&stubReconciler{err: fmt.Errorf("%w: boom", base)}, zap.NewNop())
			err := c.HandleMessage(context.Background(), []byte(capturedEvent))
			assert.ErrorIs(t, err, base)
		})
	}
}
