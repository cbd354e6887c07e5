package reconciliation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"storefront/internal/app/settlement"
	"storefront/internal/domain"
	"storefront/internal/notify"
	"storefront/internal/repository/order_repo"
	"storefront/internal/repository/payments_repo"
)

const notifyTimeout = 5 * time.Second

// Confirmation is a payment outcome reported by the gateway or the storefront
// client. Signature verification happens before it reaches this package.
type Confirmation struct {
	GatewayOrderRef   string
	OrderID           string
	GatewayPaymentRef string
	Method            string
	COD               bool
	Failed            bool
}

type ReconcileResult struct {
	OrderID       string                   `json:"orderId"`
	PaymentID     string                   `json:"paymentId"`
	PaymentStatus domain.PaymentStatus     `json:"paymentStatus"`
	Applied       bool                     `json:"applied"`
	Settled       bool                     `json:"settled"`
	Lines         []settlement.LineOutcome `json:"lines,omitempty"`
}

type Settler interface {
	Settle(ctx context.Context, order *domain.Order, paymentStatus domain.PaymentStatus) []settlement.LineOutcome
}

type Service interface {
	Confirm(ctx context.Context, c Confirmation) (*ReconcileResult, error)
}

type service struct {
	payments payments_repo.PaymentRepository
	orders   order_repo.OrderRepository
	settler  Settler
	notifier notify.Notifier
	now      func() time.Time
	logger   *zap.Logger
}

func NewService(
	payments payments_repo.PaymentRepository,
	orders order_repo.OrderRepository,
	settler Settler,
	notifier notify.Notifier,
	logger *zap.Logger,
) Service {
	return &service{
		payments: payments,
		orders:   orders,
		settler:  settler,
		notifier: notifier,
		now:      func() time.Time { return time.Now().UTC() },
		logger:   logger,
	}
}

// Confirm applies a confirmation at most once. The payment's confirmed_at
// flip and the order's pending->confirmed flip are both conditional writes;
// settlement runs only for the call that wins the order flip, so redelivered
// or racing confirmations never settle twice. A call that wins the payment
// flip but fails before the order flip is resumed by the next delivery.
func (s *service) Confirm(ctx context.Context, c Confirmation) (*ReconcileResult, error) {
	if strings.EqualFold(c.Method, domain.PaymentMethodCOD) {
		c.COD = true
	}
	if c.COD {
		c.Method = domain.PaymentMethodCOD
	}

	payment, err := s.resolvePayment(ctx, c)
	if err != nil {
		return nil, err
	}
	log := s.logger.With(
		zap.String("payment_id", payment.ID),
		zap.String("order_id", payment.OrderID),
		zap.String("gateway_order_ref", payment.GatewayOrderRef))

	target := targetStatus(c)
	applied, err := s.payments.ApplyConfirmation(ctx, payment.ID, domain.PaymentConfirmation{
		Status:            target,
		Method:            c.Method,
		GatewayPaymentRef: c.GatewayPaymentRef,
		ConfirmedAt:       s.now(),
	})
	if err != nil {
		log.Error("Failed to apply payment confirmation", zap.Error(err))
		return nil, err
	}

	status := target
	if !applied {
		current, err := s.payments.GetByID(ctx, payment.ID)
		if err != nil {
			log.Error("Failed to reload payment after lost confirmation race", zap.Error(err))
			return nil, err
		}
		if !current.IsConfirmed() {
			log.Warn("Payment is neither pending nor confirmed, ignoring confirmation", zap.String("status", string(current.Status)))
			return &ReconcileResult{OrderID: payment.OrderID, PaymentID: payment.ID, PaymentStatus: current.Status}, nil
		}
		status = current.Status
		log.Info("Payment already confirmed", zap.String("payment_status", string(status)))
	} else {
		log.Info("Payment confirmation applied", zap.String("payment_status", string(status)), zap.String("method", c.Method))
	}

	result := &ReconcileResult{OrderID: payment.OrderID, PaymentID: payment.ID, PaymentStatus: status, Applied: applied}

	order, err := s.orders.GetByID(ctx, payment.OrderID)
	if err != nil {
		log.Error("Failed to load order for confirmed payment", zap.Error(err))
		return nil, err
	}
	if order.Status != domain.OrderStatusPending {
		log.Info("Order already past pending, nothing to settle", zap.String("order_status", string(order.Status)))
		return result, nil
	}

	won, err := s.transitionOrder(ctx, order.ID, status)
	if err != nil {
		log.Error("Failed to transition order", zap.Error(err))
		return nil, err
	}
	if !won {
		log.Info("Order transitioned by a concurrent confirmation")
		return result, nil
	}

	if status == domain.PaymentStatusFailed {
		log.Info("Order cancelled after failed payment")
		s.notify(ctx, order.CustomerID, fmt.Sprintf("Payment for order %s failed and the order was cancelled.", order.ID))
		return result, nil
	}

	result.Lines = s.settler.Settle(ctx, order, status)
	result.Settled = true
	s.notify(ctx, order.CustomerID, fmt.Sprintf("Your order %s is confirmed.", order.ID))
	return result, nil
}

func (s *service) resolvePayment(ctx context.Context, c Confirmation) (*domain.Payment, error) {
	var (
		payment *domain.Payment
		err     error
	)
	switch {
	case c.COD && c.OrderID != "":
		payment, err = s.payments.GetByOrderID(ctx, c.OrderID)
	case c.COD:
		return nil, fmt.Errorf("%w: cash-on-delivery confirmation requires an order id", domain.ErrValidation)
	case c.GatewayOrderRef != "":
		payment, err = s.payments.GetByGatewayOrderRef(ctx, c.GatewayOrderRef)
	case c.OrderID != "":
		payment, err = s.payments.GetByOrderID(ctx, c.OrderID)
	default:
		return nil, fmt.Errorf("%w: confirmation requires a gateway order ref or an order id", domain.ErrValidation)
	}
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.logger.Warn("No payment matches confirmation",
				zap.String("gateway_order_ref", c.GatewayOrderRef),
				zap.String("order_id", c.OrderID))
		} else {
			s.logger.Error("Failed to resolve payment for confirmation", zap.Error(err))
		}
		return nil, err
	}
	return payment, nil
}

func (s *service) transitionOrder(ctx context.Context, orderID string, status domain.PaymentStatus) (bool, error) {
	if status == domain.PaymentStatusFailed {
		return s.orders.MarkPaymentFailed(ctx, orderID)
	}
	return s.orders.Confirm(ctx, orderID, status)
}

func (s *service) notify(ctx context.Context, destination, message string) {
	if s.notifier == nil {
		return
	}
	nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()
	if _, err := s.notifier.Notify(nctx, destination, message); err != nil {
		s.logger.Warn("Failed to notify customer", zap.String("destination", destination), zap.Error(err))
	}
}

func targetStatus(c Confirmation) domain.PaymentStatus {
	switch {
	case c.Failed:
		return domain.PaymentStatusFailed
	case c.COD:
		return domain.PaymentStatusPending
	default:
		return domain.PaymentStatusPaid
	}
}
