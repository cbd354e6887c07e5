package order_repo

import (
	"context"

	"storefront/internal/domain"
)

type OrderRepository interface {
	// Create inserts a new order; an existing id yields domain.ErrAlreadyExists.
	Create(ctx context.Context, order *domain.Order) error
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	// Confirm moves a pending order to confirmed with the given payment status.
	// It reports false when the order was no longer pending.
	Confirm(ctx context.Context, id string, paymentStatus domain.PaymentStatus) (bool, error)
	// MarkPaymentFailed cancels a pending order and records a failed payment.
	MarkPaymentFailed(ctx context.Context, id string) (bool, error)
}
