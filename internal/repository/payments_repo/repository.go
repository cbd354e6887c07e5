package payments_repo

import (
	"context"

	"storefront/internal/domain"
)

type PaymentRepository interface {
	Create(ctx context.Context, payment *domain.Payment) error
	GetByID(ctx context.Context, id string) (*domain.Payment, error)
	GetByOrderID(ctx context.Context, orderID string) (*domain.Payment, error)
	GetByGatewayOrderRef(ctx context.Context, gatewayOrderRef string) (*domain.Payment, error)
	// ApplyConfirmation writes c only if no confirmation has been applied yet.
	// The boolean is true for the single caller whose write took effect.
	ApplyConfirmation(ctx context.Context, id string, c domain.PaymentConfirmation) (bool, error)
}
