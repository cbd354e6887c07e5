package sellers_repo

import (
	"context"

	"github.com/shopspring/decimal"

	"storefront/internal/domain"
)

type SellerRepository interface {
	GetByRef(ctx context.Context, sellerRef string) (*domain.Seller, error)
	// CreditEarnings adds amount to total_earnings in a single statement.
	CreditEarnings(ctx context.Context, sellerRef string, amount decimal.Decimal) error
}
