package products_repo

import (
	"context"

	"storefront/internal/domain"
)

type ProductRepository interface {
	GetByRef(ctx context.Context, productRef string) (*domain.Product, error)
	// DecrementStock atomically subtracts quantity when enough stock is left and
	// returns the updated product. It fails with domain.ErrProductNotFound or
	// domain.ErrInsufficientStock, leaving stock untouched.
	DecrementStock(ctx context.Context, productRef string, quantity int64) (*domain.Product, error)
}
