package address_repo

import (
	"context"

	"storefront/internal/domain"
)

type AddressRepository interface {
	Create(ctx context.Context, address *domain.Address) error
	GetByID(ctx context.Context, id string) (*domain.Address, error)
}
