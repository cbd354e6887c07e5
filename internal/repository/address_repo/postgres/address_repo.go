package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"storefront/internal/domain"
	"storefront/internal/repository/address_repo"
)

type AddressRepository struct {
	db     domain.Querier
	logger *zap.Logger
}

var _ address_repo.AddressRepository = (*AddressRepository)(nil)

func NewAddressRepository(db domain.Querier, l *zap.Logger) *AddressRepository {
	return &AddressRepository{db: db, logger: l}
}

func (r *AddressRepository) Create(ctx context.Context, a *domain.Address) error {
	query := `
		INSERT INTO addresses (id, customer_id, name, phone, line1, line2, city, state, postal_code, country, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := r.db.ExecContext(ctx, query,
		a.ID, a.CustomerID, a.Name, a.Phone, a.Line1, a.Line2, a.City, a.State, a.PostalCode, a.Country, a.CreatedAt)
	if err != nil {
		if pgErr, ok := err.(*pq.Error); ok && pgErr.Code == "23505" {
			return fmt.Errorf("address %s: %w", a.ID, domain.ErrAlreadyExists)
		}
		r.logger.Error("Failed to create address", zap.String("address_id", a.ID), zap.String("customer_id", a.CustomerID), zap.Error(err))
		return fmt.Errorf("%w: failed to create address %s: %w", domain.ErrStorage, a.ID, err)
	}
	return nil
}

func (r *AddressRepository) GetByID(ctx context.Context, id string) (*domain.Address, error) {
	query := `
		SELECT id, customer_id, name, phone, line1, line2, city, state, postal_code, country, created_at
		FROM addresses
		WHERE id = $1
	`
	a := &domain.Address{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&a.ID, &a.CustomerID, &a.Name, &a.Phone, &a.Line1, &a.Line2, &a.City, &a.State, &a.PostalCode, &a.Country, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("address %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("%w: failed to get address %s: %w", domain.ErrStorage, id, err)
	}
	return a, nil
}
