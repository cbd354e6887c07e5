package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"storefront/internal/domain"
	"storefront/internal/repository/products_repo"
)

type ProductRepository struct {
	db     domain.Querier
	logger *zap.Logger
}

var _ products_repo.ProductRepository = (*ProductRepository)(nil)

func NewProductRepository(db domain.Querier, l *zap.Logger) *ProductRepository {
	return &ProductRepository{db: db, logger: l}
}

func (r *ProductRepository) GetByRef(ctx context.Context, productRef string) (*domain.Product, error) {
	query := `
		SELECT product_ref, seller_ref, name, stock, price, updated_at
		FROM products
		WHERE product_ref = $1
	`
	product := &domain.Product{}
	err := r.db.QueryRowContext(ctx, query, productRef).Scan(
		&product.ProductRef,
		&product.SellerRef,
		&product.Name,
		&product.Stock,
		&product.Price,
		&product.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("product %s: %w", productRef, domain.ErrProductNotFound)
		}
		return nil, fmt.Errorf("%w: failed to get product %s: %w", domain.ErrStorage, productRef, err)
	}
	return product, nil
}

func (r *ProductRepository) DecrementStock(ctx context.Context, productRef string, quantity int64) (*domain.Product, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("%w: decrement quantity must be positive, got %d", domain.ErrValidation, quantity)
	}

	query := `
		UPDATE products
		SET stock = stock - $1, updated_at = $2
		WHERE product_ref = $3 AND stock >= $1
		RETURNING product_ref, seller_ref, name, stock, price, updated_at
	`
	product := &domain.Product{}
	err := r.db.QueryRowContext(ctx, query, quantity, time.Now().UTC(), productRef).Scan(
		&product.ProductRef,
		&product.SellerRef,
		&product.Name,
		&product.Stock,
		&product.Price,
		&product.UpdatedAt,
	)
	if err == nil {
		return product, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		r.logger.Error("Failed to decrement product stock", zap.String("product_ref", productRef), zap.Int64("quantity", quantity), zap.Error(err))
		return nil, fmt.Errorf("%w: failed to decrement stock for product %s: %w", domain.ErrStorage, productRef, err)
	}

	// No row matched: either the product is missing or the guard rejected it.
	existing, getErr := r.GetByRef(ctx, productRef)
	if getErr != nil {
		return nil, getErr
	}
	return nil, fmt.Errorf("product %s has %d in stock, cannot remove %d: %w",
		productRef, existing.Stock, quantity, domain.ErrInsufficientStock)
}
