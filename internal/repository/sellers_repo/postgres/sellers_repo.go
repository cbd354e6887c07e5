package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"storefront/internal/domain"
	"storefront/internal/repository/sellers_repo"
)

type SellerRepository struct {
	db     domain.Querier
	logger *zap.Logger
}

var _ sellers_repo.SellerRepository = (*SellerRepository)(nil)

func NewSellerRepository(db domain.Querier, l *zap.Logger) *SellerRepository {
	return &SellerRepository{db: db, logger: l}
}

func (r *SellerRepository) GetByRef(ctx context.Context, sellerRef string) (*domain.Seller, error) {
	query := `SELECT seller_ref, total_earnings, updated_at FROM sellers WHERE seller_ref = $1`
	seller := &domain.Seller{}
	err := r.db.QueryRowContext(ctx, query, sellerRef).Scan(&seller.SellerRef, &seller.TotalEarnings, &seller.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("seller %s: %w", sellerRef, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("%w: failed to get seller %s: %w", domain.ErrStorage, sellerRef, err)
	}
	return seller, nil
}

func (r *SellerRepository) CreditEarnings(ctx context.Context, sellerRef string, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return fmt.Errorf("%w: earnings credit cannot be negative", domain.ErrValidation)
	}

	query := `
		UPDATE sellers
		SET total_earnings = total_earnings + $1, updated_at = $2
		WHERE seller_ref = $3
	`
	res, err := r.db.ExecContext(ctx, query, amount, time.Now().UTC(), sellerRef)
	if err != nil {
		r.logger.Error("Failed to credit seller earnings", zap.String("seller_ref", sellerRef), zap.String("amount", amount.String()), zap.Error(err))
		return fmt.Errorf("%w: failed to credit earnings for seller %s: %w", domain.ErrStorage, sellerRef, err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: failed to get rows affected: %w", domain.ErrStorage, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("seller %s: %w", sellerRef, domain.ErrNotFound)
	}
	return nil
}
