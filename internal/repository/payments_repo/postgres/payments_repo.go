package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"storefront/internal/domain"
	"storefront/internal/repository/payments_repo"
)

const paymentColumns = `id, order_id, gateway_order_ref, gateway_payment_ref, amount, currency, status, method, confirmed_at, created_at, updated_at`

type paymentRepository struct {
	db     domain.Querier
	logger *zap.Logger
}

func NewPaymentRepository(db domain.Querier, l *zap.Logger) payments_repo.PaymentRepository {
	return &paymentRepository{db: db, logger: l}
}

func (r *paymentRepository) Create(ctx context.Context, payment *domain.Payment) error {
	query := `INSERT INTO payments (` + paymentColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := r.db.ExecContext(ctx, query,
		payment.ID,
		payment.OrderID,
		payment.GatewayOrderRef,
		sql.NullString{String: payment.GatewayPaymentRef, Valid: payment.GatewayPaymentRef != ""},
		payment.Amount,
		payment.Currency,
		payment.Status,
		payment.Method,
		nullTime(payment.ConfirmedAt),
		payment.CreatedAt,
		payment.UpdatedAt,
	)
	if err != nil {
		if pgErr, ok := err.(*pq.Error); ok && pgErr.Code == "23505" {
			return fmt.Errorf("payment %s: %w", payment.ID, domain.ErrAlreadyExists)
		}
		r.logger.Error("Failed to create payment", zap.String("payment_id", payment.ID), zap.String("order_id", payment.OrderID), zap.Error(err))
		return fmt.Errorf("%w: failed to create payment %s: %w", domain.ErrStorage, payment.ID, err)
	}
	return nil
}

func (r *paymentRepository) GetByID(ctx context.Context, id string) (*domain.Payment, error) {
	return r.getOne(ctx, "id", id)
}

func (r *paymentRepository) GetByOrderID(ctx context.Context, orderID string) (*domain.Payment, error) {
	return r.getOne(ctx, "order_id", orderID)
}

func (r *paymentRepository) GetByGatewayOrderRef(ctx context.Context, gatewayOrderRef string) (*domain.Payment, error) {
	return r.getOne(ctx, "gateway_order_ref", gatewayOrderRef)
}

// getOne is only called with the fixed column names above.
func (r *paymentRepository) getOne(ctx context.Context, column, value string) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE ` + column + ` = $1`

	payment := &domain.Payment{}
	var gatewayPaymentRef sql.NullString
	var confirmedAt sql.NullTime
	err := r.db.QueryRowContext(ctx, query, value).Scan(
		&payment.ID,
		&payment.OrderID,
		&payment.GatewayOrderRef,
		&gatewayPaymentRef,
		&payment.Amount,
		&payment.Currency,
		&payment.Status,
		&payment.Method,
		&confirmedAt,
		&payment.CreatedAt,
		&payment.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("payment with %s %s: %w", column, value, domain.ErrNotFound)
		}
		r.logger.Error("Failed to get payment", zap.String(column, value), zap.Error(err))
		return nil, fmt.Errorf("%w: failed to get payment by %s %s: %w", domain.ErrStorage, column, value, err)
	}
	payment.GatewayPaymentRef = gatewayPaymentRef.String
	if confirmedAt.Valid {
		payment.ConfirmedAt = &confirmedAt.Time
	}
	return payment, nil
}

func (r *paymentRepository) ApplyConfirmation(ctx context.Context, id string, c domain.PaymentConfirmation) (bool, error) {
	query := `
		UPDATE payments
		SET status = $1, method = $2, gateway_payment_ref = $3, confirmed_at = $4, updated_at = $4
		WHERE id = $5 AND confirmed_at IS NULL AND status = $6
	`
	res, err := r.db.ExecContext(ctx, query,
		c.Status,
		c.Method,
		sql.NullString{String: c.GatewayPaymentRef, Valid: c.GatewayPaymentRef != ""},
		c.ConfirmedAt,
		id,
		domain.PaymentStatusPending,
	)
	if err != nil {
		r.logger.Error("Failed to apply payment confirmation", zap.String("payment_id", id), zap.Error(err))
		return false, fmt.Errorf("%w: failed to apply confirmation to payment %s: %w", domain.ErrStorage, id, err)
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%w: failed to check confirmation result for payment %s: %w", domain.ErrStorage, id, err)
	}
	if rowsAffected == 0 {
		r.logger.Info("Payment already confirmed, confirmation not applied", zap.String("payment_id", id))
		return false, nil
	}
	return true, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
