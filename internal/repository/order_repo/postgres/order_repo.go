package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"storefront/internal/domain"
	"storefront/internal/repository/order_repo"
)

const orderColumns = `id, customer_id, status, payment_status, total_amount, currency, receipt, shipping_address_id, items, created_at, updated_at`

type pgOrderRepository struct {
	db     domain.Querier
	logger *zap.Logger
}

func NewOrderRepository(db domain.Querier, l *zap.Logger) order_repo.OrderRepository {
	return &pgOrderRepository{db: db, logger: l}
}

func (r *pgOrderRepository) Create(ctx context.Context, order *domain.Order) error {
	items, err := json.Marshal(order.Items)
	if err != nil {
		return fmt.Errorf("failed to encode line items for order %s: %w", order.ID, err)
	}

	query := `INSERT INTO orders (` + orderColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err = r.db.ExecContext(ctx, query,
		order.ID,
		order.CustomerID,
		order.Status,
		order.PaymentStatus,
		order.TotalAmount,
		order.Currency,
		order.Receipt,
		sql.NullString{String: order.ShippingAddressID, Valid: order.ShippingAddressID != ""},
		items,
		order.CreatedAt,
		order.UpdatedAt,
	)
	if err != nil {
		if pgErr, ok := err.(*pq.Error); ok && pgErr.Code == "23505" {
			return fmt.Errorf("order %s: %w", order.ID, domain.ErrAlreadyExists)
		}
		r.logger.Error("Failed to create order", zap.String("order_id", order.ID), zap.Error(err))
		return fmt.Errorf("%w: failed to create order %s: %w", domain.ErrStorage, order.ID, err)
	}
	r.logger.Debug("Order created", zap.String("order_id", order.ID))
	return nil
}

func (r *pgOrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	order := &domain.Order{}
	var shippingAddressID sql.NullString
	var items []byte
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&order.ID,
		&order.CustomerID,
		&order.Status,
		&order.PaymentStatus,
		&order.TotalAmount,
		&order.Currency,
		&order.Receipt,
		&shippingAddressID,
		&items,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("order %s: %w", id, domain.ErrNotFound)
		}
		r.logger.Error("Failed to get order by ID", zap.String("order_id", id), zap.Error(err))
		return nil, fmt.Errorf("%w: failed to get order %s: %w", domain.ErrStorage, id, err)
	}
	order.ShippingAddressID = shippingAddressID.String
	if len(items) > 0 {
		if err := json.Unmarshal(items, &order.Items); err != nil {
			return nil, fmt.Errorf("%w: failed to decode line items for order %s: %w", domain.ErrStorage, id, err)
		}
	}
	return order, nil
}

func (r *pgOrderRepository) Confirm(ctx context.Context, id string, paymentStatus domain.PaymentStatus) (bool, error) {
	query := `UPDATE orders SET status = $1, payment_status = $2, updated_at = $3 WHERE id = $4 AND status = $5`
	return r.transition(ctx, query, id, domain.OrderStatusConfirmed, paymentStatus)
}

func (r *pgOrderRepository) MarkPaymentFailed(ctx context.Context, id string) (bool, error) {
	query := `UPDATE orders SET status = $1, payment_status = $2, updated_at = $3 WHERE id = $4 AND status = $5`
	return r.transition(ctx, query, id, domain.OrderStatusCancelled, domain.PaymentStatusFailed)
}

func (r *pgOrderRepository) transition(ctx context.Context, query, id string, status domain.OrderStatus, paymentStatus domain.PaymentStatus) (bool, error) {
	res, err := r.db.ExecContext(ctx, query, status, paymentStatus, time.Now().UTC(), id, domain.OrderStatusPending)
	if err != nil {
		r.logger.Error("Failed to update order status", zap.String("order_id", id), zap.String("new_status", string(status)), zap.Error(err))
		return false, fmt.Errorf("%w: failed to update order %s: %w", domain.ErrStorage, id, err)
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%w: failed to check update result for order %s: %w", domain.ErrStorage, id, err)
	}
	if rowsAffected == 0 {
		r.logger.Debug("Order no longer pending, status not changed", zap.String("order_id", id), zap.String("requested_status", string(status)))
		return false, nil
	}
	r.logger.Debug("Order status updated", zap.String("order_id", id), zap.String("new_status", string(status)))
	return true, nil
}
