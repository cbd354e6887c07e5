package settlement

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"storefront/internal/domain"
	"storefront/internal/repository/products_repo"
	"storefront/internal/repository/sellers_repo"
)

type LineStatus string

const (
	LineSettled           LineStatus = "settled"
	LineStockInconsistent LineStatus = "stock_inconsistent"
	LineProductNotFound   LineStatus = "product_not_found"
	LineStockFailed       LineStatus = "stock_failed"
	LineEarningsFailed    LineStatus = "earnings_failed"
)

type LineOutcome struct {
	LineNo     int        `json:"lineNo"`
	ProductRef string     `json:"productRef"`
	Status     LineStatus `json:"status"`
	Error      string     `json:"error,omitempty"`
}

// Engine applies the durable side effects of a known payment outcome. It does
// not deduplicate: callers must invoke Settle at most once per order.
type Engine struct {
	products products_repo.ProductRepository
	sellers  sellers_repo.SellerRepository
	logger   *zap.Logger
}

func NewEngine(products products_repo.ProductRepository, sellers sellers_repo.SellerRepository, logger *zap.Logger) *Engine {
	return &Engine{products: products, sellers: sellers, logger: logger}
}

// Settle processes every line independently; one bad line never blocks the
// rest. Earnings are credited only when paymentStatus is paid.
func (e *Engine) Settle(ctx context.Context, order *domain.Order, paymentStatus domain.PaymentStatus) []LineOutcome {
	outcomes := make([]LineOutcome, 0, len(order.Items))
	for i, item := range order.Items {
		outcome := e.settleLine(ctx, order.ID, item, paymentStatus)
		outcome.LineNo = i + 1
		outcomes = append(outcomes, outcome)
	}
	e.logger.Info("Order settled",
		zap.String("order_id", order.ID),
		zap.String("payment_status", string(paymentStatus)),
		zap.Int("lines", len(outcomes)))
	return outcomes
}

func (e *Engine) settleLine(ctx context.Context, orderID string, item domain.LineItem, paymentStatus domain.PaymentStatus) LineOutcome {
	out := LineOutcome{ProductRef: item.ProductRef, Status: LineSettled}
	log := e.logger.With(zap.String("order_id", orderID), zap.String("product_ref", item.ProductRef))

	product, err := e.products.DecrementStock(ctx, item.ProductRef, item.Quantity)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrProductNotFound):
		log.Warn("Product not found during settlement, skipping line")
		out.Status = LineProductNotFound
		return out
	case errors.Is(err, domain.ErrInsufficientStock):
		log.Warn("Stock inconsistency: decrement would go below zero", zap.Int64("quantity", item.Quantity), zap.Error(err))
		out.Status = LineStockInconsistent
		out.Error = err.Error()
		// Stock is left untouched but the seller is still owed for a paid line.
		if product, err = e.products.GetByRef(ctx, item.ProductRef); err != nil {
			log.Error("Failed to load product for earnings credit", zap.Error(err))
			return out
		}
	default:
		log.Error("Failed to decrement stock", zap.Error(err))
		out.Status = LineStockFailed
		out.Error = err.Error()
		return out
	}

	if paymentStatus != domain.PaymentStatusPaid {
		return out
	}

	amount := item.Subtotal()
	if err := e.sellers.CreditEarnings(ctx, product.SellerRef, amount); err != nil {
		log.Error("Failed to credit seller earnings",
			zap.String("seller_ref", product.SellerRef),
			zap.String("amount", amount.StringFixed(2)),
			zap.Error(err))
		if out.Status == LineSettled {
			out.Status = LineEarningsFailed
		}
		out.Error = err.Error()
		return out
	}
	log.Debug("Seller earnings credited", zap.String("seller_ref", product.SellerRef), zap.String("amount", amount.StringFixed(2)))
	return out
}

// AllSettled reports whether every line completed without a soft failure.
func AllSettled(outcomes []LineOutcome) bool {
	for _, o := range outcomes {
		if o.Status != LineSettled {
			return false
		}
	}
	return true
}
