package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusShipped   OrderStatus = "shipped"
	OrderStatusCancelled OrderStatus = "cancelled"
)

type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPaid    PaymentStatus = "paid"
	PaymentStatusFailed  PaymentStatus = "failed"
)

// LineItem is a product snapshot captured at order time. ProductRef is the
// stable catalog key used during settlement; Name is display-only.
type LineItem struct {
	ProductRef string          `json:"productRef"`
	Name       string          `json:"name"`
	Quantity   int64           `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unitPrice"`
}

// Subtotal returns UnitPrice * Quantity.
func (li LineItem) Subtotal() decimal.Decimal {
	return li.UnitPrice.Mul(decimal.NewFromInt(li.Quantity))
}

func (li LineItem) Validate() error {
	if li.ProductRef == "" {
		return fmt.Errorf("%w: line item product reference is required", ErrValidation)
	}
	if li.Quantity <= 0 {
		return fmt.Errorf("%w: line item %s quantity must be positive", ErrValidation, li.ProductRef)
	}
	if li.UnitPrice.IsNegative() {
		return fmt.Errorf("%w: line item %s price cannot be negative", ErrValidation, li.ProductRef)
	}
	return nil
}

type Order struct {
	ID                string
	CustomerID        string
	Status            OrderStatus
	PaymentStatus     PaymentStatus
	TotalAmount       decimal.Decimal
	Currency          string
	Receipt           string
	ShippingAddressID string
	Items             []LineItem
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func NewOrder(id, customerID string, total decimal.Decimal, currency, receipt string, items []LineItem) (*Order, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: order id is required", ErrValidation)
	}
	if customerID == "" {
		return nil, fmt.Errorf("%w: customer id is required", ErrValidation)
	}
	if !total.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be positive", ErrValidation)
	}
	for _, li := range items {
		if err := li.Validate(); err != nil {
			return nil, err
		}
	}
	now := time.Now().UTC()
	return &Order{
		ID:            id,
		CustomerID:    customerID,
		Status:        OrderStatusPending,
		PaymentStatus: PaymentStatusPending,
		TotalAmount:   total,
		Currency:      currency,
		Receipt:       receipt,
		Items:         items,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

var orderStatusRank = map[OrderStatus]int{
	OrderStatusPending:   0,
	OrderStatusConfirmed: 1,
	OrderStatusShipped:   2,
}

// CanTransitionTo enforces pending -> confirmed -> shipped, with cancelled
// reachable only from pending or confirmed.
func (o *Order) CanTransitionTo(next OrderStatus) bool {
	if o.Status == OrderStatusCancelled {
		return false
	}
	if next == OrderStatusCancelled {
		return o.Status == OrderStatusPending || o.Status == OrderStatusConfirmed
	}
	cur, ok := orderStatusRank[o.Status]
	if !ok {
		return false
	}
	nxt, ok := orderStatusRank[next]
	return ok && nxt == cur+1
}
