package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const PaymentMethodCOD = "cod"

type Payment struct {
	ID                string
	OrderID           string
	GatewayOrderRef   string
	GatewayPaymentRef string
	Amount            decimal.Decimal
	Currency          string
	Status            PaymentStatus
	Method            string
	CreatedAt         time.Time
	UpdatedAt         time.Time
	// ConfirmedAt is set by the first confirmation applied to this payment and
	// never cleared; it is the compare-and-set guard for redelivered callbacks.
	ConfirmedAt *time.Time
}

func NewPayment(id, orderID, gatewayOrderRef string, amount decimal.Decimal, currency string) *Payment {
	now := time.Now().UTC()
	return &Payment{
		ID:              id,
		OrderID:         orderID,
		GatewayOrderRef: gatewayOrderRef,
		Amount:          amount,
		Currency:        currency,
		Status:          PaymentStatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

func (p *Payment) IsConfirmed() bool {
	return p.ConfirmedAt != nil
}

// PaymentConfirmation is the set of fields written when a confirmation is applied.
type PaymentConfirmation struct {
	Status            PaymentStatus
	Method            string
	GatewayPaymentRef string
	ConfirmedAt       time.Time
}
