package orders

import (
	"time"

	"github.com/shopspring/decimal"

	"storefront/internal/domain"
)

type CreateOrderRequest struct {
	Amount     decimal.Decimal
	Currency   string
	Receipt    string
	CustomerID string
	Address    *domain.Address
	Items      []domain.LineItem
}

type CreateOrderResult struct {
	OrderID          string          `json:"orderId"`
	PaymentID        string          `json:"paymentId"`
	GatewayOrderID   string          `json:"gatewayOrderId"`
	GatewayPublicKey string          `json:"gatewayPublicKey"`
	Amount           decimal.Decimal `json:"amount"`
	Currency         string          `json:"currency"`
}

type PaymentResponse struct {
	ID                string     `json:"id"`
	GatewayOrderRef   string     `json:"gatewayOrderRef"`
	GatewayPaymentRef string     `json:"gatewayPaymentRef,omitempty"`
	Status            string     `json:"status"`
	Method            string     `json:"method,omitempty"`
	ConfirmedAt       *time.Time `json:"confirmedAt,omitempty"`
}

type OrderResponse struct {
	ID              string            `json:"id"`
	CustomerID      string            `json:"customerId"`
	Status          string            `json:"status"`
	PaymentStatus   string            `json:"paymentStatus"`
	TotalAmount     decimal.Decimal   `json:"totalAmount"`
	Currency        string            `json:"currency"`
	Receipt         string            `json:"receipt"`
	Items           []domain.LineItem `json:"items"`
	ShippingAddress *domain.Address   `json:"shippingAddress,omitempty"`
	Payment         *PaymentResponse  `json:"payment,omitempty"`
	CreatedAt       time.Time         `json:"createdAt"`
	UpdatedAt       time.Time         `json:"updatedAt"`
}
