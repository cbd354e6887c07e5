package storefront

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/shopspring/decimal"

	"storefront/internal/app/orders"
	"storefront/internal/domain"
)

const maxBodyBytes = 1 << 20

type createOrderRequest struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency,omitempty"`
	Receipt  string          `json:"receipt,omitempty"`
	Notes    orderNotes      `json:"notes"`
}

// orderNotes mirrors the gateway notes object. Items and customerAddress may
// arrive as JSON strings, since gateway notes only hold strings.
type orderNotes struct {
	CustomerID      string          `json:"customerId"`
	CustomerAddress json.RawMessage `json:"customerAddress,omitempty"`
	Items           json.RawMessage `json:"items,omitempty"`
}

type addressPayload struct {
	Name       string `json:"name"`
	Phone      string `json:"phone"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
}

type confirmPaymentRequest struct {
	GatewayOrderRef   string `json:"gatewayOrderRef,omitempty"`
	OrderID           string `json:"orderId,omitempty"`
	GatewayPaymentRef string `json:"gatewayPaymentRef,omitempty"`
	// Signature is accepted for client compatibility; verification happens upstream.
	Signature         string `json:"signature,omitempty"`
	PaymentMethod     string `json:"paymentMethod,omitempty"`
}

func decodeStrict(r io.Reader, v any) error {
	dec := json.NewDecoder(io.LimitReader(r, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: invalid request body: %w", domain.ErrValidation, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: request body must contain a single JSON object", domain.ErrValidation)
	}
	return nil
}

func (req *createOrderRequest) toServiceRequest() (*orders.CreateOrderRequest, error) {
	items, err := orders.DecodeItemsNote(req.Notes.Items)
	if err != nil {
		return nil, err
	}
	addr, err := decodeAddress(req.Notes.CustomerAddress)
	if err != nil {
		return nil, err
	}
	return &orders.CreateOrderRequest{
		Amount:     req.Amount,
		Currency:   req.Currency,
		Receipt:    req.Receipt,
		CustomerID: req.Notes.CustomerID,
		Address:    addr,
		Items:      items,
	}, nil
}

func decodeAddress(raw json.RawMessage) (*domain.Address, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var embedded string
	if err := json.Unmarshal(raw, &embedded); err == nil {
		if embedded == "" {
			return nil, nil
		}
		raw = json.RawMessage(embedded)
	}

	var p addressPayload
	if err := decodeStrict(bytes.NewReader(raw), &p); err != nil {
		return nil, fmt.Errorf("customerAddress: %w", err)
	}
	addr := &domain.Address{
		Name:       p.Name,
		Phone:      p.Phone,
		Line1:      p.Line1,
		Line2:      p.Line2,
		City:       p.City,
		State:      p.State,
		PostalCode: p.PostalCode,
		Country:    p.Country,
	}
	if addr.IsEmpty() {
		return nil, nil
	}
	return addr, nil
}
