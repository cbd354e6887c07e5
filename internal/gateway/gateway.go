package gateway

import (
	"context"
	"time"
)

// Notes keys written at intake so a gateway order can be traced back to
// local records.
const (
	NoteOrderID    = "order_id"
	NotePaymentID  = "payment_id"
	NoteCustomerID = "customer_id"
	NoteItems      = "items"
)

type IntentRequest struct {
	AmountMinor int64             `json:"amount"`
	Currency    string            `json:"currency"`
	Receipt     string            `json:"receipt,omitempty"`
	Notes       map[string]string `json:"notes,omitempty"`
}

// Intent is the gateway-side order created before the payer completes payment.
type Intent struct {
	ID          string            `json:"id"`
	AmountMinor int64             `json:"amount"`
	Currency    string            `json:"currency"`
	Receipt     string            `json:"receipt"`
	Notes       map[string]string `json:"notes"`
	CreatedAt   time.Time         `json:"-"`
}

type Client interface {
	// CreateIntent opens a remote payment intent. Supplying a receipt makes the
	// call idempotent: the same receipt yields the same intent.
	CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error)
	// ListIntents returns intents created at or after since.
	ListIntents(ctx context.Context, since time.Time) ([]Intent, error)
	// PublicKey is handed to the storefront client to finish checkout.
	PublicKey() string
}
