package orders

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"storefront/internal/domain"
)

// ItemNote is the line-item shape carried in gateway notes and accepted from
// storefront clients.
type ItemNote struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Quantity int64           `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

func EncodeItemsNote(items []domain.LineItem) (string, error) {
	notes := make([]ItemNote, len(items))
	for i, li := range items {
		notes[i] = ItemNote{ID: li.ProductRef, Name: li.Name, Quantity: li.Quantity, Price: li.UnitPrice}
	}
	raw, err := json.Marshal(notes)
	if err != nil {
		return "", fmt.Errorf("failed to encode items note: %w", err)
	}
	return string(raw), nil
}

// DecodeItemsNote accepts either a JSON array or a JSON string holding one.
// An empty input yields no items.
func DecodeItemsNote(raw []byte) ([]domain.LineItem, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var embedded string
	if err := json.Unmarshal(raw, &embedded); err == nil {
		if embedded == "" {
			return nil, nil
		}
		raw = []byte(embedded)
	}

	var notes []ItemNote
	if err := json.Unmarshal(raw, &notes); err != nil {
		return nil, fmt.Errorf("%w: items must be a list of {id, name, quantity, price}: %w", domain.ErrValidation, err)
	}
	items := make([]domain.LineItem, len(notes))
	for i, n := range notes {
		items[i] = domain.LineItem{ProductRef: n.ID, Name: n.Name, Quantity: n.Quantity, UnitPrice: n.Price}
		if err := items[i].Validate(); err != nil {
			return nil, err
		}
	}
	return items, nil
}
