package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product rows are owned by the catalog; this service only reads them and
// decrements Stock during settlement.
type Product struct {
	ProductRef string
	SellerRef  string
	Name       string
	Stock      int64
	Price      decimal.Decimal
	UpdatedAt  time.Time
}

type Seller struct {
	SellerRef     string
	TotalEarnings decimal.Decimal
	UpdatedAt     time.Time
}

// Address is insert-only; once referenced by an order it is never rewritten.
type Address struct {
	ID         string    `json:"id"`
	CustomerID string    `json:"customerId"`
	Name       string    `json:"name"`
	Phone      string    `json:"phone"`
	Line1      string    `json:"line1"`
	Line2      string    `json:"line2"`
	City       string    `json:"city"`
	State      string    `json:"state"`
	PostalCode string    `json:"postalCode"`
	Country    string    `json:"country"`
	CreatedAt  time.Time `json:"createdAt"`
}

// IsEmpty reports whether no billing/shipping details were supplied.
func (a Address) IsEmpty() bool {
	return a.Name == "" && a.Phone == "" && a.Line1 == "" && a.Line2 == "" &&
		a.City == "" && a.State == "" && a.PostalCode == "" && a.Country == ""
}
