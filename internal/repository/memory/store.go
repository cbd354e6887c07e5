// Package memory keeps every record collection in process memory behind the
// same repository interfaces as the Postgres adapters. A single mutex gives
// each conditional update the per-record atomicity the store contract needs.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"storefront/internal/domain"
	"storefront/internal/repository/address_repo"
	"storefront/internal/repository/order_repo"
	"storefront/internal/repository/payments_repo"
	"storefront/internal/repository/products_repo"
	"storefront/internal/repository/sellers_repo"
)

var (
	_ order_repo.OrderRepository      = (*OrderRepository)(nil)
	_ payments_repo.PaymentRepository = (*PaymentRepository)(nil)
	_ products_repo.ProductRepository = (*ProductRepository)(nil)
	_ sellers_repo.SellerRepository   = (*SellerRepository)(nil)
	_ address_repo.AddressRepository  = (*AddressRepository)(nil)
)

type Store struct {
	mu        sync.RWMutex
	orders    map[string]domain.Order
	payments  map[string]domain.Payment
	products  map[string]domain.Product
	sellers   map[string]domain.Seller
	addresses map[string]domain.Address
}

func NewStore() *Store {
	return &Store{
		orders:    make(map[string]domain.Order),
		payments:  make(map[string]domain.Payment),
		products:  make(map[string]domain.Product),
		sellers:   make(map[string]domain.Seller),
		addresses: make(map[string]domain.Address),
	}
}

func (s *Store) Orders() *OrderRepository { return &OrderRepository{s: s} }
func (s *Store) Payments() *PaymentRepository { return &PaymentRepository{s: s} }
func (s *Store) Products() *ProductRepository { return &ProductRepository{s: s} }
func (s *Store) Sellers() *SellerRepository { return &SellerRepository{s: s} }
func (s *Store) Addresses() *AddressRepository { return &AddressRepository{s: s} }

type Stats struct {
	Orders    int
	Payments  int
	Addresses int
}

func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Stats{Orders: len(s.orders), Payments: len(s.payments), Addresses: len(s.addresses)}
}

// SeedProduct stands in for the catalog collaborator on local runs.
func (s *Store) SeedProduct(p domain.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = time.Now().UTC()
	}
	s.products[p.ProductRef] = p
}

func (s *Store) SeedSeller(sl domain.Seller) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sl.UpdatedAt.IsZero() {
		sl.UpdatedAt = time.Now().UTC()
	}
	s.sellers[sl.SellerRef] = sl
}

type OrderRepository struct{ s *Store }

func (r *OrderRepository) Create(_ context.Context, order *domain.Order) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.orders[order.ID]; ok {
		return fmt.Errorf("order %s: %w", order.ID, domain.ErrAlreadyExists)
	}
	o := *order
	o.Items = append([]domain.LineItem(nil), order.Items...)
	r.s.orders[o.ID] = o
	return nil
}

func (r *OrderRepository) GetByID(_ context.Context, id string) (*domain.Order, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	o, ok := r.s.orders[id]
	if !ok {
		return nil, fmt.Errorf("order %s: %w", id, domain.ErrNotFound)
	}
	o.Items = append([]domain.LineItem(nil), o.Items...)
	return &o, nil
}

func (r *OrderRepository) Confirm(_ context.Context, id string, paymentStatus domain.PaymentStatus) (bool, error) {
	return r.transition(id, domain.OrderStatusConfirmed, paymentStatus)
}

func (r *OrderRepository) MarkPaymentFailed(_ context.Context, id string) (bool, error) {
	return r.transition(id, domain.OrderStatusCancelled, domain.PaymentStatusFailed)
}

func (r *OrderRepository) transition(id string, status domain.OrderStatus, paymentStatus domain.PaymentStatus) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o, ok := r.s.orders[id]
	if !ok || o.Status != domain.OrderStatusPending {
		return false, nil
	}
	o.Status = status
	o.PaymentStatus = paymentStatus
	o.UpdatedAt = time.Now().UTC()
	r.s.orders[id] = o
	return true, nil
}

type PaymentRepository struct{ s *Store }

func (r *PaymentRepository) Create(_ context.Context, payment *domain.Payment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.payments[payment.ID]; ok {
		return fmt.Errorf("payment %s: %w", payment.ID, domain.ErrAlreadyExists)
	}
	for _, p := range r.s.payments {
		if p.GatewayOrderRef == payment.GatewayOrderRef || p.OrderID == payment.OrderID {
			return fmt.Errorf("payment for order %s: %w", payment.OrderID, domain.ErrAlreadyExists)
		}
	}
	r.s.payments[payment.ID] = *payment
	return nil
}

func (r *PaymentRepository) GetByID(_ context.Context, id string) (*domain.Payment, error) {
	return r.find(func(p domain.Payment) bool { return p.ID == id }, "id", id)
}

func (r *PaymentRepository) GetByOrderID(_ context.Context, orderID string) (*domain.Payment, error) {
	return r.find(func(p domain.Payment) bool { return p.OrderID == orderID }, "order_id", orderID)
}

func (r *PaymentRepository) GetByGatewayOrderRef(_ context.Context, ref string) (*domain.Payment, error) {
	return r.find(func(p domain.Payment) bool { return p.GatewayOrderRef == ref }, "gateway_order_ref", ref)
}

func (r *PaymentRepository) find(match func(domain.Payment) bool, key, value string) (*domain.Payment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, p := range r.s.payments {
		if match(p) {
			return &p, nil
		}
	}
	return nil, fmt.Errorf("payment with %s %s: %w", key, value, domain.ErrNotFound)
}

func (r *PaymentRepository) ApplyConfirmation(_ context.Context, id string, c domain.PaymentConfirmation) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.payments[id]
	if !ok || p.ConfirmedAt != nil || p.Status != domain.PaymentStatusPending {
		return false, nil
	}
	confirmedAt := c.ConfirmedAt
	p.Status = c.Status
	p.Method = c.Method
	p.GatewayPaymentRef = c.GatewayPaymentRef
	p.ConfirmedAt = &confirmedAt
	p.UpdatedAt = confirmedAt
	r.s.payments[id] = p
	return true, nil
}

type ProductRepository struct{ s *Store }

func (r *ProductRepository) GetByRef(_ context.Context, ref string) (*domain.Product, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	p, ok := r.s.products[ref]
	if !ok {
		return nil, fmt.Errorf("product %s: %w", ref, domain.ErrProductNotFound)
	}
	return &p, nil
}

func (r *ProductRepository) DecrementStock(_ context.Context, ref string, quantity int64) (*domain.Product, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("%w: decrement quantity must be positive, got %d", domain.ErrValidation, quantity)
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.products[ref]
	if !ok {
		return nil, fmt.Errorf("product %s: %w", ref, domain.ErrProductNotFound)
	}
	if p.Stock < quantity {
		return nil, fmt.Errorf("product %s has %d in stock, cannot remove %d: %w", ref, p.Stock, quantity, domain.ErrInsufficientStock)
	}
	p.Stock -= quantity
	p.UpdatedAt = time.Now().UTC()
	r.s.products[ref] = p
	return &p, nil
}

type SellerRepository struct{ s *Store }

func (r *SellerRepository) GetByRef(_ context.Context, ref string) (*domain.Seller, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	sl, ok := r.s.sellers[ref]
	if !ok {
		return nil, fmt.Errorf("seller %s: %w", ref, domain.ErrNotFound)
	}
	return &sl, nil
}

func (r *SellerRepository) CreditEarnings(_ context.Context, ref string, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return fmt.Errorf("%w: earnings credit cannot be negative", domain.ErrValidation)
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sl, ok := r.s.sellers[ref]
	if !ok {
		return fmt.Errorf("seller %s: %w", ref, domain.ErrNotFound)
	}
	sl.TotalEarnings = sl.TotalEarnings.Add(amount)
	sl.UpdatedAt = time.Now().UTC()
	r.s.sellers[ref] = sl
	return nil
}

type AddressRepository struct{ s *Store }

func (r *AddressRepository) Create(_ context.Context, a *domain.Address) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.addresses[a.ID]; ok {
		return fmt.Errorf("address %s: %w", a.ID, domain.ErrAlreadyExists)
	}
	r.s.addresses[a.ID] = *a
	return nil
}

func (r *AddressRepository) GetByID(_ context.Context, id string) (*domain.Address, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	a, ok := r.s.addresses[id]
	if !ok {
		return nil, fmt.Errorf("address %s: %w", id, domain.ErrNotFound)
	}
	return &a, nil
}
