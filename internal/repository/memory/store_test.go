package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/domain"
)

func TestPaymentRepository_ApplyConfirmationOnce(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	require.NoError(t, store.Payments().Create(ctx, domain.NewPayment("pay_1", "ord_1", "gw_1", decimal.NewFromInt(10), "INR")))

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := store.Payments().ApplyConfirmation(ctx, "pay_1", domain.PaymentConfirmation{
				Status:      domain.PaymentStatusPaid,
				ConfirmedAt: time.Now().UTC(),
			})
			assert.NoError(t, err)
			if ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())

	p, err := store.Payments().GetByGatewayOrderRef(ctx, "gw_1")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusPaid, p.Status)
	assert.True(t, p.IsConfirmed())
}

func TestPaymentRepository_UniqueKeys(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	require.NoError(t, store.Payments().Create(ctx, domain.NewPayment("pay_1", "ord_1", "gw_1", decimal.NewFromInt(10), "INR")))

	assert.ErrorIs(t, store.Payments().Create(ctx, domain.NewPayment("pay_1", "ord_2", "gw_2", decimal.NewFromInt(10), "INR")), domain.ErrAlreadyExists)
	assert.ErrorIs(t, store.Payments().Create(ctx, domain.NewPayment("pay_2", "ord_1", "gw_2", decimal.NewFromInt(10), "INR")), domain.ErrAlreadyExists)
	assert.ErrorIs(t, store.Payments().Create(ctx, domain.NewPayment("pay_2", "ord_2", "gw_1", decimal.NewFromInt(10), "INR")), domain.ErrAlreadyExists)

	_, err := store.Payments().GetByOrderID(ctx, "ord_9")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestOrderRepository_TransitionsOnlyFromPending(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	order, err := domain.NewOrder("ord_1", "cust_1", decimal.NewFromInt(10), "INR", "ord_1", nil)
	require.NoError(t, err)
	require.NoError(t, store.Orders().Create(ctx, order))
	assert.ErrorIs(t, store.Orders().Create(ctx, order), domain.ErrAlreadyExists)

	ok, err := store.Orders().Confirm(ctx, "ord_1", domain.PaymentStatusPaid)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.Orders().Confirm(ctx, "ord_1", domain.PaymentStatusPaid)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = store.Orders().MarkPaymentFailed(ctx, "ord_1")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = store.Orders().Confirm(ctx, "ord_missing", domain.PaymentStatusPaid)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestProductRepository_DecrementStockNeverNegative(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	store.SeedProduct(domain.Product{ProductRef: "p1", SellerRef: "s1", Stock: 5})

	var wg sync.WaitGroup
	var ok atomic.Int32
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.Products().DecrementStock(ctx, "p1", 1); err == nil {
				ok.Add(1)
			} else {
				assert.ErrorIs(t, err, domain.ErrInsufficientStock)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(5), ok.Load())
	p, err := store.Products().GetByRef(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), p.Stock)

	_, err = store.Products().DecrementStock(ctx, "ghost", 1)
	assert.ErrorIs(t, err, domain.ErrProductNotFound)
	_, err = store.Products().DecrementStock(ctx, "p1", 0)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestSellerRepository_CreditEarnings(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	store.SeedSeller(domain.Seller{SellerRef: "s1"})

	require.NoError(t, store.Sellers().CreditEarnings(ctx, "s1", decimal.RequireFromString("12.50")))
	require.NoError(t, store.Sellers().CreditEarnings(ctx, "s1", decimal.RequireFromString("7.50")))
	assert.ErrorIs(t, store.Sellers().CreditEarnings(ctx, "s1", decimal.NewFromInt(-1)), domain.ErrValidation)
	assert.ErrorIs(t, store.Sellers().CreditEarnings(ctx, "s9", decimal.NewFromInt(1)), domain.ErrNotFound)

	s, err := store.Sellers().GetByRef(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(20).Equal(s.TotalEarnings))
}

func TestAddressRepository(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	addr := &domain.Address{ID: "addr_1", CustomerID: "cust_1", City: "Pune"}

	require.NoError(t, store.Addresses().Create(ctx, addr))
	assert.ErrorIs(t, store.Addresses().Create(ctx, addr), domain.ErrAlreadyExists)

	got, err := store.Addresses().GetByID(ctx, "addr_1")
	require.NoError(t, err)
	assert.Equal(t, "Pune", got.City)
	assert.Equal(t, Stats{Addresses: 1}, store.Stats())
}
