package settlement

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"storefront/internal/domain"
	"storefront/internal/repository/memory"
)

func newFixture(t *testing.T) (*Engine, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	store.SeedSeller(domain.Seller{SellerRef: "s1", TotalEarnings: decimal.Zero})
	store.SeedSeller(domain.Seller{SellerRef: "s2", TotalEarnings: decimal.NewFromInt(10)})
	store.SeedProduct(domain.Product{ProductRef: "p1", SellerRef: "s1", Name: "Ball", Stock: 10, Price: decimal.NewFromInt(250)})
	store.SeedProduct(domain.Product{ProductRef: "p2", SellerRef: "s2", Name: "Paddle", Stock: 1, Price: decimal.NewFromInt(900)})
	return NewEngine(store.Products(), store.Sellers(), zap.NewNop()), store
}

func order(items ...domain.LineItem) *domain.Order {
	return &domain.Order{ID: "ord_1", CustomerID: "cust_1", Status: domain.OrderStatusConfirmed, Items: items}
}

func line(ref string, qty int64, price int64) domain.LineItem {
	return domain.LineItem{ProductRef: ref, Name: ref, Quantity: qty, UnitPrice: decimal.NewFromInt(price)}
}

func stock(t *testing.T, store *memory.Store, ref string) int64 {
	t.Helper()
	p, err := store.Products().GetByRef(context.Background(), ref)
	require.NoError(t, err)
	return p.Stock
}

func earnings(t *testing.T, store *memory.Store, ref string) decimal.Decimal {
	t.Helper()
	s, err := store.Sellers().GetByRef(context.Background(), ref)
	require.NoError(t, err)
	return s.TotalEarnings
}

func TestSettle_PaidDecrementsStockAndCreditsEarnings(t *testing.T) {
	engine, store := newFixture(t)

	outcomes := engine.Settle(context.Background(), order(line("p1", 2, 250), line("p2", 1, 900)), domain.PaymentStatusPaid)

	require.Len(t, outcomes, 2)
	assert.True(t, AllSettled(outcomes))
	assert.Equal(t, 1, outcomes[0].LineNo)
	assert.Equal(t, 2, outcomes[1].LineNo)
	assert.Equal(t, int64(8), stock(t, store, "p1"))
	assert.Equal(t, int64(0), stock(t, store, "p2"))
	assert.True(t, decimal.NewFromInt(500).Equal(earnings(t, store, "s1")))
	assert.True(t, decimal.NewFromInt(910).Equal(earnings(t, store, "s2")))
}

func TestSettle_PendingDecrementsStockWithoutEarnings(t *testing.T) {
	engine, store := newFixture(t)

	outcomes := engine.Settle(context.Background(), order(line("p1", 3, 250)), domain.PaymentStatusPending)

	require.Len(t, outcomes, 1)
	assert.Equal(t, LineSettled, outcomes[0].Status)
	assert.Equal(t, int64(7), stock(t, store, "p1"))
	assert.True(t, earnings(t, store, "s1").IsZero())
}

func TestSettle_MissingProductSkipsOnlyThatLine(t *testing.T) {
	engine, store := newFixture(t)

	outcomes := engine.Settle(context.Background(), order(line("ghost", 1, 100), line("p1", 1, 250)), domain.PaymentStatusPaid)

	require.Len(t, outcomes, 2)
	assert.Equal(t, LineProductNotFound, outcomes[0].Status)
	assert.Equal(t, "ghost", outcomes[0].ProductRef)
	assert.Equal(t, LineSettled, outcomes[1].Status)
	assert.Equal(t, int64(9), stock(t, store, "p1"))
	assert.True(t, decimal.NewFromInt(250).Equal(earnings(t, store, "s1")))
	assert.False(t, AllSettled(outcomes))
}

func TestSettle_InsufficientStockLeavesStockUnchanged(t *testing.T) {
	engine, store := newFixture(t)

	outcomes := engine.Settle(context.Background(), order(line("p2", 5, 900), line("p1", 1, 250)), domain.PaymentStatusPaid)

	require.Len(t, outcomes, 2)
	assert.Equal(t, LineStockInconsistent, outcomes[0].Status)
	assert.NotEmpty(t, outcomes[0].Error)
	assert.Equal(t, int64(1), stock(t, store, "p2"))
	assert.Equal(t, LineSettled, outcomes[1].Status)
	assert.Equal(t, int64(9), stock(t, store, "p1"))
}

func TestSettle_EarningsFailureIsReportedPerLine(t *testing.T) {
	store := memory.NewStore()
	store.SeedProduct(domain.Product{ProductRef: "orphan", SellerRef: "missing", Name: "Net", Stock: 4, Price: decimal.NewFromInt(50)})
	engine := NewEngine(store.Products(), store.Sellers(), zap.NewNop())

	outcomes := engine.Settle(context.Background(), order(line("orphan", 1, 50)), domain.PaymentStatusPaid)

	require.Len(t, outcomes, 1)
	assert.Equal(t, LineEarningsFailed, outcomes[0].Status)
	assert.Equal(t, int64(3), stock(t, store, "orphan"))
}

func TestSettle_EmptyOrder(t *testing.T) {
	engine, _ := newFixture(t)

	outcomes := engine.Settle(context.Background(), order(), domain.PaymentStatusPaid)

	assert.Empty(t, outcomes)
	assert.True(t, AllSettled(outcomes))
}
