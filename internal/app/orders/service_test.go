package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"storefront/internal/domain"
	"storefront/internal/gateway"
	"storefront/internal/repository/memory"
)

type failingGateway struct {
	err   error
	calls int
}

func (g *failingGateway) CreateIntent(context.Context, gateway.IntentRequest) (*gateway.Intent, error) {
	g.calls++
	return nil, g.err
}

func (g *failingGateway) ListIntents(context.Context, time.Time) ([]gateway.Intent, error) {
	return nil, g.err
}

func (g *failingGateway) PublicKey() string { return "rzp_test" }

type brokenOrderRepo struct {
	*memory.OrderRepository
}

func (brokenOrderRepo) Create(context.Context, *domain.Order) error {
	return fmt.Errorf("%w: connection reset", domain.ErrStorage)
}

func newService(store *memory.Store, gw gateway.Client) OrderService {
	return NewOrderService(store.Orders(), store.Payments(), store.Addresses(), gw, "INR", zap.NewNop())
}

func validRequest() *CreateOrderRequest {
	return &CreateOrderRequest{
		Amount:     decimal.NewFromInt(500),
		CustomerID: "cust_1",
		Items: []domain.LineItem{
			{ProductRef: "p1", Name: "Ball", Quantity: 2, UnitPrice: decimal.NewFromInt(250)},
		},
	}
}

func TestCreateOrder_CreatesLinkedPendingRecords(t *testing.T) {
	store := memory.NewStore()
	gw := gateway.NewMockClient("rzp_test_key", zap.NewNop())
	svc := newService(store, gw)
	ctx := context.Background()

	res, err := svc.CreateOrder(ctx, validRequest())
	require.NoError(t, err)
	assert.NotEmpty(t, res.OrderID)
	assert.NotEmpty(t, res.PaymentID)
	assert.Equal(t, "rzp_test_key", res.GatewayPublicKey)
	assert.Equal(t, "INR", res.Currency)

	order, err := store.Orders().GetByID(ctx, res.OrderID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPending, order.Status)
	assert.Equal(t, domain.PaymentStatusPending, order.PaymentStatus)
	assert.True(t, decimal.NewFromInt(500).Equal(order.TotalAmount))
	assert.Equal(t, res.OrderID, order.Receipt)
	require.Len(t, order.Items, 1)
	assert.Equal(t, "p1", order.Items[0].ProductRef)

	payment, err := store.Payments().GetByOrderID(ctx, res.OrderID)
	require.NoError(t, err)
	assert.Equal(t, res.PaymentID, payment.ID)
	assert.Equal(t, res.GatewayOrderID, payment.GatewayOrderRef)
	assert.Equal(t, domain.PaymentStatusPending, payment.Status)
	assert.True(t, decimal.NewFromInt(500).Equal(payment.Amount))

	intents, err := gw.ListIntents(ctx, time.Time{})
	require.NoError(t, err)
	require.Len(t, intents, 1)
	assert.Equal(t, int64(50000), intents[0].AmountMinor)
	assert.Equal(t, res.OrderID, intents[0].Notes[gateway.NoteOrderID])
	assert.Equal(t, res.PaymentID, intents[0].Notes[gateway.NotePaymentID])
	assert.Equal(t, "cust_1", intents[0].Notes[gateway.NoteCustomerID])
	assert.JSONEq(t, `[{"id":"p1","name":"Ball","quantity":2,"price":"250"}]`, intents[0].Notes[gateway.NoteItems])
}

func TestCreateOrder_PersistsShippingAddress(t *testing.T) {
	store := memory.NewStore()
	svc := newService(store, gateway.NewMockClient("key", zap.NewNop()))
	ctx := context.Background()

	req := validRequest()
	req.Currency = "usd"
	req.Address = &domain.Address{Name: "Asha", Line1: "12 MG Road", City: "Pune", PostalCode: "411001", Country: "IN"}

	res, err := svc.CreateOrder(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "USD", res.Currency)

	view, err := svc.GetOrder(ctx, res.OrderID)
	require.NoError(t, err)
	require.NotNil(t, view.ShippingAddress)
	assert.Equal(t, "cust_1", view.ShippingAddress.CustomerID)
	assert.Equal(t, "Pune", view.ShippingAddress.City)
	require.NotNil(t, view.Payment)
	assert.Equal(t, res.PaymentID, view.Payment.ID)
}

func TestCreateOrder_ValidationRejectsBeforeGateway(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *CreateOrderRequest)
	}{
		{name: "missing customer", mutate: func(r *CreateOrderRequest) { r.CustomerID = "" }},
		{name: "zero amount", mutate: func(r *CreateOrderRequest) { r.Amount = decimal.Zero }},
		{name: "negative amount", mutate: func(r *CreateOrderRequest) { r.Amount = decimal.NewFromInt(-5) }},
		{name: "sub-unit amount", mutate: func(r *CreateOrderRequest) { r.Amount = decimal.RequireFromString("0.001") }},
		{name: "amount above column limit", mutate: func(r *CreateOrderRequest) { r.Amount = decimal.RequireFromString("1000000000000") }},
		{name: "amount beyond int64 minor units", mutate: func(r *CreateOrderRequest) { r.Amount = decimal.RequireFromString("100000000000000000") }},
		{name: "receipt too long", mutate: func(r *CreateOrderRequest) { r.Receipt = strings.Repeat("r", 65) }},
		{name: "customer id too long", mutate: func(r *CreateOrderRequest) { r.CustomerID = strings.Repeat("c", 129) }},
		{name: "bad currency", mutate: func(r *CreateOrderRequest) { r.Currency = "rupees" }},
		{name: "bad item quantity", mutate: func(r *CreateOrderRequest) { r.Items[0].Quantity = 0 }},
		{name: "item without product", mutate: func(r *CreateOrderRequest) { r.Items[0].ProductRef = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := &failingGateway{err: errors.New("should not be called")}
			svc := newService(memory.NewStore(), gw)
			req := validRequest()
			tt.mutate(req)

			_, err := svc.CreateOrder(context.Background(), req)
			assert.ErrorIs(t, err, domain.ErrValidation)
			assert.Zero(t, gw.calls)
		})
	}
}

func TestCreateOrder_GatewayFailureWritesNothing(t *testing.T) {
	for name, gwErr := range map[string]error{
		"gateway error": fmt.Errorf("%w: 500", domain.ErrGateway),
		"timeout":       fmt.Errorf("%w: deadline", domain.ErrGatewayTimeout),
	} {
		t.Run(name, func(t *testing.T) {
			store := memory.NewStore()
			svc := newService(store, &failingGateway{err: gwErr})

			res, err := svc.CreateOrder(context.Background(), validRequest())
			require.Error(t, err)
			assert.Nil(t, res)
			assert.ErrorIs(t, err, errors.Unwrap(gwErr))
			assert.Equal(t, memory.Stats{}, store.Stats())
		})
	}
}

func TestCreateOrder_LocalWriteFailureIsSwallowed(t *testing.T) {
	store := memory.NewStore()
	svc := NewOrderService(brokenOrderRepo{store.Orders()}, store.Payments(), store.Addresses(),
		gateway.NewMockClient("key", zap.NewNop()), "INR", zap.NewNop())

	res, err := svc.CreateOrder(context.Background(), validRequest())
	require.NoError(t, err)
	assert.NotEmpty(t, res.GatewayOrderID)
	assert.Equal(t, memory.Stats{Orders: 0, Payments: 1}, store.Stats())

	payment, err := store.Payments().GetByGatewayOrderRef(context.Background(), res.GatewayOrderID)
	require.NoError(t, err)
	assert.Equal(t, res.OrderID, payment.OrderID)
}

func TestCreateOrder_ReceiptIsForwarded(t *testing.T) {
	store := memory.NewStore()
	gw := gateway.NewMockClient("key", zap.NewNop())
	svc := newService(store, gw)

	req := validRequest()
	req.Receipt = "rcpt_42"
	res, err := svc.CreateOrder(context.Background(), req)
	require.NoError(t, err)

	order, err := store.Orders().GetByID(context.Background(), res.OrderID)
	require.NoError(t, err)
	assert.Equal(t, "rcpt_42", order.Receipt)

	intents, err := gw.ListIntents(context.Background(), time.Time{})
	require.NoError(t, err)
	require.Len(t, intents, 1)
	assert.Equal(t, "rcpt_42", intents[0].Receipt)
}

func TestCreateOrder_RepeatedReceiptReusesRecords(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	svc := newService(store, gateway.NewMockClient("key", zap.NewNop()))

	req := validRequest()
	req.Receipt = "cart_42"
	req.Address = &domain.Address{Name: "Asha", Line1: "12 MG Road", City: "Pune"}
	first, err := svc.CreateOrder(ctx, req)
	require.NoError(t, err)
	second, err := svc.CreateOrder(ctx, req)
	require.NoError(t, err)

	assert.Equal(t, first.OrderID, second.OrderID)
	assert.Equal(t, first.PaymentID, second.PaymentID)
	assert.Equal(t, first.GatewayOrderID, second.GatewayOrderID)
	assert.Equal(t, memory.Stats{Orders: 1, Payments: 1, Addresses: 1}, store.Stats())

	payment, err := store.Payments().GetByOrderID(ctx, second.OrderID)
	require.NoError(t, err)
	assert.Equal(t, second.PaymentID, payment.ID)
}

func TestCreateOrder_RepeatedReceiptRestoresLostOrder(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	gw := gateway.NewMockClient("key", zap.NewNop())

	req := validRequest()
	req.Receipt = "cart_7"
	broken := NewOrderService(brokenOrderRepo{store.Orders()}, store.Payments(), store.Addresses(), gw, "INR", zap.NewNop())
	first, err := broken.CreateOrder(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, memory.Stats{Payments: 1}, store.Stats())

	second, err := newService(store, gw).CreateOrder(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, first.OrderID, second.OrderID)
	assert.Equal(t, memory.Stats{Orders: 1, Payments: 1}, store.Stats())

	order, err := store.Orders().GetByID(ctx, first.OrderID)
	require.NoError(t, err)
	assert.Equal(t, "cart_7", order.Receipt)
}

func TestGetOrder_NotFound(t *testing.T) {
	svc := newService(memory.NewStore(), gateway.NewMockClient("key", zap.NewNop()))

	_, err := svc.GetOrder(context.Background(), "order_missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = svc.GetOrder(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestMinorUnits(t *testing.T) {
	assert.Equal(t, int64(50000), ToMinorUnits(decimal.NewFromInt(500)))
	assert.Equal(t, int64(1999), ToMinorUnits(decimal.RequireFromString("19.99")))
	assert.Equal(t, int64(1000), ToMinorUnits(decimal.RequireFromString("9.995")))
	assert.True(t, decimal.RequireFromString("19.99").Equal(FromMinorUnits(1999)))
}

func TestDecodeItemsNote(t *testing.T) {
	want := []domain.LineItem{{ProductRef: "p1", Name: "Ball", Quantity: 2, UnitPrice: decimal.NewFromInt(250)}}

	fromArray, err := DecodeItemsNote([]byte(`[{"id":"p1","name":"Ball","quantity":2,"price":250}]`))
	require.NoError(t, err)
	fromString, err := DecodeItemsNote([]byte(`"[{\"id\":\"p1\",\"name\":\"Ball\",\"quantity\":2,\"price\":250}]"`))
	require.NoError(t, err)

	for _, got := range [][]domain.LineItem{fromArray, fromString} {
		require.Len(t, got, 1)
		assert.Equal(t, want[0].ProductRef, got[0].ProductRef)
		assert.Equal(t, want[0].Quantity, got[0].Quantity)
		assert.True(t, want[0].UnitPrice.Equal(got[0].UnitPrice))
	}

	empty, err := DecodeItemsNote(nil)
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = DecodeItemsNote([]byte(`{"id":"p1"}`))
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = DecodeItemsNote([]byte(`[{"id":"p1","quantity":-1,"price":1}]`))
	assert.ErrorIs(t, err, domain.ErrValidation)
}
