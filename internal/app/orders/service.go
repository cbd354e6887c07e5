package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"storefront/internal/domain"
	"storefront/internal/gateway"
	"storefront/internal/repository/address_repo"
	"storefront/internal/repository/order_repo"
	"storefront/internal/repository/payments_repo"
	"storefront/internal/util"
)

var hundred = decimal.NewFromInt(100)

// Limits mirror the orders table columns.
const (
	maxReceiptLen    = 64
	maxCustomerIDLen = 128
)

// MaxAmount is the largest total the orders table can hold.
var MaxAmount = decimal.RequireFromString("999999999999.99")

type OrderService interface {
	CreateOrder(ctx context.Context, req *CreateOrderRequest) (*CreateOrderResult, error)
	GetOrder(ctx context.Context, orderID string) (*OrderResponse, error)
}

type orderService struct {
	orderRepo    order_repo.OrderRepository
	paymentRepo  payments_repo.PaymentRepository
	addressRepo  address_repo.AddressRepository
	gateway      gateway.Client
	homeCurrency string
	logger       *zap.Logger
}

func NewOrderService(
	orderRepo order_repo.OrderRepository,
	paymentRepo payments_repo.PaymentRepository,
	addressRepo address_repo.AddressRepository,
	gw gateway.Client,
	homeCurrency string,
	logger *zap.Logger,
) OrderService {
	return &orderService{
		orderRepo:    orderRepo,
		paymentRepo:  paymentRepo,
		addressRepo:  addressRepo,
		gateway:      gw,
		homeCurrency: homeCurrency,
		logger:       logger,
	}
}

// ToMinorUnits converts a major-unit amount to the gateway's integer minor units.
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(hundred).Round(0).IntPart()
}

func FromMinorUnits(minor int64) decimal.Decimal {
	return decimal.New(minor, -2)
}

// CreateOrder opens the gateway intent first and only then writes local
// records. Once the intent exists, local write failures are logged and the
// call still succeeds so the client never retries into a second charge.
func (s *orderService) CreateOrder(ctx context.Context, req *CreateOrderRequest) (*CreateOrderResult, error) {
	if err := s.validate(req); err != nil {
		s.logger.Warn("Rejected order request", zap.String("customer_id", req.CustomerID), zap.Error(err))
		return nil, err
	}

	currency := strings.ToUpper(req.Currency)
	if currency == "" {
		currency = s.homeCurrency
	}
	orderID := util.NewID("order")
	paymentID := util.NewID("pay")
	receipt := req.Receipt
	if receipt == "" {
		receipt = orderID
	}

	itemsNote, err := EncodeItemsNote(req.Items)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrValidation, err)
	}

	intent, err := s.gateway.CreateIntent(ctx, gateway.IntentRequest{
		AmountMinor: ToMinorUnits(req.Amount),
		Currency:    currency,
		Receipt:     receipt,
		Notes: map[string]string{
			gateway.NoteOrderID:    orderID,
			gateway.NotePaymentID:  paymentID,
			gateway.NoteCustomerID: req.CustomerID,
			gateway.NoteItems:      itemsNote,
		},
	})
	if err != nil {
		if errors.Is(err, domain.ErrGatewayTimeout) {
			s.logger.Warn("Payment gateway timed out, outcome unknown", zap.String("order_id", orderID), zap.String("receipt", receipt), zap.Error(err))
		} else {
			s.logger.Error("Failed to create payment intent", zap.String("order_id", orderID), zap.Error(err))
		}
		return nil, err
	}

	// A reused receipt returns the intent opened by an earlier call. Its notes
	// carry the ids that call chose, and the local records must match them.
	replayed := false
	if noted := intent.Notes[gateway.NoteOrderID]; noted != "" && noted != orderID {
		replayed = true
		orderID = noted
		if notedPayment := intent.Notes[gateway.NotePaymentID]; notedPayment != "" {
			paymentID = notedPayment
		}
		s.logger.Info("Receipt matched an existing payment intent, reusing its records",
			zap.String("order_id", orderID),
			zap.String("payment_id", paymentID),
			zap.String("gateway_order_ref", intent.ID),
			zap.String("receipt", receipt))
		if intent.AmountMinor != ToMinorUnits(req.Amount) {
			s.logger.Warn("Replayed receipt carries a different amount, keeping the original intent",
				zap.String("order_id", orderID),
				zap.Int64("intent_amount_minor", intent.AmountMinor),
				zap.Int64("requested_amount_minor", ToMinorUnits(req.Amount)))
		}
	}
	amount := FromMinorUnits(intent.AmountMinor)

	// The intent exists remotely; finish the local writes even if the caller goes away.
	s.persist(context.WithoutCancel(ctx), req, orderID, paymentID, intent.ID, amount, currency, receipt, replayed)

	s.logger.Info("Order created",
		zap.String("order_id", orderID),
		zap.String("payment_id", paymentID),
		zap.String("gateway_order_ref", intent.ID),
		zap.String("customer_id", req.CustomerID))

	return &CreateOrderResult{
		OrderID:          orderID,
		PaymentID:        paymentID,
		GatewayOrderID:   intent.ID,
		GatewayPublicKey: s.gateway.PublicKey(),
		Amount:           amount,
		Currency:         currency,
	}, nil
}

func (s *orderService) validate(req *CreateOrderRequest) error {
	if req == nil {
		return fmt.Errorf("%w: request is required", domain.ErrValidation)
	}
	if strings.TrimSpace(req.CustomerID) == "" {
		return fmt.Errorf("%w: customer id is required", domain.ErrValidation)
	}
	if len(req.CustomerID) > maxCustomerIDLen {
		return fmt.Errorf("%w: customer id exceeds %d characters", domain.ErrValidation, maxCustomerIDLen)
	}
	if len(req.Receipt) > maxReceiptLen {
		return fmt.Errorf("%w: receipt exceeds %d characters", domain.ErrValidation, maxReceiptLen)
	}
	if !req.Amount.IsPositive() {
		return fmt.Errorf("%w: amount must be positive", domain.ErrValidation)
	}
	if req.Amount.GreaterThan(MaxAmount) {
		return fmt.Errorf("%w: amount %s exceeds the maximum of %s", domain.ErrValidation, req.Amount, MaxAmount)
	}
	if ToMinorUnits(req.Amount) <= 0 {
		return fmt.Errorf("%w: amount %s is below the smallest currency unit", domain.ErrValidation, req.Amount)
	}
	if req.Currency != "" && len(req.Currency) != 3 {
		return fmt.Errorf("%w: currency must be a 3-letter code", domain.ErrValidation)
	}
	for _, li := range req.Items {
		if err := li.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func (s *orderService) persist(ctx context.Context, req *CreateOrderRequest, orderID, paymentID, gatewayOrderRef string, amount decimal.Decimal, currency, receipt string, replayed bool) {
	log := s.logger.With(zap.String("order_id", orderID), zap.String("gateway_order_ref", gatewayOrderRef))

	writeOrder := true
	if replayed {
		if _, err := s.orderRepo.GetByID(ctx, orderID); err == nil {
			writeOrder = false
		}
	}

	var shippingAddressID string
	if writeOrder && req.Address != nil && !req.Address.IsEmpty() {
		addr := *req.Address
		addr.ID = util.NewID("addr")
		addr.CustomerID = req.CustomerID
		addr.CreatedAt = time.Now().UTC()
		if err := s.addressRepo.Create(ctx, &addr); err != nil {
			log.Error("Failed to save shipping address, continuing without it", zap.Error(err))
		} else {
			shippingAddressID = addr.ID
		}
	}

	if writeOrder {
		order, err := domain.NewOrder(orderID, req.CustomerID, amount, currency, receipt, req.Items)
		if err != nil {
			log.Error("Failed to build order record", zap.Error(err))
		} else {
			order.ShippingAddressID = shippingAddressID
			if err := s.orderRepo.Create(ctx, order); err != nil && !errors.Is(err, domain.ErrAlreadyExists) {
				log.Error("Failed to save order after payment intent was created", zap.Error(err))
			}
		}
	}

	payment := domain.NewPayment(paymentID, orderID, gatewayOrderRef, amount, currency)
	if err := s.paymentRepo.Create(ctx, payment); err != nil && !errors.Is(err, domain.ErrAlreadyExists) {
		log.Error("Failed to save payment after payment intent was created", zap.String("payment_id", paymentID), zap.Error(err))
	}
}

func (s *orderService) GetOrder(ctx context.Context, orderID string) (*OrderResponse, error) {
	if orderID == "" {
		return nil, fmt.Errorf("%w: order id is required", domain.ErrValidation)
	}
	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			s.logger.Error("Failed to get order from repository", zap.String("order_id", orderID), zap.Error(err))
		}
		return nil, err
	}
	res := mapOrderToResponse(order)

	payment, err := s.paymentRepo.GetByOrderID(ctx, orderID)
	switch {
	case err == nil:
		res.Payment = mapPaymentToResponse(payment)
	case !errors.Is(err, domain.ErrNotFound):
		s.logger.Warn("Failed to load payment for order", zap.String("order_id", orderID), zap.Error(err))
	}

	if order.ShippingAddressID != "" {
		addr, err := s.addressRepo.GetByID(ctx, order.ShippingAddressID)
		if err != nil {
			s.logger.Warn("Failed to load shipping address for order", zap.String("order_id", orderID), zap.Error(err))
		} else {
			res.ShippingAddress = addr
		}
	}
	return res, nil
}

func mapOrderToResponse(order *domain.Order) *OrderResponse {
	items := order.Items
	if items == nil {
		items = []domain.LineItem{}
	}
	return &OrderResponse{
		ID:            order.ID,
		CustomerID:    order.CustomerID,
		Status:        string(order.Status),
		PaymentStatus: string(order.PaymentStatus),
		TotalAmount:   order.TotalAmount,
		Currency:      order.Currency,
		Receipt:       order.Receipt,
		Items:         items,
		CreatedAt:     order.CreatedAt,
		UpdatedAt:     order.UpdatedAt,
	}
}

func mapPaymentToResponse(p *domain.Payment) *PaymentResponse {
	return &PaymentResponse{
		ID:                p.ID,
		GatewayOrderRef:   p.GatewayOrderRef,
		GatewayPaymentRef: p.GatewayPaymentRef,
		Status:            string(p.Status),
		Method:            p.Method,
		ConfirmedAt:       p.ConfirmedAt,
	}
}
