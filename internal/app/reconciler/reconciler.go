// Package reconciler rebuilds local order and payment records for gateway
// intents whose local writes were lost after intake succeeded remotely.
package reconciler

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"storefront/internal/app/orders"
	"storefront/internal/domain"
	"storefront/internal/gateway"
	"storefront/internal/repository/order_repo"
	"storefront/internal/repository/payments_repo"
	"storefront/internal/util"
)

type Report struct {
	Scanned   int
	Recovered int
	Skipped   int
	Failed    int
}

type Reconciler struct {
	gateway  gateway.Client
	orders   order_repo.OrderRepository
	payments payments_repo.PaymentRepository
	interval time.Duration
	lookback time.Duration
	timeout  time.Duration
	now      func() time.Time
	logger   *zap.Logger
}

func New(
	gw gateway.Client,
	orderRepo order_repo.OrderRepository,
	paymentRepo payments_repo.PaymentRepository,
	interval, lookback, timeout time.Duration,
	logger *zap.Logger,
) *Reconciler {
	return &Reconciler{
		gateway:  gw,
		orders:   orderRepo,
		payments: paymentRepo,
		interval: interval,
		lookback: lookback,
		timeout:  timeout,
		now:      time.Now,
		logger:   logger,
	}
}

// Start runs RunOnce every interval until ctx is cancelled.
func (r *Reconciler) Start(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Gateway reconciler stopped")
			return
		case <-ticker.C:
			runCtx, cancel := context.WithTimeout(ctx, r.timeout)
			if _, err := r.RunOnce(runCtx); err != nil {
				r.logger.Error("Gateway reconciliation pass failed", zap.Error(err))
			}
			cancel()
		}
	}
}

// RunOnce scans recent gateway intents and recreates any missing records.
// Creates are idempotent, so overlapping passes are harmless.
func (r *Reconciler) RunOnce(ctx context.Context) (Report, error) {
	var report Report
	intents, err := r.gateway.ListIntents(ctx, r.now().Add(-r.lookback))
	if err != nil {
		return report, err
	}

	for _, intent := range intents {
		report.Scanned++
		switch r.reconcileIntent(ctx, intent) {
		case outcomeRecovered:
			report.Recovered++
		case outcomeSkipped:
			report.Skipped++
		case outcomeFailed:
			report.Failed++
		}
	}

	if report.Recovered > 0 || report.Failed > 0 {
		r.logger.Info("Gateway reconciliation pass finished",
			zap.Int("scanned", report.Scanned),
			zap.Int("recovered", report.Recovered),
			zap.Int("skipped", report.Skipped),
			zap.Int("failed", report.Failed))
	}
	return report, nil
}

type outcome int

const (
	outcomePresent outcome = iota
	outcomeRecovered
	outcomeSkipped
	outcomeFailed
)

func (r *Reconciler) reconcileIntent(ctx context.Context, intent gateway.Intent) outcome {
	log := r.logger.With(zap.String("gateway_order_ref", intent.ID))

	payment, err := r.payments.GetByGatewayOrderRef(ctx, intent.ID)
	switch {
	case err == nil:
		return r.reconcileOrderOnly(ctx, intent, payment, log)
	case !errors.Is(err, domain.ErrNotFound):
		log.Error("Failed to look up payment for intent", zap.Error(err))
		return outcomeFailed
	}

	orderID := intent.Notes[gateway.NoteOrderID]
	if orderID == "" {
		log.Debug("Intent was not created by this storefront, skipping")
		return outcomeSkipped
	}
	log = log.With(zap.String("order_id", orderID))

	if res := r.recreateOrder(ctx, intent, orderID, log); res != outcomeRecovered {
		return res
	}

	paymentID := intent.Notes[gateway.NotePaymentID]
	if paymentID == "" {
		paymentID = util.NewID("pay")
	}
	amount := orders.FromMinorUnits(intent.AmountMinor)
	payment = domain.NewPayment(paymentID, orderID, intent.ID, amount, intent.Currency)
	if err := r.payments.Create(ctx, payment); err != nil && !errors.Is(err, domain.ErrAlreadyExists) {
		log.Error("Failed to recreate payment", zap.Error(err))
		return outcomeFailed
	}

	log.Info("Recovered local records for gateway intent", zap.String("payment_id", paymentID))
	return outcomeRecovered
}

// reconcileOrderOnly handles an intent whose payment survived but whose order
// write was lost. The payment's order id wins over the notes.
func (r *Reconciler) reconcileOrderOnly(ctx context.Context, intent gateway.Intent, payment *domain.Payment, log *zap.Logger) outcome {
	log = log.With(zap.String("order_id", payment.OrderID), zap.String("payment_id", payment.ID))

	_, err := r.orders.GetByID(ctx, payment.OrderID)
	switch {
	case err == nil:
		return outcomePresent
	case !errors.Is(err, domain.ErrNotFound):
		log.Error("Failed to look up order for intent", zap.Error(err))
		return outcomeFailed
	}

	res := r.recreateOrder(ctx, intent, payment.OrderID, log)
	if res == outcomeRecovered {
		log.Info("Recovered missing order for existing payment")
	}
	return res
}

func (r *Reconciler) recreateOrder(ctx context.Context, intent gateway.Intent, orderID string, log *zap.Logger) outcome {
	items, err := orders.DecodeItemsNote([]byte(intent.Notes[gateway.NoteItems]))
	if err != nil {
		log.Warn("Intent carries unreadable items, skipping", zap.Error(err))
		return outcomeSkipped
	}
	amount := orders.FromMinorUnits(intent.AmountMinor)

	order, err := domain.NewOrder(orderID, intent.Notes[gateway.NoteCustomerID], amount, intent.Currency, intent.Receipt, items)
	if err != nil {
		log.Warn("Intent notes cannot rebuild an order, skipping", zap.Error(err))
		return outcomeSkipped
	}
	if err := r.orders.Create(ctx, order); err != nil && !errors.Is(err, domain.ErrAlreadyExists) {
		log.Error("Failed to recreate order", zap.Error(err))
		return outcomeFailed
	}
	return outcomeRecovered
}
