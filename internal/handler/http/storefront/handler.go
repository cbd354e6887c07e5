package storefront

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"go.uber.org/zap"

	"storefront/internal/app/orders"
	"storefront/internal/app/reconciliation"
	"storefront/internal/domain"
)

type Handler struct {
	orders    orders.OrderService
	reconcile reconciliation.Service
	logger    *zap.Logger
}

func NewHandler(o orders.OrderService, rs reconciliation.Service, l *zap.Logger) *Handler {
	return &Handler{orders: o, reconcile: rs, logger: l}
}

type createOrderResponse struct {
	OrderID          string `json:"orderId"`
	PaymentID        string `json:"paymentId"`
	GatewayOrderID   string `json:"gatewayOrderId"`
	GatewayPublicKey string `json:"gatewayPublicKey"`
}

type confirmPaymentResponse struct {
	OK bool `json:"ok"`
	*reconciliation.ReconcileResult
}

func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := decodeStrict(r.Body, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	svcReq, err := req.toServiceRequest()
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	res, err := h.orders.CreateOrder(r.Context(), svcReq)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, createOrderResponse{
		OrderID:          res.OrderID,
		PaymentID:        res.PaymentID,
		GatewayOrderID:   res.GatewayOrderID,
		GatewayPublicKey: res.GatewayPublicKey,
	})
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")
	res, err := h.orders.GetOrder(r.Context(), orderID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	render.JSON(w, r, res)
}

func (h *Handler) ConfirmPayment(w http.ResponseWriter, r *http.Request) {
	var req confirmPaymentRequest
	if err := decodeStrict(r.Body, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	res, err := h.reconcile.Confirm(r.Context(), reconciliation.Confirmation{
		GatewayOrderRef:   req.GatewayOrderRef,
		OrderID:           req.OrderID,
		GatewayPaymentRef: req.GatewayPaymentRef,
		Method:            req.PaymentMethod,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	render.JSON(w, r, confirmPaymentResponse{OK: true, ReconcileResult: res})
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]string{"status": "ok"})
}

type errorResponse struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	msg := err.Error()
	if code >= http.StatusInternalServerError {
		h.logger.Error("Request failed", zap.String("path", r.URL.Path), zap.Int("status", code), zap.Error(err))
		if code == http.StatusInternalServerError {
			msg = "Internal server error"
		}
	} else {
		h.logger.Warn("Request rejected", zap.String("path", r.URL.Path), zap.Int("status", code), zap.Error(err))
	}
	render.Status(r, code)
	render.JSON(w, r, errorResponse{Error: msg, Code: code})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrGatewayTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, domain.ErrGateway):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
