package storefront

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"
	"go.uber.org/zap"

	"storefront/internal/app/orders"
	"storefront/internal/app/reconciliation"
)

func RegisterRoutes(r chi.Router, o orders.OrderService, rs reconciliation.Service, l *zap.Logger) {
	handler := NewHandler(o, rs, l.With(zap.String("component", "StorefrontHTTPHandler")))

	r.Get("/health", handler.Health)
	r.Route("/orders", func(r chi.Router) {
		r.Post("/", handler.CreateOrder)
		r.Get("/{orderID}", handler.GetOrder)
	})
	r.Post("/payments/confirm", handler.ConfirmPayment)
}

func NewRouter(o orders.OrderService, rs reconciliation.Service, allowedOrigins []string, l *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(render.SetContentType(render.ContentTypeJSON))

	RegisterRoutes(r, o, rs, l)
	return r
}
