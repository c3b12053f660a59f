package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/chineduo/solarhub/internal/domain"
	"github.com/chineduo/solarhub/internal/metrics"
	"github.com/chineduo/solarhub/internal/usecase"
)

// WebhookValidator authenticates gateway push traffic before any payload
// parsing happens.
type WebhookValidator interface {
	ValidateSignature(body []byte, signature string) error
}

type Server struct {
	Products      *usecase.ProductUC
	Orders        *usecase.OrderUC
	PreOrders     *usecase.PreOrderUC
	Promotions    *usecase.PromotionUC
	Reports       *usecase.ReportUC
	Notifications domain.NotificationRepo
	Webhook       WebhookValidator

	AdminToken string

	srv *http.Server
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(countRequests)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/products", s.listProducts)
		r.Get("/products/{slug}", s.getProduct)

		r.Get("/pre-orders", s.listPreOrderCatalog)
		r.Get("/pre-orders/{id}", s.getPreOrderCatalog)

		r.Group(func(r chi.Router) {
			r.Use(rateLimit(30))

			r.Post("/checkout", s.checkout)
			r.Post("/checkout/session", s.checkoutSession)
			r.Get("/payments/verify/{reference}", s.verifyOrderPayment)
			r.Get("/payments/session/verify/{reference}", s.verifyOrderSession)

			r.Post("/pre-orders/place", s.placePreOrder)
			r.Post("/pre-orders/session", s.preOrderSession)
			r.Post("/pre-orders/pay-remaining", s.payRemaining)
			r.Post("/customer-pre-orders/{number}/pay", s.payPreOrder)
			r.Get("/customer-pre-orders/payments/verify/{reference}", s.verifyPreOrderPayment)
			r.Get("/customer-pre-orders/session/verify/{reference}", s.verifyPreOrderSession)
		})

		r.Get("/customer-pre-orders/{number}", s.trackPreOrder)
		r.Get("/customer-pre-orders/{number}/amount-due", s.preOrderAmountDue)
		r.Get("/my-pre-orders", s.listMyPreOrders)

		r.Post("/promotions/validate", s.validatePromotion)

		r.Post("/webhooks/paystack", s.paystackWebhook)

		r.Route("/admin", func(r chi.Router) {
			r.Use(adminOnly(s.AdminToken))

			r.Post("/products", s.saveProduct)
			r.Put("/products/{id}/stock", s.setStock)
			r.Post("/products/{id}/stock/adjust", s.adjustStock)

			r.Get("/orders", s.adminListOrders)
			r.Get("/orders/{id}", s.adminGetOrder)
			r.Patch("/orders/{id}/status", s.adminUpdateOrderStatus)
			r.Post("/orders/{id}/cancel", s.adminCancelOrder)

			r.Post("/pre-orders", s.saveCatalogItem)
			r.Patch("/pre-orders/{number}/status", s.adminUpdatePreOrderStatus)
			r.Post("/pre-orders/{number}/payment-link", s.adminPaymentLink)

			r.Get("/promotions", s.adminListPromotions)
			r.Post("/promotions", s.adminSavePromotion)

			r.Get("/notifications", s.adminListNotifications)
			r.Get("/notifications/unread-count", s.adminUnreadCount)
			r.Post("/notifications/{id}/read", s.adminMarkRead)
			r.Post("/notifications/read-all", s.adminMarkAllRead)

			r.Get("/reports/dashboard", s.reportDashboard)
			r.Get("/reports/transactions", s.reportTransactions)
			r.Get("/reports/methods", s.reportMethods)
			r.Get("/reports/trend", s.reportTrend)
			r.Get("/reports/transactions/export", s.reportExport)
		})
	})

	return r
}

func (s *Server) Start(addr string) error {
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s.srv.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}
