package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kanakkart/storefront-backend/api/controllers"
	webhookcontrollers "github.com/kanakkart/storefront-backend/api/controllers/webhooks"
	"github.com/kanakkart/storefront-backend/api/middleware"
	checkoutsvc "github.com/kanakkart/storefront-backend/internal/checkout"
	"github.com/kanakkart/storefront-backend/internal/orders"
	"github.com/kanakkart/storefront-backend/internal/payments"
	"github.com/kanakkart/storefront-backend/internal/shipping"
	"github.com/kanakkart/storefront-backend/pkg/config"
	"github.com/kanakkart/storefront-backend/pkg/db"
	"github.com/kanakkart/storefront-backend/pkg/db/models"
	"github.com/kanakkart/storefront-backend/pkg/logger"
	"github.com/kanakkart/storefront-backend/pkg/redis"
)

// Deps carries everything the HTTP surface needs. cmd/api builds it once at
// startup.
type Deps struct {
	Config          *config.Config
	Logger          *logger.Logger
	DB              db.Pinger
	Redis           *redis.Client
	Users           checkoutsvc.Repository
	CheckoutService checkoutsvc.Service
	OrdersService   orders.Service
	OrdersRepo      orders.Repository
	PaymentsService payments.Service
	Dispatcher      *shipping.Dispatcher
	Notifier        statusNotifier
	Metrics         http.Handler
}

type statusNotifier interface {
	StatusChanged(order *models.Order)
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	// A nil *redis.Client stored in an interface is not == nil, so convert
	// explicitly; Idempotency and RateLimit degrade to passthroughs
	// without a store.
	var idemStore redis.IdempotencyStore
	var limiter redis.RateLimiter
	if deps.Redis != nil {
		idemStore = deps.Redis
		limiter = deps.Redis
	}
	checkoutLimit := middleware.NewRateLimitPolicy("checkout", cfg.RateLimit.Window, cfg.RateLimit.CheckoutLimit)
	webhookLimit := middleware.NewRateLimitPolicy("webhook", cfg.RateLimit.Window, cfg.RateLimit.WebhookLimit)

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	if deps.Metrics != nil {
		r.Handle("/metrics", deps.Metrics)
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.DB, deps.Redis))
	})

	paymentWebhook := webhookcontrollers.PaymentWebhook(deps.PaymentsService, logg)

	// Razorpay dashboards are commonly configured with the bare /webhook
	// path, so both spellings are accepted.
	r.With(middleware.RateLimit(webhookLimit, limiter, logg)).Post("/webhook", paymentWebhook)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/webhooks", func(r chi.Router) {
			r.Use(middleware.RateLimit(webhookLimit, limiter, logg))
			r.Post("/payment", paymentWebhook)
			r.Post("/shipment", webhookcontrollers.ShipmentWebhook(deps.OrdersService, logg))
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireUser(logg))
			r.Use(middleware.Idempotency(idemStore, logg))

			r.With(middleware.RateLimit(checkoutLimit, limiter, logg)).
				Post("/checkout", controllers.Checkout(deps.CheckoutService, logg))
			r.Get("/orders", controllers.ListOrders(deps.OrdersService, logg))
			r.Get("/orders/{orderNumber}", controllers.GetOrder(deps.OrdersService, logg))
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.RequireUser(logg))
		r.Use(middleware.RequireAdmin(deps.Users, logg))
		r.Use(middleware.Idempotency(idemStore, logg))

		r.Get("/orders", controllers.AdminListOrders(deps.OrdersService, logg))
		r.Get("/orders/{orderNumber}", controllers.AdminGetOrder(deps.OrdersService, logg))
		r.Post("/orders/{orderNumber}/confirm-payment", controllers.AdminConfirmPayment(deps.PaymentsService, logg))
		r.Patch("/orders/{orderNumber}/status", controllers.AdminUpdateStatus(deps.OrdersService, deps.OrdersRepo, deps.Notifier, logg))
		r.Post("/orders/{orderNumber}/ship/retry", controllers.AdminRetryShipment(deps.OrdersRepo, deps.Dispatcher, logg))
	})

	return r
}
