package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dorceinnovative/dorce.ai-sub002/api/controllers"
	"github.com/dorceinnovative/dorce.ai-sub002/api/middleware"
	"github.com/dorceinnovative/dorce.ai-sub002/internal/cart"
	"github.com/dorceinnovative/dorce.ai-sub002/pkg/config"
	"github.com/dorceinnovative/dorce.ai-sub002/pkg/logger"
	pkgredis "github.com/dorceinnovative/dorce.ai-sub002/pkg/redis"
)

// Deps carries everything the HTTP surface is wired from. DB and Redis feed
// the readiness probe; Redis also backs the idempotency middleware.
type Deps struct {
	Config   *config.Config
	Logger   *logger.Logger
	DB       controllers.Pinger
	Redis    *pkgredis.Client
	Carts    cart.Store
	Checkout controllers.CheckoutService
	Orders   controllers.OrderService
	Escrow   controllers.EscrowService
	Coupons  controllers.CouponStore
	Rules    controllers.CommissionRuleWriter
	Resolver controllers.CommissionResolver
	Registry *prometheus.Registry
}

// NewRouter assembles the middleware chain and the versioned API routes.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.Recoverer(d.Logger),
		middleware.RequestID(d.Logger),
		middleware.Logging(d.Logger),
		middleware.CORS(),
	)

	r.Get("/healthz", controllers.HealthLive(d.Config))
	r.Get("/readyz", controllers.HealthReady(d.Config, d.Logger, readyChecks(d)))
	if d.Registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(d.Registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Identity(d.Logger))
		if d.Redis != nil {
			r.Use(middleware.Idempotency(d.Redis, d.Logger))
		}

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", controllers.CartFetch(d.Carts, d.Logger))
			r.Delete("/", controllers.CartClear(d.Carts, d.Logger))
			r.Post("/items", controllers.CartAddItem(d.Carts, d.Logger))
			r.Patch("/items/{itemID}", controllers.CartUpdateItem(d.Carts, d.Logger))
			r.Delete("/items/{itemID}", controllers.CartRemoveItem(d.Carts, d.Logger))
		})

		r.Route("/checkout", func(r chi.Router) {
			r.Get("/", controllers.CheckoutFetch(d.Checkout, d.Logger))
			r.Post("/", controllers.CheckoutExecute(d.Checkout, d.Logger))
			r.Post("/confirm", controllers.CheckoutConfirm(d.Checkout, d.Logger))
		})

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", controllers.OrderList(d.Orders, d.Logger))
			r.Get("/{orderID}", controllers.OrderDetail(d.Orders, d.Logger))
			r.Post("/{orderID}/ship", controllers.OrderShip(d.Orders, d.Logger))
			r.Post("/{orderID}/deliver", controllers.OrderDeliver(d.Orders, d.Logger))
			r.Post("/{orderID}/cancel", controllers.OrderCancel(d.Orders, d.Logger))
		})

		r.Route("/escrows", func(r chi.Router) {
			r.Get("/{escrowID}", controllers.EscrowDetail(d.Escrow, d.Logger))
			r.Post("/{escrowID}/release", controllers.EscrowRelease(d.Escrow, d.Logger))
			r.Post("/{escrowID}/refund", controllers.EscrowRefund(d.Escrow, d.Logger))
			r.Post("/{escrowID}/dispute", controllers.EscrowDispute(d.Escrow, d.Logger))
		})

		r.Route("/coupons", func(r chi.Router) {
			r.Post("/", controllers.CouponCreate(d.Coupons, d.Logger))
			r.Get("/{code}", controllers.CouponDetail(d.Coupons, d.Logger))
		})

		r.Route("/commission-rules", func(r chi.Router) {
			r.Post("/", controllers.CommissionRuleCreate(d.Rules, d.Logger))
			r.Get("/quote", controllers.CommissionQuote(d.Resolver, d.Logger))
		})
	})

	return r
}

func readyChecks(d Deps) map[string]controllers.Pinger {
	checks := map[string]controllers.Pinger{}
	if d.DB != nil {
		checks["database"] = d.DB
	}
	if d.Redis != nil {
		checks["redis"] = d.Redis
	}
	return checks
}
