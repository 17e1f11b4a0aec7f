package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tinysprouts/tinysprouts-backend/api/controllers"
	"github.com/tinysprouts/tinysprouts-backend/api/middleware"
	authsvc "github.com/tinysprouts/tinysprouts-backend/internal/auth"
	cartsvc "github.com/tinysprouts/tinysprouts-backend/internal/cart"
	"github.com/tinysprouts/tinysprouts-backend/internal/catalog"
	checkoutsvc "github.com/tinysprouts/tinysprouts-backend/internal/checkout"
	ordersvc "github.com/tinysprouts/tinysprouts-backend/internal/orders"
	"github.com/tinysprouts/tinysprouts-backend/pkg/auth/session"
	"github.com/tinysprouts/tinysprouts-backend/pkg/config"
	"github.com/tinysprouts/tinysprouts-backend/pkg/logger"
	"github.com/tinysprouts/tinysprouts-backend/pkg/redis"
)

type sessionManager interface {
	session.AccessSessionChecker
	Rotate(context.Context, string, string) (string, string, error)
	Revoke(context.Context, string) error
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	redisClient *redis.Client,
	catalogClient *catalog.Client,
	sessions sessionManager,
	authService authsvc.Service,
	cartStore *cartsvc.Store,
	checkoutService checkoutsvc.Service,
	ordersService ordersvc.Service,
	registry *prometheus.Registry,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	requestCodePolicy := middleware.NewAuthRateLimitPolicy(
		"request-code",
		cfg.AuthRateLimit.RequestCodeWindow,
		cfg.AuthRateLimit.RequestCodeIPLimit,
		cfg.AuthRateLimit.RequestCodePhoneLimit,
	)
	verifyPolicy := middleware.NewAuthRateLimitPolicy(
		"verify",
		cfg.AuthRateLimit.VerifyWindow,
		cfg.AuthRateLimit.VerifyIPLimit,
		cfg.AuthRateLimit.VerifyPhoneLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, redisClient, catalogClient, logg))
	})

	if registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(middleware.AuthRateLimit(requestCodePolicy, redisClient, logg)).Post("/request-code", controllers.AuthRequestCode(authService, logg))
		r.With(middleware.AuthRateLimit(verifyPolicy, redisClient, logg)).Post("/verify", controllers.AuthVerify(authService, logg))
		r.Post("/refresh", controllers.AuthRefresh(authService, logg))

		// Sign-out must live on this subrouter: chi resolves /api/v1/auth/*
		// here and never falls through to the authenticated /api/v1 mount.
		r.With(middleware.Auth(cfg.JWT, sessions, logg)).Post("/sign-out", controllers.AuthSignOut(authService, logg))
	})

	r.Route("/api/v1/products", func(r chi.Router) {
		r.Get("/", controllers.ProductsList(catalogClient, logg))
		r.Get("/{productId}", controllers.ProductGet(catalogClient, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, sessions, logg))

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", controllers.CartGet(cartStore, logg))
			r.Post("/items", controllers.CartAddItem(cartStore, logg))
			r.Patch("/items", controllers.CartUpdateQuantity(cartStore, logg))
			r.Delete("/items", controllers.CartRemoveItem(cartStore, logg))
			r.Post("/clear", controllers.CartClear(cartStore, logg))
			r.Post("/toggle", controllers.CartToggle(cartStore, logg))
		})

		r.Route("/checkout", func(r chi.Router) {
			r.Get("/", controllers.CheckoutFlow(checkoutService, logg))
			r.Post("/shipping", controllers.CheckoutShipping(checkoutService, logg))
			r.Post("/payment", controllers.CheckoutPayment(checkoutService, logg))
			r.Post("/back", controllers.CheckoutBack(checkoutService, logg))
			r.Get("/review", controllers.CheckoutReview(checkoutService, logg))
			r.Post("/pay", controllers.CheckoutPay(checkoutService, logg))
			r.Post("/payment/success", controllers.CheckoutPaymentSuccess(checkoutService, logg))
			r.Post("/payment/failure", controllers.CheckoutPaymentFailure(checkoutService, logg))
		})

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", controllers.OrdersList(ordersService, logg))
			r.Get("/{orderId}/confirmation", controllers.OrderConfirmation(ordersService, logg))
		})
	})

	return r
}
