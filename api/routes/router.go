package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/maison-pos/api/controllers"
	"github.com/angelmondragon/maison-pos/api/middleware"
	"github.com/angelmondragon/maison-pos/internal/catalog"
	"github.com/angelmondragon/maison-pos/internal/receipts"
	"github.com/angelmondragon/maison-pos/internal/register"
	"github.com/angelmondragon/maison-pos/internal/staff"
	"github.com/angelmondragon/maison-pos/internal/storefront"
	"github.com/angelmondragon/maison-pos/pkg/config"
	"github.com/angelmondragon/maison-pos/pkg/enums"
	"github.com/angelmondragon/maison-pos/pkg/logger"
	pkgredis "github.com/angelmondragon/maison-pos/pkg/redis"
)

// RedisStore is the subset of the Redis client the HTTP layer needs.
// Pass nil to run without idempotency replay or login throttling.
type RedisStore interface {
	pkgredis.IdempotencyStore
	Ping(context.Context) error
	IncrWithTTL(context.Context, string, time.Duration) (int64, error)
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP controllers.Pinger,
	redisClient RedisStore,
	registers *register.Manager,
	staffService staff.Service,
	catalogService catalog.Service,
	storefrontService storefront.Service,
	receiptsService receipts.Service,
	metricsHandler http.Handler,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.HTTP.CORSOrigins),
	)

	var (
		idempotencyStore pkgredis.IdempotencyStore
		limiterStore     middleware.RateLimiterStore
		redisPinger      controllers.Pinger
	)
	if redisClient != nil {
		idempotencyStore, limiterStore, redisPinger = redisClient, redisClient, redisClient
	}

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.HTTP.LoginWindow,
		cfg.HTTP.LoginIPLimit,
		cfg.HTTP.LoginStaffLimit,
	)
	idempotent := middleware.Idempotency(idempotencyStore, logg)
	auth := middleware.Auth(cfg.JWT, registers, logg)
	managerOnly := middleware.RequireRole(enums.StaffRoleManager, logg)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisPinger))
	})
	if metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", metricsHandler)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/staff", func(r chi.Router) {
			r.Get("/", controllers.StaffList(staffService, logg))
			r.With(auth, managerOnly, idempotent).Post("/", controllers.StaffCreate(staffService, logg))
		})

		r.Route("/registers/{"+middleware.RegisterIDParam+"}", func(r chi.Router) {
			r.Use(middleware.Register(registers, logg))

			r.Get("/session", controllers.SessionStatus(logg))
			r.With(middleware.AuthRateLimit(loginPolicy, limiterStore, logg)).Post("/session/login", controllers.SessionLogin(logg))

			r.Group(func(r chi.Router) {
				r.Use(auth)

				r.Post("/session/logout", controllers.SessionLogout(logg))
				r.Post("/session/activity", controllers.SessionActivity(logg))

				r.Route("/cart", func(r chi.Router) {
					r.Get("/", controllers.CartFetch(logg))
					r.Delete("/", controllers.CartDiscard(logg))
					r.Post("/lines", controllers.CartAddLine(logg))
					r.Patch("/lines", controllers.CartAdjustLine(logg))
					r.Delete("/lines", controllers.CartRemoveLine(logg))
				})

				r.Route("/checkout", func(r chi.Router) {
					r.Post("/discount", controllers.CheckoutApplyDiscount(logg))
					r.Delete("/discount", controllers.CheckoutRemoveDiscount(logg))
					r.Post("/payment", controllers.CheckoutStartPayment(logg))
					r.Delete("/payment", controllers.CheckoutCancelPayment(logg))
					r.Post("/payment/cash", controllers.CheckoutTenderCash(logg))
					r.Route("/payment/card", func(r chi.Router) {
						r.Post("/readers", controllers.CheckoutDiscoverReaders(logg))
						r.Post("/connect", controllers.CheckoutConnectReader(logg))
						r.Post("/charge", controllers.CheckoutCharge(logg))
						r.Post("/cancel-collection", controllers.CheckoutCancelCollection(logg))
						r.Post("/restart", controllers.CheckoutRestartCard(logg))
					})
					r.With(idempotent).Post("/finalize", controllers.CheckoutFinalize(logg))
					r.With(managerOnly).Post("/reconciliation/ack", controllers.CheckoutAcknowledgeReconciliation(logg))
				})
			})
		})

		r.Route("/products", func(r chi.Router) {
			r.Use(auth)
			r.With(managerOnly, idempotent).Post("/", controllers.ProductCreate(catalogService, logg))
			r.Get("/variants", controllers.ProductVariants(catalogService, logg))
		})

		r.With(auth).Get("/orders/{"+controllers.OrderIDParam+"}/receipt", controllers.OrderReceipt(receiptsService, logg))

		r.Post("/storefront/quote", controllers.StorefrontQuote(storefrontService, logg))
	})

	return r
}
