package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/tourlink-backend/api/controllers"
	"github.com/angelmondragon/tourlink-backend/api/middleware"
	"github.com/angelmondragon/tourlink-backend/internal/bookings"
	"github.com/angelmondragon/tourlink-backend/internal/commission"
	"github.com/angelmondragon/tourlink-backend/internal/hierarchy"
	"github.com/angelmondragon/tourlink-backend/internal/inventory"
	"github.com/angelmondragon/tourlink-backend/internal/referral"
	"github.com/angelmondragon/tourlink-backend/internal/tours"
	"github.com/angelmondragon/tourlink-backend/pkg/config"
	"github.com/angelmondragon/tourlink-backend/pkg/db"
	"github.com/angelmondragon/tourlink-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/tourlink-backend/pkg/redis"
)

// RedisStore is the slice of the Redis client the HTTP layer needs.
type RedisStore interface {
	pkgredis.IdempotencyStore
	pkgredis.Pinger
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisStore RedisStore,
	gatherer prometheus.Gatherer,
	hierarchyService hierarchy.Service,
	referralDirectory referral.Directory,
	catalogService tours.Service,
	ledger inventory.Ledger,
	bookingService bookings.Service,
	commissionEngine commission.Engine,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.CORS(cfg.HTTP.AllowedOrigins),
		middleware.Logging(logg),
	)

	checks := map[string]controllers.ReadinessCheck{}
	if dbP != nil {
		checks["postgres"] = dbP.Ping
	}
	if redisStore != nil {
		checks["redis"] = redisStore.Ping
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, checks, logg))
	})
	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/public", func(r chi.Router) {
		r.Get("/ping", controllers.PublicPing())
	})

	apiPolicy := middleware.NewRateLimitPolicy("api", cfg.HTTP.RateLimitWindow, cfg.HTTP.RateLimitRequests)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(
			middleware.ResellerContext(logg),
			middleware.RateLimit(apiPolicy, redisStore, logg),
			middleware.Idempotency(redisStore, cfg.Eventing.HTTPIdempotencyTTL, logg),
		)

		r.Route("/resellers", func(r chi.Router) {
			r.Post("/", controllers.ResellerRegister(hierarchyService, logg))
			r.Route("/{resellerId}", func(r chi.Router) {
				r.Get("/", controllers.ResellerGet(hierarchyService, logg))
				r.Post("/status", controllers.ResellerSetStatus(hierarchyService, logg))
				r.Get("/upline", controllers.ResellerUpline(hierarchyService, logg))
				r.Get("/downline", controllers.ResellerDownline(hierarchyService, logg))
				r.Get("/commissions", controllers.ResellerCommissions(commissionEngine, logg))
			})
		})

		r.Get("/referral-codes/{code}", controllers.ReferralCodeLookup(referralDirectory, logg))

		r.Route("/packages", func(r chi.Router) {
			r.Post("/", controllers.PackageCreate(catalogService, logg))
			r.Get("/{packageId}", controllers.PackageGet(catalogService, logg))
			r.Get("/{packageId}/tour-dates", controllers.PackageTourDates(catalogService, logg))
		})

		r.Route("/tour-dates", func(r chi.Router) {
			r.Post("/", controllers.TourDateCreate(ledger, logg))
			r.Get("/{tourDateId}", controllers.TourDateGet(catalogService, ledger, logg))
			r.Get("/{tourDateId}/seats", controllers.TourDateSeats(ledger, logg))
		})

		r.Route("/bookings", func(r chi.Router) {
			r.Post("/", controllers.BookingCreate(bookingService, logg))
			r.Route("/{bookingId}", func(r chi.Router) {
				r.Get("/", controllers.BookingGet(bookingService, logg))
				r.Post("/confirm", controllers.BookingConfirm(bookingService, logg))
				r.Post("/cancel", controllers.BookingCancel(bookingService, logg))
				r.Get("/commissions", controllers.BookingCommissions(bookingService, logg))
			})
		})
	})

	return r
}
