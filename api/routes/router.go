package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/tamwill-backend/api/controllers"
	fundingcontrollers "github.com/angelmondragon/tamwill-backend/api/controllers/funding"
	webhookcontrollers "github.com/angelmondragon/tamwill-backend/api/controllers/webhooks"
	"github.com/angelmondragon/tamwill-backend/api/middleware"
	"github.com/angelmondragon/tamwill-backend/pkg/config"
	"github.com/angelmondragon/tamwill-backend/pkg/db"
	"github.com/angelmondragon/tamwill-backend/pkg/enums"
	"github.com/angelmondragon/tamwill-backend/pkg/logger"
	"github.com/angelmondragon/tamwill-backend/pkg/metrics"
	"github.com/angelmondragon/tamwill-backend/pkg/redis"
)

// Services bundles the domain handlers the router mounts. Any nil entry
// answers its routes with an internal error instead of panicking.
type Services struct {
	Contributions  fundingcontrollers.ContributionGateway
	Payouts        fundingcontrollers.PayoutService
	Projections    fundingcontrollers.ProjectionService
	StripeVerifier webhookcontrollers.StripeVerifier
	StripeWebhooks webhookcontrollers.StripeWebhookService
	WebhookGuard   webhookcontrollers.StripeWebhookGuard
	HTTPMetrics    *metrics.HTTPMetrics
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	gatherer prometheus.Gatherer,
	svc Services,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg, svc.HTTPMetrics),
		middleware.RequestID(logg),
		middleware.Logging(logg, svc.HTTPMetrics),
		middleware.CORS(cfg.CORS),
	)

	// A nil *redis.Client must not leak into the middleware as a non-nil
	// interface.
	var (
		redisPinger      controllers.Pinger
		idempotencyStore middleware.IdempotencyStore
		limiter          middleware.RateLimiter
	)
	if redisClient != nil {
		redisPinger = redisClient
		idempotencyStore = redisClient
		limiter = redisClient
	}

	contributionPolicy := middleware.NewRateLimitPolicy(
		"contributions",
		cfg.RateLimit.ContributionLimit,
		cfg.RateLimit.ContributionWindow,
	)
	idempotent := middleware.Idempotency(idempotencyStore, logg)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg,
			controllers.NamedPinger{Name: "db", Pinger: dbP},
			controllers.NamedPinger{Name: "redis", Pinger: redisPinger},
		))
	})

	if gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/stripe", webhookcontrollers.StripeWebhook(svc.StripeWebhooks, svc.StripeVerifier, svc.WebhookGuard, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.With(
			middleware.RequireRole(logg, enums.UserRoleUser, enums.UserRoleCreator, enums.UserRoleAdmin),
			middleware.RateLimit(contributionPolicy, limiter, logg),
			idempotent,
		).Post("/projects/{projectId}/contributions", fundingcontrollers.InitiateContribution(svc.Contributions, logg))

		r.Route("/contributions/{contributionId}", func(r chi.Router) {
			r.Get("/return", fundingcontrollers.ContributionReturn(svc.Contributions, logg))
			r.With(idempotent).Post("/cancel", fundingcontrollers.CancelContribution(svc.Contributions, logg))
		})

		r.Get("/me/contributions", fundingcontrollers.DonationHistory(svc.Projections, logg))
		r.Get("/leaderboard", fundingcontrollers.Leaderboard(svc.Projections, logg))

		r.Route("/creator/projects/{projectId}", func(r chi.Router) {
			r.Use(middleware.RequireRole(logg, enums.UserRoleCreator))
			r.With(idempotent).Post("/payout", fundingcontrollers.CreatorRequestPayout(svc.Payouts, logg))
			r.Get("/dashboard", fundingcontrollers.ProjectDashboard(svc.Projections, logg))
			r.Get("/transactions", fundingcontrollers.ProjectTransactions(svc.Projections, logg))
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole(logg, enums.UserRoleAdmin))
		r.With(idempotent).Post("/projects/{projectId}/payout/confirm", fundingcontrollers.AdminConfirmPayout(svc.Payouts, logg))
		r.Get("/payouts/queue", fundingcontrollers.AdminPayoutQueue(svc.Projections, logg))
	})

	return r
}
