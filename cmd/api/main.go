package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"

	"github.com/angelmondragon/tamwill-backend/api/routes"
	"github.com/angelmondragon/tamwill-backend/internal/collection"
	"github.com/angelmondragon/tamwill-backend/internal/contributions"
	"github.com/angelmondragon/tamwill-backend/internal/notifications"
	"github.com/angelmondragon/tamwill-backend/internal/payments"
	"github.com/angelmondragon/tamwill-backend/internal/payouts"
	"github.com/angelmondragon/tamwill-backend/internal/projections"
	"github.com/angelmondragon/tamwill-backend/internal/projects"
	"github.com/angelmondragon/tamwill-backend/internal/reconciliation"
	"github.com/angelmondragon/tamwill-backend/internal/users"
	stripewebhook "github.com/angelmondragon/tamwill-backend/internal/webhooks/stripe"
	"github.com/angelmondragon/tamwill-backend/pkg/config"
	"github.com/angelmondragon/tamwill-backend/pkg/db"
	"github.com/angelmondragon/tamwill-backend/pkg/instance"
	"github.com/angelmondragon/tamwill-backend/pkg/logger"
	"github.com/angelmondragon/tamwill-backend/pkg/metrics"
	"github.com/angelmondragon/tamwill-backend/pkg/migrate"
	"github.com/angelmondragon/tamwill-backend/pkg/pubsub"
	"github.com/angelmondragon/tamwill-backend/pkg/redis"
	pkgstripe "github.com/angelmondragon/tamwill-backend/pkg/stripe"
	"github.com/angelmondragon/tamwill-backend/pkg/tracing"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
		Instance:    instance.GetID(),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logg); err != nil {
		logg.Error(context.Background(), "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) (err error) {
	shutdownTracing, err := tracing.Setup(ctx, cfg.Telemetry, "tamwill-api")
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err = multierr.Append(err, shutdownTracing(flushCtx))
	}()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, dbClient.Close())
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return err
	}

	var redisClient *redis.Client
	if strings.TrimSpace(cfg.Redis.URL) != "" || strings.TrimSpace(cfg.Redis.Address) != "" {
		redisClient, err = redis.New(ctx, cfg.Redis, logg)
		if err != nil {
			return err
		}
		defer func() {
			err = multierr.Append(err, redisClient.Close())
		}()
	} else {
		logg.Warn(ctx, "redis not configured; idempotency replay and rate limits disabled")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	if sqlDB, dbErr := dbClient.DB().DB(); dbErr == nil {
		reg.MustRegister(collectors.NewDBStatsCollector(sqlDB, dbClient.Driver()))
	}
	fundingMetrics := metrics.NewFundingMetrics(reg)
	httpMetrics := metrics.NewHTTPMetrics(reg)

	minimum, err := cfg.Funding.MinimumAmount()
	if err != nil {
		return err
	}

	conn := dbClient.DB()
	projectRepo := projects.NewRepository(conn)
	contributionRepo := contributions.NewRepository(conn)
	userRepo := users.NewRepository(conn)

	contributionService, err := contributions.NewService(contributions.ServiceParams{
		Repository:        contributionRepo,
		Projects:          projectRepo,
		Payments:          payments.NewRepository(conn),
		Aggregator:        collection.NewAggregator(conn),
		TransactionRunner: dbClient,
		Logger:            logg,
		Metrics:           fundingMetrics,
		Minimum:           minimum,
		ProviderName:      cfg.Funding.ProviderName,
	})
	if err != nil {
		return err
	}

	stripeClient, err := pkgstripe.NewClient(ctx, cfg.Stripe, logg)
	if err != nil {
		return err
	}
	intents, err := pkgstripe.NewPaymentIntents(stripeClient)
	if err != nil {
		return err
	}
	provider, err := reconciliation.NewStripeProvider(intents)
	if err != nil {
		return err
	}

	gateway, err := reconciliation.NewGateway(reconciliation.GatewayParams{
		Contributions: contributionService,
		Pending:       contributionRepo,
		Provider:      provider,
		Logger:        logg,
		Metrics:       fundingMetrics,
		Currency:      cfg.Funding.NormalizedCurrency(),
	})
	if err != nil {
		return err
	}

	notifier, closeNotifier, err := newNotifier(ctx, cfg, logg)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, closeNotifier())
	}()

	payoutService, err := payouts.NewService(payouts.ServiceParams{
		Projects:          projectRepo,
		Users:             userRepo,
		Notifier:          notifier,
		TransactionRunner: dbClient,
		Logger:            logg,
		Metrics:           fundingMetrics,
	})
	if err != nil {
		return err
	}

	projectionService, err := projections.NewService(projections.ServiceParams{
		Repository: projections.NewRepository(conn),
		Projects:   projectRepo,
		Users:      userRepo,
	})
	if err != nil {
		return err
	}

	webhookService, err := stripewebhook.NewService(stripewebhook.ServiceParams{
		Gateway: gateway,
		Logger:  logg,
		Metrics: fundingMetrics,
	})
	if err != nil {
		return err
	}

	services := routes.Services{
		Contributions:  gateway,
		Payouts:        payoutService,
		Projections:    projectionService,
		StripeVerifier: stripeClient,
		StripeWebhooks: webhookService,
		HTTPMetrics:    httpMetrics,
	}
	if redisClient != nil {
		guard, err := stripewebhook.NewIdempotencyGuard(redisClient, cfg.Webhooks.IdempotencyTTL)
		if err != nil {
			return err
		}
		services.WebhookGuard = guard
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	logCtx := logg.WithFields(ctx, map[string]any{
		"env":        cfg.App.Env,
		"addr":       addr,
		"stripe_env": stripeClient.Environment(),
	})
	logg.Info(logCtx, "starting api server")

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(cfg, logg, dbClient, redisClient, reg, services),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logg.Info(logCtx, "shutting down api server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

type payoutNotifier interface {
	NotifyPayoutConfirmed(ctx context.Context, notice notifications.PayoutNotice) error
}

// newNotifier publishes payout notices to Pub/Sub when a GCP project is
// configured and falls back to logging them otherwise.
func newNotifier(ctx context.Context, cfg *config.Config, logg *logger.Logger) (payoutNotifier, func() error, error) {
	if strings.TrimSpace(cfg.GCP.ProjectID) == "" {
		logg.Warn(ctx, "gcp project not configured; payout notices are logged only")
		return notifications.NewLogNotifier(logg), func() error { return nil }, nil
	}

	client, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		return nil, nil, err
	}
	publisher := client.NotificationPublisher()
	notifier, err := notifications.NewPubSubNotifier(publisher, logg)
	if err != nil {
		return nil, nil, multierr.Append(err, client.Close())
	}
	return notifier, func() error {
		publisher.Stop()
		return client.Close()
	}, nil
}
