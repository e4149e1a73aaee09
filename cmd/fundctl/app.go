package main

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/angelmondragon/tamwill-backend/internal/collection"
	"github.com/angelmondragon/tamwill-backend/internal/contributions"
	"github.com/angelmondragon/tamwill-backend/internal/ledger"
	"github.com/angelmondragon/tamwill-backend/internal/payments"
	"github.com/angelmondragon/tamwill-backend/internal/projects"
	"github.com/angelmondragon/tamwill-backend/internal/reconciliation"
	"github.com/angelmondragon/tamwill-backend/pkg/config"
	"github.com/angelmondragon/tamwill-backend/pkg/db"
	"github.com/angelmondragon/tamwill-backend/pkg/logger"
	pkgstripe "github.com/angelmondragon/tamwill-backend/pkg/stripe"
	"github.com/angelmondragon/tamwill-backend/pkg/tracing"
)

type reconciler interface {
	Reconcile(ctx context.Context, contributionID uuid.UUID) (reconciliation.ObserveResult, error)
	ReconcilePending(ctx context.Context, before time.Time, limit int) (reconciliation.ReconcileReport, error)
}

type app struct {
	logg       *logger.Logger
	reconciler reconciler
	auditor    ledger.Service
}

func bootstrap(ctx context.Context) (_ *app, _ func() error, err error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	logg := cliLogger(cfg.App)
	ctx = logg.WithField(ctx, "env", cfg.App.Env)

	var closers []func() error
	closeAll := func() error {
		var errs error
		for i := len(closers) - 1; i >= 0; i-- {
			errs = multierr.Append(errs, closers[i]())
		}
		return errs
	}
	defer func() {
		if err != nil {
			err = multierr.Append(err, closeAll())
		}
	}()

	shutdownTracing, err := tracing.Setup(ctx, cfg.Telemetry, "tamwill-fundctl")
	if err != nil {
		return nil, nil, err
	}
	closers = append(closers, func() error {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return shutdownTracing(flushCtx)
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return nil, nil, err
	}
	closers = append(closers, dbClient.Close)

	minimum, err := cfg.Funding.MinimumAmount()
	if err != nil {
		return nil, nil, err
	}

	conn := dbClient.DB()
	contributionRepo := contributions.NewRepository(conn)
	contributionService, err := contributions.NewService(contributions.ServiceParams{
		Repository:        contributionRepo,
		Projects:          projects.NewRepository(conn),
		Payments:          payments.NewRepository(conn),
		Aggregator:        collection.NewAggregator(conn),
		TransactionRunner: dbClient,
		Logger:            logg,
		Minimum:           minimum,
		ProviderName:      cfg.Funding.ProviderName,
	})
	if err != nil {
		return nil, nil, err
	}

	stripeClient, err := pkgstripe.NewClient(ctx, cfg.Stripe, logg)
	if err != nil {
		return nil, nil, err
	}
	intents, err := pkgstripe.NewPaymentIntents(stripeClient)
	if err != nil {
		return nil, nil, err
	}
	provider, err := reconciliation.NewStripeProvider(intents)
	if err != nil {
		return nil, nil, err
	}
	gateway, err := reconciliation.NewGateway(reconciliation.GatewayParams{
		Contributions: contributionService,
		Pending:       contributionRepo,
		Provider:      provider,
		Logger:        logg,
		Currency:      cfg.Funding.NormalizedCurrency(),
	})
	if err != nil {
		return nil, nil, err
	}

	auditor, err := ledger.NewService(ledger.NewRepository(conn))
	if err != nil {
		return nil, nil, err
	}

	return &app{logg: logg, reconciler: gateway, auditor: auditor}, closeAll, nil
}
