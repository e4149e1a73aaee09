package reconciliation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/tamwill-backend/internal/contributions"
	"github.com/angelmondragon/tamwill-backend/pkg/db/models"
	"github.com/angelmondragon/tamwill-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tamwill-backend/pkg/errors"
	"github.com/angelmondragon/tamwill-backend/pkg/logger"
	"github.com/angelmondragon/tamwill-backend/pkg/metrics"
	"github.com/angelmondragon/tamwill-backend/pkg/money"
	"github.com/angelmondragon/tamwill-backend/pkg/tracing"
	"github.com/google/uuid"
)

// OutcomeIgnored marks an observation that carried a non-success status.
const OutcomeIgnored = "ignored"

type stateMachine interface {
	Create(ctx context.Context, input contributions.CreateInput) (*models.Contribution, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Contribution, error)
	AttachCharge(ctx context.Context, id uuid.UUID, chargeID string) error
	Confirm(ctx context.Context, input contributions.ConfirmInput) (contributions.ConfirmResult, error)
	Cancel(ctx context.Context, id uuid.UUID) (*models.Contribution, error)
}

type pendingLister interface {
	ListPendingBefore(ctx context.Context, before time.Time, limit int) ([]models.Contribution, error)
}

// InitiateInput starts a contribution checkout.
type InitiateInput struct {
	UserID    uuid.UUID
	ProjectID uuid.UUID
	Amount    money.Amount
	Anonymous bool
}

// Initiation is what the client needs to complete payment.
type Initiation struct {
	ContributionID uuid.UUID
	ChargeHandle   string
	ClientSecret   string
	Amount         money.Amount
	Currency       string
}

// Observation is a provider report about one contribution's charge.
type Observation struct {
	ContributionID uuid.UUID
	TransactionID  string
	Status         enums.ChargeStatus
	Amount         money.Amount
}

// WebhookPayload is the part of an asynchronous provider event the gateway reads.
type WebhookPayload struct {
	ContributionID uuid.UUID
	Status         enums.ChargeStatus
	Amount         money.Amount
}

// ObserveResult reports the contribution after an observation. Outcome is a
// metrics.Confirm* value or OutcomeIgnored.
type ObserveResult struct {
	Contribution *models.Contribution
	Status       enums.ChargeStatus
	Outcome      string
}

// ReconcileReport summarizes an operator sweep.
type ReconcileReport struct {
	Checked int
	Applied int
	Failed  int
}

type GatewayParams struct {
	Contributions stateMachine
	Pending       pendingLister
	Provider      Provider
	Logger        *logger.Logger
	Metrics       *metrics.FundingMetrics
	Currency      string
}

// Gateway turns provider traffic into contribution state changes.
type Gateway struct {
	contributions stateMachine
	pending       pendingLister
	provider      Provider
	logg          *logger.Logger
	metrics       *metrics.FundingMetrics
	currency      string
}

func NewGateway(params GatewayParams) (*Gateway, error) {
	if params.Contributions == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "contribution service required")
	}
	if params.Provider == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payment provider required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	currency := strings.ToLower(strings.TrimSpace(params.Currency))
	if currency == "" {
		currency = string(enums.CurrencyUSD)
	}
	return &Gateway{
		contributions: params.Contributions,
		pending:       params.Pending,
		provider:      params.Provider,
		logg:          params.Logger,
		metrics:       params.Metrics,
		currency:      currency,
	}, nil
}

// Initiate creates a pending contribution and opens its provider charge. The
// provider call runs outside any transaction. When it fails the contribution
// is cancelled so it stays auditable.
func (g *Gateway) Initiate(ctx context.Context, input InitiateInput) (_ *Initiation, err error) {
	ctx, end := tracing.Start(ctx, "reconciliation.initiate")
	defer func() { end(err) }()

	contribution, err := g.contributions.Create(ctx, contributions.CreateInput{
		UserID:    input.UserID,
		ProjectID: input.ProjectID,
		Amount:    input.Amount,
		Anonymous: input.Anonymous,
	})
	if err != nil {
		return nil, err
	}
	ctx = g.logg.WithContributionID(ctx, contribution.ID.String())

	started := time.Now()
	charge, err := g.provider.OpenCharge(ctx, ChargeRequest{
		Amount:   contribution.Amount,
		Currency: g.currency,
		Metadata: map[string]string{
			MetadataContributionID: contribution.ID.String(),
			MetadataProjectID:      contribution.ProjectID.String(),
		},
		IdempotencyKey: "contribution-" + contribution.ID.String(),
	})
	g.metrics.ObserveProviderCall("open_charge", started, err)
	if err == nil && (charge == nil || charge.Handle == "") {
		err = errors.New("provider returned no charge handle")
	}
	if err != nil {
		g.logg.Error(ctx, "open provider charge", err)
		g.abandon(ctx, contribution.ID)
		return nil, pkgerrors.WrapReason(pkgerrors.ReasonProviderUnavailable, err, "payment provider unavailable")
	}

	if err := g.contributions.AttachCharge(ctx, contribution.ID, charge.Handle); err != nil {
		g.logg.Error(g.logg.WithField(ctx, "charge_handle", charge.Handle), "attach provider charge", err)
		g.abandon(ctx, contribution.ID)
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record provider charge")
	}

	return &Initiation{
		ContributionID: contribution.ID,
		ChargeHandle:   charge.Handle,
		ClientSecret:   charge.ClientSecret,
		Amount:         contribution.Amount,
		Currency:       g.currency,
	}, nil
}

// abandon cancels a contribution whose checkout could not be completed. Without
// a stored charge handle nothing else can reach it, and a late provider report
// is a no-op on a cancelled contribution.
func (g *Gateway) abandon(ctx context.Context, id uuid.UUID) {
	if _, err := g.contributions.Cancel(ctx, id); err != nil {
		g.logg.Error(ctx, "cancel abandoned contribution", err)
	}
}

// Observe applies a provider report. Only a success status changes state;
// it is safe to call any number of times for the same charge.
func (g *Gateway) Observe(ctx context.Context, obs Observation) (ObserveResult, error) {
	if !obs.Status.IsSuccess() {
		contribution, err := g.contributions.Get(ctx, obs.ContributionID)
		if err != nil {
			return ObserveResult{}, err
		}
		g.logg.Debug(g.logg.WithFields(ctx, map[string]any{
			"contribution_id": obs.ContributionID.String(),
			"charge_status":   string(obs.Status),
		}), "non-success charge status observed")
		return ObserveResult{Contribution: contribution, Status: obs.Status, Outcome: OutcomeIgnored}, nil
	}

	res, err := g.contributions.Confirm(ctx, contributions.ConfirmInput{
		ContributionID:  obs.ContributionID,
		TransactionID:   obs.TransactionID,
		ConfirmedAmount: obs.Amount,
	})
	if err != nil {
		return ObserveResult{}, err
	}
	contribution := res.Contribution
	if contribution == nil {
		if contribution, err = g.contributions.Get(ctx, obs.ContributionID); err != nil {
			return ObserveResult{}, err
		}
	}
	return ObserveResult{Contribution: contribution, Status: obs.Status, Outcome: res.Outcome}, nil
}

// ObserveReturn handles the browser redirect after checkout. The handle must
// match the one stored at initiation.
func (g *Gateway) ObserveReturn(ctx context.Context, contributionID uuid.UUID, handle string) (_ ObserveResult, err error) {
	ctx, end := tracing.Start(ctx, "reconciliation.observe_return")
	defer func() { end(err) }()

	contribution, err := g.contributions.Get(ctx, contributionID)
	if err != nil {
		return ObserveResult{}, err
	}
	handle = strings.TrimSpace(handle)
	if handle == "" || contribution.ProviderChargeID == nil || *contribution.ProviderChargeID != handle {
		return ObserveResult{}, pkgerrors.Newf(pkgerrors.ReasonNotFound, "no charge %q for contribution %s", handle, contributionID)
	}
	return g.observeCharge(ctx, contribution, handle)
}

// ObserveWebhook handles an asynchronous provider event for transactionID.
func (g *Gateway) ObserveWebhook(ctx context.Context, transactionID string, payload WebhookPayload) (_ ObserveResult, err error) {
	ctx, end := tracing.Start(ctx, "reconciliation.observe_webhook")
	defer func() { end(err) }()

	if payload.ContributionID == uuid.Nil {
		return ObserveResult{}, pkgerrors.New(pkgerrors.CodeValidation, "webhook payload missing contribution id")
	}
	return g.Observe(ctx, Observation{
		ContributionID: payload.ContributionID,
		TransactionID:  transactionID,
		Status:         payload.Status,
		Amount:         payload.Amount,
	})
}

// Cancel abandons a pending contribution.
func (g *Gateway) Cancel(ctx context.Context, contributionID uuid.UUID) (*models.Contribution, error) {
	return g.contributions.Cancel(ctx, contributionID)
}

// CancelForUser cancels a contribution on behalf of the backer who made it.
func (g *Gateway) CancelForUser(ctx context.Context, contributionID, userID uuid.UUID) (*models.Contribution, error) {
	contribution, err := g.contributions.Get(ctx, contributionID)
	if err != nil {
		return nil, err
	}
	if contribution.UserID != userID {
		return nil, pkgerrors.Newf(pkgerrors.ReasonForbidden, "contribution %s belongs to another user", contributionID)
	}
	return g.contributions.Cancel(ctx, contributionID)
}

// Reconcile asks the provider again about a contribution's stored charge.
func (g *Gateway) Reconcile(ctx context.Context, contributionID uuid.UUID) (_ ObserveResult, err error) {
	ctx, end := tracing.Start(ctx, "reconciliation.reconcile")
	defer func() { end(err) }()

	contribution, err := g.contributions.Get(ctx, contributionID)
	if err != nil {
		return ObserveResult{}, err
	}
	if contribution.ProviderChargeID == nil {
		return ObserveResult{}, pkgerrors.Newf(pkgerrors.ReasonNotFound, "contribution %s has no provider charge", contributionID)
	}
	return g.observeCharge(ctx, contribution, *contribution.ProviderChargeID)
}

// ReconcilePending reconciles pending contributions created before the cutoff.
// Per-row failures are logged and counted; the sweep keeps going.
func (g *Gateway) ReconcilePending(ctx context.Context, before time.Time, limit int) (ReconcileReport, error) {
	var report ReconcileReport
	if g.pending == nil {
		return report, pkgerrors.New(pkgerrors.CodeInternal, "pending lister not configured")
	}
	rows, err := g.pending.ListPendingBefore(ctx, before, limit)
	if err != nil {
		return report, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list pending contributions")
	}
	for _, row := range rows {
		report.Checked++
		res, err := g.Reconcile(ctx, row.ID)
		if err != nil {
			report.Failed++
			g.logg.Error(g.logg.WithContributionID(ctx, row.ID.String()), "reconcile contribution", err)
			continue
		}
		if res.Outcome == metrics.ConfirmApplied {
			report.Applied++
		}
	}
	return report, nil
}

func (g *Gateway) observeCharge(ctx context.Context, contribution *models.Contribution, handle string) (ObserveResult, error) {
	started := time.Now()
	charge, err := g.provider.GetChargeStatus(ctx, handle)
	g.metrics.ObserveProviderCall("get_charge_status", started, err)
	if err != nil {
		return ObserveResult{}, pkgerrors.WrapReason(pkgerrors.ReasonProviderUnavailable, err, "payment provider unavailable")
	}
	if charge == nil {
		return ObserveResult{}, pkgerrors.Newf(pkgerrors.ReasonProviderUnavailable, "provider returned no charge for %s", handle)
	}
	if owner := charge.Metadata[MetadataContributionID]; owner != "" && owner != contribution.ID.String() {
		return ObserveResult{}, pkgerrors.Newf(pkgerrors.ReasonNotFound, "charge %s belongs to contribution %s", handle, owner)
	}

	txnID := charge.TransactionID
	if txnID == "" {
		txnID = handle
	}
	return g.Observe(ctx, Observation{
		ContributionID: contribution.ID,
		TransactionID:  txnID,
		Status:         charge.Status,
		Amount:         charge.Amount,
	})
}

// String is used in operator output.
func (r ReconcileReport) String() string {
	return fmt.Sprintf("checked=%d applied=%d failed=%d", r.Checked, r.Applied, r.Failed)
}
