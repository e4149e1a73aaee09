package stripewebhook

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/angelmondragon/tamwill-backend/internal/reconciliation"
	"github.com/angelmondragon/tamwill-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tamwill-backend/pkg/errors"
	"github.com/angelmondragon/tamwill-backend/pkg/logger"
	"github.com/angelmondragon/tamwill-backend/pkg/metrics"
	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
)

// Webhook results recorded per event.
const (
	ResultObserved = "observed"
	ResultIgnored  = "ignored"
	ResultUnknown  = "unknown_contribution"
	ResultFailed   = "failed"
)

type observer interface {
	ObserveWebhook(ctx context.Context, transactionID string, payload reconciliation.WebhookPayload) (reconciliation.ObserveResult, error)
}

type ServiceParams struct {
	Gateway observer
	Logger  *logger.Logger
	Metrics *metrics.FundingMetrics
}

// Service routes verified Stripe events into the reconciliation gateway.
type Service struct {
	gateway observer
	logg    *logger.Logger
	metrics *metrics.FundingMetrics
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Gateway == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "reconciliation gateway required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &Service{
		gateway: params.Gateway,
		logg:    params.Logger,
		metrics: params.Metrics,
	}, nil
}

// HandleEvent applies a payment_intent event. Events for intents this service
// did not open and for unknown contributions are acknowledged and dropped.
func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}
	ctx = s.logg.WithFields(ctx, map[string]any{
		"stripe_event_id":   event.ID,
		"stripe_event_type": string(event.Type),
	})

	switch event.Type {
	case stripe.EventTypePaymentIntentSucceeded,
		stripe.EventTypePaymentIntentPaymentFailed,
		stripe.EventTypePaymentIntentCanceled,
		stripe.EventTypePaymentIntentProcessing:
		var intent stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
			s.metrics.IncWebhookEvent(string(event.Type), ResultFailed)
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode payment intent event")
		}
		result, err := s.observeIntent(ctx, &intent)
		s.metrics.IncWebhookEvent(string(event.Type), result)
		return err
	default:
		s.metrics.IncWebhookEvent(string(event.Type), ResultIgnored)
		return nil
	}
}

func (s *Service) observeIntent(ctx context.Context, intent *stripe.PaymentIntent) (string, error) {
	raw := intent.Metadata[reconciliation.MetadataContributionID]
	if raw == "" {
		s.logg.Debug(ctx, "payment intent without contribution metadata")
		return ResultIgnored, nil
	}
	contributionID, err := uuid.Parse(raw)
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "contribution_id", raw), "payment intent carries malformed contribution id")
		return ResultIgnored, nil
	}

	charge := reconciliation.ChargeFromIntent(intent)
	res, err := s.gateway.ObserveWebhook(ctx, charge.TransactionID, reconciliation.WebhookPayload{
		ContributionID: contributionID,
		Status:         enums.ChargeStatus(intent.Status),
		Amount:         charge.Amount,
	})
	if err != nil {
		if errors.Is(err, pkgerrors.ErrNotFound) {
			s.logg.Warn(s.logg.WithContributionID(ctx, raw), "webhook for unknown contribution")
			return ResultUnknown, nil
		}
		return ResultFailed, err
	}
	if res.Outcome == reconciliation.OutcomeIgnored {
		return ResultIgnored, nil
	}
	return ResultObserved, nil
}
