package reconciliation

import (
	"context"
	"errors"
	"strings"

	"github.com/angelmondragon/tamwill-backend/pkg/enums"
	"github.com/angelmondragon/tamwill-backend/pkg/money"
	pkgstripe "github.com/angelmondragon/tamwill-backend/pkg/stripe"
	"github.com/stripe/stripe-go/v84"
)

// StripeProvider opens charges as Stripe PaymentIntents.
type StripeProvider struct {
	intents pkgstripe.PaymentIntents
}

func NewStripeProvider(intents pkgstripe.PaymentIntents) (*StripeProvider, error) {
	if intents == nil {
		return nil, errors.New("stripe payment intents required")
	}
	return &StripeProvider{intents: intents}, nil
}

func (p *StripeProvider) OpenCharge(ctx context.Context, req ChargeRequest) (*Charge, error) {
	if !req.Amount.IsPositive() {
		return nil, errors.New("charge amount must be positive")
	}
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(req.Amount.Cents()),
		Currency: stripe.String(strings.ToLower(req.Currency)),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}

	intent, err := p.intents.Create(ctx, params)
	if err != nil {
		return nil, err
	}
	return ChargeFromIntent(intent), nil
}

func (p *StripeProvider) GetChargeStatus(ctx context.Context, handle string) (*Charge, error) {
	if strings.TrimSpace(handle) == "" {
		return nil, errors.New("charge handle required")
	}
	intent, err := p.intents.Get(ctx, handle)
	if err != nil {
		return nil, err
	}
	return ChargeFromIntent(intent), nil
}

// ChargeFromIntent maps a PaymentIntent onto a Charge. The intent id doubles
// as the external transaction id.
func ChargeFromIntent(intent *stripe.PaymentIntent) *Charge {
	if intent == nil {
		return nil
	}
	amount := intent.AmountReceived
	if amount == 0 {
		amount = intent.Amount
	}
	return &Charge{
		Handle:        intent.ID,
		ClientSecret:  intent.ClientSecret,
		TransactionID: intent.ID,
		Status:        enums.ChargeStatus(intent.Status),
		Amount:        money.FromCents(amount),
		Metadata:      intent.Metadata,
	}
}
