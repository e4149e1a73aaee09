package stripe

import (
	"context"
	"errors"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/paymentintent"
)

// PaymentIntents exposes the subset of the PaymentIntents API the funding flow needs.
type PaymentIntents interface {
	Create(ctx context.Context, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	Get(ctx context.Context, id string) (*stripe.PaymentIntent, error)
}

type paymentIntentsWrapper struct{}

// NewPaymentIntents returns the live PaymentIntents surface once the client is initialized.
func NewPaymentIntents(client *Client) (PaymentIntents, error) {
	if client == nil || client.API() == nil {
		return nil, errors.New("stripe client not initialized")
	}
	return &paymentIntentsWrapper{}, nil
}

func (w *paymentIntentsWrapper) Create(ctx context.Context, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	if params != nil {
		params.Context = ctx
	}
	return paymentintent.New(params)
}

func (w *paymentIntentsWrapper) Get(ctx context.Context, id string) (*stripe.PaymentIntent, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	return paymentintent.Get(id, params)
}
