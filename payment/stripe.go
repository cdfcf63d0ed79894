package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
)

type Stripe struct {
	api *client.API
}

// NewStripe builds a Checkout Sessions client. backends may be nil to use the
// live Stripe endpoints.
func NewStripe(secretKey string, backends *stripe.Backends) *Stripe {
	api := &client.API{}
	api.Init(secretKey, backends)
	return &Stripe{api: api}
}

func (s *Stripe) CreateSession(ctx context.Context, req Request) (Session, error) {
	if req.AmountMinor <= 0 {
		return Session{}, errors.New("payment amount must be positive")
	}

	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(req.Currency),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String("Order " + req.OrderID),
					},
					UnitAmount: stripe.Int64(req.AmountMinor),
				},
				Quantity: stripe.Int64(1),
			},
		},
		ClientReferenceID: stripe.String(req.OrderID),
		SuccessURL:        stripe.String(req.SuccessURL),
		CancelURL:         stripe.String(req.CancelURL),
	}
	params.Context = ctx

	sess, err := s.api.CheckoutSessions.New(params)
	if err != nil {
		return Session{}, fmt.Errorf("create checkout session: %w", err)
	}
	return Session{ID: sess.ID, URL: sess.URL}, nil
}
