package payments

import (
	"context"
	"fmt"
	"strconv"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
)

// StripeProcessor creates and verifies Stripe PaymentIntents.
type StripeProcessor struct {
	api *client.API
}

// NewStripeProcessor builds a processor from a Stripe secret key.
func NewStripeProcessor(secretKey string) (*StripeProcessor, error) {
	if secretKey == "" {
		return nil, fmt.Errorf("stripe secret key is required")
	}
	api := &client.API{}
	api.Init(secretKey, nil)
	return &StripeProcessor{api: api}, nil
}

func (p *StripeProcessor) CreateIntent(ctx context.Context, params IntentParams) (*Intent, error) {
	currency := params.Currency
	if currency == "" {
		currency = string(stripe.CurrencyUSD)
	}

	piParams := &stripe.PaymentIntentParams{
		Params: stripe.Params{
			Context: ctx,
		},
		Amount:      stripe.Int64(params.AmountCents),
		Currency:    stripe.String(currency),
		Description: stripe.String(params.Description),
	}
	piParams.AddMetadata("service", "refactor_agent")
	piParams.AddMetadata("credits", strconv.FormatInt(params.Credits, 10))

	pi, err := p.api.PaymentIntents.New(piParams)
	if err != nil {
		return nil, fmt.Errorf("stripe payment intent creation failed: %w", err)
	}

	return &Intent{
		Ref:          pi.ID,
		ClientSecret: pi.ClientSecret,
	}, nil
}

func (p *StripeProcessor) VerifyIntent(ctx context.Context, ref string) (bool, error) {
	pi, err := p.api.PaymentIntents.Get(ref, &stripe.PaymentIntentParams{
		Params: stripe.Params{Context: ctx},
	})
	if err != nil {
		return false, fmt.Errorf("stripe payment intent lookup failed: %w", err)
	}
	return pi.Status == stripe.PaymentIntentStatusSucceeded, nil
}
