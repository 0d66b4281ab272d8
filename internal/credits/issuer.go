package credits

import (
	"context"
	"fmt"
	"time"

	"github.com/renaissancebro/refactor-agent/internal/auth"
	"github.com/renaissancebro/refactor-agent/internal/models"
	"github.com/renaissancebro/refactor-agent/internal/payments"
	"github.com/renaissancebro/refactor-agent/internal/storage"
)

// CentsPerCredit is the purchase price: one credit per whole dollar.
const CentsPerCredit = 100

// IssuedIntent is what a buyer gets back: the key to use once the payment
// completes, and the processor handles needed to complete it.
type IssuedIntent struct {
	APIKey       string `json:"api_key"`
	PaymentRef   string `json:"payment_ref"`
	ClientSecret string `json:"client_secret,omitempty"`
	Credits      int64  `json:"credits"`
}

// Issuer mints API keys paired with pending payments. It does not move
// money; the payment processor does that out-of-band.
type Issuer struct {
	store     storage.KeyStore
	processor payments.Processor
}

func NewIssuer(store storage.KeyStore, processor payments.Processor) *Issuer {
	return &Issuer{store: store, processor: processor}
}

// IssueIntent creates a fresh account with zero balance and one pending
// payment worth creditsRequested. The account earns nothing until the
// payment is confirmed.
func (i *Issuer) IssueIntent(ctx context.Context, creditsRequested int64) (*IssuedIntent, error) {
	if creditsRequested <= 0 {
		return nil, ErrInvalidAmount
	}

	intent, err := i.processor.CreateIntent(ctx, payments.IntentParams{
		AmountCents: creditsRequested * CentsPerCredit,
		Currency:    "usd",
		Description: "Refactor Agent API Credits",
		Credits:     creditsRequested,
	})
	if err != nil {
		return nil, fmt.Errorf("payment intent creation failed: %w", err)
	}

	now := time.Now()
	rec := &models.AccountRecord{
		APIKey:        auth.GenerateAPIKey(),
		CreditBalance: 0,
		CreatedAt:     now,
	}
	rec.AttachPayment(&models.PendingPayment{
		PaymentRef:      intent.Ref,
		CreditsPromised: creditsRequested,
		State:           models.PaymentPending,
		CreatedAt:       now,
	})

	if err := i.store.Put(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to store account: %w", err)
	}

	return &IssuedIntent{
		APIKey:       rec.APIKey,
		PaymentRef:   intent.Ref,
		ClientSecret: intent.ClientSecret,
		Credits:      creditsRequested,
	}, nil
}
