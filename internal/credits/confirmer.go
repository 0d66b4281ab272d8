package credits

import (
	"context"
	"errors"

	"github.com/renaissancebro/refactor-agent/internal/models"
	"github.com/renaissancebro/refactor-agent/internal/storage"
)

// Confirmer credits an account once its payment completes. It trusts the
// caller to have verified the payment with the processor; verification is
// the HTTP layer's job.
type Confirmer struct {
	store storage.KeyStore
}

func NewConfirmer(store storage.KeyStore) *Confirmer {
	return &Confirmer{store: store}
}

// Confirm transitions the payment pending -> confirmed and grants its
// credits. The transition and the grant are one atomic store operation, so
// a failure leaves the payment pending and retryable. Re-confirming an
// already-confirmed payment is a no-op success: payment processors retry
// webhooks, and a retry must never double-credit. An expired payment is
// treated as unknown.
func (c *Confirmer) Confirm(ctx context.Context, apiKey, paymentRef string) (int64, error) {
	balance, err := c.store.ConfirmPayment(ctx, apiKey, paymentRef)
	switch {
	case err == nil:
		return balance, nil
	case errors.Is(err, storage.ErrAccountNotFound):
		return 0, ErrUnknownAPIKey
	case errors.Is(err, storage.ErrPaymentNotFound):
		return 0, ErrUnknownPayment
	case errors.Is(err, storage.ErrPaymentNotPending):
		// Already settled one way or the other; re-read to tell which.
		rec, gerr := c.store.Get(ctx, apiKey)
		if gerr != nil {
			return 0, gerr
		}
		p, ok := rec.Payment(paymentRef)
		if !ok || p.State == models.PaymentExpired {
			return 0, ErrUnknownPayment
		}
		return rec.CreditBalance, nil
	default:
		return 0, err
	}
}
