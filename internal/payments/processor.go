package payments

import "context"

// IntentParams describes a requested purchase.
type IntentParams struct {
	AmountCents int64
	Currency    string
	Description string
	Credits     int64
}

// Intent is the processor's handle for a purchase in flight.
type Intent struct {
	Ref          string // processor-side identifier, correlated with our PendingPayment
	ClientSecret string // handed to the buyer's checkout page
}

// Processor is the external payment boundary. CreateIntent asks the
// processor to set up a charge; VerifyIntent reports whether the charge
// actually completed. Crediting the account stays in the credits package.
type Processor interface {
	CreateIntent(ctx context.Context, params IntentParams) (*Intent, error)
	VerifyIntent(ctx context.Context, ref string) (bool, error)
}
