package payments

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// NoopProcessor mints fake payment refs and verifies everything. Used in
// development and tests when no Stripe key is configured.
type NoopProcessor struct{}

func NewNoopProcessor() *NoopProcessor {
	return &NoopProcessor{}
}

func (p *NoopProcessor) CreateIntent(ctx context.Context, params IntentParams) (*Intent, error) {
	ref := fmt.Sprintf("pi_dev_%s", uuid.New().String())
	return &Intent{
		Ref:          ref,
		ClientSecret: ref + "_secret",
	}, nil
}

func (p *NoopProcessor) VerifyIntent(ctx context.Context, ref string) (bool, error) {
	return true, nil
}
