package credits

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidAmount is returned when a payment intent requests zero or
	// negative credits
	ErrInvalidAmount = errors.New("credits requested must be positive")

	// ErrUnknownAPIKey is returned when confirming a payment for a key that
	// was never issued
	ErrUnknownAPIKey = errors.New("unknown API key")

	// ErrUnknownPayment is returned when a payment ref is not attached to the
	// account (or has expired)
	ErrUnknownPayment = errors.New("unknown payment reference")

	// ErrUnauthorized is returned when a bearer token matches no account
	ErrUnauthorized = errors.New("invalid API key")

	// ErrInsufficientCredit is returned when the account has no credit left
	ErrInsufficientCredit = errors.New("insufficient credits")

	// ErrDownstreamFailure wraps any refactor-invoker error; it always means
	// the reserved credit was rolled back
	ErrDownstreamFailure = errors.New("downstream refactor call failed")
)

// WrapDownstream tags an invoker error as a downstream failure.
func WrapDownstream(err error) error {
	return fmt.Errorf("%w: %w", ErrDownstreamFailure, err)
}
