package storage

import "errors"

var (
	// ErrAccountNotFound is returned when no account exists for an API key
	ErrAccountNotFound = errors.New("account not found")

	// ErrPaymentNotFound is returned when a payment ref is not attached to the account
	ErrPaymentNotFound = errors.New("payment not found")

	// ErrDuplicateKey is returned when inserting an account whose API key already exists
	ErrDuplicateKey = errors.New("API key already exists")

	// ErrStaleBalance is returned by CompareAndSwapCredit when the stored
	// balance no longer matches the expected value
	ErrStaleBalance = errors.New("credit balance changed concurrently")

	// ErrPaymentNotPending is returned when a conditional payment state
	// transition finds the payment in a different state
	ErrPaymentNotPending = errors.New("payment is not in the expected state")
)
