package models

import (
	"time"
)

// PaymentState tracks the lifecycle of a pending payment.
type PaymentState string

const (
	PaymentPending   PaymentState = "pending"
	PaymentConfirmed PaymentState = "confirmed"
	PaymentExpired   PaymentState = "expired"
)

// PendingPayment is an outstanding purchase awaiting confirmation from the
// payment processor. CreditsPromised is granted exactly once, on the first
// confirmation.
type PendingPayment struct {
	PaymentRef      string       `db:"payment_ref" json:"payment_ref"`
	CreditsPromised int64        `db:"credits_promised" json:"credits_promised"`
	State           PaymentState `db:"state" json:"state"`
	CreatedAt       time.Time    `db:"created_at" json:"created_at"`
	ConfirmedAt     *time.Time   `db:"confirmed_at" json:"confirmed_at,omitempty"`
}

// AccountRecord is the per-API-key account. The key itself is opaque and
// immutable; CreditBalance never goes below zero.
type AccountRecord struct {
	APIKey          string                     `db:"api_key" json:"api_key"`
	CreditBalance   int64                      `db:"credit_balance" json:"credit_balance"`
	TotalRequests   int64                      `db:"total_requests" json:"total_requests"`
	LastUsedAt      *time.Time                 `db:"last_used_at" json:"last_used_at,omitempty"`
	CreatedAt       time.Time                  `db:"created_at" json:"created_at"`
	PendingPayments map[string]*PendingPayment `db:"-" json:"pending_payments,omitempty"`
}

// Payment returns the pending payment with the given ref, if attached.
func (a *AccountRecord) Payment(ref string) (*PendingPayment, bool) {
	p, ok := a.PendingPayments[ref]
	return p, ok
}

// AttachPayment adds a pending payment to the account.
func (a *AccountRecord) AttachPayment(p *PendingPayment) {
	if a.PendingPayments == nil {
		a.PendingPayments = make(map[string]*PendingPayment)
	}
	a.PendingPayments[p.PaymentRef] = p
}

// Clone returns a deep copy so stores can hand out records without sharing
// mutable state with callers.
func (a *AccountRecord) Clone() *AccountRecord {
	cp := *a
	if a.LastUsedAt != nil {
		t := *a.LastUsedAt
		cp.LastUsedAt = &t
	}
	cp.PendingPayments = make(map[string]*PendingPayment, len(a.PendingPayments))
	for ref, p := range a.PendingPayments {
		pc := *p
		if p.ConfirmedAt != nil {
			t := *p.ConfirmedAt
			pc.ConfirmedAt = &t
		}
		cp.PendingPayments[ref] = &pc
	}
	return &cp
}
