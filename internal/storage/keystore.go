package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/renaissancebro/refactor-agent/internal/models"
)

// KeyStore holds per-API-key account records. Implementations must make
// CompareAndSwapCredit atomic with respect to concurrent callers on the same
// key: it is the serialization point for credit reservations.
type KeyStore interface {
	// Get returns the account for an API key, or ErrAccountNotFound.
	Get(ctx context.Context, apiKey string) (*models.AccountRecord, error)

	// Put inserts a new account. Returns ErrDuplicateKey if the key exists.
	Put(ctx context.Context, rec *models.AccountRecord) error

	// CompareAndSwapCredit sets the credit balance to new only if it still
	// equals old. Returns ErrStaleBalance on mismatch.
	CompareAndSwapCredit(ctx context.Context, apiKey string, old, new int64) error

	// AddCredits atomically adds delta to the balance and returns the new value.
	AddCredits(ctx context.Context, apiKey string, delta int64) (int64, error)

	// RecordUse increments the request counter and stamps the last-used time.
	RecordUse(ctx context.Context, apiKey string, at time.Time) error

	// ConfirmPayment atomically moves a pending payment to confirmed and
	// grants its promised credits, returning the new balance. The two steps
	// are one operation so a failure can never leave a confirmed payment
	// uncredited. Returns ErrPaymentNotPending if the payment exists but is
	// not pending.
	ConfirmPayment(ctx context.Context, apiKey, paymentRef string) (int64, error)

	// ExpirePending marks all pending payments created before the cutoff as
	// expired and returns how many were swept.
	ExpirePending(ctx context.Context, before time.Time) (int, error)

	// List returns all accounts, newest first.
	List(ctx context.Context) ([]*models.AccountRecord, error)
}

// MemoryKeyStore is the baseline process-lifetime store. All operations run
// under a single mutex; records handed out are deep copies.
type MemoryKeyStore struct {
	mu       sync.RWMutex
	accounts map[string]*models.AccountRecord
}

func NewMemoryKeyStore() *MemoryKeyStore {
	return &MemoryKeyStore{
		accounts: make(map[string]*models.AccountRecord),
	}
}

func (s *MemoryKeyStore) Get(ctx context.Context, apiKey string) (*models.AccountRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.accounts[apiKey]
	if !ok {
		return nil, ErrAccountNotFound
	}
	return rec.Clone(), nil
}

func (s *MemoryKeyStore) Put(ctx context.Context, rec *models.AccountRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[rec.APIKey]; ok {
		return ErrDuplicateKey
	}
	s.accounts[rec.APIKey] = rec.Clone()
	return nil
}

func (s *MemoryKeyStore) CompareAndSwapCredit(ctx context.Context, apiKey string, old, new int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.accounts[apiKey]
	if !ok {
		return ErrAccountNotFound
	}
	if rec.CreditBalance != old {
		return ErrStaleBalance
	}
	rec.CreditBalance = new
	return nil
}

func (s *MemoryKeyStore) AddCredits(ctx context.Context, apiKey string, delta int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.accounts[apiKey]
	if !ok {
		return 0, ErrAccountNotFound
	}
	rec.CreditBalance += delta
	return rec.CreditBalance, nil
}

func (s *MemoryKeyStore) RecordUse(ctx context.Context, apiKey string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.accounts[apiKey]
	if !ok {
		return ErrAccountNotFound
	}
	rec.TotalRequests++
	t := at
	rec.LastUsedAt = &t
	return nil
}

func (s *MemoryKeyStore) ConfirmPayment(ctx context.Context, apiKey, paymentRef string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.accounts[apiKey]
	if !ok {
		return 0, ErrAccountNotFound
	}
	p, ok := rec.PendingPayments[paymentRef]
	if !ok {
		return 0, ErrPaymentNotFound
	}
	if p.State != models.PaymentPending {
		return 0, ErrPaymentNotPending
	}
	now := time.Now()
	p.State = models.PaymentConfirmed
	p.ConfirmedAt = &now
	rec.CreditBalance += p.CreditsPromised
	return rec.CreditBalance, nil
}

func (s *MemoryKeyStore) ExpirePending(ctx context.Context, before time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	swept := 0
	for _, rec := range s.accounts {
		for _, p := range rec.PendingPayments {
			if p.State == models.PaymentPending && p.CreatedAt.Before(before) {
				p.State = models.PaymentExpired
				swept++
			}
		}
	}
	return swept, nil
}

func (s *MemoryKeyStore) List(ctx context.Context) ([]*models.AccountRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.AccountRecord, 0, len(s.accounts))
	for _, rec := range s.accounts {
		out = append(out, rec.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}
