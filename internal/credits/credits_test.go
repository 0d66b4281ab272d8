package credits

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/renaissancebro/refactor-agent/internal/models"
	"github.com/renaissancebro/refactor-agent/internal/payments"
	"github.com/renaissancebro/refactor-agent/internal/storage"
)

func newTestIssuer() (*Issuer, *storage.MemoryKeyStore) {
	store := storage.NewMemoryKeyStore()
	return NewIssuer(store, payments.NewNoopProcessor()), store
}

func TestIssueAndConfirm(t *testing.T) {
	ctx := context.Background()
	issuer, store := newTestIssuer()
	confirmer := NewConfirmer(store)

	intent, err := issuer.IssueIntent(ctx, 5)
	if err != nil {
		t.Fatalf("IssueIntent failed: %v", err)
	}
	if intent.APIKey == "" || intent.PaymentRef == "" {
		t.Fatalf("intent missing key or ref: %+v", intent)
	}
	if intent.Credits != 5 {
		t.Errorf("expected 5 credits promised, got %d", intent.Credits)
	}

	// Balance stays zero until the payment confirms.
	rec, err := store.Get(ctx, intent.APIKey)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if rec.CreditBalance != 0 {
		t.Errorf("expected zero balance before confirm, got %d", rec.CreditBalance)
	}

	balance, err := confirmer.Confirm(ctx, intent.APIKey, intent.PaymentRef)
	if err != nil {
		t.Fatalf("Confirm failed: %v", err)
	}
	if balance != 5 {
		t.Errorf("expected balance 5 after confirm, got %d", balance)
	}
}

func TestConfirmIsIdempotent(t *testing.T) {
	ctx := context.Background()
	issuer, store := newTestIssuer()
	confirmer := NewConfirmer(store)

	intent, err := issuer.IssueIntent(ctx, 5)
	if err != nil {
		t.Fatalf("IssueIntent failed: %v", err)
	}

	for i := 0; i < 3; i++ {
		balance, err := confirmer.Confirm(ctx, intent.APIKey, intent.PaymentRef)
		if err != nil {
			t.Fatalf("Confirm #%d failed: %v", i+1, err)
		}
		if balance != 5 {
			t.Errorf("Confirm #%d: expected balance 5, got %d", i+1, balance)
		}
	}
}

func TestIssueIntentRejectsNonPositiveAmounts(t *testing.T) {
	ctx := context.Background()

	for _, credits := range []int64{0, -3} {
		issuer, store := newTestIssuer()
		_, err := issuer.IssueIntent(ctx, credits)
		if !errors.Is(err, ErrInvalidAmount) {
			t.Errorf("IssueIntent(%d): expected ErrInvalidAmount, got %v", credits, err)
		}
		recs, _ := store.List(ctx)
		if len(recs) != 0 {
			t.Errorf("IssueIntent(%d): expected no account stored, found %d", credits, len(recs))
		}
	}
}

func TestConfirmErrors(t *testing.T) {
	ctx := context.Background()
	issuer, store := newTestIssuer()
	confirmer := NewConfirmer(store)

	intent, err := issuer.IssueIntent(ctx, 5)
	if err != nil {
		t.Fatalf("IssueIntent failed: %v", err)
	}

	tests := []struct {
		name    string
		apiKey  string
		ref     string
		wantErr error
	}{
		{"unknown key", "rfa_nope", intent.PaymentRef, ErrUnknownAPIKey},
		{"unknown ref", intent.APIKey, "pi_nope", ErrUnknownPayment},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := confirmer.Confirm(ctx, tt.apiKey, tt.ref)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}

	rec, _ := store.Get(ctx, intent.APIKey)
	if rec.CreditBalance != 0 {
		t.Errorf("failed confirms must not credit the account, balance %d", rec.CreditBalance)
	}
}

// flakyConfirmStore fails ConfirmPayment a set number of times before
// delegating, standing in for a store with transient outages.
type flakyConfirmStore struct {
	*storage.MemoryKeyStore
	failures int
}

func (s *flakyConfirmStore) ConfirmPayment(ctx context.Context, apiKey, paymentRef string) (int64, error) {
	if s.failures > 0 {
		s.failures--
		return 0, errors.New("connection reset by peer")
	}
	return s.MemoryKeyStore.ConfirmPayment(ctx, apiKey, paymentRef)
}

func TestConfirmRetriesAfterTransientStoreFailure(t *testing.T) {
	ctx := context.Background()
	issuer, mem := newTestIssuer()
	store := &flakyConfirmStore{MemoryKeyStore: mem, failures: 1}
	confirmer := NewConfirmer(store)

	intent, err := issuer.IssueIntent(ctx, 5)
	if err != nil {
		t.Fatalf("IssueIntent failed: %v", err)
	}

	if _, err := confirmer.Confirm(ctx, intent.APIKey, intent.PaymentRef); err == nil {
		t.Fatal("expected the transient failure to surface")
	}

	// The payment must still be pending, so a retry grants the credits.
	rec, _ := mem.Get(ctx, intent.APIKey)
	p, _ := rec.Payment(intent.PaymentRef)
	if p.State != models.PaymentPending {
		t.Fatalf("failed confirm left payment %s", p.State)
	}

	balance, err := confirmer.Confirm(ctx, intent.APIKey, intent.PaymentRef)
	if err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if balance != 5 {
		t.Errorf("expected retry to grant the promised 5 credits, got %d", balance)
	}
}

func TestConfirmExpiredPayment(t *testing.T) {
	ctx := context.Background()
	issuer, store := newTestIssuer()
	confirmer := NewConfirmer(store)

	intent, err := issuer.IssueIntent(ctx, 5)
	if err != nil {
		t.Fatalf("IssueIntent failed: %v", err)
	}

	swept, err := store.ExpirePending(ctx, time.Now().Add(time.Minute))
	if err != nil {
		t.Fatalf("ExpirePending failed: %v", err)
	}
	if swept != 1 {
		t.Fatalf("expected 1 swept payment, got %d", swept)
	}

	if _, err := confirmer.Confirm(ctx, intent.APIKey, intent.PaymentRef); !errors.Is(err, ErrUnknownPayment) {
		t.Errorf("expired payment: expected ErrUnknownPayment, got %v", err)
	}
	rec, _ := store.Get(ctx, intent.APIKey)
	if rec.CreditBalance != 0 {
		t.Errorf("expired payment must not credit the account, balance %d", rec.CreditBalance)
	}
}

func fundedAccount(t *testing.T, store *storage.MemoryKeyStore, balance int64) string {
	t.Helper()
	rec := &models.AccountRecord{
		APIKey:        "rfa_test" + t.Name(),
		CreditBalance: balance,
		CreatedAt:     time.Now(),
	}
	if err := store.Put(context.Background(), rec); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	return rec.APIKey
}

func TestAuthorizeAndReserveUnauthorized(t *testing.T) {
	ctx := context.Background()
	gate := NewGate(storage.NewMemoryKeyStore())

	for _, token := range []string{"", "rfa_unknown"} {
		if _, err := gate.AuthorizeAndReserve(ctx, token); !errors.Is(err, ErrUnauthorized) {
			t.Errorf("token %q: expected ErrUnauthorized, got %v", token, err)
		}
	}
}

func TestAuthorizeAndReserveInsufficientCredit(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryKeyStore()
	gate := NewGate(store)
	key := fundedAccount(t, store, 0)

	if _, err := gate.AuthorizeAndReserve(ctx, key); !errors.Is(err, ErrInsufficientCredit) {
		t.Fatalf("expected ErrInsufficientCredit, got %v", err)
	}

	// A refused request must not change the record.
	rec, _ := store.Get(ctx, key)
	if rec.CreditBalance != 0 || rec.TotalRequests != 0 {
		t.Errorf("refused request mutated account: %+v", rec)
	}
}

func TestCommitChargesExactlyOne(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryKeyStore()
	gate := NewGate(store)
	key := fundedAccount(t, store, 3)

	res, err := gate.AuthorizeAndReserve(ctx, key)
	if err != nil {
		t.Fatalf("AuthorizeAndReserve failed: %v", err)
	}
	if err := res.Commit(ctx); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	rec, _ := store.Get(ctx, key)
	if rec.CreditBalance != 2 {
		t.Errorf("expected balance 2, got %d", rec.CreditBalance)
	}
	if rec.TotalRequests != 1 {
		t.Errorf("expected 1 request recorded, got %d", rec.TotalRequests)
	}
	if rec.LastUsedAt == nil {
		t.Error("expected last-used time to be stamped")
	}
}

func TestRollbackRestoresCredit(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryKeyStore()
	gate := NewGate(store)
	key := fundedAccount(t, store, 3)

	res, err := gate.AuthorizeAndReserve(ctx, key)
	if err != nil {
		t.Fatalf("AuthorizeAndReserve failed: %v", err)
	}
	if err := res.Rollback(ctx); err != nil {
		t.Fatalf("Rollback failed: %v", err)
	}

	rec, _ := store.Get(ctx, key)
	if rec.CreditBalance != 3 {
		t.Errorf("expected balance restored to 3, got %d", rec.CreditBalance)
	}
	if rec.TotalRequests != 0 {
		t.Errorf("rollback must not count a request, got %d", rec.TotalRequests)
	}
}

func TestSettlementIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryKeyStore()
	gate := NewGate(store)
	key := fundedAccount(t, store, 3)

	res, err := gate.AuthorizeAndReserve(ctx, key)
	if err != nil {
		t.Fatalf("AuthorizeAndReserve failed: %v", err)
	}

	// The defer-rollback-then-commit pattern settles twice; only the first
	// settlement may take effect.
	if err := res.Commit(ctx); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	if err := res.Rollback(ctx); err != nil {
		t.Fatalf("Rollback after Commit failed: %v", err)
	}
	if err := res.Commit(ctx); err != nil {
		t.Fatalf("second Commit failed: %v", err)
	}

	rec, _ := store.Get(ctx, key)
	if rec.CreditBalance != 2 {
		t.Errorf("expected balance 2, got %d", rec.CreditBalance)
	}
	if rec.TotalRequests != 1 {
		t.Errorf("expected exactly 1 request recorded, got %d", rec.TotalRequests)
	}
}

func TestConcurrentReserveOnLastCredit(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryKeyStore()
	gate := NewGate(store)
	key := fundedAccount(t, store, 1)

	const workers = 16
	var wg sync.WaitGroup
	results := make(chan error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := gate.AuthorizeAndReserve(ctx, key)
			if err == nil {
				err = res.Commit(ctx)
			}
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var wins, refusals int
	for err := range results {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ErrInsufficientCredit):
			refusals++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if wins != 1 {
		t.Errorf("expected exactly 1 winner on a balance of 1, got %d", wins)
	}
	if refusals != workers-1 {
		t.Errorf("expected %d refusals, got %d", workers-1, refusals)
	}

	rec, _ := store.Get(ctx, key)
	if rec.CreditBalance != 0 {
		t.Errorf("expected final balance 0, got %d", rec.CreditBalance)
	}
	if rec.TotalRequests != 1 {
		t.Errorf("expected 1 request recorded, got %d", rec.TotalRequests)
	}
}

func TestConcurrentReservesNeverOverspend(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryKeyStore()
	gate := NewGate(store)
	key := fundedAccount(t, store, 10)

	const workers = 25
	var wg sync.WaitGroup
	var wins int64
	var mu sync.Mutex

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := gate.AuthorizeAndReserve(ctx, key)
			if err != nil {
				return
			}
			if err := res.Commit(ctx); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	rec, _ := store.Get(ctx, key)
	if rec.CreditBalance < 0 {
		t.Fatalf("balance went negative: %d", rec.CreditBalance)
	}
	if rec.CreditBalance+wins != 10 {
		t.Errorf("credits not conserved: balance %d + wins %d != 10", rec.CreditBalance, wins)
	}
}

func TestSweeperExpiresStalePayments(t *testing.T) {
	ctx := context.Background()
	issuer, store := newTestIssuer()

	intent, err := issuer.IssueIntent(ctx, 5)
	if err != nil {
		t.Fatalf("IssueIntent failed: %v", err)
	}

	// Backdate the payment past the TTL.
	rec, _ := store.Get(ctx, intent.APIKey)
	p, _ := rec.Payment(intent.PaymentRef)
	p.CreatedAt = time.Now().Add(-48 * time.Hour)
	stale := storage.NewMemoryKeyStore()
	if err := stale.Put(ctx, rec); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	sweeper := NewSweeper(stale, 24*time.Hour, 10*time.Millisecond)
	sweeper.Start(ctx)
	defer sweeper.Stop()

	deadline := time.After(2 * time.Second)
	for {
		got, _ := stale.Get(ctx, intent.APIKey)
		pp, _ := got.Payment(intent.PaymentRef)
		if pp.State == models.PaymentExpired {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("payment still %s after sweeps", pp.State)
		case <-time.After(20 * time.Millisecond):
		}
	}
}
