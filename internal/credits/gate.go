package credits

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/renaissancebro/refactor-agent/internal/storage"
)

// casRetries bounds how many times a reservation re-reads after losing a
// compare-and-swap race before giving up.
const casRetries = 8

// Gate is the authorization middleware core: it resolves bearer tokens,
// reserves one credit up front, and settles the reservation after the
// downstream call. The decrement is the serialization point; two concurrent
// requests against a balance of 1 cannot both pass.
type Gate struct {
	store storage.KeyStore
}

func NewGate(store storage.KeyStore) *Gate {
	return &Gate{store: store}
}

// AuthorizeAndReserve resolves the bearer token and atomically decrements
// one credit. The returned reservation MUST be settled with Commit or
// Rollback on every exit path; the caller holds no store lock while the
// downstream call runs.
func (g *Gate) AuthorizeAndReserve(ctx context.Context, bearerToken string) (*Reservation, error) {
	if bearerToken == "" {
		return nil, ErrUnauthorized
	}

	for attempt := 0; attempt < casRetries; attempt++ {
		rec, err := g.store.Get(ctx, bearerToken)
		if err != nil {
			if errors.Is(err, storage.ErrAccountNotFound) {
				return nil, ErrUnauthorized
			}
			return nil, err
		}

		if rec.CreditBalance < 1 {
			return nil, ErrInsufficientCredit
		}

		err = g.store.CompareAndSwapCredit(ctx, bearerToken, rec.CreditBalance, rec.CreditBalance-1)
		if errors.Is(err, storage.ErrStaleBalance) {
			continue // lost the race, re-read and retry
		}
		if err != nil {
			return nil, err
		}

		return &Reservation{store: g.store, apiKey: bearerToken}, nil
	}

	return nil, storage.ErrStaleBalance
}

// Reservation is a provisionally spent credit. Commit makes the charge
// permanent and records the use; Rollback restores the credit. A settled
// reservation ignores further Commit/Rollback calls, so
//
//	res, err := gate.AuthorizeAndReserve(ctx, token)
//	...
//	defer res.Rollback(ctx)
//	...
//	res.Commit(ctx)
//
// charges exactly one credit on success and zero on any failure path.
type Reservation struct {
	store  storage.KeyStore
	apiKey string

	mu      sync.Mutex
	settled bool
}

// APIKey returns the key the reservation was made against.
func (r *Reservation) APIKey() string {
	return r.apiKey
}

// Commit finalizes the reservation: the decremented credit is kept,
// the request counter increments, and the last-used time is stamped.
func (r *Reservation) Commit(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.settled {
		return nil
	}
	r.settled = true
	return r.store.RecordUse(ctx, r.apiKey, time.Now())
}

// Rollback restores the reserved credit without counting a request. It must
// run on every failure path so a failed call never costs the caller.
func (r *Reservation) Rollback(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.settled {
		return nil
	}
	r.settled = true
	_, err := r.store.AddCredits(ctx, r.apiKey, 1)
	return err
}
