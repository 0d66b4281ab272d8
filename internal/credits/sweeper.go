package credits

import (
	"context"
	"time"

	"github.com/renaissancebro/refactor-agent/internal/storage"
	"github.com/renaissancebro/refactor-agent/internal/utils"
)

// Sweeper periodically expires pending payments that were never confirmed,
// so abandoned checkouts do not accumulate forever. Expired payments cannot
// be confirmed; the buyer has to issue a new intent.
type Sweeper struct {
	store    storage.KeyStore
	ttl      time.Duration
	interval time.Duration
	logger   *utils.Logger

	stopChan    chan struct{}
	stoppedChan chan struct{}
}

func NewSweeper(store storage.KeyStore, ttl, interval time.Duration) *Sweeper {
	return &Sweeper{
		store:       store,
		ttl:         ttl,
		interval:    interval,
		logger:      utils.NewLogger("payment-sweeper"),
		stopChan:    make(chan struct{}),
		stoppedChan: make(chan struct{}),
	}
}

// Start launches the sweep loop.
func (s *Sweeper) Start(ctx context.Context) {
	go s.run(ctx)
}

// Stop stops the sweep loop and waits for it to exit.
func (s *Sweeper) Stop() {
	close(s.stopChan)
	<-s.stoppedChan
}

func (s *Sweeper) run(ctx context.Context) {
	defer close(s.stoppedChan)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep(ctx)
		case <-s.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	cutoff := time.Now().Add(-s.ttl)
	swept, err := s.store.ExpirePending(ctx, cutoff)
	if err != nil {
		s.logger.Error("Failed to expire pending payments", "error", err)
		return
	}
	if swept > 0 {
		s.logger.Info("Expired stale pending payments", "count", swept)
	}
}
