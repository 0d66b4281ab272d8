package storage

import (
	"context"
	"sync"

	"github.com/renaissancebro/refactor-agent/internal/models"
)

// UsageStore persists completed-call usage records.
type UsageStore interface {
	InsertUsageBatch(ctx context.Context, records []*models.UsageRecord) error
}

// MemoryUsageStore keeps usage records in memory for standalone deployments
// and tests.
type MemoryUsageStore struct {
	mu      sync.RWMutex
	records []*models.UsageRecord
}

func NewMemoryUsageStore() *MemoryUsageStore {
	return &MemoryUsageStore{}
}

func (s *MemoryUsageStore) InsertUsageBatch(ctx context.Context, records []*models.UsageRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, records...)
	return nil
}

// Records returns a snapshot of all stored records.
func (s *MemoryUsageStore) Records() []*models.UsageRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.UsageRecord, len(s.records))
	copy(out, s.records)
	return out
}
