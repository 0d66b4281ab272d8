package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/renaissancebro/refactor-agent/internal/models"
	"github.com/renaissancebro/refactor-agent/internal/queue"
	"github.com/renaissancebro/refactor-agent/internal/utils"
)

// UsageQueueWorker drains the usage queue and batch-inserts records into the
// usage store. Batches that keep failing after MaxRetries go to the DLQ.
type UsageQueueWorker struct {
	queue       queue.Queue
	dlq         queue.DeadLetterQueue
	store       UsageStore
	config      *queue.Config
	stopChan    chan struct{}
	stoppedChan chan struct{}
}

// NewUsageQueueWorker creates a new usage queue worker
func NewUsageQueueWorker(q queue.Queue, dlq queue.DeadLetterQueue, store UsageStore, config *queue.Config) *UsageQueueWorker {
	if config == nil {
		config = queue.DefaultConfig("usage")
	}
	return &UsageQueueWorker{
		queue:       q,
		dlq:         dlq,
		store:       store,
		config:      config,
		stopChan:    make(chan struct{}),
		stoppedChan: make(chan struct{}),
	}
}

// Start starts the worker goroutine
func (w *UsageQueueWorker) Start(ctx context.Context) {
	go w.run(ctx)
}

// Stop gracefully stops the worker
func (w *UsageQueueWorker) Stop() error {
	close(w.stopChan)
	<-w.stoppedChan
	return nil
}

// Enqueue adds a usage record to the queue
func (w *UsageQueueWorker) Enqueue(ctx context.Context, record *models.UsageRecord) error {
	return w.queue.Enqueue(ctx, record)
}

func (w *UsageQueueWorker) run(ctx context.Context) {
	defer close(w.stoppedChan)

	logger := utils.NewLogger("usage-worker")

	for {
		select {
		case <-w.stopChan:
			logger.Info("Usage worker stopping")
			return
		case <-ctx.Done():
			logger.Info("Usage worker context cancelled")
			return
		default:
			w.processBatch(ctx, logger)
		}
	}
}

func (w *UsageQueueWorker) processBatch(ctx context.Context, logger *utils.Logger) {
	items, err := w.queue.DequeueWithTimeout(ctx, w.config.BatchSize, w.config.BatchTimeout)
	if err != nil {
		if err != queue.ErrQueueClosed && ctx.Err() == nil {
			logger.Error("Failed to dequeue usage records", "error", err)
			time.Sleep(1 * time.Second) // back off on error
		}
		return
	}

	if len(items) == 0 {
		return
	}

	records := make([]*models.UsageRecord, 0, len(items))
	for _, item := range items {
		record, err := w.unmarshalItem(item)
		if err != nil {
			logger.Error("Failed to unmarshal usage record", "error", err)
			continue
		}
		records = append(records, record)
	}

	if len(records) == 0 {
		return
	}

	backoff := w.config.RetryBackoff
	for attempt := 0; ; attempt++ {
		err := w.store.InsertUsageBatch(ctx, records)
		if err == nil {
			logger.Debug("Inserted usage batch", "count", len(records))
			return
		}
		if attempt >= w.config.MaxRetries {
			logger.Error("Usage batch exhausted retries, parking in DLQ", "count", len(records), "error", err)
			for _, record := range records {
				if dlqErr := w.dlq.Add(ctx, record, err); dlqErr != nil {
					logger.Error("Failed to add usage record to DLQ", "error", dlqErr)
				}
			}
			return
		}
		logger.Warn("Usage batch insert failed, retrying", "attempt", attempt+1, "error", err)
		select {
		case <-time.After(backoff):
			backoff *= 2
		case <-ctx.Done():
			return
		case <-w.stopChan:
			return
		}
	}
}

func (w *UsageQueueWorker) unmarshalItem(item interface{}) (*models.UsageRecord, error) {
	switch v := item.(type) {
	case *models.UsageRecord:
		// Memory queue hands the record back directly.
		return v, nil
	case json.RawMessage:
		var record models.UsageRecord
		if err := json.Unmarshal(v, &record); err != nil {
			return nil, err
		}
		return &record, nil
	default:
		return nil, fmt.Errorf("unexpected queue item type %T", item)
	}
}
