// Package queue provides the async pipeline between request handling and
// usage-record persistence. Two backends:
//
//  1. Memory queue (channel-based): no persistence, no external deps; the
//     default for standalone deployments, matching the in-memory key store.
//  2. Redis queue (list-based): survives restarts and supports multiple
//     workers; used when Redis is configured.
//
// Failed batches are retried with backoff and eventually parked in a
// dead-letter queue so a bad record never blocks the pipeline.
package queue

import (
	"context"
	"time"
)

// Queue is a FIFO of JSON-serializable items.
type Queue interface {
	// Enqueue adds an item to the queue
	Enqueue(ctx context.Context, item interface{}) error

	// DequeueWithTimeout retrieves up to maxItems items, waiting at most
	// timeout for the first one. Returns an empty slice on timeout.
	DequeueWithTimeout(ctx context.Context, maxItems int, timeout time.Duration) ([]interface{}, error)

	// Length returns the current queue length
	Length(ctx context.Context) (int, error)

	// Close shuts down the queue gracefully
	Close() error
}

// DeadLetterQueue holds items that exhausted their retries.
type DeadLetterQueue interface {
	// Add parks a failed item with its error
	Add(ctx context.Context, item interface{}, err error) error

	// List retrieves up to maxItems parked items
	List(ctx context.Context, maxItems int) ([]DeadLetterItem, error)

	// Close shuts down the dead letter queue
	Close() error
}

// DeadLetterItem represents an item in the dead letter queue
type DeadLetterItem struct {
	ID        string
	Item      interface{}
	Error     string
	Timestamp time.Time
}

// Config holds queue configuration
type Config struct {
	// BatchSize is the maximum number of items to process in a batch
	BatchSize int

	// BatchTimeout is how long to wait before processing a partial batch
	BatchTimeout time.Duration

	// MaxRetries is the maximum number of retry attempts
	MaxRetries int

	// RetryBackoff is the initial backoff duration for retries
	RetryBackoff time.Duration

	// UseRedis indicates whether to use Redis or the in-memory queue
	UseRedis bool

	// RedisAddr is the Redis server address (if UseRedis is true)
	RedisAddr string

	// RedisPassword is the Redis password (if UseRedis is true)
	RedisPassword string

	// RedisDB is the Redis database number (if UseRedis is true)
	RedisDB int

	// QueueName is the name/key for the queue
	QueueName string
}

// DefaultConfig returns default queue configuration
func DefaultConfig(queueName string) *Config {
	return &Config{
		BatchSize:    100,
		BatchTimeout: 5 * time.Second,
		MaxRetries:   3,
		RetryBackoff: 1 * time.Second,
		QueueName:    queueName,
	}
}
