package httpapi

import (
	"fmt"
	"net/http"

	"github.com/redis/go-redis/v9"

	"github.com/renaissancebro/refactor-agent/internal/agent"
	"github.com/renaissancebro/refactor-agent/internal/config"
	"github.com/renaissancebro/refactor-agent/internal/credits"
	"github.com/renaissancebro/refactor-agent/internal/logging"
	"github.com/renaissancebro/refactor-agent/internal/middleware"
	"github.com/renaissancebro/refactor-agent/internal/payments"
	"github.com/renaissancebro/refactor-agent/internal/queue"
	"github.com/renaissancebro/refactor-agent/internal/ratelimit"
	"github.com/renaissancebro/refactor-agent/internal/storage"
)

// Dependencies aggregates all services the HTTP layer needs.
type Dependencies struct {
	Store     storage.KeyStore
	Issuer    *credits.Issuer
	Confirmer *credits.Confirmer
	Gate      *credits.Gate
	Processor payments.Processor
	Agent     agent.Invoker
	RateLimit ratelimit.Limiter
	TxLogger  *logging.TransactionLogger

	UsageWorker *storage.UsageQueueWorker
	Sweeper     *credits.Sweeper

	Config *config.Config

	redisClient *redis.Client
}

// NewRouter creates an HTTP router with all dependencies wired up.
func NewRouter(cfg *config.Config) (*http.ServeMux, *Dependencies, error) {
	// Key store: Postgres when a database is configured, in-memory otherwise.
	var keyStore storage.KeyStore
	var usageStore storage.UsageStore
	if cfg.Database.URL != "" {
		pg, err := storage.NewPostgresKeyStore(storage.DBConfig{
			URL:             cfg.Database.URL,
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
			ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		keyStore = pg
		usageStore = pg
	} else {
		keyStore = storage.NewMemoryKeyStore()
		usageStore = storage.NewMemoryUsageStore()
	}

	// Redis client, shared by the usage queue and the rate limiter.
	var redisClient *redis.Client
	if cfg.Redis.Address != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	// Payment processor: Stripe when configured, noop for local development.
	var processor payments.Processor
	if cfg.StripeSecretKey != "" {
		stripeProc, err := payments.NewStripeProcessor(cfg.StripeSecretKey)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize Stripe: %w", err)
		}
		processor = stripeProc
	} else {
		processor = payments.NewNoopProcessor()
	}

	// Refactor agent. Left nil when no key is configured; the handler
	// reports 503 instead of failing startup, matching how the original
	// service degraded.
	var invoker agent.Invoker
	if cfg.OpenAI.APIKey != "" {
		openAIAgent, err := agent.NewOpenAIAgent(agent.OpenAIConfig{
			APIKey:  cfg.OpenAI.APIKey,
			Model:   cfg.OpenAI.Model,
			BaseURL: cfg.OpenAI.BaseURL,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize agent: %w", err)
		}
		invoker = openAIAgent
	}

	// Usage queue: Redis-backed when available, in-memory otherwise.
	usageQueueCfg := queue.DefaultConfig("usage")
	var usageQueue queue.Queue
	var usageDLQ queue.DeadLetterQueue
	if redisClient != nil {
		usageQueue = queue.NewRedisQueueWithClient(redisClient, usageQueueCfg.QueueName)
		usageDLQ = queue.NewRedisDeadLetterQueueWithClient(redisClient, usageQueueCfg.QueueName)
	} else {
		usageQueue = queue.NewMemoryQueue(usageQueueCfg)
		usageDLQ = queue.NewMemoryDeadLetterQueue()
	}
	usageWorker := storage.NewUsageQueueWorker(usageQueue, usageDLQ, usageStore, usageQueueCfg)

	var limiter ratelimit.Limiter = ratelimit.NewNoopLimiter()
	if redisClient != nil {
		limiter = ratelimit.NewRedisLimiter(redisClient, cfg.RateLimitPerMinute)
	}

	txLogger, err := logging.NewTransactionLogger(
		cfg.TransactionLogger.FilePathTemplate,
		cfg.TransactionLogger.MaxSize,
		cfg.TransactionLogger.MaxFiles,
		cfg.TransactionLogger.BufferSize,
		cfg.TransactionLogger.FlushInterval,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize transaction logger: %w", err)
	}

	deps := &Dependencies{
		Store:       keyStore,
		Issuer:      credits.NewIssuer(keyStore, processor),
		Confirmer:   credits.NewConfirmer(keyStore),
		Gate:        credits.NewGate(keyStore),
		Processor:   processor,
		Agent:       invoker,
		RateLimit:   limiter,
		TxLogger:    txLogger,
		UsageWorker: usageWorker,
		Sweeper:     credits.NewSweeper(keyStore, cfg.PaymentTTL, cfg.SweepInterval),
		Config:      cfg,
		redisClient: redisClient,
	}

	mux := http.NewServeMux()
	registerRoutes(mux, deps, cfg)

	return mux, deps, nil
}

func registerRoutes(mux *http.ServeMux, deps *Dependencies, cfg *config.Config) {
	// Payment endpoints - public
	mux.HandleFunc("/api/v1/payment/create-intent", deps.handleCreateIntent)
	mux.HandleFunc("/api/v1/payment/confirm", deps.handleConfirmPayment)

	// Metered endpoints - bearer token required
	mux.Handle("/api/v1/refactor", middleware.RequireBearer(http.HandlerFunc(deps.handleRefactor)))
	mux.Handle("/api/v1/usage", middleware.RequireBearer(http.HandlerFunc(deps.handleUsage)))

	// Public info endpoints
	mux.HandleFunc("/api/v1/health", deps.handleHealth)
	mux.HandleFunc("/api/v1/pricing", deps.handlePricing)

	// Admin surface
	adminJWT := middleware.AdminJWTMiddleware(cfg.JWTSecret)
	mux.HandleFunc("/admin/auth/login", deps.handleAdminLogin)
	mux.Handle("/admin/accounts", adminJWT(http.HandlerFunc(deps.handleAdminAccounts)))
}

// Close releases long-lived resources owned by the dependency graph.
func (deps *Dependencies) Close() error {
	var firstErr error
	if closer, ok := deps.Store.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if deps.redisClient != nil {
		if err := deps.redisClient.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
