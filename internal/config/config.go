package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds configuration for the gateway.
type Config struct {
	HTTPPort  string
	JWTSecret []byte

	// Admin login for the management endpoints. The password is supplied
	// pre-hashed (bcrypt) so the plaintext never sits in the environment.
	AdminUsername     string
	AdminPasswordHash string

	StripeSecretKey string

	OpenAI OpenAIConfig

	// Database.URL empty means the in-memory key store.
	Database DatabaseConfig

	// Redis.Address empty means in-memory queues and no rate limiting.
	Redis RedisConfig

	RateLimitPerMinute int

	// Pending payments older than PaymentTTL are expired by the sweeper.
	PaymentTTL    time.Duration
	SweepInterval time.Duration

	TransactionLogger TransactionLoggerConfig
}

// OpenAIConfig holds settings for the upstream refactor agent.
type OpenAIConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Address  string
	Password string
	DB       int
}

// TransactionLoggerConfig holds settings for the JSONL transaction log.
type TransactionLoggerConfig struct {
	FilePathTemplate string
	MaxSize          int64
	MaxFiles         int
	BufferSize       int
	FlushInterval    time.Duration
}

func getEnvString(key string, defaultValue string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}
	return val
}

func getEnvInt(key string, defaultValue int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}
	intVal, err := strconv.Atoi(val)
	if err != nil {
		return defaultValue
	}
	return intVal
}

func getEnvInt64(key string, defaultValue int64) int64 {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}
	intVal, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return defaultValue
	}
	return intVal
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}
	duration, err := time.ParseDuration(val)
	if err != nil {
		return defaultValue
	}
	return duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		HTTPPort:  getEnvString("HTTP_PORT", "8080"),
		JWTSecret: []byte(getEnvString("JWT_SECRET", "supersecretkey")),

		AdminUsername:     getEnvString("ADMIN_USERNAME", "admin"),
		AdminPasswordHash: os.Getenv("ADMIN_PASSWORD_HASH"),

		StripeSecretKey: os.Getenv("STRIPE_SECRET_KEY"),

		OpenAI: OpenAIConfig{
			APIKey:  os.Getenv("OPENAI_API_KEY"),
			Model:   getEnvString("OPENAI_MODEL", "gpt-4o"),
			BaseURL: getEnvString("OPENAI_BASE_URL", ""),
		},

		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
			ConnMaxIdleTime: getEnvDuration("DB_CONN_MAX_IDLE_TIME", 1*time.Minute),
		},

		Redis: RedisConfig{
			Address:  os.Getenv("REDIS_ADDRESS"),
			Password: getEnvString("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},

		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 30),

		PaymentTTL:    getEnvDuration("PAYMENT_TTL", 24*time.Hour),
		SweepInterval: getEnvDuration("PAYMENT_SWEEP_INTERVAL", 1*time.Hour),

		TransactionLogger: TransactionLoggerConfig{
			FilePathTemplate: getEnvString("TRANSACTION_LOG_FILE_PATH_TEMPLATE", "/var/log/refactor-agent/transactions-%s.jsonl"),
			MaxSize:          getEnvInt64("TRANSACTION_LOG_MAX_SIZE", 10_485_760), // 10 MB
			MaxFiles:         getEnvInt("TRANSACTION_LOG_MAX_FILES", 5),
			BufferSize:       getEnvInt("TRANSACTION_LOG_BUFFER_SIZE", 100),
			FlushInterval:    getEnvDuration("TRANSACTION_LOG_FLUSH_INTERVAL", 60*time.Second),
		},
	}

	return cfg, nil
}
