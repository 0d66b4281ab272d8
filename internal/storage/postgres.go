package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq" // also registers the PostgreSQL driver

	"github.com/renaissancebro/refactor-agent/internal/models"
)

// DBConfig holds database connection settings
type DBConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS accounts (
		api_key        TEXT PRIMARY KEY,
		credit_balance BIGINT NOT NULL DEFAULT 0 CHECK (credit_balance >= 0),
		total_requests BIGINT NOT NULL DEFAULT 0,
		last_used_at   TIMESTAMPTZ,
		created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS pending_payments (
		payment_ref      TEXT PRIMARY KEY,
		api_key          TEXT NOT NULL REFERENCES accounts(api_key) ON DELETE CASCADE,
		credits_promised BIGINT NOT NULL,
		state            TEXT NOT NULL DEFAULT 'pending',
		created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
		confirmed_at     TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_pending_payments_api_key ON pending_payments(api_key)`,
	`CREATE TABLE IF NOT EXISTS usage_records (
		id               UUID PRIMARY KEY,
		api_key_hash     TEXT NOT NULL,
		session_id       UUID NOT NULL,
		suggestion_type  TEXT NOT NULL,
		language         TEXT NOT NULL,
		input_bytes      INT NOT NULL,
		output_bytes     INT NOT NULL,
		utility_modules  INT NOT NULL,
		response_time_ms INT NOT NULL,
		status_code      INT NOT NULL,
		error_message    TEXT NOT NULL DEFAULT '',
		origin           TEXT NOT NULL,
		created_at       TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_usage_records_key_time ON usage_records(api_key_hash, created_at)`,
}

// PostgresKeyStore is the persistent KeyStore. The credit CAS is a
// conditional UPDATE so two concurrent reservations on a balance of 1 cannot
// both succeed.
type PostgresKeyStore struct {
	db *sqlx.DB
}

// NewPostgresKeyStore connects, configures the pool, and bootstraps the schema.
func NewPostgresKeyStore(cfg DBConfig) (*PostgresKeyStore, error) {
	db, err := sqlx.Connect("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply schema: %w", err)
		}
	}

	return &PostgresKeyStore{db: db}, nil
}

// Close closes the database connection.
func (s *PostgresKeyStore) Close() error {
	return s.db.Close()
}

// Ping checks if the database is reachable
func (s *PostgresKeyStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresKeyStore) Get(ctx context.Context, apiKey string) (*models.AccountRecord, error) {
	var rec models.AccountRecord
	err := s.db.GetContext(ctx, &rec,
		`SELECT api_key, credit_balance, total_requests, last_used_at, created_at
		 FROM accounts WHERE api_key = $1`, apiKey)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}

	var payments []*models.PendingPayment
	err = s.db.SelectContext(ctx, &payments,
		`SELECT payment_ref, credits_promised, state, created_at, confirmed_at
		 FROM pending_payments WHERE api_key = $1`, apiKey)
	if err != nil {
		return nil, err
	}
	for _, p := range payments {
		rec.AttachPayment(p)
	}
	return &rec, nil
}

func (s *PostgresKeyStore) Put(ctx context.Context, rec *models.AccountRecord) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO accounts (api_key, credit_balance, total_requests, last_used_at, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		rec.APIKey, rec.CreditBalance, rec.TotalRequests, rec.LastUsedAt, rec.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrDuplicateKey
		}
		return err
	}

	for _, p := range rec.PendingPayments {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO pending_payments (payment_ref, api_key, credits_promised, state, created_at, confirmed_at)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			p.PaymentRef, rec.APIKey, p.CreditsPromised, p.State, p.CreatedAt, p.ConfirmedAt)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *PostgresKeyStore) CompareAndSwapCredit(ctx context.Context, apiKey string, old, new int64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE accounts SET credit_balance = $1 WHERE api_key = $2 AND credit_balance = $3`,
		new, apiKey, old)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		// Distinguish a missing account from a lost race.
		var exists bool
		if err := s.db.GetContext(ctx, &exists,
			`SELECT EXISTS (SELECT 1 FROM accounts WHERE api_key = $1)`, apiKey); err != nil {
			return err
		}
		if !exists {
			return ErrAccountNotFound
		}
		return ErrStaleBalance
	}
	return nil
}

func (s *PostgresKeyStore) AddCredits(ctx context.Context, apiKey string, delta int64) (int64, error) {
	var balance int64
	err := s.db.GetContext(ctx, &balance,
		`UPDATE accounts SET credit_balance = credit_balance + $1
		 WHERE api_key = $2 RETURNING credit_balance`, delta, apiKey)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrAccountNotFound
	}
	if err != nil {
		return 0, err
	}
	return balance, nil
}

func (s *PostgresKeyStore) RecordUse(ctx context.Context, apiKey string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE accounts SET total_requests = total_requests + 1, last_used_at = $1
		 WHERE api_key = $2`, at, apiKey)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// ConfirmPayment runs the state transition and the credit grant in one
// transaction: either both land or neither does.
func (s *PostgresKeyStore) ConfirmPayment(ctx context.Context, apiKey, paymentRef string) (int64, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var promised int64
	err = tx.GetContext(ctx, &promised,
		`UPDATE pending_payments SET state = $1, confirmed_at = now()
		 WHERE payment_ref = $2 AND api_key = $3 AND state = $4
		 RETURNING credits_promised`,
		models.PaymentConfirmed, paymentRef, apiKey, models.PaymentPending)
	if errors.Is(err, sql.ErrNoRows) {
		var state models.PaymentState
		err := tx.GetContext(ctx, &state,
			`SELECT state FROM pending_payments WHERE payment_ref = $1 AND api_key = $2`,
			paymentRef, apiKey)
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrPaymentNotFound
		}
		if err != nil {
			return 0, err
		}
		return 0, ErrPaymentNotPending
	}
	if err != nil {
		return 0, err
	}

	var balance int64
	err = tx.GetContext(ctx, &balance,
		`UPDATE accounts SET credit_balance = credit_balance + $1
		 WHERE api_key = $2 RETURNING credit_balance`, promised, apiKey)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrAccountNotFound
	}
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return balance, nil
}

func (s *PostgresKeyStore) ExpirePending(ctx context.Context, before time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE pending_payments SET state = $1 WHERE state = $2 AND created_at < $3`,
		models.PaymentExpired, models.PaymentPending, before)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (s *PostgresKeyStore) List(ctx context.Context) ([]*models.AccountRecord, error) {
	var recs []*models.AccountRecord
	err := s.db.SelectContext(ctx, &recs,
		`SELECT api_key, credit_balance, total_requests, last_used_at, created_at
		 FROM accounts ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	return recs, nil
}

// InsertUsageBatch inserts a batch of usage records in a single transaction.
func (s *PostgresKeyStore) InsertUsageBatch(ctx context.Context, records []*models.UsageRecord) error {
	if len(records) == 0 {
		return nil
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO usage_records
		 (id, api_key_hash, session_id, suggestion_type, language, input_bytes,
		  output_bytes, utility_modules, response_time_ms, status_code,
		  error_message, origin, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range records {
		_, err = stmt.ExecContext(ctx,
			r.ID, r.APIKeyHash, r.SessionID, r.SuggestionType, r.Language,
			r.InputBytes, r.OutputBytes, r.UtilityModules, r.ResponseTimeMS,
			r.StatusCode, r.ErrorMessage, r.Origin, r.CreatedAt)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}
