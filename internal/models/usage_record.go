package models

import (
	"time"

	"github.com/google/uuid"
)

// Request origins for usage records.
const (
	OriginCLI = "cli"
	OriginAPI = "api"
)

// UsageRecord represents a single completed refactor call for the audit log.
type UsageRecord struct {
	ID             uuid.UUID      `db:"id" json:"id"`
	APIKeyHash     string         `db:"api_key_hash" json:"api_key_hash"`
	SessionID      uuid.UUID      `db:"session_id" json:"session_id"`
	SuggestionType SuggestionType `db:"suggestion_type" json:"suggestion_type"`
	Language       string         `db:"language" json:"language"`
	InputBytes     int            `db:"input_bytes" json:"input_bytes"`
	OutputBytes    int            `db:"output_bytes" json:"output_bytes"`
	UtilityModules int            `db:"utility_modules" json:"utility_modules"`
	ResponseTimeMS int            `db:"response_time_ms" json:"response_time_ms"`
	StatusCode     int            `db:"status_code" json:"status_code"`
	ErrorMessage   string         `db:"error_message" json:"error_message,omitempty"`
	Origin         string         `db:"origin" json:"origin"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
}
