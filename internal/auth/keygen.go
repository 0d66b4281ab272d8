package auth

import (
	"encoding/hex"
	"strings"

	"github.com/google/uuid"
)

// apiKeyPrefix marks keys issued by this service.
const apiKeyPrefix = "rfa_"

// GenerateAPIKey returns a fresh opaque API key: "rfa_" plus 32 hex chars.
// Uniqueness comes from the underlying UUID; the store additionally rejects
// duplicates on insert.
func GenerateAPIKey() string {
	id := uuid.New()
	return apiKeyPrefix + hex.EncodeToString(id[:])
}

// LooksLikeAPIKey reports whether a bearer token has the issued-key shape.
// Used only for fast rejection before hitting the store.
func LooksLikeAPIKey(token string) bool {
	return strings.HasPrefix(token, apiKeyPrefix) && len(token) == len(apiKeyPrefix)+32
}
