package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/renaissancebro/refactor-agent/internal/auth"
	"github.com/renaissancebro/refactor-agent/internal/utils"
)

// ContextKey defines the type for context keys to avoid conflicts
type ContextKey string

const (
	// BearerTokenKey is the context key for the caller's raw bearer token
	BearerTokenKey ContextKey = "bearerToken"
)

// RequireBearer extracts the API key from the Authorization header (or
// X-API-Key) and stores it in the request context. Tokens that cannot be an
// issued key are rejected here; real authorization happens later, in the
// usage gate, whose reserve step must see the token itself.
func RequireBearer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := r.Header.Get("X-API-Key")
		if token == "" {
			authHeader := r.Header.Get("Authorization")
			if strings.HasPrefix(authHeader, "Bearer ") {
				token = strings.TrimPrefix(authHeader, "Bearer ")
			}
		}

		if token == "" {
			utils.RespondWithError(w, http.StatusUnauthorized, "API key required")
			return
		}
		if !auth.LooksLikeAPIKey(token) {
			// Fast rejection without a store lookup.
			utils.RespondWithError(w, http.StatusUnauthorized, "Invalid API key")
			return
		}

		ctx := context.WithValue(r.Context(), BearerTokenKey, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetBearerToken retrieves the bearer token from the request context
func GetBearerToken(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(BearerTokenKey).(string)
	return token, ok
}
