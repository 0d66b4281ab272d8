package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/renaissancebro/refactor-agent/internal/middleware"
	"github.com/renaissancebro/refactor-agent/internal/storage"
	"github.com/renaissancebro/refactor-agent/internal/utils"
)

// UsageResponse reports an account's balance and history.
type UsageResponse struct {
	APIKey        string     `json:"api_key"`
	CreditBalance int64      `json:"credit_balance"`
	TotalRequests int64      `json:"total_requests"`
	CreatedAt     time.Time  `json:"created_at"`
	LastUsedAt    *time.Time `json:"last_used_at,omitempty"`
}

func (deps *Dependencies) handleUsage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		utils.RespondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	token, ok := middleware.GetBearerToken(r.Context())
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "API key required")
		return
	}

	rec, err := deps.Store.Get(r.Context(), token)
	if err != nil {
		if errors.Is(err, storage.ErrAccountNotFound) {
			utils.RespondWithError(w, http.StatusUnauthorized, "Invalid API key")
			return
		}
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to load account: "+err.Error())
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, UsageResponse{
		APIKey:        rec.APIKey,
		CreditBalance: rec.CreditBalance,
		TotalRequests: rec.TotalRequests,
		CreatedAt:     rec.CreatedAt,
		LastUsedAt:    rec.LastUsedAt,
	})
}
