package httpapi

import (
	"net/http"

	"github.com/renaissancebro/refactor-agent/internal/auth"
	"github.com/renaissancebro/refactor-agent/internal/utils"
)

type adminLoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type adminLoginResponse struct {
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expires_at"`
}

func (deps *Dependencies) handleAdminLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		utils.RespondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	if deps.Config.AdminPasswordHash == "" {
		utils.RespondWithError(w, http.StatusServiceUnavailable, "Admin login not configured")
		return
	}

	var req adminLoginRequest
	if err := utils.DecodeJSONBody(r, &req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if req.Username != deps.Config.AdminUsername ||
		!auth.CheckPassword(deps.Config.AdminPasswordHash, req.Password) {
		utils.RespondWithError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	token, expiresAt, err := auth.GenerateAdminJWT(req.Username, deps.Config.JWTSecret)
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to generate token")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, adminLoginResponse{
		Token:     token,
		ExpiresAt: expiresAt,
	})
}

// handleAdminAccounts lists all accounts. Keys are reported hashed so a
// leaked admin response cannot be replayed as a bearer token.
func (deps *Dependencies) handleAdminAccounts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		utils.RespondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	recs, err := deps.Store.List(r.Context())
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to list accounts: "+err.Error())
		return
	}

	type accountSummary struct {
		APIKeyHash    string `json:"api_key_hash"`
		CreditBalance int64  `json:"credit_balance"`
		TotalRequests int64  `json:"total_requests"`
		CreatedAt     string `json:"created_at"`
		LastUsedAt    string `json:"last_used_at,omitempty"`
		Pending       int    `json:"pending_payments"`
	}

	out := make([]accountSummary, 0, len(recs))
	for _, rec := range recs {
		s := accountSummary{
			APIKeyHash:    utils.HashString(rec.APIKey),
			CreditBalance: rec.CreditBalance,
			TotalRequests: rec.TotalRequests,
			CreatedAt:     rec.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
			Pending:       len(rec.PendingPayments),
		}
		if rec.LastUsedAt != nil {
			s.LastUsedAt = rec.LastUsedAt.Format("2006-01-02T15:04:05Z07:00")
		}
		out = append(out, s)
	}

	utils.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"accounts": out,
		"count":    len(out),
	})
}
