package httpapi

import (
	"errors"
	"net/http"

	"github.com/renaissancebro/refactor-agent/internal/credits"
	"github.com/renaissancebro/refactor-agent/internal/utils"
)

// PaymentRequest asks for credits priced in cents (1 credit per dollar).
type PaymentRequest struct {
	AmountCents int64  `json:"amount_cents"`
	Currency    string `json:"currency,omitempty"`
	Description string `json:"description,omitempty"`
}

// PaymentResponse returns the freshly minted key and the processor handles
// needed to complete checkout.
type PaymentResponse struct {
	Success      bool   `json:"success"`
	APIKey       string `json:"api_key,omitempty"`
	PaymentRef   string `json:"payment_ref,omitempty"`
	ClientSecret string `json:"client_secret,omitempty"`
	Credits      int64  `json:"credits,omitempty"`
	Message      string `json:"message"`
}

func (deps *Dependencies) handleCreateIntent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		utils.RespondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req PaymentRequest
	if err := utils.DecodeJSONBody(r, &req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	creditsRequested := req.AmountCents / credits.CentsPerCredit
	if req.AmountCents <= 0 || creditsRequested <= 0 {
		utils.RespondWithError(w, http.StatusBadRequest, "amount_cents must buy at least one credit")
		return
	}

	intent, err := deps.Issuer.IssueIntent(r.Context(), creditsRequested)
	if err != nil {
		if errors.Is(err, credits.ErrInvalidAmount) {
			utils.RespondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
		utils.RespondWithError(w, http.StatusInternalServerError, "Payment creation failed: "+err.Error())
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, PaymentResponse{
		Success:      true,
		APIKey:       intent.APIKey,
		PaymentRef:   intent.PaymentRef,
		ClientSecret: intent.ClientSecret,
		Credits:      intent.Credits,
		Message:      "Payment intent created successfully",
	})
}

// ConfirmRequest identifies the purchase to activate.
type ConfirmRequest struct {
	APIKey     string `json:"api_key"`
	PaymentRef string `json:"payment_ref"`
}

// ConfirmResponse reports the balance after confirmation.
type ConfirmResponse struct {
	Success       bool   `json:"success"`
	CreditBalance int64  `json:"credit_balance"`
	Message       string `json:"message"`
}

func (deps *Dependencies) handleConfirmPayment(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		utils.RespondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req ConfirmRequest
	if err := utils.DecodeJSONBody(r, &req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.APIKey == "" || req.PaymentRef == "" {
		utils.RespondWithError(w, http.StatusBadRequest, "api_key and payment_ref are required")
		return
	}

	// Verify the charge with the processor before touching the ledger.
	paid, err := deps.Processor.VerifyIntent(r.Context(), req.PaymentRef)
	if err != nil {
		utils.RespondWithError(w, http.StatusBadGateway, "Payment verification failed: "+err.Error())
		return
	}
	if !paid {
		utils.RespondWithError(w, http.StatusBadRequest, "Payment not confirmed")
		return
	}

	balance, err := deps.Confirmer.Confirm(r.Context(), req.APIKey, req.PaymentRef)
	if err != nil {
		switch {
		case errors.Is(err, credits.ErrUnknownAPIKey):
			utils.RespondWithError(w, http.StatusNotFound, "Invalid API key")
		case errors.Is(err, credits.ErrUnknownPayment):
			utils.RespondWithError(w, http.StatusNotFound, "Invalid payment reference")
		default:
			utils.RespondWithError(w, http.StatusInternalServerError, "Payment confirmation failed: "+err.Error())
		}
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, ConfirmResponse{
		Success:       true,
		CreditBalance: balance,
		Message:       "API key activated successfully",
	})
}
