package httpapi

import (
	"net/http"
	"time"

	"github.com/renaissancebro/refactor-agent/internal/utils"
)

func (deps *Dependencies) handleHealth(w http.ResponseWriter, r *http.Request) {
	utils.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"status":            "healthy",
		"timestamp":         time.Now().Format(time.RFC3339),
		"version":           "1.0.0",
		"agent_configured":  deps.Agent != nil,
		"stripe_configured": deps.Config.StripeSecretKey != "",
	})
}

type pricingPlan struct {
	PriceCents int64  `json:"price_cents"`
	Credits    int64  `json:"credits"`
	Description string `json:"description"`
}

func (deps *Dependencies) handlePricing(w http.ResponseWriter, r *http.Request) {
	utils.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"plans": map[string]pricingPlan{
			"starter":      {PriceCents: 500, Credits: 5, Description: "5 refactor requests"},
			"professional": {PriceCents: 2000, Credits: 20, Description: "20 refactor requests"},
			"enterprise":   {PriceCents: 5000, Credits: 50, Description: "50 refactor requests"},
		},
		"currency": "usd",
		"note":     "Prices are in cents. 1 credit = 1 refactor request",
	})
}
