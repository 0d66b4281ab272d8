package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/renaissancebro/refactor-agent/internal/credits"
	"github.com/renaissancebro/refactor-agent/internal/logging"
	"github.com/renaissancebro/refactor-agent/internal/middleware"
	"github.com/renaissancebro/refactor-agent/internal/models"
	"github.com/renaissancebro/refactor-agent/internal/utils"
)

// RefactorRequest carries the code to improve.
type RefactorRequest struct {
	Code           string `json:"code"`
	SuggestionType string `json:"suggestion_type,omitempty"`
	Language       string `json:"language,omitempty"`
}

// RefactorResponse returns the agent's structured result plus accounting info.
type RefactorResponse struct {
	Success        bool              `json:"success"`
	RefactoredMain string            `json:"refactored_main,omitempty"`
	UtilityModules map[string]string `json:"utility_modules,omitempty"`
	BackupFile     string            `json:"backup_file,omitempty"`
	Message        string            `json:"message"`
	UsageCount     int64             `json:"usage_count"`
	SessionID      string            `json:"session_id"`
}

func (deps *Dependencies) handleRefactor(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		utils.RespondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	token, ok := middleware.GetBearerToken(r.Context())
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "API key required")
		return
	}

	if deps.Agent == nil {
		utils.RespondWithError(w, http.StatusServiceUnavailable, "Refactor agent not configured")
		return
	}

	if !deps.RateLimit.Allow(r.Context(), utils.HashString(token)) {
		utils.RespondWithError(w, http.StatusTooManyRequests, "Rate limit exceeded")
		return
	}

	var req RefactorRequest
	if err := utils.DecodeJSONBody(r, &req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.Code == "" {
		utils.RespondWithError(w, http.StatusBadRequest, "code is required")
		return
	}
	suggestion, err := models.ParseSuggestionType(req.SuggestionType)
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	language := req.Language
	if language == "" {
		language = "python"
	}

	// Reserve one credit before doing any work. The reservation must settle
	// on every exit path, so the rollback is deferred immediately; Commit
	// later makes that deferred rollback a no-op. Settlement runs on a
	// fresh context so a client disconnect cannot strand the credit.
	reservation, err := deps.Gate.AuthorizeAndReserve(r.Context(), token)
	if err != nil {
		switch {
		case errors.Is(err, credits.ErrUnauthorized):
			utils.RespondWithError(w, http.StatusUnauthorized, "Invalid API key")
		case errors.Is(err, credits.ErrInsufficientCredit):
			utils.RespondWithError(w, http.StatusPaymentRequired, "Insufficient credits")
		default:
			utils.RespondWithError(w, http.StatusInternalServerError, "Authorization failed: "+err.Error())
		}
		return
	}
	defer reservation.Rollback(context.Background())

	sessionID := uuid.New()
	start := time.Now()

	result, err := deps.Agent.Invoke(r.Context(), req.Code, suggestion, language)
	elapsed := time.Since(start)

	if err != nil {
		err = credits.WrapDownstream(err)
		deps.recordRefactor(token, sessionID, suggestion, language, req.Code, nil, elapsed, http.StatusBadGateway, err)
		utils.RespondWithError(w, http.StatusBadGateway, err.Error())
		return
	}

	if err := reservation.Commit(context.Background()); err != nil {
		// The work succeeded; surface the result even if bookkeeping lagged.
		utils.NewLogger("httpapi").Error("Failed to commit reservation", "error", err)
	}

	deps.recordRefactor(token, sessionID, suggestion, language, req.Code, result, elapsed, http.StatusOK, nil)

	var usageCount int64
	if rec, err := deps.Store.Get(r.Context(), token); err == nil {
		usageCount = rec.TotalRequests
	}

	utils.RespondWithJSON(w, http.StatusOK, RefactorResponse{
		Success:        true,
		RefactoredMain: result.RefactoredMain,
		UtilityModules: result.UtilityModules,
		BackupFile:     result.BackupFile,
		Message:        "Code refactored successfully",
		UsageCount:     usageCount,
		SessionID:      sessionID.String(),
	})
}

// recordRefactor writes both the JSONL transaction log entry and the queued
// usage record for one call, successful or not.
func (deps *Dependencies) recordRefactor(token string, sessionID uuid.UUID, suggestion models.SuggestionType, language, code string, result *models.RefactorResult, elapsed time.Duration, status int, callErr error) {
	keyHash := utils.HashString(token)

	outputBytes := 0
	var moduleNames []string
	backupFile := ""
	if result != nil {
		outputBytes = len(result.RefactoredMain)
		for name := range result.UtilityModules {
			moduleNames = append(moduleNames, name)
		}
		backupFile = result.BackupFile
	}
	errMsg := ""
	if callErr != nil {
		errMsg = callErr.Error()
	}

	deps.TxLogger.Log(logging.TransactionLog{
		Timestamp:      time.Now(),
		Origin:         models.OriginAPI,
		SessionID:      sessionID.String(),
		APIKeyHash:     keyHash,
		SuggestionType: string(suggestion),
		Language:       language,
		InputBytes:     len(code),
		OutputBytes:    outputBytes,
		UtilityModules: moduleNames,
		BackupFile:     backupFile,
		Success:        callErr == nil,
		Error:          errMsg,
	})

	record := &models.UsageRecord{
		ID:             uuid.New(),
		APIKeyHash:     keyHash,
		SessionID:      sessionID,
		SuggestionType: suggestion,
		Language:       language,
		InputBytes:     len(code),
		OutputBytes:    outputBytes,
		UtilityModules: len(moduleNames),
		ResponseTimeMS: int(elapsed.Milliseconds()),
		StatusCode:     status,
		ErrorMessage:   errMsg,
		Origin:         models.OriginAPI,
		CreatedAt:      time.Now(),
	}
	if err := deps.UsageWorker.Enqueue(context.Background(), record); err != nil {
		utils.NewLogger("httpapi").Error("Failed to enqueue usage record", "error", err)
	}
}
