package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/renaissancebro/refactor-agent/internal/models"
)

const (
	openAIDefaultBaseURL = "https://api.openai.com/v1"
	openAIDefaultModel   = "gpt-4o"
	openAITimeout        = 120 * time.Second
)

// OpenAIAgent implements Invoker against the OpenAI chat completions API.
type OpenAIAgent struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

// OpenAIConfig holds settings for the OpenAI-backed agent.
type OpenAIConfig struct {
	APIKey  string
	Model   string // defaults to gpt-4o
	BaseURL string // defaults to the public API
}

// NewOpenAIAgent creates a new OpenAI-backed refactor agent.
func NewOpenAIAgent(cfg OpenAIConfig) (*OpenAIAgent, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}
	model := cfg.Model
	if model == "" {
		model = openAIDefaultModel
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = openAIDefaultBaseURL
	}
	return &OpenAIAgent{
		apiKey:  cfg.APIKey,
		model:   model,
		baseURL: baseURL,
		client: &http.Client{
			Timeout: openAITimeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Invoke sends the code to the model and decodes its JSON reply.
func (a *OpenAIAgent) Invoke(ctx context.Context, code string, suggestion models.SuggestionType, language string) (*models.RefactorResult, error) {
	reqBody := chatRequest{
		Model: a.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: buildMessage(code, suggestion, language)},
		},
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := a.baseURL + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+a.apiKey)

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var chat chatResponse
	if err := json.Unmarshal(respBody, &chat); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		if chat.Error != nil {
			return nil, fmt.Errorf("model API returned status %d: %s", resp.StatusCode, chat.Error.Message)
		}
		return nil, fmt.Errorf("model API returned status %d", resp.StatusCode)
	}
	if len(chat.Choices) == 0 {
		return nil, fmt.Errorf("model response contained no choices")
	}

	return ParseResult(chat.Choices[0].Message.Content)
}

// ParseResult extracts the JSON payload from the model's reply. The model
// usually fences it in a ```json block but sometimes returns bare JSON.
func ParseResult(reply string) (*models.RefactorResult, error) {
	jsonStr, err := extractJSONBlock(reply)
	if err != nil {
		return nil, err
	}

	var result models.RefactorResult
	if err := json.Unmarshal([]byte(jsonStr), &result); err != nil {
		return nil, fmt.Errorf("failed to parse model JSON: %w", err)
	}
	if result.RefactoredMain == "" {
		return nil, fmt.Errorf("model response missing refactored_main")
	}
	return &result, nil
}

func extractJSONBlock(reply string) (string, error) {
	if start := strings.Index(reply, "```json"); start != -1 {
		rest := reply[start+len("```json"):]
		if end := strings.Index(rest, "```"); end != -1 {
			return strings.TrimSpace(rest[:end]), nil
		}
	}

	// Fall back to the outermost braces.
	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start == -1 || end == -1 || end < start {
		return "", fmt.Errorf("no JSON block found in model response")
	}
	return strings.TrimSpace(reply[start : end+1]), nil
}
