package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

func newUsageCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "usage",
		Short: "Show credit balance and request count for your API key",
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.apiKey() == "" {
				return fmt.Errorf("API key required (--api-key or REFACTOR_API_KEY)")
			}

			var out struct {
				APIKey        string     `json:"api_key"`
				CreditBalance int64      `json:"credit_balance"`
				TotalRequests int64      `json:"total_requests"`
				CreatedAt     time.Time  `json:"created_at"`
				LastUsedAt    *time.Time `json:"last_used_at"`
			}
			if err := a.gatewayGet(cmd, "/api/v1/usage", &out); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Credits remaining: %d\n", out.CreditBalance)
			fmt.Fprintf(cmd.OutOrStdout(), "Total requests:    %d\n", out.TotalRequests)
			fmt.Fprintf(cmd.OutOrStdout(), "Key created:       %s\n", out.CreatedAt.Format(time.RFC3339))
			if out.LastUsedAt != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "Last used:         %s\n", out.LastUsedAt.Format(time.RFC3339))
			}
			return nil
		},
	}
}

// gatewayGet performs an authenticated GET against the gateway and decodes
// the JSON body into out.
func (a *app) gatewayGet(cmd *cobra.Command, path string, out interface{}) error {
	url := strings.TrimRight(a.gatewayURL(), "/") + path
	req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("X-API-Key", a.apiKey())

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return gatewayError(resp.StatusCode, body)
	}
	return json.Unmarshal(body, out)
}

func gatewayError(status int, body []byte) error {
	var apiErr struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
		return fmt.Errorf("gateway returned %d: %s", status, apiErr.Error)
	}
	return fmt.Errorf("gateway returned %d", status)
}
