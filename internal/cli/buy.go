package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

func newBuyCmd(a *app) *cobra.Command {
	var confirm bool

	cmd := &cobra.Command{
		Use:   "buy <credits>",
		Short: "Buy credits and mint a new API key",
		Long: `Creates a payment intent for the given number of credits (1 credit
costs $1) and prints the new API key with its Stripe client secret. The key
stays at zero balance until the payment is confirmed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || n <= 0 {
				return fmt.Errorf("credits must be a positive integer")
			}

			var created struct {
				APIKey       string `json:"api_key"`
				PaymentRef   string `json:"payment_ref"`
				ClientSecret string `json:"client_secret"`
				Credits      int64  `json:"credits"`
			}
			body := map[string]interface{}{"amount_cents": n * 100}
			if err := a.gatewayPost(cmd, "/api/v1/payment/create-intent", body, &created); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "API key:       %s\n", created.APIKey)
			fmt.Fprintf(cmd.OutOrStdout(), "Payment ref:   %s\n", created.PaymentRef)
			fmt.Fprintf(cmd.OutOrStdout(), "Client secret: %s\n", created.ClientSecret)
			fmt.Fprintf(cmd.OutOrStdout(), "Credits:       %d\n", created.Credits)

			if !confirm {
				fmt.Fprintln(cmd.OutOrStdout(), "\nComplete the payment, then run:")
				fmt.Fprintf(cmd.OutOrStdout(), "  refactor-cli confirm --api-key %s --payment-ref %s\n",
					created.APIKey, created.PaymentRef)
				return nil
			}

			var confirmed struct {
				CreditBalance int64 `json:"credit_balance"`
			}
			body = map[string]interface{}{
				"api_key":     created.APIKey,
				"payment_ref": created.PaymentRef,
			}
			if err := a.gatewayPost(cmd, "/api/v1/payment/confirm", body, &confirmed); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\nPayment confirmed. Balance: %d credits\n", confirmed.CreditBalance)
			return nil
		},
	}

	cmd.Flags().BoolVar(&confirm, "confirm", false,
		"Confirm immediately (only works against a gateway running the dev payment processor)")

	return cmd
}

func (a *app) gatewayPost(cmd *cobra.Command, path string, payload, out interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	url := strings.TrimRight(a.gatewayURL(), "/") + path
	req, err := http.NewRequestWithContext(cmd.Context(), http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

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
