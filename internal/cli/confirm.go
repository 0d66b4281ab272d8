package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newConfirmCmd(a *app) *cobra.Command {
	var paymentRef string

	cmd := &cobra.Command{
		Use:   "confirm",
		Short: "Confirm a completed payment and activate the API key",
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.apiKey() == "" {
				return fmt.Errorf("API key required (--api-key or REFACTOR_API_KEY)")
			}
			if paymentRef == "" {
				return fmt.Errorf("--payment-ref is required")
			}

			var out struct {
				CreditBalance int64 `json:"credit_balance"`
			}
			body := map[string]interface{}{
				"api_key":     a.apiKey(),
				"payment_ref": paymentRef,
			}
			if err := a.gatewayPost(cmd, "/api/v1/payment/confirm", body, &out); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Payment confirmed. Balance: %d credits\n", out.CreditBalance)
			return nil
		},
	}

	cmd.Flags().StringVar(&paymentRef, "payment-ref", "", "Payment reference from the buy command")

	return cmd
}
