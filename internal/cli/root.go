package cli

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// app carries the settings shared by all subcommands, resolved from flags
// and environment via viper.
type app struct {
	v *viper.Viper
}

func (a *app) openAIKey() string { return a.v.GetString("openai-api-key") }

func (a *app) openAIModel() string { return a.v.GetString("openai-model") }

func (a *app) openAIBaseURL() string { return a.v.GetString("openai-base-url") }

func (a *app) gatewayURL() string { return a.v.GetString("gateway-url") }

func (a *app) apiKey() string { return a.v.GetString("api-key") }

// NewRootCmd builds the CLI command tree.
func NewRootCmd() *cobra.Command {
	a := &app{v: viper.New()}

	root := &cobra.Command{
		Use:           "refactor-cli",
		Short:         "AI-powered code refactoring, from the command line",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.PersistentFlags().String("gateway-url", "http://localhost:8080", "Base URL of the refactor gateway")
	root.PersistentFlags().String("api-key", "", "Gateway API key (for usage/buy)")

	_ = a.v.BindPFlag("gateway-url", root.PersistentFlags().Lookup("gateway-url"))
	_ = a.v.BindPFlag("api-key", root.PersistentFlags().Lookup("api-key"))
	_ = a.v.BindEnv("gateway-url", "REFACTOR_GATEWAY_URL")
	_ = a.v.BindEnv("api-key", "REFACTOR_API_KEY")
	_ = a.v.BindEnv("openai-api-key", "OPENAI_API_KEY")
	_ = a.v.BindEnv("openai-model", "OPENAI_MODEL")
	_ = a.v.BindEnv("openai-base-url", "OPENAI_BASE_URL")
	a.v.SetDefault("openai-model", "gpt-4o")

	root.AddCommand(
		newRefactorCmd(a),
		newUsageCmd(a),
		newBuyCmd(a),
		newConfirmCmd(a),
	)

	return root
}
