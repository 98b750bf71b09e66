package main

import (
	"github.com/spf13/cobra"

	"github.com/jackzampolin/papercheck/internal/api"
	"github.com/jackzampolin/papercheck/internal/server/endpoints"
)

var serverURL string

var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Commands that call the running server",
	Long: `API commands call the running papercheck server via HTTP.

These commands require a running server (papercheck serve).
Use --server to specify a custom server URL.

Examples:
  papercheck api health                          # Check server health
  papercheck api analyze page1.jpg page2.jpg     # Analyze a two-page paper
  papercheck api calls list --stage analyze      # Inspect recent oracle calls`,
}

var callsCmd = &cobra.Command{
	Use:   "calls",
	Short: "Oracle call history commands",
}

var promptsCmd = &cobra.Command{
	Use:   "prompts",
	Short: "Prompt inspection and override commands",
}

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Server configuration commands",
}

// getServerURL returns the server URL at runtime (after flag parsing).
func getServerURL() string {
	return serverURL
}

func addAll(parent *cobra.Command, eps []api.Endpoint) {
	for _, ep := range eps {
		parent.AddCommand(ep.Command(getServerURL))
	}
}

func init() {
	// Add --server flag to api command (persistent so all subcommands inherit it)
	apiCmd.PersistentFlags().StringVar(
		&serverURL, "server", "http://localhost:8080", "Server URL",
	)

	// Health and analysis at top level of api
	addAll(apiCmd, []api.Endpoint{
		&endpoints.HealthEndpoint{},
		&endpoints.ReadyEndpoint{},
		&endpoints.StatusEndpoint{},
		&endpoints.MetricsEndpoint{},
		&endpoints.AnalyzeEndpoint{},
		&endpoints.RecheckEndpoint{},
	})

	addAll(callsCmd, endpoints.CallCommands())
	addAll(promptsCmd, endpoints.PromptCommands())
	addAll(settingsCmd, []api.Endpoint{&endpoints.SettingsEndpoint{}})

	apiCmd.AddCommand(callsCmd)
	apiCmd.AddCommand(promptsCmd)
	apiCmd.AddCommand(settingsCmd)
	rootCmd.AddCommand(apiCmd)
}
