package endpoints

import (
	"time"

	"github.com/jackzampolin/papercheck/internal/api"
)

// Config holds dependencies needed by some endpoints.
type Config struct {
	Started time.Time
}

// All returns all endpoint instances.
func All(cfg Config) []api.Endpoint {
	return []api.Endpoint{
		// Health endpoints
		&HealthEndpoint{},
		&ReadyEndpoint{},
		&StatusEndpoint{Started: cfg.Started},
		&MetricsEndpoint{},

		// Analysis endpoints
		&AnalyzeEndpoint{},
		&RecheckEndpoint{},

		// Settings endpoints
		&SettingsEndpoint{},

		// Oracle call history endpoints
		&ListCallsEndpoint{},
		&CallSummaryEndpoint{},
		&GetCallEndpoint{},

		// Prompt endpoints
		&ListPromptsEndpoint{},
		&GetPromptEndpoint{},
		&SetPromptEndpoint{},
	}
}

// CallCommands returns endpoints for oracle call history.
// This groups call-related commands under "calls" subcommand.
func CallCommands() []api.Endpoint {
	return []api.Endpoint{
		&ListCallsEndpoint{},
		&CallSummaryEndpoint{},
		&GetCallEndpoint{},
	}
}

// PromptCommands returns endpoints for prompt operations.
// This groups prompt-related commands under "prompts" subcommand.
func PromptCommands() []api.Endpoint {
	return []api.Endpoint{
		&ListPromptsEndpoint{},
		&GetPromptEndpoint{},
		&SetPromptEndpoint{},
	}
}
