package providers

import (
	"context"
	"os"
)

// TestConfig holds provider API keys loaded from environment variables so
// live tests use the same configuration pattern as production.
type TestConfig struct {
	OpenRouterAPIKey string
	OpenAIAPIKey     string
	GeminiAPIKey     string
}

// LoadTestConfig loads provider API keys from environment variables.
func LoadTestConfig() TestConfig {
	return TestConfig{
		OpenRouterAPIKey: os.Getenv("OPENROUTER_API_KEY"),
		OpenAIAPIKey:     os.Getenv("OPENAI_API_KEY"),
		GeminiAPIKey:     os.Getenv("GEMINI_API_KEY"),
	}
}

// HasAnyLLM returns true if any provider key is configured.
func (c TestConfig) HasAnyLLM() bool {
	return c.OpenRouterAPIKey != "" || c.OpenAIAPIKey != "" || c.GeminiAPIKey != ""
}

// ToRegistryConfig converts the test config into a RegistryConfig containing
// only providers with keys.
func (c TestConfig) ToRegistryConfig() RegistryConfig {
	cfg := RegistryConfig{Providers: make(map[string]ProviderConfig)}
	if c.OpenRouterAPIKey != "" {
		cfg.Providers[OpenRouterName] = ProviderConfig{Type: OpenRouterName, APIKey: c.OpenRouterAPIKey, RateLimit: 60, Enabled: true}
	}
	if c.OpenAIAPIKey != "" {
		cfg.Providers[OpenAIName] = ProviderConfig{Type: OpenAIName, APIKey: c.OpenAIAPIKey, RateLimit: 60, Enabled: true}
	}
	if c.GeminiAPIKey != "" {
		cfg.Providers[GeminiName] = ProviderConfig{Type: GeminiName, APIKey: c.GeminiAPIKey, RateLimit: 60, Enabled: true}
	}
	return cfg
}

// NewRegistry builds a registry from the available keys.
func (c TestConfig) NewRegistry(ctx context.Context) *Registry {
	return NewRegistryFromConfig(ctx, c.ToRegistryConfig(), nil)
}
