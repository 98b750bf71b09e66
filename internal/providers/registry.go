package providers

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// Registry holds named LLM clients. It supports config-driven instantiation,
// hot-reload, and thread-safe access.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]registryEntry
	logger  *slog.Logger
}

type registryEntry struct {
	client LLMClient
	cfg    ProviderConfig // zero for clients registered directly
}

// NewRegistry creates a new empty provider registry.
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]registryEntry),
		logger:  slog.Default(),
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger *slog.Logger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logger = logger
}

// Register adds or replaces a client by name.
func (r *Registry) Register(name string, client LLMClient) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[name] = registryEntry{client: client}
	r.logger.Info("registered LLM client", "name", name, "provider", client.Name())
}

// Unregister removes a client by name.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, name)
	r.logger.Info("unregistered LLM client", "name", name)
}

// Get returns a client by name.
func (r *Registry) Get(name string) (LLMClient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.entries[name]
	if !ok {
		return nil, fmt.Errorf("LLM client not found: %s", name)
	}
	return entry.client, nil
}

// Has reports whether a client is registered under name.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[name]
	return ok
}

// List returns all registered client names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LimiterStatus reports rate limiter state for every rate-limited client.
func (r *Registry) LimiterStatus() map[string]RateLimiterStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]RateLimiterStatus)
	for name, entry := range r.entries {
		if limited, ok := entry.client.(*LimitedClient); ok {
			out[name] = limited.Limiter().Status()
		}
	}
	return out
}

// RegistryConfig defines the providers to instantiate from config.
type RegistryConfig struct {
	Providers map[string]ProviderConfig
}

// ProviderConfig matches config.ProviderCfg with a resolved API key.
type ProviderConfig struct {
	Type      string // "openrouter", "openai", "gemini", "mock"
	Model     string
	APIKey    string
	BaseURL   string
	RateLimit int // Requests per minute, 0 disables limiting
	Timeout   time.Duration
	Enabled   bool
}

// NewRegistryFromConfig creates a registry with the enabled providers.
func NewRegistryFromConfig(ctx context.Context, cfg RegistryConfig, logger *slog.Logger) *Registry {
	r := NewRegistry()
	if logger != nil {
		r.logger = logger
	}
	r.Reload(ctx, cfg)
	return r
}

// Reload reconciles the registry with cfg. Providers that are no longer
// configured are removed; providers with changed settings are recreated.
// Clients registered directly with Register are left alone.
func (r *Registry) Reload(ctx context.Context, cfg RegistryConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()

	want := make(map[string]bool)
	for name, provCfg := range cfg.Providers {
		if !provCfg.Enabled {
			continue
		}
		want[name] = true

		existing, hasExisting := r.entries[name]
		if hasExisting && existing.cfg == provCfg {
			continue
		}
		client, err := createLLMClient(ctx, provCfg)
		if err != nil {
			r.logger.Warn("failed to create LLM client", "name", name, "type", provCfg.Type, "error", err)
			continue
		}
		r.entries[name] = registryEntry{client: client, cfg: provCfg}
		if hasExisting {
			r.logger.Info("updated LLM client", "name", name, "type", provCfg.Type)
		} else {
			r.logger.Info("registered LLM client", "name", name, "type", provCfg.Type)
		}
	}

	for name, entry := range r.entries {
		if entry.cfg.Type == "" {
			continue
		}
		if !want[name] {
			delete(r.entries, name)
			r.logger.Info("unregistered LLM client", "name", name)
		}
	}
}

// createLLMClient creates a client based on provider type.
func createLLMClient(ctx context.Context, cfg ProviderConfig) (LLMClient, error) {
	var client LLMClient
	switch cfg.Type {
	case OpenRouterName:
		client = NewOpenRouterClient(OpenRouterConfig{
			APIKey:       cfg.APIKey,
			BaseURL:      cfg.BaseURL,
			DefaultModel: cfg.Model,
			Timeout:      cfg.Timeout,
		})
	case OpenAIName:
		client = NewOpenAIClient(OpenAIConfig{
			APIKey:       cfg.APIKey,
			BaseURL:      cfg.BaseURL,
			DefaultModel: cfg.Model,
			Timeout:      cfg.Timeout,
		})
	case GeminiName:
		gc, err := NewGeminiClient(ctx, GeminiConfig{
			APIKey:       cfg.APIKey,
			BaseURL:      cfg.BaseURL,
			DefaultModel: cfg.Model,
			Timeout:      cfg.Timeout,
		})
		if err != nil {
			return nil, err
		}
		client = gc
	case MockClientName:
		client = NewMockClient()
	default:
		return nil, fmt.Errorf("unknown provider type %q", cfg.Type)
	}

	if cfg.RateLimit > 0 {
		return WithRateLimit(client, NewRateLimiter(cfg.RateLimit)), nil
	}
	return client, nil
}

// Client returns an LLMClient that looks name up on every call, so callers
// holding it follow Reload. A missing entry fails with ErrNotConfigured.
func (r *Registry) Client(name string) LLMClient {
	return &namedClient{registry: r, name: name}
}

type namedClient struct {
	registry *Registry
	name     string
}

func (c *namedClient) Chat(ctx context.Context, req *ChatRequest) (*ChatResult, error) {
	client, err := c.registry.Get(c.name)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotConfigured, err)
	}
	return client.Chat(ctx, req)
}

func (c *namedClient) Name() string { return c.name }
