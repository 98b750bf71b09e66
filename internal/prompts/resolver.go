package prompts

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// Resolver resolves prompts with scope-level overrides.
// Resolution order: Override > Embedded default
type Resolver struct {
	store    OverrideStore
	embedded map[string]EmbeddedPrompt
	mu       sync.RWMutex
	logger   *slog.Logger
}

// NewResolver creates a new prompt resolver. store may be nil.
func NewResolver(store OverrideStore, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		store:    store,
		embedded: make(map[string]EmbeddedPrompt),
		logger:   logger,
	}
}

// Register registers an embedded prompt. Stage packages call this during initialization.
func (r *Resolver) Register(prompt EmbeddedPrompt) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prompt.Hash == "" {
		prompt.Hash = HashText(prompt.Text)
	}
	if prompt.Variables == nil {
		prompt.Variables = ExtractVariables(prompt.Text)
	}

	r.embedded[prompt.Key] = prompt
	r.logger.Debug("registered embedded prompt", "key", prompt.Key, "vars", prompt.Variables)
}

// Resolve returns the override for scope if one exists, otherwise the embedded default.
// Store failures fall through to the default.
func (r *Resolver) Resolve(ctx context.Context, key, scope string) (*ResolvedPrompt, error) {
	if scope != "" && r.store != nil {
		override, err := r.store.GetOverride(ctx, scope, key)
		if err != nil {
			r.logger.Warn("failed to check prompt override", "key", key, "scope", scope, "error", err)
		} else if override != nil && override.Text != "" {
			return &ResolvedPrompt{
				Key:        key,
				Text:       override.Text,
				Variables:  ExtractVariables(override.Text),
				IsOverride: true,
				Hash:       HashText(override.Text),
			}, nil
		}
	}

	r.mu.RLock()
	embedded, ok := r.embedded[key]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("prompt not found: %s", key)
	}

	return &ResolvedPrompt{
		Key:       key,
		Text:      embedded.Text,
		Variables: embedded.Variables,
		Hash:      embedded.Hash,
	}, nil
}

// GetEmbedded returns the embedded default for a key.
func (r *Resolver) GetEmbedded(key string) (*EmbeddedPrompt, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.embedded[key]
	return &p, ok
}

// AllEmbedded returns all registered embedded prompts sorted by key.
func (r *Resolver) AllEmbedded() []EmbeddedPrompt {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]EmbeddedPrompt, 0, len(r.embedded))
	for _, p := range r.embedded {
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Key < result[j].Key })
	return result
}

// StaticOverrides is an in-memory OverrideStore keyed by scope then prompt key.
type StaticOverrides map[string]map[string]string

// GetOverride implements OverrideStore.
func (s StaticOverrides) GetOverride(_ context.Context, scope, promptKey string) (*Override, error) {
	text, ok := s[scope][promptKey]
	if !ok {
		return nil, nil
	}
	return &Override{Scope: scope, PromptKey: promptKey, Text: text}, nil
}
