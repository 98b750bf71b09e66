// Package prompts provides prompt management with embedded defaults and
// scope-level overrides.
//
// Embedded .tmpl files in the stage subpackages are the source of truth for
// defaults. An optional OverrideStore supplies replacement text for a scope
// (typically a subject such as "math"), so instructions can be tuned per
// subject without a release.
//
// Resolution order for a scope:
//  1. Override from the store (if one exists)
//  2. Embedded default
//
// Every resolved prompt carries a SHA256 hash so analysis results can record
// the exact instruction versions that produced them.
package prompts

import (
	"context"
	"time"
)

// EmbeddedPrompt represents a prompt loaded from an embedded .tmpl file.
type EmbeddedPrompt struct {
	Key         string   // Hierarchical key: analysis.marks.system
	Text        string   // The prompt text (Go template)
	Description string   // Human-readable description
	Variables   []string // Extracted template variables
	Hash        string   // SHA256 hash of the text for change detection
}

// Override is a scope-level replacement for an embedded prompt.
type Override struct {
	Scope     string    `json:"scope" yaml:"scope"`
	PromptKey string    `json:"prompt_key" yaml:"prompt_key"`
	Text      string    `json:"text" yaml:"text"`
	Note      string    `json:"note,omitempty" yaml:"note,omitempty"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
}

// OverrideStore looks up overrides. A nil override with a nil error means none exists.
type OverrideStore interface {
	GetOverride(ctx context.Context, scope, promptKey string) (*Override, error)
}

// ResolvedPrompt is the result of resolving a prompt for a scope.
type ResolvedPrompt struct {
	Key        string   `json:"key" yaml:"key"`
	Text       string   `json:"text" yaml:"text"`
	Variables  []string `json:"variables,omitempty" yaml:"variables,omitempty"`
	IsOverride bool     `json:"is_override" yaml:"is_override"`
	Hash       string   `json:"hash" yaml:"hash"`
}

// OverrideWriter persists overrides.
type OverrideWriter interface {
	SetOverride(ctx context.Context, o Override) error
}
