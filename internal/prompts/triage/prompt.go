// Package triage holds the compact correctness-check instructions used for
// items the triage pass could not resolve on its own.
package triage

import (
	_ "embed"

	"github.com/jackzampolin/papercheck/internal/prompts"
)

//go:embed system.tmpl
var systemPrompt string

//go:embed user.tmpl
var userPromptTmpl string

// Prompt keys
const (
	SystemPromptKey = "analysis.triage.system"
	UserPromptKey   = "analysis.triage.user"
)

// Item is one unresolved item listed in the user prompt.
type Item struct {
	ItemNumber    string
	Points        float64
	StudentAnswer string
}

// UserPromptData is the data for the user template.
type UserPromptData struct {
	Items []Item
}

// RegisterPrompts registers the triage prompts with the resolver.
func RegisterPrompts(r *prompts.Resolver) {
	r.Register(prompts.EmbeddedPrompt{
		Key:         SystemPromptKey,
		Text:        systemPrompt,
		Description: "Compact correctness check for uncertain items",
	})
	r.Register(prompts.EmbeddedPrompt{
		Key:         UserPromptKey,
		Text:        userPromptTmpl,
		Description: "Compact correctness check item list",
	})
}
