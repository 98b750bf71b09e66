// Package classify holds the Document Classifier instructions.
package classify

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
	SystemPromptKey = "analysis.classify.system"
	UserPromptKey   = "analysis.classify.user"
)

// UserPromptData is the data for the user template.
type UserPromptData struct {
	PageCount int
	Subject   string
}

// RegisterPrompts registers the classifier prompts with the resolver.
func RegisterPrompts(r *prompts.Resolver) {
	r.Register(prompts.EmbeddedPrompt{
		Key:         SystemPromptKey,
		Text:        systemPrompt,
		Description: "Document classifier - paper type and grading status",
	})
	r.Register(prompts.EmbeddedPrompt{
		Key:         UserPromptKey,
		Text:        userPromptTmpl,
		Description: "Document classifier user prompt template",
	})
}
