// Package marks holds the Mark Detector instructions. The system prompt
// encodes the choice-mark versus item-number-mark rule.
package marks

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
	SystemPromptKey = "analysis.marks.system"
	UserPromptKey   = "analysis.marks.user"
)

// UserPromptData is the data for the user template.
type UserPromptData struct {
	PageCount int
}

// RegisterPrompts registers the mark detector prompts with the resolver.
func RegisterPrompts(r *prompts.Resolver) {
	r.Register(prompts.EmbeddedPrompt{
		Key:         SystemPromptKey,
		Text:        systemPrompt,
		Description: "Mark detector - grader marks on item numbers only",
	})
	r.Register(prompts.EmbeddedPrompt{
		Key:         UserPromptKey,
		Text:        userPromptTmpl,
		Description: "Mark detector user prompt template",
	})
}
