package analysis

import (
	"context"

	"github.com/jackzampolin/papercheck/internal/prompts"
	"github.com/jackzampolin/papercheck/internal/prompts/analyze"
	"github.com/jackzampolin/papercheck/internal/prompts/classify"
	"github.com/jackzampolin/papercheck/internal/prompts/marks"
	"github.com/jackzampolin/papercheck/internal/prompts/triage"
)

// RegisterPrompts registers every prompt the pipeline uses.
func RegisterPrompts(r *prompts.Resolver) {
	classify.RegisterPrompts(r)
	marks.RegisterPrompts(r)
	analyze.RegisterPrompts(r)
	triage.RegisterPrompts(r)
}

// renderPrompt resolves key for scope and executes it with data.
func renderPrompt(ctx context.Context, r *prompts.Resolver, key, scope string, data any) (text, hash string, err error) {
	resolved, err := r.Resolve(ctx, key, scope)
	if err != nil {
		return "", "", err
	}
	text, err = prompts.Render(key, resolved.Text, data)
	if err != nil {
		return "", "", err
	}
	return text, resolved.Hash, nil
}
