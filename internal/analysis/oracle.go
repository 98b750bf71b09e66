package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/jackzampolin/papercheck/internal/exam"
	"github.com/jackzampolin/papercheck/internal/llmcall"
	"github.com/jackzampolin/papercheck/internal/providers"
)

// caller issues one bounded oracle call and returns the parsed JSON object.
type caller struct {
	client      providers.LLMClient
	model       string
	temperature float64
	timeout     time.Duration
	recorder    *llmcall.Recorder
	logger      *slog.Logger
}

type oracleRequest struct {
	stage      string
	promptKey  string
	promptHash string
	system     string
	user       string
	pages      []exam.Page
	schemaName string
	schema     map[string]any
	paperKey   string
	attempt    int
}

func (c *caller) call(ctx context.Context, r oracleRequest) (json.RawMessage, error) {
	if c.client == nil {
		return nil, fmt.Errorf("%s: %w: no oracle client configured", r.stage, ErrServiceUnavailable)
	}

	schemaRaw, err := json.Marshal(r.schema)
	if err != nil {
		return nil, fmt.Errorf("%s: marshal schema: %w", r.stage, err)
	}

	callCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req := &providers.ChatRequest{
		Messages: []providers.Message{
			providers.SystemMessage(r.system),
			providers.UserMessage(r.user, attachments(r.pages)...),
		},
		Model:          c.model,
		Temperature:    c.temperature,
		Timeout:        c.timeout,
		ResponseFormat: providers.JSONSchemaFormat(r.schemaName, schemaRaw),
		RequestID:      uuid.NewString(),
	}

	result, err := c.client.Chat(callCtx, req)
	c.recorder.Record(result, llmcall.RecordOptions{
		PaperKey:    r.paperKey,
		Stage:       r.stage,
		Attempt:     r.attempt,
		PromptKey:   r.promptKey,
		PromptHash:  r.promptHash,
		Temperature: &c.temperature,
	})
	if err != nil {
		return nil, callError(ctx, r.stage, err)
	}

	parsed := result.ParsedJSON
	if len(parsed) == 0 {
		parsed, err = providers.ParseStructuredJSON(result.Content)
		if err != nil {
			return nil, fmt.Errorf("%s: %w: %v", r.stage, ErrStructuralParse, err)
		}
	}
	if err := providers.ValidateStructuredJSON(schemaRaw, parsed); err != nil {
		return nil, fmt.Errorf("%s: %w: %v", r.stage, ErrStructuralParse, err)
	}
	return parsed, nil
}

// decode unmarshals parsed oracle output into v, reporting shape errors as
// structural parse failures.
func decode(stage string, parsed json.RawMessage, v any) error {
	if err := json.Unmarshal(parsed, v); err != nil {
		return fmt.Errorf("%s: %w: %v", stage, ErrStructuralParse, err)
	}
	return nil
}

func attachments(pages []exam.Page) []providers.Attachment {
	out := make([]providers.Attachment, 0, len(pages))
	for _, p := range pages {
		out = append(out, providers.Attachment{Data: p.Data, MediaType: p.MediaType})
	}
	return out
}
