// Package llmcall provides oracle call recording for traceability. Every
// oracle call is recorded with its stage, prompt key and hash, and usage.
package llmcall

import (
	"time"

	"github.com/google/uuid"

	"github.com/jackzampolin/papercheck/internal/providers"
)

// Call represents a recorded oracle call.
type Call struct {
	// Unique identifier
	ID string `json:"id" yaml:"id"`

	// Timing
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
	LatencyMs int       `json:"latency_ms" yaml:"latency_ms"`

	// Context references
	PaperKey  string `json:"paper_key,omitempty" yaml:"paper_key,omitempty"`
	RequestID string `json:"request_id,omitempty" yaml:"request_id,omitempty"`
	Stage     string `json:"stage" yaml:"stage"` // classify, marks, analyze, triage
	Attempt   int    `json:"attempt,omitempty" yaml:"attempt,omitempty"`

	// Prompt traceability
	PromptKey  string `json:"prompt_key" yaml:"prompt_key"`
	PromptHash string `json:"prompt_hash,omitempty" yaml:"prompt_hash,omitempty"`

	// Model info
	Provider    string   `json:"provider" yaml:"provider"`
	Model       string   `json:"model" yaml:"model"`
	Temperature *float64 `json:"temperature,omitempty" yaml:"temperature,omitempty"`

	// Token usage
	InputTokens  int     `json:"input_tokens" yaml:"input_tokens"`
	OutputTokens int     `json:"output_tokens" yaml:"output_tokens"`
	CostUSD      float64 `json:"cost_usd,omitempty" yaml:"cost_usd,omitempty"`

	// Response
	Response string `json:"response,omitempty" yaml:"response,omitempty"`

	// Status
	Success   bool   `json:"success" yaml:"success"`
	ErrorType string `json:"error_type,omitempty" yaml:"error_type,omitempty"`
	Error     string `json:"error,omitempty" yaml:"error,omitempty"`
}

// RecordOptions provides context for recording an oracle call.
type RecordOptions struct {
	PaperKey string
	Stage    string
	Attempt  int

	// Prompt identification (required for traceability)
	PromptKey  string
	PromptHash string

	// Request parameters (pointer to distinguish "not set" from "set to 0")
	Temperature *float64
}

// maxResponseBytes bounds the response text kept per call.
const maxResponseBytes = 4096

// FromChatResult creates a Call from a ChatResult.
// Returns nil if result is nil.
func FromChatResult(result *providers.ChatResult, opts RecordOptions) *Call {
	if result == nil {
		return nil
	}

	call := &Call{
		ID:           uuid.New().String(),
		Timestamp:    time.Now(),
		LatencyMs:    int(result.ExecutionTime.Milliseconds()),
		PaperKey:     opts.PaperKey,
		RequestID:    result.RequestID,
		Stage:        opts.Stage,
		Attempt:      opts.Attempt,
		PromptKey:    opts.PromptKey,
		PromptHash:   opts.PromptHash,
		Provider:     result.Provider,
		Model:        result.ModelUsed,
		Temperature:  opts.Temperature,
		InputTokens:  result.PromptTokens,
		OutputTokens: result.CompletionTokens,
		CostUSD:      result.CostUSD,
		Response:     result.Content,
		Success:      result.Success,
	}
	if len(call.Response) > maxResponseBytes {
		call.Response = call.Response[:maxResponseBytes]
	}

	if !result.Success {
		call.ErrorType = result.ErrorType
		call.Error = result.ErrorMessage
	}

	return call
}
