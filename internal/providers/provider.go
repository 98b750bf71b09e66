package providers

import (
	"context"
	"encoding/json"
	"time"
)

// LLMClient is the interface every oracle backend implements.
type LLMClient interface {
	// Chat sends a single completion request and blocks until it finishes,
	// fails, or the request timeout elapses.
	Chat(ctx context.Context, req *ChatRequest) (*ChatResult, error)

	// Name returns the client identifier (e.g., "openrouter").
	Name() string
}

// Attachment is a binary payload sent alongside a message, typically a page image.
type Attachment struct {
	Data      []byte `json:"-"`
	MediaType string `json:"media_type"` // e.g. "image/png", "application/pdf"
}

// Message represents a chat message.
type Message struct {
	Role        string       `json:"role"` // "system", "user", "assistant"
	Content     string       `json:"content"`
	Attachments []Attachment `json:"-"`
}

// ResponseFormat specifies structured output format.
type ResponseFormat struct {
	Type       string          `json:"type"` // "json_schema" or "json_object"
	JSONSchema json.RawMessage `json:"json_schema,omitempty"`
}

// ChatRequest is a request to an LLM.
type ChatRequest struct {
	// Required
	Messages []Message `json:"messages"`

	// Model selection (uses client default if empty)
	Model string `json:"model,omitempty"`

	// Generation parameters
	Temperature float64 `json:"temperature,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
	Timeout     time.Duration

	// Structured output
	ResponseFormat *ResponseFormat `json:"response_format,omitempty"`

	// Request tracking
	RequestID string `json:"-"`
}

// ChatResult is the complete response from an LLM call.
type ChatResult struct {
	// Response content
	Content    string          `json:"content"`
	ParsedJSON json.RawMessage `json:"parsed_json,omitempty"` // Set when ResponseFormat was honored

	// Token counts
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	ReasoningTokens  int `json:"reasoning_tokens,omitempty"`
	TotalTokens      int `json:"total_tokens"`

	// Cost and timing
	CostUSD       float64       `json:"cost_usd"`
	QueueTime     time.Duration `json:"queue_time"`
	ExecutionTime time.Duration `json:"execution_time"`
	TotalTime     time.Duration `json:"total_time"`

	// Provider info
	Provider  string `json:"provider"`
	ModelUsed string `json:"model_used"`

	// Request tracking
	RequestID string `json:"request_id"`
	Attempts  int    `json:"attempts"`

	// Success/error
	Success      bool   `json:"success"`
	ErrorType    string `json:"error_type,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
	RetryAfter   time.Duration
}

// Error types reported in ChatResult.ErrorType.
const (
	ErrorTypeTimeout     = "timeout"
	ErrorTypeUnavailable = "unavailable"
	ErrorTypeRateLimit   = "rate_limit"
	ErrorTypeHTTP        = "http_error"
	ErrorTypeParse       = "parse_error"
	ErrorTypeEmpty       = "empty_response"
	ErrorTypeAPI         = "api_error"
)

// UserMessage builds a user message carrying the given attachments.
func UserMessage(text string, attachments ...Attachment) Message {
	return Message{Role: "user", Content: text, Attachments: attachments}
}

// SystemMessage builds a system message.
func SystemMessage(text string) Message {
	return Message{Role: "system", Content: text}
}
