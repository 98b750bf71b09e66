package providers

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"google.golang.org/genai"
)

const GeminiName = "gemini"

// GeminiConfig holds configuration for the Gemini client.
type GeminiConfig struct {
	APIKey       string
	BaseURL      string // Optional override, mainly for tests
	DefaultModel string
	Timeout      time.Duration
}

// GeminiClient implements LLMClient using the Google GenAI SDK.
type GeminiClient struct {
	client       *genai.Client
	defaultModel string
	configured   bool
}

// NewGeminiClient creates a Gemini client. A missing API key produces a client
// whose Chat calls fail with ErrNotConfigured.
func NewGeminiClient(ctx context.Context, cfg GeminiConfig) (*GeminiClient, error) {
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = "gemini-2.5-flash"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}
	if cfg.APIKey == "" {
		return &GeminiClient{defaultModel: cfg.DefaultModel}, nil
	}

	clientCfg := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: cfg.Timeout},
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &GeminiClient{client: client, defaultModel: cfg.DefaultModel, configured: true}, nil
}

// Name returns the client identifier.
func (c *GeminiClient) Name() string {
	return GeminiName
}

// Chat sends a generate-content request. System messages become the system instruction.
func (c *GeminiClient) Chat(ctx context.Context, req *ChatRequest) (*ChatResult, error) {
	start := time.Now()

	requestID := req.RequestID
	if requestID == "" {
		requestID = uuid.New().String()
	}
	result := &ChatResult{RequestID: requestID, Provider: GeminiName, Attempts: 1}

	if !c.configured {
		result.ErrorType = ErrorTypeUnavailable
		result.ErrorMessage = "missing API key"
		return result, fmt.Errorf("%s: %w", GeminiName, ErrNotConfigured)
	}

	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	model := req.Model
	if model == "" {
		model = c.defaultModel
	}

	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(req.Temperature)),
	}
	if req.MaxTokens > 0 {
		config.MaxOutputTokens = int32(req.MaxTokens)
	}
	if req.ResponseFormat != nil {
		config.ResponseMIMEType = "application/json"
	}

	var system []string
	contents := make([]*genai.Content, 0, len(req.Messages))
	for _, m := range req.Messages {
		if m.Role == "system" {
			system = append(system, m.Content)
			continue
		}
		parts := []*genai.Part{genai.NewPartFromText(m.Content)}
		for _, att := range m.Attachments {
			mediaType := att.MediaType
			if mediaType == "" {
				mediaType = http.DetectContentType(att.Data)
			}
			parts = append(parts, genai.NewPartFromBytes(att.Data, mediaType))
		}
		role := genai.Role(genai.RoleUser)
		if m.Role == "assistant" {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromParts(parts, role))
	}
	if len(system) > 0 {
		config.SystemInstruction = genai.NewContentFromText(strings.Join(system, "\n\n"), genai.RoleUser)
	}

	resp, err := c.client.Models.GenerateContent(ctx, model, contents, config)
	result.TotalTime = time.Since(start)
	if err != nil {
		errType, wrapped := classifyError(GeminiName, err)
		result.ErrorType = errType
		result.ErrorMessage = err.Error()
		return result, wrapped
	}

	text := resp.Text()
	if text == "" {
		result.ErrorType = ErrorTypeEmpty
		result.ErrorMessage = "empty response"
		return result, fmt.Errorf("%s: empty response", GeminiName)
	}

	result.Success = true
	result.Content = text
	result.ModelUsed = model
	if resp.ModelVersion != "" {
		result.ModelUsed = resp.ModelVersion
	}
	if usage := resp.UsageMetadata; usage != nil {
		result.PromptTokens = int(usage.PromptTokenCount)
		result.CompletionTokens = int(usage.CandidatesTokenCount)
		result.ReasoningTokens = int(usage.ThoughtsTokenCount)
		result.TotalTokens = int(usage.TotalTokenCount)
	}
	result.ExecutionTime = time.Since(start)
	result.TotalTime = result.ExecutionTime

	attachParsedJSON(req, result)
	return result, nil
}

var _ LLMClient = (*GeminiClient)(nil)
