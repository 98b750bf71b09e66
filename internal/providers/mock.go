package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

const MockClientName = "mock"

// MockResponse is one scripted reply from a MockClient.
type MockResponse struct {
	Content string
	Err     error
	Delay   time.Duration // Overrides MockClient.Latency for this reply
}

// MockClient is an LLMClient for testing. Scripted replies are served in
// order; once the queue is empty Handler, then ResponseJSON/ResponseText apply.
type MockClient struct {
	// Configurable behavior
	Latency      time.Duration
	ShouldFail   bool
	FailAfter    int // Fail after N requests (0 = never)
	ResponseText string
	ResponseJSON json.RawMessage
	Handler      func(req *ChatRequest) (string, error)

	mu       sync.Mutex
	queue    []MockResponse
	requests []*ChatRequest

	requestCount atomic.Int64
}

// NewMockClient creates a new mock client with sensible defaults.
func NewMockClient() *MockClient {
	return &MockClient{
		ResponseText: "mock response",
	}
}

// Name returns the client identifier.
func (c *MockClient) Name() string {
	return MockClientName
}

// Enqueue appends scripted replies.
func (c *MockClient) Enqueue(responses ...MockResponse) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queue = append(c.queue, responses...)
}

// EnqueueJSON appends one reply per value, each marshaled as JSON.
func (c *MockClient) EnqueueJSON(values ...any) {
	for _, v := range values {
		b, err := json.Marshal(v)
		if err != nil {
			panic(fmt.Sprintf("mock: marshal scripted reply: %v", err))
		}
		c.Enqueue(MockResponse{Content: string(b)})
	}
}

// Requests returns every request received, in order.
func (c *MockClient) Requests() []*ChatRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*ChatRequest, len(c.requests))
	copy(out, c.requests)
	return out
}

// Chat serves the next scripted reply.
func (c *MockClient) Chat(ctx context.Context, req *ChatRequest) (*ChatResult, error) {
	start := time.Now()
	count := c.requestCount.Add(1)

	c.mu.Lock()
	c.requests = append(c.requests, req)
	var scripted *MockResponse
	if len(c.queue) > 0 {
		next := c.queue[0]
		c.queue = c.queue[1:]
		scripted = &next
	}
	c.mu.Unlock()

	result := &ChatResult{
		RequestID: fmt.Sprintf("mock-%d", count),
		Provider:  MockClientName,
		ModelUsed: req.Model,
		Attempts:  1,
	}

	fail := func(errType string, err error) (*ChatResult, error) {
		result.Success = false
		result.ErrorType = errType
		result.ErrorMessage = err.Error()
		result.TotalTime = time.Since(start)
		return result, err
	}

	if c.ShouldFail {
		return fail("mock_failure", fmt.Errorf("mock client configured to fail"))
	}
	if c.FailAfter > 0 && int(count) > c.FailAfter {
		return fail("mock_failure", fmt.Errorf("mock client failed after %d requests", c.FailAfter))
	}

	latency := c.Latency
	if scripted != nil && scripted.Delay > 0 {
		latency = scripted.Delay
	}
	if latency > 0 {
		if req.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, req.Timeout)
			defer cancel()
		}
		timer := time.NewTimer(latency)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			errType, wrapped := classifyError(MockClientName, ctx.Err())
			return fail(errType, wrapped)
		}
	}

	var content string
	switch {
	case scripted != nil:
		if scripted.Err != nil {
			return fail(ErrorTypeAPI, scripted.Err)
		}
		content = scripted.Content
	case c.Handler != nil:
		text, err := c.Handler(req)
		if err != nil {
			return fail(ErrorTypeAPI, err)
		}
		content = text
	case len(c.ResponseJSON) > 0:
		content = string(c.ResponseJSON)
	default:
		content = c.ResponseText
	}

	result.Success = true
	result.Content = content
	result.ExecutionTime = time.Since(start)
	result.TotalTime = result.ExecutionTime

	promptTokens := 0
	for _, m := range req.Messages {
		promptTokens += len(m.Content) / 4
	}
	result.PromptTokens = promptTokens
	result.CompletionTokens = len(content) / 4
	result.TotalTokens = result.PromptTokens + result.CompletionTokens
	result.CostUSD = 0.001

	attachParsedJSON(req, result)
	return result, nil
}

// RequestCount returns the number of requests made.
func (c *MockClient) RequestCount() int64 {
	return c.requestCount.Load()
}

// Reset clears the request counter, history, and queue.
func (c *MockClient) Reset() {
	c.requestCount.Store(0)
	c.mu.Lock()
	c.queue = nil
	c.requests = nil
	c.mu.Unlock()
}

var _ LLMClient = (*MockClient)(nil)
