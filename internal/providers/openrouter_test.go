package providers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func openRouterReply(content string) map[string]any {
	return map[string]any{
		"id":    "test-id",
		"model": "google/gemini-2.5-flash",
		"choices": []map[string]any{
			{
				"message": map[string]any{
					"role":    "assistant",
					"content": content,
				},
				"finish_reason": "stop",
			},
		},
		"usage": map[string]any{
			"prompt_tokens":     10,
			"completion_tokens": 8,
			"total_tokens":      18,
			"cost":              0.0004,
		},
	}
}

func TestOpenRouterClient_Chat(t *testing.T) {
	t.Run("successful chat", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/chat/completions" {
				t.Errorf("unexpected path: %s", r.URL.Path)
			}
			if r.Method != http.MethodPost {
				t.Errorf("unexpected method: %s", r.Method)
			}
			if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
				t.Errorf("unexpected authorization: %s", auth)
			}
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(openRouterReply("Hello!"))
		}))
		defer server.Close()

		client := NewOpenRouterClient(OpenRouterConfig{APIKey: "test-key", BaseURL: server.URL})
		result, err := client.Chat(context.Background(), &ChatRequest{
			Messages: []Message{{Role: "user", Content: "Hello"}},
		})
		if err != nil {
			t.Fatalf("Chat() error = %v", err)
		}
		if !result.Success {
			t.Error("expected Success = true")
		}
		if result.Content != "Hello!" {
			t.Errorf("Content = %q", result.Content)
		}
		if result.TotalTokens != 18 {
			t.Errorf("TotalTokens = %d, want 18", result.TotalTokens)
		}
		if result.CostUSD != 0.0004 {
			t.Errorf("CostUSD = %v, want 0.0004", result.CostUSD)
		}
		if result.Attempts != 1 {
			t.Errorf("Attempts = %d, want 1", result.Attempts)
		}
	})

	t.Run("page attachments become data URLs", func(t *testing.T) {
		var raw map[string]any
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, _ := io.ReadAll(r.Body)
			json.Unmarshal(body, &raw)
			json.NewEncoder(w).Encode(openRouterReply("ok"))
		}))
		defer server.Close()

		client := NewOpenRouterClient(OpenRouterConfig{APIKey: "test-key", BaseURL: server.URL})
		_, err := client.Chat(context.Background(), &ChatRequest{
			Messages: []Message{
				UserMessage("What is on this page?", Attachment{Data: []byte("fake-png"), MediaType: "image/png"}),
			},
		})
		if err != nil {
			t.Fatalf("Chat() error = %v", err)
		}

		msgs := raw["messages"].([]any)
		parts := msgs[0].(map[string]any)["content"].([]any)
		if len(parts) != 2 {
			t.Fatalf("expected 2 content parts, got %d", len(parts))
		}
		url := parts[1].(map[string]any)["image_url"].(map[string]any)["url"].(string)
		if !strings.HasPrefix(url, "data:image/png;base64,") {
			t.Errorf("unexpected image url prefix: %s", url[:30])
		}
	})

	t.Run("pdf pages become file parts with the parser plugin", func(t *testing.T) {
		var raw map[string]any
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, _ := io.ReadAll(r.Body)
			json.Unmarshal(body, &raw)
			json.NewEncoder(w).Encode(openRouterReply("ok"))
		}))
		defer server.Close()

		client := NewOpenRouterClient(OpenRouterConfig{APIKey: "test-key", BaseURL: server.URL})
		_, err := client.Chat(context.Background(), &ChatRequest{
			Messages: []Message{
				UserMessage("Grade this", Attachment{Data: []byte("%PDF-1.7 fake"), MediaType: "application/pdf"}),
			},
		})
		if err != nil {
			t.Fatalf("Chat() error = %v", err)
		}

		parts := raw["messages"].([]any)[0].(map[string]any)["content"].([]any)
		file := parts[1].(map[string]any)
		if file["type"] != "file" {
			t.Fatalf("part type = %v, want file", file["type"])
		}
		data := file["file"].(map[string]any)
		if data["filename"] != "page-1.pdf" || !strings.HasPrefix(data["file_data"].(string), "data:application/pdf;base64,") {
			t.Errorf("file part = %v", data)
		}
		plugins, _ := raw["plugins"].([]any)
		if len(plugins) != 1 || plugins[0].(map[string]any)["id"] != "file-parser" {
			t.Errorf("plugins = %v", raw["plugins"])
		}
	})

	t.Run("image pages send no plugins", func(t *testing.T) {
		req := (&OpenRouterClient{defaultModel: "m"}).buildRequest(&ChatRequest{
			Messages: []Message{UserMessage("x", Attachment{Data: []byte("png"), MediaType: "image/png"})},
		})
		if req.Plugins != nil {
			t.Errorf("plugins = %v", req.Plugins)
		}
	})

	t.Run("structured output is parsed through code fences", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(openRouterReply("```json\n{\"items\": [1, 2,],}\n```"))
		}))
		defer server.Close()

		client := NewOpenRouterClient(OpenRouterConfig{APIKey: "test-key", BaseURL: server.URL})
		result, err := client.Chat(context.Background(), &ChatRequest{
			Messages:       []Message{{Role: "user", Content: "list"}},
			ResponseFormat: &ResponseFormat{Type: "json_object"},
		})
		if err != nil {
			t.Fatalf("Chat() error = %v", err)
		}
		if string(result.ParsedJSON) != `{"items":[1,2]}` {
			t.Errorf("ParsedJSON = %s", result.ParsedJSON)
		}
	})

	t.Run("retries server errors then succeeds", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) == 1 {
				w.WriteHeader(http.StatusBadGateway)
				w.Write([]byte("upstream down"))
				return
			}
			json.NewEncoder(w).Encode(openRouterReply("recovered"))
		}))
		defer server.Close()

		client := NewOpenRouterClient(OpenRouterConfig{
			APIKey:     "test-key",
			BaseURL:    server.URL,
			MaxRetries: 3,
			RetryDelay: time.Millisecond,
		})
		result, err := client.Chat(context.Background(), &ChatRequest{
			Messages: []Message{{Role: "user", Content: "hi"}},
		})
		if err != nil {
			t.Fatalf("Chat() error = %v", err)
		}
		if result.Content != "recovered" {
			t.Errorf("Content = %q", result.Content)
		}
		if result.Attempts != 2 {
			t.Errorf("Attempts = %d, want 2", result.Attempts)
		}
	})

	t.Run("client errors are not retried", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":"bad request"}`))
		}))
		defer server.Close()

		client := NewOpenRouterClient(OpenRouterConfig{
			APIKey:     "test-key",
			BaseURL:    server.URL,
			MaxRetries: 3,
			RetryDelay: time.Millisecond,
		})
		result, err := client.Chat(context.Background(), &ChatRequest{
			Messages: []Message{{Role: "user", Content: "hi"}},
		})
		if err == nil {
			t.Fatal("expected error")
		}
		if calls.Load() != 1 {
			t.Errorf("server called %d times, want 1", calls.Load())
		}
		if result.ErrorType != ErrorTypeHTTP {
			t.Errorf("ErrorType = %q, want %q", result.ErrorType, ErrorTypeHTTP)
		}
	})

	t.Run("missing api key is not configured", func(t *testing.T) {
		client := NewOpenRouterClient(OpenRouterConfig{})
		_, err := client.Chat(context.Background(), &ChatRequest{
			Messages: []Message{{Role: "user", Content: "hi"}},
		})
		if !errors.Is(err, ErrNotConfigured) {
			t.Errorf("err = %v, want ErrNotConfigured", err)
		}
	})

	t.Run("request timeout maps to ErrTimeout", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		}))
		defer server.Close()

		client := NewOpenRouterClient(OpenRouterConfig{APIKey: "test-key", BaseURL: server.URL, MaxRetries: 1})
		result, err := client.Chat(context.Background(), &ChatRequest{
			Messages: []Message{{Role: "user", Content: "hi"}},
			Timeout:  50 * time.Millisecond,
		})
		if !errors.Is(err, ErrTimeout) {
			t.Fatalf("err = %v, want ErrTimeout", err)
		}
		if result.ErrorType != ErrorTypeTimeout {
			t.Errorf("ErrorType = %q, want %q", result.ErrorType, ErrorTypeTimeout)
		}
	})
}

func TestInjectNonce(t *testing.T) {
	req := openRouterRequest{
		Messages: []openRouterMessage{
			{Role: "system", Content: "sys"},
			{Role: "user", Content: []openRouterContent{{Type: "text", Text: "page"}, {Type: "image_url"}}},
		},
	}
	injectNonce(&req, 2)

	if req.Messages[0].Content != "sys" {
		t.Error("system message should not change")
	}
	parts := req.Messages[1].Content.([]openRouterContent)
	if !strings.Contains(parts[0].Text, "retry_2_id") {
		t.Errorf("nonce missing from text part: %q", parts[0].Text)
	}
}
