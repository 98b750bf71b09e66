package llmcall

import (
	"log/slog"

	"github.com/jackzampolin/papercheck/internal/metrics"
	"github.com/jackzampolin/papercheck/internal/providers"
)

// Recorder logs each call, counts it in metrics, and keeps recent calls in
// a Store for the calls endpoint. A nil *Recorder records nothing.
type Recorder struct {
	store   *Store
	metrics *metrics.Recorder
	logger  *slog.Logger
}

// NewRecorder creates a recorder. Any argument may be nil.
func NewRecorder(store *Store, m *metrics.Recorder, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{store: store, metrics: m, logger: logger}
}

// Record captures an oracle call.
func (r *Recorder) Record(result *providers.ChatResult, opts RecordOptions) {
	if r == nil || result == nil {
		return
	}
	r.RecordCall(FromChatResult(result, opts))
	r.metrics.RecordLLMCall(opts.Stage, result)
}

// RecordCall captures an already-constructed Call.
func (r *Recorder) RecordCall(call *Call) {
	if r == nil || call == nil {
		return
	}

	attrs := []any{
		"stage", call.Stage,
		"provider", call.Provider,
		"model", call.Model,
		"prompt_key", call.PromptKey,
		"latency_ms", call.LatencyMs,
		"input_tokens", call.InputTokens,
		"output_tokens", call.OutputTokens,
	}
	if call.Attempt > 0 {
		attrs = append(attrs, "attempt", call.Attempt)
	}
	if call.Success {
		r.logger.Debug("llm call", attrs...)
	} else {
		attrs = append(attrs, "error_type", call.ErrorType, "error", call.Error)
		r.logger.Warn("llm call failed", attrs...)
	}

	if r.store != nil {
		r.store.Add(call)
	}
}

// Store returns the backing store, or nil.
func (r *Recorder) Store() *Store {
	if r == nil {
		return nil
	}
	return r.store
}
