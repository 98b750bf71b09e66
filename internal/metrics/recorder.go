// Package metrics exports oracle usage, cache activity and pipeline outcomes
// as Prometheus metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jackzampolin/papercheck/internal/providers"
)

// Recorder owns every papercheck metric. A nil *Recorder is valid and
// records nothing.
type Recorder struct {
	gatherer prometheus.Gatherer

	llmCalls    *prometheus.CounterVec
	llmLatency  *prometheus.SummaryVec
	llmTokens   *prometheus.CounterVec
	llmCost     *prometheus.CounterVec
	analyses    *prometheus.CounterVec
	analysisDur *prometheus.SummaryVec
	cache       *prometheus.CounterVec
	corrections *prometheus.CounterVec
	resolutions *prometheus.CounterVec
	httpReqs    *prometheus.CounterVec
	httpDur     *prometheus.SummaryVec
}

var objectives = map[float64]float64{
	0.5:  0.05,
	0.9:  0.01,
	0.95: 0.005,
	0.99: 0.001,
}

// NewRecorder registers the metrics with a fresh registry.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return NewRecorderWith(reg, reg)
}

// NewRecorderWith registers the metrics with reg and serves them from gatherer.
func NewRecorderWith(reg prometheus.Registerer, gatherer prometheus.Gatherer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		gatherer: gatherer,
		llmCalls: f.NewCounterVec(prometheus.CounterOpts{
			Name: "papercheck_llm_calls_total",
			Help: "Oracle calls by provider, stage and outcome",
		}, []string{"provider", "stage", "status"}),
		llmLatency: f.NewSummaryVec(prometheus.SummaryOpts{
			Name:       "papercheck_llm_call_duration_seconds",
			Help:       "Oracle call execution time in seconds",
			Objectives: objectives,
		}, []string{"provider", "stage"}),
		llmTokens: f.NewCounterVec(prometheus.CounterOpts{
			Name: "papercheck_llm_tokens_total",
			Help: "Oracle tokens by provider and kind",
		}, []string{"provider", "kind"}),
		llmCost: f.NewCounterVec(prometheus.CounterOpts{
			Name: "papercheck_llm_cost_usd_total",
			Help: "Reported oracle cost in USD",
		}, []string{"provider"}),
		analyses: f.NewCounterVec(prometheus.CounterOpts{
			Name: "papercheck_analyses_total",
			Help: "Pipeline runs by entry point and outcome",
		}, []string{"entry", "outcome"}),
		analysisDur: f.NewSummaryVec(prometheus.SummaryOpts{
			Name:       "papercheck_analysis_duration_seconds",
			Help:       "Pipeline run time in seconds",
			Objectives: objectives,
		}, []string{"entry"}),
		cache: f.NewCounterVec(prometheus.CounterOpts{
			Name: "papercheck_cache_lookups_total",
			Help: "Content cache lookups by result",
		}, []string{"result"}),
		corrections: f.NewCounterVec(prometheus.CounterOpts{
			Name: "papercheck_crossval_adjustments_total",
			Help: "Cross-validation adjustments by kind",
		}, []string{"kind"}),
		resolutions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "papercheck_item_resolutions_total",
			Help: "Items by how their verdict was resolved",
		}, []string{"resolved_by"}),
		httpReqs: f.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "path", "status_code"}),
		httpDur: f.NewSummaryVec(prometheus.SummaryOpts{
			Name:       "http_request_duration_seconds",
			Help:       "HTTP request duration in seconds",
			Objectives: objectives,
		}, []string{"method", "path", "status_code"}),
	}
}

// RecordLLMCall records usage from an oracle result. stage names the
// pipeline step (classify, marks, analyze, triage).
func (r *Recorder) RecordLLMCall(stage string, result *providers.ChatResult) {
	if r == nil || result == nil {
		return
	}
	status := "success"
	if !result.Success {
		status = result.ErrorType
		if status == "" {
			status = "error"
		}
	}
	r.llmCalls.WithLabelValues(result.Provider, stage, status).Inc()
	r.llmLatency.WithLabelValues(result.Provider, stage).Observe(result.ExecutionTime.Seconds())
	r.llmTokens.WithLabelValues(result.Provider, "prompt").Add(float64(result.PromptTokens))
	r.llmTokens.WithLabelValues(result.Provider, "completion").Add(float64(result.CompletionTokens))
	if result.CostUSD > 0 {
		r.llmCost.WithLabelValues(result.Provider).Add(result.CostUSD)
	}
}

// RecordAnalysis records one pipeline run.
func (r *Recorder) RecordAnalysis(entry, outcome string, seconds float64) {
	if r == nil {
		return
	}
	r.analyses.WithLabelValues(entry, outcome).Inc()
	r.analysisDur.WithLabelValues(entry).Observe(seconds)
}

// RecordCacheLookup counts a cache hit or miss.
func (r *Recorder) RecordCacheLookup(hit bool) {
	if r == nil {
		return
	}
	if hit {
		r.cache.WithLabelValues("hit").Inc()
		return
	}
	r.cache.WithLabelValues("miss").Inc()
}

// RecordAdjustment counts a cross-validation adjustment (agree, overwrite, revert).
func (r *Recorder) RecordAdjustment(kind string) {
	if r == nil {
		return
	}
	r.corrections.WithLabelValues(kind).Inc()
}

// RecordResolution counts an item verdict by its resolution source.
func (r *Recorder) RecordResolution(resolvedBy string) {
	if r == nil {
		return
	}
	r.resolutions.WithLabelValues(resolvedBy).Inc()
}

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	if r == nil || r.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{})
}

// Gatherer exposes the underlying gatherer for tests and custom exporters.
func (r *Recorder) Gatherer() prometheus.Gatherer {
	return r.gatherer
}
