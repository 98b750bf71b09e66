package llmcall

import (
	"sort"
)

// Stats summarizes a set of calls with latency percentiles and token totals.
type Stats struct {
	// Basic counts
	Count        int `json:"count" yaml:"count"`
	SuccessCount int `json:"success_count" yaml:"success_count"`
	ErrorCount   int `json:"error_count" yaml:"error_count"`

	// Cost
	TotalCostUSD float64 `json:"total_cost_usd" yaml:"total_cost_usd"`
	AvgCostUSD   float64 `json:"avg_cost_usd" yaml:"avg_cost_usd"`

	// Latency percentiles (milliseconds)
	LatencyP50 float64 `json:"latency_p50_ms" yaml:"latency_p50_ms"`
	LatencyP95 float64 `json:"latency_p95_ms" yaml:"latency_p95_ms"`
	LatencyP99 float64 `json:"latency_p99_ms" yaml:"latency_p99_ms"`
	LatencyAvg float64 `json:"latency_avg_ms" yaml:"latency_avg_ms"`
	LatencyMin float64 `json:"latency_min_ms" yaml:"latency_min_ms"`
	LatencyMax float64 `json:"latency_max_ms" yaml:"latency_max_ms"`

	// Token stats
	TotalInputTokens  int     `json:"total_input_tokens" yaml:"total_input_tokens"`
	TotalOutputTokens int     `json:"total_output_tokens" yaml:"total_output_tokens"`
	AvgInputTokens    float64 `json:"avg_input_tokens" yaml:"avg_input_tokens"`
	AvgOutputTokens   float64 `json:"avg_output_tokens" yaml:"avg_output_tokens"`

	// ErrorTypes counts failed calls by provider error type.
	ErrorTypes map[string]int `json:"error_types,omitempty" yaml:"error_types,omitempty"`
}

// Summary groups call statistics overall and per stage, model and provider.
type Summary struct {
	Overall    *Stats            `json:"overall" yaml:"overall"`
	ByStage    map[string]*Stats `json:"by_stage" yaml:"by_stage"`
	ByModel    map[string]*Stats `json:"by_model" yaml:"by_model"`
	ByProvider map[string]*Stats `json:"by_provider" yaml:"by_provider"`
}

// Summarize returns statistics for the calls matching filter. Limit and
// offset are ignored.
func (s *Store) Summarize(filter QueryFilter) *Summary {
	filter.Limit, filter.Offset = 0, 0
	return Summarize(s.List(filter))
}

// Summarize computes statistics for calls.
func Summarize(calls []*Call) *Summary {
	byStage := make(map[string][]*Call)
	byModel := make(map[string][]*Call)
	byProvider := make(map[string][]*Call)
	for _, c := range calls {
		byStage[c.Stage] = append(byStage[c.Stage], c)
		byModel[c.Model] = append(byModel[c.Model], c)
		byProvider[c.Provider] = append(byProvider[c.Provider], c)
	}
	return &Summary{
		Overall:    ComputeStats(calls),
		ByStage:    statsByKey(byStage),
		ByModel:    statsByKey(byModel),
		ByProvider: statsByKey(byProvider),
	}
}

func statsByKey(groups map[string][]*Call) map[string]*Stats {
	out := make(map[string]*Stats, len(groups))
	for key, calls := range groups {
		out[key] = ComputeStats(calls)
	}
	return out
}

// ComputeStats computes statistics for one group of calls.
func ComputeStats(calls []*Call) *Stats {
	stats := &Stats{Count: len(calls)}
	if len(calls) == 0 {
		return stats
	}

	var latencies []float64
	for _, c := range calls {
		stats.TotalCostUSD += c.CostUSD
		if c.Success {
			stats.SuccessCount++
		} else {
			stats.ErrorCount++
			if stats.ErrorTypes == nil {
				stats.ErrorTypes = make(map[string]int)
			}
			stats.ErrorTypes[c.ErrorType]++
		}
		stats.TotalInputTokens += c.InputTokens
		stats.TotalOutputTokens += c.OutputTokens
		if c.LatencyMs > 0 {
			latencies = append(latencies, float64(c.LatencyMs))
		}
	}

	count := float64(stats.Count)
	stats.AvgCostUSD = stats.TotalCostUSD / count
	stats.AvgInputTokens = float64(stats.TotalInputTokens) / count
	stats.AvgOutputTokens = float64(stats.TotalOutputTokens) / count

	if len(latencies) > 0 {
		sort.Float64s(latencies)
		stats.LatencyMin = latencies[0]
		stats.LatencyMax = latencies[len(latencies)-1]
		var sum float64
		for _, l := range latencies {
			sum += l
		}
		stats.LatencyAvg = sum / float64(len(latencies))
		stats.LatencyP50 = percentile(latencies, 50)
		stats.LatencyP95 = percentile(latencies, 95)
		stats.LatencyP99 = percentile(latencies, 99)
	}
	return stats
}

// percentile interpolates the p-th percentile of a sorted slice.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}

	idx := (p / 100.0) * float64(len(sorted)-1)
	lower := int(idx)
	upper := lower + 1
	if upper >= len(sorted) {
		return sorted[len(sorted)-1]
	}
	weight := idx - float64(lower)
	return sorted[lower]*(1-weight) + sorted[upper]*weight
}
