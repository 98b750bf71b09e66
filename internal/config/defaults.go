package config

import (
	"fmt"
	"reflect"
	"slices"
	"strings"
)

// Entry is one effective setting with its default.
type Entry struct {
	Key         string `json:"key" yaml:"key"`
	Value       any    `json:"value" yaml:"value"`
	Default     any    `json:"default,omitempty" yaml:"default,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Overridden  bool   `json:"overridden" yaml:"overridden"`
}

var descriptions = map[string]string{
	"analysis.oracle_provider":         "Provider that runs the full paper analysis",
	"analysis.probe_provider":          "Provider for classification, mark detection and triage (empty uses the oracle)",
	"analysis.model":                   "Model override for every call (empty uses the provider default)",
	"analysis.temperature":             "Sampling temperature for oracle calls",
	"analysis.analyze_timeout_seconds": "Hard timeout for one analysis call",
	"analysis.probe_timeout_seconds":   "Hard timeout for classifier, detector and triage calls",
	"analysis.max_parse_attempts":      "Identical attempts before a parse failure or timeout is returned",
	"analysis.max_items":               "Highest item number counted toward gap detection; larger numbers flag review",
	"analysis.expected_total":          "Points a complete paper sums to; zero disables the check",
	"analysis.error_pattern_cap":       "Maximum error patterns included in the instructions",
	"analysis.consolidation_ratio":     "Share of items a subject needs to absorb stray topics; zero disables",
	"analysis.low_confidence":          "Item confidence that counts toward the review trigger",
	"analysis.low_confidence_items":    "Low-confidence items that trigger a review",
	"analysis.verdict_floor":           "Minimum confidence for a correct/incorrect verdict",
	"analysis.agreement_boost":         "Confidence added when the detector agrees with the oracle",
	"analysis.overwrite_threshold":     "Detector confidence that overrides a conflicting verdict",
	"analysis.revert_below":            "Detector confidence below which a conflict reverts to unknown",
	"analysis.score_threshold":         "Score mark confidence that resolves an item without the oracle",
	"analysis.detection_threshold":     "Verdict mark confidence that resolves an item without the oracle",
	"analysis.placeholder_confidence":  "Confidence given to items synthesized for gaps",
	"cache.backend":                    "memory, redis, layered or none",
	"cache.ttl_minutes":                "Minutes a cached analysis stays valid; zero never expires",
	"cache.max_entries":                "In-memory entries before the oldest are evicted",
	"cache.redis_addr":                 "Redis address for the redis and layered backends",
	"cache.redis_db":                   "Redis database number",
	"cache.redis_password":             "Redis password (supports ${ENV_VAR})",
	"cache.key_prefix":                 "Prefix for Redis keys",
	"knowledge.catalog_file":           "YAML knowledge catalog; empty uses the built-in one",
	"knowledge.postgres_dsn":           "Postgres DSN for the shared knowledge store",
	"knowledge.migrate":                "Create the knowledge tables on startup",
	"knowledge.learn_threshold":        "Identical corrections before a recognition rule is learned",
	"knowledge.call_history":           "Oracle calls kept in memory for inspection",
	"server.host":                      "Host to bind to",
	"server.port":                      "Port to listen on",
	"server.log_level":                 "debug, info, warn or error",
	"server.log_format":                "text or json",
}

// secretSuffixes mark keys whose literal values are never echoed.
var secretSuffixes = []string{".api_key", ".redis_password", ".postgres_dsn"}

// Describe lists the effective settings under prefix, sorted by key.
// Literal secrets are redacted; ${ENV_VAR} references are shown as written.
func Describe(cfg *Config, prefix string) ([]Entry, error) {
	current, err := flatten(cfg)
	if err != nil {
		return nil, err
	}
	defaults, err := flatten(DefaultConfig())
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(current))
	for key, value := range current {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		def, hasDefault := defaults[key]
		entry := Entry{
			Key:         key,
			Value:       redact(key, value),
			Description: describe(key),
			Overridden:  !hasDefault || !reflect.DeepEqual(def, value),
		}
		if hasDefault {
			entry.Default = redact(key, def)
		}
		entries = append(entries, entry)
	}
	slices.SortFunc(entries, func(a, b Entry) int { return strings.Compare(a.Key, b.Key) })
	return entries, nil
}

// describe finds the description for key; provider keys share one per field.
func describe(key string) string {
	if d, ok := descriptions[key]; ok {
		return d
	}
	if rest, ok := strings.CutPrefix(key, "providers."); ok {
		if _, field, ok := strings.Cut(rest, "."); ok {
			return providerFields[field]
		}
	}
	return ""
}

var providerFields = map[string]string{
	"type":            "openrouter, openai, gemini or mock",
	"model":           "Default model for the provider",
	"api_key":         "API key (supports ${ENV_VAR})",
	"base_url":        "Endpoint override",
	"rate_limit":      "Requests per minute; zero disables limiting",
	"timeout_seconds": "HTTP timeout for one request",
	"enabled":         "Whether the provider is registered",
}

func redact(key string, value any) any {
	s, ok := value.(string)
	if !ok || s == "" {
		return value
	}
	for _, suffix := range secretSuffixes {
		if strings.HasSuffix(key, suffix) {
			if envPattern.FindString(s) == s {
				return s
			}
			return fmt.Sprintf("<redacted %d chars>", len(s))
		}
	}
	return value
}
