package config

import (
	"strings"
	"testing"
)

func TestDescribe(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Analysis.ConsolidationRatio = 0.5
	cfg.Knowledge.PostgresDSN = "postgres://app:secret@db/papers"
	p := cfg.Providers["openrouter"]
	p.APIKey = "sk-literal-key"
	cfg.Providers["openrouter"] = p

	entries, err := Describe(cfg, "")
	if err != nil {
		t.Fatalf("Describe() error = %v", err)
	}
	byKey := make(map[string]Entry, len(entries))
	for i, e := range entries {
		if i > 0 && entries[i-1].Key >= e.Key {
			t.Fatalf("entries not sorted at %s", e.Key)
		}
		byKey[e.Key] = e
	}

	t.Run("overrides are flagged", func(t *testing.T) {
		e := byKey["analysis.consolidation_ratio"]
		if !e.Overridden || e.Value != 0.5 || e.Default != 0.6 {
			t.Errorf("entry = %+v", e)
		}
		if byKey["analysis.verdict_floor"].Overridden {
			t.Error("unchanged key flagged as overridden")
		}
	})

	t.Run("literal secrets are redacted", func(t *testing.T) {
		key := byKey["providers.openrouter.api_key"]
		if strings.Contains(key.Value.(string), "sk-literal") {
			t.Errorf("api key leaked: %v", key.Value)
		}
		if key.Default != "${OPENROUTER_API_KEY}" {
			t.Errorf("env reference should be shown: %v", key.Default)
		}
		if dsn := byKey["knowledge.postgres_dsn"].Value.(string); strings.Contains(dsn, "secret") {
			t.Errorf("dsn leaked: %s", dsn)
		}
	})

	t.Run("every key is described", func(t *testing.T) {
		for _, e := range entries {
			if e.Description == "" {
				t.Errorf("%s has no description", e.Key)
			}
		}
	})

	t.Run("prefix filters", func(t *testing.T) {
		cacheOnly, err := Describe(cfg, "cache.")
		if err != nil {
			t.Fatal(err)
		}
		if len(cacheOnly) != 7 {
			t.Errorf("cache entries = %d, want 7", len(cacheOnly))
		}
	})
}
