package config

import (
	"time"

	"github.com/jackzampolin/papercheck/internal/analysis"
	"github.com/jackzampolin/papercheck/internal/cache"
	"github.com/jackzampolin/papercheck/internal/providers"
)

// Config holds papercheck configuration.
// Stored at: {home}/config.yaml
type Config struct {
	Providers map[string]ProviderCfg `mapstructure:"providers" yaml:"providers"`
	Analysis  AnalysisCfg            `mapstructure:"analysis" yaml:"analysis"`
	Cache     CacheCfg               `mapstructure:"cache" yaml:"cache"`
	Knowledge KnowledgeCfg           `mapstructure:"knowledge" yaml:"knowledge"`
	Server    ServerCfg              `mapstructure:"server" yaml:"server"`
}

// ProviderCfg configures an oracle provider.
type ProviderCfg struct {
	Type           string `mapstructure:"type" yaml:"type"`             // "openrouter", "openai", "gemini", "mock"
	Model          string `mapstructure:"model" yaml:"model"`           // Default model name
	APIKey         string `mapstructure:"api_key" yaml:"api_key"`       // API key (supports ${ENV_VAR} syntax)
	BaseURL        string `mapstructure:"base_url" yaml:"base_url"`     // Optional endpoint override
	RateLimit      int    `mapstructure:"rate_limit" yaml:"rate_limit"` // Requests per minute
	TimeoutSeconds int    `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
	Enabled        bool   `mapstructure:"enabled" yaml:"enabled"`
}

// AnalysisCfg selects providers and tunes the pipeline thresholds.
type AnalysisCfg struct {
	OracleProvider string  `mapstructure:"oracle_provider" yaml:"oracle_provider"`
	ProbeProvider  string  `mapstructure:"probe_provider" yaml:"probe_provider"` // classifier, detector, triage; empty uses the oracle
	Model          string  `mapstructure:"model" yaml:"model"`
	Temperature    float64 `mapstructure:"temperature" yaml:"temperature"`

	AnalyzeTimeoutSeconds int `mapstructure:"analyze_timeout_seconds" yaml:"analyze_timeout_seconds"`
	ProbeTimeoutSeconds   int `mapstructure:"probe_timeout_seconds" yaml:"probe_timeout_seconds"`
	MaxParseAttempts      int `mapstructure:"max_parse_attempts" yaml:"max_parse_attempts"`
	MaxItems              int `mapstructure:"max_items" yaml:"max_items"`

	ExpectedTotal      float64 `mapstructure:"expected_total" yaml:"expected_total"`
	ErrorPatternCap    int     `mapstructure:"error_pattern_cap" yaml:"error_pattern_cap"`
	ConsolidationRatio float64 `mapstructure:"consolidation_ratio" yaml:"consolidation_ratio"`

	LowConfidence      float64 `mapstructure:"low_confidence" yaml:"low_confidence"`
	LowConfidenceItems int     `mapstructure:"low_confidence_items" yaml:"low_confidence_items"`
	VerdictFloor       float64 `mapstructure:"verdict_floor" yaml:"verdict_floor"`

	AgreementBoost     float64 `mapstructure:"agreement_boost" yaml:"agreement_boost"`
	OverwriteThreshold float64 `mapstructure:"overwrite_threshold" yaml:"overwrite_threshold"`
	RevertBelow        float64 `mapstructure:"revert_below" yaml:"revert_below"`

	ScoreThreshold     float64 `mapstructure:"score_threshold" yaml:"score_threshold"`
	DetectionThreshold float64 `mapstructure:"detection_threshold" yaml:"detection_threshold"`

	PlaceholderConfidence float64 `mapstructure:"placeholder_confidence" yaml:"placeholder_confidence"`
}

// CacheCfg configures the content cache.
type CacheCfg struct {
	Backend       string `mapstructure:"backend" yaml:"backend"` // memory, redis, layered or none
	TTLMinutes    int    `mapstructure:"ttl_minutes" yaml:"ttl_minutes"`
	MaxEntries    int    `mapstructure:"max_entries" yaml:"max_entries"`
	RedisAddr     string `mapstructure:"redis_addr" yaml:"redis_addr"`
	RedisDB       int    `mapstructure:"redis_db" yaml:"redis_db"`
	RedisPassword string `mapstructure:"redis_password" yaml:"redis_password"` // supports ${ENV_VAR}
	KeyPrefix     string `mapstructure:"key_prefix" yaml:"key_prefix"`
}

// KnowledgeCfg locates the recognition patterns, error library and topic guide.
type KnowledgeCfg struct {
	// CatalogFile is a YAML catalog; empty uses the embedded one.
	CatalogFile string `mapstructure:"catalog_file" yaml:"catalog_file"`
	// PostgresDSN switches to the Postgres store (supports ${ENV_VAR}).
	PostgresDSN    string `mapstructure:"postgres_dsn" yaml:"postgres_dsn"`
	Migrate        bool   `mapstructure:"migrate" yaml:"migrate"`
	LearnThreshold int    `mapstructure:"learn_threshold" yaml:"learn_threshold"`
	// CallHistory is how many oracle calls the server keeps for /v1/calls.
	CallHistory int `mapstructure:"call_history" yaml:"call_history"`
}

// ServerCfg configures the HTTP server.
type ServerCfg struct {
	Host      string `mapstructure:"host" yaml:"host"`
	Port      string `mapstructure:"port" yaml:"port"`
	LogLevel  string `mapstructure:"log_level" yaml:"log_level"`
	LogFormat string `mapstructure:"log_format" yaml:"log_format"` // text or json
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	s := analysis.DefaultSettings()
	return &Config{
		Providers: map[string]ProviderCfg{
			"openrouter": {
				Type:           providers.OpenRouterName,
				Model:          "google/gemini-2.5-pro",
				APIKey:         "${OPENROUTER_API_KEY}",
				RateLimit:      60,
				TimeoutSeconds: 180,
				Enabled:        true,
			},
		},
		Analysis: AnalysisCfg{
			OracleProvider:        "openrouter",
			Temperature:           s.Temperature,
			AnalyzeTimeoutSeconds: int(s.AnalyzeTimeout / time.Second),
			ProbeTimeoutSeconds:   int(s.ProbeTimeout / time.Second),
			MaxParseAttempts:      s.MaxParseAttempts,
			MaxItems:              s.MaxItems,
			ExpectedTotal:         s.ExpectedTotal,
			ErrorPatternCap:       s.ErrorPatternCap,
			ConsolidationRatio:    s.ConsolidationRatio,
			LowConfidence:         s.LowConfidence,
			LowConfidenceItems:    s.LowConfidenceItems,
			VerdictFloor:          s.VerdictFloor,
			AgreementBoost:        s.AgreementBoost,
			OverwriteThreshold:    s.OverwriteThreshold,
			RevertBelow:           s.RevertBelow,
			ScoreThreshold:        s.ScoreThreshold,
			DetectionThreshold:    s.DetectionThreshold,
			PlaceholderConfidence: s.PlaceholderConfidence,
		},
		Cache: CacheCfg{
			Backend:    "memory",
			TTLMinutes: 24 * 60,
			MaxEntries: 1000,
			RedisAddr:  "localhost:6379",
			KeyPrefix:  "papercheck:",
		},
		Knowledge: KnowledgeCfg{
			LearnThreshold: 3,
			CallHistory:    500,
		},
		Server: ServerCfg{
			Host:      "127.0.0.1",
			Port:      "8080",
			LogLevel:  "info",
			LogFormat: "text",
		},
	}
}

// EnabledProviders returns all enabled providers.
func (c *Config) EnabledProviders() map[string]ProviderCfg {
	result := make(map[string]ProviderCfg)
	for name, cfg := range c.Providers {
		if cfg.Enabled {
			result[name] = cfg
		}
	}
	return result
}

// ToProviderRegistryConfig converts the config to a format suitable for providers.Registry.
// It resolves all ${ENV_VAR} references in API keys.
func (c *Config) ToProviderRegistryConfig() providers.RegistryConfig {
	cfg := providers.RegistryConfig{Providers: make(map[string]providers.ProviderConfig, len(c.Providers))}
	for name, p := range c.Providers {
		cfg.Providers[name] = providers.ProviderConfig{
			Type:      p.Type,
			Model:     p.Model,
			APIKey:    ResolveEnvVars(p.APIKey),
			BaseURL:   p.BaseURL,
			RateLimit: p.RateLimit,
			Timeout:   time.Duration(p.TimeoutSeconds) * time.Second,
			Enabled:   p.Enabled,
		}
	}
	return cfg
}

// Settings converts the analysis section into pipeline settings.
func (c *Config) Settings() analysis.Settings {
	a := c.Analysis
	return analysis.Settings{
		Model:                 a.Model,
		Temperature:           a.Temperature,
		AnalyzeTimeout:        time.Duration(a.AnalyzeTimeoutSeconds) * time.Second,
		ProbeTimeout:          time.Duration(a.ProbeTimeoutSeconds) * time.Second,
		MaxParseAttempts:      a.MaxParseAttempts,
		MaxItems:              a.MaxItems,
		ExpectedTotal:         a.ExpectedTotal,
		ErrorPatternCap:       a.ErrorPatternCap,
		ConsolidationRatio:    a.ConsolidationRatio,
		LowConfidence:         a.LowConfidence,
		LowConfidenceItems:    a.LowConfidenceItems,
		VerdictFloor:          a.VerdictFloor,
		AgreementBoost:        a.AgreementBoost,
		OverwriteThreshold:    a.OverwriteThreshold,
		RevertBelow:           a.RevertBelow,
		ScoreThreshold:        a.ScoreThreshold,
		DetectionThreshold:    a.DetectionThreshold,
		PlaceholderConfidence: a.PlaceholderConfidence,
	}
}

// CacheConfig converts the cache section for cache.New.
func (c *Config) CacheConfig() cache.Config {
	return cache.Config{
		Backend:    c.Cache.Backend,
		TTL:        time.Duration(c.Cache.TTLMinutes) * time.Minute,
		MaxEntries: c.Cache.MaxEntries,
		RedisAddr:  c.Cache.RedisAddr,
		RedisDB:    c.Cache.RedisDB,
		RedisPass:  ResolveEnvVars(c.Cache.RedisPassword),
		KeyPrefix:  c.Cache.KeyPrefix,
	}
}

// ProbeProviderName returns the provider for the lightweight calls.
func (a AnalysisCfg) ProbeProviderName() string {
	if a.ProbeProvider != "" {
		return a.ProbeProvider
	}
	return a.OracleProvider
}
