package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"
)

// EnvPrefix prefixes environment overrides, e.g. PAPERCHECK_ANALYSIS_ORACLE_PROVIDER.
const EnvPrefix = "PAPERCHECK"

// Manager handles loading and hot-reloading configuration.
type Manager struct {
	v         *viper.Viper
	logger    *slog.Logger
	mu        sync.RWMutex
	config    *Config
	callbacks []func(*Config)
}

// NewManager creates a new config manager and loads initial config.
func NewManager(cfgFile string, logger *slog.Logger) (*Manager, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cm := &Manager{
		v:         viper.New(),
		logger:    logger,
		callbacks: make([]func(*Config), 0),
	}

	if err := cm.initViper(cfgFile); err != nil {
		return nil, err
	}

	cfg, err := cm.load()
	if err != nil {
		return nil, err
	}
	cm.config = cfg

	return cm, nil
}

// initViper sets up viper with defaults and config file.
func (cm *Manager) initViper(cfgFile string) error {
	defaults, err := flatten(DefaultConfig())
	if err != nil {
		return err
	}
	// Leaf defaults let a partial file merge with them and make every key
	// reachable from the environment.
	for key, value := range defaults {
		cm.v.SetDefault(key, value)
	}

	cm.v.SetEnvPrefix(EnvPrefix)
	cm.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	cm.v.AutomaticEnv()

	if cfgFile != "" {
		cm.v.SetConfigFile(cfgFile)
	} else {
		cm.v.SetConfigName("config")
		cm.v.SetConfigType("yaml")
		cm.v.AddConfigPath(".")
		cm.v.AddConfigPath("$HOME/.papercheck")
	}

	// Try to read config file (not required)
	if err := cm.v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	return nil
}

// load parses the current viper state into a Config struct.
func (cm *Manager) load() (*Config, error) {
	var cfg Config
	if err := cm.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Get returns the current configuration (thread-safe).
func (cm *Manager) Get() *Config {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.config
}

// File returns the config file in use, or "" when running on defaults.
func (cm *Manager) File() string {
	return cm.v.ConfigFileUsed()
}

// OnChange registers a callback for config changes.
func (cm *Manager) OnChange(fn func(*Config)) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.callbacks = append(cm.callbacks, fn)
}

// WatchConfig enables hot-reloading of configuration. A file that fails to
// parse or validate is logged and the previous config stays active.
func (cm *Manager) WatchConfig() {
	cm.v.OnConfigChange(func(e fsnotify.Event) {
		cm.Reload(e.Name)
	})
	cm.v.WatchConfig()
}

// Reload re-reads the file and notifies callbacks.
func (cm *Manager) Reload(source string) {
	if err := cm.v.ReadInConfig(); err != nil {
		cm.logger.Warn("config reload failed", "file", source, "error", err)
		return
	}
	cfg, err := cm.load()
	if err != nil {
		cm.logger.Warn("config reload rejected", "file", source, "error", err)
		return
	}

	cm.mu.Lock()
	cm.config = cfg
	callbacks := make([]func(*Config), len(cm.callbacks))
	copy(callbacks, cm.callbacks)
	cm.mu.Unlock()

	cm.logger.Info("config reloaded", "file", source)
	for _, fn := range callbacks {
		fn(cfg)
	}
}

var envPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// ResolveEnvVars expands ${ENV_VAR} references in a string.
func ResolveEnvVars(value string) string {
	if value == "" {
		return value
	}
	return envPattern.ReplaceAllStringFunc(value, func(match string) string {
		varName := match[2 : len(match)-1]
		return os.Getenv(varName)
	})
}

// Validate rejects values the pipeline cannot run with.
func (c *Config) Validate() error {
	var errs []error
	a := c.Analysis
	if a.OracleProvider == "" {
		errs = append(errs, errors.New("analysis.oracle_provider is required"))
	}
	if a.ConsolidationRatio < 0 || a.ConsolidationRatio > 1 {
		errs = append(errs, fmt.Errorf("analysis.consolidation_ratio %v outside [0,1]", a.ConsolidationRatio))
	}
	for key, v := range map[string]float64{
		"analysis.low_confidence":         a.LowConfidence,
		"analysis.verdict_floor":          a.VerdictFloor,
		"analysis.overwrite_threshold":    a.OverwriteThreshold,
		"analysis.revert_below":           a.RevertBelow,
		"analysis.score_threshold":        a.ScoreThreshold,
		"analysis.detection_threshold":    a.DetectionThreshold,
		"analysis.placeholder_confidence": a.PlaceholderConfidence,
	} {
		if v < 0 || v > 1 {
			errs = append(errs, fmt.Errorf("%s %v outside [0,1]", key, v))
		}
	}
	switch c.Cache.Backend {
	case "", "memory", "redis", "layered", "none":
	default:
		errs = append(errs, fmt.Errorf("cache.backend %q is not one of memory, redis, layered, none", c.Cache.Backend))
	}
	for name, p := range c.Providers {
		if p.Enabled && p.Type == "" {
			errs = append(errs, fmt.Errorf("providers.%s.type is required", name))
		}
	}
	return errors.Join(errs...)
}

// WriteDefault writes the default configuration to the specified path.
func WriteDefault(path string) error {
	return Write(path, DefaultConfig())
}

// Write writes cfg to path with the usage header.
func Write(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# papercheck configuration
# API keys use ${ENV_VAR} syntax to reference environment variables
# Set these in your shell: export OPENROUTER_API_KEY=xxx
# Any key can be overridden from the environment: PAPERCHECK_ANALYSIS_ORACLE_PROVIDER=openai

`)
	return os.WriteFile(path, append(header, data...), 0o644)
}

// flatten renders cfg as dotted leaf keys, e.g. "cache.backend".
func flatten(cfg *Config) (map[string]any, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	var tree map[any]any
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	out := make(map[string]any)
	flattenInto(out, "", tree)
	return out, nil
}

func flattenInto(out map[string]any, prefix string, node map[any]any) {
	for k, v := range node {
		key := fmt.Sprint(k)
		if prefix != "" {
			key = prefix + "." + key
		}
		if child, ok := v.(map[any]any); ok && len(child) > 0 {
			flattenInto(out, key, child)
			continue
		}
		out[key] = v
	}
}
