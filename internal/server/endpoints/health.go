package endpoints

import (
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/papercheck/internal/api"
	"github.com/jackzampolin/papercheck/internal/cache"
	"github.com/jackzampolin/papercheck/internal/providers"
	"github.com/jackzampolin/papercheck/internal/svcctx"
	"github.com/jackzampolin/papercheck/version"
)

// HealthResponse is the response for health check endpoints.
type HealthResponse struct {
	Status string `json:"status"`
	Oracle string `json:"oracle,omitempty"`
	Probe  string `json:"probe,omitempty"`
}

// HealthEndpoint handles GET /health.
type HealthEndpoint struct{}

func (e *HealthEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/health", e.handler
}

func (e *HealthEndpoint) RequiresInit() bool { return false }

func (e *HealthEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

func (e *HealthEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check server health",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp HealthResponse
			if err := client.Get(cmd.Context(), "/health", &resp); err != nil {
				return err
			}
			fmt.Printf("Status: %s\n", resp.Status)
			return nil
		},
	}
}

// ReadyEndpoint handles GET /ready.
type ReadyEndpoint struct{}

func (e *ReadyEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/ready", e.handler
}

func (e *ReadyEndpoint) RequiresInit() bool { return false }

// handler reports ready only when the pipeline is wired and the configured
// oracle provider is registered.
func (e *ReadyEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	resp := HealthResponse{Status: "ok"}

	registry := svcctx.RegistryFrom(ctx)
	mgr := svcctx.ConfigManagerFrom(ctx)
	if svcctx.PipelineFrom(ctx) == nil || registry == nil || mgr == nil {
		resp.Status = "degraded"
		resp.Oracle = "not_initialized"
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}

	cfg := mgr.Get()
	resp.Oracle = providerState(registry, cfg.Analysis.OracleProvider)
	resp.Probe = providerState(registry, cfg.Analysis.ProbeProviderName())
	if resp.Oracle != "ok" || resp.Probe != "ok" {
		resp.Status = "degraded"
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func providerState(registry *providers.Registry, name string) string {
	if registry.Has(name) {
		return "ok"
	}
	return "not_configured"
}

func (e *ReadyEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "ready",
		Short: "Check server readiness (oracle provider configured)",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp HealthResponse
			if err := client.Get(cmd.Context(), "/ready", &resp); err != nil {
				return err
			}
			fmt.Printf("Status: %s\n", resp.Status)
			fmt.Printf("Oracle: %s\n", resp.Oracle)
			fmt.Printf("Probe:  %s\n", resp.Probe)
			return nil
		},
	}
}

// StatusResponse is the detailed status response.
type StatusResponse struct {
	Server     string          `json:"server" yaml:"server"`
	Version    version.Info    `json:"version" yaml:"version"`
	Uptime     string          `json:"uptime" yaml:"uptime"`
	ConfigFile string          `json:"config_file,omitempty" yaml:"config_file,omitempty"`
	Providers  ProvidersStatus `json:"providers" yaml:"providers"`
	Cache      *cache.Stats    `json:"cache,omitempty" yaml:"cache,omitempty"`
	Calls      int             `json:"calls_recorded" yaml:"calls_recorded"`
}

// ProvidersStatus shows registered providers and the ones analysis uses.
type ProvidersStatus struct {
	Registered []string                               `json:"registered" yaml:"registered"`
	Oracle     string                                 `json:"oracle,omitempty" yaml:"oracle,omitempty"`
	Probe      string                                 `json:"probe,omitempty" yaml:"probe,omitempty"`
	Limiters   map[string]providers.RateLimiterStatus `json:"limiters,omitempty" yaml:"limiters,omitempty"`
}

// StatusEndpoint handles GET /status.
type StatusEndpoint struct {
	// Started is set by the server since it's not in Services
	Started time.Time
}

func (e *StatusEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/status", e.handler
}

func (e *StatusEndpoint) RequiresInit() bool { return false }

func (e *StatusEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	resp := StatusResponse{
		Server:  "running",
		Version: version.Get(),
	}
	if !e.Started.IsZero() {
		resp.Uptime = time.Since(e.Started).Round(time.Second).String()
	}

	if registry := svcctx.RegistryFrom(ctx); registry != nil {
		resp.Providers.Registered = registry.List()
		resp.Providers.Limiters = registry.LimiterStatus()
	}
	if mgr := svcctx.ConfigManagerFrom(ctx); mgr != nil {
		cfg := mgr.Get()
		resp.ConfigFile = mgr.File()
		resp.Providers.Oracle = cfg.Analysis.OracleProvider
		resp.Providers.Probe = cfg.Analysis.ProbeProviderName()
	}
	if p := svcctx.PipelineFrom(ctx); p != nil {
		stats := p.CacheStats()
		resp.Cache = &stats
	}
	if store := svcctx.LLMCallStoreFrom(ctx); store != nil {
		resp.Calls = store.Len()
	}

	writeJSON(w, http.StatusOK, resp)
}

func (e *StatusEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Get detailed server status",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp StatusResponse
			if err := client.Get(cmd.Context(), "/status", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}
