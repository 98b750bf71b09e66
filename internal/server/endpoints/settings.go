package endpoints

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/papercheck/internal/analysis"
	"github.com/jackzampolin/papercheck/internal/api"
	"github.com/jackzampolin/papercheck/internal/config"
	"github.com/jackzampolin/papercheck/internal/svcctx"
)

// SettingsResponse lists the configured values and the thresholds the
// pipeline is running with.
type SettingsResponse struct {
	ConfigFile string            `json:"config_file,omitempty"`
	Settings   []config.Entry    `json:"settings"`
	Effective  *PipelineSettings `json:"effective,omitempty"`
}

// PipelineSettings is the wire form of analysis.Settings.
type PipelineSettings struct {
	Model                 string  `json:"model,omitempty"`
	Temperature           float64 `json:"temperature"`
	AnalyzeTimeout        string  `json:"analyze_timeout"`
	ProbeTimeout          string  `json:"probe_timeout"`
	MaxParseAttempts      int     `json:"max_parse_attempts"`
	MaxItems              int     `json:"max_items"`
	ExpectedTotal         float64 `json:"expected_total"`
	ErrorPatternCap       int     `json:"error_pattern_cap"`
	ConsolidationRatio    float64 `json:"consolidation_ratio"`
	LowConfidence         float64 `json:"low_confidence"`
	LowConfidenceItems    int     `json:"low_confidence_items"`
	VerdictFloor          float64 `json:"verdict_floor"`
	AgreementBoost        float64 `json:"agreement_boost"`
	OverwriteThreshold    float64 `json:"overwrite_threshold"`
	RevertBelow           float64 `json:"revert_below"`
	ScoreThreshold        float64 `json:"score_threshold"`
	DetectionThreshold    float64 `json:"detection_threshold"`
	PlaceholderConfidence float64 `json:"placeholder_confidence"`
}

func newPipelineSettings(s analysis.Settings) *PipelineSettings {
	return &PipelineSettings{
		Model:                 s.Model,
		Temperature:           s.Temperature,
		AnalyzeTimeout:        s.AnalyzeTimeout.String(),
		ProbeTimeout:          s.ProbeTimeout.String(),
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
	}
}

// SettingsEndpoint handles GET /v1/settings. ?prefix= narrows the keys,
// e.g. prefix=analysis.
type SettingsEndpoint struct{}

func (e *SettingsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/v1/settings", e.handler
}

func (e *SettingsEndpoint) RequiresInit() bool { return true }

func (e *SettingsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	cm := svcctx.ConfigManagerFrom(r.Context())
	if cm == nil {
		writeError(w, http.StatusInternalServerError, "config manager not available")
		return
	}

	entries, err := config.Describe(cm.Get(), r.URL.Query().Get("prefix"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := SettingsResponse{ConfigFile: cm.File(), Settings: entries}
	if p := svcctx.PipelineFrom(r.Context()); p != nil {
		resp.Effective = newPipelineSettings(p.Settings())
	}
	writeJSON(w, http.StatusOK, resp)
}

func (e *SettingsEndpoint) Command(getServerURL func() string) *cobra.Command {
	var prefix string
	var changed bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Show the server's configuration",
		Long: `List shows every configuration key with its value and default.

Edit the config file to change a value; the server reloads it on save.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			path := "/v1/settings"
			if prefix != "" {
				path += "?" + url.Values{"prefix": {prefix}}.Encode()
			}
			var resp SettingsResponse
			if err := client.Get(cmd.Context(), path, &resp); err != nil {
				return err
			}
			if changed {
				kept := resp.Settings[:0]
				for _, e := range resp.Settings {
					if e.Overridden {
						kept = append(kept, e)
					}
				}
				resp.Settings = kept
			}
			if len(resp.Settings) == 0 && prefix != "" {
				return fmt.Errorf("no settings under %q", prefix)
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVar(&prefix, "prefix", "", "Only keys with this prefix, e.g. analysis")
	cmd.Flags().BoolVar(&changed, "changed", false, "Only keys that differ from the defaults")
	return cmd
}
