package endpoints

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/papercheck/internal/analysis"
	"github.com/jackzampolin/papercheck/internal/api"
	"github.com/jackzampolin/papercheck/internal/exam"
	"github.com/jackzampolin/papercheck/internal/pages"
	"github.com/jackzampolin/papercheck/internal/svcctx"
)

// AnalyzeRequest is the body of POST /v1/analyze. Pages are base64 or data
// URLs; a missing media type is sniffed from the bytes.
type AnalyzeRequest struct {
	Pages   []pages.Input     `json:"pages"`
	Context exam.Context      `json:"context"`
	Mode    exam.AnalysisMode `json:"analysisMode,omitempty"`
}

// AnalyzeEndpoint handles POST /v1/analyze.
type AnalyzeEndpoint struct{}

func (e *AnalyzeEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/v1/analyze", e.handler
}

func (e *AnalyzeEndpoint) RequiresInit() bool { return true }

func (e *AnalyzeEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	pipeline := svcctx.PipelineFrom(r.Context())
	if pipeline == nil {
		writeAnalysisError(w, r, "analyze", analysis.ErrServiceUnavailable)
		return
	}

	var req AnalyzeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeAnalysisError(w, r, "analyze", err)
		return
	}

	paper, info, err := decodePages(req.Pages)
	if err != nil {
		writeAnalysisError(w, r, "analyze", err)
		return
	}
	svcctx.LoggerFrom(r.Context()).Debug("analyze request",
		"payloads", info.Payloads, "pages", info.Pages, "bytes", info.Bytes, "mode", req.Mode)

	result, err := pipeline.Analyze(r.Context(), exam.AnalysisRequest{
		Pages:   paper,
		Context: req.Context,
		Mode:    req.Mode,
	})
	if err != nil {
		writeAnalysisError(w, r, "analyze", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// decodePages decodes wire pages and enforces the page limits.
func decodePages(in []pages.Input) ([]exam.Page, pages.Info, error) {
	paper, err := pages.Decode(in)
	if err != nil {
		return nil, pages.Info{}, err
	}
	info, err := pages.Inspect(paper)
	if err != nil {
		return nil, info, err
	}
	return paper, info, nil
}

func (e *AnalyzeEndpoint) Command(getServerURL func() string) *cobra.Command {
	var ctxFlags contextFlags
	var mode string

	cmd := &cobra.Command{
		Use:   "analyze <page-file>...",
		Short: "Analyze a paper from page images or PDFs",
		Long: `Analyze uploads the given pages, in order, and prints the analysis.

Examples:
  papercheck api analyze p1.jpg p2.jpg --grade 8 --unit "Linear functions"
  papercheck api analyze exam.pdf --mode questionsOnly -o json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			paper, err := readPages(args)
			if err != nil {
				return err
			}
			parsed, ok := exam.ParseAnalysisMode(mode)
			if !ok {
				return fmt.Errorf("unknown mode %q (want full, questionsOnly or answersOnly)", mode)
			}

			client := api.NewClient(getServerURL())
			var resp exam.AnalysisResult
			if err := client.Post(cmd.Context(), "/v1/analyze", AnalyzeRequest{
				Pages:   pages.Encode(paper),
				Context: ctxFlags.context(),
				Mode:    parsed,
			}, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	ctxFlags.register(cmd)
	cmd.Flags().StringVar(&mode, "mode", "full", "Analysis mode: full, questionsOnly or answersOnly")
	return cmd
}

// contextFlags binds exam.Context to command flags.
type contextFlags struct {
	grade, unit, category, subject string
	scope                          []string
}

func (f *contextFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.grade, "grade", "", "Grade level")
	cmd.Flags().StringVar(&f.unit, "unit", "", "Curriculum unit")
	cmd.Flags().StringVar(&f.category, "category", "", "Category hint")
	cmd.Flags().StringVar(&f.subject, "subject", "", "Subject, e.g. math")
	cmd.Flags().StringSliceVar(&f.scope, "scope", nil, "Topics the paper covers (repeatable or comma separated)")
}

func (f *contextFlags) context() exam.Context {
	return exam.Context{
		GradeLevel:     f.grade,
		CurriculumUnit: f.unit,
		CategoryHint:   f.category,
		Subject:        strings.ToLower(f.subject),
		ScopeList:      f.scope,
	}
}

func readPages(paths []string) ([]exam.Page, error) {
	out := make([]exam.Page, 0, len(paths))
	for _, path := range paths {
		p, err := pages.FromFile(path)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}
