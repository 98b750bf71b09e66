package endpoints

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jackzampolin/papercheck/internal/analysis"
	"github.com/jackzampolin/papercheck/internal/api"
	"github.com/jackzampolin/papercheck/internal/exam"
	"github.com/jackzampolin/papercheck/internal/pages"
	"github.com/jackzampolin/papercheck/internal/svcctx"
)

// RecheckRequest is the body of POST /v1/recheck.
type RecheckRequest struct {
	Pages     []pages.Input         `json:"pages"`
	Questions []exam.QuestionRecord `json:"questions"`
	Context   exam.Context          `json:"context"`
}

// RecheckEndpoint handles POST /v1/recheck: correctness for questions that
// are already known, resolved from marks where possible.
type RecheckEndpoint struct{}

func (e *RecheckEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/v1/recheck", e.handler
}

func (e *RecheckEndpoint) RequiresInit() bool { return true }

func (e *RecheckEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	pipeline := svcctx.PipelineFrom(r.Context())
	if pipeline == nil {
		writeAnalysisError(w, r, "recheck", analysis.ErrServiceUnavailable)
		return
	}

	var req RecheckRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeAnalysisError(w, r, "recheck", err)
		return
	}
	paper, _, err := decodePages(req.Pages)
	if err != nil {
		writeAnalysisError(w, r, "recheck", err)
		return
	}

	result, err := pipeline.Recheck(r.Context(), analysis.RecheckRequest{
		Pages:     paper,
		Questions: req.Questions,
		Context:   req.Context,
	})
	if err != nil {
		writeAnalysisError(w, r, "recheck", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (e *RecheckEndpoint) Command(getServerURL func() string) *cobra.Command {
	var ctxFlags contextFlags
	var questionsFile string

	cmd := &cobra.Command{
		Use:   "recheck <page-file>... --questions <file>",
		Short: "Re-grade known questions against new page scans",
		Long: `Recheck resolves correctness for questions that are already known.

The questions file is YAML or JSON: either a list of questions or a previous
analysis result (its "questions" field is used).

Examples:
  papercheck api analyze blank.pdf --mode questionsOnly -o json > questions.json
  papercheck api recheck graded.pdf --questions questions.json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			questions, err := loadQuestions(questionsFile)
			if err != nil {
				return err
			}
			paper, err := readPages(args)
			if err != nil {
				return err
			}

			client := api.NewClient(getServerURL())
			var resp exam.AnalysisResult
			if err := client.Post(cmd.Context(), "/v1/recheck", RecheckRequest{
				Pages:     pages.Encode(paper),
				Questions: questions,
				Context:   ctxFlags.context(),
			}, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	ctxFlags.register(cmd)
	cmd.Flags().StringVar(&questionsFile, "questions", "", "YAML or JSON file with the known questions")
	_ = cmd.MarkFlagRequired("questions")
	return cmd
}

// loadQuestions reads a question list or an analysis result. YAML is decoded
// generically and re-encoded as JSON so the records' JSON field names apply.
func loadQuestions(path string) ([]exam.QuestionRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read questions: %w", err)
	}
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse questions %s: %w", path, err)
	}
	if m, ok := doc.(map[string]any); ok {
		doc = m["questions"]
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("parse questions %s: %w", path, err)
	}
	var questions []exam.QuestionRecord
	if err := json.Unmarshal(raw, &questions); err != nil {
		return nil, fmt.Errorf("parse questions %s: %w", path, err)
	}
	if len(questions) == 0 {
		return nil, fmt.Errorf("%s contains no questions", path)
	}
	return questions, nil
}
