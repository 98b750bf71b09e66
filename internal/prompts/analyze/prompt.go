// Package analyze holds the main analysis instructions: one base template
// per analysis mode and grading scope, the user template, and the repair
// addendum used when item numbers are missing.
package analyze

import (
	_ "embed"

	"github.com/jackzampolin/papercheck/internal/exam"
	"github.com/jackzampolin/papercheck/internal/prompts"
)

//go:embed base_questions.tmpl
var baseQuestions string

//go:embed base_full.tmpl
var baseFull string

//go:embed base_full_graded.tmpl
var baseFullGraded string

//go:embed base_answers.tmpl
var baseAnswers string

//go:embed user.tmpl
var userPromptTmpl string

//go:embed repair.tmpl
var repairTmpl string

// Prompt keys
const (
	BaseQuestionsKey  = "analysis.analyze.base.questions"
	BaseFullKey       = "analysis.analyze.base.full"
	BaseFullGradedKey = "analysis.analyze.base.full_graded"
	BaseAnswersKey    = "analysis.analyze.base.answers"
	UserPromptKey     = "analysis.analyze.user"
	RepairPromptKey   = "analysis.analyze.repair"
)

// BaseKey selects the base template for a mode and grading scope.
func BaseKey(mode exam.AnalysisMode, grading bool) string {
	switch mode {
	case exam.ModeQuestionsOnly:
		return BaseQuestionsKey
	case exam.ModeAnswersOnly:
		return BaseAnswersKey
	}
	if grading {
		return BaseFullGradedKey
	}
	return BaseFullKey
}

// UserPromptData is the data for the user template.
type UserPromptData struct {
	PageCount      int
	GradeLevel     string
	Subject        string
	CurriculumUnit string
	CategoryHint   string
	ScopeList      []string
	ExpectedTotal  float64
	Grading        bool
}

// RepairPromptData is the data for the repair template.
type RepairPromptData struct {
	Missing []int
	Max     int
}

// RegisterPrompts registers the analysis prompts with the resolver.
func RegisterPrompts(r *prompts.Resolver) {
	for _, p := range []prompts.EmbeddedPrompt{
		{Key: BaseQuestionsKey, Text: baseQuestions, Description: "Question catalogue without grading"},
		{Key: BaseFullKey, Text: baseFull, Description: "Questions and student answers on an ungraded paper"},
		{Key: BaseFullGradedKey, Text: baseFullGraded, Description: "Questions, answers, and grader verdicts"},
		{Key: BaseAnswersKey, Text: baseAnswers, Description: "Student answers and grader verdicts only"},
		{Key: UserPromptKey, Text: userPromptTmpl, Description: "Analysis user prompt with curriculum context"},
		{Key: RepairPromptKey, Text: repairTmpl, Description: "Repair addendum naming missing item numbers"},
	} {
		r.Register(p)
	}
}
