package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackzampolin/papercheck/internal/exam"
	"github.com/jackzampolin/papercheck/internal/knowledge"
	"github.com/jackzampolin/papercheck/internal/prompts"
	"github.com/jackzampolin/papercheck/internal/prompts/analyze"
)

// Assembler composes the analysis instructions from the base template and
// whatever knowledge sources are available. Every source is optional.
type Assembler struct {
	resolver *prompts.Resolver
	patterns knowledge.PatternSource
	errors   knowledge.ErrorLibrary
	topics   knowledge.TopicGuide
	cap      int
	total    float64
	logger   *slog.Logger
}

// Instructions is the assembled system and user text for the analysis call.
type Instructions struct {
	System   string
	User     string
	BaseKey  string
	Sections []string          // names of the sections that made it in, in order
	Hashes   map[string]string // prompt key -> hash of every template used
}

// AssembleInput selects what to assemble.
type AssembleInput struct {
	Pages   int
	Context exam.Context
	Mode    exam.AnalysisMode
	Grading bool // the paper carries grading marks and grading is in scope
	Marks   []exam.DetectedMark
}

// Assemble builds the instructions in a fixed order: base template, learned
// patterns, error patterns, topic guidance, detected marks.
func (a *Assembler) Assemble(ctx context.Context, in AssembleInput) (*Instructions, error) {
	scope := in.Context.Subject
	baseKey := analyze.BaseKey(in.Mode, in.Grading)

	base, err := a.resolver.Resolve(ctx, baseKey, scope)
	if err != nil {
		return nil, fmt.Errorf("resolve base instructions: %w", err)
	}
	out := &Instructions{
		BaseKey:  baseKey,
		Sections: []string{"base"},
		Hashes:   map[string]string{baseKey: base.Hash},
	}

	var b strings.Builder
	b.WriteString(strings.TrimSpace(base.Text))

	if s := a.learnedSection(ctx, scope); s != "" {
		b.WriteString("\n\n" + s)
		out.Sections = append(out.Sections, "learned_patterns")
	}
	if s := a.errorSection(ctx, scope); s != "" {
		b.WriteString("\n\n" + s)
		out.Sections = append(out.Sections, "error_patterns")
	}
	if s := a.topicSection(ctx, in.Context); s != "" {
		b.WriteString("\n\n" + s)
		out.Sections = append(out.Sections, "topic_guide")
	}
	if s := marksSection(in.Marks); s != "" {
		b.WriteString("\n\n" + s)
		out.Sections = append(out.Sections, "detected_marks")
	}
	out.System = b.String()

	user, userHash, err := renderPrompt(ctx, a.resolver, analyze.UserPromptKey, scope, analyze.UserPromptData{
		PageCount:      in.Pages,
		GradeLevel:     in.Context.GradeLevel,
		Subject:        in.Context.Subject,
		CurriculumUnit: in.Context.CurriculumUnit,
		CategoryHint:   in.Context.CategoryHint,
		ScopeList:      in.Context.ScopeList,
		ExpectedTotal:  a.total,
		Grading:        in.Mode.GradingInScope(),
	})
	if err != nil {
		return nil, fmt.Errorf("render analysis user prompt: %w", err)
	}
	out.User = user
	out.Hashes[analyze.UserPromptKey] = userHash
	return out, nil
}

func (a *Assembler) learnedSection(ctx context.Context, subject string) string {
	if a.patterns == nil {
		return ""
	}
	additions, err := a.patterns.GetAdditions(ctx, subject)
	if err != nil {
		a.logger.Warn("learned patterns unavailable", "error", err)
		return ""
	}
	additions = strings.TrimSpace(additions)
	if additions == "" {
		return ""
	}
	return "## Learned recognition rules\n" + additions
}

func (a *Assembler) errorSection(ctx context.Context, subject string) string {
	if a.errors == nil {
		return ""
	}
	patterns, err := a.errors.TopErrorPatterns(ctx, subject, a.cap)
	if err != nil {
		a.logger.Warn("error pattern library unavailable", "error", err)
		return ""
	}
	if len(patterns) == 0 {
		return ""
	}
	if a.cap > 0 && len(patterns) > a.cap {
		patterns = patterns[:a.cap]
	}

	var b strings.Builder
	b.WriteString("## Frequent student errors (most frequent first)\n")
	b.WriteString("Use these labels for errorCategory when one fits.\n")
	for _, p := range patterns {
		fmt.Fprintf(&b, "- %s: %s\n", p.Name, p.Description)
	}
	return strings.TrimRight(b.String(), "\n")
}

func (a *Assembler) topicSection(ctx context.Context, c exam.Context) string {
	if a.topics == nil || c.GradeLevel == "" {
		return ""
	}

	var entries []knowledge.TopicEntry
	var err error
	title := "## Curriculum guide"
	if len(c.ScopeList) > 0 {
		entries, err = a.topics.Lookup(ctx, c.GradeLevel, c.CurriculumUnit)
		if err == nil {
			entries = filterByScope(entries, c.ScopeList)
			title = "## Curriculum guide for the tested scope"
		}
	} else {
		entries, err = a.topics.Broad(ctx, c.GradeLevel)
	}
	if err != nil {
		a.logger.Warn("topic guide unavailable", "error", err)
		return ""
	}
	if len(entries) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString(title + "\n")
	b.WriteString("Use these units in topicPath where they match.\n")
	for _, e := range entries {
		fmt.Fprintf(&b, "- %s > %s", e.Unit, e.Title)
		if e.Guidance != "" {
			b.WriteString(": " + e.Guidance)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// filterByScope keeps entries whose unit, title or keywords overlap a scope item.
func filterByScope(entries []knowledge.TopicEntry, scope []string) []knowledge.TopicEntry {
	var out []knowledge.TopicEntry
	for _, e := range entries {
		terms := append([]string{e.Unit, e.Title}, e.Keywords...)
		if overlaps(terms, scope) {
			out = append(out, e)
		}
	}
	return out
}

func overlaps(terms, scope []string) bool {
	for _, t := range terms {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		for _, s := range scope {
			s = strings.ToLower(strings.TrimSpace(s))
			if s == "" {
				continue
			}
			if strings.Contains(s, t) || strings.Contains(t, s) {
				return true
			}
		}
	}
	return false
}

func marksSection(marks []exam.DetectedMark) string {
	if len(marks) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("## Grading marks found by a first pass\n")
	b.WriteString("Consider these, but do not blindly trust them. Check each against the page.\n")
	b.WriteString("| item | mark | verdict | confidence | score |\n")
	b.WriteString("|---|---|---|---|---|\n")
	for _, m := range marks {
		score := "-"
		if m.Score != nil {
			score = fmt.Sprintf("%g", *m.Score)
		}
		fmt.Fprintf(&b, "| %s | %s | %s | %.2f | %s |\n", m.ItemNumber, m.MarkType, m.Verdict, m.Confidence, score)
	}
	return strings.TrimRight(b.String(), "\n")
}
