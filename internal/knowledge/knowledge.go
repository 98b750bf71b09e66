// Package knowledge supplies the reference material the instruction assembler
// folds into oracle instructions: learned recognition rules, a library of
// frequent error patterns, and curriculum topic guides. Sources are either a
// YAML catalog (with embedded defaults) or Postgres.
package knowledge

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
)

// PatternSource returns accumulated recognition rules for a subject.
// An empty string means nothing has been learned yet.
type PatternSource interface {
	GetAdditions(ctx context.Context, subject string) (string, error)
}

// ErrorLibrary returns frequent error patterns, most frequent first.
type ErrorLibrary interface {
	TopErrorPatterns(ctx context.Context, subject string, limit int) ([]ErrorPattern, error)
}

// TopicGuide looks up curriculum guidance.
type TopicGuide interface {
	// Lookup returns guidance scoped to a grade and unit. Unit may be empty.
	Lookup(ctx context.Context, gradeLevel, unit string) ([]TopicEntry, error)
	// Broad returns the unfiltered guide for a grade level.
	Broad(ctx context.Context, gradeLevel string) ([]TopicEntry, error)
}

// CorrectionRecorder accepts verdict corrections made during cross-validation
// so repeated corrections can become learned rules.
type CorrectionRecorder interface {
	RecordCorrection(ctx context.Context, c Correction) error
}

// ErrorPattern is one entry in the error-pattern library.
type ErrorPattern struct {
	Subject     string `yaml:"subject" json:"subject"`
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description"`
	Frequency   int    `yaml:"frequency" json:"frequency"`
}

// TopicEntry is one unit of curriculum guidance.
type TopicEntry struct {
	GradeLevel string   `yaml:"grade_level" json:"gradeLevel"`
	Unit       string   `yaml:"unit" json:"unit"`
	Title      string   `yaml:"title" json:"title"`
	Keywords   []string `yaml:"keywords" json:"keywords"`
	Guidance   string   `yaml:"guidance" json:"guidance"`
}

// LearnedPattern is a recognition rule written by hand or derived from corrections.
type LearnedPattern struct {
	Subject string `yaml:"subject" json:"subject"`
	Rule    string `yaml:"rule" json:"rule"`
}

// Correction is one verdict the cross-validator overwrote or reverted.
type Correction struct {
	Subject    string    `json:"subject"`
	ItemNumber string    `json:"itemNumber"`
	From       string    `json:"from"`
	To         string    `json:"to"`
	MarkType   string    `json:"markType"`
	Note       string    `json:"note"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Key groups corrections that describe the same mistake.
func (c Correction) Key() string {
	return c.From + "->" + c.To + "@" + c.MarkType
}

// DefaultLearnThreshold is how many identical corrections turn into a rule.
const DefaultLearnThreshold = 3

// correctionRule renders a learned rule for a repeated correction.
func correctionRule(from, to, markType string, count int) string {
	mark := markType
	if mark == "" || mark == "none" {
		mark = "grader"
	}
	return fmt.Sprintf("Reviews corrected %d verdict(s) from %q to %q where the %s mark on the item number decided it. Read the mark on the item number before judging.",
		count, from, to, mark)
}

// FormatAdditions joins rules into the addendum text.
func FormatAdditions(rules []string) string {
	if len(rules) == 0 {
		return ""
	}
	var b strings.Builder
	for _, r := range rules {
		b.WriteString("- ")
		b.WriteString(strings.TrimSpace(r))
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func subjectMatches(entrySubject, subject string) bool {
	return entrySubject == "" || subject == "" || strings.EqualFold(entrySubject, subject)
}

func sortByFrequency(patterns []ErrorPattern) {
	sort.SliceStable(patterns, func(i, j int) bool {
		return patterns[i].Frequency > patterns[j].Frequency
	})
}
