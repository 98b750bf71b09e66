package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/jackzampolin/papercheck/internal/exam"
	"github.com/jackzampolin/papercheck/internal/prompts"
	"github.com/jackzampolin/papercheck/internal/prompts/analyze"
)

// Invoker runs the analysis call with bounded retries and one repair.
type Invoker struct {
	caller      *caller
	resolver    *prompts.Resolver
	maxAttempts int
	maxItems    int // numeric items above this are never counted as missing
	logger      *slog.Logger
}

// InvokeInput is everything one analysis call needs.
type InvokeInput struct {
	Instructions  *Instructions
	Pages         []exam.Page
	ExpectedItems int // highest item number known from other evidence, or 0
	Scope         string
	PaperKey      string
}

// Draft is the merged oracle output before validation.
type Draft struct {
	Questions    []rawQuestion
	Placeholders []int // item numbers still missing after repair
	Attempts     int
	Repaired     bool
	Hashes       map[string]string
}

// attempt is the immutable state carried through the retry loop. Each
// transition returns a new value.
type attempt struct {
	number   int    // calls made so far plus this one
	failures int    // parse or timeout failures so far
	repair   string // repair addendum, empty before the repair attempt
}

func (a attempt) retry() attempt {
	a.number++
	a.failures++
	return a
}

func (a attempt) withRepair(text string) attempt {
	a.number++
	a.repair = text
	return a
}

func (a attempt) repairing() bool { return a.repair != "" }

func (a attempt) userText(base string) string {
	if a.repair == "" {
		return base
	}
	return base + "\n\n" + a.repair
}

// Invoke calls the oracle until it returns a parseable, gap-free item list or
// the bounds are exhausted. Parse failures and timeouts get identical
// retries; a gap in numeric items gets one repair attempt naming the missing
// numbers. Items missing after that are reported as placeholders.
func (inv *Invoker) Invoke(ctx context.Context, in InvokeInput) (*Draft, error) {
	draft := &Draft{Hashes: map[string]string{}}
	state := attempt{number: 1}

	for {
		questions, err := inv.once(ctx, in, state)
		draft.Attempts = state.number
		if err != nil {
			if state.repairing() {
				// The first answer stands; the gap becomes placeholders.
				inv.logger.Warn("repair attempt failed, keeping first answer", "error", err)
				break
			}
			if retryable(err) && state.failures+1 < inv.maxAttempts {
				inv.logger.Warn("analysis attempt failed, retrying",
					"attempt", state.number, "max", inv.maxAttempts, "error", err)
				state = state.retry()
				continue
			}
			return nil, exhausted(err, state)
		}

		draft.Questions = mergeQuestions(draft.Questions, questions)
		if state.repairing() {
			draft.Repaired = true
			break
		}

		missing := missingItems(draft.Questions, in.ExpectedItems, inv.maxItems)
		if len(missing) == 0 {
			break
		}
		gap := fmt.Errorf("%w: missing item(s) %v", ErrSequenceGap, missing)
		inv.logger.Info("requesting repair", "error", gap)

		text, hash, err := renderPrompt(ctx, inv.resolver, analyze.RepairPromptKey, in.Scope, analyze.RepairPromptData{
			Missing: missing,
			Max:     highestItem(draft.Questions, in.ExpectedItems, inv.maxItems),
		})
		if err != nil {
			inv.logger.Warn("repair prompt unavailable", "error", err)
			break
		}
		draft.Hashes[analyze.RepairPromptKey] = hash
		state = state.withRepair(text)
	}

	draft.Placeholders = missingItems(draft.Questions, in.ExpectedItems, inv.maxItems)
	if len(draft.Placeholders) > 0 {
		inv.logger.Warn("items missing after repair, adding placeholders", "items", draft.Placeholders)
	}
	return draft, nil
}

func (inv *Invoker) once(ctx context.Context, in InvokeInput, state attempt) ([]rawQuestion, error) {
	parsed, err := inv.caller.call(ctx, oracleRequest{
		stage:      "analyze",
		promptKey:  in.Instructions.BaseKey,
		promptHash: in.Instructions.Hashes[in.Instructions.BaseKey],
		system:     in.Instructions.System,
		user:       state.userText(in.Instructions.User),
		pages:      in.Pages,
		schemaName: "exam_analysis",
		schema:     analyze.Schema,
		paperKey:   in.PaperKey,
		attempt:    state.number,
	})
	if err != nil {
		return nil, err
	}

	var raw rawAnalysis
	if err := decode("analyze", parsed, &raw); err != nil {
		return nil, err
	}

	var out []rawQuestion
	for _, q := range raw.Questions {
		q.ItemNumber = flexString(exam.CanonicalItemNumber(q.ItemNumber.String()))
		if q.ItemNumber == "" {
			continue
		}
		out = append(out, q)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("analyze: %w: no items in output", ErrStructuralParse)
	}
	return out, nil
}

func exhausted(err error, state attempt) error {
	if errors.Is(err, ErrTimeout) {
		return fmt.Errorf("analysis gave up after %d attempt(s); submit fewer or smaller pages: %w", state.number, err)
	}
	if errors.Is(err, ErrStructuralParse) {
		return fmt.Errorf("analysis gave up after %d attempt(s): %w", state.number, err)
	}
	return err
}

// mergeQuestions adds items from next whose numbers are not in prev.
func mergeQuestions(prev, next []rawQuestion) []rawQuestion {
	seen := make(map[string]bool, len(prev)+len(next))
	out := make([]rawQuestion, 0, len(prev)+len(next))
	for _, q := range prev {
		seen[q.ItemNumber.String()] = true
		out = append(out, q)
	}
	for _, q := range next {
		if seen[q.ItemNumber.String()] {
			continue
		}
		seen[q.ItemNumber.String()] = true
		out = append(out, q)
	}
	return out
}

// itemRefs lists the item numbers of questions, leaving out numeric labels
// above maxItems.
func itemRefs(questions []rawQuestion, maxItems int) []exam.QuestionRecord {
	refs := make([]exam.QuestionRecord, 0, len(questions))
	for _, q := range questions {
		if n, ok := exam.ItemNumberValue(q.ItemNumber.String()); ok && !withinCap(n, maxItems) {
			continue
		}
		refs = append(refs, exam.QuestionRecord{ItemNumber: q.ItemNumber.String()})
	}
	return refs
}

func missingItems(questions []rawQuestion, expected, maxItems int) []int {
	return exam.MissingNumbers(itemRefs(questions, maxItems), expected)
}

func highestItem(questions []rawQuestion, expected, maxItems int) int {
	highest := expected
	for _, q := range questions {
		if n, ok := exam.ItemNumberValue(q.ItemNumber.String()); ok && n > highest && withinCap(n, maxItems) {
			highest = n
		}
	}
	return highest
}

// placeholderRecord stands in for an item the oracle never returned.
func placeholderRecord(n int, grading bool, confidence float64) exam.QuestionRecord {
	q := exam.QuestionRecord{
		ItemNumber:     strconv.Itoa(n),
		DifficultyTier: exam.TierPattern,
		ItemType:       exam.ItemOther,
		Confidence:     confidence,
		ResolvedBy:     exam.ResolvedByPlaceholder,
		Rationale:      "item not returned by the oracle after repair",
	}
	if grading {
		q.IsCorrect = exam.CorrectUnknown
	}
	return q
}
