package analysis

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackzampolin/papercheck/internal/exam"
	"github.com/jackzampolin/papercheck/internal/prompts"
	"github.com/jackzampolin/papercheck/internal/prompts/triage"
)

// Triage resolves correctness for known questions as cheaply as possible:
// written scores first, then confident detections, then one compact oracle
// call for whatever is left.
type Triage struct {
	caller   *caller
	resolver *prompts.Resolver
	settings Settings
	logger   *slog.Logger
}

// TriageOutcome is the result of a triage pass.
type TriageOutcome struct {
	Questions  []exam.QuestionRecord
	Escalated  []string // items sent to the oracle
	Unresolved []string // items left unknown
	Hashes     map[string]string
}

// Split resolves what it can locally. It returns reset copies of questions
// with resolved items filled in, and the indexes of items still pending.
func (t *Triage) Split(questions []exam.QuestionRecord, marks []exam.DetectedMark) ([]exam.QuestionRecord, []int) {
	out := make([]exam.QuestionRecord, len(questions))
	byItem := marksByItem(marks)

	var pending []int
	for i, q := range questions {
		q.IsCorrect = exam.CorrectUnknown
		q.EarnedPoints = nil
		q.Validated = false
		q.CorrectionNote = ""

		m, ok := byItem[exam.CanonicalItemNumber(q.ItemNumber)]
		switch {
		case ok && t.resolveByScore(&q, m):
		case ok && t.resolveByDetection(&q, m):
		default:
			pending = append(pending, i)
		}
		out[i] = q
	}
	return out, pending
}

// resolveByScore applies a written score: equal to points is correct, zero
// is incorrect, anything between is incorrect with partial credit.
func (t *Triage) resolveByScore(q *exam.QuestionRecord, m exam.DetectedMark) bool {
	if m.Score == nil || m.Confidence < t.settings.ScoreThreshold {
		return false
	}
	score := *m.Score
	switch {
	case q.Points > 0 && score == q.Points:
		q.IsCorrect = exam.CorrectTrue
		q.EarnedPoints = ptr(q.Points)
	case score == 0:
		q.IsCorrect = exam.CorrectFalse
		q.EarnedPoints = ptr(0)
	case q.Points > 0 && score > 0 && score < q.Points:
		q.IsCorrect = exam.CorrectFalse
		q.EarnedPoints = ptr(score)
	default:
		return false
	}
	q.Confidence = m.Confidence
	q.ResolvedBy = exam.ResolvedByScoreCheck
	return true
}

func (t *Triage) resolveByDetection(q *exam.QuestionRecord, m exam.DetectedMark) bool {
	if !m.Verdict.Decisive() || m.Confidence < t.settings.DetectionThreshold {
		return false
	}
	q.IsCorrect = m.Verdict.Correctness()
	if q.IsCorrect == exam.CorrectTrue {
		q.EarnedPoints = ptr(q.Points)
	} else {
		q.EarnedPoints = ptr(0)
	}
	q.Confidence = m.Confidence
	q.ResolvedBy = exam.ResolvedByDetection
	return true
}

// Resolve runs Split and escalates pending items in one compact call. A
// failed compact call leaves those items unknown; only an unavailable
// service is returned as an error.
func (t *Triage) Resolve(ctx context.Context, pages []exam.Page, questions []exam.QuestionRecord, marks []exam.DetectedMark, scope, paperKey string) (*TriageOutcome, error) {
	resolved, pending := t.Split(questions, marks)
	out := &TriageOutcome{Questions: resolved, Hashes: map[string]string{}}
	if len(pending) == 0 {
		return out, nil
	}

	items := make([]triage.Item, 0, len(pending))
	for _, i := range pending {
		q := resolved[i]
		items = append(items, triage.Item{ItemNumber: q.ItemNumber, Points: q.Points, StudentAnswer: q.StudentAnswer})
		out.Escalated = append(out.Escalated, q.ItemNumber)
	}

	verdicts, err := t.compact(ctx, pages, items, scope, paperKey, out.Hashes)
	if errors.Is(err, ErrServiceUnavailable) {
		return nil, err
	}
	if err != nil {
		t.logger.Warn("compact correctness check failed, leaving items unknown", "items", out.Escalated, "error", err)
	}

	for _, i := range pending {
		q := &resolved[i]
		v, ok := verdicts[exam.CanonicalItemNumber(q.ItemNumber)]
		if !ok || !v.correct.Known() || v.confidence < t.settings.VerdictFloor {
			q.IsCorrect = exam.CorrectUnknown
			q.EarnedPoints = nil
			out.Unresolved = append(out.Unresolved, q.ItemNumber)
			continue
		}
		q.IsCorrect = v.correct
		if v.correct == exam.CorrectTrue {
			q.EarnedPoints = ptr(q.Points)
		} else {
			q.EarnedPoints = ptr(0)
		}
		q.Confidence = v.confidence
		q.ResolvedBy = exam.ResolvedByOracleAnalysis
	}
	return out, nil
}

type compactVerdict struct {
	correct    exam.Correctness
	confidence float64
}

func (t *Triage) compact(ctx context.Context, pages []exam.Page, items []triage.Item, scope, paperKey string, hashes map[string]string) (map[string]compactVerdict, error) {
	system, systemHash, err := renderPrompt(ctx, t.resolver, triage.SystemPromptKey, scope, nil)
	if err != nil {
		return nil, err
	}
	user, userHash, err := renderPrompt(ctx, t.resolver, triage.UserPromptKey, scope, triage.UserPromptData{Items: items})
	if err != nil {
		return nil, err
	}
	hashes[triage.SystemPromptKey] = systemHash
	hashes[triage.UserPromptKey] = userHash

	parsed, err := t.caller.call(ctx, oracleRequest{
		stage:      "triage",
		promptKey:  triage.SystemPromptKey,
		promptHash: systemHash,
		system:     system,
		user:       user,
		pages:      pages,
		schemaName: "triage",
		schema:     triage.Schema,
		paperKey:   paperKey,
		attempt:    1,
	})
	if err != nil {
		return nil, err
	}

	var raw rawTriage
	if err := decode("triage", parsed, &raw); err != nil {
		return nil, err
	}
	out := make(map[string]compactVerdict, len(raw.R))
	for _, r := range raw.R {
		correct, _ := exam.ParseCorrectness(r.C.String())
		conf := 0.0
		if r.P.Valid {
			conf = exam.Clamp01(r.P.Value)
		}
		out[exam.CanonicalItemNumber(r.N.String())] = compactVerdict{correct: correct, confidence: conf}
	}
	return out, nil
}
