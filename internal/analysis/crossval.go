package analysis

import (
	"fmt"
	"log/slog"

	"github.com/jackzampolin/papercheck/internal/exam"
	"github.com/jackzampolin/papercheck/internal/knowledge"
)

// CrossValidator reconciles detected marks with the analysis verdicts.
type CrossValidator struct {
	settings Settings
	logger   *slog.Logger
}

// Adjustment kinds.
const (
	AdjustAgree     = "agree"
	AdjustOverwrite = "overwrite"
	AdjustRevert    = "revert"
	AdjustFill      = "fill"
	AdjustConflict  = "conflict"
)

// Adjustment describes one change cross-validation made or declined to make.
type Adjustment struct {
	ItemNumber string
	Kind       string
	From       exam.Correctness
	To         exam.Correctness
	Mark       exam.DetectedMark
	Note       string
}

// Correction converts an overwrite or revert into a knowledge correction.
func (a Adjustment) Correction(subject string) (knowledge.Correction, bool) {
	if a.Kind != AdjustOverwrite && a.Kind != AdjustRevert {
		return knowledge.Correction{}, false
	}
	return knowledge.Correction{
		Subject:    subject,
		ItemNumber: a.ItemNumber,
		From:       string(a.From),
		To:         string(a.To),
		MarkType:   string(a.Mark.MarkType),
		Note:       a.Note,
	}, true
}

// Apply returns reconciled copies of questions and the adjustments made. Only
// oracle verdicts are reconciled; items already resolved from marks are left
// alone. The input slice is not modified. Confidence stays within [0,1] and
// an unknown verdict only becomes known on a detection at or above the
// overwrite threshold.
func (cv *CrossValidator) Apply(questions []exam.QuestionRecord, marks []exam.DetectedMark) ([]exam.QuestionRecord, []Adjustment) {
	out := make([]exam.QuestionRecord, len(questions))
	copy(out, questions)
	byItem := marksByItem(marks)

	var adjustments []Adjustment
	for i := range out {
		q := &out[i]
		if q.EarnedPoints != nil {
			q.EarnedPoints = ptr(*q.EarnedPoints)
		}
		m, ok := byItem[exam.CanonicalItemNumber(q.ItemNumber)]
		if ok && q.ResolvedBy == exam.ResolvedByOracleAnalysis {
			if adj, changed := cv.reconcile(q, m); changed {
				adjustments = append(adjustments, adj)
				cv.logger.Info("cross-validation adjustment",
					"item", adj.ItemNumber, "kind", adj.Kind, "from", adj.From, "to", adj.To,
					"mark", m.MarkType, "mark_confidence", m.Confidence)
			}
		}
		q.Confidence = exam.Clamp01(q.Confidence)
	}
	return out, adjustments
}

func (cv *CrossValidator) reconcile(q *exam.QuestionRecord, m exam.DetectedMark) (Adjustment, bool) {
	adj := Adjustment{ItemNumber: q.ItemNumber, From: q.IsCorrect, To: q.IsCorrect, Mark: m}
	detected := m.Verdict.Correctness()

	switch {
	case m.Verdict.Decisive() && q.IsCorrect.Known() && q.IsCorrect == detected:
		q.Confidence = exam.Clamp01(q.Confidence + cv.settings.AgreementBoost)
		q.Validated = true
		adj.Kind = AdjustAgree
		return adj, true

	case m.Verdict.Decisive() && q.IsCorrect.Known():
		if m.Confidence < cv.settings.OverwriteThreshold {
			adj.Kind = AdjustConflict
			adj.Note = fmt.Sprintf("detector saw %s (%s, %.2f) but below overwrite threshold", m.Verdict, m.MarkType, m.Confidence)
			return adj, true
		}
		cv.setVerdict(q, m)
		adj.Kind = AdjustOverwrite
		adj.To = q.IsCorrect
		adj.Note = fmt.Sprintf("verdict changed from %s to %s: %s mark on item number (confidence %.2f)",
			adj.From, adj.To, m.MarkType, m.Confidence)
		q.CorrectionNote = adj.Note
		return adj, true

	case m.Verdict.Decisive() && q.IsCorrect == exam.CorrectUnknown:
		if m.Confidence < cv.settings.OverwriteThreshold {
			return adj, false
		}
		cv.setVerdict(q, m)
		adj.Kind = AdjustFill
		adj.To = q.IsCorrect
		adj.Note = fmt.Sprintf("verdict %s taken from %s mark (confidence %.2f)", adj.To, m.MarkType, m.Confidence)
		q.CorrectionNote = adj.Note
		return adj, true

	case m.Verdict == exam.VerdictNotGraded && q.IsCorrect.Known() && q.Confidence < cv.settings.RevertBelow:
		q.IsCorrect = exam.CorrectUnknown
		q.EarnedPoints = nil
		q.Validated = false
		adj.Kind = AdjustRevert
		adj.To = exam.CorrectUnknown
		adj.Note = fmt.Sprintf("verdict reverted to unknown: no grading mark found and analysis confidence %.2f", q.Confidence)
		q.CorrectionNote = adj.Note
		return adj, true
	}
	return adj, false
}

// setVerdict applies a detected verdict and recomputes earned points: full
// points when correct, the written partial score or zero when incorrect.
func (cv *CrossValidator) setVerdict(q *exam.QuestionRecord, m exam.DetectedMark) {
	q.IsCorrect = m.Verdict.Correctness()
	switch q.IsCorrect {
	case exam.CorrectTrue:
		q.EarnedPoints = ptr(q.Points)
	case exam.CorrectFalse:
		earned := 0.0
		if m.Score != nil && *m.Score > 0 && *m.Score < q.Points {
			earned = *m.Score
		}
		q.EarnedPoints = ptr(earned)
	}
	q.Confidence = exam.Clamp01(max(q.Confidence, m.Confidence))
	q.ResolvedBy = exam.ResolvedByDetection
	q.Validated = true
}
