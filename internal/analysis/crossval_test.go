package analysis

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/jackzampolin/papercheck/internal/exam"
)

func testCrossValidator() *CrossValidator {
	return &CrossValidator{settings: DefaultSettings(), logger: discardLogger()}
}

func analyzed(item string, correct exam.Correctness, confidence float64) exam.QuestionRecord {
	q := exam.QuestionRecord{
		ItemNumber: item,
		Points:     5,
		Confidence: confidence,
		IsCorrect:  correct,
		ResolvedBy: exam.ResolvedByOracleAnalysis,
	}
	switch correct {
	case exam.CorrectTrue:
		q.EarnedPoints = ptr(5)
	case exam.CorrectFalse:
		q.EarnedPoints = ptr(0)
	}
	return q
}

func detected(item string, markType exam.MarkType, verdict exam.Verdict, confidence float64) exam.DetectedMark {
	return exam.DetectedMark{ItemNumber: item, MarkType: markType, Verdict: verdict, Confidence: confidence}
}

func TestCrossValidator_Apply(t *testing.T) {
	cv := testCrossValidator()

	t.Run("agreement raises confidence", func(t *testing.T) {
		out, adj := cv.Apply(
			[]exam.QuestionRecord{analyzed("7", exam.CorrectTrue, 0.75)},
			[]exam.DetectedMark{detected("7", exam.MarkCircle, exam.VerdictCorrect, 0.9)},
		)
		q := out[0]
		if !near(q.Confidence, 0.85) || !q.Validated || q.IsCorrect != exam.CorrectTrue {
			t.Errorf("got %+v", q)
		}
		if len(adj) != 1 || adj[0].Kind != AdjustAgree {
			t.Errorf("adjustments = %+v", adj)
		}
	})

	t.Run("agreement never exceeds one", func(t *testing.T) {
		out, _ := cv.Apply(
			[]exam.QuestionRecord{analyzed("7", exam.CorrectTrue, 0.95)},
			[]exam.DetectedMark{detected("7", exam.MarkCircle, exam.VerdictCorrect, 0.9)},
		)
		if out[0].Confidence != 1 {
			t.Errorf("confidence = %v, want 1", out[0].Confidence)
		}
	})

	t.Run("confident detection overwrites", func(t *testing.T) {
		out, adj := cv.Apply(
			[]exam.QuestionRecord{analyzed("7", exam.CorrectTrue, 0.8)},
			[]exam.DetectedMark{detected("7", exam.MarkSlash, exam.VerdictIncorrect, 0.92)},
		)
		q := out[0]
		if q.IsCorrect != exam.CorrectFalse || q.EarnedPoints == nil || *q.EarnedPoints != 0 {
			t.Errorf("isCorrect=%s earned=%v, want false/0", q.IsCorrect, q.EarnedPoints)
		}
		if q.CorrectionNote == "" || q.ResolvedBy != exam.ResolvedByDetection || !near(q.Confidence, 0.92) {
			t.Errorf("got %+v", q)
		}
		corr, ok := adj[0].Correction("math")
		if !ok || corr.From != "true" || corr.To != "false" || corr.MarkType != "slash" || corr.Subject != "math" {
			t.Errorf("correction = %+v, %v", corr, ok)
		}
	})

	t.Run("overwrite keeps a written partial score", func(t *testing.T) {
		m := detected("3", exam.MarkSlash, exam.VerdictIncorrect, 0.9)
		m.Score = ptr(2)
		out, _ := cv.Apply([]exam.QuestionRecord{analyzed("3", exam.CorrectTrue, 0.8)}, []exam.DetectedMark{m})
		if out[0].EarnedPoints == nil || *out[0].EarnedPoints != 2 {
			t.Errorf("earned = %v, want 2", out[0].EarnedPoints)
		}
	})

	t.Run("weak disagreement is a conflict only", func(t *testing.T) {
		in := []exam.QuestionRecord{analyzed("7", exam.CorrectTrue, 0.8)}
		out, adj := cv.Apply(in, []exam.DetectedMark{detected("7", exam.MarkSlash, exam.VerdictIncorrect, 0.8)})
		if diff := cmp.Diff(in, out); diff != "" {
			t.Errorf("record changed (-want +got):\n%s", diff)
		}
		if len(adj) != 1 || adj[0].Kind != AdjustConflict {
			t.Errorf("adjustments = %+v", adj)
		}
		if _, ok := adj[0].Correction("math"); ok {
			t.Error("conflict should not become a correction")
		}
	})

	t.Run("no grading mark reverts a weak verdict", func(t *testing.T) {
		out, adj := cv.Apply(
			[]exam.QuestionRecord{analyzed("2", exam.CorrectTrue, 0.75), analyzed("3", exam.CorrectTrue, 0.85)},
			[]exam.DetectedMark{
				detected("2", exam.MarkNone, exam.VerdictNotGraded, 0.9),
				detected("3", exam.MarkNone, exam.VerdictNotGraded, 0.9),
			},
		)
		if out[0].IsCorrect != exam.CorrectUnknown || out[0].EarnedPoints != nil {
			t.Errorf("item 2 = %+v, want reverted", out[0])
		}
		if out[1].IsCorrect != exam.CorrectTrue {
			t.Errorf("item 3 = %+v, want kept", out[1])
		}
		if len(adj) != 1 || adj[0].Kind != AdjustRevert {
			t.Errorf("adjustments = %+v", adj)
		}
	})

	t.Run("unknown is filled only by a confident mark", func(t *testing.T) {
		out, adj := cv.Apply(
			[]exam.QuestionRecord{analyzed("1", exam.CorrectUnknown, 0.8), analyzed("2", exam.CorrectUnknown, 0.8)},
			[]exam.DetectedMark{
				detected("1", exam.MarkCircle, exam.VerdictCorrect, 0.9),
				detected("2", exam.MarkCircle, exam.VerdictCorrect, 0.8),
			},
		)
		if out[0].IsCorrect != exam.CorrectTrue || *out[0].EarnedPoints != 5 {
			t.Errorf("item 1 = %+v, want filled", out[0])
		}
		if out[1].IsCorrect != exam.CorrectUnknown {
			t.Errorf("item 2 = %+v, want unknown", out[1])
		}
		if len(adj) != 1 || adj[0].Kind != AdjustFill {
			t.Errorf("adjustments = %+v", adj)
		}
	})

	t.Run("placeholders and mark-resolved items are left alone", func(t *testing.T) {
		ph := placeholderRecord(4, true, 0.3)
		scored := analyzed("5", exam.CorrectTrue, 0.9)
		scored.ResolvedBy = exam.ResolvedByScoreCheck
		in := []exam.QuestionRecord{ph, scored}
		out, adj := cv.Apply(in, []exam.DetectedMark{
			detected("4", exam.MarkCircle, exam.VerdictCorrect, 0.95),
			detected("5", exam.MarkCircle, exam.VerdictCorrect, 0.95),
		})
		if diff := cmp.Diff(in, out); diff != "" {
			t.Errorf("records changed (-want +got):\n%s", diff)
		}
		if len(adj) != 0 {
			t.Errorf("adjustments = %+v", adj)
		}
	})

	t.Run("input is not modified", func(t *testing.T) {
		in := []exam.QuestionRecord{analyzed("7", exam.CorrectTrue, 0.8)}
		before := in[0]
		cv.Apply(in, []exam.DetectedMark{detected("7", exam.MarkSlash, exam.VerdictIncorrect, 0.95)})
		if diff := cmp.Diff(before, in[0]); diff != "" {
			t.Errorf("input changed (-want +got):\n%s", diff)
		}
	})

	t.Run("item labels are matched canonically", func(t *testing.T) {
		out, _ := cv.Apply(
			[]exam.QuestionRecord{analyzed("7", exam.CorrectTrue, 0.75)},
			[]exam.DetectedMark{detected("07", exam.MarkCircle, exam.VerdictCorrect, 0.9)},
		)
		if !out[0].Validated {
			t.Error("expected 07 to match item 7")
		}
	})
}
