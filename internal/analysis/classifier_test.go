package analysis

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/jackzampolin/papercheck/internal/exam"
)

func TestClassifier_Classify(t *testing.T) {
	tests := []struct {
		name  string
		reply any
		want  exam.ClassificationResult
	}{
		{
			name:  "recognized values",
			reply: map[string]any{"paperType": "answered", "gradingStatus": "graded", "confidence": 0.9, "indicators": []string{"red circles"}},
			want:  exam.ClassificationResult{PaperType: exam.PaperAnswered, GradingStatus: exam.GradingFull, Confidence: 0.9, Indicators: []string{"red circles"}},
		},
		{
			name:  "unknown values cost confidence",
			reply: map[string]any{"paperType": "scribbled", "gradingStatus": "notGraded", "confidence": "0.8"},
			want:  exam.ClassificationResult{PaperType: exam.PaperUnknown, GradingStatus: exam.GradingNone, Confidence: 0.7},
		},
		{
			name:  "missing confidence",
			reply: map[string]any{"paperType": "blank", "gradingStatus": "notGraded"},
			want:  exam.ClassificationResult{PaperType: exam.PaperBlank, GradingStatus: exam.GradingNone, Confidence: 0.5},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, oracle := newScriptedOracle()
			oracle.on("classification", tt.reply)
			c := &Classifier{caller: testCaller(mock), resolver: testResolver(), logger: discardLogger()}

			got, hashes, err := c.Classify(t.Context(), testPages("p"), "", "paper")
			if err != nil {
				t.Fatalf("Classify() error = %v", err)
			}
			if diff := cmp.Diff(tt.want, got, cmp.Comparer(func(a, b float64) bool { return near(a, b) })); diff != "" {
				t.Errorf("Classify() mismatch (-want +got):\n%s", diff)
			}
			if len(hashes) != 2 {
				t.Errorf("hashes = %v", hashes)
			}
		})
	}

	t.Run("failure returns unknown", func(t *testing.T) {
		mock, oracle := newScriptedOracle()
		oracle.on("classification", errors.New("boom"))
		c := &Classifier{caller: testCaller(mock), resolver: testResolver(), logger: discardLogger()}

		got, _, err := c.Classify(t.Context(), testPages("p"), "", "paper")
		if !errors.Is(err, ErrOracle) {
			t.Fatalf("error = %v, want ErrOracle", err)
		}
		if diff := cmp.Diff(exam.UnknownClassification(), got); diff != "" {
			t.Errorf("result mismatch (-want +got):\n%s", diff)
		}
	})
}
