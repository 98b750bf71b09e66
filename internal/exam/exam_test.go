package exam

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseDifficultyTier(t *testing.T) {
	tests := []struct {
		raw    string
		want   DifficultyTier
		wantOK bool
	}{
		{"concept", TierConcept, true},
		{"Easy", TierConcept, true},
		{"medium", TierPattern, true},
		{"HARD", TierReasoning, true},
		{"very hard", TierCreative, true},
		{"killer", TierCreative, true},
		{"creative", TierCreative, true},
		{"legendary", TierPattern, false},
		{"", TierPattern, false},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, ok := ParseDifficultyTier(tt.raw)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("ParseDifficultyTier(%q) = %q, %v; want %q, %v", tt.raw, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestParseItemType(t *testing.T) {
	tests := []struct {
		raw    string
		want   ItemType
		wantOK bool
	}{
		{"multiple_choice", ItemMultipleChoice, true},
		{"Multiple Choice", ItemMultipleChoice, true},
		{"short-answer", ItemShortAnswer, true},
		{"essay", ItemEssay, true},
		{"hologram", ItemOther, false},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, ok := ParseItemType(tt.raw)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("ParseItemType(%q) = %q, %v; want %q, %v", tt.raw, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestVerdictCorrectness(t *testing.T) {
	if VerdictCorrect.Correctness() != CorrectTrue {
		t.Error("correct should map to true")
	}
	if VerdictIncorrect.Correctness() != CorrectFalse {
		t.Error("incorrect should map to false")
	}
	if VerdictNotGraded.Correctness() != CorrectUnknown || VerdictUncertain.Correctness() != CorrectUnknown {
		t.Error("non-decisive verdicts should map to unknown")
	}
	if VerdictNotGraded.Decisive() {
		t.Error("notGraded is not decisive")
	}
}

func TestItemNumberValue(t *testing.T) {
	tests := []struct {
		label  string
		want   int
		wantOK bool
	}{
		{"7", 7, true},
		{"07", 7, true},
		{" 12 ", 12, true},
		{"Q3", 3, true},
		{"5번", 5, true},
		{"essay-1", 0, false},
		{"0", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			got, ok := ItemNumberValue(tt.label)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("ItemNumberValue(%q) = %d, %v; want %d, %v", tt.label, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestMissingNumbers(t *testing.T) {
	qs := []QuestionRecord{{ItemNumber: "1"}, {ItemNumber: "2"}, {ItemNumber: "3"}, {ItemNumber: "5"}, {ItemNumber: "essay-1"}, {ItemNumber: "8"}}

	if diff := cmp.Diff([]int{4, 6, 7}, MissingNumbers(qs, 0)); diff != "" {
		t.Errorf("MissingNumbers() mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{4, 6, 7, 9, 10}, MissingNumbers(qs, 10)); diff != "" {
		t.Errorf("MissingNumbers(expected=10) mismatch (-want +got):\n%s", diff)
	}
	if got := MissingNumbers([]QuestionRecord{{ItemNumber: "1"}, {ItemNumber: "2"}}, 0); got != nil {
		t.Errorf("MissingNumbers() = %v, want nil", got)
	}
}

func TestSortQuestions(t *testing.T) {
	qs := []QuestionRecord{{ItemNumber: "essay-1"}, {ItemNumber: "10"}, {ItemNumber: "2"}, {ItemNumber: "essay-2"}, {ItemNumber: "1"}}
	SortQuestions(qs)

	var got []string
	for _, q := range qs {
		got = append(got, q.ItemNumber)
	}
	want := []string{"1", "2", "10", "essay-1", "essay-2"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("SortQuestions() mismatch (-want +got):\n%s", diff)
	}
}

func TestAnalysisResult_CloneIsDeep(t *testing.T) {
	earned := 5.0
	score := 3.0
	r := &AnalysisResult{
		Questions:    []QuestionRecord{{ItemNumber: "1", EarnedPoints: &earned}},
		ByDifficulty: Distribution{"concept": 1},
		Marks:        []DetectedMark{{ItemNumber: "1", Score: &score}},
	}
	c := r.Clone()
	*c.Questions[0].EarnedPoints = 0
	c.ByDifficulty["concept"] = 9
	*c.Marks[0].Score = 0

	if *r.Questions[0].EarnedPoints != 5 {
		t.Error("clone shares EarnedPoints")
	}
	if r.ByDifficulty["concept"] != 1 {
		t.Error("clone shares distribution")
	}
	if *r.Marks[0].Score != 3 {
		t.Error("clone shares mark score")
	}
}

func TestRecomputeAndReviewReasons(t *testing.T) {
	r := &AnalysisResult{Questions: []QuestionRecord{
		{DifficultyTier: TierConcept, ItemType: ItemEssay},
		{DifficultyTier: TierConcept, ItemType: ItemMultipleChoice},
	}}
	r.Recompute()
	if r.ByDifficulty["concept"] != 2 || r.ByItemType["essay"] != 1 {
		t.Errorf("Recompute() = %v %v", r.ByDifficulty, r.ByItemType)
	}

	r.AddReviewReason("placeholders")
	r.AddReviewReason("placeholders")
	if !r.ReviewRequired || len(r.ReviewReasons) != 1 {
		t.Errorf("AddReviewReason() = %v %v", r.ReviewRequired, r.ReviewReasons)
	}
}
