package analysis

import (
	"encoding/json"
	"testing"
)

func TestFlexDecoding(t *testing.T) {
	var q rawQuestion
	in := `{"itemNumber": 7, "points": "4.5 pts", "confidence": null, "isCorrect": false, "earnedPoints": "n/a", "ambiguous": "yes", "studentAnswer": 3}`
	if err := json.Unmarshal([]byte(in), &q); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if q.ItemNumber != "7" || q.StudentAnswer != "3" || q.IsCorrect != "false" {
		t.Errorf("strings = %q %q %q", q.ItemNumber, q.StudentAnswer, q.IsCorrect)
	}
	if !q.Points.Valid || q.Points.Value != 4.5 {
		t.Errorf("points = %+v", q.Points)
	}
	if q.Confidence.Valid || q.EarnedPoints.Valid || q.EarnedPoints.ptr() != nil {
		t.Errorf("confidence = %+v earned = %+v, want invalid", q.Confidence, q.EarnedPoints)
	}
	if !bool(q.Ambiguous) {
		t.Error("ambiguous should be true")
	}
}

func TestParseNumber(t *testing.T) {
	tests := map[string]float64{"5": 5, " 5점": 5, "2.5 points": 2.5, "10pt": 10, "80%": 80}
	for in, want := range tests {
		got, ok := parseNumber(in)
		if !ok || got != want {
			t.Errorf("parseNumber(%q) = %v, %v; want %v", in, got, ok, want)
		}
	}
	if _, ok := parseNumber("five"); ok {
		t.Error("parseNumber(five) should fail")
	}
}
