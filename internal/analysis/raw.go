package analysis

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Oracle output arrives loosely typed: numbers as strings, booleans as
// "true", nulls anywhere. The raw types below accept all of it and leave
// domain checks to the validator.

// flexString accepts a string, number, boolean or null.
type flexString string

func (s *flexString) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch x := v.(type) {
	case string:
		*s = flexString(strings.TrimSpace(x))
	case float64:
		*s = flexString(strconv.FormatFloat(x, 'f', -1, 64))
	case bool:
		*s = flexString(strconv.FormatBool(x))
	default:
		*s = ""
	}
	return nil
}

func (s flexString) String() string { return string(s) }

// flexFloat accepts a number, a numeric string ("5", "5점", "5 pts") or null.
type flexFloat struct {
	Value float64
	Valid bool
}

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*f = flexFloat{}
	switch x := v.(type) {
	case float64:
		*f = flexFloat{Value: x, Valid: true}
	case string:
		if n, ok := parseNumber(x); ok {
			*f = flexFloat{Value: n, Valid: true}
		}
	}
	return nil
}

func (f flexFloat) ptr() *float64 {
	if !f.Valid {
		return nil
	}
	v := f.Value
	return &v
}

func parseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(strings.ToLower(s))
	for _, suffix := range []string{"points", "pts", "pt", "점", "%"} {
		s = strings.TrimSpace(strings.TrimSuffix(s, suffix))
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// flexBool accepts a boolean, "true"/"yes"/"1" style strings, or null.
type flexBool bool

func (f *flexBool) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch x := v.(type) {
	case bool:
		*f = flexBool(x)
	case string:
		switch strings.ToLower(strings.TrimSpace(x)) {
		case "true", "yes", "y", "1":
			*f = true
		default:
			*f = false
		}
	case float64:
		*f = x != 0
	default:
		*f = false
	}
	return nil
}

type rawQuestion struct {
	ItemNumber     flexString `json:"itemNumber"`
	DifficultyTier flexString `json:"difficultyTier"`
	ItemType       flexString `json:"itemType"`
	TopicPath      flexString `json:"topicPath"`
	Points         flexFloat  `json:"points"`
	Confidence     flexFloat  `json:"confidence"`
	StudentAnswer  flexString `json:"studentAnswer"`
	IsCorrect      flexString `json:"isCorrect"`
	EarnedPoints   flexFloat  `json:"earnedPoints"`
	ErrorCategory  flexString `json:"errorCategory"`
	Rationale      flexString `json:"rationale"`
	Ambiguous      flexBool   `json:"ambiguous"`
}

type rawAnalysis struct {
	Questions []rawQuestion `json:"questions"`
}

type rawClassification struct {
	PaperType     flexString   `json:"paperType"`
	GradingStatus flexString   `json:"gradingStatus"`
	Confidence    flexFloat    `json:"confidence"`
	Indicators    []flexString `json:"indicators"`
}

type rawMark struct {
	ItemNumber flexString `json:"itemNumber"`
	MarkType   flexString `json:"markType"`
	Symbol     flexString `json:"symbol"`
	Position   flexString `json:"position"`
	Color      flexString `json:"color"`
	Verdict    flexString `json:"verdict"`
	Confidence flexFloat  `json:"confidence"`
	Score      flexFloat  `json:"score"`
}

type rawMarks struct {
	Marks []rawMark `json:"marks"`
}

// rawTriage is the compact correctness reply: n item, c verdict, p confidence.
type rawTriage struct {
	R []struct {
		N flexString `json:"n"`
		C flexString `json:"c"`
		P flexFloat  `json:"p"`
	} `json:"r"`
}
