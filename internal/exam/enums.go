package exam

import "strings"

// DifficultyTier is the four-level difficulty scale.
type DifficultyTier string

const (
	TierConcept   DifficultyTier = "concept"
	TierPattern   DifficultyTier = "pattern"
	TierReasoning DifficultyTier = "reasoning"
	TierCreative  DifficultyTier = "creative"
)

// DifficultyTiers lists every tier in ascending order.
var DifficultyTiers = []DifficultyTier{TierConcept, TierPattern, TierReasoning, TierCreative}

// ParseDifficultyTier normalizes a raw tier label. Labels from the older
// three-level vocabulary (easy/medium/hard and synonyms) map onto the four-tier
// scale and count as recognized. Anything else yields TierPattern and ok=false.
func ParseDifficultyTier(raw string) (tier DifficultyTier, ok bool) {
	switch normalizeKey(raw) {
	case "concept", "conceptual", "basic", "easy", "low", "lower", "하", "기본":
		return TierConcept, true
	case "pattern", "application", "medium", "normal", "mid", "middle", "intermediate", "중", "유형":
		return TierPattern, true
	case "reasoning", "hard", "high", "difficult", "upper", "상", "심화":
		return TierReasoning, true
	case "creative", "killer", "veryhard", "advanced", "challenge", "최상", "킬러":
		return TierCreative, true
	}
	return TierPattern, false
}

// ItemType is the response format of a question.
type ItemType string

const (
	ItemMultipleChoice ItemType = "multipleChoice"
	ItemShortAnswer    ItemType = "shortAnswer"
	ItemEssay          ItemType = "essay"
	ItemTrueFalse      ItemType = "trueFalse"
	ItemFillBlank      ItemType = "fillBlank"
	ItemMatching       ItemType = "matching"
	ItemOther          ItemType = "other"
)

// ItemTypes lists every item type.
var ItemTypes = []ItemType{ItemMultipleChoice, ItemShortAnswer, ItemEssay, ItemTrueFalse, ItemFillBlank, ItemMatching, ItemOther}

// ParseItemType normalizes a raw item type. Unrecognized input yields ItemOther and ok=false.
func ParseItemType(raw string) (ItemType, bool) {
	switch normalizeKey(raw) {
	case "multiplechoice", "choice", "mcq", "objective", "선택형", "객관식":
		return ItemMultipleChoice, true
	case "shortanswer", "short", "subjective", "단답형", "주관식":
		return ItemShortAnswer, true
	case "essay", "descriptive", "longanswer", "constructed", "서술형", "논술형":
		return ItemEssay, true
	case "truefalse", "tf", "ox", "boolean":
		return ItemTrueFalse, true
	case "fillblank", "fillintheblank", "blank", "cloze", "빈칸":
		return ItemFillBlank, true
	case "matching", "match", "연결":
		return ItemMatching, true
	case "other":
		return ItemOther, true
	}
	return ItemOther, false
}

// Verdict is a correctness judgment derived from a grading mark.
type Verdict string

const (
	VerdictCorrect   Verdict = "correct"
	VerdictIncorrect Verdict = "incorrect"
	VerdictNotGraded Verdict = "notGraded"
	VerdictUncertain Verdict = "uncertain"
)

// ParseVerdict normalizes a raw verdict. Unrecognized input yields VerdictUncertain and ok=false.
func ParseVerdict(raw string) (Verdict, bool) {
	switch normalizeKey(raw) {
	case "correct", "right", "o", "true", "pass":
		return VerdictCorrect, true
	case "incorrect", "wrong", "x", "false", "fail":
		return VerdictIncorrect, true
	case "notgraded", "ungraded", "none", "unmarked", "blank":
		return VerdictNotGraded, true
	case "uncertain", "unknown", "ambiguous", "unclear":
		return VerdictUncertain, true
	}
	return VerdictUncertain, false
}

// Decisive reports whether the verdict settles correctness.
func (v Verdict) Decisive() bool {
	return v == VerdictCorrect || v == VerdictIncorrect
}

// Correctness returns the tri-state correctness the verdict implies.
func (v Verdict) Correctness() Correctness {
	switch v {
	case VerdictCorrect:
		return CorrectTrue
	case VerdictIncorrect:
		return CorrectFalse
	}
	return CorrectUnknown
}

// MarkType is the shape of a grading mark.
type MarkType string

const (
	MarkCircle MarkType = "circle"
	MarkSlash  MarkType = "slash"
	MarkScore  MarkType = "score"
	MarkNone   MarkType = "none"
)

// ParseMarkType normalizes a raw mark type. Unrecognized input yields MarkNone and ok=false.
func ParseMarkType(raw string) (MarkType, bool) {
	switch normalizeKey(raw) {
	case "circle", "o", "check", "checkmark", "tick":
		return MarkCircle, true
	case "slash", "x", "cross", "strike", "line":
		return MarkSlash, true
	case "score", "number", "points", "numeric":
		return MarkScore, true
	case "none", "":
		return MarkNone, true
	}
	return MarkNone, false
}

// Correctness is a tri-state correctness value.
type Correctness string

const (
	CorrectTrue    Correctness = "true"
	CorrectFalse   Correctness = "false"
	CorrectUnknown Correctness = "unknown"
)

// ParseCorrectness accepts booleans, verdict words, and "unknown".
func ParseCorrectness(raw string) (Correctness, bool) {
	switch normalizeKey(raw) {
	case "true", "correct", "yes", "o":
		return CorrectTrue, true
	case "false", "incorrect", "no", "x", "wrong":
		return CorrectFalse, true
	case "unknown", "null", "", "uncertain", "notgraded":
		return CorrectUnknown, true
	}
	return CorrectUnknown, false
}

// Known reports whether correctness is settled.
func (c Correctness) Known() bool {
	return c == CorrectTrue || c == CorrectFalse
}

// ResolvedBy records which stage produced an item's final values.
type ResolvedBy string

const (
	ResolvedByDetection      ResolvedBy = "detection"
	ResolvedByScoreCheck     ResolvedBy = "scoreCheck"
	ResolvedByOracleAnalysis ResolvedBy = "oracleAnalysis"
	ResolvedByPlaceholder    ResolvedBy = "placeholder"
)

// PaperType describes whether a paper carries student work.
type PaperType string

const (
	PaperBlank    PaperType = "blank"
	PaperAnswered PaperType = "answered"
	PaperMixed    PaperType = "mixed"
	PaperUnknown  PaperType = "unknown"
)

// ParsePaperType normalizes a raw paper type. Unrecognized input yields PaperUnknown and ok=false.
func ParsePaperType(raw string) (PaperType, bool) {
	switch normalizeKey(raw) {
	case "blank", "empty", "questionsonly":
		return PaperBlank, true
	case "answered", "solved", "completed", "withanswers":
		return PaperAnswered, true
	case "mixed", "partial", "partiallyanswered":
		return PaperMixed, true
	case "unknown":
		return PaperUnknown, true
	}
	return PaperUnknown, false
}

// GradingStatus describes how much of a paper has been graded.
type GradingStatus string

const (
	GradingNone    GradingStatus = "notGraded"
	GradingPartial GradingStatus = "partiallyGraded"
	GradingFull    GradingStatus = "fullyGraded"
	GradingUnknown GradingStatus = "unknown"
)

// ParseGradingStatus normalizes a raw grading status. Unrecognized input yields GradingUnknown and ok=false.
func ParseGradingStatus(raw string) (GradingStatus, bool) {
	switch normalizeKey(raw) {
	case "notgraded", "ungraded", "none":
		return GradingNone, true
	case "partiallygraded", "partial", "partlygraded":
		return GradingPartial, true
	case "fullygraded", "graded", "full", "complete":
		return GradingFull, true
	case "unknown":
		return GradingUnknown, true
	}
	return GradingUnknown, false
}

// Graded reports whether at least part of the paper carries grading marks.
func (g GradingStatus) Graded() bool {
	return g == GradingPartial || g == GradingFull
}

// AnalysisMode selects what the pipeline extracts.
type AnalysisMode string

const (
	ModeQuestionsOnly AnalysisMode = "questionsOnly"
	ModeFull          AnalysisMode = "full"
	ModeAnswersOnly   AnalysisMode = "answersOnly"
)

// ParseAnalysisMode normalizes a mode name. Empty input selects ModeFull.
func ParseAnalysisMode(raw string) (AnalysisMode, bool) {
	switch normalizeKey(raw) {
	case "questionsonly", "questions":
		return ModeQuestionsOnly, true
	case "full", "":
		return ModeFull, true
	case "answersonly", "answers", "grading":
		return ModeAnswersOnly, true
	}
	return ModeFull, false
}

// GradingInScope reports whether the mode asks for correctness verdicts.
func (m AnalysisMode) GradingInScope() bool {
	return m == ModeFull || m == ModeAnswersOnly
}

// normalizeKey lowercases and drops separators so "Multiple_Choice",
// "multiple-choice" and "multiple choice" compare equal.
func normalizeKey(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer(" ", "", "_", "", "-", "", ".", "").Replace(s)
}
