// Package exam defines the data model shared by the analysis pipeline, the
// content cache, and the HTTP surface.
package exam

import (
	"sort"
	"strconv"
	"strings"
)

// Page is one page payload of a submitted paper.
type Page struct {
	Data      []byte `json:"data"` // base64 in JSON
	MediaType string `json:"mediaType"`
}

// Context carries optional curriculum information about a paper.
type Context struct {
	GradeLevel     string   `json:"gradeLevel,omitempty" yaml:"grade_level,omitempty"`
	CurriculumUnit string   `json:"curriculumUnit,omitempty" yaml:"curriculum_unit,omitempty"`
	CategoryHint   string   `json:"categoryHint,omitempty" yaml:"category_hint,omitempty"`
	ScopeList      []string `json:"scopeList,omitempty" yaml:"scope_list,omitempty"`
	Subject        string   `json:"subject,omitempty" yaml:"subject,omitempty"`
}

// AnalysisRequest is one paper submitted for analysis. Treat it as immutable.
type AnalysisRequest struct {
	Pages   []Page       `json:"pages"`
	Context Context      `json:"context"`
	Mode    AnalysisMode `json:"analysisMode"`
}

// ClassificationResult is the Document Classifier's verdict on a paper.
type ClassificationResult struct {
	PaperType     PaperType     `json:"paperType"`
	GradingStatus GradingStatus `json:"gradingStatus"`
	Confidence    float64       `json:"confidence"`
	Indicators    []string      `json:"indicators,omitempty"`
}

// UnknownClassification is returned when classification could not run.
func UnknownClassification() ClassificationResult {
	return ClassificationResult{PaperType: PaperUnknown, GradingStatus: GradingUnknown}
}

// DetectedMark is one grading mark found by the Mark Detector. It is evidence,
// never authoritative on its own.
type DetectedMark struct {
	ItemNumber string   `json:"itemNumber"`
	MarkType   MarkType `json:"markType"`
	Symbol     string   `json:"symbol,omitempty"`
	Position   string   `json:"position,omitempty"`
	Color      string   `json:"color,omitempty"`
	Verdict    Verdict  `json:"verdict"`
	Confidence float64  `json:"confidence"`
	Score      *float64 `json:"score,omitempty"` // literal score written by the grader
}

// QuestionRecord is the analysis of one item on a paper.
type QuestionRecord struct {
	ItemNumber     string         `json:"itemNumber"`
	DifficultyTier DifficultyTier `json:"difficultyTier"`
	ItemType       ItemType       `json:"itemType"`
	TopicPath      string         `json:"topicPath"`
	Points         float64        `json:"points"`
	Confidence     float64        `json:"confidence"`
	ResolvedBy     ResolvedBy     `json:"resolvedBy"`
	Ambiguous      bool           `json:"ambiguous,omitempty"`

	// Grading fields; meaningful only when grading is in scope.
	IsCorrect      Correctness `json:"isCorrect,omitempty"`
	StudentAnswer  string      `json:"studentAnswer,omitempty"`
	EarnedPoints   *float64    `json:"earnedPoints,omitempty"` // nil means unknown
	ErrorCategory  string      `json:"errorCategory,omitempty"`
	Rationale      string      `json:"rationale,omitempty"`
	Validated      bool        `json:"validated,omitempty"`
	CorrectionNote string      `json:"correctionNote,omitempty"`
}

// Number returns the numeric item number, if the label is numeric.
func (q QuestionRecord) Number() (int, bool) {
	return ItemNumberValue(q.ItemNumber)
}

// Distribution counts items per label.
type Distribution map[string]int

// AnalysisResult is the pipeline's output for one paper. It is the value
// stored in the content cache.
type AnalysisResult struct {
	Questions      []QuestionRecord     `json:"questions"`
	ByDifficulty   Distribution         `json:"byDifficulty"`
	ByItemType     Distribution         `json:"byItemType"`
	ReviewRequired bool                 `json:"reviewRequired"`
	ReviewReasons  []string             `json:"reviewReasons,omitempty"`
	Confidence     float64              `json:"confidence"`
	Classification ClassificationResult `json:"classification"`
	Mode           AnalysisMode         `json:"mode,omitempty"`
	Marks          []DetectedMark       `json:"marks,omitempty"`
	PromptHashes   map[string]string    `json:"promptHashes,omitempty"`
	Cache          CacheMeta            `json:"cache"`
}

// CacheMeta describes how the result was served.
type CacheMeta struct {
	Hit       bool  `json:"hit"`
	ElapsedMs int64 `json:"elapsedMs"`
}

// Clone returns a deep copy so cached values are never shared with callers.
func (r *AnalysisResult) Clone() *AnalysisResult {
	if r == nil {
		return nil
	}
	out := *r
	out.Questions = make([]QuestionRecord, len(r.Questions))
	for i, q := range r.Questions {
		if q.EarnedPoints != nil {
			v := *q.EarnedPoints
			q.EarnedPoints = &v
		}
		out.Questions[i] = q
	}
	out.ByDifficulty = cloneDist(r.ByDifficulty)
	out.ByItemType = cloneDist(r.ByItemType)
	out.ReviewReasons = append([]string(nil), r.ReviewReasons...)
	out.Classification.Indicators = append([]string(nil), r.Classification.Indicators...)
	if r.Marks != nil {
		out.Marks = make([]DetectedMark, len(r.Marks))
		for i, m := range r.Marks {
			if m.Score != nil {
				v := *m.Score
				m.Score = &v
			}
			out.Marks[i] = m
		}
	}
	if r.PromptHashes != nil {
		out.PromptHashes = make(map[string]string, len(r.PromptHashes))
		for k, v := range r.PromptHashes {
			out.PromptHashes[k] = v
		}
	}
	return &out
}

func cloneDist(d Distribution) Distribution {
	if d == nil {
		return nil
	}
	out := make(Distribution, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// Recompute rebuilds the difficulty and item type distributions from Questions.
func (r *AnalysisResult) Recompute() {
	r.ByDifficulty = Distribution{}
	r.ByItemType = Distribution{}
	for _, q := range r.Questions {
		r.ByDifficulty[string(q.DifficultyTier)]++
		r.ByItemType[string(q.ItemType)]++
	}
}

// AddReviewReason flags the result for review, ignoring duplicate reasons.
func (r *AnalysisResult) AddReviewReason(reason string) {
	r.ReviewRequired = true
	for _, existing := range r.ReviewReasons {
		if existing == reason {
			return
		}
	}
	r.ReviewReasons = append(r.ReviewReasons, reason)
}

// ItemNumberValue parses a numeric item label such as "7", "07", "7번" or "Q7".
func ItemNumberValue(label string) (int, bool) {
	s := strings.TrimSpace(label)
	s = strings.TrimPrefix(strings.TrimPrefix(s, "Q"), "q")
	s = strings.TrimSuffix(strings.TrimSuffix(s, "번"), ".")
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// CanonicalItemNumber rewrites numeric labels as plain integers and leaves
// non-numeric labels (e.g. "essay-1") trimmed but otherwise untouched.
func CanonicalItemNumber(label string) string {
	if n, ok := ItemNumberValue(label); ok {
		return strconv.Itoa(n)
	}
	return strings.TrimSpace(label)
}

// MissingNumbers returns the numbers in 1..max(observed, expected) absent from
// the numeric item labels, in ascending order.
func MissingNumbers(questions []QuestionRecord, expected int) []int {
	seen := make(map[int]bool, len(questions))
	maxSeen := expected
	for _, q := range questions {
		if n, ok := q.Number(); ok {
			seen[n] = true
			if n > maxSeen {
				maxSeen = n
			}
		}
	}
	var missing []int
	for n := 1; n <= maxSeen; n++ {
		if !seen[n] {
			missing = append(missing, n)
		}
	}
	return missing
}

// SortQuestions orders numeric items ascending, followed by labeled items in
// their original relative order.
func SortQuestions(questions []QuestionRecord) {
	sort.SliceStable(questions, func(i, j int) bool {
		ni, iok := questions[i].Number()
		nj, jok := questions[j].Number()
		switch {
		case iok && jok:
			return ni < nj
		case iok:
			return true
		default:
			return false
		}
	})
}

// Clamp01 bounds a confidence value to [0,1].
func Clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
