package analysis

import (
	"log/slog"
	"math"
	"regexp"
	"strings"

	"github.com/jackzampolin/papercheck/internal/exam"
)

// Validator turns a draft into records: enum coercion, topic cleanup,
// points checks, confidence scoring and review flags. Domain problems are
// fixed locally with a confidence penalty and never fail the analysis.
type Validator struct {
	settings Settings
	logger   *slog.Logger
}

const (
	// domainPenalty applies per coerced field.
	domainPenalty = 0.1
	// defaultConfidence stands in when the oracle omits an item confidence.
	defaultConfidence = 0.8
)

// Review reasons.
const (
	ReasonLowConfidence = "low_confidence_items"
	ReasonAmbiguous     = "ambiguous_items"
	ReasonPlaceholders  = "placeholder_items"
	ReasonPointsSum     = "points_sum_mismatch"
	ReasonVerdictClash  = "verdict_conflict"
	ReasonUnresolved    = "unresolved_items"
	ReasonDetectorDown  = "mark_detection_unavailable"
	ReasonOutOfRange    = "item_number_out_of_range"
)

// Validate builds and finishes a result in one step.
func (v *Validator) Validate(draft *Draft, grading bool) *exam.AnalysisResult {
	result, penalty := v.Build(draft, grading)
	v.Finish(result, penalty)
	return result
}

// Build turns a draft into ordered records and returns the points-sum
// penalty to apply when the result is finished. grading reports whether
// correctness fields are in scope.
func (v *Validator) Build(draft *Draft, grading bool) (*exam.AnalysisResult, float64) {
	result := &exam.AnalysisResult{}
	for _, rq := range draft.Questions {
		result.Questions = append(result.Questions, v.record(rq, grading))
	}
	for _, n := range draft.Placeholders {
		result.Questions = append(result.Questions, placeholderRecord(n, grading, v.settings.PlaceholderConfidence))
	}
	exam.SortQuestions(result.Questions)
	return result, v.pointsPenalty(result)
}

// record coerces one raw item into a QuestionRecord.
func (v *Validator) record(rq rawQuestion, grading bool) exam.QuestionRecord {
	conf := defaultConfidence
	if rq.Confidence.Valid {
		conf = exam.Clamp01(rq.Confidence.Value)
	}

	tier, ok := exam.ParseDifficultyTier(rq.DifficultyTier.String())
	if !ok {
		conf -= domainPenalty
	}
	itemType, ok := exam.ParseItemType(rq.ItemType.String())
	if !ok {
		conf -= domainPenalty
	}

	points := 0.0
	if rq.Points.Valid {
		points = rq.Points.Value
	}
	if points < 0 || math.IsNaN(points) || math.IsInf(points, 0) {
		points = 0
		conf -= domainPenalty
	}

	q := exam.QuestionRecord{
		ItemNumber:     rq.ItemNumber.String(),
		DifficultyTier: tier,
		ItemType:       itemType,
		TopicPath:      FirstTopic(rq.TopicPath.String()),
		Points:         points,
		ResolvedBy:     exam.ResolvedByOracleAnalysis,
		Ambiguous:      bool(rq.Ambiguous),
	}

	if grading {
		correct, ok := exam.ParseCorrectness(rq.IsCorrect.String())
		if !ok {
			conf -= domainPenalty
		}
		q.IsCorrect = correct
		q.StudentAnswer = rq.StudentAnswer.String()
		q.ErrorCategory = rq.ErrorCategory.String()
		q.Rationale = rq.Rationale.String()
		q.EarnedPoints = clampEarned(rq.EarnedPoints.ptr(), points)
		v.settleVerdict(&q, exam.Clamp01(conf))
	}

	q.Confidence = exam.Clamp01(conf)
	return q
}

// settleVerdict keeps a verdict only when the signal behind it reaches the
// floor, derives a verdict from a reported score, and keeps earnedPoints
// consistent with the verdict.
func (v *Validator) settleVerdict(q *exam.QuestionRecord, conf float64) {
	if conf < v.settings.VerdictFloor {
		if q.IsCorrect.Known() {
			v.logger.Debug("verdict below floor, reverting to unknown", "item", q.ItemNumber, "confidence", conf)
		}
		q.IsCorrect = exam.CorrectUnknown
		q.EarnedPoints = nil
		return
	}

	if !q.IsCorrect.Known() && q.EarnedPoints != nil && q.Points > 0 {
		if *q.EarnedPoints >= q.Points {
			q.IsCorrect = exam.CorrectTrue
		} else {
			q.IsCorrect = exam.CorrectFalse
		}
	}

	switch q.IsCorrect {
	case exam.CorrectTrue:
		if q.EarnedPoints == nil {
			q.EarnedPoints = ptr(q.Points)
		}
	case exam.CorrectFalse:
		if q.EarnedPoints == nil || (q.Points > 0 && *q.EarnedPoints >= q.Points) {
			q.EarnedPoints = ptr(0)
		}
	default:
		q.EarnedPoints = nil
	}
}

// pointsPenalty compares the points sum against the expected total. Papers
// with no printed points are not checked.
func (v *Validator) pointsPenalty(result *exam.AnalysisResult) float64 {
	if v.settings.ExpectedTotal <= 0 {
		return 0
	}
	sum := 0.0
	for _, q := range result.Questions {
		if q.ResolvedBy != exam.ResolvedByPlaceholder {
			sum += q.Points
		}
	}
	if sum == 0 {
		return 0
	}

	deviation := math.Abs(sum - v.settings.ExpectedTotal)
	penalty := PointsPenalty(deviation)
	if deviation > 10 {
		result.AddReviewReason(ReasonPointsSum)
	}
	if penalty > 0 {
		v.logger.Info("points sum deviates from expected total",
			"sum", sum, "expected", v.settings.ExpectedTotal, "penalty", penalty)
	}
	return penalty
}

// PointsPenalty is the confidence penalty for a points-sum deviation.
func PointsPenalty(deviation float64) float64 {
	switch {
	case deviation < 1e-9:
		return 0
	case deviation <= 2:
		return 0.02
	case deviation <= 10:
		return 0.05 + 0.01*deviation
	default:
		return 0.2
	}
}

// Finish recomputes distributions, overall confidence and review flags.
// Review reasons already on the result are kept.
func (v *Validator) Finish(result *exam.AnalysisResult, penalty float64) {
	result.Recompute()

	low, ambiguous, placeholders, outOfRange := 0, 0, 0, 0
	sum := 0.0
	for i := range result.Questions {
		q := &result.Questions[i]
		q.Confidence = exam.Clamp01(q.Confidence)
		sum += q.Confidence
		if q.Confidence < v.settings.LowConfidence {
			low++
		}
		if q.Ambiguous {
			ambiguous++
		}
		if q.ResolvedBy == exam.ResolvedByPlaceholder {
			placeholders++
		}
		if n, ok := q.Number(); ok && !withinCap(n, v.settings.MaxItems) {
			outOfRange++
		}
	}

	if n := len(result.Questions); n > 0 {
		result.Confidence = exam.Clamp01(sum/float64(n) - penalty)
	}
	if low >= v.settings.LowConfidenceItems {
		result.AddReviewReason(ReasonLowConfidence)
	}
	if ambiguous > 0 {
		result.AddReviewReason(ReasonAmbiguous)
	}
	if placeholders > 0 {
		result.AddReviewReason(ReasonPlaceholders)
	}
	if outOfRange > 0 {
		result.AddReviewReason(ReasonOutOfRange)
	}
}

// topicSeparators split compound topics: comma, slash, semicolon, "and", "&", "및".
var topicSeparators = regexp.MustCompile(`\s*(?:[,/;&]|\band\b|\s및\s)\s*`)

// FirstTopic cuts a compound topic path to its first well-formed segment.
// "Math > Algebra, Geometry" becomes "Math > Algebra".
func FirstTopic(topic string) string {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return ""
	}
	parts := topicSeparators.Split(topic, -1)
	for _, p := range parts {
		p = strings.Trim(strings.TrimSpace(p), ">")
		p = strings.TrimSpace(p)
		if p != "" {
			return normalizePath(p)
		}
	}
	return ""
}

// normalizePath rewrites "a>b >  c" as "a > b > c".
func normalizePath(p string) string {
	segs := strings.Split(p, ">")
	out := segs[:0]
	for _, s := range segs {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return strings.Join(out, " > ")
}

func clampEarned(earned *float64, points float64) *float64 {
	if earned == nil {
		return nil
	}
	e := *earned
	if math.IsNaN(e) || e < 0 {
		e = 0
	}
	if e > points {
		e = points
	}
	return &e
}

func ptr(v float64) *float64 { return &v }
