package analysis

import (
	"strings"

	"github.com/jackzampolin/papercheck/internal/exam"
)

// Consolidation reports what the Category Consolidator did.
type Consolidation struct {
	Dominant   string // dominant subject, empty when none qualified
	Unit       string // "subject > unit" assigned to the other items
	Reassigned []string
}

// Consolidate folds stray topics into the dominant subject. When one subject
// holds at least ratio of the topic labels, every item outside it is moved
// to that subject's most common unit. Items already in the dominant subject
// and placeholders are untouched. A ratio of zero or less disables it.
func Consolidate(questions []exam.QuestionRecord, ratio float64) ([]exam.QuestionRecord, Consolidation) {
	out := make([]exam.QuestionRecord, len(questions))
	copy(out, questions)
	if ratio <= 0 {
		return out, Consolidation{}
	}

	counts := map[string]int{}
	var order []string
	labeled := 0
	for _, q := range out {
		subject := topicSegment(q.TopicPath, 0)
		if subject == "" {
			continue
		}
		labeled++
		if counts[subject] == 0 {
			order = append(order, subject)
		}
		counts[subject]++
	}
	if labeled == 0 || len(counts) < 2 {
		return out, Consolidation{}
	}

	dominant := ""
	for _, s := range order {
		if counts[s] > counts[dominant] {
			dominant = s
		}
	}
	if float64(counts[dominant])/float64(labeled) < ratio {
		return out, Consolidation{}
	}

	unit := mostCommonUnit(out, dominant)
	c := Consolidation{Dominant: dominant, Unit: unit}
	for i := range out {
		if topicSegment(out[i].TopicPath, 0) == dominant || out[i].ResolvedBy == exam.ResolvedByPlaceholder {
			continue
		}
		out[i].TopicPath = unit
		c.Reassigned = append(c.Reassigned, out[i].ItemNumber)
	}
	return out, c
}

// mostCommonUnit returns "subject > unit" for the dominant subject's most
// frequent unit, first seen winning ties, or the subject alone when no item
// names a unit.
func mostCommonUnit(questions []exam.QuestionRecord, subject string) string {
	counts := map[string]int{}
	best := ""
	for _, q := range questions {
		if topicSegment(q.TopicPath, 0) != subject {
			continue
		}
		unit := topicSegment(q.TopicPath, 1)
		if unit == "" {
			continue
		}
		counts[unit]++
		if best == "" || counts[unit] > counts[best] {
			best = unit
		}
	}
	if best == "" {
		return subject
	}
	return subject + " > " + best
}

// topicSegment returns the i-th "a > b > c" segment, trimmed.
func topicSegment(path string, i int) string {
	segs := strings.Split(path, ">")
	if i >= len(segs) {
		return ""
	}
	return strings.TrimSpace(segs[i])
}
