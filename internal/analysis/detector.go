package analysis

import (
	"context"
	"log/slog"
	"strings"

	"github.com/jackzampolin/papercheck/internal/exam"
	"github.com/jackzampolin/papercheck/internal/prompts"
	"github.com/jackzampolin/papercheck/internal/prompts/marks"
)

// Detector locates grading marks in a narrow first pass. Its findings are
// evidence for later stages, never authoritative on their own.
type Detector struct {
	caller   *caller
	resolver *prompts.Resolver
	logger   *slog.Logger
}

// Detection is the Mark Detector's output.
type Detection struct {
	Marks  []exam.DetectedMark
	Status exam.GradingStatus
	Hashes map[string]string
}

// choicePositions are position hints that place a mark on an answer option.
var choicePositions = []string{"option", "choice", "selection", "보기", "선택지", "선지"}

// Detect finds grading marks. Failure yields an empty list with status
// unknown and the error; that is a handled outcome for callers.
func (d *Detector) Detect(ctx context.Context, pages []exam.Page, scope, paperKey string) (Detection, error) {
	out := Detection{Status: exam.GradingUnknown}

	system, systemHash, err := renderPrompt(ctx, d.resolver, marks.SystemPromptKey, scope, nil)
	if err != nil {
		return out, err
	}
	user, userHash, err := renderPrompt(ctx, d.resolver, marks.UserPromptKey, scope, marks.UserPromptData{PageCount: len(pages)})
	if err != nil {
		return out, err
	}
	out.Hashes = map[string]string{marks.SystemPromptKey: systemHash, marks.UserPromptKey: userHash}

	parsed, err := d.caller.call(ctx, oracleRequest{
		stage:      "marks",
		promptKey:  marks.SystemPromptKey,
		promptHash: systemHash,
		system:     system,
		user:       user,
		pages:      pages,
		schemaName: "grading_marks",
		schema:     marks.Schema,
		paperKey:   paperKey,
		attempt:    1,
	})
	if err != nil {
		d.logger.Warn("mark detection failed", "error", err)
		return out, err
	}

	var raw rawMarks
	if err := decode("marks", parsed, &raw); err != nil {
		d.logger.Warn("mark detection undecodable", "error", err)
		return out, err
	}

	out.Marks = d.normalize(raw.Marks)
	out.Status = gradingStatusOf(out.Marks)
	return out, nil
}

// normalize canonicalizes item numbers, coerces enums, drops marks placed on
// answer choices, and keeps the most confident mark per item.
func (d *Detector) normalize(raw []rawMark) []exam.DetectedMark {
	byItem := make(map[string]int)
	var out []exam.DetectedMark
	for _, rm := range raw {
		item := exam.CanonicalItemNumber(rm.ItemNumber.String())
		if item == "" {
			continue
		}
		if onChoice(rm.Position.String()) {
			d.logger.Debug("ignoring mark on answer choice", "item", item, "position", rm.Position)
			continue
		}

		markType, mtOK := exam.ParseMarkType(rm.MarkType.String())
		verdict, vOK := exam.ParseVerdict(rm.Verdict.String())
		conf := 0.5
		if rm.Confidence.Valid {
			conf = rm.Confidence.Value
		}
		if !mtOK || !vOK {
			conf -= 0.1
		}
		if markType == exam.MarkNone && verdict.Decisive() {
			// A verdict without a visible mark is a guess.
			verdict = exam.VerdictUncertain
		}

		m := exam.DetectedMark{
			ItemNumber: item,
			MarkType:   markType,
			Symbol:     rm.Symbol.String(),
			Position:   rm.Position.String(),
			Color:      rm.Color.String(),
			Verdict:    verdict,
			Confidence: exam.Clamp01(conf),
			Score:      rm.Score.ptr(),
		}
		if m.Score != nil && *m.Score < 0 {
			m.Score = nil
		}

		if i, seen := byItem[item]; seen {
			if m.Confidence > out[i].Confidence {
				out[i] = m
			}
			continue
		}
		byItem[item] = len(out)
		out = append(out, m)
	}
	return out
}

func onChoice(position string) bool {
	p := strings.ToLower(position)
	for _, hint := range choicePositions {
		if strings.Contains(p, hint) {
			return true
		}
	}
	return false
}

// gradingStatusOf summarizes marks: no decisive mark means not graded, all
// decisive means fully graded.
func gradingStatusOf(marks []exam.DetectedMark) exam.GradingStatus {
	if len(marks) == 0 {
		return exam.GradingNone
	}
	decisive := 0
	for _, m := range marks {
		if m.Verdict.Decisive() || m.Score != nil {
			decisive++
		}
	}
	switch {
	case decisive == 0:
		return exam.GradingNone
	case decisive == len(marks):
		return exam.GradingFull
	default:
		return exam.GradingPartial
	}
}

// marksByItem indexes marks by canonical item number.
func marksByItem(marks []exam.DetectedMark) map[string]exam.DetectedMark {
	out := make(map[string]exam.DetectedMark, len(marks))
	for _, m := range marks {
		out[exam.CanonicalItemNumber(m.ItemNumber)] = m
	}
	return out
}

// expectedItems is the highest numeric item number among marks at or above
// floor, or 0. Numbers above maxItems are ignored; maxItems <= 0 means no cap.
func expectedItems(marks []exam.DetectedMark, floor float64, maxItems int) int {
	highest := 0
	for _, m := range marks {
		if m.Confidence < floor {
			continue
		}
		if n, ok := exam.ItemNumberValue(m.ItemNumber); ok && n > highest && withinCap(n, maxItems) {
			highest = n
		}
	}
	return highest
}

func withinCap(n, maxItems int) bool {
	return maxItems <= 0 || n <= maxItems
}
