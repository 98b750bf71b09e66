package analysis

import (
	"slices"
	"testing"

	"github.com/jackzampolin/papercheck/internal/exam"
)

func topics(paths ...string) []exam.QuestionRecord {
	out := make([]exam.QuestionRecord, len(paths))
	for i, p := range paths {
		out[i] = exam.QuestionRecord{ItemNumber: string(rune('1' + i)), TopicPath: p, ResolvedBy: exam.ResolvedByOracleAnalysis}
	}
	return out
}

func paths(questions []exam.QuestionRecord) []string {
	out := make([]string, len(questions))
	for i, q := range questions {
		out[i] = q.TopicPath
	}
	return out
}

func TestConsolidate(t *testing.T) {
	t.Run("strays fold into the dominant subject", func(t *testing.T) {
		in := topics(
			"Math > Algebra > Linear",
			"Math > Algebra",
			"Math > Geometry",
			"Math > Algebra > Quadratics",
			"Science > Chemistry",
		)
		out, c := Consolidate(in, 0.6)
		want := []string{
			"Math > Algebra > Linear",
			"Math > Algebra",
			"Math > Geometry",
			"Math > Algebra > Quadratics",
			"Math > Algebra",
		}
		if !slices.Equal(paths(out), want) {
			t.Errorf("paths = %v, want %v", paths(out), want)
		}
		if c.Dominant != "Math" || c.Unit != "Math > Algebra" || !slices.Equal(c.Reassigned, []string{"5"}) {
			t.Errorf("consolidation = %+v", c)
		}
		if in[4].TopicPath != "Science > Chemistry" {
			t.Error("input was modified")
		}
	})

	t.Run("no dominant subject", func(t *testing.T) {
		in := topics("Math > Algebra", "Math > Geometry", "Science > Physics", "Science > Biology", "English > Grammar")
		out, c := Consolidate(in, 0.6)
		if !slices.Equal(paths(out), paths(in)) || c.Dominant != "" {
			t.Errorf("paths = %v, consolidation = %+v", paths(out), c)
		}
	})

	t.Run("ratio is configurable", func(t *testing.T) {
		in := topics("Math > Algebra", "Math > Geometry", "Science > Physics", "Science > Biology", "Math > Algebra")
		if _, c := Consolidate(in, 0.8); c.Dominant != "" {
			t.Errorf("0.6 share consolidated at ratio 0.8: %+v", c)
		}
		if _, c := Consolidate(in, 0.6); c.Dominant != "Math" {
			t.Errorf("0.6 share not consolidated at ratio 0.6: %+v", c)
		}
	})

	t.Run("zero ratio disables", func(t *testing.T) {
		in := topics("Math > Algebra", "Math > Algebra", "Science > Physics")
		out, _ := Consolidate(in, 0)
		if !slices.Equal(paths(out), paths(in)) {
			t.Errorf("paths = %v", paths(out))
		}
	})

	t.Run("single subject is untouched", func(t *testing.T) {
		in := topics("Math > Algebra", "Math > Geometry")
		_, c := Consolidate(in, 0.6)
		if len(c.Reassigned) != 0 {
			t.Errorf("reassigned = %v", c.Reassigned)
		}
	})

	t.Run("placeholders keep their empty topic", func(t *testing.T) {
		in := topics("Math > Algebra", "Math > Algebra", "Math > Algebra", "")
		in = append(in, placeholderRecord(5, false, 0.3))
		in[3].TopicPath = "Art > Drawing"
		out, _ := Consolidate(in, 0.6)
		if out[3].TopicPath != "Math > Algebra" || out[4].TopicPath != "" {
			t.Errorf("paths = %v", paths(out))
		}
	})

	t.Run("subject without units", func(t *testing.T) {
		in := topics("Math", "Math", "Math", "History > Rome")
		out, c := Consolidate(in, 0.6)
		if out[3].TopicPath != "Math" || c.Unit != "Math" {
			t.Errorf("paths = %v, consolidation = %+v", paths(out), c)
		}
	})
}
