package analysis

import (
	"errors"
	"slices"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/jackzampolin/papercheck/internal/prompts/analyze"
	"github.com/jackzampolin/papercheck/internal/providers"
)

func testInvoker(client providers.LLMClient) *Invoker {
	return &Invoker{caller: testCaller(client), resolver: testResolver(), maxAttempts: 3, logger: discardLogger()}
}

func testInstructions() *Instructions {
	return &Instructions{
		System:  "analyze the paper",
		User:    "return every item",
		BaseKey: analyze.BaseFullKey,
		Hashes:  map[string]string{analyze.BaseFullKey: "hash"},
	}
}

func without(n int, skip ...int) []map[string]any {
	var qs []map[string]any
	for i := 1; i <= n; i++ {
		if slices.Contains(skip, i) {
			continue
		}
		qs = append(qs, question(strconv.Itoa(i), 12.5))
	}
	return qs
}

func draftItems(d *Draft) []string {
	var out []string
	for _, q := range d.Questions {
		out = append(out, q.ItemNumber.String())
	}
	return out
}

func TestInvoker_Invoke(t *testing.T) {
	pages := testPages("page")

	t.Run("clean answer needs one call", func(t *testing.T) {
		mock, oracle := newScriptedOracle()
		oracle.on("exam_analysis", analysisReply(without(8)...))
		draft, err := testInvoker(mock).Invoke(t.Context(), InvokeInput{Instructions: testInstructions(), Pages: pages, ExpectedItems: 8})
		if err != nil {
			t.Fatalf("Invoke() error = %v", err)
		}
		if draft.Attempts != 1 || draft.Repaired || len(draft.Placeholders) != 0 || len(draft.Questions) != 8 {
			t.Errorf("draft = attempts %d repaired %v placeholders %v items %d", draft.Attempts, draft.Repaired, draft.Placeholders, len(draft.Questions))
		}
	})

	t.Run("gap gets one repair then a placeholder", func(t *testing.T) {
		mock, oracle := newScriptedOracle()
		oracle.on("exam_analysis",
			analysisReply(without(8, 4)...),
			analysisReply(without(8, 4)...),
		)
		draft, err := testInvoker(mock).Invoke(t.Context(), InvokeInput{Instructions: testInstructions(), Pages: pages, ExpectedItems: 8})
		if err != nil {
			t.Fatalf("Invoke() error = %v", err)
		}
		if oracle.calls("exam_analysis") != 2 {
			t.Fatalf("calls = %d, want 2", oracle.calls("exam_analysis"))
		}
		repair := userText(oracle.requests("exam_analysis")[1])
		if !strings.Contains(repair, "skipped item number(s) 4") || !strings.Contains(repair, "from 1 to 8") {
			t.Errorf("repair prompt does not name the gap:\n%s", repair)
		}
		if !strings.HasPrefix(repair, "return every item") {
			t.Errorf("repair prompt should extend the original instructions:\n%s", repair)
		}
		if !slices.Equal(draft.Placeholders, []int{4}) {
			t.Errorf("placeholders = %v, want [4]", draft.Placeholders)
		}
		if _, ok := draft.Hashes[analyze.RepairPromptKey]; !ok {
			t.Error("repair prompt hash not recorded")
		}
	})

	t.Run("repair fills the gap", func(t *testing.T) {
		mock, oracle := newScriptedOracle()
		oracle.on("exam_analysis",
			analysisReply(without(8, 4)...),
			analysisReply(without(8)...),
		)
		draft, err := testInvoker(mock).Invoke(t.Context(), InvokeInput{Instructions: testInstructions(), Pages: pages})
		if err != nil {
			t.Fatalf("Invoke() error = %v", err)
		}
		if !draft.Repaired || len(draft.Placeholders) != 0 || len(draft.Questions) != 8 {
			t.Errorf("repaired=%v placeholders=%v items=%v", draft.Repaired, draft.Placeholders, draftItems(draft))
		}
	})

	t.Run("trailing items known from marks are repaired", func(t *testing.T) {
		mock, oracle := newScriptedOracle()
		oracle.on("exam_analysis", analysisReply(without(6)...), "not json at all")
		draft, err := testInvoker(mock).Invoke(t.Context(), InvokeInput{Instructions: testInstructions(), Pages: pages, ExpectedItems: 8})
		if err != nil {
			t.Fatalf("Invoke() error = %v", err)
		}
		if !slices.Equal(draft.Placeholders, []int{7, 8}) {
			t.Errorf("placeholders = %v, want [7 8]", draft.Placeholders)
		}
		if len(draft.Questions) != 6 {
			t.Errorf("first answer should stand, got %v", draftItems(draft))
		}
	})

	t.Run("labeled items do not count toward gaps", func(t *testing.T) {
		mock, oracle := newScriptedOracle()
		oracle.on("exam_analysis", analysisReply(question("1", 50), question("서술형 1", 50)))
		draft, err := testInvoker(mock).Invoke(t.Context(), InvokeInput{Instructions: testInstructions(), Pages: pages})
		if err != nil {
			t.Fatalf("Invoke() error = %v", err)
		}
		if oracle.calls("exam_analysis") != 1 || len(draft.Placeholders) != 0 {
			t.Errorf("calls=%d placeholders=%v", oracle.calls("exam_analysis"), draft.Placeholders)
		}
	})

	t.Run("parse failures retry then give up", func(t *testing.T) {
		mock, oracle := newScriptedOracle()
		oracle.on("exam_analysis", "the page is blurry")
		_, err := testInvoker(mock).Invoke(t.Context(), InvokeInput{Instructions: testInstructions(), Pages: pages})
		if !errors.Is(err, ErrStructuralParse) {
			t.Fatalf("error = %v, want ErrStructuralParse", err)
		}
		if oracle.calls("exam_analysis") != 3 {
			t.Errorf("calls = %d, want 3", oracle.calls("exam_analysis"))
		}
		reqs := oracle.requests("exam_analysis")
		if userText(reqs[0]) != userText(reqs[2]) || systemText(reqs[0]) != systemText(reqs[2]) {
			t.Error("retries should reuse identical instructions")
		}
	})

	t.Run("empty item list is a parse failure", func(t *testing.T) {
		mock, oracle := newScriptedOracle()
		oracle.on("exam_analysis", analysisReply(), analysisReply(without(2)...))
		draft, err := testInvoker(mock).Invoke(t.Context(), InvokeInput{Instructions: testInstructions(), Pages: pages})
		if err != nil {
			t.Fatalf("Invoke() error = %v", err)
		}
		if draft.Attempts != 2 || len(draft.Questions) != 2 {
			t.Errorf("attempts=%d items=%v", draft.Attempts, draftItems(draft))
		}
	})

	t.Run("timeouts retry then suggest fewer pages", func(t *testing.T) {
		mock := providers.NewMockClient()
		mock.Latency = 200 * time.Millisecond
		inv := testInvoker(mock)
		inv.caller.timeout = 20 * time.Millisecond

		_, err := inv.Invoke(t.Context(), InvokeInput{Instructions: testInstructions(), Pages: pages})
		if !errors.Is(err, ErrTimeout) {
			t.Fatalf("error = %v, want ErrTimeout", err)
		}
		if !strings.Contains(err.Error(), "fewer") {
			t.Errorf("error should suggest fewer pages: %v", err)
		}
		if mock.RequestCount() != 3 {
			t.Errorf("calls = %d, want 3", mock.RequestCount())
		}
	})

	t.Run("item numbers above the cap never open a gap", func(t *testing.T) {
		mock, oracle := newScriptedOracle()
		oracle.on("exam_analysis", analysisReply(question("1", 25), question("2", 25), question("2023", 25)))
		inv := testInvoker(mock)
		inv.maxItems = 100

		draft, err := inv.Invoke(t.Context(), InvokeInput{Instructions: testInstructions(), Pages: pages, ExpectedItems: 2})
		if err != nil {
			t.Fatalf("Invoke() error = %v", err)
		}
		if len(draft.Placeholders) != 0 || draft.Repaired || oracle.calls("exam_analysis") != 1 {
			t.Errorf("placeholders = %v repaired = %v calls = %d", draft.Placeholders, draft.Repaired, oracle.calls("exam_analysis"))
		}
		if len(draft.Questions) != 3 {
			t.Errorf("questions = %d, want 3", len(draft.Questions))
		}
	})

	t.Run("unavailable oracle is not retried", func(t *testing.T) {
		mock, oracle := newScriptedOracle()
		oracle.on("exam_analysis", providers.ErrUnavailable)
		_, err := testInvoker(mock).Invoke(t.Context(), InvokeInput{Instructions: testInstructions(), Pages: pages})
		if !errors.Is(err, ErrServiceUnavailable) {
			t.Fatalf("error = %v, want ErrServiceUnavailable", err)
		}
		if oracle.calls("exam_analysis") != 1 {
			t.Errorf("calls = %d, want 1", oracle.calls("exam_analysis"))
		}
	})

	t.Run("rejected call is an oracle error", func(t *testing.T) {
		mock, oracle := newScriptedOracle()
		oracle.on("exam_analysis", errors.New("upstream 400: bad request"))
		_, err := testInvoker(mock).Invoke(t.Context(), InvokeInput{Instructions: testInstructions(), Pages: pages})
		if !errors.Is(err, ErrOracle) || errors.Is(err, ErrServiceUnavailable) {
			t.Fatalf("error = %v, want ErrOracle only", err)
		}
		if oracle.calls("exam_analysis") != 1 {
			t.Errorf("calls = %d, want 1", oracle.calls("exam_analysis"))
		}
	})
}

func TestAttempt(t *testing.T) {
	first := attempt{number: 1}
	retried := first.retry()
	repaired := retried.withRepair("fix it")

	if first.number != 1 || first.failures != 0 || first.repairing() {
		t.Errorf("first changed: %+v", first)
	}
	if retried.number != 2 || retried.failures != 1 || retried.repairing() {
		t.Errorf("retried = %+v", retried)
	}
	if repaired.number != 3 || repaired.failures != 1 || !repaired.repairing() {
		t.Errorf("repaired = %+v", repaired)
	}
	if got := repaired.userText("base"); got != "base\n\nfix it" {
		t.Errorf("userText = %q", got)
	}
	if got := retried.userText("base"); got != "base" {
		t.Errorf("userText = %q", got)
	}
}
