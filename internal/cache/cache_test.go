package cache

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/jackzampolin/papercheck/internal/exam"
)

func sampleResult() *exam.AnalysisResult {
	earned := 5.0
	return &exam.AnalysisResult{
		Questions: []exam.QuestionRecord{
			{ItemNumber: "1", DifficultyTier: exam.TierConcept, Points: 5, EarnedPoints: &earned, Confidence: 0.9},
		},
		ByDifficulty: exam.Distribution{"concept": 1},
		Confidence:   0.9,
	}
}

func TestKey(t *testing.T) {
	pages := []exam.Page{{Data: []byte("page-1")}, {Data: []byte("page-2")}}

	a := Key(pages, "middle-1", "expressions")
	if a != Key(pages, "middle-1", "expressions") {
		t.Error("key is not deterministic")
	}
	if len(a) != 64 {
		t.Errorf("key length = %d, want 64 hex chars", len(a))
	}

	tests := []struct {
		name  string
		pages []exam.Page
		grade string
		unit  string
	}{
		{"different grade", pages, "middle-2", "expressions"},
		{"different unit", pages, "middle-1", "equations"},
		{"different bytes", []exam.Page{{Data: []byte("page-1")}}, "middle-1", "expressions"},
		{"grade and unit swapped boundary", pages, "middle-1expressions", ""},
		{"page boundary moved", []exam.Page{{Data: []byte("page-1p")}, {Data: []byte("age-2")}}, "middle-1", "expressions"},
		{"pages merged", []exam.Page{{Data: []byte("page-1page-2")}}, "middle-1", "expressions"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if Key(tt.pages, tt.grade, tt.unit) == a {
				t.Error("expected a different key")
			}
		})
	}

	t.Run("split pages never collide", func(t *testing.T) {
		ab := Key([]exam.Page{{Data: []byte("ab")}, {Data: []byte("c")}}, "", "")
		bc := Key([]exam.Page{{Data: []byte("a")}, {Data: []byte("bc")}}, "", "")
		if ab == bc {
			t.Error("[ab c] and [a bc] share a key")
		}
	})
}

func TestMemory(t *testing.T) {
	ctx := context.Background()

	t.Run("miss then hit", func(t *testing.T) {
		m := NewMemory(0, 0)
		if _, ok := m.Get(ctx, "k"); ok {
			t.Fatal("expected miss")
		}
		m.Put(ctx, "k", sampleResult())
		got, ok := m.Get(ctx, "k")
		if !ok {
			t.Fatal("expected hit")
		}
		if diff := cmp.Diff(sampleResult(), got); diff != "" {
			t.Errorf("Get() mismatch (-want +got):\n%s", diff)
		}
		s := m.Stats()
		if s.Hits != 1 || s.Misses != 1 || s.Writes != 1 || s.Entries != 1 {
			t.Errorf("Stats() = %+v", s)
		}
	})

	t.Run("values are isolated from callers", func(t *testing.T) {
		m := NewMemory(0, 0)
		in := sampleResult()
		m.Put(ctx, "k", in)
		in.Questions[0].ItemNumber = "mutated"

		got, _ := m.Get(ctx, "k")
		*got.Questions[0].EarnedPoints = 0
		got.ByDifficulty["concept"] = 99

		again, _ := m.Get(ctx, "k")
		if again.Questions[0].ItemNumber != "1" || *again.Questions[0].EarnedPoints != 5 || again.ByDifficulty["concept"] != 1 {
			t.Errorf("cached value was mutated: %+v", again)
		}
	})

	t.Run("ttl expiry", func(t *testing.T) {
		m := NewMemory(time.Minute, 0)
		now := time.Now()
		m.now = func() time.Time { return now }
		m.Put(ctx, "k", sampleResult())

		m.now = func() time.Time { return now.Add(30 * time.Second) }
		if _, ok := m.Get(ctx, "k"); !ok {
			t.Error("expected hit before ttl")
		}
		m.now = func() time.Time { return now.Add(2 * time.Minute) }
		if _, ok := m.Get(ctx, "k"); ok {
			t.Error("expected miss after ttl")
		}
		if m.Len() != 0 {
			t.Errorf("expired entry not removed, Len() = %d", m.Len())
		}
	})

	t.Run("bounded entries evict oldest", func(t *testing.T) {
		m := NewMemory(0, 2)
		now := time.Now()
		for i, k := range []string{"a", "b", "c"} {
			at := now.Add(time.Duration(i) * time.Second)
			m.now = func() time.Time { return at }
			m.Put(ctx, k, sampleResult())
		}
		if m.Len() != 2 {
			t.Fatalf("Len() = %d, want 2", m.Len())
		}
		if _, ok := m.Get(ctx, "a"); ok {
			t.Error("oldest entry should be evicted")
		}
		if _, ok := m.Get(ctx, "c"); !ok {
			t.Error("newest entry should remain")
		}
	})

	t.Run("concurrent access", func(t *testing.T) {
		m := NewMemory(0, 0)
		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				m.Put(ctx, "k", sampleResult())
				m.Get(ctx, "k")
			}()
		}
		wg.Wait()
		if m.Len() != 1 {
			t.Errorf("Len() = %d", m.Len())
		}
	})
}

func TestLayered(t *testing.T) {
	ctx := context.Background()
	front := NewMemory(0, 0)
	back := NewMemory(0, 0)
	l := NewLayered(front, back)

	back.Put(ctx, "k", sampleResult())
	if _, ok := l.Get(ctx, "k"); !ok {
		t.Fatal("expected hit from back layer")
	}
	if front.Len() != 1 {
		t.Error("back hit was not promoted to front")
	}

	l.Put(ctx, "k2", sampleResult())
	if front.Len() != 2 || back.Len() != 2 {
		t.Errorf("Put did not write both layers: front=%d back=%d", front.Len(), back.Len())
	}
	if _, ok := l.Get(ctx, "missing"); ok {
		t.Error("expected miss")
	}
	if s := l.Stats(); s.Hits != 1 || s.Misses != 1 {
		t.Errorf("Stats() = %+v", s)
	}
}

func TestNew(t *testing.T) {
	if _, err := New(Config{Backend: "memory"}); err != nil {
		t.Errorf("memory: %v", err)
	}
	if _, err := New(Config{Backend: "redis"}); err == nil {
		t.Error("redis without address should fail")
	}
	if _, err := New(Config{Backend: "bogus"}); err == nil {
		t.Error("unknown backend should fail")
	}
	c, _ := New(Config{Backend: "none"})
	c.Put(context.Background(), "k", sampleResult())
	if _, ok := c.Get(context.Background(), "k"); ok {
		t.Error("noop cache returned a value")
	}
}

func TestRedis_UnreachableIsMiss(t *testing.T) {
	r, err := NewRedis(RedisConfig{Addr: "127.0.0.1:1"})
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	r.Put(ctx, "k", sampleResult())
	if _, ok := r.Get(ctx, "k"); ok {
		t.Error("expected miss from unreachable redis")
	}
	if s := r.Stats(); s.Errors < 2 {
		t.Errorf("Stats().Errors = %d, want >= 2", s.Errors)
	}
}

func TestRedis_RoundTrip(t *testing.T) {
	addr := os.Getenv("PAPERCHECK_TEST_REDIS")
	if addr == "" {
		t.Skip("PAPERCHECK_TEST_REDIS not set")
	}
	ctx := context.Background()
	r, err := NewRedis(RedisConfig{Addr: addr, TTL: time.Minute, Prefix: "papercheck:test:"})
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	if err := r.Ping(ctx); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}

	key := Key([]exam.Page{{Data: []byte(time.Now().String())}}, "g", "u")
	r.Put(ctx, key, sampleResult())
	got, ok := r.Get(ctx, key)
	if !ok {
		t.Fatal("expected hit")
	}
	if diff := cmp.Diff(sampleResult(), got); diff != "" {
		t.Errorf("Get() mismatch (-want +got):\n%s", diff)
	}
}
