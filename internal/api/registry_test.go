package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/cobra"
)

type fakeEndpoint struct {
	method, path string
	init         bool
}

func (f fakeEndpoint) Route() (string, string, http.HandlerFunc) {
	return f.method, f.path, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}
}

func (f fakeEndpoint) RequiresInit() bool { return f.init }

func (f fakeEndpoint) Command(func() string) *cobra.Command { return &cobra.Command{Use: f.path} }

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	for _, ep := range []fakeEndpoint{
		{"POST", "/v1/analyze", true},
		{"GET", "/health", false},
		{"GET", "/v1/analyze", true},
	} {
		if err := r.Register(ep); err != nil {
			t.Fatalf("Register(%s %s) error = %v", ep.method, ep.path, err)
		}
	}

	t.Run("duplicate route is rejected", func(t *testing.T) {
		if err := r.Register(fakeEndpoint{"GET", "/health", false}); err == nil {
			t.Error("expected duplicate error")
		}
		if len(r.Endpoints()) != 3 {
			t.Errorf("endpoints = %d, want 3", len(r.Endpoints()))
		}
	})

	t.Run("routes are sorted", func(t *testing.T) {
		want := []Route{
			{Method: "GET", Path: "/health"},
			{Method: "GET", Path: "/v1/analyze", RequiresInit: true},
			{Method: "POST", Path: "/v1/analyze", RequiresInit: true},
		}
		if diff := cmp.Diff(want, r.Routes()); diff != "" {
			t.Errorf("Routes() mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("init middleware wraps only gated routes", func(t *testing.T) {
		mux := http.NewServeMux()
		r.RegisterRoutes(mux, func(http.HandlerFunc) http.HandlerFunc {
			return func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusServiceUnavailable)
			}
		})

		for path, want := range map[string]int{"/health": http.StatusNoContent, "/v1/analyze": http.StatusServiceUnavailable} {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest("GET", path, nil))
			if rec.Code != want {
				t.Errorf("GET %s = %d, want %d", path, rec.Code, want)
			}
		}
	})
}
