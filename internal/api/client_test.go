package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClient(t *testing.T) {
	var seenIDs []string
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ok", func(w http.ResponseWriter, r *http.Request) {
		seenIDs = append(seenIDs, r.Header.Get(RequestIDHeader))
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})
	mux.HandleFunc("PUT /echo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" {
			http.Error(w, "want json", http.StatusUnsupportedMediaType)
			return
		}
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		json.NewEncoder(w).Encode(body)
	})
	mux.HandleFunc("POST /fail", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusGatewayTimeout)
		json.NewEncoder(w).Encode(ErrorResponse{Error: "analysis timed out", Kind: "timeout"})
	})
	mux.HandleFunc("GET /plain", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not json", http.StatusInternalServerError)
	})
	mux.HandleFunc("GET /raw", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("# HELP up\nup 1\n"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	// Trailing slash is tolerated.
	c := NewClient(srv.URL + "/")

	t.Run("get", func(t *testing.T) {
		var resp map[string]string
		if err := c.Get(t.Context(), "/ok", &resp); err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if resp["status"] != "ok" {
			t.Errorf("resp = %v", resp)
		}
		c.Get(t.Context(), "/ok", nil)
		if len(seenIDs) != 2 || seenIDs[0] == "" || seenIDs[0] == seenIDs[1] {
			t.Errorf("request ids = %v, want two distinct ids", seenIDs)
		}
	})

	t.Run("put", func(t *testing.T) {
		var resp map[string]any
		if err := c.Put(t.Context(), "/echo", map[string]any{"text": "hi"}, &resp); err != nil {
			t.Fatalf("Put() error = %v", err)
		}
		if resp["text"] != "hi" {
			t.Errorf("resp = %v", resp)
		}
	})

	t.Run("structured error", func(t *testing.T) {
		err := c.Post(t.Context(), "/fail", map[string]any{}, nil)
		var se *StatusError
		if !errors.As(err, &se) {
			t.Fatalf("error = %v, want *StatusError", err)
		}
		if se.Code != http.StatusGatewayTimeout || se.Kind != "timeout" || se.Message != "analysis timed out" {
			t.Errorf("status error = %+v", se)
		}
	})

	t.Run("plain error body", func(t *testing.T) {
		err := c.Get(t.Context(), "/plain", nil)
		var se *StatusError
		if !errors.As(err, &se) || se.Code != http.StatusInternalServerError || se.Kind != "" {
			t.Errorf("error = %v", err)
		}
	})

	t.Run("raw body", func(t *testing.T) {
		var raw []byte
		if err := c.Get(t.Context(), "/raw", &raw); err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if string(raw) != "# HELP up\nup 1\n" {
			t.Errorf("raw = %q", raw)
		}
	})
}
