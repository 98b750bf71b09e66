package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jackzampolin/papercheck/internal/api"
	"github.com/jackzampolin/papercheck/internal/config"
	"github.com/jackzampolin/papercheck/internal/server/endpoints"
)

const testConfig = `
providers:
  openrouter:
    enabled: false
  mock:
    type: mock
    enabled: true
analysis:
  oracle_provider: mock
  max_parse_attempts: 2
cache:
  backend: memory
`

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T, yaml string) (*Server, *config.Manager, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}
	cm, err := config.NewManager(path, discardLogger())
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	srv, err := New(Config{Host: "127.0.0.1", Port: "0", ConfigManager: cm, Logger: discardLogger()})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return srv, cm, path
}

// startServer runs srv until the test ends and returns its base URL.
func startServer(t *testing.T, srv *Server) string {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Start(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("Start() returned %v", err)
			}
		case <-time.After(10 * time.Second):
			t.Error("server did not stop")
		}
	})

	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		if srv.Pipeline() != nil {
			baseURL := "http://" + srv.Addr()
			if err := waitForServer(ctx, baseURL, 5*time.Second); err != nil {
				t.Fatal(err)
			}
			return baseURL
		}
		select {
		case err := <-done:
			t.Fatalf("server exited early: %v", err)
		case <-time.After(10 * time.Millisecond):
		}
	}
	t.Fatal("server did not initialize")
	return ""
}

func TestServer_Lifecycle(t *testing.T) {
	srv, _, _ := newTestServer(t, testConfig)
	baseURL := startServer(t, srv)

	if !srv.IsRunning() {
		t.Error("IsRunning() = false while serving")
	}
	if strings.HasSuffix(srv.Addr(), ":0") {
		t.Errorf("Addr() = %s, want the bound port", srv.Addr())
	}

	t.Run("health_endpoint", func(t *testing.T) {
		var health endpoints.HealthResponse
		getJSON(t, baseURL+"/health", http.StatusOK, &health)
		if health.Status != "ok" {
			t.Errorf("health.Status = %q, want ok", health.Status)
		}
	})

	t.Run("ready_endpoint", func(t *testing.T) {
		var ready endpoints.HealthResponse
		getJSON(t, baseURL+"/ready", http.StatusOK, &ready)
		if ready.Oracle != "ok" {
			t.Errorf("ready = %+v", ready)
		}
	})

	t.Run("status_endpoint", func(t *testing.T) {
		var status endpoints.StatusResponse
		getJSON(t, baseURL+"/status", http.StatusOK, &status)
		if status.Providers.Oracle != "mock" || status.Cache == nil || status.Cache.Backend != "memory" {
			t.Errorf("status = %+v", status)
		}
		if len(status.Providers.Registered) != 1 || status.Providers.Registered[0] != "mock" {
			t.Errorf("registered = %v, want [mock]", status.Providers.Registered)
		}
	})

	t.Run("request id is echoed", func(t *testing.T) {
		req, _ := http.NewRequest("GET", baseURL+"/health", nil)
		req.Header.Set(api.RequestIDHeader, "abc-123")
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if got := resp.Header.Get(api.RequestIDHeader); got != "abc-123" {
			t.Errorf("request id = %q", got)
		}

		resp, err = http.Get(baseURL + "/health")
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.Header.Get(api.RequestIDHeader) == "" {
			t.Error("no request id assigned")
		}
	})

	t.Run("analysis errors map to status codes", func(t *testing.T) {
		// The stock mock provider answers in prose, which never parses.
		body := `{"pages":[{"data":"aGVsbG8=","mediaType":"image/png"}],"analysisMode":"questionsOnly"}`
		resp, err := http.Post(baseURL+"/v1/analyze", "application/json", strings.NewReader(body))
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()
		var errResp endpoints.ErrorResponse
		json.NewDecoder(resp.Body).Decode(&errResp)
		if resp.StatusCode != http.StatusBadGateway || errResp.Kind != "parse_error" {
			t.Errorf("status = %d %+v", resp.StatusCode, errResp)
		}
	})

	t.Run("metrics use route patterns", func(t *testing.T) {
		resp, err := http.Get(baseURL + "/metrics")
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()
		raw, _ := io.ReadAll(resp.Body)
		if !strings.Contains(string(raw), `/health"`) {
			t.Errorf("request metrics missing:\n%s", raw)
		}
	})
}

func TestServer_ConfigReload(t *testing.T) {
	srv, cm, path := newTestServer(t, testConfig)
	startServer(t, srv)

	updated := strings.Replace(testConfig, "max_parse_attempts: 2", "max_parse_attempts: 5", 1)
	if err := os.WriteFile(path, []byte(updated), 0o644); err != nil {
		t.Fatal(err)
	}
	cm.Reload(path)

	if got := srv.Pipeline().Settings().MaxParseAttempts; got != 5 {
		t.Errorf("MaxParseAttempts after reload = %d, want 5", got)
	}
}

func TestServer_RequireInit(t *testing.T) {
	srv, _, _ := newTestServer(t, testConfig)
	h := srv.httpServer.Handler

	for _, tt := range []struct {
		method, path string
		want         int
	}{
		{"GET", "/health", http.StatusOK},
		{"GET", "/ready", http.StatusServiceUnavailable},
		{"POST", "/v1/analyze", http.StatusServiceUnavailable},
		{"GET", "/v1/calls", http.StatusServiceUnavailable},
	} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, strings.NewReader("{}")))
		if rec.Code != tt.want {
			t.Errorf("%s %s = %d, want %d", tt.method, tt.path, rec.Code, tt.want)
		}
	}
}

func TestServer_DoubleStart(t *testing.T) {
	srv, _, _ := newTestServer(t, testConfig)
	startServer(t, srv)

	if err := srv.Start(context.Background()); err == nil || !strings.Contains(err.Error(), "already running") {
		t.Errorf("second Start() error = %v, want already running", err)
	}
}

func TestServer_StartFailures(t *testing.T) {
	t.Run("missing catalog", func(t *testing.T) {
		srv, _, _ := newTestServer(t, testConfig+"knowledge:\n  catalog_file: /does/not/exist.yaml\n")
		if err := srv.Start(context.Background()); err == nil {
			t.Fatal("Start() succeeded with a missing catalog")
		}
		if srv.IsRunning() {
			t.Error("server still marked running after failed start")
		}
	})

	t.Run("unreachable postgres", func(t *testing.T) {
		srv, _, _ := newTestServer(t, testConfig+"knowledge:\n  postgres_dsn: postgres://nobody@127.0.0.1:1/none?connect_timeout=1\n")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Start(ctx); err == nil || !strings.Contains(err.Error(), "knowledge store") {
			t.Errorf("Start() error = %v, want knowledge store failure", err)
		}
	})

	t.Run("no config manager", func(t *testing.T) {
		if _, err := New(Config{}); err == nil {
			t.Error("New() without config manager should fail")
		}
	})
}

func getJSON(t *testing.T, url string, wantStatus int, v any) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != wantStatus {
		t.Fatalf("GET %s status = %d, want %d", url, resp.StatusCode, wantStatus)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode %s: %v", url, err)
	}
}

// waitForServer polls the health endpoint until the server responds.
func waitForServer(ctx context.Context, baseURL string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	client := &http.Client{Timeout: time.Second}

	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		resp, err := client.Get(baseURL + "/health")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		time.Sleep(50 * time.Millisecond)
	}
	return fmt.Errorf("server not ready after %v", timeout)
}
