package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ion-foundation/capability-container/internal/capability"
	"github.com/ion-foundation/capability-container/internal/config"
	"github.com/ion-foundation/capability-container/internal/container"
	"github.com/ion-foundation/capability-container/internal/logging"
)

type mapConfig map[string]bool

func (m mapConfig) Bool(key string) (bool, bool) {
	v, ok := m[key]
	return v, ok
}

type noopInstance struct{}

func (noopInstance) Start(context.Context) error { return nil }
func (noopInstance) Stop(context.Context) error  { return nil }

func testContainer(t *testing.T) *container.Container {
	t.Helper()
	reg, err := capability.NewRegistry([]capability.Spec{
		{Name: "store", ClassRef: "test.Store", Field: "datastore"},
	})
	if err != nil {
		t.Fatalf("NewRegistry() error: %v", err)
	}

	var settings config.Settings
	settings.Lifecycle.Sequential = true
	c := container.New(settings, reg, mapConfig{}, nil)
	err = c.Factories().Register("test.Store", func(context.Context, *capability.RuntimeContext) (capability.Instance, error) {
		return noopInstance{}, nil
	})
	if err != nil {
		t.Fatalf("Register() error: %v", err)
	}
	return c
}

func get(t *testing.T, handler http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestRouter_HealthzBeforeStart(t *testing.T) {
	c := testContainer(t)
	handler := NewRouter(c, logging.NewDefault("test"), 0)

	rec := get(t, handler, "/healthz")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("GET /healthz = %d, want 503", rec.Code)
	}
}

func TestRouter_HealthzRunning(t *testing.T) {
	c := testContainer(t)
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	defer c.Stop(context.Background())

	handler := NewRouter(c, logging.NewDefault("test"), 0)
	rec := get(t, handler, "/healthz")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /healthz = %d, want 200", rec.Code)
	}

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status = %q, want ok", body["status"])
	}
}

func TestRouter_Status(t *testing.T) {
	c := testContainer(t)
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	defer c.Stop(context.Background())

	handler := NewRouter(c, logging.NewDefault("test"), 0)
	rec := get(t, handler, "/status")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}

	var status container.Status
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if status.State != container.StateRunning {
		t.Errorf("state = %s, want running", status.State)
	}
	if len(status.Capabilities) != 1 || status.Capabilities[0].Name != "store" {
		t.Errorf("capabilities = %+v", status.Capabilities)
	}
}

func TestRouter_Capabilities(t *testing.T) {
	c := testContainer(t)
	handler := NewRouter(c, logging.NewDefault("test"), 0)

	rec := get(t, handler, "/capabilities")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /capabilities = %d, want 200", rec.Code)
	}

	var caps []container.CapabilityStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &caps); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(caps) != 1 || caps[0].State != capability.StatePending {
		t.Errorf("capabilities = %+v", caps)
	}
}

func TestRouter_MethodNotAllowed(t *testing.T) {
	c := testContainer(t)
	handler := NewRouter(c, logging.NewDefault("test"), 0)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/status", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST /status = %d, want 405", rec.Code)
	}
}

func TestRouter_TraceIDPropagation(t *testing.T) {
	c := testContainer(t)
	handler := NewRouter(c, logging.NewDefault("test"), 0)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/capabilities", nil)
	req.Header.Set("X-Trace-ID", "trace-123")
	handler.ServeHTTP(rec, req)
	if got := rec.Header().Get("X-Trace-ID"); got != "trace-123" {
		t.Errorf("X-Trace-ID = %q, want trace-123", got)
	}

	rec = get(t, handler, "/capabilities")
	if rec.Header().Get("X-Trace-ID") == "" {
		t.Error("missing generated X-Trace-ID")
	}
}

func TestRouter_RateLimit(t *testing.T) {
	c := testContainer(t)
	handler := NewRouter(c, logging.NewDefault("test"), 1)

	limited := false
	for i := 0; i < 20; i++ {
		if get(t, handler, "/capabilities").Code == http.StatusTooManyRequests {
			limited = true
			break
		}
	}
	if !limited {
		t.Error("rate limiter never engaged")
	}
}

func TestRouter_Metrics(t *testing.T) {
	c := testContainer(t)
	handler := NewRouter(c, logging.NewDefault("test"), 0)

	rec := get(t, handler, "/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /metrics = %d, want 200", rec.Code)
	}
	if rec.Body.Len() == 0 {
		t.Error("empty metrics body")
	}
}
