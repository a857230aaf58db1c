package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func get(t *testing.T, h http.Handler, path string) (int, Response) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	var resp Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return rec.Code, resp
}

func TestHandler_NoChecks(t *testing.T) {
	code, resp := get(t, Handler(nil, 0, nil), "/health")
	if code != http.StatusOK || resp.Status != "ok" || resp.Checks != nil {
		t.Errorf("got %d %+v", code, resp)
	}
}

func TestHandler_Checks(t *testing.T) {
	checks := map[string]Check{
		"mail":  func(context.Context) error { return errors.New("dial tcp: refused") },
		"other": func(context.Context) error { return nil },
		"nil":   nil,
	}
	code, resp := get(t, Handler(checks, 0, zap.NewNop()), "/ready")
	if code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", code)
	}
	if resp.Status != "error" {
		t.Errorf("Status = %q", resp.Status)
	}
	if resp.Checks["mail"] != "error" || resp.Checks["other"] != "ok" || resp.Checks["nil"] != "ok" {
		t.Errorf("Checks = %v", resp.Checks)
	}
}

func TestHandler_ErrorDetailOnlyLogged(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	checks := map[string]Check{
		"mail": func(context.Context) error { return errors.New("535 auth failed for relay@smtp.internal") },
	}
	rec := httptest.NewRecorder()
	Handler(checks, 0, zap.New(core)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

	if strings.Contains(rec.Body.String(), "smtp.internal") {
		t.Errorf("body leaks check error: %s", rec.Body.String())
	}
	entries := logs.FilterMessage("health check failed").All()
	if len(entries) != 1 {
		t.Fatalf("log entries = %d, want 1", len(entries))
	}
	if got, _ := entries[0].ContextMap()["error"].(string); !strings.Contains(got, "smtp.internal") {
		t.Errorf("logged error = %q", got)
	}
}

func TestHandler_CheckTimeout(t *testing.T) {
	slow := map[string]Check{"mail": func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}}
	code, _ := get(t, Handler(slow, 10*time.Millisecond, nil), "/ready")
	if code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", code)
	}
}

func TestMount(t *testing.T) {
	r := chi.NewRouter()
	Mount(r, map[string]Check{"mail": func(context.Context) error { return errors.New("down") }}, nil)

	if code, _ := get(t, r, "/health"); code != http.StatusOK {
		t.Errorf("/health = %d, want 200 regardless of checks", code)
	}
	if code, _ := get(t, r, "/ready"); code != http.StatusServiceUnavailable {
		t.Errorf("/ready = %d, want 503", code)
	}
}
