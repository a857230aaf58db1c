package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dalemusser/formmail/config"
)

func TestLimitBodySize(t *testing.T) {
	var readErr error
	h := LimitBodySize(8)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, readErr = io.ReadAll(r.Body)
	}))

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("this body is longer than eight bytes"))
	h.ServeHTTP(httptest.NewRecorder(), req)

	if readErr == nil {
		t.Fatal("expected an error reading an oversized body")
	}
}

func TestCORSFromConfig_Preflight(t *testing.T) {
	cfg := &config.CoreConfig{CORS: config.CORSConfig{
		EnableCORS:         true,
		CORSAllowedOrigins: []string{"https://ksefinvoice.pl"},
		CORSAllowedMethods: []string{http.MethodPost},
	}}
	reached := false
	h := CORSFromConfig(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
	}))

	req := httptest.NewRequest(http.MethodOptions, "/send_mail.php", nil)
	req.Header.Set("Origin", "https://ksefinvoice.pl")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if reached {
		t.Error("preflight should not reach the handler")
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://ksefinvoice.pl" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}
}

func TestCORSFromConfig_DisabledIsIdentity(t *testing.T) {
	reached := false
	h := CORSFromConfig(&config.CoreConfig{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodOptions, "/", nil))
	if !reached {
		t.Error("disabled CORS should pass requests through")
	}
}
