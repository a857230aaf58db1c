package middleware

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dalemusser/formmail/config"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestSecurityHeaders_Defaults(t *testing.T) {
	handler := SecurityHeaders(DefaultSecurityHeadersOptions())(okHandler)

	req := httptest.NewRequest(http.MethodPost, "/send_mail.php", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	tests := []struct {
		header string
		want   string
	}{
		{"X-Frame-Options", "DENY"},
		{"X-Content-Type-Options", "nosniff"},
		{"Referrer-Policy", "strict-origin-when-cross-origin"},
	}
	for _, tt := range tests {
		if got := rec.Header().Get(tt.header); got != tt.want {
			t.Errorf("%s = %q, want %q", tt.header, got, tt.want)
		}
	}

	// HSTS should NOT be set for non-TLS requests
	if hsts := rec.Header().Get("Strict-Transport-Security"); hsts != "" {
		t.Errorf("HSTS should not be set for HTTP requests, got %q", hsts)
	}
}

func TestSecurityHeaders_HSTS_OnlyForTLS(t *testing.T) {
	handler := SecurityHeaders(DefaultSecurityHeadersOptions())(okHandler)

	req := httptest.NewRequest(http.MethodGet, "https://forms.example.com/", nil)
	req.TLS = &tls.ConnectionState{}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	want := "max-age=31536000; includeSubDomains"
	if hsts := rec.Header().Get("Strict-Transport-Security"); hsts != want {
		t.Errorf("HSTS = %q, want %q", hsts, want)
	}
}

func TestSecurityHeadersFromConfig(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		cfg := &config.CoreConfig{}
		rec := httptest.NewRecorder()
		SecurityHeadersFromConfig(cfg)(okHandler).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		if got := rec.Header().Get("X-Frame-Options"); got != "" {
			t.Errorf("X-Frame-Options = %q, want none", got)
		}
	})

	t.Run("csp from config", func(t *testing.T) {
		cfg := &config.CoreConfig{Security: config.SecurityConfig{
			EnableSecurityHeaders: true,
			ContentSecurityPolicy: "default-src 'none'",
		}}
		rec := httptest.NewRecorder()
		SecurityHeadersFromConfig(cfg)(okHandler).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		if got := rec.Header().Get("Content-Security-Policy"); got != "default-src 'none'" {
			t.Errorf("CSP = %q", got)
		}
	})
}
