// middleware/security.go
package middleware

import (
	"net/http"
	"strconv"

	"github.com/dalemusser/formmail/config"
)

// SecurityHeadersOptions configures the security headers middleware.
// An empty string (or zero HSTSMaxAge) disables the corresponding header.
type SecurityHeadersOptions struct {
	XFrameOptions         string
	XContentTypeOptions   string
	ReferrerPolicy        string
	HSTSMaxAge            int // seconds; only sent over TLS
	HSTSIncludeSubDomains bool
	ContentSecurityPolicy string
}

// DefaultSecurityHeadersOptions returns options suitable for a JSON endpoint
// that is never framed.
func DefaultSecurityHeadersOptions() SecurityHeadersOptions {
	return SecurityHeadersOptions{
		XFrameOptions:         "DENY",
		XContentTypeOptions:   "nosniff",
		ReferrerPolicy:        "strict-origin-when-cross-origin",
		HSTSMaxAge:            31536000, // 1 year
		HSTSIncludeSubDomains: true,
	}
}

// SecurityHeaders returns middleware that sets the configured headers.
func SecurityHeaders(opts SecurityHeadersOptions) func(next http.Handler) http.Handler {
	var hsts string
	if opts.HSTSMaxAge > 0 {
		hsts = "max-age=" + strconv.Itoa(opts.HSTSMaxAge)
		if opts.HSTSIncludeSubDomains {
			hsts += "; includeSubDomains"
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			if opts.XFrameOptions != "" {
				h.Set("X-Frame-Options", opts.XFrameOptions)
			}
			if opts.XContentTypeOptions != "" {
				h.Set("X-Content-Type-Options", opts.XContentTypeOptions)
			}
			if opts.ReferrerPolicy != "" {
				h.Set("Referrer-Policy", opts.ReferrerPolicy)
			}
			// HSTS only over HTTPS so plain-HTTP development keeps working.
			if hsts != "" && r.TLS != nil {
				h.Set("Strict-Transport-Security", hsts)
			}
			if opts.ContentSecurityPolicy != "" {
				h.Set("Content-Security-Policy", opts.ContentSecurityPolicy)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// SecurityHeadersFromConfig builds the middleware from CoreConfig. When
// enable_security_headers is false it returns an identity middleware.
func SecurityHeadersFromConfig(coreCfg *config.CoreConfig) func(next http.Handler) http.Handler {
	if coreCfg == nil || !coreCfg.Security.EnableSecurityHeaders {
		return identity
	}
	opts := DefaultSecurityHeadersOptions()
	opts.HSTSMaxAge = coreCfg.Security.HSTSMaxAge
	opts.ContentSecurityPolicy = coreCfg.Security.ContentSecurityPolicy
	return SecurityHeaders(opts)
}
