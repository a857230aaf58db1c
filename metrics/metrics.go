// metrics/metrics.go
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// reqDuration is a histogram of HTTP request durations in seconds, labeled
// by route pattern, method, and status code.
var reqDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name: "http_request_duration_seconds",
		Help: "Duration of HTTP requests.",
		// SMTP round-trips dominate the slow end.
		Buckets: []float64{0.01, 0.1, 0.3, 1.2, 5, 30},
	},
	[]string{"path", "method", "status"},
)

// RegisterDefault registers the Go runtime and process collectors plus the
// HTTP request histogram on the default registry. Call once at startup.
func RegisterDefault(logger *zap.Logger) {
	mustRegister(logger, prometheus.DefaultRegisterer, "Go collector", collectors.NewGoCollector())
	mustRegister(logger, prometheus.DefaultRegisterer, "process collector", collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	mustRegister(logger, prometheus.DefaultRegisterer, "HTTP request histogram", reqDuration)
}

// mustRegister registers c, tolerating AlreadyRegisteredError (tests, repeated
// startup). Any other failure is fatal.
func mustRegister(logger *zap.Logger, reg prometheus.Registerer, name string, c prometheus.Collector) {
	if err := reg.Register(c); err != nil {
		if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return
		}
		if logger != nil {
			logger.Fatal("failed to register "+name, zap.Error(err))
		}
		panic("metrics: failed to register " + name + ": " + err.Error())
	}
}

// HTTPMetrics records request duration into http_request_duration_seconds.
// It labels by chi route pattern rather than raw path so unknown URLs
// cannot blow up label cardinality.
func HTTPMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		protoMajor := r.ProtoMajor
		if protoMajor < 1 {
			protoMajor = 1
		}
		ww := middleware.NewWrapResponseWriter(w, protoMajor)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		path := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				path = pattern
			}
		}

		reqDuration.WithLabelValues(path, r.Method, strconv.Itoa(status)).
			Observe(time.Since(start).Seconds())
	})
}

// Handler returns an http.Handler that exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Submissions counts relay outcomes per form type. Outcome is "sent",
// "send_failed", "honeypot" or the name of the stage that rejected the
// submission ("method", "time_trap", "token", ...).
type Submissions struct {
	counter *prometheus.CounterVec
}

// NewSubmissions creates the formmail_submissions_total counter and registers
// it on reg (the default registerer when reg is nil).
func NewSubmissions(reg prometheus.Registerer, logger *zap.Logger) *Submissions {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	c := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "formmail_submissions_total",
			Help: "Form submissions by form type and outcome.",
		},
		[]string{"form_type", "outcome"},
	)
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			c = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			mustRegister(logger, reg, "submission counter", c)
		}
	}
	return &Submissions{counter: c}
}

// Observe increments the counter for one finished submission.
func (s *Submissions) Observe(formType, outcome string) {
	if s == nil {
		return
	}
	s.counter.WithLabelValues(formType, outcome).Inc()
}
