package httpserver

import (
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/ion-foundation/capability-container/internal/logging"
)

// loggingMiddleware logs each request with a trace ID.
func loggingMiddleware(log *logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			traceID := r.Header.Get("X-Trace-ID")
			if traceID == "" {
				traceID = logging.NewTraceID()
			}
			ctx := logging.WithTraceID(r.Context(), traceID)
			w.Header().Set("X-Trace-ID", traceID)

			next.ServeHTTP(w, r.WithContext(ctx))

			log.WithField("trace_id", traceID).
				Debugf("%s %s completed in %s", r.Method, r.URL.Path, time.Since(start).Round(time.Microsecond))
		})
	}
}

// rateLimitMiddleware applies a global request-per-second limit with a small
// burst allowance.
func rateLimitMiddleware(rps float64) func(http.Handler) http.Handler {
	limiter := rate.NewLimiter(rate.Limit(rps), int(rps)+1)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
