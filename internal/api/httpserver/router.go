package httpserver

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/ion-foundation/capability-container/internal/container"
	"github.com/ion-foundation/capability-container/internal/logging"
	"github.com/ion-foundation/capability-container/internal/metrics"
)

// NewRouter builds the admin routes for a container.
func NewRouter(c *container.Container, log *logging.Logger, rateLimit float64) http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if c.State() != container.StateRunning {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "unavailable",
				"state":  string(c.State()),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)

	r.HandleFunc("/status", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, c.Status())
	}).Methods(http.MethodGet)

	r.HandleFunc("/capabilities", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, c.Status().Capabilities)
	}).Methods(http.MethodGet)

	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	var handler http.Handler = r
	handler = metrics.InstrumentHandler(handler)
	if rateLimit > 0 {
		handler = rateLimitMiddleware(rateLimit)(handler)
	}
	handler = loggingMiddleware(log)(handler)
	return handler
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
