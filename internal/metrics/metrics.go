// Package metrics exposes the container's Prometheus collectors.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the container-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	capabilityStarts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "container",
			Subsystem: "capabilities",
			Name:      "starts_total",
			Help:      "Total number of capability start attempts.",
		},
		[]string{"capability", "status"},
	)

	capabilityStartDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "container",
			Subsystem: "capabilities",
			Name:      "start_duration_seconds",
			Help:      "Duration of capability starts.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"capability"},
	)

	capabilityStops = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "container",
			Subsystem: "capabilities",
			Name:      "stops_total",
			Help:      "Total number of capability stop attempts.",
		},
		[]string{"capability", "status"},
	)

	runningCapabilities = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "container",
			Subsystem: "capabilities",
			Name:      "running",
			Help:      "Number of capabilities currently started.",
		},
	)

	rollbacks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "container",
			Subsystem: "lifecycle",
			Name:      "rollbacks_total",
			Help:      "Total number of startup rollbacks.",
		},
	)

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "container",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "container",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "container",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)
)

func init() {
	Registry.MustRegister(
		capabilityStarts,
		capabilityStartDuration,
		capabilityStops,
		runningCapabilities,
		rollbacks,
		httpInFlight,
		httpRequests,
		httpDuration,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// RecordCapabilityStart records one start attempt.
func RecordCapabilityStart(capability string, elapsed time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	} else {
		runningCapabilities.Inc()
	}
	capabilityStarts.WithLabelValues(capability, status).Inc()
	capabilityStartDuration.WithLabelValues(capability).Observe(elapsed.Seconds())
}

// RecordCapabilityStop records one stop attempt.
func RecordCapabilityStop(capability string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	capabilityStops.WithLabelValues(capability, status).Inc()
	runningCapabilities.Dec()
}

// RecordRollback records a startup rollback.
func RecordRollback() {
	rollbacks.Inc()
}

// Handler returns an HTTP handler exposing the registered collectors.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps the provided handler with HTTP metrics collection.
func InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		httpInFlight.Inc()
		next.ServeHTTP(rec, r)
		httpInFlight.Dec()

		elapsed := time.Since(start)
		httpRequests.WithLabelValues(r.Method, r.URL.Path, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(r.Method, r.URL.Path).Observe(elapsed.Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
