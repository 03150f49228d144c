// Package metrics exposes gateway Prometheus collectors.
package metrics

import (
	"bufio"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles the gateway collectors against one registry so tests get
// isolated instances.
type Metrics struct {
	registry *prometheus.Registry

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	turnsTotal      *prometheus.CounterVec
	turnFailures    *prometheus.CounterVec
	synthesisTotal  *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lingua",
			Name:      "http_requests_total",
			Help:      "HTTP requests by path and status.",
		}, []string{"path", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "lingua",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"path"}),
		turnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lingua",
			Name:      "turns_total",
			Help:      "Completed chat exchanges by language and scenario.",
		}, []string{"language", "scenario"}),
		turnFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lingua",
			Name:      "turn_failures_total",
			Help:      "Failed chat exchanges by error type.",
		}, []string{"error_type"}),
		synthesisTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lingua",
			Name:      "synthesis_total",
			Help:      "Speech synthesis calls by provider and outcome.",
		}, []string{"provider", "outcome"}),
	}

	m.registry.MustRegister(
		m.requestsTotal,
		m.requestDuration,
		m.turnsTotal,
		m.turnFailures,
		m.synthesisTotal,
	)
	return m
}

// Handler serves the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveRequest(path string, status int, d time.Duration) {
	m.requestsTotal.WithLabelValues(path, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(path).Observe(d.Seconds())
}

func (m *Metrics) ObserveTurn(language, scenario string) {
	if scenario == "" {
		scenario = "none"
	}
	m.turnsTotal.WithLabelValues(language, scenario).Inc()
}

func (m *Metrics) ObserveTurnFailure(errorType string) {
	m.turnFailures.WithLabelValues(errorType).Inc()
}

func (m *Metrics) ObserveSynthesis(provider string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.synthesisTotal.WithLabelValues(provider, outcome).Inc()
}

// Middleware records request counts and latency per path.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(sw, r)
		m.ObserveRequest(r.URL.Path, sw.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Hijack keeps websocket upgrades working through the metrics wrapper.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, http.ErrNotSupported
	}
	return hj.Hijack()
}

func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
