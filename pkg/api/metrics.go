package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	statusSuccess = "success"
	statusError   = "error"
)

// Metrics holds all Prometheus metrics for the API
type Metrics struct {
	gatherer prometheus.Gatherer

	// HTTP request metrics
	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsInFlight *prometheus.GaugeVec

	// Trailer codec metrics
	codecOperationsTotal *prometheus.CounterVec

	// Journal metrics
	journalOperationsTotal   *prometheus.CounterVec
	journalOperationDuration *prometheus.HistogramVec

	// API key authentication metrics
	authRequestsTotal *prometheus.CounterVec

	// Health check metrics
	healthChecksTotal *prometheus.CounterVec
}

// NewMetrics creates the API metrics on reg. A nil reg uses the default
// Prometheus registry, which only tolerates one Metrics per process.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	var registerer prometheus.Registerer = prometheus.DefaultRegisterer
	var gatherer prometheus.Gatherer = prometheus.DefaultGatherer
	if reg != nil {
		registerer, gatherer = reg, reg
	}
	factory := promauto.With(registerer)

	m := &Metrics{
		gatherer: gatherer,

		// HTTP request metrics
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "primefusion_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),

		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "primefusion_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		httpRequestsInFlight: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "primefusion_http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed",
			},
			[]string{"method", "endpoint"},
		),

		codecOperationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "primefusion_codec_operations_total",
				Help: "Total number of trailer encode/decode operations by result",
			},
			[]string{"operation", "result"},
		),

		journalOperationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "primefusion_journal_operations_total",
				Help: "Total number of beacon journal operations",
			},
			[]string{"operation", "status"},
		),

		journalOperationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "primefusion_journal_operation_duration_seconds",
				Help:    "Beacon journal operation duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),

		// Authentication metrics
		authRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "primefusion_auth_requests_total",
				Help: "Total number of authentication requests",
			},
			[]string{"status"},
		),

		// Health check metrics
		healthChecksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "primefusion_health_checks_total",
				Help: "Total number of health checks",
			},
			[]string{"status"},
		),
	}

	return m
}

// Handler serves the registry the metrics were created on.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration) {
	m.httpRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	m.httpRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordCodecOperation records a trailer encode, decode or inspect outcome
func (m *Metrics) RecordCodecOperation(operation string, err error) {
	m.codecOperationsTotal.WithLabelValues(operation, codecResult(err)).Inc()
}

// RecordJournalOperation records a journal put, get or list
func (m *Metrics) RecordJournalOperation(operation string, success bool, duration time.Duration) {
	m.journalOperationsTotal.WithLabelValues(operation, outcome(success)).Inc()
	m.journalOperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

func (m *Metrics) RecordAuthRequest(success bool) {
	m.authRequestsTotal.WithLabelValues(outcome(success)).Inc()
}

func (m *Metrics) RecordHealthCheck(success bool) {
	m.healthChecksTotal.WithLabelValues(outcome(success)).Inc()
}

func outcome(success bool) string {
	if success {
		return statusSuccess
	}
	return statusError
}

// InstrumentHandler counts, times and tracks in-flight requests for one route.
func (m *Metrics) InstrumentHandler(method, endpoint string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		gauge := m.httpRequestsInFlight.WithLabelValues(method, endpoint)
		gauge.Inc()
		defer gauge.Dec()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		handler(ww, r)

		m.RecordHTTPRequest(method, endpoint, statusOf(ww), time.Since(start))
	}
}

// InstrumentAuthMiddleware records the outcome of requests that presented
// an API key.
func (m *Metrics) InstrumentAuthMiddleware(next func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	return func(h http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			presented := r.Header.Get("X-API-Key") != ""

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next(h).ServeHTTP(ww, r)

			if presented {
				m.RecordAuthRequest(statusOf(ww) != http.StatusUnauthorized)
			}
		})
	}
}

// statusOf is the written status; handlers that never call WriteHeader sent 200.
func statusOf(ww middleware.WrapResponseWriter) int {
	if ww.Status() == 0 {
		return http.StatusOK
	}
	return ww.Status()
}
