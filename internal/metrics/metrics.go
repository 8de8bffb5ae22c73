package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "gridcast"

// Collector exposes Prometheus metrics for inbound HTTP requests, upstream
// completion calls and forecast pipeline outcomes.
type Collector struct {
	registry           *prometheus.Registry
	requestDuration    *prometheus.HistogramVec
	requestTotal       *prometheus.CounterVec
	completionAttempts *prometheus.CounterVec
	completionDuration *prometheus.HistogramVec
	forecastOutcomes   *prometheus.CounterVec
}

// NewCollector constructs a collector with its own registry.
func NewCollector() (*Collector, error) {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Latency distribution for inbound HTTP requests.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of inbound HTTP requests.",
		}, []string{"method", "route", "status"}),
		completionAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "completion",
			Name:      "attempts_total",
			Help:      "Upstream completion attempts by provider and outcome.",
		}, []string{"provider", "outcome"}),
		completionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "completion",
			Name:      "duration_seconds",
			Help:      "Latency distribution of upstream completion attempts.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 45, 60, 90},
		}, []string{"provider"}),
		forecastOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "forecast",
			Name:      "outcomes_total",
			Help:      "Forecast pipeline outcomes by kind.",
		}, []string{"kind", "outcome"}),
	}

	for _, col := range []prometheus.Collector{
		c.requestDuration,
		c.requestTotal,
		c.completionAttempts,
		c.completionDuration,
		c.forecastOutcomes,
	} {
		if err := registry.Register(col); err != nil {
			return nil, err
		}
	}

	return c, nil
}

// Handler returns an HTTP handler for exposing Prometheus metrics.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps the provided handler to record HTTP metrics. Requests
// are labelled by the matched ServeMux pattern so raw paths cannot blow up
// label cardinality.
func (c *Collector) InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(rw.status)
		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}

		c.requestTotal.WithLabelValues(r.Method, route, status).Inc()
		c.requestDuration.WithLabelValues(r.Method, route, status).Observe(duration)
	})
}

// ObserveCompletion records one upstream completion attempt.
func (c *Collector) ObserveCompletion(provider, outcome string, latency time.Duration) {
	c.completionAttempts.WithLabelValues(provider, outcome).Inc()
	c.completionDuration.WithLabelValues(provider).Observe(latency.Seconds())
}

// ObserveForecast records the terminal outcome of one pipeline traversal.
func (c *Collector) ObserveForecast(kind, outcome string) {
	c.forecastOutcomes.WithLabelValues(kind, outcome).Inc()
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (w *responseWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
