// Package metrics exposes the service's Prometheus collectors. All methods are
// safe on a nil *Metrics so callers that do not care can pass nil.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "pb_assistant"

// Plan generation outcomes.
const (
	OutcomeCompleted = "completed"
	OutcomeFailed    = "failed"
	OutcomeMalformed = "malformed"
)

// Generation modes.
const (
	ModeMock = "mock"
	ModeLive = "live"
)

type Metrics struct {
	registry *prometheus.Registry

	planGenerations    *prometheus.CounterVec
	generationDuration *prometheus.HistogramVec
	workoutsPersisted  prometheus.Counter
	httpRequests       *prometheus.CounterVec
	httpDuration       *prometheus.HistogramVec
}

// New registers the collectors on a private registry, together with the Go
// runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		planGenerations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "plan_generations_total",
			Help:      "Plan generation attempts by outcome and mode.",
		}, []string{"outcome", "mode"}),
		generationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generation_duration_seconds",
			Help:      "Time spent waiting for the generation provider.",
			Buckets:   []float64{0.01, 0.1, 0.5, 1, 2.5, 5, 10, 20, 30, 60},
		}, []string{"mode"}),
		workoutsPersisted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workouts_persisted_total",
			Help:      "Workouts written by plan replacement.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.planGenerations,
		m.generationDuration,
		m.workoutsPersisted,
		m.httpRequests,
		m.httpDuration,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ObservePlanGeneration(outcome, mode string) {
	if m == nil {
		return
	}
	m.planGenerations.WithLabelValues(outcome, mode).Inc()
}

func (m *Metrics) ObserveGenerationDuration(mode string, d time.Duration) {
	if m == nil {
		return
	}
	m.generationDuration.WithLabelValues(mode).Observe(d.Seconds())
}

func (m *Metrics) AddWorkoutsPersisted(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.workoutsPersisted.Add(float64(n))
}

func (m *Metrics) ObserveHTTPRequest(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}
