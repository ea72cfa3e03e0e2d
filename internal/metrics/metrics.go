// Package metrics holds the Prometheus collectors of the service.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "mistakebook"

// Metrics groups the service collectors. It implements solving.Observer.
type Metrics struct {
	Registry *prometheus.Registry

	solvesTotal      *prometheus.CounterVec
	solveAttempts    prometheus.Histogram
	reviewVerdicts   *prometheus.CounterVec
	extractionsTotal *prometheus.CounterVec
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
}

// New registers all collectors, plus the Go and process collectors, on a
// fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		solvesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "solve",
				Name:      "total",
				Help:      "Solve invocations by final status",
			},
			[]string{"status"},
		),
		solveAttempts: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "solve",
				Name:      "attempts",
				Help:      "Generations used per solve",
				Buckets:   []float64{1, 2, 3, 4, 5},
			},
		),
		reviewVerdicts: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "solve",
				Name:      "review_verdicts_total",
				Help:      "Review verdicts by outcome",
			},
			[]string{"passed"},
		),
		extractionsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "solve",
				Name:      "extractions_total",
				Help:      "Knowledge extractions by outcome",
			},
			[]string{"outcome"},
		),
		httpRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "HTTP requests by route, method and status",
			},
			[]string{"route", "method", "status"},
		),
		httpDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request latency",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"route", "method"},
		),
	}
}

func (m *Metrics) ObserveSolve(status string, attempts int) {
	m.solvesTotal.WithLabelValues(status).Inc()
	m.solveAttempts.Observe(float64(attempts))
}

func (m *Metrics) ObserveReview(passed bool) {
	m.reviewVerdicts.WithLabelValues(strconv.FormatBool(passed)).Inc()
}

func (m *Metrics) ObserveExtraction(outcome string) {
	m.extractionsTotal.WithLabelValues(outcome).Inc()
}

// ObserveHTTP records one served request.
func (m *Metrics) ObserveHTTP(route, method string, status int, elapsed time.Duration) {
	m.httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(route, method).Observe(elapsed.Seconds())
}
