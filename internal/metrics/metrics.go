// Package metrics exposes Prometheus collectors for circular-watch runs.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/push"
)

var (
	runsTotal                  *prometheus.CounterVec
	runDurationSeconds         prometheus.Histogram
	validationsTotal           *prometheus.CounterVec
	downloadBytesTotal         prometheus.Counter
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec
	rateLimitDelaySeconds      *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		runsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "circular_runs_total",
				Help: "Total number of pipeline runs, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		runDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "circular_run_duration_seconds",
				Help:    "Histogram of pipeline run durations.",
				Buckets: []float64{1, 5, 10, 30, 60, 120, 300},
			},
		)

		validationsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "circular_validations_total",
				Help: "Total number of candidate document validations, labeled by result.",
			},
			[]string{"result"},
		)

		downloadBytesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "circular_download_bytes_total",
				Help: "Total number of document bytes downloaded.",
			},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 30, 120},
			},
			[]string{"method", "route"},
		)

		rateLimitDelaySeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "circular_rate_limit_delay_seconds",
				Help:    "Time spent waiting for a per-host request token.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"host"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	Init()
	return promhttp.Handler()
}

// ObserveRun records a finished pipeline run.
func ObserveRun(outcome string, duration time.Duration) {
	Init()
	runsTotal.WithLabelValues(outcome).Inc()
	runDurationSeconds.Observe(duration.Seconds())
}

// ObserveValidation records the result of a header-only candidate check.
func ObserveValidation(accepted bool) {
	Init()
	result := "rejected"
	if accepted {
		result = "accepted"
	}
	validationsTotal.WithLabelValues(result).Inc()
}

// ObserveRateLimitDelay records how long a request waited for its host's token.
func ObserveRateLimitDelay(host string, delay time.Duration) {
	Init()
	rateLimitDelaySeconds.WithLabelValues(host).Observe(delay.Seconds())
}

// ObserveDownload adds transferred document bytes.
func ObserveDownload(bytes int64) {
	Init()
	if bytes > 0 {
		downloadBytesTotal.Add(float64(bytes))
	}
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// Push sends the default registry to a Prometheus Pushgateway.
// Batch runs exit before any scrape could happen, so the CLI pushes instead.
func Push(ctx context.Context, gatewayURL, job string) error {
	if gatewayURL == "" {
		return nil
	}
	Init()
	if err := push.New(gatewayURL, job).Gatherer(prometheus.DefaultGatherer).PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics: %w", err)
	}
	return nil
}

// Middleware is a chi middleware that records HTTP request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)

		routePattern := "unknown"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			routePattern = rctx.RoutePattern()
		}

		ObserveHTTPRequest(r.Method, routePattern, ww.status, time.Since(start))
	})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}
