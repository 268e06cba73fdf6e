package service

import (
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation: HTTP request
// metrics plus the match coordinator's concurrency counters.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	casConflicts    prometheus.Counter
	matchesStarted  prometheus.Counter
	matchesFinished prometheus.Counter
	activeMatches   prometheus.Gauge
}

// NewMetricsService registers the core collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	casConflicts := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "match_write_conflicts_total",
		Help: "Total optimistic-concurrency conflicts on match documents",
	})

	matchesStarted := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "matches_started_total",
		Help: "Total matches opened",
	})

	matchesFinished := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "matches_finished_total",
		Help: "Total matches that reached the finished state",
	})

	activeMatches := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "matches_active",
		Help: "Matches currently open or in progress",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, casConflicts,
		matchesStarted, matchesFinished, activeMatches, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		casConflicts:    casConflicts,
		matchesStarted:  matchesStarted,
		matchesFinished: matchesFinished,
		activeMatches:   activeMatches,
	}
}

// Handler exposes the Prometheus scrape endpoint.
func (s *MetricsService) Handler() http.Handler {
	return s.handler
}

// ObserveRequest records one finished HTTP request.
func (s *MetricsService) ObserveRequest(method, path string, status int, duration time.Duration) {
	labels := []string{method, path, strconv.Itoa(status)}
	s.requestDuration.WithLabelValues(labels...).Observe(duration.Seconds())
	s.requestTotal.WithLabelValues(labels...).Inc()
}

// CASConflict counts one rejected optimistic write.
func (s *MetricsService) CASConflict() {
	s.casConflicts.Inc()
}

// MatchStarted tracks a newly opened match.
func (s *MetricsService) MatchStarted() {
	s.matchesStarted.Inc()
	s.activeMatches.Inc()
}

// MatchFinished tracks a match reaching its terminal state.
func (s *MetricsService) MatchFinished() {
	s.matchesFinished.Inc()
	s.activeMatches.Dec()
}
