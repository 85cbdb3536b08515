package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// CacheOperation identifies the store method being instrumented.
type CacheOperation string

const (
	CacheOperationGet           CacheOperation = "get"
	CacheOperationSet           CacheOperation = "set"
	CacheOperationDelete        CacheOperation = "delete"
	CacheOperationDeletePattern CacheOperation = "delete_pattern"
	CacheOperationKeys          CacheOperation = "keys"
	CacheOperationClear         CacheOperation = "clear"
)

// CacheResult captures the result of a store operation.
type CacheResult string

const (
	// CacheResultHit indicates a get returned a live entry.
	CacheResultHit CacheResult = "hit"
	// CacheResultMiss indicates a get found nothing usable.
	CacheResultMiss CacheResult = "miss"
	// CacheResultOK indicates a mutating operation succeeded.
	CacheResultOK CacheResult = "ok"
	// CacheResultError indicates the operation failed.
	CacheResultError CacheResult = "error"
)

// ResolveOutcome captures how the orchestrator satisfied a request.
type ResolveOutcome string

const (
	ResolveCached           ResolveOutcome = "cache"
	ResolveComputed         ResolveOutcome = "computed"
	ResolveComputedUncached ResolveOutcome = "computed_uncached"
	ResolveFailed           ResolveOutcome = "failed"
	ResolveAbandoned        ResolveOutcome = "abandoned"
)

// Recorder publishes Prometheus metrics for HTTP and cache activity.
type Recorder struct {
	gatherer prometheus.Gatherer
	handler  http.Handler

	httpRequests *prometheus.CounterVec
	httpLatency  *prometheus.HistogramVec

	cacheOperations *prometheus.CounterVec
	cacheLatency    *prometheus.HistogramVec

	resolutions    *prometheus.CounterVec
	computeLatency *prometheus.HistogramVec
}

// NewRecorder constructs a Prometheus-backed Recorder. When reg is nil a dedicated
// registry is created so multiple recorders can coexist without conflicting with
// the global default registerer.
func NewRecorder(reg *prometheus.Registry) *Recorder {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	reg.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	httpRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pitwall",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total API requests served.",
	}, []string{"route", "method", "status_code", "cache"})

	httpLatency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "pitwall",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "Latency distribution for API requests.",
		Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	}, []string{"route", "method"})

	cacheOperations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pitwall",
		Subsystem: "cache",
		Name:      "operations_total",
		Help:      "Response cache operations by backend.",
	}, []string{"backend", "operation", "result"})

	cacheLatency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "pitwall",
		Subsystem: "cache",
		Name:      "operation_duration_seconds",
		Help:      "Latency distribution for response cache operations.",
		Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5},
	}, []string{"backend", "operation", "result"})

	resolutions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pitwall",
		Subsystem: "cache",
		Name:      "resolutions_total",
		Help:      "Cached response resolutions by outcome.",
	}, []string{"resource", "outcome"})

	computeLatency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "pitwall",
		Subsystem: "cache",
		Name:      "compute_duration_seconds",
		Help:      "Latency distribution for response computations on cache misses.",
		Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"resource"})

	reg.MustRegister(httpRequests, httpLatency, cacheOperations, cacheLatency, resolutions, computeLatency)

	handler := promhttp.HandlerFor(reg, promhttp.HandlerOpts{})

	return &Recorder{
		gatherer:        reg,
		handler:         handler,
		httpRequests:    httpRequests,
		httpLatency:     httpLatency,
		cacheOperations: cacheOperations,
		cacheLatency:    cacheLatency,
		resolutions:     resolutions,
		computeLatency:  computeLatency,
	}
}

// Handler exposes the Prometheus HTTP handler for the recorder's registry.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "metrics unavailable", http.StatusServiceUnavailable)
		})
	}
	return r.handler
}

// Gatherer returns the underlying Prometheus gatherer for tests and advanced
// integrations.
func (r *Recorder) Gatherer() prometheus.Gatherer {
	if r == nil {
		return prometheus.NewRegistry()
	}
	return r.gatherer
}

// ObserveRequest records a completed API request. cache carries the X-Cache
// value, empty for uncached routes.
func (r *Recorder) ObserveRequest(route, method string, statusCode int, cache string, duration time.Duration) {
	if r == nil {
		return
	}
	routeLabel := normalizeLabel(route)
	methodLabel := normalizeLabel(method)
	statusLabel := strconv.Itoa(statusCode)
	if statusCode <= 0 {
		statusLabel = "unknown"
	}
	cacheLabel := strings.ToLower(strings.TrimSpace(cache))
	if cacheLabel == "" {
		cacheLabel = "none"
	}
	r.httpRequests.WithLabelValues(routeLabel, methodLabel, statusLabel, cacheLabel).Inc()
	r.httpLatency.WithLabelValues(routeLabel, methodLabel).Observe(duration.Seconds())
}

// ObserveCacheOperation records a single store call against a backend.
func (r *Recorder) ObserveCacheOperation(backend string, operation CacheOperation, result CacheResult, duration time.Duration) {
	if r == nil {
		return
	}
	opLabel := string(operation)
	if opLabel == "" {
		opLabel = string(CacheOperationGet)
	}
	resLabel := string(result)
	if resLabel == "" {
		resLabel = string(CacheResultError)
	}
	backendLabel := normalizeLabel(backend)
	r.cacheOperations.WithLabelValues(backendLabel, opLabel, resLabel).Inc()
	r.cacheLatency.WithLabelValues(backendLabel, opLabel, resLabel).Observe(duration.Seconds())
}

// ObserveResolve records how a cached response was produced.
func (r *Recorder) ObserveResolve(resource string, outcome ResolveOutcome) {
	if r == nil {
		return
	}
	r.resolutions.WithLabelValues(normalizeLabel(resource), normalizeLabel(string(outcome))).Inc()
}

// ObserveCompute records the duration of a computation run on a miss.
func (r *Recorder) ObserveCompute(resource string, duration time.Duration) {
	if r == nil {
		return
	}
	r.computeLatency.WithLabelValues(normalizeLabel(resource)).Observe(duration.Seconds())
}

func normalizeLabel(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "unknown"
	}
	return trimmed
}
