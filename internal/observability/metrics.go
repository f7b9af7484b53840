package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects Prometheus metrics for the service.
// All methods are safe on a nil receiver so components can run without metrics.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	assetRequests   *prometheus.CounterVec
	writeBacks      *prometheus.CounterVec
	storesDeleted   *prometheus.CounterVec
	calculations    *prometheus.CounterVec
}

// NewMetrics registers every collector on a private registry
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gstk_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gstk_http_request_duration_seconds",
		Help:    "HTTP request duration by route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	assets := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gstk_asset_requests_total",
		Help: "Intercepted asset requests by outcome (cache, network, fallback, offline, bypass).",
	}, []string{"outcome"})
	writeBacks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gstk_asset_writebacks_total",
		Help: "Background cache write-backs by result.",
	}, []string{"result"})
	deleted := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gstk_cache_stores_deleted_total",
		Help: "Stale cache stores removed on activation by result.",
	}, []string{"result"})
	calculations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gstk_tax_calculations_total",
		Help: "Tax calculations by direction and result.",
	}, []string{"direction", "result"})
	registry.MustRegister(requests, duration, assets, writeBacks, deleted, calculations)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		assetRequests:   assets,
		writeBacks:      writeBacks,
		storesDeleted:   deleted,
		calculations:    calculations,
	}
}

// Handler returns the /metrics endpoint
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records request count and latency per chi route pattern
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// Registerer exposes the registry for extra collectors
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

// AssetRequest counts one intercepted request outcome
func (m *Metrics) AssetRequest(outcome string) {
	if m == nil {
		return
	}
	m.assetRequests.WithLabelValues(outcome).Inc()
}

// WriteBack counts one background store write
func (m *Metrics) WriteBack(err error) {
	if m == nil {
		return
	}
	m.writeBacks.WithLabelValues(result(err)).Inc()
}

// StoreDeleted counts one stale store deletion attempt
func (m *Metrics) StoreDeleted(err error) {
	if m == nil {
		return
	}
	m.storesDeleted.WithLabelValues(result(err)).Inc()
}

// Calculation counts one tax calculation
func (m *Metrics) Calculation(direction string, err error) {
	if m == nil {
		return
	}
	m.calculations.WithLabelValues(direction, result(err)).Inc()
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unmatched"
}
