package observability

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yungbote/deckforge-backend/internal/platform/envutil"
	"github.com/yungbote/deckforge-backend/internal/platform/logger"
)

const namespace = "deckforge"

// Metrics is nil-safe: every method is a no-op on a nil receiver so callers never
// need to check whether metrics are enabled.
type Metrics struct {
	registry *prometheus.Registry

	apiRequests *prometheus.CounterVec
	apiLatency  *prometheus.HistogramVec
	apiInflight prometheus.Gauge

	llmRequests *prometheus.CounterVec
	llmLatency  *prometheus.HistogramVec
	llmTokens   *prometheus.CounterVec

	generations *prometheus.CounterVec
	images      *prometheus.CounterVec
	storeWrites *prometheus.CounterVec
	shares      *prometheus.CounterVec
	exports     *prometheus.CounterVec
	exportTime  prometheus.Histogram
}

var (
	initOnce sync.Once
	instance *Metrics
)

func Enabled() bool {
	return envutil.Bool("METRICS_ENABLED", true)
}

func Current() *Metrics {
	return instance
}

// Init builds the process-wide metrics once. Returns nil when METRICS_ENABLED is off.
func Init(log *logger.Logger) *Metrics {
	if !Enabled() {
		return nil
	}
	initOnce.Do(func() {
		instance = New()
		if log != nil {
			log.Info("Prometheus metrics initialized")
		}
	})
	return instance
}

// New builds a Metrics with its own registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		apiRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "http_requests_total",
			Help: "HTTP requests by method/route/status.",
		}, []string{"method", "route", "status"}),
		apiLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"method", "route"}),
		apiInflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "http_inflight_requests",
			Help: "In-flight HTTP requests.",
		}),
		llmRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "provider_requests_total",
			Help: "Provider API calls by model/endpoint/status.",
		}, []string{"model", "endpoint", "status"}),
		llmLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "provider_request_duration_seconds",
			Help:    "Provider API latency in seconds.",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 80, 160},
		}, []string{"model", "endpoint"}),
		llmTokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "provider_tokens_total",
			Help: "Tokens reported by the provider.",
		}, []string{"model", "kind"}),
		generations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "deck_generations_total",
			Help: "Deck generations by outcome.",
		}, []string{"outcome"}),
		images: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "slide_images_total",
			Help: "Slide image resolutions by outcome (generated, cached, fallback, kept, auth_error).",
		}, []string{"outcome"}),
		storeWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "store_writes_total",
			Help: "Presentation store writes by mode (full, reduced, failed).",
		}, []string{"mode"}),
		shares: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "share_links_total",
			Help: "Share link operations by op/outcome.",
		}, []string{"op", "outcome"}),
		exports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "exports_total",
			Help: "Deck file exports by outcome.",
		}, []string{"outcome"}),
		exportTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "export_duration_seconds",
			Help:    "Deck file export duration in seconds.",
			Buckets: prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(
		m.apiRequests, m.apiLatency, m.apiInflight,
		m.llmRequests, m.llmLatency, m.llmTokens,
		m.generations, m.images, m.storeWrites, m.shares, m.exports, m.exportTime,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveAPI(method, route, status string, dur time.Duration) {
	if m == nil {
		return
	}
	method = orUnknown(method)
	route = orUnknown(route)
	m.apiRequests.WithLabelValues(method, route, orUnknown(status)).Inc()
	m.apiLatency.WithLabelValues(method, route).Observe(dur.Seconds())
}

func (m *Metrics) ApiInflightInc() {
	if m == nil {
		return
	}
	m.apiInflight.Inc()
}

func (m *Metrics) ApiInflightDec() {
	if m == nil {
		return
	}
	m.apiInflight.Dec()
}

func (m *Metrics) ObserveLLMRequest(model, endpoint, status string, dur time.Duration, inputTokens, outputTokens int) {
	if m == nil {
		return
	}
	model = orUnknown(model)
	endpoint = orUnknown(endpoint)
	m.llmRequests.WithLabelValues(model, endpoint, orUnknown(status)).Inc()
	if dur > 0 {
		m.llmLatency.WithLabelValues(model, endpoint).Observe(dur.Seconds())
	}
	if inputTokens > 0 {
		m.llmTokens.WithLabelValues(model, "input").Add(float64(inputTokens))
	}
	if outputTokens > 0 {
		m.llmTokens.WithLabelValues(model, "output").Add(float64(outputTokens))
	}
}

func (m *Metrics) IncGeneration(outcome string) {
	if m == nil {
		return
	}
	m.generations.WithLabelValues(orUnknown(outcome)).Inc()
}

func (m *Metrics) IncSlideImage(outcome string) {
	if m == nil {
		return
	}
	m.images.WithLabelValues(orUnknown(outcome)).Inc()
}

func (m *Metrics) IncStoreWrite(mode string) {
	if m == nil {
		return
	}
	m.storeWrites.WithLabelValues(orUnknown(mode)).Inc()
}

func (m *Metrics) IncShare(op, outcome string) {
	if m == nil {
		return
	}
	m.shares.WithLabelValues(orUnknown(op), orUnknown(outcome)).Inc()
}

func (m *Metrics) ObserveExport(outcome string, dur time.Duration) {
	if m == nil {
		return
	}
	m.exports.WithLabelValues(orUnknown(outcome)).Inc()
	m.exportTime.Observe(dur.Seconds())
}

func orUnknown(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "unknown"
	}
	return s
}
