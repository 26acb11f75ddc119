package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns a private registry so tests can build as many as they like.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	apiRequests *prometheus.CounterVec
	apiLatency  *prometheus.HistogramVec
	apiInflight prometheus.Gauge

	llmRequests *prometheus.CounterVec
	llmLatency  *prometheus.HistogramVec
	llmTokens   *prometheus.CounterVec

	unitsCreated *prometheus.CounterVec
	unitRetries  *prometheus.CounterVec
	runsFinished *prometheus.CounterVec
	runsActive   prometheus.Gauge
	limiterWait  prometheus.Histogram
	busPublished *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		apiRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "orchestrator_http_requests_total",
			Help: "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		apiLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "orchestrator_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		apiInflight: f.NewGauge(prometheus.GaugeOpts{
			Name: "orchestrator_http_inflight_requests",
			Help: "HTTP requests currently being served.",
		}),
		llmRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "orchestrator_llm_requests_total",
			Help: "Generative provider calls by provider and outcome.",
		}, []string{"provider", "outcome"}),
		llmLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "orchestrator_llm_request_duration_seconds",
			Help:    "Generative provider call latency.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		}, []string{"provider"}),
		llmTokens: f.NewCounterVec(prometheus.CounterOpts{
			Name: "orchestrator_llm_tokens_total",
			Help: "Tokens consumed by direction.",
		}, []string{"provider", "direction"}),
		unitsCreated: f.NewCounterVec(prometheus.CounterOpts{
			Name: "orchestrator_units_created_total",
			Help: "Curriculum entities persisted by kind.",
		}, []string{"kind"}),
		unitRetries: f.NewCounterVec(prometheus.CounterOpts{
			Name: "orchestrator_unit_retries_total",
			Help: "Transient provider failures retried, by unit kind.",
		}, []string{"kind"}),
		runsFinished: f.NewCounterVec(prometheus.CounterOpts{
			Name: "orchestrator_runs_finished_total",
			Help: "Generation runs reaching a terminal status.",
		}, []string{"status"}),
		runsActive: f.NewGauge(prometheus.GaugeOpts{
			Name: "orchestrator_runs_active",
			Help: "Generation runs executing in this process.",
		}),
		limiterWait: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "orchestrator_limiter_wait_seconds",
			Help:    "Time callers spent waiting on the provider rate limiter.",
			Buckets: []float64{0, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}),
		busPublished: f.NewCounterVec(prometheus.CounterOpts{
			Name: "orchestrator_bus_messages_total",
			Help: "Run events published to the realtime bus by event and outcome.",
		}, []string{"event", "outcome"}),
	}
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ApiInflightInc() {
	if m != nil {
		m.apiInflight.Inc()
	}
}

func (m *Metrics) ApiInflightDec() {
	if m != nil {
		m.apiInflight.Dec()
	}
}

func (m *Metrics) ObserveAPI(method, route, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.apiRequests.WithLabelValues(method, route, status).Inc()
	m.apiLatency.WithLabelValues(method, route).Observe(dur.Seconds())
}

func (m *Metrics) ObserveLLMRequest(provider, outcome string, dur time.Duration, inputTokens, outputTokens int) {
	if m == nil {
		return
	}
	m.llmRequests.WithLabelValues(provider, outcome).Inc()
	m.llmLatency.WithLabelValues(provider).Observe(dur.Seconds())
	if inputTokens > 0 {
		m.llmTokens.WithLabelValues(provider, "input").Add(float64(inputTokens))
	}
	if outputTokens > 0 {
		m.llmTokens.WithLabelValues(provider, "output").Add(float64(outputTokens))
	}
}

func (m *Metrics) IncUnitCreated(kind string) {
	if m != nil {
		m.unitsCreated.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) IncUnitRetry(kind string) {
	if m != nil {
		m.unitRetries.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) IncRunFinished(status string) {
	if m != nil {
		m.runsFinished.WithLabelValues(status).Inc()
	}
}

func (m *Metrics) RunStarted() {
	if m != nil {
		m.runsActive.Inc()
	}
}

func (m *Metrics) RunStopped() {
	if m != nil {
		m.runsActive.Dec()
	}
}

func (m *Metrics) ObserveLimiterWait(d time.Duration) {
	if m != nil {
		m.limiterWait.Observe(d.Seconds())
	}
}

func (m *Metrics) IncBusPublished(event, outcome string) {
	if m != nil {
		m.busPublished.WithLabelValues(event, outcome).Inc()
	}
}
