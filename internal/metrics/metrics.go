// Package metrics exposes the Prometheus series of the renewal desk.
package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	defaultMetrics *Metrics
	defaultOnce    sync.Once
)

// Metrics holds the Prometheus collectors.
type Metrics struct {
	APIRequestsTotal   *prometheus.CounterVec
	APIRequestLatency  *prometheus.HistogramVec
	AgentRequestsTotal *prometheus.CounterVec
	AgentTokensTotal   *prometheus.CounterVec
	LLMTokensTotal     *prometheus.CounterVec
	LLMErrorsTotal     *prometheus.CounterVec
	ValidationFailures *prometheus.CounterVec
	CitationCoverage   prometheus.Gauge
	LLMRequestLatency  *prometheus.HistogramVec
}

// Default returns the metrics registered on the default registry. It is
// safe to call more than once.
//
// Series:
//   - api_requests_total{path,method,status}
//   - api_request_latency_seconds{path,method}
//   - agent_requests_total{status}
//   - agent_tokens_total{direction}
//   - llm_tokens_total{direction}
//   - llm_errors_total{reason}
//   - validation_failures_total{stage}
//   - citation_coverage_ratio
//   - llm_request_latency_seconds{provider}
func Default() *Metrics {
	defaultOnce.Do(func() {
		defaultMetrics = New(prometheus.DefaultRegisterer)
	})
	return defaultMetrics
}

// New registers a fresh set of collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		APIRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "api_requests_total",
				Help: "Total API requests",
			},
			[]string{"path", "method", "status"},
		),
		APIRequestLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "api_request_latency_seconds",
				Help:    "API request latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"path", "method"},
		),
		AgentRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agent_requests_total",
				Help: "Brief generation outcomes",
			},
			[]string{"status"},
		),
		AgentTokensTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agent_tokens_total",
				Help: "Estimated agent tokens",
			},
			[]string{"direction"},
		),
		LLMTokensTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "llm_tokens_total",
				Help: "Provider-reported LLM tokens",
			},
			[]string{"direction"},
		),
		LLMErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "llm_errors_total",
				Help: "LLM failures by reason",
			},
			[]string{"reason"},
		),
		ValidationFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "validation_failures_total",
				Help: "Synthesis validation failures by stage",
			},
			[]string{"stage"},
		),
		CitationCoverage: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "citation_coverage_ratio",
				Help: "Citation coverage of the last brief",
			},
		),
		LLMRequestLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "llm_request_latency_seconds",
				Help:    "LLM request latency",
				Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 60, 120},
			},
			[]string{"provider"},
		),
	}
}

// RecordAPIRequest records one HTTP request.
func (m *Metrics) RecordAPIRequest(path, method string, status int, d time.Duration) {
	m.APIRequestsTotal.WithLabelValues(path, method, strconv.Itoa(status)).Inc()
	m.APIRequestLatency.WithLabelValues(path, method).Observe(d.Seconds())
}

// RecordAgentCompletion counts a finished brief request.
func (m *Metrics) RecordAgentCompletion(status string) {
	m.AgentRequestsTotal.WithLabelValues(status).Inc()
}

// RecordAgentTokens adds estimated tokens. Non-positive amounts are ignored.
func (m *Metrics) RecordAgentTokens(direction string, n int) {
	if n <= 0 {
		return
	}
	m.AgentTokensTotal.WithLabelValues(direction).Add(float64(n))
}

// RecordLLMTokens adds provider-reported tokens. Non-positive amounts are ignored.
func (m *Metrics) RecordLLMTokens(direction string, n int) {
	if n <= 0 {
		return
	}
	m.LLMTokensTotal.WithLabelValues(direction).Add(float64(n))
}

// RecordLLMError counts an LLM failure.
func (m *Metrics) RecordLLMError(reason string) {
	m.LLMErrorsTotal.WithLabelValues(reason).Inc()
}

// RecordValidationFailure counts a validation failure.
func (m *Metrics) RecordValidationFailure(stage string) {
	m.ValidationFailures.WithLabelValues(stage).Inc()
}

// RecordCitationCoverage sets the coverage gauge.
func (m *Metrics) RecordCitationCoverage(ratio float64) {
	m.CitationCoverage.Set(ratio)
}

// RecordLLMLatency observes one LLM call.
func (m *Metrics) RecordLLMLatency(provider string, d time.Duration) {
	m.LLMRequestLatency.WithLabelValues(provider).Observe(d.Seconds())
}
