package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors for the application.
// Following the explicit dependency injection pattern, this struct
// is passed to all components that need to record metrics.
type Metrics struct {
	// Solana RPC Metrics
	solanaRPCCallsTotal        *prometheus.CounterVec
	solanaRPCCallDuration      *prometheus.HistogramVec
	solanaRPCRateLimitHits     *prometheus.CounterVec
	solanaRPCRetries           *prometheus.CounterVec
	solanaRPCSignaturesPerCall *prometheus.HistogramVec

	// Activity Transformation Metrics
	activitiesTransformedTotal *prometheus.CounterVec
	activityTransformDuration  *prometheus.HistogramVec

	// Token Registry Metrics
	registryLoadsTotal   *prometheus.CounterVec
	registryLoadDuration *prometheus.HistogramVec
	registryLookupsTotal *prometheus.CounterVec

	// HTTP Metrics
	httpRequestDuration *prometheus.HistogramVec
	httpRequestsTotal   *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance and registers all collectors.
// If registry is nil, prometheus.DefaultRegisterer is used.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	return &Metrics{
		// Solana RPC Metrics
		solanaRPCCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solana_rpc_calls_total",
				Help: "Total number of Solana RPC calls by method and status",
			},
			[]string{"method", "status", "endpoint"},
		),
		solanaRPCCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "solana_rpc_call_duration_seconds",
				Help:    "Duration of Solana RPC calls in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"method", "endpoint"},
		),
		solanaRPCRateLimitHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solana_rpc_rate_limit_hits_total",
				Help: "Total number of Solana RPC rate limit hits (429 errors)",
			},
			[]string{"endpoint"},
		),
		solanaRPCRetries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solana_rpc_retries_total",
				Help: "Total number of Solana RPC retry attempts by reason",
			},
			[]string{"method", "reason"},
		),
		solanaRPCSignaturesPerCall: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "solana_rpc_signatures_per_call",
				Help:    "Number of signatures returned per GetSignaturesForAddress call",
				Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100},
			},
			[]string{"endpoint"},
		),

		// Activity Transformation Metrics
		activitiesTransformedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "activities_transformed_total",
				Help: "Total number of activity transformations by outcome (success, absent, error)",
			},
			[]string{"outcome"},
		),
		activityTransformDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "activity_transform_duration_seconds",
				Help:    "Duration of per-transaction activity transformation in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{},
		),

		// Token Registry Metrics
		registryLoadsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "token_registry_loads_total",
				Help: "Total number of token registry snapshot loads by status",
			},
			[]string{"status"},
		),
		registryLoadDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "token_registry_load_duration_seconds",
				Help:    "Duration of token registry snapshot loads in seconds",
				Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
			},
			[]string{},
		),
		registryLookupsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "token_registry_lookups_total",
				Help: "Total number of token metadata lookups by result (hit, miss)",
			},
			[]string{"result"},
		),

		// HTTP Metrics
		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
			},
			[]string{"handler", "method"},
		),
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by handler, method, and status code",
			},
			[]string{"handler", "method", "status_code"},
		),
	}
}

// Solana RPC metric helpers

// RecordRPCCall records a Solana RPC call with duration.
func (m *Metrics) RecordRPCCall(method, status, endpoint string, duration float64) {
	m.solanaRPCCallsTotal.WithLabelValues(method, status, endpoint).Inc()
	m.solanaRPCCallDuration.WithLabelValues(method, endpoint).Observe(duration)
}

// RecordRateLimitHit records a rate limit hit (429 error).
func (m *Metrics) RecordRateLimitHit(endpoint string) {
	m.solanaRPCRateLimitHits.WithLabelValues(endpoint).Inc()
}

// RecordRPCRetry records a retry attempt.
func (m *Metrics) RecordRPCRetry(method, reason string) {
	m.solanaRPCRetries.WithLabelValues(method, reason).Inc()
}

// RecordRPCSignaturesPerCall records the number of signatures fetched.
func (m *Metrics) RecordRPCSignaturesPerCall(endpoint string, count float64) {
	m.solanaRPCSignaturesPerCall.WithLabelValues(endpoint).Observe(count)
}

// Activity transformation metric helpers

// RecordActivityTransformed records the outcome of one per-signature transformation.
func (m *Metrics) RecordActivityTransformed(outcome string, duration float64) {
	m.activitiesTransformedTotal.WithLabelValues(outcome).Inc()
	m.activityTransformDuration.WithLabelValues().Observe(duration)
}

// Token registry metric helpers

// RecordRegistryLoad records a token registry snapshot load.
func (m *Metrics) RecordRegistryLoad(status string, duration float64) {
	m.registryLoadsTotal.WithLabelValues(status).Inc()
	m.registryLoadDuration.WithLabelValues().Observe(duration)
}

// RecordRegistryLookup records a token metadata lookup result.
func (m *Metrics) RecordRegistryLookup(result string) {
	m.registryLookupsTotal.WithLabelValues(result).Inc()
}

// HTTP metric helpers

// RecordHTTPRequest records an HTTP request with duration and status.
func (m *Metrics) RecordHTTPRequest(handler, method string, statusCode int, duration float64) {
	m.httpRequestsTotal.WithLabelValues(handler, method, statusCodeLabel(statusCode)).Inc()
	m.httpRequestDuration.WithLabelValues(handler, method).Observe(duration)
}
