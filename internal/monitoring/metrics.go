package monitoring

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Risk pipeline metrics
	validationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "risk_engine_validations_total",
			Help: "Total number of pre-trade validations by outcome",
		},
		[]string{"outcome"},
	)

	complianceBlocksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "risk_engine_compliance_blocks_total",
			Help: "Total number of compliance blocks by reason",
		},
		[]string{"reason"},
	)

	// Execution metrics
	executionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "risk_engine_executions_total",
			Help: "Total number of signal executions by final status",
		},
		[]string{"status", "side"},
	)

	executionLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "risk_engine_execution_seconds",
			Help:    "Distribution of end-to-end execution latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"status"},
	)

	// Account metrics
	accountBalance = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "risk_engine_account_balance",
			Help: "Last observed account balance",
		},
		[]string{"account"},
	)

	circuitBreakerActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "risk_engine_circuit_breaker_active",
			Help: "Whether the daily-loss circuit breaker is halting trading",
		},
	)

	// Error metrics
	errorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "risk_engine_errors_total",
			Help: "Total number of errors",
		},
		[]string{"type"},
	)
)

func init() {
	// Register metrics
	prometheus.MustRegister(validationsTotal)
	prometheus.MustRegister(complianceBlocksTotal)
	prometheus.MustRegister(executionsTotal)
	prometheus.MustRegister(executionLatency)
	prometheus.MustRegister(accountBalance)
	prometheus.MustRegister(circuitBreakerActive)
	prometheus.MustRegister(errorsTotal)
}

// MetricsHandler handles Prometheus metrics endpoint
type MetricsHandler struct{}

// NewMetricsHandler creates a new metrics handler
func NewMetricsHandler() *MetricsHandler {
	return &MetricsHandler{}
}

// ServeHTTP serves the Prometheus metrics endpoint
func (m *MetricsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// RecordValidation records a pre-trade validation outcome
func RecordValidation(outcome string) {
	validationsTotal.WithLabelValues(outcome).Inc()
}

// RecordComplianceBlock records a compliance block by reason
func RecordComplianceBlock(reason string) {
	complianceBlocksTotal.WithLabelValues(reason).Inc()
}

// RecordExecution records a finished execution with its latency
func RecordExecution(status, side string, seconds float64) {
	executionsTotal.WithLabelValues(status, side).Inc()
	executionLatency.WithLabelValues(status).Observe(seconds)
}

// UpdateBalance updates the account balance gauge
func UpdateBalance(account string, balance float64) {
	accountBalance.WithLabelValues(account).Set(balance)
}

// SetCircuitBreaker updates the circuit breaker gauge
func SetCircuitBreaker(active bool) {
	if active {
		circuitBreakerActive.Set(1)
	} else {
		circuitBreakerActive.Set(0)
	}
}

// RecordError records an error metric
func RecordError(errorType string) {
	errorsTotal.WithLabelValues(errorType).Inc()
}
