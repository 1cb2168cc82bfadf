package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the gateway's collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "lending_gateway",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lending_gateway",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "lending_gateway",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	txSubmissions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lending_gateway",
			Subsystem: "chain",
			Name:      "transactions_total",
			Help:      "Transactions submitted through the wallet, by entry function and outcome.",
		},
		[]string{"function", "outcome"},
	)

	txDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "lending_gateway",
			Subsystem: "chain",
			Name:      "transaction_duration_seconds",
			Help:      "Time from submission to finality.",
			Buckets:   prometheus.ExponentialBuckets(0.25, 2, 10), // 250ms to ~2m
		},
		[]string{"function"},
	)

	guardRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lending_gateway",
			Subsystem: "origination",
			Name:      "guard_rejections_total",
			Help:      "Loan requests rejected before reaching the network.",
		},
		[]string{"reason"},
	)

	reconciled = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lending_gateway",
			Subsystem: "journal",
			Name:      "reconciled_total",
			Help:      "Pending submissions resolved by the reconciler.",
		},
		[]string{"state"},
	)
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		httpInFlight, httpRequests, httpDuration,
		txSubmissions, txDuration, guardRejections, reconciled,
	)
}

// Handler exposes the registry in Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

func IncInFlight() { httpInFlight.Inc() }
func DecInFlight() { httpInFlight.Dec() }

func RecordHTTPRequest(method, path string, status int, d time.Duration) {
	httpRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpDuration.WithLabelValues(method, path).Observe(d.Seconds())
}

// Transaction outcomes.
const (
	OutcomeConfirmed   = "confirmed"
	OutcomeFailed      = "failed"
	OutcomeTimeout     = "timeout"
	OutcomeSubmitError = "submit_error"
	OutcomeUnknown     = "unknown"
)

// RecordTransaction counts one submission. Duration is only observed for
// transactions that reached the chain.
func RecordTransaction(function, outcome string, d time.Duration) {
	txSubmissions.WithLabelValues(function, outcome).Inc()
	if outcome != OutcomeSubmitError {
		txDuration.WithLabelValues(function).Observe(d.Seconds())
	}
}

func RecordGuardRejection(reason string) { guardRejections.WithLabelValues(reason).Inc() }

func RecordReconciled(state string) { reconciled.WithLabelValues(state).Inc() }
