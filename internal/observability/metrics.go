// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Deposit flow metrics
	DepositsSubmitted  *prometheus.CounterVec // by submission path
	DepositFailures    prometheus.Counter
	BatchFallbacks     prometheus.Counter
	ApprovalsIssued    prometheus.Counter
	ApprovalsSkipped   prometheus.Counter
	InvestmentsCreated prometheus.Counter
	InvestmentsMerged  prometheus.Counter

	// Confirmation metrics
	PollerOutcomes *prometheus.CounterVec // confirmed | failed | exhausted
	PollerAttempts prometheus.Histogram
	ReconcilerRuns prometheus.Counter
	ReconcilerRequeued prometheus.Counter

	// Ledger metrics
	LedgerWriteErrors *prometheus.CounterVec // by entity

	// Chain gateway metrics
	RPCCallLatency *prometheus.HistogramVec
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "stablevault"
	}

	return &Metrics{
		DepositsSubmitted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "deposit",
			Name:      "submissions_total",
			Help:      "Total number of successful on-chain deposit submissions by path",
		}, []string{"path"}),
		DepositFailures: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "deposit",
			Name:      "submission_failures_total",
			Help:      "Total number of deposit submissions that failed on both paths",
		}),
		BatchFallbacks: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "deposit",
			Name:      "batch_fallbacks_total",
			Help:      "Total number of atomic batch submissions that fell back to sequential",
		}),
		ApprovalsIssued: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "deposit",
			Name:      "approvals_issued_total",
			Help:      "Total number of approval transactions submitted on the sequential path",
		}),
		ApprovalsSkipped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "deposit",
			Name:      "approvals_skipped_total",
			Help:      "Total number of approvals skipped because the allowance was sufficient",
		}),
		InvestmentsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "investments_created_total",
			Help:      "Total number of new investment rows created",
		}),
		InvestmentsMerged: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "investments_merged_total",
			Help:      "Total number of additive deposits merged into open investments",
		}),
		PollerOutcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "confirmation",
			Name:      "poller_outcomes_total",
			Help:      "Total number of confirmation poller completions by outcome",
		}, []string{"outcome"}),
		PollerAttempts: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "confirmation",
			Name:      "poller_attempts",
			Help:      "Poll attempts used before a terminal state was observed",
			Buckets:   []float64{1, 2, 3, 5, 10, 15, 20, 30},
		}),
		ReconcilerRuns: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "confirmation",
			Name:      "reconciler_runs_total",
			Help:      "Total number of stale-movement reconciler sweeps",
		}),
		ReconcilerRequeued: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "confirmation",
			Name:      "reconciler_requeued_total",
			Help:      "Total number of stale movements handed back to the poller",
		}),
		LedgerWriteErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "write_errors_total",
			Help:      "Total number of ledger write errors by entity",
		}, []string{"entity"}),
		RPCCallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "chain",
			Name:      "rpc_call_latency_seconds",
			Help:      "Chain gateway RPC call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordSubmission increments the submissions counter for a path.
func RecordSubmission(path string) {
	DefaultMetrics.DepositsSubmitted.WithLabelValues(path).Inc()
}

// RecordSubmissionFailure increments the submission failure counter.
func RecordSubmissionFailure() {
	DefaultMetrics.DepositFailures.Inc()
}

// RecordBatchFallback increments the batch fallback counter.
func RecordBatchFallback() {
	DefaultMetrics.BatchFallbacks.Inc()
}

// RecordApproval records whether an approval was issued or skipped.
func RecordApproval(issued bool) {
	if issued {
		DefaultMetrics.ApprovalsIssued.Inc()
	} else {
		DefaultMetrics.ApprovalsSkipped.Inc()
	}
}

// RecordInvestmentUpsert records a merge-or-create outcome.
func RecordInvestmentUpsert(merged bool) {
	if merged {
		DefaultMetrics.InvestmentsMerged.Inc()
	} else {
		DefaultMetrics.InvestmentsCreated.Inc()
	}
}

// RecordPollerOutcome records a poller completion and the attempts it used.
func RecordPollerOutcome(outcome string, attempts int) {
	DefaultMetrics.PollerOutcomes.WithLabelValues(outcome).Inc()
	DefaultMetrics.PollerAttempts.Observe(float64(attempts))
}

// RecordReconcilerSweep records a reconciler run and how many movements it requeued.
func RecordReconcilerSweep(requeued int) {
	DefaultMetrics.ReconcilerRuns.Inc()
	DefaultMetrics.ReconcilerRequeued.Add(float64(requeued))
}

// RecordLedgerWriteError records a failed ledger write.
func RecordLedgerWriteError(entity string) {
	DefaultMetrics.LedgerWriteErrors.WithLabelValues(entity).Inc()
}

// RecordRPCLatency records the duration of one chain gateway RPC call.
func RecordRPCLatency(method string, d time.Duration) {
	DefaultMetrics.RPCCallLatency.WithLabelValues(method).Observe(d.Seconds())
}
