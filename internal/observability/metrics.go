// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Claim metrics
	ClaimActionsTotal *prometheus.CounterVec
	ClaimedLamports   prometheus.Counter
	SweepTargetsTotal *prometheus.CounterVec
	SweepDuration     prometheus.Histogram
	AmountResolutions *prometheus.CounterVec
	UnresolvedAmounts prometheus.Counter

	// Distribution metrics
	DistributionLegsTotal *prometheus.CounterVec
	DistributedLamports   prometheus.Counter
	DustSkipsTotal        prometheus.Counter
	RentTopUpsTotal       prometheus.Counter

	// Ledger metrics
	LedgerOverdrawsTotal prometheus.Counter
	PayoutsTotal         *prometheus.CounterVec
	PaidOutLamports      prometheus.Counter

	// Verifier metrics
	VerificationsTotal *prometheus.CounterVec

	// RPC metrics
	RPCCallLatency     *prometheus.HistogramVec
	RPCRateLimitsTotal prometheus.Counter
	ConfirmTimeouts    prometheus.Counter

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastSuccessfulSweep prometheus.Gauge
	UptimeSeconds       prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "fee_engine"
	}

	return &Metrics{
		// Claim metrics
		ClaimActionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "claims",
			Name:      "actions_total",
			Help:      "Total number of claim actions attempted by action and status",
		}, []string{"action", "status"}),
		ClaimedLamports: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "claims",
			Name:      "claimed_lamports_total",
			Help:      "Total lamports resolved from confirmed claims",
		}),
		SweepTargetsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "claims",
			Name:      "sweep_targets_total",
			Help:      "Total number of sweep targets processed by outcome",
		}, []string{"outcome"}),
		SweepDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "claims",
			Name:      "sweep_duration_seconds",
			Help:      "Full sweep run duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}),
		AmountResolutions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "resolver",
			Name:      "resolutions_total",
			Help:      "Total number of amount resolutions by method",
		}, []string{"method"}),
		UnresolvedAmounts: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "resolver",
			Name:      "unresolved_total",
			Help:      "Total number of confirmed claims with no resolvable amount",
		}),

		// Distribution metrics
		DistributionLegsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "distribution",
			Name:      "legs_total",
			Help:      "Total number of distribution legs by status",
		}, []string{"status"}),
		DistributedLamports: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "distribution",
			Name:      "distributed_lamports_total",
			Help:      "Total lamports sent to stakeholders",
		}),
		DustSkipsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "distribution",
			Name:      "dust_skips_total",
			Help:      "Total number of distributions skipped below the dust floor",
		}),
		RentTopUpsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "distribution",
			Name:      "rent_top_ups_total",
			Help:      "Total number of treasury legs that included a rent-exempt top-up",
		}),

		// Ledger metrics
		LedgerOverdrawsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "overdraws_total",
			Help:      "Total number of rejected overdraw attempts",
		}),
		PayoutsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "payouts_total",
			Help:      "Total number of creator payouts by status",
		}, []string{"status"}),
		PaidOutLamports: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "paid_out_lamports_total",
			Help:      "Total lamports paid out to creators",
		}),

		// Verifier metrics
		VerificationsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "verifier",
			Name:      "verifications_total",
			Help:      "Total number of external transfer verifications by result",
		}, []string{"direction", "result"}),

		// RPC metrics
		RPCCallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "rpc_call_latency_seconds",
			Help:      "Solana RPC call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		RPCRateLimitsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "rpc_rate_limits_total",
			Help:      "Total number of rate-limit responses that triggered endpoint failover",
		}),
		ConfirmTimeouts: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "confirm_timeouts_total",
			Help:      "Total number of confirmation waits that hit their deadline",
		}),

		// Database metrics
		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		// Health metrics
		LastSuccessfulSweep: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_sweep_timestamp",
			Help:      "Unix timestamp of last successful claim sweep",
		}),
		UptimeSeconds: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "uptime_seconds_total",
			Help:      "Total uptime in seconds",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordClaimAction increments the claim action counter.
func RecordClaimAction(action, status string, resolvedLamports uint64) {
	DefaultMetrics.ClaimActionsTotal.WithLabelValues(action, status).Inc()
	if resolvedLamports > 0 {
		DefaultMetrics.ClaimedLamports.Add(float64(resolvedLamports))
	}
}

// RecordResolution records which resolution method produced an amount.
func RecordResolution(method string) {
	DefaultMetrics.AmountResolutions.WithLabelValues(method).Inc()
}

// RecordSweep records a full sweep run.
func RecordSweep(successful, failed, skipped int, durationSeconds float64) {
	DefaultMetrics.SweepTargetsTotal.WithLabelValues("successful").Add(float64(successful))
	DefaultMetrics.SweepTargetsTotal.WithLabelValues("failed").Add(float64(failed))
	DefaultMetrics.SweepTargetsTotal.WithLabelValues("skipped").Add(float64(skipped))
	DefaultMetrics.SweepDuration.Observe(durationSeconds)
}

// RecordDistributionLeg records one distribution leg outcome.
func RecordDistributionLeg(status string, lamports uint64) {
	DefaultMetrics.DistributionLegsTotal.WithLabelValues(status).Inc()
	if lamports > 0 {
		DefaultMetrics.DistributedLamports.Add(float64(lamports))
	}
}

// RecordPayout records a creator payout attempt.
func RecordPayout(status string, lamports uint64) {
	DefaultMetrics.PayoutsTotal.WithLabelValues(status).Inc()
	if lamports > 0 {
		DefaultMetrics.PaidOutLamports.Add(float64(lamports))
	}
}

// RecordVerification records an external transfer verification result.
func RecordVerification(direction string, valid bool) {
	result := "invalid"
	if valid {
		result = "valid"
	}
	DefaultMetrics.VerificationsTotal.WithLabelValues(direction, result).Inc()
}

// RecordRPCLatency records RPC call latency.
func RecordRPCLatency(method string, seconds float64) {
	DefaultMetrics.RPCCallLatency.WithLabelValues(method).Observe(seconds)
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
