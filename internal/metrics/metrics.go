// Package metrics registers the service's Prometheus collectors.
// Observe functions are no-ops until Init is called, so packages can record
// unconditionally and tests need no registry.
package metrics

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricPrefix = "utilipay_"

var (
	registerOnce sync.Once

	settlementTotal   *prometheus.CounterVec
	settlementLatency *prometheus.HistogramVec

	balanceCheckTotal   *prometheus.CounterVec
	balanceCheckLatency *prometheus.HistogramVec

	reconcileTotal *prometheus.CounterVec
)

// PendingCounter reports how many bills are waiting in PENDING_SETTLEMENT.
type PendingCounter interface {
	CountPendingBills(ctx context.Context) (int, error)
}

// Init registers collectors with the default registry. pending may be nil.
func Init(pending PendingCounter, logger *slog.Logger) {
	registerOnce.Do(func() {
		settlementTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "settlements_total",
				Help: "Settlement attempts by outcome",
			},
			[]string{"outcome"},
		)
		settlementLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "settlement_latency_seconds",
				Help:    "Settlement latency in seconds, including the settlement leg",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 3, 4, 5, 10},
			},
			[]string{"outcome"},
		)
		balanceCheckTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "balance_checks_total",
				Help: "Linked-account balance checks by result",
			},
			[]string{"result"},
		)
		balanceCheckLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "balance_check_latency_seconds",
				Help:    "Balance check latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)
		reconcileTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "reconciliations_total",
				Help: "Reconciliation attempts on pending bills by outcome",
			},
			[]string{"outcome"},
		)

		prometheus.MustRegister(
			settlementTotal,
			settlementLatency,
			balanceCheckTotal,
			balanceCheckLatency,
			reconcileTotal,
		)

		if pending != nil {
			registerLedgerMetrics(pending, logger)
		}
	})
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveSettlement records a settle attempt.
func ObserveSettlement(outcome string, duration time.Duration) {
	if outcome == "" {
		outcome = "unknown"
	}
	if settlementTotal != nil {
		settlementTotal.WithLabelValues(outcome).Inc()
	}
	if settlementLatency != nil {
		settlementLatency.WithLabelValues(outcome).Observe(duration.Seconds())
	}
}

// ObserveBalanceCheck records a provider balance call.
func ObserveBalanceCheck(result string, duration time.Duration) {
	if result == "" {
		result = "unknown"
	}
	if balanceCheckTotal != nil {
		balanceCheckTotal.WithLabelValues(result).Inc()
	}
	if balanceCheckLatency != nil {
		balanceCheckLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// IncReconcile records a reconciliation attempt.
func IncReconcile(outcome string) {
	if outcome == "" {
		outcome = "unknown"
	}
	if reconcileTotal != nil {
		reconcileTotal.WithLabelValues(outcome).Inc()
	}
}
