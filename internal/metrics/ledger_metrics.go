package metrics

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func registerLedgerMetrics(pending PendingCounter, logger *slog.Logger) {
	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "bills_pending_settlement",
			Help: "Bills currently in PENDING_SETTLEMENT",
		},
		func() float64 {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			n, err := pending.CountPendingBills(ctx)
			if err != nil {
				if logger != nil {
					logger.Warn("metrics query failed", "error", err)
				}
				return 0
			}
			return float64(n)
		},
	))
}
