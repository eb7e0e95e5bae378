// FILE: metrics.go
// Package main – Prometheus metrics for observability.
//
// Exposes the primary metrics the engine updates during operation:
//   • bot_cycles_total                 – Completed scheduler cycles
//   • bot_evaluations_total{reason}    – Symbol evaluations by score reason
//   • bot_orders_total{result}         – Bracket submissions (placed|filled|failed)
//   • bot_suppressions_total{reason}   – Blacklist insertions by reason
//   • bot_closes_total                 – Reconciled position closes
//   • bot_open_positions               – Currently tracked/reported open positions
//   • bot_trades_today                 – Persisted daily trade counter
//   • bot_realized_pnl                 – Cumulative realized P/L since boot
//
// These are registered in init() and served by the HTTP handler started in
// main.go at /metrics (Prometheus text exposition format).

package main

import "github.com/prometheus/client_golang/prometheus"

var (
	mtxCycles = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "bot_cycles_total",
			Help: "Completed scheduler cycles",
		},
	)

	mtxEvaluations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_evaluations_total",
			Help: "Symbol evaluations by score reason",
		},
		[]string{"reason"},
	)

	mtxOrders = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_orders_total",
			Help: "Bracket order submissions by result",
		},
		[]string{"result"}, // placed|filled|failed
	)

	mtxSuppressions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_suppressions_total",
			Help: "Blacklist insertions by reason",
		},
		[]string{"reason"},
	)

	mtxCloses = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "bot_closes_total",
			Help: "Reconciled position closes",
		},
	)

	mtxOpenPositions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "bot_open_positions",
			Help: "Open positions reported by the gateway",
		},
	)

	mtxTradesToday = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "bot_trades_today",
			Help: "Trades opened today (persisted counter)",
		},
	)

	mtxRealizedPnL = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "bot_realized_pnl",
			Help: "Cumulative realized P/L since process start",
		},
	)
)

func init() {
	prometheus.MustRegister(
		mtxCycles,
		mtxEvaluations,
		mtxOrders,
		mtxSuppressions,
		mtxCloses,
		mtxOpenPositions,
		mtxTradesToday,
		mtxRealizedPnL,
	)
}
