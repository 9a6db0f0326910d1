package infrastructure

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	JobsSubmitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "backtest_jobs_submitted_total",
		Help: "Total number of backtest jobs accepted by the API",
	})

	JobsCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "backtest_jobs_finished_total",
		Help: "Total number of backtest jobs finished, by outcome",
	}, []string{"status"})

	SimulationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "backtest_simulation_duration_seconds",
		Help:    "Wall time of a single simulation run",
		Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
	})

	TradesSimulated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "backtest_trades_simulated_total",
		Help: "Total number of trade-log records produced by simulations",
	})

	BarsLoaded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "backtest_bars_loaded_total",
		Help: "Total number of historical bars loaded, by source",
	}, []string{"source"})

	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ws_connections_total",
		Help: "Total number of active WebSocket connections",
	})
)
