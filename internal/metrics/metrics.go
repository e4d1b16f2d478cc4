// Package metrics provides Prometheus metrics collection for the trading
// engine. It defines and manages every counter, gauge, and histogram
// exposed via the Prometheus metrics endpoint for monitoring and
// alerting across the exchange, market data, indicators, signal, ML
// ensemble, news, risk, position, notification, and engine stages.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every Prometheus collector for the engine.
type Metrics struct {
	// Exchange / order execution
	OrdersTotal            prometheus.Counter
	OrderTimeouts          prometheus.Counter
	OrderRetries           prometheus.Counter
	OrderExecutionDuration prometheus.Histogram
	WSReconnects           prometheus.Counter
	CircuitBreakerTrips    prometheus.Counter

	// Market data
	TradesReceived prometheus.Counter
	DepthsReceived prometheus.Counter
	DataStaleTotal prometheus.Counter

	// Feature / indicator calculation
	FeatureErrors       prometheus.Counter
	FeatureCalcDuration prometheus.Histogram
	FeatureSampleCount  prometheus.Gauge
	VWAPCalculations    prometheus.Counter

	// ML ensemble
	MLPredictions      prometheus.Counter
	MLFailures         prometheus.Counter
	MLTimeouts         prometheus.Counter
	MLFallbackUse      prometheus.Counter
	MLRetrains         prometheus.Counter
	MLModelAge         prometheus.Gauge
	MLLatency          prometheus.Histogram
	MLAccuracy         prometheus.Histogram
	MLPredictionScores prometheus.Histogram

	// Signal engine
	SignalsGenerated  prometheus.Counter
	SignalsSuppressed prometheus.Counter

	// News pipeline
	NewsFetched           prometheus.Counter
	NewsFiltered          prometheus.Counter
	NewsEmergencyTriggers prometheus.Counter

	// Risk / capital
	RiskChecksBlocked prometheus.Counter
	CapitalAllocated  prometheus.Gauge
	KellyFraction     prometheus.Gauge

	// Position manager
	PositionsOpened prometheus.Counter
	PositionsClosed prometheus.Counter
	ActivePositions prometheus.Gauge
	PnLTotal        prometheus.Gauge

	// Notifier
	NotificationsDelivered   prometheus.Counter
	NotificationsDropped     prometheus.Counter
	NotificationsSuppressed  prometheus.Counter
	NotificationRetryLatency prometheus.Histogram

	// Engine / system
	CycleDuration prometheus.Histogram
	ErrorsTotal   prometheus.Counter
}

// New creates and registers all Prometheus metrics using the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates metrics against a custom registry, used in
// tests to avoid colliding with the global default registry.
func NewWithRegistry(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	return &Metrics{
		OrdersTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "orders_total",
			Help: "Total number of orders placed",
		}),
		OrderTimeouts: factory.NewCounter(prometheus.CounterOpts{
			Name: "order_timeouts_total",
			Help: "Total number of order execution timeouts",
		}),
		OrderRetries: factory.NewCounter(prometheus.CounterOpts{
			Name: "order_retries_total",
			Help: "Total number of order placement retries",
		}),
		OrderExecutionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "order_execution_duration_seconds",
			Help:    "Duration of order execution attempts in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15),
		}),
		WSReconnects: factory.NewCounter(prometheus.CounterOpts{
			Name: "ws_reconnects_total",
			Help: "Total number of WebSocket reconnections",
		}),
		CircuitBreakerTrips: factory.NewCounter(prometheus.CounterOpts{
			Name: "circuit_breaker_trips_total",
			Help: "Total number of times the exchange circuit breaker tripped",
		}),
		TradesReceived: factory.NewCounter(prometheus.CounterOpts{
			Name: "trades_received_total",
			Help: "Total number of trade messages received",
		}),
		DepthsReceived: factory.NewCounter(prometheus.CounterOpts{
			Name: "depths_received_total",
			Help: "Total number of depth messages received",
		}),
		DataStaleTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "data_stale_total",
			Help: "Total number of times a symbol was skipped for stale market data",
		}),
		FeatureErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "feature_errors_total",
			Help: "Total number of feature calculation errors",
		}),
		FeatureCalcDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "feature_calc_duration_seconds",
			Help:    "Duration of feature/indicator calculations in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		FeatureSampleCount: factory.NewGauge(prometheus.GaugeOpts{
			Name: "feature_sample_count",
			Help: "Number of samples processed by the most recent feature calculation",
		}),
		VWAPCalculations: factory.NewCounter(prometheus.CounterOpts{
			Name: "vwap_calculations_total",
			Help: "Total number of VWAP calculations performed",
		}),
		MLPredictions: factory.NewCounter(prometheus.CounterOpts{
			Name: "ml_predictions_total",
			Help: "Total number of ML ensemble predictions made",
		}),
		MLFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "ml_failures_total",
			Help: "Total number of ML prediction failures",
		}),
		MLTimeouts: factory.NewCounter(prometheus.CounterOpts{
			Name: "ml_timeouts_total",
			Help: "Total number of ML prediction timeouts",
		}),
		MLFallbackUse: factory.NewCounter(prometheus.CounterOpts{
			Name: "ml_fallback_use_total",
			Help: "Total number of times the heuristic fallback predictor was used",
		}),
		MLRetrains: factory.NewCounter(prometheus.CounterOpts{
			Name: "ml_retrains_total",
			Help: "Total number of ensemble retrain cycles completed",
		}),
		MLModelAge: factory.NewGauge(prometheus.GaugeOpts{
			Name: "ml_model_age_seconds",
			Help: "Age of the current ML ensemble model in seconds",
		}),
		MLLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "ml_latency_seconds",
			Help:    "ML prediction latency in seconds (end-to-end)",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}),
		MLAccuracy: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "ml_accuracy",
			Help:    "ML model prediction accuracy (when ground truth is available)",
			Buckets: []float64{0.5, 0.55, 0.6, 0.65, 0.7, 0.75, 0.8, 0.85, 0.9, 0.95, 1.0},
		}),
		MLPredictionScores: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "ml_prediction_scores",
			Help:    "Distribution of ML ensemble prediction confidence scores",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		}),
		SignalsGenerated: factory.NewCounter(prometheus.CounterOpts{
			Name: "signals_generated_total",
			Help: "Total number of tradeable signals generated",
		}),
		SignalsSuppressed: factory.NewCounter(prometheus.CounterOpts{
			Name: "signals_suppressed_total",
			Help: "Total number of signals suppressed by the entry gate",
		}),
		NewsFetched: factory.NewCounter(prometheus.CounterOpts{
			Name: "news_fetched_total",
			Help: "Total number of news items fetched",
		}),
		NewsFiltered: factory.NewCounter(prometheus.CounterOpts{
			Name: "news_filtered_total",
			Help: "Total number of news items dropped by relevance filtering",
		}),
		NewsEmergencyTriggers: factory.NewCounter(prometheus.CounterOpts{
			Name: "news_emergency_triggers_total",
			Help: "Total number of emergency de-risking events triggered by news",
		}),
		RiskChecksBlocked: factory.NewCounter(prometheus.CounterOpts{
			Name: "risk_checks_blocked_total",
			Help: "Total number of trade entries blocked by a pre-trade risk check",
		}),
		CapitalAllocated: factory.NewGauge(prometheus.GaugeOpts{
			Name: "capital_allocated_ratio",
			Help: "Current fraction of account equity allocated to open positions",
		}),
		KellyFraction: factory.NewGauge(prometheus.GaugeOpts{
			Name: "kelly_fraction",
			Help: "Most recently computed fractional-Kelly position size fraction",
		}),
		PositionsOpened: factory.NewCounter(prometheus.CounterOpts{
			Name: "positions_opened_total",
			Help: "Total number of positions opened",
		}),
		PositionsClosed: factory.NewCounter(prometheus.CounterOpts{
			Name: "positions_closed_total",
			Help: "Total number of positions closed",
		}),
		ActivePositions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "active_positions",
			Help: "Number of currently open positions",
		}),
		PnLTotal: factory.NewGauge(prometheus.GaugeOpts{
			Name: "pnl_total",
			Help: "Current total realized and unrealized profit and loss",
		}),
		NotificationsDelivered: factory.NewCounter(prometheus.CounterOpts{
			Name: "notifications_delivered_total",
			Help: "Total number of notifications successfully delivered",
		}),
		NotificationsDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "notifications_dropped_total",
			Help: "Total number of notifications dropped (queue full or retries exhausted)",
		}),
		NotificationsSuppressed: factory.NewCounter(prometheus.CounterOpts{
			Name: "notifications_suppressed_total",
			Help: "Total number of notifications suppressed as duplicates",
		}),
		NotificationRetryLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "notification_retry_latency_seconds",
			Help:    "Time spent retrying a notification before it was delivered or dropped",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		}),
		CycleDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "engine_cycle_duration_seconds",
			Help:    "Duration of one full trading cycle across all symbols",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
		ErrorsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "errors_total",
			Help: "Total number of non-fatal errors encountered",
		}),
	}
}

// UpdatePositions updates the active positions gauge from current
// position sizes keyed by symbol.
func (m *Metrics) UpdatePositions(positions map[string]float64) {
	count := 0
	for _, pos := range positions {
		if pos != 0 {
			count++
		}
	}
	m.ActivePositions.Set(float64(count))
}

// GetErrorRate returns the ratio of non-fatal errors to orders placed,
// as gathered from the default Prometheus registry.
func (m *Metrics) GetErrorRate() float64 {
	var totalOps, totalErrors float64

	metricFamilies, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		return 0
	}

	for _, mf := range metricFamilies {
		switch *mf.Name {
		case "orders_total":
			for _, m := range mf.Metric {
				totalOps = *m.Counter.Value
			}
		case "errors_total":
			for _, m := range mf.Metric {
				totalErrors = *m.Counter.Value
			}
		}
	}

	if totalOps == 0 {
		return 0
	}
	return totalErrors / totalOps
}
