package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Interfaces for metrics to avoid circular imports
type MetricsCounter interface {
	Inc()
}

type MetricsGauge interface {
	Set(float64)
	Add(float64)
}

type MetricsHistogram interface {
	Observe(float64)
}

// Legacy interfaces for compatibility
type Counter = MetricsCounter
type Gauge = MetricsGauge
type Histogram = MetricsHistogram

// MetricsWrapper provides accessor-style access to a handful of
// order and position metrics.
type MetricsWrapper struct {
	m *Metrics
}

func NewWrapper(m *Metrics) *MetricsWrapper {
	return &MetricsWrapper{m: m}
}

func (w *MetricsWrapper) OrdersTotal() MetricsCounter {
	return &CounterWrapper{w.m.OrdersTotal}
}

func (w *MetricsWrapper) PnLTotal() MetricsGauge {
	return &GaugeWrapper{w.m.PnLTotal}
}

func (w *MetricsWrapper) OrderExecutionDuration() MetricsHistogram {
	return &HistogramWrapper{w.m.OrderExecutionDuration}
}

func (w *MetricsWrapper) UpdatePositions(positions map[string]float64) {
	w.m.UpdatePositions(positions)
}

type CounterWrapper struct {
	c prometheus.Counter
}

func (cw *CounterWrapper) Inc() {
	cw.c.Inc()
}

type GaugeWrapper struct {
	g prometheus.Gauge
}

func (gw *GaugeWrapper) Set(v float64) {
	gw.g.Set(v)
}

func (gw *GaugeWrapper) Add(v float64) {
	gw.g.Add(v)
}

type HistogramWrapper struct {
	h prometheus.Histogram
}

func (hw *HistogramWrapper) Observe(v float64) {
	hw.h.Observe(v)
}

// Recorder is a flat facade over Metrics, one method per event a
// consumer package reports — kept separate from the accessor-style
// MetricsWrapper above because the narrow interfaces those consumer
// packages declare locally (orderMetrics in internal/exchange, the
// Metrics port in internal/engine, and their counterparts elsewhere)
// call a single method per event
// rather than fetching a Counter/Gauge/Histogram handle first.
type Recorder struct {
	m *Metrics
}

func NewRecorder(m *Metrics) *Recorder {
	return &Recorder{m: m}
}

// internal/exchange's orderMetrics port.
func (r *Recorder) OrderTimeoutsInc()                               { r.m.OrderTimeouts.Inc() }
func (r *Recorder) OrderRetriesInc()                                { r.m.OrderRetries.Inc() }
func (r *Recorder) OrderExecutionDurationObserve(seconds float64)   { r.m.OrderExecutionDuration.Observe(seconds) }
func (r *Recorder) WSReconnectsInc()                                { r.m.WSReconnects.Inc() }
func (r *Recorder) CircuitBreakerTripsInc()                         { r.m.CircuitBreakerTrips.Inc() }
func (r *Recorder) OrdersTotalInc()                                 { r.m.OrdersTotal.Inc() }

// internal/marketdata.
func (r *Recorder) TradesReceivedInc()  { r.m.TradesReceived.Inc() }
func (r *Recorder) DepthsReceivedInc()  { r.m.DepthsReceived.Inc() }
func (r *Recorder) DataStaleInc()       { r.m.DataStaleTotal.Inc() }

// Feature/indicator calculation.
func (r *Recorder) FeatureErrorsInc()                         { r.m.FeatureErrors.Inc() }
func (r *Recorder) FeatureCalcDuration(d time.Duration)       { r.m.FeatureCalcDuration.Observe(d.Seconds()) }
func (r *Recorder) FeatureSampleCount(count int)              { r.m.FeatureSampleCount.Set(float64(count)) }
func (r *Recorder) VWAPCalculationsInc()                      { r.m.VWAPCalculations.Inc() }

// internal/ml's ensemble.
func (r *Recorder) MLPredictionsInc()                  { r.m.MLPredictions.Inc() }
func (r *Recorder) MLFailuresInc()                     { r.m.MLFailures.Inc() }
func (r *Recorder) MLTimeoutsInc()                     { r.m.MLTimeouts.Inc() }
func (r *Recorder) MLFallbackUseInc()                  { r.m.MLFallbackUse.Inc() }
func (r *Recorder) MLRetrainsInc()                     { r.m.MLRetrains.Inc() }
func (r *Recorder) MLModelAgeSet(seconds float64)      { r.m.MLModelAge.Set(seconds) }
func (r *Recorder) MLLatencyObserve(seconds float64)   { r.m.MLLatency.Observe(seconds) }
func (r *Recorder) MLAccuracyObserve(v float64)        { r.m.MLAccuracy.Observe(v) }
func (r *Recorder) MLPredictionScoreObserve(v float64) { r.m.MLPredictionScores.Observe(v) }

// internal/signal.
func (r *Recorder) SignalsGeneratedInc()  { r.m.SignalsGenerated.Inc() }
func (r *Recorder) SignalsSuppressedInc() { r.m.SignalsSuppressed.Inc() }

// internal/news.
func (r *Recorder) NewsFetchedInc()           { r.m.NewsFetched.Inc() }
func (r *Recorder) NewsFilteredInc()          { r.m.NewsFiltered.Inc() }
func (r *Recorder) NewsEmergencyTriggersInc() { r.m.NewsEmergencyTriggers.Inc() }

// internal/risk.
func (r *Recorder) RiskChecksBlockedInc()        { r.m.RiskChecksBlocked.Inc() }
func (r *Recorder) CapitalAllocatedSet(v float64) { r.m.CapitalAllocated.Set(v) }
func (r *Recorder) KellyFractionSet(v float64)    { r.m.KellyFraction.Set(v) }

// internal/position.
func (r *Recorder) PositionsOpenedInc()       { r.m.PositionsOpened.Inc() }
func (r *Recorder) PositionsClosedInc()       { r.m.PositionsClosed.Inc() }
func (r *Recorder) ActivePositionsSet(n int)  { r.m.ActivePositions.Set(float64(n)) }
func (r *Recorder) PnLTotalSet(v float64)     { r.m.PnLTotal.Set(v) }

// internal/notify.
func (r *Recorder) NotificationsDeliveredInc()            { r.m.NotificationsDelivered.Inc() }
func (r *Recorder) NotificationsDroppedInc()               { r.m.NotificationsDropped.Inc() }
func (r *Recorder) NotificationsSuppressedInc()            { r.m.NotificationsSuppressed.Inc() }
func (r *Recorder) NotificationRetryLatencyObserve(s float64) { r.m.NotificationRetryLatency.Observe(s) }

// internal/engine.
func (r *Recorder) CycleDurationObserve(seconds float64) { r.m.CycleDuration.Observe(seconds) }
func (r *Recorder) ErrorsTotalInc()                      { r.m.ErrorsTotal.Inc() }
