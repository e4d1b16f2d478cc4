package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
)

func TestNewWrapper(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewWithRegistry(registry)
	wrapper := NewWrapper(m)

	if wrapper == nil {
		t.Fatal("NewWrapper returned nil")
	}
	if wrapper.m != m {
		t.Error("wrapper does not contain correct metrics instance")
	}
}

func TestMetricsWrapper_CounterOperations(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewWithRegistry(registry)
	wrapper := NewWrapper(m)

	ordersCounter := wrapper.OrdersTotal()
	if ordersCounter == nil {
		t.Fatal("OrdersTotal returned nil counter")
	}

	initialValue := testutil.ToFloat64(m.OrdersTotal)
	if initialValue != 0 {
		t.Errorf("expected initial counter value 0, got %f", initialValue)
	}

	ordersCounter.Inc()
	if v := testutil.ToFloat64(m.OrdersTotal); v != 1 {
		t.Errorf("expected counter value 1 after increment, got %f", v)
	}

	ordersCounter.Inc()
	if v := testutil.ToFloat64(m.OrdersTotal); v != 2 {
		t.Errorf("expected counter value 2 after second increment, got %f", v)
	}
}

func TestMetricsWrapper_GaugeOperations(t *testing.T) {
	m := NewWithRegistry(prometheus.NewRegistry())
	wrapper := NewWrapper(m)

	pnlGauge := wrapper.PnLTotal()
	if pnlGauge == nil {
		t.Fatal("PnLTotal returned nil gauge")
	}

	pnlGauge.Set(123.45)
	if v := testutil.ToFloat64(m.PnLTotal); v != 123.45 {
		t.Errorf("expected gauge value 123.45, got %f", v)
	}

	pnlGauge.Add(10.55)
	want := 123.45 + 10.55
	if v := testutil.ToFloat64(m.PnLTotal); v != want {
		t.Errorf("expected gauge value %f after add, got %f", want, v)
	}

	pnlGauge.Add(-20.0)
	want = want - 20.0
	if v := testutil.ToFloat64(m.PnLTotal); v != want {
		t.Errorf("expected gauge value %f after negative add, got %f", want, v)
	}
}

func TestMetricsWrapper_HistogramOperations(t *testing.T) {
	m := NewWithRegistry(prometheus.NewRegistry())
	wrapper := NewWrapper(m)

	latencyHist := wrapper.OrderExecutionDuration()
	if latencyHist == nil {
		t.Fatal("OrderExecutionDuration returned nil histogram")
	}

	testValues := []float64{0.001, 0.005, 0.01, 0.05, 0.1}
	for _, value := range testValues {
		latencyHist.Observe(value)
	}

	var pb dto.Metric
	if err := m.OrderExecutionDuration.Write(&pb); err != nil {
		t.Fatalf("writing histogram: %v", err)
	}
	count := float64(pb.GetHistogram().GetSampleCount())
	if count != float64(len(testValues)) {
		t.Errorf("expected %d observations, got %f", len(testValues), count)
	}
}

func TestMetricsWrapper_UpdatePositions(t *testing.T) {
	m := NewWithRegistry(prometheus.NewRegistry())
	wrapper := NewWrapper(m)

	positions := map[string]float64{
		"BTCUSDT": 0.5,
		"ETHUSDT": -0.3,
		"ADAUSDT": 0.0,
	}
	wrapper.UpdatePositions(positions)

	if v := testutil.ToFloat64(m.ActivePositions); v != 2.0 {
		t.Errorf("expected 2 active positions, got %f", v)
	}
}

func TestRecorder_OrderMethods(t *testing.T) {
	m := NewWithRegistry(prometheus.NewRegistry())
	r := NewRecorder(m)

	r.OrderTimeoutsInc()
	r.OrderRetriesInc()
	r.OrderExecutionDurationObserve(0.25)

	if v := testutil.ToFloat64(m.OrderTimeouts); v != 1 {
		t.Errorf("expected 1 order timeout, got %f", v)
	}
	if v := testutil.ToFloat64(m.OrderRetries); v != 1 {
		t.Errorf("expected 1 order retry, got %f", v)
	}
}

func TestRecorder_MLMethods(t *testing.T) {
	m := NewWithRegistry(prometheus.NewRegistry())
	r := NewRecorder(m)

	r.MLPredictionsInc()
	if v := testutil.ToFloat64(m.MLPredictions); v != 1 {
		t.Errorf("expected 1 ML prediction, got %f", v)
	}

	r.MLFailuresInc()
	if v := testutil.ToFloat64(m.MLFailures); v != 1 {
		t.Errorf("expected 1 ML failure, got %f", v)
	}

	r.MLFallbackUseInc()
	if v := testutil.ToFloat64(m.MLFallbackUse); v != 1 {
		t.Errorf("expected 1 ML fallback use, got %f", v)
	}

	r.MLModelAgeSet(3600.0)
	if v := testutil.ToFloat64(m.MLModelAge); v != 3600.0 {
		t.Errorf("expected model age 3600.0, got %f", v)
	}

	// Histogram observations should not panic; exact bucket state isn't asserted.
	r.MLLatencyObserve(0.25)
	r.MLAccuracyObserve(0.85)
	r.MLPredictionScoreObserve(0.75)
}

func TestRecorder_FeatureMethods(t *testing.T) {
	m := NewWithRegistry(prometheus.NewRegistry())
	r := NewRecorder(m)

	r.FeatureErrorsInc()
	if v := testutil.ToFloat64(m.FeatureErrors); v != 1 {
		t.Errorf("expected 1 feature error, got %f", v)
	}

	r.FeatureSampleCount(42)
	if v := testutil.ToFloat64(m.FeatureSampleCount); v != 42 {
		t.Errorf("expected sample count 42, got %f", v)
	}
}

func TestRecorder_NotifyMethods(t *testing.T) {
	m := NewWithRegistry(prometheus.NewRegistry())
	r := NewRecorder(m)

	r.NotificationsDeliveredInc()
	r.NotificationsDroppedInc()
	r.NotificationsSuppressedInc()

	if v := testutil.ToFloat64(m.NotificationsDelivered); v != 1 {
		t.Errorf("expected 1 delivered notification, got %f", v)
	}
	if v := testutil.ToFloat64(m.NotificationsDropped); v != 1 {
		t.Errorf("expected 1 dropped notification, got %f", v)
	}
	if v := testutil.ToFloat64(m.NotificationsSuppressed); v != 1 {
		t.Errorf("expected 1 suppressed notification, got %f", v)
	}
}

func TestRecorder_MultipleIncrement(t *testing.T) {
	m := NewWithRegistry(prometheus.NewRegistry())
	r := NewRecorder(m)

	numIncrements := 10
	for i := 0; i < numIncrements; i++ {
		r.MLPredictionsInc()
	}

	if v := testutil.ToFloat64(m.MLPredictions); v != float64(numIncrements) {
		t.Errorf("expected %d ML predictions, got %f", numIncrements, v)
	}
}

func TestCounterWrapper_DirectUsage(t *testing.T) {
	counter := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "test_counter",
		Help: "Test counter for unit tests",
	})
	wrapper := &CounterWrapper{c: counter}

	wrapper.Inc()
	if v := testutil.ToFloat64(counter); v != 1 {
		t.Errorf("expected counter value 1, got %f", v)
	}
}

func TestGaugeWrapper_DirectUsage(t *testing.T) {
	gauge := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "test_gauge",
		Help: "Test gauge for unit tests",
	})
	wrapper := &GaugeWrapper{g: gauge}

	wrapper.Set(42.0)
	if v := testutil.ToFloat64(gauge); v != 42.0 {
		t.Errorf("expected gauge value 42.0, got %f", v)
	}

	wrapper.Add(8.0)
	if v := testutil.ToFloat64(gauge); v != 50.0 {
		t.Errorf("expected gauge value 50.0 after add, got %f", v)
	}
}

func TestHistogramWrapper_DirectUsage(t *testing.T) {
	histogram := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "test_histogram",
		Help:    "Test histogram for unit tests",
		Buckets: prometheus.DefBuckets,
	})
	wrapper := &HistogramWrapper{h: histogram}

	// Main assertion is that Observe does not panic.
	wrapper.Observe(0.5)
}

func TestRecorder_ConcurrentAccess(t *testing.T) {
	m := NewWithRegistry(prometheus.NewRegistry())
	r := NewRecorder(m)

	done := make(chan bool, 10)
	for i := 0; i < 10; i++ {
		go func() {
			for j := 0; j < 100; j++ {
				r.MLPredictionsInc()
				r.MLLatencyObserve(0.01)
				r.FeatureErrorsInc()
			}
			done <- true
		}()
	}
	for i := 0; i < 10; i++ {
		<-done
	}

	expected := 1000.0
	if v := testutil.ToFloat64(m.MLPredictions); v != expected {
		t.Errorf("expected %f predictions after concurrent access, got %f", expected, v)
	}
	if v := testutil.ToFloat64(m.FeatureErrors); v != expected {
		t.Errorf("expected %f feature errors after concurrent access, got %f", expected, v)
	}
}

func TestRecorder_NilGuard(t *testing.T) {
	r := &Recorder{m: nil}

	defer func() {
		if rec := recover(); rec == nil {
			t.Error("expected panic when accessing nil metrics")
		}
	}()
	r.MLPredictionsInc()
}

func BenchmarkRecorder_MLPredictionsInc(b *testing.B) {
	m := NewWithRegistry(prometheus.NewRegistry())
	r := NewRecorder(m)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		r.MLPredictionsInc()
	}
}

func BenchmarkRecorder_MLLatencyObserve(b *testing.B) {
	m := NewWithRegistry(prometheus.NewRegistry())
	r := NewRecorder(m)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		r.MLLatencyObserve(0.01)
	}
}

func BenchmarkMetricsWrapper_UpdatePositions(b *testing.B) {
	m := NewWithRegistry(prometheus.NewRegistry())
	wrapper := NewWrapper(m)

	positions := map[string]float64{
		"BTCUSDT": 0.5,
		"ETHUSDT": -0.3,
		"ADAUSDT": 0.0,
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		wrapper.UpdatePositions(positions)
	}
}
