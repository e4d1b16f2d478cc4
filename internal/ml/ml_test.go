package ml

import (
	"math"
	"path/filepath"
	"testing"
	"time"

	"tradingengine/internal/model"
)

func syntheticSamples(n int) []Sample {
	samples := make([]Sample, n)
	for i := 0; i < n; i++ {
		x := float64(i%20) - 10
		samples[i] = Sample{Features: []float64{x, -x}, Target: clamp(x/10, -1, 1)}
	}
	return samples
}

func TestForestHead_TrainAndPredict(t *testing.T) {
	h := NewForestHead("f", 5, 4, 4, 2, 1)
	if h.IsTrained() {
		t.Fatal("expected untrained before Train")
	}
	if err := h.Train(syntheticSamples(60)); err != nil {
		t.Fatalf("Train: %v", err)
	}
	if !h.IsTrained() {
		t.Fatal("expected trained after Train")
	}
	score, confidence := h.Predict([]float64{8, -8})
	if score <= 0 {
		t.Errorf("expected positive score for strongly positive feature, got %v", score)
	}
	if confidence < 0 || confidence > 1 {
		t.Errorf("confidence out of range: %v", confidence)
	}
	if h.Performance().PredictionCount != 60 {
		t.Errorf("expected PredictionCount 60, got %d", h.Performance().PredictionCount)
	}
}

func TestGBTHead_TrainReducesResidual(t *testing.T) {
	h := NewGBTHead("g", 30, 0.1, 1.0, 3, 2, 2)
	samples := syntheticSamples(80)
	if err := h.Train(samples); err != nil {
		t.Fatalf("Train: %v", err)
	}
	if !h.IsTrained() {
		t.Fatal("expected trained")
	}
	if h.Performance().R2 < 0 {
		t.Errorf("expected non-negative R2 on learnable synthetic data, got %v", h.Performance().R2)
	}
}

func TestMLPHead_TrainAndPredictInRange(t *testing.T) {
	h := NewMLPHead("m", 6, 50, 0.05, 3)
	if err := h.Train(syntheticSamples(40)); err != nil {
		t.Fatalf("Train: %v", err)
	}
	score, confidence := h.Predict([]float64{5, -5})
	if score < -1 || score > 1 {
		t.Errorf("score out of range: %v", score)
	}
	if confidence < 0 || confidence > 1 {
		t.Errorf("confidence out of range: %v", confidence)
	}
}

func TestMLPHead_Untrained_ReturnsZero(t *testing.T) {
	h := NewMLPHead("m", 4, 1, 0.1, 1)
	score, confidence := h.Predict([]float64{1, 2})
	if score != 0 || confidence != 0 {
		t.Errorf("expected zero score/confidence before training, got %v/%v", score, confidence)
	}
}

func TestEnsemble_Predict_NoHeadsTrained_ReturnsZeroConfidence(t *testing.T) {
	e := NewEnsemble(24*time.Hour, 1)
	pred := e.Predict([]float64{1, 2})
	if pred.Confidence != 0 {
		t.Errorf("expected zero confidence with nothing trained, got %v", pred.Confidence)
	}
	for name, out := range pred.PerModel {
		if out.Trained {
			t.Errorf("head %s reported trained with nothing trained", name)
		}
	}
}

func TestEnsemble_Train_AllHeadsReported(t *testing.T) {
	e := NewEnsemble(24*time.Hour, 7)
	report := e.Train(syntheticSamples(100))
	if len(report.Trained) != 4 {
		t.Fatalf("expected 4 heads trained, got %d: %v", len(report.Trained), report.Trained)
	}
	if len(report.Failed) != 0 {
		t.Errorf("expected no failures, got %v", report.Failed)
	}

	pred := e.Predict([]float64{9, -9})
	if pred.Confidence <= 0 {
		t.Errorf("expected positive confidence once trained, got %v", pred.Confidence)
	}
	if len(pred.PerModel) != 4 {
		t.Errorf("expected 4 per-model entries, got %d", len(pred.PerModel))
	}
	weightSum := 0.0
	for _, out := range pred.PerModel {
		weightSum += out.Weight
	}
	if math.Abs(weightSum-1) > 1e-6 {
		t.Errorf("expected normalized weights to sum to 1, got %v", weightSum)
	}
}

func TestEnsemble_ShouldRetrain(t *testing.T) {
	e := NewEnsemble(time.Hour, 1)
	if !e.ShouldRetrain(time.Now()) {
		t.Fatal("expected ShouldRetrain true before any training")
	}
	e.Train(syntheticSamples(40))
	if e.ShouldRetrain(time.Now()) {
		t.Fatal("expected ShouldRetrain false immediately after training")
	}
	if !e.ShouldRetrain(time.Now().Add(2 * time.Hour)) {
		t.Fatal("expected ShouldRetrain true once stale")
	}
}

func TestEnsemble_PersistRestore_RoundTrips(t *testing.T) {
	e := NewEnsemble(24*time.Hour, 3)
	e.Train(syntheticSamples(60))
	before := e.Predict([]float64{7, -7})

	dir := t.TempDir()
	path := filepath.Join(dir, "models.gob")
	if err := e.Persist(path); err != nil {
		t.Fatalf("Persist: %v", err)
	}

	restored := NewEnsemble(24*time.Hour, 3)
	if err := restored.Restore(path); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	after := restored.Predict([]float64{7, -7})

	if math.Abs(before.Score-after.Score) > 1e-9 {
		t.Errorf("expected restored prediction to match persisted prediction: before=%v after=%v", before.Score, after.Score)
	}
	for name, out := range after.PerModel {
		if !out.Trained {
			t.Errorf("head %s not trained after restore", name)
		}
	}
}

func TestEnsemble_Restore_MissingFile_NotAnError(t *testing.T) {
	e := NewEnsemble(24*time.Hour, 1)
	if err := e.Restore(filepath.Join(t.TempDir(), "missing.gob")); err != nil {
		t.Fatalf("expected nil error for missing file, got %v", err)
	}
	if e.Predict([]float64{1}).Confidence != 0 {
		t.Error("expected ensemble to remain untrained after missing-file restore")
	}
}

func TestFallback_UsesIndicatorHeuristics(t *testing.T) {
	ind := model.Indicators{
		Symbol: "BTCUSDT",
		Series: map[string]model.IndicatorSeries{
			"rsi_14":    {Values: []float64{20}},
			"macd_hist": {Values: []float64{0.05}},
			"bb_upper":  {Values: []float64{110}},
			"bb_lower":  {Values: []float64{90}},
		},
	}
	pred := Fallback(ind, 92)
	if pred.Score <= 0 {
		t.Errorf("expected bullish fallback score for oversold RSI + near-lower-band price, got %v", pred.Score)
	}
	if pred.Confidence <= 0 || pred.Confidence > 0.4 {
		t.Errorf("expected low bounded fallback confidence, got %v", pred.Confidence)
	}
	if len(pred.PerModel) != 3 {
		t.Errorf("expected 3 fallback signals, got %d", len(pred.PerModel))
	}
}

func TestFallback_NoIndicators_ReturnsZero(t *testing.T) {
	pred := Fallback(model.Indicators{Series: map[string]model.IndicatorSeries{}}, 0)
	if pred.Score != 0 || pred.Confidence != 0 {
		t.Errorf("expected zero prediction with no indicators, got %+v", pred)
	}
}

func TestRSIScore_Monotonic(t *testing.T) {
	if rsiScore(20) <= rsiScore(25) {
		t.Error("expected more oversold RSI to score more bullish")
	}
	if rsiScore(80) >= rsiScore(75) {
		t.Error("expected more overbought RSI to score more bearish")
	}
	if rsiScore(50) != 0 {
		t.Errorf("expected neutral RSI to score 0, got %v", rsiScore(50))
	}
}
