package risk

import (
	"context"
	"testing"

	"tradingengine/internal/model"

	"github.com/shopspring/decimal"
)

type fakeKellyStore struct {
	stats map[string]model.KellyStats
}

func newFakeKellyStore() *fakeKellyStore {
	return &fakeKellyStore{stats: make(map[string]model.KellyStats)}
}

func (f *fakeKellyStore) GetKellyStats(ctx context.Context, symbol string) (model.KellyStats, error) {
	if s, ok := f.stats[symbol]; ok {
		return s, nil
	}
	return model.KellyStats{Symbol: symbol}, nil
}

func (f *fakeKellyStore) UpdateKelly(ctx context.Context, stats model.KellyStats) error {
	f.stats[stats.Symbol] = stats
	return nil
}

func TestKellyTracker_RecordOutcome_AccumulatesWinsAndLosses(t *testing.T) {
	store := newFakeKellyStore()
	tracker := NewKellyTracker(store, 50)

	tracker.RecordOutcome("BTCUSDT", 0.02, true)
	tracker.RecordOutcome("BTCUSDT", 0.01, true)
	tracker.RecordOutcome("BTCUSDT", 0.03, false)

	stats := store.stats["BTCUSDT"]
	if stats.Wins != 2 {
		t.Errorf("expected 2 wins, got %d", stats.Wins)
	}
	if stats.Losses != 1 {
		t.Errorf("expected 1 loss, got %d", stats.Losses)
	}
	if !stats.AvgWin.Equal(decimal.NewFromFloat(0.015)) {
		t.Errorf("expected rolling avg win 0.015, got %s", stats.AvgWin)
	}
	if !stats.AvgLoss.Equal(decimal.NewFromFloat(0.03)) {
		t.Errorf("expected avg loss 0.03, got %s", stats.AvgLoss)
	}
}

func TestKellyTracker_RecordOutcome_BoundsToSampleWindow(t *testing.T) {
	store := newFakeKellyStore()
	tracker := NewKellyTracker(store, 5)

	for i := 0; i < 8; i++ {
		tracker.RecordOutcome("ETHUSDT", 0.01, true)
	}

	stats := store.stats["ETHUSDT"]
	if stats.Wins+stats.Losses != 5 {
		t.Errorf("expected sample window to cap total trades at 5, got %d", stats.Wins+stats.Losses)
	}
	if stats.SampleWindow != 5 {
		t.Errorf("expected SampleWindow to be recorded as 5, got %d", stats.SampleWindow)
	}
}

func TestNewKellyTracker_DefaultsNonPositiveWindow(t *testing.T) {
	tracker := NewKellyTracker(newFakeKellyStore(), 0)
	if tracker.sampleWindow != 50 {
		t.Errorf("expected default sample window 50, got %d", tracker.sampleWindow)
	}
}
