package risk

import (
	"context"
	"time"

	"tradingengine/internal/model"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// KellyStore is the narrow persistence port KellyTracker reads and
// updates through; internal/store satisfies this.
type KellyStore interface {
	GetKellyStats(ctx context.Context, symbol string) (model.KellyStats, error)
	UpdateKelly(ctx context.Context, stats model.KellyStats) error
}

// KellyTracker folds realized trade outcomes into each symbol's rolling
// win/loss record, bounding the sample to SampleWindow trades so the
// Kelly suggestion tracks recent performance rather than all-time.
// PositionManager feeds it on every close; CapitalTracker's Allocate
// call reads the result back out through KellyStats.suggest.
type KellyTracker struct {
	store        KellyStore
	sampleWindow int
}

func NewKellyTracker(store KellyStore, sampleWindow int) *KellyTracker {
	if sampleWindow <= 0 {
		sampleWindow = 50
	}
	return &KellyTracker{store: store, sampleWindow: sampleWindow}
}

// RecordOutcome implements position.KellySink.
func (k *KellyTracker) RecordOutcome(symbol string, pnlPct float64, win bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stats, err := k.store.GetKellyStats(ctx, symbol)
	if err != nil {
		log.Warn().Err(err).Str("symbol", symbol).Msg("kelly tracker: failed to read stats")
		return
	}
	stats.Symbol = symbol

	magnitude := decimal.NewFromFloat(pnlPct).Abs()
	if win {
		stats.AvgWin = rollingAvg(stats.AvgWin, stats.Wins, magnitude)
		stats.Wins++
	} else {
		stats.AvgLoss = rollingAvg(stats.AvgLoss, stats.Losses, magnitude)
		stats.Losses++
	}
	if total := stats.Wins + stats.Losses; total > k.sampleWindow {
		excess := total - k.sampleWindow
		if stats.Wins >= excess {
			stats.Wins -= excess
		} else {
			stats.Losses -= excess - stats.Wins
			stats.Wins = 0
		}
	}
	stats.SampleWindow = k.sampleWindow

	if err := k.store.UpdateKelly(ctx, stats); err != nil {
		log.Warn().Err(err).Str("symbol", symbol).Msg("kelly tracker: failed to persist stats")
	}
}

func rollingAvg(prevAvg decimal.Decimal, prevCount int, sample decimal.Decimal) decimal.Decimal {
	if prevCount == 0 {
		return sample
	}
	total := prevAvg.Mul(decimal.NewFromInt(int64(prevCount))).Add(sample)
	return total.Div(decimal.NewFromInt(int64(prevCount + 1)))
}
