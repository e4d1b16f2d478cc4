package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// DailyPerformance is one trading day's aggregate P&L and activity
// counters, persisted and refreshed through the Store (
// `getDailyPerformance`/`updateDailyPerformance`).
type DailyPerformance struct {
	Date         time.Time
	TradesOpened int
	TradesClosed int
	WinCount     int
	LossCount    int
	GrossPnL     decimal.Decimal
	Fees         decimal.Decimal
	NetPnL       decimal.Decimal
	PnLPct       float64
}

// SignalPrediction records one signal engine output for later outcome
// attribution, persisted through the Store (
// `recordSignalPrediction`/`updatePredictionOutcome`).
type SignalPrediction struct {
	ID          string
	Symbol      string
	Ts          time.Time
	Direction   Direction
	Score       float64
	Confidence  float64
	MLScore     float64
	Outcome     string // "", "correct", "incorrect", "no_trade"
	RealizedPnL float64
	Features    []float64 // the signal.FeatureVector snapshot at prediction time, for retraining
}

// SystemEvent is a structured, persisted log record written through
// `appendSystemEvent`. The engine records one when it force-closes a
// symbol's positions on an emergency; other non-fatal errors are only
// logged and produce no SystemEvent.
type SystemEvent struct {
	Ts        time.Time
	Level     string // "info", "warn", "error"
	Component string
	Message   string
	Context   map[string]string
}
