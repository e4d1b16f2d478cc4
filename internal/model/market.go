package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Candle is one OHLCV bar for a symbol/timeframe pair.
type Candle struct {
	Symbol    string
	Timeframe string
	OpenTime  time.Time
	Open      decimal.Decimal
	High      decimal.Decimal
	Low       decimal.Decimal
	Close     decimal.Decimal
	Volume    decimal.Decimal
}

// Tick is a single trade print from the live feed.
type Tick struct {
	Symbol string
	Price  decimal.Decimal
	Qty    decimal.Decimal
	Side   Direction
	Ts     time.Time
}

// BookSnapshot is a best-bid/ask depth snapshot from the live feed.
type BookSnapshot struct {
	Symbol  string
	BidPx   decimal.Decimal
	AskPx   decimal.Decimal
	BidVol  decimal.Decimal
	AskVol  decimal.Decimal
	Ts      time.Time
}

// MidPrice returns the mid of bid/ask.
func (b BookSnapshot) MidPrice() decimal.Decimal {
	return b.BidPx.Add(b.AskPx).Div(decimal.NewFromInt(2))
}

// Imbalance returns (bidVol-askVol)/(bidVol+askVol), zero when both sides
// are empty.
func (b BookSnapshot) Imbalance() float64 {
	sum := b.BidVol.Add(b.AskVol)
	if sum.IsZero() {
		return 0
	}
	return b.BidVol.Sub(b.AskVol).Div(sum).InexactFloat64()
}

// IndicatorSeries holds one named indicator's values aligned to a candle
// series (same length and ordering as the Candle slice it was computed
// from).
type IndicatorSeries struct {
	Name   string
	Values []float64
}

// Indicators is the full computed indicator set for one symbol/timeframe,
// keyed by indicator name (e.g. "rsi_14", "macd_hist", "atr").
type Indicators struct {
	Symbol    string
	Timeframe string
	Series    map[string]IndicatorSeries
}

// Latest returns the most recent value of a named series, and false if
// the series is absent or empty.
func (i Indicators) Latest(name string) (float64, bool) {
	s, ok := i.Series[name]
	if !ok || len(s.Values) == 0 {
		return 0, false
	}
	return s.Values[len(s.Values)-1], true
}
