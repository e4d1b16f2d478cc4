package position

import (
	"tradingengine/internal/model"

	"github.com/markcheno/go-talib"
)

// atrFromCandles is a small local ATR read used only to detect whether
// volatility has moved enough to justify a stop re-evaluation; the
// actual stop/target sizing formula lives in internal/risk, which this
// package deliberately doesn't import to keep the dependency direction
// one-way (risk sizes a new position, position only decides whether to
// re-tighten an existing one).
func atrFromCandles(candles []model.Candle, period int) (float64, bool) {
	if period <= 0 {
		period = 14
	}
	if len(candles) < period+1 {
		return 0, false
	}
	high := make([]float64, len(candles))
	low := make([]float64, len(candles))
	closes := make([]float64, len(candles))
	for i, c := range candles {
		high[i], _ = c.High.Float64()
		low[i], _ = c.Low.Float64()
		closes[i], _ = c.Close.Float64()
	}
	series := talib.Atr(high, low, closes, period)
	last := series[len(series)-1]
	if last != last {
		return 0, false
	}
	return last, true
}
