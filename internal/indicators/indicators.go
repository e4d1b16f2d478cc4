// Package indicators computes technical indicators over a candle
// series. Every function is pure and side-effect-free: given the same
// Candle slice it always returns the same series, leading NaNs are
// propagated rather than raised, and nothing here mutates its input.
package indicators

import (
	"math"

	"tradingengine/internal/model"

	"github.com/markcheno/go-talib"
)

// ohlcv is the unpacked column view indicators compute over; talib's
// functions all take plain []float64 series rather than structs.
type ohlcv struct {
	open, high, low, close, volume []float64
}

func unpack(candles []model.Candle) ohlcv {
	n := len(candles)
	o := ohlcv{
		open:   make([]float64, n),
		high:   make([]float64, n),
		low:    make([]float64, n),
		close:  make([]float64, n),
		volume: make([]float64, n),
	}
	for i, c := range candles {
		o.open[i], _ = c.Open.Float64()
		o.high[i], _ = c.High.Float64()
		o.low[i], _ = c.Low.Float64()
		o.close[i], _ = c.Close.Float64()
		o.volume[i], _ = c.Volume.Float64()
	}
	return o
}

// Compute produces the full indicator set requires for
// one symbol/timeframe candle window.
func Compute(symbol, timeframe string, candles []model.Candle) model.Indicators {
	ind := model.Indicators{Symbol: symbol, Timeframe: timeframe, Series: make(map[string]model.IndicatorSeries)}
	if len(candles) == 0 {
		return ind
	}
	c := unpack(candles)

	add := func(name string, values []float64) {
		ind.Series[name] = model.IndicatorSeries{Name: name, Values: values}
	}

	add("sma_20", talib.Sma(c.close, 20))
	add("sma_50", talib.Sma(c.close, 50))
	add("sma_200", talib.Sma(c.close, 200))
	add("ema_20", talib.Ema(c.close, 20))
	add("ema_50", talib.Ema(c.close, 50))
	add("ema_200", talib.Ema(c.close, 200))

	macd, macdSignal, macdHist := talib.Macd(c.close, 12, 26, 9)
	add("macd", macd)
	add("macd_signal", macdSignal)
	add("macd_hist", macdHist)

	add("rsi_6", talib.Rsi(c.close, 6))
	add("rsi_14", talib.Rsi(c.close, 14))
	add("rsi_24", talib.Rsi(c.close, 24))

	stochK, stochD := talib.StochRsi(c.close, 14, 5, 3, talib.SMA)
	add("stoch_rsi_k", stochK)
	add("stoch_rsi_d", stochD)

	bbUpper, bbMiddle, bbLower := talib.BBands(c.close, 20, 2, 2, talib.SMA)
	add("bb_upper", bbUpper)
	add("bb_middle", bbMiddle)
	add("bb_lower", bbLower)

	keltUpper, keltMiddle, keltLower := keltnerChannels(c, 20, 2)
	add("keltner_upper", keltUpper)
	add("keltner_middle", keltMiddle)
	add("keltner_lower", keltLower)

	atr := talib.Atr(c.high, c.low, c.close, 14)
	add("atr", atr)
	add("atr_pct", ratioOf(atr, c.close))

	add("adx", talib.Adx(c.high, c.low, c.close, 14))
	add("plus_di", talib.PlusDI(c.high, c.low, c.close, 14))
	add("minus_di", talib.MinusDI(c.high, c.low, c.close, 14))

	add("obv", talib.Obv(c.close, c.volume))
	volSMA := talib.Sma(c.volume, 20)
	add("volume_sma", volSMA)
	add("volume_ratio", ratioOf(c.volume, volSMA))

	add("mfi", talib.Mfi(c.high, c.low, c.close, c.volume, 14))

	tenkan, kijun, senkouA, senkouB, chikou := ichimoku(c)
	add("ichimoku_tenkan", tenkan)
	add("ichimoku_kijun", kijun)
	add("ichimoku_senkou_a", senkouA)
	add("ichimoku_senkou_b", senkouB)
	add("ichimoku_chikou", chikou)

	add("vwap", sessionVWAP(c))
	add("cmf", chaikinMoneyFlow(c, 20))

	superTrend, superDir := supertrend(c, 10, 3)
	add("supertrend", superTrend)
	add("supertrend_direction", superDir)

	add("price_position", pricePosition(c.close, bbUpper, bbLower))
	add("trend_strength", trendStrength(talib.Adx(c.high, c.low, c.close, 14)))
	add("volatility_ratio", volatilityRatio(atr))

	return ind
}

// ratioOf computes a[i]/b[i] elementwise, propagating NaN on a zero or
// NaN denominator instead of dividing by zero.
func ratioOf(a, b []float64) []float64 {
	out := make([]float64, len(a))
	for i := range a {
		if i >= len(b) || b[i] == 0 || math.IsNaN(b[i]) {
			out[i] = math.NaN()
			continue
		}
		out[i] = a[i] / b[i]
	}
	return out
}

// pricePosition normalizes close into [0,1] within its Bollinger band,
// "normalized into band" derived aggregate.
func pricePosition(close, upper, lower []float64) []float64 {
	out := make([]float64, len(close))
	for i := range close {
		if i >= len(upper) || i >= len(lower) {
			out[i] = math.NaN()
			continue
		}
		width := upper[i] - lower[i]
		if width == 0 || math.IsNaN(width) {
			out[i] = math.NaN()
			continue
		}
		out[i] = (close[i] - lower[i]) / width
	}
	return out
}

// trendStrength buckets ADX into a normalized [0,1] strength score.
func trendStrength(adx []float64) []float64 {
	out := make([]float64, len(adx))
	for i, v := range adx {
		if math.IsNaN(v) {
			out[i] = math.NaN()
			continue
		}
		out[i] = math.Min(v/50.0, 1.0)
	}
	return out
}

// volatilityRatio is ATR vs its own 50-period SMA.
func volatilityRatio(atr []float64) []float64 {
	atrSMA := talib.Sma(atr, 50)
	return ratioOf(atr, atrSMA)
}
