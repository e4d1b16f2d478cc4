package indicators

import (
	"math"

	"github.com/markcheno/go-talib"
)

// keltnerChannels computes Keltner Channels: an EMA midline plus/minus
// a multiple of ATR. talib has no direct equivalent, so this composes
// its Ema and Atr primitives the way the rest of this package does.
func keltnerChannels(c ohlcv, period int, atrMult float64) (upper, middle, lower []float64) {
	middle = talib.Ema(c.close, period)
	atr := talib.Atr(c.high, c.low, c.close, period)
	n := len(middle)
	upper = make([]float64, n)
	lower = make([]float64, n)
	for i := 0; i < n; i++ {
		if math.IsNaN(middle[i]) || i >= len(atr) || math.IsNaN(atr[i]) {
			upper[i], lower[i] = math.NaN(), math.NaN()
			continue
		}
		upper[i] = middle[i] + atrMult*atr[i]
		lower[i] = middle[i] - atrMult*atr[i]
	}
	return upper, middle, lower
}

// ichimoku computes the five Ichimoku Cloud components using the
// standard 9/26/52 periods, shifted senkou spans 26 periods forward
// and chikou span 26 periods back, matching the indicator's canonical
// definition.
func ichimoku(c ohlcv) (tenkan, kijun, senkouA, senkouB, chikou []float64) {
	n := len(c.close)
	tenkan = midpointChannel(c.high, c.low, 9)
	kijun = midpointChannel(c.high, c.low, 26)
	senkouBRaw := midpointChannel(c.high, c.low, 52)

	senkouA = make([]float64, n)
	senkouB = make([]float64, n)
	chikou = make([]float64, n)
	for i := 0; i < n; i++ {
		senkouA[i] = math.NaN()
		senkouB[i] = math.NaN()
		chikou[i] = math.NaN()
	}
	for i := 0; i+26 < n; i++ {
		if !math.IsNaN(tenkan[i]) && !math.IsNaN(kijun[i]) {
			senkouA[i+26] = (tenkan[i] + kijun[i]) / 2
		}
		if !math.IsNaN(senkouBRaw[i]) {
			senkouB[i+26] = senkouBRaw[i]
		}
	}
	for i := 26; i < n; i++ {
		chikou[i-26] = c.close[i]
	}
	return tenkan, kijun, senkouA, senkouB, chikou
}

// midpointChannel is (highest-high + lowest-low) / 2 over a trailing
// window, the shared core of Ichimoku's tenkan/kijun/senkou-B lines.
func midpointChannel(high, low []float64, period int) []float64 {
	n := len(high)
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		if i+1 < period {
			out[i] = math.NaN()
			continue
		}
		hh, ll := high[i], low[i]
		for j := i - period + 1; j <= i; j++ {
			if high[j] > hh {
				hh = high[j]
			}
			if low[j] < ll {
				ll = low[j]
			}
		}
		out[i] = (hh + ll) / 2
	}
	return out
}

// sessionVWAP is a cumulative volume-weighted average price over the
// whole candle window (no session reset, since candles here carry no
// exchange-session boundary).
func sessionVWAP(c ohlcv) []float64 {
	n := len(c.close)
	out := make([]float64, n)
	var cumPV, cumV float64
	for i := 0; i < n; i++ {
		typical := (c.high[i] + c.low[i] + c.close[i]) / 3
		cumPV += typical * c.volume[i]
		cumV += c.volume[i]
		if cumV == 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = cumPV / cumV
	}
	return out
}

// chaikinMoneyFlow sums money-flow-volume over period and divides by
// summed volume over the same window.
func chaikinMoneyFlow(c ohlcv, period int) []float64 {
	n := len(c.close)
	mfv := make([]float64, n)
	for i := 0; i < n; i++ {
		rang := c.high[i] - c.low[i]
		if rang == 0 {
			mfv[i] = 0
			continue
		}
		mult := ((c.close[i] - c.low[i]) - (c.high[i] - c.close[i])) / rang
		mfv[i] = mult * c.volume[i]
	}
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		if i+1 < period {
			out[i] = math.NaN()
			continue
		}
		var sumMFV, sumVol float64
		for j := i - period + 1; j <= i; j++ {
			sumMFV += mfv[j]
			sumVol += c.volume[j]
		}
		if sumVol == 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = sumMFV / sumVol
	}
	return out
}

// supertrend computes the Supertrend line and its direction (+1 up,
// -1 down) from ATR bands flipped on a close-through-band event.
func supertrend(c ohlcv, period int, mult float64) (line, direction []float64) {
	n := len(c.close)
	atr := talib.Atr(c.high, c.low, c.close, period)
	line = make([]float64, n)
	direction = make([]float64, n)

	var prevUpper, prevLower, prevLine float64
	prevDir := 1.0
	for i := 0; i < n; i++ {
		if math.IsNaN(atr[i]) {
			line[i], direction[i] = math.NaN(), math.NaN()
			continue
		}
		mid := (c.high[i] + c.low[i]) / 2
		upper := mid + mult*atr[i]
		lower := mid - mult*atr[i]

		if i > 0 && !math.IsNaN(prevLine) {
			if c.close[i-1] <= prevUpper {
				upper = math.Min(upper, prevUpper)
			}
			if c.close[i-1] >= prevLower {
				lower = math.Max(lower, prevLower)
			}
		}

		dir := prevDir
		switch {
		case c.close[i] > upper:
			dir = 1
		case c.close[i] < lower:
			dir = -1
		}

		cur := lower
		if dir < 0 {
			cur = upper
		}
		line[i] = cur
		direction[i] = dir

		prevUpper, prevLower, prevLine, prevDir = upper, lower, cur, dir
	}
	return line, direction
}
