package risk

import (
	"tradingengine/internal/model"

	"github.com/markcheno/go-talib"
)

// StopTarget is the result of ATR-based stop/target distance
// computation ("ATR stops"), expressed as fractions of
// entry price.
type StopTarget struct {
	StopDistance   float64
	TargetDistance float64
	UsedFallback   bool
}

// ComputeATRStops derives stop/target distances from recent candles,
// validates the stop against leverage-implied loss, and tightens it if
// that loss would exceed MaxLossPerPos. Falls back to the symbol's
// fixed percentages when ATR can't be computed.
func ComputeATRStops(candles []model.Candle, sym model.Symbol, leverage int, maxLossPerPos float64) StopTarget {
	atr, price, ok := latestATR(candles, sym.ATR.Period)
	if !ok || price == 0 {
		return StopTarget{StopDistance: sym.FallbackStopPct, TargetDistance: sym.FallbackTargetPct, UsedFallback: true}
	}

	stopDist := clampf(atr*sym.ATR.StopMult/price, sym.ATR.MinStopDist, sym.ATR.MaxStopDist)
	targetDist := atr * sym.ATR.TargetMult / price

	actualLoss := stopDist * float64(leverage)
	if actualLoss > maxLossPerPos {
		oldStop := stopDist
		stopDist = 0.7 / float64(leverage)
		targetDist *= stopDist / oldStop
	}

	return StopTarget{StopDistance: stopDist, TargetDistance: targetDist}
}

func latestATR(candles []model.Candle, period int) (atr, lastClose float64, ok bool) {
	if period <= 0 {
		period = 14
	}
	if len(candles) < period+1 {
		return 0, 0, false
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
	if last != last { // NaN
		return 0, 0, false
	}
	return last, closes[len(closes)-1], true
}
