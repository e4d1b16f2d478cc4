// Package signal implements the SignalEngine pipeline: per-timeframe
// strategy analysis, regime classification, pattern detection, and the
// fusion step that combines technical, ML, and news components into
// one tradeable Signal per symbol per cycle.
package signal

import (
	"tradingengine/internal/model"
)

// StrategyResult is one strategy's read of a single candle/indicator
// window, before multi-timeframe combination.
type StrategyResult struct {
	Direction  model.Direction
	Score      float64 // [-1, 1]
	Confidence float64 // [0, 100]
}

// Strategy analyzes one symbol's candles/indicators into a directional
// read. Generalized from a single order-execution callback into a pure
// analysis step the multi-timeframe combiner calls once per configured
// timeframe.
type Strategy interface {
	Name() string
	Analyze(symbol string, candles []model.Candle, ind model.Indicators) StrategyResult
}

// subScores are the five weighted reads a strategy blends: trend,
// mean-reversion, momentum, volume, support/resistance.
type subScores struct {
	trend, meanReversion, momentum, volume, supportResistance float64
}

func computeSubScores(candles []model.Candle, ind model.Indicators) subScores {
	var s subScores

	ema20, _ := ind.Latest("ema_20")
	ema50, _ := ind.Latest("ema_50")
	sma200, _ := ind.Latest("sma_200")
	if close := lastClose(candles); close > 0 {
		s.trend = clamp(normalizedGap(close, ema20)*0.4+normalizedGap(close, ema50)*0.35+normalizedGap(close, sma200)*0.25, -1, 1)
	}

	bbUpper, _ := ind.Latest("bb_upper")
	bbLower, _ := ind.Latest("bb_lower")
	if close := lastClose(candles); bbUpper > bbLower {
		mid := (bbUpper + bbLower) / 2
		width := bbUpper - bbLower
		if width > 0 {
			s.meanReversion = clamp(-(close-mid)/(width/2), -1, 1)
		}
	}

	rsi14, _ := ind.Latest("rsi_14")
	macdHist, _ := ind.Latest("macd_hist")
	s.momentum = clamp((rsi14-50)/50*0.6+signOf(macdHist)*0.4, -1, 1)

	volRatio, _ := ind.Latest("volume_ratio")
	s.volume = clamp((volRatio-1)/2, -1, 1)

	pricePos, _ := ind.Latest("price_position")
	s.supportResistance = clamp((pricePos-0.5)*2, -1, 1)

	return s
}

func normalizedGap(close, ref float64) float64 {
	if ref == 0 {
		return 0
	}
	return (close - ref) / ref
}

func lastClose(candles []model.Candle) float64 {
	if len(candles) == 0 {
		return 0
	}
	f, _ := candles[len(candles)-1].Close.Float64()
	return f
}

func signOf(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func scoreToResult(score float64, threshold float64) StrategyResult {
	dir := model.Neutral
	if score > threshold {
		dir = model.Long
	} else if score < -threshold {
		dir = model.Short
	}
	confidence := clamp(50+abs(score)*50, 0, 100)
	return StrategyResult{Direction: dir, Score: clamp(score, -1, 1), Confidence: confidence}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// defaultStrategy is the "BTC-like" default: trend-weighted with a
// modest momentum tilt.
type defaultStrategy struct{}

func NewDefaultStrategy() Strategy { return defaultStrategy{} }

func (defaultStrategy) Name() string { return "btc-like" }

func (defaultStrategy) Analyze(symbol string, candles []model.Candle, ind model.Indicators) StrategyResult {
	s := computeSubScores(candles, ind)
	score := 0.35*s.trend + 0.25*s.momentum + 0.20*s.meanReversion + 0.10*s.volume + 0.10*s.supportResistance
	return scoreToResult(score, 0.3)
}

// ethLikeStrategy boosts momentum and weakens mean-reversion relative
// to the default, with a higher decision threshold.
type ethLikeStrategy struct{}

func NewETHLikeStrategy() Strategy { return ethLikeStrategy{} }

func (ethLikeStrategy) Name() string { return "eth-like" }

func (ethLikeStrategy) Analyze(symbol string, candles []model.Candle, ind model.Indicators) StrategyResult {
	s := computeSubScores(candles, ind)
	score := 0.35*s.trend + (0.25*1.2)*s.momentum + (0.20*0.8)*s.meanReversion + 0.10*s.volume + 0.10*s.supportResistance
	return scoreToResult(score, 0.5)
}
