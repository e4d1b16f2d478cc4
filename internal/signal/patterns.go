package signal

import (
	"tradingengine/internal/model"

	"github.com/shopspring/decimal"
)

// patternHit is one detected pattern's directional contribution,
// already sign-aligned to the MTF direction and confidence-weighted
// (step 3).
type patternHit struct {
	name          string
	expectedMove  float64
	confidence    float64
	alignsWithMTF bool
}

// detectPatterns is a best-effort booster: candlestick, chart, and
// indicator patterns. A conflicting pattern (one whose own direction
// disagrees with mtfDirection) is kept but weighted at half.
func detectPatterns(candles []model.Candle, ind model.Indicators, mtfDirection model.Direction) []patternHit {
	var hits []patternHit
	hits = append(hits, candlestickPatterns(candles, mtfDirection)...)
	hits = append(hits, chartPatterns(candles, mtfDirection)...)
	hits = append(hits, indicatorPatterns(ind, mtfDirection)...)
	return hits
}

// candlestickPatterns recognizes hammer/hanging-man, doji, engulfing,
// and three white soldiers/three black crows.
func candlestickPatterns(candles []model.Candle, mtfDirection model.Direction) []patternHit {
	if len(candles) < 2 {
		return nil
	}
	var hits []patternHit
	last := candles[len(candles)-1]
	prev := candles[len(candles)-2]

	lastOpen, _ := last.Open.Float64()
	lastClose, _ := last.Close.Float64()
	lastHigh, _ := last.High.Float64()
	lastLow, _ := last.Low.Float64()
	prevOpen, _ := prev.Open.Float64()
	prevClose, _ := prev.Close.Float64()

	body := abs(lastClose - lastOpen)
	fullRange := lastHigh - lastLow
	if fullRange > 0 && body/fullRange < 0.1 {
		hits = append(hits, alignHit("doji", 0.1, 40, model.Neutral, mtfDirection))
	}

	lowerWick := lastOpen - lastLow
	if lastClose < lastOpen {
		lowerWick = lastClose - lastLow
	}
	if fullRange > 0 && lowerWick/fullRange > 0.6 && body/fullRange < 0.3 {
		dir := model.Long
		hits = append(hits, alignHit("hammer", 0.3, 55, dir, mtfDirection))
	}

	bullishEngulf := prevClose < prevOpen && lastClose > lastOpen && lastClose > prevOpen && lastOpen < prevClose
	bearishEngulf := prevClose > prevOpen && lastClose < lastOpen && lastClose < prevOpen && lastOpen > prevClose
	if bullishEngulf {
		hits = append(hits, alignHit("bullish_engulfing", 0.4, 60, model.Long, mtfDirection))
	}
	if bearishEngulf {
		hits = append(hits, alignHit("bearish_engulfing", 0.4, 60, model.Short, mtfDirection))
	}

	hits = append(hits, threeBarPattern(candles, mtfDirection)...)

	return hits
}

// threeBarPattern recognizes three white soldiers / three black crows:
// three consecutive same-direction candles with progressively more
// extreme closes.
func threeBarPattern(candles []model.Candle, mtfDirection model.Direction) []patternHit {
	if len(candles) < 3 {
		return nil
	}
	last3 := candles[len(candles)-3:]
	opens := extractFloats(last3, func(c model.Candle) decimal.Decimal { return c.Open })
	closes := extractFloats(last3, func(c model.Candle) decimal.Decimal { return c.Close })

	allBullish := closes[0] > opens[0] && closes[1] > opens[1] && closes[2] > opens[2]
	allBearish := closes[0] < opens[0] && closes[1] < opens[1] && closes[2] < opens[2]

	switch {
	case allBullish && closes[0] < closes[1] && closes[1] < closes[2]:
		return []patternHit{alignHit("three_white_soldiers", 0.4, 80, model.Long, mtfDirection)}
	case allBearish && closes[0] > closes[1] && closes[1] > closes[2]:
		return []patternHit{alignHit("three_black_crows", 0.4, 80, model.Short, mtfDirection)}
	}
	return nil
}

// indicatorPatterns recognizes MACD cross and Bollinger squeeze from
// the already-computed indicator series.
func indicatorPatterns(ind model.Indicators, mtfDirection model.Direction) []patternHit {
	var hits []patternHit

	macdSeries, ok := ind.Series["macd"]
	signalSeries, ok2 := ind.Series["macd_signal"]
	if ok && ok2 && len(macdSeries.Values) >= 2 && len(signalSeries.Values) >= 2 {
		n := len(macdSeries.Values)
		prevDiff := macdSeries.Values[n-2] - signalSeries.Values[n-2]
		curDiff := macdSeries.Values[n-1] - signalSeries.Values[n-1]
		if prevDiff < 0 && curDiff > 0 {
			hits = append(hits, alignHit("macd_bullish_cross", 0.25, 55, model.Long, mtfDirection))
		} else if prevDiff > 0 && curDiff < 0 {
			hits = append(hits, alignHit("macd_bearish_cross", 0.25, 55, model.Short, mtfDirection))
		}
	}

	upper, _ := ind.Latest("bb_upper")
	lower, _ := ind.Latest("bb_lower")
	middle, _ := ind.Latest("bb_middle")
	if middle != 0 {
		width := (upper - lower) / middle
		if width > 0 && width < 0.02 {
			hits = append(hits, alignHit("bollinger_squeeze", 0.2, 45, model.Neutral, mtfDirection))
		}
	}

	return hits
}

func alignHit(name string, expectedMove, confidence float64, patternDir, mtfDirection model.Direction) patternHit {
	aligns := patternDir == mtfDirection || patternDir == model.Neutral
	if !aligns {
		confidence *= 0.5
		expectedMove *= 0.5
	}
	return patternHit{name: name, expectedMove: expectedMove, confidence: confidence, alignsWithMTF: aligns}
}

// patternScore aggregates pattern hits into the single [-1,1] score
// the fusion step consumes, sign-aligned to mtfDirection.
func patternScore(hits []patternHit, mtfDirection model.Direction) float64 {
	if len(hits) == 0 {
		return 0
	}
	sign := 1.0
	if mtfDirection == model.Short {
		sign = -1.0
	}
	var sum float64
	for _, h := range hits {
		sum += h.expectedMove * (h.confidence / 100)
	}
	return clamp(sign*sum, -1, 1)
}
