package signal

import (
	"math"
	"sort"

	"tradingengine/internal/model"

	"github.com/shopspring/decimal"
)

// chartPatterns recognizes geometry over the candle window: nearby
// support/resistance, converging trendline triangles, and double
// top/bottom reversals. Each needs enough history to be meaningful, so
// a pattern silently contributes nothing until the window is long
// enough — the same "not yet enough data" tolerance detectPatterns
// already applies to candlestick patterns.
func chartPatterns(candles []model.Candle, mtfDirection model.Direction) []patternHit {
	var hits []patternHit
	hits = append(hits, supportResistancePattern(candles, mtfDirection)...)
	hits = append(hits, trianglePattern(candles, mtfDirection)...)
	hits = append(hits, doublePattern(candles, mtfDirection)...)
	return hits
}

// supportResistancePattern finds the nearest level above/below price
// that a rolling 20-candle high/low has revisited at least twice over
// the last 100 candles, and flags proximity within 1%.
func supportResistancePattern(candles []model.Candle, mtfDirection model.Direction) []patternHit {
	if len(candles) < 100 {
		return nil
	}
	recent := candles[len(candles)-100:]
	highs := extractFloats(recent, func(c model.Candle) decimal.Decimal { return c.High })
	lows := extractFloats(recent, func(c model.Candle) decimal.Decimal { return c.Low })
	currentPrice, _ := recent[len(recent)-1].Close.Float64()
	if currentPrice == 0 {
		return nil
	}

	resistance, resCount := mostRevisitedLevel(rollingMax(highs, 20), currentPrice, true)
	support, supCount := mostRevisitedLevel(rollingMin(lows, 20), currentPrice, false)

	var hits []patternHit
	if resCount >= 2 && (resistance-currentPrice)/currentPrice < 0.01 {
		hits = append(hits, alignHit("near_resistance", -0.02, 60, model.Short, mtfDirection))
	}
	if supCount >= 2 && (currentPrice-support)/currentPrice < 0.01 {
		hits = append(hits, alignHit("near_support", 0.02, 60, model.Long, mtfDirection))
	}
	return hits
}

// trianglePattern classifies the last 50 candles' converging (or
// parallel) high/low trendlines as ascending, descending, or
// symmetrical. Slopes are normalized by average price so the flatness
// threshold means the same thing across symbols of very different
// price scale.
func trianglePattern(candles []model.Candle, mtfDirection model.Direction) []patternHit {
	if len(candles) < 50 {
		return nil
	}
	recent := candles[len(candles)-50:]
	highs := rollingMax(extractFloats(recent, func(c model.Candle) decimal.Decimal { return c.High }), 5)
	lows := rollingMin(extractFloats(recent, func(c model.Candle) decimal.Decimal { return c.Low }), 5)

	avgPrice := average(highs)
	if avgPrice == 0 {
		return nil
	}
	highSlope := linearSlope(highs) / avgPrice
	lowSlope := linearSlope(lows) / avgPrice
	const flat = 0.0005

	switch {
	case abs(highSlope) < flat && lowSlope > flat:
		return []patternHit{alignHit("ascending_triangle", 0.3, 70, model.Long, mtfDirection)}
	case highSlope < -flat && abs(lowSlope) < flat:
		return []patternHit{alignHit("descending_triangle", -0.3, 70, model.Short, mtfDirection)}
	case abs(highSlope+lowSlope) < flat:
		return []patternHit{alignHit("symmetrical_triangle", 0, 50, model.Neutral, mtfDirection)}
	}
	return nil
}

// doublePattern looks for two similarly-priced (within 2%) local
// peaks or troughs over the last 100 candles — a double top or double
// bottom.
func doublePattern(candles []model.Candle, mtfDirection model.Direction) []patternHit {
	if len(candles) < 100 {
		return nil
	}
	recent := candles[len(candles)-100:]
	highs := extractFloats(recent, func(c model.Candle) decimal.Decimal { return c.High })
	lows := extractFloats(recent, func(c model.Candle) decimal.Decimal { return c.Low })
	rollingHigh := rollingMax(highs, 10)
	rollingLow := rollingMin(lows, 10)

	var peaks, troughs []float64
	for i := 20; i < len(recent)-5; i++ {
		if highs[i] == rollingHigh[i] {
			peaks = append(peaks, highs[i])
		}
		if lows[i] == rollingLow[i] {
			troughs = append(troughs, lows[i])
		}
	}

	var hits []patternHit
	if len(peaks) >= 2 {
		a, b := peaks[len(peaks)-2], peaks[len(peaks)-1]
		if a != 0 && abs(a-b)/a < 0.02 {
			hits = append(hits, alignHit("double_top", -0.4, 75, model.Short, mtfDirection))
		}
	}
	if len(troughs) >= 2 {
		a, b := troughs[len(troughs)-2], troughs[len(troughs)-1]
		if a != 0 && abs(a-b)/a < 0.02 {
			hits = append(hits, alignHit("double_bottom", 0.4, 75, model.Long, mtfDirection))
		}
	}
	return hits
}

func extractFloats(candles []model.Candle, sel func(model.Candle) decimal.Decimal) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i], _ = sel(c).Float64()
	}
	return out
}

func rollingMax(v []float64, window int) []float64 {
	out := make([]float64, len(v))
	for i := range v {
		start := i - window + 1
		if start < 0 {
			start = 0
		}
		m := v[start]
		for j := start + 1; j <= i; j++ {
			if v[j] > m {
				m = v[j]
			}
		}
		out[i] = m
	}
	return out
}

func rollingMin(v []float64, window int) []float64 {
	out := make([]float64, len(v))
	for i := range v {
		start := i - window + 1
		if start < 0 {
			start = 0
		}
		m := v[start]
		for j := start + 1; j <= i; j++ {
			if v[j] < m {
				m = v[j]
			}
		}
		out[i] = m
	}
	return out
}

func average(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	var sum float64
	for _, x := range v {
		sum += x
	}
	return sum / float64(len(v))
}

// linearSlope is the least-squares slope of v against its index,
// the Go equivalent of numpy.polyfit(..., 1)[0].
func linearSlope(v []float64) float64 {
	n := float64(len(v))
	if n < 2 {
		return 0
	}
	var sumX, sumY, sumXY, sumXX float64
	for i, y := range v {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}
	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0
	}
	return (n*sumXY - sumX*sumY) / denom
}

// mostRevisitedLevel buckets levels into 0.2%-of-price bands and
// returns the most-revisited band strictly above (or below) price,
// breaking ties by proximity to price.
func mostRevisitedLevel(levels []float64, currentPrice float64, above bool) (float64, int) {
	bucketSize := currentPrice * 0.002
	if bucketSize == 0 {
		return 0, 0
	}
	counts := make(map[float64]int)
	for _, lvl := range levels {
		if above && lvl <= currentPrice {
			continue
		}
		if !above && (lvl >= currentPrice || lvl == 0) {
			continue
		}
		bucket := math.Round(lvl/bucketSize) * bucketSize
		counts[bucket]++
	}
	type candidate struct {
		level float64
		count int
	}
	candidates := make([]candidate, 0, len(counts))
	for lvl, c := range counts {
		candidates = append(candidates, candidate{lvl, c})
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].count != candidates[j].count {
			return candidates[i].count > candidates[j].count
		}
		return abs(candidates[i].level-currentPrice) < abs(candidates[j].level-currentPrice)
	})
	if len(candidates) == 0 {
		return 0, 0
	}
	return candidates[0].level, candidates[0].count
}
