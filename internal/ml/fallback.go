package ml

import "tradingengine/internal/model"

// Fallback produces a deterministic score/confidence from RSI,
// Bollinger-band position, and MACD histogram sign when the ensemble
// has nothing trained yet, following the same heuristic-score-when-
// unavailable policy as the ensemble's own facade, re-keyed to this
// package's [-1,1]/[0,1] output contract.
func Fallback(ind model.Indicators, price float64) Prediction {
	rsi, rsiOK := ind.Latest("rsi_14")
	macdHist, macdOK := ind.Latest("macd_hist")
	bbUpper, bbUpperOK := ind.Latest("bb_upper")
	bbLower, bbLowerOK := ind.Latest("bb_lower")

	var votes []float64
	perModel := make(map[string]ModelOutput)

	if rsiOK {
		score := rsiScore(rsi)
		votes = append(votes, score)
		perModel["fallback_rsi"] = ModelOutput{Score: score, Confidence: 0.3, Weight: 1, Trained: true}
	}
	if macdOK {
		score := clamp(macdHist*10, -1, 1)
		votes = append(votes, score)
		perModel["fallback_macd"] = ModelOutput{Score: score, Confidence: 0.3, Weight: 1, Trained: true}
	}
	if bbUpperOK && bbLowerOK && bbUpper > bbLower && price > 0 {
		score := bollingerScore(price, bbUpper, bbLower)
		votes = append(votes, score)
		perModel["fallback_bollinger"] = ModelOutput{Score: score, Confidence: 0.3, Weight: 1, Trained: true}
	}

	if len(votes) == 0 {
		return Prediction{PerModel: perModel}
	}

	sum := 0.0
	for _, v := range votes {
		sum += v
	}
	mean := sum / float64(len(votes))
	// Agreement across the three heuristics stands in for confidence;
	// this fallback is deliberately low-confidence relative to a
	// trained head so the ensemble prefers real models once available.
	confidence := clamp(0.4*(1-stddev(votes)), 0, 0.4)

	return Prediction{Score: clamp(mean, -1, 1), Confidence: confidence, PerModel: perModel}
}

// rsiScore maps RSI's 0-100 overbought/oversold scale to a directional
// [-1, 1] score: at or below 30 the score rises linearly from 0 toward
// +1 (bullish), at or above 70 it falls linearly from 0 toward -1
// (bearish), and between the two bounds it is 0.
func rsiScore(rsi float64) float64 {
	switch {
	case rsi <= 30:
		return clamp((30-rsi)/30, 0, 1)
	case rsi >= 70:
		return -clamp((rsi-70)/30, 0, 1)
	default:
		return 0
	}
}

// bollingerScore is positive (bullish reversion expected) when price
// sits near the lower band and negative near the upper band.
func bollingerScore(price, upper, lower float64) float64 {
	width := upper - lower
	if width <= 0 {
		return 0
	}
	position := (price - lower) / width // 0 near lower band, 1 near upper
	return clamp(1-2*position, -1, 1)
}
