package signal

import (
	"tradingengine/internal/model"
)

// regimeParams is the parameter pack the classified regime yields
// (step 2): position-size and stop/target multipliers,
// max positions, and a signal-threshold multiplier.
type regimeParams struct {
	PositionSizeMultiplier float64
	StopMultiplier         float64
	TargetMultiplier       float64
	MaxPositions           int
	SignalThresholdMult    float64
}

// regimeResult is the classifier's full output: the regime, its
// confidence, and the parameter pack that follows from it.
type regimeResult struct {
	Regime     model.Regime
	Confidence float64
	Score      float64 // signed directional read the fusion step blends in
	Params     regimeParams
}

// classifyRegime computes the five regime sub-scores and selects a
// regime step 2's threshold table.
func classifyRegime(ind model.Indicators) regimeResult {
	price := pricePositionScore(ind)
	momentum := momentumScore(ind)
	trend := trendScoreOf(ind)
	volatility := volatilityScore(ind)
	volume := volumeScore(ind)

	regime := selectRegime(trend, price, momentum, volatility)
	confidence := regimeConfidence(trend, price, momentum, volatility, volume)

	return regimeResult{
		Regime:     regime,
		Confidence: confidence,
		Score:      clamp((price+momentum)/2, -1, 1),
		Params:     paramsFor(regime),
	}
}

func selectRegime(trend, price, momentum, volatility float64) model.Regime {
	switch {
	case trend > 0.6 && price > 0.4 && momentum > 0:
		return model.RegimeTrendingUp
	case trend > 0.6 && price < -0.4 && momentum < 0:
		return model.RegimeTrendingDown
	case volatility > 0.7:
		return model.RegimeVolatile
	case abs(trend) < 0.4 && abs(price) < 0.3:
		return model.RegimeRanging
	default:
		combo := (price + momentum) / 2
		switch {
		case combo > 0.3:
			return model.RegimeTrendingUp
		case combo < -0.3:
			return model.RegimeTrendingDown
		default:
			return model.RegimeRanging
		}
	}
}

func regimeConfidence(trend, price, momentum, volatility, volume float64) float64 {
	agreeing := 0
	for _, v := range []float64{price, momentum, trend} {
		if signOf(v) == signOf(price) && v != 0 {
			agreeing++
		}
	}
	base := 50.0
	switch agreeing {
	case 3:
		base = 85
	case 2:
		base = 70
	}
	conf := base + abs(trend)*15
	if volatility > 0.7 {
		conf -= 20
	}
	return clamp(conf, 20, 95)
}

func paramsFor(regime model.Regime) regimeParams {
	switch regime {
	case model.RegimeTrendingUp, model.RegimeTrendingDown:
		return regimeParams{PositionSizeMultiplier: 1.1, StopMultiplier: 1.0, TargetMultiplier: 1.2, MaxPositions: 3, SignalThresholdMult: 0.9}
	case model.RegimeVolatile:
		return regimeParams{PositionSizeMultiplier: 0.6, StopMultiplier: 1.4, TargetMultiplier: 0.9, MaxPositions: 1, SignalThresholdMult: 1.3}
	case model.RegimeRanging:
		return regimeParams{PositionSizeMultiplier: 0.8, StopMultiplier: 0.8, TargetMultiplier: 0.8, MaxPositions: 2, SignalThresholdMult: 1.1}
	default:
		return regimeParams{PositionSizeMultiplier: 1.0, StopMultiplier: 1.0, TargetMultiplier: 1.0, MaxPositions: 2, SignalThresholdMult: 1.0}
	}
}

func pricePositionScore(ind model.Indicators) float64 {
	ema20, _ := ind.Latest("ema_20")
	ema50, _ := ind.Latest("ema_50")
	sma200, _ := ind.Latest("sma_200")
	pos, _ := ind.Latest("price_position")
	gapScore := clamp(signOf(ema20-ema50)*0.5+signOf(ema50-sma200)*0.5, -1, 1)
	return clamp(gapScore*0.6+(pos-0.5)*2*0.4, -1, 1)
}

func momentumScore(ind model.Indicators) float64 {
	rsi, _ := ind.Latest("rsi_14")
	macdHist, _ := ind.Latest("macd_hist")
	mfi, _ := ind.Latest("mfi")
	return clamp((rsi-50)/50*0.4+signOf(macdHist)*0.35+(mfi-50)/50*0.25, -1, 1)
}

func trendScoreOf(ind model.Indicators) float64 {
	adx, _ := ind.Latest("adx")
	plusDI, _ := ind.Latest("plus_di")
	minusDI, _ := ind.Latest("minus_di")
	superDir, _ := ind.Latest("supertrend_direction")
	adxBucket := clamp(adx/50, 0, 1)
	diSpread := clamp((plusDI-minusDI)/50, -1, 1)
	return clamp(adxBucket*0.5+abs(diSpread)*0.3+abs(superDir)*0.2, 0, 1)
}

func volatilityScore(ind model.Indicators) float64 {
	atrRatio, _ := ind.Latest("volatility_ratio")
	bbUpper, _ := ind.Latest("bb_upper")
	bbLower, _ := ind.Latest("bb_lower")
	bbMiddle, _ := ind.Latest("bb_middle")
	width := 0.0
	if bbMiddle != 0 {
		width = (bbUpper - bbLower) / bbMiddle
	}
	return clamp((atrRatio-1)*0.6+width*2*0.4, 0, 1)
}

func volumeScore(ind model.Indicators) float64 {
	volRatio, _ := ind.Latest("volume_ratio")
	obv, _ := ind.Latest("obv")
	return clamp((volRatio-1)*0.6+signOf(obv)*0.4, -1, 1)
}
