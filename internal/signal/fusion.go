package signal

import "tradingengine/internal/model"

// NewsRead is the per-symbol news contribution the SignalEngine reads
// from the NewsPipeline (step 4).
type NewsRead struct {
	Sentiment         float64
	Confidence        float64
	Impact            string // "low", "medium", "high"
	EmergencySeverity float64
}

func (n NewsRead) scaled() float64 {
	switch n.Impact {
	case "high":
		return n.Sentiment * 1.5
	case "low":
		return n.Sentiment * 0.5
	default:
		return n.Sentiment
	}
}

// MLRead is the per-symbol ML ensemble contribution (step
// 5); Trained is false when no model head has trained yet, in which
// case the ML block is omitted from fusion entirely.
type MLRead struct {
	Score      float64
	Confidence float64
	Trained    bool
}

// fusionWeights are step 6's default weights.
type fusionWeights struct {
	technical, ml, news float64
}

func weightsFor(mlAvailable bool) fusionWeights {
	if !mlAvailable {
		return fusionWeights{technical: 0.80, ml: 0, news: 0.20}
	}
	technical := 0.60
	return fusionWeights{
		technical: technical,
		ml:        0.80 * (1 - technical),
		news:      0.20 * (1 - technical),
	}
}

// fuse combines the MTF, regime, pattern, ML, and news reads into one
// Signal's score/confidence/components step 6.
func fuse(mtf mtfResult, regime regimeResult, patterns float64, ml MLRead, news NewsRead) (score, confidence float64, components model.ComponentScores) {
	technical := clamp(0.50*mtf.score+0.30*regime.Score+0.20*patterns, -1, 1)

	w := weightsFor(ml.Trained)
	score = technical * w.technical
	if ml.Trained {
		score += ml.Score * w.ml
	}
	score += news.scaled() * w.news
	score = clamp(score, -1, 1)

	confidence = mtf.confidence * 0.5
	if ml.Trained {
		confidence += ml.Confidence * 100 * 0.3
	} else {
		confidence += regime.Confidence * 0.3
	}
	confidence += news.Confidence * 100 * 0.2

	agreeCount := 0
	if ml.Trained && signOf(ml.Score) == signOf(score) && ml.Score != 0 {
		agreeCount++
	}
	if signOf(news.scaled()) == signOf(score) && news.scaled() != 0 {
		agreeCount++
	}
	if signOf(mtf.score) == signOf(score) && mtf.score != 0 {
		agreeCount++
	}
	if agreeCount == 3 {
		confidence += 10
	}

	confidence = clamp(confidence, 0, 100)

	components = model.ComponentScores{
		TechnicalScore: technical,
		PatternScore:   patterns,
		MLScore:        ml.Score,
		NewsScore:      news.scaled(),
		RegimeScore:    regime.Score,
	}
	return score, confidence, components
}

// shouldTrade applies entry decision.
func shouldTrade(score, confidence float64, sym model.Symbol, regime regimeResult, mtf mtfResult, rsi14 float64) (bool, string) {
	threshold := sym.Entry.SignalThreshold * regime.Params.SignalThresholdMult
	if abs(score) < threshold {
		return false, "score_below_threshold"
	}
	if confidence < sym.Entry.ConfidenceRequired {
		return false, "confidence_below_required"
	}
	if !mtf.aligned {
		return false, "timeframes_not_aligned"
	}
	if sym.Entry.ExtremeRSIOnly && rsi14 > 25 && rsi14 < 75 {
		return false, "rsi_not_extreme"
	}
	return true, ""
}
