package signal

import (
	"context"
	"fmt"
	"time"

	"tradingengine/internal/errs"
	"tradingengine/internal/indicators"
	"tradingengine/internal/model"
)

// CandleSource supplies per-timeframe candle windows; MarketData
// satisfies this narrowly so this package doesn't import it directly.
type CandleSource interface {
	OHLCV(ctx context.Context, symbol, timeframe string, limit int) ([]model.Candle, error)
}

// NewsSource supplies the per-symbol news read for fusion.
type NewsSource interface {
	Read(symbol string) NewsRead
}

// MLSource supplies the per-symbol ML ensemble read for fusion.
type MLSource interface {
	Predict(symbol string, features []float64) (MLRead, error)
}

// Engine runs the SignalEngine pipeline for one symbol per call
// (): multi-timeframe analysis, regime classification,
// pattern detection, news, ML, and fusion into a tradeable Signal.
type Engine struct {
	candles CandleSource
	news    NewsSource
	ml      MLSource
}

func New(candles CandleSource, news NewsSource, ml MLSource) *Engine {
	return &Engine{candles: candles, news: news, ml: ml}
}

// strategyFor resolves the symbol's per-symbol strategy: "eth-like"
// symbols get the momentum-boosted variant, everything else gets the
// BTC-like default.
func strategyFor(sym model.Symbol) Strategy {
	if sym.Strategy == "momentum" {
		return NewETHLikeStrategy()
	}
	return NewDefaultStrategy()
}

// primaryTimeframe is the configured timeframe with the largest fusion
// weight — the window regime classification and pattern detection run
// against.
func primaryTimeframe(sym model.Symbol) string {
	best := ""
	bestWeight := -1.0
	for _, tw := range sym.TimeframeWeights {
		if tw.Weight > bestWeight {
			best, bestWeight = tw.Timeframe, tw.Weight
		}
	}
	return best
}

const candleLimit = 250

// Generate runs the full pipeline and returns a Signal for sym. A
// data-availability failure on any configured timeframe surfaces as
// errs.DataMissing and the caller should skip the symbol for the cycle.
func (e *Engine) Generate(ctx context.Context, sym model.Symbol, now time.Time) (model.Signal, error) {
	strategy := strategyFor(sym)
	primary := primaryTimeframe(sym)

	inputs := make([]mtfInput, 0, len(sym.TimeframeWeights))
	var primaryIndicators model.Indicators
	for _, tw := range sym.TimeframeWeights {
		candles, err := e.candles.OHLCV(ctx, sym.Name, tw.Timeframe, candleLimit)
		if err != nil {
			return model.Signal{}, fmt.Errorf("fetching %s candles for %s: %w", tw.Timeframe, sym.Name, err)
		}
		ind := indicators.Compute(sym.Name, tw.Timeframe, candles)
		inputs = append(inputs, mtfInput{weight: tw, candles: candles, indicator: ind})
		if tw.Timeframe == primary || primaryIndicators.Symbol == "" {
			primaryIndicators = ind
		}
	}
	if len(inputs) == 0 {
		return model.Signal{}, errs.New(errs.DataMissing, "signal.Generate", fmt.Errorf("symbol %s has no configured timeframes", sym.Name))
	}

	mtf := analyzeMultiTimeframe(strategy, sym.Name, inputs, sym.Entry.TimeframeAgreement)
	regime := classifyRegime(primaryIndicators)

	mtfDirection := model.Neutral
	if mtf.score > 0 {
		mtfDirection = model.Long
	} else if mtf.score < 0 {
		mtfDirection = model.Short
	}
	hits := detectPatterns(inputs[0].candles, primaryIndicators, mtfDirection)
	patterns := patternScore(hits, mtfDirection)

	news := NewsRead{}
	if e.news != nil {
		news = e.news.Read(sym.Name)
	}

	features := buildFeatureVector(primaryIndicators, regime)
	ml := MLRead{}
	if e.ml != nil {
		if read, err := e.ml.Predict(sym.Name, features); err == nil {
			ml = read
		}
	}

	score, confidence, components := fuse(mtf, regime, patterns, ml, news)
	rsi14, _ := primaryIndicators.Latest("rsi_14")
	tradeable, rejectReason := shouldTrade(score, confidence, sym, regime, mtf, rsi14)

	direction := model.Neutral
	if tradeable {
		if score > 0 {
			direction = model.Long
		} else if score < 0 {
			direction = model.Short
		}
	}

	atrPct, _ := primaryIndicators.Latest("atr_pct")
	expectedMove := abs(score) * clampPositive(atrPct) * 3

	return model.Signal{
		Symbol:                 sym.Name,
		Ts:                     now,
		Direction:              direction,
		Score:                  score,
		Confidence:             confidence,
		Components:             components,
		Regime:                 regime.Regime,
		AlignmentScore:         mtf.alignmentScore,
		ExpectedMove:           expectedMove,
		PositionSizeMultiplier: regime.Params.PositionSizeMultiplier,
		TimeframeVotes:         mtf.votes,
		Tradeable:              tradeable,
		RejectReason:           rejectReason,
		Features:               features,
	}, nil
}

func clampPositive(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}

// FeatureVector assembles the same normalized indicator/regime feature
// vector Generate feeds to the ML ensemble at prediction time, exported
// so a retraining path can build Sample.Features in the identical shape
// and order the live Predict call uses for the same primary-timeframe
// indicator set.
func FeatureVector(ind model.Indicators) []float64 {
	return buildFeatureVector(ind, classifyRegime(ind))
}

// buildFeatureVector assembles the normalized indicator/regime feature
// vector the ML ensemble's predict port consumes (step 5).
func buildFeatureVector(ind model.Indicators, regime regimeResult) []float64 {
	rsi, _ := ind.Latest("rsi_14")
	macdHist, _ := ind.Latest("macd_hist")
	adx, _ := ind.Latest("adx")
	pricePos, _ := ind.Latest("price_position")
	volRatio, _ := ind.Latest("volume_ratio")
	atrPct, _ := ind.Latest("atr_pct")
	return []float64{
		rsi / 100,
		clamp(macdHist, -1, 1),
		adx / 100,
		pricePos,
		clamp(volRatio/3, 0, 1),
		clampPositive(atrPct),
		regime.Score,
	}
}
