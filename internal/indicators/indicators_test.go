package indicators

import (
	"math"
	"testing"
	"time"

	"tradingengine/internal/model"

	"github.com/shopspring/decimal"
)

func syntheticCandles(n int) []model.Candle {
	candles := make([]model.Candle, n)
	price := 100.0
	for i := 0; i < n; i++ {
		price += math.Sin(float64(i)/5) * 2
		high := price + 1
		low := price - 1
		candles[i] = model.Candle{
			Symbol:    "BTCUSDT",
			Timeframe: "1h",
			OpenTime:  time.Unix(int64(i*3600), 0),
			Open:      decimal.NewFromFloat(price),
			High:      decimal.NewFromFloat(high),
			Low:       decimal.NewFromFloat(low),
			Close:     decimal.NewFromFloat(price),
			Volume:    decimal.NewFromFloat(1000 + float64(i)),
		}
	}
	return candles
}

func TestCompute_EmptyInput_NoPanic(t *testing.T) {
	ind := Compute("BTCUSDT", "1h", nil)
	if len(ind.Series) != 0 {
		t.Errorf("expected no series for empty candle input, got %d", len(ind.Series))
	}
}

func TestCompute_ProducesAllNamedSeries(t *testing.T) {
	ind := Compute("BTCUSDT", "1h", syntheticCandles(300))

	want := []string{
		"sma_20", "sma_50", "sma_200", "ema_20", "ema_50", "ema_200",
		"macd", "macd_signal", "macd_hist",
		"rsi_6", "rsi_14", "rsi_24",
		"stoch_rsi_k", "stoch_rsi_d",
		"bb_upper", "bb_middle", "bb_lower",
		"keltner_upper", "keltner_middle", "keltner_lower",
		"atr", "atr_pct",
		"adx", "plus_di", "minus_di",
		"obv", "volume_sma", "volume_ratio",
		"mfi",
		"ichimoku_tenkan", "ichimoku_kijun", "ichimoku_senkou_a", "ichimoku_senkou_b", "ichimoku_chikou",
		"vwap", "cmf",
		"supertrend", "supertrend_direction",
		"price_position", "trend_strength", "volatility_ratio",
	}
	for _, name := range want {
		s, ok := ind.Series[name]
		if !ok {
			t.Errorf("missing series %q", name)
			continue
		}
		if len(s.Values) != 300 {
			t.Errorf("series %q: expected 300 aligned values, got %d", name, len(s.Values))
		}
	}
}

func TestCompute_LeadingNaNs_PropagateNotPanic(t *testing.T) {
	ind := Compute("BTCUSDT", "1h", syntheticCandles(250))
	sma200, ok := ind.Series["sma_200"]
	if !ok {
		t.Fatal("expected sma_200 series")
	}
	if !math.IsNaN(sma200.Values[0]) {
		t.Error("expected leading sma_200 values to be NaN before the window fills")
	}
	if math.IsNaN(sma200.Values[249]) {
		t.Error("expected sma_200 to have a value once the window has filled")
	}
}

func TestRatioOf_ZeroDenominator_PropagatesNaN(t *testing.T) {
	out := ratioOf([]float64{1, 2, 3}, []float64{1, 0, 3})
	if !math.IsNaN(out[1]) {
		t.Error("expected NaN for zero-denominator division")
	}
	if out[0] != 1 || out[2] != 1 {
		t.Errorf("expected normal elementwise division elsewhere, got %v", out)
	}
}

func TestSupertrend_DirectionIsPlusOrMinusOne(t *testing.T) {
	c := unpack(syntheticCandles(100))
	_, dir := supertrend(c, 10, 3)
	for i, d := range dir {
		if math.IsNaN(d) {
			continue
		}
		if d != 1 && d != -1 {
			t.Errorf("index %d: expected direction of +1 or -1, got %v", i, d)
		}
	}
}

func TestIchimoku_ChikouShiftedBack26(t *testing.T) {
	c := unpack(syntheticCandles(100))
	_, _, _, _, chikou := ichimoku(c)
	if chikou[0] != c.close[26] {
		t.Errorf("expected chikou[0] to equal close[26], got %v vs %v", chikou[0], c.close[26])
	}
}
