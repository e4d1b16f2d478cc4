package signal

import (
	"testing"
	"time"

	"tradingengine/internal/model"

	"github.com/shopspring/decimal"
)

func candleAt(i int, open, high, low, close float64) model.Candle {
	return model.Candle{
		Symbol: "BTCUSDT", Timeframe: "1h", OpenTime: time.Unix(int64(i*3600), 0),
		Open: decimal.NewFromFloat(open), High: decimal.NewFromFloat(high),
		Low: decimal.NewFromFloat(low), Close: decimal.NewFromFloat(close),
		Volume: decimal.NewFromFloat(1000),
	}
}

func TestThreeBarPattern_DetectsSoldiersAndCrows(t *testing.T) {
	soldiers := []model.Candle{
		candleAt(0, 100, 102, 99, 101),
		candleAt(1, 101, 104, 100, 103),
		candleAt(2, 103, 106, 102, 105),
	}
	hits := threeBarPattern(soldiers, model.Long)
	if len(hits) != 1 || hits[0].name != "three_white_soldiers" {
		t.Fatalf("expected three_white_soldiers, got %+v", hits)
	}

	crows := []model.Candle{
		candleAt(0, 105, 106, 103, 104),
		candleAt(1, 104, 105, 101, 102),
		candleAt(2, 102, 103, 99, 100),
	}
	hits = threeBarPattern(crows, model.Short)
	if len(hits) != 1 || hits[0].name != "three_black_crows" {
		t.Fatalf("expected three_black_crows, got %+v", hits)
	}
}

func TestThreeBarPattern_MixedDirectionDetectsNothing(t *testing.T) {
	mixed := []model.Candle{
		candleAt(0, 100, 102, 99, 101),
		candleAt(1, 101, 102, 99, 100),
		candleAt(2, 100, 103, 99, 102),
	}
	if hits := threeBarPattern(mixed, model.Long); hits != nil {
		t.Errorf("expected no hits for mixed-direction candles, got %+v", hits)
	}
}

func TestSupportResistancePattern_FlagsProximityToRevisitedLevel(t *testing.T) {
	candles := make([]model.Candle, 100)
	for i := range candles {
		// price oscillates and repeatedly caps out at 110, then the
		// final candle closes right under that ceiling.
		high := 105.0
		if i%10 == 0 {
			high = 110
		}
		candles[i] = candleAt(i, 100, high, 95, 100)
	}
	candles[len(candles)-1] = candleAt(len(candles)-1, 109, 110, 108, 109.5)

	hits := supportResistancePattern(candles, model.Long)
	found := false
	for _, h := range hits {
		if h.name == "near_resistance" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected near_resistance hit when closing just under a revisited ceiling, got %+v", hits)
	}
}

func TestSupportResistancePattern_InsufficientHistoryDetectsNothing(t *testing.T) {
	candles := make([]model.Candle, 10)
	for i := range candles {
		candles[i] = candleAt(i, 100, 101, 99, 100)
	}
	if hits := supportResistancePattern(candles, model.Long); hits != nil {
		t.Errorf("expected no hits with fewer than 100 candles, got %+v", hits)
	}
}

func TestTrianglePattern_AscendingRisingLowsFlatHighs(t *testing.T) {
	candles := make([]model.Candle, 50)
	for i := range candles {
		low := 90.0 + float64(i)*0.3
		candles[i] = candleAt(i, low+1, 110, low, low+0.5)
	}
	hits := trianglePattern(candles, model.Long)
	if len(hits) != 1 || hits[0].name != "ascending_triangle" {
		t.Fatalf("expected ascending_triangle, got %+v", hits)
	}
}

func TestDoublePattern_TwoSimilarPeaksDetectsDoubleTop(t *testing.T) {
	candles := make([]model.Candle, 100)
	for i := range candles {
		high := 100.0
		if i == 30 || i == 70 {
			high = 130
		}
		candles[i] = candleAt(i, 100, high, 95, 100)
	}
	hits := doublePattern(candles, model.Short)
	found := false
	for _, h := range hits {
		if h.name == "double_top" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected double_top for two similarly-priced peaks, got %+v", hits)
	}
}

func TestLinearSlope_ConstantSeriesIsFlat(t *testing.T) {
	flat := []float64{5, 5, 5, 5, 5}
	if slope := linearSlope(flat); slope != 0 {
		t.Errorf("expected zero slope for a constant series, got %f", slope)
	}
}

func TestMostRevisitedLevel_IgnoresLevelsOnWrongSide(t *testing.T) {
	levels := []float64{95, 95, 95, 105, 105}
	level, count := mostRevisitedLevel(levels, 100, true)
	if abs(level-105) > 0.01 || count != 2 {
		t.Errorf("expected (~105, 2) for levels above price, got (%f, %d)", level, count)
	}
	level, count = mostRevisitedLevel(levels, 100, false)
	if abs(level-95) > 0.01 || count != 3 {
		t.Errorf("expected (~95, 3) for levels below price, got (%f, %d)", level, count)
	}
}
