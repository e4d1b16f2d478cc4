package marketdata

import (
	"context"
	"errors"
	"testing"
	"time"

	"tradingengine/internal/errs"
	"tradingengine/internal/model"

	"github.com/shopspring/decimal"
)

type stubFetcher struct {
	candles []model.Candle
	err     error
	calls   int
}

func (s *stubFetcher) FetchOHLCV(ctx context.Context, symbol, timeframe string, limit int) ([]model.Candle, error) {
	s.calls++
	return s.candles, s.err
}

type stubFeed struct {
	ticks chan model.Tick
	books chan model.BookSnapshot
}

func newStubFeed() *stubFeed {
	return &stubFeed{ticks: make(chan model.Tick, 8), books: make(chan model.BookSnapshot, 8)}
}

func (f *stubFeed) Ticks() <-chan model.Tick        { return f.ticks }
func (f *stubFeed) Books() <-chan model.BookSnapshot { return f.books }

func makeCandles(n int) []model.Candle {
	out := make([]model.Candle, n)
	for i := range out {
		out[i] = model.Candle{Symbol: "BTCUSDT", Timeframe: "1m", OpenTime: time.Unix(int64(i*60), 0)}
	}
	return out
}

func TestOHLCV_CacheMiss_FillsAndCaches(t *testing.T) {
	fetcher := &stubFetcher{candles: makeCandles(200)}
	md := New(fetcher, newStubFeed(), Config{OHLCVTTL: time.Minute})
	defer md.Close()

	if _, err := md.OHLCV(context.Background(), "BTCUSDT", "1m", 200); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := md.OHLCV(context.Background(), "BTCUSDT", "1m", 200); err != nil {
		t.Fatalf("unexpected error on cached read: %v", err)
	}
	if fetcher.calls != 1 {
		t.Errorf("expected cache to absorb second call, fetcher called %d times", fetcher.calls)
	}
}

func TestOHLCV_InsufficientRows_ReturnsDataMissing(t *testing.T) {
	fetcher := &stubFetcher{candles: makeCandles(50)}
	md := New(fetcher, newStubFeed(), Config{})
	defer md.Close()

	_, err := md.OHLCV(context.Background(), "BTCUSDT", "1m", 50)
	if err == nil {
		t.Fatal("expected error for under-minimum candle window")
	}
	if !errs.OfKind(err, errs.DataMissing) {
		t.Errorf("expected DataMissing kind, got %v", err)
	}
}

func TestOHLCV_FetchError_Propagates(t *testing.T) {
	wantErr := errs.New(errs.Network, "fetch", errors.New("boom"))
	fetcher := &stubFetcher{err: wantErr}
	md := New(fetcher, newStubFeed(), Config{})
	defer md.Close()

	_, err := md.OHLCV(context.Background(), "BTCUSDT", "1m", 200)
	if err == nil {
		t.Fatal("expected propagated fetch error")
	}
}

func TestCurrentPrice_FreshAndStale(t *testing.T) {
	feed := newStubFeed()
	md := New(&stubFetcher{}, feed, Config{PriceStaleness: 50 * time.Millisecond})
	defer md.Close()

	feed.ticks <- model.Tick{Symbol: "BTCUSDT", Price: decimal.NewFromInt(100), Ts: time.Now()}
	time.Sleep(20 * time.Millisecond)

	price, err := md.CurrentPrice("BTCUSDT")
	if err != nil {
		t.Fatalf("expected fresh price, got error: %v", err)
	}
	if !price.Equal(decimal.NewFromInt(100)) {
		t.Errorf("expected price 100, got %s", price)
	}

	time.Sleep(60 * time.Millisecond)
	_, err = md.CurrentPrice("BTCUSDT")
	if !errs.OfKind(err, errs.DataStale) {
		t.Errorf("expected DataStale after staleness window elapsed, got %v", err)
	}
}

func TestCurrentPrice_NeverReceived_ReturnsDataMissing(t *testing.T) {
	md := New(&stubFetcher{}, newStubFeed(), Config{})
	defer md.Close()

	_, err := md.CurrentPrice("ETHUSDT")
	if !errs.OfKind(err, errs.DataMissing) {
		t.Errorf("expected DataMissing for symbol with no ticks, got %v", err)
	}
}

func TestRecentTrades_CapsWindow(t *testing.T) {
	feed := newStubFeed()
	md := New(&stubFetcher{}, feed, Config{})
	defer md.Close()

	for i := 0; i < 5; i++ {
		feed.ticks <- model.Tick{Symbol: "BTCUSDT", Price: decimal.NewFromInt(int64(i)), Ts: time.Now()}
	}
	time.Sleep(20 * time.Millisecond)

	trades := md.RecentTrades("BTCUSDT", 3)
	if len(trades) != 3 {
		t.Fatalf("expected 3 trades, got %d", len(trades))
	}
	if !trades[2].Price.Equal(decimal.NewFromInt(4)) {
		t.Errorf("expected newest trade last, got %s", trades[2].Price)
	}
}
