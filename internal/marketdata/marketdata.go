package marketdata

import (
	"context"
	"fmt"
	"time"

	"tradingengine/internal/errs"
	"tradingengine/internal/model"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// minCandleRows is the smallest candle window the signal engine will
// accept; below it the symbol is skipped for the cycle rather than fed
// a statistically meaningless indicator run.
const minCandleRows = 200

// OHLCVFetcher is the subset of ExchangePort MarketData depends on to
// fill cache misses.
type OHLCVFetcher interface {
	FetchOHLCV(ctx context.Context, symbol, timeframe string, limit int) ([]model.Candle, error)
}

// FeedSource is the subset of the exchange client MarketData consumes
// for its live price/book/trade views; kept separate from ExchangePort
// since streaming channels aren't an order/account concern.
type FeedSource interface {
	Ticks() <-chan model.Tick
	Books() <-chan model.BookSnapshot
}

// Config tunes the OHLCV cache and staleness bounds; zero values take
// spec defaults.
type Config struct {
	OHLCVTTL       time.Duration
	OHLCVCacheSize int
	PriceStaleness time.Duration
	BookStaleness  time.Duration
}

// MarketData is the engine's sole owner of live caches (
// "Ownership"): the OHLCV TTL cache, current price/book, and the
// rolling per-symbol trade window.
type MarketData struct {
	fetcher OHLCVFetcher
	ohlcv   *ohlcvCache
	live    *liveView

	done chan struct{}
}

// New constructs a MarketData and starts consuming feed's tick/book
// channels in the background until Close is called.
func New(fetcher OHLCVFetcher, feed FeedSource, cfg Config) *MarketData {
	md := &MarketData{
		fetcher: fetcher,
		ohlcv:   newOHLCVCache(cfg.OHLCVTTL, cfg.OHLCVCacheSize),
		live:    newLiveView(cfg.PriceStaleness, cfg.BookStaleness),
		done:    make(chan struct{}),
	}
	go md.consume(feed)
	return md
}

func (md *MarketData) consume(feed FeedSource) {
	ticks := feed.Ticks()
	books := feed.Books()
	for {
		select {
		case <-md.done:
			return
		case t, ok := <-ticks:
			if !ok {
				ticks = nil
				continue
			}
			md.live.recordTick(t)
		case b, ok := <-books:
			if !ok {
				books = nil
				continue
			}
			md.live.recordBook(b)
		}
	}
}

// OHLCV returns a candle window, filling from the port on a cache miss
// and erroring with errs.DataMissing if the result (cached or fresh)
// falls short of the minimum row count an indicator run requires.
func (md *MarketData) OHLCV(ctx context.Context, symbol, timeframe string, limit int) ([]model.Candle, error) {
	key := ohlcvKey{symbol: symbol, timeframe: timeframe, limit: limit}
	now := time.Now()

	if candles, ok := md.ohlcv.get(key, now); ok {
		return md.checkMinRows(symbol, candles)
	}

	candles, err := md.fetcher.FetchOHLCV(ctx, symbol, timeframe, limit)
	if err != nil {
		return nil, err
	}
	md.ohlcv.put(key, candles, now)
	return md.checkMinRows(symbol, candles)
}

func (md *MarketData) checkMinRows(symbol string, candles []model.Candle) ([]model.Candle, error) {
	if len(candles) < minCandleRows {
		return candles, errs.New(errs.DataMissing, "marketdata.OHLCV",
			fmt.Errorf("symbol %s: insufficient_data: %d rows, need %d", symbol, len(candles), minCandleRows))
	}
	return candles, nil
}

// CurrentPrice returns the live price for symbol, or errs.DataStale if
// the last tick fell outside the staleness bound, or errs.DataMissing
// if no tick has ever arrived.
func (md *MarketData) CurrentPrice(symbol string) (decimal.Decimal, error) {
	price, fresh := md.live.currentPrice(symbol, time.Now())
	if price.IsZero() && !fresh {
		return decimal.Zero, errs.New(errs.DataMissing, "marketdata.CurrentPrice", fmt.Errorf("no tick received for %s", symbol))
	}
	if !fresh {
		return price, errs.New(errs.DataStale, "marketdata.CurrentPrice", fmt.Errorf("stale tick for %s", symbol))
	}
	return price, nil
}

// CurrentBook returns the live book snapshot for symbol under the same
// freshness rules as CurrentPrice.
func (md *MarketData) CurrentBook(symbol string) (model.BookSnapshot, error) {
	book, fresh := md.live.currentBook(symbol, time.Now())
	if book.Ts.IsZero() {
		return book, errs.New(errs.DataMissing, "marketdata.CurrentBook", fmt.Errorf("no book received for %s", symbol))
	}
	if !fresh {
		return book, errs.New(errs.DataStale, "marketdata.CurrentBook", fmt.Errorf("stale book for %s", symbol))
	}
	return book, nil
}

// RecentTrades returns up to n of the most recent trades recorded for
// symbol (cap 1000), newest last.
func (md *MarketData) RecentTrades(symbol string, n int) []model.Tick {
	return md.live.recentTrades(symbol, n)
}

// Close stops the background feed consumer.
func (md *MarketData) Close() {
	select {
	case <-md.done:
	default:
		close(md.done)
		log.Debug().Msg("marketdata feed consumer stopped")
	}
}
