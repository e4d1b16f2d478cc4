package marketdata

import (
	"sync"
	"time"

	"tradingengine/internal/model"

	"github.com/shopspring/decimal"
)

// priceStalenessDefault and bookStalenessDefault are 
// documented defaults for "fresh" tick/book data.
const (
	priceStalenessDefault = 10 * time.Second
	bookStalenessDefault  = 5 * time.Second
	tradeWindowCap        = 1000
)

// liveView is the single-writer (WS reader goroutine), read-mostly
// cache of current price, book, and a rolling trade window per symbol.
// Readers may observe a stale-but-consistent snapshot; Fresh reports
// whether that snapshot still falls inside the staleness bound.
type liveView struct {
	mu     sync.RWMutex
	ticks  map[string]model.Tick
	books  map[string]model.BookSnapshot
	trades map[string][]model.Tick

	priceStaleness time.Duration
	bookStaleness  time.Duration
}

func newLiveView(priceStaleness, bookStaleness time.Duration) *liveView {
	if priceStaleness <= 0 {
		priceStaleness = priceStalenessDefault
	}
	if bookStaleness <= 0 {
		bookStaleness = bookStalenessDefault
	}
	return &liveView{
		ticks:          make(map[string]model.Tick),
		books:          make(map[string]model.BookSnapshot),
		trades:         make(map[string][]model.Tick),
		priceStaleness: priceStaleness,
		bookStaleness:  bookStaleness,
	}
}

func (l *liveView) recordTick(t model.Tick) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ticks[t.Symbol] = t

	window := l.trades[t.Symbol]
	window = append(window, t)
	if len(window) > tradeWindowCap {
		window = window[len(window)-tradeWindowCap:]
	}
	l.trades[t.Symbol] = window
}

func (l *liveView) recordBook(b model.BookSnapshot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.books[b.Symbol] = b
}

// currentPrice returns the last known price and whether it is still
// fresh as of now.
func (l *liveView) currentPrice(symbol string, now time.Time) (decimal.Decimal, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	t, ok := l.ticks[symbol]
	if !ok {
		return decimal.Zero, false
	}
	return t.Price, now.Sub(t.Ts) <= l.priceStaleness
}

func (l *liveView) currentBook(symbol string, now time.Time) (model.BookSnapshot, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	b, ok := l.books[symbol]
	if !ok {
		return model.BookSnapshot{}, false
	}
	return b, now.Sub(b.Ts) <= l.bookStaleness
}

// recentTrades returns up to n most recent trades for symbol, newest last.
func (l *liveView) recentTrades(symbol string, n int) []model.Tick {
	l.mu.RLock()
	defer l.mu.RUnlock()
	window := l.trades[symbol]
	if n <= 0 || n >= len(window) {
		out := make([]model.Tick, len(window))
		copy(out, window)
		return out
	}
	out := make([]model.Tick, n)
	copy(out, window[len(window)-n:])
	return out
}
