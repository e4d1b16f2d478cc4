package exchange

import (
	"encoding/json"
	"math"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"tradingengine/internal/model"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// wireMessage is the envelope every exchange push message arrives in.
type wireMessage struct {
	Channel string          `json:"channel"`
	Symbol  string          `json:"symbol"`
	Data    json.RawMessage `json:"data"`
}

type wireTrade struct {
	Price string `json:"price"`
	Qty   string `json:"qty"`
	Side  string `json:"side"`
	Ts    int64  `json:"ts"`
}

type wireBook struct {
	BidPx  string `json:"bidPx"`
	AskPx  string `json:"askPx"`
	BidVol string `json:"bidVol"`
	AskVol string `json:"askVol"`
	Ts     int64  `json:"ts"`
}

// streamState is "healthy" while messages keep arriving inside
// responseTimeout; it drops to "degraded" once maxAttempts reconnects
// have been made. Reconnecting goes on while degraded; no REST ticker
// polling takes the stream's place.
type streamState int32

const (
	streamHealthy streamState = iota
	streamDegraded
)

// wsClient is the duplex streaming leg of the ExchangePort. It owns the
// last-tick/book cache that CurrentPrice reads from.
type wsClient struct {
	url               string
	responseTimeout   time.Duration
	maxReconnectDelay time.Duration
	maxAttempts       int

	mu            sync.RWMutex
	conn          *websocket.Conn
	subscriptions map[string]bool
	lastPrice     map[string]decimal.Decimal
	lastMsgAt     atomic.Int64
	reconnects    atomic.Int64
	state         atomic.Int32

	ticks chan model.Tick
	books chan model.BookSnapshot
	stats *streamStats

	closeOnce sync.Once
	closeCh   chan struct{}
}

func newWSClient(url string, responseTimeout, maxReconnectDelay time.Duration, maxAttempts int) *wsClient {
	return &wsClient{
		url:               url,
		responseTimeout:   responseTimeout,
		maxReconnectDelay: maxReconnectDelay,
		maxAttempts:       maxAttempts,
		subscriptions:     make(map[string]bool),
		lastPrice:         make(map[string]decimal.Decimal),
		ticks:             make(chan model.Tick, 4096),
		books:             make(chan model.BookSnapshot, 4096),
		stats:             newStreamStats(),
		closeCh:           make(chan struct{}),
	}
}

func (w *wsClient) subscribe(symbol string) error {
	w.mu.Lock()
	w.subscriptions[symbol] = true
	conn := w.conn
	w.mu.Unlock()

	if conn == nil {
		return nil // queued; sent on next (re)connect
	}
	return w.sendSubscribe(conn, symbol)
}

func (w *wsClient) sendSubscribe(conn *websocket.Conn, symbol string) error {
	for _, channel := range []string{"ticker", "books", "trade"} {
		msg := map[string]any{"op": "subscribe", "channel": channel, "symbol": symbol}
		if err := conn.WriteJSON(msg); err != nil {
			return err
		}
	}
	return nil
}

func (w *wsClient) currentPrice(symbol string) (decimal.Decimal, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	p, ok := w.lastPrice[symbol]
	return p, ok
}

func (w *wsClient) degraded() bool {
	return streamState(w.state.Load()) == streamDegraded
}

// run is the outer reconnect loop. It blocks until closeCh fires.
func (w *wsClient) run() {
	attempt := 0
	for {
		select {
		case <-w.closeCh:
			return
		default:
		}

		if err := w.streamOnce(); err != nil {
			log.Warn().Err(err).Int("attempt", attempt).Msg("ws stream disconnected")
		}
		attempt++
		w.reconnects.Add(1)

		if attempt >= w.maxAttempts {
			w.state.Store(int32(streamDegraded))
			log.Warn().Msg("ws stream exhausted reconnect attempts, marking feed degraded")
		}

		delay := backoffDelay(attempt, w.maxReconnectDelay)
		select {
		case <-time.After(delay):
		case <-w.closeCh:
			return
		}
	}
}

func backoffDelay(attempt int, max time.Duration) time.Duration {
	base := time.Duration(math.Min(float64(max), float64(time.Second)*math.Pow(2, float64(attempt))))
	jitter := time.Duration(rand.Int63n(int64(base) / 2))
	return base/2 + jitter
}

func (w *wsClient) streamOnce() error {
	conn, _, err := websocket.DefaultDialer.Dial(w.url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	w.mu.Lock()
	w.conn = conn
	subs := make([]string, 0, len(w.subscriptions))
	for s := range w.subscriptions {
		subs = append(subs, s)
	}
	w.mu.Unlock()
	for _, s := range subs {
		if err := w.sendSubscribe(conn, s); err != nil {
			return err
		}
	}

	w.state.Store(int32(streamHealthy))
	w.lastMsgAt.Store(time.Now().UnixNano())

	healthTicker := time.NewTicker(w.responseTimeout / 3)
	defer healthTicker.Stop()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				return
			}
			w.lastMsgAt.Store(time.Now().UnixNano())
			w.stats.messagesProcessed++
			w.handleMessage(raw)
		}
	}()

	for {
		select {
		case <-done:
			return nil
		case <-w.closeCh:
			return nil
		case <-healthTicker.C:
			last := time.Unix(0, w.lastMsgAt.Load())
			if time.Since(last) > w.responseTimeout {
				return errStaleStream
			}
		}
	}
}

var errStaleStream = &staleStreamError{}

type staleStreamError struct{}

func (*staleStreamError) Error() string { return "no message received within response timeout" }

func (w *wsClient) handleMessage(raw []byte) {
	var env wireMessage
	if err := json.Unmarshal(raw, &env); err != nil {
		w.stats.droppedMessages++
		return
	}

	switch env.Channel {
	case "trade":
		var t wireTrade
		if err := json.Unmarshal(env.Data, &t); err != nil {
			w.stats.droppedMessages++
			return
		}
		price := mustDecimal(t.Price)
		if price.IsZero() {
			w.stats.droppedMessages++
			return
		}
		dir := model.Long
		if t.Side == "sell" {
			dir = model.Short
		}
		tick := model.Tick{Symbol: env.Symbol, Price: price, Qty: mustDecimal(t.Qty), Side: dir, Ts: time.UnixMilli(t.Ts).UTC()}
		w.mu.Lock()
		w.lastPrice[env.Symbol] = price
		w.mu.Unlock()
		w.stats.tickPoolGets++
		select {
		case w.ticks <- tick:
		default:
			w.stats.droppedMessages++
		}
	case "books":
		var b wireBook
		if err := json.Unmarshal(env.Data, &b); err != nil {
			w.stats.droppedMessages++
			return
		}
		bid, ask := mustDecimal(b.BidPx), mustDecimal(b.AskPx)
		if bid.IsZero() || ask.IsZero() || bid.GreaterThan(ask) {
			w.stats.droppedMessages++
			return
		}
		snap := model.BookSnapshot{Symbol: env.Symbol, BidPx: bid, AskPx: ask, BidVol: mustDecimal(b.BidVol), AskVol: mustDecimal(b.AskVol), Ts: time.UnixMilli(b.Ts).UTC()}
		w.stats.bookPoolGets++
		select {
		case w.books <- snap:
		default:
			w.stats.droppedMessages++
		}
	}
}

func (w *wsClient) close() {
	w.closeOnce.Do(func() { close(w.closeCh) })
	w.stats.stopMonitoring()
}
