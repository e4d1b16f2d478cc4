package exchange

import (
	"context"
	"time"

	"tradingengine/internal/model"

	"github.com/shopspring/decimal"
)

// Client is the concrete ExchangePort: a REST leg, a WS streaming leg,
// and (when PaperTrading is set) a deterministic order simulator that
// replaces the REST leg for order operations only.
type Client struct {
	rest *restClient
	ws   *wsClient
	sim  *paperSimulator
}

// Config configures a new Client.
type Config struct {
	APIKey, APISecret, BaseURL, WsURL string
	RESTTimeout                      time.Duration
	WsResponseTimeout                time.Duration
	WsMaxReconnectDelay              time.Duration
	WsMaxAttempts                    int
	PaperTrading                     bool
}

// New builds a Client and starts its WS streaming loop in the
// background.
func New(cfg Config) *Client {
	c := &Client{
		rest: newRESTClient(cfg.APIKey, cfg.APISecret, cfg.BaseURL, cfg.RESTTimeout),
		ws:   newWSClient(cfg.WsURL, cfg.WsResponseTimeout, cfg.WsMaxReconnectDelay, cfg.WsMaxAttempts),
	}
	if cfg.PaperTrading {
		c.sim = newPaperSimulator(c.ws)
	}
	go c.ws.run()
	return c
}

func (c *Client) FetchOHLCV(ctx context.Context, symbol, timeframe string, limit int) ([]model.Candle, error) {
	return c.rest.fetchOHLCV(ctx, symbol, timeframe, limit)
}

func (c *Client) FetchBalance(ctx context.Context) (map[string]Balance, error) {
	return c.rest.fetchBalance(ctx)
}

func (c *Client) FetchPositions(ctx context.Context, symbol string) ([]ExchangePosition, error) {
	return c.rest.fetchPositions(ctx, symbol)
}

func (c *Client) PlaceOrder(ctx context.Context, symbol string, side OrderSide, typ OrderType, qty, price decimal.Decimal, params OrderParams) (Order, error) {
	if c.sim != nil {
		return c.sim.placeOrder(symbol, side, typ, qty, price, params)
	}
	return c.rest.placeOrder(ctx, symbol, side, typ, qty, price, params)
}

func (c *Client) CancelOrder(ctx context.Context, id, symbol string) error {
	if c.sim != nil {
		return c.sim.cancelOrder(id)
	}
	return c.rest.cancelOrder(ctx, id, symbol)
}

func (c *Client) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	if c.sim != nil {
		return nil
	}
	return c.rest.setLeverage(ctx, symbol, leverage)
}

func (c *Client) Subscribe(symbol string) error {
	return c.ws.subscribe(symbol)
}

func (c *Client) CurrentPrice(symbol string) (decimal.Decimal, bool) {
	return c.ws.currentPrice(symbol)
}

// Ticks exposes the live trade feed for MarketData to consume.
func (c *Client) Ticks() <-chan model.Tick { return c.ws.ticks }

// Books exposes the live book feed for MarketData to consume.
func (c *Client) Books() <-chan model.BookSnapshot { return c.ws.books }

// Degraded reports whether the stream has used up its reconnect
// attempts; no REST polling takes over while it is degraded.
func (c *Client) Degraded() bool { return c.ws.degraded() }

func (c *Client) Close() error {
	c.ws.close()
	return nil
}
