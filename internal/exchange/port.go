// Package exchange implements the engine's ExchangePort: an
// authenticated REST+WS adapter with rate limiting, a circuit breaker,
// and a paper-trading simulator, sitting behind one exchange-neutral
// interface.
package exchange

import (
	"context"
	"time"

	"tradingengine/internal/model"

	"github.com/shopspring/decimal"
)

// OrderSide is buy or sell.
type OrderSide string

const (
	SideBuy  OrderSide = "buy"
	SideSell OrderSide = "sell"
)

// OrderType is one of the three order types the port supports.
type OrderType string

const (
	OrderMarket     OrderType = "market"
	OrderLimit      OrderType = "limit"
	OrderStopMarket OrderType = "stop_market"
)

// OrderParams carries the optional order fields ("params").
type OrderParams struct {
	ReduceOnly bool
	StopPrice  decimal.Decimal
	TimeInForce string // "IOC" or "GTC"
}

// Order is the result of a successful placeOrder call.
type Order struct {
	ID        string
	Symbol    string
	Side      OrderSide
	Type      OrderType
	Qty       decimal.Decimal
	Price     decimal.Decimal
	Status    string
	CreatedAt time.Time
}

// Balance is one currency's balance breakdown.
type Balance struct {
	Free  decimal.Decimal
	Used  decimal.Decimal
	Total decimal.Decimal
}

// ExchangePosition is the exchange's own view of an open position,
// used by PositionManager reconciliation — distinct from model.Position,
// which is the engine's owned record.
type ExchangePosition struct {
	Symbol     string
	Side       model.Direction
	Qty        decimal.Decimal
	EntryPrice decimal.Decimal
	Leverage   int
}

// ExchangePort is the engine's sole gateway to the exchange: REST calls
// for account/order operations plus a live WS feed for price/book data.
type ExchangePort interface {
	FetchOHLCV(ctx context.Context, symbol, timeframe string, limit int) ([]model.Candle, error)
	FetchBalance(ctx context.Context) (map[string]Balance, error)
	FetchPositions(ctx context.Context, symbol string) ([]ExchangePosition, error)
	PlaceOrder(ctx context.Context, symbol string, side OrderSide, typ OrderType, qty, price decimal.Decimal, params OrderParams) (Order, error)
	CancelOrder(ctx context.Context, id, symbol string) error
	SetLeverage(ctx context.Context, symbol string, leverage int) error
	Subscribe(symbol string) error
	CurrentPrice(symbol string) (decimal.Decimal, bool)
	Close() error
}
