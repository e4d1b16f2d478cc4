package exchange

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// paperSimulator implements order operations for PAPER_TRADING mode: it
// accepts any order, fills it at the WS-cached last price, and emits a
// synthetic order id ("paper-trading mode"). All other
// ExchangePort operations (market data, balances) still hit the real
// adapters so paper runs see live conditions.
type paperSimulator struct {
	priceSource *wsClient
	seq         atomic.Int64
}

func newPaperSimulator(priceSource *wsClient) *paperSimulator {
	return &paperSimulator{priceSource: priceSource}
}

func (p *paperSimulator) placeOrder(symbol string, side OrderSide, typ OrderType, qty, price decimal.Decimal, params OrderParams) (Order, error) {
	fillPrice := price
	if fillPrice.IsZero() {
		if last, ok := p.priceSource.currentPrice(symbol); ok {
			fillPrice = last
		}
	}
	p.seq.Add(1)
	return Order{
		ID:        fmt.Sprintf("paper-%s", uuid.NewString()),
		Symbol:    symbol,
		Side:      side,
		Type:      typ,
		Qty:       qty,
		Price:     fillPrice,
		Status:    "filled",
		CreatedAt: time.Now().UTC(),
	}, nil
}

func (p *paperSimulator) cancelOrder(id string) error {
	return nil // paper fills synchronously; nothing left to cancel
}
