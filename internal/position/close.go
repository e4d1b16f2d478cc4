package position

import (
	"context"
	"fmt"
	"time"

	"tradingengine/internal/exchange"
	"tradingengine/internal/model"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// CloseForReason force-closes one tracked position at its last known
// price, for callers outside the manage loop (the engine's emergency
// exit path). A symbol with no tracked position is a no-op.
func (m *Manager) CloseForReason(ctx context.Context, positionID string, sym model.Symbol, reason string) {
	m.mu.RLock()
	pos, ok := m.positions[sym.Name]
	m.mu.RUnlock()
	if !ok || pos.ID != positionID {
		return
	}
	price, err := m.currentPrice(ctx, sym.Name)
	if err != nil {
		log.Warn().Err(err).Str("symbol", sym.Name).Msg("position: emergency close has no price, using entry price")
		price = pos.EntryPrice
	}
	m.closeAll(ctx, pos, sym, price, reason)
}

// closeAll submits the closing order for the remaining quantity, reads
// the fill, persists realized PnL, updates the ledger, feeds the Kelly
// tracker, drops the in-memory entry, and notifies (
// "Close").
func (m *Manager) closeAll(ctx context.Context, pos *model.Position, sym model.Symbol, lastPrice decimal.Decimal, reason string) {
	remaining := pos.RemainingQty()
	var exitPrice decimal.Decimal = lastPrice

	if remaining.IsPositive() {
		side := oppositeSide(orderSideFor(pos.Side))
		order, err := m.exchange.PlaceOrder(ctx, sym.Name, side, exchange.OrderMarket, remaining, decimal.Zero, exchange.OrderParams{ReduceOnly: true})
		if err != nil {
			log.Warn().Err(err).Str("symbol", sym.Name).Str("reason", reason).Msg("position: close order failed, will retry next manage pass")
			return
		}
		if !order.Price.IsZero() {
			exitPrice = order.Price
		}
	}

	pnl := realizedPnL(pos, exitPrice)
	pnlPct := 0.0
	if !pos.EntryPrice.IsZero() {
		pnlPct, _ = pnl.Div(pos.EntryPrice.Mul(pos.Qty)).Float64()
	}

	pos.Status = model.PositionClosed
	pos.ClosedAt = time.Now()
	pos.RealizedPnL = pnl
	pos.ExitReason = reason

	if err := m.store.SavePosition(ctx, *pos); err != nil {
		log.Warn().Err(err).Str("symbol", sym.Name).Msg("position: failed to persist closed position")
	}
	trade := model.Trade{
		ID:          pos.TradeID,
		Symbol:      sym.Name,
		Side:        pos.Side,
		EntryPrice:  pos.EntryPrice,
		ExitPrice:   exitPrice,
		Qty:         pos.Qty,
		Leverage:    pos.Leverage,
		OpenedAt:    pos.OpenedAt,
		ClosedAt:    pos.ClosedAt,
		PnL:         pnl,
		PnLPct:      pnlPct,
		ExitReason:  reason,
		EntrySignal: pos.EntrySignal,
	}
	if err := m.store.SaveTrade(ctx, trade); err != nil {
		log.Warn().Err(err).Str("symbol", sym.Name).Msg("position: failed to persist trade ledger entry")
	}

	if m.kelly != nil {
		m.kelly.RecordOutcome(sym.Name, pnlPct, pnl.IsPositive())
	}

	m.mu.Lock()
	delete(m.positions, sym.Name)
	m.mu.Unlock()

	if m.notifier != nil {
		m.notifier.Notify("normal", fmt.Sprintf("closed %s reason=%s pnl=%s", sym.Name, reason, pnl.String()))
	}
}

func realizedPnL(pos *model.Position, exitPrice decimal.Decimal) decimal.Decimal {
	diff := exitPrice.Sub(pos.EntryPrice)
	if pos.Side == model.Short {
		diff = pos.EntryPrice.Sub(exitPrice)
	}
	return diff.Mul(pos.Qty)
}

// Reconcile diffs DB-persisted open positions against the in-memory
// map at the start of a cycle: positions only in the DB are imported,
// positions only in memory are discarded (
// "Reconciliation").
func (m *Manager) Reconcile(ctx context.Context) error {
	dbPositions, err := m.store.OpenPositions(ctx)
	if err != nil {
		return err
	}
	dbBySymbol := make(map[string]model.Position, len(dbPositions))
	for _, p := range dbPositions {
		dbBySymbol[p.Symbol] = p
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for symbol := range m.positions {
		if _, ok := dbBySymbol[symbol]; !ok {
			delete(m.positions, symbol)
		}
	}
	for symbol, p := range dbBySymbol {
		if _, ok := m.positions[symbol]; !ok {
			imported := p
			m.positions[symbol] = &imported
		}
	}
	return nil
}
