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

// ManageOne runs per-cycle manage-loop steps for one
// open position: refresh price, update maxProfitPctSeen, trailing-stop
// state machine, partial take-profits, stop-loss, early-exit guard, and
// (on its own slower cadence) ATR re-evaluation.
func (m *Manager) ManageOne(ctx context.Context, pos *model.Position, sym model.Symbol) {
	price, err := m.currentPrice(ctx, sym.Name)
	if err != nil {
		log.Warn().Err(err).Str("symbol", sym.Name).Msg("position: manage pass skipped, no price")
		return
	}

	profitPct := profitPctOf(pos, price)
	if profitPct > pos.MaxProfitPctSeen {
		pos.MaxProfitPctSeen = profitPct
	}

	m.updateTrailingStop(ctx, pos, sym, price, profitPct)

	if m.checkPartialTakeProfits(ctx, pos, sym, price) {
		return
	}

	if m.checkStopLoss(ctx, pos, sym, price) {
		return
	}

	if profitPct <= -sym.FallbackStopPct*0.7 {
		m.closeAll(ctx, pos, sym, price, "early_stop")
		return
	}

	m.maybeReevaluateATR(ctx, pos, sym)
}

func (m *Manager) currentPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	if m.prices != nil {
		if p, err := m.prices.CurrentPrice(ctx, symbol); err == nil {
			return p, nil
		}
	}
	if p, ok := m.exchange.CurrentPrice(symbol); ok {
		return p, nil
	}
	return decimal.Zero, fmt.Errorf("no price available for %s", symbol)
}

func profitPctOf(pos *model.Position, price decimal.Decimal) float64 {
	if pos.EntryPrice.IsZero() {
		return 0
	}
	diff := price.Sub(pos.EntryPrice)
	if pos.Side == model.Short {
		diff = pos.EntryPrice.Sub(price)
	}
	pct, _ := diff.Div(pos.EntryPrice).Float64()
	return pct
}

// updateTrailingStop is the {inactive, active} state machine from
// step 3: activates once profitPct crosses the symbol's
// activation threshold, then only ever tightens.
func (m *Manager) updateTrailingStop(ctx context.Context, pos *model.Position, sym model.Symbol, price decimal.Decimal, profitPct float64) {
	if !pos.TrailingActive {
		if profitPct < sym.Trailing.Activation {
			return
		}
		pos.TrailingActive = true
		pos.TrailingStop = trailFrom(pos.Side, price, sym.Trailing.Distance)
		m.pushStop(ctx, pos, sym, pos.TrailingStop)
		return
	}

	candidate := trailFrom(pos.Side, price, sym.Trailing.Distance)
	improved := false
	if pos.Side == model.Short {
		if candidate.LessThan(pos.TrailingStop) || pos.TrailingStop.IsZero() {
			improved = true
		}
	} else if candidate.GreaterThan(pos.TrailingStop) {
		improved = true
	}
	if !improved {
		return
	}
	pos.TrailingStop = candidate
	pos.StopLoss = candidate
	m.pushStop(ctx, pos, sym, candidate)
}

func trailFrom(side model.Direction, price decimal.Decimal, distance float64) decimal.Decimal {
	if side == model.Short {
		return price.Mul(decimal.NewFromFloat(1 + distance))
	}
	return price.Mul(decimal.NewFromFloat(1 - distance))
}

// pushStop cancels the previous stop order and places a fresh one at
// the new price, updating both exchange and local state (
// "Pushing the stop updates both the local Position.stopLoss and the
// exchange stop order").
func (m *Manager) pushStop(ctx context.Context, pos *model.Position, sym model.Symbol, newStop decimal.Decimal) {
	if pos.StopOrderID != "" {
		if err := m.exchange.CancelOrder(ctx, pos.StopOrderID, sym.Name); err != nil {
			log.Warn().Err(err).Str("symbol", sym.Name).Msg("position: cancel previous stop failed")
		}
	}
	stopSide := oppositeSide(orderSideFor(pos.Side))
	remaining := pos.RemainingQty()
	order, err := m.exchange.PlaceOrder(ctx, sym.Name, stopSide, exchange.OrderStopMarket, remaining, newStop, exchange.OrderParams{ReduceOnly: true, StopPrice: newStop})
	if err != nil {
		log.Warn().Err(err).Str("symbol", sym.Name).Msg("position: replacing stop order failed, will retry next pass")
		return
	}
	pos.StopOrderID = order.ID
	pos.StopLoss = newStop
}

// checkPartialTakeProfits submits a reducing order for each unfulfilled
// TP level whose price has been crossed (step 4).
func (m *Manager) checkPartialTakeProfits(ctx context.Context, pos *model.Position, sym model.Symbol, price decimal.Decimal) bool {
	closedEntirely := false
	for i := range pos.TakeProfitLevels {
		lvl := &pos.TakeProfitLevels[i]
		if lvl.Executed {
			continue
		}
		if !tpCrossed(pos.Side, price, lvl.Price) {
			continue
		}
		qty := pos.Qty.Mul(decimal.NewFromFloat(lvl.SizeFraction))
		side := oppositeSide(orderSideFor(pos.Side))
		order, err := m.exchange.PlaceOrder(ctx, sym.Name, side, exchange.OrderMarket, qty, decimal.Zero, exchange.OrderParams{ReduceOnly: true})
		if err != nil {
			log.Warn().Err(err).Str("symbol", sym.Name).Msg("position: partial take-profit order failed")
			continue
		}
		lvl.Executed = true
		lvl.FilledAt = time.Now()
		lvl.FilledQty = qty
		_ = order
		if pos.RemainingQty().IsZero() || pos.RemainingQty().IsNegative() {
			m.closeAll(ctx, pos, sym, price, "take_profit")
			closedEntirely = true
			break
		}
	}
	return closedEntirely
}

func tpCrossed(side model.Direction, price, target decimal.Decimal) bool {
	if side == model.Short {
		return price.LessThanOrEqual(target)
	}
	return price.GreaterThanOrEqual(target)
}

// checkStopLoss closes the remainder with a market reduce-only order
// when price crosses the stop (step 5).
func (m *Manager) checkStopLoss(ctx context.Context, pos *model.Position, sym model.Symbol, price decimal.Decimal) bool {
	hit := false
	if pos.Side == model.Short {
		hit = price.GreaterThanOrEqual(pos.StopLoss)
	} else {
		hit = price.LessThanOrEqual(pos.StopLoss)
	}
	if !hit {
		return false
	}
	m.closeAll(ctx, pos, sym, price, "stop_loss")
	return true
}

// maybeReevaluateATR recomputes ATR on the configured cadence (default
// 30m) and tightens (never loosens) the stop when it has moved more
// than 20% (step 7).
func (m *Manager) maybeReevaluateATR(ctx context.Context, pos *model.Position, sym model.Symbol) {
	if m.atr == nil {
		return
	}
	if !pos.LastATREval.IsZero() && time.Since(pos.LastATREval) < m.atrReevalInterval {
		return
	}
	candles, err := m.atr.Candles(ctx, sym.Name, "1h", sym.ATR.Period+5)
	if err != nil || len(candles) == 0 {
		return
	}
	pos.LastATREval = time.Now()

	newATR, ok := atrFromCandles(candles, sym.ATR.Period)
	if !ok || pos.ATRAtEntry == 0 {
		return
	}
	delta := (newATR - pos.ATRAtEntry) / pos.ATRAtEntry
	if delta < 0 {
		delta = -delta
	}
	if delta <= 0.20 {
		return
	}

	ratio := newATR / pos.ATRAtEntry
	candidate := tightenOnly(pos.Side, pos.EntryPrice, pos.StopLoss, ratio)
	if candidate.Equal(pos.StopLoss) {
		return
	}
	pos.ATRAtEntry = newATR
	m.pushStop(ctx, pos, sym, candidate)
}

// tightenOnly reproportions the stop distance by ratio but never moves
// it further from price than it already is.
func tightenOnly(side model.Direction, entry, currentStop decimal.Decimal, ratio float64) decimal.Decimal {
	dist := entry.Sub(currentStop)
	if side == model.Short {
		dist = currentStop.Sub(entry)
	}
	scaled := dist.Mul(decimal.NewFromFloat(ratio))
	if scaled.GreaterThan(dist) {
		return currentStop // widening is a loosen; reject
	}
	if side == model.Short {
		return entry.Add(scaled)
	}
	return entry.Sub(scaled)
}
