// Package position implements PositionManager: opening positions from
// a fused signal and allocated capital, the per-cycle management loop
// (trailing stop, partial take-profits, stop-loss, early-exit guard,
// ATR re-evaluation), closing, and DB/memory reconciliation.
// Generalized from a single float64-keyed-map bookkeeping style into
// explicit Position/Trade records.
package position

import (
	"context"
	"fmt"
	"sync"
	"time"

	"tradingengine/internal/errs"
	"tradingengine/internal/exchange"
	"tradingengine/internal/model"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// Exchange is the narrow slice of ExchangePort PositionManager needs:
// order placement/cancellation and the live price it trails against.
type Exchange interface {
	PlaceOrder(ctx context.Context, symbol string, side exchange.OrderSide, typ exchange.OrderType, qty, price decimal.Decimal, params exchange.OrderParams) (exchange.Order, error)
	CancelOrder(ctx context.Context, id, symbol string) error
	SetLeverage(ctx context.Context, symbol string, leverage int) error
	CurrentPrice(symbol string) (decimal.Decimal, bool)
}

// PriceSource is consulted ahead of the exchange's WS cache: prefer
// the live cache, fall back to a REST read.
type PriceSource interface {
	CurrentPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
}

// ATRSource recomputes ATR distances for step 7 of the manage loop.
type ATRSource interface {
	Candles(ctx context.Context, symbol, timeframe string, limit int) ([]model.Candle, error)
}

// Store is the narrow persistence port: positions/trades are durable,
// everything else about a Position is in-memory-owned.
type Store interface {
	SavePosition(ctx context.Context, p model.Position) error
	DeletePosition(ctx context.Context, id string) error
	OpenPositions(ctx context.Context) ([]model.Position, error)
	SaveTrade(ctx context.Context, t model.Trade) error
}

// KellySink feeds realized (symbol, pnlPct) pairs into the risk
// package's Kelly tracker on every close.
type KellySink interface {
	RecordOutcome(symbol string, pnlPct float64, win bool)
}

// Notifier emits a human-facing message on open/close (
// "emit a notification").
type Notifier interface {
	Notify(priority, message string)
}

// Manager is PositionManager: the sole owner of a symbol's open
// position from fill to close.
type Manager struct {
	exchange Exchange
	prices   PriceSource
	atr      ATRSource
	store    Store
	kelly    KellySink
	notifier Notifier

	atrReevalInterval time.Duration

	mu        sync.RWMutex
	positions map[string]*model.Position // keyed by symbol
}

func NewManager(ex Exchange, prices PriceSource, atrSrc ATRSource, store Store, kelly KellySink, notifier Notifier) *Manager {
	return &Manager{
		exchange:          ex,
		prices:            prices,
		atr:               atrSrc,
		store:             store,
		kelly:             kelly,
		notifier:          notifier,
		atrReevalInterval: 30 * time.Minute,
		positions:         make(map[string]*model.Position),
	}
}

// Open places the entry order, reads the fill, builds stop/target
// levels, places the stop order, and persists the new Position.
// Failure to place the stop does not fail Open: the position stays
// open and the stop is retried on the next manage pass.
func (m *Manager) Open(ctx context.Context, sig model.Signal, sym model.Symbol, qty decimal.Decimal, stopTarget StopTarget) (*model.Position, error) {
	side := orderSideFor(sig.Direction)

	if err := m.exchange.SetLeverage(ctx, sym.Name, sym.Leverage); err != nil {
		log.Warn().Err(err).Str("symbol", sym.Name).Msg("position: set leverage failed, continuing with exchange default")
	}

	entry, err := m.exchange.PlaceOrder(ctx, sym.Name, side, exchange.OrderMarket, qty, decimal.Zero, exchange.OrderParams{})
	if err != nil {
		return nil, errs.New(errs.ExchangeRejected, "position.Open", err)
	}

	stopPrice := stopPriceFor(sig.Direction, entry.Price, stopTarget.StopDistance)
	tpLevels := buildTakeProfitLadder(sig.Direction, entry.Price, stopTarget.TargetDistance)

	pos := &model.Position{
		ID:               uuid.NewString(),
		TradeID:          uuid.NewString(),
		Symbol:           sym.Name,
		Side:             sig.Direction,
		Status:           model.PositionOpen,
		Qty:              qty,
		EntryPrice:       entry.Price,
		Leverage:         sym.Leverage,
		OpenedAt:         time.Now(),
		StopLoss:         stopPrice,
		TakeProfitLevels: tpLevels,
		ATRAtEntry:       stopTarget.ATR,
		EntrySignal:      sig,
	}

	stopSide := oppositeSide(side)
	stopOrder, err := m.exchange.PlaceOrder(ctx, sym.Name, stopSide, exchange.OrderStopMarket, qty, stopPrice, exchange.OrderParams{ReduceOnly: true, StopPrice: stopPrice})
	if err != nil {
		log.Warn().Err(err).Str("symbol", sym.Name).Msg("position: stop order placement failed, will retry next manage pass")
	} else {
		pos.StopOrderID = stopOrder.ID
	}

	if err := m.store.SavePosition(ctx, *pos); err != nil {
		log.Warn().Err(err).Str("symbol", sym.Name).Msg("position: failed to persist new position")
	}

	m.mu.Lock()
	m.positions[sym.Name] = pos
	m.mu.Unlock()

	if m.notifier != nil {
		m.notifier.Notify("normal", fmt.Sprintf("opened %s %s qty=%s entry=%s", sym.Name, side, qty.String(), entry.Price.String()))
	}
	return pos, nil
}

// StopTarget carries the distances (as price fractions) and the ATR
// value they were derived from, so Manager can compare against a later
// re-evaluation without importing the risk package.
type StopTarget struct {
	StopDistance   float64
	TargetDistance float64
	ATR            float64
}

func orderSideFor(dir model.Direction) exchange.OrderSide {
	if dir == model.Short {
		return exchange.SideSell
	}
	return exchange.SideBuy
}

func oppositeSide(side exchange.OrderSide) exchange.OrderSide {
	if side == exchange.SideBuy {
		return exchange.SideSell
	}
	return exchange.SideBuy
}

func stopPriceFor(dir model.Direction, entry decimal.Decimal, distance float64) decimal.Decimal {
	factor := decimal.NewFromFloat(1 - distance)
	if dir == model.Short {
		factor = decimal.NewFromFloat(1 + distance)
	}
	return entry.Mul(factor)
}

// buildTakeProfitLadder splits the target distance into three rungs at
// 40%/70%/100% of the full distance, each taking a third of size —
// a reasonable default ladder shape; symbols may override via signal
// metadata in a later iteration.
func buildTakeProfitLadder(dir model.Direction, entry decimal.Decimal, targetDistance float64) []model.TakeProfitLevel {
	fractions := []float64{0.4, 0.7, 1.0}
	sizes := []float64{1.0 / 3, 1.0 / 3, 1.0 / 3}
	levels := make([]model.TakeProfitLevel, len(fractions))
	for i, f := range fractions {
		dist := targetDistance * f
		var factor decimal.Decimal
		if dir == model.Short {
			factor = decimal.NewFromFloat(1 - dist)
		} else {
			factor = decimal.NewFromFloat(1 + dist)
		}
		levels[i] = model.TakeProfitLevel{Price: entry.Mul(factor), SizeFraction: sizes[i]}
	}
	return levels
}

// Positions returns the positions currently tracked, for reconciliation
// and risk-gate bookkeeping reads.
func (m *Manager) Positions() []model.Position {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.Position, 0, len(m.positions))
	for _, p := range m.positions {
		out = append(out, *p)
	}
	return out
}

// ManageAll runs ManageOne for every currently tracked position whose
// symbol config is present in symbols, in the engine's per-cycle manage
// pass ("Manage loop").
func (m *Manager) ManageAll(ctx context.Context, symbols map[string]model.Symbol) {
	m.mu.RLock()
	snapshot := make([]*model.Position, 0, len(m.positions))
	for _, p := range m.positions {
		snapshot = append(snapshot, p)
	}
	m.mu.RUnlock()

	for _, p := range snapshot {
		sym, ok := symbols[p.Symbol]
		if !ok {
			continue
		}
		m.ManageOne(ctx, p, sym)
	}
}
