package position

import (
	"context"
	"testing"

	"tradingengine/internal/exchange"
	"tradingengine/internal/model"

	"github.com/shopspring/decimal"
)

type fakeExchange struct {
	price       decimal.Decimal
	placedOrder []exchange.Order
	nextID      int
	placeErr    error
}

func (f *fakeExchange) PlaceOrder(ctx context.Context, symbol string, side exchange.OrderSide, typ exchange.OrderType, qty, price decimal.Decimal, params exchange.OrderParams) (exchange.Order, error) {
	if f.placeErr != nil {
		return exchange.Order{}, f.placeErr
	}
	f.nextID++
	o := exchange.Order{ID: decimal.NewFromInt(int64(f.nextID)).String(), Symbol: symbol, Side: side, Type: typ, Qty: qty, Price: f.price}
	f.placedOrder = append(f.placedOrder, o)
	return o, nil
}

func (f *fakeExchange) CancelOrder(ctx context.Context, id, symbol string) error { return nil }
func (f *fakeExchange) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	return nil
}
func (f *fakeExchange) CurrentPrice(symbol string) (decimal.Decimal, bool) { return f.price, true }

type fakeStore struct {
	saved  []model.Position
	trades []model.Trade
}

func (s *fakeStore) SavePosition(ctx context.Context, p model.Position) error {
	s.saved = append(s.saved, p)
	return nil
}
func (s *fakeStore) DeletePosition(ctx context.Context, id string) error { return nil }
func (s *fakeStore) OpenPositions(ctx context.Context) ([]model.Position, error) {
	return nil, nil
}
func (s *fakeStore) SaveTrade(ctx context.Context, t model.Trade) error {
	s.trades = append(s.trades, t)
	return nil
}

type fakeKelly struct {
	calls []float64
}

func (k *fakeKelly) RecordOutcome(symbol string, pnlPct float64, win bool) {
	k.calls = append(k.calls, pnlPct)
}

func testSym() model.Symbol {
	return model.Symbol{
		Name:              "BTCUSDT",
		Leverage:          5,
		FallbackStopPct:   0.02,
		FallbackTargetPct: 0.04,
		Trailing:          model.TrailingStopConfig{Activation: 0.01, Distance: 0.005},
		ATR:               model.ATRConfig{Period: 14},
	}
}

func TestOpen_PlacesEntryAndStop(t *testing.T) {
	ex := &fakeExchange{price: decimal.NewFromInt(100)}
	store := &fakeStore{}
	m := NewManager(ex, nil, nil, store, nil, nil)

	sig := model.Signal{Symbol: "BTCUSDT", Direction: model.Long}
	pos, err := m.Open(context.Background(), sig, testSym(), decimal.NewFromInt(1), StopTarget{StopDistance: 0.02, TargetDistance: 0.04, ATR: 1.5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pos.StopOrderID == "" {
		t.Error("expected stop order to be placed")
	}
	if len(ex.placedOrder) != 2 {
		t.Errorf("expected entry + stop order, got %d", len(ex.placedOrder))
	}
	if len(store.saved) != 1 {
		t.Errorf("expected position to be persisted once, got %d", len(store.saved))
	}
}

func TestOpen_EntryFails_ReturnsError(t *testing.T) {
	ex := &fakeExchange{price: decimal.NewFromInt(100), placeErr: context.DeadlineExceeded}
	m := NewManager(ex, nil, nil, &fakeStore{}, nil, nil)
	_, err := m.Open(context.Background(), model.Signal{Direction: model.Long}, testSym(), decimal.NewFromInt(1), StopTarget{})
	if err == nil {
		t.Fatal("expected error when entry order placement fails")
	}
}

func TestUpdateTrailingStop_ActivatesAndTightensOnly(t *testing.T) {
	ex := &fakeExchange{price: decimal.NewFromInt(110)}
	m := NewManager(ex, nil, nil, &fakeStore{}, nil, nil)
	sym := testSym()
	pos := &model.Position{Symbol: sym.Name, Side: model.Long, EntryPrice: decimal.NewFromInt(100), Qty: decimal.NewFromInt(1)}

	m.updateTrailingStop(context.Background(), pos, sym, decimal.NewFromInt(110), 0.10)
	if !pos.TrailingActive {
		t.Fatal("expected trailing stop to activate once profit exceeds activation threshold")
	}
	firstStop := pos.TrailingStop

	// Price retreats: stop must not loosen.
	m.updateTrailingStop(context.Background(), pos, sym, decimal.NewFromInt(105), 0.05)
	if pos.TrailingStop.LessThan(firstStop) {
		t.Errorf("trailing stop loosened: first=%s after=%s", firstStop, pos.TrailingStop)
	}
}

func TestCheckStopLoss_ClosesOnBreach(t *testing.T) {
	ex := &fakeExchange{price: decimal.NewFromInt(95)}
	store := &fakeStore{}
	kelly := &fakeKelly{}
	m := NewManager(ex, nil, nil, store, kelly, nil)
	sym := testSym()
	pos := &model.Position{
		Symbol: sym.Name, Side: model.Long, Qty: decimal.NewFromInt(1),
		EntryPrice: decimal.NewFromInt(100), StopLoss: decimal.NewFromInt(98),
	}
	m.mu.Lock()
	m.positions[sym.Name] = pos
	m.mu.Unlock()

	closed := m.checkStopLoss(context.Background(), pos, sym, decimal.NewFromInt(95))
	if !closed {
		t.Fatal("expected stop loss to trigger close")
	}
	if len(store.trades) != 1 {
		t.Errorf("expected one trade recorded, got %d", len(store.trades))
	}
	if store.trades[0].ExitReason != "stop_loss" {
		t.Errorf("expected exit reason stop_loss, got %s", store.trades[0].ExitReason)
	}
	if len(kelly.calls) != 1 {
		t.Error("expected Kelly tracker to be fed the realized outcome")
	}
}

func TestReconcile_ImportsAndDiscards(t *testing.T) {
	store := &fakeStore{}
	ex := &fakeExchange{price: decimal.NewFromInt(100)}
	m := NewManager(ex, nil, nil, store, nil, nil)

	// In-memory only: should be discarded.
	m.mu.Lock()
	m.positions["ETHUSDT"] = &model.Position{Symbol: "ETHUSDT"}
	m.mu.Unlock()

	// Swap in a store that reports a different open position (DB-only: import).
	dbOnly := &fakeStoreWithOpen{Position: model.Position{Symbol: "BTCUSDT", Status: model.PositionOpen}}
	m.store = dbOnly

	if err := m.Reconcile(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := m.positions["ETHUSDT"]; ok {
		t.Error("expected in-memory-only position to be discarded")
	}
	if _, ok := m.positions["BTCUSDT"]; !ok {
		t.Error("expected DB-only position to be imported")
	}
}

type fakeStoreWithOpen struct {
	fakeStore
	Position model.Position
}

func (s *fakeStoreWithOpen) OpenPositions(ctx context.Context) ([]model.Position, error) {
	return []model.Position{s.Position}, nil
}

func TestProfitPctOf_LongAndShort(t *testing.T) {
	long := &model.Position{Side: model.Long, EntryPrice: decimal.NewFromInt(100)}
	if got := profitPctOf(long, decimal.NewFromInt(110)); got <= 0 {
		t.Errorf("expected positive profit for long on price increase, got %f", got)
	}
	short := &model.Position{Side: model.Short, EntryPrice: decimal.NewFromInt(100)}
	if got := profitPctOf(short, decimal.NewFromInt(90)); got <= 0 {
		t.Errorf("expected positive profit for short on price decrease, got %f", got)
	}
}

func TestBuildTakeProfitLadder_SumsToFullSize(t *testing.T) {
	levels := buildTakeProfitLadder(model.Long, decimal.NewFromInt(100), 0.06)
	total := 0.0
	for _, l := range levels {
		total += l.SizeFraction
	}
	if total < 0.99 || total > 1.01 {
		t.Errorf("expected ladder size fractions to sum to ~1, got %f", total)
	}
}
