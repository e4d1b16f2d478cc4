package engine

import (
	"context"
	"testing"
	"time"

	"tradingengine/internal/exchange"
	"tradingengine/internal/marketdata"
	"tradingengine/internal/model"
	"tradingengine/internal/news"
	"tradingengine/internal/position"
	"tradingengine/internal/risk"

	"github.com/shopspring/decimal"
)

type fakeExchange struct {
	price    decimal.Decimal
	balances map[string]exchange.Balance
	candles  []model.Candle
}

func (f *fakeExchange) FetchOHLCV(ctx context.Context, symbol, timeframe string, limit int) ([]model.Candle, error) {
	return f.candles, nil
}
func (f *fakeExchange) FetchBalance(ctx context.Context) (map[string]exchange.Balance, error) {
	return f.balances, nil
}
func (f *fakeExchange) FetchPositions(ctx context.Context, symbol string) ([]exchange.ExchangePosition, error) {
	return nil, nil
}
func (f *fakeExchange) PlaceOrder(ctx context.Context, symbol string, side exchange.OrderSide, typ exchange.OrderType, qty, price decimal.Decimal, params exchange.OrderParams) (exchange.Order, error) {
	return exchange.Order{ID: "order-1", Symbol: symbol, Side: side, Type: typ, Qty: qty, Price: f.price}, nil
}
func (f *fakeExchange) CancelOrder(ctx context.Context, id, symbol string) error { return nil }
func (f *fakeExchange) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	return nil
}
func (f *fakeExchange) Subscribe(symbol string) error                      { return nil }
func (f *fakeExchange) CurrentPrice(symbol string) (decimal.Decimal, bool) { return f.price, true }
func (f *fakeExchange) Close() error                                       { return nil }

type fakeFeed struct{}

func (fakeFeed) Ticks() <-chan model.Tick { ch := make(chan model.Tick); close(ch); return ch }
func (fakeFeed) Books() <-chan model.BookSnapshot {
	ch := make(chan model.BookSnapshot)
	close(ch)
	return ch
}

type fakeStore struct {
	predictions []model.SignalPrediction
	trades      map[string][]model.Trade
	kelly       model.KellyStats
	perf        model.DailyPerformance
	events      []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{trades: make(map[string][]model.Trade)}
}

func (s *fakeStore) RecordSignalPrediction(ctx context.Context, p model.SignalPrediction) error {
	s.predictions = append(s.predictions, p)
	return nil
}
func (s *fakeStore) UpdatePredictionOutcome(ctx context.Context, symbol string, ts time.Time, outcome string, realizedPnL float64) error {
	return nil
}
func (s *fakeStore) ListPredictionsWithOutcome(ctx context.Context, symbol string, limit int) ([]model.SignalPrediction, error) {
	return s.predictions, nil
}
func (s *fakeStore) ListTrades(ctx context.Context, symbol string, limit int) ([]model.Trade, error) {
	return s.trades[symbol], nil
}
func (s *fakeStore) GetKellyStats(ctx context.Context, symbol string) (model.KellyStats, error) {
	return s.kelly, nil
}
func (s *fakeStore) GetDailyPerformance(ctx context.Context, date time.Time) (model.DailyPerformance, error) {
	return s.perf, nil
}
func (s *fakeStore) UpdateDailyPerformance(ctx context.Context, perf model.DailyPerformance) error {
	s.perf = perf
	return nil
}
func (s *fakeStore) AppendSystemEvent(ctx context.Context, level, component, message string, eventCtx map[string]string) error {
	s.events = append(s.events, message)
	return nil
}

// position.Store methods, so the same fake can back the Positions manager.
func (s *fakeStore) SavePosition(ctx context.Context, p model.Position) error { return nil }
func (s *fakeStore) DeletePosition(ctx context.Context, id string) error      { return nil }
func (s *fakeStore) OpenPositions(ctx context.Context) ([]model.Position, error) {
	return nil, nil
}
func (s *fakeStore) SaveTrade(ctx context.Context, t model.Trade) error {
	s.trades[t.Symbol] = append(s.trades[t.Symbol], t)
	return nil
}

type fakeNotifier struct {
	notified  []string
	emergency []string
}

func (n *fakeNotifier) Notify(priority, message string) { n.notified = append(n.notified, message) }
func (n *fakeNotifier) NotifyEmergency(message string, metadata map[string]string) {
	n.emergency = append(n.emergency, message)
}

type fakeMetrics struct {
	blocked, generated, suppressed, opened, errs int
}

func (m *fakeMetrics) SignalsGeneratedInc()                 { m.generated++ }
func (m *fakeMetrics) SignalsSuppressedInc()                { m.suppressed++ }
func (m *fakeMetrics) RiskChecksBlockedInc()                { m.blocked++ }
func (m *fakeMetrics) PositionsOpenedInc()                  { m.opened++ }
func (m *fakeMetrics) CycleDurationObserve(seconds float64) {}
func (m *fakeMetrics) ErrorsTotalInc()                      { m.errs++ }
func (m *fakeMetrics) ActivePositionsSet(n int)             {}

func testSymbol() model.Symbol {
	return model.Symbol{
		Name:              "BTCUSDT",
		Leverage:          5,
		PortfolioWeight:   0.5,
		MaxConcurrentPos:  1,
		FallbackStopPct:   0.02,
		FallbackTargetPct: 0.04,
		TimeframeWeights:  []model.TimeframeWeight{{Timeframe: "1h", Weight: 1.0}},
		ATR:               model.ATRConfig{Period: 14, StopMult: 1.5, TargetMult: 3, MinStopDist: 0.01, MaxStopDist: 0.05},
	}
}

func sparseCandles(n int) []model.Candle {
	out := make([]model.Candle, n)
	for i := range out {
		out[i] = model.Candle{
			Symbol: "BTCUSDT", Timeframe: "1h", OpenTime: time.Now().Add(-time.Duration(n-i) * time.Hour),
			Open: decimal.NewFromInt(100), High: decimal.NewFromInt(101), Low: decimal.NewFromInt(99),
			Close: decimal.NewFromInt(100), Volume: decimal.NewFromInt(10),
		}
	}
	return out
}

func newTestEngine(t *testing.T, store *fakeStore, notifier *fakeNotifier, metrics *fakeMetrics, ex *fakeExchange) *Engine {
	t.Helper()
	md := marketdata.New(ex, fakeFeed{}, marketdata.Config{})
	t.Cleanup(md.Close)

	posMgr := position.NewManager(ex, nil, nil, store, nil, notifier)
	gate := risk.NewGate(risk.Limits{MaxTotalAlloc: 0.5, KellyFraction: 0.25, MinNotional: 5})
	newsPipeline := news.New(nil, nil, news.Config{})

	return New(Config{
		Symbols:                []model.Symbol{testSymbol()},
		CycleInterval:          time.Hour,
		PredictionOutcomeAfter: time.Hour,
		MaxLossPerPos:          0.8,
	}, Deps{
		Market:    md,
		RiskGate:  gate,
		Limits:    risk.Limits{MaxTotalAlloc: 0.5, KellyFraction: 0.25, MinNotional: 5},
		Ensemble:  nil,
		News:      newsPipeline,
		Positions: posMgr,
		Exchange:  ex,
		Store:     store,
		Notifier:  notifier,
		Metrics:   metrics,
	})
}

func TestRunCycle_InsufficientCandles_SkipsSymbolWithoutError(t *testing.T) {
	store := newFakeStore()
	notifier := &fakeNotifier{}
	metrics := &fakeMetrics{}
	ex := &fakeExchange{
		price:    decimal.NewFromInt(100),
		balances: map[string]exchange.Balance{"USDT": {Total: decimal.NewFromInt(1000)}},
		candles:  sparseCandles(10), // below marketdata's minimum row count
	}
	e := newTestEngine(t, store, notifier, metrics, ex)

	e.RunCycle(context.Background())

	if metrics.generated != 0 {
		t.Errorf("expected no signal to be generated on insufficient data, got %d", metrics.generated)
	}
	if metrics.opened != 0 {
		t.Errorf("expected no position to be opened, got %d", metrics.opened)
	}
}

func TestRunCycle_AccountFetchFails_MarksDegraded(t *testing.T) {
	store := newFakeStore()
	notifier := &fakeNotifier{}
	metrics := &fakeMetrics{}
	ex := &fakeExchange{price: decimal.NewFromInt(100)}
	e := newTestEngine(t, store, notifier, metrics, ex)

	// FetchBalance succeeds with a nil map above; force a failure path by
	// swapping in an exchange whose FetchBalance errors.
	e.deps.Exchange = failingBalanceExchange{fakeExchange: ex}

	e.RunCycle(context.Background())

	if !e.degraded {
		t.Error("expected engine to mark itself degraded when the account snapshot can't be built")
	}
}

type failingBalanceExchange struct {
	*fakeExchange
}

func (f failingBalanceExchange) FetchBalance(ctx context.Context) (map[string]exchange.Balance, error) {
	return nil, context.DeadlineExceeded
}

func TestStatus_ReportsEnabledAndBalance(t *testing.T) {
	store := newFakeStore()
	notifier := &fakeNotifier{}
	metrics := &fakeMetrics{}
	ex := &fakeExchange{price: decimal.NewFromInt(100), balances: map[string]exchange.Balance{"USDT": {Total: decimal.NewFromInt(500)}}}
	e := newTestEngine(t, store, notifier, metrics, ex)

	e.Stop()
	st := e.Status()
	if st.Enabled {
		t.Error("expected Status to report disabled after Stop")
	}

	e.Start()
	if !e.Status().Enabled {
		t.Error("expected Status to report enabled after Start")
	}
}

func TestHandleEmergency_ClosesMatchingPositionsAndNotifies(t *testing.T) {
	store := newFakeStore()
	notifier := &fakeNotifier{}
	metrics := &fakeMetrics{}
	ex := &fakeExchange{price: decimal.NewFromInt(100)}
	e := newTestEngine(t, store, notifier, metrics, ex)

	sym := testSymbol()
	pos, err := e.deps.Positions.Open(context.Background(), model.Signal{Symbol: sym.Name, Direction: model.Long}, sym, decimal.NewFromInt(1), position.StopTarget{StopDistance: 0.02, TargetDistance: 0.04})
	if err != nil {
		t.Fatalf("unexpected error opening position: %v", err)
	}

	e.handleEmergency(context.Background(), sym)

	if len(e.deps.Positions.Positions()) != 0 {
		t.Error("expected emergency handling to close the open position")
	}
	if len(notifier.emergency) == 0 {
		t.Error("expected an emergency notification to be emitted")
	}
	if len(store.trades[sym.Name]) != 1 {
		t.Errorf("expected one trade recorded for %s, got %d", sym.Name, len(store.trades[sym.Name]))
	}
	_ = pos
}

func TestPrimaryTimeframeOf_PicksHighestWeight(t *testing.T) {
	sym := model.Symbol{TimeframeWeights: []model.TimeframeWeight{
		{Timeframe: "15m", Weight: 0.2},
		{Timeframe: "4h", Weight: 0.7},
		{Timeframe: "1h", Weight: 0.1},
	}}
	if got := primaryTimeframeOf(sym); got != "4h" {
		t.Errorf("expected 4h as primary timeframe, got %s", got)
	}
}

func TestPrimaryTimeframeOf_DefaultsWhenUnset(t *testing.T) {
	if got := primaryTimeframeOf(model.Symbol{}); got != "1h" {
		t.Errorf("expected default 1h, got %s", got)
	}
}

func TestComputeSymbolBook_CountsTodaysTradesOnly(t *testing.T) {
	store := newFakeStore()
	notifier := &fakeNotifier{}
	metrics := &fakeMetrics{}
	ex := &fakeExchange{price: decimal.NewFromInt(100)}
	e := newTestEngine(t, store, notifier, metrics, ex)

	now := time.Now().UTC()
	store.trades["BTCUSDT"] = []model.Trade{
		{Symbol: "BTCUSDT", ClosedAt: now, PnL: decimal.NewFromInt(-1)},
		{Symbol: "BTCUSDT", ClosedAt: now.AddDate(0, 0, -3), PnL: decimal.NewFromInt(5)},
	}

	book := e.computeSymbolBook(context.Background(), testSymbol(), now)
	if book.TradesToday != 1 {
		t.Errorf("expected only today's trade to be counted, got %d", book.TradesToday)
	}
	if book.LossTradesToday != 1 {
		t.Errorf("expected today's losing trade to be counted, got %d", book.LossTradesToday)
	}
}

func TestEmergencyFor_ConfiguredThresholdOverridesDefault(t *testing.T) {
	store := newFakeStore()
	notifier := &fakeNotifier{}
	metrics := &fakeMetrics{}
	ex := &fakeExchange{price: decimal.NewFromInt(100)}
	e := newTestEngine(t, store, notifier, metrics, ex)
	e.cfg.EmergencyThreshold = 0.5

	e.lastNews = news.Result{Items: []model.NewsItem{
		{SymbolsMentioned: []string{"BTCUSDT"}, Sentiment: -0.9, Confidence: 0.9, EmergencySeverity: 0.6},
	}}

	if !e.emergencyFor("BTCUSDT") {
		t.Error("expected emergency severity above the configured threshold to trigger")
	}
	if e.emergencyFor("ETHUSDT") {
		t.Error("expected a symbol with no matching news to not trigger an emergency")
	}
}
