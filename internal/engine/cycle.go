package engine

import (
	"context"
	"time"

	"tradingengine/internal/common"
	"tradingengine/internal/indicators"
	"tradingengine/internal/model"
	"tradingengine/internal/news"
	"tradingengine/internal/position"
	"tradingengine/internal/risk"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// RunCycle executes one full pass: ML outcome backfill, per-symbol
// risk/signal/emergency/execution/manage steps, performance aggregate
// refresh. Each stage checks ctx between symbols so shutdown is
// cooperative rather than abrupt.
func (e *Engine) RunCycle(ctx context.Context) {
	start := time.Now()
	defer func() {
		if e.deps.Metrics != nil {
			e.deps.Metrics.CycleDurationObserve(time.Since(start).Seconds())
		}
	}()

	e.backfillPredictionOutcomes(ctx)

	if e.deps.News != nil {
		result := e.deps.News.Run(ctx)
		e.mu.Lock()
		e.lastNews = result
		e.mu.Unlock()
		if result.EmergencyDeclared && e.deps.Notifier != nil {
			e.deps.Notifier.NotifyEmergency("market-wide news emergency declared", nil)
		}
	}

	account, err := e.buildAccount(ctx)
	if err != nil {
		log.Error().Err(err).Msg("engine: failed to build account snapshot, skipping cycle")
		e.setDegraded(true)
		return
	}
	e.setDegraded(false)

	now := time.Now()
	for _, sym := range e.cfg.Symbols {
		select {
		case <-ctx.Done():
			return
		default:
		}
		e.runSymbol(ctx, sym, account, now)
	}

	e.refreshPerformance(ctx, now)
}

func (e *Engine) runSymbol(ctx context.Context, sym model.Symbol, account risk.Account, now time.Time) {
	last, seen := e.lastRunAt[sym.Name]
	if seen && e.cfg.MinAnalysisInterval > 0 && now.Sub(last) < e.cfg.MinAnalysisInterval {
		e.deps.Positions.ManageAll(ctx, map[string]model.Symbol{sym.Name: sym})
		return
	}
	e.lastRunAt[sym.Name] = now

	book := e.computeSymbolBook(ctx, sym, now)
	if err := e.deps.RiskGate.Check(sym, book, account, model.Neutral, now); err != nil {
		if e.deps.Metrics != nil {
			e.deps.Metrics.RiskChecksBlockedInc()
		}
		e.deps.Positions.ManageAll(ctx, map[string]model.Symbol{sym.Name: sym})
		return
	}

	sig, err := e.signal.Generate(ctx, sym, now)
	if err != nil {
		if !isSkippable(err) {
			log.Warn().Err(err).Str("symbol", sym.Name).Msg("engine: signal generation failed")
			if e.deps.Metrics != nil {
				e.deps.Metrics.ErrorsTotalInc()
			}
		}
		e.deps.Positions.ManageAll(ctx, map[string]model.Symbol{sym.Name: sym})
		return
	}
	if e.deps.Metrics != nil {
		e.deps.Metrics.SignalsGeneratedInc()
	}

	if e.deps.Store != nil {
		_ = e.deps.Store.RecordSignalPrediction(ctx, model.SignalPrediction{
			ID: sym.Name + "_" + now.Format(time.RFC3339Nano), Symbol: sym.Name, Ts: now,
			Direction: sig.Direction, Score: sig.Score, Confidence: sig.Confidence,
			Features: sig.Features,
		})
	}

	if emergency := e.emergencyFor(sym.Name); emergency {
		e.handleEmergency(ctx, sym)
		return
	}

	if sig.Tradeable && e.isEnabled() {
		e.execute(ctx, sym, sig, account)
	} else if !sig.Tradeable && e.deps.Metrics != nil {
		e.deps.Metrics.SignalsSuppressedInc()
	}

	e.deps.Positions.ManageAll(ctx, map[string]model.Symbol{sym.Name: sym})
}

// emergencyFor reports whether the most recent news run declared an
// emergency severe enough, for this symbol specifically, to force an
// exit rather than just suppress the signal.
func (e *Engine) emergencyFor(symbol string) bool {
	e.mu.RLock()
	items := e.lastNews.Items
	e.mu.RUnlock()
	_, _, _, severity := news.SymbolSentiment(items, symbol)
	threshold := e.cfg.EmergencyThreshold
	if threshold <= 0 {
		threshold = common.EmergencySeverityThreshold
	}
	return severity >= threshold
}

func (e *Engine) handleEmergency(ctx context.Context, sym model.Symbol) {
	for _, p := range e.deps.Positions.Positions() {
		if p.Symbol != sym.Name {
			continue
		}
		e.deps.Positions.CloseForReason(ctx, p.ID, sym, "emergency")
	}
	if e.deps.Notifier != nil {
		e.deps.Notifier.NotifyEmergency("emergency exit triggered for "+sym.Name, map[string]string{"symbol": sym.Name})
	}
	e.recordEvent(ctx, "warn", "engine", "emergency exit: "+sym.Name)
}

func (e *Engine) execute(ctx context.Context, sym model.Symbol, sig model.Signal, account risk.Account) {
	candles, err := e.deps.Market.OHLCV(ctx, sym.Name, primaryTimeframeOf(sym), 250)
	if err != nil {
		if !isSkippable(err) {
			log.Warn().Err(err).Str("symbol", sym.Name).Msg("engine: candle fetch for stop sizing failed")
		}
		return
	}
	stops := risk.ComputeATRStops(candles, sym, sym.Leverage, e.cfg.MaxLossPerPos)

	var kelly risk.KellyStats
	if e.deps.Store != nil {
		if stats, err := e.deps.Store.GetKellyStats(ctx, sym.Name); err == nil {
			kelly = risk.KellyStats(stats)
		}
	}
	alloc := risk.Allocate(decimal.NewFromFloat(account.TotalBalance), e.riskLimits().MaxTotalAlloc, e.positionBookFor(sym.Name), sym.PortfolioWeight,
		sym.MaxConcurrentPos, kelly, e.riskLimits().KellyFraction, sig.PositionSizeMultiplier, decimal.NewFromFloat(5))
	if alloc.Refused {
		log.Info().Str("symbol", sym.Name).Str("reason", alloc.Reason).Msg("engine: capital allocation refused trade")
		return
	}

	price, ok := e.deps.Exchange.CurrentPrice(sym.Name)
	if !ok || price.IsZero() {
		log.Warn().Str("symbol", sym.Name).Msg("engine: no live price available, skipping execution")
		return
	}
	qty := alloc.Amount.Mul(decimal.NewFromInt(int64(sym.Leverage))).Div(price)
	if qty.IsZero() || qty.IsNegative() {
		return
	}

	ind := indicators.Compute(sym.Name, primaryTimeframeOf(sym), candles)
	atr, _ := ind.Latest("atr")

	_, err = e.deps.Positions.Open(ctx, sig, sym, qty, position.StopTarget{
		StopDistance: stops.StopDistance, TargetDistance: stops.TargetDistance, ATR: atr,
	})
	if err != nil {
		log.Warn().Err(err).Str("symbol", sym.Name).Msg("engine: position open failed")
		if e.deps.Metrics != nil {
			e.deps.Metrics.ErrorsTotalInc()
		}
		return
	}
	if e.deps.Metrics != nil {
		e.deps.Metrics.PositionsOpenedInc()
	}
}

func primaryTimeframeOf(sym model.Symbol) string {
	best, bestWeight := "", -1.0
	for _, tw := range sym.TimeframeWeights {
		if tw.Weight > bestWeight {
			best, bestWeight = tw.Timeframe, tw.Weight
		}
	}
	if best == "" {
		return "1h"
	}
	return best
}

func (e *Engine) riskLimits() risk.Limits { return e.deps.Limits }

func (e *Engine) positionBookFor(symbol string) risk.PositionBook {
	var total, symbolUsed decimal.Decimal
	for _, p := range e.deps.Positions.Positions() {
		margin := p.EntryPrice.Mul(p.Qty).Div(decimal.NewFromInt(int64(maxInt(p.Leverage, 1))))
		total = total.Add(margin)
		if p.Symbol == symbol {
			symbolUsed = symbolUsed.Add(margin)
		}
	}
	return risk.PositionBook{TotalMarginUsed: total, SymbolMarginUsed: symbolUsed}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// computeSymbolBook derives the day's trade activity for symbol from
// the trade ledger rather than an in-memory counter updated by a close
// callback, so a restart never loses today's count.
func (e *Engine) computeSymbolBook(ctx context.Context, sym model.Symbol, now time.Time) risk.SymbolBook {
	book := risk.SymbolBook{}
	today := now.UTC().Truncate(24 * time.Hour)

	if e.deps.Store != nil {
		trades, err := e.deps.Store.ListTrades(ctx, sym.Name, 200)
		if err != nil {
			log.Warn().Err(err).Str("symbol", sym.Name).Msg("engine: failed to read trade ledger for risk book")
		}
		for _, t := range trades {
			if !t.ClosedAt.UTC().Truncate(24 * time.Hour).Equal(today) {
				continue
			}
			book.TradesToday++
			if t.PnL.IsNegative() {
				book.LossTradesToday++
			}
			if book.LastTradeAt.Before(t.ClosedAt) {
				book.LastTradeAt = t.ClosedAt
			}
		}
	}

	for _, p := range e.deps.Positions.Positions() {
		if p.Symbol != sym.Name {
			continue
		}
		book.OpenPositions++
		book.PositionSide = p.Side
	}
	return book
}

func (e *Engine) buildAccount(ctx context.Context) (risk.Account, error) {
	balances, err := e.deps.Exchange.FetchBalance(ctx)
	if err != nil {
		return risk.Account{}, err
	}
	total := decimal.Zero
	for _, b := range balances {
		total = total.Add(b.Total)
	}
	totalF, _ := total.Float64()

	today := time.Now().UTC().Truncate(24 * time.Hour)
	var dailyPnL, weeklyPnL float64
	if e.deps.Store != nil {
		if perf, err := e.deps.Store.GetDailyPerformance(ctx, today); err == nil {
			dailyPnL, _ = perf.NetPnL.Float64()
		}
		for i := 0; i < 7; i++ {
			day := today.AddDate(0, 0, -i)
			if perf, err := e.deps.Store.GetDailyPerformance(ctx, day); err == nil {
				v, _ := perf.NetPnL.Float64()
				weeklyPnL += v
			}
		}
	}

	e.mu.Lock()
	if totalF > 0 {
		peak, _ := e.peakEquity.Float64()
		if totalF > peak {
			e.peakEquity = total
		}
		if e.peakEquity.IsZero() {
			e.peakEquity = total
		}
	}
	peakEquity, _ := e.peakEquity.Float64()
	e.lastTotalBalance = totalF
	e.mu.Unlock()

	longCount, shortCount, symbolCount := 0, 0, len(e.cfg.Symbols)
	for _, p := range e.deps.Positions.Positions() {
		if p.Side == model.Long {
			longCount++
		} else if p.Side == model.Short {
			shortCount++
		}
	}
	oneSided := longCount
	if shortCount > oneSided {
		oneSided = shortCount
	}

	return risk.Account{
		TotalBalance:  totalF,
		DailyPnL:      dailyPnL,
		WeeklyPnL:     weeklyPnL,
		PeakEquity:    peakEquity,
		CurrentEquity: totalF,
		OneSidedWarn:  oneSided,
		SymbolCount:   symbolCount,
	}, nil
}

func (e *Engine) backfillPredictionOutcomes(ctx context.Context) {
	if e.deps.Store == nil {
		return
	}
	cutoff := time.Now().Add(-e.cfg.PredictionOutcomeAfter)
	for _, sym := range e.cfg.Symbols {
		trades, err := e.deps.Store.ListTrades(ctx, sym.Name, 20)
		if err != nil {
			continue
		}
		for _, t := range trades {
			if t.ClosedAt.After(cutoff) {
				continue
			}
			outcome := "no_trade"
			if t.PnL.IsPositive() {
				outcome = "correct"
			} else if t.PnL.IsNegative() {
				outcome = "incorrect"
			}
			pnl, _ := t.PnL.Float64()
			if err := e.deps.Store.UpdatePredictionOutcome(ctx, sym.Name, t.OpenedAt, outcome, pnl); err != nil {
				log.Warn().Err(err).Str("symbol", sym.Name).Msg("engine: prediction outcome backfill failed")
			}
		}
	}
}

func (e *Engine) refreshPerformance(ctx context.Context, now time.Time) {
	if e.deps.Store == nil {
		return
	}
	today := now.UTC().Truncate(24 * time.Hour)
	perf, err := e.deps.Store.GetDailyPerformance(ctx, today)
	if err != nil {
		log.Warn().Err(err).Msg("engine: failed to read today's performance aggregate")
		return
	}
	perf.Date = today

	opened, closed, wins, losses := 0, 0, 0, 0
	var gross, fees, net decimal.Decimal
	for _, sym := range e.cfg.Symbols {
		trades, err := e.deps.Store.ListTrades(ctx, sym.Name, 500)
		if err != nil {
			continue
		}
		for _, t := range trades {
			if !t.ClosedAt.UTC().Truncate(24 * time.Hour).Equal(today) {
				continue
			}
			closed++
			gross = gross.Add(t.PnL).Add(t.Fees)
			fees = fees.Add(t.Fees)
			net = net.Add(t.PnL)
			if t.PnL.IsPositive() {
				wins++
			} else if t.PnL.IsNegative() {
				losses++
			}
			if t.OpenedAt.UTC().Truncate(24 * time.Hour).Equal(today) {
				opened++
			}
		}
	}
	perf.TradesOpened, perf.TradesClosed = opened, closed
	perf.WinCount, perf.LossCount = wins, losses
	perf.GrossPnL, perf.Fees, perf.NetPnL = gross, fees, net
	if !gross.IsZero() {
		perf.PnLPct, _ = net.Div(gross.Abs()).Float64()
	}

	if err := e.deps.Store.UpdateDailyPerformance(ctx, perf); err != nil {
		log.Warn().Err(err).Msg("engine: failed to persist performance aggregate")
	}
	netPnL, _ := perf.NetPnL.Float64()
	e.mu.Lock()
	e.lastDailyPnL = netPnL
	e.mu.Unlock()
	if e.deps.Metrics != nil {
		e.deps.Metrics.ActivePositionsSet(len(e.deps.Positions.Positions()))
	}
}
