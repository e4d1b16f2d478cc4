// Package engine implements the Engine loop: one sequential pass over
// every configured symbol per cycle (ML outcome backfill, risk
// pre-checks, signal generation, emergency handling, capital
// allocation, position management) plus the ML retraining task that
// runs alongside it on its own schedule. News is fetched inside each
// cycle, not by a separate loop. Generalized from a single
// symbol/pair event loop into a deterministic multi-symbol scheduler
// with cooperative shutdown.
package engine

import (
	"context"
	"sync"
	"time"

	"tradingengine/internal/errs"
	"tradingengine/internal/exchange"
	"tradingengine/internal/marketdata"
	"tradingengine/internal/ml"
	"tradingengine/internal/model"
	"tradingengine/internal/news"
	"tradingengine/internal/position"
	"tradingengine/internal/risk"
	"tradingengine/internal/signal"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// Store is the narrow persistence port Engine reads and writes through
// directly (PositionManager and CapitalTracker hold their own, smaller
// slices of the same concrete *store.Store).
type Store interface {
	RecordSignalPrediction(ctx context.Context, p model.SignalPrediction) error
	UpdatePredictionOutcome(ctx context.Context, symbol string, ts time.Time, outcome string, realizedPnL float64) error
	ListPredictionsWithOutcome(ctx context.Context, symbol string, limit int) ([]model.SignalPrediction, error)
	ListTrades(ctx context.Context, symbol string, limit int) ([]model.Trade, error)
	GetKellyStats(ctx context.Context, symbol string) (model.KellyStats, error)
	GetDailyPerformance(ctx context.Context, date time.Time) (model.DailyPerformance, error)
	UpdateDailyPerformance(ctx context.Context, perf model.DailyPerformance) error
	AppendSystemEvent(ctx context.Context, level, component, message string, eventCtx map[string]string) error
}

// Notifier is the narrow alerting port the engine emits emergency and
// operational notices through.
type Notifier interface {
	Notify(priority, message string)
	NotifyEmergency(message string, metadata map[string]string)
}

// Metrics is the narrow recorder port the engine's cycle reports
// through.
type Metrics interface {
	SignalsGeneratedInc()
	SignalsSuppressedInc()
	RiskChecksBlockedInc()
	PositionsOpenedInc()
	CycleDurationObserve(seconds float64)
	ErrorsTotalInc()
	ActivePositionsSet(n int)
}

// Config holds the per-run tunables governing cycle pacing and the
// emergency/retrain/backfill horizons.
type Config struct {
	Symbols                []model.Symbol // traded in this order every cycle
	CycleInterval          time.Duration  // TRADING_CYCLE_INTERVAL, default 300s
	MinAnalysisInterval    time.Duration  // per-symbol floor between analyses
	PredictionOutcomeAfter time.Duration  // backfill horizon, default 1h
	RetrainEvery           time.Duration
	ModelPath              string
	MaxLossPerPos          float64
	EmergencyThreshold     float64 // news EmergencySeverity that forces an exit
}

// Deps bundles every collaborator Engine orchestrates; each is the
// narrowest port the cycle actually calls.
type Deps struct {
	Market    *marketdata.MarketData
	RiskGate  *risk.Gate
	Limits    risk.Limits
	Ensemble  *ml.Ensemble
	News      *news.Pipeline
	Positions *position.Manager
	Exchange  exchange.ExchangePort
	Store     Store
	Notifier  Notifier
	Metrics   Metrics
}

// Engine runs the EngineCycle sequential pass (Run) and the MLRetrainer
// task (RunMLRetrainer). The capital tracker and notifier worker belong
// to their own packages; main starts every one of these tasks on its
// own goroutine, and Engine neither starts nor stops them.
type Engine struct {
	cfg    Config
	deps   Deps
	signal *signal.Engine

	mu         sync.RWMutex
	enabled    bool
	degraded   bool
	startedAt  time.Time
	lastRunAt        map[string]time.Time
	lastNews         news.Result
	peakEquity       decimal.Decimal
	lastTotalBalance float64
	lastDailyPnL     float64
}

func New(cfg Config, deps Deps) *Engine {
	if cfg.CycleInterval <= 0 {
		cfg.CycleInterval = 300 * time.Second
	}
	if cfg.PredictionOutcomeAfter <= 0 {
		cfg.PredictionOutcomeAfter = time.Hour
	}
	e := &Engine{
		cfg:       cfg,
		deps:      deps,
		enabled:   true,
		lastRunAt: make(map[string]time.Time),
	}
	// The signal engine is built here, not passed in through Deps,
	// because its NewsSource/MLSource ports read back through this
	// Engine (lastNews, the shared ensemble) rather than being
	// independently constructable before it exists.
	e.signal = signal.New(deps.Market, newsAdapter{e}, mlAdapter{deps.Ensemble})
	return e
}

// Run blocks, running one cycle immediately and then one per
// CycleInterval, until ctx is cancelled. Cancellation is cooperative:
// the in-flight cycle finishes its current symbol before Run returns.
func (e *Engine) Run(ctx context.Context) {
	if err := e.deps.Positions.Reconcile(ctx); err != nil {
		log.Warn().Err(err).Msg("engine: position reconciliation failed at startup")
	}
	e.mu.Lock()
	e.startedAt = time.Now()
	e.mu.Unlock()

	ticker := time.NewTicker(e.cfg.CycleInterval)
	defer ticker.Stop()

	e.RunCycle(ctx)
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("engine: shutting down, no new cycles")
			return
		case <-ticker.C:
			e.RunCycle(ctx)
		}
	}
}

// Start re-enables trade execution; the cycle keeps running either way
// so monitoring and manage-loop coverage never lapse.
func (e *Engine) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.enabled = true
}

// Stop disables new trade execution; open positions are still managed
// (trailed, stopped, closed) every cycle.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.enabled = false
}

func (e *Engine) isEnabled() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.enabled
}

func (e *Engine) setDegraded(v bool) {
	e.mu.Lock()
	e.degraded = v
	e.mu.Unlock()
}

func (e *Engine) recordEvent(ctx context.Context, level, component, message string) {
	if e.deps.Store == nil {
		return
	}
	if err := e.deps.Store.AppendSystemEvent(ctx, level, component, message, nil); err != nil {
		log.Warn().Err(err).Msg("engine: failed to persist system event")
	}
}

// newsAdapter satisfies signal.NewsSource over the engine's most
// recently completed NewsPipeline run.
type newsAdapter struct{ e *Engine }

func (a newsAdapter) Read(symbol string) signal.NewsRead {
	a.e.mu.RLock()
	items := a.e.lastNews.Items
	a.e.mu.RUnlock()

	sentiment, confidence, impact, severity := news.SymbolSentiment(items, symbol)
	impactLabel := "low"
	switch {
	case impact >= 0.66:
		impactLabel = "high"
	case impact >= 0.33:
		impactLabel = "medium"
	}
	return signal.NewsRead{Sentiment: sentiment, Confidence: confidence, Impact: impactLabel, EmergencySeverity: severity}
}

// mlAdapter satisfies signal.MLSource over the shared ensemble; the
// ensemble is not symbol-specific, so symbol is unused beyond the
// interface shape signal.Engine expects.
type mlAdapter struct{ ensemble *ml.Ensemble }

func (a mlAdapter) Predict(_ string, features []float64) (signal.MLRead, error) {
	if a.ensemble == nil {
		return signal.MLRead{}, nil
	}
	pred := a.ensemble.Predict(features)
	trained := false
	for _, m := range pred.PerModel {
		if m.Trained {
			trained = true
			break
		}
	}
	return signal.MLRead{Score: pred.Score, Confidence: pred.Confidence, Trained: trained}, nil
}

func isSkippable(err error) bool {
	return errs.OfKind(err, errs.DataMissing) || errs.OfKind(err, errs.DataStale)
}
