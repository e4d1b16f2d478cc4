// Command tradingengine runs the automated perpetual-futures trading
// engine: the EngineCycle scheduler plus its independent background
// tasks (capital snapshots, ML retraining, notification delivery) and
// the control-plane HTTP server, wired behind graceful shutdown.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"tradingengine/internal/cfg"
	"tradingengine/internal/control"
	"tradingengine/internal/engine"
	"tradingengine/internal/exchange"
	"tradingengine/internal/marketdata"
	"tradingengine/internal/metrics"
	"tradingengine/internal/ml"
	"tradingengine/internal/model"
	"tradingengine/internal/news"
	"tradingengine/internal/notify"
	"tradingengine/internal/position"
	"tradingengine/internal/risk"
	"tradingengine/internal/store"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// atrAdapter fits MarketData's OHLCV method to position.ATRSource's
// Candles name.
type atrAdapter struct{ md *marketdata.MarketData }

func (a atrAdapter) Candles(ctx context.Context, symbol, timeframe string, limit int) ([]model.Candle, error) {
	return a.md.OHLCV(ctx, symbol, timeframe, limit)
}

// priceAdapter fits MarketData's context-less CurrentPrice to
// position.PriceSource's signature.
type priceAdapter struct{ md *marketdata.MarketData }

func (a priceAdapter) CurrentPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	return a.md.CurrentPrice(symbol)
}

func main() {
	settings, err := cfg.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}
	symbols := settings.ResolveSymbols()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.New()
	recorder := metrics.NewRecorder(m)

	if settings.DataPath == "" {
		log.Fatal().Msg("DATABASE_PATH is required: positions, trades and kelly stats all need durable storage")
	}
	db, err := store.Open(settings.DataPath)
	if err != nil {
		log.Fatal().Err(err).Msg("storage initialization failed")
	}
	defer db.Close()

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		server := &http.Server{
			Addr:    fmt.Sprintf(":%d", settings.MetricsPort),
			Handler: mux,
		}
		go func() {
			<-ctx.Done()
			server.Shutdown(context.Background())
		}()
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("metrics server failed")
		}
	}()

	ex := exchange.New(exchange.Config{
		APIKey:              settings.APIKey,
		APISecret:           settings.APISecret,
		BaseURL:             settings.BaseURL,
		WsURL:               settings.WsURL,
		RESTTimeout:         settings.RESTTimeout,
		WsResponseTimeout:   settings.WsResponseTimeout,
		WsMaxReconnectDelay: settings.WsMaxReconnectWait,
		WsMaxAttempts:       settings.WsMaxAttempts,
		PaperTrading:        settings.PaperTrading,
	})
	defer ex.Close()
	for _, sym := range symbols {
		if err := ex.Subscribe(sym.Name); err != nil {
			log.Warn().Err(err).Str("symbol", sym.Name).Msg("failed to subscribe symbol stream")
		}
	}

	md := marketdata.New(ex, ex, marketdata.Config{})
	defer md.Close()

	notifier := buildNotifier(settings)

	limits := risk.Limits{
		DailyLossLimit:  settings.DailyLossLimit,
		WeeklyLossLimit: settings.WeeklyLossLimit,
		MaxDrawdown:     settings.MaxDrawdown,
		MaxTotalAlloc:   settings.MaxTotalAllocation,
		KellyFraction:   settings.KellyFraction,
		MinNotional:     5,
		MaxLossPerPos:   0.8,
	}
	gate := risk.NewGate(limits)

	capitalTracker := risk.NewTracker(db, notifier, 30*time.Second, settings.MaxTotalAllocation)
	kellyTracker := risk.NewKellyTracker(db, 50)

	ensemble := ml.NewEnsemble(settings.MLRetrainInterval, 1)
	if settings.MLModelPath != "" {
		if err := ensemble.Restore(settings.MLModelPath); err != nil {
			log.Warn().Err(err).Msg("no existing ml model restored, starting from an untrained ensemble")
		}
	}

	newsPipeline := news.New(nil, nil, news.Config{MinConfidence: settings.MinNewsConfidence})

	posManager := position.NewManager(ex, priceAdapter{md}, atrAdapter{md}, db, kellyTracker, notifier)

	eng := engine.New(engine.Config{
		Symbols:                symbols,
		CycleInterval:          settings.TradingCycleInterval,
		PredictionOutcomeAfter: time.Hour,
		RetrainEvery:           settings.MLRetrainInterval,
		ModelPath:              settings.MLModelPath,
		MaxLossPerPos:          limits.MaxLossPerPos,
	}, engine.Deps{
		Market:    md,
		RiskGate:  gate,
		Limits:    limits,
		Ensemble:  ensemble,
		News:      newsPipeline,
		Positions: posManager,
		Exchange:  ex,
		Store:     db,
		Notifier:  notifier,
		Metrics:   recorder,
	})

	controlSrv := control.New(eng, db, settings.ControlPort, settings.ControlToken)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		notifier.Run(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		capitalTracker.Run(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		eng.RunMLRetrainer(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		controlSrv.Run(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		eng.Run(ctx)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigChan:
		log.Info().Msg("shutdown signal received")
	case <-ctx.Done():
		log.Info().Msg("context cancelled")
	}

	log.Info().Msg("shutting down gracefully...")
	cancel()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info().Msg("all goroutines stopped")
	case <-time.After(10 * time.Second):
		log.Warn().Msg("shutdown timeout, forcing exit")
	}
}

func buildNotifier(settings cfg.Settings) *notify.Notifier {
	var channels []notify.Channel
	if settings.TelegramToken != "" && settings.TelegramChatID != "" {
		var chatID int64
		fmt.Sscanf(settings.TelegramChatID, "%d", &chatID)
		ch, err := notify.NewTelegramChannel(settings.TelegramToken, chatID)
		if err != nil {
			log.Warn().Err(err).Msg("telegram channel unavailable, notifications will only be logged")
		} else {
			channels = append(channels, ch)
		}
	}
	return notify.New(channels...)
}
