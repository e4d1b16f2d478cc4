package engine

import (
	"context"
	"time"

	"tradingengine/internal/ml"

	"github.com/rs/zerolog/log"
)

// minRetrainSamples is the smallest outcome-backfilled sample set worth
// training on; below this the heads would just overfit noise.
const minRetrainSamples = 30

// RunMLRetrainer is the independent MLRetrainer background task
// (runs alongside EngineCycle on its own schedule): periodically checks
// the shared ensemble's staleness rule and, when due, retrains it from
// every outcome-backfilled prediction recorded since the last round.
func (e *Engine) RunMLRetrainer(ctx context.Context) {
	interval := e.cfg.RetrainEvery
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.retrainOnce(ctx)
		}
	}
}

// retrainOnce gathers samples in the exact feature shape
// signal.FeatureVector produces — the same vector already persisted on
// each SignalPrediction at generation time — so training never drifts
// from what Predict sees live.
func (e *Engine) retrainOnce(ctx context.Context) {
	if e.deps.Ensemble == nil || e.deps.Store == nil {
		return
	}
	if !e.deps.Ensemble.ShouldRetrain(time.Now()) {
		return
	}

	var samples []ml.Sample
	for _, sym := range e.cfg.Symbols {
		preds, err := e.deps.Store.ListPredictionsWithOutcome(ctx, sym.Name, 500)
		if err != nil {
			log.Warn().Err(err).Str("symbol", sym.Name).Msg("engine: failed to read predictions for retrain")
			continue
		}
		for _, p := range preds {
			samples = append(samples, ml.Sample{Features: p.Features, Target: p.RealizedPnL})
		}
	}
	if len(samples) < minRetrainSamples {
		log.Debug().Int("samples", len(samples)).Msg("engine: not enough outcome-backfilled samples to retrain yet")
		return
	}

	report := e.deps.Ensemble.Train(samples)
	log.Info().Int("samples", report.Samples).Strs("trained", report.Trained).Msg("engine: ml ensemble retrained")
	for head, err := range report.Failed {
		log.Warn().Err(err).Str("head", head).Msg("engine: ml head failed to train")
	}

	if e.cfg.ModelPath == "" {
		return
	}
	if err := e.deps.Ensemble.Persist(e.cfg.ModelPath); err != nil {
		log.Warn().Err(err).Msg("engine: failed to persist retrained ensemble")
	}
}
