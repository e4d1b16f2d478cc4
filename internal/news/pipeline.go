package news

import (
	"context"
	"net/http"
	"time"

	"tradingengine/internal/model"
)

// Config configures one run of the pipeline.
type Config struct {
	Feeds          []FeedConfig
	MinConfidence  float64 // MIN_CONFIDENCE, default 0.6
	CooldownPeriod time.Duration
}

// Pipeline is NewsPipeline: fetch → dedupe → filter → cooldown →
// emergency scan → score, run on demand (the engine loop calls Run once
// per cycle on its own schedule).
type Pipeline struct {
	client   HTTPClient
	scorer   SentimentScorer
	cfg      Config
	cooldown *Cooldown
}

func New(client HTTPClient, scorer SentimentScorer, cfg Config) *Pipeline {
	if client == nil {
		client = http.DefaultClient
	}
	if cfg.MinConfidence == 0 {
		cfg.MinConfidence = 0.6
	}
	return &Pipeline{
		client:   client,
		scorer:   scorer,
		cfg:      cfg,
		cooldown: NewCooldown(cfg.CooldownPeriod),
	}
}

// Result is one pipeline run's output: the surviving items (cooldown-
// suppressed ones marked but still present for audit) and whether an
// emergency was declared across any of them.
type Result struct {
	Items             []model.NewsItem
	EmergencyDeclared bool
}

// Run executes one full pipeline pass (steps 1-6).
func (p *Pipeline) Run(ctx context.Context) Result {
	now := time.Now()
	raw := fetchAll(ctx, p.client, p.cfg.Feeds)

	items := make([]model.NewsItem, 0, len(raw))
	for _, r := range raw {
		items = append(items, toNewsItem(r, now))
	}

	items = dedupe(items)
	items = filter(items, now, p.cfg.MinConfidence)
	items = p.cooldown.Apply(items, now)
	items, emergency := scanEmergency(items)
	items = score(ctx, items, p.scorer)

	return Result{Items: items, EmergencyDeclared: emergency}
}

// SymbolSentiment aggregates the active (non-suppressed) items'
// sentiment/confidence/impact for one symbol, the shape
// internal/signal's NewsSource port consumes.
func SymbolSentiment(items []model.NewsItem, symbol string) (sentiment, confidence, impact, emergencySeverity float64) {
	count := 0
	for _, it := range items {
		if it.Suppressed {
			continue
		}
		if !mentionsSymbol(it, symbol) {
			continue
		}
		sentiment += it.Sentiment * it.Confidence
		confidence += it.Confidence
		if it.EmergencySeverity > emergencySeverity {
			emergencySeverity = it.EmergencySeverity
		}
		count++
	}
	if count == 0 {
		return 0, 0, 0, 0
	}
	sentiment /= float64(count)
	confidence /= float64(count)
	impact = clamp(float64(count)/5.0, 0, 1)
	return sentiment, confidence, impact, emergencySeverity
}

func mentionsSymbol(it model.NewsItem, symbol string) bool {
	if len(it.SymbolsMentioned) == 0 {
		return true // no entity extraction stage: treat as market-wide
	}
	for _, s := range it.SymbolsMentioned {
		if s == symbol {
			return true
		}
	}
	return false
}
