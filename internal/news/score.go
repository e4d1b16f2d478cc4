package news

import (
	"context"
	"strings"

	"tradingengine/internal/model"

	"github.com/rs/zerolog/log"
)

const topRankedForLLM = 5

// SentimentResult is the structured output step 6 asks an
// LLM port to produce.
type SentimentResult struct {
	Sentiment  float64 // [-1, 1]
	Impact     float64 // [0, 1]
	Confidence float64 // [0, 1]
	Keywords   []string
	Summary    string
}

// SentimentScorer is the narrow LLM port; when unset the pipeline falls
// back to the deterministic keyword scorer.
type SentimentScorer interface {
	Score(ctx context.Context, title, description string) (SentimentResult, error)
}

var (
	positiveWords = []string{"surge", "rally", "adoption", "partnership", "upgrade", "bullish", "approval", "breakthrough", "record high"}
	negativeWords = []string{"crash", "hack", "exploit", "ban", "lawsuit", "bearish", "sell-off", "plunge", "investigation"}
)

// score fills Sentiment/Confidence for each item: the top-ranked few go
// through the LLM port if configured, the rest (and all of them when no
// port is configured) use the deterministic fallback (
// step 6).
func score(ctx context.Context, items []model.NewsItem, scorer SentimentScorer) []model.NewsItem {
	out := make([]model.NewsItem, len(items))
	copy(out, items)
	sortByPublished(out)

	llmBudget := 0
	if scorer != nil {
		llmBudget = topRankedForLLM
	}

	for i := range out {
		if i < llmBudget {
			res, err := scorer.Score(ctx, out[i].Title, out[i].Description)
			if err == nil {
				out[i].Sentiment = clamp(res.Sentiment, -1, 1)
				out[i].Confidence = clamp(res.Confidence, 0, 1)
				continue
			}
			log.Warn().Err(err).Str("item", out[i].ID).Msg("news: LLM scoring failed, falling back to keyword scorer")
		}
		out[i].Sentiment, out[i].Confidence = keywordScore(out[i].Title + " " + out[i].Description)
	}
	return out
}

func keywordScore(text string) (sentiment, confidence float64) {
	lower := strings.ToLower(text)
	pos, neg := 0, 0
	for _, w := range positiveWords {
		if strings.Contains(lower, w) {
			pos++
		}
	}
	for _, w := range negativeWords {
		if strings.Contains(lower, w) {
			neg++
		}
	}
	total := pos + neg
	if total == 0 {
		return 0, 0.3
	}
	sentiment = float64(pos-neg) / float64(total)
	confidence = clamp(0.4+0.1*float64(total), 0, 0.8)
	return clamp(sentiment, -1, 1), confidence
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
