package news

import (
	"strings"

	"tradingengine/internal/model"
)

// emergencyThreshold and minSourceWeight gate step 5's
// "an emergency is declared when severity ≥ 1.2 from a source with
// weight ≥ 0.7".
const (
	emergencyThreshold = 1.2
	minSourceWeight    = 0.7
	spamKeywordCount   = 3
)

// keywordSeverities is the fixed emergency-keyword table 
// names, each weighted by how market-moving that event class typically
// is.
var keywordSeverities = map[string]float64{
	"hack":          2.0,
	"exploit":       2.0,
	"rug pull":      2.0,
	"insolvent":     1.8,
	"bankruptcy":    1.8,
	"delisted":      1.5,
	"delisting":     1.5,
	"sec lawsuit":   1.6,
	"regulatory ban": 1.6,
	"depeg":         1.7,
	"halted":        1.3,
	"frozen funds":  1.5,
	"emergency":     1.2,
}

// scanEmergency computes each item's EmergencySeverity in place
// (step 5): severity = keywordSeverity × sourceReliability
// × sourceWeight, halved when 3+ distinct keywords match (spam
// heuristic). Returns whether any item crosses the declared-emergency
// bar.
func scanEmergency(items []model.NewsItem) (out []model.NewsItem, declared bool) {
	out = make([]model.NewsItem, len(items))
	for i, it := range items {
		severity, matches := matchKeywordSeverity(it.Title + " " + it.Description)
		if matches >= spamKeywordCount {
			severity /= 2
		}
		it.EmergencySeverity = severity * it.SourceReliability * it.SourceWeight
		if it.EmergencySeverity >= emergencyThreshold && it.SourceWeight >= minSourceWeight {
			declared = true
		}
		out[i] = it
	}
	return out, declared
}

func matchKeywordSeverity(text string) (maxSeverity float64, matchCount int) {
	lower := strings.ToLower(text)
	for kw, sev := range keywordSeverities {
		if strings.Contains(lower, kw) {
			matchCount++
			if sev > maxSeverity {
				maxSeverity = sev
			}
		}
	}
	return maxSeverity, matchCount
}
