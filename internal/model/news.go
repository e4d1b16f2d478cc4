package model

import "time"

// NewsItem is a deduplicated, scored news/social item from the news
// pipeline ("NewsItem"). ID is a hash of source-normalized
// title + source; deduplicated by title prefix, cooled down by semantic
// key for a fixed interval.
type NewsItem struct {
	ID                string
	Source            string
	SourceReliability float64 // [0, 1]
	SourceWeight      float64
	Title             string
	Description       string
	PublishedAt       time.Time
	ReceivedAt        time.Time
	SymbolsMentioned  []string
	Sentiment         float64 // [-1, 1]
	Confidence        float64 // [0, 1]
	EmergencySeverity float64
	Suppressed        bool
	SuppressedReason  string
}

// IsEmergency reports whether the item crosses the emergency severity
// threshold used by the engine's emergency exit path.
func (n NewsItem) IsEmergency(threshold float64) bool {
	return n.EmergencySeverity >= threshold
}
