package engine

import "time"

// Status is the snapshot the control surface's GET /status and
// WebSocket feed report.
type Status struct {
	Timestamp     time.Time `json:"timestamp"`
	Enabled       bool      `json:"enabled"`
	Degraded      bool      `json:"degraded"`
	StartedAt     time.Time `json:"startedAt"`
	OpenPositions int       `json:"openPositions"`
	TotalBalance  float64   `json:"totalBalance"`
	DailyPnL      float64   `json:"dailyPnL"`
}

// Status reports the engine's current run state for the control
// surface; it never touches the exchange or store, so it's always
// cheap and safe to call from an HTTP handler.
func (e *Engine) Status() Status {
	e.mu.RLock()
	defer e.mu.RUnlock()

	open := 0
	if e.deps.Positions != nil {
		open = len(e.deps.Positions.Positions())
	}

	return Status{
		Timestamp:     time.Now(),
		Enabled:       e.enabled,
		Degraded:      e.degraded,
		StartedAt:     e.startedAt,
		OpenPositions: open,
		TotalBalance:  e.lastTotalBalance,
		DailyPnL:      e.lastDailyPnL,
	}
}
