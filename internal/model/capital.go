package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// CapitalSnapshot is produced at a fixed interval and on demand by the
// CapitalTracker ("CapitalSnapshot").
type CapitalSnapshot struct {
	TotalBalance        decimal.Decimal
	UsedCapital         decimal.Decimal
	AvailableUnderCap   decimal.Decimal
	AllocationPct       float64
	PerSymbolAllocation map[string]float64
	WithinLimit         bool
	TakenAt             time.Time
}

// RiskLevel classifies a CapitalSnapshot's allocation pressure.
type RiskLevel int

const (
	RiskNormal RiskLevel = iota
	RiskWarning
	RiskDanger
	RiskCritical
)

func (l RiskLevel) String() string {
	switch l {
	case RiskWarning:
		return "warning"
	case RiskDanger:
		return "danger"
	case RiskCritical:
		return "critical"
	default:
		return "normal"
	}
}

// RiskState is a derived view of account risk built from the Store and
// a CapitalSnapshot. No component constructs one: RiskGate's Check reads
// risk.SymbolBook and risk.Account instead.
type RiskState struct {
	Level                RiskLevel
	CircuitOpen          bool
	DailyPnlPct          float64
	WeeklyPnlPct         float64
	PerSymbolTradesToday map[string]int
	CooldownUntil        map[string]time.Time
	PeakEquity           decimal.Decimal
	CurrentDrawdown      float64
	DailyLossBreach      bool
	WeeklyLossBreach     bool
	DrawdownBreach       bool
	Snapshot             CapitalSnapshot
}

// CanOpenNewPositions reports whether the RiskGate permits opening new
// exposure at all, independent of per-symbol cooldowns.
func (r RiskState) CanOpenNewPositions() bool {
	return !r.CircuitOpen && !r.DailyLossBreach && !r.WeeklyLossBreach && !r.DrawdownBreach
}

// SymbolOnCooldown reports whether symbol is still in its post-loss
// cooldown window as of now.
func (r RiskState) SymbolOnCooldown(symbol string, now time.Time) bool {
	until, ok := r.CooldownUntil[symbol]
	return ok && now.Before(until)
}

// KellyStats tracks rolling win-rate and average win/loss per symbol for
// Kelly-fraction position sizing.
type KellyStats struct {
	Symbol       string
	Wins         int
	Losses       int
	AvgWin       decimal.Decimal
	AvgLoss      decimal.Decimal
	SampleWindow int
}

// WinRate returns the rolling win fraction, or 0.5 when no trades have
// been recorded yet.
func (k KellyStats) WinRate() float64 {
	total := k.Wins + k.Losses
	if total == 0 {
		return 0.5
	}
	return float64(k.Wins) / float64(total)
}
