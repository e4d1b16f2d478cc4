package risk

import (
	"time"

	"tradingengine/internal/model"

	"github.com/shopspring/decimal"
)

// Allocation is CapitalTracker's final sizing decision for one
// proposed trade ("Capital allocation").
type Allocation struct {
	Amount  decimal.Decimal
	Refused bool
	Reason  string
}

// PositionBook supplies the open-margin figures CapitalTracker needs:
// total margin used across all open positions, and margin already
// committed to the target symbol specifically.
type PositionBook struct {
	TotalMarginUsed  decimal.Decimal
	SymbolMarginUsed decimal.Decimal
}

// Allocate computes capital allocation formula for one
// symbol, folding in the Kelly-fraction suggestion and the signal's
// position-size multiplier.
func Allocate(totalBalance decimal.Decimal, maxTotalAllocPct float64, book PositionBook, symbolWeight float64, maxPositions int, kelly KellyStats, kellyFraction float64, positionSizeMultiplier float64, minNotional decimal.Decimal) Allocation {
	maxAllowedCapital := totalBalance.Mul(decimal.NewFromFloat(maxTotalAllocPct))
	availableUnderCap := maxAllowedCapital.Sub(book.TotalMarginUsed)

	targetSymbolAllocation := maxAllowedCapital.Mul(decimal.NewFromFloat(symbolWeight))
	remaining := targetSymbolAllocation.Sub(book.SymbolMarginUsed)

	safeKelly := kelly.suggest(kellyFraction)

	perPositionCap := targetSymbolAllocation
	if maxPositions > 0 {
		perPositionCap = targetSymbolAllocation.Div(decimal.NewFromInt(int64(maxPositions)))
	}
	kellyCap := remaining.Mul(decimal.NewFromFloat(safeKelly))

	amount := minOfFour(remaining, perPositionCap, kellyCap, availableUnderCap)
	if amount.IsNegative() {
		amount = decimal.Zero
	}
	amount = amount.Mul(decimal.NewFromFloat(positionSizeMultiplier))

	if amount.LessThan(minNotional) {
		return Allocation{Refused: true, Reason: "below_minimum_notional"}
	}
	return Allocation{Amount: amount}
}

func minOfFour(a, b, c, d decimal.Decimal) decimal.Decimal {
	m := a
	for _, v := range []decimal.Decimal{b, c, d} {
		if v.LessThan(m) {
			m = v
		}
	}
	return m
}

// KellyStats wraps model.KellyStats with the suggestion formula from
// : kelly = (b·p − (1−p))/b, clamped to [0, 0.25], then
// scaled by KELLY_FRACTION.
type KellyStats model.KellyStats

func (k KellyStats) suggest(kellyFraction float64) float64 {
	avgWin, _ := k.AvgWin.Float64()
	avgLoss, _ := k.AvgLoss.Float64()
	if avgLoss == 0 {
		return 0
	}
	p := model.KellyStats(k).WinRate()
	b := avgWin / avgLoss
	if b == 0 {
		return 0
	}
	kelly := (b*p - (1 - p)) / b
	kelly = clampf(kelly, 0, 0.25)
	return kelly * kellyFraction
}

func clampf(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Snapshot builds a CapitalSnapshot from the current account figures
// ("CapitalTracker").
func Snapshot(totalBalance, usedCapital decimal.Decimal, perSymbolAllocation map[string]float64, maxAllocPct float64, now time.Time) model.CapitalSnapshot {
	maxAllowed := totalBalance.Mul(decimal.NewFromFloat(maxAllocPct))
	available := maxAllowed.Sub(usedCapital)
	pct := 0.0
	if !totalBalance.IsZero() {
		pct, _ = usedCapital.Div(totalBalance).Float64()
	}
	return model.CapitalSnapshot{
		TotalBalance:        totalBalance,
		UsedCapital:         usedCapital,
		AvailableUnderCap:   available,
		AllocationPct:       pct,
		PerSymbolAllocation: perSymbolAllocation,
		WithinLimit:         !available.IsNegative(),
		TakenAt:             now,
	}
}

// ClassifyRisk maps an allocation percentage to
// warning(25%)/danger(30%)/critical(32%) thresholds.
func ClassifyRisk(allocationPct float64) model.RiskLevel {
	switch {
	case allocationPct >= 0.32:
		return model.RiskCritical
	case allocationPct >= 0.30:
		return model.RiskDanger
	case allocationPct >= 0.25:
		return model.RiskWarning
	default:
		return model.RiskNormal
	}
}
