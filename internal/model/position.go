package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// PositionStatus is the lifecycle state of a Position (:
// status ∈ {open, closed}; Opening/Closing are internal PositionManager
// bookkeeping states between order submission and fill confirmation).
type PositionStatus int

const (
	PositionOpening PositionStatus = iota
	PositionOpen
	PositionClosing
	PositionClosed
)

func (s PositionStatus) String() string {
	switch s {
	case PositionOpening:
		return "opening"
	case PositionOpen:
		return "open"
	case PositionClosing:
		return "closing"
	default:
		return "closed"
	}
}

// TakeProfitLevel is one rung of a scaled-out take-profit ladder.
// SizeFraction values across a Position's ladder need not sum to 1; the
// remainder closes on stop or trailing stop.
type TakeProfitLevel struct {
	Price        decimal.Decimal
	SizeFraction float64
	Executed     bool
	FilledAt     time.Time
	FilledQty    decimal.Decimal
}

// Position is created by PositionManager on a filled entry order,
// mutated only by PositionManager, and closed exactly once (
// "Position").
type Position struct {
	ID               string
	TradeID          string
	StopOrderID      string
	Symbol           string
	Side             Direction
	Status           PositionStatus
	Qty              decimal.Decimal
	EntryPrice       decimal.Decimal
	Leverage         int
	OpenedAt         time.Time
	ClosedAt         time.Time
	StopLoss         decimal.Decimal
	TakeProfitLevels []TakeProfitLevel
	TrailingActive   bool
	TrailingStop     decimal.Decimal
	MaxProfitPctSeen float64
	ATRAtEntry       float64
	LastATREval      time.Time
	RealizedPnL      decimal.Decimal
	UnrealizedPnL    decimal.Decimal
	EntrySignal      Signal
	ExitReason       string
}

// RemainingQty sums the original qty minus whatever the TP ladder has
// already filled.
func (p Position) RemainingQty() decimal.Decimal {
	filled := decimal.Zero
	for _, tp := range p.TakeProfitLevels {
		if tp.Executed {
			filled = filled.Add(tp.FilledQty)
		}
	}
	return p.Qty.Sub(filled)
}

// Trade is a closed-position ledger entry ("Trade").
type Trade struct {
	ID          string
	Symbol      string
	Side        Direction
	EntryPrice  decimal.Decimal
	ExitPrice   decimal.Decimal
	Qty         decimal.Decimal
	Leverage    int
	OpenedAt    time.Time
	ClosedAt    time.Time
	PnL         decimal.Decimal
	PnLPct      float64
	Fees        decimal.Decimal
	ExitReason  string
	EntrySignal Signal
}
