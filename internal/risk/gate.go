// Package risk implements RiskGate's pre-trade checks and
// CapitalTracker's allocation/Kelly sizing/ATR stop math. Generalized
// from a single-account float64 bookkeeping style into per-symbol
// RiskState/CapitalSnapshot records.
package risk

import (
	"fmt"
	"time"

	"tradingengine/internal/errs"
	"tradingengine/internal/model"
)

// Limits are the account-wide and per-symbol thresholds RiskGate's
// pre-trade checks enforce.
type Limits struct {
	DailyLossLimit  float64 // fraction of balance, e.g. 0.05
	WeeklyLossLimit float64
	MaxDrawdown     float64
	MaxTotalAlloc   float64 // MAX_TOTAL_ALLOCATION
	KellyFraction   float64 // default 0.25
	MinNotional     float64 // default $5
	MaxLossPerPos   float64 // default 0.8
}

// SymbolBook is the per-symbol bookkeeping RiskGate reads to evaluate
// its pre-trade checks.
type SymbolBook struct {
	TradesToday     int
	LossTradesToday int
	LastTradeAt     time.Time
	OpenPositions   int
	PositionSide    model.Direction // the direction already held, if any
}

// Account is the account-wide bookkeeping RiskGate and CapitalTracker
// read.
type Account struct {
	TotalBalance  float64
	DailyPnL      float64
	WeeklyPnL     float64
	PeakEquity    float64
	CurrentEquity float64
	OneSidedWarn  int // number of symbols already holding the same direction
	SymbolCount   int
}

// Gate runs pre-trade checks for one symbol.
type Gate struct {
	limits Limits
}

func NewGate(limits Limits) *Gate {
	return &Gate{limits: limits}
}

// Check runs every pre-trade condition and returns the first failure,
// wrapped as errs.RiskBlocked — a normal operational outcome, not an
// error.
func (g *Gate) Check(sym model.Symbol, book SymbolBook, acct Account, proposedDirection model.Direction, now time.Time) error {
	if acct.DailyPnL <= -g.limits.DailyLossLimit*acct.TotalBalance {
		return g.blocked("daily_loss_limit_breached")
	}
	if acct.WeeklyPnL <= -g.limits.WeeklyLossLimit*acct.TotalBalance {
		return g.blocked("weekly_loss_limit_breached")
	}
	if book.TradesToday >= sym.DailyLimits.MaxTrades {
		return g.blocked("max_trades_today_reached")
	}
	if book.LossTradesToday >= sym.DailyLimits.MaxLossTrades {
		return g.blocked("max_loss_trades_today_reached")
	}
	if !book.LastTradeAt.IsZero() && now.Sub(book.LastTradeAt) < sym.DailyLimits.Cooldown {
		return g.blocked("symbol_cooldown_active")
	}
	if book.OpenPositions >= sym.MaxConcurrentPos {
		return g.blocked("max_concurrent_positions_reached")
	}
	if acct.SymbolCount > 0 && acct.OneSidedWarn >= acct.SymbolCount {
		return g.blocked("portfolio_fully_one_sided")
	}
	if acct.PeakEquity > 0 {
		drawdown := (acct.PeakEquity - acct.CurrentEquity) / acct.PeakEquity
		if drawdown >= g.limits.MaxDrawdown {
			return g.blocked("max_drawdown_exceeded")
		}
	}
	return nil
}

func (g *Gate) blocked(reason string) error {
	return errs.New(errs.RiskBlocked, "risk.Gate.Check", fmt.Errorf(reason))
}
