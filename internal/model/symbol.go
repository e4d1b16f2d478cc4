// Package model defines the engine's core data types: Symbol, Candle,
// live market snapshots, Signal, Position, Trade, CapitalSnapshot,
// RiskState, and NewsItem. Types are immutable value structs or
// owned-by-one-component records, never string-keyed maps.
package model

import "time"

// Direction is a signal or position side.
type Direction int

const (
	Neutral Direction = iota
	Long
	Short
)

func (d Direction) String() string {
	switch d {
	case Long:
		return "long"
	case Short:
		return "short"
	default:
		return "neutral"
	}
}

// PositionSizeBand expresses a symbol's position size band as fractions
// of allocated capital.
type PositionSizeBand struct {
	Min      float64
	Standard float64
	Max      float64
}

// TrailingStopConfig configures the trailing-stop state machine for a symbol.
type TrailingStopConfig struct {
	Activation float64 // profit fraction at which trailing activates
	Distance   float64 // fraction below/above current price to trail at
}

// ATRConfig configures ATR-based stop/target generation for a symbol.
type ATRConfig struct {
	Period         int
	StopMult       float64
	TargetMult     float64
	MinStopDist    float64
	MaxStopDist    float64
}

// DailyTradeLimits caps per-symbol trading activity.
type DailyTradeLimits struct {
	MaxTrades     int
	MaxLossTrades int
	Cooldown      time.Duration
}

// EntryThresholds gates whether a fused signal should trade.
type EntryThresholds struct {
	SignalThreshold    float64
	ConfidenceRequired float64
	TimeframeAgreement float64
	ExtremeRSIOnly     bool
}

// TimeframeWeight pairs a timeframe with its MTF fusion weight.
type TimeframeWeight struct {
	Timeframe string
	Weight    float64
}

// Symbol holds static, immutable-after-startup configuration for one
// traded instrument ("Symbol").
type Symbol struct {
	Name                string
	QuotePrecision      int
	LotSize             float64
	MaxLeverage         int
	Leverage            int
	PortfolioWeight     float64
	SizeBand            PositionSizeBand
	MaxConcurrentPos    int
	TimeframeWeights    []TimeframeWeight
	Entry               EntryThresholds
	FallbackStopPct     float64
	FallbackTargetPct   float64
	Trailing            TrailingStopConfig
	ATR                 ATRConfig
	DailyLimits         DailyTradeLimits
	Strategy            string // "default" (BTC-like) or "momentum" (ETH-like)
}
