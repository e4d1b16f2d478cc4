package risk

import (
	"context"
	"sync"
	"time"

	"tradingengine/internal/model"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// AccountReader supplies the live balance/position figures the
// tracker's periodic snapshot needs; Store/ExchangePort satisfy this
// at the engine wiring layer.
type AccountReader interface {
	TotalBalance(ctx context.Context) (decimal.Decimal, error)
	UsedCapital(ctx context.Context) (decimal.Decimal, map[string]float64, error)
}

// AlertNotifier is the narrow notifier port CapitalTracker alerts
// through; internal/notify satisfies this.
type AlertNotifier interface {
	Notify(priority, message string)
}

// Tracker is a background loop that snapshots allocation on a fixed
// interval and alerts on threshold breaches with a per-level cooldown.
type Tracker struct {
	reader      AccountReader
	notifier    AlertNotifier
	interval    time.Duration
	maxAllocPct float64

	mu            sync.RWMutex
	latest        model.CapitalSnapshot
	lastAlertedAt map[model.RiskLevel]time.Time
	cooldown      time.Duration
}

func NewTracker(reader AccountReader, notifier AlertNotifier, interval time.Duration, maxAllocPct float64) *Tracker {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Tracker{
		reader:        reader,
		notifier:      notifier,
		interval:      interval,
		maxAllocPct:   maxAllocPct,
		lastAlertedAt: make(map[model.RiskLevel]time.Time),
		cooldown:      15 * time.Minute,
	}
}

// Run blocks, producing snapshots at the configured interval until ctx
// is cancelled.
func (t *Tracker) Run(ctx context.Context) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.snapshotOnce(ctx)
		}
	}
}

func (t *Tracker) snapshotOnce(ctx context.Context) {
	balance, err := t.reader.TotalBalance(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("capital tracker: failed to read balance")
		return
	}
	used, perSymbol, err := t.reader.UsedCapital(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("capital tracker: failed to read used capital")
		return
	}

	snap := Snapshot(balance, used, perSymbol, t.maxAllocPct, time.Now())
	t.mu.Lock()
	t.latest = snap
	t.mu.Unlock()

	level := ClassifyRisk(snap.AllocationPct)
	t.maybeAlert(level, snap)
}

func (t *Tracker) maybeAlert(level model.RiskLevel, snap model.CapitalSnapshot) {
	if level == model.RiskNormal || t.notifier == nil {
		return
	}
	t.mu.Lock()
	last, ok := t.lastAlertedAt[level]
	if ok && time.Since(last) < t.cooldown {
		t.mu.Unlock()
		return
	}
	t.lastAlertedAt[level] = time.Now()
	t.mu.Unlock()

	priority := "normal"
	if level == model.RiskCritical {
		priority = "high"
	}
	t.notifier.Notify(priority, level.String()+" capital allocation at "+snap.TakenAt.Format(time.RFC3339))
}

// Latest returns the most recent snapshot taken.
func (t *Tracker) Latest() model.CapitalSnapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.latest
}
