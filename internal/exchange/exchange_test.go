package exchange

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestSign_Deterministic(t *testing.T) {
	a := sign("secret", "nonce", "key", "123")
	b := sign("secret", "nonce", "key", "123")
	if a != b {
		t.Error("expected sign to be deterministic for identical inputs")
	}
	c := sign("secret", "nonce", "key", "124")
	if a == c {
		t.Error("expected sign to differ when timestamp changes")
	}
}

func TestBackoffDelay_Bounded(t *testing.T) {
	max := 60 * time.Second
	for attempt := 1; attempt < 20; attempt++ {
		d := backoffDelay(attempt, max)
		if d > max {
			t.Errorf("attempt %d: delay %v exceeds max %v", attempt, d, max)
		}
		if d < 0 {
			t.Errorf("attempt %d: negative delay %v", attempt, d)
		}
	}
}

func TestPaperSimulator_FillsAtCachedPrice(t *testing.T) {
	ws := newWSClient("wss://example/invalid", time.Second, time.Second, 1)
	ws.lastPrice["BTCUSDT"] = decimal.NewFromInt(50000)

	sim := newPaperSimulator(ws)
	order, err := sim.placeOrder("BTCUSDT", SideBuy, OrderMarket, decimal.NewFromInt(1), decimal.Zero, OrderParams{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !order.Price.Equal(decimal.NewFromInt(50000)) {
		t.Errorf("expected fill at cached price 50000, got %s", order.Price)
	}
	if order.Status != "filled" {
		t.Errorf("expected synthetic fill status, got %s", order.Status)
	}
}

func TestDualWindowLimiter_Allows(t *testing.T) {
	l := newDualWindowLimiter(10, 300)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := l.Wait(ctx); err != nil {
		t.Errorf("expected first acquire on a fresh limiter to succeed, got %v", err)
	}
}
