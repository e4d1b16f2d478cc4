package notify

import (
	"context"
	"sync"
	"testing"
	"time"
)

type fakeChannel struct {
	name string

	mu       sync.Mutex
	sent     []Message
	failN    int // Send fails this many times before succeeding
	attempts int
}

func (c *fakeChannel) Name() string { return c.name }

func (c *fakeChannel) Send(ctx context.Context, msg Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.attempts++
	if c.attempts <= c.failN {
		return errSendFailed
	}
	c.sent = append(c.sent, msg)
	return nil
}

func (c *fakeChannel) sentCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sent)
}

var errSendFailed = &sendError{}

type sendError struct{}

func (*sendError) Error() string { return "simulated send failure" }

func runFor(n *Notifier, d time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	n.Run(ctx)
}

func TestNotify_DeliversToChannel(t *testing.T) {
	ch := &fakeChannel{name: "telegram"}
	n := New(ch)
	n.Notify("high", "position opened")
	runFor(n, 100*time.Millisecond)

	if ch.sentCount() != 1 {
		t.Fatalf("expected 1 delivered message, got %d", ch.sentCount())
	}
}

func TestNotify_DuplicateSuppressedWithinWindow(t *testing.T) {
	ch := &fakeChannel{name: "telegram"}
	n := New(ch)
	n.Notify("normal", "routine status update")
	n.Notify("normal", "routine status update")
	runFor(n, 100*time.Millisecond)

	if ch.sentCount() != 1 {
		t.Fatalf("expected duplicate suppressed to 1 delivery, got %d", ch.sentCount())
	}
}

func TestNotifyTrade_AlwaysSendsEvenIfDuplicate(t *testing.T) {
	ch := &fakeChannel{name: "telegram"}
	n := New(ch)
	n.NotifyTrade("position closed: BTCUSDT +1.2%", nil)
	n.NotifyTrade("position closed: BTCUSDT +1.2%", nil)
	runFor(n, 150*time.Millisecond)

	if ch.sentCount() != 2 {
		t.Fatalf("expected trade-class messages to both send, got %d", ch.sentCount())
	}
}

func TestNotifyEmergency_AlwaysSendsEvenIfDuplicate(t *testing.T) {
	ch := &fakeChannel{name: "telegram"}
	n := New(ch)
	n.NotifyEmergency("exchange hack detected", nil)
	n.NotifyEmergency("exchange hack detected", nil)
	runFor(n, 150*time.Millisecond)

	if ch.sentCount() != 2 {
		t.Fatalf("expected emergency-class messages to both send, got %d", ch.sentCount())
	}
}

func TestDeliverWithRetry_RecoversAfterTransientFailures(t *testing.T) {
	ch := &fakeChannel{name: "telegram", failN: 2}
	n := New(ch)
	n.NotifyEmergency("circuit breaker tripped", nil)
	runFor(n, 2*time.Second) // two failures wait 0.5s + 1s before the third attempt

	if ch.sentCount() != 1 {
		t.Fatalf("expected eventual delivery after transient failures, got %d sent", ch.sentCount())
	}
}

func TestNotify_NormalPriority_NoRetryOnFailure(t *testing.T) {
	ch := &fakeChannel{name: "telegram", failN: 100}
	n := New(ch)
	n.Notify("normal", "minor notice")
	runFor(n, 100*time.Millisecond)

	ch.mu.Lock()
	attempts := ch.attempts
	ch.mu.Unlock()
	if attempts != 1 {
		t.Fatalf("expected exactly 1 attempt for best-effort normal delivery, got %d", attempts)
	}
}

func TestEnqueue_PrefersEmergencyOverNormal(t *testing.T) {
	ch := &fakeChannel{name: "telegram"}
	n := New(ch)
	for i := 0; i < 5; i++ {
		n.Notify("normal", "bulk update "+string(rune('a'+i)))
	}
	n.NotifyEmergency("urgent", nil)
	runFor(n, 200*time.Millisecond)

	ch.mu.Lock()
	defer ch.mu.Unlock()
	if len(ch.sent) == 0 {
		t.Fatal("expected at least one delivery")
	}
	if ch.sent[0].Priority != Emergency {
		t.Errorf("expected emergency message delivered first, got priority %v", ch.sent[0].Priority)
	}
}

func TestStats_TracksSuccessAndFailureStreak(t *testing.T) {
	ch := &fakeChannel{name: "telegram", failN: 100}
	n := New(ch)
	n.Notify("normal", "will fail")
	runFor(n, 100*time.Millisecond)

	stats := n.Stats()
	if stats.TotalSent != 1 || stats.Failed != 1 || stats.Successful != 0 {
		t.Fatalf("expected 1 failed delivery tracked, got %+v", stats)
	}
	if stats.CurrentFailureStreak != 1 || stats.LongestFailureStreak != 1 {
		t.Fatalf("expected a failure streak of 1, got %+v", stats)
	}
}

func TestStats_SuccessResetsFailureStreak(t *testing.T) {
	ch := &fakeChannel{name: "telegram"}
	n := New(ch)
	n.Notify("normal", "first message")
	runFor(n, 100*time.Millisecond)

	stats := n.Stats()
	if stats.Successful != 1 || stats.CurrentFailureStreak != 0 {
		t.Fatalf("expected a clean success with no failure streak, got %+v", stats)
	}
	if stats.LastSuccess.IsZero() {
		t.Error("expected LastSuccess to be recorded")
	}
}

func TestVerifyDeliveryHealth_NoSendsIsNoOp(t *testing.T) {
	n := New(&fakeChannel{name: "telegram"})
	n.verifyDeliveryHealth() // must not panic on an empty stats snapshot
	if n.Stats().TotalSent != 0 {
		t.Fatalf("expected stats to remain empty, got %+v", n.Stats())
	}
}

func TestParsePriority(t *testing.T) {
	cases := map[string]Priority{"emergency": Emergency, "high": High, "normal": Normal, "": Normal, "bogus": Normal}
	for in, want := range cases {
		if got := ParsePriority(in); got != want {
			t.Errorf("ParsePriority(%q) = %v, want %v", in, got, want)
		}
	}
}
