// Package notify implements the Notifier: a priority MPSC queue
// fanning out to configured delivery channels (chat, webhook) with
// at-least-once retry for emergency/high priority messages and
// best-effort delivery for normal, plus duplicate suppression within
// a short window.
//
// The Telegram channel's bot lifecycle mirrors the only Telegram
// integration anywhere in the retrieval pack
// (yohannesjx-sniperterminal's NotificationService).
package notify

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Priority is the Notifier's three-level urgency classification.
type Priority int

const (
	Normal Priority = iota
	High
	Emergency
)

func (p Priority) String() string {
	switch p {
	case Emergency:
		return "emergency"
	case High:
		return "high"
	default:
		return "normal"
	}
}

// ParsePriority maps the loose string priority callers pass (e.g. from
// the narrow AlertNotifier/Notifier consumer ports) onto Priority,
// defaulting to Normal for anything unrecognized.
func ParsePriority(s string) Priority {
	switch s {
	case "emergency":
		return Emergency
	case "high":
		return High
	default:
		return Normal
	}
}

// Class marks a message as exempt from duplicate suppression
// (: "except for trade and emergency classes, which always
// send").
type Class string

const (
	ClassDefault   Class = ""
	ClassTrade     Class = "trade"
	ClassEmergency Class = "emergency"
)

// Message is one outbound notification (
// `{content, channel, priority, metadata, retries}`).
type Message struct {
	Content  string
	Channel  string
	Priority Priority
	Class    Class
	Metadata map[string]string
	Retries  int
}

// Channel delivers a Message to one destination (Telegram chat,
// webhook, ...).
type Channel interface {
	Name() string
	Send(ctx context.Context, msg Message) error
}

const (
	dedupeWindow   = 60 * time.Second
	maxRetries     = 5
	initialBackoff = 500 * time.Millisecond
	queueCapacity  = 256
)

// DeliveryStats tracks how reliably messages have actually reached
// their channels, the figures the verification loop reports on.
type DeliveryStats struct {
	TotalSent            int
	Successful           int
	Failed               int
	CurrentFailureStreak int
	LongestFailureStreak int
	LastSuccess          time.Time
}

// Notifier is the process-wide notification fan-out service: three
// priority queues drained by one worker loop that always prefers
// emergency over high over normal, so a burst of routine messages
// never delays a high-priority alert behind it.
type Notifier struct {
	channels []Channel

	emergencyQ chan Message
	highQ      chan Message
	normalQ    chan Message

	mu       sync.Mutex
	lastSent map[string]time.Time

	statsMu sync.Mutex
	stats   DeliveryStats
}

// New builds a Notifier delivering to the given channels (typically
// just a Telegram channel, optional `TELEGRAM_*`
// destination; additional webhook channels can be added the same way).
func New(channels ...Channel) *Notifier {
	return &Notifier{
		channels:   channels,
		emergencyQ: make(chan Message, queueCapacity),
		highQ:      make(chan Message, queueCapacity),
		normalQ:    make(chan Message, queueCapacity),
		lastSent:   make(map[string]time.Time),
	}
}

// Notify implements the narrow consumer-side port
// (risk.AlertNotifier / position.Notifier): `Notify(priority, message)`.
// It builds a default-channel, default-class Message and enqueues it.
func (n *Notifier) Notify(priority, message string) {
	n.Enqueue(Message{Content: message, Priority: ParsePriority(priority)})
}

// NotifyTrade enqueues a trade-lifecycle message (open/close/partial
// fill), always exempt from duplicate suppression .
func (n *Notifier) NotifyTrade(message string, metadata map[string]string) {
	n.Enqueue(Message{Content: message, Priority: High, Class: ClassTrade, Metadata: metadata})
}

// NotifyEmergency enqueues an emergency-class message (news emergency,
// circuit breaker trip, fatal configuration error), always exempt from
// duplicate suppression.
func (n *Notifier) NotifyEmergency(message string, metadata map[string]string) {
	n.Enqueue(Message{Content: message, Priority: Emergency, Class: ClassEmergency, Metadata: metadata})
}

// Enqueue places a message on its priority queue, dropping it (after
// logging) if that queue is full rather than blocking the caller —
// notification delivery must never stall the trading path.
func (n *Notifier) Enqueue(msg Message) {
	if n.suppressDuplicate(msg) {
		return
	}
	var q chan Message
	switch msg.Priority {
	case Emergency:
		q = n.emergencyQ
	case High:
		q = n.highQ
	default:
		q = n.normalQ
	}
	select {
	case q <- msg:
	default:
		log.Warn().Str("priority", msg.Priority.String()).Msg("notify: queue full, dropping message")
	}
}

func (n *Notifier) suppressDuplicate(msg Message) bool {
	if msg.Class == ClassTrade || msg.Class == ClassEmergency {
		return false
	}
	key := contentHash(msg.Content)
	now := time.Now()

	n.mu.Lock()
	defer n.mu.Unlock()
	if last, ok := n.lastSent[key]; ok && now.Sub(last) < dedupeWindow {
		return true
	}
	n.lastSent[key] = now
	return false
}

func contentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// Stats returns a snapshot of delivery reliability since startup.
func (n *Notifier) Stats() DeliveryStats {
	n.statsMu.Lock()
	defer n.statsMu.Unlock()
	return n.stats
}

func (n *Notifier) recordDelivery(success bool) {
	n.statsMu.Lock()
	defer n.statsMu.Unlock()
	n.stats.TotalSent++
	if success {
		n.stats.Successful++
		n.stats.LastSuccess = time.Now()
		n.stats.CurrentFailureStreak = 0
		return
	}
	n.stats.Failed++
	n.stats.CurrentFailureStreak++
	if n.stats.CurrentFailureStreak > n.stats.LongestFailureStreak {
		n.stats.LongestFailureStreak = n.stats.CurrentFailureStreak
	}
}

// verificationInterval is how often the delivery-success-rate check
// runs, mirroring the hourly cadence of the original system's
// notification verification loop.
const verificationInterval = time.Hour

// runVerificationLoop periodically reports delivery reliability and
// warns when the success rate or failure streak crosses an
// operationally meaningful threshold — the Notifier's own
// self-health check, independent of any one message's retry outcome.
func (n *Notifier) runVerificationLoop(ctx context.Context) {
	ticker := time.NewTicker(verificationInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n.verifyDeliveryHealth()
		}
	}
}

func (n *Notifier) verifyDeliveryHealth() {
	stats := n.Stats()
	if stats.TotalSent == 0 {
		return
	}
	successRate := float64(stats.Successful) / float64(stats.TotalSent)
	log.Info().Float64("success_rate", successRate).Int("total_sent", stats.TotalSent).
		Msg("notify: delivery health check")
	if stats.TotalSent >= 10 && successRate < 0.8 {
		log.Warn().Float64("success_rate", successRate).Int("failure_streak", stats.CurrentFailureStreak).
			Msg("notify: delivery success rate below threshold")
	}
	if stats.CurrentFailureStreak >= 5 {
		log.Error().Int("failure_streak", stats.CurrentFailureStreak).
			Msg("notify: consecutive delivery failures")
	}
}

// Run drains all three queues until ctx is canceled, always servicing
// emergency before high before normal, alongside the periodic
// delivery-health verification loop.
func (n *Notifier) Run(ctx context.Context) {
	go n.runVerificationLoop(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-n.emergencyQ:
			n.deliver(ctx, msg)
		default:
			select {
			case <-ctx.Done():
				return
			case msg := <-n.emergencyQ:
				n.deliver(ctx, msg)
			case msg := <-n.highQ:
				n.deliver(ctx, msg)
			case msg := <-n.normalQ:
				n.deliver(ctx, msg)
			}
		}
	}
}

func (n *Notifier) deliver(ctx context.Context, msg Message) {
	retryable := msg.Priority == Emergency || msg.Priority == High
	for _, ch := range n.channels {
		if msg.Channel != "" && msg.Channel != ch.Name() {
			continue
		}
		if retryable {
			n.deliverWithRetry(ctx, ch, msg)
		} else {
			err := ch.Send(ctx, msg)
			n.recordDelivery(err == nil)
			if err != nil {
				log.Warn().Err(err).Str("channel", ch.Name()).Msg("notify: best-effort delivery failed")
			}
		}
	}
}

// deliverWithRetry implements at-least-once delivery for emergency/
// high priority messages: bounded exponential backoff, .
func (n *Notifier) deliverWithRetry(ctx context.Context, ch Channel, msg Message) {
	backoff := initialBackoff
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := ch.Send(ctx, msg); err == nil {
			n.recordDelivery(true)
			return
		} else {
			lastErr = err
		}
		if attempt == maxRetries {
			break
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	n.recordDelivery(false)
	log.Error().Err(lastErr).Str("channel", ch.Name()).Int("priority", int(msg.Priority)).
		Msg("notify: exhausted retry budget, message undelivered")
}
