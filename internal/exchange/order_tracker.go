package exchange

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// orderMetrics is the subset of the metrics surface the tracker reports
// through; kept as a local interface so this package doesn't import
// internal/metrics directly.
type orderMetrics interface {
	OrderTimeoutsInc()
	OrderRetriesInc()
	OrderExecutionDurationObserve(seconds float64)
}

// TrackedOrderStatus is the lifecycle state of a submitted order as seen
// by the tracker, distinct from the exchange's own fill status string.
type TrackedOrderStatus string

const (
	TrackedPending   TrackedOrderStatus = "pending"
	TrackedFilled    TrackedOrderStatus = "filled"
	TrackedRejected  TrackedOrderStatus = "rejected"
	TrackedTimedOut  TrackedOrderStatus = "timed_out"
)

// TrackedOrder is one order submission under timeout/retry supervision.
type TrackedOrder struct {
	ClientOrderID string
	Symbol        string
	Side          OrderSide
	Type          OrderType
	Qty           decimal.Decimal
	Status        TrackedOrderStatus
	SubmittedAt   time.Time
	TimeoutAt     time.Time
	RetryCount    int
	Result        Order
	Err           error
}

// OrderTracker wraps an ExchangePort's PlaceOrder with retry-with-backoff
// submission and a background sweep that marks orders that never
// confirm within executionTimeout as timed out (order lifecycle). The
// sweep does not cancel those orders on the exchange.
type OrderTracker struct {
	mu                  sync.RWMutex
	orders              map[string]*TrackedOrder
	port                ExchangePort
	executionTimeout    time.Duration
	statusCheckInterval time.Duration
	maxRetries          int
	metrics             orderMetrics

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewOrderTracker starts the tracker's background sweep goroutine.
// Call Stop to shut it down.
func NewOrderTracker(port ExchangePort, executionTimeout, statusCheckInterval time.Duration, maxRetries int) *OrderTracker {
	if executionTimeout <= 0 {
		executionTimeout = 30 * time.Second
	}
	if statusCheckInterval <= 0 {
		statusCheckInterval = 5 * time.Second
	}
	if maxRetries < 0 {
		maxRetries = 3
	}

	ctx, cancel := context.WithCancel(context.Background())
	ot := &OrderTracker{
		orders:              make(map[string]*TrackedOrder),
		port:                port,
		executionTimeout:    executionTimeout,
		statusCheckInterval: statusCheckInterval,
		maxRetries:          maxRetries,
		ctx:                 ctx,
		cancel:              cancel,
	}
	ot.wg.Add(1)
	go ot.monitor()
	return ot
}

func (ot *OrderTracker) SetMetrics(m orderMetrics) {
	ot.mu.Lock()
	defer ot.mu.Unlock()
	ot.metrics = m
}

func (ot *OrderTracker) Stop() {
	ot.cancel()
	ot.wg.Wait()
}

// Place submits an order with retry-with-backoff, tracks it for timeout
// supervision, and returns the exchange's fill result.
func (ot *OrderTracker) Place(ctx context.Context, symbol string, side OrderSide, typ OrderType, qty, price decimal.Decimal, params OrderParams) (Order, error) {
	start := time.Now()
	clientOrderID := uuid.NewString()

	tracked := &TrackedOrder{
		ClientOrderID: clientOrderID,
		Symbol:        symbol,
		Side:          side,
		Type:          typ,
		Qty:           qty,
		Status:        TrackedPending,
		SubmittedAt:   start,
		TimeoutAt:     start.Add(ot.executionTimeout),
	}
	ot.mu.Lock()
	ot.orders[clientOrderID] = tracked
	ot.mu.Unlock()

	result, err := ot.placeWithRetry(ctx, tracked, symbol, side, typ, qty, price, params)

	duration := time.Since(start).Seconds()
	ot.mu.RLock()
	metrics := ot.metrics
	ot.mu.RUnlock()
	if metrics != nil {
		metrics.OrderExecutionDurationObserve(duration)
	}

	if err != nil {
		ot.finish(clientOrderID, TrackedRejected, Order{}, err)
		return Order{}, fmt.Errorf("placing order: %w", err)
	}

	ot.finish(clientOrderID, TrackedFilled, result, nil)
	log.Info().
		Str("client_order_id", clientOrderID).
		Str("symbol", symbol).
		Str("side", string(side)).
		Float64("duration_seconds", duration).
		Msg("order placed with timeout tracking")
	return result, nil
}

func (ot *OrderTracker) placeWithRetry(ctx context.Context, tracked *TrackedOrder, symbol string, side OrderSide, typ OrderType, qty, price decimal.Decimal, params OrderParams) (Order, error) {
	var lastErr error
	for i := 0; i <= ot.maxRetries; i++ {
		result, err := ot.port.PlaceOrder(ctx, symbol, side, typ, qty, price, params)
		if err == nil {
			return result, nil
		}
		lastErr = err
		tracked.RetryCount = i + 1

		if i < ot.maxRetries {
			ot.mu.RLock()
			metrics := ot.metrics
			ot.mu.RUnlock()
			if metrics != nil {
				metrics.OrderRetriesInc()
			}
			delay := time.Duration(i+1) * time.Second
			log.Warn().Err(err).Str("client_order_id", tracked.ClientOrderID).Int("retry", i+1).Dur("delay", delay).Msg("order placement failed, retrying")
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return Order{}, ctx.Err()
			}
		}
	}
	return Order{}, fmt.Errorf("order placement failed after %d retries: %w", ot.maxRetries, lastErr)
}

func (ot *OrderTracker) monitor() {
	defer ot.wg.Done()
	ticker := time.NewTicker(ot.statusCheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ot.ctx.Done():
			return
		case <-ticker.C:
			ot.sweepTimeouts()
		}
	}
}

func (ot *OrderTracker) sweepTimeouts() {
	ot.mu.RLock()
	pending := make([]*TrackedOrder, 0)
	for _, o := range ot.orders {
		if o.Status == TrackedPending {
			pending = append(pending, o)
		}
	}
	metrics := ot.metrics
	ot.mu.RUnlock()

	now := time.Now()
	for _, o := range pending {
		if now.After(o.TimeoutAt) {
			log.Warn().Str("client_order_id", o.ClientOrderID).Str("symbol", o.Symbol).Dur("elapsed", now.Sub(o.SubmittedAt)).Msg("order execution timeout reached")
			if metrics != nil {
				metrics.OrderTimeoutsInc()
			}
			ot.finish(o.ClientOrderID, TrackedTimedOut, Order{}, fmt.Errorf("order execution timeout after %v", ot.executionTimeout))
		}
	}
}

func (ot *OrderTracker) finish(clientOrderID string, status TrackedOrderStatus, result Order, err error) {
	ot.mu.Lock()
	defer ot.mu.Unlock()
	o, exists := ot.orders[clientOrderID]
	if !exists {
		return
	}
	o.Status = status
	o.Result = result
	o.Err = err
	if status != TrackedPending {
		go func() {
			time.Sleep(5 * time.Minute)
			ot.mu.Lock()
			delete(ot.orders, clientOrderID)
			ot.mu.Unlock()
		}()
	}
}

// Status returns the current tracked state of an order by its client id.
func (ot *OrderTracker) Status(clientOrderID string) (TrackedOrderStatus, error) {
	ot.mu.RLock()
	defer ot.mu.RUnlock()
	if o, exists := ot.orders[clientOrderID]; exists {
		return o.Status, o.Err
	}
	return "", fmt.Errorf("order not found: %s", clientOrderID)
}

// Pending returns all orders still awaiting confirmation.
func (ot *OrderTracker) Pending() []*TrackedOrder {
	ot.mu.RLock()
	defer ot.mu.RUnlock()
	pending := make([]*TrackedOrder, 0)
	for _, o := range ot.orders {
		if o.Status == TrackedPending {
			pending = append(pending, o)
		}
	}
	return pending
}
