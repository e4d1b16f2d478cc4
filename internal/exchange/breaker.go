package exchange

import (
	"time"

	"tradingengine/internal/errs"

	"github.com/sony/gobreaker"
)

// newBreaker wires sony/gobreaker to circuit breaker:
// k=5 consecutive failures within T=60s trips to open; a cooldown then
// admits a single half-open probe.
func newBreaker(name string, k uint32, window, cooldown time.Duration) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    window,
		Timeout:     cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= k
		},
	})
}

func execThroughBreaker[T any](cb *gobreaker.CircuitBreaker, op string, fn func() (T, error)) (T, error) {
	result, err := cb.Execute(func() (interface{}, error) {
		return fn()
	})
	if err != nil {
		var zero T
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return zero, errs.New(errs.CircuitOpen, op, err)
		}
		return zero, err
	}
	return result.(T), nil
}
