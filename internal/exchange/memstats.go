package exchange

import (
	"runtime"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
)

// streamStats tracks allocation and pool-churn statistics for the WS
// adapter so operators can spot leaks or a saturated worker pool before
// they cause a missed fill.
type streamStats struct {
	messagesProcessed int64
	droppedMessages   int64
	tickPoolGets      int64
	tickPoolPuts      int64
	bookPoolGets      int64
	bookPoolPuts      int64
	activeWorkers     int32

	monitoringActive int32
	peakAlloc        uint64
}

func newStreamStats() *streamStats {
	return &streamStats{}
}

// startMonitoring periodically logs allocation and pool-balance stats.
// Idempotent: a second call while monitoring is already active is a no-op.
func (s *streamStats) startMonitoring(interval time.Duration) {
	if !atomic.CompareAndSwapInt32(&s.monitoringActive, 0, 1) {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for range ticker.C {
			if atomic.LoadInt32(&s.monitoringActive) == 0 {
				return
			}
			var m runtime.MemStats
			runtime.ReadMemStats(&m)
			for {
				peak := atomic.LoadUint64(&s.peakAlloc)
				if m.Alloc <= peak || atomic.CompareAndSwapUint64(&s.peakAlloc, peak, m.Alloc) {
					break
				}
			}
			tickBalance := atomic.LoadInt64(&s.tickPoolGets) - atomic.LoadInt64(&s.tickPoolPuts)
			bookBalance := atomic.LoadInt64(&s.bookPoolGets) - atomic.LoadInt64(&s.bookPoolPuts)
			log.Info().
				Uint64("alloc_mb", m.Alloc/1024/1024).
				Int64("messages_processed", atomic.LoadInt64(&s.messagesProcessed)).
				Int64("dropped_messages", atomic.LoadInt64(&s.droppedMessages)).
				Int64("tick_pool_balance", tickBalance).
				Int64("book_pool_balance", bookBalance).
				Int32("active_workers", atomic.LoadInt32(&s.activeWorkers)).
				Msg("ws stream stats")
		}
	}()
}

func (s *streamStats) stopMonitoring() { atomic.StoreInt32(&s.monitoringActive, 0) }
