package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"tradingengine/internal/model"

	"go.etcd.io/bbolt"
)

// RecordSignalPrediction persists a signal engine output for later
// outcome attribution (`recordSignalPrediction`).
func (s *Store) RecordSignalPrediction(ctx context.Context, p model.SignalPrediction) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return put(tx, bucketPredictions, predictionKey(p.Symbol, p.Ts), p)
	})
}

func predictionKey(symbol string, ts time.Time) string {
	return fmt.Sprintf("%s_%d", symbol, ts.UnixNano())
}

// UpdatePredictionOutcome backfills a prediction's realized outcome
// once the position it informed has closed (
// `updatePredictionOutcome`).
func (s *Store) UpdatePredictionOutcome(ctx context.Context, symbol string, ts time.Time, outcome string, realizedPnL float64) error {
	key := predictionKey(symbol, ts)
	return s.db.Update(func(tx *bbolt.Tx) error {
		var p model.SignalPrediction
		ok, err := get(tx, bucketPredictions, key, &p)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("store: no prediction recorded for %s at %s", symbol, ts)
		}
		p.Outcome = outcome
		p.RealizedPnL = realizedPnL
		return put(tx, bucketPredictions, key, p)
	})
}

// ListPredictionsWithOutcome returns up to limit outcome-backfilled
// predictions for symbol, newest first, for the ML retrain loop to turn
// into training samples.
func (s *Store) ListPredictionsWithOutcome(ctx context.Context, symbol string, limit int) ([]model.SignalPrediction, error) {
	var all []model.SignalPrediction
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketPredictions)).ForEach(func(k, v []byte) error {
			var p model.SignalPrediction
			if err := json.Unmarshal(v, &p); err != nil {
				return nil
			}
			if p.Symbol != symbol || p.Outcome == "" || len(p.Features) == 0 {
				return nil
			}
			all = append(all, p)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(all)-1; i < j; i, j = i+1, j-1 {
		all[i], all[j] = all[j], all[i]
	}
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

// AddNews persists a scored news item for audit (`addNews`).
func (s *Store) AddNews(ctx context.Context, n model.NewsItem) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return put(tx, bucketNews, n.ID, n)
	})
}

// GetDailyPerformance reads one day's aggregate (
// `getDailyPerformance(date)`), returning a zero-value record (not an
// error) when the day has no recorded activity yet.
func (s *Store) GetDailyPerformance(ctx context.Context, date time.Time) (model.DailyPerformance, error) {
	var perf model.DailyPerformance
	key := dateKey(date)
	err := s.db.View(func(tx *bbolt.Tx) error {
		_, err := get(tx, bucketPerformance, key, &perf)
		return err
	})
	if perf.Date.IsZero() {
		perf.Date = date.Truncate(24 * time.Hour)
	}
	return perf, err
}

// UpdateDailyPerformance replaces one day's aggregate record
// (`updateDailyPerformance`); the caller is responsible for having
// read-modify-written an up to date value via GetDailyPerformance.
func (s *Store) UpdateDailyPerformance(ctx context.Context, perf model.DailyPerformance) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return put(tx, bucketPerformance, dateKey(perf.Date), perf)
	})
}

func dateKey(date time.Time) string {
	return date.UTC().Format("2006-01-02")
}

// GetKellyStats reads rolling win/loss stats for a symbol (
// `getKellyStats(symbol)`), returning a zero-value (neutral) record
// when the symbol has no history yet.
func (s *Store) GetKellyStats(ctx context.Context, symbol string) (model.KellyStats, error) {
	stats := model.KellyStats{Symbol: symbol}
	err := s.db.View(func(tx *bbolt.Tx) error {
		_, err := get(tx, bucketKelly, symbol, &stats)
		return err
	})
	return stats, err
}

// UpdateKelly persists an updated rolling win/loss record (
// `updateKelly`).
func (s *Store) UpdateKelly(ctx context.Context, stats model.KellyStats) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return put(tx, bucketKelly, stats.Symbol, stats)
	})
}

// AppendSystemEvent persists a structured, non-fatal event
// (`appendSystemEvent`) keyed by timestamp for ordered retrieval.
func (s *Store) AppendSystemEvent(ctx context.Context, level, component, message string, eventCtx map[string]string) error {
	evt := model.SystemEvent{Ts: time.Now().UTC(), Level: level, Component: component, Message: message, Context: eventCtx}
	key := fmt.Sprintf("%020d", evt.Ts.UnixNano())
	return s.db.Update(func(tx *bbolt.Tx) error {
		return put(tx, bucketEvents, key, evt)
	})
}

// RecentSystemEvents returns up to limit of the most recently appended
// system events, newest first.
func (s *Store) RecentSystemEvents(ctx context.Context, limit int) ([]model.SystemEvent, error) {
	var out []model.SystemEvent
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(bucketEvents)).Cursor()
		for k, v := c.Last(); k != nil && (limit <= 0 || len(out) < limit); k, v = c.Prev() {
			var evt model.SystemEvent
			if err := json.Unmarshal(v, &evt); err != nil {
				continue
			}
			out = append(out, evt)
		}
		return nil
	})
	return out, err
}
