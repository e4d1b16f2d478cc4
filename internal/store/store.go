// Package store implements the persistent DAO: concurrency-safe
// storage for positions, trades, balance snapshots, signal
// predictions, news, daily performance, Kelly stats, and system
// events, backed by BoltDB (bbolt.Open with a timeout, one bucket per
// record kind, JSON-encoded values keyed for ordered range scans).
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"tradingengine/internal/model"

	"github.com/shopspring/decimal"
	"go.etcd.io/bbolt"
)

const (
	bucketPositions   = "positions"
	bucketTrades      = "trades"
	bucketBalances    = "balances"
	bucketPredictions = "predictions"
	bucketNews        = "news"
	bucketPerformance = "performance"
	bucketKelly       = "kelly"
	bucketEvents      = "events"
)

var allBuckets = []string{
	bucketPositions, bucketTrades, bucketBalances, bucketPredictions,
	bucketNews, bucketPerformance, bucketKelly, bucketEvents,
}

// Store is the concrete Store DAO. Every write funnels through bbolt's
// own single-writer transaction, which supplies the "per-symbol lock"
// asks for without an additional lock layer; symbolLocks
// below only serializes the read-then-write position update sequence
// PositionManager's manage loop performs.
type Store struct {
	db *bbolt.DB

	mu          sync.Mutex
	symbolLocks map[string]*sync.Mutex
}

// Open opens (creating if necessary) the BoltDB file under dataPath
// and ensures every bucket exists.
func Open(dataPath string) (*Store, error) {
	dbPath := filepath.Join(dataPath, "tradingengine.db")
	db, err := bbolt.Open(dbPath, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("store: opening database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range allBuckets {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("store: creating bucket %s: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db, symbolLocks: make(map[string]*sync.Mutex)}, nil
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) lockFor(symbol string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.symbolLocks[symbol]
	if !ok {
		l = &sync.Mutex{}
		s.symbolLocks[symbol] = l
	}
	return l
}

func put(tx *bbolt.Tx, bucket, key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("store: marshal: %w", err)
	}
	return tx.Bucket([]byte(bucket)).Put([]byte(key), data)
}

func get(tx *bbolt.Tx, bucket, key string, v interface{}) (bool, error) {
	data := tx.Bucket([]byte(bucket)).Get([]byte(key))
	if data == nil {
		return false, nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("store: unmarshal: %w", err)
	}
	return true, nil
}

// ---- Positions (position.Store port: SavePosition/DeletePosition/OpenPositions/SaveTrade) ----

// SavePosition upserts a position by ID (`addPosition` /
// `updatePosition`: the same record shape covers both creation and
// every subsequent mutation).
func (s *Store) SavePosition(ctx context.Context, p model.Position) error {
	lock := s.lockFor(p.Symbol)
	lock.Lock()
	defer lock.Unlock()
	return s.db.Update(func(tx *bbolt.Tx) error {
		return put(tx, bucketPositions, p.ID, p)
	})
}

// DeletePosition removes a position record by ID. PositionManager's
// close path does not call it: it saves the position with status
// closed (which drops it from OpenPositions) and writes the Trade
// ledger entry with SaveTrade.
func (s *Store) DeletePosition(ctx context.Context, id string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketPositions)).Delete([]byte(id))
	})
}

// OpenPositions lists every position still recorded as open or in
// transition (`listOpenPositions` with no symbol filter).
func (s *Store) OpenPositions(ctx context.Context) ([]model.Position, error) {
	var out []model.Position
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketPositions)).ForEach(func(k, v []byte) error {
			var p model.Position
			if err := json.Unmarshal(v, &p); err != nil {
				return nil // skip malformed record rather than fail the whole scan
			}
			if p.Status == model.PositionOpen || p.Status == model.PositionOpening || p.Status == model.PositionClosing {
				out = append(out, p)
			}
			return nil
		})
	})
	return out, err
}

// SaveTrade appends (or overwrites, for an in-flight update) a closed-
// trade ledger entry keyed "symbol_closedAtUnixNano", an ordered-key
// convention that keeps range scans chronological per symbol.
func (s *Store) SaveTrade(ctx context.Context, t model.Trade) error {
	key := tradeKey(t.Symbol, t.ClosedAt)
	return s.db.Update(func(tx *bbolt.Tx) error {
		return put(tx, bucketTrades, key, t)
	})
}

func tradeKey(symbol string, ts time.Time) string {
	return fmt.Sprintf("%s_%d", symbol, ts.UnixNano())
}

// ListTrades returns trades newest first within each symbol, optionally
// filtered to one symbol, capped at limit (`listTrades(symbol?, limit)`).
// Keys sort by symbol before time, so an unfiltered result is grouped
// by symbol rather than ordered across symbols.
func (s *Store) ListTrades(ctx context.Context, symbol string, limit int) ([]model.Trade, error) {
	var all []model.Trade
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketTrades)).ForEach(func(k, v []byte) error {
			var t model.Trade
			if err := json.Unmarshal(v, &t); err != nil {
				return nil
			}
			if symbol != "" && t.Symbol != symbol {
				return nil
			}
			all = append(all, t)
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

// ---- Balance / risk.AccountReader port ----

// AddBalanceSnapshot persists one balance observation (
// `addBalanceSnapshot`), keyed by timestamp for ordered retrieval.
func (s *Store) AddBalanceSnapshot(ctx context.Context, total, used decimal.Decimal, perSymbol map[string]float64) error {
	snap := model.CapitalSnapshot{TakenAt: time.Now().UTC(), TotalBalance: total, UsedCapital: used, PerSymbolAllocation: perSymbol}
	key := fmt.Sprintf("%020d", snap.TakenAt.UnixNano())
	return s.db.Update(func(tx *bbolt.Tx) error {
		return put(tx, bucketBalances, key, snap)
	})
}

// LatestBalance returns the most recently persisted snapshot
// (`latestBalance`), also the shape the control surface's GET /balance
// reports.
func (s *Store) LatestBalance(ctx context.Context) (model.CapitalSnapshot, bool, error) {
	var latest model.CapitalSnapshot
	found := false
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(bucketBalances)).Cursor()
		k, v := c.Last()
		if k == nil {
			return nil
		}
		found = true
		return json.Unmarshal(v, &latest)
	})
	return latest, found, err
}

// TotalBalance implements risk.AccountReader's first method from the
// latest persisted snapshot.
func (s *Store) TotalBalance(ctx context.Context) (decimal.Decimal, error) {
	snap, ok, err := s.LatestBalance(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	if !ok {
		return decimal.Zero, nil
	}
	return snap.TotalBalance, nil
}

// UsedCapital implements risk.AccountReader's second method from the
// latest persisted snapshot.
func (s *Store) UsedCapital(ctx context.Context) (decimal.Decimal, map[string]float64, error) {
	snap, ok, err := s.LatestBalance(ctx)
	if err != nil {
		return decimal.Zero, nil, err
	}
	if !ok {
		return decimal.Zero, map[string]float64{}, nil
	}
	return snap.UsedCapital, snap.PerSymbolAllocation, nil
}
