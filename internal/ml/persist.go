package ml

import (
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gonum.org/v1/gonum/mat"
)

func sliceToDense(rows [][]float64) *mat.Dense {
	if len(rows) == 0 {
		return mat.NewDense(0, 0, nil)
	}
	cols := len(rows[0])
	data := make([]float64, 0, len(rows)*cols)
	for _, r := range rows {
		data = append(data, r...)
	}
	return mat.NewDense(len(rows), cols, data)
}

// Persistence follows a disk-based model-directory loading pattern,
// adapted from a native-model-blob layout to encoding/gob snapshots of
// each head's learned parameters.

func init() {
	gob.Register(forestSnapshot{})
	gob.Register(gbtSnapshot{})
	gob.Register(mlpSnapshot{})
}

type nodeSnapshot struct {
	Leaf        bool
	Value       float64
	FeatureIdx  int
	Threshold   float64
	Left, Right *nodeSnapshot
}

func snapshotNode(n *treeNode) *nodeSnapshot {
	if n == nil {
		return nil
	}
	return &nodeSnapshot{
		Leaf:       n.leaf,
		Value:      n.value,
		FeatureIdx: n.featureIdx,
		Threshold:  n.threshold,
		Left:       snapshotNode(n.left),
		Right:      snapshotNode(n.right),
	}
}

func restoreNode(s *nodeSnapshot) *treeNode {
	if s == nil {
		return nil
	}
	return &treeNode{
		leaf:       s.Leaf,
		value:      s.Value,
		featureIdx: s.FeatureIdx,
		threshold:  s.Threshold,
		left:       restoreNode(s.Left),
		right:      restoreNode(s.Right),
	}
}

type forestSnapshot struct {
	Trees       []*nodeSnapshot
	Importance  map[int]float64
	Perf        Performance
	LastTrained time.Time
}

func (h *ForestHead) snapshot() forestSnapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()
	trees := make([]*nodeSnapshot, len(h.forest))
	for i, t := range h.forest {
		trees[i] = snapshotNode(t)
	}
	return forestSnapshot{Trees: trees, Importance: h.importance, Perf: h.perf, LastTrained: h.lastTrained}
}

func (h *ForestHead) restore(s forestSnapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()
	forest := make([]*treeNode, len(s.Trees))
	for i, t := range s.Trees {
		forest[i] = restoreNode(t)
	}
	h.forest = forest
	h.importance = s.Importance
	h.perf = s.Perf
	h.lastTrained = s.LastTrained
	h.trained = len(forest) > 0
}

type gbtSnapshot struct {
	Trees       []*nodeSnapshot
	Importance  map[int]float64
	Perf        Performance
	LastTrained time.Time
}

func (h *GBTHead) snapshot() gbtSnapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()
	trees := make([]*nodeSnapshot, len(h.trees))
	for i, t := range h.trees {
		trees[i] = snapshotNode(t)
	}
	return gbtSnapshot{Trees: trees, Importance: h.importance, Perf: h.perf, LastTrained: h.lastTrained}
}

func (h *GBTHead) restore(s gbtSnapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()
	trees := make([]*treeNode, len(s.Trees))
	for i, t := range s.Trees {
		trees[i] = restoreNode(t)
	}
	h.trees = trees
	h.importance = s.Importance
	h.perf = s.Perf
	h.lastTrained = s.LastTrained
	h.trained = len(trees) > 0
}

type mlpSnapshot struct {
	W1, B1, W2, B2 [][]float64
	Importance     map[int]float64
	Perf           Performance
	LastTrained    time.Time
}

func denseToSlice(m interface {
	Dims() (int, int)
	At(i, j int) float64
}) [][]float64 {
	rows, cols := m.Dims()
	out := make([][]float64, rows)
	for i := 0; i < rows; i++ {
		out[i] = make([]float64, cols)
		for j := 0; j < cols; j++ {
			out[i][j] = m.At(i, j)
		}
	}
	return out
}

func (h *MLPHead) snapshot() mlpSnapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if !h.trained {
		return mlpSnapshot{Importance: h.importance, Perf: h.perf, LastTrained: h.lastTrained}
	}
	return mlpSnapshot{
		W1: denseToSlice(h.w1), B1: denseToSlice(h.b1),
		W2: denseToSlice(h.w2), B2: denseToSlice(h.b2),
		Importance: h.importance, Perf: h.perf, LastTrained: h.lastTrained,
	}
}

func (h *MLPHead) restore(s mlpSnapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(s.W1) == 0 {
		return
	}
	h.w1 = sliceToDense(s.W1)
	h.b1 = sliceToDense(s.B1)
	h.w2 = sliceToDense(s.W2)
	h.b2 = sliceToDense(s.B2)
	h.importance = s.Importance
	h.perf = s.Perf
	h.lastTrained = s.LastTrained
	h.trained = true
}

// EnsembleSnapshot is the on-disk shape for a persisted ensemble,
// keyed by head name so reload tolerates heads being added or removed
// between versions.
type EnsembleSnapshot struct {
	Heads map[string]interface{}
}

// Persist writes every trained head's learned parameters to path via
// encoding/gob, creating parent directories as needed.
func (e *Ensemble) Persist(path string) error {
	e.mu.RLock()
	heads := make([]headSpec, len(e.heads))
	copy(heads, e.heads)
	e.mu.RUnlock()

	snap := EnsembleSnapshot{Heads: make(map[string]interface{}, len(heads))}
	for _, hs := range heads {
		if !hs.head.IsTrained() {
			continue
		}
		switch h := hs.head.(type) {
		case *ForestHead:
			snap.Heads[h.Name()] = h.snapshot()
		case *GBTHead:
			snap.Heads[h.Name()] = h.snapshot()
		case *MLPHead:
			snap.Heads[h.Name()] = h.snapshot()
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("ml: creating model directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("ml: creating model file: %w", err)
	}
	defer f.Close()
	if err := gob.NewEncoder(f).Encode(snap); err != nil {
		return fmt.Errorf("ml: encoding model snapshot: %w", err)
	}
	return nil
}

// Restore loads a previously persisted snapshot from path, applying
// each stored head's parameters to the matching head by name. A
// missing file is not an error: the ensemble simply starts untrained
// and falls back to the heuristic predictor until the next Train.
func (e *Ensemble) Restore(path string) error {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("ml: opening model file: %w", err)
	}
	defer f.Close()

	var snap EnsembleSnapshot
	if err := gob.NewDecoder(f).Decode(&snap); err != nil {
		return fmt.Errorf("ml: decoding model snapshot: %w", err)
	}

	e.mu.RLock()
	heads := make([]headSpec, len(e.heads))
	copy(heads, e.heads)
	e.mu.RUnlock()

	for _, hs := range heads {
		raw, ok := snap.Heads[hs.head.Name()]
		if !ok {
			continue
		}
		switch h := hs.head.(type) {
		case *ForestHead:
			if s, ok := raw.(forestSnapshot); ok {
				h.restore(s)
			}
		case *GBTHead:
			if s, ok := raw.(gbtSnapshot); ok {
				h.restore(s)
			}
		case *MLPHead:
			if s, ok := raw.(mlpSnapshot); ok {
				h.restore(s)
			}
		}
	}
	return nil
}
