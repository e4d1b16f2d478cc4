package ml

import (
	"math/rand"
	"sync"
	"time"
)

// GBTHead is a gradient-boosted tree variant: shallow trees fit
// sequentially on the running residual, each scaled by a learning
// rate, grounded on the original system's "xgboost" tree_model.py
// branch (n_estimators/max_depth/learning_rate/subsample hyperparameters).
type GBTHead struct {
	name         string
	rounds       int
	learningRate float64
	subsample    float64
	params       treeParams
	seed         int64

	mu          sync.RWMutex
	trees       []*treeNode
	trained     bool
	perf        Performance
	importance  map[int]float64
	lastTrained time.Time
}

func NewGBTHead(name string, rounds int, learningRate, subsample float64, maxDepth, minSamplesLeaf int, seed int64) *GBTHead {
	return &GBTHead{
		name:         name,
		rounds:       rounds,
		learningRate: learningRate,
		subsample:    subsample,
		seed:         seed,
		params:       treeParams{maxDepth: maxDepth, minSamplesSplit: minSamplesLeaf * 2, minSamplesLeaf: minSamplesLeaf},
	}
}

func (h *GBTHead) Name() string { return h.name }

func (h *GBTHead) IsTrained() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.trained
}

func (h *GBTHead) Predict(features []float64) (score, confidence float64) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if !h.trained {
		return 0, 0
	}
	sum := 0.0
	for _, t := range h.trees {
		sum += h.learningRate * t.predict(features)
	}
	score = clamp(sum, -1, 1)
	// More completed boosting rounds without divergence implies higher
	// confidence in the accumulated estimate, up to a ceiling.
	confidence = clamp(float64(len(h.trees))/float64(h.rounds), 0.3, 0.9)
	return score, confidence
}

func (h *GBTHead) Train(samples []Sample) error {
	if len(samples) == 0 {
		return nil
	}
	rng := rand.New(rand.NewSource(h.seed))
	residual := make([]float64, len(samples))
	for i, s := range samples {
		residual[i] = s.Target
	}

	trees := make([]*treeNode, 0, h.rounds)
	importance := make(map[int]float64)
	for r := 0; r < h.rounds; r++ {
		round := subsampleRows(samples, residual, h.subsample, rng.Int63())
		tree := growTree(round, 0, h.params, importance)
		trees = append(trees, tree)
		for i, s := range samples {
			residual[i] -= h.learningRate * tree.predict(s.Features)
		}
	}

	h.mu.Lock()
	h.trees = trees
	h.importance = importance
	h.trained = true
	h.lastTrained = time.Now()
	h.perf = evaluate(h.batchPredict, samples)
	h.mu.Unlock()
	return nil
}

func (h *GBTHead) batchPredict(features []float64) float64 {
	sum := 0.0
	for _, t := range h.trees {
		sum += h.learningRate * t.predict(features)
	}
	return sum
}

func (h *GBTHead) Performance() Performance {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.perf
}

func (h *GBTHead) FeatureImportance() map[int]float64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make(map[int]float64, len(h.importance))
	for k, v := range h.importance {
		out[k] = v
	}
	return out
}

func (h *GBTHead) LastTrainedAt() time.Time {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.lastTrained
}

// subsampleRows builds this boosting round's training set from the
// current residual as target, row-sampled at `fraction` (spec's GBT
// variant's "subsample" hyperparameter).
func subsampleRows(samples []Sample, residual []float64, fraction float64, seed int64) []Sample {
	rng := rand.New(rand.NewSource(seed))
	n := int(float64(len(samples)) * fraction)
	if n < 1 {
		n = 1
	}
	out := make([]Sample, n)
	for i := 0; i < n; i++ {
		idx := rng.Intn(len(samples))
		out[i] = Sample{Features: samples[idx].Features, Target: residual[idx]}
	}
	return out
}
