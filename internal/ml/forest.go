package ml

import (
	"math"
	"math/rand"
	"sync"
	"time"
)

// ForestHead is a bagged ensemble of regression trees — the "tree
// ensemble" head shape names twice (the ensemble holds
// two of these, configured with different hyperparameters, so their
// errors decorrelate); grounded on the original system's
// DecisionTreeRegressor head generalized from one tree to a bootstrap-
// aggregated forest, which is the natural Go-native stand-in for the
// scikit-learn RandomForest the original reached for.
type ForestHead struct {
	name   string
	params treeParams
	trees  int
	seed   int64

	mu          sync.RWMutex
	forest      []*treeNode
	trained     bool
	perf        Performance
	importance  map[int]float64
	lastTrained time.Time
}

func NewForestHead(name string, trees, maxDepth, minSamplesSplit, minSamplesLeaf int, seed int64) *ForestHead {
	return &ForestHead{
		name:  name,
		trees: trees,
		seed:  seed,
		params: treeParams{
			maxDepth:        maxDepth,
			minSamplesSplit: minSamplesSplit,
			minSamplesLeaf:  minSamplesLeaf,
		},
	}
}

func (h *ForestHead) Name() string { return h.name }

func (h *ForestHead) IsTrained() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.trained
}

func (h *ForestHead) Predict(features []float64) (score, confidence float64) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if !h.trained || len(h.forest) == 0 {
		return 0, 0
	}
	sum, sumSq := 0.0, 0.0
	for _, t := range h.forest {
		v := t.predict(features)
		sum += v
		sumSq += v * v
	}
	n := float64(len(h.forest))
	mean := sum / n
	variance := sumSq/n - mean*mean
	if variance < 0 {
		variance = 0
	}
	// Tighter cross-tree agreement implies higher confidence.
	confidence = clamp(1-math.Sqrt(variance), 0, 1)
	return clamp(mean, -1, 1), confidence
}

func (h *ForestHead) Train(samples []Sample) error {
	if len(samples) == 0 {
		return nil
	}
	rng := rand.New(rand.NewSource(h.seed))
	forest := make([]*treeNode, h.trees)
	importance := make(map[int]float64)
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < h.trees; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			bag := bootstrapSample(samples, rng.Int63())
			localImportance := make(map[int]float64)
			tree := growTree(bag, 0, h.params, localImportance)
			mu.Lock()
			forest[idx] = tree
			for k, v := range localImportance {
				importance[k] += v
			}
			mu.Unlock()
		}(i)
	}
	wg.Wait()

	h.mu.Lock()
	h.forest = forest
	h.importance = importance
	h.trained = true
	h.lastTrained = time.Now()
	h.perf = evaluate(h.batchPredict, samples)
	h.mu.Unlock()
	return nil
}

func (h *ForestHead) batchPredict(features []float64) float64 {
	sum := 0.0
	for _, t := range h.forest {
		sum += t.predict(features)
	}
	return sum / float64(len(h.forest))
}

func (h *ForestHead) Performance() Performance {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.perf
}

func (h *ForestHead) FeatureImportance() map[int]float64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make(map[int]float64, len(h.importance))
	for k, v := range h.importance {
		out[k] = v
	}
	return out
}

func (h *ForestHead) LastTrainedAt() time.Time {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.lastTrained
}

func bootstrapSample(samples []Sample, seed int64) []Sample {
	rng := rand.New(rand.NewSource(seed))
	out := make([]Sample, len(samples))
	for i := range out {
		out[i] = samples[rng.Intn(len(samples))]
	}
	return out
}

// evaluate computes in-sample MSE/MAE/R2/Accuracy (directional hit
// rate) for a trained head, used to populate Performance for the
// ensemble weighting formula.
func evaluate(predict func([]float64) float64, samples []Sample) Performance {
	n := float64(len(samples))
	if n == 0 {
		return Performance{}
	}
	var sumErr, sumAbsErr, sumSqErr, sumTarget, sumTargetSq float64
	hits := 0
	for _, s := range samples {
		pred := predict(s.Features)
		err := s.Target - pred
		sumErr += err
		sumAbsErr += math.Abs(err)
		sumSqErr += err * err
		sumTarget += s.Target
		sumTargetSq += s.Target * s.Target
		if signOf(pred) == signOf(s.Target) {
			hits++
		}
	}
	mse := sumSqErr / n
	mae := sumAbsErr / n
	meanTarget := sumTarget / n
	totalVariance := sumTargetSq/n - meanTarget*meanTarget
	r2 := 1.0
	if totalVariance > 0 {
		r2 = 1 - mse/totalVariance
	}
	return Performance{MSE: mse, MAE: mae, R2: r2, Accuracy: float64(hits) / n, PredictionCount: len(samples)}
}

func signOf(v float64) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}
