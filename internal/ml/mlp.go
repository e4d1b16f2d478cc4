package ml

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"gonum.org/v1/gonum/mat"
)

// MLPHead is a single-hidden-layer perceptron trained by per-sample
// gradient descent over tanh/sigmoid activations — the fourth head
// shape names, grounded on the original system's MLP
// backend (managers/ml_models, sklearn's MLPRegressor equivalent),
// reimplemented over gonum/mat since no pure-Go neural net library
// appears anywhere in the retrieval pack (see DESIGN.md).
type MLPHead struct {
	name         string
	hiddenSize   int
	epochs       int
	learningRate float64
	seed         int64

	mu          sync.RWMutex
	w1, b1      *mat.Dense
	w2, b2      *mat.Dense
	trained     bool
	perf        Performance
	importance  map[int]float64
	lastTrained time.Time
}

func NewMLPHead(name string, hiddenSize, epochs int, learningRate float64, seed int64) *MLPHead {
	return &MLPHead{name: name, hiddenSize: hiddenSize, epochs: epochs, learningRate: learningRate, seed: seed}
}

func (h *MLPHead) Name() string { return h.name }

func (h *MLPHead) IsTrained() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.trained
}

func (h *MLPHead) Predict(features []float64) (score, confidence float64) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if !h.trained {
		return 0, 0
	}
	x := mat.NewDense(1, len(features), features)
	hidden := forward(x, h.w1, h.b1, math.Tanh)
	out := forward(hidden, h.w2, h.b2, sigmoid)
	raw := out.At(0, 0)
	score = clamp(2*raw-1, -1, 1) // map [0,1] sigmoid output to [-1,1]
	confidence = clamp(math.Abs(2*raw-1), 0, 1)
	return score, confidence
}

func (h *MLPHead) Train(samples []Sample) error {
	if len(samples) == 0 {
		return nil
	}
	numFeatures := len(samples[0].Features)
	rng := rand.New(rand.NewSource(h.seed))

	w1 := randomMatrix(numFeatures, h.hiddenSize, rng)
	b1 := mat.NewDense(1, h.hiddenSize, nil)
	w2 := randomMatrix(h.hiddenSize, 1, rng)
	b2 := mat.NewDense(1, 1, nil)

	for epoch := 0; epoch < h.epochs; epoch++ {
		for _, s := range samples {
			x := mat.NewDense(1, numFeatures, s.Features)
			hidden := forward(x, w1, b1, math.Tanh)
			out := forward(hidden, w2, b2, sigmoid)

			target := (s.Target + 1) / 2 // map [-1,1] target to [0,1]
			pred := out.At(0, 0)
			outDelta := (pred - target) * pred * (1 - pred)

			var hiddenDelta mat.Dense
			hiddenDelta.Mul(mat.NewDense(1, 1, []float64{outDelta}), w2.T())
			for j := 0; j < h.hiddenSize; j++ {
				hv := hidden.At(0, j)
				hiddenDelta.Set(0, j, hiddenDelta.At(0, j)*(1-hv*hv))
			}

			updateWeights(w2, hidden, outDelta, h.learningRate)
			b2.Set(0, 0, b2.At(0, 0)-h.learningRate*outDelta)

			for i := 0; i < numFeatures; i++ {
				for j := 0; j < h.hiddenSize; j++ {
					grad := hiddenDelta.At(0, j) * s.Features[i]
					w1.Set(i, j, w1.At(i, j)-h.learningRate*grad)
				}
			}
			for j := 0; j < h.hiddenSize; j++ {
				b1.Set(0, j, b1.At(0, j)-h.learningRate*hiddenDelta.At(0, j))
			}
		}
	}

	h.mu.Lock()
	h.w1, h.b1, h.w2, h.b2 = w1, b1, w2, b2
	h.trained = true
	h.lastTrained = time.Now()
	h.importance = inputWeightMagnitudes(w1)
	h.mu.Unlock()

	h.mu.RLock()
	perf := evaluate(func(f []float64) float64 {
		score, _ := h.predictLocked(f)
		return score
	}, samples)
	h.mu.RUnlock()
	h.mu.Lock()
	h.perf = perf
	h.mu.Unlock()
	return nil
}

// predictLocked assumes h.mu is already held (read or write) by the caller.
func (h *MLPHead) predictLocked(features []float64) (float64, float64) {
	x := mat.NewDense(1, len(features), features)
	hidden := forward(x, h.w1, h.b1, math.Tanh)
	out := forward(hidden, h.w2, h.b2, sigmoid)
	raw := out.At(0, 0)
	return clamp(2*raw-1, -1, 1), clamp(math.Abs(2*raw-1), 0, 1)
}

func (h *MLPHead) Performance() Performance {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.perf
}

func (h *MLPHead) FeatureImportance() map[int]float64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make(map[int]float64, len(h.importance))
	for k, v := range h.importance {
		out[k] = v
	}
	return out
}

func (h *MLPHead) LastTrainedAt() time.Time {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.lastTrained
}

func forward(x, w, b *mat.Dense, activation func(float64) float64) *mat.Dense {
	var z mat.Dense
	z.Mul(x, w)
	rows, cols := z.Dims()
	out := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			out.Set(i, j, activation(z.At(i, j)+b.At(0, j)))
		}
	}
	return out
}

func sigmoid(x float64) float64 { return 1 / (1 + math.Exp(-x)) }

func randomMatrix(rows, cols int, rng *rand.Rand) *mat.Dense {
	data := make([]float64, rows*cols)
	scale := math.Sqrt(2.0 / float64(rows+cols))
	for i := range data {
		data[i] = rng.NormFloat64() * scale
	}
	return mat.NewDense(rows, cols, data)
}

func updateWeights(w, hidden *mat.Dense, outDelta, learningRate float64) {
	rows, _ := w.Dims()
	for i := 0; i < rows; i++ {
		grad := outDelta * hidden.At(0, i)
		w.Set(i, 0, w.At(i, 0)-learningRate*grad)
	}
}

func inputWeightMagnitudes(w1 *mat.Dense) map[int]float64 {
	rows, cols := w1.Dims()
	out := make(map[int]float64, rows)
	for i := 0; i < rows; i++ {
		sum := 0.0
		for j := 0; j < cols; j++ {
			sum += math.Abs(w1.At(i, j))
		}
		out[i] = sum
	}
	return out
}
