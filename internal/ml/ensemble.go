package ml

import (
	"math"
	"sync"
	"time"
)

// headSpec pairs a Head with its base weight in the ensemble average
// (: "baseWeight × confidence × performanceWeight").
type headSpec struct {
	head      Head
	baseWeight float64
}

// Prediction is the ensemble's combined per-symbol output.
type Prediction struct {
	Score      float64 // fused, in [-1, 1]
	Confidence float64 // in [0, 1]
	PerModel   map[string]ModelOutput
}

// ModelOutput is one head's raw contribution, reported for audit.
type ModelOutput struct {
	Score      float64
	Confidence float64
	Weight     float64 // normalized weight actually used
	Trained    bool
}

// TrainReport summarizes one ensemble-wide retrain.
type TrainReport struct {
	Samples   int
	Trained   []string
	Failed    map[string]error
	Finished  time.Time
}

// Ensemble composes the four named heads behind the weighting/
// confidence formula and a staleness-driven retrain rule, following an
// existing facade shape: fan out to sub-components, aggregate, expose
// one Predict/Train surface.
type Ensemble struct {
	mu             sync.RWMutex
	heads          []headSpec
	retrainEvery   time.Duration
	lastTrainedAt  time.Time
}

// NewEnsemble builds the standard four-head ensemble: two bagged
// forests at different depths/tree counts, one gradient-boosted
// variant, and one MLP, each weighted equally before the per-cycle
// confidence/performance adjustment.
func NewEnsemble(retrainEvery time.Duration, seed int64) *Ensemble {
	return &Ensemble{
		retrainEvery: retrainEvery,
		heads: []headSpec{
			{head: NewForestHead("forest_shallow", 40, 4, 10, 5, seed+1), baseWeight: 0.25},
			{head: NewForestHead("forest_deep", 60, 8, 6, 3, seed+2), baseWeight: 0.25},
			{head: NewGBTHead("gbt", 80, 0.05, 0.7, 4, 5, seed+3), baseWeight: 0.25},
			{head: NewMLPHead("mlp", 16, 200, 0.01, seed+4), baseWeight: 0.25},
		},
	}
}

// Predict implements 
// `predict(features, symbol?) -> {score, confidence, perModel}`.
// Untrained heads are excluded and the remaining base weights are
// renormalized so the ensemble degrades gracefully rather than
// diluting toward zero confidence.
func (e *Ensemble) Predict(features []float64) Prediction {
	e.mu.RLock()
	defer e.mu.RUnlock()

	type contribution struct {
		name       string
		score      float64
		confidence float64
		baseWeight float64
	}
	var active []contribution
	perModel := make(map[string]ModelOutput, len(e.heads))

	for _, hs := range e.heads {
		if !hs.head.IsTrained() {
			perModel[hs.head.Name()] = ModelOutput{Trained: false}
			continue
		}
		score, confidence := hs.head.Predict(features)
		perfWeight := hs.head.Performance().performanceWeight()
		active = append(active, contribution{
			name:       hs.head.Name(),
			score:      score,
			confidence: confidence,
			baseWeight: hs.baseWeight * confidence * perfWeight,
		})
	}

	if len(active) == 0 {
		return Prediction{PerModel: perModel}
	}

	totalWeight := 0.0
	for _, c := range active {
		totalWeight += c.baseWeight
	}
	if totalWeight <= 0 {
		return Prediction{PerModel: perModel}
	}

	weightedScore := 0.0
	headScores := make([]float64, 0, len(active))
	sumConfidence := 0.0
	for _, c := range active {
		normWeight := c.baseWeight / totalWeight
		weightedScore += normWeight * c.score
		sumConfidence += c.confidence
		headScores = append(headScores, c.score)
		perModel[c.name] = ModelOutput{Score: c.score, Confidence: c.confidence, Weight: normWeight, Trained: true}
	}

	meanConfidence := sumConfidence / float64(len(active))
	agreement := 1 - clamp(stddev(headScores), 0, 1)
	ensembleConfidence := clamp(0.7*meanConfidence+0.3*agreement, 0, 1)

	return Prediction{
		Score:      clamp(weightedScore, -1, 1),
		Confidence: ensembleConfidence,
		PerModel:   perModel,
	}
}

// Train implements `train(dataset, target) -> report`,
// fitting every head against the same sample set. A head that errors
// is recorded in Failed and left at its prior (possibly untrained)
// state rather than aborting the whole ensemble.
func (e *Ensemble) Train(samples []Sample) TrainReport {
	e.mu.Lock()
	defer e.mu.Unlock()

	report := TrainReport{Samples: len(samples), Failed: make(map[string]error)}
	for _, hs := range e.heads {
		if err := hs.head.Train(samples); err != nil {
			report.Failed[hs.head.Name()] = err
			continue
		}
		report.Trained = append(report.Trained, hs.head.Name())
	}
	e.lastTrainedAt = time.Now()
	report.Finished = e.lastTrainedAt
	return report
}

// ShouldRetrain implements retrain rule: untrained, or
// stale by the configured retrain interval.
func (e *Ensemble) ShouldRetrain(now time.Time) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()

	anyUntrained := false
	for _, hs := range e.heads {
		if !hs.head.IsTrained() {
			anyUntrained = true
			break
		}
	}
	if anyUntrained {
		return true
	}
	return now.Sub(e.lastTrainedAt) >= e.retrainEvery
}

// Heads exposes the underlying heads read-only, for diagnostics and
// persistence.
func (e *Ensemble) Heads() []Head {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]Head, len(e.heads))
	for i, hs := range e.heads {
		out[i] = hs.head
	}
	return out
}

func stddev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	mean := 0.0
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))
	sumSq := 0.0
	for _, v := range values {
		d := v - mean
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(values)))
}
