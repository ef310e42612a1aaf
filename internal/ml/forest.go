package ml

import (
	"fmt"
	"math"
	"math/rand"
	"runtime"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Classifier is the capability the recommendation path needs from a trained
// model. The forest is the only implementation shipped, but the pipeline does
// not depend on it.
type Classifier interface {
	PredictProba(x []float64) ([]float64, error)
	NumClasses() int
}

// ForestConfig holds the bagging hyperparameters.
type ForestConfig struct {
	Trees           int   `json:"trees" yaml:"trees"`
	MaxDepth        int   `json:"max_depth" yaml:"maxDepth"`
	MinSamplesSplit int   `json:"min_samples_split" yaml:"minSamplesSplit"`
	MinSamplesLeaf  int   `json:"min_samples_leaf" yaml:"minSamplesLeaf"`
	MaxFeatures     int   `json:"max_features" yaml:"maxFeatures"`
	Seed            int64 `json:"seed" yaml:"seed"`
	Workers         int   `json:"-" yaml:"workers"`
}

// DefaultForestConfig mirrors the reference model: 100 trees, fully grown,
// sqrt(p) candidate features per split, seed 42.
func DefaultForestConfig() ForestConfig {
	return ForestConfig{
		Trees:           100,
		MaxDepth:        0,
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
		MaxFeatures:     0,
		Seed:            42,
	}
}

func (c ForestConfig) withDefaults(nFeatures int) ForestConfig {
	if c.Trees <= 0 {
		c.Trees = 100
	}
	if c.MinSamplesSplit < 2 {
		c.MinSamplesSplit = 2
	}
	if c.MinSamplesLeaf < 1 {
		c.MinSamplesLeaf = 1
	}
	if c.MaxFeatures <= 0 {
		c.MaxFeatures = int(math.Ceil(math.Sqrt(float64(nFeatures))))
	}
	if c.MaxFeatures > nFeatures {
		c.MaxFeatures = nFeatures
	}
	if c.Workers <= 0 {
		c.Workers = runtime.GOMAXPROCS(0)
	}
	return c
}

// Forest is a bagged ensemble of classification trees. Class indices are the
// codes of the label encoder.
type Forest struct {
	Config      ForestConfig `json:"config"`
	NumFeatures int          `json:"num_features"`
	Classes     int          `json:"num_classes"`
	Trees       []*Tree      `json:"trees"`
}

// TrainForest grows cfg.Trees trees, each on its own bootstrap resample of
// (X, y). Tree i draws from a generator seeded with cfg.Seed+i, so the result
// does not depend on goroutine scheduling.
func TrainForest(cfg ForestConfig, X [][]float64, y []int, nClasses int) (*Forest, error) {
	if len(X) == 0 {
		return nil, fmt.Errorf("train forest: empty training set")
	}
	if len(X) != len(y) {
		return nil, fmt.Errorf("train forest: %d rows but %d labels", len(X), len(y))
	}
	if nClasses < 1 {
		return nil, fmt.Errorf("train forest: need at least one class")
	}
	nFeatures := len(X[0])
	for i := range X {
		if len(X[i]) != nFeatures {
			return nil, fmt.Errorf("train forest: row %d: %w", i, &ShapeMismatchError{Expected: nFeatures, Got: len(X[i])})
		}
		if y[i] < 0 || y[i] >= nClasses {
			return nil, fmt.Errorf("train forest: row %d has class %d outside [0,%d)", i, y[i], nClasses)
		}
	}

	cfg = cfg.withDefaults(nFeatures)
	start := time.Now()

	f := &Forest{
		Config:      cfg,
		NumFeatures: nFeatures,
		Classes:     nClasses,
		Trees:       make([]*Tree, cfg.Trees),
	}

	n := len(X)
	sem := make(chan struct{}, cfg.Workers)
	var wg sync.WaitGroup
	for t := 0; t < cfg.Trees; t++ {
		wg.Add(1)
		sem <- struct{}{}
		go func(t int) {
			defer func() {
				<-sem
				wg.Done()
			}()
			rnd := rand.New(rand.NewSource(cfg.Seed + int64(t)))
			sample := make([]int, n)
			for i := range sample {
				sample[i] = rnd.Intn(n)
			}
			f.Trees[t] = growTree(X, y, sample, nClasses, cfg, rnd)
		}(t)
	}
	wg.Wait()

	log.Debug().
		Int("trees", cfg.Trees).
		Int("rows", n).
		Int("features", nFeatures).
		Int("classes", nClasses).
		Int("workers", cfg.Workers).
		Dur("elapsed", time.Since(start)).
		Msg("forest trained")

	return f, nil
}

// NumClasses implements Classifier.
func (f *Forest) NumClasses() int { return f.Classes }

// PredictProba averages the leaf distributions of every tree.
func (f *Forest) PredictProba(x []float64) ([]float64, error) {
	if f == nil || len(f.Trees) == 0 {
		return nil, &ModelNotTrainedError{Op: "predict_proba"}
	}
	if len(x) != f.NumFeatures {
		return nil, &ShapeMismatchError{Expected: f.NumFeatures, Got: len(x)}
	}
	out := make([]float64, f.Classes)
	for _, t := range f.Trees {
		for c, p := range t.predict(x) {
			out[c] += p
		}
	}
	sum := 0.0
	for c := range out {
		out[c] /= float64(len(f.Trees))
		sum += out[c]
	}
	if sum > 0 {
		for c := range out {
			out[c] /= sum
		}
	}
	return out, nil
}

// Predict returns the most probable class; ties go to the smaller index.
func (f *Forest) Predict(x []float64) (int, error) {
	p, err := f.PredictProba(x)
	if err != nil {
		return 0, err
	}
	return argmax(p), nil
}

// FeatureImportance returns mean decrease in impurity per feature: each
// tree's contributions are normalized to sum to 1, averaged over trees, and
// normalized again.
func (f *Forest) FeatureImportance() ([]float64, error) {
	if f == nil || len(f.Trees) == 0 {
		return nil, &ModelNotTrainedError{Op: "feature_importance"}
	}
	out := make([]float64, f.NumFeatures)
	used := 0
	for _, t := range f.Trees {
		total := 0.0
		for _, v := range t.Importance {
			total += v
		}
		if total <= 0 {
			continue // single-leaf tree
		}
		for j, v := range t.Importance {
			out[j] += v / total
		}
		used++
	}
	if used == 0 {
		return out, nil
	}
	sum := 0.0
	for j := range out {
		out[j] /= float64(used)
		sum += out[j]
	}
	if sum > 0 {
		for j := range out {
			out[j] /= sum
		}
	}
	return out, nil
}

func (f *Forest) check() error {
	if len(f.Trees) == 0 {
		return fmt.Errorf("forest has no trees")
	}
	if f.NumFeatures <= 0 || f.Classes <= 0 {
		return fmt.Errorf("forest has %d features and %d classes", f.NumFeatures, f.Classes)
	}
	for i, t := range f.Trees {
		if t == nil {
			return fmt.Errorf("tree %d is missing", i)
		}
		if err := t.check(f.NumFeatures, f.Classes); err != nil {
			return fmt.Errorf("tree %d: %w", i, err)
		}
	}
	return nil
}
