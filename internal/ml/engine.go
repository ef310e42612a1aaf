package ml

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// EngineConfig controls training and ranking.
type EngineConfig struct {
	Forest          ForestConfig
	TopK            int
	HoldoutFraction float64
	Seed            int64
}

// DefaultEngineConfig returns 100 trees, top 3 plans and a 20% holdout.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		Forest:          DefaultForestConfig(),
		TopK:            DefaultTopK,
		HoldoutFraction: 0.2,
		Seed:            42,
	}
}

// TrainingResult describes one completed training run.
type TrainingResult struct {
	BundleID         string                `json:"bundle_id"`
	Report           *ClassificationReport `json:"report"`
	BaselineAccuracy float64               `json:"baseline_accuracy"`
	TrainingRows     int                   `json:"training_rows"`
	HoldoutRows      int                   `json:"holdout_rows"`
	Duration         time.Duration         `json:"duration"`

	// Holdout keeps the reserved examples for permutation importance.
	Holdout []TrainingExample `json:"-"`
}

var _ PredictorInterface = (*Engine)(nil)

// Engine owns the current bundle. Predictions load the pointer once and use
// only that bundle, so Train and Load can replace it at any time.
type Engine struct {
	schema  *Schema
	cfg     EngineConfig
	metrics MetricsInterface
	current atomic.Pointer[Bundle]
	now     func() time.Time
}

// NewEngine creates an untrained engine. metrics may be nil.
func NewEngine(schema *Schema, cfg EngineConfig, metrics MetricsInterface) *Engine {
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	return &Engine{
		schema:  schema,
		cfg:     cfg,
		metrics: metrics,
		now:     time.Now,
	}
}

// Schema returns the schema the engine was built for.
func (e *Engine) Schema() *Schema { return e.schema }

// Bundle returns the published bundle, or nil before training or loading.
func (e *Engine) Bundle() *Bundle { return e.current.Load() }

// Trained reports whether a bundle is published.
func (e *Engine) Trained() bool { return e.current.Load() != nil }

// Train fits encoders, scaler and forest on examples, evaluates on a
// stratified holdout and publishes the new bundle.
func (e *Engine) Train(examples []TrainingExample) (*TrainingResult, error) {
	start := e.now()
	if err := e.schema.Validate(); err != nil {
		return nil, fmt.Errorf("train: %w", err)
	}
	if len(examples) == 0 {
		return nil, fmt.Errorf("train: no training examples")
	}

	labels := make([]string, len(examples))
	for i, ex := range examples {
		if err := e.schema.Check(ex.Features); err != nil {
			return nil, fmt.Errorf("train: example %d: %w", i, err)
		}
		for _, a := range e.schema.Attributes {
			if a.Kind != Categorical {
				continue
			}
			if v := ex.Features[a.Name].(string); !a.Allows(v) {
				return nil, fmt.Errorf("train: example %d: %w", i, &UnknownCategoryError{Attribute: a.Name, Value: v})
			}
		}
		if ex.Label == "" {
			return nil, fmt.Errorf("train: example %d has no label", i)
		}
		labels[i] = ex.Label
	}

	b := &Bundle{
		ID:            uuid.NewString(),
		SchemaVersion: SchemaVersion,
		Schema:        e.schema,
		Encoders:      make(map[string]*CategoricalEncoder),
	}
	for _, name := range e.schema.CategoricalNames() {
		values := make([]string, len(examples))
		for i, ex := range examples {
			values[i] = ex.Features[name].(string)
		}
		enc, err := FitEncoder(name, values)
		if err != nil {
			return nil, fmt.Errorf("train: %w", err)
		}
		b.Encoders[name] = enc
	}
	labelEnc, err := FitEncoder(LabelAttribute, labels)
	if err != nil {
		return nil, fmt.Errorf("train: %w", err)
	}
	b.LabelEncoder = labelEnc

	raw := make([][]float64, len(examples))
	y := make([]int, len(examples))
	for i, ex := range examples {
		if raw[i], err = b.Encode(ex.Features); err != nil {
			return nil, fmt.Errorf("train: example %d: %w", i, err)
		}
		y[i], _ = labelEnc.Transform(ex.Label)
	}

	if b.Scaler, err = FitScaler(e.schema, raw); err != nil {
		return nil, fmt.Errorf("train: %w", err)
	}
	X, err := b.Scaler.TransformAll(raw)
	if err != nil {
		return nil, fmt.Errorf("train: %w", err)
	}

	nClasses := labelEnc.Len()
	trainIdx, testIdx := stratifiedSplit(y, nClasses, e.cfg.HoldoutFraction, e.cfg.Seed)
	Xtr, ytr := subset(X, y, trainIdx)
	Xte, yte := subset(X, y, testIdx)

	forestCfg := e.cfg.Forest
	if forestCfg.Seed == 0 {
		forestCfg.Seed = e.cfg.Seed
	}
	if b.Forest, err = TrainForest(forestCfg, Xtr, ytr, nClasses); err != nil {
		return nil, fmt.Errorf("train: %w", err)
	}

	yPred, err := predictAll(b.Forest, Xte)
	if err != nil {
		return nil, fmt.Errorf("train: evaluate holdout: %w", err)
	}
	report, err := NewClassificationReport(yte, yPred, labelEnc.Classes)
	if err != nil {
		return nil, fmt.Errorf("train: %w", err)
	}
	baseline, err := FitMajorityBaseline(ytr, nClasses)
	if err != nil {
		return nil, fmt.Errorf("train: %w", err)
	}
	baselineAcc, err := accuracy(baseline, Xte, yte)
	if err != nil {
		return nil, fmt.Errorf("train: %w", err)
	}

	b.Trained = true
	b.TrainedAt = e.now().UTC()
	b.Metrics = BundleMetrics{
		Accuracy:         report.Accuracy,
		BaselineAccuracy: baselineAcc,
		TrainingRows:     len(trainIdx),
		HoldoutRows:      len(testIdx),
	}
	e.current.Store(b)

	holdout := make([]TrainingExample, len(testIdx))
	for i, idx := range testIdx {
		holdout[i] = examples[idx]
	}
	res := &TrainingResult{
		BundleID:         b.ID,
		Report:           report,
		BaselineAccuracy: baselineAcc,
		TrainingRows:     len(trainIdx),
		HoldoutRows:      len(testIdx),
		Duration:         e.now().Sub(start),
		Holdout:          holdout,
	}

	if e.metrics != nil {
		e.metrics.MLTrainingDurationObserve(res.Duration.Seconds())
		if res.HoldoutRows > 0 {
			e.metrics.MLAccuracyObserve(report.Accuracy)
		}
		e.metrics.MLModelAgeSet(0)
	}
	log.Info().
		Str("bundle_id", b.ID).
		Int("training_rows", res.TrainingRows).
		Int("holdout_rows", res.HoldoutRows).
		Int("plans", nClasses).
		Float64("accuracy", report.Accuracy).
		Float64("baseline_accuracy", baselineAcc).
		Dur("duration", res.Duration).
		Msg("model trained")

	return res, nil
}

// Predict implements PredictorInterface.
func (e *Engine) Predict(rec Record) (*Prediction, error) {
	b := e.current.Load()
	if b == nil {
		return nil, &ModelNotTrainedError{Op: "predict"}
	}
	start := time.Now()
	pred, err := b.Predict(rec, e.cfg.TopK, e.now().UTC())
	e.observe(b, start, err)
	if err != nil {
		return nil, err
	}
	if e.metrics != nil {
		e.metrics.MLPredictionScoresObserve(pred.Confidence)
	}
	return pred, nil
}

// PredictProfile validates a typed profile and predicts for it.
func (e *Engine) PredictProfile(p UserProfile) (*Prediction, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return e.Predict(p.Record())
}

// PredictProba implements PredictorInterface.
func (e *Engine) PredictProba(rec Record) ([]float64, error) {
	b := e.current.Load()
	if b == nil {
		return nil, &ModelNotTrainedError{Op: "predict_proba"}
	}
	start := time.Now()
	probs, err := b.PredictProba(rec)
	e.observe(b, start, err)
	return probs, err
}

func (e *Engine) observe(b *Bundle, start time.Time, err error) {
	if e.metrics == nil {
		return
	}
	e.metrics.MLLatencyObserve(time.Since(start).Seconds())
	if err != nil {
		e.metrics.MLFailuresInc()
		var unknown *UnknownCategoryError
		if errors.As(err, &unknown) {
			e.metrics.MLUnknownCategoryInc(unknown.Attribute)
		}
		return
	}
	e.metrics.MLPredictionsInc()
	e.metrics.MLModelAgeSet(e.now().Sub(b.TrainedAt).Seconds())
}

// FeatureImportance returns impurity-based importance of the published
// bundle, highest first.
func (e *Engine) FeatureImportance() ([]FeatureScore, error) {
	b := e.current.Load()
	if b == nil {
		return nil, &ModelNotTrainedError{Op: "feature_importance"}
	}
	return ImpurityImportance(b)
}

// Save persists the published bundle.
func (e *Engine) Save(path string) error {
	b := e.current.Load()
	if b == nil {
		return &ModelNotTrainedError{Op: "save"}
	}
	if err := SaveBundle(b, path); err != nil {
		return err
	}
	log.Info().Str("bundle_id", b.ID).Str("path", path).Msg("model saved")
	return nil
}

// Load reads, validates and publishes a bundle. On error the previously
// published bundle stays in place.
func (e *Engine) Load(path string) error {
	b, err := LoadBundle(path, e.schema)
	if err != nil {
		if e.metrics != nil {
			e.metrics.MLBundleLoadsInc("failure")
		}
		return err
	}
	e.current.Store(b)
	if e.metrics != nil {
		e.metrics.MLBundleLoadsInc("success")
		e.metrics.MLModelAgeSet(e.now().Sub(b.TrainedAt).Seconds())
	}
	log.Info().
		Str("bundle_id", b.ID).
		Str("path", path).
		Time("trained_at", b.TrainedAt).
		Int("plans", b.LabelEncoder.Len()).
		Msg("model loaded")
	return nil
}

// Swap publishes an already built bundle after the same checks Load applies.
func (e *Engine) Swap(b *Bundle) error {
	if b == nil {
		return &ModelNotTrainedError{Op: "swap"}
	}
	if err := b.check(); err != nil {
		return err
	}
	if b.Schema.Fingerprint() != e.schema.Fingerprint() {
		return corrupt("schema %q is incompatible with %q", b.Schema.Fingerprint(), e.schema.Fingerprint())
	}
	e.current.Store(b)
	return nil
}

// stratifiedSplit reserves about fraction of every class for evaluation. A
// class always keeps at least one training row. Both index lists are sorted.
func stratifiedSplit(y []int, nClasses int, fraction float64, seed int64) (train, test []int) {
	byClass := make([][]int, nClasses)
	for i, c := range y {
		byClass[c] = append(byClass[c], i)
	}
	rnd := rand.New(rand.NewSource(seed))
	for _, idx := range byClass {
		rnd.Shuffle(len(idx), func(a, b int) { idx[a], idx[b] = idx[b], idx[a] })
		nTest := 0
		if fraction > 0 && len(idx) > 1 {
			nTest = int(math.Round(fraction * float64(len(idx))))
			if nTest >= len(idx) {
				nTest = len(idx) - 1
			}
		}
		test = append(test, idx[:nTest]...)
		train = append(train, idx[nTest:]...)
	}
	sort.Ints(train)
	sort.Ints(test)
	return train, test
}

func subset(X [][]float64, y []int, idx []int) ([][]float64, []int) {
	xs := make([][]float64, len(idx))
	ys := make([]int, len(idx))
	for i, j := range idx {
		xs[i] = X[j]
		ys[i] = y[j]
	}
	return xs, ys
}
