package metrics

import "workout-recommender/internal/ml"

var _ ml.MetricsInterface = (*MLWrapper)(nil)

// MLWrapper adapts Metrics to the interface the engine reports through.
type MLWrapper struct {
	m *Metrics
}

func NewMLWrapper(m *Metrics) *MLWrapper {
	return &MLWrapper{m: m}
}

func (w *MLWrapper) MLPredictionsInc() { w.m.MLPredictions.Inc() }

func (w *MLWrapper) MLFailuresInc() { w.m.MLFailures.Inc() }

func (w *MLWrapper) MLLatencyObserve(v float64) { w.m.MLLatency.Observe(v) }

func (w *MLWrapper) MLModelAgeSet(v float64) { w.m.MLModelAge.Set(v) }

func (w *MLWrapper) MLAccuracyObserve(v float64) { w.m.MLAccuracy.Observe(v) }

func (w *MLWrapper) MLPredictionScoresObserve(v float64) { w.m.MLPredictionScores.Observe(v) }

func (w *MLWrapper) MLTrainingDurationObserve(v float64) { w.m.TrainingDuration.Observe(v) }

func (w *MLWrapper) MLUnknownCategoryInc(attribute string) {
	w.m.UnknownCategories.WithLabelValues(attribute).Inc()
}

func (w *MLWrapper) MLBundleLoadsInc(result string) {
	w.m.BundleLoads.WithLabelValues(result).Inc()
}
