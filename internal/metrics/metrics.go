// Package metrics provides Prometheus metrics collection for the recommender.
// It defines training and inference metrics that are exposed via the
// Prometheus metrics endpoint while the CLI runs.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the recommender.
type Metrics struct {
	// Inference metrics
	MLPredictions      prometheus.Counter   // Total number of successful predictions
	MLFailures         prometheus.Counter   // Total number of rejected or failed predictions
	MLModelAge         prometheus.Gauge     // Age of the published bundle in seconds
	MLLatency          prometheus.Histogram // Prediction latency in seconds
	MLPredictionScores prometheus.Histogram // Confidence of the top recommendation
	UnknownCategories  *prometheus.CounterVec

	// Training metrics
	MLAccuracy       prometheus.Histogram // Holdout accuracy per training run
	TrainingDuration prometheus.Histogram // Wall time of a training run in seconds
	ExamplesLoaded   *prometheus.CounterVec
	BundleLoads      *prometheus.CounterVec

	// System metrics
	ErrorsTotal prometheus.Counter // Total number of errors encountered
}

// New creates and registers all metrics using the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates metrics with a custom registry (useful for testing).
func NewWithRegistry(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	return &Metrics{
		MLPredictions: factory.NewCounter(prometheus.CounterOpts{
			Name: "ml_predictions_total",
			Help: "Total number of successful predictions",
		}),
		MLFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "ml_failures_total",
			Help: "Total number of rejected or failed predictions",
		}),
		MLModelAge: factory.NewGauge(prometheus.GaugeOpts{
			Name: "ml_model_age_seconds",
			Help: "Age of the published model bundle in seconds",
		}),
		MLLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "ml_latency_seconds",
			Help:    "Prediction latency in seconds",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		}),
		MLPredictionScores: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "ml_prediction_scores",
			Help:    "Distribution of top recommendation confidence",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		}),
		UnknownCategories: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ml_unknown_category_total",
			Help: "Predictions rejected because of an unseen categorical value",
		}, []string{"attribute"}),
		MLAccuracy: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "ml_accuracy",
			Help:    "Holdout accuracy of trained models",
			Buckets: []float64{0.5, 0.55, 0.6, 0.65, 0.7, 0.75, 0.8, 0.85, 0.9, 0.95, 1.0},
		}),
		TrainingDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "ml_training_duration_seconds",
			Help:    "Duration of training runs in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 15),
		}),
		ExamplesLoaded: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "training_examples_loaded_total",
			Help: "Training examples loaded per source",
		}, []string{"source"}),
		BundleLoads: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ml_bundle_loads_total",
			Help: "Model bundle loads by result",
		}, []string{"result"}),
		ErrorsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "errors_total",
			Help: "Total number of errors encountered",
		}),
	}
}

// ObserveExamples records how many examples a source produced.
func (m *Metrics) ObserveExamples(source string, n int) {
	m.ExamplesLoaded.WithLabelValues(source).Add(float64(n))
}
