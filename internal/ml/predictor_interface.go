// Package ml turns user profiles into ranked workout-plan recommendations.
// It includes the feature schema, categorical encoding and scaling, a bagged
// decision-tree classifier, top-K ranking, bundle persistence with version
// management, and feature importance reporting.
//
// Fitted state lives in an immutable Bundle; the Engine publishes bundles
// atomically so predictions never observe a half-replaced model.
package ml

// PredictorInterface is what callers need to obtain recommendations.
// Engine is the production implementation.
type PredictorInterface interface {
	// Predict ranks plans for one feature record.
	Predict(rec Record) (*Prediction, error)

	// PredictProba returns the class distribution for one feature record,
	// indexed like the label encoder classes.
	PredictProba(rec Record) ([]float64, error)
}

// MetricsInterface defines the metrics the engine reports.
type MetricsInterface interface {
	MLPredictionsInc()
	MLFailuresInc()
	MLLatencyObserve(float64)
	MLModelAgeSet(float64)
	MLAccuracyObserve(float64)
	MLPredictionScoresObserve(float64)
	MLTrainingDurationObserve(float64)
	MLUnknownCategoryInc(attribute string)
	MLBundleLoadsInc(result string)
}
