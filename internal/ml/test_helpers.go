package ml

import "sync"

// MockMetrics implements MetricsInterface for testing
type MockMetrics struct {
	mu               sync.Mutex
	predictions      int
	failures         int
	latencySum       float64
	accuracy         []float64
	modelAge         float64
	predictionScores []float64
	trainings        int
	unknown          map[string]int
	loads            map[string]int
}

func (m *MockMetrics) MLPredictionsInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.predictions++
}

func (m *MockMetrics) MLFailuresInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures++
}

func (m *MockMetrics) MLLatencyObserve(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latencySum += v
}

func (m *MockMetrics) MLModelAgeSet(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.modelAge = v
}

func (m *MockMetrics) MLAccuracyObserve(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accuracy = append(m.accuracy, v)
}

func (m *MockMetrics) MLPredictionScoresObserve(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.predictionScores = append(m.predictionScores, v)
}

func (m *MockMetrics) MLTrainingDurationObserve(float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trainings++
}

func (m *MockMetrics) MLUnknownCategoryInc(attribute string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.unknown == nil {
		m.unknown = make(map[string]int)
	}
	m.unknown[attribute]++
}

func (m *MockMetrics) MLBundleLoadsInc(result string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loads == nil {
		m.loads = make(map[string]int)
	}
	m.loads[result]++
}

// Predictions returns the number of successful predictions recorded.
func (m *MockMetrics) Predictions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.predictions
}

// Failures returns the number of failed predictions recorded.
func (m *MockMetrics) Failures() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.failures
}

// Unknown returns how often an unknown category was seen for attribute.
func (m *MockMetrics) Unknown(attribute string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.unknown[attribute]
}

// Loads returns how often a bundle load ended with result.
func (m *MockMetrics) Loads(result string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loads[result]
}
