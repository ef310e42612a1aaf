package ml

import (
	"fmt"
	"sort"
	"time"
)

// DefaultTopK is the number of ranked plans returned per prediction.
const DefaultTopK = 3

// Recommendation is one ranked plan.
type Recommendation struct {
	Plan       string  `json:"plan"`
	Confidence float64 `json:"confidence"`
}

// Prediction is the result of one inference call.
type Prediction struct {
	RecommendedPlan    string           `json:"recommended_plan"`
	Confidence         float64          `json:"confidence"`
	TopRecommendations []Recommendation `json:"top_recommendations"`
	Timestamp          time.Time        `json:"timestamp"`
}

// Rank returns class indices ordered by descending probability; equal
// probabilities keep ascending class index order.
func Rank(probs []float64) []int {
	order := make([]int, len(probs))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return probs[order[a]] > probs[order[b]]
	})
	return order
}

// Recommend turns a probability distribution into the top-k ranked plans.
// labels[i] names class i. It has no side effects.
func Recommend(probs []float64, labels []string, k int, now time.Time) (*Prediction, error) {
	if len(probs) == 0 {
		return nil, fmt.Errorf("recommend: empty probability distribution")
	}
	if len(probs) != len(labels) {
		return nil, fmt.Errorf("recommend: %d probabilities for %d labels", len(probs), len(labels))
	}
	if k <= 0 {
		k = DefaultTopK
	}
	if k > len(probs) {
		k = len(probs)
	}

	order := Rank(probs)[:k]
	top := make([]Recommendation, k)
	for i, c := range order {
		top[i] = Recommendation{Plan: labels[c], Confidence: probs[c]}
	}
	return &Prediction{
		RecommendedPlan:    top[0].Plan,
		Confidence:         top[0].Confidence,
		TopRecommendations: top,
		Timestamp:          now,
	}, nil
}
