package ml

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRank(t *testing.T) {
	tests := []struct {
		name  string
		probs []float64
		want  []int
	}{
		{"descending", []float64{0.1, 0.6, 0.3}, []int{1, 2, 0}},
		{"ties keep index order", []float64{0.25, 0.25, 0.5, 0}, []int{2, 0, 1, 3}},
		{"all equal", []float64{0.2, 0.2, 0.2, 0.2, 0.2}, []int{0, 1, 2, 3, 4}},
		{"single", []float64{1}, []int{0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Rank(tt.probs))
		})
	}
}

func TestRecommend(t *testing.T) {
	labels := []string{"cardio_beginner", "power_beginner", "strength_beginner", "endurance_beginner"}
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	pred, err := Recommend([]float64{0.2, 0.5, 0.2, 0.1}, labels, 3, now)
	require.NoError(t, err)

	assert.Equal(t, "power_beginner", pred.RecommendedPlan)
	assert.Equal(t, 0.5, pred.Confidence)
	assert.Equal(t, now, pred.Timestamp)
	assert.Equal(t, []Recommendation{
		{Plan: "power_beginner", Confidence: 0.5},
		{Plan: "cardio_beginner", Confidence: 0.2},
		{Plan: "strength_beginner", Confidence: 0.2},
	}, pred.TopRecommendations)
}

func TestRecommend_Length(t *testing.T) {
	labels := []string{"a", "b"}
	probs := []float64{0.4, 0.6}

	tests := []struct {
		k    int
		want int
	}{
		{1, 1},
		{2, 2},
		{3, 2},
		{0, 2}, // default k=3 capped at label count
	}
	for _, tt := range tests {
		pred, err := Recommend(probs, labels, tt.k, time.Time{})
		require.NoError(t, err)
		assert.Len(t, pred.TopRecommendations, tt.want, "k=%d", tt.k)
		assert.Equal(t, "b", pred.RecommendedPlan)
	}
}

func TestRecommend_Invalid(t *testing.T) {
	_, err := Recommend(nil, nil, 3, time.Time{})
	assert.Error(t, err)

	_, err = Recommend([]float64{1}, []string{"a", "b"}, 3, time.Time{})
	assert.Error(t, err)
}
