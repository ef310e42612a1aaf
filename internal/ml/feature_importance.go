package ml

import (
	"fmt"
	"io"
	"math"
	"math/rand"
	"sort"

	"github.com/rs/zerolog/log"
)

// FeatureScore is the importance of one schema attribute.
type FeatureScore struct {
	Name       string  `json:"name"`
	Importance float64 `json:"importance"`
	StdDev     float64 `json:"std_dev,omitempty"`
}

// ImpurityImportance reports the forest's mean decrease in impurity per
// attribute, highest first. Scores are non-negative and sum to 1 unless every
// tree is a single leaf.
func ImpurityImportance(b *Bundle) ([]FeatureScore, error) {
	if b == nil || b.Forest == nil {
		return nil, &ModelNotTrainedError{Op: "feature_importance"}
	}
	values, err := b.Forest.FeatureImportance()
	if err != nil {
		return nil, err
	}
	scores := make([]FeatureScore, len(values))
	for i, v := range values {
		scores[i] = FeatureScore{Name: b.Schema.Attributes[i].Name, Importance: v}
	}
	rankScores(scores)
	return scores, nil
}

// PermutationImportance measures how much holdout accuracy drops when one
// attribute's column is shuffled, averaged over rounds. Negative drops are
// reported as zero.
func PermutationImportance(b *Bundle, examples []TrainingExample, rounds int, seed int64) ([]FeatureScore, error) {
	if b == nil || !b.Trained {
		return nil, &ModelNotTrainedError{Op: "permutation_importance"}
	}
	if len(examples) == 0 {
		return nil, fmt.Errorf("permutation importance: no examples")
	}
	if rounds <= 0 {
		rounds = 5
	}

	X := make([][]float64, len(examples))
	y := make([]int, len(examples))
	for i, ex := range examples {
		x, err := b.Vector(ex.Features)
		if err != nil {
			return nil, fmt.Errorf("permutation importance: example %d: %w", i, err)
		}
		c, err := b.LabelEncoder.Transform(ex.Label)
		if err != nil {
			return nil, fmt.Errorf("permutation importance: example %d: %w", i, err)
		}
		X[i], y[i] = x, c
	}

	base, err := accuracy(b.Forest, X, y)
	if err != nil {
		return nil, err
	}

	rnd := rand.New(rand.NewSource(seed))
	shuffled := make([][]float64, len(X))
	for i := range X {
		shuffled[i] = make([]float64, len(X[i]))
	}

	scores := make([]FeatureScore, b.Schema.Len())
	for f := range scores {
		drops := make([]float64, rounds)
		for r := 0; r < rounds; r++ {
			perm := rnd.Perm(len(X))
			for i := range X {
				copy(shuffled[i], X[i])
				shuffled[i][f] = X[perm[i]][f]
			}
			acc, err := accuracy(b.Forest, shuffled, y)
			if err != nil {
				return nil, err
			}
			drops[r] = base - acc
		}
		mean, std := meanStd(drops)
		scores[f] = FeatureScore{
			Name:       b.Schema.Attributes[f].Name,
			Importance: math.Max(0, mean),
			StdDev:     std,
		}
	}
	rankScores(scores)

	log.Debug().
		Float64("baseline_accuracy", base).
		Int("rows", len(X)).
		Int("rounds", rounds).
		Msg("permutation importance computed")

	return scores, nil
}

// WriteImportance prints scores one per line.
func WriteImportance(w io.Writer, scores []FeatureScore) {
	width := 0
	for _, s := range scores {
		if len(s.Name) > width {
			width = len(s.Name)
		}
	}
	for _, s := range scores {
		if s.StdDev > 0 {
			fmt.Fprintf(w, "%-*s  %.4f +/- %.4f\n", width, s.Name, s.Importance, s.StdDev)
			continue
		}
		fmt.Fprintf(w, "%-*s  %.4f\n", width, s.Name, s.Importance)
	}
}

// rankScores orders by importance, highest first; equal scores keep schema order.
func rankScores(scores []FeatureScore) {
	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].Importance > scores[j].Importance
	})
}

func meanStd(v []float64) (float64, float64) {
	if len(v) == 0 {
		return 0, 0
	}
	mean := 0.0
	for _, x := range v {
		mean += x
	}
	mean /= float64(len(v))
	variance := 0.0
	for _, x := range v {
		variance += (x - mean) * (x - mean)
	}
	return mean, math.Sqrt(variance / float64(len(v)))
}
