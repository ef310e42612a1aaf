package ml

import "fmt"

// MajorityBaseline always favours the most frequent training class. It is the
// floor a trained forest has to beat on the holdout split.
type MajorityBaseline struct {
	Class int       `json:"class"`
	Prior []float64 `json:"prior"`
}

// FitMajorityBaseline counts class frequencies in y. Ties go to the smaller
// class index.
func FitMajorityBaseline(y []int, nClasses int) (*MajorityBaseline, error) {
	if len(y) == 0 {
		return nil, fmt.Errorf("fit baseline: no labels")
	}
	counts := make([]int, nClasses)
	for i, c := range y {
		if c < 0 || c >= nClasses {
			return nil, fmt.Errorf("fit baseline: row %d has class %d outside [0,%d)", i, c, nClasses)
		}
		counts[c]++
	}
	b := &MajorityBaseline{Prior: countsToProbs(counts)}
	for c := 1; c < nClasses; c++ {
		if counts[c] > counts[b.Class] {
			b.Class = c
		}
	}
	return b, nil
}

// NumClasses implements Classifier.
func (b *MajorityBaseline) NumClasses() int { return len(b.Prior) }

// PredictProba implements Classifier; the input is ignored.
func (b *MajorityBaseline) PredictProba([]float64) ([]float64, error) {
	out := make([]float64, len(b.Prior))
	copy(out, b.Prior)
	return out, nil
}

// argmax picks the most probable class; ties go to the smaller index.
func argmax(p []float64) int {
	best := 0
	for c := 1; c < len(p); c++ {
		if p[c] > p[best] {
			best = c
		}
	}
	return best
}

// predictAll returns the argmax class of c for every row.
func predictAll(c Classifier, X [][]float64) ([]int, error) {
	out := make([]int, len(X))
	for i, x := range X {
		p, err := c.PredictProba(x)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out[i] = argmax(p)
	}
	return out, nil
}

// accuracy is the share of rows where c's argmax matches y.
func accuracy(c Classifier, X [][]float64, y []int) (float64, error) {
	if len(X) == 0 {
		return 0, nil
	}
	pred, err := predictAll(c, X)
	if err != nil {
		return 0, err
	}
	hits := 0
	for i := range pred {
		if pred[i] == y[i] {
			hits++
		}
	}
	return float64(hits) / float64(len(X)), nil
}
