package ml

import (
	"fmt"
	"math"
)

// Scaler standardizes the numeric positions of an encoded feature vector using
// mean and population standard deviation computed once from training data.
// Categorical codes pass through untouched.
type Scaler struct {
	Attributes []string  `json:"attributes"`
	Positions  []int     `json:"positions"`
	Center     []float64 `json:"center"`
	Spread     []float64 `json:"spread"`
	Width      int       `json:"width"`
}

// FitScaler computes scaling parameters for every numeric attribute of schema
// over the encoded rows.
func FitScaler(schema *Schema, rows [][]float64) (*Scaler, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("fit scaler: no rows")
	}
	width := schema.Len()
	positions := schema.NumericIndices()
	s := &Scaler{
		Attributes: make([]string, len(positions)),
		Positions:  positions,
		Center:     make([]float64, len(positions)),
		Spread:     make([]float64, len(positions)),
		Width:      width,
	}
	for i, row := range rows {
		if len(row) != width {
			return nil, fmt.Errorf("fit scaler: row %d: %w", i, &ShapeMismatchError{Expected: width, Got: len(row)})
		}
	}

	n := float64(len(rows))
	for k, pos := range positions {
		s.Attributes[k] = schema.Attributes[pos].Name

		mean := 0.0
		for _, row := range rows {
			mean += row[pos]
		}
		mean /= n

		variance := 0.0
		for _, row := range rows {
			d := row[pos] - mean
			variance += d * d
		}
		variance /= n

		spread := math.Sqrt(variance)
		if spread == 0 || math.IsNaN(spread) {
			spread = 1.0
		}
		s.Center[k] = mean
		s.Spread[k] = spread
	}
	return s, nil
}

// Transform returns a scaled copy of x.
func (s *Scaler) Transform(x []float64) ([]float64, error) {
	if len(x) != s.Width {
		return nil, &ShapeMismatchError{Expected: s.Width, Got: len(x)}
	}
	out := make([]float64, len(x))
	copy(out, x)
	for k, pos := range s.Positions {
		out[pos] = (x[pos] - s.Center[k]) / s.Spread[k]
	}
	return out, nil
}

// TransformAll scales every row.
func (s *Scaler) TransformAll(rows [][]float64) ([][]float64, error) {
	out := make([][]float64, len(rows))
	for i, row := range rows {
		scaled, err := s.Transform(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out[i] = scaled
	}
	return out, nil
}

// matches reports whether the scaler was fit against the numeric layout of schema.
func (s *Scaler) matches(schema *Schema) error {
	if s.Width != schema.Len() {
		return fmt.Errorf("scaler width %d, schema has %d attributes", s.Width, schema.Len())
	}
	positions := schema.NumericIndices()
	if len(positions) != len(s.Positions) || len(s.Center) != len(positions) ||
		len(s.Spread) != len(positions) || len(s.Attributes) != len(positions) {
		return fmt.Errorf("scaler covers %d numeric attributes, schema has %d", len(s.Positions), len(positions))
	}
	for k, pos := range positions {
		if s.Positions[k] != pos || s.Attributes[k] != schema.Attributes[pos].Name {
			return fmt.Errorf("scaler attribute %d is %s, schema expects %s", k, s.Attributes[k], schema.Attributes[pos].Name)
		}
		if !isFinite(s.Spread[k]) || s.Spread[k] <= 0 || !isFinite(s.Center[k]) {
			return fmt.Errorf("scaler attribute %s has invalid parameters", s.Attributes[k])
		}
	}
	return nil
}
