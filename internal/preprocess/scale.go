package preprocess

import (
	"fmt"
	"math"

	"fjacquet/finance-ml/internal/mlerror"
)

// StandardScaler standardizes each column to zero mean and unit variance.
// Constant columns keep a unit divisor so they scale to zero instead of
// NaN. Fields are exported for gob.
type StandardScaler struct {
	Mean []float64
	Std  []float64
}

// Fit learns column means and standard deviations.
func (s *StandardScaler) Fit(X [][]float64) error {
	if len(X) == 0 {
		return &mlerror.DataValidationError{Errors: []string{"cannot fit scaler on empty matrix"}}
	}
	d := len(X[0])
	s.Mean = make([]float64, d)
	s.Std = make([]float64, d)

	for _, row := range X {
		for j, v := range row {
			s.Mean[j] += v
		}
	}
	n := float64(len(X))
	for j := range s.Mean {
		s.Mean[j] /= n
	}
	for _, row := range X {
		for j, v := range row {
			d := v - s.Mean[j]
			s.Std[j] += d * d
		}
	}
	for j := range s.Std {
		s.Std[j] = math.Sqrt(s.Std[j] / n)
		if s.Std[j] == 0 {
			s.Std[j] = 1
		}
	}
	return nil
}

// Transform standardizes rows in place-safe copies.
func (s *StandardScaler) Transform(X [][]float64) ([][]float64, error) {
	if s.Mean == nil {
		return nil, &mlerror.NotTrainedError{Component: "standard_scaler"}
	}
	out := make([][]float64, len(X))
	for i, row := range X {
		if len(row) != len(s.Mean) {
			return nil, &mlerror.DataValidationError{
				Errors: []string{fmt.Sprintf("row %d has %d columns, scaler fitted on %d", i, len(row), len(s.Mean))},
			}
		}
		scaled := make([]float64, len(row))
		for j, v := range row {
			scaled[j] = (v - s.Mean[j]) / s.Std[j]
		}
		out[i] = scaled
	}
	return out, nil
}

// LabelEncoder maps string labels to dense integer classes. Classes are
// recorded in first-seen order; the slice is the gob-persisted state.
type LabelEncoder struct {
	Classes []string

	index map[string]int
}

// FitTransform learns the class set and returns the encoded labels.
func (e *LabelEncoder) FitTransform(labels []string) []int {
	e.Classes = nil
	e.index = make(map[string]int)
	out := make([]int, len(labels))
	for i, label := range labels {
		id, ok := e.index[label]
		if !ok {
			id = len(e.Classes)
			e.Classes = append(e.Classes, label)
			e.index[label] = id
		}
		out[i] = id
	}
	return out
}

// Decode returns the label for a class id.
func (e *LabelEncoder) Decode(class int) (string, error) {
	if class < 0 || class >= len(e.Classes) {
		return "", fmt.Errorf("unknown class id %d", class)
	}
	return e.Classes[class], nil
}

// Encode returns the class id for a label.
func (e *LabelEncoder) Encode(label string) (int, bool) {
	if e.index == nil {
		e.index = make(map[string]int, len(e.Classes))
		for i, c := range e.Classes {
			e.index[c] = i
		}
	}
	id, ok := e.index[label]
	return id, ok
}
