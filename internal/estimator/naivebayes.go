package estimator

import (
	"fmt"
	"math"

	"fjacquet/finance-ml/internal/mlerror"
)

// MultinomialNB is a multinomial naive Bayes classifier with Laplace
// smoothing. Inputs must be non-negative; callers feeding signed features
// take the absolute value first.
type MultinomialNB struct {
	Alpha       float64
	ClassLogPri []float64
	FeatLogProb [][]float64 // [class][feature]
	NumClass    int
	NumInputs   int
}

// NewMultinomialNB returns an untrained classifier with the standard
// smoothing constant.
func NewMultinomialNB() *MultinomialNB {
	return &MultinomialNB{Alpha: 1.0}
}

func (m *MultinomialNB) Name() string { return "naive_bayes" }

func (m *MultinomialNB) Fit(X [][]float64, y []int) error {
	if err := validateXY(X, len(y)); err != nil {
		return err
	}
	for i, row := range X {
		for j, v := range row {
			if v < 0 {
				return &mlerror.DataValidationError{
					Errors: []string{fmt.Sprintf("negative feature value at row %d column %d", i, j)},
				}
			}
		}
	}

	m.NumClass = numClasses(y)
	m.NumInputs = len(X[0])

	classCounts := make([]float64, m.NumClass)
	featSums := make([][]float64, m.NumClass)
	for c := range featSums {
		featSums[c] = make([]float64, m.NumInputs)
	}
	for i, row := range X {
		classCounts[y[i]]++
		for j, v := range row {
			featSums[y[i]][j] += v
		}
	}

	m.ClassLogPri = make([]float64, m.NumClass)
	m.FeatLogProb = make([][]float64, m.NumClass)
	total := float64(len(X))
	for c := 0; c < m.NumClass; c++ {
		m.ClassLogPri[c] = math.Log((classCounts[c] + m.Alpha) / (total + m.Alpha*float64(m.NumClass)))

		sum := 0.0
		for _, v := range featSums[c] {
			sum += v
		}
		denom := sum + m.Alpha*float64(m.NumInputs)
		m.FeatLogProb[c] = make([]float64, m.NumInputs)
		for j := 0; j < m.NumInputs; j++ {
			m.FeatLogProb[c][j] = math.Log((featSums[c][j] + m.Alpha) / denom)
		}
	}
	return nil
}

func (m *MultinomialNB) PredictProba(x []float64) ([]float64, error) {
	if m.FeatLogProb == nil {
		return nil, &mlerror.NotTrainedError{Component: m.Name()}
	}
	if len(x) != m.NumInputs {
		return nil, &mlerror.DataValidationError{
			Errors: []string{"feature vector width does not match trained model"},
		}
	}

	logProbs := make([]float64, m.NumClass)
	for c := 0; c < m.NumClass; c++ {
		logProbs[c] = m.ClassLogPri[c]
		for j, v := range x {
			logProbs[c] += v * m.FeatLogProb[c][j]
		}
	}

	max := logProbs[0]
	for _, lp := range logProbs[1:] {
		if lp > max {
			max = lp
		}
	}
	sum := 0.0
	for c := range logProbs {
		logProbs[c] = math.Exp(logProbs[c] - max)
		sum += logProbs[c]
	}
	for c := range logProbs {
		logProbs[c] /= sum
	}
	return logProbs, nil
}
