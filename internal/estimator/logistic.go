package estimator

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"

	"fjacquet/finance-ml/internal/mlerror"
)

// LogisticRegression is a multinomial softmax classifier trained with
// full-batch gradient descent and a light L2 penalty.
type LogisticRegression struct {
	Weights   [][]float64 // [class][feature]
	Bias      []float64
	NumClass  int
	NumInputs int

	Epochs       int
	LearningRate float64
	L2           float64
}

// NewLogisticRegression returns an untrained classifier with defaults
// tuned for the TF-IDF sized inputs it sees in practice.
func NewLogisticRegression() *LogisticRegression {
	return &LogisticRegression{Epochs: 200, LearningRate: 0.1, L2: 1e-4}
}

func (l *LogisticRegression) Name() string { return "logistic_regression" }

func (l *LogisticRegression) Fit(X [][]float64, y []int) error {
	if err := validateXY(X, len(y)); err != nil {
		return err
	}
	l.NumClass = numClasses(y)
	l.NumInputs = len(X[0])

	rng := rand.New(rand.NewSource(Seed))
	l.Weights = make([][]float64, l.NumClass)
	for c := range l.Weights {
		l.Weights[c] = make([]float64, l.NumInputs)
		for j := range l.Weights[c] {
			l.Weights[c][j] = rng.NormFloat64() * 0.01
		}
	}
	l.Bias = make([]float64, l.NumClass)

	n := float64(len(X))
	gradW := make([][]float64, l.NumClass)
	for c := range gradW {
		gradW[c] = make([]float64, l.NumInputs)
	}
	gradB := make([]float64, l.NumClass)

	for epoch := 0; epoch < l.Epochs; epoch++ {
		for c := range gradW {
			for j := range gradW[c] {
				gradW[c][j] = 0
			}
			gradB[c] = 0
		}

		for i, row := range X {
			probs := l.softmax(row)
			for c := 0; c < l.NumClass; c++ {
				diff := probs[c]
				if c == y[i] {
					diff -= 1
				}
				floats.AddScaled(gradW[c], diff, row)
				gradB[c] += diff
			}
		}

		for c := 0; c < l.NumClass; c++ {
			for j := 0; j < l.NumInputs; j++ {
				l.Weights[c][j] -= l.LearningRate * (gradW[c][j]/n + l.L2*l.Weights[c][j])
			}
			l.Bias[c] -= l.LearningRate * gradB[c] / n
		}
	}
	return nil
}

func (l *LogisticRegression) softmax(x []float64) []float64 {
	scores := make([]float64, l.NumClass)
	for c := 0; c < l.NumClass; c++ {
		scores[c] = floats.Dot(l.Weights[c], x) + l.Bias[c]
	}
	max := floats.Max(scores)
	sum := 0.0
	for c := range scores {
		scores[c] = math.Exp(scores[c] - max)
		sum += scores[c]
	}
	for c := range scores {
		scores[c] /= sum
	}
	return scores
}

func (l *LogisticRegression) PredictProba(x []float64) ([]float64, error) {
	if l.Weights == nil {
		return nil, &mlerror.NotTrainedError{Component: l.Name()}
	}
	if len(x) != l.NumInputs {
		return nil, &mlerror.DataValidationError{
			Errors: []string{"feature vector width does not match trained model"},
		}
	}
	return l.softmax(x), nil
}
