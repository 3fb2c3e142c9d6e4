// Package estimator implements the interchangeable learning algorithms
// behind the categorization, prediction, and recommendation models. All
// candidates for a task sit behind one fit/predict capability interface so
// model selection is driven purely by a comparable cross-validation score.
package estimator

import (
	"encoding/gob"
	"fmt"
)

// Seed fixes the pseudo-random source of every estimator so training runs
// are reproducible.
const Seed = 42

// Classifier is a multi-class probabilistic classifier. Fit infers the
// number of classes from the labels, which must be dense in [0, n).
type Classifier interface {
	Fit(X [][]float64, y []int) error
	PredictProba(x []float64) ([]float64, error)
	Name() string
}

// Regressor predicts a single continuous target.
type Regressor interface {
	Fit(X [][]float64, y []float64) error
	Predict(x []float64) (float64, error)
	Name() string
}

// ClassifierCandidate pairs a candidate name with a factory producing a
// fresh untrained instance. Candidates are held in slices, never maps, so
// iteration order (and therefore tie-breaking) is deterministic.
type ClassifierCandidate struct {
	Name string
	New  func() Classifier
}

// RegressorCandidate pairs a regressor name with its factory.
type RegressorCandidate struct {
	Name string
	New  func() Regressor
}

// PredictClass returns the argmax class and its posterior probability.
func PredictClass(c Classifier, x []float64) (int, float64, error) {
	probs, err := c.PredictProba(x)
	if err != nil {
		return 0, 0, err
	}
	if len(probs) == 0 {
		return 0, 0, fmt.Errorf("%s returned no class probabilities", c.Name())
	}
	best := 0
	for i, p := range probs {
		if p > probs[best] {
			best = i
		}
	}
	return best, probs[best], nil
}

func validateXY(X [][]float64, n int) error {
	if len(X) == 0 {
		return fmt.Errorf("empty training matrix")
	}
	if len(X) != n {
		return fmt.Errorf("feature matrix has %d rows, target has %d", len(X), n)
	}
	width := len(X[0])
	for i, row := range X {
		if len(row) != width {
			return fmt.Errorf("ragged feature matrix: row %d has %d columns, want %d", i, len(row), width)
		}
	}
	return nil
}

func numClasses(y []int) int {
	max := 0
	for _, label := range y {
		if label > max {
			max = label
		}
	}
	return max + 1
}

func init() {
	// Concrete estimator types cross the artifact-store boundary inside
	// interface values, so gob has to know them all up front.
	gob.Register(&RandomForestClassifier{})
	gob.Register(&LogisticRegression{})
	gob.Register(&MultinomialNB{})
	gob.Register(&RandomForestRegressor{})
	gob.Register(&GradientBoostingRegressor{})
	gob.Register(&LinearRegression{})
	gob.Register(&RidgeRegression{})
	gob.Register(&KMeans{})
}
