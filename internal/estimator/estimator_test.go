package estimator

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fjacquet/finance-ml/internal/mlerror"
)

// twoBlobs builds a linearly separable two-class set.
func twoBlobs() ([][]float64, []int) {
	var X [][]float64
	var y []int
	for i := 0; i < 30; i++ {
		X = append(X, []float64{float64(i%5) * 0.1, float64(i%3) * 0.1})
		y = append(y, 0)
		X = append(X, []float64{5 + float64(i%5)*0.1, 5 + float64(i%3)*0.1})
		y = append(y, 1)
	}
	return X, y
}

func linearSeries() ([][]float64, []float64) {
	var X [][]float64
	var y []float64
	for i := 0; i < 40; i++ {
		t := float64(i)
		X = append(X, []float64{t, t * 0.5})
		y = append(y, 3+2*t)
	}
	return X, y
}

func TestRandomForestClassifierSeparable(t *testing.T) {
	X, y := twoBlobs()
	f := NewRandomForestClassifier()
	f.NumTrees = 20
	require.NoError(t, f.Fit(X, y))

	label, conf, err := PredictClass(f, []float64{0.1, 0.1})
	require.NoError(t, err)
	assert.Equal(t, 0, label)
	assert.Greater(t, conf, 0.9)

	label, _, err = PredictClass(f, []float64{5.2, 5.2})
	require.NoError(t, err)
	assert.Equal(t, 1, label)
}

func TestRandomForestClassifierDeterministic(t *testing.T) {
	X, y := twoBlobs()

	a := NewRandomForestClassifier()
	a.NumTrees = 10
	require.NoError(t, a.Fit(X, y))
	b := NewRandomForestClassifier()
	b.NumTrees = 10
	require.NoError(t, b.Fit(X, y))

	pa, err := a.PredictProba([]float64{2.5, 2.5})
	require.NoError(t, err)
	pb, err := b.PredictProba([]float64{2.5, 2.5})
	require.NoError(t, err)
	assert.Equal(t, pa, pb)
}

func TestRandomForestFeatureImportances(t *testing.T) {
	X, y := twoBlobs()
	f := NewRandomForestClassifier()
	f.NumTrees = 10
	require.NoError(t, f.Fit(X, y))

	imp := f.FeatureImportances()
	require.Len(t, imp, 2)
	sum := imp[0] + imp[1]
	assert.InDelta(t, 1.0, sum, 1e-9)
}

func TestLogisticRegressionSeparable(t *testing.T) {
	X, y := twoBlobs()
	l := NewLogisticRegression()
	require.NoError(t, l.Fit(X, y))

	label, conf, err := PredictClass(l, []float64{0, 0})
	require.NoError(t, err)
	assert.Equal(t, 0, label)
	assert.Greater(t, conf, 0.5)

	probs, err := l.PredictProba([]float64{5.5, 5.5})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, probs[0]+probs[1], 1e-9)
	assert.Greater(t, probs[1], probs[0])
}

func TestMultinomialNB(t *testing.T) {
	X := [][]float64{
		{3, 0, 1}, {4, 0, 0}, {5, 1, 0},
		{0, 3, 2}, {1, 4, 3}, {0, 5, 2},
	}
	y := []int{0, 0, 0, 1, 1, 1}

	nb := NewMultinomialNB()
	require.NoError(t, nb.Fit(X, y))

	label, _, err := PredictClass(nb, []float64{4, 0, 1})
	require.NoError(t, err)
	assert.Equal(t, 0, label)

	label, _, err = PredictClass(nb, []float64{0, 4, 2})
	require.NoError(t, err)
	assert.Equal(t, 1, label)
}

func TestMultinomialNBRejectsNegative(t *testing.T) {
	nb := NewMultinomialNB()
	err := nb.Fit([][]float64{{1, -2}}, []int{0})
	var ve *mlerror.DataValidationError
	assert.True(t, errors.As(err, &ve))
}

func TestRegressorsOnLinearSeries(t *testing.T) {
	X, y := linearSeries()

	cases := []struct {
		name string
		reg  Regressor
		tol  float64
	}{
		{"linear", NewLinearRegression(), 1e-6},
		{"ridge", NewRidgeRegression(), 1.0},
		{"random_forest", NewRandomForestRegressor(), 6.0},
		{"gradient_boosting", NewGradientBoostingRegressor(), 6.0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.NoError(t, tc.reg.Fit(X, y))
			got, err := tc.reg.Predict([]float64{20, 10})
			require.NoError(t, err)
			assert.InDelta(t, 43.0, got, tc.tol)
		})
	}
}

func TestLinearRegressionExactFit(t *testing.T) {
	X := [][]float64{{1, 0}, {2, 1}, {3, 1}, {4, 2}, {5, 0}}
	y := make([]float64, len(X))
	for i, row := range X {
		y[i] = 1.5 + 2*row[0] - 0.5*row[1]
	}

	l := NewLinearRegression()
	require.NoError(t, l.Fit(X, y))
	assert.InDelta(t, 1.5, l.Intercept, 1e-8)
	assert.InDelta(t, 2.0, l.Coef[0], 1e-8)
	assert.InDelta(t, -0.5, l.Coef[1], 1e-8)
}

func TestNotTrainedErrors(t *testing.T) {
	var notTrained *mlerror.NotTrainedError

	_, err := NewRandomForestClassifier().PredictProba([]float64{1})
	assert.True(t, errors.As(err, &notTrained))

	_, err = NewLogisticRegression().PredictProba([]float64{1})
	assert.True(t, errors.As(err, &notTrained))

	_, err = NewLinearRegression().Predict([]float64{1})
	assert.True(t, errors.As(err, &notTrained))

	_, err = NewGradientBoostingRegressor().Predict([]float64{1})
	assert.True(t, errors.As(err, &notTrained))
}

func TestValidateXYRaggedMatrix(t *testing.T) {
	err := validateXY([][]float64{{1, 2}, {1}}, 2)
	assert.Error(t, err)

	err = validateXY([][]float64{{1, 2}}, 3)
	assert.Error(t, err)

	assert.NoError(t, validateXY([][]float64{{1, 2}, {3, 4}}, 2))
}
