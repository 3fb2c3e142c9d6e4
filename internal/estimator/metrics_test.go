package estimator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccuracyAndConfusion(t *testing.T) {
	yTrue := []int{0, 0, 1, 1, 2}
	yPred := []int{0, 1, 1, 1, 2}

	assert.InDelta(t, 0.8, Accuracy(yTrue, yPred), 1e-9)

	cm := ConfusionMatrix(yTrue, yPred, 3)
	assert.Equal(t, 1, cm[0][0])
	assert.Equal(t, 1, cm[0][1])
	assert.Equal(t, 2, cm[1][1])
	assert.Equal(t, 1, cm[2][2])
}

func TestPrecisionRecallF1Perfect(t *testing.T) {
	y := []int{0, 1, 2, 1, 0}
	p, r, f1 := PrecisionRecallF1(y, y)
	assert.InDelta(t, 1.0, p, 1e-9)
	assert.InDelta(t, 1.0, r, 1e-9)
	assert.InDelta(t, 1.0, f1, 1e-9)
}

func TestRegressionMetrics(t *testing.T) {
	yTrue := []float64{10, 20, 30}
	yPred := []float64{12, 18, 33}

	assert.InDelta(t, 7.0/3.0, MAE(yTrue, yPred), 1e-9)
	assert.InDelta(t, (4.0+4.0+9.0)/3.0, MSE(yTrue, yPred), 1e-9)
	assert.Greater(t, R2(yTrue, yPred), 0.9)
	assert.Greater(t, MAPE(yTrue, yPred), 0.0)
}

func TestR2ConstantTarget(t *testing.T) {
	assert.Equal(t, 0.0, R2([]float64{5, 5, 5}, []float64{5, 5, 5}))
}

func TestMAPESkipsZeroActuals(t *testing.T) {
	assert.Equal(t, 0.0, MAPE([]float64{0, 0}, []float64{1, 2}))
	assert.InDelta(t, 10.0, MAPE([]float64{0, 100}, []float64{5, 110}), 1e-9)
}

func TestSilhouetteSeparatedClusters(t *testing.T) {
	X := [][]float64{
		{0, 0}, {0.1, 0}, {0, 0.1},
		{10, 10}, {10.1, 10}, {10, 10.1},
	}
	assign := []int{0, 0, 0, 1, 1, 1}
	assert.Greater(t, Silhouette(X, assign), 0.9)

	// Swapping two points across clusters should hurt the score.
	bad := []int{0, 1, 0, 1, 0, 1}
	assert.Less(t, Silhouette(X, bad), Silhouette(X, assign))
}

func TestKMeansFindsSeparatedClusters(t *testing.T) {
	X := [][]float64{
		{0, 0}, {0.2, 0.1}, {0.1, 0.3}, {0.3, 0.2},
		{8, 8}, {8.2, 8.1}, {8.1, 8.3}, {8.3, 8.2},
	}
	m := NewKMeans(2)
	assign, err := m.Fit(X)
	require.NoError(t, err)
	require.Len(t, assign, 8)

	assert.Equal(t, assign[0], assign[1])
	assert.Equal(t, assign[0], assign[2])
	assert.Equal(t, assign[4], assign[5])
	assert.NotEqual(t, assign[0], assign[4])

	c, err := m.Predict([]float64{0.1, 0.1})
	require.NoError(t, err)
	assert.Equal(t, assign[0], c)
}

func TestKMeansTooFewPoints(t *testing.T) {
	m := NewKMeans(3)
	_, err := m.Fit([][]float64{{1}, {2}})
	assert.Error(t, err)
}

func TestStratifiedSplitPreservesClasses(t *testing.T) {
	y := make([]int, 0, 100)
	for i := 0; i < 80; i++ {
		y = append(y, 0)
	}
	for i := 0; i < 20; i++ {
		y = append(y, 1)
	}

	train, test := StratifiedSplit(y, 0.2, Seed)
	assert.Len(t, train, 80)
	assert.Len(t, test, 20)

	minority := 0
	for _, i := range test {
		if y[i] == 1 {
			minority++
		}
	}
	assert.Equal(t, 4, minority)
}

func TestChronoSplitKeepsOrder(t *testing.T) {
	train, test := ChronoSplit(10, 0.2)
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7}, train)
	assert.Equal(t, []int{8, 9}, test)
}

func TestOrderedFoldsContiguous(t *testing.T) {
	folds := orderedFolds(10, 3)
	require.Len(t, folds, 3)
	assert.Equal(t, []int{0, 1, 2, 3}, folds[0])
	assert.Equal(t, []int{4, 5, 6}, folds[1])
	assert.Equal(t, []int{7, 8, 9}, folds[2])
}

func TestCrossValAccuracySeparable(t *testing.T) {
	X, y := twoBlobs()
	score, err := CrossValAccuracy(func() Classifier {
		f := NewRandomForestClassifier()
		f.NumTrees = 10
		return f
	}, X, y, 5)
	require.NoError(t, err)
	assert.Greater(t, score, 0.95)
}

func TestCrossValMAELinear(t *testing.T) {
	X, y := linearSeries()
	score, err := CrossValMAE(func() Regressor { return NewLinearRegression() }, X, y, 3)
	require.NoError(t, err)
	assert.Less(t, score, 1e-6)
}
