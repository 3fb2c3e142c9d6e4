package estimator

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Accuracy is the fraction of exact label matches.
func Accuracy(yTrue, yPred []int) float64 {
	if len(yTrue) == 0 {
		return 0
	}
	hits := 0
	for i := range yTrue {
		if yTrue[i] == yPred[i] {
			hits++
		}
	}
	return float64(hits) / float64(len(yTrue))
}

// ConfusionMatrix returns counts[actual][predicted] over n classes.
func ConfusionMatrix(yTrue, yPred []int, n int) [][]int {
	counts := make([][]int, n)
	for i := range counts {
		counts[i] = make([]int, n)
	}
	for i := range yTrue {
		if yTrue[i] < n && yPred[i] < n {
			counts[yTrue[i]][yPred[i]]++
		}
	}
	return counts
}

// PrecisionRecallF1 returns support-weighted precision, recall, and F1
// over the classes present in yTrue.
func PrecisionRecallF1(yTrue, yPred []int) (precision, recall, f1 float64) {
	n := numClasses(yTrue)
	if m := numClasses(yPred); m > n {
		n = m
	}
	cm := ConfusionMatrix(yTrue, yPred, n)

	total := float64(len(yTrue))
	if total == 0 {
		return 0, 0, 0
	}
	for c := 0; c < n; c++ {
		tp := float64(cm[c][c])
		var predicted, actual float64
		for k := 0; k < n; k++ {
			predicted += float64(cm[k][c])
			actual += float64(cm[c][k])
		}
		var p, r float64
		if predicted > 0 {
			p = tp / predicted
		}
		if actual > 0 {
			r = tp / actual
		}
		var f float64
		if p+r > 0 {
			f = 2 * p * r / (p + r)
		}
		weight := actual / total
		precision += weight * p
		recall += weight * r
		f1 += weight * f
	}
	return precision, recall, f1
}

// MAE is the mean absolute error.
func MAE(yTrue, yPred []float64) float64 {
	if len(yTrue) == 0 {
		return 0
	}
	sum := 0.0
	for i := range yTrue {
		sum += math.Abs(yTrue[i] - yPred[i])
	}
	return sum / float64(len(yTrue))
}

// MSE is the mean squared error.
func MSE(yTrue, yPred []float64) float64 {
	if len(yTrue) == 0 {
		return 0
	}
	sum := 0.0
	for i := range yTrue {
		d := yTrue[i] - yPred[i]
		sum += d * d
	}
	return sum / float64(len(yTrue))
}

// RMSE is the root mean squared error.
func RMSE(yTrue, yPred []float64) float64 {
	return math.Sqrt(MSE(yTrue, yPred))
}

// R2 is the coefficient of determination. A constant target yields 0
// rather than a division by zero.
func R2(yTrue, yPred []float64) float64 {
	if len(yTrue) == 0 {
		return 0
	}
	mean := stat.Mean(yTrue, nil)
	var ssRes, ssTot float64
	for i := range yTrue {
		d := yTrue[i] - yPred[i]
		ssRes += d * d
		t := yTrue[i] - mean
		ssTot += t * t
	}
	if ssTot == 0 {
		return 0
	}
	return 1 - ssRes/ssTot
}

// MAPE is the mean absolute percentage error over rows with a non-zero
// actual, in percent. All-zero actuals yield 0.
func MAPE(yTrue, yPred []float64) float64 {
	sum, n := 0.0, 0
	for i := range yTrue {
		if yTrue[i] == 0 {
			continue
		}
		sum += math.Abs((yTrue[i] - yPred[i]) / yTrue[i])
		n++
	}
	if n == 0 {
		return 0
	}
	return 100 * sum / float64(n)
}

// Silhouette is the mean silhouette coefficient of a clustering. Points
// in singleton clusters score 0.
func Silhouette(X [][]float64, assign []int) float64 {
	n := len(X)
	if n < 2 {
		return 0
	}
	k := 0
	for _, c := range assign {
		if c+1 > k {
			k = c + 1
		}
	}
	if k < 2 {
		return 0
	}

	counts := make([]int, k)
	for _, c := range assign {
		counts[c]++
	}

	total := 0.0
	meanDist := make([]float64, k)
	for i := range X {
		for c := range meanDist {
			meanDist[c] = 0
		}
		for j := range X {
			if i == j {
				continue
			}
			meanDist[assign[j]] += math.Sqrt(sqDist(X[i], X[j]))
		}

		own := assign[i]
		if counts[own] < 2 {
			continue
		}
		a := meanDist[own] / float64(counts[own]-1)

		b := math.Inf(1)
		for c := 0; c < k; c++ {
			if c == own || counts[c] == 0 {
				continue
			}
			if d := meanDist[c] / float64(counts[c]); d < b {
				b = d
			}
		}

		if denom := math.Max(a, b); denom > 0 {
			total += (b - a) / denom
		}
	}
	return total / float64(n)
}
