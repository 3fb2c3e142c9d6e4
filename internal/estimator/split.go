package estimator

import (
	"math/rand"
)

// StratifiedSplit shuffles and partitions row indices into train and test
// sets of roughly (1-testFrac)/testFrac size while preserving the class
// mix of y in both halves.
func StratifiedSplit(y []int, testFrac float64, seed int64) (train, test []int) {
	rng := rand.New(rand.NewSource(seed))

	byClass := make(map[int][]int)
	order := make([]int, 0)
	for i, label := range y {
		if _, seen := byClass[label]; !seen {
			order = append(order, label)
		}
		byClass[label] = append(byClass[label], i)
	}

	for _, label := range order {
		idx := byClass[label]
		rng.Shuffle(len(idx), func(a, b int) { idx[a], idx[b] = idx[b], idx[a] })
		cut := int(float64(len(idx)) * testFrac)
		if cut == 0 && len(idx) > 1 {
			cut = 1
		}
		test = append(test, idx[:cut]...)
		train = append(train, idx[cut:]...)
	}

	rng.Shuffle(len(train), func(a, b int) { train[a], train[b] = train[b], train[a] })
	rng.Shuffle(len(test), func(a, b int) { test[a], test[b] = test[b], test[a] })
	return train, test
}

// ChronoSplit partitions n already time-ordered rows into a leading train
// block and trailing test block. No shuffling.
func ChronoSplit(n int, testFrac float64) (train, test []int) {
	cut := n - int(float64(n)*testFrac)
	if cut >= n {
		cut = n - 1
	}
	if cut < 1 {
		cut = 1
	}
	for i := 0; i < cut; i++ {
		train = append(train, i)
	}
	for i := cut; i < n; i++ {
		test = append(test, i)
	}
	return train, test
}

// stratifiedFolds deals each class's shuffled indices round-robin across
// k folds so every fold keeps the class mix.
func stratifiedFolds(y []int, k int, seed int64) [][]int {
	rng := rand.New(rand.NewSource(seed))

	byClass := make(map[int][]int)
	order := make([]int, 0)
	for i, label := range y {
		if _, seen := byClass[label]; !seen {
			order = append(order, label)
		}
		byClass[label] = append(byClass[label], i)
	}

	folds := make([][]int, k)
	for _, label := range order {
		idx := byClass[label]
		rng.Shuffle(len(idx), func(a, b int) { idx[a], idx[b] = idx[b], idx[a] })
		for pos, i := range idx {
			f := pos % k
			folds[f] = append(folds[f], i)
		}
	}
	return folds
}

// orderedFolds slices n time-ordered rows into k contiguous folds,
// preserving order within and across folds.
func orderedFolds(n, k int) [][]int {
	folds := make([][]int, k)
	base, extra := n/k, n%k
	pos := 0
	for f := 0; f < k; f++ {
		size := base
		if f < extra {
			size++
		}
		for i := 0; i < size; i++ {
			folds[f] = append(folds[f], pos)
			pos++
		}
	}
	return folds
}

// CrossValAccuracy runs stratified k-fold cross-validation for a
// classifier factory and returns the mean held-out accuracy.
func CrossValAccuracy(factory func() Classifier, X [][]float64, y []int, k int) (float64, error) {
	folds := stratifiedFolds(y, k, Seed)
	return crossVal(folds, func(trainIdx, testIdx []int) (float64, error) {
		trainX, trainY := gatherInt(X, y, trainIdx)
		c := factory()
		if err := c.Fit(trainX, trainY); err != nil {
			return 0, err
		}
		yTrue := make([]int, 0, len(testIdx))
		yPred := make([]int, 0, len(testIdx))
		for _, i := range testIdx {
			label, _, err := PredictClass(c, X[i])
			if err != nil {
				return 0, err
			}
			yTrue = append(yTrue, y[i])
			yPred = append(yPred, label)
		}
		return Accuracy(yTrue, yPred), nil
	})
}

// CrossValMAE runs k-fold cross-validation over contiguous time-ordered
// folds for a regressor factory and returns the mean held-out MAE.
func CrossValMAE(factory func() Regressor, X [][]float64, y []float64, k int) (float64, error) {
	folds := orderedFolds(len(y), k)
	return crossVal(folds, func(trainIdx, testIdx []int) (float64, error) {
		trainX, trainY := gatherFloat(X, y, trainIdx)
		r := factory()
		if err := r.Fit(trainX, trainY); err != nil {
			return 0, err
		}
		yTrue := make([]float64, 0, len(testIdx))
		yPred := make([]float64, 0, len(testIdx))
		for _, i := range testIdx {
			v, err := r.Predict(X[i])
			if err != nil {
				return 0, err
			}
			yTrue = append(yTrue, y[i])
			yPred = append(yPred, v)
		}
		return MAE(yTrue, yPred), nil
	})
}

func crossVal(folds [][]int, score func(trainIdx, testIdx []int) (float64, error)) (float64, error) {
	sum, n := 0.0, 0
	for f := range folds {
		if len(folds[f]) == 0 {
			continue
		}
		var trainIdx []int
		for g := range folds {
			if g != f {
				trainIdx = append(trainIdx, folds[g]...)
			}
		}
		if len(trainIdx) == 0 {
			continue
		}
		s, err := score(trainIdx, folds[f])
		if err != nil {
			return 0, err
		}
		sum += s
		n++
	}
	if n == 0 {
		return 0, nil
	}
	return sum / float64(n), nil
}

func gatherInt(X [][]float64, y []int, idx []int) ([][]float64, []int) {
	outX := make([][]float64, len(idx))
	outY := make([]int, len(idx))
	for pos, i := range idx {
		outX[pos] = X[i]
		outY[pos] = y[i]
	}
	return outX, outY
}

func gatherFloat(X [][]float64, y []float64, idx []int) ([][]float64, []float64) {
	outX := make([][]float64, len(idx))
	outY := make([]float64, len(idx))
	for pos, i := range idx {
		outX[pos] = X[i]
		outY[pos] = y[i]
	}
	return outX, outY
}
