package estimator

import (
	"math/rand"
	"sort"
)

// TreeNode is one node of a fitted decision tree. Fields are exported so
// trees survive gob encoding inside the artifact store.
type TreeNode struct {
	Leaf      bool
	Feature   int
	Threshold float64
	Left      *TreeNode
	Right     *TreeNode
	Probs     []float64 // class distribution at a classification leaf
	Value     float64   // mean target at a regression leaf
}

type treeParams struct {
	maxDepth        int
	minSamplesSplit int
	minSamplesLeaf  int
	maxFeatures     int // 0 means use all features
}

// candidateFeatures picks the feature subset examined at one split.
func candidateFeatures(nFeatures int, p treeParams, rng *rand.Rand) []int {
	if p.maxFeatures <= 0 || p.maxFeatures >= nFeatures {
		feats := make([]int, nFeatures)
		for i := range feats {
			feats[i] = i
		}
		return feats
	}
	return rng.Perm(nFeatures)[:p.maxFeatures]
}

func classDistribution(y []int, idx []int, nClasses int) []float64 {
	probs := make([]float64, nClasses)
	for _, i := range idx {
		probs[y[i]]++
	}
	for c := range probs {
		probs[c] /= float64(len(idx))
	}
	return probs
}

func giniFromCounts(counts []int, total int) float64 {
	if total == 0 {
		return 0
	}
	g := 1.0
	for _, c := range counts {
		p := float64(c) / float64(total)
		g -= p * p
	}
	return g
}

// buildClassificationTree grows a CART tree minimizing gini impurity.
func buildClassificationTree(X [][]float64, y []int, idx []int, nClasses, depth int, p treeParams, rng *rand.Rand) *TreeNode {
	pure := true
	for _, i := range idx[1:] {
		if y[i] != y[idx[0]] {
			pure = false
			break
		}
	}
	if pure || depth >= p.maxDepth || len(idx) < p.minSamplesSplit {
		return &TreeNode{Leaf: true, Probs: classDistribution(y, idx, nClasses)}
	}

	bestFeature, bestThreshold, bestScore := -1, 0.0, 0.0
	parentGini := func() float64 {
		counts := make([]int, nClasses)
		for _, i := range idx {
			counts[y[i]]++
		}
		return giniFromCounts(counts, len(idx))
	}()

	sorted := make([]int, len(idx))
	for _, f := range candidateFeatures(len(X[0]), p, rng) {
		copy(sorted, idx)
		sort.Slice(sorted, func(a, b int) bool { return X[sorted[a]][f] < X[sorted[b]][f] })

		leftCounts := make([]int, nClasses)
		rightCounts := make([]int, nClasses)
		for _, i := range sorted {
			rightCounts[y[i]]++
		}

		for pos := 1; pos < len(sorted); pos++ {
			moved := sorted[pos-1]
			leftCounts[y[moved]]++
			rightCounts[y[moved]]--

			if X[sorted[pos]][f] == X[sorted[pos-1]][f] {
				continue
			}
			if pos < p.minSamplesLeaf || len(sorted)-pos < p.minSamplesLeaf {
				continue
			}

			nl, nr := pos, len(sorted)-pos
			weighted := (float64(nl)*giniFromCounts(leftCounts, nl) +
				float64(nr)*giniFromCounts(rightCounts, nr)) / float64(len(sorted))
			gain := parentGini - weighted
			if gain > bestScore {
				bestScore = gain
				bestFeature = f
				bestThreshold = (X[sorted[pos]][f] + X[sorted[pos-1]][f]) / 2
			}
		}
	}

	if bestFeature < 0 {
		return &TreeNode{Leaf: true, Probs: classDistribution(y, idx, nClasses)}
	}

	var leftIdx, rightIdx []int
	for _, i := range idx {
		if X[i][bestFeature] <= bestThreshold {
			leftIdx = append(leftIdx, i)
		} else {
			rightIdx = append(rightIdx, i)
		}
	}

	return &TreeNode{
		Feature:   bestFeature,
		Threshold: bestThreshold,
		Left:      buildClassificationTree(X, y, leftIdx, nClasses, depth+1, p, rng),
		Right:     buildClassificationTree(X, y, rightIdx, nClasses, depth+1, p, rng),
	}
}

// buildRegressionTree grows a CART tree minimizing within-node variance.
func buildRegressionTree(X [][]float64, y []float64, idx []int, depth int, p treeParams, rng *rand.Rand) *TreeNode {
	mean := 0.0
	for _, i := range idx {
		mean += y[i]
	}
	mean /= float64(len(idx))

	if depth >= p.maxDepth || len(idx) < p.minSamplesSplit {
		return &TreeNode{Leaf: true, Value: mean}
	}

	sse := func(sum, sumSq float64, n int) float64 {
		if n == 0 {
			return 0
		}
		return sumSq - sum*sum/float64(n)
	}

	totalSum, totalSumSq := 0.0, 0.0
	for _, i := range idx {
		totalSum += y[i]
		totalSumSq += y[i] * y[i]
	}
	parentSSE := sse(totalSum, totalSumSq, len(idx))

	bestFeature, bestThreshold, bestGain := -1, 0.0, 0.0
	sorted := make([]int, len(idx))
	for _, f := range candidateFeatures(len(X[0]), p, rng) {
		copy(sorted, idx)
		sort.Slice(sorted, func(a, b int) bool { return X[sorted[a]][f] < X[sorted[b]][f] })

		leftSum, leftSumSq := 0.0, 0.0
		for pos := 1; pos < len(sorted); pos++ {
			v := y[sorted[pos-1]]
			leftSum += v
			leftSumSq += v * v

			if X[sorted[pos]][f] == X[sorted[pos-1]][f] {
				continue
			}
			if pos < p.minSamplesLeaf || len(sorted)-pos < p.minSamplesLeaf {
				continue
			}

			gain := parentSSE - sse(leftSum, leftSumSq, pos) -
				sse(totalSum-leftSum, totalSumSq-leftSumSq, len(sorted)-pos)
			if gain > bestGain {
				bestGain = gain
				bestFeature = f
				bestThreshold = (X[sorted[pos]][f] + X[sorted[pos-1]][f]) / 2
			}
		}
	}

	if bestFeature < 0 {
		return &TreeNode{Leaf: true, Value: mean}
	}

	var leftIdx, rightIdx []int
	for _, i := range idx {
		if X[i][bestFeature] <= bestThreshold {
			leftIdx = append(leftIdx, i)
		} else {
			rightIdx = append(rightIdx, i)
		}
	}

	return &TreeNode{
		Feature:   bestFeature,
		Threshold: bestThreshold,
		Left:      buildRegressionTree(X, y, leftIdx, depth+1, p, rng),
		Right:     buildRegressionTree(X, y, rightIdx, depth+1, p, rng),
	}
}

func (n *TreeNode) descend(x []float64) *TreeNode {
	node := n
	for !node.Leaf {
		if x[node.Feature] <= node.Threshold {
			node = node.Left
		} else {
			node = node.Right
		}
	}
	return node
}
