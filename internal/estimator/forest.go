package estimator

import (
	"math"
	"math/rand"

	"fjacquet/finance-ml/internal/mlerror"
)

// RandomForestClassifier is a bagged ensemble of gini-split trees with
// per-split feature subsampling. Leaf class distributions are averaged
// across trees to form the posterior.
type RandomForestClassifier struct {
	NumTrees  int
	MaxDepth  int
	Trees     []*TreeNode
	NumClass  int
	NumInputs int
}

// NewRandomForestClassifier returns an untrained forest with defaults
// matching the categorization pipeline.
func NewRandomForestClassifier() *RandomForestClassifier {
	return &RandomForestClassifier{NumTrees: 100, MaxDepth: 12}
}

func (f *RandomForestClassifier) Name() string { return "random_forest" }

func (f *RandomForestClassifier) Fit(X [][]float64, y []int) error {
	if err := validateXY(X, len(y)); err != nil {
		return err
	}
	f.NumClass = numClasses(y)
	f.NumInputs = len(X[0])

	rng := rand.New(rand.NewSource(Seed))
	params := treeParams{
		maxDepth:        f.MaxDepth,
		minSamplesSplit: 2,
		minSamplesLeaf:  1,
		maxFeatures:     int(math.Ceil(math.Sqrt(float64(f.NumInputs)))),
	}

	f.Trees = make([]*TreeNode, f.NumTrees)
	for t := 0; t < f.NumTrees; t++ {
		idx := make([]int, len(X))
		for i := range idx {
			idx[i] = rng.Intn(len(X))
		}
		f.Trees[t] = buildClassificationTree(X, y, idx, f.NumClass, 0, params, rng)
	}
	return nil
}

func (f *RandomForestClassifier) PredictProba(x []float64) ([]float64, error) {
	if len(f.Trees) == 0 {
		return nil, &mlerror.NotTrainedError{Component: f.Name()}
	}
	probs := make([]float64, f.NumClass)
	for _, tree := range f.Trees {
		leaf := tree.descend(x)
		for c, p := range leaf.Probs {
			probs[c] += p
		}
	}
	for c := range probs {
		probs[c] /= float64(len(f.Trees))
	}
	return probs, nil
}

// FeatureImportances returns the mean decrease in node frequency per
// feature, normalized to sum to one. Split counts stand in for impurity
// decrease; the ranking is what callers consume.
func (f *RandomForestClassifier) FeatureImportances() []float64 {
	counts := make([]float64, f.NumInputs)
	var walk func(n *TreeNode)
	walk = func(n *TreeNode) {
		if n == nil || n.Leaf {
			return
		}
		counts[n.Feature]++
		walk(n.Left)
		walk(n.Right)
	}
	total := 0.0
	for _, tree := range f.Trees {
		walk(tree)
	}
	for _, c := range counts {
		total += c
	}
	if total > 0 {
		for i := range counts {
			counts[i] /= total
		}
	}
	return counts
}

// RandomForestRegressor is the regression counterpart, averaging leaf
// means across variance-split trees.
type RandomForestRegressor struct {
	NumTrees  int
	MaxDepth  int
	Trees     []*TreeNode
	NumInputs int
}

// NewRandomForestRegressor returns an untrained forest with defaults
// matching the spending prediction pipeline.
func NewRandomForestRegressor() *RandomForestRegressor {
	return &RandomForestRegressor{NumTrees: 100, MaxDepth: 12}
}

func (f *RandomForestRegressor) Name() string { return "random_forest" }

func (f *RandomForestRegressor) Fit(X [][]float64, y []float64) error {
	if err := validateXY(X, len(y)); err != nil {
		return err
	}
	f.NumInputs = len(X[0])

	rng := rand.New(rand.NewSource(Seed))
	params := treeParams{
		maxDepth:        f.MaxDepth,
		minSamplesSplit: 2,
		minSamplesLeaf:  1,
		maxFeatures:     maxInt(1, f.NumInputs/3),
	}

	f.Trees = make([]*TreeNode, f.NumTrees)
	for t := 0; t < f.NumTrees; t++ {
		idx := make([]int, len(X))
		for i := range idx {
			idx[i] = rng.Intn(len(X))
		}
		f.Trees[t] = buildRegressionTree(X, y, idx, 0, params, rng)
	}
	return nil
}

func (f *RandomForestRegressor) Predict(x []float64) (float64, error) {
	if len(f.Trees) == 0 {
		return 0, &mlerror.NotTrainedError{Component: f.Name()}
	}
	sum := 0.0
	for _, tree := range f.Trees {
		sum += tree.descend(x).Value
	}
	return sum / float64(len(f.Trees)), nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
