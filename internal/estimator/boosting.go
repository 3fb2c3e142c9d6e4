package estimator

import (
	"math/rand"

	"fjacquet/finance-ml/internal/mlerror"
)

// GradientBoostingRegressor fits shallow regression trees to the residual
// of the running prediction, shrunk by the learning rate.
type GradientBoostingRegressor struct {
	NumTrees     int
	MaxDepth     int
	LearningRate float64
	BaseValue    float64
	Trees        []*TreeNode
	NumInputs    int
}

// NewGradientBoostingRegressor returns an untrained booster with defaults
// matching the spending prediction pipeline.
func NewGradientBoostingRegressor() *GradientBoostingRegressor {
	return &GradientBoostingRegressor{NumTrees: 100, MaxDepth: 3, LearningRate: 0.1}
}

func (g *GradientBoostingRegressor) Name() string { return "gradient_boosting" }

func (g *GradientBoostingRegressor) Fit(X [][]float64, y []float64) error {
	if err := validateXY(X, len(y)); err != nil {
		return err
	}
	g.NumInputs = len(X[0])

	g.BaseValue = 0
	for _, v := range y {
		g.BaseValue += v
	}
	g.BaseValue /= float64(len(y))

	rng := rand.New(rand.NewSource(Seed))
	params := treeParams{
		maxDepth:        g.MaxDepth,
		minSamplesSplit: 2,
		minSamplesLeaf:  1,
	}

	idx := make([]int, len(X))
	for i := range idx {
		idx[i] = i
	}

	pred := make([]float64, len(y))
	for i := range pred {
		pred[i] = g.BaseValue
	}
	residual := make([]float64, len(y))

	g.Trees = make([]*TreeNode, 0, g.NumTrees)
	for t := 0; t < g.NumTrees; t++ {
		for i := range y {
			residual[i] = y[i] - pred[i]
		}
		tree := buildRegressionTree(X, residual, idx, 0, params, rng)
		g.Trees = append(g.Trees, tree)
		for i, row := range X {
			pred[i] += g.LearningRate * tree.descend(row).Value
		}
	}
	return nil
}

func (g *GradientBoostingRegressor) Predict(x []float64) (float64, error) {
	if len(g.Trees) == 0 {
		return 0, &mlerror.NotTrainedError{Component: g.Name()}
	}
	out := g.BaseValue
	for _, tree := range g.Trees {
		out += g.LearningRate * tree.descend(x).Value
	}
	return out, nil
}
