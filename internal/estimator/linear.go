package estimator

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"fjacquet/finance-ml/internal/mlerror"
)

// LinearRegression is an ordinary least squares regressor solved through
// the normal equations.
type LinearRegression struct {
	Coef      []float64
	Intercept float64
	NumInputs int
}

// NewLinearRegression returns an untrained OLS regressor.
func NewLinearRegression() *LinearRegression {
	return &LinearRegression{}
}

func (l *LinearRegression) Name() string { return "linear_regression" }

func (l *LinearRegression) Fit(X [][]float64, y []float64) error {
	coef, intercept, err := solveLeastSquares(X, y, 0)
	if err != nil {
		return err
	}
	l.Coef, l.Intercept, l.NumInputs = coef, intercept, len(X[0])
	return nil
}

func (l *LinearRegression) Predict(x []float64) (float64, error) {
	if l.Coef == nil {
		return 0, &mlerror.NotTrainedError{Component: l.Name()}
	}
	if len(x) != l.NumInputs {
		return 0, &mlerror.DataValidationError{
			Errors: []string{"feature vector width does not match trained model"},
		}
	}
	return floats.Dot(l.Coef, x) + l.Intercept, nil
}

// RidgeRegression is least squares with an L2 penalty on the coefficients.
// The intercept is not penalized.
type RidgeRegression struct {
	Alpha     float64
	Coef      []float64
	Intercept float64
	NumInputs int
}

// NewRidgeRegression returns an untrained ridge regressor with the
// standard penalty.
func NewRidgeRegression() *RidgeRegression {
	return &RidgeRegression{Alpha: 1.0}
}

func (r *RidgeRegression) Name() string { return "ridge" }

func (r *RidgeRegression) Fit(X [][]float64, y []float64) error {
	coef, intercept, err := solveLeastSquares(X, y, r.Alpha)
	if err != nil {
		return err
	}
	r.Coef, r.Intercept, r.NumInputs = coef, intercept, len(X[0])
	return nil
}

func (r *RidgeRegression) Predict(x []float64) (float64, error) {
	if r.Coef == nil {
		return 0, &mlerror.NotTrainedError{Component: r.Name()}
	}
	if len(x) != r.NumInputs {
		return 0, &mlerror.DataValidationError{
			Errors: []string{"feature vector width does not match trained model"},
		}
	}
	return floats.Dot(r.Coef, x) + r.Intercept, nil
}

// solveLeastSquares solves (A'A + alpha*I) beta = A'y where A carries a
// leading intercept column that is never penalized.
func solveLeastSquares(X [][]float64, y []float64, alpha float64) ([]float64, float64, error) {
	if err := validateXY(X, len(y)); err != nil {
		return nil, 0, err
	}
	n, d := len(X), len(X[0])

	a := mat.NewDense(n, d+1, nil)
	for i, row := range X {
		a.Set(i, 0, 1)
		for j, v := range row {
			a.Set(i, j+1, v)
		}
	}
	yv := mat.NewVecDense(n, y)

	var ata mat.Dense
	ata.Mul(a.T(), a)
	if alpha > 0 {
		for j := 1; j <= d; j++ {
			ata.Set(j, j, ata.At(j, j)+alpha)
		}
	}

	var aty mat.VecDense
	aty.MulVec(a.T(), yv)

	var beta mat.VecDense
	if err := beta.SolveVec(&ata, &aty); err != nil {
		return nil, 0, &mlerror.DataValidationError{
			Errors: []string{"singular design matrix, cannot fit linear model"},
		}
	}

	coef := make([]float64, d)
	for j := 0; j < d; j++ {
		coef[j] = beta.AtVec(j + 1)
	}
	return coef, beta.AtVec(0), nil
}
