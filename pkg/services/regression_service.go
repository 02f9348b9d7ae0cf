package services

import (
	"errors"
	"fmt"
	"math"

	"houseprice-api/pkg/models"

	"gonum.org/v1/gonum/mat"
)

// machineEpsilon is the float64 unit roundoff used for rank detection.
const machineEpsilon = 2.220446049250313e-16

// LinearModel is a fitted ordinary-least-squares model. Coefficients are
// positional: coefficient i applies to feature schema column i.
type LinearModel struct {
	Coefficients []float64
	Intercept    float64
}

// PredictRow applies the model to one schema-shaped feature vector.
func (m *LinearModel) PredictRow(x []float64) (float64, error) {
	if len(x) != len(m.Coefficients) {
		return 0, fmt.Errorf("%w: feature vector has %d values, model expects %d", ErrSchemaMismatch, len(x), len(m.Coefficients))
	}
	return dot(m.Coefficients, x) + m.Intercept, nil
}

// Predict applies the model to every row of X.
func (m *LinearModel) Predict(X [][]float64) ([]float64, error) {
	out := make([]float64, len(X))
	for i, row := range X {
		v, err := m.PredictRow(row)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// RegressionService fits and evaluates linear price models.
type RegressionService struct{}

// NewRegressionService 新しい回帰サービスを作成
func NewRegressionService() *RegressionService {
	return &RegressionService{}
}

// Fit finds the coefficients minimising the squared residuals of y ~ X + intercept.
// X and y are centred and the minimum-norm least-squares solution is taken from
// an SVD, so collinear or constant columns still produce a deterministic fit.
func (s *RegressionService) Fit(X [][]float64, y []float64) (*LinearModel, error) {
	n := len(X)
	if n == 0 {
		return nil, fmt.Errorf("%w: no training rows", ErrEmptyDataset)
	}
	if len(y) != n {
		return nil, fmt.Errorf("training data mismatch: %d rows but %d targets", n, len(y))
	}
	k := len(X[0])
	for i, row := range X {
		if len(row) != k {
			return nil, fmt.Errorf("%w: row %d has %d features, expected %d", ErrSchemaMismatch, i, len(row), k)
		}
	}
	for i, v := range y {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("target %d is not finite", i)
		}
	}

	yMean := calculateMean(y)
	if k == 0 {
		return &LinearModel{Coefficients: []float64{}, Intercept: yMean}, nil
	}

	xMean := make([]float64, k)
	for j := 0; j < k; j++ {
		col := make([]float64, n)
		for i := 0; i < n; i++ {
			col[i] = X[i][j]
		}
		xMean[j] = calculateMean(col)
	}

	a := mat.NewDense(n, k, nil)
	b := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < k; j++ {
			a.Set(i, j, X[i][j]-xMean[j])
		}
		b.SetVec(i, y[i]-yMean)
	}

	coef := make([]float64, k)
	var svd mat.SVD
	if !svd.Factorize(a, mat.SVDThin) {
		return nil, errors.New("least squares: SVD factorization failed")
	}
	rank := svd.Rank(machineEpsilon * float64(max(n, k)))
	if rank > 0 {
		var beta mat.VecDense
		svd.SolveVecTo(&beta, b, rank)
		for j := 0; j < k; j++ {
			coef[j] = beta.AtVec(j)
		}
	}

	intercept := yMean - dot(coef, xMean)
	for _, c := range append(coef, intercept) {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return nil, errors.New("least squares: solution is not finite")
		}
	}
	return &LinearModel{Coefficients: coef, Intercept: intercept}, nil
}

// Evaluate scores the model on a held-out partition. It returns nil metrics
// when the partition is empty.
func (s *RegressionService) Evaluate(m *LinearModel, X [][]float64, y []float64) (*models.EvaluationMetrics, error) {
	if len(X) == 0 {
		return nil, nil
	}
	if len(y) != len(X) {
		return nil, fmt.Errorf("evaluation data mismatch: %d rows but %d targets", len(X), len(y))
	}
	pred, err := m.Predict(X)
	if err != nil {
		return nil, err
	}
	return &models.EvaluationMetrics{
		Rows:     len(y),
		MAE:      meanAbsoluteError(y, pred),
		RMSE:     rootMeanSquaredError(y, pred),
		RSquared: rSquared(y, pred),
	}, nil
}
