package optimization

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// RiskModel is the mean vector and covariance matrix of an aligned return
// matrix, in column order.
type RiskModel struct {
	Symbols    []string
	Mean       []float64
	Covariance *mat.SymDense

	// Regularized is true when the ridge term was added to the diagonal.
	Regularized bool
}

// N returns the number of assets.
func (rm *RiskModel) N() int {
	return len(rm.Mean)
}

// RiskModelBuilder estimates risk models from aligned returns.
type RiskModelBuilder struct {
	log zerolog.Logger
}

// NewRiskModelBuilder creates a new risk model builder.
func NewRiskModelBuilder(log zerolog.Logger) *RiskModelBuilder {
	return &RiskModelBuilder{
		log: log.With().Str("component", "risk_model").Logger(),
	}
}

// Build computes column means and the unbiased sample covariance (divide by
// R-1). A covariance that is zero everywhere fails with
// ErrDegenerateCovariance. A matrix that is not positive definite gets
// RidgeEpsilon added to its diagonal once.
func (rb *RiskModelBuilder) Build(rm *ReturnMatrix) (*RiskModel, error) {
	if rm == nil || rm.Data == nil {
		return nil, fmt.Errorf("%w: no return matrix", ErrInsufficientData)
	}
	rows, cols := rm.Dims()
	if cols < MinAssets || rows < MinAlignedRows {
		return nil, fmt.Errorf("%w: return matrix is %dx%d", ErrInsufficientData, rows, cols)
	}

	mean := make([]float64, cols)
	column := make([]float64, rows)
	for j := 0; j < cols; j++ {
		mat.Col(column, j, rm.Data)
		mean[j] = stat.Mean(column, nil)
	}

	cov := mat.NewSymDense(cols, nil)
	stat.CovarianceMatrix(cov, rm.Data, nil)

	if isZeroMatrix(cov) {
		return nil, fmt.Errorf("%w: every return series is constant", ErrDegenerateCovariance)
	}

	regularized, err := ensurePositiveDefinite(cov)
	if err != nil {
		return nil, err
	}
	if regularized {
		rb.log.Warn().
			Int("assets", cols).
			Float64("ridge", RidgeEpsilon).
			Msg("Covariance not positive definite, added ridge to diagonal")
	}

	return &RiskModel{
		Symbols:     rm.Symbols,
		Mean:        mean,
		Covariance:  cov,
		Regularized: regularized,
	}, nil
}

// isZeroMatrix reports whether every entry is within ZeroCovarianceTol of 0.
func isZeroMatrix(m *mat.SymDense) bool {
	n := m.SymmetricDim()
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			if math.Abs(m.At(i, j)) > ZeroCovarianceTol {
				return false
			}
		}
	}
	return true
}

// ensurePositiveDefinite adds RidgeEpsilon*I to m in place when its smallest
// eigenvalue is not strictly positive.
func ensurePositiveDefinite(m *mat.SymDense) (bool, error) {
	var eig mat.EigenSym
	if ok := eig.Factorize(m, false); !ok {
		return false, fmt.Errorf("%w: eigen decomposition of covariance failed", ErrInternal)
	}

	// Values are returned in ascending order
	values := eig.Values(nil)
	if len(values) > 0 && values[0] > 0 {
		return false, nil
	}

	n := m.SymmetricDim()
	for i := 0; i < n; i++ {
		m.SetSym(i, i, m.At(i, i)+RidgeEpsilon)
	}
	return true, nil
}
