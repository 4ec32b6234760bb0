package optimization

import (
	"time"

	"gonum.org/v1/gonum/mat"
)

// Constants for the optimizer and sampler
const (
	DefaultRiskFreeRate = 0.02 // Same period convention as the returns
	DefaultSampleCount  = 100

	MinAssets             = 2
	MinAlignedRows        = 3
	MinObservationsPerSet = 3 // Series with fewer observations are skipped

	RidgeEpsilon       = 1e-6 // Added to the diagonal when Σ is not positive definite
	ZeroCovarianceTol  = 1e-8 // |cov| below this everywhere means a degenerate risk model
	VolatilityEpsilon  = 1e-9 // Below this the Sharpe objective is not evaluated
	VolatilityPenalty  = 1e10 // Objective value returned for near-zero volatility
	WeightSumTolerance = 1e-6
)

// Observation is one daily return of an asset.
type Observation struct {
	Date   string  `json:"date" msgpack:"date"`
	Return float64 `json:"return" msgpack:"return"`
}

// AssetSeries holds the daily returns and summary statistics of one asset.
// Produced by the market-data layer; the optimizer never mutates it.
type AssetSeries struct {
	Symbol               string        `json:"symbol" msgpack:"symbol"`
	Observations         []Observation `json:"observations" msgpack:"observations"`
	MeanReturn           float64       `json:"mean_return" msgpack:"mean_return"`
	AnnualizedVolatility float64       `json:"volatility" msgpack:"volatility"`
	LastPrice            float64       `json:"last_price" msgpack:"last_price"`
}

// Dates returns the observation dates in series order.
func (s AssetSeries) Dates() []string {
	dates := make([]string, len(s.Observations))
	for i, o := range s.Observations {
		dates[i] = o.Date
	}
	return dates
}

// Returns returns the observation values in series order.
func (s AssetSeries) Returns() []float64 {
	returns := make([]float64, len(s.Observations))
	for i, o := range s.Observations {
		returns[i] = o.Return
	}
	return returns
}

// ReturnMatrix is the date-aligned return table: one row per common date
// (strictly increasing), one column per asset in input order.
type ReturnMatrix struct {
	Dates   []time.Time
	Symbols []string
	Data    *mat.Dense
}

// Dims returns the number of rows (dates) and columns (assets).
func (m *ReturnMatrix) Dims() (int, int) {
	return m.Data.Dims()
}

// PortfolioWeights maps asset symbol to its weight.
type PortfolioWeights map[string]float64

// Metrics are the risk/return figures of one portfolio.
type Metrics struct {
	ExpectedReturn float64 `json:"expected_return"`
	Volatility     float64 `json:"volatility"`
	SharpeRatio    float64 `json:"sharpe_ratio"`
}

// OptimizationResult is the outcome of the Sharpe solver. When the solver
// does not converge Success is false, every weight and metric is zero and
// Message explains why.
type OptimizationResult struct {
	Symbols []string         `json:"-"`
	Weights PortfolioWeights `json:"weights"`
	Metrics Metrics          `json:"metrics"`
	Success bool             `json:"success"`
	Message string           `json:"message,omitempty"`
}

// FrontierPoint is one sampled portfolio.
type FrontierPoint struct {
	Weights        PortfolioWeights `json:"weights"`
	ExpectedReturn float64          `json:"return"`
	Volatility     float64          `json:"volatility"`
}

// FrontierResult holds every sampled portfolio in draw order together with
// the minimum-volatility sample.
type FrontierResult struct {
	Points          []FrontierPoint `json:"-"`
	Returns         []float64       `json:"returns"`
	Volatilities    []float64       `json:"volatilities"`
	MinVolPortfolio FrontierPoint   `json:"min_vol_portfolio"`
}

// Analysis bundles both optimizer outputs for one request.
type Analysis struct {
	Optimal  *OptimizationResult `json:"optimal_portfolio"`
	Frontier *FrontierResult     `json:"efficient_frontier"`
	Symbols  []string            `json:"symbols"`
	Rows     int                 `json:"observations"`
}
