package optimization

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
)

// Solver settings
const (
	solverGradientThreshold = 1e-9
	solverMajorIterations   = 1000
)

// acceptedStatuses are the optimize statuses treated as convergence.
var acceptedStatuses = map[optimize.Status]bool{
	optimize.Success:             true,
	optimize.GradientThreshold:   true,
	optimize.FunctionConvergence: true,
	optimize.MethodConverge:      true,
}

// SharpeOptimizer finds the long-only, fully-invested portfolio with the
// highest Sharpe ratio.
//
// Weights are parametrized as w = softmax(z), which keeps every iterate on
// the simplex (w_i in [0,1], Σw = 1) so the problem becomes unconstrained in z.
// The starting point z = 0 is the equal-weight portfolio.
type SharpeOptimizer struct {
	log zerolog.Logger
}

// NewSharpeOptimizer creates a new Sharpe optimizer.
func NewSharpeOptimizer(log zerolog.Logger) *SharpeOptimizer {
	return &SharpeOptimizer{
		log: log.With().Str("component", "sharpe_optimizer").Logger(),
	}
}

// Optimize maximizes (wᵀμ - rf) / sqrt(wᵀΣw). Non-convergence is not an
// error: the result comes back with Success false, zero weights and metrics,
// and a message describing the failure.
func (so *SharpeOptimizer) Optimize(model *RiskModel, riskFreeRate float64) *OptimizationResult {
	n := model.N()
	mu := model.Mean
	sigma := model.Covariance

	problem := optimize.Problem{
		Func: func(z []float64) float64 {
			w := softmax(z)
			ret, vol := portfolioStats(w, mu, sigma)
			if vol < VolatilityEpsilon {
				return VolatilityPenalty
			}
			return -(ret - riskFreeRate) / vol
		},
		Grad: func(grad, z []float64) {
			w := softmax(z)
			ret, vol := portfolioStats(w, mu, sigma)
			if vol < VolatilityEpsilon {
				for i := range grad {
					grad[i] = 0
				}
				return
			}

			// Gradient with respect to w:
			// g_i = -μ_i/σ + (wᵀμ - rf)(Σw)_i/σ³
			sw := mat.NewVecDense(n, nil)
			sw.MulVec(sigma, mat.NewVecDense(n, w))
			excess := ret - riskFreeRate
			vol3 := vol * vol * vol
			g := make([]float64, n)
			for i := 0; i < n; i++ {
				g[i] = -mu[i]/vol + excess*sw.AtVec(i)/vol3
			}

			// Chain rule through softmax: ∂f/∂z_k = w_k (g_k - Σ_j w_j g_j)
			wg := floats.Dot(w, g)
			for k := 0; k < n; k++ {
				grad[k] = w[k] * (g[k] - wg)
			}
		},
	}

	initial := make([]float64, n)
	settings := &optimize.Settings{
		GradientThreshold: solverGradientThreshold,
		MajorIterations:   solverMajorIterations,
	}

	result, err := optimize.Minimize(problem, initial, settings, &optimize.BFGS{})
	if err != nil || !acceptedStatuses[result.Status] {
		so.log.Debug().
			Err(err).
			Str("status", statusString(result)).
			Msg("BFGS did not converge, falling back to Nelder-Mead")
		result, err = optimize.Minimize(problem, initial, settings, &optimize.NelderMead{})
	}

	if err != nil || !acceptedStatuses[result.Status] {
		reason := statusString(result)
		if err != nil {
			reason = err.Error()
		}
		so.log.Warn().
			Str("reason", reason).
			Int("assets", n).
			Msg("Sharpe optimization did not converge")
		return failedResult(model.Symbols, fmt.Sprintf("Optimization failed: %s", reason))
	}

	weights := cleanWeights(softmax(result.X))
	ret, vol := portfolioStats(weights, mu, sigma)
	sharpe := 0.0
	if vol != 0 {
		sharpe = (ret - riskFreeRate) / vol
	}

	so.log.Debug().
		Str("status", result.Status.String()).
		Int("evaluations", result.Stats.FuncEvaluations).
		Float64("sharpe", sharpe).
		Msg("Sharpe optimization converged")

	return &OptimizationResult{
		Symbols: model.Symbols,
		Weights: weightsBySymbol(model.Symbols, weights),
		Metrics: Metrics{
			ExpectedReturn: ret,
			Volatility:     vol,
			SharpeRatio:    sharpe,
		},
		Success: true,
	}
}

func statusString(result *optimize.Result) string {
	if result == nil {
		return "no result"
	}
	return result.Status.String()
}

// failedResult is the well-formed result reported when the solver fails.
func failedResult(symbols []string, message string) *OptimizationResult {
	return &OptimizationResult{
		Symbols: symbols,
		Weights: weightsBySymbol(symbols, make([]float64, len(symbols))),
		Success: false,
		Message: message,
	}
}

// softmax maps z to the probability simplex. The max is subtracted first so
// large components cannot overflow.
func softmax(z []float64) []float64 {
	w := make([]float64, len(z))
	if len(z) == 0 {
		return w
	}
	maxZ := floats.Max(z)
	for i, v := range z {
		w[i] = math.Exp(v - maxZ)
	}
	floats.Scale(1/floats.Sum(w), w)
	return w
}

// cleanWeights clamps negative noise to zero and renormalizes to sum to 1.
func cleanWeights(w []float64) []float64 {
	cleaned := make([]float64, len(w))
	for i, v := range w {
		if v > 0 && !math.IsNaN(v) {
			cleaned[i] = v
		}
	}
	sum := floats.Sum(cleaned)
	if sum <= 0 {
		// Nothing left to normalize; fall back to equal weights
		for i := range cleaned {
			cleaned[i] = 1 / float64(len(cleaned))
		}
		return cleaned
	}
	floats.Scale(1/sum, cleaned)
	return cleaned
}

// portfolioStats returns wᵀμ and sqrt(wᵀΣw).
func portfolioStats(w, mu []float64, sigma mat.Symmetric) (float64, float64) {
	ret := floats.Dot(w, mu)
	wv := mat.NewVecDense(len(w), w)
	variance := mat.Inner(wv, sigma, wv)
	if variance < 0 {
		// Rounding on a regularized matrix can leave a tiny negative value
		variance = 0
	}
	return ret, math.Sqrt(variance)
}

func weightsBySymbol(symbols []string, w []float64) PortfolioWeights {
	weights := make(PortfolioWeights, len(symbols))
	for i, symbol := range symbols {
		weights[symbol] = w[i]
	}
	return weights
}
