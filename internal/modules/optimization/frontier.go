package optimization

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"
)

// FrontierSampler approximates the efficient frontier with random long-only
// portfolios. Each portfolio is N independent uniform(0,1) draws normalized
// to sum to 1. This is not uniform over the simplex; it is kept that way so
// results stay comparable with earlier runs.
type FrontierSampler struct {
	seed uint64
	log  zerolog.Logger
}

// NewFrontierSampler creates a sampler. A zero seed draws a fresh seed from
// the clock on every call; any other value makes sampling reproducible.
func NewFrontierSampler(seed uint64, log zerolog.Logger) *FrontierSampler {
	return &FrontierSampler{
		seed: seed,
		log:  log.With().Str("component", "frontier_sampler").Logger(),
	}
}

// Sample draws sampleCount portfolios in order and reports the one with the
// lowest volatility (first one wins on ties).
func (fs *FrontierSampler) Sample(model *RiskModel, sampleCount int) (*FrontierResult, error) {
	if sampleCount <= 0 {
		return nil, fmt.Errorf("%w: sample count must be positive, got %d", ErrFrontierConfiguration, sampleCount)
	}
	n := model.N()
	if n == 0 {
		return nil, fmt.Errorf("%w: no assets to sample", ErrFrontierConfiguration)
	}

	seed := fs.seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	uniform := distuv.Uniform{
		Min: 0,
		Max: 1,
		Src: rand.NewPCG(seed, seed^0x9e3779b97f4a7c15),
	}

	result := &FrontierResult{
		Points:       make([]FrontierPoint, 0, sampleCount),
		Returns:      make([]float64, 0, sampleCount),
		Volatilities: make([]float64, 0, sampleCount),
	}

	minIdx := -1
	for s := 0; s < sampleCount; s++ {
		w := make([]float64, n)
		for i := range w {
			w[i] = uniform.Rand()
		}
		sum := floats.Sum(w)
		if sum <= 0 {
			// Every draw hit exactly zero; skip rather than divide by zero
			continue
		}
		floats.Scale(1/sum, w)

		ret, vol := portfolioStats(w, model.Mean, model.Covariance)
		result.Points = append(result.Points, FrontierPoint{
			Weights:        weightsBySymbol(model.Symbols, w),
			ExpectedReturn: ret,
			Volatility:     vol,
		})
		result.Returns = append(result.Returns, ret)
		result.Volatilities = append(result.Volatilities, vol)

		if minIdx < 0 || vol < result.Volatilities[minIdx] {
			minIdx = len(result.Volatilities) - 1
		}
	}

	if minIdx < 0 {
		return nil, fmt.Errorf("%w: no portfolio could be sampled", ErrFrontierConfiguration)
	}
	result.MinVolPortfolio = result.Points[minIdx]

	fs.log.Debug().
		Int("samples", len(result.Points)).
		Float64("min_volatility", result.MinVolPortfolio.Volatility).
		Msg("Sampled efficient frontier")

	return result, nil
}
