package optimization

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func frontierModel() *RiskModel {
	return riskModel(
		[]string{"A", "B", "C"},
		[]float64{0.0008, 0.0012, 0.0005},
		[]float64{
			0.00040, 0.00010, 0.00005,
			0.00010, 0.00090, 0.00002,
			0.00005, 0.00002, 0.00025,
		},
	)
}

func TestFrontierSampler_SampleCount(t *testing.T) {
	sampler := NewFrontierSampler(42, zerolog.Nop())

	result, err := sampler.Sample(frontierModel(), 100)
	require.NoError(t, err)

	assert.Len(t, result.Points, 100)
	assert.Len(t, result.Returns, 100)
	assert.Len(t, result.Volatilities, 100)

	for i, p := range result.Points {
		assert.InDelta(t, 1.0, weightSum(p.Weights), WeightSumTolerance)
		for _, w := range p.Weights {
			assert.GreaterOrEqual(t, w, 0.0)
		}
		assert.Equal(t, p.ExpectedReturn, result.Returns[i])
		assert.Equal(t, p.Volatility, result.Volatilities[i])
		assert.GreaterOrEqual(t, p.Volatility, 0.0)
	}
}

func TestFrontierSampler_MinVolIsFirstMinimum(t *testing.T) {
	sampler := NewFrontierSampler(7, zerolog.Nop())

	result, err := sampler.Sample(frontierModel(), 100)
	require.NoError(t, err)

	minVol := result.MinVolPortfolio.Volatility
	first := -1
	for i, v := range result.Volatilities {
		assert.LessOrEqual(t, minVol, v)
		if first < 0 && v == minVol {
			first = i
		}
	}
	require.GreaterOrEqual(t, first, 0)
	assert.Equal(t, result.Points[first], result.MinVolPortfolio)
}

func TestFrontierSampler_SeedIsReproducible(t *testing.T) {
	a, err := NewFrontierSampler(1234, zerolog.Nop()).Sample(frontierModel(), 25)
	require.NoError(t, err)
	b, err := NewFrontierSampler(1234, zerolog.Nop()).Sample(frontierModel(), 25)
	require.NoError(t, err)
	c, err := NewFrontierSampler(4321, zerolog.Nop()).Sample(frontierModel(), 25)
	require.NoError(t, err)

	assert.Equal(t, a.Returns, b.Returns)
	assert.Equal(t, a.Volatilities, b.Volatilities)
	assert.NotEqual(t, a.Returns, c.Returns)
}

func TestFrontierSampler_InvalidSampleCount(t *testing.T) {
	sampler := NewFrontierSampler(1, zerolog.Nop())

	for _, count := range []int{0, -5} {
		result, err := sampler.Sample(frontierModel(), count)
		assert.ErrorIs(t, err, ErrFrontierConfiguration)
		assert.Nil(t, result)
	}
}
