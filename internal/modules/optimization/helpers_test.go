package optimization

import (
	"math/rand/v2"
	"time"
)

var testStart = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

// seriesFrom builds a series with one observation per day starting at
// testStart plus offset days.
func seriesFrom(symbol string, offset int, returns ...float64) AssetSeries {
	obs := make([]Observation, len(returns))
	for i, r := range returns {
		obs[i] = Observation{
			Date:   testStart.AddDate(0, 0, offset+i).Format("2006-01-02"),
			Return: r,
		}
	}
	return AssetSeries{Symbol: symbol, Observations: obs}
}

// randomSeries generates deterministic noisy returns around drift.
func randomSeries(symbol string, seed uint64, days int, drift, scale float64) AssetSeries {
	rng := rand.New(rand.NewPCG(seed, seed+1))
	returns := make([]float64, days)
	for i := range returns {
		returns[i] = drift + scale*rng.NormFloat64()
	}
	return seriesFrom(symbol, 0, returns...)
}

func weightSum(w PortfolioWeights) float64 {
	sum := 0.0
	for _, v := range w {
		sum += v
	}
	return sum
}
