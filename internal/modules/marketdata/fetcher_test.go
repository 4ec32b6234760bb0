package marketdata

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/frontier/internal/modules/optimization"
)

type fakeSource struct {
	mu    sync.Mutex
	bars  map[string][]Bar
	errs  map[string]error
	calls map[string]int
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		bars:  make(map[string][]Bar),
		errs:  make(map[string]error),
		calls: make(map[string]int),
	}
}

func (s *fakeSource) GetHistoricalPrices(_ context.Context, symbol string, _ Period) ([]Bar, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[symbol]++
	if err, ok := s.errs[symbol]; ok {
		return nil, err
	}
	return s.bars[symbol], nil
}

type memoryCache struct {
	mu      sync.Mutex
	entries map[string]optimization.AssetSeries
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: make(map[string]optimization.AssetSeries)}
}

func (c *memoryCache) Get(_ context.Context, symbol string, period Period) (*optimization.AssetSeries, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.entries[symbol+"/"+string(period)]
	if !ok {
		return nil, false, nil
	}
	return &s, true, nil
}

func (c *memoryCache) Set(_ context.Context, symbol string, period Period, series optimization.AssetSeries) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[symbol+"/"+string(period)] = series
	return nil
}

// priceBars returns n daily bars starting 2024-01-01 growing by step per day.
func priceBars(n int, start, step float64) []Bar {
	bars := make([]Bar, n)
	day := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	price := start
	for i := range bars {
		// Alternate the move so returns are not constant
		if i%2 == 0 {
			price += step
		} else {
			price += step / 2
		}
		bars[i] = Bar{Date: day.AddDate(0, 0, i), Close: price}
	}
	return bars
}

func TestParsePeriod(t *testing.T) {
	testCases := []struct {
		input    string
		expected Period
		wantErr  bool
	}{
		{"1y", Period1Y, false},
		{"1 Year", Period1Y, false},
		{" 5Y ", Period5Y, false},
		{"5 years", Period5Y, false},
		{"10y", "", true},
		{"", "", true},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			period, err := ParsePeriod(tc.input)
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrInvalidPeriod)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, period)
		})
	}
}

func TestNormalizeSymbols(t *testing.T) {
	assert.Equal(t,
		[]string{"AAPL", "MSFT", "GOOG"},
		NormalizeSymbols(" aapl, msft ,,AAPL", "goog"),
	)
	assert.Empty(t, NormalizeSymbols(" , ", ""))
}

func TestBuildSeries(t *testing.T) {
	bars := priceBars(40, 100, 1)

	// Reverse the input to check sorting
	reversed := make([]Bar, len(bars))
	for i, b := range bars {
		reversed[len(bars)-1-i] = b
	}

	series, err := BuildSeries("AAPL", reversed)
	require.NoError(t, err)

	assert.Equal(t, "AAPL", series.Symbol)
	require.Len(t, series.Observations, 39)
	assert.Equal(t, "2024-01-02", series.Observations[0].Date)
	assert.InDelta(t, bars[1].Close/bars[0].Close-1, series.Observations[0].Return, 1e-12)
	assert.Equal(t, bars[39].Close, series.LastPrice)

	returns := series.Returns()
	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))
	assert.InDelta(t, mean, series.MeanReturn, 1e-12)

	variance := 0.0
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(len(returns) - 1)
	assert.InDelta(t, math.Sqrt(variance)*math.Sqrt(252), series.AnnualizedVolatility, 1e-12)
}

func TestBuildSeries_Insufficient(t *testing.T) {
	_, err := BuildSeries("AAPL", priceBars(MinBars-1, 100, 1))
	assert.Error(t, err)

	// Enough bars but zero closes leave too few returns
	bars := priceBars(MinBars+1, 100, 1)
	for i := 0; i < 5; i++ {
		bars[i].Close = 0
	}
	_, err = BuildSeries("AAPL", bars)
	assert.Error(t, err)
}

func TestFetcher_Fetch(t *testing.T) {
	source := newFakeSource()
	source.bars["AAPL"] = priceBars(60, 100, 1)
	source.bars["MSFT"] = priceBars(60, 200, 3)
	source.bars["SHORT"] = priceBars(10, 50, 1)
	source.errs["BROKEN"] = errors.New("upstream unavailable")

	fetcher := NewFetcher(source, nil, 2, zerolog.Nop())
	fetcher.now = func() time.Time { return time.Date(2025, 3, 15, 14, 30, 0, 0, time.UTC) }

	dataset, err := fetcher.Fetch(context.Background(), []string{"msft, short", "broken", "aapl"}, Period1Y)
	require.NoError(t, err)

	require.Len(t, dataset.Series, 2)
	assert.Equal(t, "MSFT", dataset.Series[0].Symbol)
	assert.Equal(t, "AAPL", dataset.Series[1].Symbol)

	assert.Equal(t, "2025-03-15", dataset.Metadata.EndDate)
	assert.Equal(t, "2024-03-15", dataset.Metadata.StartDate)
	assert.Equal(t, []string{"MSFT", "SHORT", "BROKEN", "AAPL"}, dataset.Metadata.Symbols)
}

func TestFetcher_Errors(t *testing.T) {
	source := newFakeSource()
	source.bars["SHORT"] = priceBars(5, 50, 1)
	fetcher := NewFetcher(source, nil, 1, zerolog.Nop())

	_, err := fetcher.Fetch(context.Background(), []string{" , "}, Period1Y)
	assert.ErrorIs(t, err, ErrNoSymbols)

	_, err = fetcher.Fetch(context.Background(), []string{"AAPL"}, Period("3y"))
	assert.ErrorIs(t, err, ErrInvalidPeriod)

	_, err = fetcher.Fetch(context.Background(), []string{"SHORT", "MISSING"}, Period5Y)
	assert.ErrorIs(t, err, ErrNoData)
	assert.True(t, IsRequestError(err))
}

func TestFetcher_UsesCache(t *testing.T) {
	source := newFakeSource()
	source.bars["AAPL"] = priceBars(60, 100, 1)
	cache := newMemoryCache()

	fetcher := NewFetcher(source, cache, 1, zerolog.Nop())
	recorder := &countingRecorder{counts: make(map[string]int)}
	fetcher.SetRecorder(recorder)

	first, err := fetcher.Fetch(context.Background(), []string{"AAPL"}, Period1Y)
	require.NoError(t, err)
	second, err := fetcher.Fetch(context.Background(), []string{"AAPL"}, Period1Y)
	require.NoError(t, err)

	assert.Equal(t, 1, source.calls["AAPL"])
	assert.Equal(t, first.Series, second.Series)
	assert.Equal(t, 1, recorder.counts[FetchSource])
	assert.Equal(t, 1, recorder.counts[FetchCacheHit])
}

func TestFetcher_ContextCancelled(t *testing.T) {
	source := &blockingSource{}
	fetcher := NewFetcher(source, nil, 1, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := fetcher.Fetch(ctx, []string{"AAPL"}, Period1Y)
	assert.ErrorIs(t, err, context.Canceled)
}

type blockingSource struct{}

func (blockingSource) GetHistoricalPrices(ctx context.Context, _ string, _ Period) ([]Bar, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

type countingRecorder struct {
	mu     sync.Mutex
	counts map[string]int
}

func (r *countingRecorder) ObserveFetch(outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counts[outcome]++
}
