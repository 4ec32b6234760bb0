package marketdata

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	"github.com/aristath/frontier/internal/modules/optimization"
)

// SeriesCache stores computed series per (symbol, period).
type SeriesCache interface {
	Get(ctx context.Context, symbol string, period Period) (*optimization.AssetSeries, bool, error)
	Set(ctx context.Context, symbol string, period Period, series optimization.AssetSeries) error
}

// Recorder receives one observation per symbol fetched.
type Recorder interface {
	ObserveFetch(outcome string)
}

// Fetch outcomes reported to the Recorder
const (
	FetchCacheHit = "cache_hit"
	FetchSource   = "source"
	FetchSkipped  = "skipped"
)

// Fetcher turns price history into return series.
type Fetcher struct {
	source      PriceSource
	cache       SeriesCache
	recorder    Recorder
	concurrency int
	now         func() time.Time
	log         zerolog.Logger
}

// NewFetcher creates a fetcher. cache may be nil.
func NewFetcher(source PriceSource, cache SeriesCache, concurrency int, log zerolog.Logger) *Fetcher {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Fetcher{
		source:      source,
		cache:       cache,
		concurrency: concurrency,
		now:         time.Now,
		log:         log.With().Str("component", "fetcher").Logger(),
	}
}

// SetRecorder sets the metrics recorder.
func (f *Fetcher) SetRecorder(recorder Recorder) {
	f.recorder = recorder
}

// Fetch loads every symbol concurrently. Symbols that fail or have too
// little history are logged and left out; the remaining series keep the
// requested order.
func (f *Fetcher) Fetch(ctx context.Context, symbols []string, period Period) (*Dataset, error) {
	symbols = NormalizeSymbols(symbols...)
	if len(symbols) == 0 {
		return nil, ErrNoSymbols
	}
	if period != Period1Y && period != Period5Y {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPeriod, period)
	}

	end := f.now()
	end = time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, end.Location())
	start := end.AddDate(0, 0, -period.Days())

	f.log.Info().
		Strs("symbols", symbols).
		Str("period", string(period)).
		Msg("Fetching historical data")

	results := make([]*optimization.AssetSeries, len(symbols))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.concurrency)

	for i, symbol := range symbols {
		g.Go(func() error {
			series, err := f.fetchOne(gctx, symbol, period)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				f.log.Warn().Err(err).Str("symbol", symbol).Msg("Skipping symbol")
				f.observe(FetchSkipped)
				return nil
			}
			results[i] = series
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("fetch cancelled: %w", err)
	}

	dataset := &Dataset{
		Series: make([]optimization.AssetSeries, 0, len(symbols)),
		Metadata: Metadata{
			StartDate: start.Format(metadataDateLayout),
			EndDate:   end.Format(metadataDateLayout),
			Symbols:   symbols,
		},
	}
	for _, series := range results {
		if series != nil {
			dataset.Series = append(dataset.Series, *series)
		}
	}

	if len(dataset.Series) == 0 {
		return nil, ErrNoData
	}
	return dataset, nil
}

func (f *Fetcher) fetchOne(ctx context.Context, symbol string, period Period) (*optimization.AssetSeries, error) {
	if f.cache != nil {
		cached, ok, err := f.cache.Get(ctx, symbol, period)
		if err != nil {
			f.log.Warn().Err(err).Str("symbol", symbol).Msg("Cache read failed")
		} else if ok {
			f.observe(FetchCacheHit)
			return cached, nil
		}
	}

	bars, err := f.source.GetHistoricalPrices(ctx, symbol, period)
	if err != nil {
		return nil, err
	}

	series, err := BuildSeries(symbol, bars)
	if err != nil {
		return nil, err
	}
	f.observe(FetchSource)

	if f.cache != nil {
		if err := f.cache.Set(ctx, symbol, period, *series); err != nil {
			f.log.Warn().Err(err).Str("symbol", symbol).Msg("Cache write failed")
		}
	}
	return series, nil
}

func (f *Fetcher) observe(outcome string) {
	if f.recorder != nil {
		f.recorder.ObserveFetch(outcome)
	}
}

// BuildSeries converts closing prices into simple daily returns with their
// mean, annualized volatility and the last close.
func BuildSeries(symbol string, bars []Bar) (*optimization.AssetSeries, error) {
	if len(bars) < MinBars {
		return nil, fmt.Errorf("insufficient data for %s: %d bars (need %d)", symbol, len(bars), MinBars)
	}

	sorted := make([]Bar, len(bars))
	copy(sorted, bars)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date)
	})

	observations := make([]optimization.Observation, 0, len(sorted)-1)
	returns := make([]float64, 0, len(sorted)-1)
	for i := 1; i < len(sorted); i++ {
		prev := sorted[i-1].Close
		if prev == 0 {
			continue
		}
		r := sorted[i].Close/prev - 1
		if math.IsNaN(r) || math.IsInf(r, 0) {
			continue
		}
		observations = append(observations, optimization.Observation{
			Date:   sorted[i].Date.Format(metadataDateLayout),
			Return: r,
		})
		returns = append(returns, r)
	}

	if len(returns) < MinReturns {
		return nil, fmt.Errorf("insufficient returns data for %s: %d returns (need %d)", symbol, len(returns), MinReturns)
	}

	return &optimization.AssetSeries{
		Symbol:               symbol,
		Observations:         observations,
		MeanReturn:           stat.Mean(returns, nil),
		AnnualizedVolatility: stat.StdDev(returns, nil) * math.Sqrt(TradingDaysPerYear),
		LastPrice:            sorted[len(sorted)-1].Close,
	}, nil
}
