package di

import (
	"github.com/rs/zerolog"

	"github.com/aristath/frontier/internal/config"
	"github.com/aristath/frontier/internal/metrics"
	"github.com/aristath/frontier/internal/modules/marketdata"
	"github.com/aristath/frontier/internal/modules/optimization"
	optimizationhandlers "github.com/aristath/frontier/internal/modules/optimization/handlers"
)

// InitializeServices creates the market data layer, the optimizer and the
// HTTP handler on top of an initialized database. A nil source selects
// Yahoo Finance.
func InitializeServices(container *Container, cfg *config.Config, source marketdata.PriceSource, log zerolog.Logger) {
	container.Metrics = metrics.New()

	if source == nil {
		source = marketdata.NewYahooSource(cfg.FetchRateLimit, log)
	}
	container.PriceSource = source

	container.SeriesCache = marketdata.NewSQLiteCache(container.CacheDB.Conn(), cfg.CacheTTL, log)

	container.Fetcher = marketdata.NewFetcher(source, container.SeriesCache, cfg.FetchConcurrency, log)
	container.Fetcher.SetRecorder(container.Metrics)

	container.OptimizationService = optimization.NewService(cfg.FrontierSeed, container.Metrics, log)

	container.OptimizationHandler = optimizationhandlers.NewHandler(
		container.OptimizationService,
		container.Fetcher,
		optimizationhandlers.Defaults{
			RiskFreeRate: cfg.RiskFreeRate,
			SampleCount:  cfg.FrontierSamples,
		},
		log,
	)

	log.Info().Msg("Services initialized")
}
