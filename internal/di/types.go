// Package di provides dependency injection wiring and initialization.
package di

import (
	"github.com/aristath/frontier/internal/database"
	"github.com/aristath/frontier/internal/metrics"
	"github.com/aristath/frontier/internal/modules/marketdata"
	"github.com/aristath/frontier/internal/modules/optimization"
	optimizationhandlers "github.com/aristath/frontier/internal/modules/optimization/handlers"
	"github.com/aristath/frontier/internal/scheduler"
)

// Container holds all dependencies for the application.
// It is created by Wire and handed to the server and the CLI commands.
type Container struct {
	// Databases
	CacheDB *database.DB

	// Market data
	PriceSource marketdata.PriceSource
	SeriesCache *marketdata.SQLiteCache
	Fetcher     *marketdata.Fetcher

	// Optimizer
	OptimizationService *optimization.Service
	OptimizationHandler *optimizationhandlers.Handler

	// Ambient services
	Metrics   *metrics.Metrics
	Scheduler *scheduler.Scheduler

	// Jobs
	PurgeCacheJob *scheduler.PurgeCacheJob
}

// Jobs returns every job the container registered
func (c *Container) Jobs() []scheduler.Job {
	if c.PurgeCacheJob == nil {
		return nil
	}
	return []scheduler.Job{c.PurgeCacheJob}
}

// Close releases the databases held by the container
func (c *Container) Close() error {
	if c.CacheDB == nil {
		return nil
	}
	return c.CacheDB.Close()
}
