package di

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/frontier/internal/config"
	"github.com/aristath/frontier/internal/scheduler"
)

// RegisterJobs creates the scheduler and registers the maintenance jobs.
// The scheduler is not started here.
func RegisterJobs(container *Container, cfg *config.Config, log zerolog.Logger) error {
	container.Scheduler = scheduler.New(log)

	container.PurgeCacheJob = scheduler.NewPurgeCacheJob(container.SeriesCache, log)
	if err := container.Scheduler.AddJob(cfg.CachePurgeSchedule, container.PurgeCacheJob); err != nil {
		return fmt.Errorf("failed to register %s: %w", container.PurgeCacheJob.Name(), err)
	}

	return nil
}
