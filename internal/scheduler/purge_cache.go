package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// CachePurger deletes expired cache entries
type CachePurger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// PurgeCacheJob removes expired series from the cache database
type PurgeCacheJob struct {
	cache   CachePurger
	timeout time.Duration
	log     zerolog.Logger
}

// NewPurgeCacheJob creates a new PurgeCacheJob
func NewPurgeCacheJob(cache CachePurger, log zerolog.Logger) *PurgeCacheJob {
	return &PurgeCacheJob{
		cache:   cache,
		timeout: 30 * time.Second,
		log:     log.With().Str("job", "purge_series_cache").Logger(),
	}
}

// Name returns the job name
func (j *PurgeCacheJob) Name() string {
	return "purge_series_cache"
}

// Run executes the purge
func (j *PurgeCacheJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	removed, err := j.cache.PurgeExpired(ctx)
	if err != nil {
		return fmt.Errorf("purge series cache: %w", err)
	}

	j.log.Debug().Int64("removed", removed).Msg("Series cache purged")
	return nil
}
