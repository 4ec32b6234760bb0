package server

import (
	"context"
	"encoding/json"
	"net/http"
	"runtime"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aristath/frontier/internal/database"
	"github.com/aristath/frontier/internal/modules/marketdata"
	"github.com/aristath/frontier/internal/scheduler"
)

// DatabaseProbe is the part of *database.DB used by the system endpoints
type DatabaseProbe interface {
	QuickCheck(ctx context.Context) error
	GetStats(ctx context.Context) (*database.Stats, error)
}

// CacheStatsProvider reports series cache occupancy
type CacheStatsProvider interface {
	Stats(ctx context.Context) (marketdata.CacheStats, error)
}

// JobRunner runs registered maintenance jobs
type JobRunner interface {
	RunNow(job scheduler.Job) error
	Entries() int
}

// SystemHandlers handles system-wide monitoring and operations
type SystemHandlers struct {
	log       zerolog.Logger
	cacheDB   DatabaseProbe
	cache     CacheStatsProvider
	scheduler JobRunner
	jobs      map[string]scheduler.Job
	startup   time.Time
	sysStats  func() (float64, float64)
}

// NewSystemHandlers creates a new system handlers instance
func NewSystemHandlers(
	log zerolog.Logger,
	cacheDB DatabaseProbe,
	cache CacheStatsProvider,
	runner JobRunner,
	jobs []scheduler.Job,
) *SystemHandlers {
	h := &SystemHandlers{
		log:       log.With().Str("service", "system").Logger(),
		cacheDB:   cacheDB,
		cache:     cache,
		scheduler: runner,
		jobs:      make(map[string]scheduler.Job, len(jobs)),
		startup:   time.Now(),
	}
	for _, job := range jobs {
		h.jobs[job.Name()] = job
	}
	h.sysStats = h.getSystemStats
	return h
}

// SystemStatusResponse represents system status
type SystemStatusResponse struct {
	Status        string                 `json:"status"`
	UptimeSeconds int64                  `json:"uptime_seconds"`
	CPUPercent    float64                `json:"cpu_percent"`
	RAMPercent    float64                `json:"ram_percent"`
	Goroutines    int                    `json:"goroutines"`
	GoVersion     string                 `json:"go_version"`
	Cache         *marketdata.CacheStats `json:"cache,omitempty"`
	ScheduledJobs int                    `json:"scheduled_jobs"`
	Jobs          []string               `json:"jobs"`
}

// HandleSystemStatus returns process and cache status
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	h.log.Debug().Msg("Getting system status")

	cpuPercent, ramPercent := h.sysStats()

	response := SystemStatusResponse{
		Status:        "healthy",
		UptimeSeconds: int64(time.Since(h.startup).Seconds()),
		CPUPercent:    cpuPercent,
		RAMPercent:    ramPercent,
		Goroutines:    runtime.NumGoroutine(),
		GoVersion:     runtime.Version(),
		Jobs:          h.jobNames(),
	}

	if h.scheduler != nil {
		response.ScheduledJobs = h.scheduler.Entries()
	}

	if h.cache != nil {
		stats, err := h.cache.Stats(r.Context())
		if err != nil {
			h.log.Warn().Err(err).Msg("Failed to read cache stats")
			response.Status = "degraded"
		} else {
			response.Cache = &stats
		}
	}

	h.writeJSON(w, http.StatusOK, response)
}

// HandleDatabaseStats returns cache database statistics
func (h *SystemHandlers) HandleDatabaseStats(w http.ResponseWriter, r *http.Request) {
	if h.cacheDB == nil {
		h.writeError(w, http.StatusServiceUnavailable, "cache database not configured")
		return
	}

	stats, err := h.cacheDB.GetStats(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to get database stats")
		h.writeError(w, http.StatusInternalServerError, "failed to get database stats")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"cache_db":     stats,
		"last_checked": time.Now().Format(time.RFC3339),
	})
}

// HandleTriggerJob runs a registered job immediately
func (h *SystemHandlers) HandleTriggerJob(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	job, ok := h.jobs[name]
	if !ok || h.scheduler == nil {
		h.writeError(w, http.StatusNotFound, "unknown job: "+name)
		return
	}

	if err := h.scheduler.RunNow(job); err != nil {
		h.log.Error().Err(err).Str("job", name).Msg("Manual job run failed")
		h.writeError(w, http.StatusInternalServerError, "job failed")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{
		"status":  "success",
		"message": name + " completed",
	})
}

func (h *SystemHandlers) jobNames() []string {
	names := make([]string, 0, len(h.jobs))
	for name := range h.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// getSystemStats calculates CPU and RAM usage percentages
func (h *SystemHandlers) getSystemStats() (float64, float64) {
	// 100ms keeps the status endpoint responsive
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return 0, 0
	}

	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}

	return cpuAvg, memStat.UsedPercent
}

func (h *SystemHandlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"status": "error", "message": message})
}

func (h *SystemHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
