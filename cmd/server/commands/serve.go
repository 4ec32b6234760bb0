package commands

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/aristath/frontier/internal/server"
)

// version is reported by /health
var version = "dev"

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Starts the HTTP API and the cache maintenance scheduler.

Endpoints:
  GET  /health
  GET  /metrics
  GET  /api/system/status
  GET  /api/system/database/stats
  POST /api/system/jobs/{name}
  POST /api/optimize
  POST /api/optimize/returns
  POST /api/stock-data`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntVar(&servePort, "port", 0, "listen port, overrides GO_PORT")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, log, container, err := wire(cmd)
	if err != nil {
		return err
	}
	defer closeQuietly(log, container)

	if servePort > 0 {
		cfg.Port = servePort
	}

	log.Info().Str("version", version).Msg("Starting frontier")

	srv := server.New(server.Config{
		Log:            log,
		Port:           cfg.Port,
		DevMode:        cfg.DevMode,
		RequestTimeout: cfg.RequestTimeout,
		Version:        version,
		CacheDB:        container.CacheDB,
		Cache:          container.SeriesCache,
		Metrics:        container.Metrics,
		Scheduler:      container.Scheduler,
		Jobs:           container.Jobs(),
		Optimization:   container.OptimizationHandler,
	})

	container.Scheduler.Start()

	serverErr := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case <-quit:
	case err := <-serverErr:
		container.Scheduler.Stop()
		log.Error().Err(err).Msg("Server failed")
		return err
	}

	log.Info().Msg("Shutting down server...")
	container.Scheduler.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
	return nil
}
