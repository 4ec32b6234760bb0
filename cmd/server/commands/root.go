// Package commands implements the frontier command line.
package commands

import (
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/aristath/frontier/internal/config"
	"github.com/aristath/frontier/internal/di"
	"github.com/aristath/frontier/internal/modules/marketdata"
	"github.com/aristath/frontier/pkg/logger"
)

var (
	// Global flags
	logLevel string
	pretty   bool

	// priceSource overrides the Yahoo source when set
	priceSource marketdata.PriceSource
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "frontier",
	Short: "Mean-variance portfolio optimizer",
	Long: `Frontier finds the maximum-Sharpe portfolio of a set of assets and
samples the efficient frontier around it.

Examples:
  frontier serve
  frontier optimize --symbols AAPL,MSFT,GOOG --period 5y
  frontier cache purge`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and runs it.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug|info|warn|error), overrides LOG_LEVEL")
	rootCmd.PersistentFlags().BoolVar(&pretty, "pretty", false, "human-readable log output")
}

// bootstrap loads configuration and builds the logger. Logs go to the
// command's stderr so stdout stays machine readable.
func bootstrap(cmd *cobra.Command) (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("load config: %w", err)
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("invalid config: %w", err)
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: pretty || cfg.DevMode,
		Output: cmd.ErrOrStderr(),
	})
	logger.SetGlobalLogger(log)

	return cfg, log, nil
}

// wire builds the dependency container for a command
func wire(cmd *cobra.Command) (*config.Config, zerolog.Logger, *di.Container, error) {
	cfg, log, err := bootstrap(cmd)
	if err != nil {
		return nil, log, nil, err
	}

	container, err := di.Wire(cfg, log, priceSource)
	if err != nil {
		return nil, log, nil, fmt.Errorf("wire dependencies: %w", err)
	}
	return cfg, log, container, nil
}

func closeQuietly(log zerolog.Logger, c io.Closer) {
	if err := c.Close(); err != nil {
		log.Warn().Err(err).Msg("Close failed")
	}
}
