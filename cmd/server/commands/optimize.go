package commands

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/aristath/frontier/internal/modules/marketdata"
	optimizationhandlers "github.com/aristath/frontier/internal/modules/optimization/handlers"
)

var (
	optSymbols      string
	optPeriod       string
	optRiskFreeRate float64
	optSamples      int
)

var optimizeCmd = &cobra.Command{
	Use:   "optimize",
	Short: "Optimize a portfolio and print the result as JSON",
	Long: `Fetches daily prices for the given symbols, finds the maximum-Sharpe
portfolio and samples the efficient frontier.

Example:
  frontier optimize --symbols AAPL,MSFT,GOOG --period 5y --samples 200`,
	RunE: runOptimize,
}

func init() {
	rootCmd.AddCommand(optimizeCmd)

	optimizeCmd.Flags().StringVar(&optSymbols, "symbols", "", "comma-separated ticker symbols")
	optimizeCmd.Flags().StringVar(&optPeriod, "period", string(marketdata.DefaultPeriod), "history length (1y or 5y)")
	optimizeCmd.Flags().Float64Var(&optRiskFreeRate, "risk-free-rate", 0, "risk-free rate, defaults to RISK_FREE_RATE")
	optimizeCmd.Flags().IntVar(&optSamples, "samples", 0, "frontier sample count, defaults to FRONTIER_SAMPLES")
	_ = optimizeCmd.MarkFlagRequired("symbols")
}

func runOptimize(cmd *cobra.Command, _ []string) error {
	symbols := marketdata.NormalizeSymbols(optSymbols)
	if len(symbols) == 0 {
		return marketdata.ErrNoSymbols
	}
	period, err := marketdata.ParsePeriod(optPeriod)
	if err != nil {
		return err
	}

	cfg, log, container, err := wire(cmd)
	if err != nil {
		return err
	}
	defer closeQuietly(log, container)

	rate := cfg.RiskFreeRate
	if cmd.Flags().Changed("risk-free-rate") {
		rate = optRiskFreeRate
	}
	samples := cfg.FrontierSamples
	if optSamples > 0 {
		samples = optSamples
	}

	dataset, err := container.Fetcher.Fetch(cmd.Context(), symbols, period)
	if err != nil {
		return err
	}

	analysis, err := container.OptimizationService.Analyze(dataset.Series, rate, samples)
	if err != nil {
		return err
	}
	if !analysis.Optimal.Success {
		log.Warn().Str("message", analysis.Optimal.Message).Msg("Solver did not converge")
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(optimizationhandlers.OptimizeResponse{
		Status:            "success",
		RunID:             uuid.NewString(),
		OptimalPortfolio:  analysis.Optimal,
		EfficientFrontier: analysis.Frontier,
		Metadata:          &dataset.Metadata,
	}); err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	return nil
}
