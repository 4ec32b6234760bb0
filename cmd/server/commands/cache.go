package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and maintain the price series cache",
}

var cachePurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete expired cache entries",
	RunE: func(cmd *cobra.Command, _ []string) error {
		_, log, container, err := wire(cmd)
		if err != nil {
			return err
		}
		defer closeQuietly(log, container)

		removed, err := container.SeriesCache.PurgeExpired(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "removed %d expired entries\n", removed)
		return nil
	},
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print cache occupancy as JSON",
	RunE: func(cmd *cobra.Command, _ []string) error {
		_, log, container, err := wire(cmd)
		if err != nil {
			return err
		}
		defer closeQuietly(log, container)

		stats, err := container.SeriesCache.Stats(cmd.Context())
		if err != nil {
			return err
		}
		dbStats, err := container.CacheDB.GetStats(cmd.Context())
		if err != nil {
			return err
		}

		return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]interface{}{
			"cache":    stats,
			"database": dbStats,
		})
	},
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cachePurgeCmd, cacheStatsCmd)
}
