package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/workdatahub/workdatahub/internal/warehouse"
)

var checkDBCmd = &cobra.Command{
	Use:   "check-db",
	Short: "Verify warehouse connectivity",
	RunE: func(cmd *cobra.Command, args []string) error {
		pool, err := warehouse.Connect(cmd.Context(),
			cfg.Settings.DatabaseURI, cfg.Settings.PoolMin, cfg.Settings.PoolMax)
		if err != nil {
			return err
		}
		defer pool.Close()

		var version string
		if err := pool.QueryRow(cmd.Context(), "SELECT version()").Scan(&version); err != nil {
			return fmt.Errorf("query server version: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "connected: %s\n", version)
		fmt.Fprintf(cmd.OutOrStdout(), "pool: min=%d max=%d\n", cfg.Settings.PoolMin, cfg.Settings.PoolMax)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkDBCmd)
}
