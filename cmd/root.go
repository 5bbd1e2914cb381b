package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/workdatahub/workdatahub/internal/cleansing"
	"github.com/workdatahub/workdatahub/internal/config"
	"github.com/workdatahub/workdatahub/internal/domain/annuity"
	"github.com/workdatahub/workdatahub/internal/orchestrator"
	"github.com/workdatahub/workdatahub/internal/registry"
)

var (
	cfg      *config.Store
	jobs     *registry.JobRegistry
	services *registry.ServiceRegistry
	hooks    *orchestrator.HookRegistry
	rules    *cleansing.Registry
)

var rootCmd = &cobra.Command{
	Use:   "workdatahub",
	Short: "Monthly data-drop ETL into the warehouse",
	Long:  "Discovers monthly Excel/CSV drops, validates them through Bronze and Gold gates, resolves company identities and loads facts into PostgreSQL.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.LoadAll()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Settings.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		jobs = registry.NewJobRegistry()
		services = registry.NewServiceRegistry()
		if err := annuity.Register(jobs, services); err != nil {
			return fmt.Errorf("register domains: %w", err)
		}
		if err := registry.Validate(cfg.DataSources, jobs, services); err != nil {
			return fmt.Errorf("validate registries: %w", err)
		}

		hooks = orchestrator.NewHookRegistry()
		orchestrator.RegisterDefaultHooks(hooks)
		rules = cleansing.NewRegistry()
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(orchestrator.ExitConfig)
	}
}
