package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/workdatahub/workdatahub/internal/loader"
	"github.com/workdatahub/workdatahub/internal/orchestrator"
)

var runFlags struct {
	domain      string
	domains     string
	period      string
	file        string
	sheet       string
	execute     bool
	planOnly    bool
	mode        string
	noEnrich    bool
	syncBudget  int
	maxFiles    int
	noPostHooks bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the ETL for one or more domains",
	RunE: func(cmd *cobra.Command, args []string) error {
		domains, err := selectedDomains()
		if err != nil {
			return err
		}
		if runFlags.period == "" && runFlags.file == "" {
			return fmt.Errorf("either --period or --file is required")
		}
		if runFlags.file != "" && len(domains) > 1 {
			return fmt.Errorf("--file applies to a single domain")
		}

		mode := loader.Mode("")
		if runFlags.mode != "" {
			mode, err = loader.ParseMode(runFlags.mode)
			if err != nil {
				return err
			}
		}

		planOnly, err := resolvePlanOnly(runFlags.execute, runFlags.planOnly)
		if err != nil {
			return err
		}
		orch := orchestrator.New(cfg, jobs, services, hooks, rules)
		defer orch.Close()

		// Sequential batch; the worst exit code wins.
		worst := orchestrator.ExitOK
		for _, domain := range domains {
			rc := orchestrator.RunConfig{
				Domain:        domain,
				Period:        runFlags.period,
				FileOverride:  runFlags.file,
				SheetOverride: runFlags.sheet,
				PlanOnly:      planOnly,
				Mode:          mode,
				NoEnrichment:  runFlags.noEnrich,
				SyncBudget:    runFlags.syncBudget,
				MaxFiles:      runFlags.maxFiles,
				NoPostHooks:   runFlags.noPostHooks,
			}
			summary, err := orch.Run(cmd.Context(), rc)
			fmt.Fprintln(cmd.OutOrStdout(), summary.LogLine())
			if code := orchestrator.ExitCodeFor(err); code > worst {
				worst = code
			}
		}

		if worst != orchestrator.ExitOK {
			_ = zap.L().Sync()
			os.Exit(worst)
		}
		return nil
	},
}

// resolvePlanOnly maps the two write-control flags onto the run mode.
// Plan-only is the default; --execute turns writes on.
func resolvePlanOnly(execute, planOnly bool) (bool, error) {
	if execute && planOnly {
		return false, fmt.Errorf("--execute and --plan-only are mutually exclusive")
	}
	return !execute, nil
}

func selectedDomains() ([]string, error) {
	if runFlags.domain != "" && runFlags.domains != "" {
		return nil, fmt.Errorf("--domain and --domains are mutually exclusive")
	}
	if runFlags.domain != "" {
		return []string{runFlags.domain}, nil
	}
	if runFlags.domains == "" {
		return nil, fmt.Errorf("--domain or --domains is required")
	}
	var out []string
	for _, d := range strings.Split(runFlags.domains, ",") {
		if d = strings.TrimSpace(d); d != "" {
			out = append(out, d)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("--domains lists no domains")
	}
	return out, nil
}

func init() {
	runCmd.Flags().StringVar(&runFlags.domain, "domain", "", "domain to process")
	runCmd.Flags().StringVar(&runFlags.domains, "domains", "", "comma-separated domains for a sequential batch")
	runCmd.Flags().StringVar(&runFlags.period, "period", "", "reporting period as YYYYMM")
	runCmd.Flags().StringVar(&runFlags.file, "file", "", "explicit input file, skipping discovery")
	runCmd.Flags().StringVar(&runFlags.sheet, "sheet", "", "sheet name override, used with --file")
	runCmd.Flags().BoolVar(&runFlags.execute, "execute", false, "write to the warehouse (default is plan-only)")
	runCmd.Flags().BoolVar(&runFlags.planOnly, "plan-only", false, "render the load plan without connecting")
	runCmd.Flags().StringVar(&runFlags.mode, "mode", "", "load mode: append, upsert or delete_insert (default upsert)")
	runCmd.Flags().BoolVar(&runFlags.noEnrich, "no-enrichment", false, "skip lookups and force temporary company ids")
	runCmd.Flags().IntVar(&runFlags.syncBudget, "sync-budget", -1, "max synchronous EQC lookups this run")
	runCmd.Flags().IntVar(&runFlags.maxFiles, "max-files", 0, "override the configured max_files")
	runCmd.Flags().BoolVar(&runFlags.noPostHooks, "no-post-hooks", false, "skip post-ETL hooks")
	rootCmd.AddCommand(runCmd)
}
