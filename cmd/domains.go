package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var domainsCmd = &cobra.Command{
	Use:   "domains",
	Short: "List registered domains and their capabilities",
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, name := range services.Names() {
			entry, _ := services.Get(name)
			spec, _ := jobs.Get(name)

			var caps []string
			if spec.MultiFile {
				caps = append(caps, "multi-file")
			}
			if spec.SupportsBackfill {
				caps = append(caps, "backfill")
			}
			if spec.SupportsEnrichment {
				caps = append(caps, "enrichment")
			}
			capText := "-"
			if len(caps) > 0 {
				capText = strings.Join(caps, ", ")
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%-24s %-32s %s\n", name, entry.DisplayName, capText)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(domainsCmd)
}
