package cli

import (
	"fmt"
	"sort"

	"github.com/felixgeelhaar/screenpass/pkg/observability"
	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Probe the database, cache and broker",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := RequireApp()
		if err != nil {
			return err
		}

		report := a.Container.Health.Check(cmd.Context())
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "status: %s\n", report.Status)

		names := make([]string, 0, len(report.Probes))
		for name := range report.Probes {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			probe := report.Probes[name]
			if probe.Message != "" {
				fmt.Fprintf(out, "  %-12s %s (%s)\n", name, probe.Status, probe.Message)
			} else {
				fmt.Fprintf(out, "  %-12s %s\n", name, probe.Status)
			}
		}

		if report.Status == observability.HealthStatusUnhealthy {
			return fmt.Errorf("service unhealthy")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)
}
