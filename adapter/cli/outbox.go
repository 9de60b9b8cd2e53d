package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var outboxCmd = &cobra.Command{
	Use:   "outbox",
	Short: "Inspect and drain the event outbox",
}

var outboxFlushCmd = &cobra.Command{
	Use:   "flush",
	Short: "Publish one batch of pending events now",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := RequireApp()
		if err != nil {
			return err
		}
		if err := a.Container.OutboxProcessor.ProcessOnce(cmd.Context()); err != nil {
			return fmt.Errorf("flush failed: %w", err)
		}

		stats := a.Container.OutboxProcessor.GetStats()
		fmt.Fprintf(cmd.OutOrStdout(), "published %d, failed %d, dead %d\n",
			stats.PublishedCount, stats.FailedCount, stats.DeadCount)
		return nil
	},
}

var outboxCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete published events past the retention period",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := RequireApp()
		if err != nil {
			return err
		}
		deleted, err := a.Container.CleanupOutbox(cmd.Context())
		if err != nil {
			return fmt.Errorf("cleanup failed: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "deleted %d message(s) older than %d days\n",
			deleted, a.Container.Config.OutboxRetentionDays)
		return nil
	},
}

func init() {
	outboxCmd.AddCommand(outboxFlushCmd)
	outboxCmd.AddCommand(outboxCleanupCmd)
	rootCmd.AddCommand(outboxCmd)
}
