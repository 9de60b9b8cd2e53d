package cli

import (
	"fmt"

	"github.com/felixgeelhaar/screenpass/internal/subscriptions/application/services"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var reconcileUserID string

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Renew or expire subscriptions whose cycle has ended",
	Long: `Run one reconciliation sweep, the same pass the worker runs on
every tick. Auto-renewing subscriptions on an active plan roll into a
new cycle; the rest expire.

Examples:
  screenpass reconcile                  # Sweep every due subscription
  screenpass reconcile --user-id <id>   # Sweep one user's subscriptions`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := RequireApp()
		if err != nil {
			return err
		}
		c := a.Container
		now := c.Clock.Now()

		var report services.ReconcileReport
		if reconcileUserID != "" {
			userID, perr := uuid.Parse(reconcileUserID)
			if perr != nil {
				return fmt.Errorf("invalid --user-id: %w", perr)
			}
			report, err = c.Reconciler.ReconcileUser(cmd.Context(), userID, now)
		} else {
			report, err = c.Reconciler.ReconcileDue(cmd.Context(), now)
		}
		if err != nil {
			return fmt.Errorf("reconcile failed: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "scanned %d, renewed %d, expired %d, skipped %d, failed %d\n",
			report.Scanned, report.Renewed, report.Expired, report.Skipped, report.Failed)
		return nil
	},
}

func init() {
	reconcileCmd.Flags().StringVar(&reconcileUserID, "user-id", "", "only reconcile this user's subscriptions")
	rootCmd.AddCommand(reconcileCmd)
}
