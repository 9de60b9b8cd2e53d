package subscription

import (
	"fmt"

	"github.com/felixgeelhaar/screenpass/adapter/cli"
	"github.com/felixgeelhaar/screenpass/internal/subscriptions/application/queries"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var showCmd = &cobra.Command{
	Use:   "show <subscription-id>",
	Short: "Show one subscription (admin)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.RequireApp()
		if err != nil {
			return err
		}
		if _, err := app.RequireAdmin(); err != nil {
			return err
		}
		id, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid subscription id: %w", err)
		}

		sub, err := app.Container.GetSubscriptionHandler.Handle(cmd.Context(), queries.GetSubscriptionQuery{SubscriptionID: id})
		if err != nil {
			return err
		}
		return cli.PrintJSON(cmd, sub)
	},
}

var historyCmd = &cobra.Command{
	Use:   "history <subscription-id>",
	Short: "Show the recorded lifecycle of a subscription (admin)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.RequireApp()
		if err != nil {
			return err
		}
		if _, err := app.RequireAdmin(); err != nil {
			return err
		}
		id, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid subscription id: %w", err)
		}

		entries, err := app.Container.SubscriptionHistoryHandler.Handle(cmd.Context(), queries.SubscriptionHistoryQuery{SubscriptionID: id})
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No history recorded yet.")
			return nil
		}
		for _, e := range entries {
			fmt.Fprintf(cmd.OutOrStdout(), "%s  %-28s %s\n", e.OccurredAt.Format("2006-01-02 15:04:05"), e.EventType, e.Status)
		}
		return nil
	},
}
