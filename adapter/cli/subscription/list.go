package subscription

import (
	"fmt"

	"github.com/felixgeelhaar/screenpass/adapter/cli"
	"github.com/felixgeelhaar/screenpass/internal/subscriptions/application/queries"
	"github.com/spf13/cobra"
)

var (
	listStatus  string
	mineHistory bool
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List all subscriptions (admin)",
	Long: `List subscriptions of active users.

Filter Options:
  --status   all (default), active, or inactive (PENDING and EXPIRED)`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.RequireApp()
		if err != nil {
			return err
		}
		if _, err := app.RequireAdmin(); err != nil {
			return err
		}

		subs, err := app.Container.ListSubscriptionsHandler.Handle(cmd.Context(), queries.ListSubscriptionsQuery{Filter: listStatus})
		if err != nil {
			return fmt.Errorf("failed to list subscriptions: %w", err)
		}
		printAll(cmd, subs)
		return nil
	},
}

var mineCmd = &cobra.Command{
	Use:   "mine",
	Short: "List your active subscriptions, or ended ones with --history",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.RequireApp()
		if err != nil {
			return err
		}
		principal, err := app.RequirePrincipal()
		if err != nil {
			return err
		}

		query := queries.MySubscriptionsQuery{UserID: principal.UserID}
		var subs []queries.SubscriptionDTO
		if mineHistory {
			subs, err = app.Container.MySubscriptionsHandler.History(cmd.Context(), query)
		} else {
			subs, err = app.Container.MySubscriptionsHandler.Active(cmd.Context(), query)
		}
		if err != nil {
			return err
		}
		printAll(cmd, subs)
		return nil
	},
}

func printAll(cmd *cobra.Command, subs []queries.SubscriptionDTO) {
	if len(subs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No subscriptions found.")
		return
	}
	for _, sub := range subs {
		cli.PrintSubscription(cmd, sub)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "\n%d subscription(s)\n", len(subs))
}

func init() {
	listCmd.Flags().StringVar(&listStatus, "status", "", "filter: all, active, inactive")
	mineCmd.Flags().BoolVar(&mineHistory, "history", false, "show expired and canceled subscriptions")
}
