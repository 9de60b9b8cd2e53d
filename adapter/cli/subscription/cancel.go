package subscription

import (
	"fmt"

	"github.com/felixgeelhaar/screenpass/adapter/cli"
	"github.com/felixgeelhaar/screenpass/internal/subscriptions/application/commands"
	"github.com/felixgeelhaar/screenpass/internal/subscriptions/application/queries"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var cancelCmd = &cobra.Command{
	Use:   "cancel [subscription-id]",
	Short: "Cancel your live subscription, or any one by id (admin)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.RequireApp()
		if err != nil {
			return err
		}

		var command commands.CancelSubscriptionCommand
		if len(args) == 1 {
			admin, err := app.RequireAdmin()
			if err != nil {
				return err
			}
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid subscription id: %w", err)
			}
			command = commands.CancelSubscriptionCommand{SubscriptionID: &id, ActorID: admin.UserID}
		} else {
			principal, err := app.RequirePrincipal()
			if err != nil {
				return err
			}
			userID := principal.UserID
			command = commands.CancelSubscriptionCommand{UserID: &userID, ActorID: userID}
		}

		sub, err := app.Container.CancelSubscriptionHandler.Handle(cmd.Context(), command)
		if err != nil {
			return fmt.Errorf("failed to cancel subscription: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Subscription canceled:")
		cli.PrintSubscription(cmd, queries.NewSubscriptionDTO(sub))
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <subscription-id>",
	Short: "Soft-delete a subscription by expiring it (admin)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.RequireApp()
		if err != nil {
			return err
		}
		admin, err := app.RequireAdmin()
		if err != nil {
			return err
		}
		id, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid subscription id: %w", err)
		}

		sub, err := app.Container.DeleteSubscriptionHandler.Handle(cmd.Context(), commands.DeleteSubscriptionCommand{
			SubscriptionID: id,
			ActorID:        admin.UserID,
		})
		if err != nil {
			return fmt.Errorf("failed to delete subscription: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Subscription deleted:")
		cli.PrintSubscription(cmd, queries.NewSubscriptionDTO(sub))
		return nil
	},
}
