package subscription

import (
	"fmt"

	"github.com/felixgeelhaar/screenpass/adapter/cli"
	"github.com/felixgeelhaar/screenpass/internal/subscriptions/application/commands"
	"github.com/felixgeelhaar/screenpass/internal/subscriptions/application/queries"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	createPlanID    string
	createForUser   string
	createAutoRenew bool
)

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Subscribe to a plan",
	Long: `Open a PENDING subscription to a plan. It becomes ACTIVE once a
completed payment is recorded. Any other live subscription is canceled.

Admins must name the subscriber with --for-user.

Examples:
  screenpass subscription create --plan <plan-id>
  screenpass subscription create --plan <plan-id> --auto-renew
  screenpass subscription create --plan <plan-id> --for-user <user-id> --role ADMIN`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.RequireApp()
		if err != nil {
			return err
		}
		principal, err := app.RequirePrincipal()
		if err != nil {
			return err
		}

		planID, err := uuid.Parse(createPlanID)
		if err != nil {
			return fmt.Errorf("invalid --plan: %w", err)
		}
		command := commands.CreateSubscriptionCommand{
			Principal: principal,
			PlanID:    planID,
			AutoRenew: createAutoRenew,
		}
		if createForUser != "" {
			userID, err := uuid.Parse(createForUser)
			if err != nil {
				return fmt.Errorf("invalid --for-user: %w", err)
			}
			command.UserID = &userID
		}

		sub, err := app.Container.CreateSubscriptionHandler.Handle(cmd.Context(), command)
		if err != nil {
			return fmt.Errorf("failed to create subscription: %w", err)
		}

		fmt.Fprintln(cmd.OutOrStdout(), "Subscription created, awaiting payment:")
		cli.PrintSubscription(cmd, queries.NewSubscriptionDTO(sub))
		return nil
	},
}

func init() {
	createCmd.Flags().StringVar(&createPlanID, "plan", "", "plan id (required)")
	createCmd.Flags().StringVar(&createForUser, "for-user", "", "subscriber user id (admins only)")
	createCmd.Flags().BoolVar(&createAutoRenew, "auto-renew", false, "renew automatically at the end of each cycle")
	_ = createCmd.MarkFlagRequired("plan")
}
