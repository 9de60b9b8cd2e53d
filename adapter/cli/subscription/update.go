package subscription

import (
	"fmt"
	"strconv"

	"github.com/felixgeelhaar/screenpass/adapter/cli"
	"github.com/felixgeelhaar/screenpass/internal/subscriptions/application/commands"
	"github.com/felixgeelhaar/screenpass/internal/subscriptions/application/queries"
	"github.com/felixgeelhaar/screenpass/internal/subscriptions/domain"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	updateUserID    string
	updatePlanID    string
	updateStatus    string
	updateStart     string
	updateEnd       string
	updateAutoRenew bool
)

var updateCmd = &cobra.Command{
	Use:   "update <subscription-id>",
	Short: "Amend a subscription (admin)",
	Long: `Change any field of a subscription. Only the flags given are changed.
Changing the plan or start date without --end recomputes the end date
from the plan duration.

Examples:
  screenpass subscription update <id> --status active
  screenpass subscription update <id> --plan <plan-id> --start 2026-11-01
  screenpass subscription update <id> --auto-renew=false`,
	Args: cobra.ExactArgs(1),
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

		amendment, err := amendmentFromFlags(cmd)
		if err != nil {
			return err
		}

		sub, err := app.Container.AdminUpdateSubscriptionHandler.Handle(cmd.Context(), commands.AdminUpdateSubscriptionCommand{
			SubscriptionID: id,
			ActorID:        admin.UserID,
			Amendment:      amendment,
		})
		if err != nil {
			return fmt.Errorf("failed to update subscription: %w", err)
		}

		fmt.Fprintln(cmd.OutOrStdout(), "Subscription updated:")
		cli.PrintSubscription(cmd, queries.NewSubscriptionDTO(sub))
		return nil
	},
}

func amendmentFromFlags(cmd *cobra.Command) (domain.Amendment, error) {
	var a domain.Amendment
	flags := cmd.Flags()

	if flags.Changed("user-id") {
		id, err := uuid.Parse(updateUserID)
		if err != nil {
			return a, fmt.Errorf("invalid --user-id: %w", err)
		}
		a.UserID = &id
	}
	if flags.Changed("plan") {
		id, err := uuid.Parse(updatePlanID)
		if err != nil {
			return a, fmt.Errorf("invalid --plan: %w", err)
		}
		a.PlanID = &id
	}
	if flags.Changed("status") {
		status, err := domain.ParseStatus(updateStatus)
		if err != nil {
			return a, err
		}
		a.Status = &status
	}
	if flags.Changed("start") {
		t, err := cli.ParseTime(updateStart)
		if err != nil {
			return a, err
		}
		a.StartDate = &t
	}
	if flags.Changed("end") {
		t, err := cli.ParseTime(updateEnd)
		if err != nil {
			return a, err
		}
		a.EndDate = &t
	}
	if flags.Changed("auto-renew") {
		v := updateAutoRenew
		a.AutoRenew = &v
	}
	return a, nil
}

var autoRenewCmd = &cobra.Command{
	Use:       "auto-renew <on|off>",
	Short:     "Turn auto-renew on or off for your subscription",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"on", "off"},
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.RequireApp()
		if err != nil {
			return err
		}
		principal, err := app.RequirePrincipal()
		if err != nil {
			return err
		}

		var on bool
		switch args[0] {
		case "on":
			on = true
		case "off":
			on = false
		default:
			if on, err = strconv.ParseBool(args[0]); err != nil {
				return fmt.Errorf("expected on or off, got %q", args[0])
			}
		}

		sub, err := app.Container.SelfUpdateSubscriptionHandler.Handle(cmd.Context(), commands.SelfUpdateSubscriptionCommand{
			UserID:    principal.UserID,
			AutoRenew: &on,
		})
		if err != nil {
			return err
		}
		cli.PrintSubscription(cmd, queries.NewSubscriptionDTO(sub))
		return nil
	},
}

func init() {
	updateCmd.Flags().StringVar(&updateUserID, "user-id", "", "move the subscription to another user")
	updateCmd.Flags().StringVar(&updatePlanID, "plan", "", "new plan id")
	updateCmd.Flags().StringVar(&updateStatus, "status", "", "new status (PENDING, ACTIVE, EXPIRED, CANCELED)")
	updateCmd.Flags().StringVar(&updateStart, "start", "", "new start date")
	updateCmd.Flags().StringVar(&updateEnd, "end", "", "new end date")
	updateCmd.Flags().BoolVar(&updateAutoRenew, "auto-renew", false, "auto-renew setting")
}
