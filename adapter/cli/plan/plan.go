package plan

import (
	"fmt"
	"strings"

	"github.com/felixgeelhaar/screenpass/adapter/cli"
	"github.com/felixgeelhaar/screenpass/internal/subscriptions/application/queries"
	"github.com/felixgeelhaar/screenpass/internal/subscriptions/domain"
	"github.com/spf13/cobra"
)

// Cmd is the plan command group
var Cmd = &cobra.Command{
	Use:     "plan",
	Aliases: []string{"plans"},
	Short:   "Browse subscription plans",
}

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List plans open for subscription",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.RequireApp()
		if err != nil {
			return err
		}

		plans, err := app.Container.ListActivePlansHandler.Handle(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to list plans: %w", err)
		}
		if len(plans) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No plans available.")
			return nil
		}
		for i := range plans {
			printPlan(cmd, &plans[i])
		}
		return nil
	},
}

var mineCmd = &cobra.Command{
	Use:   "mine",
	Short: "Show the plan behind your active subscription",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.RequireApp()
		if err != nil {
			return err
		}
		principal, err := app.RequirePrincipal()
		if err != nil {
			return err
		}

		plan, err := app.Container.MyPlanHandler.Handle(cmd.Context(), queries.MyPlanQuery{UserID: principal.UserID})
		if err != nil {
			return err
		}
		printPlan(cmd, plan)
		return nil
	},
}

func printPlan(cmd *cobra.Command, p *domain.Plan) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s  %-20s %s / %d days\n", p.ID, p.Name, p.Price.StringFixed(2), p.DurationDays)
	if len(p.Features) > 0 {
		fmt.Fprintf(out, "    %s\n", strings.Join(p.Features, ", "))
	}
}

func init() {
	Cmd.AddCommand(listCmd)
	Cmd.AddCommand(mineCmd)
}
