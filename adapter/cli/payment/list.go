package payment

import (
	"fmt"

	"github.com/felixgeelhaar/screenpass/adapter/cli"
	"github.com/felixgeelhaar/screenpass/internal/subscriptions/application/commands"
	"github.com/felixgeelhaar/screenpass/internal/subscriptions/application/queries"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var listAll bool

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List your payments, or every payment with --all (admin)",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.RequireApp()
		if err != nil {
			return err
		}

		var payments []queries.PaymentDTO
		if listAll {
			if _, err := app.RequireAdmin(); err != nil {
				return err
			}
			payments, err = app.Container.PaymentsHandler.List(cmd.Context())
		} else {
			principal, perr := app.RequirePrincipal()
			if perr != nil {
				return perr
			}
			payments, err = app.Container.PaymentsHandler.ListMine(cmd.Context(), principal.UserID)
		}
		if err != nil {
			return fmt.Errorf("failed to list payments: %w", err)
		}

		if len(payments) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No payments found.")
			return nil
		}
		for _, p := range payments {
			cli.PrintPayment(cmd, p)
		}
		return nil
	},
}

var showCmd = &cobra.Command{
	Use:   "show <payment-id>",
	Short: "Show one payment with its details",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.RequireApp()
		if err != nil {
			return err
		}
		id, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid payment id: %w", err)
		}

		payment, err := app.Container.PaymentsHandler.Get(cmd.Context(), queries.GetPaymentQuery{
			Principal: app.Principal,
			PaymentID: id,
		})
		if err != nil {
			return err
		}
		return cli.PrintJSON(cmd, payment)
	},
}

var setStatusCmd = &cobra.Command{
	Use:   "set-status <payment-id> <status>",
	Short: "Change a payment's status (admin)",
	Args:  cobra.ExactArgs(2),
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
			return fmt.Errorf("invalid payment id: %w", err)
		}

		payment, err := app.Container.UpdatePaymentStatusHandler.Handle(cmd.Context(), commands.UpdatePaymentStatusCommand{
			PaymentID: id,
			Status:    args[1],
			ActorID:   admin.UserID,
		})
		if err != nil {
			return fmt.Errorf("failed to update payment: %w", err)
		}
		cli.PrintPayment(cmd, queries.NewPaymentDTO(payment))
		return nil
	},
}

func init() {
	listCmd.Flags().BoolVar(&listAll, "all", false, "list every payment (admin)")
}
