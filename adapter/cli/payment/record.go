package payment

import (
	"encoding/json"
	"fmt"

	"github.com/felixgeelhaar/screenpass/adapter/cli"
	"github.com/felixgeelhaar/screenpass/internal/subscriptions/application/commands"
	"github.com/felixgeelhaar/screenpass/internal/subscriptions/application/queries"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var (
	recordSubscriptionID string
	recordAmount         string
	recordMethod         string
	recordStatus         string
	recordDetails        string
)

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Record a payment for one of your subscriptions",
	Long: `Record a payment. Methods: CARD, PAYPAL, BANK, CRYPTO.
Statuses: PENDING (default), COMPLETED, FAILED, REFUNDED.

Examples:
  screenpass payment record --subscription <id> --amount 9.99 --method card --status completed
  screenpass payment record --subscription <id> --amount 9.99 --method paypal --details '{"payer":"a@b.c"}'`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.RequireApp()
		if err != nil {
			return err
		}
		principal, err := app.RequirePrincipal()
		if err != nil {
			return err
		}

		subID, err := uuid.Parse(recordSubscriptionID)
		if err != nil {
			return fmt.Errorf("invalid --subscription: %w", err)
		}
		amount, err := decimal.NewFromString(recordAmount)
		if err != nil {
			return fmt.Errorf("invalid --amount: %w", err)
		}
		var details json.RawMessage
		if recordDetails != "" {
			details = json.RawMessage(recordDetails)
		}

		payment, err := app.Container.RecordPaymentHandler.Handle(cmd.Context(), commands.RecordPaymentCommand{
			Principal:      principal,
			SubscriptionID: subID,
			Amount:         amount,
			Method:         recordMethod,
			Status:         recordStatus,
			Details:        details,
		})
		if err != nil {
			return fmt.Errorf("failed to record payment: %w", err)
		}

		fmt.Fprintln(cmd.OutOrStdout(), "Payment recorded:")
		cli.PrintPayment(cmd, queries.NewPaymentDTO(payment))
		return nil
	},
}

func init() {
	recordCmd.Flags().StringVar(&recordSubscriptionID, "subscription", "", "subscription id (required)")
	recordCmd.Flags().StringVar(&recordAmount, "amount", "", "amount paid, e.g. 9.99 (required)")
	recordCmd.Flags().StringVar(&recordMethod, "method", "", "payment method (required)")
	recordCmd.Flags().StringVar(&recordStatus, "status", "", "payment status")
	recordCmd.Flags().StringVar(&recordDetails, "details", "", "payment details as a JSON object")
	_ = recordCmd.MarkFlagRequired("subscription")
	_ = recordCmd.MarkFlagRequired("amount")
	_ = recordCmd.MarkFlagRequired("method")
}
