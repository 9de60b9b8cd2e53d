package payment

import (
	"github.com/spf13/cobra"
)

// Cmd is the payment command group
var Cmd = &cobra.Command{
	Use:   "payment",
	Short: "Record and manage payments",
	Long:  `Record payments against subscriptions. A COMPLETED payment activates a PENDING subscription.`,
}

func init() {
	Cmd.AddCommand(recordCmd)
	Cmd.AddCommand(listCmd)
	Cmd.AddCommand(showCmd)
	Cmd.AddCommand(setStatusCmd)
}
