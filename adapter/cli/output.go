package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/felixgeelhaar/screenpass/internal/subscriptions/application/queries"
	"github.com/spf13/cobra"
)

const dateLayout = "2006-01-02"

// PrintJSON writes v as indented JSON to the command's output.
func PrintJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// PrintSubscription writes a one-line summary of sub.
func PrintSubscription(cmd *cobra.Command, sub queries.SubscriptionDTO) {
	renew := ""
	if sub.AutoRenew {
		renew = " (auto-renew)"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s  %-8s  plan %s  %s -> %s%s\n",
		sub.ID, sub.Status, sub.PlanID,
		sub.StartDate.Format(time.RFC3339), sub.EndDate.Format(time.RFC3339), renew)
}

// PrintPayment writes a one-line summary of p.
func PrintPayment(cmd *cobra.Command, p queries.PaymentDTO) {
	fmt.Fprintf(cmd.OutOrStdout(), "%s  %-9s  %s %s  subscription %s\n",
		p.ID, p.Status, p.Amount, p.Method, p.SubscriptionID)
}

// ParseTime accepts RFC 3339 timestamps or YYYY-MM-DD dates (UTC midnight).
func ParseTime(value string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(dateLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q, use YYYY-MM-DD or RFC 3339", value)
	}
	return t, nil
}
