package access

import (
	"fmt"

	"github.com/felixgeelhaar/screenpass/adapter/cli"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// Cmd is the access command group
var Cmd = &cobra.Command{
	Use:   "access",
	Short: "Check entitlement to content",
}

var checkCmd = &cobra.Command{
	Use:   "check <content-id>",
	Short: "Report whether you may watch a content item",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.RequireApp()
		if err != nil {
			return err
		}
		contentID, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid content id: %w", err)
		}

		c := app.Container
		decision, err := c.EntitlementGate.Check(cmd.Context(), app.Principal, contentID, c.Clock.Now())
		if decision.Reason == "" && err != nil {
			return err
		}

		verdict := "denied"
		if decision.Allowed {
			verdict = "allowed"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", verdict, decision.Reason)
		return err
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch <content-id>",
	Short: "Watch a content item, counting the view",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.RequireApp()
		if err != nil {
			return err
		}
		contentID, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid content id: %w", err)
		}

		c := app.Container
		result, err := c.EntitlementGate.Watch(cmd.Context(), app.Principal, contentID, c.Clock.Now())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Now playing: %s (%d views)\n", result.Content.Title, result.Content.ViewCount)
		return nil
	},
}

func init() {
	Cmd.AddCommand(checkCmd)
	Cmd.AddCommand(watchCmd)
}
