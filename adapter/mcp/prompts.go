package mcp

import (
	"context"
	"fmt"

	"github.com/felixgeelhaar/mcp-go"
)

// RegisterPrompts registers MCP prompts for common subscription workflows.
func RegisterPrompts(srv *mcp.Server, deps ToolDependencies) error {
	if srv == nil {
		return fmt.Errorf("server is required")
	}

	srv.Prompt("access_troubleshooting").
		Description("Work out why a viewer cannot watch a piece of content and what would unlock it.").
		Handler(func(ctx context.Context, args map[string]string) (*mcp.PromptResult, error) {
			content := args["content_id"]
			if content == "" {
				content = "the content I am trying to watch"
			}
			return userPrompt("Access Troubleshooting", fmt.Sprintf(`I cannot watch %s. Please:

1. Run access.check for it and read the decision reason
2. Check my live subscriptions using the screenpass://me/subscriptions resource
3. Check my payments using the screenpass://me/payments resource

Then explain the reason in plain words:
- payment_pending means a payment still has to complete
- subscription_ended means the cycle ran out without renewal
- no_subscription means I need to pick a plan from screenpass://plans

Suggest the single next step, such as payment.record or subscription.create.`, content)), nil
		})

	srv.Prompt("billing_review").
		Description("Review payments and renewal settings before the next cycle.").
		Handler(func(ctx context.Context, args map[string]string) (*mcp.PromptResult, error) {
			return userPrompt("Billing Review", `Let's review my billing. Please:

1. List my payments with payment.list
2. Show my current plan with plan.mine
3. Show my live subscriptions with subscription.mine

Summarize:
- Which payments completed, failed or are still pending
- When my current cycle ends and whether it will auto-renew
- Whether a cheaper or longer plan from screenpass://plans fits better

If I want to stop renewing, use subscription.auto_renew with auto_renew=false.`), nil
		})

	srv.Prompt("operations_sweep").
		Description("Admin walkthrough for checking service health and reconciling due subscriptions.").
		Handler(func(ctx context.Context, args map[string]string) (*mcp.PromptResult, error) {
			return userPrompt("Operations Sweep", `Run an operations sweep. Please:

1. Read screenpass://health and flag any probe that is not healthy
2. Run ops.reconcile and report how many subscriptions renewed, expired or failed
3. List inactive subscriptions with subscription.list status=inactive

Call out failures first, then anything that looks stuck in PENDING.`), nil
		})

	return nil
}

func userPrompt(description, text string) *mcp.PromptResult {
	return &mcp.PromptResult{
		Description: description,
		Messages: []mcp.PromptMessage{
			{
				Role: string(mcp.RoleUser),
				Content: mcp.TextContent{
					Type: "text",
					Text: text,
				},
			},
		},
	}
}
