package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/felixgeelhaar/mcp-go"
	"github.com/felixgeelhaar/screenpass/internal/subscriptions/application/queries"
	"github.com/felixgeelhaar/screenpass/internal/subscriptions/domain"
)

// RegisterResources registers MCP resources that expose subscription data.
func RegisterResources(srv *mcp.Server, deps ToolDependencies) error {
	if srv == nil {
		return fmt.Errorf("server is required")
	}
	t := &toolset{app: deps.App}

	srv.Resource("screenpass://plans").
		Name("Plans").
		Description("Plans open for subscription, shortest first").
		MimeType("application/json").
		Handler(func(ctx context.Context, uri string, params map[string]string) (*mcp.ResourceContent, error) {
			plans, err := t.listPlans(ctx, struct{}{})
			if err != nil {
				return nil, err
			}
			return jsonResource(uri, plans)
		})

	srv.Resource("screenpass://me/subscriptions").
		Name("My Subscriptions").
		Description("Your live subscriptions; empty when you have none").
		MimeType("application/json").
		Handler(func(ctx context.Context, uri string, params map[string]string) (*mcp.ResourceContent, error) {
			subs, err := t.mySubscriptions(ctx, mySubscriptionsInput{})
			if errors.Is(err, domain.ErrNoActiveSubscriptions) {
				subs, err = []queries.SubscriptionDTO{}, nil
			}
			if err != nil {
				return nil, err
			}
			return jsonResource(uri, subs)
		})

	srv.Resource("screenpass://me/payments").
		Name("My Payments").
		Description("Payments recorded against your subscriptions").
		MimeType("application/json").
		Handler(func(ctx context.Context, uri string, params map[string]string) (*mcp.ResourceContent, error) {
			payments, err := t.listPayments(ctx, listPaymentsInput{})
			if err != nil {
				return nil, err
			}
			return jsonResource(uri, payments)
		})

	srv.Resource("screenpass://health").
		Name("Health").
		Description("Probe results for the database, cache and broker").
		MimeType("application/json").
		Handler(func(ctx context.Context, uri string, params map[string]string) (*mcp.ResourceContent, error) {
			report, err := t.health(ctx, struct{}{})
			if err != nil {
				return nil, err
			}
			return jsonResource(uri, report)
		})

	return nil
}

func jsonResource(uri string, v any) (*mcp.ResourceContent, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return &mcp.ResourceContent{
		URI:      uri,
		MimeType: "application/json",
		Text:     string(data),
	}, nil
}
