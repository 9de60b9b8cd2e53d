package mcp

import (
	"context"

	"github.com/felixgeelhaar/mcp-go"
	"github.com/felixgeelhaar/screenpass/internal/subscriptions/application/queries"
	"github.com/felixgeelhaar/screenpass/internal/subscriptions/application/services"
	"github.com/felixgeelhaar/screenpass/internal/subscriptions/domain"
)

type contentInput struct {
	ContentID string `json:"content_id" jsonschema:"required"`
}

func (t *toolset) registerAccessTools(srv *mcp.Server) {
	srv.Tool("plan.list").
		Description("List plans open for subscription, shortest first").
		Handler(t.listPlans)

	srv.Tool("plan.mine").
		Description("Get the plan behind your active subscription").
		Handler(t.myPlan)

	srv.Tool("access.check").
		Description("Check whether you may watch a piece of content, and why").
		Handler(t.checkAccess)

	srv.Tool("access.watch").
		Description("Watch a piece of content, counting the view when access is granted").
		Handler(t.watch)
}

func (t *toolset) listPlans(ctx context.Context, input struct{}) ([]domain.Plan, error) {
	app, err := t.ready()
	if err != nil {
		return nil, err
	}
	return app.Container.ListActivePlansHandler.Handle(ctx)
}

func (t *toolset) myPlan(ctx context.Context, input struct{}) (*domain.Plan, error) {
	app, err := t.ready()
	if err != nil {
		return nil, err
	}
	principal, err := app.RequirePrincipal()
	if err != nil {
		return nil, err
	}
	return app.Container.MyPlanHandler.Handle(ctx, queries.MyPlanQuery{UserID: principal.UserID})
}

// checkAccess reports denials as a decision rather than an error so the
// reason reaches the caller.
func (t *toolset) checkAccess(ctx context.Context, input contentInput) (services.Decision, error) {
	app, err := t.ready()
	if err != nil {
		return services.Decision{}, err
	}
	contentID, err := parseUUID(input.ContentID)
	if err != nil {
		return services.Decision{}, err
	}

	decision, err := app.Container.EntitlementGate.Check(ctx, app.Principal, contentID, app.Container.Clock.Now())
	if err != nil && decision.Reason == "" {
		return services.Decision{}, err
	}
	return decision, nil
}

func (t *toolset) watch(ctx context.Context, input contentInput) (*services.WatchResult, error) {
	app, err := t.ready()
	if err != nil {
		return nil, err
	}
	contentID, err := parseUUID(input.ContentID)
	if err != nil {
		return nil, err
	}
	return app.Container.EntitlementGate.Watch(ctx, app.Principal, contentID, app.Container.Clock.Now())
}
