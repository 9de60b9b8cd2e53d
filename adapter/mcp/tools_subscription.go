package mcp

import (
	"context"

	"github.com/felixgeelhaar/mcp-go"
	"github.com/felixgeelhaar/screenpass/internal/subscriptions/application/commands"
	"github.com/felixgeelhaar/screenpass/internal/subscriptions/application/queries"
	"github.com/felixgeelhaar/screenpass/internal/subscriptions/domain"
)

type subscribeInput struct {
	PlanID    string `json:"plan_id" jsonschema:"required"`
	UserID    string `json:"user_id,omitempty"`
	AutoRenew bool   `json:"auto_renew,omitempty"`
}

type listSubscriptionsInput struct {
	Status string `json:"status,omitempty"`
}

type mySubscriptionsInput struct {
	History bool `json:"history,omitempty"`
}

type subscriptionIDInput struct {
	SubscriptionID string `json:"subscription_id" jsonschema:"required"`
}

type updateSubscriptionInput struct {
	SubscriptionID string `json:"subscription_id" jsonschema:"required"`
	UserID         string `json:"user_id,omitempty"`
	PlanID         string `json:"plan_id,omitempty"`
	Status         string `json:"status,omitempty"`
	StartDate      string `json:"start_date,omitempty"`
	EndDate        string `json:"end_date,omitempty"`
	AutoRenew      *bool  `json:"auto_renew,omitempty"`
}

type autoRenewInput struct {
	AutoRenew *bool `json:"auto_renew" jsonschema:"required"`
}

type cancelInput struct {
	SubscriptionID string `json:"subscription_id,omitempty"`
}

func (t *toolset) registerSubscriptionTools(srv *mcp.Server) {
	srv.Tool("subscription.create").
		Description("Subscribe to a plan; the subscription stays PENDING until a completed payment").
		Handler(t.createSubscription)

	srv.Tool("subscription.list").
		Description("List all subscriptions, filtered by status all/active/inactive (admin)").
		Handler(t.listSubscriptions)

	srv.Tool("subscription.mine").
		Description("List your active subscriptions, or ended ones with history=true").
		Handler(t.mySubscriptions)

	srv.Tool("subscription.get").
		Description("Get one subscription by id (admin)").
		Handler(t.getSubscription)

	srv.Tool("subscription.history").
		Description("Get the recorded lifecycle events of a subscription (admin)").
		Handler(t.subscriptionHistory)

	srv.Tool("subscription.update").
		Description("Amend any field of a subscription (admin)").
		Handler(t.updateSubscription)

	srv.Tool("subscription.auto_renew").
		Description("Turn auto-renew on or off for your subscription").
		Handler(t.setAutoRenew)

	srv.Tool("subscription.cancel").
		Description("Cancel your live subscription, or any one by id (admin)").
		Handler(t.cancelSubscription)

	srv.Tool("subscription.delete").
		Description("Soft-delete a subscription by expiring it (admin)").
		Handler(t.deleteSubscription)
}

func (t *toolset) createSubscription(ctx context.Context, input subscribeInput) (*queries.SubscriptionDTO, error) {
	app, err := t.ready()
	if err != nil {
		return nil, err
	}
	principal, err := app.RequirePrincipal()
	if err != nil {
		return nil, err
	}
	planID, err := parseUUID(input.PlanID)
	if err != nil {
		return nil, err
	}
	userID, err := parseOptionalUUID(input.UserID)
	if err != nil {
		return nil, err
	}

	sub, err := app.Container.CreateSubscriptionHandler.Handle(ctx, commands.CreateSubscriptionCommand{
		Principal: principal,
		UserID:    userID,
		PlanID:    planID,
		AutoRenew: input.AutoRenew,
	})
	if err != nil {
		return nil, err
	}
	dto := queries.NewSubscriptionDTO(sub)
	return &dto, nil
}

func (t *toolset) listSubscriptions(ctx context.Context, input listSubscriptionsInput) ([]queries.SubscriptionDTO, error) {
	app, err := t.ready()
	if err != nil {
		return nil, err
	}
	if _, err := app.RequireAdmin(); err != nil {
		return nil, err
	}
	return app.Container.ListSubscriptionsHandler.Handle(ctx, queries.ListSubscriptionsQuery{Filter: input.Status})
}

func (t *toolset) mySubscriptions(ctx context.Context, input mySubscriptionsInput) ([]queries.SubscriptionDTO, error) {
	app, err := t.ready()
	if err != nil {
		return nil, err
	}
	principal, err := app.RequirePrincipal()
	if err != nil {
		return nil, err
	}

	query := queries.MySubscriptionsQuery{UserID: principal.UserID}
	if input.History {
		return app.Container.MySubscriptionsHandler.History(ctx, query)
	}
	return app.Container.MySubscriptionsHandler.Active(ctx, query)
}

func (t *toolset) getSubscription(ctx context.Context, input subscriptionIDInput) (*queries.SubscriptionDTO, error) {
	app, err := t.ready()
	if err != nil {
		return nil, err
	}
	if _, err := app.RequireAdmin(); err != nil {
		return nil, err
	}
	id, err := parseUUID(input.SubscriptionID)
	if err != nil {
		return nil, err
	}
	return app.Container.GetSubscriptionHandler.Handle(ctx, queries.GetSubscriptionQuery{SubscriptionID: id})
}

func (t *toolset) subscriptionHistory(ctx context.Context, input subscriptionIDInput) ([]domain.HistoryEntry, error) {
	app, err := t.ready()
	if err != nil {
		return nil, err
	}
	if _, err := app.RequireAdmin(); err != nil {
		return nil, err
	}
	id, err := parseUUID(input.SubscriptionID)
	if err != nil {
		return nil, err
	}
	return app.Container.SubscriptionHistoryHandler.Handle(ctx, queries.SubscriptionHistoryQuery{SubscriptionID: id})
}

func (t *toolset) updateSubscription(ctx context.Context, input updateSubscriptionInput) (*queries.SubscriptionDTO, error) {
	app, err := t.ready()
	if err != nil {
		return nil, err
	}
	admin, err := app.RequireAdmin()
	if err != nil {
		return nil, err
	}
	id, err := parseUUID(input.SubscriptionID)
	if err != nil {
		return nil, err
	}
	amendment, err := input.amendment()
	if err != nil {
		return nil, err
	}

	sub, err := app.Container.AdminUpdateSubscriptionHandler.Handle(ctx, commands.AdminUpdateSubscriptionCommand{
		SubscriptionID: id,
		ActorID:        admin.UserID,
		Amendment:      amendment,
	})
	if err != nil {
		return nil, err
	}
	dto := queries.NewSubscriptionDTO(sub)
	return &dto, nil
}

func (input updateSubscriptionInput) amendment() (domain.Amendment, error) {
	var a domain.Amendment
	var err error
	if a.UserID, err = parseOptionalUUID(input.UserID); err != nil {
		return a, err
	}
	if a.PlanID, err = parseOptionalUUID(input.PlanID); err != nil {
		return a, err
	}
	if a.StartDate, err = parseOptionalTime(input.StartDate); err != nil {
		return a, err
	}
	if a.EndDate, err = parseOptionalTime(input.EndDate); err != nil {
		return a, err
	}
	if input.Status != "" {
		status, err := domain.ParseStatus(input.Status)
		if err != nil {
			return a, err
		}
		a.Status = &status
	}
	a.AutoRenew = input.AutoRenew
	return a, nil
}

func (t *toolset) setAutoRenew(ctx context.Context, input autoRenewInput) (*queries.SubscriptionDTO, error) {
	app, err := t.ready()
	if err != nil {
		return nil, err
	}
	principal, err := app.RequirePrincipal()
	if err != nil {
		return nil, err
	}

	sub, err := app.Container.SelfUpdateSubscriptionHandler.Handle(ctx, commands.SelfUpdateSubscriptionCommand{
		UserID:    principal.UserID,
		AutoRenew: input.AutoRenew,
	})
	if err != nil {
		return nil, err
	}
	dto := queries.NewSubscriptionDTO(sub)
	return &dto, nil
}

func (t *toolset) cancelSubscription(ctx context.Context, input cancelInput) (*queries.SubscriptionDTO, error) {
	app, err := t.ready()
	if err != nil {
		return nil, err
	}

	var cmd commands.CancelSubscriptionCommand
	if input.SubscriptionID != "" {
		admin, err := app.RequireAdmin()
		if err != nil {
			return nil, err
		}
		id, err := parseUUID(input.SubscriptionID)
		if err != nil {
			return nil, err
		}
		cmd = commands.CancelSubscriptionCommand{SubscriptionID: &id, ActorID: admin.UserID}
	} else {
		principal, err := app.RequirePrincipal()
		if err != nil {
			return nil, err
		}
		userID := principal.UserID
		cmd = commands.CancelSubscriptionCommand{UserID: &userID, ActorID: userID}
	}

	sub, err := app.Container.CancelSubscriptionHandler.Handle(ctx, cmd)
	if err != nil {
		return nil, err
	}
	dto := queries.NewSubscriptionDTO(sub)
	return &dto, nil
}

func (t *toolset) deleteSubscription(ctx context.Context, input subscriptionIDInput) (*queries.SubscriptionDTO, error) {
	app, err := t.ready()
	if err != nil {
		return nil, err
	}
	admin, err := app.RequireAdmin()
	if err != nil {
		return nil, err
	}
	id, err := parseUUID(input.SubscriptionID)
	if err != nil {
		return nil, err
	}

	sub, err := app.Container.DeleteSubscriptionHandler.Handle(ctx, commands.DeleteSubscriptionCommand{
		SubscriptionID: id,
		ActorID:        admin.UserID,
	})
	if err != nil {
		return nil, err
	}
	dto := queries.NewSubscriptionDTO(sub)
	return &dto, nil
}
