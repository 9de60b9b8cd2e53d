package mcp

import (
	"context"

	"github.com/felixgeelhaar/mcp-go"
	"github.com/felixgeelhaar/screenpass/adapter/cli"
	"github.com/felixgeelhaar/screenpass/internal/subscriptions/application/services"
	"github.com/felixgeelhaar/screenpass/pkg/observability"
)

type reconcileInput struct {
	UserID string `json:"user_id,omitempty"`
}

func (t *toolset) registerCoreTools(srv *mcp.Server) {
	srv.Tool("cli.health").
		Description("Probe the database, cache and broker").
		Handler(t.health)

	srv.Tool("cli.version").
		Description("Get CLI version information").
		Handler(func(ctx context.Context, input struct{}) (map[string]string, error) {
			return map[string]string{
				"version":   cli.Version,
				"commit":    cli.Commit,
				"buildDate": cli.BuildDate,
			}, nil
		})

	srv.Tool("ops.reconcile").
		Description("Renew or expire subscriptions whose cycle has ended, for everyone or one user").
		Handler(t.reconcile)
}

func (t *toolset) health(ctx context.Context, input struct{}) (observability.HealthReport, error) {
	app, err := t.ready()
	if err != nil {
		return observability.HealthReport{}, err
	}
	return app.Container.Health.Check(ctx), nil
}

func (t *toolset) reconcile(ctx context.Context, input reconcileInput) (services.ReconcileReport, error) {
	app, err := t.ready()
	if err != nil {
		return services.ReconcileReport{}, err
	}
	if _, err := app.RequireAdmin(); err != nil {
		return services.ReconcileReport{}, err
	}

	c := app.Container
	userID, err := parseOptionalUUID(input.UserID)
	if err != nil {
		return services.ReconcileReport{}, err
	}
	if userID != nil {
		return c.Reconciler.ReconcileUser(ctx, *userID, c.Clock.Now())
	}
	return c.Reconciler.ReconcileDue(ctx, c.Clock.Now())
}
