package mcp

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/felixgeelhaar/mcp-go"
	"github.com/felixgeelhaar/mcp-go/testutil"
	"github.com/felixgeelhaar/screenpass/adapter/cli"
	"github.com/felixgeelhaar/screenpass/internal/app"
	"github.com/felixgeelhaar/screenpass/internal/subscriptions/application/services"
	"github.com/felixgeelhaar/screenpass/internal/subscriptions/domain"
	"github.com/felixgeelhaar/screenpass/internal/subscriptions/infrastructure/sqlitetest"
	"github.com/felixgeelhaar/screenpass/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestContainer(t *testing.T) (*app.Container, *sqlitetest.Harness) {
	t.Helper()
	cfg := &config.Config{
		AppEnv:                   "development",
		SQLitePath:               filepath.Join(t.TempDir(), "screenpass.db"),
		SubscriptionBaseLifetime: time.Minute,
		ReconcileInterval:        time.Second,
		OutboxPollInterval:       10 * time.Millisecond,
		OutboxBatchSize:          100,
		OutboxMaxRetries:         5,
		OutboxRetentionDays:      14,
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	c, err := app.NewContainer(context.Background(), cfg, logger)
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c, &sqlitetest.Harness{Conn: c.DBConn}
}

func newToolset(c *app.Container, principal *domain.Principal) *toolset {
	return &toolset{app: cli.NewApp(c, principal)}
}

func TestRegisterCLITools_ListTools(t *testing.T) {
	srv := mcp.NewServer(mcp.ServerInfo{
		Name:    "test",
		Version: "1.0.0",
		Capabilities: mcp.Capabilities{
			Tools: true,
		},
	})

	require.NoError(t, RegisterCLITools(srv, ToolDependencies{App: &cli.App{}}))

	tc := testutil.NewTestClient(t, srv)
	defer tc.Close()

	tools, err := tc.ListTools()
	require.NoError(t, err)

	names := map[any]bool{}
	for _, tool := range tools {
		names[tool["name"]] = true
	}
	for _, name := range []string{
		"cli.health", "cli.version", "ops.reconcile",
		"subscription.create", "subscription.cancel", "subscription.auto_renew",
		"payment.record", "payment.set_status",
		"plan.list", "access.check", "access.watch",
	} {
		assert.True(t, names[name], "%s tool should be registered", name)
	}
}

func TestRegisterCLITools_RequiresServerAndApp(t *testing.T) {
	require.Error(t, RegisterCLITools(nil, ToolDependencies{App: &cli.App{}}))

	srv := mcp.NewServer(mcp.ServerInfo{Name: "test", Version: "1.0.0"})
	require.Error(t, RegisterCLITools(srv, ToolDependencies{}))
}

func TestTools_RequireContainer(t *testing.T) {
	tools := &toolset{app: &cli.App{}}
	_, err := tools.listPlans(context.Background(), struct{}{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database connection")
}

func TestTools_SubscribePayAndWatch(t *testing.T) {
	ctx := context.Background()
	c, seed := newTestContainer(t)
	viewer := &domain.Principal{UserID: seed.SeedUser(t, true), Role: domain.RoleUser}
	tools := newToolset(c, viewer)
	planID := seed.SeedPlan(t, 30, true)
	premium := seed.SeedContent(t, domain.SubscriptionTypePremium)

	plans, err := tools.listPlans(ctx, struct{}{})
	require.NoError(t, err)
	require.Len(t, plans, 1)

	sub, err := tools.createSubscription(ctx, subscribeInput{PlanID: planID.String(), AutoRenew: true})
	require.NoError(t, err)
	assert.Equal(t, "PENDING", sub.Status)
	assert.Equal(t, viewer.UserID, sub.UserID)

	decision, err := tools.checkAccess(ctx, contentInput{ContentID: premium.String()})
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Equal(t, services.ReasonPaymentPending, decision.Reason)

	payment, err := tools.recordPayment(ctx, recordPaymentInput{
		SubscriptionID: sub.ID.String(),
		Amount:         "9.9",
		Method:         "card",
		Status:         "COMPLETED",
		Details:        `{"last4":"4242"}`,
	})
	require.NoError(t, err)
	assert.Equal(t, "9.90", payment.Amount)

	result, err := tools.watch(ctx, contentInput{ContentID: premium.String()})
	require.NoError(t, err)
	assert.True(t, result.Decision.Allowed)
	assert.Equal(t, int64(1), result.Content.ViewCount)

	plan, err := tools.myPlan(ctx, struct{}{})
	require.NoError(t, err)
	assert.Equal(t, planID, plan.ID)

	off := false
	updated, err := tools.setAutoRenew(ctx, autoRenewInput{AutoRenew: &off})
	require.NoError(t, err)
	assert.False(t, updated.AutoRenew)

	payments, err := tools.listPayments(ctx, listPaymentsInput{})
	require.NoError(t, err)
	require.Len(t, payments, 1)
	got, err := tools.getPayment(ctx, paymentIDInput{PaymentID: payments[0].ID.String()})
	require.NoError(t, err)
	assert.JSONEq(t, `{"last4":"4242"}`, string(got.Details))

	canceled, err := tools.cancelSubscription(ctx, cancelInput{})
	require.NoError(t, err)
	assert.Equal(t, "CANCELED", canceled.Status)
}

func TestTools_InputValidation(t *testing.T) {
	ctx := context.Background()
	c, seed := newTestContainer(t)
	tools := newToolset(c, &domain.Principal{UserID: seed.SeedUser(t, true), Role: domain.RoleUser})

	_, err := tools.createSubscription(ctx, subscribeInput{PlanID: "not-a-uuid"})
	require.Error(t, err)

	_, err = tools.recordPayment(ctx, recordPaymentInput{SubscriptionID: seed.SeedPlan(t, 30, true).String(), Method: "CARD"})
	require.ErrorIs(t, err, domain.ErrInvalidAmount)

	_, err = tools.recordPayment(ctx, recordPaymentInput{
		SubscriptionID: seed.SeedPlan(t, 30, true).String(),
		Amount:         "5",
		Method:         "CARD",
		Details:        "{broken",
	})
	require.Error(t, err)

	_, err = tools.checkAccess(ctx, contentInput{ContentID: seed.SeedPlan(t, 30, true).String()})
	require.ErrorIs(t, err, domain.ErrContentNotFound)

	_, err = tools.setAutoRenew(ctx, autoRenewInput{})
	require.ErrorIs(t, err, domain.ErrAutoRenewRequired)
}

func TestTools_AdminOnly(t *testing.T) {
	ctx := context.Background()
	c, seed := newTestContainer(t)
	user := newToolset(c, &domain.Principal{UserID: seed.SeedUser(t, true), Role: domain.RoleUser})
	anonymous := newToolset(c, nil)

	_, err := user.listSubscriptions(ctx, listSubscriptionsInput{})
	require.ErrorIs(t, err, domain.ErrAdminRequired)
	_, err = user.reconcile(ctx, reconcileInput{})
	require.ErrorIs(t, err, domain.ErrAdminRequired)
	_, err = user.listPayments(ctx, listPaymentsInput{All: true})
	require.ErrorIs(t, err, domain.ErrAdminRequired)
	_, err = anonymous.mySubscriptions(ctx, mySubscriptionsInput{})
	require.ErrorIs(t, err, domain.ErrAuthenticationRequired)

	// Free content needs no principal.
	free := seed.SeedContent(t, domain.SubscriptionTypeFree)
	decision, err := anonymous.checkAccess(ctx, contentInput{ContentID: free.String()})
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
}

func TestTools_AdminManagesSubscriptions(t *testing.T) {
	ctx := context.Background()
	c, seed := newTestContainer(t)
	admin := newToolset(c, &domain.Principal{UserID: seed.SeedUserWithRole(t, true, domain.RoleAdmin), Role: domain.RoleAdmin})
	owner := seed.SeedUser(t, true)
	planID := seed.SeedPlan(t, 30, true)

	_, err := admin.createSubscription(ctx, subscribeInput{PlanID: planID.String()})
	require.ErrorIs(t, err, domain.ErrUserIDRequired)

	sub, err := admin.createSubscription(ctx, subscribeInput{PlanID: planID.String(), UserID: owner.String()})
	require.NoError(t, err)
	assert.Equal(t, owner, sub.UserID)

	updated, err := admin.updateSubscription(ctx, updateSubscriptionInput{
		SubscriptionID: sub.ID.String(),
		Status:         "active",
		EndDate:        "2099-01-01",
	})
	require.NoError(t, err)
	assert.Equal(t, "ACTIVE", updated.Status)

	_, err = admin.updateSubscription(ctx, updateSubscriptionInput{SubscriptionID: sub.ID.String(), Status: "paused"})
	require.ErrorIs(t, err, domain.ErrInvalidStatus)

	all, err := admin.listSubscriptions(ctx, listSubscriptionsInput{Status: "active"})
	require.NoError(t, err)
	assert.Len(t, all, 1)

	report, err := admin.reconcile(ctx, reconcileInput{UserID: owner.String()})
	require.NoError(t, err)
	assert.Zero(t, report.Failed)

	deleted, err := admin.deleteSubscription(ctx, subscriptionIDInput{SubscriptionID: sub.ID.String()})
	require.NoError(t, err)
	assert.Equal(t, "EXPIRED", deleted.Status)

	require.NoError(t, c.OutboxProcessor.ProcessOnce(ctx))
	history, err := admin.subscriptionHistory(ctx, subscriptionIDInput{SubscriptionID: sub.ID.String()})
	require.NoError(t, err)
	assert.NotEmpty(t, history)

	got, err := admin.getSubscription(ctx, subscriptionIDInput{SubscriptionID: sub.ID.String()})
	require.NoError(t, err)
	assert.Equal(t, "EXPIRED", got.Status)
}

func TestResourcesAndPrompts_Register(t *testing.T) {
	srv := mcp.NewServer(mcp.ServerInfo{
		Name:    "test",
		Version: "1.0.0",
		Capabilities: mcp.Capabilities{
			Resources: true,
			Prompts:   true,
		},
	})
	deps := ToolDependencies{App: &cli.App{}}
	require.NoError(t, RegisterResources(srv, deps))
	require.NoError(t, RegisterPrompts(srv, deps))

	require.Error(t, RegisterResources(nil, deps))
	require.Error(t, RegisterPrompts(nil, deps))
}

func TestJSONResource(t *testing.T) {
	content, err := jsonResource("screenpass://plans", []string{"basic"})
	require.NoError(t, err)
	assert.Equal(t, "screenpass://plans", content.URI)
	assert.Equal(t, "application/json", content.MimeType)
	assert.JSONEq(t, `["basic"]`, content.Text)
}

func TestParseOptionalTime(t *testing.T) {
	got, err := parseOptionalTime("2026-03-01")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC), *got)

	got, err = parseOptionalTime("")
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = parseOptionalTime("March 1st")
	require.Error(t, err)
}
