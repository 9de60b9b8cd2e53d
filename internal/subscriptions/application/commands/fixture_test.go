package commands

import (
	"context"
	"testing"
	"time"

	"github.com/felixgeelhaar/screenpass/internal/subscriptions/application/apptest"
	"github.com/felixgeelhaar/screenpass/internal/subscriptions/application/services"
	"github.com/felixgeelhaar/screenpass/internal/subscriptions/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	*apptest.Env
	reconciler    *services.Reconciler
	gate          *services.EntitlementGate
	create        *CreateSubscriptionHandler
	activate      *ActivateSubscriptionHandler
	adminUpdate   *AdminUpdateSubscriptionHandler
	selfUpdate    *SelfUpdateSubscriptionHandler
	cancel        *CancelSubscriptionHandler
	remove        *DeleteSubscriptionHandler
	recordPayment *RecordPaymentHandler
	updatePayment *UpdatePaymentStatusHandler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	env := apptest.New(t)
	reconciler := services.NewReconciler(env.Subs, env.Plans, env.Outbox, env.UoW, env.Metrics, nil)
	activate := NewActivateSubscriptionHandler(env.Subs, env.Outbox, env.UoW, env.Clock)
	return &fixture{
		Env:           env,
		reconciler:    reconciler,
		gate:          services.NewEntitlementGate(env.Contents, env.Subs, reconciler, env.Metrics, nil),
		create:        NewCreateSubscriptionHandler(env.Subs, env.Users, env.Plans, env.Outbox, env.UoW, reconciler, env.Clock, env.Metrics, time.Minute),
		activate:      activate,
		adminUpdate:   NewAdminUpdateSubscriptionHandler(env.Subs, env.Users, env.Plans, env.Outbox, env.UoW, reconciler, env.Clock, env.Metrics, time.Minute),
		selfUpdate:    NewSelfUpdateSubscriptionHandler(env.Subs, env.Outbox, env.UoW, reconciler, env.Clock, env.Metrics, time.Minute),
		cancel:        NewCancelSubscriptionHandler(env.Subs, env.Outbox, env.UoW, reconciler, env.Clock, env.Metrics),
		remove:        NewDeleteSubscriptionHandler(env.Subs, env.Outbox, env.UoW, reconciler, env.Clock, env.Metrics),
		recordPayment: NewRecordPaymentHandler(env.Subs, env.Payments, env.Outbox, env.UoW, activate, env.Clock, env.Metrics),
		updatePayment: NewUpdatePaymentStatusHandler(env.Payments, env.Outbox, env.UoW, activate, env.Clock, env.Metrics),
	}
}

func user(id uuid.UUID) *domain.Principal {
	return &domain.Principal{UserID: id, Role: domain.RoleUser}
}

func (f *fixture) admin(t *testing.T) *domain.Principal {
	t.Helper()
	return &domain.Principal{UserID: f.SeedUserWithRole(t, true, domain.RoleAdmin), Role: domain.RoleAdmin}
}

func (f *fixture) subscribe(t *testing.T, userID, planID uuid.UUID, autoRenew bool) *domain.Subscription {
	t.Helper()
	sub, err := f.create.Handle(context.Background(), CreateSubscriptionCommand{
		Principal: user(userID),
		PlanID:    planID,
		AutoRenew: autoRenew,
	})
	require.NoError(t, err)
	return sub
}

func (f *fixture) pay(t *testing.T, sub *domain.Subscription, status string) *domain.Payment {
	t.Helper()
	payment, err := f.recordPayment.Handle(context.Background(), RecordPaymentCommand{
		Principal:      user(sub.UserID()),
		SubscriptionID: sub.ID(),
		Amount:         decimal.RequireFromString("9.99"),
		Method:         "card",
		Status:         status,
	})
	require.NoError(t, err)
	return payment
}

func (f *fixture) load(t *testing.T, id uuid.UUID) *domain.Subscription {
	t.Helper()
	sub, err := f.Subs.FindByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, sub)
	return sub
}
