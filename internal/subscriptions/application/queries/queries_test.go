package queries

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/felixgeelhaar/screenpass/internal/subscriptions/application/apptest"
	"github.com/felixgeelhaar/screenpass/internal/subscriptions/application/services"
	"github.com/felixgeelhaar/screenpass/internal/subscriptions/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newReconciler(env *apptest.Env) *services.Reconciler {
	return services.NewReconciler(env.Subs, env.Plans, env.Outbox, env.UoW, env.Metrics, nil)
}

// store saves a subscription created at the env clock, optionally
// activating it. Its first cycle ends a minute later.
func store(t *testing.T, env *apptest.Env, userID, planID uuid.UUID, active bool) *domain.Subscription {
	t.Helper()
	ctx := context.Background()
	sub := domain.NewSubscription(userID, planID, false, env.Clock.Now(), time.Minute)
	require.NoError(t, env.Subs.Create(ctx, sub))
	if active {
		_, err := sub.Activate(env.Clock.Now())
		require.NoError(t, err)
		ok, err := env.Subs.Update(ctx, sub)
		require.NoError(t, err)
		require.True(t, ok)
	}
	sub.ClearDomainEvents()
	return sub
}

func TestGetSubscriptionHandler(t *testing.T) {
	ctx := context.Background()
	env := apptest.New(t)
	owner := env.SeedUser(t, true)
	planID := env.SeedPlan(t, 30, true)
	sub := store(t, env, owner, planID, true)
	payment, err := domain.NewPayment(sub.ID(), decimal.RequireFromString("4.25"), domain.PaymentMethodCard,
		domain.PaymentStatusCompleted, nil, env.Clock.Now())
	require.NoError(t, err)
	require.NoError(t, env.Payments.Create(ctx, payment))
	handler := NewGetSubscriptionHandler(env.Subs, env.Plans, env.Payments, env.Users, newReconciler(env), env.Clock)

	dto, err := handler.Handle(ctx, GetSubscriptionQuery{SubscriptionID: sub.ID()})
	require.NoError(t, err)
	assert.Equal(t, sub.ID(), dto.ID)
	assert.Equal(t, "ACTIVE", dto.Status)
	require.NotNil(t, dto.Plan)
	assert.Equal(t, planID, dto.Plan.ID)
	assert.Equal(t, 30, dto.Plan.DurationDays)
	require.Len(t, dto.Payments, 1)
	assert.Equal(t, payment.ID(), dto.Payments[0].ID)
	assert.Equal(t, "4.25", dto.Payments[0].Amount)
	require.NotNil(t, dto.User)
	assert.Equal(t, owner, dto.User.ID)
	assert.Equal(t, domain.RoleUser, dto.User.Role)
	assert.True(t, dto.User.IsActive)

	// Reading an elapsed subscription reconciles it.
	env.Clock.Advance(2 * time.Minute)
	dto, err = handler.Handle(ctx, GetSubscriptionQuery{SubscriptionID: sub.ID()})
	require.NoError(t, err)
	assert.Equal(t, "EXPIRED", dto.Status)

	_, err = handler.Handle(ctx, GetSubscriptionQuery{SubscriptionID: uuid.New()})
	require.ErrorIs(t, err, domain.ErrSubscriptionNotFound)
}

func TestListSubscriptionsHandler(t *testing.T) {
	ctx := context.Background()
	env := apptest.New(t)
	planID := env.SeedPlan(t, 30, true)
	elapsed := store(t, env, env.SeedUser(t, true), planID, true)

	env.Clock.Advance(2 * time.Minute)
	active := store(t, env, env.SeedUser(t, true), planID, true)
	pending := store(t, env, env.SeedUser(t, true), planID, false)
	hiddenUser := env.SeedUser(t, true)
	store(t, env, hiddenUser, planID, true)
	env.SetUserActive(t, hiddenUser, false)

	handler := NewListSubscriptionsHandler(env.Subs, env.Plans, env.Payments, env.Users, newReconciler(env), env.Clock)

	all, err := handler.Handle(ctx, ListSubscriptionsQuery{})
	require.NoError(t, err)
	assert.Len(t, all, 3)
	for _, dto := range all {
		require.NotNil(t, dto.Plan)
		assert.Equal(t, planID, dto.Plan.ID)
		require.NotNil(t, dto.User)
		assert.Equal(t, dto.UserID, dto.User.ID)
		assert.Empty(t, dto.Payments)
	}

	activeOnly, err := handler.Handle(ctx, ListSubscriptionsQuery{Filter: "active"})
	require.NoError(t, err)
	require.Len(t, activeOnly, 1)
	assert.Equal(t, active.ID(), activeOnly[0].ID)

	inactive, err := handler.Handle(ctx, ListSubscriptionsQuery{Filter: "inactive"})
	require.NoError(t, err)
	ids := []uuid.UUID{}
	for _, dto := range inactive {
		ids = append(ids, dto.ID)
	}
	assert.ElementsMatch(t, []uuid.UUID{pending.ID(), elapsed.ID()}, ids)

	_, err = handler.Handle(ctx, ListSubscriptionsQuery{Filter: "paused"})
	require.ErrorIs(t, err, domain.ErrInvalidStatus)
}

func TestMySubscriptionsHandler(t *testing.T) {
	ctx := context.Background()
	env := apptest.New(t)
	userID := env.SeedUser(t, true)
	handler := NewMySubscriptionsHandler(env.Subs, env.Plans, env.Payments, newReconciler(env), env.Clock)

	_, err := handler.Active(ctx, MySubscriptionsQuery{UserID: userID})
	require.ErrorIs(t, err, domain.ErrNoActiveSubscriptions)
	_, err = handler.History(ctx, MySubscriptionsQuery{UserID: userID})
	require.ErrorIs(t, err, domain.ErrNoSubscriptionHistory)

	sub := store(t, env, userID, env.SeedPlan(t, 30, true), true)
	active, err := handler.Active(ctx, MySubscriptionsQuery{UserID: userID})
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, sub.ID(), active[0].ID)
	require.NotNil(t, active[0].Plan)
	assert.Equal(t, sub.PlanID(), active[0].Plan.ID)
	assert.Nil(t, active[0].User, "owners are not shown their own summary")

	env.Clock.Advance(2 * time.Minute)
	_, err = handler.Active(ctx, MySubscriptionsQuery{UserID: userID})
	require.ErrorIs(t, err, domain.ErrNoActiveSubscriptions)

	history, err := handler.History(ctx, MySubscriptionsQuery{UserID: userID})
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "EXPIRED", history[0].Status)
}

func TestSubscriptionHistoryHandler(t *testing.T) {
	ctx := context.Background()
	env := apptest.New(t)
	sub := store(t, env, env.SeedUser(t, true), env.SeedPlan(t, 30, true), false)
	handler := NewSubscriptionHistoryHandler(env.Subs, env.History)

	entries, err := handler.Handle(ctx, SubscriptionHistoryQuery{SubscriptionID: sub.ID()})
	require.NoError(t, err)
	assert.NotNil(t, entries)
	assert.Empty(t, entries)

	_, err = env.History.Append(ctx, domain.HistoryEntry{
		ID:             uuid.New(),
		EventID:        uuid.New(),
		SubscriptionID: sub.ID(),
		UserID:         sub.UserID(),
		EventType:      domain.RoutingKeySubscriptionCreated,
		Status:         domain.StatusPending,
		OccurredAt:     env.Clock.Now(),
		RecordedAt:     env.Clock.Now(),
	})
	require.NoError(t, err)

	entries, err = handler.Handle(ctx, SubscriptionHistoryQuery{SubscriptionID: sub.ID()})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, domain.RoutingKeySubscriptionCreated, entries[0].EventType)

	_, err = handler.Handle(ctx, SubscriptionHistoryQuery{SubscriptionID: uuid.New()})
	require.ErrorIs(t, err, domain.ErrSubscriptionNotFound)
}

func TestPlanQueries(t *testing.T) {
	ctx := context.Background()
	env := apptest.New(t)
	short := env.SeedPlan(t, 7, true)
	env.SeedPlan(t, 30, true)
	env.SeedPlan(t, 90, false)

	plans, err := NewListActivePlansHandler(env.Plans).Handle(ctx)
	require.NoError(t, err)
	require.Len(t, plans, 2)
	assert.Equal(t, short, plans[0].ID)

	userID := env.SeedUser(t, true)
	myPlan := NewMyPlanHandler(env.Subs, env.Plans, newReconciler(env), env.Clock)
	_, err = myPlan.Handle(ctx, MyPlanQuery{UserID: userID})
	require.ErrorIs(t, err, domain.ErrNoActiveSubscriptions)

	store(t, env, userID, short, true)
	plan, err := myPlan.Handle(ctx, MyPlanQuery{UserID: userID})
	require.NoError(t, err)
	assert.Equal(t, short, plan.ID)
	assert.Equal(t, 7, plan.DurationDays)
}

func TestPaymentsHandler(t *testing.T) {
	ctx := context.Background()
	env := apptest.New(t)
	owner := env.SeedUser(t, true)
	sub := store(t, env, owner, env.SeedPlan(t, 30, true), false)
	payment, err := domain.NewPayment(sub.ID(), decimal.RequireFromString("12.5"), domain.PaymentMethodCard,
		domain.PaymentStatusPending, json.RawMessage(`{"last4":"4242"}`), env.Clock.Now())
	require.NoError(t, err)
	require.NoError(t, env.Payments.Create(ctx, payment))
	handler := NewPaymentsHandler(env.Payments, env.Subs)

	all, err := handler.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "12.5", all[0].Amount, "amounts are not rounded")

	mine, err := handler.ListMine(ctx, owner)
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	theirs, err := handler.ListMine(ctx, env.SeedUser(t, true))
	require.NoError(t, err)
	assert.Empty(t, theirs)

	dto, err := handler.Get(ctx, GetPaymentQuery{Principal: &domain.Principal{UserID: owner}, PaymentID: payment.ID()})
	require.NoError(t, err)
	assert.JSONEq(t, `{"last4":"4242"}`, string(dto.Details))

	_, err = handler.Get(ctx, GetPaymentQuery{Principal: &domain.Principal{UserID: uuid.New()}, PaymentID: payment.ID()})
	require.ErrorIs(t, err, domain.ErrNotSubscriptionOwner)

	_, err = handler.Get(ctx, GetPaymentQuery{Principal: &domain.Principal{UserID: uuid.New(), Role: domain.RoleAdmin}, PaymentID: payment.ID()})
	require.NoError(t, err)

	_, err = handler.Get(ctx, GetPaymentQuery{PaymentID: payment.ID()})
	require.ErrorIs(t, err, domain.ErrAuthenticationRequired)

	_, err = handler.Get(ctx, GetPaymentQuery{Principal: &domain.Principal{UserID: owner}, PaymentID: uuid.New()})
	require.ErrorIs(t, err, domain.ErrPaymentNotFound)
}
