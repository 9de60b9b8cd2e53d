package services

import (
	"context"
	"testing"
	"time"

	"github.com/felixgeelhaar/screenpass/internal/subscriptions/application/apptest"
	"github.com/felixgeelhaar/screenpass/internal/subscriptions/domain"
	"github.com/felixgeelhaar/screenpass/pkg/observability"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGate(env *apptest.Env) *EntitlementGate {
	return NewEntitlementGate(env.Contents, env.Subs, newTestReconciler(env), env.Metrics, nil)
}

func TestEntitlementGate_FreeContentNeedsNoPrincipal(t *testing.T) {
	env := apptest.New(t)
	gate := newTestGate(env)
	contentID := env.SeedContent(t, domain.SubscriptionTypeFree)

	decision, err := gate.Check(context.Background(), nil, contentID, env.Clock.Now())
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
	assert.Equal(t, ReasonFreeContent, decision.Reason)
	assert.Equal(t, int64(1), env.Metrics.GetCounter(observability.MetricEntitlementChecks,
		observability.T(observability.ResultKey, "allowed"),
		observability.T("reason", ReasonFreeContent)))
}

func TestEntitlementGate_UnknownContent(t *testing.T) {
	env := apptest.New(t)
	gate := newTestGate(env)

	_, err := gate.Check(context.Background(), nil, uuid.New(), env.Clock.Now())
	require.ErrorIs(t, err, domain.ErrContentNotFound)
}

func TestEntitlementGate_PremiumContent(t *testing.T) {
	ctx := context.Background()

	t.Run("anonymous", func(t *testing.T) {
		env := apptest.New(t)
		contentID := env.SeedContent(t, domain.SubscriptionTypePremium)

		decision, err := newTestGate(env).Check(ctx, nil, contentID, env.Clock.Now())
		require.ErrorIs(t, err, domain.ErrAuthenticationRequired)
		assert.False(t, decision.Allowed)
		assert.Equal(t, ReasonUnauthenticated, decision.Reason)
	})

	t.Run("no subscription", func(t *testing.T) {
		env := apptest.New(t)
		contentID := env.SeedContent(t, domain.SubscriptionTypePremium)
		principal := &domain.Principal{UserID: env.SeedUser(t, true), Role: domain.RoleUser}

		decision, err := newTestGate(env).Check(ctx, principal, contentID, env.Clock.Now())
		require.ErrorIs(t, err, domain.ErrEntitlementRequired)
		assert.Equal(t, ReasonNoSubscription, decision.Reason)
		assert.Nil(t, decision.SubscriptionID)
	})

	t.Run("pending payment", func(t *testing.T) {
		env := apptest.New(t)
		contentID := env.SeedContent(t, domain.SubscriptionTypePremium)
		userID := env.SeedUser(t, true)
		sub := domain.NewSubscription(userID, env.SeedPlan(t, 30, true), true, env.Clock.Now(), time.Minute)
		require.NoError(t, env.Subs.Create(ctx, sub))

		decision, err := newTestGate(env).Check(ctx, &domain.Principal{UserID: userID}, contentID, env.Clock.Now())
		require.ErrorIs(t, err, domain.ErrEntitlementRequired)
		assert.Equal(t, ReasonPaymentPending, decision.Reason)
		assert.Equal(t, domain.StatusPending, decision.Status)
		require.NotNil(t, decision.SubscriptionID)
		assert.Equal(t, sub.ID(), *decision.SubscriptionID)
	})

	t.Run("active subscription", func(t *testing.T) {
		env := apptest.New(t)
		contentID := env.SeedContent(t, domain.SubscriptionTypePremium)
		userID := env.SeedUser(t, true)
		sub := seedActive(t, env, userID, env.SeedPlan(t, 30, true), false)

		decision, err := newTestGate(env).Check(ctx, &domain.Principal{UserID: userID}, contentID, env.Clock.Now())
		require.NoError(t, err)
		assert.True(t, decision.Allowed)
		assert.Equal(t, ReasonActiveSubscription, decision.Reason)
		assert.Equal(t, sub.ID(), *decision.SubscriptionID)
	})

	t.Run("elapsed subscription is expired before deciding", func(t *testing.T) {
		env := apptest.New(t)
		contentID := env.SeedContent(t, domain.SubscriptionTypePremium)
		userID := env.SeedUser(t, true)
		sub := seedActive(t, env, userID, env.SeedPlan(t, 30, true), false)
		env.Clock.Advance(2 * time.Minute)

		decision, err := newTestGate(env).Check(ctx, &domain.Principal{UserID: userID}, contentID, env.Clock.Now())
		require.ErrorIs(t, err, domain.ErrEntitlementRequired)
		assert.Equal(t, ReasonSubscriptionEnded, decision.Reason)
		assert.Equal(t, domain.StatusExpired, decision.Status)
		assert.Equal(t, domain.StatusExpired, reload(t, env, sub.ID()).Status())
	})

	t.Run("elapsed auto-renewing subscription is renewed before deciding", func(t *testing.T) {
		env := apptest.New(t)
		contentID := env.SeedContent(t, domain.SubscriptionTypePremium)
		userID := env.SeedUser(t, true)
		seedActive(t, env, userID, env.SeedPlan(t, 30, true), true)
		env.Clock.Advance(2 * time.Minute)

		decision, err := newTestGate(env).Check(ctx, &domain.Principal{UserID: userID}, contentID, env.Clock.Now())
		require.NoError(t, err)
		assert.True(t, decision.Allowed)
		assert.Equal(t, []string{domain.RoutingKeySubscriptionRenewed}, env.RoutingKeys(t))
	})
}

func TestEntitlementGate_Watch(t *testing.T) {
	env := apptest.New(t)
	ctx := context.Background()
	gate := newTestGate(env)
	userID := env.SeedUser(t, true)
	seedActive(t, env, userID, env.SeedPlan(t, 30, true), false)
	premium := env.SeedContent(t, domain.SubscriptionTypePremium)

	result, err := gate.Watch(ctx, &domain.Principal{UserID: userID}, premium, env.Clock.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.Content.ViewCount)

	result, err = gate.Watch(ctx, &domain.Principal{UserID: userID}, premium, env.Clock.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(2), result.Content.ViewCount)

	// Denied watches are not counted.
	_, err = gate.Watch(ctx, &domain.Principal{UserID: env.SeedUser(t, true)}, premium, env.Clock.Now())
	require.ErrorIs(t, err, domain.ErrEntitlementRequired)

	content, err := env.Contents.Get(ctx, premium)
	require.NoError(t, err)
	assert.Equal(t, int64(2), content.ViewCount)
}
