package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/felixgeelhaar/screenpass/internal/shared/infrastructure/database"
	"github.com/felixgeelhaar/screenpass/internal/subscriptions/domain"
	"github.com/felixgeelhaar/screenpass/internal/subscriptions/infrastructure/sqlitetest"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2026, time.April, 1, 9, 0, 0, 0, time.UTC)

func TestSQLiteSubscriptionRepository_CreateAndFind(t *testing.T) {
	h := sqlitetest.New(t)
	repo := NewSQLiteSubscriptionRepository(h.Conn)
	ctx := context.Background()

	userID := h.SeedUser(t, true)
	planID := h.SeedPlan(t, 30, true)
	sub := domain.NewSubscription(userID, planID, true, base, time.Minute)
	require.NoError(t, repo.Create(ctx, sub))

	found, err := repo.FindByID(ctx, sub.ID())
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, userID, found.UserID())
	assert.Equal(t, planID, found.PlanID())
	assert.Equal(t, domain.StatusPending, found.Status())
	assert.True(t, found.StartDate().Equal(base))
	assert.True(t, found.EndDate().Equal(base.Add(time.Minute)))
	assert.True(t, found.AutoRenew())

	missing, err := repo.FindByID(ctx, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, missing)

	live, err := repo.FindLatestLiveByUser(ctx, userID)
	require.NoError(t, err)
	require.NotNil(t, live)
	assert.Equal(t, sub.ID(), live.ID())
}

func TestSQLiteSubscriptionRepository_OneLivePerUser(t *testing.T) {
	h := sqlitetest.New(t)
	repo := NewSQLiteSubscriptionRepository(h.Conn)
	ctx := context.Background()

	userID := h.SeedUser(t, true)
	planID := h.SeedPlan(t, 30, true)
	require.NoError(t, repo.Create(ctx, domain.NewSubscription(userID, planID, false, base, time.Minute)))

	err := repo.Create(ctx, domain.NewSubscription(userID, planID, false, base.Add(time.Second), time.Minute))
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestSQLiteSubscriptionRepository_CompareAndSet(t *testing.T) {
	h := sqlitetest.New(t)
	repo := NewSQLiteSubscriptionRepository(h.Conn)
	ctx := context.Background()

	userID := h.SeedUser(t, true)
	planID := h.SeedPlan(t, 30, true)
	sub := domain.NewSubscription(userID, planID, false, base, time.Minute)
	require.NoError(t, repo.Create(ctx, sub))
	_, err := sub.Activate(base)
	require.NoError(t, err)
	ok, err := repo.Update(ctx, sub)
	require.NoError(t, err)
	require.True(t, ok)

	first, err := repo.FindByID(ctx, sub.ID())
	require.NoError(t, err)
	second, err := repo.FindByID(ctx, sub.ID())
	require.NoError(t, err)

	now := base.Add(2 * time.Minute)
	_, err = first.Expire(now)
	require.NoError(t, err)
	ok, err = repo.Update(ctx, first)
	require.NoError(t, err)
	assert.True(t, ok)

	// second still carries the ACTIVE snapshot
	require.NoError(t, second.Renew(now, 30))
	ok, err = repo.Update(ctx, second)
	require.NoError(t, err)
	assert.False(t, ok)

	stored, err := repo.FindByID(ctx, sub.ID())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusExpired, stored.Status())
}

func TestSQLiteSubscriptionRepository_FindDue(t *testing.T) {
	h := sqlitetest.New(t)
	repo := NewSQLiteSubscriptionRepository(h.Conn)
	ctx := context.Background()
	planID := h.SeedPlan(t, 30, true)

	insert := func(status domain.Status, end time.Time) *domain.Subscription {
		sub := domain.RehydrateSubscription(uuid.New(), h.SeedUser(t, true), planID, status, base, end, false, base, base)
		require.NoError(t, repo.Create(ctx, sub))
		return sub
	}

	now := base.Add(time.Hour)
	dueActive := insert(domain.StatusActive, now)
	dueExpired := insert(domain.StatusExpired, base.Add(time.Minute))
	insert(domain.StatusActive, now.Add(time.Nanosecond))
	insert(domain.StatusCanceled, base)
	insert(domain.StatusPending, base)

	due, err := repo.FindDue(ctx, now, nil)
	require.NoError(t, err)
	ids := []uuid.UUID{}
	for _, s := range due {
		ids = append(ids, s.ID())
	}
	assert.ElementsMatch(t, []uuid.UUID{dueActive.ID(), dueExpired.ID()}, ids)

	userID := dueActive.UserID()
	mine, err := repo.FindDue(ctx, now, &userID)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, dueActive.ID(), mine[0].ID())
}

func TestSQLiteSubscriptionRepository_ListAndHistory(t *testing.T) {
	h := sqlitetest.New(t)
	repo := NewSQLiteSubscriptionRepository(h.Conn)
	ctx := context.Background()
	planID := h.SeedPlan(t, 30, true)

	userID := h.SeedUser(t, true)
	old := domain.RehydrateSubscription(uuid.New(), userID, planID, domain.StatusCanceled, base, base, false, base, base)
	current := domain.RehydrateSubscription(uuid.New(), userID, planID, domain.StatusActive, base, base.AddDate(0, 0, 30), false, base.Add(time.Hour), base.Add(time.Hour))
	require.NoError(t, repo.Create(ctx, old))
	require.NoError(t, repo.Create(ctx, current))

	inactiveUser := h.SeedUser(t, false)
	hidden := domain.RehydrateSubscription(uuid.New(), inactiveUser, planID, domain.StatusActive, base, base.AddDate(0, 0, 30), false, base, base)
	require.NoError(t, repo.Create(ctx, hidden))

	all, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, current.ID(), all[0].ID())

	active, err := repo.List(ctx, domain.ListActive.Statuses()...)
	require.NoError(t, err)
	require.Len(t, active, 1)

	history, err := repo.FindByUser(ctx, userID, domain.StatusExpired, domain.StatusCanceled)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, old.ID(), history[0].ID())

	latest, err := repo.FindLatestByUser(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, current.ID(), latest.ID())
}

func TestSQLiteSubscriptionRepository_JoinsUnitOfWork(t *testing.T) {
	h := sqlitetest.New(t)
	repo := NewSQLiteSubscriptionRepository(h.Conn)
	uow := database.NewUnitOfWork(h.Conn)
	ctx := context.Background()

	sub := domain.NewSubscription(h.SeedUser(t, true), h.SeedPlan(t, 30, true), false, base, time.Minute)
	txCtx, err := uow.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, repo.Create(txCtx, sub))
	require.NoError(t, uow.Rollback(txCtx))

	found, err := repo.FindByID(ctx, sub.ID())
	require.NoError(t, err)
	assert.Nil(t, found)
}
