package commands

import (
	"context"
	"time"

	sharedApplication "github.com/felixgeelhaar/screenpass/internal/shared/application"
	"github.com/felixgeelhaar/screenpass/internal/shared/infrastructure/outbox"
	"github.com/felixgeelhaar/screenpass/internal/subscriptions/application/services"
	"github.com/felixgeelhaar/screenpass/internal/subscriptions/domain"
	"github.com/felixgeelhaar/screenpass/pkg/observability"
	"github.com/google/uuid"
)

// AdminUpdateSubscriptionCommand amends any field of a subscription.
type AdminUpdateSubscriptionCommand struct {
	SubscriptionID uuid.UUID
	ActorID        uuid.UUID
	Amendment      domain.Amendment
}

// AdminUpdateSubscriptionHandler handles the AdminUpdateSubscriptionCommand.
type AdminUpdateSubscriptionHandler struct {
	subs         domain.SubscriptionRepository
	users        domain.UserDirectory
	plans        domain.PlanCatalog
	outboxRepo   outbox.Repository
	uow          sharedApplication.UnitOfWork
	reconciler   *services.Reconciler
	clock        sharedApplication.Clock
	metrics      observability.Metrics
	baseLifetime time.Duration
}

// NewAdminUpdateSubscriptionHandler creates a new AdminUpdateSubscriptionHandler.
func NewAdminUpdateSubscriptionHandler(
	subs domain.SubscriptionRepository,
	users domain.UserDirectory,
	plans domain.PlanCatalog,
	outboxRepo outbox.Repository,
	uow sharedApplication.UnitOfWork,
	reconciler *services.Reconciler,
	clock sharedApplication.Clock,
	metrics observability.Metrics,
	baseLifetime time.Duration,
) *AdminUpdateSubscriptionHandler {
	if baseLifetime <= 0 {
		baseLifetime = DefaultBaseLifetime
	}
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	return &AdminUpdateSubscriptionHandler{
		subs:         subs,
		users:        users,
		plans:        plans,
		outboxRepo:   outboxRepo,
		uow:          uow,
		reconciler:   reconciler,
		clock:        clock,
		metrics:      metrics,
		baseLifetime: baseLifetime,
	}
}

// Handle applies the amendment after reconciling the subscription.
func (h *AdminUpdateSubscriptionHandler) Handle(ctx context.Context, cmd AdminUpdateSubscriptionCommand) (*domain.Subscription, error) {
	a := cmd.Amendment
	if a.IsEmpty() {
		return nil, domain.ErrNothingToUpdate
	}

	now := h.clock.Now()
	if err := reconcileByID(ctx, h.subs, h.reconciler, cmd.SubscriptionID, now); err != nil {
		return nil, err
	}

	sub, err := sharedApplication.WithUnitOfWorkResult(ctx, h.uow, func(txCtx context.Context) (*domain.Subscription, error) {
		sub, err := h.subs.FindByID(txCtx, cmd.SubscriptionID)
		if err != nil {
			return nil, err
		}
		if sub == nil {
			return nil, domain.ErrSubscriptionNotFound
		}
		if sub.Status() == domain.StatusCanceled {
			return nil, domain.ErrSubscriptionCanceled
		}

		if a.UserID != nil {
			exists, err := h.users.Exists(txCtx, *a.UserID)
			if err != nil {
				return nil, err
			}
			if !exists {
				return nil, domain.ErrUserNotFound
			}
		}

		var planDays int
		if a.PlanID != nil || a.RecomputesEnd() {
			planID := sub.PlanID()
			if a.PlanID != nil {
				planID = *a.PlanID
			}
			plan, err := h.plans.Get(txCtx, planID)
			if err != nil {
				return nil, err
			}
			if plan == nil || (a.PlanID != nil && !plan.IsActive) {
				return nil, domain.ErrPlanNotFound
			}
			planDays = plan.DurationDays
		}

		if err := sub.Amend(a, planDays, now, h.baseLifetime); err != nil {
			return nil, err
		}

		if sub.IsLive() {
			live, err := h.subs.FindLatestLiveByUser(txCtx, sub.UserID())
			if err != nil {
				return nil, err
			}
			if live != nil && live.ID() != sub.ID() {
				return nil, domain.ErrUserHasLiveSub
			}
		}

		if err := update(txCtx, h.subs, sub); err != nil {
			return nil, err
		}
		if err := services.RecordEvents(txCtx, h.outboxRepo, cmd.ActorID, sub); err != nil {
			return nil, err
		}
		return sub, nil
	})
	if err != nil {
		return nil, err
	}

	h.metrics.Counter(observability.MetricSubscriptionsUpdated, 1, observability.T("by", "admin"))
	return sub, nil
}

// SelfUpdateSubscriptionCommand lets a user toggle renewal of their own
// subscription. AutoRenew is the only field and it is required.
type SelfUpdateSubscriptionCommand struct {
	UserID    uuid.UUID
	AutoRenew *bool
}

// SelfUpdateSubscriptionHandler handles the SelfUpdateSubscriptionCommand.
type SelfUpdateSubscriptionHandler struct {
	subs         domain.SubscriptionRepository
	outboxRepo   outbox.Repository
	uow          sharedApplication.UnitOfWork
	reconciler   *services.Reconciler
	clock        sharedApplication.Clock
	metrics      observability.Metrics
	baseLifetime time.Duration
}

// NewSelfUpdateSubscriptionHandler creates a new SelfUpdateSubscriptionHandler.
func NewSelfUpdateSubscriptionHandler(
	subs domain.SubscriptionRepository,
	outboxRepo outbox.Repository,
	uow sharedApplication.UnitOfWork,
	reconciler *services.Reconciler,
	clock sharedApplication.Clock,
	metrics observability.Metrics,
	baseLifetime time.Duration,
) *SelfUpdateSubscriptionHandler {
	if baseLifetime <= 0 {
		baseLifetime = DefaultBaseLifetime
	}
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	return &SelfUpdateSubscriptionHandler{
		subs:         subs,
		outboxRepo:   outboxRepo,
		uow:          uow,
		reconciler:   reconciler,
		clock:        clock,
		metrics:      metrics,
		baseLifetime: baseLifetime,
	}
}

// Handle updates the user's latest live subscription, or the latest one
// of any status when none is live.
func (h *SelfUpdateSubscriptionHandler) Handle(ctx context.Context, cmd SelfUpdateSubscriptionCommand) (*domain.Subscription, error) {
	if cmd.AutoRenew == nil {
		return nil, domain.ErrAutoRenewRequired
	}

	now := h.clock.Now()
	if _, err := h.reconciler.ReconcileUser(ctx, cmd.UserID, now); err != nil {
		return nil, err
	}

	sub, err := sharedApplication.WithUnitOfWorkResult(ctx, h.uow, func(txCtx context.Context) (*domain.Subscription, error) {
		sub, err := h.subs.FindLatestLiveByUser(txCtx, cmd.UserID)
		if err != nil {
			return nil, err
		}
		if sub == nil {
			if sub, err = h.subs.FindLatestByUser(txCtx, cmd.UserID); err != nil {
				return nil, err
			}
		}
		if sub == nil {
			return nil, domain.ErrSubscriptionNotFound
		}

		if err := sub.SetAutoRenew(*cmd.AutoRenew, now, h.baseLifetime); err != nil {
			return nil, err
		}
		if err := update(txCtx, h.subs, sub); err != nil {
			return nil, err
		}
		if err := services.RecordEvents(txCtx, h.outboxRepo, cmd.UserID, sub); err != nil {
			return nil, err
		}
		return sub, nil
	})
	if err != nil {
		return nil, err
	}

	h.metrics.Counter(observability.MetricSubscriptionsUpdated, 1, observability.T("by", "owner"))
	return sub, nil
}

// reconcileByID reconciles one subscription if it exists. A missing
// subscription is reported by the caller's own lookup.
func reconcileByID(ctx context.Context, subs domain.SubscriptionRepository, reconciler *services.Reconciler, id uuid.UUID, now time.Time) error {
	sub, err := subs.FindByID(ctx, id)
	if err != nil || sub == nil {
		return err
	}
	_, _, err = reconciler.ReconcileSubscription(ctx, sub, now)
	return err
}
