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

// DefaultBaseLifetime is how long a new subscription runs before its first
// reconciliation.
const DefaultBaseLifetime = time.Minute

// CreateSubscriptionCommand contains the data needed to subscribe a user.
type CreateSubscriptionCommand struct {
	Principal *domain.Principal
	// UserID is required for admins and ignored for everyone else.
	UserID    *uuid.UUID
	PlanID    uuid.UUID
	AutoRenew bool
}

// CreateSubscriptionHandler handles the CreateSubscriptionCommand.
type CreateSubscriptionHandler struct {
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

// NewCreateSubscriptionHandler creates a new CreateSubscriptionHandler.
func NewCreateSubscriptionHandler(
	subs domain.SubscriptionRepository,
	users domain.UserDirectory,
	plans domain.PlanCatalog,
	outboxRepo outbox.Repository,
	uow sharedApplication.UnitOfWork,
	reconciler *services.Reconciler,
	clock sharedApplication.Clock,
	metrics observability.Metrics,
	baseLifetime time.Duration,
) *CreateSubscriptionHandler {
	if baseLifetime <= 0 {
		baseLifetime = DefaultBaseLifetime
	}
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	return &CreateSubscriptionHandler{
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

// Handle creates a PENDING subscription. Any other live subscription of
// the user is canceled in the same unit of work.
func (h *CreateSubscriptionHandler) Handle(ctx context.Context, cmd CreateSubscriptionCommand) (*domain.Subscription, error) {
	if cmd.Principal == nil {
		return nil, domain.ErrAuthenticationRequired
	}
	userID := cmd.Principal.UserID
	if cmd.Principal.IsAdmin() {
		if cmd.UserID == nil {
			return nil, domain.ErrUserIDRequired
		}
		userID = *cmd.UserID
	}

	now := h.clock.Now()
	if _, err := h.reconciler.ReconcileUser(ctx, userID, now); err != nil {
		return nil, err
	}

	var replaced int
	sub, err := sharedApplication.WithUnitOfWorkResult(ctx, h.uow, func(txCtx context.Context) (*domain.Subscription, error) {
		active, err := h.users.ExistsAndActive(txCtx, userID)
		if err != nil {
			return nil, err
		}
		if !active {
			return nil, domain.ErrUserNotFound
		}

		plan, err := h.plans.Get(txCtx, cmd.PlanID)
		if err != nil {
			return nil, err
		}
		if plan == nil || !plan.IsActive {
			return nil, domain.ErrPlanNotFound
		}

		live, err := h.subs.FindByUser(txCtx, userID, domain.LiveStatuses...)
		if err != nil {
			return nil, err
		}
		for _, existing := range live {
			if existing.PlanID() == plan.ID {
				return nil, domain.ErrAlreadySubscribed
			}
		}

		sources := make([]services.EventSource, 0, len(live)+1)
		for _, existing := range live {
			if err := existing.Cancel(now); err != nil {
				return nil, err
			}
			if err := update(txCtx, h.subs, existing); err != nil {
				return nil, err
			}
			sources = append(sources, existing)
		}

		sub := domain.NewSubscription(userID, plan.ID, cmd.AutoRenew, now, h.baseLifetime)
		if err := h.subs.Create(txCtx, sub); err != nil {
			return nil, err
		}
		sources = append(sources, sub)

		if err := services.RecordEvents(txCtx, h.outboxRepo, cmd.Principal.UserID, sources...); err != nil {
			return nil, err
		}
		replaced = len(live)
		return sub, nil
	})
	if err != nil {
		return nil, err
	}

	h.metrics.Counter(observability.MetricSubscriptionsCreated, 1)
	if replaced > 0 {
		h.metrics.Counter(observability.MetricSubscriptionsCanceled, int64(replaced), observability.T("reason", "replaced"))
	}
	return sub, nil
}

// update writes sub and turns a lost compare-and-set into a conflict.
func update(ctx context.Context, subs domain.SubscriptionRepository, sub *domain.Subscription) error {
	ok, err := subs.Update(ctx, sub)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrConcurrentModification
	}
	return nil
}
