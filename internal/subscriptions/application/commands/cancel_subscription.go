package commands

import (
	"context"

	sharedApplication "github.com/felixgeelhaar/screenpass/internal/shared/application"
	"github.com/felixgeelhaar/screenpass/internal/shared/infrastructure/outbox"
	"github.com/felixgeelhaar/screenpass/internal/subscriptions/application/services"
	"github.com/felixgeelhaar/screenpass/internal/subscriptions/domain"
	"github.com/felixgeelhaar/screenpass/pkg/observability"
	"github.com/google/uuid"
)

// CancelSubscriptionCommand cancels either the caller's live subscription
// (UserID) or a specific one (SubscriptionID).
type CancelSubscriptionCommand struct {
	UserID         *uuid.UUID
	SubscriptionID *uuid.UUID
	ActorID        uuid.UUID
}

// CancelSubscriptionHandler handles the CancelSubscriptionCommand.
type CancelSubscriptionHandler struct {
	subs       domain.SubscriptionRepository
	outboxRepo outbox.Repository
	uow        sharedApplication.UnitOfWork
	reconciler *services.Reconciler
	clock      sharedApplication.Clock
	metrics    observability.Metrics
}

// NewCancelSubscriptionHandler creates a new CancelSubscriptionHandler.
func NewCancelSubscriptionHandler(
	subs domain.SubscriptionRepository,
	outboxRepo outbox.Repository,
	uow sharedApplication.UnitOfWork,
	reconciler *services.Reconciler,
	clock sharedApplication.Clock,
	metrics observability.Metrics,
) *CancelSubscriptionHandler {
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	return &CancelSubscriptionHandler{
		subs:       subs,
		outboxRepo: outboxRepo,
		uow:        uow,
		reconciler: reconciler,
		clock:      clock,
		metrics:    metrics,
	}
}

// Handle cancels the subscription. Canceled is terminal.
func (h *CancelSubscriptionHandler) Handle(ctx context.Context, cmd CancelSubscriptionCommand) (*domain.Subscription, error) {
	now := h.clock.Now()

	switch {
	case cmd.SubscriptionID != nil:
		if err := reconcileByID(ctx, h.subs, h.reconciler, *cmd.SubscriptionID, now); err != nil {
			return nil, err
		}
	case cmd.UserID != nil:
		if _, err := h.reconciler.ReconcileUser(ctx, *cmd.UserID, now); err != nil {
			return nil, err
		}
	default:
		return nil, domain.ErrUserIDRequired
	}

	sub, err := sharedApplication.WithUnitOfWorkResult(ctx, h.uow, func(txCtx context.Context) (*domain.Subscription, error) {
		sub, err := h.load(txCtx, cmd)
		if err != nil {
			return nil, err
		}
		if err := sub.Cancel(now); err != nil {
			return nil, err
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

	h.metrics.Counter(observability.MetricSubscriptionsCanceled, 1, observability.T("reason", "requested"))
	return sub, nil
}

func (h *CancelSubscriptionHandler) load(ctx context.Context, cmd CancelSubscriptionCommand) (*domain.Subscription, error) {
	if cmd.SubscriptionID != nil {
		sub, err := h.subs.FindByID(ctx, *cmd.SubscriptionID)
		if err != nil {
			return nil, err
		}
		if sub == nil {
			return nil, domain.ErrSubscriptionNotFound
		}
		return sub, nil
	}

	sub, err := h.subs.FindLatestLiveByUser(ctx, *cmd.UserID)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, domain.ErrNoLiveSubscription
	}
	return sub, nil
}
