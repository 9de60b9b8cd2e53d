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

// DeleteSubscriptionCommand soft deletes a subscription.
type DeleteSubscriptionCommand struct {
	SubscriptionID uuid.UUID
	ActorID        uuid.UUID
}

// DeleteSubscriptionHandler handles the DeleteSubscriptionCommand.
type DeleteSubscriptionHandler struct {
	subs       domain.SubscriptionRepository
	outboxRepo outbox.Repository
	uow        sharedApplication.UnitOfWork
	reconciler *services.Reconciler
	clock      sharedApplication.Clock
	metrics    observability.Metrics
}

// NewDeleteSubscriptionHandler creates a new DeleteSubscriptionHandler.
func NewDeleteSubscriptionHandler(
	subs domain.SubscriptionRepository,
	outboxRepo outbox.Repository,
	uow sharedApplication.UnitOfWork,
	reconciler *services.Reconciler,
	clock sharedApplication.Clock,
	metrics observability.Metrics,
) *DeleteSubscriptionHandler {
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	return &DeleteSubscriptionHandler{
		subs:       subs,
		outboxRepo: outboxRepo,
		uow:        uow,
		reconciler: reconciler,
		clock:      clock,
		metrics:    metrics,
	}
}

// Handle marks the subscription EXPIRED. Deleting an EXPIRED subscription
// succeeds without writing.
func (h *DeleteSubscriptionHandler) Handle(ctx context.Context, cmd DeleteSubscriptionCommand) (*domain.Subscription, error) {
	now := h.clock.Now()
	if err := reconcileByID(ctx, h.subs, h.reconciler, cmd.SubscriptionID, now); err != nil {
		return nil, err
	}

	var deleted bool
	sub, err := sharedApplication.WithUnitOfWorkResult(ctx, h.uow, func(txCtx context.Context) (*domain.Subscription, error) {
		sub, err := h.subs.FindByID(txCtx, cmd.SubscriptionID)
		if err != nil {
			return nil, err
		}
		if sub == nil {
			return nil, domain.ErrSubscriptionNotFound
		}

		if deleted, err = sub.SoftDelete(now); err != nil || !deleted {
			return sub, err
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

	if deleted {
		h.metrics.Counter(observability.MetricSubscriptionsDeleted, 1)
	}
	return sub, nil
}
