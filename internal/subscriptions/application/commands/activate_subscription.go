package commands

import (
	"context"

	sharedApplication "github.com/felixgeelhaar/screenpass/internal/shared/application"
	"github.com/felixgeelhaar/screenpass/internal/shared/infrastructure/outbox"
	"github.com/felixgeelhaar/screenpass/internal/subscriptions/application/services"
	"github.com/felixgeelhaar/screenpass/internal/subscriptions/domain"
	"github.com/google/uuid"
)

// ActivateSubscriptionCommand activates a subscription after payment.
type ActivateSubscriptionCommand struct {
	SubscriptionID uuid.UUID
	ActorID        uuid.UUID
}

// ActivateSubscriptionHandler handles the ActivateSubscriptionCommand.
type ActivateSubscriptionHandler struct {
	subs       domain.SubscriptionRepository
	outboxRepo outbox.Repository
	uow        sharedApplication.UnitOfWork
	clock      sharedApplication.Clock
}

// NewActivateSubscriptionHandler creates a new ActivateSubscriptionHandler.
func NewActivateSubscriptionHandler(
	subs domain.SubscriptionRepository,
	outboxRepo outbox.Repository,
	uow sharedApplication.UnitOfWork,
	clock sharedApplication.Clock,
) *ActivateSubscriptionHandler {
	return &ActivateSubscriptionHandler{
		subs:       subs,
		outboxRepo: outboxRepo,
		uow:        uow,
		clock:      clock,
	}
}

// Handle moves a PENDING subscription to ACTIVE. Activating an ACTIVE
// subscription changes nothing. It joins the unit of work open in ctx.
func (h *ActivateSubscriptionHandler) Handle(ctx context.Context, cmd ActivateSubscriptionCommand) (*domain.Subscription, error) {
	return sharedApplication.WithUnitOfWorkResult(ctx, h.uow, func(txCtx context.Context) (*domain.Subscription, error) {
		sub, err := h.subs.FindByID(txCtx, cmd.SubscriptionID)
		if err != nil {
			return nil, err
		}
		if sub == nil {
			return nil, domain.ErrSubscriptionNotFound
		}

		changed, err := sub.Activate(h.clock.Now())
		if err != nil {
			return nil, err
		}
		if !changed {
			return sub, nil
		}

		if err := update(txCtx, h.subs, sub); err != nil {
			return nil, err
		}
		if err := services.RecordEvents(txCtx, h.outboxRepo, cmd.ActorID, sub); err != nil {
			return nil, err
		}
		return sub, nil
	})
}
