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

// UpdatePaymentStatusCommand moves a payment to a new status.
type UpdatePaymentStatusCommand struct {
	PaymentID uuid.UUID
	Status    string
	ActorID   uuid.UUID
}

// UpdatePaymentStatusHandler handles the UpdatePaymentStatusCommand.
type UpdatePaymentStatusHandler struct {
	payments   domain.PaymentRepository
	outboxRepo outbox.Repository
	uow        sharedApplication.UnitOfWork
	activate   *ActivateSubscriptionHandler
	clock      sharedApplication.Clock
	metrics    observability.Metrics
}

// NewUpdatePaymentStatusHandler creates a new UpdatePaymentStatusHandler.
func NewUpdatePaymentStatusHandler(
	payments domain.PaymentRepository,
	outboxRepo outbox.Repository,
	uow sharedApplication.UnitOfWork,
	activate *ActivateSubscriptionHandler,
	clock sharedApplication.Clock,
	metrics observability.Metrics,
) *UpdatePaymentStatusHandler {
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	return &UpdatePaymentStatusHandler{
		payments:   payments,
		outboxRepo: outboxRepo,
		uow:        uow,
		activate:   activate,
		clock:      clock,
		metrics:    metrics,
	}
}

// Handle updates the status. Reaching COMPLETED activates the
// subscription; re-applying COMPLETED does not touch it again.
func (h *UpdatePaymentStatusHandler) Handle(ctx context.Context, cmd UpdatePaymentStatusCommand) (*domain.Payment, error) {
	var completed bool
	payment, err := sharedApplication.WithUnitOfWorkResult(ctx, h.uow, func(txCtx context.Context) (*domain.Payment, error) {
		payment, err := h.payments.FindByID(txCtx, cmd.PaymentID)
		if err != nil {
			return nil, err
		}
		if payment == nil {
			return nil, domain.ErrPaymentNotFound
		}

		status, err := domain.ParsePaymentStatus(cmd.Status)
		if err != nil || cmd.Status == "" {
			return nil, domain.ErrInvalidPaymentStatus
		}
		if completed, err = payment.ChangeStatus(status, h.clock.Now()); err != nil {
			return nil, err
		}

		if err := h.payments.Update(txCtx, payment); err != nil {
			return nil, err
		}
		if completed {
			if _, err := h.activate.Handle(txCtx, ActivateSubscriptionCommand{
				SubscriptionID: payment.SubscriptionID(),
				ActorID:        cmd.ActorID,
			}); err != nil {
				return nil, err
			}
		}
		if err := services.RecordEvents(txCtx, h.outboxRepo, cmd.ActorID, payment); err != nil {
			return nil, err
		}
		return payment, nil
	})
	if err != nil {
		return nil, err
	}

	if completed {
		h.metrics.Counter(observability.MetricPaymentsCompleted, 1)
	}
	return payment, nil
}
