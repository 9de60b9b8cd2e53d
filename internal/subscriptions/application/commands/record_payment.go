package commands

import (
	"context"
	"encoding/json"

	sharedApplication "github.com/felixgeelhaar/screenpass/internal/shared/application"
	"github.com/felixgeelhaar/screenpass/internal/shared/infrastructure/outbox"
	"github.com/felixgeelhaar/screenpass/internal/subscriptions/application/services"
	"github.com/felixgeelhaar/screenpass/internal/subscriptions/domain"
	"github.com/felixgeelhaar/screenpass/pkg/observability"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RecordPaymentCommand contains the data needed to record a payment.
type RecordPaymentCommand struct {
	Principal      *domain.Principal
	SubscriptionID uuid.UUID
	Amount         decimal.Decimal
	Method         string
	// Status defaults to PENDING.
	Status  string
	Details json.RawMessage
}

// RecordPaymentHandler handles the RecordPaymentCommand.
type RecordPaymentHandler struct {
	subs       domain.SubscriptionRepository
	payments   domain.PaymentRepository
	outboxRepo outbox.Repository
	uow        sharedApplication.UnitOfWork
	activate   *ActivateSubscriptionHandler
	clock      sharedApplication.Clock
	metrics    observability.Metrics
}

// NewRecordPaymentHandler creates a new RecordPaymentHandler.
func NewRecordPaymentHandler(
	subs domain.SubscriptionRepository,
	payments domain.PaymentRepository,
	outboxRepo outbox.Repository,
	uow sharedApplication.UnitOfWork,
	activate *ActivateSubscriptionHandler,
	clock sharedApplication.Clock,
	metrics observability.Metrics,
) *RecordPaymentHandler {
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	return &RecordPaymentHandler{
		subs:       subs,
		payments:   payments,
		outboxRepo: outboxRepo,
		uow:        uow,
		activate:   activate,
		clock:      clock,
		metrics:    metrics,
	}
}

// Handle records the payment. A COMPLETED payment activates its
// subscription in the same unit of work.
func (h *RecordPaymentHandler) Handle(ctx context.Context, cmd RecordPaymentCommand) (*domain.Payment, error) {
	if cmd.Principal == nil {
		return nil, domain.ErrAuthenticationRequired
	}
	now := h.clock.Now()

	payment, err := sharedApplication.WithUnitOfWorkResult(ctx, h.uow, func(txCtx context.Context) (*domain.Payment, error) {
		sub, err := h.subs.FindByID(txCtx, cmd.SubscriptionID)
		if err != nil {
			return nil, err
		}
		if sub == nil {
			return nil, domain.ErrSubscriptionNotFound
		}
		if !cmd.Principal.Owns(sub.UserID()) {
			return nil, domain.ErrNotSubscriptionOwner
		}

		method, err := domain.ParsePaymentMethod(cmd.Method)
		if err != nil {
			return nil, err
		}
		status, err := domain.ParsePaymentStatus(cmd.Status)
		if err != nil {
			return nil, err
		}
		payment, err := domain.NewPayment(sub.ID(), cmd.Amount, method, status, cmd.Details, now)
		if err != nil {
			return nil, err
		}

		if err := h.payments.Create(txCtx, payment); err != nil {
			return nil, err
		}
		if payment.IsCompleted() {
			if _, err := h.activate.Handle(txCtx, ActivateSubscriptionCommand{
				SubscriptionID: sub.ID(),
				ActorID:        cmd.Principal.UserID,
			}); err != nil {
				return nil, err
			}
		}
		if err := services.RecordEvents(txCtx, h.outboxRepo, cmd.Principal.UserID, payment); err != nil {
			return nil, err
		}
		return payment, nil
	})
	if err != nil {
		return nil, err
	}

	h.metrics.Counter(observability.MetricPaymentsRecorded, 1, observability.T("method", string(payment.Method())))
	if payment.IsCompleted() {
		h.metrics.Counter(observability.MetricPaymentsCompleted, 1)
	}
	return payment, nil
}
