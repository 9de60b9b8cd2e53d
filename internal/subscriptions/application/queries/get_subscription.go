package queries

import (
	"context"

	sharedApplication "github.com/felixgeelhaar/screenpass/internal/shared/application"
	"github.com/felixgeelhaar/screenpass/internal/subscriptions/application/services"
	"github.com/felixgeelhaar/screenpass/internal/subscriptions/domain"
	"github.com/google/uuid"
)

// GetSubscriptionQuery contains the parameters for getting one subscription.
type GetSubscriptionQuery struct {
	SubscriptionID uuid.UUID
}

// GetSubscriptionHandler handles the GetSubscriptionQuery.
type GetSubscriptionHandler struct {
	subs       domain.SubscriptionRepository
	details    details
	reconciler *services.Reconciler
	clock      sharedApplication.Clock
}

// NewGetSubscriptionHandler creates a new GetSubscriptionHandler.
func NewGetSubscriptionHandler(
	subs domain.SubscriptionRepository,
	plans domain.PlanCatalog,
	payments domain.PaymentRepository,
	users domain.UserDirectory,
	reconciler *services.Reconciler,
	clock sharedApplication.Clock,
) *GetSubscriptionHandler {
	return &GetSubscriptionHandler{
		subs:       subs,
		details:    details{plans: plans, payments: payments, users: users},
		reconciler: reconciler,
		clock:      clock,
	}
}

// Handle returns the reconciled subscription with its plan, payments and
// owner.
func (h *GetSubscriptionHandler) Handle(ctx context.Context, query GetSubscriptionQuery) (*SubscriptionDTO, error) {
	sub, err := h.subs.FindByID(ctx, query.SubscriptionID)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, domain.ErrSubscriptionNotFound
	}

	sub, _, err = h.reconciler.ReconcileSubscription(ctx, sub, h.clock.Now())
	if err != nil {
		return nil, err
	}
	return h.details.one(ctx, sub)
}

// ListSubscriptionsQuery filters by "all", "active" or "inactive".
type ListSubscriptionsQuery struct {
	Filter string
}

// ListSubscriptionsHandler handles the ListSubscriptionsQuery.
type ListSubscriptionsHandler struct {
	subs       domain.SubscriptionRepository
	details    details
	reconciler *services.Reconciler
	clock      sharedApplication.Clock
}

// NewListSubscriptionsHandler creates a new ListSubscriptionsHandler.
func NewListSubscriptionsHandler(
	subs domain.SubscriptionRepository,
	plans domain.PlanCatalog,
	payments domain.PaymentRepository,
	users domain.UserDirectory,
	reconciler *services.Reconciler,
	clock sharedApplication.Clock,
) *ListSubscriptionsHandler {
	return &ListSubscriptionsHandler{
		subs:       subs,
		details:    details{plans: plans, payments: payments, users: users},
		reconciler: reconciler,
		clock:      clock,
	}
}

// Handle runs a due sweep and lists subscriptions of active users, newest
// first.
func (h *ListSubscriptionsHandler) Handle(ctx context.Context, query ListSubscriptionsQuery) ([]SubscriptionDTO, error) {
	filter, err := domain.ParseListFilter(query.Filter)
	if err != nil {
		return nil, err
	}
	if _, err := h.reconciler.ReconcileDue(ctx, h.clock.Now()); err != nil {
		return nil, err
	}

	subs, err := h.subs.List(ctx, filter.Statuses()...)
	if err != nil {
		return nil, err
	}
	return h.details.expand(ctx, subs)
}
