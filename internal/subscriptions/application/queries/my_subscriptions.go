package queries

import (
	"context"

	sharedApplication "github.com/felixgeelhaar/screenpass/internal/shared/application"
	"github.com/felixgeelhaar/screenpass/internal/subscriptions/application/services"
	"github.com/felixgeelhaar/screenpass/internal/subscriptions/domain"
	"github.com/google/uuid"
)

// MySubscriptionsQuery selects the caller's subscriptions.
type MySubscriptionsQuery struct {
	UserID uuid.UUID
}

// MySubscriptionsHandler answers the caller's active and historical
// subscriptions.
type MySubscriptionsHandler struct {
	subs       domain.SubscriptionRepository
	details    details
	reconciler *services.Reconciler
	clock      sharedApplication.Clock
}

// NewMySubscriptionsHandler creates a new MySubscriptionsHandler.
func NewMySubscriptionsHandler(
	subs domain.SubscriptionRepository,
	plans domain.PlanCatalog,
	payments domain.PaymentRepository,
	reconciler *services.Reconciler,
	clock sharedApplication.Clock,
) *MySubscriptionsHandler {
	return &MySubscriptionsHandler{
		subs:       subs,
		details:    details{plans: plans, payments: payments},
		reconciler: reconciler,
		clock:      clock,
	}
}

// Active returns the caller's ACTIVE subscriptions.
func (h *MySubscriptionsHandler) Active(ctx context.Context, query MySubscriptionsQuery) ([]SubscriptionDTO, error) {
	subs, err := h.find(ctx, query.UserID, domain.StatusActive)
	if err != nil {
		return nil, err
	}
	if len(subs) == 0 {
		return nil, domain.ErrNoActiveSubscriptions
	}
	return h.details.expand(ctx, subs)
}

// History returns the caller's EXPIRED and CANCELED subscriptions.
func (h *MySubscriptionsHandler) History(ctx context.Context, query MySubscriptionsQuery) ([]SubscriptionDTO, error) {
	subs, err := h.find(ctx, query.UserID, domain.StatusExpired, domain.StatusCanceled)
	if err != nil {
		return nil, err
	}
	if len(subs) == 0 {
		return nil, domain.ErrNoSubscriptionHistory
	}
	return h.details.expand(ctx, subs)
}

func (h *MySubscriptionsHandler) find(ctx context.Context, userID uuid.UUID, statuses ...domain.Status) ([]*domain.Subscription, error) {
	if _, err := h.reconciler.ReconcileUser(ctx, userID, h.clock.Now()); err != nil {
		return nil, err
	}
	return h.subs.FindByUser(ctx, userID, statuses...)
}

// SubscriptionHistoryQuery selects the audit trail of one subscription.
type SubscriptionHistoryQuery struct {
	SubscriptionID uuid.UUID
}

// SubscriptionHistoryHandler handles the SubscriptionHistoryQuery.
type SubscriptionHistoryHandler struct {
	subs    domain.SubscriptionRepository
	history domain.HistoryRepository
}

// NewSubscriptionHistoryHandler creates a new SubscriptionHistoryHandler.
func NewSubscriptionHistoryHandler(subs domain.SubscriptionRepository, history domain.HistoryRepository) *SubscriptionHistoryHandler {
	return &SubscriptionHistoryHandler{subs: subs, history: history}
}

// Handle returns the recorded lifecycle events, oldest first.
func (h *SubscriptionHistoryHandler) Handle(ctx context.Context, query SubscriptionHistoryQuery) ([]domain.HistoryEntry, error) {
	sub, err := h.subs.FindByID(ctx, query.SubscriptionID)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, domain.ErrSubscriptionNotFound
	}

	entries, err := h.history.FindBySubscription(ctx, query.SubscriptionID)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []domain.HistoryEntry{}
	}
	return entries, nil
}
