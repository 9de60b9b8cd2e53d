package queries

import (
	"context"

	sharedApplication "github.com/felixgeelhaar/screenpass/internal/shared/application"
	"github.com/felixgeelhaar/screenpass/internal/subscriptions/application/services"
	"github.com/felixgeelhaar/screenpass/internal/subscriptions/domain"
	"github.com/google/uuid"
)

// ListActivePlansHandler lists plans open for subscription.
type ListActivePlansHandler struct {
	plans domain.PlanCatalog
}

// NewListActivePlansHandler creates a new ListActivePlansHandler.
func NewListActivePlansHandler(plans domain.PlanCatalog) *ListActivePlansHandler {
	return &ListActivePlansHandler{plans: plans}
}

// Handle returns the active plans.
func (h *ListActivePlansHandler) Handle(ctx context.Context) ([]domain.Plan, error) {
	plans, err := h.plans.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	if plans == nil {
		plans = []domain.Plan{}
	}
	return plans, nil
}

// MyPlanQuery selects the plan of the caller's active subscription.
type MyPlanQuery struct {
	UserID uuid.UUID
}

// MyPlanHandler handles the MyPlanQuery.
type MyPlanHandler struct {
	subs       domain.SubscriptionRepository
	plans      domain.PlanCatalog
	reconciler *services.Reconciler
	clock      sharedApplication.Clock
}

// NewMyPlanHandler creates a new MyPlanHandler.
func NewMyPlanHandler(subs domain.SubscriptionRepository, plans domain.PlanCatalog, reconciler *services.Reconciler, clock sharedApplication.Clock) *MyPlanHandler {
	return &MyPlanHandler{subs: subs, plans: plans, reconciler: reconciler, clock: clock}
}

// Handle returns the plan of the latest ACTIVE subscription.
func (h *MyPlanHandler) Handle(ctx context.Context, query MyPlanQuery) (*domain.Plan, error) {
	if _, err := h.reconciler.ReconcileUser(ctx, query.UserID, h.clock.Now()); err != nil {
		return nil, err
	}

	active, err := h.subs.FindByUser(ctx, query.UserID, domain.StatusActive)
	if err != nil {
		return nil, err
	}
	if len(active) == 0 {
		return nil, domain.ErrNoActiveSubscriptions
	}

	plan, err := h.plans.Get(ctx, active[0].PlanID())
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, domain.ErrPlanNotFound
	}
	return plan, nil
}
