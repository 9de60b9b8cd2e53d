package queries

import (
	"context"

	"github.com/felixgeelhaar/screenpass/internal/subscriptions/domain"
	"github.com/google/uuid"
)

// details expands subscriptions with their plan and payments. The owner
// summary is only attached when users is set.
type details struct {
	plans    domain.PlanCatalog
	payments domain.PaymentRepository
	users    domain.UserDirectory
}

// expand maps subs to read models, loading each plan and user once.
func (d details) expand(ctx context.Context, subs []*domain.Subscription) ([]SubscriptionDTO, error) {
	plans := map[uuid.UUID]*domain.Plan{}
	users := map[uuid.UUID]*domain.User{}

	dtos := make([]SubscriptionDTO, 0, len(subs))
	for _, sub := range subs {
		dto := NewSubscriptionDTO(sub)

		plan, ok := plans[sub.PlanID()]
		if !ok {
			var err error
			if plan, err = d.plans.Get(ctx, sub.PlanID()); err != nil {
				return nil, err
			}
			plans[sub.PlanID()] = plan
		}
		dto.Plan = plan

		payments, err := d.payments.FindBySubscription(ctx, sub.ID())
		if err != nil {
			return nil, err
		}
		dto.Payments = paymentDTOs(payments)

		if d.users != nil {
			user, ok := users[sub.UserID()]
			if !ok {
				if user, err = d.users.Get(ctx, sub.UserID()); err != nil {
					return nil, err
				}
				users[sub.UserID()] = user
			}
			dto.User = user
		}

		dtos = append(dtos, dto)
	}
	return dtos, nil
}

func (d details) one(ctx context.Context, sub *domain.Subscription) (*SubscriptionDTO, error) {
	dtos, err := d.expand(ctx, []*domain.Subscription{sub})
	if err != nil {
		return nil, err
	}
	return &dtos[0], nil
}
