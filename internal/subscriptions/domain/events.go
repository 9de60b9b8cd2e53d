package domain

import (
	"time"

	sharedDomain "github.com/felixgeelhaar/screenpass/internal/shared/domain"
	"github.com/google/uuid"
)

const (
	SubscriptionAggregateType = "Subscription"
	PaymentAggregateType      = "Payment"
)

// Routing keys.
const (
	RoutingKeySubscriptionCreated   = "subscriptions.subscription.created"
	RoutingKeySubscriptionActivated = "subscriptions.subscription.activated"
	RoutingKeySubscriptionRenewed   = "subscriptions.subscription.renewed"
	RoutingKeySubscriptionExpired   = "subscriptions.subscription.expired"
	RoutingKeySubscriptionCanceled  = "subscriptions.subscription.canceled"
	RoutingKeySubscriptionUpdated   = "subscriptions.subscription.updated"
	RoutingKeyPaymentRecorded       = "subscriptions.payment.recorded"
	RoutingKeyPaymentCompleted      = "subscriptions.payment.completed"
)

// SubscriptionRoutingKeys lists the keys carrying a SubscriptionState payload.
var SubscriptionRoutingKeys = []string{
	RoutingKeySubscriptionCreated,
	RoutingKeySubscriptionActivated,
	RoutingKeySubscriptionRenewed,
	RoutingKeySubscriptionExpired,
	RoutingKeySubscriptionCanceled,
	RoutingKeySubscriptionUpdated,
}

// SubscriptionState is the payload shared by subscription events.
type SubscriptionState struct {
	SubscriptionID uuid.UUID `json:"subscription_id"`
	UserID         uuid.UUID `json:"user_id"`
	PlanID         uuid.UUID `json:"plan_id"`
	Status         Status    `json:"status"`
	StartDate      time.Time `json:"start_date"`
	EndDate        time.Time `json:"end_date"`
	AutoRenew      bool      `json:"auto_renew"`
}

func stateOf(s *Subscription) SubscriptionState {
	return SubscriptionState{
		SubscriptionID: s.ID(),
		UserID:         s.userID,
		PlanID:         s.planID,
		Status:         s.status,
		StartDate:      s.startDate,
		EndDate:        s.endDate,
		AutoRenew:      s.autoRenew,
	}
}

func subscriptionEvent(s *Subscription, routingKey string, now time.Time) sharedDomain.BaseEvent {
	return sharedDomain.NewBaseEvent(s.ID(), SubscriptionAggregateType, routingKey, now)
}

// SubscriptionCreated is emitted when a PENDING subscription is created.
type SubscriptionCreated struct {
	sharedDomain.BaseEvent
	SubscriptionState
}

func NewSubscriptionCreated(s *Subscription, now time.Time) *SubscriptionCreated {
	return &SubscriptionCreated{
		BaseEvent:         subscriptionEvent(s, RoutingKeySubscriptionCreated, now),
		SubscriptionState: stateOf(s),
	}
}

// SubscriptionActivated is emitted when a completed payment activates a subscription.
type SubscriptionActivated struct {
	sharedDomain.BaseEvent
	SubscriptionState
}

func NewSubscriptionActivated(s *Subscription, now time.Time) *SubscriptionActivated {
	return &SubscriptionActivated{
		BaseEvent:         subscriptionEvent(s, RoutingKeySubscriptionActivated, now),
		SubscriptionState: stateOf(s),
	}
}

// SubscriptionRenewed is emitted when reconciliation starts a new cycle.
type SubscriptionRenewed struct {
	sharedDomain.BaseEvent
	SubscriptionState
}

func NewSubscriptionRenewed(s *Subscription, now time.Time) *SubscriptionRenewed {
	return &SubscriptionRenewed{
		BaseEvent:         subscriptionEvent(s, RoutingKeySubscriptionRenewed, now),
		SubscriptionState: stateOf(s),
	}
}

// Expiry reasons.
const (
	ExpiryReasonElapsed = "elapsed"
	ExpiryReasonDeleted = "deleted"
)

// SubscriptionExpired is emitted when a subscription becomes EXPIRED.
type SubscriptionExpired struct {
	sharedDomain.BaseEvent
	SubscriptionState
	Reason string `json:"reason"`
}

func NewSubscriptionExpired(s *Subscription, reason string, now time.Time) *SubscriptionExpired {
	return &SubscriptionExpired{
		BaseEvent:         subscriptionEvent(s, RoutingKeySubscriptionExpired, now),
		SubscriptionState: stateOf(s),
		Reason:            reason,
	}
}

// SubscriptionCanceled is emitted on explicit cancellation.
type SubscriptionCanceled struct {
	sharedDomain.BaseEvent
	SubscriptionState
}

func NewSubscriptionCanceled(s *Subscription, now time.Time) *SubscriptionCanceled {
	return &SubscriptionCanceled{
		BaseEvent:         subscriptionEvent(s, RoutingKeySubscriptionCanceled, now),
		SubscriptionState: stateOf(s),
	}
}

// SubscriptionUpdated is emitted after an admin or self update.
type SubscriptionUpdated struct {
	sharedDomain.BaseEvent
	SubscriptionState
}

func NewSubscriptionUpdated(s *Subscription, now time.Time) *SubscriptionUpdated {
	return &SubscriptionUpdated{
		BaseEvent:         subscriptionEvent(s, RoutingKeySubscriptionUpdated, now),
		SubscriptionState: stateOf(s),
	}
}

// PaymentState is the payload of payment events. Details are never published.
type PaymentState struct {
	PaymentID      uuid.UUID     `json:"payment_id"`
	SubscriptionID uuid.UUID     `json:"subscription_id"`
	Amount         string        `json:"amount"`
	Method         PaymentMethod `json:"method"`
	Status         PaymentStatus `json:"status"`
}

// PaymentRecorded is emitted when a payment is created.
type PaymentRecorded struct {
	sharedDomain.BaseEvent
	PaymentState
}

func NewPaymentRecorded(p *Payment, now time.Time) *PaymentRecorded {
	return &PaymentRecorded{
		BaseEvent:    sharedDomain.NewBaseEvent(p.ID(), PaymentAggregateType, RoutingKeyPaymentRecorded, now),
		PaymentState: paymentStateOf(p),
	}
}

// PaymentCompleted is emitted when a payment reaches COMPLETED.
type PaymentCompleted struct {
	sharedDomain.BaseEvent
	PaymentState
}

func NewPaymentCompleted(p *Payment, now time.Time) *PaymentCompleted {
	return &PaymentCompleted{
		BaseEvent:    sharedDomain.NewBaseEvent(p.ID(), PaymentAggregateType, RoutingKeyPaymentCompleted, now),
		PaymentState: paymentStateOf(p),
	}
}

func paymentStateOf(p *Payment) PaymentState {
	return PaymentState{
		PaymentID:      p.ID(),
		SubscriptionID: p.subscriptionID,
		Amount:         p.amount.String(),
		Method:         p.method,
		Status:         p.status,
	}
}
