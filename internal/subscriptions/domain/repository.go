package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ListFilter selects subscriptions for admin listings.
type ListFilter string

const (
	ListAll      ListFilter = "all"
	ListActive   ListFilter = "active"
	ListInactive ListFilter = "inactive"
)

// ParseListFilter maps a query value to a filter; empty means all.
func ParseListFilter(s string) (ListFilter, error) {
	switch ListFilter(s) {
	case "", ListAll:
		return ListAll, nil
	case ListActive, ListInactive:
		return ListFilter(s), nil
	}
	return "", ErrInvalidStatus
}

// Statuses returns the statuses a filter selects, nil meaning all.
func (f ListFilter) Statuses() []Status {
	switch f {
	case ListActive:
		return []Status{StatusActive}
	case ListInactive:
		return []Status{StatusExpired, StatusCanceled, StatusPending}
	default:
		return nil
	}
}

// SubscriptionRepository persists subscriptions. Finders return nil when
// nothing matches; listings are ordered newest first.
type SubscriptionRepository interface {
	Create(ctx context.Context, sub *Subscription) error
	// Update writes sub only if the stored status and end date still equal
	// the ones sub was loaded with. It reports false when they do not.
	Update(ctx context.Context, sub *Subscription) (bool, error)
	FindByID(ctx context.Context, id uuid.UUID) (*Subscription, error)
	FindLatestByUser(ctx context.Context, userID uuid.UUID) (*Subscription, error)
	FindLatestLiveByUser(ctx context.Context, userID uuid.UUID) (*Subscription, error)
	FindByUser(ctx context.Context, userID uuid.UUID, statuses ...Status) ([]*Subscription, error)
	// FindDue returns ACTIVE or EXPIRED subscriptions ending at or before
	// now, optionally restricted to one user.
	FindDue(ctx context.Context, now time.Time, userID *uuid.UUID) ([]*Subscription, error)
	// List returns subscriptions of active users in the given statuses.
	List(ctx context.Context, statuses ...Status) ([]*Subscription, error)
}

// PaymentRepository persists payments.
type PaymentRepository interface {
	Create(ctx context.Context, payment *Payment) error
	Update(ctx context.Context, payment *Payment) error
	FindByID(ctx context.Context, id uuid.UUID) (*Payment, error)
	FindBySubscription(ctx context.Context, subscriptionID uuid.UUID) ([]*Payment, error)
	FindByUser(ctx context.Context, userID uuid.UUID) ([]*Payment, error)
	List(ctx context.Context) ([]*Payment, error)
}

// HistoryEntry is one recorded lifecycle event of a subscription.
type HistoryEntry struct {
	ID             uuid.UUID `json:"id"`
	EventID        uuid.UUID `json:"event_id"`
	SubscriptionID uuid.UUID `json:"subscription_id"`
	UserID         uuid.UUID `json:"user_id"`
	EventType      string    `json:"event_type"`
	Status         Status    `json:"status"`
	OccurredAt     time.Time `json:"occurred_at"`
	RecordedAt     time.Time `json:"recorded_at"`
}

// HistoryRepository stores the subscription audit trail.
type HistoryRepository interface {
	// Append stores entry unless its event id is already recorded, and
	// reports whether it was stored.
	Append(ctx context.Context, entry HistoryEntry) (bool, error)
	FindBySubscription(ctx context.Context, subscriptionID uuid.UUID) ([]HistoryEntry, error)
}
