package domain

import (
	"time"

	sharedDomain "github.com/felixgeelhaar/screenpass/internal/shared/domain"
	"github.com/google/uuid"
)

// Subscription is a time-bounded entitlement linking a user to a plan.
//
// The status and end date observed when the aggregate was loaded are kept
// so the store can apply writes as compare-and-set updates.
type Subscription struct {
	sharedDomain.BaseAggregateRoot
	userID    uuid.UUID
	planID    uuid.UUID
	status    Status
	startDate time.Time
	endDate   time.Time
	autoRenew bool

	loadedStatus Status
	loadedEnd    time.Time
}

// NewSubscription creates a PENDING subscription running from now for the
// base lifetime.
func NewSubscription(userID, planID uuid.UUID, autoRenew bool, now time.Time, baseLifetime time.Duration) *Subscription {
	now = now.UTC()
	s := &Subscription{
		BaseAggregateRoot: sharedDomain.NewBaseAggregateRoot(now),
		userID:            userID,
		planID:            planID,
		status:            StatusPending,
		startDate:         now,
		endDate:           now.Add(baseLifetime),
		autoRenew:         autoRenew,
	}
	s.AddDomainEvent(NewSubscriptionCreated(s, now))
	return s
}

// RehydrateSubscription recreates a subscription from persisted state.
func RehydrateSubscription(
	id, userID, planID uuid.UUID,
	status Status,
	startDate, endDate time.Time,
	autoRenew bool,
	createdAt, updatedAt time.Time,
) *Subscription {
	entity := sharedDomain.RehydrateBaseEntity(id, createdAt, updatedAt)
	return &Subscription{
		BaseAggregateRoot: sharedDomain.RehydrateBaseAggregateRoot(entity),
		userID:            userID,
		planID:            planID,
		status:            status,
		startDate:         startDate.UTC(),
		endDate:           endDate.UTC(),
		autoRenew:         autoRenew,
		loadedStatus:      status,
		loadedEnd:         endDate.UTC(),
	}
}

func (s *Subscription) UserID() uuid.UUID    { return s.userID }
func (s *Subscription) PlanID() uuid.UUID    { return s.planID }
func (s *Subscription) Status() Status       { return s.status }
func (s *Subscription) StartDate() time.Time { return s.startDate }
func (s *Subscription) EndDate() time.Time   { return s.endDate }
func (s *Subscription) AutoRenew() bool      { return s.autoRenew }
func (s *Subscription) IsLive() bool         { return s.status.IsLive() }

// Loaded returns the status and end date the aggregate was read with.
func (s *Subscription) Loaded() (Status, time.Time) {
	return s.loadedStatus, s.loadedEnd
}

// MarkPersisted records the current state as the stored state.
func (s *Subscription) MarkPersisted() {
	s.loadedStatus = s.status
	s.loadedEnd = s.endDate
}

// IsDue reports whether reconciliation must look at the subscription.
func (s *Subscription) IsDue(now time.Time) bool {
	return (s.status == StatusActive || s.status == StatusExpired) && !s.endDate.After(now)
}

// GrantsAccess reports whether the subscription entitles its user at now.
func (s *Subscription) GrantsAccess(now time.Time) bool {
	return s.status == StatusActive && s.endDate.After(now)
}

// Activate moves a PENDING subscription to ACTIVE. Dates are kept. An
// already ACTIVE subscription is left alone and reports false.
func (s *Subscription) Activate(now time.Time) (bool, error) {
	if s.status == StatusActive {
		return false, nil
	}
	if s.status != StatusPending {
		return false, ErrInvalidTransition
	}
	s.status = StatusActive
	s.Touch(now)
	s.AddDomainEvent(NewSubscriptionActivated(s, now))
	return true, nil
}

// Renew starts a new cycle of durationDays from now.
func (s *Subscription) Renew(now time.Time, durationDays int) error {
	if s.status != StatusActive && s.status != StatusExpired {
		return ErrInvalidTransition
	}
	now = now.UTC()
	s.status = StatusActive
	s.startDate = now
	s.endDate = now.AddDate(0, 0, durationDays)
	s.Touch(now)
	s.AddDomainEvent(NewSubscriptionRenewed(s, now))
	return nil
}

// Expire marks an elapsed ACTIVE subscription EXPIRED, keeping its dates.
// An EXPIRED subscription reports false.
func (s *Subscription) Expire(now time.Time) (bool, error) {
	if s.status == StatusExpired {
		return false, nil
	}
	if s.status != StatusActive {
		return false, ErrInvalidTransition
	}
	s.status = StatusExpired
	s.Touch(now)
	s.AddDomainEvent(NewSubscriptionExpired(s, ExpiryReasonElapsed, now))
	return true, nil
}

// Cancel terminates a live subscription at now.
func (s *Subscription) Cancel(now time.Time) error {
	if !s.status.IsLive() {
		return ErrInvalidTransition
	}
	now = now.UTC()
	s.status = StatusCanceled
	s.autoRenew = false
	s.endDate = now
	if s.startDate.After(now) {
		s.startDate = now
	}
	s.Touch(now)
	s.AddDomainEvent(NewSubscriptionCanceled(s, now))
	return nil
}

// SoftDelete marks the subscription EXPIRED on behalf of an admin and
// turns renewal off so reconciliation never revives it.
// Deleting an EXPIRED subscription reports false.
func (s *Subscription) SoftDelete(now time.Time) (bool, error) {
	switch s.status {
	case StatusExpired:
		return false, nil
	case StatusCanceled:
		return false, ErrSubscriptionCanceled
	}
	s.status = StatusExpired
	s.autoRenew = false
	s.Touch(now)
	s.AddDomainEvent(NewSubscriptionExpired(s, ExpiryReasonDeleted, now))
	return true, nil
}

// SetAutoRenew changes renewal. Turning it off closes the current cycle
// one base lifetime from now.
func (s *Subscription) SetAutoRenew(autoRenew bool, now time.Time, baseLifetime time.Duration) error {
	return s.Amend(Amendment{AutoRenew: &autoRenew}, 0, now, baseLifetime)
}

// Amendment lists the fields an admin may change. Nil fields are kept.
type Amendment struct {
	UserID    *uuid.UUID
	PlanID    *uuid.UUID
	Status    *Status
	StartDate *time.Time
	EndDate   *time.Time
	AutoRenew *bool
}

// IsEmpty reports whether no field is set.
func (a Amendment) IsEmpty() bool {
	return a.UserID == nil && a.PlanID == nil && a.Status == nil &&
		a.StartDate == nil && a.EndDate == nil && a.AutoRenew == nil
}

// RecomputesEnd reports whether the end date follows from the plan.
func (a Amendment) RecomputesEnd() bool {
	return (a.PlanID != nil || a.StartDate != nil) && a.EndDate == nil
}

// Amend applies an amendment. When the plan or start date changes without
// an explicit end date, the end becomes start plus planDays. Disabling
// renewal without an explicit end date closes the cycle one base lifetime
// from now, and takes precedence.
func (s *Subscription) Amend(a Amendment, planDays int, now time.Time, baseLifetime time.Duration) error {
	if a.IsEmpty() {
		return ErrNothingToUpdate
	}
	if s.status == StatusCanceled {
		return ErrSubscriptionCanceled
	}
	if a.Status != nil && !a.Status.IsValid() {
		return ErrInvalidStatus
	}

	next := *s
	if a.UserID != nil {
		next.userID = *a.UserID
	}
	if a.PlanID != nil {
		next.planID = *a.PlanID
	}
	if a.Status != nil {
		next.status = *a.Status
	}
	if a.StartDate != nil {
		next.startDate = a.StartDate.UTC()
	}
	if a.EndDate != nil {
		next.endDate = a.EndDate.UTC()
	}
	if a.RecomputesEnd() {
		next.endDate = next.startDate.AddDate(0, 0, planDays)
	}
	if a.AutoRenew != nil {
		next.autoRenew = *a.AutoRenew
		if !*a.AutoRenew && a.EndDate == nil {
			next.endDate = now.UTC().Add(baseLifetime)
		}
	}
	if next.endDate.Before(next.startDate) {
		return ErrInvalidDateRange
	}

	s.userID = next.userID
	s.planID = next.planID
	s.status = next.status
	s.startDate = next.startDate
	s.endDate = next.endDate
	s.autoRenew = next.autoRenew
	s.Touch(now)
	s.AddDomainEvent(NewSubscriptionUpdated(s, now))
	return nil
}
