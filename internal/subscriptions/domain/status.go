package domain

import "strings"

// Status is the lifecycle state of a subscription.
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusActive   Status = "ACTIVE"
	StatusExpired  Status = "EXPIRED"
	StatusCanceled Status = "CANCELED"
)

// LiveStatuses are the states of which a user may hold at most one.
var LiveStatuses = []Status{StatusPending, StatusActive}

// DueStatuses are swept by reconciliation once end_date has passed.
// EXPIRED is included so a renewal blocked by an inactive plan is retried.
var DueStatuses = []Status{StatusActive, StatusExpired}

// ParseStatus accepts any letter case.
func ParseStatus(s string) (Status, error) {
	status := Status(strings.ToUpper(strings.TrimSpace(s)))
	if !status.IsValid() {
		return "", ErrInvalidStatus
	}
	return status, nil
}

// IsValid reports whether s is a known status.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusActive, StatusExpired, StatusCanceled:
		return true
	default:
		return false
	}
}

// IsLive reports whether s is PENDING or ACTIVE.
func (s Status) IsLive() bool {
	return s == StatusPending || s == StatusActive
}

// IsTerminal reports whether nothing moves a subscription out of s.
func (s Status) IsTerminal() bool {
	return s == StatusCanceled
}

// CanTransitionTo encodes the lifecycle edges:
//
//	PENDING  -> ACTIVE    completed payment
//	ACTIVE   -> EXPIRED   time elapsed without renewal, or admin delete
//	PENDING  -> EXPIRED   admin delete
//	ACTIVE   -> ACTIVE    renewal
//	EXPIRED  -> ACTIVE    renewal retry, never after an admin delete
//	PENDING  -> CANCELED  explicit cancel
//	ACTIVE   -> CANCELED  explicit cancel
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusPending:
		return next == StatusActive || next == StatusExpired || next == StatusCanceled
	case StatusActive:
		return next == StatusActive || next == StatusExpired || next == StatusCanceled
	case StatusExpired:
		return next == StatusActive
	default:
		return false
	}
}

func (s Status) String() string { return string(s) }
