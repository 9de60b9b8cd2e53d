package domain

import "errors"

// Error kinds. Every error returned by the subscriptions context wraps one
// of these so transports can map it without knowing the specific cause.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrBadRequest   = errors.New("bad request")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
)

type kindError struct {
	kind error
	msg  string
}

func (e *kindError) Error() string { return e.msg }
func (e *kindError) Unwrap() error { return e.kind }

func newError(kind error, msg string) error {
	return &kindError{kind: kind, msg: msg}
}

var (
	ErrSubscriptionNotFound   = newError(ErrNotFound, "subscription not found")
	ErrNoLiveSubscription     = newError(ErrNotFound, "no live subscription found")
	ErrNoActiveSubscriptions  = newError(ErrNotFound, "no active subscriptions found")
	ErrNoSubscriptionHistory  = newError(ErrNotFound, "no expired or canceled subscriptions found")
	ErrUserNotFound           = newError(ErrNotFound, "user not found")
	ErrPlanNotFound           = newError(ErrNotFound, "plan not found")
	ErrContentNotFound        = newError(ErrNotFound, "content not found")
	ErrPaymentNotFound        = newError(ErrNotFound, "payment not found")
	ErrAlreadySubscribed      = newError(ErrConflict, "user already holds a live subscription to this plan")
	ErrUserHasLiveSub         = newError(ErrConflict, "user already holds another live subscription")
	ErrInvalidTransition      = newError(ErrConflict, "subscription status transition not allowed")
	ErrSubscriptionCanceled   = newError(ErrConflict, "canceled subscriptions cannot change")
	ErrPaymentRegression      = newError(ErrConflict, "completed payment cannot return to pending")
	ErrConcurrentModification = newError(ErrConflict, "subscription was modified concurrently")
	ErrNothingToUpdate        = newError(ErrBadRequest, "no fields to update")
	ErrAutoRenewRequired      = newError(ErrBadRequest, "only auto_renew can be updated and it is required")
	ErrUserIDRequired         = newError(ErrBadRequest, "user_id is required for admin callers")
	ErrInvalidDateRange       = newError(ErrBadRequest, "end_date must not be before start_date")
	ErrInvalidStatus          = newError(ErrBadRequest, "invalid subscription status")
	ErrInvalidAmount          = newError(ErrBadRequest, "amount must be a non-negative decimal")
	ErrInvalidPaymentMethod   = newError(ErrBadRequest, "invalid payment method")
	ErrInvalidPaymentStatus   = newError(ErrBadRequest, "invalid payment status")
	ErrInvalidPaymentDetails  = newError(ErrBadRequest, "payment details must be a JSON object")
	ErrAuthenticationRequired = newError(ErrUnauthorized, "authentication required")
	ErrAdminRequired          = newError(ErrForbidden, "admin role required")
	ErrNotSubscriptionOwner   = newError(ErrForbidden, "subscription belongs to another user")
	ErrEntitlementRequired    = newError(ErrForbidden, "an active subscription is required")
)

// Kind names used on the wire.
const (
	KindNotFound     = "not_found"
	KindConflict     = "conflict"
	KindBadRequest   = "bad_request"
	KindForbidden    = "forbidden"
	KindUnauthorized = "unauthorized"
	KindInternal     = "internal"
)

// KindOf classifies err. Errors outside the taxonomy are internal.
func KindOf(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrConflict):
		return KindConflict
	case errors.Is(err, ErrBadRequest):
		return KindBadRequest
	case errors.Is(err, ErrForbidden):
		return KindForbidden
	case errors.Is(err, ErrUnauthorized):
		return KindUnauthorized
	default:
		return KindInternal
	}
}
