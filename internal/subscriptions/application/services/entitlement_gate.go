package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/felixgeelhaar/screenpass/internal/subscriptions/domain"
	"github.com/felixgeelhaar/screenpass/pkg/observability"
	"github.com/google/uuid"
)

// Decision reasons.
const (
	ReasonFreeContent        = "free_content"
	ReasonActiveSubscription = "active_subscription"
	ReasonNoSubscription     = "no_subscription"
	ReasonPaymentPending     = "payment_pending"
	ReasonSubscriptionEnded  = "subscription_ended"
	ReasonUnauthenticated    = "unauthenticated"
)

// Decision is the outcome of an entitlement check.
type Decision struct {
	Allowed        bool          `json:"allowed"`
	Reason         string        `json:"reason"`
	SubscriptionID *uuid.UUID    `json:"subscription_id,omitempty"`
	Status         domain.Status `json:"status,omitempty"`
}

// WatchResult is the content a successful watch unlocked.
type WatchResult struct {
	Content  *domain.Content `json:"content"`
	Decision Decision        `json:"decision"`
}

// EntitlementGate decides whether a caller may consume content. The
// decision is only made after the caller's subscription is reconciled.
type EntitlementGate struct {
	contents   domain.ContentCatalog
	subs       domain.SubscriptionRepository
	reconciler *Reconciler
	metrics    observability.Metrics
	logger     *slog.Logger
}

// NewEntitlementGate creates an EntitlementGate.
func NewEntitlementGate(
	contents domain.ContentCatalog,
	subs domain.SubscriptionRepository,
	reconciler *Reconciler,
	metrics observability.Metrics,
	logger *slog.Logger,
) *EntitlementGate {
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &EntitlementGate{
		contents:   contents,
		subs:       subs,
		reconciler: reconciler,
		metrics:    metrics,
		logger:     logger,
	}
}

// Check decides access to contentID. A denial is returned together with
// ErrAuthenticationRequired or ErrEntitlementRequired.
func (g *EntitlementGate) Check(ctx context.Context, principal *domain.Principal, contentID uuid.UUID, now time.Time) (Decision, error) {
	_, decision, err := g.check(ctx, principal, contentID, now)
	return decision, err
}

// Watch checks access and counts a view. A failure to count is logged and
// does not deny access.
func (g *EntitlementGate) Watch(ctx context.Context, principal *domain.Principal, contentID uuid.UUID, now time.Time) (*WatchResult, error) {
	content, decision, err := g.check(ctx, principal, contentID, now)
	if err != nil {
		return nil, err
	}

	if err := g.contents.IncrementViewCount(ctx, contentID); err != nil {
		g.logger.Warn("failed to count view", "content_id", contentID, "error", err)
	} else {
		content.ViewCount++
	}
	return &WatchResult{Content: content, Decision: decision}, nil
}

func (g *EntitlementGate) check(ctx context.Context, principal *domain.Principal, contentID uuid.UUID, now time.Time) (*domain.Content, Decision, error) {
	content, err := g.contents.Get(ctx, contentID)
	if err != nil {
		return nil, Decision{}, err
	}
	if content == nil {
		return nil, Decision{}, domain.ErrContentNotFound
	}

	if !content.IsPremium() {
		return content, g.allow(Decision{Allowed: true, Reason: ReasonFreeContent}), nil
	}
	if principal == nil {
		return nil, g.deny(Decision{Reason: ReasonUnauthenticated}), domain.ErrAuthenticationRequired
	}

	sub, err := g.subs.FindLatestByUser(ctx, principal.UserID)
	if err != nil {
		return nil, Decision{}, err
	}
	sub, _, err = g.reconciler.ReconcileSubscription(ctx, sub, now)
	if err != nil {
		return nil, Decision{}, err
	}
	if sub == nil {
		return nil, g.deny(Decision{Reason: ReasonNoSubscription}), domain.ErrEntitlementRequired
	}

	id := sub.ID()
	decision := Decision{SubscriptionID: &id, Status: sub.Status()}
	switch {
	case sub.GrantsAccess(now):
		decision.Allowed = true
		decision.Reason = ReasonActiveSubscription
		return content, g.allow(decision), nil
	case sub.Status() == domain.StatusPending:
		decision.Reason = ReasonPaymentPending
	default:
		decision.Reason = ReasonSubscriptionEnded
	}
	return nil, g.deny(decision), domain.ErrEntitlementRequired
}

func (g *EntitlementGate) allow(d Decision) Decision {
	g.metrics.Counter(observability.MetricEntitlementChecks, 1,
		observability.T(observability.ResultKey, "allowed"),
		observability.T("reason", d.Reason))
	return d
}

func (g *EntitlementGate) deny(d Decision) Decision {
	g.metrics.Counter(observability.MetricEntitlementChecks, 1,
		observability.T(observability.ResultKey, "denied"),
		observability.T("reason", d.Reason))
	return d
}
