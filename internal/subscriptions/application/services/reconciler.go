package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	sharedApplication "github.com/felixgeelhaar/screenpass/internal/shared/application"
	"github.com/felixgeelhaar/screenpass/internal/shared/infrastructure/outbox"
	"github.com/felixgeelhaar/screenpass/internal/subscriptions/domain"
	"github.com/felixgeelhaar/screenpass/pkg/observability"
	"github.com/google/uuid"
)

// Outcome is what reconciliation did to one subscription.
type Outcome string

const (
	OutcomeUnchanged Outcome = "unchanged"
	OutcomeRenewed   Outcome = "renewed"
	OutcomeExpired   Outcome = "expired"
	// OutcomeSkipped means another writer changed the row first.
	OutcomeSkipped Outcome = "skipped"
)

// ReconcileReport summarizes a reconciliation pass.
type ReconcileReport struct {
	Scanned int `json:"scanned"`
	Renewed int `json:"renewed"`
	Expired int `json:"expired"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// Changed returns the number of rows written.
func (r ReconcileReport) Changed() int {
	return r.Renewed + r.Expired
}

func (r *ReconcileReport) count(outcome Outcome) {
	switch outcome {
	case OutcomeRenewed:
		r.Renewed++
	case OutcomeExpired:
		r.Expired++
	case OutcomeSkipped:
		r.Skipped++
	}
}

// Reconciler brings subscriptions in line with elapsed time. Due
// subscriptions are renewed when auto-renew is on and the plan is still
// active, and expired otherwise.
//
// Every row is written in its own unit of work with a compare-and-set
// update, so concurrent passes converge and a failing row never affects
// the others.
type Reconciler struct {
	subs       domain.SubscriptionRepository
	plans      domain.PlanCatalog
	outboxRepo outbox.Repository
	uow        sharedApplication.UnitOfWork
	metrics    observability.Metrics
	logger     *slog.Logger
}

// NewReconciler creates a Reconciler.
func NewReconciler(
	subs domain.SubscriptionRepository,
	plans domain.PlanCatalog,
	outboxRepo outbox.Repository,
	uow sharedApplication.UnitOfWork,
	metrics observability.Metrics,
	logger *slog.Logger,
) *Reconciler {
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		subs:       subs,
		plans:      plans,
		outboxRepo: outboxRepo,
		uow:        uow,
		metrics:    metrics,
		logger:     logger.With("component", "reconciler"),
	}
}

// ReconcileDue reconciles every subscription due at now. It fails only
// when the due rows cannot be read.
func (r *Reconciler) ReconcileDue(ctx context.Context, now time.Time) (ReconcileReport, error) {
	return r.reconcileDue(ctx, now, nil)
}

// ReconcileUser reconciles the due subscriptions of one user.
func (r *Reconciler) ReconcileUser(ctx context.Context, userID uuid.UUID, now time.Time) (ReconcileReport, error) {
	return r.reconcileDue(ctx, now, &userID)
}

// ReconcileSubscription reconciles one loaded subscription and returns its
// current state. A subscription that is not due is returned as is.
func (r *Reconciler) ReconcileSubscription(ctx context.Context, sub *domain.Subscription, now time.Time) (*domain.Subscription, Outcome, error) {
	if sub == nil || !sub.IsDue(now) {
		return sub, OutcomeUnchanged, nil
	}

	outcome, err := r.reconcile(ctx, newPlanMemo(r.plans), sub, now)
	if err != nil {
		return nil, outcome, err
	}
	if metric, ok := outcomeMetric(outcome); ok {
		r.metrics.Counter(metric, 1)
	}
	if outcome != OutcomeSkipped {
		return sub, outcome, nil
	}

	current, err := r.subs.FindByID(ctx, sub.ID())
	if err != nil {
		return nil, outcome, err
	}
	if current == nil {
		return nil, outcome, domain.ErrSubscriptionNotFound
	}
	return current, outcome, nil
}

func (r *Reconciler) reconcileDue(ctx context.Context, now time.Time, userID *uuid.UUID) (ReconcileReport, error) {
	var report ReconcileReport
	start := time.Now()

	due, err := r.subs.FindDue(ctx, now, userID)
	if err != nil {
		return report, fmt.Errorf("find due subscriptions: %w", err)
	}

	memo := newPlanMemo(r.plans)
	for _, sub := range due {
		report.Scanned++
		outcome, err := r.reconcile(ctx, memo, sub, now)
		if err != nil {
			report.Failed++
			r.logger.Error("failed to reconcile subscription",
				"subscription_id", sub.ID(),
				"user_id", sub.UserID(),
				"status", sub.Status(),
				"error", err,
			)
			continue
		}
		report.count(outcome)
	}

	r.record(report, time.Since(start))
	if report.Changed() > 0 || report.Failed > 0 {
		r.logger.Info("reconciliation pass finished",
			"scanned", report.Scanned,
			"renewed", report.Renewed,
			"expired", report.Expired,
			"skipped", report.Skipped,
			"failed", report.Failed,
		)
	}
	return report, nil
}

func (r *Reconciler) reconcile(ctx context.Context, memo *planMemo, sub *domain.Subscription, now time.Time) (Outcome, error) {
	if !sub.IsDue(now) {
		return OutcomeUnchanged, nil
	}

	plan, err := memo.plan(ctx, sub.PlanID())
	if err != nil {
		return OutcomeUnchanged, err
	}
	renew := sub.AutoRenew() && plan != nil && plan.IsActive

	// An EXPIRED row is only revived while its user holds nothing else live.
	if renew && sub.Status() == domain.StatusExpired {
		live, err := r.subs.FindLatestLiveByUser(ctx, sub.UserID())
		if err != nil {
			return OutcomeUnchanged, err
		}
		if live != nil && live.ID() != sub.ID() {
			renew = false
		}
	}

	outcome := OutcomeExpired
	if renew {
		if err := sub.Renew(now, plan.DurationDays); err != nil {
			return OutcomeUnchanged, err
		}
		outcome = OutcomeRenewed
	} else {
		changed, err := sub.Expire(now)
		if err != nil {
			return OutcomeUnchanged, err
		}
		if !changed {
			return OutcomeUnchanged, nil
		}
	}

	err = sharedApplication.WithUnitOfWork(ctx, r.uow, func(txCtx context.Context) error {
		ok, err := r.subs.Update(txCtx, sub)
		if err != nil {
			return err
		}
		if !ok {
			outcome = OutcomeSkipped
			sub.ClearDomainEvents()
			return nil
		}
		return RecordEvents(txCtx, r.outboxRepo, uuid.Nil, sub)
	})
	if errors.Is(err, domain.ErrUserHasLiveSub) {
		r.logger.Warn("renewal blocked by another live subscription",
			"subscription_id", sub.ID(),
			"user_id", sub.UserID(),
		)
		return OutcomeSkipped, nil
	}
	if err != nil {
		return OutcomeUnchanged, err
	}
	return outcome, nil
}

func (r *Reconciler) record(report ReconcileReport, duration time.Duration) {
	r.metrics.Counter(observability.MetricReconcileRuns, 1)
	r.metrics.Timing(observability.MetricReconcileDuration, duration)
	if report.Renewed > 0 {
		r.metrics.Counter(observability.MetricReconcileRenewed, int64(report.Renewed))
	}
	if report.Expired > 0 {
		r.metrics.Counter(observability.MetricReconcileExpired, int64(report.Expired))
	}
	if report.Skipped > 0 {
		r.metrics.Counter(observability.MetricReconcileSkipped, int64(report.Skipped))
	}
	if report.Failed > 0 {
		r.metrics.Counter(observability.MetricReconcileFailed, int64(report.Failed))
	}
}

func outcomeMetric(outcome Outcome) (string, bool) {
	switch outcome {
	case OutcomeRenewed:
		return observability.MetricReconcileRenewed, true
	case OutcomeExpired:
		return observability.MetricReconcileExpired, true
	case OutcomeSkipped:
		return observability.MetricReconcileSkipped, true
	}
	return "", false
}

// planMemo memoizes plan lookups for the duration of one reconciliation.
type planMemo struct {
	catalog domain.PlanCatalog
	plans   map[uuid.UUID]*domain.Plan
}

func newPlanMemo(catalog domain.PlanCatalog) *planMemo {
	return &planMemo{catalog: catalog, plans: make(map[uuid.UUID]*domain.Plan)}
}

func (p *planMemo) plan(ctx context.Context, id uuid.UUID) (*domain.Plan, error) {
	if plan, ok := p.plans[id]; ok {
		return plan, nil
	}
	plan, err := p.catalog.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load plan %s: %w", id, err)
	}
	p.plans[id] = plan
	return plan, nil
}
