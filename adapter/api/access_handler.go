package api

import (
	"fmt"
	"net/http"

	"github.com/felixgeelhaar/screenpass/internal/subscriptions/application/queries"
	"github.com/felixgeelhaar/screenpass/internal/subscriptions/domain"
	"github.com/google/uuid"
)

// ListPlans lists the plans open for subscription. No principal needed.
func (h *Handler) ListPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := h.cfg.ListActivePlans.Handle(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, "", plans)
}

// MyPlan returns the plan behind the caller's ACTIVE subscription.
func (h *Handler) MyPlan(w http.ResponseWriter, r *http.Request) {
	principal, err := requirePrincipal(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	plan, err := h.cfg.MyPlan.Handle(r.Context(), queries.MyPlanQuery{UserID: principal.UserID})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, "", plan)
}

// CheckAccess reports the entitlement decision without counting a view.
// Denials carry the decision so clients can tell why.
func (h *Handler) CheckAccess(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	decision, err := h.cfg.Gate.Check(r.Context(), PrincipalFromContext(r.Context()), id, h.cfg.Clock.Now())
	if err != nil {
		kind := domain.KindOf(err)
		if decision.Reason == "" || kind == domain.KindInternal {
			writeError(w, h.logger, err)
			return
		}
		writeJSON(w, statusFor(kind), Envelope{Success: false, Message: err.Error(), Data: decision, Error: kind})
		return
	}
	writeData(w, http.StatusOK, "", decision)
}

// WatchContent serves content to an entitled caller and counts the view.
func (h *Handler) WatchContent(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	result, err := h.cfg.Gate.Watch(r.Context(), PrincipalFromContext(r.Context()), id, h.cfg.Clock.Now())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, "", result)
}

// Reconcile sweeps due subscriptions, or one user's with ?user_id=.
func (h *Handler) Reconcile(w http.ResponseWriter, r *http.Request) {
	if _, err := requireAdmin(r); err != nil {
		writeError(w, h.logger, err)
		return
	}

	now := h.cfg.Clock.Now()
	raw := r.URL.Query().Get("user_id")
	if raw == "" {
		report, err := h.cfg.Reconciler.ReconcileDue(r.Context(), now)
		if err != nil {
			writeError(w, h.logger, err)
			return
		}
		writeData(w, http.StatusOK, "reconciled", report)
		return
	}

	userID, err := uuid.Parse(raw)
	if err != nil {
		writeError(w, h.logger, fmt.Errorf("%w: invalid user_id", domain.ErrBadRequest))
		return
	}
	report, err := h.cfg.Reconciler.ReconcileUser(r.Context(), userID, now)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, "reconciled", report)
}
