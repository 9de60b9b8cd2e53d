package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/felixgeelhaar/screenpass/internal/subscriptions/application/commands"
	"github.com/felixgeelhaar/screenpass/internal/subscriptions/application/queries"
	"github.com/felixgeelhaar/screenpass/internal/subscriptions/domain"
)

type createSubscriptionRequest struct {
	UserID    *string `json:"user_id"`
	PlanID    *string `json:"plan_id"`
	AutoRenew bool    `json:"auto_renew"`
}

type updateSubscriptionRequest struct {
	UserID    *string    `json:"user_id"`
	PlanID    *string    `json:"plan_id"`
	Status    *string    `json:"status"`
	StartDate *time.Time `json:"start_date"`
	EndDate   *time.Time `json:"end_date"`
	AutoRenew *bool      `json:"auto_renew"`
}

func (req updateSubscriptionRequest) amendment() (domain.Amendment, error) {
	userID, err := parseOptionalUUID("user_id", req.UserID)
	if err != nil {
		return domain.Amendment{}, err
	}
	planID, err := parseOptionalUUID("plan_id", req.PlanID)
	if err != nil {
		return domain.Amendment{}, err
	}

	a := domain.Amendment{
		UserID:    userID,
		PlanID:    planID,
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
		AutoRenew: req.AutoRenew,
	}
	if req.Status != nil {
		status, err := domain.ParseStatus(*req.Status)
		if err != nil {
			return domain.Amendment{}, err
		}
		a.Status = &status
	}
	return a, nil
}

// CreateSubscription opens a PENDING subscription. Admins name the user,
// everyone else subscribes themselves.
func (h *Handler) CreateSubscription(w http.ResponseWriter, r *http.Request) {
	principal, err := requirePrincipal(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	var req createSubscriptionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if req.PlanID == nil {
		writeError(w, h.logger, fmt.Errorf("%w: plan_id is required", domain.ErrBadRequest))
		return
	}
	planID, err := parseOptionalUUID("plan_id", req.PlanID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	userID, err := parseOptionalUUID("user_id", req.UserID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	sub, err := h.cfg.CreateSubscription.Handle(r.Context(), commands.CreateSubscriptionCommand{
		Principal: principal,
		UserID:    userID,
		PlanID:    *planID,
		AutoRenew: req.AutoRenew,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeData(w, http.StatusCreated, "subscription created", queries.NewSubscriptionDTO(sub))
}

// ListSubscriptions lists subscriptions, optionally filtered by ?status=.
func (h *Handler) ListSubscriptions(w http.ResponseWriter, r *http.Request) {
	if _, err := requireAdmin(r); err != nil {
		writeError(w, h.logger, err)
		return
	}

	subs, err := h.cfg.ListSubscriptions.Handle(r.Context(), queries.ListSubscriptionsQuery{
		Filter: r.URL.Query().Get("status"),
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, "", subs)
}

func (h *Handler) GetSubscription(w http.ResponseWriter, r *http.Request) {
	if _, err := requireAdmin(r); err != nil {
		writeError(w, h.logger, err)
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	dto, err := h.cfg.GetSubscription.Handle(r.Context(), queries.GetSubscriptionQuery{SubscriptionID: id})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, "", dto)
}

// UpdateSubscription applies an admin amendment.
func (h *Handler) UpdateSubscription(w http.ResponseWriter, r *http.Request) {
	admin, err := requireAdmin(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	var req updateSubscriptionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	amendment, err := req.amendment()
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	sub, err := h.cfg.AdminUpdateSubscription.Handle(r.Context(), commands.AdminUpdateSubscriptionCommand{
		SubscriptionID: id,
		ActorID:        admin.UserID,
		Amendment:      amendment,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, "subscription updated", queries.NewSubscriptionDTO(sub))
}

// DeleteSubscription soft-deletes by marking the subscription EXPIRED.
func (h *Handler) DeleteSubscription(w http.ResponseWriter, r *http.Request) {
	admin, err := requireAdmin(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	sub, err := h.cfg.DeleteSubscription.Handle(r.Context(), commands.DeleteSubscriptionCommand{
		SubscriptionID: id,
		ActorID:        admin.UserID,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, "subscription deleted", queries.NewSubscriptionDTO(sub))
}

func (h *Handler) CancelSubscription(w http.ResponseWriter, r *http.Request) {
	admin, err := requireAdmin(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	sub, err := h.cfg.CancelSubscription.Handle(r.Context(), commands.CancelSubscriptionCommand{
		SubscriptionID: &id,
		ActorID:        admin.UserID,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, "subscription canceled", queries.NewSubscriptionDTO(sub))
}

func (h *Handler) SubscriptionHistory(w http.ResponseWriter, r *http.Request) {
	if _, err := requireAdmin(r); err != nil {
		writeError(w, h.logger, err)
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	entries, err := h.cfg.SubscriptionHistory.Handle(r.Context(), queries.SubscriptionHistoryQuery{SubscriptionID: id})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, "", entries)
}

// MyActiveSubscriptions lists the caller's ACTIVE subscriptions.
func (h *Handler) MyActiveSubscriptions(w http.ResponseWriter, r *http.Request) {
	principal, err := requirePrincipal(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	subs, err := h.cfg.MySubscriptions.Active(r.Context(), queries.MySubscriptionsQuery{UserID: principal.UserID})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, "", subs)
}

// MySubscriptionHistory lists the caller's ended subscriptions.
func (h *Handler) MySubscriptionHistory(w http.ResponseWriter, r *http.Request) {
	principal, err := requirePrincipal(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	subs, err := h.cfg.MySubscriptions.History(r.Context(), queries.MySubscriptionsQuery{UserID: principal.UserID})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, "", subs)
}

// UpdateMySubscription toggles auto-renew on the caller's live
// subscription. auto_renew is the only field accepted.
func (h *Handler) UpdateMySubscription(w http.ResponseWriter, r *http.Request) {
	principal, err := requirePrincipal(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	var body map[string]json.RawMessage
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, h.logger, err)
		return
	}
	var autoRenew *bool
	for field, raw := range body {
		if field != "auto_renew" {
			writeError(w, h.logger, domain.ErrAutoRenewRequired)
			return
		}
		if err := json.Unmarshal(raw, &autoRenew); err != nil || autoRenew == nil {
			writeError(w, h.logger, domain.ErrAutoRenewRequired)
			return
		}
	}

	sub, err := h.cfg.SelfUpdateSubscription.Handle(r.Context(), commands.SelfUpdateSubscriptionCommand{
		UserID:    principal.UserID,
		AutoRenew: autoRenew,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, "auto_renew updated", queries.NewSubscriptionDTO(sub))
}

// CancelMySubscription cancels the caller's live subscription.
func (h *Handler) CancelMySubscription(w http.ResponseWriter, r *http.Request) {
	principal, err := requirePrincipal(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	userID := principal.UserID
	sub, err := h.cfg.CancelSubscription.Handle(r.Context(), commands.CancelSubscriptionCommand{
		UserID:  &userID,
		ActorID: userID,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, "subscription canceled", queries.NewSubscriptionDTO(sub))
}
