package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/felixgeelhaar/screenpass/internal/subscriptions/application/commands"
	"github.com/felixgeelhaar/screenpass/internal/subscriptions/application/queries"
	"github.com/felixgeelhaar/screenpass/internal/subscriptions/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type recordPaymentRequest struct {
	SubscriptionID *string          `json:"subscription_id"`
	Amount         *decimal.Decimal `json:"amount"`
	PaymentMethod  string           `json:"payment_method"`
	Status         string           `json:"status"`
	PaymentDetails json.RawMessage  `json:"payment_details"`
}

type updatePaymentRequest struct {
	Status string `json:"status"`
}

// RecordPayment records a payment against one of the caller's
// subscriptions. A COMPLETED payment activates a PENDING subscription.
func (h *Handler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	principal, err := requirePrincipal(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	var req recordPaymentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if req.SubscriptionID == nil {
		writeError(w, h.logger, fmt.Errorf("%w: subscription_id is required", domain.ErrBadRequest))
		return
	}
	if req.Amount == nil {
		writeError(w, h.logger, domain.ErrInvalidAmount)
		return
	}
	subID, err := uuid.Parse(*req.SubscriptionID)
	if err != nil {
		writeError(w, h.logger, fmt.Errorf("%w: invalid subscription_id", domain.ErrBadRequest))
		return
	}

	payment, err := h.cfg.RecordPayment.Handle(r.Context(), commands.RecordPaymentCommand{
		Principal:      principal,
		SubscriptionID: subID,
		Amount:         *req.Amount,
		Method:         req.PaymentMethod,
		Status:         req.Status,
		Details:        req.PaymentDetails,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeData(w, http.StatusCreated, "payment recorded", queries.NewPaymentDTO(payment))
}

func (h *Handler) ListPayments(w http.ResponseWriter, r *http.Request) {
	if _, err := requireAdmin(r); err != nil {
		writeError(w, h.logger, err)
		return
	}

	payments, err := h.cfg.Payments.List(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, "", payments)
}

// MyPayments lists payments on the caller's subscriptions.
func (h *Handler) MyPayments(w http.ResponseWriter, r *http.Request) {
	principal, err := requirePrincipal(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	payments, err := h.cfg.Payments.ListMine(r.Context(), principal.UserID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, "", payments)
}

// GetPayment returns one payment to its owner or an admin.
func (h *Handler) GetPayment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	payment, err := h.cfg.Payments.Get(r.Context(), queries.GetPaymentQuery{
		Principal: PrincipalFromContext(r.Context()),
		PaymentID: id,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, "", payment)
}

// UpdatePaymentStatus moves a payment to a new status.
func (h *Handler) UpdatePaymentStatus(w http.ResponseWriter, r *http.Request) {
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

	var req updatePaymentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	payment, err := h.cfg.UpdatePaymentStatus.Handle(r.Context(), commands.UpdatePaymentStatusCommand{
		PaymentID: id,
		Status:    req.Status,
		ActorID:   admin.UserID,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, "payment updated", queries.NewPaymentDTO(payment))
}
