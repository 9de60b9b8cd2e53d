package queries

import (
	"context"

	"github.com/felixgeelhaar/screenpass/internal/subscriptions/domain"
	"github.com/google/uuid"
)

// GetPaymentQuery contains the parameters for getting one payment.
type GetPaymentQuery struct {
	Principal *domain.Principal
	PaymentID uuid.UUID
}

// PaymentsHandler answers payment queries.
type PaymentsHandler struct {
	payments domain.PaymentRepository
	subs     domain.SubscriptionRepository
}

// NewPaymentsHandler creates a new PaymentsHandler.
func NewPaymentsHandler(payments domain.PaymentRepository, subs domain.SubscriptionRepository) *PaymentsHandler {
	return &PaymentsHandler{payments: payments, subs: subs}
}

// List returns every payment, newest first.
func (h *PaymentsHandler) List(ctx context.Context) ([]PaymentDTO, error) {
	payments, err := h.payments.List(ctx)
	if err != nil {
		return nil, err
	}
	return paymentDTOs(payments), nil
}

// ListMine returns the payments made against the user's subscriptions.
func (h *PaymentsHandler) ListMine(ctx context.Context, userID uuid.UUID) ([]PaymentDTO, error) {
	payments, err := h.payments.FindByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return paymentDTOs(payments), nil
}

// Get returns one payment. Non-admins only see their own.
func (h *PaymentsHandler) Get(ctx context.Context, query GetPaymentQuery) (*PaymentDTO, error) {
	if query.Principal == nil {
		return nil, domain.ErrAuthenticationRequired
	}

	payment, err := h.payments.FindByID(ctx, query.PaymentID)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, domain.ErrPaymentNotFound
	}

	if !query.Principal.IsAdmin() {
		sub, err := h.subs.FindByID(ctx, payment.SubscriptionID())
		if err != nil {
			return nil, err
		}
		if sub == nil || !query.Principal.Owns(sub.UserID()) {
			return nil, domain.ErrNotSubscriptionOwner
		}
	}

	dto := NewPaymentDTO(payment)
	return &dto, nil
}
