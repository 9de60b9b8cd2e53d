package queries

import (
	"encoding/json"
	"time"

	"github.com/felixgeelhaar/screenpass/internal/subscriptions/domain"
	"github.com/google/uuid"
)

// SubscriptionDTO is the read model of a subscription. Query handlers
// attach the plan and payments; admin reads also attach the owner.
type SubscriptionDTO struct {
	ID        uuid.UUID    `json:"id"`
	UserID    uuid.UUID    `json:"user_id"`
	PlanID    uuid.UUID    `json:"plan_id"`
	Status    string       `json:"status"`
	StartDate time.Time    `json:"start_date"`
	EndDate   time.Time    `json:"end_date"`
	AutoRenew bool         `json:"auto_renew"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
	Plan      *domain.Plan `json:"plan,omitempty"`
	Payments  []PaymentDTO `json:"payments,omitempty"`
	User      *domain.User `json:"user,omitempty"`
}

// NewSubscriptionDTO maps a subscription to its flat read model.
func NewSubscriptionDTO(sub *domain.Subscription) SubscriptionDTO {
	return SubscriptionDTO{
		ID:        sub.ID(),
		UserID:    sub.UserID(),
		PlanID:    sub.PlanID(),
		Status:    sub.Status().String(),
		StartDate: sub.StartDate(),
		EndDate:   sub.EndDate(),
		AutoRenew: sub.AutoRenew(),
		CreatedAt: sub.CreatedAt(),
		UpdatedAt: sub.UpdatedAt(),
	}
}

// PaymentDTO is the read model of a payment.
type PaymentDTO struct {
	ID             uuid.UUID       `json:"id"`
	SubscriptionID uuid.UUID       `json:"subscription_id"`
	Amount         string          `json:"amount"`
	Method         string          `json:"method"`
	Status         string          `json:"status"`
	Details        json.RawMessage `json:"details"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// NewPaymentDTO maps a payment to its read model.
func NewPaymentDTO(p *domain.Payment) PaymentDTO {
	return PaymentDTO{
		ID:             p.ID(),
		SubscriptionID: p.SubscriptionID(),
		Amount:         p.Amount().String(),
		Method:         string(p.Method()),
		Status:         string(p.Status()),
		Details:        p.Details(),
		CreatedAt:      p.CreatedAt(),
		UpdatedAt:      p.UpdatedAt(),
	}
}

func paymentDTOs(payments []*domain.Payment) []PaymentDTO {
	dtos := make([]PaymentDTO, 0, len(payments))
	for _, p := range payments {
		dtos = append(dtos, NewPaymentDTO(p))
	}
	return dtos
}
