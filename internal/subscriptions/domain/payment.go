package domain

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	sharedDomain "github.com/felixgeelhaar/screenpass/internal/shared/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentMethod is how a payment was made.
type PaymentMethod string

const (
	PaymentMethodCard   PaymentMethod = "CARD"
	PaymentMethodPayPal PaymentMethod = "PAYPAL"
	PaymentMethodBank   PaymentMethod = "BANK"
	PaymentMethodCrypto PaymentMethod = "CRYPTO"
)

// ParsePaymentMethod accepts any letter case.
func ParsePaymentMethod(s string) (PaymentMethod, error) {
	m := PaymentMethod(strings.ToUpper(strings.TrimSpace(s)))
	switch m {
	case PaymentMethodCard, PaymentMethodPayPal, PaymentMethodBank, PaymentMethodCrypto:
		return m, nil
	}
	return "", ErrInvalidPaymentMethod
}

// PaymentStatus is the state of a payment attempt.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "PENDING"
	PaymentStatusCompleted PaymentStatus = "COMPLETED"
	PaymentStatusFailed    PaymentStatus = "FAILED"
	PaymentStatusRefunded  PaymentStatus = "REFUNDED"
)

// ParsePaymentStatus accepts any letter case. An empty string means PENDING.
func ParsePaymentStatus(s string) (PaymentStatus, error) {
	if strings.TrimSpace(s) == "" {
		return PaymentStatusPending, nil
	}
	st := PaymentStatus(strings.ToUpper(strings.TrimSpace(s)))
	switch st {
	case PaymentStatusPending, PaymentStatusCompleted, PaymentStatusFailed, PaymentStatusRefunded:
		return st, nil
	}
	return "", ErrInvalidPaymentStatus
}

// Payment records one payment attempt against a subscription.
type Payment struct {
	sharedDomain.BaseAggregateRoot
	subscriptionID uuid.UUID
	amount         decimal.Decimal
	method         PaymentMethod
	status         PaymentStatus
	details        json.RawMessage
}

// NewPayment validates and creates a payment. Nil details become {}.
func NewPayment(
	subscriptionID uuid.UUID,
	amount decimal.Decimal,
	method PaymentMethod,
	status PaymentStatus,
	details json.RawMessage,
	now time.Time,
) (*Payment, error) {
	if amount.IsNegative() {
		return nil, ErrInvalidAmount
	}
	if _, err := ParsePaymentMethod(string(method)); err != nil {
		return nil, err
	}
	status, err := ParsePaymentStatus(string(status))
	if err != nil {
		return nil, err
	}
	details, err = normalizeDetails(details)
	if err != nil {
		return nil, err
	}

	p := &Payment{
		BaseAggregateRoot: sharedDomain.NewBaseAggregateRoot(now),
		subscriptionID:    subscriptionID,
		amount:            amount,
		method:            method,
		status:            status,
		details:           details,
	}
	p.AddDomainEvent(NewPaymentRecorded(p, now))
	if status == PaymentStatusCompleted {
		p.AddDomainEvent(NewPaymentCompleted(p, now))
	}
	return p, nil
}

// RehydratePayment recreates a payment from persisted state.
func RehydratePayment(
	id, subscriptionID uuid.UUID,
	amount decimal.Decimal,
	method PaymentMethod,
	status PaymentStatus,
	details json.RawMessage,
	createdAt, updatedAt time.Time,
) *Payment {
	entity := sharedDomain.RehydrateBaseEntity(id, createdAt, updatedAt)
	return &Payment{
		BaseAggregateRoot: sharedDomain.RehydrateBaseAggregateRoot(entity),
		subscriptionID:    subscriptionID,
		amount:            amount,
		method:            method,
		status:            status,
		details:           details,
	}
}

func (p *Payment) SubscriptionID() uuid.UUID { return p.subscriptionID }
func (p *Payment) Amount() decimal.Decimal   { return p.amount }
func (p *Payment) Method() PaymentMethod     { return p.method }
func (p *Payment) Status() PaymentStatus     { return p.status }
func (p *Payment) Details() json.RawMessage  { return p.details }
func (p *Payment) IsCompleted() bool         { return p.status == PaymentStatusCompleted }

// ChangeStatus moves the payment to status and reports whether it just
// became COMPLETED. A COMPLETED payment cannot go back to PENDING.
func (p *Payment) ChangeStatus(status PaymentStatus, now time.Time) (bool, error) {
	status, err := ParsePaymentStatus(string(status))
	if err != nil {
		return false, err
	}
	if status == p.status {
		return false, nil
	}
	if p.status == PaymentStatusCompleted && status == PaymentStatusPending {
		return false, ErrPaymentRegression
	}
	p.status = status
	p.Touch(now)
	if status == PaymentStatusCompleted {
		p.AddDomainEvent(NewPaymentCompleted(p, now))
		return true, nil
	}
	return false, nil
}

func normalizeDetails(details json.RawMessage) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(details)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return json.RawMessage(`{}`), nil
	}
	var obj map[string]any
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		return nil, ErrInvalidPaymentDetails
	}
	return json.RawMessage(trimmed), nil
}
