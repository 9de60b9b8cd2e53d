package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/felixgeelhaar/mcp-go"
	"github.com/felixgeelhaar/screenpass/internal/subscriptions/application/commands"
	"github.com/felixgeelhaar/screenpass/internal/subscriptions/application/queries"
	"github.com/felixgeelhaar/screenpass/internal/subscriptions/domain"
	"github.com/shopspring/decimal"
)

type recordPaymentInput struct {
	SubscriptionID string `json:"subscription_id" jsonschema:"required"`
	Amount         string `json:"amount" jsonschema:"required"`
	Method         string `json:"payment_method" jsonschema:"required"`
	Status         string `json:"status,omitempty"`
	Details        string `json:"payment_details,omitempty"`
}

type listPaymentsInput struct {
	All bool `json:"all,omitempty"`
}

type paymentIDInput struct {
	PaymentID string `json:"payment_id" jsonschema:"required"`
}

type paymentStatusInput struct {
	PaymentID string `json:"payment_id" jsonschema:"required"`
	Status    string `json:"status" jsonschema:"required"`
}

func (t *toolset) registerPaymentTools(srv *mcp.Server) {
	srv.Tool("payment.record").
		Description("Record a payment for one of your subscriptions; COMPLETED activates it").
		Handler(t.recordPayment)

	srv.Tool("payment.list").
		Description("List your payments, or every payment with all=true (admin)").
		Handler(t.listPayments)

	srv.Tool("payment.get").
		Description("Get one payment with its decrypted details").
		Handler(t.getPayment)

	srv.Tool("payment.set_status").
		Description("Move a payment to PENDING, COMPLETED or FAILED (admin)").
		Handler(t.setPaymentStatus)
}

func (t *toolset) recordPayment(ctx context.Context, input recordPaymentInput) (*queries.PaymentDTO, error) {
	app, err := t.ready()
	if err != nil {
		return nil, err
	}
	principal, err := app.RequirePrincipal()
	if err != nil {
		return nil, err
	}
	subID, err := parseUUID(input.SubscriptionID)
	if err != nil {
		return nil, err
	}
	if input.Amount == "" {
		return nil, domain.ErrInvalidAmount
	}
	amount, err := decimal.NewFromString(input.Amount)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidAmount, err)
	}
	var details json.RawMessage
	if input.Details != "" {
		if !json.Valid([]byte(input.Details)) {
			return nil, errors.New("payment_details must be a JSON document")
		}
		details = json.RawMessage(input.Details)
	}

	payment, err := app.Container.RecordPaymentHandler.Handle(ctx, commands.RecordPaymentCommand{
		Principal:      principal,
		SubscriptionID: subID,
		Amount:         amount,
		Method:         input.Method,
		Status:         input.Status,
		Details:        details,
	})
	if err != nil {
		return nil, err
	}
	dto := queries.NewPaymentDTO(payment)
	return &dto, nil
}

func (t *toolset) listPayments(ctx context.Context, input listPaymentsInput) ([]queries.PaymentDTO, error) {
	app, err := t.ready()
	if err != nil {
		return nil, err
	}
	if input.All {
		if _, err := app.RequireAdmin(); err != nil {
			return nil, err
		}
		return app.Container.PaymentsHandler.List(ctx)
	}
	principal, err := app.RequirePrincipal()
	if err != nil {
		return nil, err
	}
	return app.Container.PaymentsHandler.ListMine(ctx, principal.UserID)
}

func (t *toolset) getPayment(ctx context.Context, input paymentIDInput) (*queries.PaymentDTO, error) {
	app, err := t.ready()
	if err != nil {
		return nil, err
	}
	principal, err := app.RequirePrincipal()
	if err != nil {
		return nil, err
	}
	id, err := parseUUID(input.PaymentID)
	if err != nil {
		return nil, err
	}
	return app.Container.PaymentsHandler.Get(ctx, queries.GetPaymentQuery{Principal: principal, PaymentID: id})
}

func (t *toolset) setPaymentStatus(ctx context.Context, input paymentStatusInput) (*queries.PaymentDTO, error) {
	app, err := t.ready()
	if err != nil {
		return nil, err
	}
	admin, err := app.RequireAdmin()
	if err != nil {
		return nil, err
	}
	id, err := parseUUID(input.PaymentID)
	if err != nil {
		return nil, err
	}

	payment, err := app.Container.UpdatePaymentStatusHandler.Handle(ctx, commands.UpdatePaymentStatusCommand{
		PaymentID: id,
		Status:    input.Status,
		ActorID:   admin.UserID,
	})
	if err != nil {
		return nil, err
	}
	dto := queries.NewPaymentDTO(payment)
	return &dto, nil
}
