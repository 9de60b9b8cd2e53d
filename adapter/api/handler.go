package api

import (
	"log/slog"

	"github.com/felixgeelhaar/screenpass/internal/app"
	sharedApplication "github.com/felixgeelhaar/screenpass/internal/shared/application"
	"github.com/felixgeelhaar/screenpass/internal/subscriptions/application/commands"
	"github.com/felixgeelhaar/screenpass/internal/subscriptions/application/queries"
	"github.com/felixgeelhaar/screenpass/internal/subscriptions/application/services"
)

// HandlerConfig holds dependencies for the API handlers.
type HandlerConfig struct {
	CreateSubscription      *commands.CreateSubscriptionHandler
	AdminUpdateSubscription *commands.AdminUpdateSubscriptionHandler
	SelfUpdateSubscription  *commands.SelfUpdateSubscriptionHandler
	CancelSubscription      *commands.CancelSubscriptionHandler
	DeleteSubscription      *commands.DeleteSubscriptionHandler
	RecordPayment           *commands.RecordPaymentHandler
	UpdatePaymentStatus     *commands.UpdatePaymentStatusHandler

	GetSubscription     *queries.GetSubscriptionHandler
	ListSubscriptions   *queries.ListSubscriptionsHandler
	MySubscriptions     *queries.MySubscriptionsHandler
	SubscriptionHistory *queries.SubscriptionHistoryHandler
	ListActivePlans     *queries.ListActivePlansHandler
	MyPlan              *queries.MyPlanHandler
	Payments            *queries.PaymentsHandler

	Gate       *services.EntitlementGate
	Reconciler *services.Reconciler
	Clock      sharedApplication.Clock
	Logger     *slog.Logger
}

// Handler serves the subscription, payment and access endpoints.
type Handler struct {
	cfg    HandlerConfig
	logger *slog.Logger
}

// NewHandler creates the API handler.
func NewHandler(cfg HandlerConfig) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Clock == nil {
		cfg.Clock = sharedApplication.SystemClock{}
	}
	return &Handler{cfg: cfg, logger: logger}
}

// NewHandlerFromContainer wires the handler to a container's services.
func NewHandlerFromContainer(c *app.Container) *Handler {
	return NewHandler(HandlerConfig{
		CreateSubscription:      c.CreateSubscriptionHandler,
		AdminUpdateSubscription: c.AdminUpdateSubscriptionHandler,
		SelfUpdateSubscription:  c.SelfUpdateSubscriptionHandler,
		CancelSubscription:      c.CancelSubscriptionHandler,
		DeleteSubscription:      c.DeleteSubscriptionHandler,
		RecordPayment:           c.RecordPaymentHandler,
		UpdatePaymentStatus:     c.UpdatePaymentStatusHandler,
		GetSubscription:         c.GetSubscriptionHandler,
		ListSubscriptions:       c.ListSubscriptionsHandler,
		MySubscriptions:         c.MySubscriptionsHandler,
		SubscriptionHistory:     c.SubscriptionHistoryHandler,
		ListActivePlans:         c.ListActivePlansHandler,
		MyPlan:                  c.MyPlanHandler,
		Payments:                c.PaymentsHandler,
		Gate:                    c.EntitlementGate,
		Reconciler:              c.Reconciler,
		Clock:                   c.Clock,
		Logger:                  c.Logger,
	})
}
