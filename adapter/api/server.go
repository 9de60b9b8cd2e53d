// Package api serves the screenpass HTTP API.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/felixgeelhaar/screenpass/pkg/observability"
	"github.com/gorilla/mux"
)

// Server is the HTTP API server.
type Server struct {
	router  *mux.Router
	server  *http.Server
	logger  *slog.Logger
	handler *Handler
	health  *observability.HealthRegistry
}

// ServerConfig holds configuration for the API server.
type ServerConfig struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// DefaultServerConfig returns the default server configuration.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:         "0.0.0.0:8080",
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// NewServer creates a new API server. health may be nil, in which case
// /health only reports liveness.
func NewServer(cfg ServerConfig, handler *Handler, health *observability.HealthRegistry, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		router:  mux.NewRouter(),
		logger:  logger,
		handler: handler,
		health:  health,
	}
	s.registerRoutes()

	s.server = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.router,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}
	return s
}

// registerRoutes sets up the API routes.
func (s *Server) registerRoutes() {
	r := s.router
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeFailure(w, http.StatusNotFound, "route not found", "not_found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeFailure(w, http.StatusMethodNotAllowed, "method not allowed", "bad_request")
	})
	r.Use(requestContext, s.logRequests, authenticate)

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	h := s.handler
	v1 := r.PathPrefix("/api/v1").Subrouter()

	// Subscriptions
	v1.HandleFunc("/subscriptions", h.CreateSubscription).Methods(http.MethodPost)
	v1.HandleFunc("/subscriptions", h.ListSubscriptions).Methods(http.MethodGet)
	v1.HandleFunc("/subscriptions/{id}", h.GetSubscription).Methods(http.MethodGet)
	v1.HandleFunc("/subscriptions/{id}", h.UpdateSubscription).Methods(http.MethodPatch)
	v1.HandleFunc("/subscriptions/{id}", h.DeleteSubscription).Methods(http.MethodDelete)
	v1.HandleFunc("/subscriptions/{id}/cancel", h.CancelSubscription).Methods(http.MethodPost)
	v1.HandleFunc("/subscriptions/{id}/history", h.SubscriptionHistory).Methods(http.MethodGet)

	// Caller's own records
	v1.HandleFunc("/me/subscriptions/active", h.MyActiveSubscriptions).Methods(http.MethodGet)
	v1.HandleFunc("/me/subscriptions/history", h.MySubscriptionHistory).Methods(http.MethodGet)
	v1.HandleFunc("/me/subscription", h.UpdateMySubscription).Methods(http.MethodPatch)
	v1.HandleFunc("/me/subscription", h.CancelMySubscription).Methods(http.MethodDelete)
	v1.HandleFunc("/me/payments", h.MyPayments).Methods(http.MethodGet)
	v1.HandleFunc("/me/plan", h.MyPlan).Methods(http.MethodGet)

	// Payments
	v1.HandleFunc("/payments", h.RecordPayment).Methods(http.MethodPost)
	v1.HandleFunc("/payments", h.ListPayments).Methods(http.MethodGet)
	v1.HandleFunc("/payments/{id}", h.GetPayment).Methods(http.MethodGet)
	v1.HandleFunc("/payments/{id}", h.UpdatePaymentStatus).Methods(http.MethodPatch)

	// Catalog and access
	v1.HandleFunc("/plans", h.ListPlans).Methods(http.MethodGet)
	v1.HandleFunc("/contents/{id}/access", h.CheckAccess).Methods(http.MethodGet)
	v1.HandleFunc("/contents/{id}/watch", h.WatchContent).Methods(http.MethodGet)

	// Operations
	v1.HandleFunc("/admin/reconcile", h.Reconcile).Methods(http.MethodPost)
}

// handleHealth reports the probe results, or plain liveness without a registry.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health == nil {
		writeJSON(w, http.StatusOK, map[string]string{
			"status": string(observability.HealthStatusHealthy),
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
		return
	}

	report := s.health.Check(r.Context())
	status := http.StatusOK
	if report.Status == observability.HealthStatusUnhealthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, report)
}

// Handler returns the routed handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the API server.
func (s *Server) Start() error {
	s.logger.Info("starting API server", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down API server")
	return s.server.Shutdown(ctx)
}
