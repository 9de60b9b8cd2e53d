package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/felixgeelhaar/screenpass/internal/subscriptions/domain"
	"github.com/felixgeelhaar/screenpass/pkg/observability"
	"github.com/google/uuid"
)

// Headers forwarded by the gateway.
const (
	HeaderCorrelationID = "X-Correlation-ID"
	HeaderRequestID     = "X-Request-ID"
	HeaderUserID        = "X-User-ID"
	HeaderUserRole      = "X-User-Role"
)

type principalCtxKey struct{}

// requestContext opens the request scope used by logs and events.
func requestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := observability.NewRequestContext(r.Context(), r.Header.Get(HeaderCorrelationID))
		w.Header().Set(HeaderRequestID, observability.RequestIDFromContext(ctx))
		w.Header().Set(HeaderCorrelationID, observability.CorrelationIDFromContext(ctx))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// authenticate reads the principal the gateway forwards. Requests without
// a user id stay anonymous.
func authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get(HeaderUserID)
		if raw == "" {
			next.ServeHTTP(w, r)
			return
		}

		userID, err := uuid.Parse(raw)
		if err != nil {
			writeFailure(w, http.StatusUnauthorized,
				fmt.Sprintf("invalid %s header", HeaderUserID), domain.KindUnauthorized)
			return
		}

		principal := &domain.Principal{UserID: userID, Role: domain.ParseRole(r.Header.Get(HeaderUserRole))}
		ctx := context.WithValue(r.Context(), principalCtxKey{}, principal)
		ctx = observability.WithUserID(ctx, userID.String())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// PrincipalFromContext returns the authenticated caller, or nil.
func PrincipalFromContext(ctx context.Context) *domain.Principal {
	p, _ := ctx.Value(principalCtxKey{}).(*domain.Principal)
	return p
}

func requirePrincipal(r *http.Request) (*domain.Principal, error) {
	p := PrincipalFromContext(r.Context())
	if p == nil {
		return nil, domain.ErrAuthenticationRequired
	}
	return p, nil
}

func requireAdmin(r *http.Request) (*domain.Principal, error) {
	p, err := requirePrincipal(r)
	if err != nil {
		return nil, err
	}
	if !p.IsAdmin() {
		return nil, domain.ErrAdminRequired
	}
	return p, nil
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		s.logger.InfoContext(r.Context(), "request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			observability.DurationKey, time.Since(start).Milliseconds(),
			observability.RequestIDKey, observability.RequestIDFromContext(r.Context()),
			observability.CorrelationIDKey, observability.CorrelationIDFromContext(r.Context()),
		)
	})
}
