package api

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/felixgeelhaar/screenpass/internal/app"
	"github.com/felixgeelhaar/screenpass/internal/subscriptions/application/queries"
	"github.com/felixgeelhaar/screenpass/internal/subscriptions/application/services"
	"github.com/felixgeelhaar/screenpass/internal/subscriptions/domain"
	"github.com/felixgeelhaar/screenpass/internal/subscriptions/infrastructure/sqlitetest"
	"github.com/felixgeelhaar/screenpass/pkg/config"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	t      *testing.T
	c      *app.Container
	server *Server
	seed   *sqlitetest.Harness
}

type response struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	cfg := &config.Config{
		AppEnv:                   "development",
		SQLitePath:               filepath.Join(t.TempDir(), "screenpass.db"),
		SubscriptionBaseLifetime: time.Minute,
		ReconcileInterval:        time.Second,
		OutboxPollInterval:       10 * time.Millisecond,
		OutboxBatchSize:          100,
		OutboxMaxRetries:         5,
		OutboxRetentionDays:      14,
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	c, err := app.NewContainer(context.Background(), cfg, logger)
	require.NoError(t, err)
	t.Cleanup(c.Close)

	return &testServer{
		t:      t,
		c:      c,
		server: NewServer(DefaultServerConfig(), NewHandlerFromContainer(c), c.Health, logger),
		seed:   &sqlitetest.Harness{Conn: c.DBConn},
	}
}

// do sends a request as principal, or anonymously when principal is nil.
func (ts *testServer) do(method, path string, principal *domain.Principal, body any) (*httptest.ResponseRecorder, response) {
	ts.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else {
			require.NoError(ts.t, json.NewEncoder(&buf).Encode(body))
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	if principal != nil {
		req.Header.Set(HeaderUserID, principal.UserID.String())
		req.Header.Set(HeaderUserRole, string(principal.Role))
	}
	rec := httptest.NewRecorder()
	ts.server.Handler().ServeHTTP(rec, req)

	var resp response
	if rec.Body.Len() > 0 {
		require.NoError(ts.t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	}
	return rec, resp
}

func (ts *testServer) user() *domain.Principal {
	return &domain.Principal{UserID: ts.seed.SeedUser(ts.t, true), Role: domain.RoleUser}
}

func (ts *testServer) admin() *domain.Principal {
	return &domain.Principal{UserID: ts.seed.SeedUserWithRole(ts.t, true, domain.RoleAdmin), Role: domain.RoleAdmin}
}

func decode[T any](t *testing.T, resp response) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(resp.Data, &v))
	return v
}

func TestServer_Health(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	ts.server.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"healthy"`)
	assert.NotEmpty(t, rec.Header().Get(HeaderRequestID))
}

func TestServer_CorrelationIDIsEchoed(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/plans", nil)
	req.Header.Set(HeaderCorrelationID, "trace-42")
	rec := httptest.NewRecorder()
	ts.server.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "trace-42", rec.Header().Get(HeaderCorrelationID))
}

func TestServer_UnknownRoute(t *testing.T) {
	ts := newTestServer(t)

	rec, resp := ts.do(http.MethodGet, "/api/v1/nowhere", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.False(t, resp.Success)
	assert.Equal(t, domain.KindNotFound, resp.Error)
}

func TestServer_InvalidUserHeader(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/me/plan", nil)
	req.Header.Set(HeaderUserID, "not-a-uuid")
	rec := httptest.NewRecorder()
	ts.server.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestServer_SubscribePayAndWatch(t *testing.T) {
	ts := newTestServer(t)
	planID := ts.seed.SeedPlan(t, 30, true)
	premium := ts.seed.SeedContent(t, domain.SubscriptionTypePremium)
	free := ts.seed.SeedContent(t, domain.SubscriptionTypeFree)
	alice := ts.user()

	rec, resp := ts.do(http.MethodPost, "/api/v1/subscriptions", alice, map[string]any{"plan_id": planID})
	require.Equal(t, http.StatusCreated, rec.Code, resp.Message)
	sub := decode[queries.SubscriptionDTO](t, resp)
	assert.Equal(t, "PENDING", sub.Status)
	assert.Equal(t, alice.UserID, sub.UserID)

	// Pending subscriptions grant nothing.
	rec, _ = ts.do(http.MethodGet, "/api/v1/contents/"+premium.String()+"/watch", alice, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, resp = ts.do(http.MethodPost, "/api/v1/payments", alice, map[string]any{
		"subscription_id": sub.ID,
		"amount":          "9.99",
		"payment_method":  "card",
		"status":          "COMPLETED",
		"payment_details": map[string]string{"last4": "4242"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, resp.Message)
	payment := decode[queries.PaymentDTO](t, resp)
	assert.Equal(t, "9.99", payment.Amount)
	assert.Equal(t, "COMPLETED", payment.Status)

	rec, resp = ts.do(http.MethodGet, "/api/v1/me/subscriptions/active", alice, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	active := decode[[]queries.SubscriptionDTO](t, resp)
	require.Len(t, active, 1)
	assert.Equal(t, "ACTIVE", active[0].Status)

	rec, resp = ts.do(http.MethodGet, "/api/v1/me/plan", alice, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, planID, decode[domain.Plan](t, resp).ID)

	rec, resp = ts.do(http.MethodGet, "/api/v1/contents/"+premium.String()+"/watch", alice, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	watched := decode[services.WatchResult](t, resp)
	assert.Equal(t, int64(1), watched.Content.ViewCount)
	assert.Equal(t, services.ReasonActiveSubscription, watched.Decision.Reason)

	rec, resp = ts.do(http.MethodGet, "/api/v1/me/payments", alice, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]queries.PaymentDTO](t, resp), 1)

	rec, _ = ts.do(http.MethodGet, "/api/v1/payments/"+payment.ID.String(), alice, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec, _ = ts.do(http.MethodGet, "/api/v1/payments/"+payment.ID.String(), ts.user(), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Anonymous callers may only watch free content.
	rec, _ = ts.do(http.MethodGet, "/api/v1/contents/"+premium.String()+"/watch", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec, _ = ts.do(http.MethodGet, "/api/v1/contents/"+free.String()+"/watch", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec, _ = ts.do(http.MethodGet, "/api/v1/contents/"+uuid.NewString()+"/watch", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_CheckAccessCarriesDecision(t *testing.T) {
	ts := newTestServer(t)
	premium := ts.seed.SeedContent(t, domain.SubscriptionTypePremium)

	rec, resp := ts.do(http.MethodGet, "/api/v1/contents/"+premium.String()+"/access", ts.user(), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.False(t, resp.Success)
	decision := decode[services.Decision](t, resp)
	assert.False(t, decision.Allowed)
	assert.Equal(t, services.ReasonNoSubscription, decision.Reason)
}

func TestServer_SelfService(t *testing.T) {
	ts := newTestServer(t)
	planID := ts.seed.SeedPlan(t, 30, true)
	bob := ts.user()

	rec, _ := ts.do(http.MethodGet, "/api/v1/me/subscriptions/active", bob, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = ts.do(http.MethodPost, "/api/v1/subscriptions", bob, map[string]any{"plan_id": planID, "auto_renew": true})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, resp := ts.do(http.MethodPatch, "/api/v1/me/subscription", bob, map[string]any{"auto_renew": true, "plan_id": planID})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, domain.ErrAutoRenewRequired.Error(), resp.Message)

	rec, _ = ts.do(http.MethodPatch, "/api/v1/me/subscription", bob, map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// A null auto_renew is rejected rather than read as false.
	rec, resp = ts.do(http.MethodPatch, "/api/v1/me/subscription", bob, `{"auto_renew": null}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, domain.ErrAutoRenewRequired.Error(), resp.Message)

	rec, resp = ts.do(http.MethodPatch, "/api/v1/me/subscription", bob, map[string]any{"auto_renew": false})
	require.Equal(t, http.StatusOK, rec.Code, resp.Message)
	assert.False(t, decode[queries.SubscriptionDTO](t, resp).AutoRenew)

	rec, resp = ts.do(http.MethodDelete, "/api/v1/me/subscription", bob, nil)
	require.Equal(t, http.StatusOK, rec.Code, resp.Message)
	assert.Equal(t, "CANCELED", decode[queries.SubscriptionDTO](t, resp).Status)

	rec, resp = ts.do(http.MethodGet, "/api/v1/me/subscriptions/history", bob, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]queries.SubscriptionDTO](t, resp), 1)
}

func TestServer_RequestValidation(t *testing.T) {
	ts := newTestServer(t)
	carol := ts.user()

	rec, _ := ts.do(http.MethodPost, "/api/v1/subscriptions", nil, map[string]any{"plan_id": uuid.New()})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, resp := ts.do(http.MethodPost, "/api/v1/subscriptions", carol, map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, resp.Message, "plan_id is required")

	rec, _ = ts.do(http.MethodPost, "/api/v1/subscriptions", carol, `{"plan_id":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = ts.do(http.MethodPost, "/api/v1/subscriptions", carol, map[string]any{"plan_id": uuid.New(), "colour": "red"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = ts.do(http.MethodPost, "/api/v1/subscriptions", carol, map[string]any{"plan_id": uuid.New()})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = ts.do(http.MethodGet, "/api/v1/payments/not-a-uuid", carol, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = ts.do(http.MethodPost, "/api/v1/payments", carol, map[string]any{"subscription_id": uuid.New()})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_AdminOnlyRoutes(t *testing.T) {
	ts := newTestServer(t)
	user := ts.user()

	for _, route := range []struct{ method, path string }{
		{http.MethodGet, "/api/v1/subscriptions"},
		{http.MethodGet, "/api/v1/subscriptions/" + uuid.NewString()},
		{http.MethodDelete, "/api/v1/subscriptions/" + uuid.NewString()},
		{http.MethodGet, "/api/v1/payments"},
		{http.MethodPost, "/api/v1/admin/reconcile"},
	} {
		rec, _ := ts.do(route.method, route.path, user, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code, route.path)

		rec, _ = ts.do(route.method, route.path, nil, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, route.path)
	}
}

func TestServer_AdminManagesSubscriptions(t *testing.T) {
	ctx := context.Background()
	ts := newTestServer(t)
	admin := ts.admin()
	userID := ts.seed.SeedUser(t, true)
	planID := ts.seed.SeedPlan(t, 30, true)

	rec, _ := ts.do(http.MethodPost, "/api/v1/subscriptions", admin, map[string]any{"plan_id": planID})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "admins must name the user")

	rec, resp := ts.do(http.MethodPost, "/api/v1/subscriptions", admin, map[string]any{"plan_id": planID, "user_id": userID})
	require.Equal(t, http.StatusCreated, rec.Code, resp.Message)
	sub := decode[queries.SubscriptionDTO](t, resp)
	path := "/api/v1/subscriptions/" + sub.ID.String()

	rec, resp = ts.do(http.MethodPatch, path, admin, map[string]any{"status": "active"})
	require.Equal(t, http.StatusOK, rec.Code, resp.Message)
	assert.Equal(t, "ACTIVE", decode[queries.SubscriptionDTO](t, resp).Status)

	rec, _ = ts.do(http.MethodPatch, path, admin, map[string]any{"status": "paused"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, resp = ts.do(http.MethodGet, "/api/v1/subscriptions?status=active", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]queries.SubscriptionDTO](t, resp), 1)

	rec, _ = ts.do(http.MethodGet, "/api/v1/subscriptions?status=paused", admin, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, resp = ts.do(http.MethodGet, path, admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	detail := decode[queries.SubscriptionDTO](t, resp)
	assert.Equal(t, sub.ID, detail.ID)
	require.NotNil(t, detail.Plan)
	assert.Equal(t, planID, detail.Plan.ID)
	require.NotNil(t, detail.User)
	assert.Equal(t, userID, detail.User.ID)

	rec, resp = ts.do(http.MethodDelete, path, admin, nil)
	require.Equal(t, http.StatusOK, rec.Code, resp.Message)
	assert.Equal(t, "EXPIRED", decode[queries.SubscriptionDTO](t, resp).Status)

	rec, _ = ts.do(http.MethodPost, path+"/cancel", admin, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	require.NoError(t, ts.c.OutboxProcessor.ProcessOnce(ctx))
	rec, resp = ts.do(http.MethodGet, path+"/history", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	entries := decode[[]domain.HistoryEntry](t, resp)
	require.NotEmpty(t, entries)
	assert.Equal(t, domain.RoutingKeySubscriptionCreated, entries[0].EventType)

	rec, _ = ts.do(http.MethodGet, "/api/v1/subscriptions/"+uuid.NewString(), admin, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_AdminManagesPayments(t *testing.T) {
	ts := newTestServer(t)
	admin := ts.admin()
	dave := ts.user()
	planID := ts.seed.SeedPlan(t, 30, true)

	_, resp := ts.do(http.MethodPost, "/api/v1/subscriptions", dave, map[string]any{"plan_id": planID})
	sub := decode[queries.SubscriptionDTO](t, resp)

	rec, resp := ts.do(http.MethodPost, "/api/v1/payments", dave, map[string]any{
		"subscription_id": sub.ID,
		"amount":          12.5,
		"payment_method":  "PAYPAL",
	})
	require.Equal(t, http.StatusCreated, rec.Code, resp.Message)
	payment := decode[queries.PaymentDTO](t, resp)
	assert.Equal(t, "PENDING", payment.Status)

	rec, _ = ts.do(http.MethodPost, "/api/v1/payments", ts.user(), map[string]any{
		"subscription_id": sub.ID,
		"amount":          "1",
		"payment_method":  "card",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	path := "/api/v1/payments/" + payment.ID.String()
	rec, resp = ts.do(http.MethodPatch, path, admin, map[string]any{"status": "COMPLETED"})
	require.Equal(t, http.StatusOK, rec.Code, resp.Message)
	assert.Equal(t, "COMPLETED", decode[queries.PaymentDTO](t, resp).Status)

	rec, _ = ts.do(http.MethodPatch, path, admin, map[string]any{"status": "PENDING"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec, resp = ts.do(http.MethodGet, "/api/v1/payments", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]queries.PaymentDTO](t, resp), 1)

	rec, resp = ts.do(http.MethodGet, "/api/v1/subscriptions/"+sub.ID.String(), admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ACTIVE", decode[queries.SubscriptionDTO](t, resp).Status)
}

func TestServer_PlansAndReconcile(t *testing.T) {
	ts := newTestServer(t)
	ts.seed.SeedPlan(t, 7, true)
	ts.seed.SeedPlan(t, 30, false)
	admin := ts.admin()

	rec, resp := ts.do(http.MethodGet, "/api/v1/plans", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]domain.Plan](t, resp), 1)

	rec, resp = ts.do(http.MethodPost, "/api/v1/admin/reconcile", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code, resp.Message)
	assert.Zero(t, decode[services.ReconcileReport](t, resp).Changed())

	rec, _ = ts.do(http.MethodPost, "/api/v1/admin/reconcile?user_id="+uuid.NewString(), admin, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = ts.do(http.MethodPost, "/api/v1/admin/reconcile?user_id=nope", admin, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
