package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"firebase.google.com/go/v4/auth"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82/webhook"
	"go.uber.org/zap"

	"plansync-backend-go/internal/billing"
	"plansync-backend-go/internal/core"
	"plansync-backend-go/internal/db"
	"plansync-backend-go/internal/lock"
	"plansync-backend-go/internal/middleware"
	"plansync-backend-go/internal/models"
	"plansync-backend-go/internal/telemetry"
)

const (
	testWebhookSecret = "whsec_api_test"
	webhookPath       = "/api/v1/billing/webhooks/stripe"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeVerifier struct{}

func (fakeVerifier) VerifyIDToken(_ context.Context, idToken string) (*auth.Token, error) {
	if strings.HasPrefix(idToken, "token-") {
		return &auth.Token{UID: strings.TrimPrefix(idToken, "token-")}, nil
	}
	return nil, errors.New("invalid token")
}

type testServer struct {
	router   *gin.Engine
	users    *db.MemoryUserRepository
	events   *db.MemoryBillingEventRepository
	provider *billing.MockProvider
}

func newTestServer(t *testing.T, checks map[string]HealthCheck) *testServer {
	t.Helper()
	logger := zap.NewNop()
	users := db.NewMemoryUserRepository()
	events := db.NewMemoryBillingEventRepository()
	provider := billing.NewMockProvider()
	metrics := telemetry.NewMetrics(prometheus.NewRegistry())
	eventService := core.NewBillingEventService(events)

	billingService := core.NewBillingService(core.BillingServiceDeps{
		Normalizer: billing.NewNormalizer(testWebhookSecret, 0),
		Reconciler: core.NewReconciler(users, lock.NewKeyedMutex(), nil, metrics, logger),
		Provider:   provider,
		Users:      users,
		Events:     eventService,
		Metrics:    metrics,
		Logger:     logger,
		URLs: core.CheckoutURLs{
			SuccessURL: "https://app.test/success",
			CancelURL:  "https://app.test/cancel",
			ReturnURL:  "https://app.test/account",
		},
	})

	router := gin.New()
	router.Use(middleware.RequestID(), middleware.RecoveryMiddleware(logger), middleware.Metrics(metrics))
	SetupRoutes(router, RouteDeps{
		Logger:         logger,
		Auth:           middleware.NewAuthMiddleware(fakeVerifier{}, logger),
		UserService:    core.NewUserService(users),
		BillingService: billingService,
		EventService:   eventService,
		Metrics:        metrics,
		HealthChecks:   checks,
	})
	return &testServer{router: router, users: users, events: events, provider: provider}
}

func (s *testServer) do(t *testing.T, method, path string, body []byte, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) deliver(t *testing.T, payload []byte) *httptest.ResponseRecorder {
	t.Helper()
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    testWebhookSecret,
		Timestamp: time.Now(),
	})
	return s.do(t, http.MethodPost, webhookPath, payload, map[string]string{
		"Stripe-Signature": signed.Header,
		"Content-Type":     "application/json",
	})
}

func event(id, eventType, object string) []byte {
	return []byte(fmt.Sprintf(`{"id":%q,"object":"event","type":%q,"created":1700000000,"data":{"object":%s}}`, id, eventType, object))
}

func subscriptionObject(customerID, status, priceID string) string {
	return fmt.Sprintf(`{"id":"sub_1","object":"subscription","customer":%q,"status":%q,
		"items":{"object":"list","data":[{"id":"si_1","object":"subscription_item","current_period_end":1700000000,"price":{"id":%q,"object":"price"}}]}}`,
		customerID, status, priceID)
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return resp.Error.Code
}

func seed(s *testServer, id, customerID string) {
	s.users.Put(&models.User{
		ID:         id,
		Email:      id + "@example.com",
		CustomerID: customerID,
		Plan:       models.PlanFree,
		Usage:      map[string]int64{"exports": 2},
	})
}

func TestWebhook_TrialingSubscriptionGrantsPro(t *testing.T) {
	s := newTestServer(t, nil)
	seed(s, "uid_1", "cus_1")

	rec := s.deliver(t, event("evt_1", "customer.subscription.created", subscriptionObject("cus_1", "trialing", "price_pro")))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"received":true}`, rec.Body.String())

	u, err := s.users.GetByID(context.Background(), "uid_1")
	require.NoError(t, err)
	assert.Equal(t, models.PlanPro, u.Plan)
	require.NotNil(t, u.Subscription)
	assert.Equal(t, "trialing", u.Subscription.Status)
	assert.Equal(t, map[string]int64{"exports": 2}, u.Usage)
}

func TestWebhook_TrialPaymentFailureDowngrades(t *testing.T) {
	s := newTestServer(t, nil)
	seed(s, "uid_1", "cus_1")
	require.Equal(t, http.StatusOK, s.deliver(t, event("evt_1", "customer.subscription.created", subscriptionObject("cus_1", "trialing", "price_pro"))).Code)

	rec := s.deliver(t, event("evt_2", "invoice.payment_failed", `{"id":"in_1","object":"invoice","customer":"cus_1","billing_reason":"subscription_create"}`))
	require.Equal(t, http.StatusOK, rec.Code)

	u, err := s.users.GetByID(context.Background(), "uid_1")
	require.NoError(t, err)
	assert.Equal(t, models.PlanFree, u.Plan)
	assert.Nil(t, u.Subscription)
}

func TestWebhook_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		payload    []byte
		signature  string
		wantStatus int
		wantCode   string
	}{
		{
			name:       "unknown customer upsert",
			payload:    event("evt_1", "customer.subscription.updated", subscriptionObject("cus_unknown", "active", "price_pro")),
			wantStatus: http.StatusNotFound,
			wantCode:   "user_not_found",
		},
		{
			name:       "bad signature",
			payload:    event("evt_2", "invoice.paid", `{"id":"in_1","object":"invoice","customer":"cus_1"}`),
			signature:  "t=1700000000,v1=0000",
			wantStatus: http.StatusBadRequest,
			wantCode:   "signature_invalid",
		},
		{
			name:       "missing price",
			payload:    event("evt_3", "customer.subscription.updated", `{"id":"sub_1","object":"subscription","customer":"cus_1","status":"active"}`),
			wantStatus: http.StatusBadRequest,
			wantCode:   "malformed_event",
		},
		{
			name:       "not an event",
			payload:    []byte(`{"hello":"world"}`),
			wantStatus: http.StatusBadRequest,
			wantCode:   "malformed_event",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, nil)
			seed(s, "uid_1", "cus_1")

			var rec *httptest.ResponseRecorder
			if tt.signature != "" {
				rec = s.do(t, http.MethodPost, webhookPath, tt.payload, map[string]string{"Stripe-Signature": tt.signature})
			} else {
				rec = s.deliver(t, tt.payload)
			}
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantCode, errorCode(t, rec))

			u, err := s.users.GetByID(context.Background(), "uid_1")
			require.NoError(t, err)
			assert.Equal(t, models.PlanFree, u.Plan)
			assert.Nil(t, u.Subscription)
		})
	}
}

func TestWebhook_MissingSignatureHeader(t *testing.T) {
	s := newTestServer(t, nil)
	rec := s.do(t, http.MethodPost, webhookPath, event("evt_1", "invoice.paid", `{}`), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "signature_invalid", errorCode(t, rec))
}

func TestWebhook_UnhandledAndSkippedAreAcknowledged(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.deliver(t, event("evt_1", "charge.refunded", `{"id":"ch_1","object":"charge"}`))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.deliver(t, event("evt_2", "customer.subscription.deleted", `{"id":"sub_1","object":"subscription","customer":"cus_gone"}`))
	assert.Equal(t, http.StatusOK, rec.Code)

	all := s.events.All()
	require.Len(t, all, 2)
	assert.Equal(t, models.OutcomeIgnored, all[0].Outcome)
	assert.Equal(t, models.OutcomeSkipped, all[1].Outcome)
}

func TestWebhook_PayloadTooLarge(t *testing.T) {
	s := newTestServer(t, nil)
	big := bytes.Repeat([]byte("a"), maxWebhookBodyBytes+1)
	rec := s.do(t, http.MethodPost, webhookPath, big, map[string]string{"Stripe-Signature": "t=1,v1=00"})
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestMapWebhookErrorToStatus(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{fmt.Errorf("%w: bad header", billing.ErrSignatureInvalid), http.StatusBadRequest, "signature_invalid"},
		{fmt.Errorf("%w: decode", billing.ErrMalformedEvent), http.StatusBadRequest, "malformed_event"},
		{core.ErrMalformedEvent, http.StatusBadRequest, "malformed_event"},
		{fmt.Errorf("%w: cus_1", core.ErrUserNotFound), http.StatusNotFound, "user_not_found"},
		{fmt.Errorf("%w: timeout", core.ErrStoreUnavailable), http.StatusServiceUnavailable, "store_unavailable"},
		{errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tt := range tests {
		status, code := mapWebhookErrorToStatus(tt.err)
		assert.Equal(t, tt.status, status, tt.err.Error())
		assert.Equal(t, tt.code, code, tt.err.Error())
	}
}

func TestCheckoutAndPortal(t *testing.T) {
	s := newTestServer(t, nil)
	seed(s, "uid_1", "")
	auth := map[string]string{"Authorization": "Bearer token-uid_1", "Content-Type": "application/json"}

	rec := s.do(t, http.MethodPost, "/api/v1/billing/create-checkout-session", []byte(`{"priceId":"price_pro"}`), auth)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var checkout CreateCheckoutSessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &checkout))
	assert.Equal(t, "cs_mock_uid_1", checkout.SessionID)
	assert.Equal(t, "https://checkout.stripe.test/cs_mock_uid_1", checkout.URL)

	rec = s.do(t, http.MethodPost, "/api/v1/billing/create-portal-session", nil, auth)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"url":"https://billing.stripe.test/p/cus_mock_uid_1"}`, rec.Body.String())
}

func TestCheckoutErrors(t *testing.T) {
	s := newTestServer(t, nil)
	seed(s, "uid_2", "")

	rec := s.do(t, http.MethodPost, "/api/v1/billing/create-checkout-session", []byte(`{"priceId":"price_pro"}`), nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	auth := map[string]string{"Authorization": "Bearer token-uid_2"}
	rec = s.do(t, http.MethodPost, "/api/v1/billing/create-checkout-session", []byte(`{}`), auth)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_request", errorCode(t, rec))

	rec = s.do(t, http.MethodPost, "/api/v1/billing/create-portal-session", nil, auth)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "user_not_linked", errorCode(t, rec))

	s.provider.CreateCustomerFunc = func(context.Context, billing.CreateCustomerParams) (*billing.Customer, error) {
		return nil, fmt.Errorf("%w: api down", billing.ErrProvider)
	}
	rec = s.do(t, http.MethodPost, "/api/v1/billing/create-checkout-session", []byte(`{"priceId":"price_pro"}`), auth)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "provider_error", errorCode(t, rec))

	rec = s.do(t, http.MethodPost, "/api/v1/billing/create-checkout-session", []byte(`{"priceId":"price_pro"}`), map[string]string{"Authorization": "Bearer token-ghost"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUsersMe(t *testing.T) {
	s := newTestServer(t, nil)
	seed(s, "uid_1", "cus_1")
	require.Equal(t, http.StatusOK, s.deliver(t, event("evt_1", "customer.subscription.created", subscriptionObject("cus_1", "active", "price_pro"))).Code)
	require.Equal(t, http.StatusOK, s.deliver(t, event("evt_2", "invoice.paid", `{"id":"in_1","object":"invoice","customer":"cus_1","status":"paid","currency":"usd","amount_paid":900}`)).Code)

	auth := map[string]string{"Authorization": "Bearer token-uid_1"}
	rec := s.do(t, http.MethodGet, "/api/v1/users/me", nil, auth)
	require.Equal(t, http.StatusOK, rec.Code)

	var view BillingViewResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, "uid_1", view.ID)
	assert.Equal(t, models.PlanPro, view.Plan)
	require.NotNil(t, view.Subscription)
	assert.Equal(t, "price_pro", view.Subscription.PriceID)
	assert.Equal(t, int64(900), view.Invoices["in_1"].AmountPaid)

	rec = s.do(t, http.MethodGet, "/api/v1/users/me/billing-events?limit=1", nil, auth)
	require.Equal(t, http.StatusOK, rec.Code)
	var events BillingEventsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &events))
	require.Len(t, events.Events, 1)
	assert.Equal(t, "evt_2", events.Events[0].EventID)

	rec = s.do(t, http.MethodGet, "/api/v1/users/me/billing-events?limit=zero", nil, auth)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/v1/users/me", nil, map[string]string{"Authorization": "Bearer token-ghost"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "user_not_found", errorCode(t, rec))
}

func TestHealthAndMetrics(t *testing.T) {
	healthy := newTestServer(t, map[string]HealthCheck{"store": func(context.Context) error { return nil }})
	rec := healthy.do(t, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"UP","checks":{"store":"UP"}}`, rec.Body.String())

	rec = healthy.do(t, http.MethodGet, "/metrics", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "plansync_http_requests_total")

	unhealthy := newTestServer(t, map[string]HealthCheck{
		"store": func(context.Context) error { return nil },
		"redis": func(context.Context) error { return errors.New("connection refused") },
	})
	rec = unhealthy.do(t, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"status":"DOWN","checks":{"store":"UP","redis":"DOWN"}}`, rec.Body.String())
}
